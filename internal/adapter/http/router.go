package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/corebank/ledger/internal/adapter/http/handler"
	"github.com/corebank/ledger/internal/adapter/http/middleware"
	"github.com/corebank/ledger/internal/infrastructure/metrics"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler        *handler.AccountHandler
	LedgerHandler         *handler.LedgerHandler
	JournalHandler        *handler.JournalHandler
	ReconciliationHandler *handler.ReconciliationHandler
	HealthHandler         *handler.HealthHandler
	Logger                zerolog.Logger
	Metrics               *metrics.Metrics
	RateLimitRPS          float64
	RateLimitBurst        int
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	}
	r.Use(middleware.Recovery)

	// Health and operational endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.Metrics)
			r.Use(limiter.Limit)
		}

		// Accounts
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Open)
			r.Get("/", cfg.AccountHandler.List)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.Get("/{id}/balance", cfg.AccountHandler.GetBalance)
			r.Post("/{id}/freeze", cfg.AccountHandler.Freeze)
			r.Post("/{id}/unfreeze", cfg.AccountHandler.Unfreeze)
			r.Post("/{id}/close", cfg.AccountHandler.Close)
			r.Get("/{id}/entries", cfg.JournalHandler.ListByAccount)
			r.Get("/{id}/balance-at", cfg.JournalHandler.BalanceAt)
		})

		// Transactions
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", cfg.LedgerHandler.Post)
			r.Get("/{id}", cfg.LedgerHandler.Get)
			r.Post("/{id}/reverse", cfg.LedgerHandler.Reverse)
		})

		// Journal
		r.Route("/journal", func(r chi.Router) {
			r.Get("/", cfg.JournalHandler.Read)
			r.Get("/head", cfg.JournalHandler.Head)
		})

		// Reconciliation
		r.Route("/reconciliation", func(r chi.Router) {
			r.Get("/report", cfg.ReconciliationHandler.Report)
			r.Get("/zero-sum", cfg.ReconciliationHandler.ZeroSum)
			r.Get("/accounts/{id}", cfg.ReconciliationHandler.Account)
		})
	})

	return r
}
