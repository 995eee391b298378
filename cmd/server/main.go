package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	httpAdapter "github.com/corebank/ledger/internal/adapter/http"
	"github.com/corebank/ledger/internal/adapter/http/handler"
	"github.com/corebank/ledger/internal/adapter/repository/memory"
	postgresRepo "github.com/corebank/ledger/internal/adapter/repository/postgres"
	redisRepo "github.com/corebank/ledger/internal/adapter/repository/redis"
	"github.com/corebank/ledger/internal/infrastructure/config"
	"github.com/corebank/ledger/internal/infrastructure/eventpublisher"
	"github.com/corebank/ledger/internal/infrastructure/logger"
	"github.com/corebank/ledger/internal/infrastructure/logging"
	"github.com/corebank/ledger/internal/infrastructure/metrics"
	"github.com/corebank/ledger/internal/infrastructure/postgres"
	"github.com/corebank/ledger/internal/infrastructure/redis"
	"github.com/corebank/ledger/internal/usecase"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slogger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	if err := run(cfg, log, slogger); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// backends bundles the repository set behind the engine, whichever store
// implements it.
type backends struct {
	txManager   usecase.TransactionManager
	accountRepo usecase.AccountRepository
	journalRepo usecase.JournalRepository
	idempotency usecase.IdempotencyStore
	outboxRepo  usecase.OutboxRepository
	auditRepo   usecase.AuditRepository
	retrier     usecase.Retrier
	cache       usecase.Cache
	pool        *pgxpool.Pool
	redisClient *goredis.Client
}

func run(cfg *config.Config, log zerolog.Logger, slogger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	idGen := postgresRepo.NewULIDGenerator()

	be, err := buildBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	if be.pool != nil {
		defer be.pool.Close()
	}
	if be.redisClient != nil {
		defer be.redisClient.Close()
	}

	// Use cases
	engine := usecase.NewLedgerEngine(
		be.txManager, be.accountRepo, be.journalRepo, be.idempotency,
		be.outboxRepo, be.auditRepo, be.retrier, idGen, m,
	)
	engine.SetCommitTimeout(cfg.CommitTimeout)

	accountUC := usecase.NewAccountUseCase(
		be.txManager, be.accountRepo, be.outboxRepo, be.auditRepo, idGen, be.cache, m,
	)
	journalUC := usecase.NewJournalUseCase(be.journalRepo)
	reconcileUC := usecase.NewReconciliationUseCase(be.accountRepo, journalUC)

	// Outbox publisher
	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: be.outboxRepo,
		Publisher:  eventpublisher.NewLogPublisher(slogger.Component("publisher")),
		Logger:     slogger.Component("eventpublisher"),
		Metrics:    m,
		BatchSize:  cfg.PublishBatch,
		Interval:   cfg.PublishInterval,
	})
	go func() {
		if err := publisher.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	// HTTP surface
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:        handler.NewAccountHandler(accountUC),
		LedgerHandler:         handler.NewLedgerHandler(engine, journalUC),
		JournalHandler:        handler.NewJournalHandler(journalUC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconcileUC),
		HealthHandler:         handler.NewHealthHandler(be.pool, be.redisClient),
		Logger:                log,
		Metrics:               m,
		RateLimitRPS:          cfg.RateLimitRPS,
		RateLimitBurst:        cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("backend", cfg.StoreBackend).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

func buildBackends(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backends, error) {
	be := &backends{}

	switch cfg.StoreBackend {
	case config.StoreMemory:
		store := memory.NewStore()
		be.txManager = memory.NewTxManager(store)
		be.accountRepo = memory.NewAccountRepository(store)
		be.journalRepo = memory.NewJournalRepository(store)
		be.outboxRepo = memory.NewOutboxRepository(store)
		be.auditRepo = memory.NewAuditRepository(store)
		be.idempotency = memory.NewIdempotencyStore()
		log.Info().Msg("using in-memory store")

	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		be.pool = pool

		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		be.txManager = postgresRepo.NewTxManager(pool, cfg.LockTimeout)
		be.accountRepo = postgresRepo.NewAccountRepository(pool)
		be.journalRepo = postgresRepo.NewJournalRepository(pool)
		be.outboxRepo = postgresRepo.NewOutboxRepository(pool)
		be.auditRepo = postgresRepo.NewAuditRepository(pool)
		be.retrier = postgresRepo.NewRetrier()
		// Dedup state shares the ledger's database so a restart cannot
		// forget an already-posted key.
		be.idempotency = postgresRepo.NewIdempotencyStore(pool)
		log.Info().Msg("connected to postgres")
	}

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		be.redisClient = client
		be.idempotency = redisRepo.NewIdempotencyStore(client)
		be.cache = redisRepo.NewCache(client)
		log.Info().Msg("connected to redis")
	}

	return be, nil
}
