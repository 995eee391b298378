package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/corebank/ledger/internal/adapter/http/handler"
	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

type accountServiceStub struct{}

func (accountServiceStub) OpenAccount(ctx context.Context, input usecase.OpenAccountInput) (*domain.Account, error) {
	return &domain.Account{ID: "acc-1", Currency: "USD", Status: domain.AccountStatusActive}, nil
}

func (accountServiceStub) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return &domain.Account{ID: id, Currency: "USD", Status: domain.AccountStatusActive}, nil
}

func (accountServiceStub) GetBalance(ctx context.Context, id string) (*domain.Account, error) {
	return &domain.Account{ID: id, Currency: "USD", Status: domain.AccountStatusActive}, nil
}

func (accountServiceStub) FreezeAccount(ctx context.Context, id string) (*domain.Account, error) {
	return &domain.Account{ID: id, Currency: "USD", Status: domain.AccountStatusFrozen}, nil
}

func (accountServiceStub) UnfreezeAccount(ctx context.Context, id string) (*domain.Account, error) {
	return &domain.Account{ID: id, Currency: "USD", Status: domain.AccountStatusActive}, nil
}

func (accountServiceStub) CloseAccount(ctx context.Context, id string) (*domain.Account, error) {
	return &domain.Account{ID: id, Currency: "USD", Status: domain.AccountStatusClosed}, nil
}

func (accountServiceStub) ListAccounts(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error) {
	return nil, nil
}

type ledgerServiceStub struct{}

func (ledgerServiceStub) PostTransaction(ctx context.Context, input usecase.PostTransactionInput) (*usecase.Receipt, error) {
	return &usecase.Receipt{TransactionID: "txn-1", Sequence: 1, Status: domain.TransactionStatusPosted}, nil
}

func (ledgerServiceStub) ReverseTransaction(ctx context.Context, input usecase.ReverseTransactionInput) (*usecase.Receipt, error) {
	return &usecase.Receipt{TransactionID: "txn-2", Sequence: 2, Status: domain.TransactionStatusPosted}, nil
}

type transactionReaderStub struct{}

func (transactionReaderStub) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return &domain.Transaction{ID: id, Currency: "USD", Status: domain.TransactionStatusPosted}, nil
}

type journalServiceStub struct{}

func (journalServiceStub) GetAccountEntries(ctx context.Context, accountID string, limit, offset int) ([]*domain.Entry, error) {
	return nil, nil
}

func (journalServiceStub) BalanceAt(ctx context.Context, accountID string, seq int64) (int64, error) {
	return 0, nil
}

func (journalServiceStub) Head(ctx context.Context) (int64, error) { return 0, nil }

func (journalServiceStub) Stream(ctx context.Context, fromSeq int64, fn func(*domain.Transaction) error) error {
	return nil
}

type reconciliationServiceStub struct{}

func (reconciliationServiceStub) ReconcileAccount(ctx context.Context, accountID string) (*usecase.ReconciliationResult, error) {
	return &usecase.ReconciliationResult{AccountID: accountID, IsReconciled: true}, nil
}

func (reconciliationServiceStub) CheckZeroSum(ctx context.Context) error { return nil }

func (reconciliationServiceStub) GenerateReport(ctx context.Context) (*usecase.ReconciliationReport, error) {
	return &usecase.ReconciliationReport{ZeroSum: true}, nil
}

func newRouterConfig(overrides ...func(*RouterConfig)) RouterConfig {
	cfg := RouterConfig{
		AccountHandler:        handler.NewAccountHandler(accountServiceStub{}),
		LedgerHandler:         handler.NewLedgerHandler(ledgerServiceStub{}, transactionReaderStub{}),
		JournalHandler:        handler.NewJournalHandler(journalServiceStub{}),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciliationServiceStub{}),
		HealthHandler:         handler.NewHealthHandler(nil, nil),
		Logger:                zerolog.Nop(),
	}
	for _, o := range overrides {
		o(&cfg)
	}
	return cfg
}

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_ReadinessWithoutBackends(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /ready to return 200 with no external backends, got %d", rec.Code)
	}
}

func TestNewRouter_RoutesAreWired(t *testing.T) {
	router := NewRouter(newRouterConfig())

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/v1/accounts/acc-1", http.StatusOK},
		{http.MethodGet, "/api/v1/accounts/acc-1/balance", http.StatusOK},
		{http.MethodPost, "/api/v1/accounts/acc-1/freeze", http.StatusOK},
		{http.MethodGet, "/api/v1/transactions/txn-1", http.StatusOK},
		{http.MethodGet, "/api/v1/journal/head", http.StatusOK},
		{http.MethodGet, "/api/v1/reconciliation/report", http.StatusOK},
		{http.MethodGet, "/api/v1/reconciliation/zero-sum", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(tt.method, tt.path, nil)
		router.ServeHTTP(rec, req)
		if rec.Code != tt.status {
			t.Fatalf("%s %s: expected %d, got %d", tt.method, tt.path, tt.status, rec.Code)
		}
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.RateLimitRPS = 1
		cfg.RateLimitBurst = 1
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/api/v1/journal/head", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/journal/head", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}
