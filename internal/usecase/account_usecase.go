package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/infrastructure/metrics"
)

// balanceCacheTTL bounds how stale a display read may be. Any committed
// balance is journal-derivable and reads are versioned, so short staleness
// is acceptable on this path.
const balanceCacheTTL = 2 * time.Second

// AccountUseCase handles account lifecycle and balance reads.
type AccountUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	outboxRepo  OutboxRepository
	auditRepo   AuditRepository
	idGen       IDGenerator
	cache       Cache
	metrics     *metrics.Metrics
}

// NewAccountUseCase creates a new AccountUseCase. outboxRepo, auditRepo,
// cache and metrics may be nil.
func NewAccountUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	cache Cache,
	m *metrics.Metrics,
) *AccountUseCase {
	return &AccountUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		outboxRepo:  outboxRepo,
		auditRepo:   auditRepo,
		idGen:       idGen,
		cache:       cache,
		metrics:     m,
	}
}

// OpenAccountInput represents input for opening an account.
type OpenAccountInput struct {
	Name       string
	Currency   string
	MinBalance int64 // 0 for standard accounts, negative for credit lines
}

// OpenAccount creates a new active account with a zero balance.
func (uc *AccountUseCase) OpenAccount(ctx context.Context, input OpenAccountInput) (*domain.Account, error) {
	if err := domain.ValidateCurrency(input.Currency); err != nil {
		return nil, err
	}
	if input.MinBalance > 0 {
		return nil, fmt.Errorf("minimum balance must not be positive, got %d", input.MinBalance)
	}

	now := time.Now().UTC()

	account := &domain.Account{
		ID:         uc.idGen.Generate(),
		Name:       strings.TrimSpace(input.Name),
		Currency:   strings.ToUpper(strings.TrimSpace(input.Currency)),
		Status:     domain.AccountStatusActive,
		Balance:    0,
		MinBalance: input.MinBalance,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	uc.audit(ctx, domain.AuditActionAccountOpen, account.ID, nil, account)
	uc.emitLifecycleEvent(ctx, account, domain.EventTypeAccountOpened)

	if uc.metrics != nil {
		uc.metrics.AccountsOpened.Inc()
	}

	return account, nil
}

// GetAccount retrieves an account by ID, bypassing the cache.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// GetBalance serves the non-transactional read path. It never blocks
// writers and may observe a slightly stale, versioned snapshot.
func (uc *AccountUseCase) GetBalance(ctx context.Context, id string) (*domain.Account, error) {
	if uc.cache != nil {
		if raw, err := uc.cache.Get(ctx, "balance:"+id); err == nil {
			var account domain.Account
			if err := json.Unmarshal([]byte(raw), &account); err == nil {
				return &account, nil
			}
		}
	}

	account, err := uc.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if raw, err := json.Marshal(account); err == nil {
			_ = uc.cache.Set(ctx, "balance:"+id, string(raw), balanceCacheTTL)
		}
	}

	return account, nil
}

// FreezeAccount transitions an account to frozen, blocking subsequent
// postings until it is unfrozen.
func (uc *AccountUseCase) FreezeAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.transition(ctx, id, domain.AccountStatusFrozen, domain.AuditActionAccountFreeze, domain.EventTypeAccountFrozen, nil)
}

// UnfreezeAccount transitions a frozen account back to active.
func (uc *AccountUseCase) UnfreezeAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.transition(ctx, id, domain.AccountStatusActive, domain.AuditActionAccountUnfreeze, domain.EventTypeAccountUnfrozen, nil)
}

// CloseAccount transitions an account to closed. Rejected while the account
// carries any non-zero balance; closed accounts retain their history.
func (uc *AccountUseCase) CloseAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.transition(ctx, id, domain.AccountStatusClosed, domain.AuditActionAccountClose, domain.EventTypeAccountClosed,
		func(account *domain.Account) error {
			if account.Balance != 0 {
				return fmt.Errorf("%w: balance=%d", domain.ErrAccountNotEmpty, account.Balance)
			}
			return nil
		})
}

// transition performs a status change atomically under the account lock so
// it cannot interleave with a commit touching the same account.
func (uc *AccountUseCase) transition(
	ctx context.Context,
	id string,
	next domain.AccountStatus,
	action domain.AuditAction,
	eventType string,
	guard func(*domain.Account) error,
) (*domain.Account, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	locked, err := uc.accountRepo.GetByIDsForUpdate(ctx, tx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(locked) != 1 {
		return nil, domain.ErrAccountNotFound
	}
	account := locked[0]
	before := *account

	if !account.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, account.Status, next)
	}
	if guard != nil {
		if err := guard(account); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	if err := uc.accountRepo.UpdateStatus(ctx, tx, id, next, now); err != nil {
		return nil, err
	}
	account.Status = next
	account.UpdatedAt = now

	if uc.outboxRepo != nil {
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   account.ID,
			AggregateType: domain.AggregateTypeAccount,
			EventType:     eventType,
			Payload: map[string]any{
				"account_id": account.ID,
				"currency":   account.Currency,
				"status":     string(account.Status),
			},
			CreatedAt: now,
		}
		if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	if uc.auditRepo != nil {
		log := &domain.AuditLog{
			ID:           uc.idGen.Generate(),
			Actor:        "system",
			Action:       string(action),
			ResourceType: "account",
			ResourceID:   account.ID,
			BeforeState:  domain.MarshalState(before),
			AfterState:   domain.MarshalState(account),
			Status:       string(domain.AuditStatusSuccess),
			CreatedAt:    now,
		}
		if err := uc.auditRepo.CreateTx(ctx, tx, log); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if uc.cache != nil {
		_ = uc.cache.Delete(ctx, "balance:"+id)
	}

	return account, nil
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	return uc.accountRepo.List(ctx, input.Limit, input.Offset)
}

func (uc *AccountUseCase) audit(ctx context.Context, action domain.AuditAction, resourceID string, before, after any) {
	if uc.auditRepo == nil {
		return
	}

	log := &domain.AuditLog{
		ID:           uc.idGen.Generate(),
		Actor:        "system",
		Action:       string(action),
		ResourceType: "account",
		ResourceID:   resourceID,
		BeforeState:  domain.MarshalState(before),
		AfterState:   domain.MarshalState(after),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    time.Now().UTC(),
	}

	_ = uc.auditRepo.Create(ctx, log)
}

func (uc *AccountUseCase) emitLifecycleEvent(ctx context.Context, account *domain.Account, eventType string) {
	if uc.outboxRepo == nil {
		return
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   account.ID,
		AggregateType: domain.AggregateTypeAccount,
		EventType:     eventType,
		Payload: map[string]any{
			"account_id": account.ID,
			"currency":   account.Currency,
			"status":     string(account.Status),
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return
	}

	_ = tx.Commit(ctx)
}
