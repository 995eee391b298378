package usecase

import (
	"context"
	"time"

	"github.com/corebank/ledger/internal/domain"
)

// AccountRepository defines data access for the account registry.
// Balances stored here are a materialized projection of the journal.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByIDs returns a lock-free point-in-time snapshot of the given
	// accounts. Missing IDs are simply absent from the result.
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Account, error)
	// GetByIDsForUpdate locks the given accounts for the duration of tx.
	// IDs must already be sorted; implementations acquire locks in the
	// given order, which is the deadlock-avoidance invariant.
	GetByIDsForUpdate(ctx context.Context, tx Transaction, ids []string) ([]*domain.Account, error)
	// ApplyDelta adds delta to the account balance and bumps its version.
	// The write succeeds only when the stored version still equals
	// expectedVersion; otherwise domain.ErrVersionConflict is returned and
	// nothing changes.
	ApplyDelta(ctx context.Context, tx Transaction, id string, delta int64, expectedVersion int64, updatedAt time.Time) (int64, error)
	UpdateStatus(ctx context.Context, tx Transaction, id string, status domain.AccountStatus, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// JournalRepository defines data access for the append-only transaction
// journal, the sole durable source of truth. Append is the only mutation of
// journal content; MarkReversed flips a posted transaction's status exactly
// once without touching its entries.
type JournalRepository interface {
	// Append writes the transaction and its entries and assigns the next
	// sequence number. Sequence numbers are strictly increasing and
	// gap-free within a committed journal. Idempotency keys are unique
	// across the journal; appending an already-journaled key fails with
	// domain.ErrDuplicateKey.
	Append(ctx context.Context, tx Transaction, txn *domain.Transaction) (int64, error)
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	// GetByIdempotencyKey returns the committed transaction journaled
	// under key, or domain.ErrTransactionNotFound.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	// MarkReversed transitions a posted transaction to reversed. Returns
	// domain.ErrAlreadyReversed when the transaction is not posted anymore.
	MarkReversed(ctx context.Context, tx Transaction, id string) error
	// ReadFrom returns up to limit posted transactions with sequence
	// >= fromSeq, in sequence order. Restartable: callers resume from the
	// last sequence seen.
	ReadFrom(ctx context.Context, fromSeq int64, limit int) ([]*domain.Transaction, error)
	GetEntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Entry, error)
	// Head returns the highest committed sequence number, 0 for an empty
	// journal.
	Head(ctx context.Context) (int64, error)
}

// IdempotencyState is the outcome of a CheckOrReserve call.
type IdempotencyState int

const (
	// IdempotencyFresh means the key was unknown and is now reserved by
	// this caller.
	IdempotencyFresh IdempotencyState = iota
	// IdempotencyInFlight means another caller holds the reservation and
	// has not recorded an outcome yet.
	IdempotencyInFlight
	// IdempotencyCompleted means an outcome is recorded.
	IdempotencyCompleted
)

// IdempotencyResult carries the state and, when completed, the outcome.
type IdempotencyResult struct {
	State   IdempotencyState
	Outcome []byte
}

// IdempotencyStore handles idempotency key reservation and outcomes.
// A given key returns the same outcome for the lifetime of the record.
type IdempotencyStore interface {
	// CheckOrReserve atomically transitions key from absent to reserved so
	// concurrent duplicates do not both proceed to commit. fingerprint
	// identifies the request payload; a reservation carries it so replays
	// with a different payload can be refused.
	CheckOrReserve(ctx context.Context, key, fingerprint string, reservationTTL time.Duration) (IdempotencyResult, error)
	// Get reads the current state without reserving.
	Get(ctx context.Context, key string) (IdempotencyResult, error)
	// Complete records the terminal outcome for a reserved key.
	Complete(ctx context.Context, key string, outcome []byte, ttl time.Duration) error
	// Release frees a reservation after a transient failure so the caller
	// can retry the whole request.
	Release(ctx context.Context, key string) error
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// Transaction represents a storage transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles storage transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier retries an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Cache defines caching operations for non-transactional reads.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
