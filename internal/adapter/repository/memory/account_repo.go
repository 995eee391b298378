package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository over a Store.
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// Create inserts a new account. Fails if the ID already exists.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.accounts[account.ID]; exists {
		return fmt.Errorf("memory: account %s already exists", account.ID)
	}

	stored := *account
	r.store.accounts[account.ID] = &stored
	return nil
}

// GetByID returns a snapshot of a single account.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	account, ok := r.store.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	copied := *account
	return &copied, nil
}

// GetByIDs returns snapshots of the requested accounts without locking.
// Missing IDs are omitted from the result.
func (r *AccountRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	accounts := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		if account, ok := r.store.accounts[id]; ok {
			copied := *account
			accounts = append(accounts, &copied)
		}
	}
	return accounts, nil
}

// GetByIDsForUpdate acquires the exclusive lock of each account in the
// given order and returns their current committed state. Callers must pass
// IDs sorted ascending; acquiring in any other order can deadlock against
// a concurrent transaction. Locks are held until the transaction finishes.
func (r *AccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if !sort.StringsAreSorted(ids) {
		return nil, fmt.Errorf("memory: lock order violation: ids not sorted")
	}

	for _, id := range ids {
		release, err := r.store.acquireAccountLock(ctx, id)
		if err != nil {
			return nil, err
		}
		mt.register(release)
	}

	return r.GetByIDs(ctx, ids)
}

// ApplyDelta buffers a balance change guarded by the version observed under
// lock. The version check runs immediately against committed state; with
// the account lock held it can only fail if the caller raced without one.
func (r *AccountRepository) ApplyDelta(ctx context.Context, tx usecase.Transaction, id string, delta int64, expectedVersion int64, updatedAt time.Time) (int64, error) {
	mt, err := asTx(tx)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.store.mu.RLock()
	account, ok := r.store.accounts[id]
	if !ok {
		r.store.mu.RUnlock()
		return 0, domain.ErrAccountNotFound
	}
	current := account.Version
	r.store.mu.RUnlock()

	if current != expectedVersion {
		return 0, fmt.Errorf("%w: account %s version %d, expected %d", domain.ErrVersionConflict, id, current, expectedVersion)
	}

	newVersion := expectedVersion + 1
	mt.buffer(func() {
		if account, ok := r.store.accounts[id]; ok {
			account.Balance += delta
			account.Version = newVersion
			account.UpdatedAt = updatedAt
		}
	})

	return newVersion, nil
}

// UpdateStatus buffers a status change for an account the caller has locked.
func (r *AccountRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.AccountStatus, updatedAt time.Time) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.RLock()
	_, ok := r.store.accounts[id]
	r.store.mu.RUnlock()
	if !ok {
		return domain.ErrAccountNotFound
	}

	mt.buffer(func() {
		if account, ok := r.store.accounts[id]; ok {
			account.Status = status
			account.UpdatedAt = updatedAt
		}
	})

	return nil
}

// List returns account snapshots ordered by creation time, oldest first.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	all := make([]*domain.Account, 0, len(r.store.accounts))
	for _, account := range r.store.accounts {
		all = append(all, account)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}

	result := make([]*domain.Account, len(all))
	for i, account := range all {
		copied := *account
		result[i] = &copied
	}
	return result, nil
}
