package memory

import (
	"context"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// JournalRepository implements usecase.JournalRepository over a Store.
type JournalRepository struct {
	store *Store
}

// NewJournalRepository creates a new JournalRepository.
func NewJournalRepository(store *Store) *JournalRepository {
	return &JournalRepository{store: store}
}

// Append assigns the next sequence number and buffers the transaction for
// commit. The sequence counter stays locked until the transaction finishes,
// so sequences are strictly increasing with no gaps even across rollbacks.
func (r *JournalRepository) Append(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) (int64, error) {
	mt, err := asTx(tx)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.store.seqMu.Lock()
	mt.seqHeld = true

	r.store.mu.RLock()
	seq := int64(len(r.store.journal)) + 1
	_, dup := r.store.byKey[txn.IdempotencyKey]
	r.store.mu.RUnlock()

	// seqMu serializes appends through commit, so a committed duplicate
	// is always visible here.
	if dup && txn.IdempotencyKey != "" {
		return 0, domain.ErrDuplicateKey
	}

	stored := cloneTransaction(txn)
	stored.Sequence = seq

	mt.buffer(func() {
		r.store.journal = append(r.store.journal, stored)
		r.store.byID[stored.ID] = stored
		if stored.IdempotencyKey != "" {
			r.store.byKey[stored.IdempotencyKey] = stored
		}
	})

	return seq, nil
}

// GetByIdempotencyKey returns the committed transaction journaled under key.
func (r *JournalRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	txn, ok := r.store.byKey[key]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTransaction(txn), nil
}

// GetByID returns a committed transaction with its entries.
func (r *JournalRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	txn, ok := r.store.byID[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTransaction(txn), nil
}

// MarkReversed buffers the posted -> reversed flip on the original
// transaction. The losing side of a reversal race observes the winner's
// committed flip and fails here.
func (r *JournalRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id string) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.RLock()
	txn, ok := r.store.byID[id]
	var status domain.TransactionStatus
	if ok {
		status = txn.Status
	}
	r.store.mu.RUnlock()

	if !ok {
		return domain.ErrTransactionNotFound
	}
	switch status {
	case domain.TransactionStatusPosted:
	case domain.TransactionStatusReversed:
		return domain.ErrAlreadyReversed
	default:
		return domain.ErrNotReversible
	}

	mt.buffer(func() {
		if txn, ok := r.store.byID[id]; ok {
			txn.Status = domain.TransactionStatusReversed
		}
	})

	return nil
}

// ReadFrom returns up to limit committed transactions with sequence >=
// fromSeq, in sequence order.
func (r *JournalRepository) ReadFrom(ctx context.Context, fromSeq int64, limit int) ([]*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fromSeq < 1 {
		fromSeq = 1
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	head := int64(len(r.store.journal))
	if fromSeq > head {
		return nil, nil
	}

	end := fromSeq + int64(limit) - 1
	if limit <= 0 || end > head {
		end = head
	}

	page := make([]*domain.Transaction, 0, end-fromSeq+1)
	for seq := fromSeq; seq <= end; seq++ {
		page = append(page, cloneTransaction(r.store.journal[seq-1]))
	}
	return page, nil
}

// GetEntriesByAccount returns the entries touching an account, newest first.
func (r *JournalRepository) GetEntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []*domain.Entry
	for i := len(r.store.journal) - 1; i >= 0; i-- {
		txn := r.store.journal[i]
		for j := range txn.Entries {
			if txn.Entries[j].AccountID == accountID {
				entry := txn.Entries[j]
				matched = append(matched, &entry)
			}
		}
	}

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// Head returns the sequence of the latest committed transaction.
func (r *JournalRepository) Head(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return int64(len(r.store.journal)), nil
}

func cloneTransaction(txn *domain.Transaction) *domain.Transaction {
	copied := *txn
	copied.Entries = append([]domain.Entry(nil), txn.Entries...)
	if txn.Reverses != nil {
		ref := *txn.Reverses
		copied.Reverses = &ref
	}
	return &copied
}
