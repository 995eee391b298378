package usecase

import (
	"context"
	"errors"

	"github.com/corebank/ledger/internal/domain"
)

// JournalUseCase serves read access to the append-only transaction journal.
type JournalUseCase struct {
	journalRepo JournalRepository
}

// NewJournalUseCase creates a new JournalUseCase.
func NewJournalUseCase(journalRepo JournalRepository) *JournalUseCase {
	return &JournalUseCase{journalRepo: journalRepo}
}

// GetTransaction retrieves a committed transaction with its entries.
func (uc *JournalUseCase) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return uc.journalRepo.GetByID(ctx, id)
}

// GetAccountEntries lists the entries touching an account, newest first.
func (uc *JournalUseCase) GetAccountEntries(ctx context.Context, accountID string, limit, offset int) ([]*domain.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return uc.journalRepo.GetEntriesByAccount(ctx, accountID, limit, offset)
}

// Head returns the sequence number of the latest committed transaction,
// or 0 when the journal is empty.
func (uc *JournalUseCase) Head(ctx context.Context) (int64, error) {
	return uc.journalRepo.Head(ctx)
}

// Stream invokes fn for every committed transaction with sequence >= fromSeq,
// in sequence order. Iteration stops at the first error from fn. Sequences
// are dense, so a reader can detect a missed page by a gap alone.
func (uc *JournalUseCase) Stream(ctx context.Context, fromSeq int64, fn func(*domain.Transaction) error) error {
	if fromSeq < 1 {
		fromSeq = 1
	}

	for {
		page, err := uc.journalRepo.ReadFrom(ctx, fromSeq, DefaultStreamPageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		for _, txn := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(txn); err != nil {
				return err
			}
		}

		fromSeq = page[len(page)-1].Sequence + 1
	}
}

// BalanceAt derives a single account's balance as of a journal sequence by
// replaying its entries. Accounts absent from the journal up to that point
// report zero.
func (uc *JournalUseCase) BalanceAt(ctx context.Context, accountID string, seq int64) (int64, error) {
	var balance int64

	err := uc.Stream(ctx, 1, func(txn *domain.Transaction) error {
		if seq > 0 && txn.Sequence > seq {
			return errStopStream
		}
		for _, entry := range txn.Entries {
			if entry.AccountID == accountID {
				balance += entry.Amount
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopStream) {
		return 0, err
	}

	return balance, nil
}

// ReplayBalances recomputes every account balance from the journal alone,
// applying entries in sequence order. The result is keyed by account ID and
// covers only accounts that appear in the journal.
func (uc *JournalUseCase) ReplayBalances(ctx context.Context) (map[string]int64, error) {
	return uc.ReplayBalancesAt(ctx, 0)
}

// ReplayBalancesAt recomputes balances from the journal up to and including
// upToSeq. upToSeq <= 0 means the full journal.
func (uc *JournalUseCase) ReplayBalancesAt(ctx context.Context, upToSeq int64) (map[string]int64, error) {
	balances := make(map[string]int64)

	err := uc.Stream(ctx, 1, func(txn *domain.Transaction) error {
		if upToSeq > 0 && txn.Sequence > upToSeq {
			return errStopStream
		}
		for _, entry := range txn.Entries {
			balances[entry.AccountID] += entry.Amount
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopStream) {
		return nil, err
	}

	return balances, nil
}

// errStopStream terminates Stream early without surfacing an error.
var errStopStream = errors.New("journal: stop stream")
