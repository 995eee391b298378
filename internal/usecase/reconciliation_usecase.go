package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/corebank/ledger/internal/domain"
)

// ReconciliationUseCase verifies that live balances match the journal.
type ReconciliationUseCase struct {
	accountRepo AccountRepository
	journal     *JournalUseCase
}

// NewReconciliationUseCase creates a new reconciliation use case.
func NewReconciliationUseCase(accountRepo AccountRepository, journal *JournalUseCase) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		accountRepo: accountRepo,
		journal:     journal,
	}
}

// ReconciliationResult is the per-account outcome of a reconciliation run.
type ReconciliationResult struct {
	AccountID       string
	RecordedBalance int64
	ReplayedBalance int64
	Difference      int64
	IsReconciled    bool
	LastChecked     time.Time
}

// ReconciliationReport is the outcome of a full reconciliation run.
type ReconciliationReport struct {
	HeadSequence       int64
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	ZeroSum            bool
	CheckedAt          time.Time
}

// ReconcileAccount replays the journal for a single account and compares the
// result against the stored balance.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountID string) (*ReconciliationResult, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	replayed, err := uc.journal.ReplayBalances(ctx)
	if err != nil {
		return nil, err
	}

	return uc.compare(account, replayed), nil
}

// CheckZeroSum verifies that every committed transaction's entries sum to
// zero. Any violation means the journal itself is corrupt, not merely out of
// sync with account state.
func (uc *ReconciliationUseCase) CheckZeroSum(ctx context.Context) error {
	return uc.journal.Stream(ctx, 1, func(txn *domain.Transaction) error {
		var sum int64
		for _, entry := range txn.Entries {
			sum += entry.Amount
		}
		if sum != 0 {
			return fmt.Errorf("transaction %s (seq %d) entries sum to %d, want 0", txn.ID, txn.Sequence, sum)
		}
		return nil
	})
}

// GenerateReport replays the full journal once and compares every account's
// stored balance against its replayed balance. Accounts that never appear in
// the journal reconcile against zero.
func (uc *ReconciliationUseCase) GenerateReport(ctx context.Context) (*ReconciliationReport, error) {
	head, err := uc.journal.Head(ctx)
	if err != nil {
		return nil, err
	}

	replayed, err := uc.journal.ReplayBalancesAt(ctx, head)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		HeadSequence: head,
		ZeroSum:      uc.CheckZeroSum(ctx) == nil,
		CheckedAt:    time.Now().UTC(),
	}

	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		accounts, err := uc.accountRepo.List(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(accounts) == 0 {
			break
		}

		for _, account := range accounts {
			result := uc.compare(account, replayed)
			report.TotalAccounts++
			if result.IsReconciled {
				report.ReconciledAccounts++
			} else {
				report.Discrepancies = append(report.Discrepancies, result)
			}
		}

		if len(accounts) < pageSize {
			break
		}
	}

	return report, nil
}

func (uc *ReconciliationUseCase) compare(account *domain.Account, replayed map[string]int64) *ReconciliationResult {
	expected := replayed[account.ID]
	return &ReconciliationResult{
		AccountID:       account.ID,
		RecordedBalance: account.Balance,
		ReplayedBalance: expected,
		Difference:      account.Balance - expected,
		IsReconciled:    account.Balance == expected,
		LastChecked:     time.Now().UTC(),
	}
}
