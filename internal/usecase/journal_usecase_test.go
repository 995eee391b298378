package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebank/ledger/internal/adapter/repository/memory"
	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
	"github.com/corebank/ledger/internal/usecase/mocks"
)

func seedJournal(t *testing.T, n int) (*usecase.JournalUseCase, *memory.JournalRepository) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repo := memory.NewJournalRepository(store)
	txm := memory.NewTxManager(store)

	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		tx, err := txm.Begin(ctx)
		require.NoError(t, err)
		_, err = repo.Append(ctx, tx, &domain.Transaction{
			ID:       "txn-" + itoa(i+1),
			Currency: "USD",
			Status:   domain.TransactionStatusPosted,
			Entries: []domain.Entry{
				{AccountID: "acc-a", Amount: -1, Currency: "USD"},
				{AccountID: "acc-b", Amount: 1, Currency: "USD"},
			},
			CreatedAt: now,
			PostedAt:  now,
		})
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
	}

	return usecase.NewJournalUseCase(repo), repo
}

func TestStreamVisitsEverySequenceInOrder(t *testing.T) {
	ctx := context.Background()
	// More transactions than one page so pagination is exercised.
	uc, _ := seedJournal(t, usecase.DefaultStreamPageSize+7)

	var seqs []int64
	err := uc.Stream(ctx, 1, func(txn *domain.Transaction) error {
		seqs = append(seqs, txn.Sequence)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, seqs, usecase.DefaultStreamPageSize+7)
	for i, seq := range seqs {
		assert.Equal(t, int64(i+1), seq)
	}
}

func TestStreamFromOffset(t *testing.T) {
	ctx := context.Background()
	uc, _ := seedJournal(t, 10)

	var count int
	err := uc.Stream(ctx, 7, func(txn *domain.Transaction) error {
		count++
		assert.GreaterOrEqual(t, txn.Sequence, int64(7))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestStreamStopsOnCallbackError(t *testing.T) {
	ctx := context.Background()
	uc, _ := seedJournal(t, 10)

	sentinel := errors.New("stop here")
	var count int
	err := uc.Stream(ctx, 1, func(txn *domain.Transaction) error {
		count++
		if count == 3 {
			return sentinel
		}
		return nil
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, count)
}

func TestReplayBalancesAt(t *testing.T) {
	ctx := context.Background()
	uc, _ := seedJournal(t, 10)

	full, err := uc.ReplayBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(-10), full["acc-a"])
	assert.Equal(t, int64(10), full["acc-b"])

	partial, err := uc.ReplayBalancesAt(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(-4), partial["acc-a"])
	assert.Equal(t, int64(4), partial["acc-b"])
}

func TestGetAccountEntriesPaging(t *testing.T) {
	ctx := context.Background()
	uc, _ := seedJournal(t, 5)

	entries, err := uc.GetAccountEntries(ctx, "acc-a", 3, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	rest, err := uc.GetAccountEntries(ctx, "acc-a", 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	none, err := uc.GetAccountEntries(ctx, "acc-x", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReconciliationCleanLedger(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)

	_, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 250, "k1"))
	require.NoError(t, err)

	journalUC := usecase.NewJournalUseCase(l.journal)
	recon := usecase.NewReconciliationUseCase(l.acc, journalUC)

	require.NoError(t, recon.CheckZeroSum(ctx))

	report, err := recon.GenerateReport(ctx)
	require.NoError(t, err)
	assert.True(t, report.ZeroSum)
	assert.Equal(t, report.TotalAccounts, report.ReconciledAccounts)
	assert.Empty(t, report.Discrepancies)
	assert.Equal(t, int64(2), report.HeadSequence)
}

func TestReconciliationDetectsDrift(t *testing.T) {
	ctx := context.Background()

	accountRepo := mocks.NewMockAccountRepository()
	journalRepo := mocks.NewMockJournalRepository()

	now := time.Now().UTC()
	accountRepo.Seed(&domain.Account{
		ID: "acc-a", Currency: "USD", Status: domain.AccountStatusActive,
		Balance: 900, CreatedAt: now, UpdatedAt: now,
	})

	// The journal says acc-a should hold 1000: the stored balance drifted.
	_, err := journalRepo.Append(ctx, nil, &domain.Transaction{
		ID:       "txn-1",
		Currency: "USD",
		Status:   domain.TransactionStatusPosted,
		Entries: []domain.Entry{
			{AccountID: "cash", Amount: -1000, Currency: "USD"},
			{AccountID: "acc-a", Amount: 1000, Currency: "USD"},
		},
		CreatedAt: now,
		PostedAt:  now,
	})
	require.NoError(t, err)

	recon := usecase.NewReconciliationUseCase(accountRepo, usecase.NewJournalUseCase(journalRepo))

	result, err := recon.ReconcileAccount(ctx, "acc-a")
	require.NoError(t, err)
	assert.False(t, result.IsReconciled)
	assert.Equal(t, int64(-100), result.Difference)
}

func TestCheckZeroSumDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	journalRepo := mocks.NewMockJournalRepository()

	now := time.Now().UTC()
	_, err := journalRepo.Append(ctx, nil, &domain.Transaction{
		ID:       "txn-bad",
		Currency: "USD",
		Status:   domain.TransactionStatusPosted,
		Entries: []domain.Entry{
			{AccountID: "acc-a", Amount: -100, Currency: "USD"},
			{AccountID: "acc-b", Amount: 99, Currency: "USD"},
		},
		CreatedAt: now,
		PostedAt:  now,
	})
	require.NoError(t, err)

	recon := usecase.NewReconciliationUseCase(mocks.NewMockAccountRepository(), usecase.NewJournalUseCase(journalRepo))
	assert.Error(t, recon.CheckZeroSum(ctx))
}

func TestBalanceAt(t *testing.T) {
	ctx := context.Background()
	uc, _ := seedJournal(t, 10)

	at4, err := uc.BalanceAt(ctx, "acc-b", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), at4)

	full, err := uc.BalanceAt(ctx, "acc-a", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(-10), full)

	unknown, err := uc.BalanceAt(ctx, "acc-x", 10)
	require.NoError(t, err)
	assert.Zero(t, unknown)
}
