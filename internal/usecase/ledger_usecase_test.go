package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebank/ledger/internal/adapter/repository/memory"
	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
	"github.com/corebank/ledger/internal/usecase/mocks"
)

// testLedger bundles a fully wired engine over the in-process backend.
type testLedger struct {
	engine  *usecase.LedgerEngine
	store   *memory.Store
	txm     *memory.TxManager
	acc     *memory.AccountRepository
	journal *memory.JournalRepository
	idem    *memory.IdempotencyStore
	outbox  *memory.OutboxRepository
	audit   *memory.AuditRepository
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()

	store := memory.NewStore()
	l := &testLedger{
		store:   store,
		txm:     memory.NewTxManager(store),
		acc:     memory.NewAccountRepository(store),
		journal: memory.NewJournalRepository(store),
		idem:    memory.NewIdempotencyStore(),
		outbox:  memory.NewOutboxRepository(store),
		audit:   memory.NewAuditRepository(store),
	}
	l.engine = usecase.NewLedgerEngine(
		l.txm, l.acc, l.journal, l.idem, l.outbox, l.audit,
		nil, mocks.NewMockIDGenerator("id"), nil,
	)
	return l
}

func (l *testLedger) openAccount(t *testing.T, id string, balance int64) {
	t.Helper()
	now := time.Now().UTC()
	err := l.acc.Create(context.Background(), &domain.Account{
		ID:        id,
		Name:      id,
		Currency:  "USD",
		Status:    domain.AccountStatusActive,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)

	if balance != 0 {
		// Funding entry keeps the journal consistent with live balances:
		// money enters through a settlement account, never from thin air.
		l.ensureFunding(t)
		_, err := l.engine.PostTransaction(context.Background(), usecase.PostTransactionInput{
			Currency:       "USD",
			IdempotencyKey: "fund-" + id,
			Entries: []domain.CandidateEntry{
				{AccountID: "cash", Amount: -balance},
				{AccountID: id, Amount: balance},
			},
		})
		require.NoError(t, err)
	}
}

func (l *testLedger) ensureFunding(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := l.acc.GetByID(ctx, "cash"); err == nil {
		return
	}
	now := time.Now().UTC()
	require.NoError(t, l.acc.Create(ctx, &domain.Account{
		ID:         "cash",
		Name:       "cash settlement",
		Currency:   "USD",
		Status:     domain.AccountStatusActive,
		MinBalance: -1_000_000_000,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
}

func (l *testLedger) balance(t *testing.T, id string) int64 {
	t.Helper()
	acc, err := l.acc.GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func transfer(from, to string, amount int64, key string) usecase.PostTransactionInput {
	return usecase.PostTransactionInput{
		Currency:       "USD",
		IdempotencyKey: key,
		Entries: []domain.CandidateEntry{
			{AccountID: from, Amount: -amount},
			{AccountID: to, Amount: amount},
		},
	}
}

func TestPostTransactionTransfer(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)

	receipt, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 400, "k1"))
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPosted, receipt.Status)
	assert.Positive(t, receipt.Sequence)

	assert.Equal(t, int64(600), l.balance(t, "acc-a"))
	assert.Equal(t, int64(400), l.balance(t, "acc-b"))

	txn, err := l.journal.GetByID(ctx, receipt.TransactionID)
	require.NoError(t, err)
	require.Len(t, txn.Entries, 2)
	for _, entry := range txn.Entries {
		assert.Equal(t, entry.PreviousBalance+entry.Amount, entry.CurrentBalance)
	}
}

func TestPostTransactionIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)

	first, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 400, "k1"))
	require.NoError(t, err)

	second, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 400, "k1"))
	require.NoError(t, err)

	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, first.Sequence, second.Sequence)

	// Applied exactly once.
	assert.Equal(t, int64(600), l.balance(t, "acc-a"))
	assert.Equal(t, int64(400), l.balance(t, "acc-b"))
}

func TestPostTransactionKeyReusedDifferentPayload(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)

	_, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 400, "k1"))
	require.NoError(t, err)

	_, err = l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 500, "k1"))
	assert.ErrorIs(t, err, domain.ErrKeyReused)
}

func TestPostTransactionMissingKey(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.engine.PostTransaction(context.Background(), transfer("acc-a", "acc-b", 1, ""))
	assert.ErrorIs(t, err, domain.ErrKeyMissing)
}

func TestPostTransactionValidationRejections(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)

	tests := []struct {
		name    string
		input   usecase.PostTransactionInput
		wantErr error
	}{
		{
			name: "unbalanced",
			input: usecase.PostTransactionInput{
				Currency:       "USD",
				IdempotencyKey: "r1",
				Entries: []domain.CandidateEntry{
					{AccountID: "acc-a", Amount: -100},
					{AccountID: "acc-b", Amount: 99},
				},
			},
			wantErr: domain.ErrUnbalanced,
		},
		{
			name: "single entry",
			input: usecase.PostTransactionInput{
				Currency:       "USD",
				IdempotencyKey: "r2",
				Entries:        []domain.CandidateEntry{{AccountID: "acc-a", Amount: 0}},
			},
			wantErr: domain.ErrTooFewEntries,
		},
		{
			name:    "insufficient funds",
			input:   transfer("acc-b", "acc-a", 10_000, "r3"),
			wantErr: domain.ErrInsufficientFunds,
		},
		{
			name:    "unknown account",
			input:   transfer("acc-a", "acc-x", 100, "r4"),
			wantErr: domain.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.engine.PostTransaction(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)

			// Nothing was applied and nothing was journaled.
			assert.Equal(t, int64(1000), l.balance(t, "acc-a")+l.balance(t, "acc-b"))
		})
	}

	head, err := l.journal.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), head) // only the funding transaction
}

func TestPostTransactionRejectionIsCached(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 100)
	l.openAccount(t, "acc-b", 0)

	input := transfer("acc-a", "acc-b", 500, "k1")

	_, err := l.engine.PostTransaction(ctx, input)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Replay of the identical request fails identically even after the
	// account is funded: the outcome is served from the idempotency store.
	l.ensureFunding(t)
	_, err = l.engine.PostTransaction(ctx, transfer("cash", "acc-a", 1000, "fund-more"))
	require.NoError(t, err)

	_, err = l.engine.PostTransaction(ctx, input)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// A fresh key sees the funded balance.
	_, err = l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 500, "k2"))
	assert.NoError(t, err)
}

func TestPostTransactionFrozenAccountRejected(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)

	tx, err := l.txm.Begin(ctx)
	require.NoError(t, err)
	_, err = l.acc.GetByIDsForUpdate(ctx, tx, []string{"acc-b"})
	require.NoError(t, err)
	require.NoError(t, l.acc.UpdateStatus(ctx, tx, "acc-b", domain.AccountStatusFrozen, time.Now().UTC()))
	require.NoError(t, tx.Commit(ctx))

	_, err = l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 100, "k1"))
	assert.ErrorIs(t, err, domain.ErrAccountNotActive)
}

func TestConcurrentDebitsExactlyOneSucceeds(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)
	l.openAccount(t, "acc-c", 0)

	// Two concurrent 700 debits against a 1000 balance: the schedule decides
	// the winner, but exactly one commits.
	var wg sync.WaitGroup
	results := make([]error, 2)
	targets := []string{"acc-b", "acc-c"}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = l.engine.PostTransaction(ctx, transfer("acc-a", targets[i], 700, "k"+targets[i]))
		}(i)
	}
	wg.Wait()

	var successes, rejections int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		default:
			require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			rejections++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, rejections)
	assert.Equal(t, int64(300), l.balance(t, "acc-a"))
}

func TestConcurrentSameKeySingleCommit(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)

	const n = 8
	var wg sync.WaitGroup
	receipts := make([]*usecase.Receipt, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipts[i], errs[i] = l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 400, "k1"))
		}(i)
	}
	wg.Wait()

	// Losers may see Busy if the winner is still committing when their wait
	// budget expires; everyone else gets the winner's receipt.
	var winner *usecase.Receipt
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			assert.ErrorIs(t, errs[i], domain.ErrBusy)
			continue
		}
		if winner == nil {
			winner = receipts[i]
		}
		assert.Equal(t, winner.TransactionID, receipts[i].TransactionID)
		assert.Equal(t, winner.Sequence, receipts[i].Sequence)
	}
	require.NotNil(t, winner)

	// Applied exactly once regardless of how many callers raced.
	assert.Equal(t, int64(600), l.balance(t, "acc-a"))
	assert.Equal(t, int64(400), l.balance(t, "acc-b"))
}

func TestConcurrentOppositeTransfersNoDeadlock(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 1000)

	// a->b and b->a simultaneously; sorted lock order prevents deadlock.
	const rounds = 20
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 10, "ab-"+itoa(i)))
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := l.engine.PostTransaction(ctx, transfer("acc-b", "acc-a", 10, "ba-"+itoa(i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1000), l.balance(t, "acc-a"))
	assert.Equal(t, int64(1000), l.balance(t, "acc-b"))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestLockTimeoutReturnsBusyAndFreesKey(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)
	l.engine.SetCommitTimeout(100 * time.Millisecond)

	// Park a foreign transaction on acc-a's lock.
	holder, err := l.txm.Begin(ctx)
	require.NoError(t, err)
	_, err = l.acc.GetByIDsForUpdate(ctx, holder, []string{"acc-a"})
	require.NoError(t, err)

	_, err = l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 100, "k1"))
	assert.ErrorIs(t, err, domain.ErrBusy)

	require.NoError(t, holder.Rollback(ctx))

	// Busy is transient: the reservation was released and the same key
	// succeeds once the lock frees up.
	receipt, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 100, "k1"))
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPosted, receipt.Status)
}

func TestReverseTransaction(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)

	original, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 400, "k1"))
	require.NoError(t, err)

	reversal, err := l.engine.ReverseTransaction(ctx, usecase.ReverseTransactionInput{
		TransactionID:  original.TransactionID,
		IdempotencyKey: "rev1",
	})
	require.NoError(t, err)
	assert.Greater(t, reversal.Sequence, original.Sequence)

	// Balances restored.
	assert.Equal(t, int64(1000), l.balance(t, "acc-a"))
	assert.Equal(t, int64(0), l.balance(t, "acc-b"))

	// Original is marked reversed, reversal references it.
	orig, err := l.journal.GetByID(ctx, original.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusReversed, orig.Status)

	rev, err := l.journal.GetByID(ctx, reversal.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, rev.Reverses)
	assert.Equal(t, original.TransactionID, *rev.Reverses)

	// Second reversal under a fresh key is rejected.
	_, err = l.engine.ReverseTransaction(ctx, usecase.ReverseTransactionInput{
		TransactionID:  original.TransactionID,
		IdempotencyKey: "rev2",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyReversed)

	// A reversal cannot itself be reversed.
	_, err = l.engine.ReverseTransaction(ctx, usecase.ReverseTransactionInput{
		TransactionID:  reversal.TransactionID,
		IdempotencyKey: "rev3",
	})
	assert.ErrorIs(t, err, domain.ErrNotReversible)
}

func TestReverseTransactionIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)

	original, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 400, "k1"))
	require.NoError(t, err)

	input := usecase.ReverseTransactionInput{
		TransactionID:  original.TransactionID,
		IdempotencyKey: "rev1",
	}

	first, err := l.engine.ReverseTransaction(ctx, input)
	require.NoError(t, err)
	second, err := l.engine.ReverseTransaction(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, int64(1000), l.balance(t, "acc-a"))
}

func TestReverseUnknownTransaction(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.engine.ReverseTransaction(context.Background(), usecase.ReverseTransactionInput{
		TransactionID:  "missing",
		IdempotencyKey: "rev1",
	})
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestJournalReplayMatchesLiveBalances(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 500)
	l.openAccount(t, "acc-c", 0)

	_, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 100, "k1"))
	require.NoError(t, err)
	_, err = l.engine.PostTransaction(ctx, transfer("acc-b", "acc-c", 250, "k2"))
	require.NoError(t, err)
	receipt, err := l.engine.PostTransaction(ctx, transfer("acc-c", "acc-a", 50, "k3"))
	require.NoError(t, err)
	_, err = l.engine.ReverseTransaction(ctx, usecase.ReverseTransactionInput{
		TransactionID:  receipt.TransactionID,
		IdempotencyKey: "k4",
	})
	require.NoError(t, err)

	journalUC := usecase.NewJournalUseCase(l.journal)
	replayed, err := journalUC.ReplayBalances(ctx)
	require.NoError(t, err)

	for _, id := range []string{"cash", "acc-a", "acc-b", "acc-c"} {
		assert.Equal(t, l.balance(t, id), replayed[id], "account %s", id)
	}
}

func TestPostTransactionWritesOutboxAndAudit(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)

	receipt, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 400, "k1"))
	require.NoError(t, err)

	events, err := l.outbox.GetUnpublished(ctx, 100)
	require.NoError(t, err)
	var found bool
	for _, event := range events {
		if event.AggregateID == receipt.TransactionID {
			found = true
			assert.Equal(t, domain.EventTypeTransactionPosted, event.EventType)
		}
	}
	assert.True(t, found, "expected an outbox event for the posted transaction")

	logs, err := l.audit.List(ctx, domain.AuditFilter{
		Action:     string(domain.AuditActionTransactionPost),
		ResourceID: receipt.TransactionID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}

func TestRetryAfterDedupStateLossReplaysJournaledReceipt(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)

	first, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 400, "k1"))
	require.NoError(t, err)
	assert.Equal(t, int64(600), l.balance(t, "acc-a"))

	headBefore, err := l.journal.Head(ctx)
	require.NoError(t, err)

	// A restart keeps the journal but may lose dedup state: same durable
	// repositories, empty idempotency store.
	restarted := usecase.NewLedgerEngine(
		l.txm, l.acc, l.journal, memory.NewIdempotencyStore(), l.outbox, l.audit,
		nil, mocks.NewMockIDGenerator("id2"), nil,
	)

	retry, err := restarted.PostTransaction(ctx, transfer("acc-a", "acc-b", 400, "k1"))
	require.NoError(t, err)
	assert.Equal(t, first.TransactionID, retry.TransactionID)
	assert.Equal(t, first.Sequence, retry.Sequence)

	headAfter, err := l.journal.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, headBefore, headAfter, "retry must not journal a second transaction")
	assert.Equal(t, int64(600), l.balance(t, "acc-a"))
	assert.Equal(t, int64(400), l.balance(t, "acc-b"))
}

func TestRetryAfterDedupStateLossRejectsChangedPayload(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)

	_, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 400, "k1"))
	require.NoError(t, err)

	restarted := usecase.NewLedgerEngine(
		l.txm, l.acc, l.journal, memory.NewIdempotencyStore(), l.outbox, l.audit,
		nil, mocks.NewMockIDGenerator("id2"), nil,
	)

	_, err = restarted.PostTransaction(ctx, transfer("acc-a", "acc-b", 100, "k1"))
	assert.ErrorIs(t, err, domain.ErrKeyReused)
	assert.Equal(t, int64(600), l.balance(t, "acc-a"))
}

func TestReversalRetryAfterDedupStateLossReplaysReceipt(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.openAccount(t, "acc-a", 1000)
	l.openAccount(t, "acc-b", 0)

	original, err := l.engine.PostTransaction(ctx, transfer("acc-a", "acc-b", 400, "k1"))
	require.NoError(t, err)

	input := usecase.ReverseTransactionInput{
		TransactionID:  original.TransactionID,
		IdempotencyKey: "rev1",
	}
	first, err := l.engine.ReverseTransaction(ctx, input)
	require.NoError(t, err)

	headBefore, err := l.journal.Head(ctx)
	require.NoError(t, err)

	restarted := usecase.NewLedgerEngine(
		l.txm, l.acc, l.journal, memory.NewIdempotencyStore(), l.outbox, l.audit,
		nil, mocks.NewMockIDGenerator("id3"), nil,
	)

	// The original is already marked reversed, so the retry never reaches
	// the journal append; it must still replay the reversal's receipt.
	retry, err := restarted.ReverseTransaction(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first.TransactionID, retry.TransactionID)
	assert.Equal(t, first.Sequence, retry.Sequence)

	// A different key still sees the reversed state as terminal.
	_, err = restarted.ReverseTransaction(ctx, usecase.ReverseTransactionInput{
		TransactionID:  original.TransactionID,
		IdempotencyKey: "rev2",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyReversed)

	headAfter, err := l.journal.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, headBefore, headAfter)
	assert.Equal(t, int64(1000), l.balance(t, "acc-a"))
}
