package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/infrastructure/metrics"
)

// LedgerEngine orchestrates validation, per-account locking, atomic
// application across the journal and account balances, and reversal.
//
// A submitted request moves received -> validating -> locking -> committing
// and terminates in exactly posted or rejected; the outcome is recorded in
// the idempotency store before the response is returned.
type LedgerEngine struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	journalRepo JournalRepository
	idempotency IdempotencyStore
	outboxRepo  OutboxRepository
	auditRepo   AuditRepository
	retrier     Retrier
	idGen       IDGenerator
	metrics     *metrics.Metrics

	commitTimeout time.Duration
}

// NewLedgerEngine creates a new LedgerEngine. auditRepo, retrier and metrics
// may be nil.
func NewLedgerEngine(
	txManager TransactionManager,
	accountRepo AccountRepository,
	journalRepo JournalRepository,
	idempotency IdempotencyStore,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	retrier Retrier,
	idGen IDGenerator,
	m *metrics.Metrics,
) *LedgerEngine {
	return &LedgerEngine{
		txManager:     txManager,
		accountRepo:   accountRepo,
		journalRepo:   journalRepo,
		idempotency:   idempotency,
		outboxRepo:    outboxRepo,
		auditRepo:     auditRepo,
		retrier:       retrier,
		idGen:         idGen,
		metrics:       m,
		commitTimeout: DefaultCommitTimeout,
	}
}

// SetCommitTimeout overrides the lock acquisition and commit budget.
func (e *LedgerEngine) SetCommitTimeout(d time.Duration) {
	if d > 0 {
		e.commitTimeout = d
	}
}

// Receipt is the caller-facing result of a posted transaction.
type Receipt struct {
	TransactionID string
	Sequence      int64
	Status        domain.TransactionStatus
	PostedAt      time.Time
}

// PostTransactionInput represents a transaction request.
type PostTransactionInput struct {
	Entries        []domain.CandidateEntry
	Currency       string
	IdempotencyKey string
	ClientRef      string
}

// ReverseTransactionInput represents a reversal request.
type ReverseTransactionInput struct {
	TransactionID  string
	IdempotencyKey string
	ClientRef      string
}

// PostTransaction validates and atomically applies a candidate transaction.
// Submitting the same key twice, concurrently or sequentially, yields exactly
// one posted transaction and identical receipts.
func (e *LedgerEngine) PostTransaction(ctx context.Context, input PostTransactionInput) (*Receipt, error) {
	if input.IdempotencyKey == "" {
		return nil, domain.ErrKeyMissing
	}

	candidate := domain.Candidate{
		Currency: input.Currency,
		Entries:  input.Entries,
	}

	fp := fingerprintPost(candidate)

	return e.run(ctx, input.IdempotencyKey, input.ClientRef, fp, func() (domain.Candidate, error) {
		return candidate, nil
	})
}

// ReverseTransaction posts a new compensating transaction with every entry
// amount negated and a reference to the original. A transaction can be
// reversed at most once, and a reversal itself cannot be reversed.
func (e *LedgerEngine) ReverseTransaction(ctx context.Context, input ReverseTransactionInput) (*Receipt, error) {
	if input.IdempotencyKey == "" {
		return nil, domain.ErrKeyMissing
	}

	fp := fingerprintReverse(input.TransactionID)

	return e.run(ctx, input.IdempotencyKey, input.ClientRef, fp, func() (domain.Candidate, error) {
		original, err := e.journalRepo.GetByID(ctx, input.TransactionID)
		if err != nil {
			return domain.Candidate{}, err
		}

		if original.IsReversal() {
			return domain.Candidate{}, domain.ErrNotReversible
		}

		switch original.Status {
		case domain.TransactionStatusPosted:
		case domain.TransactionStatusReversed:
			return domain.Candidate{}, domain.ErrAlreadyReversed
		default:
			return domain.Candidate{}, domain.ErrNotReversible
		}

		entries := make([]domain.CandidateEntry, len(original.Entries))
		for i, ent := range original.Entries {
			entries[i] = domain.CandidateEntry{AccountID: ent.AccountID, Amount: -ent.Amount}
		}

		return domain.Candidate{
			Currency: original.Currency,
			Entries:  entries,
			Reverses: &original.ID,
		}, nil
	})
}

// run drives the commit protocol around a lazily built candidate. The
// candidate builder runs after the idempotency reservation so its rejections
// are cached like any other.
func (e *LedgerEngine) run(ctx context.Context, key, clientRef, fp string, build func() (domain.Candidate, error)) (*Receipt, error) {
	// Step 1: reserve the key, or return the cached outcome.
	res, err := e.idempotency.CheckOrReserve(ctx, key, fp, ReservationTTL)
	if err != nil {
		return nil, fmt.Errorf("idempotency check: %w", err)
	}

	switch res.State {
	case IdempotencyCompleted:
		return decodeOutcome(res.Outcome, fp)
	case IdempotencyInFlight:
		return e.awaitOutcome(ctx, key, fp)
	}

	receipt, err := func() (*Receipt, error) {
		candidate, err := build()
		if err != nil {
			return nil, err
		}
		return e.commit(ctx, key, clientRef, candidate)
	}()

	switch {
	case err == nil:
		e.recordOutcome(ctx, key, outcome{
			Fingerprint:   fp,
			Status:        outcomePosted,
			TransactionID: receipt.TransactionID,
			Sequence:      receipt.Sequence,
			PostedAt:      receipt.PostedAt,
		})
		if e.metrics != nil {
			e.metrics.TransactionsPosted.Inc()
		}
		return receipt, nil

	case isTerminalRejection(err):
		// An already-reversed rejection may be a lost-dedup retry of
		// the very reversal that won: if this key journaled the
		// reversal, replay its receipt instead of rejecting.
		if errors.Is(err, domain.ErrAlreadyReversed) {
			if receipt, ok := e.lookupJournaled(ctx, key, fp); ok {
				return receipt, nil
			}
		}

		// Rejections are cached too: a retried invalid request fails
		// identically for the lifetime of the key.
		e.recordOutcome(ctx, key, outcome{
			Fingerprint: fp,
			Status:      outcomeRejected,
			Reason:      reasonForError(err),
		})
		if e.metrics != nil {
			e.metrics.TransactionsRejected.WithLabelValues(reasonForError(err)).Inc()
		}
		return nil, err

	case errors.Is(err, domain.ErrDuplicateKey):
		// The journal already holds this key: dedup state was lost
		// after a successful commit, for example across a restart.
		// Replay the journaled outcome instead of posting twice.
		return e.replayJournaled(ctx, key, fp)

	default:
		// Transient failure (Busy, version conflict, journal write
		// failure): nothing was applied, free the key so the caller can
		// retry the whole request.
		if relErr := e.idempotency.Release(ctx, key); relErr != nil {
			slog.Error("failed to release idempotency reservation",
				"key", key, "error", relErr)
		}
		return nil, err
	}
}

// commit executes steps 2-6 of the protocol. On any error after lock
// acquisition the storage transaction rolls back, leaving the system exactly
// as if the request never happened.
func (e *LedgerEngine) commit(ctx context.Context, key, clientRef string, candidate domain.Candidate) (*Receipt, error) {
	ids := candidate.AccountIDs()

	// Step 2: lock-free snapshot of the referenced accounts.
	snapshot, err := e.accountRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Step 3: validate against the snapshot.
	if err := domain.ValidatePosting(candidate, accountMap(snapshot)); err != nil {
		return nil, err
	}

	// Deterministic total order over account IDs; every transaction
	// acquires its locks in this order regardless of arrival order.
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var receipt *Receipt

	op := func() error {
		commitCtx, cancel := context.WithTimeout(ctx, e.commitTimeout)
		defer cancel()

		tx, err := e.txManager.Begin(commitCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(commitCtx) }()

		// Step 4: exclusive per-account locks in sorted order.
		locked, err := e.accountRepo.GetByIDsForUpdate(commitCtx, tx, sorted)
		if err != nil {
			return err
		}
		if len(locked) != len(sorted) {
			return domain.ErrAccountNotFound
		}
		accounts := accountMap(locked)

		// Step 5: re-validate with balances read under lock. Guards
		// against staleness between snapshot and lock acquisition.
		if err := domain.ValidatePosting(candidate, accounts); err != nil {
			return err
		}

		// A reversal flips the original to reversed inside the same
		// storage transaction; losing a race to another reversal
		// surfaces here as ErrAlreadyReversed.
		if candidate.Reverses != nil {
			if err := e.journalRepo.MarkReversed(commitCtx, tx, *candidate.Reverses); err != nil {
				return err
			}
		}

		now := time.Now().UTC()

		txn := &domain.Transaction{
			ID:             e.idGen.Generate(),
			IdempotencyKey: key,
			ClientRef:      clientRef,
			Currency:       candidate.Currency,
			Status:         domain.TransactionStatusPosted,
			Reverses:       candidate.Reverses,
			CreatedAt:      now,
			PostedAt:       now,
		}

		for _, ce := range candidate.Entries {
			acc := accounts[ce.AccountID]
			txn.Entries = append(txn.Entries, domain.Entry{
				ID:              e.idGen.Generate(),
				TransactionID:   txn.ID,
				AccountID:       acc.ID,
				Amount:          ce.Amount,
				Currency:        candidate.Currency,
				PreviousBalance: acc.Balance,
				CurrentBalance:  acc.Balance + ce.Amount,
				AccountVersion:  acc.Version + 1,
				CreatedAt:       now,
			})
		}

		// Step 6: journal append, then balance deltas. Both live in one
		// storage transaction: they commit together or not at all.
		seq, err := e.journalRepo.Append(commitCtx, tx, txn)
		if err != nil {
			return fmt.Errorf("journal append: %w", err)
		}
		txn.Sequence = seq

		for _, ent := range txn.Entries {
			acc := accounts[ent.AccountID]
			if _, err := e.accountRepo.ApplyDelta(commitCtx, tx, acc.ID, ent.Amount, acc.Version, now); err != nil {
				// Cannot happen while the lock is held. The whole
				// attempt aborts; the retrier repeats it with fresh
				// locks and versions.
				return fmt.Errorf("apply delta to account %s: %w", acc.ID, err)
			}
		}

		if err := e.writeOutboxEvent(commitCtx, tx, txn); err != nil {
			return err
		}

		if e.auditRepo != nil {
			action := domain.AuditActionTransactionPost
			if txn.IsReversal() {
				action = domain.AuditActionTransactionReverse
			}
			log := &domain.AuditLog{
				ID:           e.idGen.Generate(),
				Actor:        clientRef,
				Action:       string(action),
				ResourceType: "transaction",
				ResourceID:   txn.ID,
				AfterState:   domain.MarshalState(txn),
				Status:       string(domain.AuditStatusSuccess),
				CreatedAt:    now,
			}
			if err := e.auditRepo.CreateTx(commitCtx, tx, log); err != nil {
				return err
			}
		}

		if err := tx.Commit(commitCtx); err != nil {
			return fmt.Errorf("commit: %w", err)
		}

		receipt = &Receipt{
			TransactionID: txn.ID,
			Sequence:      seq,
			Status:        domain.TransactionStatusPosted,
			PostedAt:      now,
		}

		return nil
	}

	if e.retrier != nil {
		err = e.retrier.Retry(ctx, op)
	} else {
		err = op()
	}
	if err != nil {
		return nil, err
	}

	return receipt, nil
}

func (e *LedgerEngine) writeOutboxEvent(ctx context.Context, tx Transaction, txn *domain.Transaction) error {
	if e.outboxRepo == nil {
		return nil
	}

	eventType := domain.EventTypeTransactionPosted
	payload := map[string]any{
		"transaction_id": txn.ID,
		"sequence":       txn.Sequence,
		"currency":       txn.Currency,
		"entry_count":    len(txn.Entries),
		"posted_at":      txn.PostedAt.Format(time.RFC3339Nano),
	}

	if txn.IsReversal() {
		eventType = domain.EventTypeTransactionReversed
		payload["reverses"] = *txn.Reverses
	}

	event := &domain.OutboxEvent{
		ID:            e.idGen.Generate(),
		AggregateID:   txn.ID,
		AggregateType: domain.AggregateTypeTransaction,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     txn.PostedAt,
		Published:     false,
	}

	return e.outboxRepo.Create(ctx, tx, event)
}

// replayJournaled rebuilds the receipt for a key the journal already holds.
// The stored transaction is the authority: its recomputed fingerprint must
// match the caller's, otherwise the key was reused for a different payload.
func (e *LedgerEngine) replayJournaled(ctx context.Context, key, fp string) (*Receipt, error) {
	txn, err := e.journalRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("replay journaled key: %w", err)
	}

	if fingerprintTransaction(txn) != fp {
		if relErr := e.idempotency.Release(ctx, key); relErr != nil {
			slog.Error("failed to release idempotency reservation",
				"key", key, "error", relErr)
		}
		return nil, domain.ErrKeyReused
	}

	return e.receiptFromJournaled(ctx, key, fp, txn), nil
}

// lookupJournaled reports whether the journal holds a transaction posted
// under key with the caller's fingerprint, and replays its receipt if so.
func (e *LedgerEngine) lookupJournaled(ctx context.Context, key, fp string) (*Receipt, bool) {
	txn, err := e.journalRepo.GetByIdempotencyKey(ctx, key)
	if err != nil || fingerprintTransaction(txn) != fp {
		return nil, false
	}
	return e.receiptFromJournaled(ctx, key, fp, txn), true
}

func (e *LedgerEngine) receiptFromJournaled(ctx context.Context, key, fp string, txn *domain.Transaction) *Receipt {
	e.recordOutcome(ctx, key, outcome{
		Fingerprint:   fp,
		Status:        outcomePosted,
		TransactionID: txn.ID,
		Sequence:      txn.Sequence,
		PostedAt:      txn.PostedAt,
	})

	return &Receipt{
		TransactionID: txn.ID,
		Sequence:      txn.Sequence,
		Status:        domain.TransactionStatusPosted,
		PostedAt:      txn.PostedAt,
	}
}

// fingerprintTransaction recomputes the request fingerprint a journaled
// transaction was posted under.
func fingerprintTransaction(txn *domain.Transaction) string {
	if txn.IsReversal() {
		return fingerprintReverse(*txn.Reverses)
	}

	entries := make([]domain.CandidateEntry, len(txn.Entries))
	for i, ent := range txn.Entries {
		entries[i] = domain.CandidateEntry{AccountID: ent.AccountID, Amount: ent.Amount}
	}
	return fingerprintPost(domain.Candidate{Currency: txn.Currency, Entries: entries})
}

// awaitOutcome polls until the in-flight winner records an outcome, then
// returns the identical result. If the winner released its reservation
// instead, or the wait budget runs out, the caller gets Busy and may retry.
func (e *LedgerEngine) awaitOutcome(ctx context.Context, key, fp string) (*Receipt, error) {
	var (
		receipt     *Receipt
		errInFlight = errors.New("outcome still in flight")
	)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = e.commitTimeout

	err := backoff.Retry(func() error {
		res, err := e.idempotency.Get(ctx, key)
		if err != nil {
			return backoff.Permanent(err)
		}

		switch res.State {
		case IdempotencyCompleted:
			r, derr := decodeOutcome(res.Outcome, fp)
			if derr != nil {
				return backoff.Permanent(derr)
			}
			receipt = r
			return nil
		case IdempotencyFresh:
			return backoff.Permanent(domain.ErrBusy)
		default:
			return errInFlight
		}
	}, backoff.WithContext(b, ctx))

	if errors.Is(err, errInFlight) {
		return nil, domain.ErrBusy
	}
	if err != nil {
		return nil, err
	}

	return receipt, nil
}

func (e *LedgerEngine) recordOutcome(ctx context.Context, key string, o outcome) {
	data, err := json.Marshal(o)
	if err != nil {
		slog.Error("failed to encode idempotency outcome", "key", key, "error", err)
		return
	}

	// The journal write already committed; a failure here only narrows the
	// idempotency window, it cannot lose money. Logged loudly instead of
	// failing the request.
	if err := e.idempotency.Complete(ctx, key, data, IdempotencyTTL); err != nil {
		slog.Error("failed to record idempotency outcome", "key", key, "error", err)
	}
}

const (
	outcomePosted   = "posted"
	outcomeRejected = "rejected"
)

// outcome is the durable idempotency record for a terminal request state.
type outcome struct {
	Fingerprint   string    `json:"fingerprint"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Sequence      int64     `json:"sequence,omitempty"`
	PostedAt      time.Time `json:"posted_at,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

func decodeOutcome(data []byte, fp string) (*Receipt, error) {
	var o outcome
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decode idempotency outcome: %w", err)
	}

	if o.Fingerprint != fp {
		return nil, domain.ErrKeyReused
	}

	if o.Status == outcomePosted {
		return &Receipt{
			TransactionID: o.TransactionID,
			Sequence:      o.Sequence,
			Status:        domain.TransactionStatusPosted,
			PostedAt:      o.PostedAt,
		}, nil
	}

	return nil, errorForReason(o.Reason)
}

// rejectionReasons maps stable reason codes to the sentinel errors they
// reconstruct on replay. Only terminal rejections appear here; transient
// errors are never cached.
var rejectionReasons = []struct {
	code string
	err  error
}{
	{"too_few_entries", domain.ErrTooFewEntries},
	{"unbalanced", domain.ErrUnbalanced},
	{"zero_entry", domain.ErrZeroEntry},
	{"currency_mismatch", domain.ErrCurrencyMismatch},
	{"invalid_currency", domain.ErrInvalidCurrency},
	{"duplicate_account", domain.ErrDuplicateAccount},
	{"account_not_found", domain.ErrAccountNotFound},
	{"account_not_active", domain.ErrAccountNotActive},
	{"insufficient_funds", domain.ErrInsufficientFunds},
	{"transaction_not_found", domain.ErrTransactionNotFound},
	{"already_reversed", domain.ErrAlreadyReversed},
	{"not_reversible", domain.ErrNotReversible},
}

func isTerminalRejection(err error) bool {
	for _, r := range rejectionReasons {
		if errors.Is(err, r.err) {
			return true
		}
	}
	return false
}

func reasonForError(err error) string {
	for _, r := range rejectionReasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return "rejected"
}

func errorForReason(code string) error {
	for _, r := range rejectionReasons {
		if r.code == code {
			return r.err
		}
	}
	return fmt.Errorf("transaction rejected: %s", code)
}

func accountMap(accounts []*domain.Account) map[string]*domain.Account {
	m := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		m[a.ID] = a
	}
	return m
}

// fingerprintPost canonicalizes a posting request so logically identical
// retries hash identically regardless of entry order.
func fingerprintPost(c domain.Candidate) string {
	entries := append([]domain.CandidateEntry(nil), c.Entries...)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AccountID != entries[j].AccountID {
			return entries[i].AccountID < entries[j].AccountID
		}
		return entries[i].Amount < entries[j].Amount
	})

	h := sha256.New()
	fmt.Fprintf(h, "post\x00%s", c.Currency)
	for _, e := range entries {
		fmt.Fprintf(h, "\x00%s\x00%d", e.AccountID, e.Amount)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func fingerprintReverse(transactionID string) string {
	h := sha256.New()
	fmt.Fprintf(h, "reverse\x00%s", transactionID)

	return hex.EncodeToString(h.Sum(nil))
}
