// Package memory implements the repository interfaces against in-process
// state. It backs single-node deployments and hermetic tests, and mirrors
// the transactional guarantees of the postgres adapter: per-account
// exclusive locks, buffered writes applied atomically on commit, and a
// gap-free journal sequence.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// Store holds all in-process ledger state. Repositories created from the
// same Store share it; a Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	// seqMu serializes journal appends from sequence assignment through
	// commit, so a rolled-back transaction never leaves a gap.
	seqMu   sync.Mutex
	journal []*domain.Transaction
	byID    map[string]*domain.Transaction
	byKey   map[string]*domain.Transaction

	outbox []*domain.OutboxEvent
	audit  []*domain.AuditLog

	lockMu sync.Mutex
	locks  map[string]chan struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*domain.Account),
		byID:     make(map[string]*domain.Transaction),
		byKey:    make(map[string]*domain.Transaction),
		locks:    make(map[string]chan struct{}),
	}
}

func (s *Store) lockFor(id string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

// acquireAccountLock blocks until the account's exclusive lock is free or
// the context expires. Expiry maps to ErrBusy: the caller's transaction
// aborts and the request is retryable.
func (s *Store) acquireAccountLock(ctx context.Context, id string) (func(), error) {
	ch := s.lockFor(id)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: account %s", domain.ErrBusy, id)
	}
}

// Tx buffers mutations and applies them under the store lock on Commit.
// Until then, committed state stays observable to readers unchanged.
type Tx struct {
	store *Store

	mu       sync.Mutex
	done     bool
	apply    []func()
	releases []func()
	seqHeld  bool
}

func (t *Tx) buffer(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.apply = append(t.apply, fn)
}

func (t *Tx) register(release func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releases = append(t.releases, release)
}

// Commit applies every buffered mutation atomically, then releases all
// held locks.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true

	t.store.mu.Lock()
	for _, fn := range t.apply {
		fn()
	}
	t.store.mu.Unlock()

	t.finish()
	return nil
}

// Rollback discards buffered mutations and releases all held locks. It is
// a no-op after Commit, so it is safe to defer unconditionally.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true

	t.apply = nil
	t.finish()
	return nil
}

func (t *Tx) finish() {
	if t.seqHeld {
		t.store.seqMu.Unlock()
		t.seqHeld = false
	}
	for _, release := range t.releases {
		release()
	}
	t.releases = nil
}

// TxManager creates memory transactions bound to a Store.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new buffered transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: m.store}, nil
}

// asTx unwraps a usecase.Transaction created by this package.
func asTx(tx usecase.Transaction) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("memory: foreign transaction type %T", tx)
	}
	return mt, nil
}
