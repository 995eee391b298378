package memory

import (
	"context"
	"sync"
	"time"

	"github.com/corebank/ledger/internal/usecase"
)

type idempotencyRecord struct {
	fingerprint string
	outcome     []byte
	completed   bool
	expiresAt   time.Time
}

// IdempotencyStore implements usecase.IdempotencyStore in process memory.
// Records expire lazily on access.
type IdempotencyStore struct {
	mu      sync.Mutex
	records map[string]*idempotencyRecord
	clock   func() time.Time
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		records: make(map[string]*idempotencyRecord),
		clock:   time.Now,
	}
}

// CheckOrReserve atomically claims the key for the caller. Exactly one of
// the concurrent callers with the same key observes Fresh; the rest see
// InFlight until the winner records an outcome or releases the claim.
func (s *IdempotencyStore) CheckOrReserve(ctx context.Context, key, fingerprint string, reservationTTL time.Duration) (usecase.IdempotencyResult, error) {
	if err := ctx.Err(); err != nil {
		return usecase.IdempotencyResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if rec, ok := s.records[key]; ok && now.Before(rec.expiresAt) {
		if rec.completed {
			return usecase.IdempotencyResult{State: usecase.IdempotencyCompleted, Outcome: rec.outcome}, nil
		}
		return usecase.IdempotencyResult{State: usecase.IdempotencyInFlight}, nil
	}

	s.records[key] = &idempotencyRecord{
		fingerprint: fingerprint,
		expiresAt:   now.Add(reservationTTL),
	}
	return usecase.IdempotencyResult{State: usecase.IdempotencyFresh}, nil
}

// Get returns the current state of a key without claiming it.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (usecase.IdempotencyResult, error) {
	if err := ctx.Err(); err != nil {
		return usecase.IdempotencyResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || !s.clock().Before(rec.expiresAt) {
		return usecase.IdempotencyResult{State: usecase.IdempotencyFresh}, nil
	}
	if rec.completed {
		return usecase.IdempotencyResult{State: usecase.IdempotencyCompleted, Outcome: rec.outcome}, nil
	}
	return usecase.IdempotencyResult{State: usecase.IdempotencyInFlight}, nil
}

// Complete replaces the reservation with a terminal outcome.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, outcome []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		rec = &idempotencyRecord{}
		s.records[key] = rec
	}
	rec.outcome = outcome
	rec.completed = true
	rec.expiresAt = s.clock().Add(ttl)
	return nil
}

// Release frees a reservation after a transient failure so the caller can
// retry. Completed outcomes are never released.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[key]; ok && !rec.completed {
		delete(s.records, key)
	}
	return nil
}
