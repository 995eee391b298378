package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corebank/ledger/internal/usecase"
)

const (
	idemStateReserved  = "reserved"
	idemStateCompleted = "completed"
)

// IdempotencyStore implements usecase.IdempotencyStore on the same database
// as the ledger, so dedup state is exactly as durable as the journal it
// guards. The insert-or-take-over below is atomic: of any number of
// concurrent callers with the same key, exactly one observes Fresh.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// CheckOrReserve atomically claims the key or reports its current state.
// An expired row counts as absent and is taken over in the same statement.
func (s *IdempotencyStore) CheckOrReserve(ctx context.Context, key, fingerprint string, reservationTTL time.Duration) (usecase.IdempotencyResult, error) {
	var state string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO idempotency_keys (key, state, fingerprint, outcome, expires_at)
		VALUES ($1, $2, $3, NULL, $4)
		ON CONFLICT (key) DO UPDATE
		SET state = EXCLUDED.state,
		    fingerprint = EXCLUDED.fingerprint,
		    outcome = NULL,
		    expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at < now()
		RETURNING state`,
		key, idemStateReserved, fingerprint, time.Now().UTC().Add(reservationTTL),
	).Scan(&state)
	if err == nil {
		return usecase.IdempotencyResult{State: usecase.IdempotencyFresh}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return usecase.IdempotencyResult{}, err
	}

	// A live row exists; report its state.
	res, err := s.Get(ctx, key)
	if err != nil {
		return usecase.IdempotencyResult{}, err
	}
	if res.State == usecase.IdempotencyFresh {
		// The holder released between our insert and the read; the
		// caller retries.
		return usecase.IdempotencyResult{State: usecase.IdempotencyInFlight}, nil
	}
	return res, nil
}

// Get reports the state of a key without claiming it.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (usecase.IdempotencyResult, error) {
	var (
		state   string
		outcome []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT state, outcome
		FROM idempotency_keys
		WHERE key = $1 AND expires_at >= now()`, key,
	).Scan(&state, &outcome)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return usecase.IdempotencyResult{State: usecase.IdempotencyFresh}, nil
		}
		return usecase.IdempotencyResult{}, err
	}

	if state == idemStateCompleted {
		return usecase.IdempotencyResult{State: usecase.IdempotencyCompleted, Outcome: outcome}, nil
	}
	return usecase.IdempotencyResult{State: usecase.IdempotencyInFlight}, nil
}

// Complete replaces the reservation with a terminal outcome.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, outcome []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE idempotency_keys
		SET state = $2, outcome = $3, expires_at = $4
		WHERE key = $1`,
		key, idemStateCompleted, outcome, time.Now().UTC().Add(ttl),
	)
	return err
}

// Release frees a reservation after a transient failure. The state guard
// means a Release racing a Complete can never drop a recorded outcome.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM idempotency_keys
		WHERE key = $1 AND state = $2`,
		key, idemStateReserved,
	)
	return err
}
