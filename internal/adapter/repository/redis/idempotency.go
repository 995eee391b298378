package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/corebank/ledger/internal/usecase"
)

const (
	stateReserved  = "reserved"
	stateCompleted = "completed"
)

// releaseScript deletes the key only while it still holds a reservation,
// so a Release racing a Complete can never drop a recorded outcome.
var releaseScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v and string.find(v, '"state":"reserved"', 1, true) then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// envelope is the stored record: a reservation carries the fingerprint, a
// completed record carries the outcome.
type envelope struct {
	State       string          `json:"state"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Outcome     json.RawMessage `json:"outcome,omitempty"`
}

// IdempotencyStore implements usecase.IdempotencyStore using Redis. SETNX
// makes the reservation atomic: of any number of concurrent callers with
// the same key, exactly one observes Fresh.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: "idempotency:",
	}
}

// CheckOrReserve atomically claims the key or reports its current state.
func (s *IdempotencyStore) CheckOrReserve(ctx context.Context, key, fingerprint string, reservationTTL time.Duration) (usecase.IdempotencyResult, error) {
	fullKey := s.prefix + key

	reservation, err := json.Marshal(envelope{State: stateReserved, Fingerprint: fingerprint})
	if err != nil {
		return usecase.IdempotencyResult{}, err
	}

	set, err := s.client.SetNX(ctx, fullKey, reservation, reservationTTL).Result()
	if err != nil {
		return usecase.IdempotencyResult{}, err
	}
	if set {
		return usecase.IdempotencyResult{State: usecase.IdempotencyFresh}, nil
	}

	res, err := s.Get(ctx, key)
	if err != nil {
		return usecase.IdempotencyResult{}, err
	}
	if res.State == usecase.IdempotencyFresh {
		// The holder released between our SETNX and GET; the caller retries.
		return usecase.IdempotencyResult{State: usecase.IdempotencyInFlight}, nil
	}
	return res, nil
}

// Get reports the state of a key without claiming it.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (usecase.IdempotencyResult, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return usecase.IdempotencyResult{State: usecase.IdempotencyFresh}, nil
		}
		return usecase.IdempotencyResult{}, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return usecase.IdempotencyResult{}, err
	}

	if env.State == stateCompleted {
		return usecase.IdempotencyResult{State: usecase.IdempotencyCompleted, Outcome: env.Outcome}, nil
	}
	return usecase.IdempotencyResult{State: usecase.IdempotencyInFlight}, nil
}

// Complete replaces the reservation with a terminal outcome.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, outcome []byte, ttl time.Duration) error {
	record, err := json.Marshal(envelope{State: stateCompleted, Outcome: outcome})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, record, ttl).Err()
}

// Release frees a reservation after a transient failure. A completed
// outcome is left untouched.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, s.client, []string{s.prefix + key}).Err()
}
