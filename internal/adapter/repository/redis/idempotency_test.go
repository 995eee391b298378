package redis

import (
	"context"
	"testing"
	"time"

	"github.com/corebank/ledger/internal/usecase"
)

func TestIdempotencyStoreReserveThenComplete(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	store := NewIdempotencyStore(client)
	ctx := context.Background()

	res, err := store.CheckOrReserve(ctx, "k1", "fp", time.Minute)
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res.State != usecase.IdempotencyFresh {
		t.Fatalf("expected Fresh, got %v", res.State)
	}

	// Second caller observes the in-flight reservation.
	res, err = store.CheckOrReserve(ctx, "k1", "fp", time.Minute)
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res.State != usecase.IdempotencyInFlight {
		t.Fatalf("expected InFlight, got %v", res.State)
	}

	outcome := []byte(`{"status":"posted","transaction_id":"txn-1"}`)
	if err := store.Complete(ctx, "k1", outcome, time.Hour); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	res, err = store.CheckOrReserve(ctx, "k1", "fp", time.Minute)
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res.State != usecase.IdempotencyCompleted {
		t.Fatalf("expected Completed, got %v", res.State)
	}
	if string(res.Outcome) != string(outcome) {
		t.Fatalf("outcome mismatch: %s", res.Outcome)
	}
}

func TestIdempotencyStoreReleaseFreesReservation(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	store := NewIdempotencyStore(client)
	ctx := context.Background()

	if _, err := store.CheckOrReserve(ctx, "k1", "fp", time.Minute); err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if err := store.Release(ctx, "k1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	res, err := store.CheckOrReserve(ctx, "k1", "fp", time.Minute)
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res.State != usecase.IdempotencyFresh {
		t.Fatalf("expected Fresh after release, got %v", res.State)
	}
}

func TestIdempotencyStoreReleaseKeepsCompletedOutcome(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	store := NewIdempotencyStore(client)
	ctx := context.Background()

	if _, err := store.CheckOrReserve(ctx, "k1", "fp", time.Minute); err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if err := store.Complete(ctx, "k1", []byte(`{"status":"posted"}`), time.Hour); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if err := store.Release(ctx, "k1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	res, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if res.State != usecase.IdempotencyCompleted {
		t.Fatalf("expected Completed to survive Release, got %v", res.State)
	}
}

func TestIdempotencyStoreReservationExpires(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	store := NewIdempotencyStore(client)
	ctx := context.Background()

	if _, err := store.CheckOrReserve(ctx, "k1", "fp", time.Minute); err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	res, err := store.CheckOrReserve(ctx, "k1", "fp", time.Minute)
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res.State != usecase.IdempotencyFresh {
		t.Fatalf("expected Fresh after expiry, got %v", res.State)
	}
}
