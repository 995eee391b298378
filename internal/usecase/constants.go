package usecase

import "time"

const (
	// DefaultCommitTimeout bounds the locked section of the commit
	// protocol. Once locks are held the protocol runs to completion; the
	// timeout applies to acquiring them.
	DefaultCommitTimeout = 10 * time.Second

	// ReservationTTL is how long an idempotency reservation survives
	// without an outcome. Sized above any realistic commit duration so a
	// crashed writer cannot park a key forever.
	ReservationTTL = 30 * time.Second

	// IdempotencyTTL is how long completed outcomes are retained. Must
	// exceed the caller's maximum retry interval.
	IdempotencyTTL = 24 * time.Hour

	// DefaultStreamPageSize is the journal page size used when streaming.
	DefaultStreamPageSize = 200
)
