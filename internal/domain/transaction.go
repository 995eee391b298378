package domain

import "time"

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusPosted   TransactionStatus = "posted"
	TransactionStatusReversed TransactionStatus = "reversed"
)

// Entry is one signed amount against one account within a transaction.
// Positive amounts are credits, negative amounts are debits. Entries are
// immutable once posted; the previous/current balance pair recorded on each
// entry makes the journal self-auditing.
type Entry struct {
	ID              string
	TransactionID   string
	AccountID       string
	Amount          int64 // minor units, signed
	Currency        string
	PreviousBalance int64
	CurrentBalance  int64
	AccountVersion  int64
	CreatedAt       time.Time
}

// Transaction is an ordered set of two or more entries whose amounts sum to
// zero. It is created pending, becomes posted atomically with its entries,
// and transitions to reversed only through a separate compensating
// transaction. It is never mutated or deleted.
type Transaction struct {
	ID             string
	Sequence       int64 // journal position, strictly increasing and gap-free
	IdempotencyKey string
	ClientRef      string
	Currency       string
	Status         TransactionStatus
	Entries        []Entry
	Reverses       *string // ID of the transaction this one compensates
	CreatedAt      time.Time
	PostedAt       time.Time
}

// IsReversal reports whether the transaction compensates another.
func (t *Transaction) IsReversal() bool {
	return t.Reverses != nil
}
