package domain

import "time"

// Event types
const (
	EventTypeTransactionPosted   = "transaction.posted"
	EventTypeTransactionReversed = "transaction.reversed"
	EventTypeAccountOpened       = "account.opened"
	EventTypeAccountFrozen       = "account.frozen"
	EventTypeAccountUnfrozen     = "account.unfrozen"
	EventTypeAccountClosed       = "account.closed"
)

// Aggregate types
const (
	AggregateTypeTransaction = "transaction"
	AggregateTypeAccount     = "account"
)

// OutboxEvent represents an event recorded in the same storage transaction
// as the state change it describes, to be published asynchronously.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TransactionPostedEvent payload
type TransactionPostedEvent struct {
	TransactionID string `json:"transaction_id"`
	Sequence      int64  `json:"sequence"`
	Currency      string `json:"currency"`
	EntryCount    int    `json:"entry_count"`
	PostedAt      string `json:"posted_at"`
}

// TransactionReversedEvent payload
type TransactionReversedEvent struct {
	ReversalID string `json:"reversal_id"`
	OriginalID string `json:"original_id"`
	Currency   string `json:"currency"`
}

// AccountLifecycleEvent payload for account.opened/frozen/closed.
type AccountLifecycleEvent struct {
	AccountID string `json:"account_id"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}
