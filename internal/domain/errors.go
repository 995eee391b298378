package domain

import "errors"

var (
	// Validation errors. Always rejected, never retried automatically.
	ErrTooFewEntries     = errors.New("transaction requires at least two entries")
	ErrUnbalanced        = errors.New("entries do not sum to zero")
	ErrZeroEntry         = errors.New("entry amount must be non-zero")
	ErrCurrencyMismatch  = errors.New("entry currency does not match account currency")
	ErrInvalidCurrency   = errors.New("invalid currency code")
	ErrDuplicateAccount  = errors.New("account referenced by more than one entry")
	ErrInvalidTransition = errors.New("invalid account status transition")

	// Account errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountNotActive  = errors.New("account is not active")
	ErrAccountNotEmpty   = errors.New("account balance must be zero")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Transaction errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyReversed     = errors.New("transaction already reversed")
	ErrNotReversible       = errors.New("only posted transactions can be reversed")

	// Transient errors, safe to retry with fresh state.
	ErrVersionConflict = errors.New("account version conflict")
	ErrBusy            = errors.New("account locks unavailable")

	// Idempotency errors
	ErrKeyReused  = errors.New("idempotency key reused with a different payload")
	ErrKeyMissing = errors.New("idempotency key is required")
	// ErrDuplicateKey means the journal already holds a transaction for the
	// key. Raised by the schema-level uniqueness backstop when dedup state
	// was lost; the engine replays the journaled outcome instead of posting.
	ErrDuplicateKey = errors.New("idempotency key already journaled")
)
