package domain

import "time"

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusFrozen AccountStatus = "frozen"
	AccountStatusClosed AccountStatus = "closed"
)

// validTransitions is the source of truth for the account state machine.
// Closed is terminal.
var validTransitions = map[AccountStatus][]AccountStatus{
	AccountStatusActive: {AccountStatusFrozen, AccountStatusClosed},
	AccountStatusFrozen: {AccountStatusActive, AccountStatusClosed},
	AccountStatusClosed: {},
}

// Account holds an identity, a currency and a materialized balance.
// The balance is a projection of journal entries, never an independent
// primary value: at all times it equals the signed sum of posted entries
// referencing the account, in journal order.
type Account struct {
	ID         string
	Name       string
	Currency   string
	Status     AccountStatus
	Balance    int64 // minor units
	MinBalance int64 // 0 for standard accounts, negative for credit lines
	Version    int64 // incremented on every applied transaction touching the account
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CanTransitionTo reports whether the status change is allowed.
func (a *Account) CanTransitionTo(next AccountStatus) bool {
	for _, s := range validTransitions[a.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// ValidateDelta checks whether applying delta keeps the account solvent.
// Credits are always allowed on an active account.
func (a *Account) ValidateDelta(delta int64) error {
	if a.Status != AccountStatusActive {
		return ErrAccountNotActive
	}
	if a.Balance+delta < a.MinBalance {
		return ErrInsufficientFunds
	}
	return nil
}
