package domain

import "fmt"

// CandidateEntry is one requested movement before commit.
type CandidateEntry struct {
	AccountID string
	Amount    int64 // minor units, signed; positive = credit, negative = debit
}

// Candidate is a transaction request awaiting validation and commit.
type Candidate struct {
	Currency string
	Entries  []CandidateEntry
	Reverses *string
}

// AccountIDs returns the distinct accounts the candidate touches.
// Duplicate references are a structural error caught by ValidatePosting;
// callers that need lock ordering sort the result themselves.
func (c Candidate) AccountIDs() []string {
	seen := make(map[string]bool, len(c.Entries))
	ids := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		if !seen[e.AccountID] {
			seen[e.AccountID] = true
			ids = append(ids, e.AccountID)
		}
	}
	return ids
}

// ValidatePosting checks a candidate against double-entry and business-rule
// invariants, given a point-in-time snapshot of the referenced accounts.
// It is a pure function: no I/O, no side effects, so the same candidate and
// snapshot always produce the same answer.
//
// Checks run in order: structural, referential, solvency.
func ValidatePosting(c Candidate, accounts map[string]*Account) error {
	// Structural
	if len(c.Entries) < 2 {
		return ErrTooFewEntries
	}
	if err := ValidateCurrency(c.Currency); err != nil {
		return err
	}

	var sum int64
	seen := make(map[string]bool, len(c.Entries))
	for _, e := range c.Entries {
		if e.Amount == 0 {
			return fmt.Errorf("%w: account %s", ErrZeroEntry, e.AccountID)
		}
		if seen[e.AccountID] {
			return fmt.Errorf("%w: %s", ErrDuplicateAccount, e.AccountID)
		}
		seen[e.AccountID] = true
		sum += e.Amount
	}
	if sum != 0 {
		return fmt.Errorf("%w: sum=%d", ErrUnbalanced, sum)
	}

	// Referential
	for _, e := range c.Entries {
		acc, ok := accounts[e.AccountID]
		if !ok || acc == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, e.AccountID)
		}
		if acc.Status != AccountStatusActive {
			return fmt.Errorf("%w: %s (%s)", ErrAccountNotActive, acc.ID, acc.Status)
		}
		if acc.Currency != c.Currency {
			return fmt.Errorf("%w: account %s holds %s, transaction is %s",
				ErrCurrencyMismatch, acc.ID, acc.Currency, c.Currency)
		}
	}

	// Solvency: each debited account must stay at or above its minimum.
	for _, e := range c.Entries {
		if e.Amount >= 0 {
			continue
		}
		acc := accounts[e.AccountID]
		if acc.Balance+e.Amount < acc.MinBalance {
			return fmt.Errorf("%w: account %s balance=%d delta=%d min=%d",
				ErrInsufficientFunds, acc.ID, acc.Balance, e.Amount, acc.MinBalance)
		}
	}

	return nil
}
