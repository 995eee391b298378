package dto

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// OpenAccountRequest represents a request to open an account.
// MinBalance is expressed in major units; zero for standard accounts,
// negative for credit lines.
type OpenAccountRequest struct {
	Name       string          `json:"name"`
	Currency   string          `json:"currency"`
	MinBalance decimal.Decimal `json:"min_balance"`
}

// ToUseCaseInput converts to use case input, translating the decimal
// amount into integer minor units.
func (r *OpenAccountRequest) ToUseCaseInput() (usecase.OpenAccountInput, error) {
	minBalance, err := toMinorUnits(r.MinBalance, r.Currency)
	if err != nil {
		return usecase.OpenAccountInput{}, err
	}
	return usecase.OpenAccountInput{
		Name:       r.Name,
		Currency:   r.Currency,
		MinBalance: minBalance,
	}, nil
}

// PostTransactionRequest represents a request to post a transaction.
type PostTransactionRequest struct {
	Currency  string             `json:"currency"`
	ClientRef string             `json:"client_ref,omitempty"`
	Entries   []TransactionEntry `json:"entries"`
}

// TransactionEntry is one movement within a posting request. Amount is in
// major units and signed: positive credits the account, negative debits it.
type TransactionEntry struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// ToEngineInput converts to engine input, translating decimal amounts into
// integer minor units.
func (r *PostTransactionRequest) ToEngineInput(idempotencyKey string) (usecase.PostTransactionInput, error) {
	// Normalized once here so "usd" and "USD" retries are the same
	// request, fingerprint included.
	currency := strings.ToUpper(strings.TrimSpace(r.Currency))

	entries := make([]domain.CandidateEntry, len(r.Entries))
	for i, e := range r.Entries {
		amount, err := toMinorUnits(e.Amount, currency)
		if err != nil {
			return usecase.PostTransactionInput{}, err
		}
		entries[i] = domain.CandidateEntry{
			AccountID: e.AccountID,
			Amount:    amount,
		}
	}
	return usecase.PostTransactionInput{
		Entries:        entries,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
		ClientRef:      r.ClientRef,
	}, nil
}

// ReverseTransactionRequest represents a request to reverse a transaction.
type ReverseTransactionRequest struct {
	ClientRef string `json:"client_ref,omitempty"`
}

// toMinorUnits converts a decimal major-unit amount into integer minor
// units for the given currency. Amounts with sub-minor-unit precision are
// rejected rather than rounded.
func toMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	exp, err := domain.CurrencyExponent(currency)
	if err != nil {
		return 0, err
	}
	shifted := amount.Shift(exp)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %s has more precision than %s allows", amount, currency)
	}
	return shifted.IntPart(), nil
}
