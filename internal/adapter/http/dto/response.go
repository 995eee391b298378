package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// AccountResponse represents an account in API responses. Balances are
// rendered in major units.
type AccountResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status"`
	Balance    decimal.Decimal `json:"balance"`
	MinBalance decimal.Decimal `json:"min_balance"`
	Version    int64           `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// AccountFromDomain converts a domain account to a response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:         a.ID,
		Name:       a.Name,
		Currency:   a.Currency,
		Status:     string(a.Status),
		Balance:    fromMinorUnits(a.Balance, a.Currency),
		MinBalance: fromMinorUnits(a.MinBalance, a.Currency),
		Version:    a.Version,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse wraps a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// ReceiptResponse represents the outcome of a posting or reversal.
type ReceiptResponse struct {
	TransactionID string    `json:"transaction_id"`
	Sequence      int64     `json:"sequence"`
	Status        string    `json:"status"`
	PostedAt      time.Time `json:"posted_at"`
}

// ReceiptFromUseCase converts an engine receipt to a response.
func ReceiptFromUseCase(r *usecase.Receipt) *ReceiptResponse {
	return &ReceiptResponse{
		TransactionID: r.TransactionID,
		Sequence:      r.Sequence,
		Status:        string(r.Status),
		PostedAt:      r.PostedAt,
	}
}

// TransactionResponse represents a journal transaction in API responses.
type TransactionResponse struct {
	ID             string           `json:"id"`
	Sequence       int64            `json:"sequence"`
	IdempotencyKey string           `json:"idempotency_key"`
	ClientRef      string           `json:"client_ref,omitempty"`
	Currency       string           `json:"currency"`
	Status         string           `json:"status"`
	Reverses       *string          `json:"reverses,omitempty"`
	Entries        []*EntryResponse `json:"entries"`
	CreatedAt      time.Time        `json:"created_at"`
	PostedAt       time.Time        `json:"posted_at"`
}

// TransactionFromDomain converts a domain transaction to a response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	entries := make([]*EntryResponse, len(t.Entries))
	for i := range t.Entries {
		entries[i] = EntryFromDomain(&t.Entries[i])
	}
	return &TransactionResponse{
		ID:             t.ID,
		Sequence:       t.Sequence,
		IdempotencyKey: t.IdempotencyKey,
		ClientRef:      t.ClientRef,
		Currency:       t.Currency,
		Status:         string(t.Status),
		Reverses:       t.Reverses,
		Entries:        entries,
		CreatedAt:      t.CreatedAt,
		PostedAt:       t.PostedAt,
	}
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txns []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txns))
	for i, t := range txns {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// EntryResponse represents a journal entry in API responses.
type EntryResponse struct {
	ID              string          `json:"id"`
	TransactionID   string          `json:"transaction_id"`
	AccountID       string          `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
	AccountVersion  int64           `json:"account_version"`
	CreatedAt       time.Time       `json:"created_at"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e *domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:              e.ID,
		TransactionID:   e.TransactionID,
		AccountID:       e.AccountID,
		Amount:          fromMinorUnits(e.Amount, e.Currency),
		Currency:        e.Currency,
		PreviousBalance: fromMinorUnits(e.PreviousBalance, e.Currency),
		CurrentBalance:  fromMinorUnits(e.CurrentBalance, e.Currency),
		AccountVersion:  e.AccountVersion,
		CreatedAt:       e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.Entry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// JournalPageResponse wraps a range read of the journal.
type JournalPageResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
	Head         int64                  `json:"head"`
}

// ReconciliationResultResponse reports replay-versus-recorded state for
// one account. Amounts are in minor units: a reconciliation report is an
// operator surface and exact integer arithmetic is what matters there.
type ReconciliationResultResponse struct {
	AccountID       string    `json:"account_id"`
	RecordedBalance int64     `json:"recorded_balance"`
	ReplayedBalance int64     `json:"replayed_balance"`
	Difference      int64     `json:"difference"`
	IsReconciled    bool      `json:"is_reconciled"`
	LastChecked     time.Time `json:"last_checked"`
}

// ReconciliationResultFromUseCase converts a reconciliation result.
func ReconciliationResultFromUseCase(r *usecase.ReconciliationResult) *ReconciliationResultResponse {
	return &ReconciliationResultResponse{
		AccountID:       r.AccountID,
		RecordedBalance: r.RecordedBalance,
		ReplayedBalance: r.ReplayedBalance,
		Difference:      r.Difference,
		IsReconciled:    r.IsReconciled,
		LastChecked:     r.LastChecked,
	}
}

// ReconciliationReportResponse is the ledger-wide consistency report.
type ReconciliationReportResponse struct {
	HeadSequence       int64                           `json:"head_sequence"`
	TotalAccounts      int                             `json:"total_accounts"`
	ReconciledAccounts int                             `json:"reconciled_accounts"`
	Discrepancies      []*ReconciliationResultResponse `json:"discrepancies"`
	ZeroSum            bool                            `json:"zero_sum"`
	CheckedAt          time.Time                       `json:"checked_at"`
}

// ReconciliationReportFromUseCase converts a reconciliation report.
func ReconciliationReportFromUseCase(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	discrepancies := make([]*ReconciliationResultResponse, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		discrepancies[i] = ReconciliationResultFromUseCase(d)
	}
	return &ReconciliationReportResponse{
		HeadSequence:       r.HeadSequence,
		TotalAccounts:      r.TotalAccounts,
		ReconciledAccounts: r.ReconciledAccounts,
		Discrepancies:      discrepancies,
		ZeroSum:            r.ZeroSum,
		CheckedAt:          r.CheckedAt,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// fromMinorUnits renders an integer minor-unit amount in major units.
// Unknown currencies cannot reach here: every stored amount passed
// currency validation on the way in.
func fromMinorUnits(amount int64, currency string) decimal.Decimal {
	exp, err := domain.CurrencyExponent(currency)
	if err != nil {
		return decimal.NewFromInt(amount)
	}
	return decimal.NewFromInt(amount).Shift(-exp)
}
