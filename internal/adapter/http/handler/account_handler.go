package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/corebank/ledger/internal/adapter/http/dto"
	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	OpenAccount(ctx context.Context, input usecase.OpenAccountInput) (*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetBalance(ctx context.Context, id string) (*domain.Account, error)
	FreezeAccount(ctx context.Context, id string) (*domain.Account, error)
	UnfreezeAccount(ctx context.Context, id string) (*domain.Account, error)
	CloseAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	accountUC AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountUC AccountService) *AccountHandler {
	return &AccountHandler{accountUC: accountUC}
}

// Open creates a new account.
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req dto.OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	account, err := h.accountUC.OpenAccount(r.Context(), input)
	if err != nil {
		writeDomainError(w, err, "failed to open account")
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// Get retrieves an account by ID.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	account, err := h.accountUC.GetAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get account")
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// GetBalance retrieves an account through the balance cache.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	account, err := h.accountUC.GetBalance(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get balance")
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// Freeze suspends posting against an account.
func (h *AccountHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.accountUC.FreezeAccount, "failed to freeze account")
}

// Unfreeze reactivates a frozen account.
func (h *AccountHandler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.accountUC.UnfreezeAccount, "failed to unfreeze account")
}

// Close permanently retires an account with a zero balance.
func (h *AccountHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.accountUC.CloseAccount, "failed to close account")
}

func (h *AccountHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	fn func(context.Context, string) (*domain.Account, error),
	message string,
) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	account, err := fn(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, message)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// List lists accounts.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	accounts, err := h.accountUC.ListAccounts(r.Context(), usecase.ListAccountsInput{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list accounts", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ListAccountsResponse{
		Accounts: dto.AccountsFromDomain(accounts),
		Total:    int64(len(accounts)),
	})
}
