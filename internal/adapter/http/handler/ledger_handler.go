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

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	PostTransaction(ctx context.Context, input usecase.PostTransactionInput) (*usecase.Receipt, error)
	ReverseTransaction(ctx context.Context, input usecase.ReverseTransactionInput) (*usecase.Receipt, error)
}

// TransactionReader looks up posted transactions.
type TransactionReader interface {
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
}

// LedgerHandler handles transaction posting and reversal.
type LedgerHandler struct {
	engine  LedgerService
	journal TransactionReader
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(engine LedgerService, journal TransactionReader) *LedgerHandler {
	return &LedgerHandler{engine: engine, journal: journal}
}

// Post validates and atomically applies a transaction. The Idempotency-Key
// header is mandatory: replays with the same key return the original receipt.
func (h *LedgerHandler) Post(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")

	var req dto.PostTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToEngineInput(key)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	receipt, err := h.engine.PostTransaction(r.Context(), input)
	if err != nil {
		writeDomainError(w, err, "failed to post transaction")
		return
	}

	writeJSON(w, http.StatusCreated, dto.ReceiptFromUseCase(receipt))
}

// Reverse posts a compensating transaction for a posted transaction.
func (h *LedgerHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction ID", "")
		return
	}

	var req dto.ReverseTransactionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	receipt, err := h.engine.ReverseTransaction(r.Context(), usecase.ReverseTransactionInput{
		TransactionID:  id,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		ClientRef:      req.ClientRef,
	})
	if err != nil {
		writeDomainError(w, err, "failed to reverse transaction")
		return
	}

	writeJSON(w, http.StatusCreated, dto.ReceiptFromUseCase(receipt))
}

// Get retrieves a transaction with its entries.
func (h *LedgerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction ID", "")
		return
	}

	txn, err := h.journal.GetTransaction(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get transaction")
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(txn))
}
