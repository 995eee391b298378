package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/corebank/ledger/internal/adapter/http/dto"
	"github.com/corebank/ledger/internal/domain"
)

// JournalService defines the behavior needed by JournalHandler.
type JournalService interface {
	GetAccountEntries(ctx context.Context, accountID string, limit, offset int) ([]*domain.Entry, error)
	BalanceAt(ctx context.Context, accountID string, seq int64) (int64, error)
	Head(ctx context.Context) (int64, error)
	Stream(ctx context.Context, fromSeq int64, fn func(*domain.Transaction) error) error
}

// JournalHandler exposes read access to the journal.
type JournalHandler struct {
	journalUC JournalService
}

// NewJournalHandler creates a new JournalHandler.
func NewJournalHandler(journalUC JournalService) *JournalHandler {
	return &JournalHandler{journalUC: journalUC}
}

// ListByAccount lists entries for an account, newest first.
func (h *JournalHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	entries, err := h.journalUC.GetAccountEntries(r.Context(), accountID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list entries", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// BalanceAt returns an account's balance as of a journal sequence, derived
// purely from the journal. The seq query parameter defaults to the current
// head.
func (h *JournalHandler) BalanceAt(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	seq := parseInt64Query(r, "seq", 0)
	if seq <= 0 {
		head, err := h.journalUC.Head(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read journal head", err.Error())
			return
		}
		seq = head
	}

	balance, err := h.journalUC.BalanceAt(r.Context(), accountID, seq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to derive balance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"seq":        seq,
		"balance":    balance,
	})
}

// Head returns the current journal head sequence.
func (h *JournalHandler) Head(w http.ResponseWriter, r *http.Request) {
	head, err := h.journalUC.Head(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read journal head", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"head": head})
}

// errPageFull stops a journal stream once the requested page is collected.
var errPageFull = errors.New("page full")

// Read returns a contiguous slice of the journal in sequence order,
// starting at the from query parameter.
func (h *JournalHandler) Read(w http.ResponseWriter, r *http.Request) {
	from := parseInt64Query(r, "from", 1)
	limit := parseIntQuery(r, "limit", 100)
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}

	txns := make([]*domain.Transaction, 0, limit)
	err := h.journalUC.Stream(r.Context(), from, func(txn *domain.Transaction) error {
		txns = append(txns, txn)
		if len(txns) >= limit {
			return errPageFull
		}
		return nil
	})
	if err != nil && !errors.Is(err, errPageFull) {
		writeError(w, http.StatusInternalServerError, "failed to read journal", err.Error())
		return
	}

	head, err := h.journalUC.Head(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read journal head", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.JournalPageResponse{
		Transactions: dto.TransactionsFromDomain(txns),
		Head:         head,
	})
}
