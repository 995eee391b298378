package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/corebank/ledger/internal/adapter/http/dto"
	"github.com/corebank/ledger/internal/usecase"
)

// ReconciliationService defines the behavior needed by ReconciliationHandler.
type ReconciliationService interface {
	ReconcileAccount(ctx context.Context, accountID string) (*usecase.ReconciliationResult, error)
	CheckZeroSum(ctx context.Context) error
	GenerateReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// ReconciliationHandler exposes ledger consistency checks.
type ReconciliationHandler struct {
	reconcileUC ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconcileUC ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconcileUC: reconcileUC}
}

// Report replays the full journal and compares against stored balances.
// A ledger with discrepancies still returns 200: the report itself is the
// finding, not an error.
func (h *ReconciliationHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconcileUC.GenerateReport(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate report", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationReportFromUseCase(report))
}

// Account reconciles a single account against the journal.
func (h *ReconciliationHandler) Account(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	result, err := h.reconcileUC.ReconcileAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to reconcile account")
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationResultFromUseCase(result))
}

// ZeroSum verifies that all journal entries sum to zero.
func (h *ReconciliationHandler) ZeroSum(w http.ResponseWriter, r *http.Request) {
	if err := h.reconcileUC.CheckZeroSum(r.Context()); err != nil {
		writeJSON(w, http.StatusConflict, map[string]any{
			"status":   "inconsistent",
			"zero_sum": false,
			"message":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "consistent",
		"zero_sum": true,
	})
}
