package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/corebank/ledger/internal/adapter/http/dto"
	"github.com/corebank/ledger/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTooFewEntries),
		errors.Is(err, domain.ErrUnbalanced),
		errors.Is(err, domain.ErrZeroEntry),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrDuplicateAccount),
		errors.Is(err, domain.ErrKeyMissing):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrAccountNotActive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrKeyReused),
		errors.Is(err, domain.ErrAlreadyReversed),
		errors.Is(err, domain.ErrNotReversible),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAccountNotEmpty):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBusy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError maps err to a status code and writes the error body.
// Busy responses carry a Retry-After hint so clients back off.
func writeDomainError(w http.ResponseWriter, err error, message string) {
	status := mapDomainError(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, message, err.Error())
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseInt64Query parses an int64 query parameter with a default value.
func parseInt64Query(r *http.Request, key string, defaultValue int64) int64 {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return i
}
