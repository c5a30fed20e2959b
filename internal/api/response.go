package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"papertrade-go/internal/ledger"
	"papertrade-go/internal/quote"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v, rejecting unknown fields.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return errors.New("request body must be JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed JSON body: %v", err)
	}
	return nil
}

// errorMapping pairs a domain error with its HTTP rendering.
type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{ledger.ErrInvalidOrder, http.StatusBadRequest, "invalid_order"},
	{ledger.ErrInvalidUser, http.StatusBadRequest, "invalid_user"},
	{ledger.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
	{ledger.ErrInsufficientShares, http.StatusBadRequest, "insufficient_shares"},
	{ledger.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
	{ledger.ErrPersistence, http.StatusInternalServerError, "persistence_failure"},
	{quote.ErrGatewayUnavailable, http.StatusServiceUnavailable, "gateway_unavailable"},
	{quote.ErrSymbolNotFound, http.StatusNotFound, "symbol_not_found"},
}

// writeDomainError renders err using the first matching mapping. Storage
// failures get a generic message because their detail is not actionable.
func writeDomainError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		message := err.Error()
		if m.target == ledger.ErrPersistence {
			message = "The order could not be saved. Nothing was changed, please try again."
		}
		WriteError(w, m.status, m.code, message)
		return
	}
	WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}
