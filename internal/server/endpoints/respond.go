package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackzampolin/bitbybit/internal/types"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeServiceError writes err with the status its kind maps to.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, StatusFor(err), err.Error())
}

// StatusFor maps the shared error kinds to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrChapterBusy):
		return http.StatusConflict
	case errors.Is(err, types.ErrConfiguration):
		return http.StatusPreconditionFailed
	case errors.Is(err, types.ErrMalformedResponse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v
// unchanged.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func unavailable(w http.ResponseWriter, what string) {
	writeError(w, http.StatusServiceUnavailable, what+" not initialized")
}
