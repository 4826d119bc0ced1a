package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"coppia/internal/auth"
	"coppia/internal/core"
	"coppia/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps a domain error to its status code. Unrecognized errors
// are logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	switch {
	case core.IsValidation(err) || errors.Is(err, auth.ErrWeakPassword):
		status = http.StatusBadRequest
		msg = err.Error()
	case core.IsNotFound(err):
		status = http.StatusNotFound
		msg = err.Error()
	case core.IsConflict(err) || errors.Is(err, storage.ErrStale):
		status = http.StatusConflict
		msg = err.Error()
	case errors.Is(err, core.ErrInvalidCredentials) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrMissingToken):
		status = http.StatusUnauthorized
		msg = err.Error()
	case core.IsAuthorization(err):
		status = http.StatusForbidden
		msg = err.Error()
	default:
		slog.ErrorContext(r.Context(), "Unhandled error", "error", err,
			"method", r.Method, "path", r.URL.Path)
	}

	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return false
	}
	return true
}
