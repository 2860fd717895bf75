// Package api provides HTTP handlers for the planner API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/finplan/internal/session"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v interface{}) bool {
	if maxBytes <= 0 {
		maxBytes = defaultMaxRequestBodySize
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			Error(w, http.StatusBadRequest, "request body is required")
		default:
			Error(w, http.StatusBadRequest, "invalid request body")
		}
		return false
	}
	return true
}

// sessionErrorCode maps orchestrator errors to a status and a stable code.
func sessionErrorCode(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrMissingCredentials):
		return http.StatusConflict, "missing_credentials"
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, "generation_in_progress"
	case errors.Is(err, session.ErrRecording):
		return http.StatusConflict, "recording_in_progress"
	case errors.Is(err, session.ErrUnknownCredential):
		return http.StatusNotFound, "unknown_credential"
	case errors.Is(err, session.ErrUnknownField):
		return http.StatusNotFound, "unknown_field"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	status, code := sessionErrorCode(err)
	if status == http.StatusInternalServerError {
		slog.Error("Session operation failed", "error", err)
	}
	Error(w, status, code)
}
