package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/logging"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Error: message})
}

// writeError maps domain errors to status codes. Anything unrecognized is
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	var validationErr *domain.ValidationError
	var conflictErr *domain.ConflictError

	switch {
	case errors.As(err, &validationErr):
		writeFailure(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &conflictErr):
		writeFailure(w, http.StatusConflict, conflictErr.Message)
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeFailure(w, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, domain.ErrInvalidOrExpiredToken):
		writeFailure(w, http.StatusBadRequest, "Invalid or expired reset token")
	case errors.Is(err, domain.ErrNotAuthenticated):
		writeFailure(w, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, domain.ErrForbidden):
		writeFailure(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, domain.ErrUserNotFound):
		writeFailure(w, http.StatusNotFound, "User not found")
	case errors.Is(err, domain.ErrWorkspaceNotFound):
		writeFailure(w, http.StatusNotFound, "Workspace not found")
	case errors.Is(err, domain.ErrItemNotFound):
		writeFailure(w, http.StatusNotFound, "Item not found")
	default:
		log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeFailure(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
