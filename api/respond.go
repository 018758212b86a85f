package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/garnizeh/qaforum/internal/forum"
	"github.com/garnizeh/qaforum/internal/identity"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, errorResponse{Error: msg}, status)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, forum.ErrValidation),
		errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, identity.ErrUnknownRole),
		errors.Is(err, identity.ErrInvalidInvitation):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, forum.ErrUnauthorized),
		errors.Is(err, identity.ErrSelfDelete),
		errors.Is(err, identity.ErrSelfDemote):
		return http.StatusForbidden
	case errors.Is(err, forum.ErrNotFound),
		errors.Is(err, identity.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, forum.ErrDuplicate),
		errors.Is(err, forum.ErrConflict),
		errors.Is(err, identity.ErrUserExists),
		errors.Is(err, identity.ErrLastAdmin),
		errors.Is(err, identity.ErrBootstrapped):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Internal errors are logged
// and hidden from the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		writeError(w, "internal server error", status)
		return
	}
	writeError(w, err.Error(), status)
}
