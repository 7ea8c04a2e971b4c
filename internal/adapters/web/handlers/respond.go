package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/lcalzada-xor/iotguard/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/services/auth"
)

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// writeError maps an error onto its HTTP status and writes {"error": msg}.
func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// StatusFor is the error to status code table shared by all handlers.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrProbe):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrEmptyTarget),
		errors.Is(err, domain.ErrInvalidTarget),
		errors.Is(err, domain.ErrPortOutOfRange),
		errors.Is(err, domain.ErrEmptyUsername),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidVerdict):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownUser):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInsufficientHistory):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string        { return e.msg }
func (e *requestError) Is(target error) bool { return target == errBadRequest }

// caller returns the user set by the identity middleware.
func caller(r *http.Request) *domain.User {
	user, _ := middleware.UserFromContext(r.Context())
	return user
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		return 0, badRequest("invalid id")
	}
	return uint(id), nil
}

func queryLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, badRequest("limit must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}
