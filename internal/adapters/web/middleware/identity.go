package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/services/auth"
)

type contextKey string

const UserContextKey contextKey = "user"

// UserHeader carries the identity asserted by the fronting proxy.
const UserHeader = "X-Username"

// Authorizer resolves a username and checks its role.
type Authorizer interface {
	Authorize(ctx context.Context, username string, required domain.Role) (*domain.User, error)
}

// Identity resolves the caller from UserHeader and rejects it unless it holds
// at least the required role.
func Identity(authz Authorizer, required domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := r.Header.Get(UserHeader)
			if username == "" {
				// Browsers cannot set headers on WebSocket upgrades.
				username = r.URL.Query().Get("user")
			}

			user, err := authz.Authorize(r.Context(), username, required)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrEmptyUsername), errors.Is(err, domain.ErrUnknownUser):
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			case errors.Is(err, auth.ErrForbidden):
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			default:
				slog.Error("Failed to resolve caller", "username", username, "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the caller stored by Identity.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*domain.User)
	return user, ok && user != nil
}

// WithUser stores user as the caller. Handlers under test use it to skip Identity.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}
