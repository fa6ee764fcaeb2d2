// Package middleware provides the HTTP middleware of the hub API.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/reunite/hub/internal/api/response"
	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// Authenticator resolves an API key to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*models.User, error)
}

// Auth validates the bearer API key and stores the user in the request context.
func Auth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.RespondUnauthorized(w, "Missing Authorization header")

				return
			}

			scheme, apiKey, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(apiKey) == "" {
				response.RespondUnauthorized(w, "Invalid Authorization header format. Expected: Bearer <api-key>")

				return
			}

			user, err := auth.Authenticate(r.Context(), apiKey)
			if err != nil {
				if !errors.Is(err, huberrors.ErrNotFound) {
					slog.ErrorContext(r.Context(), "API key lookup failed", "error", err)
					response.RespondInternalServerError(w, "An unexpected error occurred")

					return
				}

				response.RespondUnauthorized(w, "Invalid API key")

				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly rejects users without the admin flag. It must run after Auth.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.IsAdmin {
			response.RespondForbidden(w, "Admin access required")

			return
		}

		next.ServeHTTP(w, r)
	})
}

// UserFromContext returns the authenticated user.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)

	return user, ok && user != nil
}

// WithUser returns ctx carrying user, as Auth does.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
