// Package auth provides JWT user authentication and the HTTP middleware
// that enforces it.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// AdminAPIKeyHeader carries the admin key for token issuance.
	AdminAPIKeyHeader = "X-Admin-API-Key"

	userContextKey contextKey = "user"
)

// Middleware authenticates HTTP requests with Bearer JWTs and stores the
// authenticated user ID in the request context.
type Middleware struct {
	manager     *JWTManager
	adminAPIKey string
}

// NewMiddleware creates the auth middleware.
func NewMiddleware(manager *JWTManager, adminAPIKey string) *Middleware {
	return &Middleware{manager: manager, adminAPIKey: adminAPIKey}
}

// RequireUser rejects requests without a valid Bearer token.
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "missing authorization header")
			return
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			unauthorized(w, "authorization header must be a bearer token")
			return
		}

		claims, err := m.manager.ValidateToken(strings.TrimSpace(tokenString))
		if err != nil {
			unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects requests that do not carry the configured admin API
// key. Used to gate token issuance.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.adminAPIKey == "" {
			forbidden(w, "admin API key not configured")
			return
		}
		if r.Header.Get(AdminAPIKeyHeader) != m.adminAPIKey {
			forbidden(w, "invalid admin API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserFromContext extracts the authenticated user ID from the request
// context.
func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userContextKey).(string)
	return userID, ok && userID != ""
}

// WithUser returns a context carrying the user ID. Exposed for tests and for
// deployments that disable authentication.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, msg)
}

func forbidden(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusForbidden, msg)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
