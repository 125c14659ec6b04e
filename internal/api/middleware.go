// Package api is the HTTP transport: thin mux handlers over the service
// layer, with bearer-token auth on the private surface.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/autogramhq/automation-service/internal/api/respond"
	"github.com/autogramhq/automation-service/internal/auth"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserID extracts the authenticated user id set by RequireAuth.
func UserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// RequireAuth validates the Authorization bearer token and injects the user
// id into the request context.
func RequireAuth(sessions *auth.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respond.WriteUnauthorized(w, "missing bearer token")
				return
			}
			userID, err := sessions.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidSession) {
					respond.WriteUnauthorized(w, "invalid or expired session")
					return
				}
				respond.WriteInternalError(w, "session lookup failed")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
		})
	}
}

// bearerToken returns the raw token from the Authorization header, if any.
func bearerToken(r *http.Request) string {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return token
}
