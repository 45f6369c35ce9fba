package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/anjalik1505/town-functions-sub003/internal/errors"
)

// Identity headers set by the upstream gateway after it authenticated the
// caller. The server trusts them and never sees credentials.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	roleAdmin = "admin"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

const (
	userIDKey   ctxKey = "userID"
	userRoleKey ctxKey = "userRole"
)

// GetUserID returns the authenticated user ID from context.
// Returns 401 error if user is not authenticated.
func GetUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", huma.Error401Unauthorized("Authentication required")
	}
	return userID, nil
}

// setUserID stores the user ID in context.
func setUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// authMiddleware copies the gateway identity headers into the request
// context. Requests without them continue anonymously; handlers use
// GetUserID to reject them.
func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := setUserID(r.Context(), userID)
		if role := strings.TrimSpace(r.Header.Get(HeaderUserRole)); role != "" {
			ctx = context.WithValue(ctx, userRoleKey, strings.ToLower(role))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromRequest resolves the authenticated user for plain http handlers
// mounted behind authMiddleware.
func UserFromRequest(r *http.Request) (string, bool) {
	userID, err := GetUserID(r.Context())
	return userID, err == nil
}

// RequireAdmin validates the user is authenticated and has admin role.
// Returns the user ID if successful, error otherwise.
func RequireAdmin(ctx context.Context) (string, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return "", err
	}
	if role, _ := ctx.Value(userRoleKey).(string); role != roleAdmin {
		return "", domainerrors.Forbidden("Admin access required")
	}
	return userID, nil
}
