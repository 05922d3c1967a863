package httputil

import (
	"context"
	"net/http"
)

// contextKey keeps our context values from colliding with other
// packages'
type contextKey string

const userIDKey contextKey = "userID"

// WithUserID returns the request with the authenticated user attached
// to its context. Set once by the auth middleware; nothing downstream
// writes it.
func WithUserID(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), userIDKey, userID)
	return r.WithContext(ctx)
}

// GetUserID returns the authenticated user ID. Empty only on routes
// the auth middleware exempts, such as /health.
func GetUserID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}
