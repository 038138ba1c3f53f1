package api

import (
	"context"
	"net/http"
	"strings"
)

// Session headers, set by the upstream authentication proxy.
const (
	headerUserID = "X-User-ID"
	headerRole   = "X-Role"
)

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Session is the authenticated caller. Authentication happens upstream;
// this service trusts the headers it is given.
type Session struct {
	UserID string
	Role   string
}

func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

// CanAccessUser reports whether the caller may read or write userID's data.
func (s Session) CanAccessUser(userID string) bool {
	return s.IsAdmin() || s.UserID == userID
}

type sessionKey struct{}

// SessionFrom returns the session stored by RequireSession.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// RequireSession rejects requests without a user id with 401.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(headerUserID))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "Missing "+headerUserID+" header", nil)
			return
		}
		role := strings.ToLower(strings.TrimSpace(r.Header.Get(headerRole)))
		if role != RoleAdmin {
			role = RoleEmployee
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, Session{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireSession.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFrom(r.Context())
		if !ok || !s.IsAdmin() {
			writeError(w, http.StatusForbidden, "Admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
