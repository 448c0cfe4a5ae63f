package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/iceinvein/mlem/internal/database/boltstore"
	"github.com/iceinvein/mlem/internal/identity"

	"github.com/rs/zerolog/log"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "mlem_session"

// SessionLookup resolves a session token to a session, or nil when the token
// is unknown.
type SessionLookup interface {
	Get(ctx context.Context, token string) (*boltstore.Session, error)
}

// AuthMiddleware resolves the request's session token (cookie or bearer
// header) and attaches the caller's user ID to the request context. Requests
// without a valid session pass through unauthenticated; handlers decide
// whether authentication is required.
func AuthMiddleware(sessions SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := sessions.Get(r.Context(), token)
			if err != nil {
				log.Error().Err(err).Msg("middleware: session lookup failed")
				next.ServeHTTP(w, r)
				return
			}
			if session == nil || session.Expired(time.Now()) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := identity.WithCaller(r.Context(), session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return ""
}
