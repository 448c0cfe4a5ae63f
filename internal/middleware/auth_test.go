package middleware

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iceinvein/mlem/internal/database/boltstore"
	"github.com/iceinvein/mlem/internal/identity"
)

func newTestSessions(t *testing.T) *boltstore.SessionStore {
	t.Helper()
	opts := boltstore.DefaultOptions()
	opts.Path = filepath.Join(t.TempDir(), "test.db")
	store, err := boltstore.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store.SessionStore()
}

func TestAuthMiddleware(t *testing.T) {
	sessions := newTestSessions(t)
	ctx := t.Context()

	require.NoError(t, sessions.Save(ctx, boltstore.Session{
		Token:     "valid-token",
		UserID:    "user1",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, sessions.Save(ctx, boltstore.Session{
		Token:     "expired-token",
		UserID:    "user2",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	var gotCaller string
	var callerErr error
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCaller, callerErr = identity.CallerID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	wrapped := AuthMiddleware(sessions)(handler)

	t.Run("valid session cookie attaches caller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/memes", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-token"})
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)
		require.NoError(t, callerErr)
		assert.Equal(t, "user1", gotCaller)
	})

	t.Run("bearer token attaches caller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/memes", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)
		require.NoError(t, callerErr)
		assert.Equal(t, "user1", gotCaller)
	})

	t.Run("expired session passes through unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/memes", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "expired-token"})
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.ErrorIs(t, callerErr, identity.ErrNoCaller)
	})

	t.Run("unknown token passes through unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/memes", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "nope"})
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)
		assert.ErrorIs(t, callerErr, identity.ErrNoCaller)
	})

	t.Run("no token passes through unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/memes", nil)
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)
		assert.ErrorIs(t, callerErr, identity.ErrNoCaller)
	})
}
