package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Session maps an opaque token to a user ID. Tokens are minted by the
// external identity provider; this store only persists the mapping so it
// survives restarts.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session has lapsed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !s.ExpiresAt.After(now)
}

// SessionStore persists session tokens.
type SessionStore struct {
	db *bolt.DB
}

// Save persists a session (upsert).
func (s *SessionStore) Save(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketSessions)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketSessions)
		}

		return bucket.Put([]byte(sess.Token), data)
	})
}

// Get retrieves a session by token, or nil if none exists.
func (s *SessionStore) Get(ctx context.Context, token string) (*Session, error) {
	var sess *Session

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketSessions)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(token))
		if data == nil {
			return nil
		}

		sess = &Session{}
		return json.Unmarshal(data, sess)
	})
	if err != nil {
		return nil, err
	}

	return sess, nil
}

// Delete removes a session by token.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketSessions)
		if bucket == nil {
			return nil
		}

		return bucket.Delete([]byte(token))
	})
}
