package boltstore

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/iceinvein/mlem/internal/identity"
)

// UserStore provides the user directory backing identity lookups.
// Account records themselves are owned by the external identity provider;
// this store only mirrors the display data needed for enrichment.
type UserStore struct {
	db *bolt.DB
}

// Ensure UserStore implements the directory interface at compile time.
var _ identity.Directory = (*UserStore)(nil)

// ErrUserNotFound is returned by Lookup for unknown user IDs.
var ErrUserNotFound = fmt.Errorf("user not found")

// Put stores a user's display data (upsert).
func (s *UserStore) Put(ctx context.Context, info identity.UserInfo) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUsers)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketUsers)
		}

		data, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("failed to marshal user info: %w", err)
		}

		return bucket.Put([]byte(info.ID), data)
	})
}

// Lookup resolves a user ID to display data.
func (s *UserStore) Lookup(ctx context.Context, userID string) (identity.UserInfo, error) {
	var info identity.UserInfo
	found := false

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUsers)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(userID))
		if data == nil {
			return nil
		}

		found = true
		return json.Unmarshal(data, &info)
	})
	if err != nil {
		return identity.UserInfo{}, err
	}
	if !found {
		return identity.UserInfo{}, ErrUserNotFound
	}

	return info, nil
}
