// Package boltstore provides persistent storage using BoltDB (bbolt).
// It implements the moderation, feed, user directory, and session store
// interfaces. Values are JSON-marshalled; secondary indexes live in their
// own buckets with composite keys.
package boltstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for organizing data
var (
	// BucketModerationStatuses stores the per-user enforcement record keyed by user ID
	BucketModerationStatuses = []byte("moderation_statuses")

	// BucketModerationActions stores moderation actions keyed by action ID
	BucketModerationActions = []byte("moderation_actions")

	// BucketModerationActionsByUser indexes action IDs by target user
	BucketModerationActionsByUser = []byte("moderation_actions_by_user")

	// BucketContentReports stores content reports keyed by report ID
	BucketContentReports = []byte("content_reports")

	// BucketContentReportsByPair indexes content reports by "reporterID:targetID"
	BucketContentReportsByPair = []byte("content_reports_by_pair")

	// BucketUserReports stores user reports keyed by report ID
	BucketUserReports = []byte("user_reports")

	// BucketUserReportsByPair indexes user reports by "reporterID:reportedID"
	BucketUserReportsByPair = []byte("user_reports_by_pair")

	// BucketMemes stores feed posts keyed by meme ID
	BucketMemes = []byte("memes")

	// BucketComments stores comments keyed by comment ID
	BucketComments = []byte("comments")

	// BucketCommentsByMeme indexes comment IDs by meme
	BucketCommentsByMeme = []byte("comments_by_meme")

	// BucketViewerMutes stores per-viewer mutes keyed by "muterID:mutedID"
	BucketViewerMutes = []byte("viewer_mutes")

	// BucketUsers stores user display data keyed by user ID
	BucketUsers = []byte("users")

	// BucketSessions stores session data keyed by session token
	BucketSessions = []byte("sessions")
)

// Store wraps a BoltDB database and provides access to specialized stores.
type Store struct {
	db *bolt.DB
}

// Options configures the BoltDB store.
type Options struct {
	// Path to the database file. Parent directories will be created if needed.
	Path string

	// Timeout for obtaining a file lock on the database.
	// If zero, a default of 5 seconds is used.
	Timeout time.Duration

	// FileMode for creating the database file.
	// If zero, 0600 is used.
	FileMode os.FileMode
}

// DefaultOptions returns sensible defaults for development.
func DefaultOptions() Options {
	return Options{
		Path:     "mlem.db",
		Timeout:  5 * time.Second,
		FileMode: 0600,
	}
}

// Open creates or opens a BoltDB database at the specified path.
// It creates all necessary buckets if they don't exist.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = "mlem.db"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0600
	}

	// Ensure parent directory exists
	dir := filepath.Dir(opts.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open the database
	db, err := bolt.Open(opts.Path, opts.FileMode, &bolt.Options{
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			BucketModerationStatuses,
			BucketModerationActions,
			BucketModerationActionsByUser,
			BucketContentReports,
			BucketContentReportsByPair,
			BucketUserReports,
			BucketUserReportsByPair,
			BucketMemes,
			BucketComments,
			BucketCommentsByMeme,
			BucketViewerMutes,
			BucketUsers,
			BucketSessions,
		}

		for _, bucket := range buckets {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying BoltDB instance for advanced operations.
func (s *Store) DB() *bolt.DB {
	return s.db
}

// ModerationStore returns a moderation store backed by this database.
func (s *Store) ModerationStore() *ModerationStore {
	return &ModerationStore{db: s.db}
}

// FeedStore returns a feed content store backed by this database.
func (s *Store) FeedStore() *FeedStore {
	return &FeedStore{db: s.db}
}

// UserStore returns a user directory store backed by this database.
func (s *Store) UserStore() *UserStore {
	return &UserStore{db: s.db}
}

// SessionStore returns a session store backed by this database.
func (s *Store) SessionStore() *SessionStore {
	return &SessionStore{db: s.db}
}

// Stats returns database statistics.
func (s *Store) Stats() bolt.Stats {
	return s.db.Stats()
}

// hasPrefix checks if a byte slice has a given prefix.
func hasPrefix(s, prefix []byte) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if s[i] != b {
			return false
		}
	}
	return true
}
