package boltstore

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/iceinvein/mlem/internal/feed"
)

// FeedStore provides persistent storage for memes, comments, and viewer
// mutes. It also serves as the moderation core's content collaborator.
type FeedStore struct {
	db *bolt.DB
}

// Ensure FeedStore implements the interface at compile time.
var _ feed.Store = (*FeedStore)(nil)

// muteKey builds the composite key for viewer mutes.
func muteKey(muterID, mutedID string) []byte {
	return []byte(muterID + ":" + mutedID)
}

// memeCommentKey builds the composite key for the comments-by-meme index.
func memeCommentKey(memeID, commentID string) []byte {
	return []byte(memeID + ":" + commentID)
}

// ========== Memes ==========

// CreateMeme stores a new meme.
func (s *FeedStore) CreateMeme(ctx context.Context, meme feed.Meme) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketMemes)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketMemes)
		}

		data, err := json.Marshal(meme)
		if err != nil {
			return fmt.Errorf("failed to marshal meme: %w", err)
		}

		return bucket.Put([]byte(meme.ID), data)
	})
}

// GetMeme retrieves a meme by ID, or nil if none exists.
func (s *FeedStore) GetMeme(ctx context.Context, id string) (*feed.Meme, error) {
	var meme *feed.Meme

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketMemes)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		meme = &feed.Meme{}
		return json.Unmarshal(data, meme)
	})

	return meme, err
}

// DeleteMeme removes a meme along with its comments and comment index.
func (s *FeedStore) DeleteMeme(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		memes := tx.Bucket(BucketMemes)
		if memes == nil {
			return nil
		}

		if err := memes.Delete([]byte(id)); err != nil {
			return err
		}

		index := tx.Bucket(BucketCommentsByMeme)
		comments := tx.Bucket(BucketComments)
		if index == nil || comments == nil {
			return nil
		}

		// Index entries must be removed through the cursor while iterating;
		// bucket.Delete in the loop would invalidate its position.
		cursor := index.Cursor()
		prefix := []byte(id + ":")
		for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
			if err := comments.Delete(v); err != nil {
				return err
			}
			if err := cursor.Delete(); err != nil {
				return err
			}
		}

		return nil
	})
}

// AdjustCommentCount atomically changes a meme's comment count. The
// read-modify-write runs inside one transaction.
func (s *FeedStore) AdjustCommentCount(ctx context.Context, memeID string, delta int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketMemes)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketMemes)
		}

		data := bucket.Get([]byte(memeID))
		if data == nil {
			return fmt.Errorf("meme not found: %s", memeID)
		}

		var meme feed.Meme
		if err := json.Unmarshal(data, &meme); err != nil {
			return err
		}

		meme.CommentCount += delta
		if meme.CommentCount < 0 {
			meme.CommentCount = 0
		}

		newData, err := json.Marshal(meme)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(memeID), newData)
	})
}

// ========== Comments ==========

// CreateComment stores a new comment and indexes it by meme.
func (s *FeedStore) CreateComment(ctx context.Context, comment feed.Comment) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketComments)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketComments)
		}

		data, err := json.Marshal(comment)
		if err != nil {
			return fmt.Errorf("failed to marshal comment: %w", err)
		}

		if err := bucket.Put([]byte(comment.ID), data); err != nil {
			return err
		}

		index := tx.Bucket(BucketCommentsByMeme)
		if index != nil {
			if err := index.Put(memeCommentKey(comment.MemeID, comment.ID), []byte(comment.ID)); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetComment retrieves a comment by ID, or nil if none exists.
func (s *FeedStore) GetComment(ctx context.Context, id string) (*feed.Comment, error) {
	var comment *feed.Comment

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketComments)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		comment = &feed.Comment{}
		return json.Unmarshal(data, comment)
	})

	return comment, err
}

// ListCommentsByMeme returns a meme's comments oldest-first.
func (s *FeedStore) ListCommentsByMeme(ctx context.Context, memeID string) ([]feed.Comment, error) {
	var comments []feed.Comment

	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(BucketCommentsByMeme)
		bucket := tx.Bucket(BucketComments)
		if index == nil || bucket == nil {
			return nil
		}

		cursor := index.Cursor()
		prefix := []byte(memeID + ":")

		for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
			data := bucket.Get(v)
			if data == nil {
				continue
			}

			var comment feed.Comment
			if err := json.Unmarshal(data, &comment); err != nil {
				continue // Skip malformed entries
			}
			comments = append(comments, comment)
		}

		return nil
	})

	return comments, err
}

// ========== Viewer mutes ==========

// PutViewerMute stores a viewer mute (idempotent).
func (s *FeedStore) PutViewerMute(ctx context.Context, muterID, mutedID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketViewerMutes)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketViewerMutes)
		}

		return bucket.Put(muteKey(muterID, mutedID), []byte(mutedID))
	})
}

// DeleteViewerMute removes a viewer mute.
func (s *FeedStore) DeleteViewerMute(ctx context.Context, muterID, mutedID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketViewerMutes)
		if bucket == nil {
			return nil
		}

		return bucket.Delete(muteKey(muterID, mutedID))
	})
}

// ListViewerMutes returns the user IDs the given viewer has muted.
func (s *FeedStore) ListViewerMutes(ctx context.Context, muterID string) ([]string, error) {
	var muted []string

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketViewerMutes)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		prefix := []byte(muterID + ":")

		for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
			muted = append(muted, string(v))
		}

		return nil
	})

	return muted, err
}

// ========== Moderation content collaborator ==========

// ContentExists reports whether a meme exists.
func (s *FeedStore) ContentExists(ctx context.Context, contentID string) (bool, error) {
	var exists bool

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketMemes)
		if bucket == nil {
			return nil
		}

		exists = bucket.Get([]byte(contentID)) != nil
		return nil
	})

	return exists, err
}

// DeleteContent removes reported content. Used when a report is resolved
// with content_removed.
func (s *FeedStore) DeleteContent(ctx context.Context, contentID string) error {
	return s.DeleteMeme(ctx, contentID)
}
