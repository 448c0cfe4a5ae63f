package feed_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iceinvein/mlem/internal/database/boltstore"
	"github.com/iceinvein/mlem/internal/feed"
	"github.com/iceinvein/mlem/internal/identity"
	"github.com/iceinvein/mlem/internal/moderation"
)

type modRoles struct{}

func (modRoles) RoleFor(userID string) identity.Role {
	if userID == "mod1" {
		return identity.RoleModerator
	}
	return identity.RoleUser
}

func newTestServices(t *testing.T) (*feed.Service, *moderation.Service, *boltstore.Store) {
	t.Helper()

	db, err := boltstore.Open(boltstore.Options{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	modSvc := moderation.NewService(db.ModerationStore(), db.FeedStore(), modRoles{}, db.UserStore())
	feedSvc := feed.NewService(db.FeedStore(), modSvc)
	return feedSvc, modSvc, db
}

func TestCreateMeme(t *testing.T) {
	ctx := context.Background()

	t.Run("requires authentication", func(t *testing.T) {
		svc, _, _ := newTestServices(t)

		_, err := svc.CreateMeme(ctx, "", "title", "blob://m", "")
		assert.True(t, moderation.IsKind(err, moderation.KindUnauthenticated))
	})

	t.Run("requires title and media", func(t *testing.T) {
		svc, _, _ := newTestServices(t)

		_, err := svc.CreateMeme(ctx, "alice", "  ", "blob://m", "")
		assert.True(t, moderation.IsKind(err, moderation.KindInvalidArgument))

		_, err = svc.CreateMeme(ctx, "alice", "title", "", "")
		assert.True(t, moderation.IsKind(err, moderation.KindInvalidArgument))
	})

	t.Run("creates and returns the meme", func(t *testing.T) {
		svc, _, _ := newTestServices(t)

		id, err := svc.CreateMeme(ctx, "alice", "cat pic", "blob://m", "cats")
		require.NoError(t, err)

		meme, err := svc.GetMeme(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "alice", meme.AuthorID)
		assert.Equal(t, "cat pic", meme.Title)
	})

	t.Run("suspended author is blocked", func(t *testing.T) {
		svc, modSvc, _ := newTestServices(t)

		_, err := modSvc.ApplySuspension(ctx, "mod1", "alice", "Spam", moderation.SuspendIndefinite, "", "")
		require.NoError(t, err)

		_, err = svc.CreateMeme(ctx, "alice", "title", "blob://m", "")
		assert.True(t, moderation.IsKind(err, moderation.KindSuspended))
	})

	t.Run("expired suspension is healed inline", func(t *testing.T) {
		svc, _, db := newTestServices(t)

		past := time.Now().Add(-time.Minute)
		require.NoError(t, db.ModerationStore().PutStatus(ctx, moderation.Status{
			UserID:         "alice",
			Suspended:      true,
			SuspendedUntil: &past,
		}))

		_, err := svc.CreateMeme(ctx, "alice", "title", "blob://m", "")
		require.NoError(t, err)

		stored, err := db.ModerationStore().GetStatus(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.False(t, stored.Suspended)
	})
}

func TestCreateComment(t *testing.T) {
	ctx := context.Background()

	t.Run("comment on missing meme fails", func(t *testing.T) {
		svc, _, _ := newTestServices(t)

		_, err := svc.CreateComment(ctx, "alice", "ghost", "", "hi")
		assert.True(t, moderation.IsKind(err, moderation.KindNotFound))
	})

	t.Run("parent must belong to the same meme", func(t *testing.T) {
		svc, _, _ := newTestServices(t)

		memeA, err := svc.CreateMeme(ctx, "alice", "a", "blob://a", "")
		require.NoError(t, err)
		memeB, err := svc.CreateMeme(ctx, "alice", "b", "blob://b", "")
		require.NoError(t, err)

		parent, err := svc.CreateComment(ctx, "bob", memeA, "", "top")
		require.NoError(t, err)

		_, err = svc.CreateComment(ctx, "bob", memeB, parent, "reply")
		assert.True(t, moderation.IsKind(err, moderation.KindNotFound))

		_, err = svc.CreateComment(ctx, "bob", memeA, parent, "reply")
		assert.NoError(t, err)
	})

	t.Run("bumps comment count", func(t *testing.T) {
		svc, _, _ := newTestServices(t)

		memeID, err := svc.CreateMeme(ctx, "alice", "a", "blob://a", "")
		require.NoError(t, err)

		_, err = svc.CreateComment(ctx, "bob", memeID, "", "one")
		require.NoError(t, err)
		_, err = svc.CreateComment(ctx, "bob", memeID, "", "two")
		require.NoError(t, err)

		meme, err := svc.GetMeme(ctx, memeID)
		require.NoError(t, err)
		assert.Equal(t, 2, meme.CommentCount)
	})

	t.Run("muted author is blocked", func(t *testing.T) {
		svc, modSvc, _ := newTestServices(t)

		memeID, err := svc.CreateMeme(ctx, "alice", "a", "blob://a", "")
		require.NoError(t, err)

		_, err = modSvc.ApplyMute(ctx, "mod1", "bob", "Spam", "", "")
		require.NoError(t, err)

		_, err = svc.CreateComment(ctx, "bob", memeID, "", "hi")
		assert.True(t, moderation.IsKind(err, moderation.KindMuted))
	})
}

func TestViewerMuteFiltering(t *testing.T) {
	ctx := context.Background()

	t.Run("muted authors hidden from viewer only", func(t *testing.T) {
		svc, _, _ := newTestServices(t)

		memeID, err := svc.CreateMeme(ctx, "alice", "a", "blob://a", "")
		require.NoError(t, err)

		_, err = svc.CreateComment(ctx, "bob", memeID, "", "from bob")
		require.NoError(t, err)
		_, err = svc.CreateComment(ctx, "carol", memeID, "", "from carol")
		require.NoError(t, err)

		require.NoError(t, svc.Mute(ctx, "alice", "bob"))

		forAlice, err := svc.Comments(ctx, "alice", memeID)
		require.NoError(t, err)
		require.Len(t, forAlice, 1)
		assert.Equal(t, "carol", forAlice[0].AuthorID)

		forDave, err := svc.Comments(ctx, "dave", memeID)
		require.NoError(t, err)
		assert.Len(t, forDave, 2)

		anonymous, err := svc.Comments(ctx, "", memeID)
		require.NoError(t, err)
		assert.Len(t, anonymous, 2)
	})

	t.Run("self mute forbidden", func(t *testing.T) {
		svc, _, _ := newTestServices(t)

		err := svc.Mute(ctx, "alice", "alice")
		require.True(t, moderation.IsKind(err, moderation.KindSelfMute))
		assert.Contains(t, err.Error(), "You cannot mute yourself")
	})

	t.Run("unmute is a no-op for unknown target", func(t *testing.T) {
		svc, _, _ := newTestServices(t)

		assert.NoError(t, svc.Unmute(ctx, "alice", "nobody"))
	})

	t.Run("muted users listing", func(t *testing.T) {
		svc, _, _ := newTestServices(t)

		require.NoError(t, svc.Mute(ctx, "alice", "bob"))
		require.NoError(t, svc.Mute(ctx, "alice", "carol"))

		muted, err := svc.MutedUsers(ctx, "alice")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"bob", "carol"}, muted)
	})
}
