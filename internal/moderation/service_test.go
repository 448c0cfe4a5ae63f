package moderation_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/iceinvein/mlem/internal/database/boltstore"
	"github.com/iceinvein/mlem/internal/metrics"
	"github.com/iceinvein/mlem/internal/feed"
	"github.com/iceinvein/mlem/internal/identity"
	"github.com/iceinvein/mlem/internal/moderation"
)

// staticRoles is a fixed role table for tests.
type staticRoles map[string]identity.Role

func (r staticRoles) RoleFor(userID string) identity.Role {
	if role, ok := r[userID]; ok {
		return role
	}
	return identity.RoleUser
}

type testEnv struct {
	svc   *moderation.Service
	store *boltstore.ModerationStore
	feed  *boltstore.FeedStore
	users *boltstore.UserStore
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	db, err := boltstore.Open(boltstore.Options{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	roles := staticRoles{
		"mod1":   identity.RoleModerator,
		"admin1": identity.RoleAdmin,
	}

	env := testEnv{
		store: db.ModerationStore(),
		feed:  db.FeedStore(),
		users: db.UserStore(),
	}
	env.svc = moderation.NewService(env.store, env.feed, roles, env.users)

	// A few known accounts for directory lookups
	ctx := context.Background()
	for _, u := range []string{"alice", "bob", "troll", "mod1", "admin1"} {
		require.NoError(t, env.users.Put(ctx, identity.UserInfo{
			ID:     u,
			Handle: u + ".mlem.example",
		}))
	}

	return env
}

func (e testEnv) newMeme(t *testing.T, author string) string {
	t.Helper()
	id := moderation.NewID()
	require.NoError(t, e.feed.CreateMeme(context.Background(), feed.Meme{
		ID:        id,
		AuthorID:  author,
		Title:     "meme",
		MediaRef:  "blob://m",
		CreatedAt: time.Now(),
	}))
	return id
}

func TestApplyActions(t *testing.T) {
	ctx := context.Background()

	t.Run("role gating", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.ApplyWarning(ctx, "", "troll", "Spam", "", "")
		assert.True(t, moderation.IsKind(err, moderation.KindUnauthenticated))

		_, err = env.svc.ApplyWarning(ctx, "alice", "troll", "Spam", "", "")
		assert.True(t, moderation.IsKind(err, moderation.KindForbidden))

		_, err = env.svc.ApplyWarning(ctx, "mod1", "troll", "Spam", "", "")
		assert.NoError(t, err)

		_, err = env.svc.ApplyStrike(ctx, "admin1", "troll", "Spam", "", "")
		assert.NoError(t, err)
	})

	t.Run("reason is required", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.ApplyMute(ctx, "mod1", "troll", "   ", "", "")
		assert.True(t, moderation.IsKind(err, moderation.KindInvalidArgument))
	})

	t.Run("warning increments count and logs action", func(t *testing.T) {
		env := newTestEnv(t)

		actionID, err := env.svc.ApplyWarning(ctx, "mod1", "troll", "Spam", "repeat offender", "")
		require.NoError(t, err)
		require.NotEmpty(t, actionID)

		status, err := env.svc.GetStatus(ctx, "troll")
		require.NoError(t, err)
		assert.Equal(t, 1, status.WarningCount)
		require.NotNil(t, status.LastWarningAt)

		action, err := env.store.GetAction(ctx, actionID)
		require.NoError(t, err)
		require.NotNil(t, action)
		assert.Equal(t, moderation.ActionWarning, action.Type)
		assert.Equal(t, "mod1", action.ModeratorID)
		assert.True(t, action.Active)
	})

	t.Run("strikes accumulate without escalation", func(t *testing.T) {
		env := newTestEnv(t)

		for i := 0; i < 3; i++ {
			_, err := env.svc.ApplyStrike(ctx, "mod1", "troll", "Harassment", "", "")
			require.NoError(t, err)
		}

		status, err := env.svc.GetStatus(ctx, "troll")
		require.NoError(t, err)
		assert.Equal(t, 3, status.StrikeCount)
		assert.False(t, status.Muted)
		assert.False(t, status.Suspended)
	})

	t.Run("mute is idempotent on status", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.ApplyMute(ctx, "mod1", "troll", "Spam", "", "")
		require.NoError(t, err)
		_, err = env.svc.ApplyMute(ctx, "mod1", "troll", "More spam", "", "")
		require.NoError(t, err)

		status, err := env.svc.GetStatus(ctx, "troll")
		require.NoError(t, err)
		assert.True(t, status.Muted)

		actions, err := env.store.ListActionsByUser(ctx, "troll")
		require.NoError(t, err)
		assert.Len(t, actions, 2)
	})

	t.Run("concurrent warnings all land", func(t *testing.T) {
		env := newTestEnv(t)

		const workers = 50
		var g errgroup.Group
		for i := 0; i < workers; i++ {
			g.Go(func() error {
				_, err := env.svc.ApplyWarning(ctx, "mod1", "troll", "Spam", "", "")
				return err
			})
		}
		require.NoError(t, g.Wait())

		status, err := env.svc.GetStatus(ctx, "troll")
		require.NoError(t, err)
		assert.Equal(t, workers, status.WarningCount)

		actions, err := env.store.ListActionsByUser(ctx, "troll")
		require.NoError(t, err)
		assert.Len(t, actions, workers)
	})
}

func TestApplySuspension(t *testing.T) {
	ctx := context.Background()

	t.Run("seven day window", func(t *testing.T) {
		env := newTestEnv(t)

		actionID, err := env.svc.ApplySuspension(ctx, "mod1", "troll", "Ban evasion", moderation.Suspend7Days, "", "")
		require.NoError(t, err)

		status, err := env.svc.GetStatus(ctx, "troll")
		require.NoError(t, err)
		assert.True(t, status.Suspended)
		require.NotNil(t, status.SuspendedUntil)
		assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), *status.SuspendedUntil, time.Minute)

		action, err := env.store.GetAction(ctx, actionID)
		require.NoError(t, err)
		require.NotNil(t, action)
		require.NotNil(t, action.ExpiresAt)
	})

	t.Run("indefinite has no expiry", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.ApplySuspension(ctx, "mod1", "troll", "Severe abuse", moderation.SuspendIndefinite, "", "")
		require.NoError(t, err)

		status, err := env.svc.GetStatus(ctx, "troll")
		require.NoError(t, err)
		assert.True(t, status.Suspended)
		assert.Nil(t, status.SuspendedUntil)
	})

	t.Run("unknown duration rejected", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.ApplySuspension(ctx, "mod1", "troll", "Spam", moderation.SuspendDuration("14_days"), "", "")
		assert.True(t, moderation.IsKind(err, moderation.KindInvalidArgument))
	})
}

func TestClearOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("clear mute deactivates actions", func(t *testing.T) {
		env := newTestEnv(t)

		actionID, err := env.svc.ApplyMute(ctx, "mod1", "troll", "Spam", "", "")
		require.NoError(t, err)

		require.NoError(t, env.svc.ClearMute(ctx, "mod1", "troll"))

		status, err := env.svc.GetStatus(ctx, "troll")
		require.NoError(t, err)
		assert.False(t, status.Muted)

		action, err := env.store.GetAction(ctx, actionID)
		require.NoError(t, err)
		require.NotNil(t, action)
		assert.False(t, action.Active)
	})

	t.Run("clear suspension requires moderator", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.ApplySuspension(ctx, "mod1", "troll", "Spam", moderation.SuspendIndefinite, "", "")
		require.NoError(t, err)

		err = env.svc.ClearSuspension(ctx, "alice", "troll")
		assert.True(t, moderation.IsKind(err, moderation.KindForbidden))

		require.NoError(t, env.svc.ClearSuspension(ctx, "mod1", "troll"))

		status, err := env.svc.GetStatus(ctx, "troll")
		require.NoError(t, err)
		assert.False(t, status.Suspended)
	})
}

func TestSuspensionExpiry(t *testing.T) {
	ctx := context.Background()

	seedExpired := func(t *testing.T, env testEnv) {
		t.Helper()
		past := time.Now().Add(-time.Hour)
		require.NoError(t, env.store.PutStatus(ctx, moderation.Status{
			UserID:         "troll",
			Suspended:      true,
			SuspendedUntil: &past,
		}))
	}

	t.Run("CanPost reads expired as allowed without persisting", func(t *testing.T) {
		env := newTestEnv(t)
		seedExpired(t, env)

		check, err := env.svc.CanPost(ctx, "troll")
		require.NoError(t, err)
		assert.True(t, check.Allowed)

		// The stored record is still stale
		stored, err := env.store.GetStatus(ctx, "troll")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.True(t, stored.Suspended)
	})

	t.Run("CheckAuthSuspension reads expired as clear without persisting", func(t *testing.T) {
		env := newTestEnv(t)
		seedExpired(t, env)

		check, err := env.svc.CheckAuthSuspension(ctx, "troll")
		require.NoError(t, err)
		assert.False(t, check.Suspended)

		stored, err := env.store.GetStatus(ctx, "troll")
		require.NoError(t, err)
		assert.True(t, stored.Suspended)
	})

	t.Run("ClearExpiredSuspension reconciles the record", func(t *testing.T) {
		env := newTestEnv(t)
		seedExpired(t, env)
		expiries := testutil.ToFloat64(metrics.SuspensionExpiriesTotal)

		require.NoError(t, env.svc.ClearExpiredSuspension(ctx, "troll"))

		stored, err := env.store.GetStatus(ctx, "troll")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.False(t, stored.Suspended)
		assert.Nil(t, stored.SuspendedUntil)
		assert.Equal(t, expiries+1, testutil.ToFloat64(metrics.SuspensionExpiriesTotal))
	})

	t.Run("ClearExpiredSuspension is a no-op for active suspensions", func(t *testing.T) {
		env := newTestEnv(t)
		future := time.Now().Add(time.Hour)
		require.NoError(t, env.store.PutStatus(ctx, moderation.Status{
			UserID:         "troll",
			Suspended:      true,
			SuspendedUntil: &future,
		}))

		require.NoError(t, env.svc.ClearExpiredSuspension(ctx, "troll"))

		stored, err := env.store.GetStatus(ctx, "troll")
		require.NoError(t, err)
		assert.True(t, stored.Suspended)
	})

	t.Run("ClearExpiredSuspension is a no-op for indefinite suspensions", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.store.PutStatus(ctx, moderation.Status{
			UserID:    "troll",
			Suspended: true,
		}))

		require.NoError(t, env.svc.ClearExpiredSuspension(ctx, "troll"))

		stored, err := env.store.GetStatus(ctx, "troll")
		require.NoError(t, err)
		assert.True(t, stored.Suspended)
	})

	t.Run("EnsureCanPost heals the record and allows", func(t *testing.T) {
		env := newTestEnv(t)
		seedExpired(t, env)

		require.NoError(t, env.svc.EnsureCanPost(ctx, "troll"))

		stored, err := env.store.GetStatus(ctx, "troll")
		require.NoError(t, err)
		assert.False(t, stored.Suspended)
	})

	t.Run("EnsureCanPost blocks active suspension and mute", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.ApplySuspension(ctx, "mod1", "troll", "Spam", moderation.SuspendIndefinite, "", "")
		require.NoError(t, err)
		err = env.svc.EnsureCanPost(ctx, "troll")
		assert.True(t, moderation.IsKind(err, moderation.KindSuspended))

		_, err = env.svc.ApplyMute(ctx, "mod1", "bob", "Spam", "", "")
		require.NoError(t, err)
		err = env.svc.EnsureCanPost(ctx, "bob")
		assert.True(t, moderation.IsKind(err, moderation.KindMuted))
	})
}

func TestWarningsForUser(t *testing.T) {
	ctx := context.Background()

	t.Run("active warnings omit moderator identity", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.ApplyWarning(ctx, "mod1", "troll", "Spam", "", "")
		require.NoError(t, err)

		warnings, err := env.svc.MyActiveWarnings(ctx, "troll")
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Equal(t, "Spam", warnings[0].Reason)
		assert.False(t, warnings[0].SeenByUser)
	})

	t.Run("mark seen skips foreign actions", func(t *testing.T) {
		env := newTestEnv(t)

		mine, err := env.svc.ApplyWarning(ctx, "mod1", "troll", "Spam", "", "")
		require.NoError(t, err)
		other, err := env.svc.ApplyWarning(ctx, "mod1", "bob", "Spam", "", "")
		require.NoError(t, err)

		require.NoError(t, env.svc.MarkWarningsSeen(ctx, "troll", []string{mine, other, "ghost"}))

		mineAction, err := env.store.GetAction(ctx, mine)
		require.NoError(t, err)
		assert.True(t, mineAction.SeenByUser)

		otherAction, err := env.store.GetAction(ctx, other)
		require.NoError(t, err)
		assert.False(t, otherAction.SeenByUser)
	})

	t.Run("dismiss warning error kinds", func(t *testing.T) {
		env := newTestEnv(t)

		warning, err := env.svc.ApplyWarning(ctx, "mod1", "troll", "Spam", "", "")
		require.NoError(t, err)
		mute, err := env.svc.ApplyMute(ctx, "mod1", "troll", "Spam", "", "")
		require.NoError(t, err)

		err = env.svc.DismissWarning(ctx, "troll", "ghost")
		assert.True(t, moderation.IsKind(err, moderation.KindNotFound))

		err = env.svc.DismissWarning(ctx, "bob", warning)
		assert.True(t, moderation.IsKind(err, moderation.KindForbidden))

		err = env.svc.DismissWarning(ctx, "troll", mute)
		assert.True(t, moderation.IsKind(err, moderation.KindInvalidActionType))

		require.NoError(t, env.svc.DismissWarning(ctx, "troll", warning))

		warnings, err := env.svc.MyActiveWarnings(ctx, "troll")
		require.NoError(t, err)
		assert.Empty(t, warnings)
	})
}

func TestContentReportFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("reporting missing content fails", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.FileContentReport(ctx, "alice", "ghost", moderation.ReasonSpam, "")
		assert.True(t, moderation.IsKind(err, moderation.KindNotFound))
	})

	t.Run("unknown reason rejected", func(t *testing.T) {
		env := newTestEnv(t)
		memeID := env.newMeme(t, "bob")

		_, err := env.svc.FileContentReport(ctx, "alice", memeID, moderation.ReportReason("rude"), "")
		assert.True(t, moderation.IsKind(err, moderation.KindInvalidArgument))
	})

	t.Run("duplicate message varies with prior status", func(t *testing.T) {
		env := newTestEnv(t)
		memeID := env.newMeme(t, "bob")

		reportID, err := env.svc.FileContentReport(ctx, "alice", memeID, moderation.ReasonSpam, "low effort")
		require.NoError(t, err)

		_, err = env.svc.FileContentReport(ctx, "alice", memeID, moderation.ReasonSpam, "")
		require.True(t, moderation.IsKind(err, moderation.KindAlreadyReported))
		assert.Contains(t, err.Error(), "awaiting review")

		require.NoError(t, env.svc.UpdateReportStatus(ctx, "mod1", moderation.KindContentReport,
			reportID, moderation.ReportResolved, "", moderation.TakenNone))

		_, err = env.svc.FileContentReport(ctx, "alice", memeID, moderation.ReasonSpam, "")
		require.True(t, moderation.IsKind(err, moderation.KindAlreadyReported))
		assert.Contains(t, err.Error(), "has been resolved")

		// A different reporter may still report the same content
		_, err = env.svc.FileContentReport(ctx, "bob", memeID, moderation.ReasonOther, "")
		assert.NoError(t, err)
	})

	t.Run("rate limit caps combined reports per hour", func(t *testing.T) {
		env := newTestEnv(t)

		for i := 0; i < 10; i++ {
			memeID := env.newMeme(t, "bob")
			_, err := env.svc.FileContentReport(ctx, "alice", memeID, moderation.ReasonSpam, "")
			require.NoError(t, err, "report %d", i)
		}

		memeID := env.newMeme(t, "bob")
		_, err := env.svc.FileContentReport(ctx, "alice", memeID, moderation.ReasonSpam, "")
		assert.True(t, moderation.IsKind(err, moderation.KindRateLimited))

		// The user-report ledger shares the same budget
		_, err = env.svc.FileUserReport(ctx, "alice", "troll", moderation.ReasonHarassment, "")
		assert.True(t, moderation.IsKind(err, moderation.KindRateLimited))
	})

	t.Run("content_removed deletes the meme", func(t *testing.T) {
		env := newTestEnv(t)
		memeID := env.newMeme(t, "bob")

		reportID, err := env.svc.FileContentReport(ctx, "alice", memeID, moderation.ReasonInappropriate, "")
		require.NoError(t, err)

		require.NoError(t, env.svc.UpdateReportStatus(ctx, "mod1", moderation.KindContentReport,
			reportID, moderation.ReportResolved, "taken down", moderation.TakenContentRemoved))

		exists, err := env.feed.ContentExists(ctx, memeID)
		require.NoError(t, err)
		assert.False(t, exists)

		report, err := env.store.GetContentReport(ctx, reportID)
		require.NoError(t, err)
		require.NotNil(t, report)
		assert.Equal(t, moderation.ReportResolved, report.Status)
		assert.Equal(t, "mod1", report.ModeratorID)
	})
}

func TestUserReportFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("self report forbidden", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.FileUserReport(ctx, "alice", "alice", moderation.ReasonSpam, "")
		require.True(t, moderation.IsKind(err, moderation.KindSelfReport))
		assert.Contains(t, err.Error(), "You cannot report yourself")
	})

	t.Run("unknown target rejected", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.FileUserReport(ctx, "alice", "ghost", moderation.ReasonSpam, "")
		assert.True(t, moderation.IsKind(err, moderation.KindNotFound))
	})

	t.Run("one report per reporter-target pair", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.FileUserReport(ctx, "alice", "troll", moderation.ReasonHarassment, "")
		require.NoError(t, err)

		_, err = env.svc.FileUserReport(ctx, "alice", "troll", moderation.ReasonSpam, "")
		assert.True(t, moderation.IsKind(err, moderation.KindAlreadyReported))

		_, err = env.svc.FileUserReport(ctx, "bob", "troll", moderation.ReasonSpam, "")
		assert.NoError(t, err)
	})
}

func TestReportListing(t *testing.T) {
	ctx := context.Background()

	t.Run("listing is staff only", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.ListContentReports(ctx, "alice", "", 0)
		assert.True(t, moderation.IsKind(err, moderation.KindForbidden))

		_, err = env.svc.ListUserReports(ctx, "", "", 0)
		assert.True(t, moderation.IsKind(err, moderation.KindUnauthenticated))
	})

	t.Run("content reports enriched with handles", func(t *testing.T) {
		env := newTestEnv(t)
		memeID := env.newMeme(t, "bob")

		_, err := env.svc.FileContentReport(ctx, "alice", memeID, moderation.ReasonSpam, "")
		require.NoError(t, err)

		reports, err := env.svc.ListContentReports(ctx, "mod1", moderation.ReportPending, 0)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.Equal(t, "alice.mlem.example", reports[0].ReporterHandle)
	})

	t.Run("reported users sorted by pending then total", func(t *testing.T) {
		env := newTestEnv(t)

		// troll: two pending reports; bob: one resolved report
		_, err := env.svc.FileUserReport(ctx, "alice", "troll", moderation.ReasonHarassment, "")
		require.NoError(t, err)
		_, err = env.svc.FileUserReport(ctx, "bob", "troll", moderation.ReasonHarassment, "")
		require.NoError(t, err)
		bobReport, err := env.svc.FileUserReport(ctx, "alice", "bob", moderation.ReasonSpam, "")
		require.NoError(t, err)
		require.NoError(t, env.svc.UpdateReportStatus(ctx, "mod1", moderation.KindUserReport,
			bobReport, moderation.ReportDismissed, "", moderation.TakenNone))

		summaries, err := env.svc.ReportedUsersSummary(ctx, "mod1")
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, "troll", summaries[0].UserID)
		assert.Equal(t, 2, summaries[0].Pending)
		assert.Equal(t, "troll.mlem.example", summaries[0].Handle)
		assert.Equal(t, "bob", summaries[1].UserID)
		assert.Equal(t, 0, summaries[1].Pending)
		assert.Equal(t, 1, summaries[1].Total)
	})
}

func TestModerationHistory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := env.svc.ApplyWarning(ctx, "mod1", "troll", fmt.Sprintf("Spam %d", i), "", "")
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(time.Millisecond)
	}

	t.Run("staff only", func(t *testing.T) {
		_, err := env.svc.ModerationHistory(ctx, "alice", "troll")
		assert.True(t, moderation.IsKind(err, moderation.KindForbidden))
	})

	t.Run("newest first with moderator handles", func(t *testing.T) {
		history, err := env.svc.ModerationHistory(ctx, "admin1", "troll")
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, ids[2], history[0].ID)
		assert.Equal(t, ids[0], history[2].ID)
		assert.Equal(t, "mod1.mlem.example", history[0].ModeratorHandle)
	})
}
