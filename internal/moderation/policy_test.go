package moderation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanPost(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	t.Run("clean user may post", func(t *testing.T) {
		check := CanPost(Status{UserID: "u"}, now)
		assert.True(t, check.Allowed)
		assert.Empty(t, check.Reason)
	})

	t.Run("muted user is blocked", func(t *testing.T) {
		check := CanPost(Status{UserID: "u", Muted: true}, now)
		assert.False(t, check.Allowed)
		assert.Equal(t, "You are muted and cannot post or comment", check.Reason)
	})

	t.Run("indefinite suspension blocks", func(t *testing.T) {
		check := CanPost(Status{UserID: "u", Suspended: true}, now)
		assert.False(t, check.Allowed)
		assert.Equal(t, "Suspended indefinitely", check.Reason)
	})

	t.Run("timed suspension blocks until expiry", func(t *testing.T) {
		check := CanPost(Status{UserID: "u", Suspended: true, SuspendedUntil: &future}, now)
		assert.False(t, check.Allowed)
		assert.Contains(t, check.Reason, "Suspended until")
	})

	t.Run("expired suspension reads as allowed", func(t *testing.T) {
		check := CanPost(Status{UserID: "u", Suspended: true, SuspendedUntil: &past}, now)
		assert.True(t, check.Allowed)
	})

	t.Run("suspension takes precedence over mute", func(t *testing.T) {
		check := CanPost(Status{UserID: "u", Muted: true, Suspended: true}, now)
		assert.False(t, check.Allowed)
		assert.Equal(t, "Suspended indefinitely", check.Reason)
	})

	t.Run("expired suspension still blocked when also muted", func(t *testing.T) {
		check := CanPost(Status{UserID: "u", Muted: true, Suspended: true, SuspendedUntil: &past}, now)
		assert.False(t, check.Allowed)
		assert.Equal(t, "You are muted and cannot post or comment", check.Reason)
	})
}

func TestCheckAuth(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	t.Run("clean user", func(t *testing.T) {
		check := CheckAuth(Status{UserID: "u"}, now)
		assert.False(t, check.Suspended)
		assert.False(t, check.Muted)
	})

	t.Run("active timed suspension", func(t *testing.T) {
		check := CheckAuth(Status{UserID: "u", Suspended: true, SuspendedUntil: &future}, now)
		assert.True(t, check.Suspended)
		assert.NotNil(t, check.SuspendedUntil)
		assert.Contains(t, check.Reason, "Suspended until")
	})

	t.Run("expired suspension reads as clear", func(t *testing.T) {
		check := CheckAuth(Status{UserID: "u", Suspended: true, SuspendedUntil: &past}, now)
		assert.False(t, check.Suspended)
		assert.Nil(t, check.SuspendedUntil)
	})

	t.Run("mute is reported", func(t *testing.T) {
		check := CheckAuth(Status{UserID: "u", Muted: true}, now)
		assert.False(t, check.Suspended)
		assert.True(t, check.Muted)
	})
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	t.Run("lapsed suspension cleared in view only", func(t *testing.T) {
		stored := Status{UserID: "u", Suspended: true, SuspendedUntil: &past, WarningCount: 2}
		eff := EffectiveStatus(stored, now)
		assert.False(t, eff.Suspended)
		assert.Nil(t, eff.SuspendedUntil)
		assert.Equal(t, 2, eff.WarningCount)
		// the input is untouched
		assert.True(t, stored.Suspended)
	})

	t.Run("boundary instant counts as expired", func(t *testing.T) {
		at := now
		eff := EffectiveStatus(Status{UserID: "u", Suspended: true, SuspendedUntil: &at}, now)
		assert.False(t, eff.Suspended)
	})
}

func TestSuspendDurationWindow(t *testing.T) {
	tests := []struct {
		duration SuspendDuration
		want     time.Duration
		bounded  bool
	}{
		{Suspend7Days, 7 * 24 * time.Hour, true},
		{Suspend30Days, 30 * 24 * time.Hour, true},
		{Suspend90Days, 90 * 24 * time.Hour, true},
		{SuspendIndefinite, 0, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.duration), func(t *testing.T) {
			window, bounded := tt.duration.Window()
			assert.Equal(t, tt.want, window)
			assert.Equal(t, tt.bounded, bounded)
		})
	}

	assert.False(t, SuspendDuration("14_days").Valid())
}

func TestDuplicateReportMessages(t *testing.T) {
	assert.Equal(t, "You have already reported this and it is awaiting review", duplicateReportMessage(ReportPending))
	assert.Equal(t, "You have already reported this and it is being reviewed", duplicateReportMessage(ReportReviewed))
	assert.Equal(t, "You have already reported this and it has been resolved", duplicateReportMessage(ReportResolved))
	assert.Equal(t, "You have already reported this and it was dismissed", duplicateReportMessage(ReportDismissed))
}
