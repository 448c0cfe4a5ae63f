package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iceinvein/mlem/internal/moderation"
)

func TestActionMessage(t *testing.T) {
	t.Run("warning", func(t *testing.T) {
		subject, body := actionMessage(moderation.Action{
			Type:   moderation.ActionWarning,
			Reason: "spamming the feed",
		})
		assert.Equal(t, "You have received a warning on mlem", subject)
		assert.Contains(t, body, "Reason: spamming the feed")
	})

	t.Run("timed suspension names the expiry", func(t *testing.T) {
		until := time.Date(2026, 9, 6, 12, 0, 0, 0, time.UTC)
		subject, body := actionMessage(moderation.Action{
			Type:      moderation.ActionSuspend,
			Reason:    "repeated abuse",
			ExpiresAt: &until,
		})
		assert.Equal(t, "Your mlem account has been suspended", subject)
		assert.Contains(t, body, "Sat, 06 Sep 2026")
	})

	t.Run("indefinite suspension", func(t *testing.T) {
		_, body := actionMessage(moderation.Action{
			Type:   moderation.ActionSuspend,
			Reason: "ban evasion",
		})
		assert.Contains(t, body, "suspended indefinitely")
	})
}

func TestNotifierDisabledSenderIsNoop(t *testing.T) {
	notifier := NewModerationNotifier(NewSender(Config{}), nil)

	err := notifier.ActionApplied(t.Context(), moderation.Action{
		Type:   moderation.ActionMute,
		UserID: "troll",
		Reason: "pile-on",
	})
	assert.NoError(t, err)
}
