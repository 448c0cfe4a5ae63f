package email

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iceinvein/mlem/internal/identity"
	"github.com/iceinvein/mlem/internal/moderation"
)

// ModerationNotifier emails users when a moderation action is applied to
// their account. Users without a known email address are skipped.
type ModerationNotifier struct {
	sender *Sender
	dir    identity.Directory
}

// NewModerationNotifier creates a notifier that resolves recipients through
// the given directory.
func NewModerationNotifier(sender *Sender, dir identity.Directory) *ModerationNotifier {
	return &ModerationNotifier{sender: sender, dir: dir}
}

// ActionApplied sends the affected user a summary of the action.
func (n *ModerationNotifier) ActionApplied(ctx context.Context, action moderation.Action) error {
	if !n.sender.Enabled() {
		return nil
	}

	info, err := n.dir.Lookup(ctx, action.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	if info.Email == "" {
		log.Debug().Str("user", action.UserID).Msg("email: no address on file, skipping notification")
		return nil
	}

	subject, body := actionMessage(action)
	return n.sender.Send(info.Email, subject, body)
}

// actionMessage composes the subject and body for an action notification.
func actionMessage(action moderation.Action) (string, string) {
	var subject, summary string
	switch action.Type {
	case moderation.ActionWarning:
		subject = "You have received a warning on mlem"
		summary = "A moderator has issued a warning against your account."
	case moderation.ActionStrike:
		subject = "You have received a strike on mlem"
		summary = "A moderator has issued a strike against your account. Accumulated strikes may lead to a mute or suspension."
	case moderation.ActionMute:
		subject = "Your mlem account has been muted"
		summary = "Your account has been muted. You cannot post memes or comments until a moderator lifts the mute."
	case moderation.ActionSuspend:
		subject = "Your mlem account has been suspended"
		if action.ExpiresAt != nil {
			summary = "Your account has been suspended until " + action.ExpiresAt.UTC().Format(time.RFC1123) + "."
		} else {
			summary = "Your account has been suspended indefinitely."
		}
	default:
		subject = "Moderation notice from mlem"
		summary = "A moderator has taken action on your account."
	}

	body := summary + "\n\nReason: " + action.Reason + "\n"
	return subject, body
}
