package moderation

import "time"

// This file holds the pure enforcement decisions. Nothing here touches the
// store: an expired suspension is cleared only in the returned value, and
// the persisted record stays stale until a mutation reconciles it (see
// Service.ClearExpiredSuspension and Service.EnsureCanPost).

const mutedMessage = "You are muted and cannot post or comment"

// suspensionExpired reports whether a time-bound suspension has lapsed.
func suspensionExpired(s Status, now time.Time) bool {
	return s.Suspended && s.SuspendedUntil != nil && !s.SuspendedUntil.After(now)
}

// EffectiveStatus computes the status as of now, clearing a lapsed
// suspension in the returned copy only.
func EffectiveStatus(s Status, now time.Time) Status {
	if suspensionExpired(s, now) {
		s.Suspended = false
		s.SuspendedUntil = nil
	}
	return s
}

// PostCheck is the result of a posting permission check.
type PostCheck struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CanPost decides whether a user with the given stored status may post or
// comment as of now. Suspension takes precedence over mute.
func CanPost(s Status, now time.Time) PostCheck {
	eff := EffectiveStatus(s, now)

	if eff.Suspended {
		return PostCheck{Allowed: false, Reason: suspensionReason(eff)}
	}
	if eff.Muted {
		return PostCheck{Allowed: false, Reason: mutedMessage}
	}
	return PostCheck{Allowed: true}
}

// AuthCheck is the enforcement summary used at session checkpoints.
type AuthCheck struct {
	Suspended      bool       `json:"suspended"`
	Muted          bool       `json:"muted"`
	Reason         string     `json:"reason,omitempty"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
}

// CheckAuth computes the session-checkpoint view of a stored status as of
// now. Like CanPost it never persists the expiry correction.
func CheckAuth(s Status, now time.Time) AuthCheck {
	eff := EffectiveStatus(s, now)

	check := AuthCheck{
		Suspended:      eff.Suspended,
		Muted:          eff.Muted,
		SuspendedUntil: eff.SuspendedUntil,
	}
	if eff.Suspended {
		check.Reason = suspensionReason(eff)
	} else if eff.Muted {
		check.Reason = mutedMessage
	}
	return check
}

func suspensionReason(s Status) string {
	if s.SuspendedUntil == nil {
		return "Suspended indefinitely"
	}
	return "Suspended until " + s.SuspendedUntil.UTC().Format(time.RFC1123)
}
