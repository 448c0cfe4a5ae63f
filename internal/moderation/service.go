package moderation

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iceinvein/mlem/internal/identity"
	"github.com/iceinvein/mlem/internal/metrics"
	"github.com/iceinvein/mlem/internal/tracing"
)

// RoleResolver resolves a user's access level. Satisfied by
// *identity.Service.
type RoleResolver interface {
	RoleFor(userID string) identity.Role
}

// ContentStore is the minimal surface of the content collaborator the
// moderation core needs: existence checks when filing content reports and
// deletion when a report is resolved with content_removed.
type ContentStore interface {
	ContentExists(ctx context.Context, contentID string) (bool, error)
	DeleteContent(ctx context.Context, contentID string) error
}

// Notifier is told about applied actions so the affected user can be
// notified out of band. Notification failures never fail the action.
type Notifier interface {
	ActionApplied(ctx context.Context, action Action) error
}

// Service implements the moderation core: the report ledger, the per-user
// enforcement record, the action log, and expiry reconciliation.
type Service struct {
	store    Store
	content  ContentStore
	roles    RoleResolver
	dir      identity.Directory
	notifier Notifier
}

// NewService creates a moderation service with its collaborators.
func NewService(store Store, content ContentStore, roles RoleResolver, dir identity.Directory) *Service {
	return &Service{
		store:   store,
		content: content,
		roles:   roles,
		dir:     dir,
	}
}

// SetNotifier installs an optional notifier for applied actions.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// requireRole gates an operation on the caller's role.
func (s *Service) requireRole(callerID string, min identity.Role) error {
	if callerID == "" {
		return errUnauthenticated()
	}
	if !s.roles.RoleFor(callerID).AtLeast(min) {
		log.Warn().
			Str("caller", callerID).
			Str("required_role", string(min)).
			Msg("moderation: denied, insufficient role")
		return errForbidden()
	}
	return nil
}

// GetStatus returns the user's enforcement record, or a clean zero status
// when none exists. Callers cannot distinguish "never moderated" from
// "explicitly cleared".
func (s *Service) GetStatus(ctx context.Context, userID string) (Status, error) {
	stored, err := s.store.GetStatus(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	if stored == nil {
		return Status{UserID: userID}, nil
	}
	return *stored, nil
}

// applyAction runs the shared role gate, status mutation, and action-log
// append for the four apply operations. Returns the new action's ID.
func (s *Service) applyAction(
	ctx context.Context,
	callerID, userID string,
	actionType ActionType,
	reason, notes, relatedReportID string,
	expiresAt *time.Time,
	mutate func(*Status, time.Time),
) (_ string, err error) {
	ctx, span := tracing.ModerationSpan(ctx, string(actionType), userID)
	defer func() {
		tracing.EndWithError(span, err)
		span.End()
	}()

	if err := s.requireRole(callerID, identity.RoleModerator); err != nil {
		return "", err
	}
	if strings.TrimSpace(reason) == "" {
		return "", NewError(KindInvalidArgument, "A reason is required")
	}

	now := time.Now()

	// A single store transaction, so concurrent actions against the same
	// user cannot lose each other's increments.
	if err := s.store.MutateStatus(ctx, userID, func(st *Status) {
		mutate(st, now)
	}); err != nil {
		return "", err
	}

	action := Action{
		ID:              NewID(),
		UserID:          userID,
		ModeratorID:     callerID,
		Type:            actionType,
		Reason:          strings.TrimSpace(reason),
		Notes:           notes,
		RelatedReportID: relatedReportID,
		ExpiresAt:       expiresAt,
		Active:          true,
		CreatedAt:       now,
	}
	if err := s.store.CreateAction(ctx, action); err != nil {
		return "", err
	}

	log.Info().
		Str("action_id", action.ID).
		Str("type", string(actionType)).
		Str("target", userID).
		Str("by", callerID).
		Str("reason", action.Reason).
		Msg("moderation: action applied")

	if s.notifier != nil {
		if err := s.notifier.ActionApplied(ctx, action); err != nil {
			log.Error().Err(err).
				Str("action_id", action.ID).
				Msg("moderation: action notification failed")
		}
	}

	return action.ID, nil
}

// ApplyWarning issues a warning against a user. Moderator or admin only.
func (s *Service) ApplyWarning(ctx context.Context, callerID, userID, reason, notes, relatedReportID string) (string, error) {
	return s.applyAction(ctx, callerID, userID, ActionWarning, reason, notes, relatedReportID, nil,
		func(st *Status, now time.Time) {
			st.WarningCount++
			st.LastWarningAt = &now
		})
}

// ApplyStrike issues a strike against a user. Strikes accumulate but do not
// escalate automatically; escalation to a mute or suspension is a separate
// moderator action.
func (s *Service) ApplyStrike(ctx context.Context, callerID, userID, reason, notes, relatedReportID string) (string, error) {
	return s.applyAction(ctx, callerID, userID, ActionStrike, reason, notes, relatedReportID, nil,
		func(st *Status, now time.Time) {
			st.StrikeCount++
			st.LastStrikeAt = &now
		})
}

// ApplyMute mutes a user platform-wide. Re-muting an already muted user
// appends another action but leaves the status unchanged.
func (s *Service) ApplyMute(ctx context.Context, callerID, userID, reason, notes, relatedReportID string) (string, error) {
	return s.applyAction(ctx, callerID, userID, ActionMute, reason, notes, relatedReportID, nil,
		func(st *Status, now time.Time) {
			st.Muted = true
		})
}

// ApplySuspension suspends a user for the given duration. Indefinite
// suspensions carry no expiry.
func (s *Service) ApplySuspension(ctx context.Context, callerID, userID, reason string, duration SuspendDuration, notes, relatedReportID string) (string, error) {
	if !duration.Valid() {
		return "", NewError(KindInvalidArgument, "Unknown suspension duration")
	}

	var expiresAt *time.Time
	if window, bounded := duration.Window(); bounded {
		t := time.Now().Add(window)
		expiresAt = &t
	}

	return s.applyAction(ctx, callerID, userID, ActionSuspend, reason, notes, relatedReportID, expiresAt,
		func(st *Status, now time.Time) {
			st.Suspended = true
			st.SuspendedUntil = expiresAt
		})
}

// deactivateActions marks every currently-active action of the given type
// inactive for the user.
func (s *Service) deactivateActions(ctx context.Context, userID string, actionType ActionType) error {
	active, err := s.store.ListActiveActionsByUser(ctx, userID, actionType)
	if err != nil {
		return err
	}
	for _, action := range active {
		action.Active = false
		if err := s.store.UpdateAction(ctx, action); err != nil {
			return err
		}
	}
	return nil
}

// ClearMute unmutes a user and deactivates all active mute actions.
// Moderator or admin only.
func (s *Service) ClearMute(ctx context.Context, callerID, userID string) error {
	if err := s.requireRole(callerID, identity.RoleModerator); err != nil {
		return err
	}

	if err := s.store.MutateStatus(ctx, userID, func(st *Status) {
		st.Muted = false
	}); err != nil {
		return err
	}

	if err := s.deactivateActions(ctx, userID, ActionMute); err != nil {
		return err
	}

	log.Info().Str("target", userID).Str("by", callerID).Msg("moderation: mute cleared")
	return nil
}

// ClearSuspension lifts a user's suspension and deactivates all active
// suspend actions. Moderator or admin only.
func (s *Service) ClearSuspension(ctx context.Context, callerID, userID string) error {
	if err := s.requireRole(callerID, identity.RoleModerator); err != nil {
		return err
	}
	if err := s.liftSuspension(ctx, userID); err != nil {
		return err
	}

	log.Info().Str("target", userID).Str("by", callerID).Msg("moderation: suspension cleared")
	return nil
}

// liftSuspension clears the suspension flags and deactivates the active
// suspend actions.
func (s *Service) liftSuspension(ctx context.Context, userID string) error {
	if err := s.store.MutateStatus(ctx, userID, func(st *Status) {
		st.Suspended = false
		st.SuspendedUntil = nil
	}); err != nil {
		return err
	}
	return s.deactivateActions(ctx, userID, ActionSuspend)
}

// ClearExpiredSuspension reconciles a lapsed suspension back to active
// status. It is a no-op when the user is not suspended, suspended
// indefinitely, or the suspension has not yet expired. The affected user may
// call this on themselves; it also runs inline in mutation paths.
func (s *Service) ClearExpiredSuspension(ctx context.Context, userID string) (err error) {
	stored, err := s.store.GetStatus(ctx, userID)
	if err != nil {
		return err
	}
	if stored == nil || !suspensionExpired(*stored, time.Now()) {
		return nil
	}

	ctx, span := tracing.ModerationSpan(ctx, "clear_expired_suspension", userID)
	defer func() {
		tracing.EndWithError(span, err)
		span.End()
	}()

	if err := s.liftSuspension(ctx, userID); err != nil {
		return err
	}

	metrics.SuspensionExpiriesTotal.Inc()
	log.Info().Str("target", userID).Msg("moderation: expired suspension reconciled")
	return nil
}

// CanPost decides whether the user may post or comment right now. This is
// a pure read: a suspension that has lapsed reads as allowed but the stored
// record is not corrected here.
func (s *Service) CanPost(ctx context.Context, userID string) (PostCheck, error) {
	status, err := s.GetStatus(ctx, userID)
	if err != nil {
		return PostCheck{}, err
	}
	return CanPost(status, time.Now()), nil
}

// CheckAuthSuspension is the session-checkpoint view of the user's
// enforcement state. Same read-only staleness contract as CanPost.
func (s *Service) CheckAuthSuspension(ctx context.Context, userID string) (AuthCheck, error) {
	status, err := s.GetStatus(ctx, userID)
	if err != nil {
		return AuthCheck{}, err
	}
	return CheckAuth(status, time.Now()), nil
}

// EnsureCanPost is the mutation-path enforcement check. Unlike CanPost it
// persists the expiry correction before deciding, so every state-changing
// entry point self-heals a stale suspension flag. Returns a Suspended or
// Muted kinded error when the caller is blocked.
func (s *Service) EnsureCanPost(ctx context.Context, userID string) error {
	if err := s.ClearExpiredSuspension(ctx, userID); err != nil {
		return err
	}

	status, err := s.GetStatus(ctx, userID)
	if err != nil {
		return err
	}
	eff := EffectiveStatus(status, time.Now())
	if eff.Suspended {
		return NewError(KindSuspended, suspensionReason(eff))
	}
	if eff.Muted {
		return NewError(KindMuted, mutedMessage)
	}
	return nil
}

// ModerationHistory returns a user's full action log, newest-first, with
// the acting moderators resolved. Moderator or admin only.
func (s *Service) ModerationHistory(ctx context.Context, callerID, userID string) ([]HistoryEntry, error) {
	if err := s.requireRole(callerID, identity.RoleModerator); err != nil {
		return nil, err
	}

	actions, err := s.store.ListActionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	handles := make(map[string]string)
	entries := make([]HistoryEntry, 0, len(actions))
	for _, action := range actions {
		entry := HistoryEntry{Action: action}
		if handle, ok := handles[action.ModeratorID]; ok {
			entry.ModeratorHandle = handle
		} else if info, err := s.dir.Lookup(ctx, action.ModeratorID); err == nil {
			handles[action.ModeratorID] = info.Handle
			entry.ModeratorHandle = info.Handle
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// MyActiveWarnings returns the caller's own active warnings. The acting
// moderator's identity is not included.
func (s *Service) MyActiveWarnings(ctx context.Context, callerID string) ([]UserWarning, error) {
	if callerID == "" {
		return nil, errUnauthenticated()
	}

	actions, err := s.store.ListActiveActionsByUser(ctx, callerID, ActionWarning)
	if err != nil {
		return nil, err
	}

	warnings := make([]UserWarning, 0, len(actions))
	for _, action := range actions {
		warnings = append(warnings, UserWarning{
			ID:         action.ID,
			Type:       action.Type,
			Reason:     action.Reason,
			ExpiresAt:  action.ExpiresAt,
			SeenByUser: action.SeenByUser,
			CreatedAt:  action.CreatedAt,
		})
	}
	return warnings, nil
}

// MarkWarningsSeen acknowledges the given actions for the caller. Actions
// that do not exist or target a different user are silently skipped.
func (s *Service) MarkWarningsSeen(ctx context.Context, callerID string, actionIDs []string) error {
	if callerID == "" {
		return errUnauthenticated()
	}

	for _, id := range actionIDs {
		action, err := s.store.GetAction(ctx, id)
		if err != nil {
			return err
		}
		if action == nil || action.UserID != callerID {
			continue
		}
		action.SeenByUser = true
		if err := s.store.UpdateAction(ctx, *action); err != nil {
			return err
		}
	}
	return nil
}

// DismissWarning deactivates one of the caller's own warnings. Only the
// warning type is dismissible by its target; mutes, suspensions, and strikes
// can only be lifted by a moderator.
func (s *Service) DismissWarning(ctx context.Context, callerID, actionID string) error {
	if callerID == "" {
		return errUnauthenticated()
	}

	action, err := s.store.GetAction(ctx, actionID)
	if err != nil {
		return err
	}
	if action == nil {
		return NewError(KindNotFound, "Warning not found")
	}
	if action.UserID != callerID {
		return NewError(KindForbidden, "You can only dismiss your own warnings")
	}
	if action.Type != ActionWarning {
		return NewError(KindInvalidActionType, "Only warnings can be dismissed")
	}

	action.Active = false
	if err := s.store.UpdateAction(ctx, *action); err != nil {
		return err
	}

	log.Info().Str("action_id", actionID).Str("by", callerID).Msg("moderation: warning dismissed")
	return nil
}
