package moderation

import "time"

// ActionType represents a kind of moderator action against a user.
type ActionType string

const (
	ActionWarning ActionType = "warning"
	ActionStrike  ActionType = "strike"
	ActionMute    ActionType = "mute"
	ActionSuspend ActionType = "suspend"
)

// SuspendDuration represents how long a suspension lasts.
type SuspendDuration string

const (
	Suspend7Days      SuspendDuration = "7_days"
	Suspend30Days     SuspendDuration = "30_days"
	Suspend90Days     SuspendDuration = "90_days"
	SuspendIndefinite SuspendDuration = "indefinite"
)

// Window returns the suspension length and whether it is time-bound.
// Indefinite suspensions have no window.
func (d SuspendDuration) Window() (time.Duration, bool) {
	switch d {
	case Suspend7Days:
		return 7 * 24 * time.Hour, true
	case Suspend30Days:
		return 30 * 24 * time.Hour, true
	case Suspend90Days:
		return 90 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Valid reports whether the duration is one of the known values.
func (d SuspendDuration) Valid() bool {
	switch d {
	case Suspend7Days, Suspend30Days, Suspend90Days, SuspendIndefinite:
		return true
	}
	return false
}

// Status is the per-user enforcement record. It is created lazily on the
// first moderation action; a user without a record is treated as the zero
// value (clean status).
type Status struct {
	UserID         string     `json:"user_id"`
	WarningCount   int        `json:"warning_count"`
	StrikeCount    int        `json:"strike_count"`
	Muted          bool       `json:"muted"`
	Suspended      bool       `json:"suspended"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"` // nil while Suspended means indefinite
	LastWarningAt  *time.Time `json:"last_warning_at,omitempty"`
	LastStrikeAt   *time.Time `json:"last_strike_at,omitempty"`
}

// Action is one append-only entry in the moderation action log.
type Action struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"` // target
	ModeratorID     string     `json:"moderator_id"`
	Type            ActionType `json:"type"`
	Reason          string     `json:"reason"`
	Notes           string     `json:"notes,omitempty"`
	RelatedReportID string     `json:"related_report_id,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"` // set only for suspend
	Active          bool       `json:"active"`
	SeenByUser      bool       `json:"seen_by_user,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ReportStatus represents the review status of a report.
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportReviewed  ReportStatus = "reviewed"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// Valid reports whether the status is one of the known values.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPending, ReportReviewed, ReportResolved, ReportDismissed:
		return true
	}
	return false
}

// ReportReason classifies why content or a user was reported.
type ReportReason string

const (
	ReasonSpam          ReportReason = "spam"
	ReasonHarassment    ReportReason = "harassment"
	ReasonInappropriate ReportReason = "inappropriate"
	ReasonCopyright     ReportReason = "copyright"
	ReasonOther         ReportReason = "other"
)

// Valid reports whether the reason is one of the known values.
func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonHarassment, ReasonInappropriate, ReasonCopyright, ReasonOther:
		return true
	}
	return false
}

// ActionTaken records what a moderator did when closing a report.
type ActionTaken string

const (
	TakenNone           ActionTaken = "none"
	TakenWarningIssued  ActionTaken = "warning_issued"
	TakenContentRemoved ActionTaken = "content_removed"
	TakenUserMuted      ActionTaken = "user_muted"
	TakenUserSuspended  ActionTaken = "user_suspended"
)

// ContentReport is a user report against a specific piece of content.
// A reporter may file at most one report per target content.
type ContentReport struct {
	ID              string       `json:"id"`
	ReporterID      string       `json:"reporter_id"`
	TargetContentID string       `json:"target_content_id"`
	Reason          ReportReason `json:"reason"`
	Description     string       `json:"description,omitempty"`
	Status          ReportStatus `json:"status"`
	ModeratorID     string       `json:"moderator_id,omitempty"`
	ModeratorNotes  string       `json:"moderator_notes,omitempty"`
	ActionTaken     ActionTaken  `json:"action_taken,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// UserReport is a report against an account's general behavior.
// A reporter may file at most one report per reported user; self-reports
// are forbidden.
type UserReport struct {
	ID             string       `json:"id"`
	ReporterID     string       `json:"reporter_id"`
	ReportedUserID string       `json:"reported_user_id"`
	Reason         ReportReason `json:"reason"`
	Description    string       `json:"description,omitempty"`
	Status         ReportStatus `json:"status"`
	ModeratorID    string       `json:"moderator_id,omitempty"`
	ModeratorNotes string       `json:"moderator_notes,omitempty"`
	ActionTaken    ActionTaken  `json:"action_taken,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ReportKind distinguishes the two report ledgers.
type ReportKind string

const (
	KindContentReport ReportKind = "content"
	KindUserReport    ReportKind = "user"
)

// ReportedUserSummary aggregates user-reports per reported account.
type ReportedUserSummary struct {
	UserID  string `json:"user_id"`
	Handle  string `json:"handle,omitempty"`
	Total   int    `json:"total"`
	Pending int    `json:"pending"`
}

// EnrichedContentReport is a content report with display data resolved.
type EnrichedContentReport struct {
	ContentReport
	ReporterHandle  string `json:"reporter_handle,omitempty"`
	ModeratorHandle string `json:"moderator_handle,omitempty"`
}

// EnrichedUserReport is a user report with display data resolved.
type EnrichedUserReport struct {
	UserReport
	ReporterHandle  string `json:"reporter_handle,omitempty"`
	ReportedHandle  string `json:"reported_handle,omitempty"`
	ModeratorHandle string `json:"moderator_handle,omitempty"`
}

// HistoryEntry is a moderation action with the acting moderator resolved.
type HistoryEntry struct {
	Action
	ModeratorHandle string `json:"moderator_handle,omitempty"`
}

// UserWarning is the restricted view of an action exposed to its target.
// The acting moderator's identity is deliberately omitted.
type UserWarning struct {
	ID         string     `json:"id"`
	Type       ActionType `json:"type"`
	Reason     string     `json:"reason"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	SeenByUser bool       `json:"seen_by_user"`
	CreatedAt  time.Time  `json:"created_at"`
}
