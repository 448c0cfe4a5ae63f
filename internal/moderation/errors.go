package moderation

import "errors"

// ErrorKind classifies a moderation failure so callers can map it to a
// transport-level response without string matching.
type ErrorKind string

const (
	KindUnauthenticated   ErrorKind = "unauthenticated"
	KindForbidden         ErrorKind = "forbidden"
	KindNotFound          ErrorKind = "not_found"
	KindAlreadyReported   ErrorKind = "already_reported"
	KindSelfReport        ErrorKind = "self_report"
	KindSelfMute          ErrorKind = "self_mute"
	KindInvalidActionType ErrorKind = "invalid_action_type"
	KindInvalidArgument   ErrorKind = "invalid_argument"
	KindRateLimited       ErrorKind = "rate_limited"
	KindSuspended         ErrorKind = "suspended"
	KindMuted             ErrorKind = "muted"
)

// Error is a moderation failure with a machine-readable kind and a
// user-facing message.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewError creates a kinded moderation error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// IsKind reports whether err is a moderation error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var me *Error
	return errors.As(err, &me) && me.Kind == kind
}

// KindOf returns the kind of a moderation error, or empty string for other
// errors.
func KindOf(err error) ErrorKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// duplicateReportMessage returns the user-facing message for a duplicate
// report, which varies with the prior report's review status.
func duplicateReportMessage(prior ReportStatus) string {
	switch prior {
	case ReportReviewed:
		return "You have already reported this and it is being reviewed"
	case ReportResolved:
		return "You have already reported this and it has been resolved"
	case ReportDismissed:
		return "You have already reported this and it was dismissed"
	default:
		return "You have already reported this and it is awaiting review"
	}
}

func errUnauthenticated() *Error {
	return NewError(KindUnauthenticated, "Authentication required")
}

func errForbidden() *Error {
	return NewError(KindForbidden, "You do not have permission to perform this action")
}
