package moderation

import (
	"context"
	"time"
)

// Store defines the persistence interface for moderation data.
// Implementations must be safe for concurrent use, and each method must
// execute as a single transaction so check-then-act sequences inside it
// are atomic.
type Store interface {
	// Statuses
	// GetStatus returns nil (no error) when the user has no record.
	GetStatus(ctx context.Context, userID string) (*Status, error)
	PutStatus(ctx context.Context, status Status) error
	// MutateStatus runs the read-mutate-write of a user's record in one
	// transaction. mutate receives a zero status when no record exists yet;
	// the mutated status is persisted before MutateStatus returns.
	MutateStatus(ctx context.Context, userID string, mutate func(*Status)) error

	// Actions
	CreateAction(ctx context.Context, action Action) error
	GetAction(ctx context.Context, id string) (*Action, error)
	UpdateAction(ctx context.Context, action Action) error
	// ListActionsByUser returns the user's actions newest-first.
	ListActionsByUser(ctx context.Context, userID string) ([]Action, error)
	// ListActiveActionsByUser returns the user's active actions of the
	// given type, newest-first.
	ListActiveActionsByUser(ctx context.Context, userID string, actionType ActionType) ([]Action, error)

	// Content reports
	CreateContentReport(ctx context.Context, report ContentReport) error
	GetContentReport(ctx context.Context, id string) (*ContentReport, error)
	// FindContentReportByPair returns nil (no error) when the reporter has
	// not reported the target.
	FindContentReportByPair(ctx context.Context, reporterID, targetContentID string) (*ContentReport, error)
	UpdateContentReport(ctx context.Context, report ContentReport) error
	// ListContentReports returns reports newest-first, optionally filtered
	// by status. A limit <= 0 means no limit.
	ListContentReports(ctx context.Context, statusFilter ReportStatus, limit int) ([]ContentReport, error)
	CountContentReportsSince(ctx context.Context, reporterID string, since time.Time) (int, error)

	// User reports
	CreateUserReport(ctx context.Context, report UserReport) error
	GetUserReport(ctx context.Context, id string) (*UserReport, error)
	FindUserReportByPair(ctx context.Context, reporterID, reportedUserID string) (*UserReport, error)
	UpdateUserReport(ctx context.Context, report UserReport) error
	ListUserReports(ctx context.Context, statusFilter ReportStatus, limit int) ([]UserReport, error)
	// ListAllUserReports returns every user report regardless of status,
	// oldest-first (insertion order).
	ListAllUserReports(ctx context.Context) ([]UserReport, error)
	CountUserReportsSince(ctx context.Context, reporterID string, since time.Time) (int, error)
}
