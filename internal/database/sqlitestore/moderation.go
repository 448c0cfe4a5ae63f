package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iceinvein/mlem/internal/moderation"
)

// ModerationStore implements moderation.Store using SQLite.
type ModerationStore struct {
	db *sql.DB
}

// NewModerationStore creates a ModerationStore backed by the given database.
// The database must already have the moderation schema applied; Open does
// that.
func NewModerationStore(db *sql.DB) *ModerationStore {
	return &ModerationStore{db: db}
}

// Ensure ModerationStore implements the interface at compile time.
var _ moderation.Store = (*ModerationStore)(nil)

// timeArg formats an optional time for storage. SQLite has no native time
// type; times are stored as RFC3339Nano strings so lexicographic order
// matches chronological order.
func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func scanTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse stored time: %w", err)
	}
	return &t, nil
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ========== Statuses ==========

func (s *ModerationStore) GetStatus(ctx context.Context, userID string) (*moderation.Status, error) {
	var (
		status         moderation.Status
		muted, susp    int
		suspendedUntil sql.NullString
		lastWarning    sql.NullString
		lastStrike     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, warning_count, strike_count, muted, suspended,
		       suspended_until, last_warning_at, last_strike_at
		FROM moderation_statuses WHERE user_id = ?
	`, userID).Scan(&status.UserID, &status.WarningCount, &status.StrikeCount,
		&muted, &susp, &suspendedUntil, &lastWarning, &lastStrike)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	status.Muted = muted == 1
	status.Suspended = susp == 1
	if status.SuspendedUntil, err = scanTime(suspendedUntil); err != nil {
		return nil, err
	}
	if status.LastWarningAt, err = scanTime(lastWarning); err != nil {
		return nil, err
	}
	if status.LastStrikeAt, err = scanTime(lastStrike); err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *ModerationStore) PutStatus(ctx context.Context, status moderation.Status) error {
	if err := upsertStatus(ctx, s.db, status); err != nil {
		return fmt.Errorf("put status: %w", err)
	}
	return nil
}

// MutateStatus applies mutate to a user's enforcement record and stores the
// result, all within one transaction. The record is created as a zero status
// if none exists yet.
func (s *ModerationStore) MutateStatus(ctx context.Context, userID string, mutate func(*moderation.Status)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mutate status: %w", err)
	}
	defer tx.Rollback()

	var (
		muted, susp    int
		suspendedUntil sql.NullString
		lastWarning    sql.NullString
		lastStrike     sql.NullString
	)
	status := moderation.Status{UserID: userID}
	err = tx.QueryRowContext(ctx, `
		SELECT user_id, warning_count, strike_count, muted, suspended,
		       suspended_until, last_warning_at, last_strike_at
		FROM moderation_statuses WHERE user_id = ?
	`, userID).Scan(&status.UserID, &status.WarningCount, &status.StrikeCount,
		&muted, &susp, &suspendedUntil, &lastWarning, &lastStrike)
	switch {
	case err == sql.ErrNoRows:
		// keep the zero status
	case err != nil:
		return fmt.Errorf("mutate status: %w", err)
	default:
		status.Muted = muted == 1
		status.Suspended = susp == 1
		if status.SuspendedUntil, err = scanTime(suspendedUntil); err != nil {
			return err
		}
		if status.LastWarningAt, err = scanTime(lastWarning); err != nil {
			return err
		}
		if status.LastStrikeAt, err = scanTime(lastStrike); err != nil {
			return err
		}
	}

	mutate(&status)
	status.UserID = userID

	if err := upsertStatus(ctx, tx, status); err != nil {
		return fmt.Errorf("mutate status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mutate status: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertStatus(ctx context.Context, db execer, status moderation.Status) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO moderation_statuses
			(user_id, warning_count, strike_count, muted, suspended,
			 suspended_until, last_warning_at, last_strike_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			warning_count   = excluded.warning_count,
			strike_count    = excluded.strike_count,
			muted           = excluded.muted,
			suspended       = excluded.suspended,
			suspended_until = excluded.suspended_until,
			last_warning_at = excluded.last_warning_at,
			last_strike_at  = excluded.last_strike_at
	`, status.UserID, status.WarningCount, status.StrikeCount,
		boolArg(status.Muted), boolArg(status.Suspended),
		timeArg(status.SuspendedUntil), timeArg(status.LastWarningAt), timeArg(status.LastStrikeAt))
	return err
}

// ========== Actions ==========

func (s *ModerationStore) CreateAction(ctx context.Context, action moderation.Action) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_actions
			(id, user_id, moderator_id, action_type, reason, notes,
			 related_report_id, expires_at, active, seen_by_user, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, action.ID, action.UserID, action.ModeratorID, string(action.Type),
		action.Reason, action.Notes, action.RelatedReportID,
		timeArg(action.ExpiresAt), boolArg(action.Active), boolArg(action.SeenByUser),
		action.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create action: %w", err)
	}
	return nil
}

func (s *ModerationStore) GetAction(ctx context.Context, id string) (*moderation.Action, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, moderator_id, action_type, reason, notes,
		       related_report_id, expires_at, active, seen_by_user, created_at
		FROM moderation_actions WHERE id = ?
	`, id)
	action, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get action: %w", err)
	}
	return action, nil
}

func (s *ModerationStore) UpdateAction(ctx context.Context, action moderation.Action) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE moderation_actions SET
			reason = ?, notes = ?, expires_at = ?, active = ?, seen_by_user = ?
		WHERE id = ?
	`, action.Reason, action.Notes, timeArg(action.ExpiresAt),
		boolArg(action.Active), boolArg(action.SeenByUser), action.ID)
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("action not found: %s", action.ID)
	}
	return nil
}

func (s *ModerationStore) ListActionsByUser(ctx context.Context, userID string) ([]moderation.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, moderator_id, action_type, reason, notes,
		       related_report_id, expires_at, active, seen_by_user, created_at
		FROM moderation_actions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()
	return collectActions(rows)
}

func (s *ModerationStore) ListActiveActionsByUser(ctx context.Context, userID string, actionType moderation.ActionType) ([]moderation.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, moderator_id, action_type, reason, notes,
		       related_report_id, expires_at, active, seen_by_user, created_at
		FROM moderation_actions
		WHERE user_id = ? AND action_type = ? AND active = 1
		ORDER BY created_at DESC, id DESC
	`, userID, string(actionType))
	if err != nil {
		return nil, fmt.Errorf("list active actions: %w", err)
	}
	defer rows.Close()
	return collectActions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (*moderation.Action, error) {
	var (
		action         moderation.Action
		actionType     string
		expiresAt      sql.NullString
		active, seen   int
		createdAt      string
	)
	err := row.Scan(&action.ID, &action.UserID, &action.ModeratorID, &actionType,
		&action.Reason, &action.Notes, &action.RelatedReportID,
		&expiresAt, &active, &seen, &createdAt)
	if err != nil {
		return nil, err
	}
	action.Type = moderation.ActionType(actionType)
	action.Active = active == 1
	action.SeenByUser = seen == 1
	if action.ExpiresAt, err = scanTime(expiresAt); err != nil {
		return nil, err
	}
	if action.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse stored time: %w", err)
	}
	return &action, nil
}

func collectActions(rows *sql.Rows) ([]moderation.Action, error) {
	var actions []moderation.Action
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, *action)
	}
	return actions, rows.Err()
}

// ========== Content Reports ==========

func (s *ModerationStore) CreateContentReport(ctx context.Context, report moderation.ContentReport) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_reports
			(id, reporter_id, target_content_id, reason, description, status,
			 moderator_id, moderator_notes, action_taken, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.ReporterID, report.TargetContentID, string(report.Reason),
		report.Description, string(report.Status), report.ModeratorID,
		report.ModeratorNotes, string(report.ActionTaken),
		report.CreatedAt.UTC().Format(time.RFC3339Nano),
		report.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create content report: %w", err)
	}
	return nil
}

func (s *ModerationStore) GetContentReport(ctx context.Context, id string) (*moderation.ContentReport, error) {
	row := s.db.QueryRowContext(ctx, contentReportSelect+` WHERE id = ?`, id)
	report, err := scanContentReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content report: %w", err)
	}
	return report, nil
}

func (s *ModerationStore) FindContentReportByPair(ctx context.Context, reporterID, targetContentID string) (*moderation.ContentReport, error) {
	row := s.db.QueryRowContext(ctx,
		contentReportSelect+` WHERE reporter_id = ? AND target_content_id = ?`,
		reporterID, targetContentID)
	report, err := scanContentReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find content report: %w", err)
	}
	return report, nil
}

func (s *ModerationStore) UpdateContentReport(ctx context.Context, report moderation.ContentReport) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE content_reports SET
			status = ?, moderator_id = ?, moderator_notes = ?, action_taken = ?, updated_at = ?
		WHERE id = ?
	`, string(report.Status), report.ModeratorID, report.ModeratorNotes,
		string(report.ActionTaken), report.UpdatedAt.UTC().Format(time.RFC3339Nano), report.ID)
	if err != nil {
		return fmt.Errorf("update content report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update content report: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("content report not found: %s", report.ID)
	}
	return nil
}

func (s *ModerationStore) ListContentReports(ctx context.Context, statusFilter moderation.ReportStatus, limit int) ([]moderation.ContentReport, error) {
	query := contentReportSelect
	args := []any{}
	if statusFilter != "" {
		query += ` WHERE status = ?`
		args = append(args, string(statusFilter))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list content reports: %w", err)
	}
	defer rows.Close()

	var reports []moderation.ContentReport
	for rows.Next() {
		report, err := scanContentReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content report: %w", err)
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

func (s *ModerationStore) CountContentReportsSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM content_reports
		WHERE reporter_id = ? AND created_at > ?
	`, reporterID, since.UTC().Format(time.RFC3339Nano)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count content reports: %w", err)
	}
	return count, nil
}

const contentReportSelect = `
	SELECT id, reporter_id, target_content_id, reason, description, status,
	       moderator_id, moderator_notes, action_taken, created_at, updated_at
	FROM content_reports`

func scanContentReport(row rowScanner) (*moderation.ContentReport, error) {
	var (
		report               moderation.ContentReport
		reason, status       string
		actionTaken          string
		createdAt, updatedAt string
	)
	err := row.Scan(&report.ID, &report.ReporterID, &report.TargetContentID,
		&reason, &report.Description, &status, &report.ModeratorID,
		&report.ModeratorNotes, &actionTaken, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	report.Reason = moderation.ReportReason(reason)
	report.Status = moderation.ReportStatus(status)
	report.ActionTaken = moderation.ActionTaken(actionTaken)
	if report.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse stored time: %w", err)
	}
	if report.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse stored time: %w", err)
	}
	return &report, nil
}

// ========== User Reports ==========

func (s *ModerationStore) CreateUserReport(ctx context.Context, report moderation.UserReport) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_reports
			(id, reporter_id, reported_user_id, reason, description, status,
			 moderator_id, moderator_notes, action_taken, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.ReporterID, report.ReportedUserID, string(report.Reason),
		report.Description, string(report.Status), report.ModeratorID,
		report.ModeratorNotes, string(report.ActionTaken),
		report.CreatedAt.UTC().Format(time.RFC3339Nano),
		report.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create user report: %w", err)
	}
	return nil
}

func (s *ModerationStore) GetUserReport(ctx context.Context, id string) (*moderation.UserReport, error) {
	row := s.db.QueryRowContext(ctx, userReportSelect+` WHERE id = ?`, id)
	report, err := scanUserReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user report: %w", err)
	}
	return report, nil
}

func (s *ModerationStore) FindUserReportByPair(ctx context.Context, reporterID, reportedUserID string) (*moderation.UserReport, error) {
	row := s.db.QueryRowContext(ctx,
		userReportSelect+` WHERE reporter_id = ? AND reported_user_id = ?`,
		reporterID, reportedUserID)
	report, err := scanUserReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user report: %w", err)
	}
	return report, nil
}

func (s *ModerationStore) UpdateUserReport(ctx context.Context, report moderation.UserReport) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_reports SET
			status = ?, moderator_id = ?, moderator_notes = ?, action_taken = ?, updated_at = ?
		WHERE id = ?
	`, string(report.Status), report.ModeratorID, report.ModeratorNotes,
		string(report.ActionTaken), report.UpdatedAt.UTC().Format(time.RFC3339Nano), report.ID)
	if err != nil {
		return fmt.Errorf("update user report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user report: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user report not found: %s", report.ID)
	}
	return nil
}

func (s *ModerationStore) ListUserReports(ctx context.Context, statusFilter moderation.ReportStatus, limit int) ([]moderation.UserReport, error) {
	query := userReportSelect
	args := []any{}
	if statusFilter != "" {
		query += ` WHERE status = ?`
		args = append(args, string(statusFilter))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list user reports: %w", err)
	}
	defer rows.Close()
	return collectUserReports(rows)
}

func (s *ModerationStore) ListAllUserReports(ctx context.Context) ([]moderation.UserReport, error) {
	rows, err := s.db.QueryContext(ctx, userReportSelect+` ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list all user reports: %w", err)
	}
	defer rows.Close()
	return collectUserReports(rows)
}

func (s *ModerationStore) CountUserReportsSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_reports
		WHERE reporter_id = ? AND created_at > ?
	`, reporterID, since.UTC().Format(time.RFC3339Nano)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count user reports: %w", err)
	}
	return count, nil
}

const userReportSelect = `
	SELECT id, reporter_id, reported_user_id, reason, description, status,
	       moderator_id, moderator_notes, action_taken, created_at, updated_at
	FROM user_reports`

func collectUserReports(rows *sql.Rows) ([]moderation.UserReport, error) {
	var reports []moderation.UserReport
	for rows.Next() {
		report, err := scanUserReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user report: %w", err)
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

func scanUserReport(row rowScanner) (*moderation.UserReport, error) {
	var (
		report               moderation.UserReport
		reason, status       string
		actionTaken          string
		createdAt, updatedAt string
	)
	err := row.Scan(&report.ID, &report.ReporterID, &report.ReportedUserID,
		&reason, &report.Description, &status, &report.ModeratorID,
		&report.ModeratorNotes, &actionTaken, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	report.Reason = moderation.ReportReason(reason)
	report.Status = moderation.ReportStatus(status)
	report.ActionTaken = moderation.ActionTaken(actionTaken)
	if report.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse stored time: %w", err)
	}
	if report.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse stored time: %w", err)
	}
	return &report, nil
}
