package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/iceinvein/mlem/internal/moderation"
)

// ModerationStore provides persistent storage for moderation data.
// Each method runs inside a single BoltDB transaction, so check-then-act
// sequences within it are atomic.
type ModerationStore struct {
	db *bolt.DB
}

// Ensure ModerationStore implements the interface at compile time.
var _ moderation.Store = (*ModerationStore)(nil)

// pairKey builds the composite key for the per-pair report indexes.
func pairKey(reporterID, targetID string) []byte {
	return []byte(reporterID + ":" + targetID)
}

// userActionKey builds the composite key for the actions-by-user index.
// Action IDs are time-ordered, so a prefix scan yields chronological order.
func userActionKey(userID, actionID string) []byte {
	return []byte(userID + ":" + actionID)
}

// ========== Statuses ==========

// GetStatus retrieves a user's enforcement record, or nil if none exists.
func (s *ModerationStore) GetStatus(ctx context.Context, userID string) (*moderation.Status, error) {
	var status *moderation.Status

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketModerationStatuses)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(userID))
		if data == nil {
			return nil
		}

		status = &moderation.Status{}
		return json.Unmarshal(data, status)
	})

	return status, err
}

// PutStatus stores a user's enforcement record (upsert).
func (s *ModerationStore) PutStatus(ctx context.Context, status moderation.Status) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketModerationStatuses)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketModerationStatuses)
		}

		data, err := json.Marshal(status)
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}

		return bucket.Put([]byte(status.UserID), data)
	})
}

// MutateStatus applies mutate to a user's enforcement record and stores the
// result, all within one write transaction. The record is created as a zero
// status if none exists yet.
func (s *ModerationStore) MutateStatus(ctx context.Context, userID string, mutate func(*moderation.Status)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketModerationStatuses)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketModerationStatuses)
		}

		status := moderation.Status{UserID: userID}
		if data := bucket.Get([]byte(userID)); data != nil {
			if err := json.Unmarshal(data, &status); err != nil {
				return fmt.Errorf("failed to unmarshal status: %w", err)
			}
		}

		mutate(&status)
		status.UserID = userID

		data, err := json.Marshal(status)
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}

		return bucket.Put([]byte(userID), data)
	})
}

// ========== Actions ==========

// CreateAction stores a new moderation action and indexes it by target user.
func (s *ModerationStore) CreateAction(ctx context.Context, action moderation.Action) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketModerationActions)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketModerationActions)
		}

		data, err := json.Marshal(action)
		if err != nil {
			return fmt.Errorf("failed to marshal action: %w", err)
		}

		if err := bucket.Put([]byte(action.ID), data); err != nil {
			return err
		}

		index := tx.Bucket(BucketModerationActionsByUser)
		if index != nil {
			if err := index.Put(userActionKey(action.UserID, action.ID), []byte(action.ID)); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetAction retrieves an action by ID, or nil if none exists.
func (s *ModerationStore) GetAction(ctx context.Context, id string) (*moderation.Action, error) {
	var action *moderation.Action

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketModerationActions)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		action = &moderation.Action{}
		return json.Unmarshal(data, action)
	})

	return action, err
}

// UpdateAction replaces a stored action. Fails if the action does not exist.
func (s *ModerationStore) UpdateAction(ctx context.Context, action moderation.Action) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketModerationActions)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketModerationActions)
		}

		if bucket.Get([]byte(action.ID)) == nil {
			return fmt.Errorf("action not found: %s", action.ID)
		}

		data, err := json.Marshal(action)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(action.ID), data)
	})
}

// listActionsByUser scans the per-user index in key order (chronological)
// and returns the matching actions newest-first.
func (s *ModerationStore) listActionsByUser(userID string, keep func(moderation.Action) bool) ([]moderation.Action, error) {
	var actions []moderation.Action

	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(BucketModerationActionsByUser)
		actionsBucket := tx.Bucket(BucketModerationActions)
		if index == nil || actionsBucket == nil {
			return nil
		}

		cursor := index.Cursor()
		prefix := []byte(userID + ":")

		for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
			data := actionsBucket.Get(v)
			if data == nil {
				continue
			}

			var action moderation.Action
			if err := json.Unmarshal(data, &action); err != nil {
				continue // Skip malformed entries
			}
			if keep == nil || keep(action) {
				actions = append(actions, action)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reverse to get newest first
	for i, j := 0, len(actions)-1; i < j; i, j = i+1, j-1 {
		actions[i], actions[j] = actions[j], actions[i]
	}

	return actions, nil
}

// ListActionsByUser returns all of a user's actions, newest first.
func (s *ModerationStore) ListActionsByUser(ctx context.Context, userID string) ([]moderation.Action, error) {
	return s.listActionsByUser(userID, nil)
}

// ListActiveActionsByUser returns a user's active actions of the given
// type, newest first.
func (s *ModerationStore) ListActiveActionsByUser(ctx context.Context, userID string, actionType moderation.ActionType) ([]moderation.Action, error) {
	return s.listActionsByUser(userID, func(a moderation.Action) bool {
		return a.Active && a.Type == actionType
	})
}

// ========== Content reports ==========

// CreateContentReport stores a new content report and indexes it by the
// (reporter, target) pair in the same transaction.
func (s *ModerationStore) CreateContentReport(ctx context.Context, report moderation.ContentReport) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketContentReports)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketContentReports)
		}

		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal content report: %w", err)
		}

		if err := bucket.Put([]byte(report.ID), data); err != nil {
			return err
		}

		index := tx.Bucket(BucketContentReportsByPair)
		if index != nil {
			if err := index.Put(pairKey(report.ReporterID, report.TargetContentID), []byte(report.ID)); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetContentReport retrieves a content report by ID, or nil if none exists.
func (s *ModerationStore) GetContentReport(ctx context.Context, id string) (*moderation.ContentReport, error) {
	var report *moderation.ContentReport

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketContentReports)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		report = &moderation.ContentReport{}
		return json.Unmarshal(data, report)
	})

	return report, err
}

// FindContentReportByPair returns the report this reporter filed against
// this content, or nil if none exists.
func (s *ModerationStore) FindContentReportByPair(ctx context.Context, reporterID, targetContentID string) (*moderation.ContentReport, error) {
	var report *moderation.ContentReport

	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(BucketContentReportsByPair)
		bucket := tx.Bucket(BucketContentReports)
		if index == nil || bucket == nil {
			return nil
		}

		id := index.Get(pairKey(reporterID, targetContentID))
		if id == nil {
			return nil
		}

		data := bucket.Get(id)
		if data == nil {
			return nil
		}

		report = &moderation.ContentReport{}
		return json.Unmarshal(data, report)
	})

	return report, err
}

// UpdateContentReport replaces a stored content report. Fails if absent.
func (s *ModerationStore) UpdateContentReport(ctx context.Context, report moderation.ContentReport) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketContentReports)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketContentReports)
		}

		if bucket.Get([]byte(report.ID)) == nil {
			return fmt.Errorf("content report not found: %s", report.ID)
		}

		data, err := json.Marshal(report)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(report.ID), data)
	})
}

// ListContentReports returns content reports newest-first, optionally
// filtered by status. A limit <= 0 means no limit.
func (s *ModerationStore) ListContentReports(ctx context.Context, statusFilter moderation.ReportStatus, limit int) ([]moderation.ContentReport, error) {
	var all []moderation.ContentReport

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketContentReports)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var report moderation.ContentReport
			if err := json.Unmarshal(v, &report); err != nil {
				return nil // Skip malformed entries
			}
			if statusFilter != "" && report.Status != statusFilter {
				return nil
			}
			all = append(all, report)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Report IDs are time-ordered, so iteration order is chronological;
	// reverse to get newest first.
	var reports []moderation.ContentReport
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(reports) >= limit {
			break
		}
		reports = append(reports, all[i])
	}

	return reports, nil
}

// CountContentReportsSince counts content reports filed by a reporter after
// a given time. Used for rate limiting report submissions.
func (s *ModerationStore) CountContentReportsSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	var count int

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketContentReports)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var report moderation.ContentReport
			if err := json.Unmarshal(v, &report); err != nil {
				return nil
			}
			if report.ReporterID == reporterID && report.CreatedAt.After(since) {
				count++
			}
			return nil
		})
	})

	return count, err
}

// ========== User reports ==========

// CreateUserReport stores a new user report and indexes it by the
// (reporter, reported) pair in the same transaction.
func (s *ModerationStore) CreateUserReport(ctx context.Context, report moderation.UserReport) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUserReports)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketUserReports)
		}

		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal user report: %w", err)
		}

		if err := bucket.Put([]byte(report.ID), data); err != nil {
			return err
		}

		index := tx.Bucket(BucketUserReportsByPair)
		if index != nil {
			if err := index.Put(pairKey(report.ReporterID, report.ReportedUserID), []byte(report.ID)); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetUserReport retrieves a user report by ID, or nil if none exists.
func (s *ModerationStore) GetUserReport(ctx context.Context, id string) (*moderation.UserReport, error) {
	var report *moderation.UserReport

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUserReports)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		report = &moderation.UserReport{}
		return json.Unmarshal(data, report)
	})

	return report, err
}

// FindUserReportByPair returns the report this reporter filed against this
// user, or nil if none exists.
func (s *ModerationStore) FindUserReportByPair(ctx context.Context, reporterID, reportedUserID string) (*moderation.UserReport, error) {
	var report *moderation.UserReport

	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(BucketUserReportsByPair)
		bucket := tx.Bucket(BucketUserReports)
		if index == nil || bucket == nil {
			return nil
		}

		id := index.Get(pairKey(reporterID, reportedUserID))
		if id == nil {
			return nil
		}

		data := bucket.Get(id)
		if data == nil {
			return nil
		}

		report = &moderation.UserReport{}
		return json.Unmarshal(data, report)
	})

	return report, err
}

// UpdateUserReport replaces a stored user report. Fails if absent.
func (s *ModerationStore) UpdateUserReport(ctx context.Context, report moderation.UserReport) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUserReports)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketUserReports)
		}

		if bucket.Get([]byte(report.ID)) == nil {
			return fmt.Errorf("user report not found: %s", report.ID)
		}

		data, err := json.Marshal(report)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(report.ID), data)
	})
}

// ListUserReports returns user reports newest-first, optionally filtered by
// status. A limit <= 0 means no limit.
func (s *ModerationStore) ListUserReports(ctx context.Context, statusFilter moderation.ReportStatus, limit int) ([]moderation.UserReport, error) {
	all, err := s.ListAllUserReports(ctx)
	if err != nil {
		return nil, err
	}

	var reports []moderation.UserReport
	for i := len(all) - 1; i >= 0; i-- {
		if statusFilter != "" && all[i].Status != statusFilter {
			continue
		}
		if limit > 0 && len(reports) >= limit {
			break
		}
		reports = append(reports, all[i])
	}

	return reports, nil
}

// ListAllUserReports returns every user report oldest-first.
func (s *ModerationStore) ListAllUserReports(ctx context.Context) ([]moderation.UserReport, error) {
	var reports []moderation.UserReport

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUserReports)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var report moderation.UserReport
			if err := json.Unmarshal(v, &report); err != nil {
				return nil // Skip malformed entries
			}
			reports = append(reports, report)
			return nil
		})
	})

	return reports, err
}

// CountUserReportsSince counts user reports filed by a reporter after a
// given time.
func (s *ModerationStore) CountUserReportsSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	var count int

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUserReports)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var report moderation.UserReport
			if err := json.Unmarshal(v, &report); err != nil {
				return nil
			}
			if report.ReporterID == reporterID && report.CreatedAt.After(since) {
				count++
			}
			return nil
		})
	})

	return count, err
}
