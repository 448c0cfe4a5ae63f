package moderation

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/iceinvein/mlem/internal/identity"
)

const (
	// reportRateLimitPerHour is the maximum reports a user can file per hour.
	reportRateLimitPerHour = 10
	// maxReportDescriptionLength is the maximum length of a report description.
	maxReportDescriptionLength = 500
)

// validateReportInput normalizes the shared report fields.
func validateReportInput(reporterID string, reason ReportReason, description string) (string, error) {
	if reporterID == "" {
		return "", errUnauthenticated()
	}
	if !reason.Valid() {
		return "", NewError(KindInvalidArgument, "Unknown report reason")
	}
	description = strings.TrimSpace(description)
	if len(description) > maxReportDescriptionLength {
		description = description[:maxReportDescriptionLength]
	}
	return description, nil
}

// checkReportRateLimit enforces the per-reporter hourly cap across both
// report ledgers.
func (s *Service) checkReportRateLimit(ctx context.Context, reporterID string) error {
	oneHourAgo := time.Now().Add(-1 * time.Hour)

	contentCount, err := s.store.CountContentReportsSince(ctx, reporterID, oneHourAgo)
	if err != nil {
		return err
	}
	userCount, err := s.store.CountUserReportsSince(ctx, reporterID, oneHourAgo)
	if err != nil {
		return err
	}
	if contentCount+userCount >= reportRateLimitPerHour {
		return NewError(KindRateLimited, "Rate limit exceeded. Please try again later.")
	}
	return nil
}

// FileContentReport records a report against a piece of content. A reporter
// may report the same content only once, regardless of how the earlier
// report was handled.
func (s *Service) FileContentReport(ctx context.Context, reporterID, targetContentID string, reason ReportReason, description string) (string, error) {
	description, err := validateReportInput(reporterID, reason, description)
	if err != nil {
		return "", err
	}
	if targetContentID == "" {
		return "", NewError(KindInvalidArgument, "A target is required")
	}

	if err := s.checkReportRateLimit(ctx, reporterID); err != nil {
		return "", err
	}

	exists, err := s.content.ContentExists(ctx, targetContentID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", NewError(KindNotFound, "Content not found")
	}

	prior, err := s.store.FindContentReportByPair(ctx, reporterID, targetContentID)
	if err != nil {
		return "", err
	}
	if prior != nil {
		return "", NewError(KindAlreadyReported, duplicateReportMessage(prior.Status))
	}

	now := time.Now()
	report := ContentReport{
		ID:              NewID(),
		ReporterID:      reporterID,
		TargetContentID: targetContentID,
		Reason:          reason,
		Description:     description,
		Status:          ReportPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateContentReport(ctx, report); err != nil {
		return "", err
	}

	log.Info().
		Str("report_id", report.ID).
		Str("target", targetContentID).
		Str("reporter", reporterID).
		Str("reason", string(reason)).
		Msg("moderation: content report filed")

	return report.ID, nil
}

// FileUserReport records a report against an account. Self-reports are
// forbidden; a reporter may report the same account only once.
func (s *Service) FileUserReport(ctx context.Context, reporterID, reportedUserID string, reason ReportReason, description string) (string, error) {
	description, err := validateReportInput(reporterID, reason, description)
	if err != nil {
		return "", err
	}
	if reportedUserID == "" {
		return "", NewError(KindInvalidArgument, "A target is required")
	}
	if reporterID == reportedUserID {
		return "", NewError(KindSelfReport, "You cannot report yourself")
	}

	if err := s.checkReportRateLimit(ctx, reporterID); err != nil {
		return "", err
	}

	if _, err := s.dir.Lookup(ctx, reportedUserID); err != nil {
		return "", NewError(KindNotFound, "User not found")
	}

	prior, err := s.store.FindUserReportByPair(ctx, reporterID, reportedUserID)
	if err != nil {
		return "", err
	}
	if prior != nil {
		return "", NewError(KindAlreadyReported, duplicateReportMessage(prior.Status))
	}

	now := time.Now()
	report := UserReport{
		ID:             NewID(),
		ReporterID:     reporterID,
		ReportedUserID: reportedUserID,
		Reason:         reason,
		Description:    description,
		Status:         ReportPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateUserReport(ctx, report); err != nil {
		return "", err
	}

	log.Info().
		Str("report_id", report.ID).
		Str("reported_user", reportedUserID).
		Str("reporter", reporterID).
		Str("reason", string(reason)).
		Msg("moderation: user report filed")

	return report.ID, nil
}

// UpdateReportStatus moves a report through its review lifecycle and records
// who handled it. When a content report is closed with content_removed, the
// referenced content is deleted; the deletion is not atomic with the status
// update, so a failed delete leaves a resolved report pointing at live
// content (logged, not rolled back).
func (s *Service) UpdateReportStatus(ctx context.Context, callerID string, kind ReportKind, reportID string, newStatus ReportStatus, moderatorNotes string, actionTaken ActionTaken) error {
	if err := s.requireRole(callerID, identity.RoleModerator); err != nil {
		return err
	}
	if !newStatus.Valid() {
		return NewError(KindInvalidArgument, "Unknown report status")
	}

	now := time.Now()

	switch kind {
	case KindContentReport:
		report, err := s.store.GetContentReport(ctx, reportID)
		if err != nil {
			return err
		}
		if report == nil {
			return NewError(KindNotFound, "Report not found")
		}

		report.Status = newStatus
		report.ModeratorID = callerID
		report.ModeratorNotes = moderatorNotes
		report.ActionTaken = actionTaken
		report.UpdatedAt = now

		if err := s.store.UpdateContentReport(ctx, *report); err != nil {
			return err
		}

		if actionTaken == TakenContentRemoved {
			if err := s.content.DeleteContent(ctx, report.TargetContentID); err != nil {
				log.Error().Err(err).
					Str("report_id", reportID).
					Str("content_id", report.TargetContentID).
					Msg("moderation: failed to remove reported content")
			}
		}

	case KindUserReport:
		report, err := s.store.GetUserReport(ctx, reportID)
		if err != nil {
			return err
		}
		if report == nil {
			return NewError(KindNotFound, "Report not found")
		}

		report.Status = newStatus
		report.ModeratorID = callerID
		report.ModeratorNotes = moderatorNotes
		report.ActionTaken = actionTaken
		report.UpdatedAt = now

		if err := s.store.UpdateUserReport(ctx, *report); err != nil {
			return err
		}

	default:
		return NewError(KindInvalidArgument, "Unknown report kind")
	}

	log.Info().
		Str("report_id", reportID).
		Str("kind", string(kind)).
		Str("status", string(newStatus)).
		Str("action_taken", string(actionTaken)).
		Str("by", callerID).
		Msg("moderation: report updated")

	return nil
}

// resolveHandles looks up display handles for a set of user IDs in
// parallel. Missing users are simply absent from the result.
func (s *Service) resolveHandles(ctx context.Context, ids map[string]struct{}) map[string]string {
	var mu sync.Mutex
	handles := make(map[string]string, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for id := range ids {
		if id == "" {
			continue
		}
		g.Go(func() error {
			info, err := s.dir.Lookup(gctx, id)
			if err != nil {
				return nil // Unresolvable users are left unlabelled
			}
			mu.Lock()
			handles[id] = info.Handle
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return handles
}

// ListContentReports returns content reports newest-first, optionally
// filtered by status, enriched with reporter and moderator handles.
// Moderator or admin only.
func (s *Service) ListContentReports(ctx context.Context, callerID string, statusFilter ReportStatus, limit int) ([]EnrichedContentReport, error) {
	if err := s.requireRole(callerID, identity.RoleModerator); err != nil {
		return nil, err
	}

	reports, err := s.store.ListContentReports(ctx, statusFilter, limit)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{})
	for _, r := range reports {
		ids[r.ReporterID] = struct{}{}
		ids[r.ModeratorID] = struct{}{}
	}
	handles := s.resolveHandles(ctx, ids)

	enriched := make([]EnrichedContentReport, 0, len(reports))
	for _, r := range reports {
		enriched = append(enriched, EnrichedContentReport{
			ContentReport:   r,
			ReporterHandle:  handles[r.ReporterID],
			ModeratorHandle: handles[r.ModeratorID],
		})
	}
	return enriched, nil
}

// ListUserReports returns user reports newest-first, optionally filtered by
// status, enriched with reporter, target, and moderator handles. Moderator
// or admin only.
func (s *Service) ListUserReports(ctx context.Context, callerID string, statusFilter ReportStatus, limit int) ([]EnrichedUserReport, error) {
	if err := s.requireRole(callerID, identity.RoleModerator); err != nil {
		return nil, err
	}

	reports, err := s.store.ListUserReports(ctx, statusFilter, limit)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{})
	for _, r := range reports {
		ids[r.ReporterID] = struct{}{}
		ids[r.ReportedUserID] = struct{}{}
		ids[r.ModeratorID] = struct{}{}
	}
	handles := s.resolveHandles(ctx, ids)

	enriched := make([]EnrichedUserReport, 0, len(reports))
	for _, r := range reports {
		enriched = append(enriched, EnrichedUserReport{
			UserReport:      r,
			ReporterHandle:  handles[r.ReporterID],
			ReportedHandle:  handles[r.ReportedUserID],
			ModeratorHandle: handles[r.ModeratorID],
		})
	}
	return enriched, nil
}

// ReportedUsersSummary aggregates all user reports by reported account,
// sorted by pending count descending then total count descending.
// Moderator or admin only.
func (s *Service) ReportedUsersSummary(ctx context.Context, callerID string) ([]ReportedUserSummary, error) {
	if err := s.requireRole(callerID, identity.RoleModerator); err != nil {
		return nil, err
	}

	reports, err := s.store.ListAllUserReports(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*ReportedUserSummary)
	var order []string
	for _, r := range reports {
		summary, ok := totals[r.ReportedUserID]
		if !ok {
			summary = &ReportedUserSummary{UserID: r.ReportedUserID}
			totals[r.ReportedUserID] = summary
			order = append(order, r.ReportedUserID)
		}
		summary.Total++
		if r.Status == ReportPending {
			summary.Pending++
		}
	}

	summaries := make([]ReportedUserSummary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, *totals[id])
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Pending != summaries[j].Pending {
			return summaries[i].Pending > summaries[j].Pending
		}
		return summaries[i].Total > summaries[j].Total
	})

	ids := make(map[string]struct{}, len(summaries))
	for _, s := range summaries {
		ids[s.UserID] = struct{}{}
	}
	handles := s.resolveHandles(ctx, ids)
	for i := range summaries {
		summaries[i].Handle = handles[summaries[i].UserID]
	}

	return summaries, nil
}
