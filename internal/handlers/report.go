package handlers

import (
	"net/http"
	"strconv"

	"github.com/iceinvein/mlem/internal/metrics"
	"github.com/iceinvein/mlem/internal/moderation"
)

// ReportRequest represents the JSON request for filing a report. TargetID is
// the meme ID for content reports and the account ID for user reports.
type ReportRequest struct {
	TargetID    string `json:"target_id"`
	Reason      string `json:"reason"`
	Description string `json:"description,omitempty"`
}

// ReportResponse represents the JSON response from report submission
type ReportResponse struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleContentReport handles POST /api/reports/content.
func (h *Handler) HandleContentReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.moderationService.FileContentReport(r.Context(), callerID(r),
		req.TargetID, moderation.ReportReason(req.Reason), req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.ReportsTotal.WithLabelValues(string(moderation.KindContentReport)).Inc()
	writeJSON(w, http.StatusOK, ReportResponse{
		ID:      id,
		Status:  "received",
		Message: "Thank you for your report. It will be reviewed by a moderator.",
	})
}

// HandleUserReport handles POST /api/reports/user.
func (h *Handler) HandleUserReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.moderationService.FileUserReport(r.Context(), callerID(r),
		req.TargetID, moderation.ReportReason(req.Reason), req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.ReportsTotal.WithLabelValues(string(moderation.KindUserReport)).Inc()
	writeJSON(w, http.StatusOK, ReportResponse{
		ID:      id,
		Status:  "received",
		Message: "Thank you for your report. It will be reviewed by a moderator.",
	})
}

// reportListResponse is the combined moderator view of both report ledgers.
type reportListResponse struct {
	ContentReports []moderation.EnrichedContentReport `json:"content_reports"`
	UserReports    []moderation.EnrichedUserReport    `json:"user_reports"`
}

// HandleListReports handles GET /_mod/reports. Optional query parameters:
// status (pending/reviewed/resolved/dismissed) and limit.
func (h *Handler) HandleListReports(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)

	statusFilter := moderation.ReportStatus(r.URL.Query().Get("status"))
	if statusFilter != "" && !statusFilter.Valid() {
		writeError(w, moderation.NewError(moderation.KindInvalidArgument, "Invalid status filter"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, moderation.NewError(moderation.KindInvalidArgument, "Invalid limit"))
			return
		}
		limit = n
	}

	contentReports, err := h.moderationService.ListContentReports(r.Context(), caller, statusFilter, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	userReports, err := h.moderationService.ListUserReports(r.Context(), caller, statusFilter, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reportListResponse{
		ContentReports: contentReports,
		UserReports:    userReports,
	})
}

// updateReportRequest is the JSON body for a report status update.
type updateReportRequest struct {
	Kind           string `json:"kind"` // "content" or "user"
	Status         string `json:"status"`
	ModeratorNotes string `json:"moderator_notes,omitempty"`
	ActionTaken    string `json:"action_taken,omitempty"`
}

// HandleUpdateReportStatus handles POST /_mod/reports/{id}/status.
func (h *Handler) HandleUpdateReportStatus(w http.ResponseWriter, r *http.Request) {
	reportID := r.PathValue("id")

	var req updateReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.moderationService.UpdateReportStatus(r.Context(), callerID(r),
		moderation.ReportKind(req.Kind), reportID,
		moderation.ReportStatus(req.Status), req.ModeratorNotes,
		moderation.ActionTaken(req.ActionTaken))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// HandleReportedUsers handles GET /_mod/reported-users.
func (h *Handler) HandleReportedUsers(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.moderationService.ReportedUsersSummary(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reported_users": summaries})
}
