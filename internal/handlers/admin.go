package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/iceinvein/mlem/internal/metrics"
	"github.com/iceinvein/mlem/internal/moderation"
)

// actionRequest is the JSON body shared by the warn/strike/mute endpoints.
type actionRequest struct {
	Reason          string `json:"reason"`
	Notes           string `json:"notes,omitempty"`
	RelatedReportID string `json:"related_report_id,omitempty"`
}

// suspendRequest adds the suspension duration to the shared action fields.
type suspendRequest struct {
	actionRequest
	Duration string `json:"duration"`
}

// actionResponse returns the ID of the logged moderation action.
type actionResponse struct {
	ActionID string `json:"action_id"`
	Status   string `json:"status"`
}

// HandleWarnUser handles POST /_mod/users/{id}/warn.
func (h *Handler) HandleWarnUser(w http.ResponseWriter, r *http.Request) {
	h.applyAction(w, r, moderation.ActionWarning)
}

// HandleStrikeUser handles POST /_mod/users/{id}/strike.
func (h *Handler) HandleStrikeUser(w http.ResponseWriter, r *http.Request) {
	h.applyAction(w, r, moderation.ActionStrike)
}

// HandleMuteUser handles POST /_mod/users/{id}/mute.
func (h *Handler) HandleMuteUser(w http.ResponseWriter, r *http.Request) {
	h.applyAction(w, r, moderation.ActionMute)
}

func (h *Handler) applyAction(w http.ResponseWriter, r *http.Request, actionType moderation.ActionType) {
	userID := r.PathValue("id")

	var req actionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		actionID string
		err      error
	)
	ctx := r.Context()
	caller := callerID(r)
	switch actionType {
	case moderation.ActionWarning:
		actionID, err = h.moderationService.ApplyWarning(ctx, caller, userID, req.Reason, req.Notes, req.RelatedReportID)
	case moderation.ActionStrike:
		actionID, err = h.moderationService.ApplyStrike(ctx, caller, userID, req.Reason, req.Notes, req.RelatedReportID)
	case moderation.ActionMute:
		actionID, err = h.moderationService.ApplyMute(ctx, caller, userID, req.Reason, req.Notes, req.RelatedReportID)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.ModerationActionsTotal.WithLabelValues(string(actionType)).Inc()
	writeJSON(w, http.StatusOK, actionResponse{ActionID: actionID, Status: "applied"})
}

// HandleSuspendUser handles POST /_mod/users/{id}/suspend.
func (h *Handler) HandleSuspendUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	var req suspendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	actionID, err := h.moderationService.ApplySuspension(r.Context(), callerID(r), userID,
		req.Reason, moderation.SuspendDuration(req.Duration), req.Notes, req.RelatedReportID)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.ModerationActionsTotal.WithLabelValues(string(moderation.ActionSuspend)).Inc()
	writeJSON(w, http.StatusOK, actionResponse{ActionID: actionID, Status: "applied"})
}

// HandleUnmuteUser handles POST /_mod/users/{id}/unmute.
func (h *Handler) HandleUnmuteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.moderationService.ClearMute(r.Context(), callerID(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unmuted"})
}

// HandleUnsuspendUser handles POST /_mod/users/{id}/unsuspend.
func (h *Handler) HandleUnsuspendUser(w http.ResponseWriter, r *http.Request) {
	if err := h.moderationService.ClearSuspension(r.Context(), callerID(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsuspended"})
}

// HandleUserHistory handles GET /_mod/users/{id}/history.
func (h *Handler) HandleUserHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.moderationService.ModerationHistory(r.Context(), callerID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// HandleUserStatus handles GET /_mod/users/{id}/status. The moderator view
// includes the raw persisted record alongside the effective state.
func (h *Handler) HandleUserStatus(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	userID := r.PathValue("id")

	// Role gate via the history path's requirement: status is staff-only.
	if !h.identityService.IsModerator(caller) && !h.identityService.IsAdmin(caller) {
		if caller == "" {
			writeError(w, moderation.NewError(moderation.KindUnauthenticated, "Authentication required"))
			return
		}
		writeError(w, moderation.NewError(moderation.KindForbidden, "Moderator access required"))
		return
	}

	status, err := h.moderationService.GetStatus(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"effective": moderation.EffectiveStatus(status, time.Now()),
	})
}

// AdminStats summarizes system state for the admin console.
type AdminStats struct {
	PendingContentReports int     `json:"pending_content_reports"`
	PendingUserReports    int     `json:"pending_user_reports"`
	ReportsFiled          float64 `json:"reports_filed"`
	ActionsApplied        float64 `json:"actions_applied"`
	EnforcementDenials    float64 `json:"enforcement_denials"`
	Staff                 int     `json:"staff"`
}

// HandleAdminStats handles GET /_mod/stats. Admin only.
func (h *Handler) HandleAdminStats(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		writeError(w, moderation.NewError(moderation.KindUnauthenticated, "Authentication required"))
		return
	}
	if !h.identityService.IsAdmin(caller) {
		writeError(w, moderation.NewError(moderation.KindForbidden, "Admin access required"))
		return
	}

	stats := AdminStats{
		PendingContentReports: int(getGaugeValue(metrics.PendingContentReports)),
		PendingUserReports:    int(getGaugeValue(metrics.PendingUserReports)),
		ReportsFiled:          sumCounterVec(metrics.ReportsTotal),
		ActionsApplied:        sumCounterVec(metrics.ModerationActionsTotal),
		EnforcementDenials:    sumCounterVec(metrics.EnforcementDenialsTotal),
		Staff:                 len(h.identityService.ListStaff()),
	}

	writeJSON(w, http.StatusOK, stats)
}

// getGaugeValue reads the current value of a prometheus.Gauge.
func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil {
		return m.GetGauge().GetValue()
	}
	return 0
}

// sumCounterVec totals every child of a counter vector.
func sumCounterVec(vec *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
