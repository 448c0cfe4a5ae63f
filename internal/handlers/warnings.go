package handlers

import (
	"net/http"
	"time"

	"github.com/iceinvein/mlem/internal/moderation"
)

// HandleMyWarnings handles GET /api/warnings. Returns the caller's active
// warnings without the acting moderator's identity.
func (h *Handler) HandleMyWarnings(w http.ResponseWriter, r *http.Request) {
	warnings, err := h.moderationService.MyActiveWarnings(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"warnings": warnings})
}

// markSeenRequest lists the warning action IDs to acknowledge.
type markSeenRequest struct {
	ActionIDs []string `json:"action_ids"`
}

// HandleMarkWarningsSeen handles POST /api/warnings/seen.
func (h *Handler) HandleMarkWarningsSeen(w http.ResponseWriter, r *http.Request) {
	var req markSeenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.moderationService.MarkWarningsSeen(r.Context(), callerID(r), req.ActionIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "seen"})
}

// HandleDismissWarning handles POST /api/warnings/{id}/dismiss.
func (h *Handler) HandleDismissWarning(w http.ResponseWriter, r *http.Request) {
	if err := h.moderationService.DismissWarning(r.Context(), callerID(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

// authCheckResponse mirrors the enforcement state exposed to clients at
// session validation time.
type authCheckResponse struct {
	UserID         string     `json:"user_id"`
	Suspended      bool       `json:"suspended"`
	Muted          bool       `json:"muted"`
	Reason         string     `json:"reason,omitempty"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
}

// HandleAuthCheck handles GET /api/auth/check. Read-only: an expired
// suspension is reported as not suspended but the stored record is left
// untouched.
func (h *Handler) HandleAuthCheck(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		writeError(w, moderation.NewError(moderation.KindUnauthenticated, "Authentication required"))
		return
	}

	check, err := h.moderationService.CheckAuthSuspension(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authCheckResponse{
		UserID:         caller,
		Suspended:      check.Suspended,
		Muted:          check.Muted,
		Reason:         check.Reason,
		SuspendedUntil: check.SuspendedUntil,
	})
}

// HandleSuspensionRefresh handles POST /api/suspension/refresh. The caller
// asks for their own expired suspension to be cleared; this is the mutation
// path that persists the correction.
func (h *Handler) HandleSuspensionRefresh(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		writeError(w, moderation.NewError(moderation.KindUnauthenticated, "Authentication required"))
		return
	}

	if err := h.moderationService.ClearExpiredSuspension(r.Context(), caller); err != nil {
		writeError(w, err)
		return
	}

	check, err := h.moderationService.CheckAuthSuspension(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authCheckResponse{
		UserID:         caller,
		Suspended:      check.Suspended,
		Muted:          check.Muted,
		Reason:         check.Reason,
		SuspendedUntil: check.SuspendedUntil,
	})
}
