package handlers

import (
	"errors"
	"net/http"

	"github.com/iceinvein/mlem/internal/metrics"
	"github.com/iceinvein/mlem/internal/moderation"
)

// memeRequest is the JSON body for posting a meme.
type memeRequest struct {
	Title    string `json:"title"`
	MediaRef string `json:"media_ref"`
	Category string `json:"category,omitempty"`
}

// HandleCreateMeme handles POST /api/memes.
func (h *Handler) HandleCreateMeme(w http.ResponseWriter, r *http.Request) {
	var req memeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.feedService.CreateMeme(r.Context(), callerID(r), req.Title, req.MediaRef, req.Category)
	if err != nil {
		recordDenial(err)
		writeError(w, err)
		return
	}

	metrics.MemesTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "created"})
}

// HandleGetMeme handles GET /api/memes/{id}.
func (h *Handler) HandleGetMeme(w http.ResponseWriter, r *http.Request) {
	meme, err := h.feedService.GetMeme(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meme)
}

// commentRequest is the JSON body for posting a comment.
type commentRequest struct {
	Body     string `json:"body"`
	ParentID string `json:"parent_id,omitempty"`
}

// HandleCreateComment handles POST /api/memes/{id}/comments.
func (h *Handler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.feedService.CreateComment(r.Context(), callerID(r), r.PathValue("id"), req.ParentID, req.Body)
	if err != nil {
		recordDenial(err)
		writeError(w, err)
		return
	}

	metrics.CommentsTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "created"})
}

// HandleListComments handles GET /api/memes/{id}/comments. Comments from
// authors the viewer has muted are filtered out.
func (h *Handler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.feedService.Comments(r.Context(), callerID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// HandleMuteUserForViewer handles POST /api/mutes/{id}. This is the personal
// viewer-side mute, not the moderator action.
func (h *Handler) HandleMuteUserForViewer(w http.ResponseWriter, r *http.Request) {
	if err := h.feedService.Mute(r.Context(), callerID(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "muted"})
}

// HandleUnmuteUserForViewer handles DELETE /api/mutes/{id}.
func (h *Handler) HandleUnmuteUserForViewer(w http.ResponseWriter, r *http.Request) {
	if err := h.feedService.Unmute(r.Context(), callerID(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unmuted"})
}

// HandleListViewerMutes handles GET /api/mutes.
func (h *Handler) HandleListViewerMutes(w http.ResponseWriter, r *http.Request) {
	muted, err := h.feedService.MutedUsers(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"muted": muted})
}

// recordDenial bumps the enforcement denial counter when a posting attempt
// was blocked by moderation state.
func recordDenial(err error) {
	var me *moderation.Error
	if errors.As(err, &me) {
		switch me.Kind {
		case moderation.KindSuspended, moderation.KindMuted:
			metrics.EnforcementDenialsTotal.WithLabelValues(string(me.Kind)).Inc()
		}
	}
}
