// Package handlers contains the HTTP handlers for the mlem API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iceinvein/mlem/internal/feed"
	"github.com/iceinvein/mlem/internal/identity"
	"github.com/iceinvein/mlem/internal/moderation"

	"github.com/rs/zerolog/log"
)

// Handler contains all HTTP handler methods and their dependencies.
// Dependencies are injected via the constructor for better testability.
type Handler struct {
	moderationService *moderation.Service
	feedService       *feed.Service
	identityService   *identity.Service
}

// NewHandler creates a new Handler with all required dependencies.
// This constructor pattern ensures the Handler is always fully initialized.
func NewHandler(
	moderationService *moderation.Service,
	feedService *feed.Service,
	identityService *identity.Service,
) *Handler {
	return &Handler{
		moderationService: moderationService,
		feedService:       feedService,
		identityService:   identityService,
	}
}

// errorResponse is the JSON body for all error responses.
type errorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("handlers: failed to encode response")
	}
}

// writeError maps a service error to an HTTP response. Moderation errors
// carry a kind that determines the status code; anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	var me *moderation.Error
	if !errors.As(err, &me) {
		log.Error().Err(err).Msg("handlers: internal error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Status:  "error",
			Message: "Internal server error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch me.Kind {
	case moderation.KindUnauthenticated:
		status = http.StatusUnauthorized
	case moderation.KindForbidden, moderation.KindSuspended, moderation.KindMuted:
		status = http.StatusForbidden
	case moderation.KindNotFound:
		status = http.StatusNotFound
	case moderation.KindAlreadyReported:
		status = http.StatusConflict
	case moderation.KindSelfReport, moderation.KindSelfMute,
		moderation.KindInvalidActionType, moderation.KindInvalidArgument:
		status = http.StatusBadRequest
	case moderation.KindRateLimited:
		status = http.StatusTooManyRequests
	}

	writeJSON(w, status, errorResponse{
		Status:  "error",
		Error:   string(me.Kind),
		Message: me.Message,
	})
}

// decodeJSON decodes the request body into v. On failure it writes a 400
// response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Status:  "error",
			Error:   "invalid_json",
			Message: "Invalid JSON",
		})
		return false
	}
	return true
}

// callerID extracts the authenticated caller from the request context.
// Returns an empty string when unauthenticated; the services reject empty
// callers with an unauthenticated error, so handlers can pass it through.
func callerID(r *http.Request) string {
	userID, err := identity.CallerID(r.Context())
	if err != nil {
		return ""
	}
	return userID
}

// HandleHealthz responds to liveness probes.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
