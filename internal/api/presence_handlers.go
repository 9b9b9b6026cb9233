package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/crowdlens/crowdlens/internal/event"
	"github.com/crowdlens/crowdlens/internal/presence"
)

// PresenceRequest is the body for watch/keepalive/leave calls.
type PresenceRequest struct {
	UserID string `json:"user_id"`
}

// PresenceHandlers holds dependencies for viewer presence HTTP handlers.
type PresenceHandlers struct {
	tracker *presence.Tracker
	events  event.Repository
}

// NewPresenceHandlers creates a new PresenceHandlers instance.
func NewPresenceHandlers(tracker *presence.Tracker, events event.Repository) *PresenceHandlers {
	return &PresenceHandlers{tracker: tracker, events: events}
}

// Watch handles POST /events/{id}/watch.
func (h *PresenceHandlers) Watch(w http.ResponseWriter, r *http.Request) {
	h.heartbeat(w, r, "watch", h.tracker.Watch)
}

// Keepalive handles POST /events/{id}/keepalive.
func (h *PresenceHandlers) Keepalive(w http.ResponseWriter, r *http.Request) {
	h.heartbeat(w, r, "keepalive", h.tracker.Keepalive)
}

// Leave handles POST /events/{id}/leave.
func (h *PresenceHandlers) Leave(w http.ResponseWriter, r *http.Request) {
	h.heartbeat(w, r, "leave", h.tracker.Leave)
}

// GetPresence handles GET /events/{id}/presence?viewer_id=... - returns the
// presence snapshot from the viewer's perspective.
func (h *PresenceHandlers) GetPresence(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventFromPath(w, r, "presence")
	if !ok {
		return
	}

	viewerID := r.URL.Query().Get("viewer_id")
	stats := h.tracker.Presence(r.Context(), eventID, viewerID)
	writeJSON(w, http.StatusOK, stats)
}

// heartbeat implements the shared body parsing and event lookup for the
// watch/keepalive/leave triplet.
func (h *PresenceHandlers) heartbeat(w http.ResponseWriter, r *http.Request, action string, apply func(eventID, viewerID string)) {
	eventID, ok := h.eventFromPath(w, r, action)
	if !ok {
		return
	}

	var req PresenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}

	apply(eventID, req.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// eventFromPath extracts and validates the event id from
// /events/{id}/<action> paths.
func (h *PresenceHandlers) eventFromPath(w http.ResponseWriter, r *http.Request, action string) (string, bool) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/events/"), "/")
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] != action {
		writeErrorCode(w, r, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return "", false
	}

	eventID := pathParts[0]
	if _, err := h.events.GetByID(eventID); err != nil {
		writeDomainError(w, r, err)
		return "", false
	}
	return eventID, true
}
