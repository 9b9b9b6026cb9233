package api

import (
	"net/http"
	"strings"

	"github.com/crowdlens/crowdlens/internal/presence"
	"github.com/crowdlens/crowdlens/internal/query"
)

// EventHandlers holds dependencies for event HTTP handlers.
type EventHandlers struct {
	queries *query.Service
	tracker *presence.Tracker
}

// NewEventHandlers creates a new EventHandlers instance. The tracker supplies
// viewer counts on event detail; it may be nil, in which case counts are
// omitted.
func NewEventHandlers(queries *query.Service, tracker *presence.Tracker) *EventHandlers {
	return &EventHandlers{queries: queries, tracker: tracker}
}

// EventDetailResponse is an event detail enriched with the tracker's viewer
// counts. Friend visibility stays on the presence endpoint, which knows the
// viewer.
type EventDetailResponse struct {
	query.EventDetail
	WatchingNow  int `json:"watching_now"`
	PeakWatching int `json:"peak_watching"`
}

// LiveEvents handles GET /events/live?ne=lat,lng&sw=lat,lng - returns the
// clustered viewport: events plus unclustered streams.
func (h *EventHandlers) LiveEvents(w http.ResponseWriter, r *http.Request) {
	box, err := parseViewport(r)
	if err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	vp, err := h.queries.Live(box)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vp)
}

// RangeEvents handles GET /events/range?from=...&to=...&ne=...&sw=... -
// returns events created in the interval whose masked centroid is in view.
func (h *EventHandlers) RangeEvents(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	box, err := parseViewport(r)
	if err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	views, err := h.queries.Range(from, to, box)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": views})
}

// GetEvent handles GET /events/{id} - returns the event with its masked
// member streams.
func (h *EventHandlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/events/")
	if id == "" || strings.Contains(id, "/") {
		writeErrorCode(w, r, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}

	detail, err := h.queries.Detail(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := EventDetailResponse{EventDetail: *detail}
	if h.tracker != nil {
		stats := h.tracker.Presence(r.Context(), id, "")
		resp.WatchingNow = stats.WatchingNow
		resp.PeakWatching = stats.PeakWatching
	}
	writeJSON(w, http.StatusOK, resp)
}
