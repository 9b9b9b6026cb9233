package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/crowdlens/crowdlens/internal/cluster"
	"github.com/crowdlens/crowdlens/internal/geo"
	"github.com/crowdlens/crowdlens/internal/query"
	"github.com/crowdlens/crowdlens/internal/stream"
)

// CreateStreamRequest represents the request body for starting a stream.
// lat/lng are pointers so a missing coordinate is distinguishable from zero.
type CreateStreamRequest struct {
	OwnerID      string   `json:"owner_id"`
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
	PrivacyMode  string   `json:"privacy_mode,omitempty"`
	DeviceCamera string   `json:"device_camera,omitempty"`
}

// CreateStreamResponse is the created stream plus its clustering outcome.
type CreateStreamResponse struct {
	Stream    query.StreamView `json:"stream"`
	Placement string           `json:"placement"`
	EventID   *string          `json:"event_id,omitempty"`
}

// StreamHandlers holds dependencies for stream HTTP handlers.
type StreamHandlers struct {
	engine  *cluster.Engine
	queries *query.Service
}

// NewStreamHandlers creates a new StreamHandlers instance.
func NewStreamHandlers(engine *cluster.Engine, queries *query.Service) *StreamHandlers {
	return &StreamHandlers{engine: engine, queries: queries}
}

// CreateStream handles POST /streams - registers a live stream and clusters it.
func (h *StreamHandlers) CreateStream(w http.ResponseWriter, r *http.Request) {
	var req CreateStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.OwnerID) == "" {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeValidation, "owner_id is required")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeValidation, "lat and lng are required")
		return
	}

	mode := geo.PrivacyExact
	if req.PrivacyMode != "" {
		parsed, err := geo.ParsePrivacyMode(req.PrivacyMode)
		if err != nil {
			writeErrorCode(w, r, http.StatusBadRequest, ErrCodeValidation, "privacy_mode must be one of: exact, masked_100m, masked_1km")
			return
		}
		mode = parsed
	}

	camera := req.DeviceCamera
	if camera != "" && camera != stream.CameraFront && camera != stream.CameraBack {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeValidation, "device_camera must be 'front' or 'back'")
		return
	}

	created, placement, err := h.engine.CreateStream(r.Context(), req.OwnerID, *req.Lat, *req.Lng, mode, camera)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	view, err := h.queries.Stream(created.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := CreateStreamResponse{
		Stream:    *view,
		Placement: string(placement.Decision),
	}
	if placement.EventID != "" {
		resp.EventID = &placement.EventID
	}
	writeJSON(w, http.StatusCreated, resp)
}

// EndStream handles POST /streams/{id}/end - transitions a stream to ended.
func (h *StreamHandlers) EndStream(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/streams/"), "/")
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] != "end" {
		writeErrorCode(w, r, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}

	if _, err := h.engine.EndStream(r.Context(), pathParts[0]); err != nil {
		writeDomainError(w, r, err)
		return
	}
	view, err := h.queries.Stream(pathParts[0])
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetStream handles GET /streams/{id} - returns the masked stream projection.
func (h *StreamHandlers) GetStream(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/streams/")
	if id == "" || strings.Contains(id, "/") {
		writeErrorCode(w, r, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}

	view, err := h.queries.Stream(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// LiveStreams handles GET /streams/live?ne=lat,lng&sw=lat,lng - lists live
// streams in the viewport, masked individually.
func (h *StreamHandlers) LiveStreams(w http.ResponseWriter, r *http.Request) {
	box, err := parseViewport(r)
	if err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	views, err := h.queries.LiveStreams(box)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"streams": views})
}
