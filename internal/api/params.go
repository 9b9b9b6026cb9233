package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crowdlens/crowdlens/internal/event"
	"github.com/crowdlens/crowdlens/internal/geo"
	"github.com/crowdlens/crowdlens/internal/stream"
)

// parseFloat parses a float query/body component with the field name in the
// error message.
func parseFloat(s, name string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be a number", name)
	}
	return v, nil
}

// parseLatLng parses a "lat,lng" pair as used by the ne/sw viewport
// parameters.
func parseLatLng(s, name string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid %s: must be in format lat,lng", name)
	}
	lat, err := parseFloat(parts[0], name+" latitude")
	if err != nil {
		return 0, 0, err
	}
	lng, err := parseFloat(parts[1], name+" longitude")
	if err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

// parseViewport extracts the ne/sw corner parameters into a bounding box.
// Both parameters are required; full box validation happens downstream.
func parseViewport(r *http.Request) (geo.Bbox, error) {
	query := r.URL.Query()
	neStr := query.Get("ne")
	swStr := query.Get("sw")
	if neStr == "" || swStr == "" {
		return geo.Bbox{}, errors.New("both 'ne' and 'sw' parameters are required")
	}
	neLat, neLng, err := parseLatLng(neStr, "ne")
	if err != nil {
		return geo.Bbox{}, err
	}
	swLat, swLng, err := parseLatLng(swStr, "sw")
	if err != nil {
		return geo.Bbox{}, err
	}
	return geo.Bbox{SWLat: swLat, SWLng: swLng, NELat: neLat, NELng: neLng}, nil
}

// parseTimeRange extracts the required from/to RFC3339 parameters.
func parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	query := r.URL.Query()
	fromStr := query.Get("from")
	toStr := query.Get("to")
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, errors.New("both 'from' and 'to' parameters are required")
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid 'from' timestamp, must be RFC3339 format")
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid 'to' timestamp, must be RFC3339 format")
	}
	return from, to, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps domain errors to the API error envelope.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, geo.ErrInvalidCoordinate):
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeInvalidCoordinate, err.Error())
	case errors.Is(err, geo.ErrInvalidRange):
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeInvalidRange, err.Error())
	case errors.Is(err, stream.ErrStreamNotFound):
		writeErrorCode(w, r, http.StatusNotFound, ErrCodeNotFound, "Stream not found")
	case errors.Is(err, stream.ErrStreamEnded):
		writeErrorCode(w, r, http.StatusNotFound, ErrCodeNotFound, "Stream already ended")
	case errors.Is(err, event.ErrEventNotFound):
		writeErrorCode(w, r, http.StatusNotFound, ErrCodeNotFound, "Event not found")
	default:
		writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
	}
}
