// Package query serves read-side viewport queries: live streams and events
// within a bounding box, historical events by time range, and event detail.
// All coordinates leaving this package are privacy-masked; raw positions
// never appear in query results.
package query

import (
	"fmt"
	"time"

	"github.com/crowdlens/crowdlens/internal/event"
	"github.com/crowdlens/crowdlens/internal/geo"
	"github.com/crowdlens/crowdlens/internal/spatial"
	"github.com/crowdlens/crowdlens/internal/stream"
)

// StreamView is the public, masked projection of a stream.
type StreamView struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Lat           float64         `json:"lat"`
	Lng           float64         `json:"lng"`
	CoarseGeohash string          `json:"coarse_geohash"`
	PrivacyMode   geo.PrivacyMode `json:"privacy_mode"`
	DeviceCamera  string          `json:"device_camera"`
	Status        stream.Status   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	EndedAt       *time.Time      `json:"ended_at,omitempty"`
	EventID       *string         `json:"event_id,omitempty"`
}

// EventView is the public, masked projection of an event. The centroid is
// masked with the coarsest privacy mode among the event's members, so a
// single privacy-conscious streamer coarsens the whole event.
type EventView struct {
	ID            string          `json:"id"`
	Lat           float64         `json:"lat"`
	Lng           float64         `json:"lng"`
	CoarseGeohash string          `json:"coarse_geohash"`
	PrivacyMode   geo.PrivacyMode `json:"privacy_mode"`
	RadiusMeters  int             `json:"radius_meters"`
	StreamCount   int             `json:"stream_count"`
	Hashtags      []string        `json:"hashtags,omitempty"`
	Status        event.Status    `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	EndedAt       *time.Time      `json:"ended_at,omitempty"`
}

// EventDetail is an event together with its member streams.
type EventDetail struct {
	Event   EventView    `json:"event"`
	Streams []StreamView `json:"streams"`
}

// Viewport is the result of a live viewport query: clustered activity as
// events, plus the streams that stand alone.
type Viewport struct {
	Events  []EventView  `json:"events"`
	Streams []StreamView `json:"streams"`
}

// Service answers viewport queries against the stream and event repositories.
type Service struct {
	streams stream.Repository
	events  event.Repository
	index   *spatial.Index
}

// NewService creates a query service backed by the given repositories and
// live-stream spatial index.
func NewService(streams stream.Repository, events event.Repository, index *spatial.Index) *Service {
	return &Service{streams: streams, events: events, index: index}
}

// Live returns the live activity inside the bounding box. Clustered streams
// surface once through their event; unclustered streams are listed
// individually. A stream anywhere inside the box pulls its whole event in.
func (s *Service) Live(box geo.Bbox) (*Viewport, error) {
	ids, err := s.index.QueryBbox(box)
	if err != nil {
		return nil, err
	}
	visible, err := s.streams.ListByIDs(ids)
	if err != nil {
		return nil, err
	}

	vp := &Viewport{Events: []EventView{}, Streams: []StreamView{}}
	seenEvents := make(map[string]bool)
	for _, st := range visible {
		if st.EventID == nil {
			view, err := maskStream(st)
			if err != nil {
				return nil, err
			}
			vp.Streams = append(vp.Streams, view)
			continue
		}
		if seenEvents[*st.EventID] {
			continue
		}
		seenEvents[*st.EventID] = true
		view, err := s.eventView(*st.EventID)
		if err != nil {
			return nil, err
		}
		vp.Events = append(vp.Events, view)
	}
	return vp, nil
}

// LiveStreams returns every live stream inside the bounding box, each masked
// through its own privacy mode. Clustered streams carry their event id.
func (s *Service) LiveStreams(box geo.Bbox) ([]StreamView, error) {
	ids, err := s.index.QueryBbox(box)
	if err != nil {
		return nil, err
	}
	visible, err := s.streams.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	views := make([]StreamView, 0, len(visible))
	for _, st := range visible {
		view, err := maskStream(st)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Range returns events created within [from, to] whose masked centroid falls
// inside the bounding box. Both live and ended events match.
func (s *Service) Range(from, to time.Time, box geo.Bbox) ([]EventView, error) {
	if from.After(to) {
		return nil, fmt.Errorf("%w: from is after to", geo.ErrInvalidRange)
	}
	if err := box.Validate(); err != nil {
		return nil, err
	}

	candidates, err := s.events.ListCreatedBetween(from, to)
	if err != nil {
		return nil, err
	}

	views := []EventView{}
	for _, ev := range candidates {
		view, err := s.buildEventView(ev)
		if err != nil {
			return nil, err
		}
		if box.Contains(view.Lat, view.Lng) {
			views = append(views, view)
		}
	}
	return views, nil
}

// Detail returns an event with its masked member streams. Returns
// event.ErrEventNotFound for unknown ids.
func (s *Service) Detail(eventID string) (*EventDetail, error) {
	ev, err := s.events.GetByID(eventID)
	if err != nil {
		return nil, err
	}
	view, err := s.buildEventView(ev)
	if err != nil {
		return nil, err
	}

	members, err := s.streams.ListByEvent(eventID)
	if err != nil {
		return nil, err
	}
	streams := make([]StreamView, 0, len(members))
	for _, st := range members {
		sv, err := maskStream(st)
		if err != nil {
			return nil, err
		}
		streams = append(streams, sv)
	}
	return &EventDetail{Event: view, Streams: streams}, nil
}

// Stream returns the masked projection of a single stream.
func (s *Service) Stream(streamID string) (*StreamView, error) {
	st, err := s.streams.GetByID(streamID)
	if err != nil {
		return nil, err
	}
	view, err := maskStream(st)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *Service) eventView(eventID string) (EventView, error) {
	ev, err := s.events.GetByID(eventID)
	if err != nil {
		return EventView{}, err
	}
	return s.buildEventView(ev)
}

func (s *Service) buildEventView(ev *event.Event) (EventView, error) {
	members, err := s.streams.ListByEvent(ev.ID)
	if err != nil {
		return EventView{}, err
	}
	modes := make([]geo.PrivacyMode, 0, len(members))
	for _, m := range members {
		modes = append(modes, m.PrivacyMode)
	}
	mode := geo.CoarsestMode(modes...)

	lat, lng, err := geo.Mask(ev.CentroidLat, ev.CentroidLng, mode)
	if err != nil {
		return EventView{}, err
	}
	return EventView{
		ID:            ev.ID,
		Lat:           lat,
		Lng:           lng,
		CoarseGeohash: geo.CoarseGeohash(lat, lng, mode),
		PrivacyMode:   mode,
		RadiusMeters:  ev.RadiusMeters,
		StreamCount:   ev.StreamCount(),
		Hashtags:      ev.Hashtags,
		Status:        ev.Status,
		CreatedAt:     ev.CreatedAt,
		EndedAt:       ev.EndedAt,
	}, nil
}

// maskStream projects a stream through its own privacy mode.
func maskStream(st *stream.Stream) (StreamView, error) {
	lat, lng, err := geo.Mask(st.Lat, st.Lng, st.PrivacyMode)
	if err != nil {
		return StreamView{}, err
	}
	return StreamView{
		ID:            st.ID,
		OwnerID:       st.OwnerID,
		Lat:           lat,
		Lng:           lng,
		CoarseGeohash: geo.CoarseGeohash(lat, lng, st.PrivacyMode),
		PrivacyMode:   st.PrivacyMode,
		DeviceCamera:  st.DeviceCamera,
		Status:        st.Status,
		CreatedAt:     st.CreatedAt,
		EndedAt:       st.EndedAt,
		EventID:       st.EventID,
	}, nil
}
