// Package stream provides the model and repository for short-lived geolocated
// live streams.
package stream

import (
	"time"

	"github.com/crowdlens/crowdlens/internal/geo"
)

// Status is the lifecycle state of a stream.
type Status string

const (
	// StatusLive means the broadcaster is currently on air.
	StatusLive Status = "live"
	// StatusEnded means the stream has finished. Terminal.
	StatusEnded Status = "ended"
)

// Device cameras reported by the broadcasting client.
const (
	CameraFront = "front"
	CameraBack  = "back"
)

// Stream is one broadcaster's live geolocated session. The true coordinate is
// captured at stream start and never mutated; disclosure always goes through
// geo.Mask with the stream's own privacy mode.
type Stream struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	Lat          float64         `json:"-"` // true latitude, never serialized
	Lng          float64         `json:"-"` // true longitude, never serialized
	PrivacyMode  geo.PrivacyMode `json:"privacy_mode"`
	DeviceCamera string          `json:"device_camera,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`
	Status       Status          `json:"status"`

	// EventID is a weak reference to the owning cluster. Set once by the
	// cluster engine, kept after the stream ends so historical queries can
	// resolve membership.
	EventID *string `json:"event_id,omitempty"`
}

// IsLive reports whether the stream is currently on air.
func (s *Stream) IsLive() bool {
	return s.Status == StatusLive
}

// clone returns a deep copy so repository callers never share memory with
// stored records.
func (s *Stream) clone() *Stream {
	c := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	if s.EventID != nil {
		id := *s.EventID
		c.EventID = &id
	}
	return &c
}
