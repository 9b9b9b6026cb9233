// Package event provides the Event cluster model, its repository, and the
// lifecycle logic that keeps event status and centroid in sync with member
// streams.
package event

import (
	"time"
)

// Status is the lifecycle state of an event.
type Status string

const (
	// StatusLive means at least one member stream is still on air.
	StatusLive Status = "live"
	// StatusEnded means every member stream has ended. Terminal: an ended
	// event never returns to live and never gains members.
	StatusEnded Status = "ended"
)

// DefaultRadiusMeters is the clustering radius an event covers on the map.
const DefaultRadiusMeters = 50

// Event is a cluster of streams considered the same real-world occurrence.
// The centroid is the arithmetic mean of the true coordinates of all current
// members, live or ended; it is held internally and masked before disclosure.
type Event struct {
	ID              string     `json:"id"`
	MemberStreamIDs []string   `json:"member_stream_ids"`
	CentroidLat     float64    `json:"-"` // true centroid, never serialized
	CentroidLng     float64    `json:"-"`
	RadiusMeters    int        `json:"radius_meters"`
	Hashtags        []string   `json:"hashtags"`
	CreatedAt       time.Time  `json:"created_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Status          Status     `json:"status"`
}

// StreamCount returns the number of member streams.
func (e *Event) StreamCount() int {
	return len(e.MemberStreamIDs)
}

// IsLive reports whether the event still has a live member.
func (e *Event) IsLive() bool {
	return e.Status == StatusLive
}

// clone returns a deep copy so repository callers never share memory with
// stored records.
func (e *Event) clone() *Event {
	c := *e
	c.MemberStreamIDs = append([]string(nil), e.MemberStreamIDs...)
	if e.Hashtags != nil {
		c.Hashtags = append([]string(nil), e.Hashtags...)
	}
	if e.EndedAt != nil {
		t := *e.EndedAt
		c.EndedAt = &t
	}
	return &c
}
