package event

import (
	"fmt"
	"time"

	"github.com/crowdlens/crowdlens/internal/stream"
)

// Lifecycle owns Event status transitions and centroid bookkeeping. It is the
// sole writer of Event.Status: the cluster engine reports membership and
// member-status changes here and never touches status itself.
type Lifecycle struct {
	events  Repository
	streams stream.Repository
}

// NewLifecycle creates a lifecycle manager over the given repositories.
func NewLifecycle(events Repository, streams stream.Repository) *Lifecycle {
	return &Lifecycle{events: events, streams: streams}
}

// OnMemberStatusChanged recomputes the event's status and centroid after a
// member stream changed state or was added.
//
// Status is live iff any member stream is live; the live→ended transition is
// terminal. The centroid is the mean true coordinate over ALL current
// members, ended streams included, so an ended event keeps its historical
// location.
func (l *Lifecycle) OnMemberStatusChanged(eventID string) error {
	e, err := l.events.GetByID(eventID)
	if err != nil {
		return err
	}

	members, err := l.streams.ListByEvent(eventID)
	if err != nil {
		return fmt.Errorf("listing members of event %s: %w", eventID, err)
	}
	if len(members) == 0 {
		// An event is never created empty; nothing to recompute.
		return nil
	}

	lat, lng := Centroid(members)
	if err := l.events.UpdateCentroid(eventID, lat, lng); err != nil {
		return err
	}

	if e.Status == StatusEnded {
		// Terminal: never transitions back, regardless of member state.
		return nil
	}

	anyLive := false
	lastEnded := time.Time{}
	for _, m := range members {
		if m.IsLive() {
			anyLive = true
			break
		}
		if m.EndedAt != nil && m.EndedAt.After(lastEnded) {
			lastEnded = *m.EndedAt
		}
	}
	if anyLive {
		return nil
	}

	if lastEnded.IsZero() {
		lastEnded = time.Now().UTC()
	}
	return l.events.SetEnded(eventID, lastEnded)
}

// Centroid computes the arithmetic mean of the true coordinates of the given
// streams. Callers guarantee a non-empty slice.
func Centroid(members []*stream.Stream) (lat, lng float64) {
	for _, m := range members {
		lat += m.Lat
		lng += m.Lng
	}
	n := float64(len(members))
	return lat / n, lng / n
}
