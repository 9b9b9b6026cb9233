// Package cluster implements the stream/event clustering engine: it decides,
// at the moment a stream arrives, whether the stream joins an existing event,
// forms a new one together with nearby unclustered streams, or stays
// unclustered.
package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/crowdlens/crowdlens/internal/event"
	"github.com/crowdlens/crowdlens/internal/geo"
	"github.com/crowdlens/crowdlens/internal/spatial"
	"github.com/crowdlens/crowdlens/internal/stream"
	"github.com/crowdlens/crowdlens/internal/tracing"
)

// Clustering defaults: streams started within RadiusM meters and WindowD of
// each other are considered the same real-world occurrence.
const (
	DefaultRadiusM = 50.0
	DefaultWindow  = 10 * time.Minute
)

// Config holds the clustering parameters.
type Config struct {
	// RadiusM is the grouping radius in meters.
	RadiusM float64
	// Window is the symmetric time horizon around the new stream's creation;
	// candidates created within ±Window are eligible.
	Window time.Duration
}

// DefaultConfig returns the default clustering parameters.
func DefaultConfig() Config {
	return Config{RadiusM: DefaultRadiusM, Window: DefaultWindow}
}

// Decision tags the outcome of a placement evaluation.
type Decision string

const (
	// DecisionUnclustered means no candidate was in range; the stream stands alone.
	DecisionUnclustered Decision = "unclustered"
	// DecisionJoined means the stream joined an existing event.
	DecisionJoined Decision = "joined"
	// DecisionFormed means the stream seeded a new event with nearby
	// unclustered candidates.
	DecisionFormed Decision = "formed"
)

// Placement is the tagged result of a clustering evaluation.
type Placement struct {
	Decision Decision
	// EventID is set for joined and formed placements.
	EventID string
	// Members lists the streams pulled into a newly formed event, the new
	// stream included. Empty unless Decision is DecisionFormed.
	Members []string
}

// Engine maintains the live stream→event assignment. A single engine instance
// is authoritative: arrivals are serialized so each placement sees a
// consistent candidate set, while per-event locks let ends on disjoint events
// proceed concurrently.
type Engine struct {
	cfg       Config
	streams   stream.Repository
	events    event.Repository
	lifecycle *event.Lifecycle
	index     *spatial.Index
	metrics   *Metrics

	arrivals sync.Mutex
	locks    *eventLocks

	now func() time.Time
}

// NewEngine creates a clustering engine. metrics may be nil to disable
// instrumentation.
func NewEngine(cfg Config, streams stream.Repository, events event.Repository, lifecycle *event.Lifecycle, index *spatial.Index, metrics *Metrics) *Engine {
	if cfg.RadiusM <= 0 {
		cfg.RadiusM = DefaultRadiusM
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Engine{
		cfg:       cfg,
		streams:   streams,
		events:    events,
		lifecycle: lifecycle,
		index:     index,
		metrics:   metrics,
		locks:     newEventLocks(),
		now:       time.Now,
	}
}

// CreateStream registers a new live stream and evaluates its placement.
// Clustering never rejects a stream: on any placement anomaly the stream is
// simply left unclustered.
func (e *Engine) CreateStream(ctx context.Context, ownerID string, lat, lng float64, mode geo.PrivacyMode, camera string) (created *stream.Stream, placement Placement, err error) {
	if err := geo.ValidateCoordinate(lat, lng); err != nil {
		return nil, Placement{}, err
	}

	now := e.now().UTC()
	s := &stream.Stream{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		Lat:          lat,
		Lng:          lng,
		PrivacyMode:  mode,
		DeviceCamera: camera,
		CreatedAt:    now,
		Status:       stream.StatusLive,
	}

	ctx, endSpan := tracing.StartEngineSpan(ctx, s.ID, tracing.EngineOperationPlace)
	defer func() { endSpan(err) }()

	e.arrivals.Lock()
	defer e.arrivals.Unlock()

	start := time.Now()
	if err := e.streams.Insert(s); err != nil {
		return nil, Placement{}, fmt.Errorf("inserting stream: %w", err)
	}
	if err := e.index.Insert(s.ID, lat, lng); err != nil {
		return nil, Placement{}, fmt.Errorf("indexing stream: %w", err)
	}

	placement = e.place(ctx, s)
	tracing.SetAttributes(ctx, attribute.String("engine.decision", string(placement.Decision)))
	e.metrics.observePlacement(placement.Decision, time.Since(start).Seconds())
	e.metrics.incStreamsCreated()

	// Re-read so callers see the assigned event id.
	created, err = e.streams.GetByID(s.ID)
	if err != nil {
		return nil, Placement{}, err
	}
	return created, placement, nil
}

// place runs the {no match, join existing, form new} evaluation for a freshly
// inserted live stream. Called with the arrivals lock held.
func (e *Engine) place(ctx context.Context, s *stream.Stream) Placement {
	candidates := e.candidatesFor(s)
	tracing.AddEvent(ctx, "candidates.scanned", attribute.Int("count", len(candidates)))
	if len(candidates) == 0 {
		// A single live stream is never itself an event.
		return Placement{Decision: DecisionUnclustered}
	}

	if target := e.chooseEvent(s, candidates); target != "" {
		if err := e.join(ctx, s, target); err != nil {
			// The target ended between the scan and the join; ended events
			// never reopen, so the stream stays unclustered.
			return Placement{Decision: DecisionUnclustered}
		}
		return Placement{Decision: DecisionJoined, EventID: target}
	}

	ev, err := e.form(ctx, s, candidates)
	if err != nil {
		return Placement{Decision: DecisionUnclustered}
	}
	return Placement{Decision: DecisionFormed, EventID: ev.ID, Members: ev.MemberStreamIDs}
}

// candidatesFor returns the currently-live streams within the clustering
// radius and time window of s, excluding s itself.
func (e *Engine) candidatesFor(s *stream.Stream) []*stream.Stream {
	ids, err := e.index.QueryRadiusM(s.Lat, s.Lng, e.cfg.RadiusM)
	if err != nil {
		return nil
	}
	nearby, err := e.streams.ListByIDs(ids)
	if err != nil {
		return nil
	}

	var out []*stream.Stream
	for _, c := range nearby {
		if c.ID == s.ID || !c.IsLive() {
			continue
		}
		dt := s.CreatedAt.Sub(c.CreatedAt)
		if dt < 0 {
			dt = -dt
		}
		if dt > e.cfg.Window {
			continue
		}
		out = append(out, c)
	}
	return out
}

// chooseEvent picks the event the stream should join: the event containing
// the nearest clustered candidate, ties broken by earliest candidate
// created_at, then lowest stream id for full determinism. Returns "" when no
// candidate is clustered yet.
func (e *Engine) chooseEvent(s *stream.Stream, candidates []*stream.Stream) string {
	var best *stream.Stream
	var bestDist float64
	for _, c := range candidates {
		if c.EventID == nil {
			continue
		}
		d := geo.HaversineDistanceM(s.Lat, s.Lng, c.Lat, c.Lng)
		if best == nil || d < bestDist ||
			(d == bestDist && (c.CreatedAt.Before(best.CreatedAt) ||
				(c.CreatedAt.Equal(best.CreatedAt) && c.ID < best.ID))) {
			best = c
			bestDist = d
		}
	}
	if best == nil {
		return ""
	}
	return *best.EventID
}

// join adds the stream to an existing live event.
func (e *Engine) join(ctx context.Context, s *stream.Stream, eventID string) (err error) {
	ctx, endSpan := tracing.StartEngineSpan(ctx, s.ID, tracing.EngineOperationJoin)
	defer func() { endSpan(err) }()
	tracing.SetAttributes(ctx, attribute.String("event.id", eventID))

	unlock := e.locks.lock(eventID)
	defer unlock()

	if err := e.events.AddMember(eventID, s.ID); err != nil {
		return err
	}
	if err := e.streams.SetEventID(s.ID, eventID); err != nil {
		return err
	}
	return e.lifecycle.OnMemberStatusChanged(eventID)
}

// form creates a new event from the stream and its unclustered candidates.
func (e *Engine) form(ctx context.Context, s *stream.Stream, candidates []*stream.Stream) (ev *event.Event, err error) {
	ctx, endSpan := tracing.StartEngineSpan(ctx, s.ID, tracing.EngineOperationForm)
	defer func() { endSpan(err) }()

	members := append([]*stream.Stream{s}, candidates...)

	ids := make([]string, 0, len(members))
	created := s.CreatedAt
	for _, m := range members {
		ids = append(ids, m.ID)
		if m.CreatedAt.Before(created) {
			created = m.CreatedAt
		}
	}
	lat, lng := event.Centroid(members)

	ev = &event.Event{
		ID:              uuid.New().String(),
		MemberStreamIDs: ids,
		CentroidLat:     lat,
		CentroidLng:     lng,
		RadiusMeters:    event.DefaultRadiusMeters,
		CreatedAt:       created,
		Status:          event.StatusLive,
	}
	if err := e.events.Insert(ev); err != nil {
		return nil, err
	}
	tracing.SetAttributes(ctx,
		attribute.String("event.id", ev.ID),
		attribute.Int("event.members", len(ids)),
	)
	for _, id := range ids {
		if err := e.streams.SetEventID(id, ev.ID); err != nil {
			return nil, err
		}
	}
	e.metrics.incEventsFormed()
	return ev, nil
}

// EndStream transitions a live stream to ended, removes it from the spatial
// index, and reevaluates its event's status. Ending never changes any other
// stream's membership.
func (e *Engine) EndStream(ctx context.Context, id string) (ended *stream.Stream, err error) {
	ctx, endSpan := tracing.StartEngineSpan(ctx, id, tracing.EngineOperationEnd)
	defer func() { endSpan(err) }()

	current, err := e.streams.GetByID(id)
	if err != nil {
		return nil, err
	}

	var unlock func()
	if current.EventID != nil {
		unlock = e.locks.lock(*current.EventID)
		defer unlock()
	}

	ended, err = e.streams.End(id, e.now().UTC())
	if err != nil {
		return nil, err
	}
	e.index.Remove(id)
	e.metrics.incStreamsEnded()

	if ended.EventID != nil {
		_, endLifecycle := tracing.StartSpan(ctx, "lifecycle.reevaluate")
		err = e.lifecycle.OnMemberStatusChanged(*ended.EventID)
		endLifecycle(err)
		if err != nil {
			return nil, fmt.Errorf("reevaluating event %s: %w", *ended.EventID, err)
		}
		if ev, err := e.events.GetByID(*ended.EventID); err == nil && !ev.IsLive() {
			tracing.AddEvent(ctx, "event.ended", attribute.String("event.id", ev.ID))
			e.metrics.incEventsEnded()
		}
	}
	return ended, nil
}

// eventLocks is a lazily-populated table of per-event mutexes serializing
// mutations that touch the same event.
type eventLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newEventLocks() *eventLocks {
	return &eventLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for the given event id and returns its unlock func.
func (l *eventLocks) lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
