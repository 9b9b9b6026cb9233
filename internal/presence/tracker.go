// Package presence tracks who is currently watching each event. Viewers
// announce themselves with watch/keepalive heartbeats; a viewer that stops
// heartbeating is considered gone after a TTL. Expiry is evaluated lazily on
// read so no background sweeper is needed.
package presence

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a viewer counts as watching after their last
// heartbeat.
const DefaultTTL = 90 * time.Second

// FollowGraph answers whether one user follows another. Implementations may
// call out to an external social service; errors are treated as "not
// following" so presence reads never fail on graph outages.
type FollowGraph interface {
	IsFollowing(ctx context.Context, viewerID, candidateID string) (bool, error)
}

// StaticFollowGraph is an in-memory FollowGraph keyed by follower id.
type StaticFollowGraph struct {
	mu      sync.RWMutex
	follows map[string]map[string]bool
}

// NewStaticFollowGraph creates an empty follow graph.
func NewStaticFollowGraph() *StaticFollowGraph {
	return &StaticFollowGraph{follows: make(map[string]map[string]bool)}
}

// Follow records that follower follows followee.
func (g *StaticFollowGraph) Follow(followerID, followeeID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.follows[followerID]
	if !ok {
		set = make(map[string]bool)
		g.follows[followerID] = set
	}
	set[followeeID] = true
}

// IsFollowing implements FollowGraph.
func (g *StaticFollowGraph) IsFollowing(_ context.Context, viewerID, candidateID string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.follows[viewerID][candidateID], nil
}

// Stats is a presence snapshot for one event as seen by one viewer.
type Stats struct {
	WatchingNow     int `json:"watching_now"`
	FriendsWatching int `json:"friends_watching"`
	PeakWatching    int `json:"peak_watching"`
}

// Tracker maintains per-event viewer sets with heartbeat expiry and a peak
// concurrent viewer watermark. All methods are safe for concurrent use.
type Tracker struct {
	ttl   time.Duration
	graph FollowGraph

	mu     sync.Mutex
	events map[string]*eventPresence

	now func() time.Time
}

type eventPresence struct {
	// viewers maps viewer id to last heartbeat time.
	viewers map[string]time.Time
	peak    int
}

// NewTracker creates a presence tracker. graph may be nil, in which case
// friends_watching is always zero. ttl <= 0 selects DefaultTTL.
func NewTracker(ttl time.Duration, graph FollowGraph) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		ttl:    ttl,
		graph:  graph,
		events: make(map[string]*eventPresence),
		now:    time.Now,
	}
}

// Watch records that a viewer is watching the event. Repeated calls refresh
// the heartbeat; a returning viewer within the TTL does not change the count.
func (t *Tracker) Watch(eventID, viewerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	ep, ok := t.events[eventID]
	if !ok {
		ep = &eventPresence{viewers: make(map[string]time.Time)}
		t.events[eventID] = ep
	}
	t.evictLocked(ep, now)
	ep.viewers[viewerID] = now
	if n := len(ep.viewers); n > ep.peak {
		ep.peak = n
	}
}

// Keepalive refreshes a viewer's heartbeat. A keepalive from an unknown or
// expired viewer counts as a fresh watch.
func (t *Tracker) Keepalive(eventID, viewerID string) {
	t.Watch(eventID, viewerID)
}

// Leave removes a viewer immediately. Unknown viewers are a no-op.
func (t *Tracker) Leave(eventID, viewerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ep, ok := t.events[eventID]; ok {
		delete(ep.viewers, viewerID)
	}
}

// WatchingNow returns the current live viewer count for the event.
func (t *Tracker) WatchingNow(eventID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	ep, ok := t.events[eventID]
	if !ok {
		return 0
	}
	t.evictLocked(ep, t.now())
	return len(ep.viewers)
}

// Presence returns the presence snapshot for an event from viewerID's
// perspective. viewerID may be empty; friends_watching is then zero. The
// viewer themselves is never counted among their friends.
func (t *Tracker) Presence(ctx context.Context, eventID, viewerID string) Stats {
	t.mu.Lock()
	ep, ok := t.events[eventID]
	if !ok {
		t.mu.Unlock()
		return Stats{}
	}
	t.evictLocked(ep, t.now())

	watching := make([]string, 0, len(ep.viewers))
	for id := range ep.viewers {
		watching = append(watching, id)
	}
	stats := Stats{WatchingNow: len(watching), PeakWatching: ep.peak}
	t.mu.Unlock()

	// Follow-graph lookups happen outside the lock; the graph may be remote.
	if t.graph == nil || viewerID == "" {
		return stats
	}
	for _, id := range watching {
		if id == viewerID {
			continue
		}
		following, err := t.graph.IsFollowing(ctx, viewerID, id)
		if err != nil {
			continue
		}
		if following {
			stats.FriendsWatching++
		}
	}
	return stats
}

// evictLocked drops viewers whose last heartbeat is older than the TTL.
// Caller holds t.mu.
func (t *Tracker) evictLocked(ep *eventPresence, now time.Time) {
	for id, last := range ep.viewers {
		if now.Sub(last) > t.ttl {
			delete(ep.viewers, id)
		}
	}
}
