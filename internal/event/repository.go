package event

import (
	"errors"
	"sync"
	"time"
)

// Common errors for event operations.
var (
	// ErrEventNotFound means no event exists under the given id.
	ErrEventNotFound = errors.New("event not found")
	// ErrEventEnded means the event has already transitioned to ended.
	ErrEventEnded = errors.New("event already ended")
	// ErrDuplicateEvent means an event with the same id already exists.
	ErrDuplicateEvent = errors.New("event already exists")
)

// Repository defines the interface for event data operations. Events are
// never deleted; ended events remain queryable for historical range queries.
type Repository interface {
	// Insert stores a new event. Fails with ErrDuplicateEvent on id reuse.
	Insert(e *Event) error

	// GetByID retrieves an event by id.
	GetByID(id string) (*Event, error)

	// AddMember appends a stream to the member set. Fails with ErrEventEnded
	// for ended events; membership only grows while an event is live.
	AddMember(eventID, streamID string) error

	// UpdateCentroid replaces the stored true centroid.
	UpdateCentroid(eventID string, lat, lng float64) error

	// SetEnded transitions a live event to ended at the given time. The
	// transition is terminal; ending an already-ended event is a no-op.
	SetEnded(eventID string, at time.Time) error

	// ListCreatedBetween returns every event whose created_at falls within
	// the closed interval [from, to], regardless of status.
	ListCreatedBetween(from, to time.Time) ([]*Event, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; all returns are deep copies.
type InMemoryRepository struct {
	mu     sync.RWMutex
	events map[string]*Event
	order  []string // insertion order, for stable listings
}

// NewInMemoryRepository creates a new in-memory event repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		events: make(map[string]*Event),
	}
}

// Insert stores a new event.
func (r *InMemoryRepository) Insert(e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[e.ID]; exists {
		return ErrDuplicateEvent
	}
	r.events[e.ID] = e.clone()
	r.order = append(r.order, e.ID)
	return nil
}

// GetByID retrieves an event by id.
func (r *InMemoryRepository) GetByID(id string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e.clone(), nil
}

// AddMember appends a stream to the member set of a live event.
func (r *InMemoryRepository) AddMember(eventID, streamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	if e.Status == StatusEnded {
		return ErrEventEnded
	}
	for _, id := range e.MemberStreamIDs {
		if id == streamID {
			return nil
		}
	}
	e.MemberStreamIDs = append(e.MemberStreamIDs, streamID)
	return nil
}

// UpdateCentroid replaces the stored true centroid.
func (r *InMemoryRepository) UpdateCentroid(eventID string, lat, lng float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	e.CentroidLat = lat
	e.CentroidLng = lng
	return nil
}

// SetEnded transitions a live event to ended.
func (r *InMemoryRepository) SetEnded(eventID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	if e.Status == StatusEnded {
		return nil
	}
	ended := at
	if ended.Before(e.CreatedAt) {
		ended = e.CreatedAt
	}
	e.Status = StatusEnded
	e.EndedAt = &ended
	return nil
}

// ListCreatedBetween returns events created within [from, to] in insertion order.
func (r *InMemoryRepository) ListCreatedBetween(from, to time.Time) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Event
	for _, id := range r.order {
		e := r.events[id]
		if e.CreatedAt.Before(from) || e.CreatedAt.After(to) {
			continue
		}
		out = append(out, e.clone())
	}
	return out, nil
}
