package stream

import (
	"errors"
	"sync"
	"time"
)

// Common errors for stream operations.
var (
	// ErrStreamNotFound means no stream exists under the given id.
	ErrStreamNotFound = errors.New("stream not found")
	// ErrStreamEnded means the stream has already transitioned to ended.
	ErrStreamEnded = errors.New("stream already ended")
	// ErrDuplicateStream means a stream with the same id already exists.
	ErrDuplicateStream = errors.New("stream already exists")
)

// Repository defines the interface for stream data operations. The cluster
// engine is the sole caller of SetEventID; everything else is bookkeeping
// around immutable stream records.
type Repository interface {
	// Insert stores a new stream. Fails with ErrDuplicateStream on id reuse.
	Insert(s *Stream) error

	// GetByID retrieves a stream by id.
	GetByID(id string) (*Stream, error)

	// ListByIDs retrieves all streams whose ids appear in ids, skipping
	// unknown ids.
	ListByIDs(ids []string) ([]*Stream, error)

	// ListByEvent returns all streams (live and ended) assigned to an event.
	ListByEvent(eventID string) ([]*Stream, error)

	// SetEventID assigns a stream to an event. Assignment happens at most
	// once per stream and is never cleared.
	SetEventID(streamID, eventID string) error

	// End transitions a live stream to ended at the given time. Fails with
	// ErrStreamNotFound for unknown ids and ErrStreamEnded when already ended.
	End(streamID string, at time.Time) (*Stream, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; all returns are deep copies.
type InMemoryRepository struct {
	mu      sync.RWMutex
	streams map[string]*Stream
	byEvent map[string][]string // eventID -> stream ids in assignment order
}

// NewInMemoryRepository creates a new in-memory stream repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		streams: make(map[string]*Stream),
		byEvent: make(map[string][]string),
	}
}

// Insert stores a new stream.
func (r *InMemoryRepository) Insert(s *Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.streams[s.ID]; exists {
		return ErrDuplicateStream
	}
	r.streams[s.ID] = s.clone()
	if s.EventID != nil {
		r.byEvent[*s.EventID] = append(r.byEvent[*s.EventID], s.ID)
	}
	return nil
}

// GetByID retrieves a stream by id.
func (r *InMemoryRepository) GetByID(id string) (*Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.streams[id]
	if !ok {
		return nil, ErrStreamNotFound
	}
	return s.clone(), nil
}

// ListByIDs retrieves the streams stored under the given ids.
func (r *InMemoryRepository) ListByIDs(ids []string) ([]*Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Stream, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.streams[id]; ok {
			out = append(out, s.clone())
		}
	}
	return out, nil
}

// ListByEvent returns all streams assigned to an event, in assignment order.
func (r *InMemoryRepository) ListByEvent(eventID string) ([]*Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byEvent[eventID]
	out := make([]*Stream, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.streams[id]; ok {
			out = append(out, s.clone())
		}
	}
	return out, nil
}

// SetEventID assigns a stream to an event.
func (r *InMemoryRepository) SetEventID(streamID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.streams[streamID]
	if !ok {
		return ErrStreamNotFound
	}
	if s.EventID != nil {
		// Assignment is one-shot; repeated assignment to the same event is
		// an idempotent no-op.
		if *s.EventID == eventID {
			return nil
		}
		return errors.New("stream already assigned to a different event")
	}
	id := eventID
	s.EventID = &id
	r.byEvent[eventID] = append(r.byEvent[eventID], streamID)
	return nil
}

// End transitions a live stream to ended.
func (r *InMemoryRepository) End(streamID string, at time.Time) (*Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.streams[streamID]
	if !ok {
		return nil, ErrStreamNotFound
	}
	if s.Status == StatusEnded {
		return nil, ErrStreamEnded
	}
	ended := at
	if ended.Before(s.CreatedAt) {
		// ended_at must never precede created_at.
		ended = s.CreatedAt
	}
	s.Status = StatusEnded
	s.EndedAt = &ended
	return s.clone(), nil
}
