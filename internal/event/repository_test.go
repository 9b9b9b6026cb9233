package event

import (
	"errors"
	"testing"
	"time"
)

var baseTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestEvent(id string) *Event {
	return &Event{
		ID:              id,
		MemberStreamIDs: []string{"s1", "s2"},
		CentroidLat:     41.0,
		CentroidLng:     29.0,
		RadiusMeters:    DefaultRadiusMeters,
		CreatedAt:       baseTime,
		Status:          StatusLive,
	}
}

func TestEventRepositoryInsertGet(t *testing.T) {
	repo := NewInMemoryRepository()

	if err := repo.Insert(newTestEvent("e1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	got, err := repo.GetByID("e1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.StreamCount() != 2 || !got.IsLive() {
		t.Errorf("unexpected event: %+v", got)
	}

	if err := repo.Insert(newTestEvent("e1")); !errors.Is(err, ErrDuplicateEvent) {
		t.Errorf("expected ErrDuplicateEvent, got %v", err)
	}
	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound, got %v", err)
	}
}

func TestEventRepositoryReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	if err := repo.Insert(newTestEvent("e1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	first, _ := repo.GetByID("e1")
	first.MemberStreamIDs[0] = "tampered"
	first.Status = StatusEnded

	second, _ := repo.GetByID("e1")
	if second.MemberStreamIDs[0] != "s1" || second.Status != StatusLive {
		t.Error("mutating a returned event must not affect the stored record")
	}
}

func TestEventRepositoryAddMember(t *testing.T) {
	repo := NewInMemoryRepository()
	if err := repo.Insert(newTestEvent("e1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := repo.AddMember("e1", "s3"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	// Duplicate member is a no-op.
	if err := repo.AddMember("e1", "s3"); err != nil {
		t.Fatalf("duplicate AddMember failed: %v", err)
	}
	got, _ := repo.GetByID("e1")
	if got.StreamCount() != 3 {
		t.Errorf("expected 3 members, got %d", got.StreamCount())
	}

	// No member joins an ended event.
	if err := repo.SetEnded("e1", baseTime.Add(time.Hour)); err != nil {
		t.Fatalf("SetEnded failed: %v", err)
	}
	if err := repo.AddMember("e1", "s4"); !errors.Is(err, ErrEventEnded) {
		t.Errorf("expected ErrEventEnded, got %v", err)
	}
}

func TestEventRepositorySetEndedTerminal(t *testing.T) {
	repo := NewInMemoryRepository()
	if err := repo.Insert(newTestEvent("e1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	first := baseTime.Add(30 * time.Minute)
	if err := repo.SetEnded("e1", first); err != nil {
		t.Fatalf("SetEnded failed: %v", err)
	}
	// Second SetEnded is a no-op and keeps the original timestamp.
	if err := repo.SetEnded("e1", baseTime.Add(2*time.Hour)); err != nil {
		t.Fatalf("repeated SetEnded failed: %v", err)
	}

	got, _ := repo.GetByID("e1")
	if got.Status != StatusEnded || got.EndedAt == nil || !got.EndedAt.Equal(first) {
		t.Errorf("unexpected event after double end: %+v", got)
	}
}

func TestEventRepositoryListCreatedBetween(t *testing.T) {
	repo := NewInMemoryRepository()
	for i, id := range []string{"e1", "e2", "e3"} {
		e := newTestEvent(id)
		e.CreatedAt = baseTime.Add(time.Duration(i) * time.Hour)
		if err := repo.Insert(e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := repo.ListCreatedBetween(baseTime, baseTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListCreatedBetween failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 events in window, got %d", len(got))
	}

	// Interval bounds are closed.
	got, _ = repo.ListCreatedBetween(baseTime.Add(2*time.Hour), baseTime.Add(2*time.Hour))
	if len(got) != 1 || got[0].ID != "e3" {
		t.Errorf("expected exactly [e3], got %v", got)
	}
}
