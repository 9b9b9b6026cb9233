package idempotency

import (
	"strings"
	"testing"
	"time"
)

func creationRecord(key string) *IdempotencyKey {
	streamID := "str-1"
	return &IdempotencyKey{
		Key:                key,
		Method:             "POST",
		Route:              "/streams",
		ResponseHash:       "abc123",
		Status:             StatusCompleted,
		StreamID:           &streamID,
		ResponseBody:       `{"stream":{"id":"str-1"},"placement":"unclustered"}`,
		ResponseStatusCode: 201,
	}
}

func TestInMemoryRepository_GetAndStore(t *testing.T) {
	repo := NewInMemoryRepository()

	if _, err := repo.Get("nonexistent"); err != ErrKeyNotFound {
		t.Errorf("Get() error = %v, want %v", err, ErrKeyNotFound)
	}

	record := creationRecord("create-1")
	if err := repo.Store(record); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	retrieved, err := repo.Get("create-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if retrieved.Key != record.Key {
		t.Errorf("Get() Key = %v, want %v", retrieved.Key, record.Key)
	}
	if retrieved.Route != "/streams" {
		t.Errorf("Get() Route = %v, want /streams", retrieved.Route)
	}
	if retrieved.StreamID == nil || *retrieved.StreamID != "str-1" {
		t.Errorf("Get() StreamID = %v, want str-1", retrieved.StreamID)
	}
	if retrieved.ResponseBody != record.ResponseBody {
		t.Errorf("Get() ResponseBody = %v, want %v", retrieved.ResponseBody, record.ResponseBody)
	}
}

func TestInMemoryRepository_StoreDuplicate(t *testing.T) {
	repo := NewInMemoryRepository()

	if err := repo.Store(creationRecord("create-1")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := repo.Store(creationRecord("create-1")); err != ErrKeyExists {
		t.Errorf("Store() duplicate error = %v, want %v", err, ErrKeyExists)
	}
}

func TestInMemoryRepository_StoreInvalidKey(t *testing.T) {
	repo := NewInMemoryRepository()

	tests := []struct {
		name      string
		key       string
		expectErr error
	}{
		{"empty key", "", ErrInvalidKey},
		{"key too long", strings.Repeat("x", MaxKeyLength+1), ErrKeyTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Store(creationRecord(tt.key)); err != tt.expectErr {
				t.Errorf("Store() error = %v, want %v", err, tt.expectErr)
			}
		})
	}
}

func TestInMemoryRepository_StoreSetsCreatedAt(t *testing.T) {
	repo := NewInMemoryRepository()

	record := creationRecord("create-1")
	record.CreatedAt = time.Time{}
	if err := repo.Store(record); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	retrieved, err := repo.Get("create-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if retrieved.CreatedAt.IsZero() {
		t.Error("Store() should stamp CreatedAt")
	}
}

func TestInMemoryRepository_DeleteOlderThan(t *testing.T) {
	repo := NewInMemoryRepository()

	expired := creationRecord("expired")
	expired.CreatedAt = time.Now().Add(-25 * time.Hour)
	fresh := creationRecord("fresh")
	fresh.CreatedAt = time.Now().Add(-time.Hour)

	if err := repo.Store(expired); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := repo.Store(fresh); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	deleted, err := repo.DeleteOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteOlderThan() deleted = %d, want 1", deleted)
	}

	if _, err := repo.Get("expired"); err != ErrKeyNotFound {
		t.Errorf("Get() expired key error = %v, want %v", err, ErrKeyNotFound)
	}
	if _, err := repo.Get("fresh"); err != nil {
		t.Errorf("Get() fresh key error = %v, want nil", err)
	}
}

func TestInMemoryRepository_Isolation(t *testing.T) {
	repo := NewInMemoryRepository()

	original := creationRecord("create-1")
	if err := repo.Store(original); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	// Mutating the caller's record must not reach the stored copy.
	original.ResponseBody = "modified"
	*original.StreamID = "mutated"

	retrieved, err := repo.Get("create-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if retrieved.ResponseBody == "modified" {
		t.Error("stored record shares ResponseBody with caller")
	}
	if retrieved.StreamID != nil && *retrieved.StreamID == "mutated" {
		t.Error("stored record shares StreamID pointer with caller")
	}
}
