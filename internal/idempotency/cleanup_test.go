package idempotency

import (
	"testing"
	"time"
)

func storedKey(key string, age time.Duration) *IdempotencyKey {
	streamID := "stream-" + key
	return &IdempotencyKey{
		Key:                key,
		Method:             "POST",
		Route:              "/streams",
		CreatedAt:          time.Now().Add(-age),
		ResponseHash:       "hash-" + key,
		Status:             StatusCompleted,
		StreamID:           &streamID,
		ResponseBody:       `{"stream":{"id":"` + streamID + `"}}`,
		ResponseStatusCode: 201,
	}
}

func TestCleanupOldKeys(t *testing.T) {
	repo := NewInMemoryRepository()

	if err := repo.Store(storedKey("expired", 25*time.Hour)); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := repo.Store(storedKey("fresh", time.Hour)); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	deleted, err := CleanupOldKeys(repo, DefaultExpiry)
	if err != nil {
		t.Fatalf("CleanupOldKeys() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("CleanupOldKeys() deleted = %d, want 1", deleted)
	}

	if _, err := repo.Get("expired"); err != ErrKeyNotFound {
		t.Errorf("Get() expired key error = %v, want %v", err, ErrKeyNotFound)
	}
	if _, err := repo.Get("fresh"); err != nil {
		t.Errorf("Get() fresh key error = %v, want nil", err)
	}
}

func TestCleanupOldKeys_EmptyRepository(t *testing.T) {
	repo := NewInMemoryRepository()

	deleted, err := CleanupOldKeys(repo, DefaultExpiry)
	if err != nil {
		t.Fatalf("CleanupOldKeys() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("CleanupOldKeys() deleted = %d, want 0", deleted)
	}
}

func TestRunPeriodicCleanup_SweepsAndStops(t *testing.T) {
	repo := NewInMemoryRepository()

	if err := repo.Store(storedKey("expired", 25*time.Hour)); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	stopChan := make(chan struct{})
	done := make(chan struct{})
	go func() {
		RunPeriodicCleanup(repo, 100*time.Millisecond, DefaultExpiry, stopChan)
		close(done)
	}()

	// The initial sweep runs immediately on start.
	time.Sleep(150 * time.Millisecond)

	if _, err := repo.Get("expired"); err != ErrKeyNotFound {
		t.Errorf("Get() expired key error = %v, want %v", err, ErrKeyNotFound)
	}

	close(stopChan)

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("RunPeriodicCleanup() did not stop within timeout")
	}
}
