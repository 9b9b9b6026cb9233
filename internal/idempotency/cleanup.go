// Package idempotency provides idempotency key storage for safe retries of
// stream creation requests.
package idempotency

import (
	"log/slog"
	"time"
)

// DefaultExpiry is how long idempotency keys are retained. A day comfortably
// covers client retry windows for stream creation.
const DefaultExpiry = 24 * time.Hour

// CleanupOldKeys removes idempotency keys older than expiry and returns the
// number of keys deleted.
func CleanupOldKeys(repo Repository, expiry time.Duration) (int64, error) {
	deleted, err := repo.DeleteOlderThan(expiry)
	if err != nil {
		slog.Error("failed to cleanup old idempotency keys", "error", err)
		return 0, err
	}

	if deleted > 0 {
		slog.Info("cleaned up old idempotency keys", "deleted", deleted, "older_than", expiry)
	}

	return deleted, nil
}

// RunPeriodicCleanup sweeps expired keys at the given interval until stopChan
// is closed. It blocks and is meant to run in a goroutine. The first sweep
// happens immediately so a restarted server does not wait a full interval to
// shed stale keys.
func RunPeriodicCleanup(repo Repository, interval time.Duration, expiry time.Duration, stopChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := CleanupOldKeys(repo, expiry); err != nil {
		slog.Error("initial cleanup failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if _, err := CleanupOldKeys(repo, expiry); err != nil {
				slog.Error("periodic cleanup failed", "error", err)
			}
		case <-stopChan:
			slog.Info("stopping idempotency cleanup")
			return
		}
	}
}
