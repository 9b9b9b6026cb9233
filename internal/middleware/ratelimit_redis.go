package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore backed by Redis, so the limit
// is shared across API replicas. It uses a fixed window counter: INCR on the
// key, with the window TTL set when the counter is created.
//
// Redis errors fail open: an unreachable Redis must not take the API down
// with it. Fail-open events are counted on the metrics instance when one is
// attached.
type RedisRateLimitStore struct {
	client  *redis.Client
	metrics *Metrics
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// WithMetrics attaches a metrics instance for fail-open error counting.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// Allow checks if a request from the given key should be allowed.
// Implements the RateLimitStore interface.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		s.failOpen(ctx, "incr", err)
		return true, 0
	}

	if count == 1 {
		// First hit in this window; start the clock.
		if err := s.client.Expire(ctx, key, config.WindowDuration).Err(); err != nil {
			s.failOpen(ctx, "expire", err)
			return true, 0
		}
	}

	if count <= int64(config.RequestsPerWindow) {
		return true, 0
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		if err != nil {
			s.failOpen(ctx, "ttl", err)
		}
		return false, int(config.WindowDuration.Seconds())
	}
	retryAfter := int(ttl.Round(time.Second).Seconds())
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, retryAfter
}

func (s *RedisRateLimitStore) failOpen(ctx context.Context, op string, err error) {
	slog.WarnContext(ctx, "redis rate limit error, failing open", "op", op, "error", err)
	if s.metrics != nil {
		s.metrics.IncRateLimitRedisErrors()
	}
}
