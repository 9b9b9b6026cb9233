// Package health provides readiness checks for external dependencies.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// pingTimeout bounds a single readiness ping so a wedged connection
// cannot stall the whole probe.
const pingTimeout = 2 * time.Second

// RedisChecker reports whether the Redis instance backing the distributed
// rate limiter is reachable.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a checker for the given client.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends a PING and returns an error if Redis does not answer
// within the ping timeout.
func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
