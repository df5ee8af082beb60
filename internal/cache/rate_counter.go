package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateCounterKey returns the Redis key counting requests of one identifier
func RateCounterKey(scope, identifier string) string {
	return fmt.Sprintf("rate:%s:%s", scope, identifier)
}

// RedisRateCounter is a fixed-window request counter shared by all instances
type RedisRateCounter struct {
	client redis.Cmdable
}

// NewRedisRateCounter creates a counter backed by the given Redis client
func NewRedisRateCounter(client redis.Cmdable) *RedisRateCounter {
	return &RedisRateCounter{client: client}
}

// Incr counts one request and returns the count in the current window and the time left in it
func (c *RedisRateCounter) Incr(ctx context.Context, scope, identifier string, window time.Duration) (int64, time.Duration, error) {
	key := RateCounterKey(scope, identifier)

	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to set rate window: %w", err)
		}
		return count, window, nil
	}

	ttl, err := c.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read rate window: %w", err)
	}
	if ttl < 0 {
		// The key lost its expiry; start a fresh window
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to set rate window: %w", err)
		}
		ttl = window
	}
	return count, ttl, nil
}

// memoryPruneThreshold is the number of tracked identifiers that triggers a prune
const memoryPruneThreshold = 10000

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryRateCounter is the in-process counter used when Redis is not configured
type MemoryRateCounter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryRateCounter creates an empty in-process counter
func NewMemoryRateCounter() *MemoryRateCounter {
	return &MemoryRateCounter{windows: make(map[string]*window), now: time.Now}
}

// Incr counts one request and returns the count in the current window and the time left in it
func (c *MemoryRateCounter) Incr(_ context.Context, scope, identifier string, ttl time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.windows) >= memoryPruneThreshold {
		c.prune(now)
	}

	key := RateCounterKey(scope, identifier)
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(ttl)}
		c.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}

// Prune drops expired windows and returns how many were removed
func (c *MemoryRateCounter) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prune(c.now())
}

func (c *MemoryRateCounter) prune(now time.Time) int {
	removed := 0
	for key, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, key)
			removed++
		}
	}
	return removed
}
