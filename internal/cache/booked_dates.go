package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BookedDatesCache keeps the flattened booked-day list of a room in Redis.
// Entries are stored per generation. Invalidating a room bumps its generation,
// so a load that read the ledger before the change writes to a key nobody reads.
type BookedDatesCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewBookedDatesCache creates a cache backed by the given Redis client
func NewBookedDatesCache(client redis.Cmdable, ttl time.Duration) *BookedDatesCache {
	return &BookedDatesCache{client: client, ttl: ttl}
}

// BookedDatesGenerationKey returns the Redis counter bumped on every invalidation of a room
func BookedDatesGenerationKey(roomID uuid.UUID) string {
	return fmt.Sprintf("booked-dates:%s:gen", roomID.String())
}

// BookedDatesKey returns the Redis key holding a room's booked days for one generation
func BookedDatesKey(roomID uuid.UUID, gen int64) string {
	return fmt.Sprintf("booked-dates:%s:%d", roomID.String(), gen)
}

// Generation returns the current generation of a room, 0 if it was never invalidated
func (c *BookedDatesCache) Generation(ctx context.Context, roomID uuid.UUID) (int64, error) {
	gen, err := c.client.Get(ctx, BookedDatesGenerationKey(roomID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read booked dates generation: %w", err)
	}
	return gen, nil
}

// Get returns the cached days of a generation and whether the entry existed
func (c *BookedDatesCache) Get(ctx context.Context, roomID uuid.UUID, gen int64) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, BookedDatesKey(roomID, gen)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read booked dates cache: %w", err)
	}

	var days []string
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil, false, fmt.Errorf("corrupt booked dates cache entry: %w", err)
	}
	return days, true, nil
}

// Set stores the days loaded under gen
func (c *BookedDatesCache) Set(ctx context.Context, roomID uuid.UUID, gen int64, days []string) error {
	if days == nil {
		days = []string{}
	}
	payload, err := json.Marshal(days)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, BookedDatesKey(roomID, gen), string(payload), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write booked dates cache: %w", err)
	}
	return nil
}

// Invalidate moves the room to a new generation. Older entries expire on their TTL.
func (c *BookedDatesCache) Invalidate(ctx context.Context, roomID uuid.UUID) error {
	if err := c.client.Incr(ctx, BookedDatesGenerationKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate booked dates cache: %w", err)
	}
	return nil
}
