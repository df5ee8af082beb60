package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Registry maps an online user to the connection id of their realtime session.
// It is an injected service; nothing in the booking or payment paths depends on it.
type Registry interface {
	Register(ctx context.Context, userID, connID string) error
	Unregister(ctx context.Context, userID string) error
	Lookup(ctx context.Context, userID string) (string, bool, error)
}

// MemoryRegistry is a process-local Registry
type MemoryRegistry struct {
	mu    sync.RWMutex
	conns map[string]string
}

// NewMemoryRegistry creates an empty in-memory registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{conns: make(map[string]string)}
}

func (r *MemoryRegistry) Register(_ context.Context, userID, connID string) error {
	if userID == "" || connID == "" {
		return fmt.Errorf("user id and connection id are required")
	}
	r.mu.Lock()
	r.conns[userID] = connID
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) Unregister(_ context.Context, userID string) error {
	r.mu.Lock()
	delete(r.conns, userID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) Lookup(_ context.Context, userID string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.conns[userID]
	return connID, ok, nil
}

// RedisRegistry shares presence across instances. Entries expire after ttl
// unless the relay registers again.
type RedisRegistry struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisRegistry creates a Redis-backed registry
func NewRedisRegistry(client redis.Cmdable, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, ttl: ttl}
}

func presenceKey(userID string) string {
	return "presence:" + userID
}

func (r *RedisRegistry) Register(ctx context.Context, userID, connID string) error {
	if userID == "" || connID == "" {
		return fmt.Errorf("user id and connection id are required")
	}
	if err := r.client.Set(ctx, presenceKey(userID), connID, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to register presence: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Unregister(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to unregister presence: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Lookup(ctx context.Context, userID string) (string, bool, error) {
	connID, err := r.client.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up presence: %w", err)
	}
	return connID, true, nil
}
