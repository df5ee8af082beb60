package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRateCounter(t *testing.T) {
	ctx := context.Background()
	key := RateCounterKey("phone", "0912345678")

	t.Run("First request opens the window", func(t *testing.T) {
		db, mockRedis := redismock.NewClientMock()
		c := NewRedisRateCounter(db)

		mockRedis.ExpectIncr(key).SetVal(1)
		mockRedis.ExpectExpire(key, 10*time.Minute).SetVal(true)

		count, ttl, err := c.Incr(ctx, "phone", "0912345678", 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.Equal(t, 10*time.Minute, ttl)
		assert.NoError(t, mockRedis.ExpectationsWereMet())
	})

	t.Run("Later request reports remaining window", func(t *testing.T) {
		db, mockRedis := redismock.NewClientMock()
		c := NewRedisRateCounter(db)

		mockRedis.ExpectIncr(key).SetVal(4)
		mockRedis.ExpectPTTL(key).SetVal(3 * time.Minute)

		count, ttl, err := c.Incr(ctx, "phone", "0912345678", 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
		assert.Equal(t, 3*time.Minute, ttl)
		assert.NoError(t, mockRedis.ExpectationsWereMet())
	})

	t.Run("Redis down", func(t *testing.T) {
		db, mockRedis := redismock.NewClientMock()
		c := NewRedisRateCounter(db)

		mockRedis.ExpectIncr(key).SetErr(errors.New("connection refused"))

		_, _, err := c.Incr(ctx, "phone", "0912345678", 10*time.Minute)
		assert.Error(t, err)
	})
}

func TestMemoryRateCounter(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryRateCounter()
	start := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start }

	for i := 1; i <= 3; i++ {
		count, ttl, err := c.Incr(ctx, "ip", "10.0.0.1", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(i), count)
		assert.Equal(t, time.Hour, ttl)
	}

	// Other identifiers have their own window
	count, _, _ := c.Incr(ctx, "ip", "10.0.0.2", time.Hour)
	assert.Equal(t, int64(1), count)

	c.now = func() time.Time { return start.Add(time.Hour) }
	count, _, _ = c.Incr(ctx, "ip", "10.0.0.1", time.Hour)
	assert.Equal(t, int64(1), count, "window resets once it expires")

	c.now = func() time.Time { return start.Add(3 * time.Hour) }
	assert.Equal(t, 2, c.Prune())
}
