package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookedDatesCache(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New()
	genKey := BookedDatesGenerationKey(roomID)

	t.Run("Generation defaults to zero", func(t *testing.T) {
		db, mockRedis := redismock.NewClientMock()
		c := NewBookedDatesCache(db, 10*time.Minute)

		mockRedis.ExpectGet(genKey).RedisNil()

		gen, err := c.Generation(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), gen)
		assert.NoError(t, mockRedis.ExpectationsWereMet())
	})

	t.Run("Miss", func(t *testing.T) {
		db, mockRedis := redismock.NewClientMock()
		c := NewBookedDatesCache(db, 10*time.Minute)

		mockRedis.ExpectGet(BookedDatesKey(roomID, 0)).RedisNil()

		days, ok, err := c.Get(ctx, roomID, 0)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, days)
		assert.NoError(t, mockRedis.ExpectationsWereMet())
	})

	t.Run("Hit", func(t *testing.T) {
		db, mockRedis := redismock.NewClientMock()
		c := NewBookedDatesCache(db, 10*time.Minute)

		mockRedis.ExpectGet(genKey).SetVal("3")
		mockRedis.ExpectGet(BookedDatesKey(roomID, 3)).SetVal(`["2024-06-10","2024-06-11"]`)

		gen, err := c.Generation(ctx, roomID)
		require.NoError(t, err)
		days, ok, err := c.Get(ctx, roomID, gen)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"2024-06-10", "2024-06-11"}, days)
		assert.NoError(t, mockRedis.ExpectationsWereMet())
	})

	t.Run("Set empty list", func(t *testing.T) {
		db, mockRedis := redismock.NewClientMock()
		c := NewBookedDatesCache(db, 10*time.Minute)

		mockRedis.ExpectSet(BookedDatesKey(roomID, 2), "[]", 10*time.Minute).SetVal("OK")

		require.NoError(t, c.Set(ctx, roomID, 2, nil))
		assert.NoError(t, mockRedis.ExpectationsWereMet())
	})

	t.Run("Invalidate bumps generation", func(t *testing.T) {
		db, mockRedis := redismock.NewClientMock()
		c := NewBookedDatesCache(db, 10*time.Minute)

		mockRedis.ExpectIncr(genKey).SetVal(4)

		require.NoError(t, c.Invalidate(ctx, roomID))
		assert.NoError(t, mockRedis.ExpectationsWereMet())
	})

	t.Run("Redis down", func(t *testing.T) {
		db, mockRedis := redismock.NewClientMock()
		c := NewBookedDatesCache(db, 10*time.Minute)

		mockRedis.ExpectGet(genKey).SetErr(errors.New("connection refused"))
		mockRedis.ExpectGet(BookedDatesKey(roomID, 0)).SetErr(errors.New("connection refused"))

		_, err := c.Generation(ctx, roomID)
		assert.Error(t, err)
		_, _, err = c.Get(ctx, roomID, 0)
		assert.Error(t, err)
	})
}
