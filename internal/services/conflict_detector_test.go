package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourhub/booking-backend/internal/cache"
	"github.com/tourhub/booking-backend/internal/models"
)

func window(t *testing.T, in, out string) models.DateWindow {
	t.Helper()
	w, err := models.ParseDateWindow(in, out)
	require.NoError(t, err)
	return w
}

func TestFlattenWindows(t *testing.T) {
	tests := []struct {
		name    string
		windows []models.DateWindow
		want    []string
	}{
		{"No bookings", nil, []string{}},
		{"Check-out day excluded", []models.DateWindow{window(t, "2024-06-10", "2024-06-12")}, []string{"2024-06-10", "2024-06-11"}},
		{
			"Back to back stays",
			[]models.DateWindow{window(t, "2024-06-12", "2024-06-13"), window(t, "2024-06-10", "2024-06-12")},
			[]string{"2024-06-10", "2024-06-11", "2024-06-12"},
		},
		{
			"Overlapping stays deduplicated",
			[]models.DateWindow{window(t, "2024-06-10", "2024-06-13"), window(t, "2024-06-11", "2024-06-14")},
			[]string{"2024-06-10", "2024-06-11", "2024-06-12", "2024-06-13"},
		},
		{"Across month end", []models.DateWindow{window(t, "2024-06-29", "2024-07-02")}, []string{"2024-06-29", "2024-06-30", "2024-07-01"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FlattenWindows(tc.windows))
		})
	}
}

func TestHasConflict(t *testing.T) {
	store := newFakeHotelStore()
	detector := NewConflictDetector(store, nil, testLogger())
	ctx := context.Background()
	roomID := uuid.New()

	paid := window(t, "2024-06-10", "2024-06-13")
	store.put(&models.HotelBooking{ID: uuid.New(), HotelRoomID: roomID, CheckInDate: paid.CheckIn, CheckOutDate: paid.CheckOut, Status: models.HotelBookingConfirmed})

	lapsed := time.Now().Add(-time.Minute)
	held := window(t, "2024-06-20", "2024-06-22")
	store.put(&models.HotelBooking{ID: uuid.New(), HotelRoomID: roomID, CheckInDate: held.CheckIn, CheckOutDate: held.CheckOut, Status: models.HotelBookingPending, HoldExpiresAt: &lapsed})

	conflict, err := detector.HasConflict(ctx, roomID, window(t, "2024-06-12", "2024-06-14"))
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = detector.HasConflict(ctx, roomID, window(t, "2024-06-13", "2024-06-14"))
	require.NoError(t, err)
	assert.False(t, conflict)

	// A lapsed hold no longer blocks
	conflict, err = detector.HasConflict(ctx, roomID, held)
	require.NoError(t, err)
	assert.False(t, conflict)

	conflict, err = detector.HasConflict(ctx, uuid.New(), paid)
	require.NoError(t, err)
	assert.False(t, conflict)

	_, err = detector.HasConflict(ctx, roomID, models.DateWindow{CheckIn: paid.CheckOut, CheckOut: paid.CheckIn})
	var validationErr *models.ValidationError
	require.True(t, errors.As(err, &validationErr))
}

func TestBookedDates_Cached(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New()
	genKey := cache.BookedDatesGenerationKey(roomID)

	store := newFakeHotelStore()
	paid := window(t, "2024-06-10", "2024-06-12")
	pendingWindow := window(t, "2024-06-15", "2024-06-16")
	hold := time.Now().Add(time.Hour)
	store.put(&models.HotelBooking{ID: uuid.New(), HotelRoomID: roomID, CheckInDate: paid.CheckIn, CheckOutDate: paid.CheckOut, Status: models.HotelBookingConfirmed})
	store.put(&models.HotelBooking{ID: uuid.New(), HotelRoomID: roomID, CheckInDate: pendingWindow.CheckIn, CheckOutDate: pendingWindow.CheckOut, Status: models.HotelBookingPending, HoldExpiresAt: &hold})

	t.Run("Miss loads from store", func(t *testing.T) {
		db, mockRedis := redismock.NewClientMock()
		detector := NewConflictDetector(store, cache.NewBookedDatesCache(db, time.Minute), testLogger())

		mockRedis.ExpectGet(genKey).SetVal("2")
		mockRedis.ExpectGet(cache.BookedDatesKey(roomID, 2)).RedisNil()
		mockRedis.ExpectSet(cache.BookedDatesKey(roomID, 2), `["2024-06-10","2024-06-11"]`, time.Minute).SetVal("OK")

		days, err := detector.BookedDates(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-10", "2024-06-11"}, days)
		assert.NoError(t, mockRedis.ExpectationsWereMet())
	})

	t.Run("Hit skips store", func(t *testing.T) {
		db, mockRedis := redismock.NewClientMock()
		failing := newFakeHotelStore()
		failing.err = errors.New("must not be called")
		detector := NewConflictDetector(failing, cache.NewBookedDatesCache(db, time.Minute), testLogger())

		mockRedis.ExpectGet(genKey).RedisNil()
		mockRedis.ExpectGet(cache.BookedDatesKey(roomID, 0)).SetVal(`["2024-06-10"]`)

		days, err := detector.BookedDates(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-10"}, days)
	})

	t.Run("Redis down falls back to store", func(t *testing.T) {
		db, mockRedis := redismock.NewClientMock()
		detector := NewConflictDetector(store, cache.NewBookedDatesCache(db, time.Minute), testLogger())

		mockRedis.ExpectGet(genKey).SetErr(errors.New("dial tcp: connection refused"))

		days, err := detector.BookedDates(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-10", "2024-06-11"}, days)
		// No write without a known generation
		assert.NoError(t, mockRedis.ExpectationsWereMet())
	})

	t.Run("Invalidate", func(t *testing.T) {
		db, mockRedis := redismock.NewClientMock()
		detector := NewConflictDetector(store, cache.NewBookedDatesCache(db, time.Minute), testLogger())

		mockRedis.ExpectIncr(genKey).SetVal(1)

		detector.Invalidate(ctx, roomID)
		assert.NoError(t, mockRedis.ExpectationsWereMet())
	})
}

// confirmingStore confirms a booking right after the first ledger read,
// the way a payment callback can land while a cache load is in flight.
type confirmingStore struct {
	*fakeHotelStore
	onRead func()
}

func (s *confirmingStore) ListPaidWindows(ctx context.Context, roomID uuid.UUID) ([]models.DateWindow, error) {
	windows, err := s.fakeHotelStore.ListPaidWindows(ctx, roomID)
	if s.onRead != nil {
		hook := s.onRead
		s.onRead = nil
		hook()
	}
	return windows, err
}

func TestBookedDates_InvalidateDuringLoad(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New()
	genKey := cache.BookedDatesGenerationKey(roomID)

	inner := newFakeHotelStore()
	first := window(t, "2024-06-10", "2024-06-12")
	inner.put(&models.HotelBooking{ID: uuid.New(), HotelRoomID: roomID, CheckInDate: first.CheckIn, CheckOutDate: first.CheckOut, Status: models.HotelBookingConfirmed})
	late := window(t, "2024-06-20", "2024-06-21")
	hold := time.Now().Add(time.Hour)
	lateBooking := &models.HotelBooking{ID: uuid.New(), HotelRoomID: roomID, CheckInDate: late.CheckIn, CheckOutDate: late.CheckOut, Status: models.HotelBookingPending, HoldExpiresAt: &hold}
	inner.put(lateBooking)

	db, mockRedis := redismock.NewClientMock()
	store := &confirmingStore{fakeHotelStore: inner}
	detector := NewConflictDetector(store, cache.NewBookedDatesCache(db, time.Minute), testLogger())
	store.onRead = func() {
		_, _, err := inner.ConfirmPayment(ctx, lateBooking.ID)
		require.NoError(t, err)
		detector.Invalidate(ctx, roomID)
	}

	// The in-flight load stores its stale list under generation 0
	mockRedis.ExpectGet(genKey).RedisNil()
	mockRedis.ExpectGet(cache.BookedDatesKey(roomID, 0)).RedisNil()
	mockRedis.ExpectIncr(genKey).SetVal(1)
	mockRedis.ExpectSet(cache.BookedDatesKey(roomID, 0), `["2024-06-10","2024-06-11"]`, time.Minute).SetVal("OK")

	days, err := detector.BookedDates(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-10", "2024-06-11"}, days)

	// The next read looks at generation 1 and sees the confirmed stay
	mockRedis.ExpectGet(genKey).SetVal("1")
	mockRedis.ExpectGet(cache.BookedDatesKey(roomID, 1)).RedisNil()
	mockRedis.ExpectSet(cache.BookedDatesKey(roomID, 1), `["2024-06-10","2024-06-11","2024-06-20"]`, time.Minute).SetVal("OK")

	days, err = detector.BookedDates(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-10", "2024-06-11", "2024-06-20"}, days)
	assert.NoError(t, mockRedis.ExpectationsWereMet())
}
