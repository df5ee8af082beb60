//go:build integration

package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/internal/models"
)

// Run with: go test -tags integration ./internal/database/...
func startPostgres(t *testing.T, driver string) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("booking"),
		postgres.WithUsername("booking"),
		postgres.WithPassword("booking"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	db, err := NewConnection(config.DatabaseConfig{
		URL:                dsn,
		Driver:             driver,
		MaxConnections:     20,
		MaxIdleConnections: 5,
		ConnMaxLifetime:    time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, EnsureSchema(ctx, db))
	// Applying twice must be a no-op
	require.NoError(t, EnsureSchema(ctx, db))
	return db
}

type seed struct {
	userID uuid.UUID
	roomID uuid.UUID
}

func seedRoom(t *testing.T, db *sqlx.DB) seed {
	t.Helper()
	ctx := context.Background()
	s := seed{userID: uuid.New(), roomID: uuid.New()}
	hotelID := uuid.New()

	_, err := db.ExecContext(ctx, `INSERT INTO users (id, username, email) VALUES ($1, 'guest', $2)`, s.userID, s.userID.String()+"@example.com")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO hotels (id, name) VALUES ($1, 'Sunrise Riverside')`, hotelID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO hotel_rooms (id, hotel_id, room_type, price_per_night) VALUES ($1, $2, 'Deluxe', 500000)`, s.roomID, hotelID)
	require.NoError(t, err)
	return s
}

func newBooking(s seed, checkIn, checkOut string) *models.HotelBooking {
	w, _ := models.ParseDateWindow(checkIn, checkOut)
	return &models.HotelBooking{
		HotelRoomID:   s.roomID,
		UserID:        s.userID,
		FullName:      "Nguyen Van A",
		PhoneNumber:   "0912345678",
		CheckInDate:   w.CheckIn,
		CheckOutDate:  w.CheckOut,
		TotalPrice:    decimal.NewFromInt(1500000),
		PaymentMethod: models.PaymentMethodZaloPay,
	}
}

func TestIntegration_CreateExclusive_Concurrent(t *testing.T) {
	for _, driver := range []string{"postgres", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			db := startPostgres(t, driver)
			s := seedRoom(t, db)
			repo := NewHotelBookingRepository(db)

			const attempts = 10
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				created   int
				conflicts int
			)
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := repo.CreateExclusive(context.Background(), newBooking(s, "2024-06-10", "2024-06-13"), 15*time.Minute)
					mu.Lock()
					defer mu.Unlock()
					var conflict *models.ConflictError
					switch {
					case err == nil:
						created++
					case errors.As(err, &conflict):
						conflicts++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, created)
			assert.Equal(t, attempts-1, conflicts)

			// Back-to-back stays share a boundary day without overlapping
			require.NoError(t, repo.CreateExclusive(context.Background(), newBooking(s, "2024-06-13", "2024-06-15"), 15*time.Minute))
		})
	}
}

func TestIntegration_ConfirmPayment_ExclusionConstraint(t *testing.T) {
	db := startPostgres(t, "postgres")
	s := seedRoom(t, db)
	repo := NewHotelBookingRepository(db)
	ctx := context.Background()

	first := newBooking(s, "2024-07-01", "2024-07-04")
	require.NoError(t, repo.CreateExclusive(ctx, first, 15*time.Minute))

	// A lapsed hold no longer blocks, so a second pending booking can take the same dates
	require.NoError(t, repo.ReleaseHold(ctx, first.ID))
	second := newBooking(s, "2024-07-02", "2024-07-05")
	require.NoError(t, repo.CreateExclusive(ctx, second, 15*time.Minute))

	confirmed, applied, err := repo.ConfirmPayment(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, applied)
	assert.True(t, confirmed.IsPayment)
	assert.Nil(t, confirmed.HoldExpiresAt)

	_, applied, err = repo.ConfirmPayment(ctx, first.ID)
	assert.False(t, applied)
	assert.ErrorIs(t, err, ErrOverlappingConfirmed)

	windows, err := repo.ListPaidWindows(ctx, s.roomID)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "2024-07-02", windows[0].CheckIn.Format(models.DateLayout))

	// Confirming again is a no-op
	_, applied, err = repo.ConfirmPayment(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestIntegration_PaymentAuditRoundTrip(t *testing.T) {
	db := startPostgres(t, "pgx")
	logger, _ := test.NewNullLogger()
	repo := NewPaymentAuditRepository(db, logger)
	ctx := context.Background()

	bookingID := uuid.New()
	require.NoError(t, repo.Log(ctx, models.NewPaymentAudit(models.PaymentEventRefundRequired, models.PaymentSourceGatewayCallback).
		SetOrder(models.KindRoomBooking, bookingID, "240610_123456")))

	entries, err := repo.ListByBooking(ctx, bookingID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.PaymentEventRefundRequired, entries[0].EventType)

	attention, err := repo.ListNeedingAttention(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, attention, 1)
}
