package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tourhub/booking-backend/internal/models"
)

// HotelBookingStore is the persistence the hotel flows need.
// Implemented by database.HotelBookingRepository.
type HotelBookingStore interface {
	HasBlockingReservation(ctx context.Context, roomID uuid.UUID, w models.DateWindow) (bool, error)
	CreateExclusive(ctx context.Context, b *models.HotelBooking, holdTTL time.Duration) error
	RenewHold(ctx context.Context, b *models.HotelBooking, holdTTL time.Duration) error
	ReleaseHold(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.HotelBooking, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*models.HotelBookingDetail, error)
	ListPaidWindows(ctx context.Context, roomID uuid.UUID) ([]models.DateWindow, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID) (*models.HotelBooking, bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.HotelBooking, bool, error)
	CancelAbandoned(ctx context.Context, grace time.Duration, limit int) ([]*models.HotelBooking, error)
	Checkout(ctx context.Context, id uuid.UUID) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (*models.HotelBooking, error)
}

// TourBookingStore is the persistence the tour flows need.
// Implemented by database.TourBookingRepository.
type TourBookingStore interface {
	Create(ctx context.Context, b *models.TourBooking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TourBooking, error)
	MarkAwaitingPayment(ctx context.Context, id uuid.UUID) (*models.TourBooking, bool, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID) (*models.TourBooking, bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.TourBooking, bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
}

// PaymentAuditStore appends to the payment audit ledger
type PaymentAuditStore interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// BookedDatesStore caches the booked-day list of a room per generation.
// Implemented by cache.BookedDatesCache.
type BookedDatesStore interface {
	Generation(ctx context.Context, roomID uuid.UUID) (int64, error)
	Get(ctx context.Context, roomID uuid.UUID, gen int64) ([]string, bool, error)
	Set(ctx context.Context, roomID uuid.UUID, gen int64, days []string) error
	Invalidate(ctx context.Context, roomID uuid.UUID) error
}
