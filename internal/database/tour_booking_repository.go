package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tourhub/booking-backend/internal/models"
)

const tourBookingColumns = `
	id, user_id, user_email, tour_name, full_name, phone, guest_size,
	book_at, total_price, status, is_payment, is_delete, created_at, updated_at`

// TourBookingRepository handles tour booking persistence
type TourBookingRepository struct {
	db *sqlx.DB
}

// NewTourBookingRepository creates a new TourBookingRepository
func NewTourBookingRepository(db *sqlx.DB) *TourBookingRepository {
	return &TourBookingRepository{db: db}
}

// Create inserts a new tour booking in the requested state
func (r *TourBookingRepository) Create(ctx context.Context, b *models.TourBooking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.Status = models.TourBookingRequested

	query := `
		INSERT INTO tour_bookings (
			id, user_id, user_email, tour_name, full_name, phone,
			guest_size, book_at, total_price, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING is_payment, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		b.ID, b.UserID, b.UserEmail, b.TourName, b.FullName, b.Phone,
		b.GuestSize, b.BookAt, b.TotalPrice, b.Status,
	).Scan(&b.IsPayment, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tour booking: %w", err)
	}
	return nil
}

// GetByID retrieves a tour booking by ID, nil when it does not exist
func (r *TourBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TourBooking, error) {
	var b models.TourBooking
	query := `SELECT ` + tourBookingColumns + ` FROM tour_bookings WHERE id = $1`

	err := r.db.GetContext(ctx, &b, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tour booking: %w", err)
	}
	return &b, nil
}

// MarkAwaitingPayment moves a requested booking to awaiting_payment
func (r *TourBookingRepository) MarkAwaitingPayment(ctx context.Context, id uuid.UUID) (*models.TourBooking, bool, error) {
	query := `
		UPDATE tour_bookings
		SET status = 'awaiting_payment', updated_at = NOW()
		WHERE id = $1 AND status = 'requested' AND NOT is_delete
		RETURNING ` + tourBookingColumns

	return r.transition(ctx, query, id, "mark tour booking awaiting payment")
}

// ConfirmPayment flips an awaiting_payment booking to confirmed.
// Returns applied=false when the booking was not awaiting payment.
func (r *TourBookingRepository) ConfirmPayment(ctx context.Context, id uuid.UUID) (*models.TourBooking, bool, error) {
	query := `
		UPDATE tour_bookings
		SET status = 'confirmed', updated_at = NOW()
		WHERE id = $1 AND status = 'awaiting_payment' AND NOT is_delete
		RETURNING ` + tourBookingColumns

	return r.transition(ctx, query, id, "confirm tour booking")
}

// Cancel moves an unpaid booking to cancelled
func (r *TourBookingRepository) Cancel(ctx context.Context, id uuid.UUID) (*models.TourBooking, bool, error) {
	query := `
		UPDATE tour_bookings
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('requested', 'awaiting_payment') AND NOT is_delete
		RETURNING ` + tourBookingColumns

	return r.transition(ctx, query, id, "cancel tour booking")
}

// SoftDelete hides a booking. Returns false when it did not exist or was already deleted.
func (r *TourBookingRepository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE tour_bookings SET is_delete = TRUE, updated_at = NOW() WHERE id = $1 AND NOT is_delete`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete tour booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

func (r *TourBookingRepository) transition(ctx context.Context, query string, id uuid.UUID, op string) (*models.TourBooking, bool, error) {
	var b models.TourBooking
	err := r.db.GetContext(ctx, &b, query, id)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to %s: %w", op, err)
	}
	return &b, true, nil
}
