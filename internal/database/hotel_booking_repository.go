package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tourhub/booking-backend/internal/models"
)

const hotelBookingColumns = `
	id, hotel_room_id, user_id, full_name, phone_number,
	check_in_date, check_out_date, total_price, payment_method,
	status, is_payment, is_checkout, is_delete, hold_expires_at,
	created_at, updated_at`

// A reservation blocks its dates when it is paid, or while an unpaid
// booking still holds them. $1 room, $2 check-in, $3 check-out.
const blockingReservationQuery = `
	SELECT EXISTS (
		SELECT 1 FROM hotel_bookings
		WHERE hotel_room_id = $1
		  AND NOT is_delete
		  AND check_in_date < $3
		  AND check_out_date > $2
		  AND (status = 'confirmed' OR (status = 'pending' AND hold_expires_at > NOW()))
		  AND id <> $4
	)`

// HotelBookingRepository handles hotel booking persistence
type HotelBookingRepository struct {
	db *sqlx.DB
}

// NewHotelBookingRepository creates a new HotelBookingRepository
func NewHotelBookingRepository(db *sqlx.DB) *HotelBookingRepository {
	return &HotelBookingRepository{db: db}
}

// HasBlockingReservation checks whether any paid or held reservation of the room overlaps w
func (r *HotelBookingRepository) HasBlockingReservation(ctx context.Context, roomID uuid.UUID, w models.DateWindow) (bool, error) {
	var blocked bool
	err := r.db.GetContext(ctx, &blocked, blockingReservationQuery, roomID, w.CheckIn, w.CheckOut, uuid.Nil)
	if err != nil {
		return false, fmt.Errorf("failed to check room availability: %w", err)
	}
	return blocked, nil
}

// CreateExclusive inserts a pending booking holding its dates for holdTTL.
// The room's advisory lock serializes the availability check with the insert,
// so two concurrent requests for overlapping dates cannot both succeed.
func (r *HotelBookingRepository) CreateExclusive(ctx context.Context, b *models.HotelBooking, holdTTL time.Duration) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockRoom(ctx, tx, b.HotelRoomID); err != nil {
		return err
	}

	w := b.Window()
	var blocked bool
	if err := tx.GetContext(ctx, &blocked, blockingReservationQuery, b.HotelRoomID, w.CheckIn, w.CheckOut, uuid.Nil); err != nil {
		return fmt.Errorf("failed to check room availability: %w", err)
	}
	if blocked {
		return &models.ConflictError{RoomID: b.HotelRoomID, Window: w}
	}

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.Status = models.HotelBookingPending

	query := `
		INSERT INTO hotel_bookings (
			id, hotel_room_id, user_id, full_name, phone_number,
			check_in_date, check_out_date, total_price, payment_method,
			status, hold_expires_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, NOW() + make_interval(secs => $11)
		)
		RETURNING is_payment, hold_expires_at, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		b.ID, b.HotelRoomID, b.UserID, b.FullName, b.PhoneNumber,
		w.CheckIn, w.CheckOut, b.TotalPrice, b.PaymentMethod,
		b.Status, holdTTL.Seconds(),
	).Scan(&b.IsPayment, &b.HoldExpiresAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			if strings.Contains(constraintName(err), "user_id") {
				return models.NewNotFoundError("user", b.UserID)
			}
			return models.NewNotFoundError("hotel room", b.HotelRoomID)
		}
		if isCheckViolation(err) {
			return models.NewValidationError(constraintName(err), "violates booking constraints")
		}
		return fmt.Errorf("failed to create hotel booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit hotel booking: %w", err)
	}
	return nil
}

// RenewHold re-acquires the dates of a pending booking before a new payment attempt
func (r *HotelBookingRepository) RenewHold(ctx context.Context, b *models.HotelBooking, holdTTL time.Duration) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockRoom(ctx, tx, b.HotelRoomID); err != nil {
		return err
	}

	w := b.Window()
	var blocked bool
	if err := tx.GetContext(ctx, &blocked, blockingReservationQuery, b.HotelRoomID, w.CheckIn, w.CheckOut, b.ID); err != nil {
		return fmt.Errorf("failed to check room availability: %w", err)
	}
	if blocked {
		return &models.ConflictError{RoomID: b.HotelRoomID, Window: w}
	}

	query := `
		UPDATE hotel_bookings
		SET hold_expires_at = NOW() + make_interval(secs => $2), updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND NOT is_delete
		RETURNING hold_expires_at`

	err = tx.QueryRowxContext(ctx, query, b.ID, holdTTL.Seconds()).Scan(&b.HoldExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.InvalidTransitionError{BookingID: b.ID, From: string(b.Status), To: string(models.HotelBookingPending)}
	}
	if err != nil {
		return fmt.Errorf("failed to renew hold: %w", err)
	}

	return tx.Commit()
}

// ReleaseHold frees the dates of a pending booking without cancelling it
func (r *HotelBookingRepository) ReleaseHold(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE hotel_bookings
		SET hold_expires_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to release hold: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by ID, nil when it does not exist
func (r *HotelBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.HotelBooking, error) {
	var b models.HotelBooking
	query := `SELECT ` + hotelBookingColumns + ` FROM hotel_bookings WHERE id = $1`

	err := r.db.GetContext(ctx, &b, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hotel booking: %w", err)
	}
	return &b, nil
}

// GetDetail retrieves a booking joined with its guest, room and hotel
func (r *HotelBookingRepository) GetDetail(ctx context.Context, id uuid.UUID) (*models.HotelBookingDetail, error) {
	var d models.HotelBookingDetail
	query := `
		SELECT
			b.id, b.hotel_room_id, b.user_id, b.full_name, b.phone_number,
			b.check_in_date, b.check_out_date, b.total_price, b.payment_method,
			b.status, b.is_payment, b.is_checkout, b.is_delete, b.hold_expires_at,
			b.created_at, b.updated_at,
			u.username, u.email AS user_email,
			r.room_type, h.id::text AS hotel_id, h.name AS hotel_name
		FROM hotel_bookings b
		JOIN users u ON u.id = b.user_id
		JOIN hotel_rooms r ON r.id = b.hotel_room_id
		JOIN hotels h ON h.id = r.hotel_id
		WHERE b.id = $1`

	err := r.db.GetContext(ctx, &d, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hotel booking detail: %w", err)
	}
	return &d, nil
}

// ListPaidWindows returns the stay windows of every paid, non-deleted booking of a room
func (r *HotelBookingRepository) ListPaidWindows(ctx context.Context, roomID uuid.UUID) ([]models.DateWindow, error) {
	query := `
		SELECT check_in_date, check_out_date
		FROM hotel_bookings
		WHERE hotel_room_id = $1 AND status = 'confirmed' AND NOT is_delete
		ORDER BY check_in_date`

	rows, err := r.db.QueryxContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list paid windows: %w", err)
	}
	defer rows.Close()

	var windows []models.DateWindow
	for rows.Next() {
		var in, out time.Time
		if err := rows.Scan(&in, &out); err != nil {
			return nil, fmt.Errorf("failed to scan paid window: %w", err)
		}
		windows = append(windows, models.NewDateWindow(in, out))
	}
	return windows, rows.Err()
}

// ConfirmPayment flips a pending booking to confirmed.
// Returns applied=false when the booking was not pending; the caller decides why.
func (r *HotelBookingRepository) ConfirmPayment(ctx context.Context, id uuid.UUID) (*models.HotelBooking, bool, error) {
	var b models.HotelBooking
	query := `
		UPDATE hotel_bookings
		SET status = 'confirmed', hold_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND NOT is_delete
		RETURNING ` + hotelBookingColumns

	err := r.db.GetContext(ctx, &b, query, id)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		if isExclusionViolation(err) {
			return nil, false, fmt.Errorf("confirm hotel booking %s: %w", id, ErrOverlappingConfirmed)
		}
		return nil, false, fmt.Errorf("failed to confirm hotel booking: %w", err)
	}
	return &b, true, nil
}

// Cancel moves a pending booking to cancelled
func (r *HotelBookingRepository) Cancel(ctx context.Context, id uuid.UUID) (*models.HotelBooking, bool, error) {
	var b models.HotelBooking
	query := `
		UPDATE hotel_bookings
		SET status = 'cancelled', hold_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND NOT is_delete
		RETURNING ` + hotelBookingColumns

	err := r.db.GetContext(ctx, &b, query, id)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to cancel hotel booking: %w", err)
	}
	return &b, true, nil
}

// CancelAbandoned cancels pending bookings whose hold lapsed more than grace ago
func (r *HotelBookingRepository) CancelAbandoned(ctx context.Context, grace time.Duration, limit int) ([]*models.HotelBooking, error) {
	var bookings []*models.HotelBooking
	query := `
		UPDATE hotel_bookings
		SET status = 'cancelled', hold_expires_at = NULL, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM hotel_bookings
			WHERE status = 'pending'
			  AND NOT is_delete
			  AND hold_expires_at < NOW() - make_interval(secs => $1)
			ORDER BY hold_expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + hotelBookingColumns

	if err := r.db.SelectContext(ctx, &bookings, query, grace.Seconds(), limit); err != nil {
		return nil, fmt.Errorf("failed to cancel abandoned bookings: %w", err)
	}
	return bookings, nil
}

// Checkout marks a confirmed stay as checked out
func (r *HotelBookingRepository) Checkout(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE hotel_bookings
		SET is_checkout = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed' AND NOT is_delete AND NOT is_checkout`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to check out hotel booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

// SoftDelete hides a booking. Returns nil when it did not exist or was already deleted.
func (r *HotelBookingRepository) SoftDelete(ctx context.Context, id uuid.UUID) (*models.HotelBooking, error) {
	var b models.HotelBooking
	query := `
		UPDATE hotel_bookings
		SET is_delete = TRUE, hold_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND NOT is_delete
		RETURNING ` + hotelBookingColumns

	err := r.db.GetContext(ctx, &b, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete hotel booking: %w", err)
	}
	return &b, nil
}

// lockRoom takes a transaction-scoped advisory lock keyed by the room id
func lockRoom(ctx context.Context, tx *sqlx.Tx, roomID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, roomID.String()); err != nil {
		return fmt.Errorf("failed to lock room %s: %w", roomID, err)
	}
	return nil
}
