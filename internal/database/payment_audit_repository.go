package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/models"
)

const paymentAuditColumns = `
	id, kind, booking_id, app_trans_id, zp_trans_id,
	event_type, event_source,
	expected_amount, received_amount, amounts_match,
	request_payload, response_payload, raw_body,
	http_status_code, endpoint_url, return_code, error_message,
	processing_time_ms, is_duplicate,
	ip_address, user_agent, device_type,
	created_at`

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log appends an audit entry
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (` + paymentAuditColumns + `
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10,
			$11, $12, $13,
			$14, $15, $16, $17,
			$18, $19,
			$20, $21, $22,
			$23
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.Kind, audit.BookingID, audit.AppTransID, audit.ZPTransID,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.AmountsMatch,
		audit.RequestPayload, audit.ResponsePayload, audit.RawBody,
		audit.HTTPStatusCode, audit.EndpointURL, audit.ReturnCode, audit.ErrorMessage,
		audit.ProcessingTimeMs, audit.IsDuplicate,
		audit.IPAddress, audit.UserAgent, audit.DeviceType,
		audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":   audit.EventType,
			"app_trans_id": audit.AppTransID,
		}).Error("Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
	}).Debug("Payment audit logged")

	return nil
}

// ListByBooking retrieves all audit entries for a booking, oldest first
func (r *PaymentAuditRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT ` + paymentAuditColumns + `
		FROM payment_audits
		WHERE booking_id = $1
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &audits, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to get audits by booking: %w", err)
	}
	return audits, nil
}

// ListNeedingAttention returns recent mismatches and payments that need a refund
func (r *PaymentAuditRepository) ListNeedingAttention(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT ` + paymentAuditColumns + `
		FROM payment_audits
		WHERE event_type IN ($1, $2)
		ORDER BY created_at DESC
		LIMIT $3`

	err := r.db.SelectContext(ctx, &audits, query,
		models.PaymentEventReconciliationMismatch, models.PaymentEventRefundRequired, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits needing attention: %w", err)
	}
	return audits, nil
}

// CountNeedingAttentionSince counts mismatches and refunds recorded after since
func (r *PaymentAuditRepository) CountNeedingAttentionSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM payment_audits
		WHERE event_type IN ($1, $2) AND created_at >= $3`

	err := r.db.GetContext(ctx, &count, query,
		models.PaymentEventReconciliationMismatch, models.PaymentEventRefundRequired, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count audits needing attention: %w", err)
	}
	return count, nil
}

// PurgeOlderThan deletes audit entries created before the cutoff.
// Entries that still need attention are kept regardless of age.
func (r *PaymentAuditRepository) PurgeOlderThan(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM payment_audits
		WHERE created_at < $1 AND event_type NOT IN ($2, $3)`

	result, err := r.db.ExecContext(ctx, query,
		before, models.PaymentEventReconciliationMismatch, models.PaymentEventRefundRequired)
	if err != nil {
		return 0, fmt.Errorf("failed to purge payment audits: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	r.logger.WithField("deleted", rows).Debug("Purged payment audits")
	return rows, nil
}
