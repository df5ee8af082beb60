package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/models"
)

// RoomCacheInvalidator drops derived per-room state after a ledger change
type RoomCacheInvalidator interface {
	Invalidate(ctx context.Context, roomID uuid.UUID)
}

type reconcileOutcome int

const (
	outcomeConfirmed reconcileOutcome = iota
	outcomeDuplicate
)

// Reconciler applies verified payment callbacks to the booking ledger
type Reconciler struct {
	verifier   CallbackVerifier
	hotels     HotelBookingStore
	tours      TourBookingStore
	audits     PaymentAuditStore
	rooms      RoomCacheInvalidator
	dispatcher EventDispatcher
	logger     *logrus.Logger
}

// NewReconciler creates a new Reconciler. audits and rooms may be nil.
func NewReconciler(
	verifier CallbackVerifier,
	hotels HotelBookingStore,
	tours TourBookingStore,
	audits PaymentAuditStore,
	rooms RoomCacheInvalidator,
	dispatcher EventDispatcher,
	logger *logrus.Logger,
) *Reconciler {
	return &Reconciler{
		verifier:   verifier,
		hotels:     hotels,
		tours:      tours,
		audits:     audits,
		rooms:      rooms,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Reconcile verifies a callback and marks the referenced booking paid.
// It always produces a result for the gateway:
//
//	 1  confirmed now, or already confirmed by an earlier delivery
//	 0  transient failure, the gateway should retry
//	-1  forged, malformed or unresolvable, do not retry
func (r *Reconciler) Reconcile(ctx context.Context, payload models.CallbackPayload, meta models.RequestMeta) models.CallbackResult {
	startTime := time.Now()
	audit := models.NewPaymentAudit(models.PaymentEventCallbackReceived, models.PaymentSourceGatewayCallback).
		SetRawBody(payload.Data).
		SetMetadata(meta)

	finish := func(code int, message string) models.CallbackResult {
		audit.SetReturnCode(code).SetProcessingTime(startTime)
		r.record(ctx, audit)
		return models.CallbackResult{ReturnCode: code, ReturnMessage: message}
	}

	if !r.verifier.VerifyCallback(payload.Data, payload.MAC) {
		sigErr := &models.SignatureError{}
		audit.EventType = models.PaymentEventSignatureFailed
		audit.SetError(sigErr.Error())
		r.logger.WithField("ip", meta.IPAddress).Warn("Rejected payment callback with invalid mac")
		return finish(models.ReturnCodeRejected, sigErr.Error())
	}

	data, err := models.ParseCallbackData(payload.Data)
	if err != nil {
		return r.reject(audit, err, finish)
	}
	embed, err := data.Embed()
	if err != nil {
		return r.reject(audit, err, finish)
	}
	kind, err := models.ParseOrderKind(embed.Type)
	if err != nil {
		return r.reject(audit, err, finish)
	}
	bookingID, err := uuid.Parse(data.AppUser)
	if err != nil {
		return r.reject(audit, fmt.Errorf("invalid app_user %q: %w", data.AppUser, err), finish)
	}

	audit.SetOrder(kind, bookingID, data.AppTransID).SetZPTransID(data.ZPTransID)

	logger := r.logger.WithFields(logrus.Fields{
		"kind":         kind,
		"booking_id":   bookingID,
		"app_trans_id": data.AppTransID,
		"zp_trans_id":  data.ZPTransID,
		"amount":       data.Amount,
	})

	var outcome reconcileOutcome
	switch kind {
	case models.KindRoomBooking:
		outcome, err = r.reconcileRoom(ctx, bookingID, data, audit)
	case models.KindTourBooking:
		outcome, err = r.reconcileTour(ctx, bookingID, data, audit)
	}

	if err != nil {
		var recErr *models.ReconciliationError
		if errors.As(err, &recErr) && recErr.Retryable {
			audit.EventType = models.PaymentEventError
			audit.SetError(err.Error())
			logger.WithError(err).Error("Payment callback failed, gateway will retry")
			return finish(models.ReturnCodeRetry, recErr.Reason)
		}

		if audit.EventType == models.PaymentEventCallbackReceived {
			audit.EventType = models.PaymentEventError
		}
		audit.SetError(err.Error())
		logger.WithError(err).Error("Payment callback could not be applied")
		reason := err.Error()
		if recErr != nil {
			reason = recErr.Reason
		}
		return finish(models.ReturnCodeRejected, reason)
	}

	if outcome == outcomeDuplicate {
		audit.EventType = models.PaymentEventDuplicateCallback
		audit.MarkAsDuplicate()
		logger.Info("Duplicate payment callback ignored")
		return finish(models.ReturnCodeSuccess, "already processed")
	}

	audit.EventType = models.PaymentEventBookingConfirmed
	logger.Info("Booking payment confirmed")
	return finish(models.ReturnCodeSuccess, "success")
}

func (r *Reconciler) reconcileRoom(ctx context.Context, id uuid.UUID, data *models.CallbackData, audit *models.PaymentAudit) (reconcileOutcome, error) {
	kind := models.KindRoomBooking

	booking, err := r.hotels.GetByID(ctx, id)
	if err != nil {
		return 0, retryable(kind, id, "failed to load booking", err)
	}
	if booking == nil || booking.IsDelete {
		return 0, permanent(kind, id, "booking not found", nil)
	}
	if err := r.checkAmount(kind, id, booking.TotalPrice.Round(0).IntPart(), data.Amount, audit); err != nil {
		return 0, err
	}
	if booking.Status.IsPaid() {
		return outcomeDuplicate, nil
	}
	if !booking.Status.CanTransitionTo(models.HotelBookingConfirmed) {
		audit.EventType = models.PaymentEventRefundRequired
		return 0, permanent(kind, id, "booking is "+string(booking.Status), nil)
	}

	confirmed, applied, err := r.hotels.ConfirmPayment(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrOverlappingConfirmed) {
			audit.EventType = models.PaymentEventRefundRequired
			return 0, permanent(kind, id, "dates already sold to another paid booking", err)
		}
		return 0, retryable(kind, id, "failed to confirm booking", err)
	}

	if !applied {
		current, err := r.hotels.GetByID(ctx, id)
		if err != nil {
			return 0, retryable(kind, id, "failed to reload booking", err)
		}
		if current != nil && !current.IsDelete && current.Status == models.HotelBookingConfirmed {
			return outcomeDuplicate, nil
		}
		audit.EventType = models.PaymentEventRefundRequired
		status := "deleted"
		if current != nil && !current.IsDelete {
			status = string(current.Status)
		}
		return 0, permanent(kind, id, "booking is "+status, nil)
	}

	if r.rooms != nil {
		r.rooms.Invalidate(ctx, confirmed.HotelRoomID)
	}

	snapshot := models.RoomSnapshot(models.EventPaymentConfirmed, confirmed)
	detail, err := r.hotels.GetDetail(ctx, id)
	if err != nil {
		r.logger.WithError(err).WithField("booking_id", id).Warn("Failed to load booking detail for notification")
	} else if detail != nil {
		snapshot = models.RoomDetailSnapshot(models.EventPaymentConfirmed, detail)
	}
	r.dispatcher.Dispatch(snapshot)

	return outcomeConfirmed, nil
}

func (r *Reconciler) reconcileTour(ctx context.Context, id uuid.UUID, data *models.CallbackData, audit *models.PaymentAudit) (reconcileOutcome, error) {
	kind := models.KindTourBooking

	booking, err := r.tours.GetByID(ctx, id)
	if err != nil {
		return 0, retryable(kind, id, "failed to load booking", err)
	}
	if booking == nil || booking.IsDelete {
		return 0, permanent(kind, id, "booking not found", nil)
	}
	if err := r.checkAmount(kind, id, booking.TotalPrice.Round(0).IntPart(), data.Amount, audit); err != nil {
		return 0, err
	}
	if booking.Status.IsPaid() {
		return outcomeDuplicate, nil
	}
	if !booking.Status.CanTransitionTo(models.TourBookingConfirmed) {
		audit.EventType = models.PaymentEventRefundRequired
		return 0, permanent(kind, id, "booking is "+string(booking.Status), nil)
	}

	confirmed, applied, err := r.tours.ConfirmPayment(ctx, id)
	if err != nil {
		return 0, retryable(kind, id, "failed to confirm booking", err)
	}

	if !applied {
		current, err := r.tours.GetByID(ctx, id)
		if err != nil {
			return 0, retryable(kind, id, "failed to reload booking", err)
		}
		if current != nil && !current.IsDelete && current.Status == models.TourBookingConfirmed {
			return outcomeDuplicate, nil
		}
		audit.EventType = models.PaymentEventRefundRequired
		status := "deleted"
		if current != nil && !current.IsDelete {
			status = string(current.Status)
		}
		return 0, permanent(kind, id, "booking is "+status, nil)
	}

	r.dispatcher.Dispatch(models.TourSnapshot(models.EventPaymentConfirmed, confirmed))
	return outcomeConfirmed, nil
}

func (r *Reconciler) checkAmount(kind models.OrderKind, id uuid.UUID, expected, received int64, audit *models.PaymentAudit) error {
	if audit.SetAmounts(expected, received) {
		return nil
	}
	audit.EventType = models.PaymentEventReconciliationMismatch
	return permanent(kind, id, fmt.Sprintf("amount mismatch: expected %d, received %d", expected, received), nil)
}

func (r *Reconciler) reject(audit *models.PaymentAudit, err error, finish func(int, string) models.CallbackResult) models.CallbackResult {
	audit.EventType = models.PaymentEventError
	audit.SetError(err.Error())
	r.logger.WithError(err).Warn("Rejected malformed payment callback")
	return finish(models.ReturnCodeRejected, err.Error())
}

func (r *Reconciler) record(ctx context.Context, audit *models.PaymentAudit) {
	if r.audits == nil {
		return
	}
	if err := r.audits.Log(ctx, audit); err != nil {
		r.logger.WithError(err).Warn("Failed to record payment audit")
	}
}

func retryable(kind models.OrderKind, id uuid.UUID, reason string, err error) error {
	return &models.ReconciliationError{Kind: kind, BookingID: id.String(), Reason: reason, Retryable: true, Err: err}
}

func permanent(kind models.OrderKind, id uuid.UUID, reason string, err error) error {
	return &models.ReconciliationError{Kind: kind, BookingID: id.String(), Reason: reason, Err: err}
}
