package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/pkg/validator"
)

// abandonedBatchSize caps how many lapsed holds one sweep cancels
const abandonedBatchSize = 100

// BookingService implements the tour and hotel booking flows
type BookingService struct {
	hotels     HotelBookingStore
	tours      TourBookingStore
	detector   *ConflictDetector
	orders     *OrderBuilder
	gateway    PaymentGateway
	dispatcher EventDispatcher
	phones     *validator.PhoneValidator
	config     *config.BookingConfig
	logger     *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	hotels HotelBookingStore,
	tours TourBookingStore,
	detector *ConflictDetector,
	orders *OrderBuilder,
	gateway PaymentGateway,
	dispatcher EventDispatcher,
	cfg *config.BookingConfig,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		hotels:     hotels,
		tours:      tours,
		detector:   detector,
		orders:     orders,
		gateway:    gateway,
		dispatcher: dispatcher,
		phones:     validator.NewPhoneValidator(),
		config:     cfg,
		logger:     logger,
	}
}

// ============================================================================
// HOTEL BOOKINGS
// ============================================================================

// CreateHotelBooking reserves a room for a date window and opens a payment session.
// The booking is inserted pending and holds its dates for the configured TTL.
// If the gateway fails the hold is released and a *models.GatewayError carrying
// the booking id is returned, so the client can retry the payment later.
func (s *BookingService) CreateHotelBooking(ctx context.Context, req *models.CreateHotelBookingRequest) (*models.HotelBookingResult, error) {
	roomID, err := uuid.Parse(req.HotelRoomID)
	if err != nil {
		return nil, models.NewValidationError("hotelRoomId", "invalid room id")
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, models.NewValidationError("userId", "invalid user id")
	}
	phone, err := s.phones.Validate(req.PhoneNumber)
	if err != nil {
		return nil, models.NewValidationError("phoneNumber", err.Error())
	}
	if strings.TrimSpace(req.FullName) == "" {
		return nil, models.NewValidationError("fullName", "full name is required")
	}
	window, err := models.ParseDateWindow(req.CheckInDate, req.CheckOutDate)
	if err != nil {
		return nil, err
	}
	if !req.TotalPrice.IsPositive() {
		return nil, models.NewValidationError("totalPrice", "total price must be greater than zero")
	}
	method, err := s.paymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	booking := &models.HotelBooking{
		ID:            uuid.New(),
		HotelRoomID:   roomID,
		UserID:        userID,
		FullName:      strings.TrimSpace(req.FullName),
		PhoneNumber:   phone,
		CheckInDate:   window.CheckIn,
		CheckOutDate:  window.CheckOut,
		TotalPrice:    req.TotalPrice,
		PaymentMethod: method,
	}

	// Cheap early answer. CreateExclusive repeats the check under the room lock.
	taken, err := s.detector.HasConflict(ctx, roomID, window)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, &models.ConflictError{RoomID: roomID, Window: window}
	}

	if err := s.hotels.CreateExclusive(ctx, booking, s.config.HoldTTL); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"room_id":    roomID,
		"check_in":   window.CheckIn.Format(models.DateLayout),
		"check_out":  window.CheckOut.Format(models.DateLayout),
		"hold_until": booking.HoldExpiresAt,
	}).Info("Hotel booking created")

	result := &models.HotelBookingResult{Booking: booking}
	if method != models.PaymentMethodZaloPay {
		return result, nil
	}

	url, err := s.openHotelSession(ctx, booking)
	if err != nil {
		return nil, err
	}
	result.PaymentURL = url
	return result, nil
}

// RetryHotelPayment opens a new payment session for a booking that is still pending
func (s *BookingService) RetryHotelPayment(ctx context.Context, id uuid.UUID) (*models.HotelBookingResult, error) {
	booking, err := s.liveHotelBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.Status.CanTransitionTo(models.HotelBookingConfirmed) {
		return nil, &models.InvalidTransitionError{BookingID: id, From: string(booking.Status), To: string(models.HotelBookingConfirmed)}
	}

	if err := s.hotels.RenewHold(ctx, booking, s.config.HoldTTL); err != nil {
		return nil, err
	}

	url, err := s.openHotelSession(ctx, booking)
	if err != nil {
		return nil, err
	}
	return &models.HotelBookingResult{Booking: booking, PaymentURL: url}, nil
}

func (s *BookingService) openHotelSession(ctx context.Context, booking *models.HotelBooking) (string, error) {
	order, err := s.orders.BuildOrder(ctx, booking.ID, models.KindRoomBooking)
	if err == nil {
		var url string
		url, err = s.gateway.OpenSession(ctx, order)
		if err == nil {
			return url, nil
		}
	}

	if releaseErr := s.hotels.ReleaseHold(ctx, booking.ID); releaseErr != nil {
		s.logger.WithError(releaseErr).WithField("booking_id", booking.ID).Warn("Failed to release hold after payment failure")
	}
	return "", withBookingID(err, booking.ID)
}

func withBookingID(err error, id uuid.UUID) error {
	var gatewayErr *models.GatewayError
	if errors.As(err, &gatewayErr) {
		gatewayErr.BookingID = id
	}
	return err
}

// CancelHotelBooking cancels an unpaid hotel booking
func (s *BookingService) CancelHotelBooking(ctx context.Context, id uuid.UUID) (*models.HotelBooking, error) {
	to := models.HotelBookingCancelled
	current, err := s.liveHotelBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(to) {
		return nil, &models.InvalidTransitionError{BookingID: id, From: string(current.Status), To: string(to)}
	}

	cancelled, applied, err := s.hotels.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a race with the callback or another cancel
		current, err := s.liveHotelBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &models.InvalidTransitionError{BookingID: id, From: string(current.Status), To: string(to)}
	}

	s.detector.Invalidate(ctx, cancelled.HotelRoomID)
	s.dispatcher.Dispatch(models.RoomSnapshot(models.EventBookingCancelled, cancelled))
	return cancelled, nil
}

func (s *BookingService) liveHotelBooking(ctx context.Context, id uuid.UUID) (*models.HotelBooking, error) {
	booking, err := s.hotels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil || booking.IsDelete {
		return nil, models.NewNotFoundError("hotel booking", id)
	}
	return booking, nil
}

// CheckoutHotelBooking marks a paid stay as finished
func (s *BookingService) CheckoutHotelBooking(ctx context.Context, id uuid.UUID) error {
	ok, err := s.hotels.Checkout(ctx, id)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	current, err := s.hotels.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil || current.IsDelete {
		return models.NewNotFoundError("hotel booking", id)
	}
	from := string(current.Status)
	if current.IsCheckout {
		from = "checked_out"
	}
	return &models.InvalidTransitionError{BookingID: id, From: from, To: "checked_out"}
}

// DeleteHotelBooking soft-deletes a hotel booking and frees its dates
func (s *BookingService) DeleteHotelBooking(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.hotels.SoftDelete(ctx, id)
	if err != nil {
		return err
	}
	if deleted == nil {
		return models.NewNotFoundError("hotel booking", id)
	}
	s.detector.Invalidate(ctx, deleted.HotelRoomID)
	return nil
}

// GetHotelBooking returns a hotel booking with its guest, room and hotel
func (s *BookingService) GetHotelBooking(ctx context.Context, id uuid.UUID) (*models.HotelBookingDetail, error) {
	detail, err := s.hotels.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail == nil || detail.IsDelete {
		return nil, models.NewNotFoundError("hotel booking", id)
	}
	return detail, nil
}

// BookedDates lists the paid days of a room
func (s *BookingService) BookedDates(ctx context.Context, roomID uuid.UUID) ([]string, error) {
	return s.detector.BookedDates(ctx, roomID)
}

// CancelAbandonedHolds cancels pending bookings whose hold lapsed long ago.
// Returns how many bookings were cancelled.
func (s *BookingService) CancelAbandonedHolds(ctx context.Context) (int, error) {
	cancelled, err := s.hotels.CancelAbandoned(ctx, s.config.AbandonAfter, abandonedBatchSize)
	if err != nil {
		return 0, err
	}
	for _, b := range cancelled {
		s.dispatcher.Dispatch(models.RoomSnapshot(models.EventBookingCancelled, b))
	}
	return len(cancelled), nil
}

func (s *BookingService) paymentMethod(method string) (string, error) {
	if method == "" {
		return models.PaymentMethodZaloPay, nil
	}
	for _, allowed := range s.config.PaymentMethods {
		if strings.EqualFold(method, allowed) {
			return allowed, nil
		}
	}
	return "", models.NewValidationError("paymentMethod", "unsupported payment method "+method)
}

// ============================================================================
// TOUR BOOKINGS
// ============================================================================

// CreateTourBooking records a tour request for staff to review
func (s *BookingService) CreateTourBooking(ctx context.Context, req *models.CreateTourBookingRequest) (*models.TourBooking, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, models.NewValidationError("userId", "invalid user id")
	}
	phone, err := s.phones.Validate(req.Phone)
	if err != nil {
		return nil, models.NewValidationError("phone", err.Error())
	}
	if strings.TrimSpace(req.FullName) == "" {
		return nil, models.NewValidationError("fullName", "full name is required")
	}
	if strings.TrimSpace(req.TourName) == "" {
		return nil, models.NewValidationError("tourName", "tour name is required")
	}
	if req.GuestSize < 1 {
		return nil, models.NewValidationError("guestSize", "at least one guest is required")
	}
	bookAt, err := models.ParseDate(req.BookAt)
	if err != nil {
		return nil, models.NewValidationError("bookAt", "invalid date")
	}
	if !req.TotalPrice.IsPositive() {
		return nil, models.NewValidationError("totalPrice", "total price must be greater than zero")
	}

	booking := &models.TourBooking{
		UserID:     userID,
		UserEmail:  strings.TrimSpace(req.UserEmail),
		TourName:   strings.TrimSpace(req.TourName),
		FullName:   strings.TrimSpace(req.FullName),
		Phone:      phone,
		GuestSize:  req.GuestSize,
		BookAt:     bookAt,
		TotalPrice: req.TotalPrice,
	}

	if err := s.tours.Create(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"tour":       booking.TourName,
		"guests":     booking.GuestSize,
	}).Info("Tour booking requested")

	s.dispatcher.Dispatch(models.TourSnapshot(models.EventBookingRequested, booking))
	return booking, nil
}

// ConfirmTourBooking accepts a tour request and opens its payment session.
// Calling it again while the booking awaits payment opens a fresh session.
func (s *BookingService) ConfirmTourBooking(ctx context.Context, id uuid.UUID) (*models.TourBookingResult, error) {
	to := models.TourBookingAwaitingPayment
	booking, err := s.GetTourBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if booking.Status != to {
		if !booking.Status.CanTransitionTo(to) {
			return nil, &models.InvalidTransitionError{BookingID: id, From: string(booking.Status), To: string(to)}
		}
		updated, applied, err := s.tours.MarkAwaitingPayment(ctx, id)
		if err != nil {
			return nil, err
		}
		if !applied {
			return nil, &models.InvalidTransitionError{BookingID: id, From: string(booking.Status), To: string(to)}
		}
		booking = updated
	}

	order, err := s.orders.BuildOrder(ctx, booking.ID, models.KindTourBooking)
	if err != nil {
		return nil, err
	}
	url, err := s.gateway.OpenSession(ctx, order)
	if err != nil {
		return nil, withBookingID(err, booking.ID)
	}

	return &models.TourBookingResult{Booking: booking, PaymentURL: url}, nil
}

// CancelTourBooking cancels a tour booking that has not been paid
func (s *BookingService) CancelTourBooking(ctx context.Context, id uuid.UUID) (*models.TourBooking, error) {
	to := models.TourBookingCancelled
	current, err := s.GetTourBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(to) {
		return nil, &models.InvalidTransitionError{BookingID: id, From: string(current.Status), To: string(to)}
	}

	cancelled, applied, err := s.tours.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	if !applied {
		current, err := s.GetTourBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &models.InvalidTransitionError{BookingID: id, From: string(current.Status), To: string(to)}
	}

	s.dispatcher.Dispatch(models.TourSnapshot(models.EventBookingCancelled, cancelled))
	return cancelled, nil
}

// DeleteTourBooking soft-deletes a tour booking
func (s *BookingService) DeleteTourBooking(ctx context.Context, id uuid.UUID) error {
	ok, err := s.tours.SoftDelete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("tour booking", id)
	}
	return nil
}

// GetTourBooking returns a tour booking
func (s *BookingService) GetTourBooking(ctx context.Context, id uuid.UUID) (*models.TourBooking, error) {
	booking, err := s.tours.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil || booking.IsDelete {
		return nil, models.NewNotFoundError("tour booking", id)
	}
	return booking, nil
}
