package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/models"
)

// TourBookingService is the part of services.BookingService used for tours
type TourBookingService interface {
	CreateTourBooking(ctx context.Context, req *models.CreateTourBookingRequest) (*models.TourBooking, error)
	ConfirmTourBooking(ctx context.Context, id uuid.UUID) (*models.TourBookingResult, error)
	CancelTourBooking(ctx context.Context, id uuid.UUID) (*models.TourBooking, error)
	DeleteTourBooking(ctx context.Context, id uuid.UUID) error
	GetTourBooking(ctx context.Context, id uuid.UUID) (*models.TourBooking, error)
}

// TourBookingHandler handles tour booking endpoints
type TourBookingHandler struct {
	bookings TourBookingService
	logger   *logrus.Logger
}

// NewTourBookingHandler creates a new TourBookingHandler
func NewTourBookingHandler(bookings TourBookingService, logger *logrus.Logger) *TourBookingHandler {
	return &TourBookingHandler{bookings: bookings, logger: logger}
}

// CreateBooking handles POST /api/v1/bookings
func (h *TourBookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateTourBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	booking, err := h.bookings.CreateTourBooking(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Message: "Your booking request has been received",
		Data:    booking,
	})
}

// ConfirmBooking handles POST /api/v1/bookings/:id/confirm.
// It moves the request to payment and returns the gateway URL.
func (h *TourBookingHandler) ConfirmBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	result, err := h.bookings.ConfirmTourBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success:    true,
		Message:    "Booking confirmed, awaiting payment",
		Data:       result.Booking,
		PaymentURL: result.PaymentURL,
	})
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (h *TourBookingHandler) CancelBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.CancelTourBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Booking cancelled", Data: booking})
}

// DeleteBooking handles DELETE /api/v1/bookings/:id
func (h *TourBookingHandler) DeleteBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.bookings.DeleteTourBooking(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Booking deleted"})
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *TourBookingHandler) GetBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.GetTourBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Booking found", Data: booking})
}
