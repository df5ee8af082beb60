package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/internal/utils"
)

// HotelBookingService is the part of services.BookingService used for hotel rooms
type HotelBookingService interface {
	CreateHotelBooking(ctx context.Context, req *models.CreateHotelBookingRequest) (*models.HotelBookingResult, error)
	RetryHotelPayment(ctx context.Context, id uuid.UUID) (*models.HotelBookingResult, error)
	CancelHotelBooking(ctx context.Context, id uuid.UUID) (*models.HotelBooking, error)
	CheckoutHotelBooking(ctx context.Context, id uuid.UUID) error
	DeleteHotelBooking(ctx context.Context, id uuid.UUID) error
	GetHotelBooking(ctx context.Context, id uuid.UUID) (*models.HotelBookingDetail, error)
	BookedDates(ctx context.Context, roomID uuid.UUID) ([]string, error)
}

// HoldLimiter bounds how often a client may open a payment hold
type HoldLimiter interface {
	CheckHoldRateLimit(ctx context.Context, phone, ip string) error
}

// HotelBookingHandler handles hotel room booking endpoints
type HotelBookingHandler struct {
	bookings HotelBookingService
	limiter  HoldLimiter
	logger   *logrus.Logger
}

// NewHotelBookingHandler creates a new HotelBookingHandler. limiter may be nil.
func NewHotelBookingHandler(bookings HotelBookingService, limiter HoldLimiter, logger *logrus.Logger) *HotelBookingHandler {
	return &HotelBookingHandler{bookings: bookings, limiter: limiter, logger: logger}
}

// CreatePayment handles POST /api/v1/hotels/payment.
// Reserves the room and returns {booking, paymentUrl}; overlapping dates give 400.
func (h *HotelBookingHandler) CreatePayment(c *gin.Context) {
	var req models.CreateHotelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if h.limiter != nil {
		if err := h.limiter.CheckHoldRateLimit(c.Request.Context(), req.PhoneNumber, utils.GetRealIP(c)); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	result, err := h.bookings.CreateHotelBooking(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	message := "Booking created, redirecting to payment"
	if result.PaymentURL == "" {
		message = "Booking created, pay at the hotel"
	}
	c.JSON(http.StatusOK, HotelPaymentResponse{
		Success:    true,
		Message:    message,
		Booking:    result.Booking,
		PaymentURL: result.PaymentURL,
	})
}

// RetryPayment handles POST /api/v1/hotels/bookings/:id/payment
func (h *HotelBookingHandler) RetryPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	result, err := h.bookings.RetryHotelPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, HotelPaymentResponse{
		Success:    true,
		Message:    "Redirecting to payment",
		Booking:    result.Booking,
		PaymentURL: result.PaymentURL,
	})
}

// CancelBooking handles POST /api/v1/hotels/bookings/:id/cancel
func (h *HotelBookingHandler) CancelBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.CancelHotelBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Booking cancelled", Data: booking})
}

// CheckoutBooking handles PUT /api/v1/hotels/admin/checkoutBookingHotel/:id
func (h *HotelBookingHandler) CheckoutBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.bookings.CheckoutHotelBooking(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Guest checked out"})
}

// DeleteBooking handles DELETE /api/v1/hotels/admin/deleteBookingHotel/:id
func (h *HotelBookingHandler) DeleteBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.bookings.DeleteHotelBooking(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Booking deleted"})
}

// GetBooking handles GET /api/v1/hotels/bookings/:id
func (h *HotelBookingHandler) GetBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	detail, err := h.bookings.GetHotelBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Booking found", Data: detail})
}

// BookedDates handles GET /api/v1/bookings/room/:roomId/booked-dates.
// Returns every paid night of the room as YYYY-MM-DD; check-out days are free.
func (h *HotelBookingHandler) BookedDates(c *gin.Context) {
	roomID, ok := parseID(c, "roomId")
	if !ok {
		return
	}

	days, err := h.bookings.BookedDates(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Booked dates", Data: days})
}
