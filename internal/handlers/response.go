package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/models"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	// BookingID names a stored booking whose payment can be retried
	BookingID string `json:"bookingId,omitempty"`
}

// APIResponse is the envelope of every successful booking response
type APIResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	PaymentURL string      `json:"paymentUrl,omitempty"`
}

// HotelPaymentResponse is returned when a hotel booking is created or its payment retried
type HotelPaymentResponse struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message"`
	Booking    *models.HotelBooking `json:"booking"`
	PaymentURL string               `json:"paymentUrl,omitempty"`
}

// respondError maps a service error to its HTTP status.
// Unknown errors are logged and reported as 500 without their details.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var (
		validationErr *models.ValidationError
		conflictErr   *models.ConflictError
		notFoundErr   *models.NotFoundError
		transitionErr *models.InvalidTransitionError
		gatewayErr    *models.GatewayError
		rateErr       *models.RateLimitError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: validationErr.Message,
			Field:   validationErr.Field,
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "dates_unavailable",
			Message: conflictErr.Error(),
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: notFoundErr.Error(),
		})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "invalid_status",
			Message: transitionErr.Error(),
		})
	case errors.As(err, &gatewayErr):
		logger.WithError(err).Warn("Payment gateway unavailable")
		resp := ErrorResponse{
			Error:   "payment_gateway_unavailable",
			Message: "Payment service is temporarily unavailable, please try again",
		}
		if gatewayErr.BookingID != uuid.Nil {
			resp.BookingID = gatewayErr.BookingID.String()
		}
		c.JSON(http.StatusServiceUnavailable, resp)
	case errors.As(err, &rateErr):
		retryAfter := int(math.Ceil(time.Until(rateErr.RetryAfter).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:   "rate_limited",
			Message: rateErr.Error(),
		})
	default:
		logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Something went wrong, please try again later",
		})
	}
}

// bindError reports a malformed request body
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request body: " + err.Error(),
	})
}

// parseID reads a uuid path parameter, writing a 400 when it is malformed
func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid " + param + " format",
		})
		return uuid.Nil, false
	}
	return id, true
}
