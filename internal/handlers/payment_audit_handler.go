package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/models"
)

// PaymentAuditReader reads the payment audit trail
type PaymentAuditReader interface {
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.PaymentAudit, error)
	ListNeedingAttention(ctx context.Context, limit int) ([]*models.PaymentAudit, error)
}

// PaymentAuditHandler lets staff review callbacks that need manual follow-up
type PaymentAuditHandler struct {
	audits PaymentAuditReader
	logger *logrus.Logger
}

// NewPaymentAuditHandler creates a new PaymentAuditHandler
func NewPaymentAuditHandler(audits PaymentAuditReader, logger *logrus.Logger) *PaymentAuditHandler {
	return &PaymentAuditHandler{audits: audits, logger: logger}
}

// ListNeedingAttention handles GET /api/v1/admin/payments/attention?limit=50.
// Lists amount mismatches and paid bookings that must be refunded.
func (h *PaymentAuditHandler) ListNeedingAttention(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "limit must be between 1 and 500",
			Field:   "limit",
		})
		return
	}

	audits, err := h.audits.ListNeedingAttention(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Payments needing attention", Data: audits})
}

// ListByBooking handles GET /api/v1/admin/payments/bookings/:id
func (h *PaymentAuditHandler) ListByBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	audits, err := h.audits.ListByBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Payment history", Data: audits})
}
