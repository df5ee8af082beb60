package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/internal/utils"
)

// CallbackReconciler applies a gateway callback to the ledger
type CallbackReconciler interface {
	Reconcile(ctx context.Context, payload models.CallbackPayload, meta models.RequestMeta) models.CallbackResult
}

// PaymentCallbackHandler receives payment notifications from ZaloPay
type PaymentCallbackHandler struct {
	reconciler CallbackReconciler
	logger     *logrus.Logger
}

// NewPaymentCallbackHandler creates a new PaymentCallbackHandler
func NewPaymentCallbackHandler(reconciler CallbackReconciler, logger *logrus.Logger) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{reconciler: reconciler, logger: logger}
}

// HandleCallback handles POST /api/v1/bookings/callback.
// The gateway reads the outcome from return_code, so the status is always 200.
func (h *PaymentCallbackHandler) HandleCallback(c *gin.Context) {
	var payload models.CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Data == "" {
		h.logger.WithField("ip", utils.GetRealIP(c)).Warn("Malformed payment callback body")
		c.JSON(http.StatusOK, models.CallbackResult{
			ReturnCode:    models.ReturnCodeRejected,
			ReturnMessage: "invalid callback body",
		})
		return
	}

	result := h.reconciler.Reconcile(c.Request.Context(), payload, utils.RequestMeta(c))
	c.JSON(http.StatusOK, result)
}
