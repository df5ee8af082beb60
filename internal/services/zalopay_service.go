package services

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/internal/models"
)

// PaymentGateway opens hosted payment sessions
type PaymentGateway interface {
	OpenSession(ctx context.Context, order *models.OrderDescriptor) (string, error)
}

// CallbackVerifier checks the signature of a gateway callback
type CallbackVerifier interface {
	VerifyCallback(data, mac string) bool
}

// placeholderPaymentURL is returned when no gateway credentials are configured
const placeholderPaymentURL = "https://sbgateway.zalopay.vn/openinapp?order=%s"

// ZaloPayService handles payment gateway integration with ZaloPay
type ZaloPayService struct {
	config *config.PaymentConfig
	audits PaymentAuditStore // optional
	logger *logrus.Logger
	client *http.Client
}

// NewZaloPayService creates a new ZaloPay payment service
func NewZaloPayService(cfg *config.PaymentConfig, audits PaymentAuditStore, logger *logrus.Logger) *ZaloPayService {
	return &ZaloPayService{
		config: cfg,
		audits: audits,
		logger: logger,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// IsConfigured returns true if payment gateway is properly configured
func (s *ZaloPayService) IsConfigured() bool {
	return s.config.AppID != "" && s.config.Key1 != "" && s.config.Key2 != ""
}

// OpenSession posts the order to the create endpoint and returns the hosted payment URL.
// Every failure is a *models.GatewayError. There is no retry.
func (s *ZaloPayService) OpenSession(ctx context.Context, order *models.OrderDescriptor) (string, error) {
	startTime := time.Now()
	audit := models.NewPaymentAudit(models.PaymentEventOrderCreated, models.PaymentSourceGatewayAPI).
		SetOrder(order.Kind, order.BookingID, order.AppTransID).
		SetRequestPayload(orderPayload(order))
	expected := order.Amount
	audit.ExpectedAmount = &expected

	if !s.IsConfigured() {
		url := fmt.Sprintf(placeholderPaymentURL, order.AppTransID)
		s.logger.WithFields(logrus.Fields{
			"app_trans_id": order.AppTransID,
			"amount":       order.Amount,
			"mode":         "placeholder",
		}).Warn("ZaloPay not configured - using placeholder payment URL")
		s.record(ctx, audit.SetResponsePayload(map[string]interface{}{"order_url": url}).SetProcessingTime(startTime))
		return url, nil
	}

	s.logger.WithFields(logrus.Fields{
		"app_trans_id": order.AppTransID,
		"kind":         order.Kind,
		"booking_id":   order.BookingID,
		"amount":       order.Amount,
		"endpoint":     s.config.Endpoint,
	}).Info("Opening ZaloPay payment session")

	url, statusCode, body, err := s.post(ctx, order)
	audit.SetHTTPDetails(s.config.Endpoint, statusCode).SetProcessingTime(startTime)
	if body != "" {
		audit.SetRawBody(body)
	}
	if err != nil {
		audit.EventType = models.PaymentEventOrderFailed
		s.record(ctx, audit.SetError(err.Error()))
		s.logger.WithError(err).WithField("app_trans_id", order.AppTransID).Error("Failed to open ZaloPay session")
		return "", err
	}

	s.record(ctx, audit.SetResponsePayload(map[string]interface{}{"order_url": url}))
	s.logger.WithFields(logrus.Fields{
		"app_trans_id": order.AppTransID,
		"order_url":    url,
	}).Info("ZaloPay payment session opened")

	return url, nil
}

func (s *ZaloPayService) post(ctx context.Context, order *models.OrderDescriptor) (string, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, nil)
	if err != nil {
		return "", 0, "", &models.GatewayError{Message: "failed to build request", Err: err}
	}
	req.URL.RawQuery = order.Values().Encode()

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, "", &models.GatewayError{Message: "failed to call payment gateway", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, "", &models.GatewayError{Message: "failed to read response", Err: err}
	}
	body := string(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode, body, &models.GatewayError{Message: fmt.Sprintf("payment gateway returned status %d", resp.StatusCode)}
	}

	var orderResp models.GatewayOrderResponse
	if err := json.Unmarshal(raw, &orderResp); err != nil {
		return "", resp.StatusCode, body, &models.GatewayError{Message: "failed to parse response", Err: err}
	}
	if orderResp.OrderURL == "" {
		msg := orderResp.ReturnMessage
		if msg == "" {
			msg = "no order_url returned"
		}
		return "", resp.StatusCode, body, &models.GatewayError{
			Message: fmt.Sprintf("order rejected (return_code=%d, sub_return_code=%d): %s", orderResp.ReturnCode, orderResp.SubReturnCode, msg),
		}
	}

	return orderResp.OrderURL, resp.StatusCode, body, nil
}

// VerifyCallback compares mac with hex(HMAC-SHA256(data, key2)) in constant time.
// Without key2 every callback is rejected.
func (s *ZaloPayService) VerifyCallback(data, mac string) bool {
	if s.config.Key2 == "" {
		s.logger.Warn("ZALOPAY_KEY2 not configured - rejecting payment callback")
		return false
	}
	expected := SignHMAC(s.config.Key2, data)
	return hmac.Equal([]byte(expected), []byte(mac))
}

func (s *ZaloPayService) record(ctx context.Context, audit *models.PaymentAudit) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Log(ctx, audit); err != nil {
		s.logger.WithError(err).Warn("Failed to record payment audit")
	}
}

func orderPayload(order *models.OrderDescriptor) map[string]interface{} {
	return map[string]interface{}{
		"app_id":       order.AppID,
		"app_trans_id": order.AppTransID,
		"app_user":     order.AppUser,
		"app_time":     order.AppTime,
		"amount":       order.Amount,
		"embed_data":   order.EmbedData,
		"description":  order.Description,
		"callback_url": order.CallbackURL,
	}
}
