package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventOrderCreated           PaymentEventType = "order_created"
	PaymentEventOrderFailed            PaymentEventType = "order_failed"
	PaymentEventCallbackReceived       PaymentEventType = "callback_received"
	PaymentEventSignatureFailed        PaymentEventType = "signature_failed"
	PaymentEventBookingConfirmed       PaymentEventType = "booking_confirmed"
	PaymentEventDuplicateCallback      PaymentEventType = "duplicate_callback"
	PaymentEventReconciliationMismatch PaymentEventType = "reconciliation_mismatch"
	PaymentEventRefundRequired         PaymentEventType = "refund_required"
	PaymentEventError                  PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend         PaymentEventSource = "backend"
	PaymentSourceGatewayAPI      PaymentEventSource = "zalopay_api"
	PaymentSourceGatewayCallback PaymentEventSource = "zalopay_callback"
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface.
// Returns JSON as string for compatibility with pgx simple protocol mode.
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return nil
}

// PaymentAudit is an append-only record of one gateway interaction
type PaymentAudit struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Kind       *string    `json:"kind,omitempty" db:"kind"`
	BookingID  *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`
	AppTransID *string    `json:"app_trans_id,omitempty" db:"app_trans_id"`
	ZPTransID  *string    `json:"zp_trans_id,omitempty" db:"zp_trans_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// Amounts in VND
	ExpectedAmount *int64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *int64 `json:"received_amount,omitempty" db:"received_amount"`
	AmountsMatch   *bool  `json:"amounts_match,omitempty" db:"amounts_match"`

	RequestPayload  JSONB   `json:"request_payload,omitempty" db:"request_payload"`
	ResponsePayload JSONB   `json:"response_payload,omitempty" db:"response_payload"`
	RawBody         *string `json:"raw_body,omitempty" db:"raw_body"`

	HTTPStatusCode *int    `json:"http_status_code,omitempty" db:"http_status_code"`
	EndpointURL    *string `json:"endpoint_url,omitempty" db:"endpoint_url"`
	ReturnCode     *int    `json:"return_code,omitempty" db:"return_code"`
	ErrorMessage   *string `json:"error_message,omitempty" db:"error_message"`

	ProcessingTimeMs *int `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	IsDuplicate      bool `json:"is_duplicate" db:"is_duplicate"`

	IPAddress  *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceType *string `json:"device_type,omitempty" db:"device_type"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetOrder links the entry to a booking and gateway transaction
func (pa *PaymentAudit) SetOrder(kind OrderKind, bookingID uuid.UUID, appTransID string) *PaymentAudit {
	k := string(kind)
	pa.Kind = &k
	pa.BookingID = &bookingID
	if appTransID != "" {
		pa.AppTransID = &appTransID
	}
	return pa
}

// SetZPTransID sets the gateway-side transaction id
func (pa *PaymentAudit) SetZPTransID(id string) *PaymentAudit {
	if id != "" {
		pa.ZPTransID = &id
	}
	return pa
}

// SetAmounts records both amounts and returns whether they match exactly
func (pa *PaymentAudit) SetAmounts(expected, received int64) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	match := expected == received
	pa.AmountsMatch = &match
	return match
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetRawBody stores the raw body before parsing
func (pa *PaymentAudit) SetRawBody(body string) *PaymentAudit {
	pa.RawBody = &body
	return pa
}

// SetHTTPDetails sets endpoint and status of an outbound call
func (pa *PaymentAudit) SetHTTPDetails(url string, statusCode int) *PaymentAudit {
	pa.EndpointURL = &url
	if statusCode != 0 {
		pa.HTTPStatusCode = &statusCode
	}
	return pa
}

// SetReturnCode records the code answered to the gateway
func (pa *PaymentAudit) SetReturnCode(code int) *PaymentAudit {
	pa.ReturnCode = &code
	return pa
}

// SetRequestPayload sets the request payload sent
func (pa *PaymentAudit) SetRequestPayload(payload map[string]interface{}) *PaymentAudit {
	pa.RequestPayload = JSONB(payload)
	return pa
}

// SetResponsePayload sets the response payload received
func (pa *PaymentAudit) SetResponsePayload(payload map[string]interface{}) *PaymentAudit {
	pa.ResponsePayload = JSONB(payload)
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(meta RequestMeta) *PaymentAudit {
	if meta.IPAddress != "" {
		pa.IPAddress = &meta.IPAddress
	}
	if meta.UserAgent != "" {
		pa.UserAgent = &meta.UserAgent
	}
	if meta.DeviceType != "" {
		pa.DeviceType = &meta.DeviceType
	}
	return pa
}

// SetProcessingTime calculates and sets processing time
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	return pa
}

// MarkAsDuplicate marks this event as a duplicate
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}

// RequestMeta carries caller details for audit entries
type RequestMeta struct {
	IPAddress  string
	UserAgent  string
	DeviceType string
	RequestID  string
}
