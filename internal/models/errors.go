package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationError is returned for malformed input. Nothing is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a request field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError means the requested window overlaps a blocking reservation
type ConflictError struct {
	RoomID uuid.UUID
	Window DateWindow
}

func (e *ConflictError) Error() string {
	return "Room is booked for the selected dates, please choose different dates"
}

// NotFoundError is returned when a referenced record does not exist
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(resource string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id.String()}
}

// InvalidTransitionError is returned when a booking is not in a state that allows the operation
type InvalidTransitionError struct {
	BookingID uuid.UUID
	From      string
	To        string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("booking %s cannot move from %s to %s", e.BookingID, e.From, e.To)
}

// GatewayError wraps a failure to open a payment session.
// BookingID is set when the booking was stored and stays available for a retry.
type GatewayError struct {
	Message   string
	BookingID uuid.UUID
	Err       error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway: %s: %v", e.Message, e.Err)
	}
	return "payment gateway: " + e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// SignatureError is returned when a callback MAC does not verify
type SignatureError struct{}

func (e *SignatureError) Error() string {
	return "mac not equal"
}

// ReconciliationError describes a callback that verified but could not be applied
type ReconciliationError struct {
	Kind      OrderKind
	BookingID string
	Reason    string
	Retryable bool
	Err       error
}

func (e *ReconciliationError) Error() string {
	msg := fmt.Sprintf("reconcile %s %s: %s", e.Kind, e.BookingID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// RateLimitError is returned when a phone number or IP has opened too many holds
type RateLimitError struct {
	Scope      string // "phone" or "ip"
	RetryAfter time.Time
}

func (e *RateLimitError) Error() string {
	if e.Scope == "ip" {
		return fmt.Sprintf("Too many booking attempts from this IP address. Please try again after %s", e.RetryAfter.Format("15:04:05"))
	}
	return fmt.Sprintf("Too many booking attempts for this phone number. Please try again after %s", e.RetryAfter.Format("15:04:05"))
}
