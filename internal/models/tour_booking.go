package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TourBooking is a request to join a tour. Staff confirm it before payment.
type TourBooking struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	UserID     uuid.UUID         `json:"userId" db:"user_id"`
	UserEmail  string            `json:"userEmail" db:"user_email"`
	TourName   string            `json:"tourName" db:"tour_name"`
	FullName   string            `json:"fullName" db:"full_name"`
	Phone      string            `json:"phone" db:"phone"`
	GuestSize  int               `json:"guestSize" db:"guest_size"`
	BookAt     time.Time         `json:"bookAt" db:"book_at"`
	TotalPrice decimal.Decimal   `json:"totalPrice" db:"total_price"`
	Status     TourBookingStatus `json:"status" db:"status"`
	IsPayment  bool              `json:"isPayment" db:"is_payment"`
	IsDelete   bool              `json:"isDelete" db:"is_delete"`
	CreatedAt  time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time         `json:"updatedAt" db:"updated_at"`
}

// CreateTourBookingRequest is the body of POST /bookings
type CreateTourBookingRequest struct {
	UserID     string          `json:"userId" binding:"required"`
	UserEmail  string          `json:"userEmail" binding:"required,email"`
	TourName   string          `json:"tourName" binding:"required"`
	FullName   string          `json:"fullName" binding:"required"`
	Phone      string          `json:"phone" binding:"required"`
	GuestSize  int             `json:"guestSize" binding:"required,min=1"`
	BookAt     string          `json:"bookAt" binding:"required"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// TourBookingResult is returned when a tour booking moves to payment
type TourBookingResult struct {
	Booking    *TourBooking `json:"booking"`
	PaymentURL string       `json:"paymentUrl,omitempty"`
}
