package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethodZaloPay is the only method that opens an online payment session
const PaymentMethodZaloPay = "ZaloPay"

// HotelBooking is one reservation of a hotel room for a date window.
// IsPayment is a generated column (status = 'confirmed').
type HotelBooking struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	HotelRoomID   uuid.UUID          `json:"hotelRoomId" db:"hotel_room_id"`
	UserID        uuid.UUID          `json:"userId" db:"user_id"`
	FullName      string             `json:"fullName" db:"full_name"`
	PhoneNumber   string             `json:"phoneNumber" db:"phone_number"`
	CheckInDate   time.Time          `json:"checkInDate" db:"check_in_date"`
	CheckOutDate  time.Time          `json:"checkOutDate" db:"check_out_date"`
	TotalPrice    decimal.Decimal    `json:"totalPrice" db:"total_price"`
	PaymentMethod string             `json:"paymentMethod" db:"payment_method"`
	Status        HotelBookingStatus `json:"status" db:"status"`
	IsPayment     bool               `json:"isPayment" db:"is_payment"`
	IsCheckout    bool               `json:"isCheckout" db:"is_checkout"`
	IsDelete      bool               `json:"isDelete" db:"is_delete"`
	HoldExpiresAt *time.Time         `json:"holdExpiresAt,omitempty" db:"hold_expires_at"`
	CreatedAt     time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time          `json:"updatedAt" db:"updated_at"`
}

// Window returns the booked stay interval
func (b *HotelBooking) Window() DateWindow {
	return NewDateWindow(b.CheckInDate, b.CheckOutDate)
}

// HotelBookingDetail joins a booking with its guest, room and hotel
type HotelBookingDetail struct {
	HotelBooking
	Username  string `json:"username" db:"username"`
	UserEmail string `json:"userEmail" db:"user_email"`
	RoomType  string `json:"roomType" db:"room_type"`
	HotelID   string `json:"hotelId" db:"hotel_id"`
	HotelName string `json:"hotelName" db:"hotel_name"`
}

// CreateHotelBookingRequest is the body of POST /hotels/payment
type CreateHotelBookingRequest struct {
	HotelRoomID   string          `json:"hotelRoomId" binding:"required"`
	UserID        string          `json:"userId" binding:"required"`
	FullName      string          `json:"fullName" binding:"required"`
	PhoneNumber   string          `json:"phoneNumber" binding:"required"`
	CheckInDate   string          `json:"checkInDate" binding:"required"`
	CheckOutDate  string          `json:"checkOutDate" binding:"required"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	PaymentMethod string          `json:"paymentMethod"`
}

// HotelBookingResult is returned after a booking is created or a payment retried.
// PaymentURL is empty for offline payment methods.
type HotelBookingResult struct {
	Booking    *HotelBooking `json:"booking"`
	PaymentURL string        `json:"paymentUrl,omitempty"`
}
