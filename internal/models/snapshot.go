package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationEvent names what happened to a booking
type NotificationEvent string

const (
	EventBookingRequested NotificationEvent = "booking_requested"
	EventPaymentConfirmed NotificationEvent = "payment_confirmed"
	EventBookingCancelled NotificationEvent = "booking_cancelled"
)

// BookingSnapshot is the denormalized view handed to notification channels.
// Room fields are empty for tour bookings.
type BookingSnapshot struct {
	Event      NotificationEvent `json:"event"`
	Kind       OrderKind         `json:"kind"`
	BookingID  string            `json:"bookingId"`
	FullName   string            `json:"fullName"`
	Phone      string            `json:"phone,omitempty"`
	Email      string            `json:"email,omitempty"`
	Username   string            `json:"username,omitempty"`
	TourName   string            `json:"tourName,omitempty"`
	GuestSize  int               `json:"guestSize,omitempty"`
	HotelName  string            `json:"hotelName,omitempty"`
	RoomType   string            `json:"roomType,omitempty"`
	CheckIn    string            `json:"checkIn,omitempty"`
	CheckOut   string            `json:"checkOut,omitempty"`
	TotalPrice decimal.Decimal   `json:"totalPrice"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// TourSnapshot builds a snapshot from a tour booking
func TourSnapshot(event NotificationEvent, b *TourBooking) BookingSnapshot {
	return BookingSnapshot{
		Event:      event,
		Kind:       KindTourBooking,
		BookingID:  b.ID.String(),
		FullName:   b.FullName,
		Phone:      b.Phone,
		Email:      b.UserEmail,
		TourName:   b.TourName,
		GuestSize:  b.GuestSize,
		CheckIn:    b.BookAt.Format(DateLayout),
		TotalPrice: b.TotalPrice,
		OccurredAt: time.Now(),
	}
}

// RoomSnapshot builds a snapshot from a bare hotel booking
func RoomSnapshot(event NotificationEvent, b *HotelBooking) BookingSnapshot {
	return BookingSnapshot{
		Event:      event,
		Kind:       KindRoomBooking,
		BookingID:  b.ID.String(),
		FullName:   b.FullName,
		Phone:      b.PhoneNumber,
		CheckIn:    b.CheckInDate.Format(DateLayout),
		CheckOut:   b.CheckOutDate.Format(DateLayout),
		TotalPrice: b.TotalPrice,
		OccurredAt: time.Now(),
	}
}

// RoomDetailSnapshot enriches a room snapshot with guest, room and hotel data
func RoomDetailSnapshot(event NotificationEvent, d *HotelBookingDetail) BookingSnapshot {
	s := RoomSnapshot(event, &d.HotelBooking)
	s.Username = d.Username
	s.Email = d.UserEmail
	s.HotelName = d.HotelName
	s.RoomType = d.RoomType
	return s
}
