package models

// HotelBookingStatus is the lifecycle of a room reservation.
//
//	pending -> confirmed   (payment callback)
//	pending -> cancelled   (user cancel or abandoned hold)
//
// confirmed and cancelled are terminal. The paid flag is derived from
// status, it is never stored independently.
type HotelBookingStatus string

const (
	HotelBookingPending   HotelBookingStatus = "pending"
	HotelBookingConfirmed HotelBookingStatus = "confirmed"
	HotelBookingCancelled HotelBookingStatus = "cancelled"
)

var hotelTransitions = map[HotelBookingStatus][]HotelBookingStatus{
	HotelBookingPending: {HotelBookingConfirmed, HotelBookingCancelled},
}

// CanTransitionTo reports whether next is a legal successor of s
func (s HotelBookingStatus) CanTransitionTo(next HotelBookingStatus) bool {
	for _, allowed := range hotelTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsPaid reports whether the booking has been paid for
func (s HotelBookingStatus) IsPaid() bool {
	return s == HotelBookingConfirmed
}

// TourBookingStatus is the lifecycle of a tour reservation.
//
//	requested -> awaiting_payment -> confirmed
//	requested | awaiting_payment -> cancelled
type TourBookingStatus string

const (
	TourBookingRequested       TourBookingStatus = "requested"
	TourBookingAwaitingPayment TourBookingStatus = "awaiting_payment"
	TourBookingConfirmed       TourBookingStatus = "confirmed"
	TourBookingCancelled       TourBookingStatus = "cancelled"
)

var tourTransitions = map[TourBookingStatus][]TourBookingStatus{
	TourBookingRequested:       {TourBookingAwaitingPayment, TourBookingCancelled},
	TourBookingAwaitingPayment: {TourBookingConfirmed, TourBookingCancelled},
}

// CanTransitionTo reports whether next is a legal successor of s
func (s TourBookingStatus) CanTransitionTo(next TourBookingStatus) bool {
	for _, allowed := range tourTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsPaid reports whether the booking has been paid for
func (s TourBookingStatus) IsPaid() bool {
	return s == TourBookingConfirmed
}
