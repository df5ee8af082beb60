package models

import (
	"strings"
	"time"
)

// DateLayout is the calendar-date format used on the wire
const DateLayout = "2006-01-02"

// DateWindow is a half-open stay interval [CheckIn, CheckOut).
// The check-out day is free for the next guest.
type DateWindow struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// NewDateWindow builds a window from two instants, truncated to calendar days
func NewDateWindow(checkIn, checkOut time.Time) DateWindow {
	return DateWindow{CheckIn: toDate(checkIn), CheckOut: toDate(checkOut)}
}

// ParseDateWindow parses check-in and check-out dates and validates their order
func ParseDateWindow(checkIn, checkOut string) (DateWindow, error) {
	in, err := ParseDate(checkIn)
	if err != nil {
		return DateWindow{}, NewValidationError("checkInDate", "invalid date")
	}
	out, err := ParseDate(checkOut)
	if err != nil {
		return DateWindow{}, NewValidationError("checkOutDate", "invalid date")
	}
	w := DateWindow{CheckIn: in, CheckOut: out}
	if err := w.Validate(); err != nil {
		return DateWindow{}, err
	}
	return w, nil
}

// ParseDate accepts "2024-06-10" as well as full RFC 3339 timestamps
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return toDate(t), nil
}

// Validate enforces CheckIn < CheckOut
func (w DateWindow) Validate() error {
	if w.CheckIn.IsZero() || w.CheckOut.IsZero() {
		return NewValidationError("checkInDate", "check-in and check-out dates are required")
	}
	if !w.CheckIn.Before(w.CheckOut) {
		return NewValidationError("checkOutDate", "Check-out date must be after check-in date")
	}
	return nil
}

// Overlaps reports whether two half-open windows share at least one night
func (w DateWindow) Overlaps(other DateWindow) bool {
	return w.CheckIn.Before(other.CheckOut) && w.CheckOut.After(other.CheckIn)
}

// Nights is the number of nights in the window
func (w DateWindow) Nights() int {
	return int(w.CheckOut.Sub(w.CheckIn).Hours() / 24)
}

// Days lists every occupied calendar day, check-out day excluded
func (w DateWindow) Days() []string {
	days := make([]string, 0, w.Nights())
	for d := w.CheckIn; d.Before(w.CheckOut); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}

func toDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
