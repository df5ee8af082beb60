package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/models"
	"golang.org/x/sync/singleflight"
)

// ConflictDetector answers availability questions for hotel rooms
type ConflictDetector struct {
	store  HotelBookingStore
	cache  BookedDatesStore // optional
	group  singleflight.Group
	logger *logrus.Logger
}

// NewConflictDetector creates a detector. cache may be nil.
func NewConflictDetector(store HotelBookingStore, cache BookedDatesStore, logger *logrus.Logger) *ConflictDetector {
	return &ConflictDetector{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// HasConflict reports whether w overlaps a paid booking, or an unpaid booking
// whose hold has not lapsed, for the room.
func (d *ConflictDetector) HasConflict(ctx context.Context, roomID uuid.UUID, w models.DateWindow) (bool, error) {
	if err := w.Validate(); err != nil {
		return false, err
	}
	return d.store.HasBlockingReservation(ctx, roomID, w)
}

// BookedDates lists every day covered by a paid, non-deleted booking of the room.
// Check-out days are free. The result is sorted and has no duplicates.
//
// The cache generation is read before the ledger. A load that races an
// Invalidate stores its result under the old generation, which is never read again.
func (d *ConflictDetector) BookedDates(ctx context.Context, roomID uuid.UUID) ([]string, error) {
	var gen int64
	cached := d.cache != nil
	if cached {
		var err error
		gen, err = d.cache.Generation(ctx, roomID)
		if err != nil {
			d.logger.WithError(err).WithField("room_id", roomID).Warn("Booked dates cache read failed")
			cached = false
		} else {
			days, ok, err := d.cache.Get(ctx, roomID, gen)
			if err != nil {
				d.logger.WithError(err).WithField("room_id", roomID).Warn("Booked dates cache read failed")
			} else if ok {
				return days, nil
			}
		}
	}

	v, err, _ := d.group.Do(fmt.Sprintf("%s:%d", roomID, gen), func() (interface{}, error) {
		windows, err := d.store.ListPaidWindows(ctx, roomID)
		if err != nil {
			return nil, err
		}
		days := FlattenWindows(windows)

		if cached {
			if err := d.cache.Set(ctx, roomID, gen, days); err != nil {
				d.logger.WithError(err).WithField("room_id", roomID).Warn("Booked dates cache write failed")
			}
		}
		return days, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Invalidate drops the cached booked dates of a room after its ledger changed
func (d *ConflictDetector) Invalidate(ctx context.Context, roomID uuid.UUID) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Invalidate(ctx, roomID); err != nil {
		d.logger.WithError(err).WithField("room_id", roomID).Warn("Booked dates cache invalidation failed")
	}
}

// FlattenWindows expands windows into their sorted, distinct days
func FlattenWindows(windows []models.DateWindow) []string {
	seen := make(map[string]struct{})
	days := []string{}
	for _, w := range windows {
		for _, day := range w.Days() {
			if _, ok := seen[day]; ok {
				continue
			}
			seen[day] = struct{}{}
			days = append(days, day)
		}
	}
	sort.Strings(days)
	return days
}
