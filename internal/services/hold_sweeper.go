package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AbandonedHoldCanceller cancels unpaid bookings left behind by their guests
type AbandonedHoldCanceller interface {
	CancelAbandonedHolds(ctx context.Context) (int, error)
}

// HoldSweeper periodically cancels hotel bookings whose payment never arrived
type HoldSweeper struct {
	bookings AbandonedHoldCanceller
	logger   *logrus.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewHoldSweeper creates a new hold sweeper
func NewHoldSweeper(bookings AbandonedHoldCanceller, interval time.Duration, logger *logrus.Logger) *HoldSweeper {
	return &HoldSweeper{
		bookings: bookings,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the background sweep
func (s *HoldSweeper) Start() {
	s.logger.WithField("interval", s.interval.String()).Info("Starting abandoned hold sweeper")
	go s.run()
}

// Stop stops the background sweep and waits for the current pass to finish
func (s *HoldSweeper) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping abandoned hold sweeper")
		close(s.stopCh)
	})
	<-s.done
}

func (s *HoldSweeper) run() {
	defer close(s.done)

	// Run immediately on start
	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce runs a single sweep
func (s *HoldSweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	count, err := s.bookings.CancelAbandonedHolds(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to cancel abandoned bookings")
		return
	}
	if count > 0 {
		s.logger.WithField("count", count).Info("Cancelled abandoned bookings")
	}
}
