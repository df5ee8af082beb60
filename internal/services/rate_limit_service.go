package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/pkg/validator"
)

// RateCounter counts requests per identifier in a fixed window.
// Implemented by cache.RedisRateCounter and cache.MemoryRateCounter.
type RateCounter interface {
	Incr(ctx context.Context, scope, identifier string, window time.Duration) (int64, time.Duration, error)
}

// RateLimitService bounds how many payment holds a phone number or IP can open,
// so a single client cannot lock a room's dates with repeated unpaid bookings
type RateLimitService struct {
	counter RateCounter
	phones  *validator.PhoneValidator
	config  config.RateLimitConfig
	logger  *logrus.Logger
	now     func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(counter RateCounter, cfg config.RateLimitConfig, logger *logrus.Logger) *RateLimitService {
	return &RateLimitService{
		counter: counter,
		phones:  validator.NewPhoneValidator(),
		config:  cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// CheckHoldRateLimit records one hold attempt and fails with *models.RateLimitError
// when the phone number or IP exceeded its window. Counter failures let the request through.
func (s *RateLimitService) CheckHoldRateLimit(ctx context.Context, phone, ip string) error {
	if !s.config.Enabled {
		return nil
	}

	if phone != "" {
		// Count every spelling of a number against the same window
		phone = s.phones.Sanitize(phone)
		if err := s.check(ctx, "phone", phone, s.config.MaxPhoneRequests, s.config.PhoneWindow); err != nil {
			return err
		}
	}

	if ip != "" {
		if err := s.check(ctx, "ip", ip, s.config.MaxIPRequests, s.config.IPWindow); err != nil {
			return err
		}
	}

	return nil
}

func (s *RateLimitService) check(ctx context.Context, scope, identifier string, max int, window time.Duration) error {
	if max <= 0 {
		return nil
	}

	count, remaining, err := s.counter.Incr(ctx, scope, identifier, window)
	if err != nil {
		s.logger.WithError(err).WithField("scope", scope).Warn("Rate counter unavailable, allowing request")
		return nil
	}

	if count > int64(max) {
		s.logger.WithFields(logrus.Fields{
			"scope":    scope,
			"attempts": count,
		}).Warn("Hold rate limit exceeded")
		return &models.RateLimitError{Scope: scope, RetryAfter: s.now().Add(remaining)}
	}
	return nil
}
