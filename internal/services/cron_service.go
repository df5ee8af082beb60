package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/config"
)

// AuditMaintainer is the part of the payment audit ledger the scheduled jobs use.
// Implemented by database.PaymentAuditRepository.
type AuditMaintainer interface {
	CountNeedingAttentionSince(ctx context.Context, since time.Time) (int, error)
	PurgeOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// jobTimeout bounds a single scheduled job run
const jobTimeout = 5 * time.Minute

// CronService manages scheduled payment audit maintenance
type CronService struct {
	cron   *cron.Cron
	audits AuditMaintainer
	config config.JobsConfig
	logger *logrus.Logger
	now    func() time.Time
}

// NewCronService creates a new CronService
func NewCronService(audits AuditMaintainer, cfg config.JobsConfig, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:   cron.New(cron.WithSeconds()),
		audits: audits,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Start schedules the jobs and starts the scheduler
func (s *CronService) Start() error {
	if s.config.AuditRetention > 0 {
		if _, err := s.cron.AddFunc(s.config.AuditPurgeSchedule, s.purgeAuditsJob); err != nil {
			return fmt.Errorf("failed to schedule audit purge job: %w", err)
		}
		s.logger.WithField("schedule", s.config.AuditPurgeSchedule).Info("Scheduled: purge old payment audits")
	}

	if _, err := s.cron.AddFunc(s.config.DigestSchedule, s.attentionDigestJob); err != nil {
		return fmt.Errorf("failed to schedule attention digest job: %w", err)
	}
	s.logger.WithField("schedule", s.config.DigestSchedule).Info("Scheduled: payment attention digest")

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service")
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// purgeAuditsJob removes settled audit entries past the retention period
func (s *CronService) purgeAuditsJob() {
	if s.config.AuditRetention <= 0 {
		s.logger.Info("[CRON] Audit retention disabled, nothing to purge")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	startTime := s.now()
	cutoff := startTime.Add(-s.config.AuditRetention)

	deleted, err := s.audits.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to purge payment audits")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"deleted":  deleted,
		"cutoff":   cutoff.Format(time.RFC3339),
		"duration": time.Since(startTime).String(),
	}).Info("[CRON] Purged payment audits")
}

// attentionDigestJob reports payments that needed manual follow-up in the last day
func (s *CronService) attentionDigestJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	since := s.now().Add(-24 * time.Hour)
	count, err := s.audits.CountNeedingAttentionSince(ctx, since)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to build payment attention digest")
		return
	}

	entry := s.logger.WithField("count", count)
	if count > 0 {
		entry.Warn("[CRON] Payments need attention: review /api/v1/admin/payments/attention")
		return
	}
	entry.Info("[CRON] No payments need attention")
}

// RunPurgeNow runs the audit purge immediately
func (s *CronService) RunPurgeNow() {
	s.logger.Info("[MANUAL] Running payment audit purge now")
	s.purgeAuditsJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
