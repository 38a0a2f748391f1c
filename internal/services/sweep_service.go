package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/roadpass/booking-backend/internal/config"
)

// SweepService periodically counts bookings stuck in pending as abandoned.
// The seat-release policy after a failed card attempt is deliberately external
// to the settlement flows; this job is its default implementation. Seats stay
// allocated, only the entitlement is withdrawn.
type SweepService struct {
	bookings BookingStore
	config   config.SweepConfig
	cron     *cron.Cron
	logger   *logrus.Logger
}

// NewSweepService creates a new SweepService
func NewSweepService(bookings BookingStore, cfg config.SweepConfig, logger *logrus.Logger) *SweepService {
	return &SweepService{
		bookings: bookings,
		config:   cfg,
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger,
	}
}

// Start schedules the sweep job
func (s *SweepService) Start() error {
	if !s.config.Enabled {
		s.logger.Info("Pending-booking sweep disabled by configuration")
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, s.sweepPendingBookings); err != nil {
		return fmt.Errorf("failed to schedule pending-booking sweep: %w", err)
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"schedule":        s.config.Schedule,
		"pending_max_age": s.config.PendingMaxAge.String(),
	}).Info("Pending-booking sweep scheduled")

	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *SweepService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce performs a single sweep; used by the scheduler and by tests
func (s *SweepService) RunOnce() (int64, error) {
	cutoff := time.Now().Add(-s.config.PendingMaxAge)
	return s.bookings.MarkAbandonedBefore(cutoff)
}

func (s *SweepService) sweepPendingBookings() {
	marked, err := s.RunOnce()
	if err != nil {
		s.logger.WithError(err).Error("Pending-booking sweep failed")
		return
	}

	if marked > 0 {
		s.logger.WithField("marked_failed", marked).Info("Swept abandoned pending bookings")
	}
}
