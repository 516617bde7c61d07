/**
 * @description
 * Cron scheduler for the optional yearly interest job.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/robfig/cron/v3"
)

const interestJobTimeout = 30 * time.Minute

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	service  *Service
	logger   *slog.Logger
	schedule string
	rate     ledger.Percentage
}

// NewScheduler creates a scheduler that applies rate to ICA balances on schedule. An empty
// schedule leaves the scheduler idle.
func NewScheduler(service *Service, logger *slog.Logger, schedule string, rate ledger.Percentage) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)), cron.WithLocation(service.loc))

	return &Scheduler{
		cron:     c,
		service:  service,
		logger:   logger,
		schedule: schedule,
		rate:     rate,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if s.schedule == "" {
		s.logger.Info("interest job disabled")
		return
	}
	if _, err := s.cron.AddFunc(s.schedule, s.ApplyInterest); err != nil {
		s.logger.Error("failed to schedule interest job", "error", err)
		return
	}
	s.logger.Info("scheduled interest job", "schedule", s.schedule, "rate", s.rate.String())
	s.cron.Start()
}

// ApplyInterest credits the current business year. Reruns within the year are no-ops.
func (s *Scheduler) ApplyInterest() {
	ctx, cancel := context.WithTimeout(context.Background(), interestJobTimeout)
	defer cancel()

	credits, err := s.service.ApplyYearlyInterest(ctx, s.rate, 0)
	if err != nil {
		s.logger.Error("interest job failed", "credited", len(credits), "error", err)
		return
	}
	s.logger.Info("interest job finished", "credited", len(credits))
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
