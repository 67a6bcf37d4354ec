/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/perchfin/perch-backend/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.FundingJobSchedule, s.jobs.FundStandardAdvances); err != nil {
		s.logger.Error("failed to schedule standard advance funding job", "error", err)
	} else {
		s.logger.Info("scheduled standard advance funding job", "schedule", s.config.FundingJobSchedule)
	}

	if _, err := s.cron.AddFunc(s.config.OverdueJobSchedule, s.jobs.SweepOverdueAdvances); err != nil {
		s.logger.Error("failed to schedule overdue advance sweep job", "error", err)
	} else {
		s.logger.Info("scheduled overdue advance sweep job", "schedule", s.config.OverdueJobSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
