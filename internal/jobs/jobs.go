/**
 * @description
 * Scheduled job implementations for the Perch backend: funding
 * standard-speed advances once their delay has elapsed, and sweeping funded
 * advances past their repayment date into overdue status.
 */
package jobs

import (
	"context"
	"log/slog"
)

// AdvanceLifecycle defines the service operations the scheduled jobs need.
type AdvanceLifecycle interface {
	FundApprovedAdvances(ctx context.Context) (int, error)
	SweepOverdueAdvances(ctx context.Context) (int64, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	service AdvanceLifecycle
	logger  *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(service AdvanceLifecycle, logger *slog.Logger) *Jobs {
	return &Jobs{
		service: service,
		logger:  logger,
	}
}

// FundStandardAdvances funds approved standard-speed advances whose funding
// delay has elapsed.
func (j *Jobs) FundStandardAdvances() {
	j.logger.Info("starting standard advance funding job")
	ctx := context.Background()

	funded, err := j.service.FundApprovedAdvances(ctx)
	if err != nil {
		j.logger.Error("standard advance funding job failed", "error", err)
		return
	}

	j.logger.Info("standard advance funding job finished", "funded", funded)
}

// SweepOverdueAdvances marks funded advances past their repayment date as
// overdue.
func (j *Jobs) SweepOverdueAdvances() {
	j.logger.Info("starting overdue advance sweep job")
	ctx := context.Background()

	marked, err := j.service.SweepOverdueAdvances(ctx)
	if err != nil {
		j.logger.Error("overdue advance sweep job failed", "error", err)
		return
	}

	j.logger.Info("overdue advance sweep job finished", "marked_overdue", marked)
}
