// Package worker runs the engine's background jobs and serves its
// operational HTTP endpoints.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"newsdeck/internal/pkg/config"
)

// PruneFunc removes interactions older than days and returns how many it removed.
type PruneFunc func(ctx context.Context, days int) int

// RetentionJob prunes the interaction ledger on a cron schedule.
type RetentionJob struct {
	schedule string
	days     int
	timeout  time.Duration
	prune    PruneFunc
	metrics  *JobMetrics
	logger   *slog.Logger
}

// NewRetentionJob creates a job keeping days of interactions. metrics may be nil.
func NewRetentionJob(schedule string, days int, prune PruneFunc, metrics *JobMetrics, logger *slog.Logger) *RetentionJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionJob{
		schedule: schedule,
		days:     days,
		timeout:  time.Minute,
		prune:    prune,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run executes one pruning pass and returns how many interactions were removed.
func (j *RetentionJob) Run(ctx context.Context) int {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	removed := j.prune(ctx, j.days)
	status := "success"
	if ctx.Err() != nil {
		status = "failure"
	}

	if j.metrics != nil {
		j.metrics.RecordJobRun(status)
		j.metrics.RecordJobDuration(time.Since(start).Seconds())
		j.metrics.RecordPruned(removed)
		if status == "success" {
			j.metrics.RecordLastSuccess()
		}
	}
	j.logger.Info("retention job completed",
		slog.String("status", status),
		slog.Int("removed", removed),
		slog.Int("days_kept", j.days),
		slog.Duration("duration", time.Since(start)))
	return removed
}

// Start schedules the job and starts the cron runner. Stop the returned
// runner on shutdown.
func (j *RetentionJob) Start(ctx context.Context) (*cron.Cron, error) {
	if err := config.ValidateCronSchedule(j.schedule); err != nil {
		return nil, fmt.Errorf("retention job: %w", err)
	}
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(j.schedule, func() { j.Run(ctx) }); err != nil {
		return nil, fmt.Errorf("retention job: %w", err)
	}
	c.Start()
	j.logger.Info("retention job scheduled",
		slog.String("schedule", j.schedule),
		slog.Int("days_kept", j.days))
	return c, nil
}
