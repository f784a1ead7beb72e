// Package dailysched drives the retrain pipeline on a strict daily
// schedule, adapting the teacher's ticker-loop reaper idiom to cron
// parsing instead of heartbeat-timeout polling.
package dailysched

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pjsousa/jobato-ml/internal/metrics"
	"github.com/pjsousa/jobato-ml/internal/retrain"
)

const pollInterval = 30 * time.Second

// triggeredBySchedule is recorded on the retrain job so it's
// distinguishable from a manually triggered retrain.
const triggeredBySchedule = "schedule"

// Scheduler fires RunOnce once per day at the configured local time,
// parsed strictly as "M H * * *" (no ranges, steps, or lists).
type Scheduler struct {
	schedule cron.Schedule
	zone     *time.Location
	pipeline *retrain.Pipeline
	logger   *slog.Logger

	nextRunAt time.Time
	done      chan struct{}
}

// New parses expr strictly as minute-hour-day-month-weekday with
// single numeric fields only (e.g. "30 3 * * *"), rejecting any other
// cron form.
func New(expr string, zone *time.Location, pipeline *retrain.Pipeline, logger *slog.Logger) (*Scheduler, error) {
	if err := validateStrictDailyForm(expr); err != nil {
		return nil, err
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("dailysched: parse schedule %q: %w", expr, err)
	}
	return &Scheduler{
		schedule: schedule,
		zone:     zone,
		pipeline: pipeline,
		logger:   logger.With("component", "daily_scheduler"),
		done:     make(chan struct{}),
	}, nil
}

// validateStrictDailyForm rejects any cron expression except a
// literal "M H * * *" — no ranges, lists, steps, or named fields,
// matching the spec's Daily Scheduler invariant.
func validateStrictDailyForm(expr string) error {
	var minute, hour, rest string
	n, err := fmt.Sscanf(expr, "%s %s %s", &minute, &hour, &rest)
	if err != nil || n != 3 {
		return fmt.Errorf("dailysched: schedule must be \"M H * * *\", got %q", expr)
	}
	for _, ch := range minute + hour {
		if ch < '0' || ch > '9' {
			return fmt.Errorf("dailysched: minute/hour must be plain integers, got %q", expr)
		}
	}
	remainder := expr[len(minute)+1+len(hour)+1:]
	if remainder != "* * *" {
		return fmt.Errorf("dailysched: day/month/weekday fields must be \"* * *\", got %q", expr)
	}
	return nil
}

// Start blocks, polling every 30s and firing RunOnce when the
// schedule's next occurrence (in the configured timezone) has passed.
func (s *Scheduler) Start(ctx context.Context) {
	now := time.Now().In(s.zone)
	s.nextRunAt = s.schedule.Next(now)
	s.logger.Info("daily_scheduler.started", "next_run_at", s.nextRunAt)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("daily_scheduler.shutdown")
			close(s.done)
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop waits up to 1s for the run loop to observe context
// cancellation, matching the teacher's reaper shutdown grace period.
func (s *Scheduler) Stop() {
	select {
	case <-s.done:
	case <-time.After(time.Second):
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().In(s.zone)
	if now.Before(s.nextRunAt) {
		return
	}

	started := time.Now()
	job, err := s.pipeline.RunOnce(ctx, triggeredBySchedule)
	if err != nil {
		s.logger.Error("daily_scheduler.retrain_failed", "error", err)
	} else {
		s.logger.Info("daily_scheduler.retrain_finished", "status", job.Status, "new_version", job.NewVersion)
	}
	metrics.SchedulerCycleDuration.Observe(time.Since(started).Seconds())

	s.nextRunAt = s.schedule.Next(now)
	s.logger.Info("daily_scheduler.next_run_scheduled", "next_run_at", s.nextRunAt)
}
