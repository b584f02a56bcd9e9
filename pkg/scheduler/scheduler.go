// Package scheduler drives the collector's periodic background jobs
// (auto-upload, retention) on top of gocron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/server/monitor"
)

// Job is one schedulable unit of background work.
type Job func(ctx context.Context) error

// Scheduler runs named periodic jobs. Jobs never overlap themselves: a run
// that outlasts its interval delays the next tick instead of racing it.
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
}

// New creates a stopped scheduler.
func New(logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

// Add registers a named periodic job. A non-positive interval disables the
// job. Every run gets its own timeout context; the outcome is recorded in
// mon when one is given.
func (s *Scheduler) Add(name string, interval time.Duration, mon *monitor.JobMonitor, job Job) error {
	if interval <= 0 {
		s.logger.Info("job disabled", slog.String("job", name))
		return nil
	}

	_, err := s.scheduler.Every(interval).Tag(name).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.ScheduledJobTimeout)
		defer cancel()

		start := time.Now()
		s.logger.Info("job started", slog.String("job", name))

		if err := job(ctx); err != nil {
			s.logger.Error("job failed",
				slog.String("job", name), slog.String("error", err.Error()))
			if mon != nil {
				mon.RecordFailure(err)
			}
			return
		}

		if mon != nil {
			mon.RecordSuccess()
		}
		s.logger.Info("job finished",
			slog.String("job", name), slog.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", name, err)
	}

	s.logger.Info("job scheduled",
		slog.String("job", name), slog.Duration("interval", interval))
	return nil
}

// Len returns how many jobs are registered.
func (s *Scheduler) Len() int {
	return s.scheduler.Len()
}

// Start launches the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop halts scheduling and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
