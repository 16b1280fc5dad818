package usecase

import (
	"context"
	"log/slog"
	"time"

	"StationScraper/internal/ports"
)

// Scheduler wires the cron driver with the batch use case.
type Scheduler struct {
	driver ports.Scheduler
	batch  *Batch
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring batch runs.
func NewScheduler(driver ports.Scheduler, batch *Batch, log *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, batch: batch, logger: log}
}

// Start registers the batch with the provided scheduler. A failed run is
// logged and the next tick tries again.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.batch == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if _, err := s.batch.Run(ctx); err != nil && s.logger != nil {
			s.logger.Error("scheduled batch failed", "trigger", trigger.Format(time.RFC3339), "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
