package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"StationScraper/internal/ports"
	"StationScraper/pkg/logger"
)

// CronScheduler triggers a job on a five-field cron expression in a fixed timezone.
type CronScheduler struct {
	expr       string
	location   *time.Location
	runOnStart bool
	logger     *logger.CronLogger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler for expr evaluated in loc (UTC when nil).
func NewCronScheduler(expr string, loc *time.Location, runOnStart bool, log *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{
		expr:       expr,
		location:   loc,
		runOnStart: runOnStart,
		logger:     logger.New(log, "scheduler.cron"),
	}
}

// Start registers job and begins ticking. Calling Start twice is a no-op.
// Jobs may overlap when a run outlasts the interval; each run is independent.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	// Scheduled ticks and the run-on-start trigger share one recovery chain.
	wrapped := cron.NewChain(cron.Recover(c.logger)).Then(cron.FuncJob(func() {
		job(time.Now().In(c.location))
	}))

	runner := cron.New(
		cron.WithLocation(c.location),
		cron.WithLogger(c.logger),
	)
	if _, err := runner.AddJob(c.expr, wrapped); err != nil {
		return fmt.Errorf("parse cron expression %q: %w", c.expr, err)
	}

	runner.Start()
	c.cron = runner

	if c.runOnStart {
		go wrapped.Run()
	}

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop halts scheduling and waits for running jobs until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	select {
	case <-runner.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
