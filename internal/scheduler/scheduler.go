// Package scheduler runs the periodic reminder, strike and cleanup jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/logger"
)

type JobFunc func(ctx context.Context) error

type job struct {
	name string
	fn   JobFunc
}

type dailyJob struct {
	job
	at      clock.TimeOfDay
	lastRun string
}

// Scheduler runs interval jobs in registration order on every tick, then
// any daily job whose time of day has passed and that has not run today.
// Ticks never overlap.
type Scheduler struct {
	clock    clock.Clock
	interval time.Duration
	jobs     []job
	daily    []*dailyJob
}

func New(c clock.Clock, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = constants.DefaultCheckInterval
	}
	return &Scheduler{clock: c, interval: interval}
}

func (s *Scheduler) Every(name string, fn JobFunc) {
	s.jobs = append(s.jobs, job{name: name, fn: fn})
}

func (s *Scheduler) Daily(name string, at clock.TimeOfDay, fn JobFunc) {
	s.daily = append(s.daily, &dailyJob{job: job{name: name, fn: fn}, at: at})
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

func run(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return j.fn(ctx)
}

// Tick runs one pass. Job failures are logged and do not stop later jobs.
func (s *Scheduler) Tick(ctx context.Context) {
	for _, j := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		if err := run(ctx, j); err != nil {
			logger.Error("Scheduled job failed", "job", j.name, "error", err)
		}
	}

	now := s.clock.Now()
	today := now.Format(constants.DateFormat)
	for _, d := range s.daily {
		if d.lastRun == today || clock.Of(now) < d.at {
			continue
		}
		d.lastRun = today
		logger.Info("Running daily job", "job", d.name, "date", today)
		if err := run(ctx, d.job); err != nil {
			logger.Error("Daily job failed", "job", d.name, "error", err)
		}
	}
}

// Run ticks immediately and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info("Scheduler started", "interval", s.interval, "jobs", len(s.jobs), "daily_jobs", len(s.daily))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
