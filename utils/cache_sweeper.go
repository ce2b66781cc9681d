package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper deletes durable cache rows under prefix last written before a cutoff.
type Sweeper interface {
	Sweep(ctx context.Context, prefix string, before time.Time) (int64, error)
}

// CacheSweeper periodically drops durable cache rows older than MaxAge.
// SQL storage has no native expiry, so without it stale rows accumulate.
type CacheSweeper struct {
	target    Sweeper
	prefix    string
	maxAge    time.Duration
	now       func() time.Time
	scheduler gocron.Scheduler
}

func NewCacheSweeper(target Sweeper, prefix string, maxAge time.Duration) *CacheSweeper {
	return &CacheSweeper{target: target, prefix: prefix, maxAge: maxAge, now: time.Now}
}

// RunOnce sweeps a single time and returns the number of removed rows.
func (s *CacheSweeper) RunOnce(ctx context.Context) (int64, error) {
	return s.target.Sweep(ctx, s.prefix, s.now().Add(-s.maxAge))
}

// Start schedules the sweep on a standard 5-field cron expression.
func (s *CacheSweeper) Start(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := s.RunOnce(ctx)
			if err != nil {
				Logger.Warn("cache sweep failed", zap.Error(err))
				return
			}
			if n > 0 {
				Logger.Info("cache sweep removed stale rows", zap.Int64("rows", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	s.scheduler = sched
	return nil
}

// Stop halts the schedule; running sweeps finish first.
func (s *CacheSweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}
