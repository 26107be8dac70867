package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const defaultTick = time.Minute

// LockFactory returns the lock guarding one job.
type LockFactory func(job string) (Lock, error)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger  *logger.Logger
	Entries []Entry
	Locks   LockFactory
	Metrics *metrics.CronJobMetrics
	Tick    time.Duration
	Now     func() time.Time
}

// Service runs each registered job on its own cadence. Jobs are locked
// individually so several workers can share the load.
type Service struct {
	logg     *logger.Logger
	schedule *schedule
	locks    LockFactory
	metrics  *metrics.CronJobMetrics
	tick     time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		schedule: newSchedule(params.Entries),
		locks:    params.Locks,
		metrics:  params.Metrics,
		tick:     tick,
		now:      now,
	}, nil
}

// Run checks for due jobs every tick until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.runDue(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron worker stopping")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Service) runDue(ctx context.Context) {
	for _, entry := range s.schedule.due(s.now()) {
		if ctx.Err() != nil {
			return
		}
		s.runLocked(ctx, entry.Job)
	}
}

func (s *Service) runLocked(ctx context.Context, job Job) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	lock, err := s.locks(job.Name())
	if err != nil {
		s.logg.Error(jobCtx, "build job lock", err)
		s.metrics.Failed(job.Name())
		return
	}
	locked, err := lock.Acquire(ctx)
	if err != nil {
		s.logg.Error(jobCtx, "acquire job lock", err)
		s.metrics.Failed(job.Name())
		return
	}
	if !locked {
		s.logg.Debug(jobCtx, "job held by another worker")
		s.metrics.Skipped(job.Name())
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			s.logg.Error(jobCtx, "release job lock", err)
		}
	}()

	start := time.Now()
	err = job.Run(jobCtx)
	elapsed := time.Since(start)
	s.metrics.Finished(job.Name(), elapsed, err)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.logg.Info(jobCtx, "job completed")
}
