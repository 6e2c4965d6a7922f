package cron

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	"github.com/angelmondragon/dailycart-backend/pkg/metrics"
)

const defaultInterval = 15 * time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// CycleBudget caps one cycle. Keep it below the lock TTL so a slow sweep
	// cannot overlap a replica that took the lock after expiry.
	CycleBudget time.Duration
}

// Service drives the pending-order expiry sweep and outbox retention on a
// fixed interval. Only the replica holding the lock runs a cycle.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	budget   time.Duration
}

type cycleResult struct {
	ran     int
	failed  int
	skipped int
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{}
	}
	svc := &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		budget:   params.CycleBudget,
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	return svc, nil
}

// Run starts with an immediate cycle, then ticks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every job once under the lock. A failing job is counted and
// logged but does not stop the jobs after it.
func (s *Service) RunOnce(ctx context.Context) error {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		s.logg.Debug(ctx, "cron lock held elsewhere, skipping cycle")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()

	cycleCtx := ctx
	if s.budget > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, s.budget)
		defer cancel()
	}

	var result cycleResult
	jobs := s.registry.Jobs()
	for i, job := range jobs {
		if err := cycleCtx.Err(); err != nil {
			result.skipped = len(jobs) - i
			s.summarize(ctx, result)
			return err
		}
		result.ran++
		if !s.runJob(cycleCtx, job) {
			result.failed++
		}
	}
	s.summarize(ctx, result)
	return nil
}

func (s *Service) summarize(ctx context.Context, result cycleResult) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"jobs_ran":     result.ran,
		"jobs_failed":  result.failed,
		"jobs_skipped": result.skipped,
	})
	if result.failed > 0 || result.skipped > 0 {
		s.logg.Warn(ctx, "cron cycle finished with problems")
		return
	}
	s.logg.Info(ctx, "cron cycle finished")
}

func (s *Service) runJob(ctx context.Context, job Job) bool {
	name := job.Name()
	jobCtx := s.logg.WithField(ctx, "job", name)

	started := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(started)
	s.metrics.ObserveDuration(name, elapsed)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.metrics.IncFailure(name)
		s.logg.Error(jobCtx, "cron job failed", err)
		return false
	}
	s.metrics.IncSuccess(name)
	s.logg.Info(jobCtx, "cron job succeeded")
	return true
}
