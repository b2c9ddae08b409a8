package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.JobMetrics
	Interval time.Duration
}

// Service executes registered cron jobs on a fixed cadence.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.JobMetrics
	interval time.Duration
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run starts the cron loop until the context is canceled. The first cycle
// runs immediately.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"interval": s.interval.String(),
		"jobs":     s.registry.Names(),
	}), "cron.service.started")
	if _, err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// CycleResult reports one pass over the registry.
type CycleResult struct {
	RunID   string
	Skipped bool
	Ran     []string
	Failed  []string
}

// RunOnce runs every job once under the distributed lock. Job failures are
// recorded on the result and do not stop later jobs; the returned error only
// covers lock handling.
func (s *Service) RunOnce(ctx context.Context, names ...string) (*CycleResult, error) {
	jobs, err := s.selectJobs(names)
	if err != nil {
		return nil, err
	}
	result := &CycleResult{RunID: uuid.NewString()}
	ctx = s.logg.WithField(ctx, "cron_run_id", result.RunID)

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		result.Skipped = true
		return result, nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(ctx, "scheduled run starting")
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if err := s.runJob(ctx, job); err != nil {
			result.Failed = append(result.Failed, job.Name())
			continue
		}
		result.Ran = append(result.Ran, job.Name())
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"ran":    len(result.Ran),
		"failed": len(result.Failed),
	}), "scheduled run complete")
	return result, nil
}

func (s *Service) selectJobs(names []string) ([]Job, error) {
	if len(names) == 0 {
		return s.registry.Jobs(), nil
	}
	var (
		jobs []Job
		errs error
	)
	for _, name := range names {
		job, ok := s.registry.Lookup(name)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("unknown job %q", name))
			continue
		}
		jobs = append(jobs, job)
	}
	if errs != nil {
		return nil, errs
	}
	return jobs, nil
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
		duration := time.Since(start)
		s.metrics.Observe(job.Name(), duration, err)
		jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
		if err != nil {
			s.logg.Error(jobCtx, "job failed", err)
			return
		}
		s.logg.Info(jobCtx, "job completed")
	}()
	return job.Run(jobCtx)
}
