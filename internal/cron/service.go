package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/0111v/projeto-faculdade/pkg/logger"
	"github.com/0111v/projeto-faculdade/pkg/metrics"
)

const defaultInterval = time.Hour

// Job is one maintenance task run on every cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// ServiceParams configure the cron service. Metrics is optional.
type ServiceParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs maintenance jobs on a fixed cadence, one replica at a time.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

// cycleReport summarises one pass over the jobs.
type cycleReport struct {
	skipped bool
	ran     int
	failed  error
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	svc := &Service{
		logg:     params.Logger,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	for _, job := range params.Jobs {
		if job != nil {
			svc.jobs = append(svc.jobs, job)
		}
	}
	return svc, nil
}

// Run executes a cycle immediately and then every interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.logCycle(ctx, s.cycle(ctx))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) logCycle(ctx context.Context, report cycleReport) {
	switch {
	case report.skipped:
		s.logg.Info(ctx, "cron.skipped_locked")
	case report.failed != nil:
		s.logg.Error(s.logg.WithField(ctx, "jobs", report.ran), "cron.cycle_failed", report.failed)
	default:
		s.logg.Debug(s.logg.WithField(ctx, "jobs", report.ran), "cron.cycle_completed")
	}
}

// cycle takes the lease, runs every job regardless of earlier failures and
// releases the lease even when ctx was cancelled mid-cycle.
func (s *Service) cycle(ctx context.Context) cycleReport {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return cycleReport{failed: fmt.Errorf("lock acquire: %w", err)}
	}
	if !locked {
		return cycleReport{skipped: true}
	}

	var report cycleReport
	for _, job := range s.jobs {
		report.ran++
		if err := s.runJob(ctx, job); err != nil {
			report.failed = multierr.Append(report.failed, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}

	if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
		s.logg.Error(ctx, "cron.lock_release_failed", err)
	}
	return report
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	start := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(start)
	s.metrics.Observe(job.Name(), elapsed, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Warn(jobCtx, "cron.job_failed")
		return err
	}
	s.logg.Info(jobCtx, "cron.job_completed")
	return nil
}
