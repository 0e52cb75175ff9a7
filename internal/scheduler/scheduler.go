package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentbook/internal/audit/domain"
	"github.com/smallbiznis/rentbook/internal/clock"
	obscontext "github.com/smallbiznis/rentbook/internal/observability/context"
	obsmetrics "github.com/smallbiznis/rentbook/internal/observability/metrics"
	tenancydomain "github.com/smallbiznis/rentbook/internal/tenancy/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobAccrueRent = "accrue_rent"

	accrueLockKey = "rentbook:scheduler:accrue_rent"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	TenancySvc tenancydomain.Service
	AuditSvc   auditdomain.Service `optional:"true"`
	Locker     Locker              `optional:"true"`
	Config     Config              `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	tenancySvc tenancydomain.Service
	auditSvc   auditdomain.Service
	locker     Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.TenancySvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		tenancySvc: p.TenancySvc,
		auditSvc:   p.AuditSvc,
		locker:     p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout; the next tick resumes the catch-up.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job once.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobAccrueRent, func(ctx context.Context) error {
			return s.runJob(ctx, JobAccrueRent, s.cfg.BatchSize, s.cfg.JobTimeout, s.AccrueRentJob)
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty list enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// AccrueRentJob inserts rent records that became due since the last run for
// every active tenancy. With a locker configured only one replica proceeds.
func (s *Scheduler) AccrueRentJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobAccrueRent, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	schedMetrics := obsmetrics.Scheduler()

	if s.locker != nil {
		lockStart := time.Now()
		token, acquired, err := s.locker.TryLock(ctx, accrueLockKey, s.cfg.LockTTL)
		schedMetrics.ObserveLockWait(time.Since(lockStart))
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.lock.failed", JobAccrueRent, err)
			return err
		}
		if !acquired {
			schedMetrics.IncBatchDeferred(JobAccrueRent, obsmetrics.SchedulerJobReasonLockHeld)
			s.logger(ctx).Debug("scheduler.lock.held", zap.String("job", JobAccrueRent))
			return nil
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.locker.Release(releaseCtx, accrueLockKey, token); err != nil {
				s.logger(ctx).Warn("scheduler.lock.release_failed", zap.Error(err))
			}
		}()
	}

	asOf := s.clock.Now()
	result, err := s.tenancySvc.AccrueDue(ctx, asOf, s.cfg.BatchSize)
	run.AddProcessed(result.Records)
	schedMetrics.AddBatchProcessed(JobAccrueRent, "tenancies", result.Tenancies)
	schedMetrics.AddBatchProcessed(JobAccrueRent, "rent_records", result.Records)
	s.logAccrual(ctx, asOf, result)

	if result.Records > 0 {
		s.emitAudit(ctx, "rent.accrue", map[string]any{
			"as_of":     asOf.UTC().Format(time.RFC3339),
			"tenancies": result.Tenancies,
			"records":   result.Records,
			"failed":    result.Failed,
		})
	}
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.accrual.failed", JobAccrueRent, err, zap.Int("failed", result.Failed))
		return err
	}
	return nil
}

func (s *Scheduler) emitAudit(ctx context.Context, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actorID := "scheduler"
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeSystem), &actorID, action, "scheduler", nil, metadata); err != nil {
		s.logger(ctx).Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
