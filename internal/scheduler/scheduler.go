package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lgndcraft2/giving-tree/internal/clock"
	obsmetrics "github.com/lgndcraft2/giving-tree/internal/observability/metrics"
	paymentdomain "github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobLedgerReplay = "ledger_replay"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log      *zap.Logger
	Payments paymentdomain.Service
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   Config `optional:"true"`
}

// Scheduler runs background jobs on a fixed interval. Today that is the
// ledger replay, which finishes payments whose wish total was not updated.
type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	payments paymentdomain.Service
	jobs     *obsmetrics.JobMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Payments == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler"),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		payments: p.Payments,
		jobs:     obsmetrics.Jobs(),
	}, nil
}

// runJob bounds fn by timeout. A timeout is logged and counted but not
// returned, so one slow run does not stop the loop.
func (s *Scheduler) runJob(parent context.Context, name string, batchSize int, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	s.jobs.IncJobRun(name)

	err := fn(ctx)
	s.jobs.ObserveJobDuration(name, time.Since(start))
	if err != nil {
		run.IncError()
		s.jobs.IncJobError(name, err)
	}
	if owner {
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, JobLedgerReplay, s.cfg.BatchSize, s.cfg.JobTimeout, s.LedgerReplayJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if lag := s.clock.Now().Sub(nextRun); lag > 0 {
			s.jobs.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)
	}
}

// LedgerReplayJob drains unapplied payments one batch at a time until a
// batch applies nothing.
func (s *Scheduler) LedgerReplayJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		applied, err := s.payments.ReplayUnapplied(ctx, s.cfg.BatchSize)
		run.AddProcessed(applied)
		s.jobs.AddBatchProcessed(JobLedgerReplay, "payments", applied)
		if err != nil {
			return err
		}
		if applied < s.cfg.BatchSize {
			return nil
		}
	}
}
