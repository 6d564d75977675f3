// Package worker runs a bounded pool of consumers that pull job deliveries
// from the queue and hand each to the pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/nexus/internal/jobs"
	"github.com/JaimeStill/nexus/internal/pipeline"
	"github.com/JaimeStill/nexus/pkg/lifecycle"
	"github.com/JaimeStill/nexus/pkg/queue"
)

const (
	dequeueRetryDelay = time.Second
	requeueDelay      = time.Second
	settleTimeout     = 10 * time.Second
)

// Runner processes one job to a terminal status. Fail records a job the
// runner could not finish in time and removes its artifacts.
type Runner interface {
	Run(ctx context.Context, jobID uuid.UUID, source string) (jobs.Status, error)
	Fail(ctx context.Context, jobID uuid.UUID, reason string) (jobs.Status, error)
}

// System manages the worker pool lifecycle.
type System interface {
	// Start registers hooks that launch the workers on startup and wait for
	// them to drain on shutdown.
	Start(lc *lifecycle.Coordinator) error
}

type pool struct {
	count      int
	jobTimeout time.Duration
	queue      queue.System
	runner     Runner
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// New creates a worker pool. Each worker owns one delivery at a time.
func New(cfg *Config, q queue.System, runner Runner, logger *slog.Logger) System {
	return &pool{
		count:      cfg.Count,
		jobTimeout: cfg.JobTimeoutDuration(),
		queue:      q,
		runner:     runner,
		logger:     logger.With("system", "worker"),
	}
}

func (p *pool) Start(lc *lifecycle.Coordinator) error {
	p.logger.Info("starting worker pool", "count", p.count)

	ctx := lc.Context()

	lc.OnStartup(func() {
		for i := range p.count {
			p.wg.Go(func() { p.work(ctx, i+1) })
		}
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		p.logger.Info("stopping worker pool")
		p.wg.Wait()
		p.logger.Info("worker pool stopped")
	})

	return nil
}

func (p *pool) work(ctx context.Context, id int) {
	logger := p.logger.With("worker", id)
	logger.Debug("worker started")

	for {
		d, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				logger.Debug("worker exiting")
				return
			}

			logger.Error("dequeue failed", "error", err)
			if !wait(ctx, dequeueRetryDelay) {
				return
			}
			continue
		}

		p.handle(ctx, logger, d)
	}
}

func (p *pool) handle(ctx context.Context, logger *slog.Logger, d queue.Delivery) {
	msg := d.Message()
	logger = logger.With("job_id", msg.JobID)

	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	status, err := p.runner.Run(runCtx, msg.JobID, msg.SourceLocation)
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	cancel()

	settleCtx, settleCancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer settleCancel()

	switch {
	case err == nil:
		logger.Info("job finished", "status", status, "duration", time.Since(start))
		p.ack(settleCtx, logger, d)

	case ctx.Err() != nil:
		logger.Warn("job abandoned on shutdown, requeueing", "status", status)
		p.requeue(settleCtx, logger, d)

	case timedOut:
		reason := fmt.Sprintf("job timed out after %s", p.jobTimeout)
		logger.Error("job timed out", "timeout", p.jobTimeout)
		if _, ferr := p.runner.Fail(settleCtx, msg.JobID, reason); ferr != nil {
			logger.Error("record timeout failed", "error", ferr)
			if pipeline.Retryable(ferr) {
				p.requeue(settleCtx, logger, d)
				wait(ctx, requeueDelay)
				return
			}
		}
		p.ack(settleCtx, logger, d)

	case pipeline.Retryable(err):
		logger.Warn("job stage not persisted, requeueing", "status", status, "error", err)
		p.requeue(settleCtx, logger, d)
		wait(ctx, requeueDelay)

	default:
		logger.Error("job run failed", "status", status, "error", err)
		p.ack(settleCtx, logger, d)
	}
}

func (p *pool) requeue(ctx context.Context, logger *slog.Logger, d queue.Delivery) {
	if err := d.Nack(ctx, true); err != nil {
		logger.Error("nack failed", "error", err)
	}
}

func (p *pool) ack(ctx context.Context, logger *slog.Logger, d queue.Delivery) {
	if err := d.Ack(ctx); err != nil {
		logger.Error("ack failed", "error", err)
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
