package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/nexus/internal/jobs"
	"github.com/JaimeStill/nexus/internal/pipeline"
	"github.com/JaimeStill/nexus/internal/worker"
	"github.com/JaimeStill/nexus/pkg/lifecycle"
	"github.com/JaimeStill/nexus/pkg/queue"
)

type outcome struct {
	acked   bool
	nacked  bool
	requeue bool
}

type fakeDelivery struct {
	msg  queue.Message
	done chan outcome
}

func (d *fakeDelivery) Message() queue.Message { return d.msg }

func (d *fakeDelivery) Ack(context.Context) error {
	d.done <- outcome{acked: true}
	return nil
}

func (d *fakeDelivery) Nack(_ context.Context, requeue bool) error {
	d.done <- outcome{nacked: true, requeue: requeue}
	return nil
}

type fakeQueue struct {
	ch chan queue.Delivery
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{ch: make(chan queue.Delivery, 8)}
}

func (q *fakeQueue) Start(*lifecycle.Coordinator) error { return nil }

func (q *fakeQueue) Enqueue(context.Context, queue.Message) error { return nil }

func (q *fakeQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case d := <-q.ch:
		return d, nil
	}
}

func (q *fakeQueue) push(msg queue.Message) *fakeDelivery {
	d := &fakeDelivery{msg: msg, done: make(chan outcome, 1)}
	q.ch <- d
	return d
}

type fakeRunner struct {
	fn     func(ctx context.Context, id uuid.UUID) (jobs.Status, error)
	failFn func(ctx context.Context, id uuid.UUID, reason string) (jobs.Status, error)

	mu    sync.Mutex
	fails map[uuid.UUID]string
}

func (r *fakeRunner) Run(ctx context.Context, id uuid.UUID, _ string) (jobs.Status, error) {
	return r.fn(ctx, id)
}

func (r *fakeRunner) Fail(ctx context.Context, id uuid.UUID, reason string) (jobs.Status, error) {
	r.mu.Lock()
	if r.fails == nil {
		r.fails = make(map[uuid.UUID]string)
	}
	r.fails[id] = reason
	r.mu.Unlock()

	if r.failFn != nil {
		return r.failFn(ctx, id, reason)
	}
	return jobs.StatusFailed, nil
}

func (r *fakeRunner) failReason(id uuid.UUID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reason, ok := r.fails[id]
	return reason, ok
}

func storeDown() error {
	return fmt.Errorf("%w: converted: %w", pipeline.ErrPersistence, errors.New("connection refused"))
}

func startPool(t *testing.T, cfg *worker.Config, q queue.System, runner worker.Runner) *lifecycle.Coordinator {
	t.Helper()

	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lc := lifecycle.New()

	p := worker.New(cfg, q, runner, logger)
	if err := p.Start(lc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	lc.WaitForStartup()

	return lc
}

func awaitOutcome(t *testing.T, d *fakeDelivery) outcome {
	t.Helper()
	select {
	case o := <-d.done:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery to settle")
		return outcome{}
	}
}

func TestPoolAcksFinishedJobs(t *testing.T) {
	tests := []struct {
		name   string
		status jobs.Status
		err    error
	}{
		{name: "success", status: jobs.StatusSuccess},
		{name: "failed job", status: jobs.StatusFailed},
		{name: "run error", err: errors.New("job not runnable")},
		{
			name: "diverged",
			err:  fmt.Errorf("%w: processing: %w", pipeline.ErrPersistence, pipeline.ErrDiverged),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newFakeQueue()
			runner := &fakeRunner{
				fn: func(context.Context, uuid.UUID) (jobs.Status, error) {
					return tt.status, tt.err
				},
			}

			lc := startPool(t, &worker.Config{Count: 1}, q, runner)
			defer lc.Shutdown(time.Second)

			d := q.push(queue.Message{JobID: uuid.New(), SourceLocation: "jobs/x/source/a.pdf"})

			if o := awaitOutcome(t, d); !o.acked {
				t.Errorf("outcome = %+v, want ack", o)
			}
		})
	}
}

func TestPoolPassesMessageToRunner(t *testing.T) {
	q := newFakeQueue()
	id := uuid.New()

	got := make(chan uuid.UUID, 1)
	runner := &fakeRunner{
		fn: func(_ context.Context, jobID uuid.UUID) (jobs.Status, error) {
			got <- jobID
			return jobs.StatusSuccess, nil
		},
	}

	lc := startPool(t, &worker.Config{Count: 2}, q, runner)
	defer lc.Shutdown(time.Second)

	d := q.push(queue.Message{JobID: id})
	awaitOutcome(t, d)

	if jobID := <-got; jobID != id {
		t.Errorf("runner job id = %v, want %v", jobID, id)
	}
}

func TestPoolRequeuesOnShutdown(t *testing.T) {
	q := newFakeQueue()
	started := make(chan struct{})

	runner := &fakeRunner{
		fn: func(ctx context.Context, _ uuid.UUID) (jobs.Status, error) {
			close(started)
			<-ctx.Done()
			return jobs.StatusConverted, ctx.Err()
		},
	}

	lc := startPool(t, &worker.Config{Count: 1}, q, runner)

	d := q.push(queue.Message{JobID: uuid.New()})
	<-started

	if err := lc.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	o := awaitOutcome(t, d)
	if !o.nacked || !o.requeue {
		t.Errorf("outcome = %+v, want nack with requeue", o)
	}
}

func TestPoolFailsTimedOutJob(t *testing.T) {
	tests := []struct {
		name        string
		failErr     error
		wantRequeue bool
	}{
		{name: "recorded"},
		{name: "store unavailable", failErr: storeDown(), wantRequeue: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newFakeQueue()
			runner := &fakeRunner{
				fn: func(ctx context.Context, _ uuid.UUID) (jobs.Status, error) {
					<-ctx.Done()
					return jobs.StatusProcessing, ctx.Err()
				},
				failFn: func(context.Context, uuid.UUID, string) (jobs.Status, error) {
					if tt.failErr != nil {
						return jobs.StatusProcessing, tt.failErr
					}
					return jobs.StatusFailed, nil
				},
			}

			lc := startPool(t, &worker.Config{Count: 1, JobTimeout: "20ms"}, q, runner)
			defer lc.Shutdown(time.Second)

			id := uuid.New()
			d := q.push(queue.Message{JobID: id})

			o := awaitOutcome(t, d)
			if tt.wantRequeue {
				if !o.nacked || !o.requeue {
					t.Errorf("outcome = %+v, want nack with requeue", o)
				}
			} else if !o.acked {
				t.Errorf("outcome = %+v, want ack", o)
			}

			reason, ok := runner.failReason(id)
			if !ok {
				t.Fatal("expected the timed out job to be failed")
			}
			if reason != "job timed out after 20ms" {
				t.Errorf("reason = %q", reason)
			}
		})
	}
}

func TestPoolRequeuesUnpersistedStage(t *testing.T) {
	q := newFakeQueue()
	runner := &fakeRunner{
		fn: func(context.Context, uuid.UUID) (jobs.Status, error) {
			return jobs.StatusQueued, storeDown()
		},
	}

	lc := startPool(t, &worker.Config{Count: 1}, q, runner)
	defer lc.Shutdown(time.Second)

	d := q.push(queue.Message{JobID: uuid.New()})

	o := awaitOutcome(t, d)
	if !o.nacked || !o.requeue {
		t.Errorf("outcome = %+v, want nack with requeue", o)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	q := newFakeQueue()

	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)

	runner := &fakeRunner{
		fn: func(context.Context, uuid.UUID) (jobs.Status, error) {
			mu.Lock()
			inFlight++
			peak = max(peak, inFlight)
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return jobs.StatusSuccess, nil
		},
	}

	lc := startPool(t, &worker.Config{Count: 2}, q, runner)
	defer lc.Shutdown(time.Second)

	var deliveries []*fakeDelivery
	for range 6 {
		deliveries = append(deliveries, q.push(queue.Message{JobID: uuid.New()}))
	}
	for _, d := range deliveries {
		awaitOutcome(t, d)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestConfigFinalize(t *testing.T) {
	cfg := &worker.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if cfg.Count != 2 {
		t.Errorf("Count = %d, want 2", cfg.Count)
	}
	if cfg.JobTimeoutDuration() != 15*time.Minute {
		t.Errorf("JobTimeout = %v, want 15m", cfg.JobTimeoutDuration())
	}

	t.Setenv("TEST_WORKER_COUNT", "4")
	env := &worker.Env{Count: "TEST_WORKER_COUNT"}
	cfg = &worker.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if cfg.Count != 4 {
		t.Errorf("Count = %d, want 4", cfg.Count)
	}

	bad := &worker.Config{Count: -1}
	if err := bad.Finalize(nil); err == nil {
		t.Error("Finalize() expected error for negative count")
	}
}
