package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/JaimeStill/nexus/pkg/lifecycle"
	"github.com/JaimeStill/nexus/pkg/queue"
)

const (
	pendingKey    = "nexus:jobs"
	processingKey = "nexus:jobs:processing"
)

func newRedisQueue(t *testing.T, mr *miniredis.Miniredis) queue.System {
	t.Helper()

	cfg := queue.Config{Provider: queue.ProviderRedis, Addr: mr.Addr(), BlockTimeout: "1s"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	sys, err := queue.New(&cfg, discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return sys
}

func startRedisQueue(t *testing.T, mr *miniredis.Miniredis) queue.System {
	t.Helper()

	sys := newRedisQueue(t, mr)
	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	lc.WaitForStartup()
	t.Cleanup(func() { lc.Shutdown(time.Second) })

	return sys
}

func items(mr *miniredis.Miniredis, key string) []string {
	l, err := mr.List(key)
	if err != nil {
		return nil
	}
	return l
}

func payload(t *testing.T, msg queue.Message) string {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func dequeue(t *testing.T, sys queue.System) queue.Delivery {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	d, err := sys.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	return d
}

func TestRedisDequeueHoldsMessageUntilAck(t *testing.T) {
	mr := miniredis.RunT(t)
	sys := startRedisQueue(t, mr)
	ctx := context.Background()

	msg := queue.Message{JobID: uuid.New(), SourceLocation: "jobs/a/source.pdf"}
	if err := sys.Enqueue(ctx, msg); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if got := items(mr, pendingKey); len(got) != 1 {
		t.Fatalf("pending = %v, want one entry", got)
	}

	d := dequeue(t, sys)
	if d.Message() != msg {
		t.Errorf("Message() = %+v, want %+v", d.Message(), msg)
	}
	if got := items(mr, pendingKey); len(got) != 0 {
		t.Errorf("pending after dequeue = %v, want empty", got)
	}
	if got := items(mr, processingKey); len(got) != 1 || got[0] != payload(t, msg) {
		t.Errorf("processing after dequeue = %v", got)
	}

	if err := d.Ack(ctx); err != nil {
		t.Fatalf("Ack() error = %v", err)
	}
	if got := items(mr, processingKey); len(got) != 0 {
		t.Errorf("processing after ack = %v, want empty", got)
	}
}

func TestRedisDequeueOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	sys := startRedisQueue(t, mr)
	ctx := context.Background()

	first := queue.Message{JobID: uuid.New()}
	second := queue.Message{JobID: uuid.New()}
	for _, msg := range []queue.Message{first, second} {
		if err := sys.Enqueue(ctx, msg); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	if got := dequeue(t, sys).Message().JobID; got != first.JobID {
		t.Errorf("first dequeue = %s, want %s", got, first.JobID)
	}
	if got := dequeue(t, sys).Message().JobID; got != second.JobID {
		t.Errorf("second dequeue = %s, want %s", got, second.JobID)
	}
}

func TestRedisNack(t *testing.T) {
	tests := []struct {
		name        string
		requeue     bool
		wantPending int
	}{
		{name: "requeue", requeue: true, wantPending: 1},
		{name: "drop", requeue: false, wantPending: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			sys := startRedisQueue(t, mr)
			ctx := context.Background()

			msg := queue.Message{JobID: uuid.New()}
			if err := sys.Enqueue(ctx, msg); err != nil {
				t.Fatalf("Enqueue() error = %v", err)
			}

			d := dequeue(t, sys)
			if err := d.Nack(ctx, tt.requeue); err != nil {
				t.Fatalf("Nack() error = %v", err)
			}

			if got := items(mr, processingKey); len(got) != 0 {
				t.Errorf("processing after nack = %v, want empty", got)
			}
			if got := items(mr, pendingKey); len(got) != tt.wantPending {
				t.Errorf("pending after nack = %v, want %d entries", got, tt.wantPending)
			}

			if tt.requeue {
				if got := dequeue(t, sys).Message().JobID; got != msg.JobID {
					t.Errorf("redelivered = %s, want %s", got, msg.JobID)
				}
			}
		})
	}
}

func TestRedisDropsMalformedMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	sys := startRedisQueue(t, mr)

	valid := queue.Message{JobID: uuid.New()}
	mr.Lpush(pendingKey, "not json")
	mr.Lpush(pendingKey, `{"source_location":"jobs/x/source.pdf"}`)
	mr.Lpush(pendingKey, payload(t, valid))

	d := dequeue(t, sys)
	if d.Message().JobID != valid.JobID {
		t.Errorf("JobID = %s, want %s", d.Message().JobID, valid.JobID)
	}

	got := items(mr, processingKey)
	if len(got) != 1 || got[0] != payload(t, valid) {
		t.Errorf("processing = %v, want only the valid message", got)
	}
}

func TestRedisRecoversOrphansBeforeDequeue(t *testing.T) {
	mr := miniredis.RunT(t)

	orphan := queue.Message{JobID: uuid.New(), SourceLocation: "jobs/o/source.pdf"}
	mr.Lpush(processingKey, payload(t, orphan))

	sys := newRedisQueue(t, mr)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := sys.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Dequeue() before start error = %v, want context.DeadlineExceeded", err)
	}
	if got := items(mr, processingKey); len(got) != 1 {
		t.Fatalf("processing before start = %v, want the orphan left in place", got)
	}

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	lc.WaitForStartup()
	defer lc.Shutdown(time.Second)

	if !lc.Ready() {
		t.Errorf("lifecycle not ready, pending %v", lc.NotReady())
	}

	d := dequeue(t, sys)
	if d.Message() != orphan {
		t.Errorf("Message() = %+v, want %+v", d.Message(), orphan)
	}
	if got := items(mr, pendingKey); len(got) != 0 {
		t.Errorf("pending = %v, want empty", got)
	}
}

func TestRedisClosedAfterShutdown(t *testing.T) {
	mr := miniredis.RunT(t)
	sys := newRedisQueue(t, mr)

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	lc.WaitForStartup()
	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if _, err := sys.Dequeue(context.Background()); !errors.Is(err, queue.ErrClosed) {
		t.Errorf("Dequeue() after shutdown error = %v, want queue.ErrClosed", err)
	}
}
