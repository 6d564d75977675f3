package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/nexus/pkg/lifecycle"
)

// redisQueue is a reliable list queue: producers LPUSH onto the pending list and
// consumers atomically BLMOVE the oldest entry onto a processing list, where it
// stays until acked. Entries left in processing by a crashed worker are moved
// back to pending on startup, and Dequeue waits until that sweep has run so a
// fresh delivery is never swept back while a worker holds it.
type redisQueue struct {
	client       *redis.Client
	pending      string
	processing   string
	blockTimeout time.Duration
	ready        chan struct{}
	healthy      atomic.Bool
	logger       *slog.Logger
}

func newRedis(cfg *Config, logger *slog.Logger) *redisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &redisQueue{
		client:       client,
		pending:      cfg.Name,
		processing:   cfg.Name + ":processing",
		blockTimeout: cfg.BlockTimeoutDuration(),
		ready:        make(chan struct{}),
		logger:       logger,
	}
}

func (q *redisQueue) Start(lc *lifecycle.Coordinator) error {
	q.logger.Info("starting queue system", "queue", q.pending)
	lc.Track("queue", q)

	lc.OnStartup(func() {
		defer close(q.ready)
		ctx := lc.Context()

		if err := q.client.Ping(ctx).Err(); err != nil {
			q.logger.Error("queue ping failed", "error", err)
			return
		}

		recovered, err := q.recover(ctx)
		if err != nil {
			q.logger.Error("queue recovery failed", "error", err)
			return
		}

		q.healthy.Store(true)
		q.logger.Info("queue ready", "recovered", recovered)
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		q.healthy.Store(false)
		q.logger.Info("closing queue connection")

		if err := q.client.Close(); err != nil {
			q.logger.Error("queue close failed", "error", err)
			return
		}

		q.logger.Info("queue connection closed")
	})

	return nil
}

// Ready reports whether the startup ping and orphan recovery succeeded.
func (q *redisQueue) Ready() bool {
	return q.healthy.Load()
}

func (q *redisQueue) Enqueue(ctx context.Context, msg Message) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}

	if err := q.client.LPush(ctx, q.pending, data).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", msg.JobID, err)
	}

	return nil
}

func (q *redisQueue) Dequeue(ctx context.Context) (Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.ready:
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		payload, err := q.client.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", q.blockTimeout).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, redis.ErrClosed) {
				return nil, ErrClosed
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("dequeue: %w", err)
		}

		msg, err := decode([]byte(payload))
		if err != nil {
			q.logger.Error("dropping malformed message", "payload", payload, "error", err)
			if remErr := q.client.LRem(ctx, q.processing, 1, payload).Err(); remErr != nil {
				q.logger.Error("remove malformed message failed", "error", remErr)
			}
			continue
		}

		return &redisDelivery{queue: q, payload: payload, msg: msg}, nil
	}
}

func (q *redisQueue) recover(ctx context.Context) (int, error) {
	count := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.pending, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		count++
	}
}

type redisDelivery struct {
	queue   *redisQueue
	payload string
	msg     Message
}

func (d *redisDelivery) Message() Message {
	return d.msg
}

func (d *redisDelivery) Ack(ctx context.Context) error {
	if err := d.queue.client.LRem(ctx, d.queue.processing, 1, d.payload).Err(); err != nil {
		return fmt.Errorf("ack job %s: %w", d.msg.JobID, err)
	}
	return nil
}

func (d *redisDelivery) Nack(ctx context.Context, requeue bool) error {
	_, err := d.queue.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, d.queue.processing, 1, d.payload)
		if requeue {
			pipe.RPush(ctx, d.queue.pending, d.payload)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("nack job %s: %w", d.msg.JobID, err)
	}
	return nil
}
