package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/JaimeStill/nexus/pkg/lifecycle"
)

// amqpChannel is the part of *amqp.Channel used after connect.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// amqpQueue consumes a durable RabbitMQ queue with manual acknowledgement.
// The connection is opened by the startup hook; Enqueue and Dequeue wait for it.
type amqpQueue struct {
	url      string
	name     string
	prefetch int
	logger   *slog.Logger

	ready      chan struct{}
	connErr    error
	conn       *amqp.Connection
	channel    amqpChannel
	deliveries <-chan amqp.Delivery
	publishMu  sync.Mutex
}

func newAMQP(cfg *Config, logger *slog.Logger) *amqpQueue {
	return &amqpQueue{
		url:      cfg.URL,
		name:     cfg.Name,
		prefetch: cfg.Prefetch,
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

func (q *amqpQueue) Start(lc *lifecycle.Coordinator) error {
	q.logger.Info("starting queue system", "queue", q.name)
	lc.Track("queue", q)

	lc.OnStartup(func() {
		q.connErr = q.connect()
		close(q.ready)

		if q.connErr != nil {
			q.logger.Error("queue connection failed", "error", q.connErr)
			return
		}

		q.logger.Info("queue ready")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		<-q.ready
		if q.conn == nil {
			return
		}

		q.logger.Info("closing queue connection")
		if err := q.channel.Close(); err != nil {
			q.logger.Error("queue channel close failed", "error", err)
		}
		if err := q.conn.Close(); err != nil {
			q.logger.Error("queue close failed", "error", err)
			return
		}
		q.logger.Info("queue connection closed")
	})

	return nil
}

// Ready reports whether the startup connection succeeded.
func (q *amqpQueue) Ready() bool {
	select {
	case <-q.ready:
		return q.connErr == nil
	default:
		return false
	}
}

func (q *amqpQueue) connect() error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := channel.Qos(q.prefetch, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("set prefetch: %w", err)
	}

	if _, err := channel.QueueDeclare(q.name, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("declare queue %s: %w", q.name, err)
	}

	deliveries, err := channel.Consume(q.name, "", false, false, false, false, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("consume queue %s: %w", q.name, err)
	}

	q.conn = conn
	q.channel = channel
	q.deliveries = deliveries
	return nil
}

func (q *amqpQueue) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.ready:
		return q.connErr
	}
}

func (q *amqpQueue) Enqueue(ctx context.Context, msg Message) error {
	if err := q.wait(ctx); err != nil {
		return err
	}

	data, err := encode(msg)
	if err != nil {
		return err
	}

	q.publishMu.Lock()
	defer q.publishMu.Unlock()

	err = q.channel.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", msg.JobID, err)
	}

	return nil
}

func (q *amqpQueue) Dequeue(ctx context.Context) (Delivery, error) {
	if err := q.wait(ctx); err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case d, ok := <-q.deliveries:
			if !ok {
				return nil, ErrClosed
			}

			msg, err := decode(d.Body)
			if err != nil {
				q.logger.Error("dropping malformed message", "error", err)
				if nackErr := d.Nack(false, false); nackErr != nil {
					q.logger.Error("reject malformed message failed", "error", nackErr)
				}
				continue
			}

			return &amqpDelivery{delivery: d, msg: msg}, nil
		}
	}
}

type amqpDelivery struct {
	delivery amqp.Delivery
	msg      Message
}

func (d *amqpDelivery) Message() Message {
	return d.msg
}

func (d *amqpDelivery) Ack(context.Context) error {
	if err := d.delivery.Ack(false); err != nil {
		return fmt.Errorf("ack job %s: %w", d.msg.JobID, err)
	}
	return nil
}

func (d *amqpDelivery) Nack(_ context.Context, requeue bool) error {
	if err := d.delivery.Nack(false, requeue); err != nil {
		return fmt.Errorf("nack job %s: %w", d.msg.JobID, err)
	}
	return nil
}
