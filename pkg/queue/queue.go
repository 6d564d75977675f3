// Package queue delivers job messages to workers with at-least-once semantics,
// backed by a Redis reliable list or a RabbitMQ queue.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/nexus/pkg/lifecycle"
)

// Message identifies the job a worker should run and where its source document lives.
type Message struct {
	JobID          uuid.UUID `json:"job_id"`
	SourceLocation string    `json:"source_location"`
}

// Delivery is a dequeued message owned by one worker until it is acked or nacked.
type Delivery interface {
	Message() Message
	// Ack removes the message permanently.
	Ack(ctx context.Context) error
	// Nack releases the message, returning it to the queue when requeue is true.
	Nack(ctx context.Context, requeue bool) error
}

// System publishes and consumes job messages.
type System interface {
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
	// Enqueue publishes a message durably.
	Enqueue(ctx context.Context, msg Message) error
	// Dequeue blocks until a message is available or ctx is done.
	Dequeue(ctx context.Context) (Delivery, error)
}

// New creates a queue system for the configured provider.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "queue", "provider", cfg.Provider)

	switch cfg.Provider {
	case ProviderRedis:
		return newRedis(cfg, logger), nil
	case ProviderAMQP:
		return newAMQP(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown queue provider: %q", cfg.Provider)
	}
}

func encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

func decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if msg.JobID == uuid.Nil {
		return msg, fmt.Errorf("%w: missing job_id", ErrMalformedMessage)
	}
	return msg, nil
}
