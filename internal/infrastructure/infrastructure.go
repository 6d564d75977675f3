// Package infrastructure builds the shared systems the server runs on.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/nexus/internal/config"
	"github.com/JaimeStill/nexus/pkg/database"
	"github.com/JaimeStill/nexus/pkg/lifecycle"
	"github.com/JaimeStill/nexus/pkg/queue"
	"github.com/JaimeStill/nexus/pkg/storage"
)

// Infrastructure holds the systems shared by the API and the workers.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Queue     queue.System
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := cfg.Log.NewLogger(os.Stderr)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	q, err := queue.New(&cfg.Queue, logger)
	if err != nil {
		return nil, fmt.Errorf("queue init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Queue:     q,
	}, nil
}

// Start registers each system's lifecycle hooks in dependency order.
func (i *Infrastructure) Start() error {
	systems := []struct {
		name string
		sys  interface {
			Start(*lifecycle.Coordinator) error
		}
	}{
		{"database", i.Database},
		{"storage", i.Storage},
		{"queue", i.Queue},
	}

	for _, s := range systems {
		if err := s.sys.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("%s start failed: %w", s.name, err)
		}
	}
	return nil
}
