package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/JaimeStill/nexus/pkg/storage"
)

// Cleaner removes transient job artifacts on a best-effort basis.
type Cleaner struct {
	storage storage.System
	logger  *slog.Logger
}

// NewCleaner creates a Cleaner over the given storage.
func NewCleaner(store storage.System, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		storage: store,
		logger:  logger.With("system", "cleanup"),
	}
}

// Cleanup deletes every key. Missing blobs are skipped; other failures are
// logged and never returned.
func (c *Cleaner) Cleanup(ctx context.Context, keys []string) {
	seen := make(map[string]struct{}, len(keys))

	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		err := c.storage.Delete(ctx, key)
		switch {
		case err == nil:
			c.logger.DebugContext(ctx, "artifact removed", "key", key)
		case errors.Is(err, storage.ErrNotFound):
		default:
			c.logger.WarnContext(ctx, "artifact cleanup failed", "key", key, "error", err)
		}
	}
}
