package api

import (
	"fmt"

	"github.com/JaimeStill/nexus/internal/config"
	"github.com/JaimeStill/nexus/internal/infrastructure"
	"github.com/JaimeStill/nexus/pkg/pagination"
	"github.com/JaimeStill/nexus/pkg/render"
	"github.com/JaimeStill/nexus/pkg/vision"
)

// Runtime extends Infrastructure with API-specific configuration and
// the clients the processing pipeline depends on.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Converter  render.Converter
	Render     render.Options
	Vision     vision.Client
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) (*Runtime, error) {
	converter, err := render.New(&cfg.Render)
	if err != nil {
		return nil, fmt.Errorf("render init failed: %w", err)
	}

	logger := infra.Logger.With("module", "api")

	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    logger,
			Database:  infra.Database,
			Storage:   infra.Storage,
			Queue:     infra.Queue,
		},
		Pagination: cfg.API.Pagination,
		Converter:  converter,
		Render:     cfg.Render.Options(),
		Vision:     vision.New(&cfg.Vision, logger),
	}, nil
}
