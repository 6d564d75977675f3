// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/nexus/internal/config"
	"github.com/JaimeStill/nexus/pkg/middleware"
	"github.com/JaimeStill/nexus/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, runtime *Runtime, domain *Domain) *module.Module {
	mux := http.NewServeMux()
	patterns := registerRoutes(mux, domain, cfg)
	runtime.Logger.Debug("api routes registered", "base_path", cfg.API.BasePath, "routes", patterns)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(
		middleware.RequestID,
		middleware.CORS(&cfg.API.CORS),
		middleware.Logger(runtime.Logger),
	)

	return m
}
