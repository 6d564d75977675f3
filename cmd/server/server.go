package main

import (
	"fmt"
	"time"

	"github.com/JaimeStill/nexus/internal/config"
	"github.com/JaimeStill/nexus/internal/infrastructure"
)

// Server owns the infrastructure, the mounted modules and the HTTP listener.
type Server struct {
	infra   *infrastructure.Infrastructure
	modules *Modules
	http    *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("infrastructure: %w", err)
	}

	modules, err := NewModules(infra, cfg)
	if err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}

	router := buildRouter(infra)
	modules.Mount(router)

	return &Server{
		infra:   infra,
		modules: modules,
		http:    newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

// Start brings up infrastructure, then workers, then the listener. Startup
// hooks finish in the background; /readyz reports what is still pending.
func (s *Server) Start() error {
	lc := s.infra.Lifecycle

	steps := []struct {
		name  string
		start func() error
	}{
		{"infrastructure", s.infra.Start},
		{"workers", func() error { return s.modules.Workers.Start(lc) }},
		{"http", func() error { return s.http.Start(lc) }},
	}
	for _, step := range steps {
		if err := step.start(); err != nil {
			return fmt.Errorf("start %s: %w", step.name, err)
		}
	}

	go func() {
		lc.WaitForStartup()
		if pending := lc.NotReady(); len(pending) > 0 {
			s.infra.Logger.Warn("startup finished with systems not ready", "pending", pending)
			return
		}
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown", "timeout", timeout)
	return s.infra.Lifecycle.Shutdown(timeout)
}
