package main

import (
	"encoding/json"
	"net/http"

	"github.com/JaimeStill/nexus/internal/api"
	"github.com/JaimeStill/nexus/internal/config"
	"github.com/JaimeStill/nexus/internal/infrastructure"
	"github.com/JaimeStill/nexus/internal/worker"
	"github.com/JaimeStill/nexus/pkg/module"
)

type Modules struct {
	API     *module.Module
	Workers worker.System
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	runtime, err := api.NewRuntime(cfg, infra)
	if err != nil {
		return nil, err
	}

	domain := api.NewDomain(cfg, runtime)

	return &Modules{
		API:     api.NewModule(cfg, runtime, domain),
		Workers: domain.Workers,
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if pending := infra.Lifecycle.NotReady(); len(pending) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{"status": "not ready", "pending": pending})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	return router
}
