package api

import (
	"github.com/JaimeStill/nexus/internal/config"
	"github.com/JaimeStill/nexus/internal/jobs"
	"github.com/JaimeStill/nexus/internal/pipeline"
	"github.com/JaimeStill/nexus/internal/worker"
)

// Domain holds all domain systems that comprise the API and its background workers.
type Domain struct {
	Jobs     jobs.System
	Pipeline *pipeline.Orchestrator
	Workers  worker.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	jobsSystem := jobs.New(
		runtime.Database.Connection(),
		runtime.Storage,
		runtime.Queue,
		runtime.Logger,
		runtime.Pagination,
	)

	orchestrator := pipeline.New(
		&pipeline.Runtime{
			Jobs:      jobsSystem,
			Storage:   runtime.Storage,
			Converter: runtime.Converter,
			Render:    runtime.Render,
			Vision:    runtime.Vision,
			Prompt:    cfg.Vision.Prompt,
			Logger:    runtime.Logger,
		},
		&cfg.Pipeline,
	)

	workers := worker.New(
		&cfg.Worker,
		runtime.Queue,
		orchestrator,
		runtime.Logger,
	)

	return &Domain{
		Jobs:     jobsSystem,
		Pipeline: orchestrator,
		Workers:  workers,
	}
}
