package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/nexus/internal/jobs"
	"github.com/JaimeStill/nexus/pkg/render"
	"github.com/JaimeStill/nexus/pkg/storage"
	"github.com/JaimeStill/nexus/pkg/vision"
)

// Store is the subset of the job system the pipeline reads and writes.
type Store interface {
	Find(ctx context.Context, id uuid.UUID) (*jobs.Job, error)
	Update(ctx context.Context, id uuid.UUID, u jobs.Update) (*jobs.Job, error)
}

// Runtime bundles the dependencies the pipeline stages require.
// Prompt is sent with every page image.
// It is constructed by higher-level composition code from Infrastructure and Domain systems.
type Runtime struct {
	Jobs      Store
	Storage   storage.System
	Converter render.Converter
	Render    render.Options
	Vision    vision.Client
	Prompt    string
	Logger    *slog.Logger
}
