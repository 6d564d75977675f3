// Package pipeline drives a job from its uploaded source document to a
// terminal status: page conversion, per-page inference, aggregation, and
// artifact cleanup, persisting the job's status at every stage boundary.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/nexus/internal/jobs"
)

// Orchestrator runs jobs through the pipeline. It holds no per-job state and
// is safe for concurrent use by multiple workers.
type Orchestrator struct {
	rt                *Runtime
	cleaner           *Cleaner
	fanOut            int
	persistRetryDelay time.Duration
	sleep             func(ctx context.Context, d time.Duration) error
	logger            *slog.Logger
}

// New creates an Orchestrator from a runtime and finalized config.
func New(rt *Runtime, cfg *Config) *Orchestrator {
	return &Orchestrator{
		rt:                rt,
		cleaner:           NewCleaner(rt.Storage, rt.Logger),
		fanOut:            max(cfg.FanOut, 1),
		persistRetryDelay: cfg.PersistRetryDelayDuration(),
		sleep:             sleepContext,
		logger:            rt.Logger.With("system", "pipeline"),
	}
}

// run carries the in-memory state of a single job execution.
type run struct {
	o      *Orchestrator
	id     uuid.UUID
	source string
	status jobs.Status
	pages  []string
	// uploaded holds page keys written during this run, cleaned up even when
	// the converted transition is never persisted.
	uploaded []string
	logger   *slog.Logger
}

// Run processes the job and returns the status it ended in.
//
// Re-entry follows the persisted status: terminal jobs only repeat cleanup,
// converted jobs resume at inference, processing jobs redo conversion, and
// queued jobs start from the beginning. A cancelled ctx returns ctx.Err()
// without further writes so a redelivery resumes from the last persisted stage.
// Stage failures are recorded on the job as StatusFailed and are not returned.
// A stage the store could not record returns an error satisfying Retryable,
// leaving the job and its artifacts at the last persisted stage.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID, source string) (jobs.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	job, err := o.load(ctx, jobID)
	if err != nil {
		return "", err
	}

	r := o.newRun(job, source)
	r.logger.InfoContext(ctx, "pipeline run started", "status", job.Status)

	switch {
	case job.Status.IsTerminal():
		r.cleanup(ctx)
		return job.Status, nil
	case job.Status == jobs.StatusConverted && len(job.PageImageLocations) > 0:
		r.logger.InfoContext(ctx, "resuming at inference", "pages", len(r.pages))
	case job.Status == jobs.StatusConverted:
		return r.fail(ctx, "conversion failed: no page image locations recorded", nil)
	case job.Status == jobs.StatusProcessing:
		r.logger.InfoContext(ctx, "redoing conversion")
		if err := r.convert(ctx); err != nil {
			return r.status, err
		}
	case job.Status == jobs.StatusQueued:
		if err := r.persist(ctx, "processing", jobs.Processing()); err != nil {
			return r.status, err
		}
		if err := r.convert(ctx); err != nil {
			return r.status, err
		}
	default:
		return job.Status, fmt.Errorf("%w: status %s", ErrNotRunnable, job.Status)
	}

	if r.status.IsTerminal() {
		return r.status, nil
	}

	if err := ctx.Err(); err != nil {
		return r.status, err
	}

	return r.infer(ctx)
}

// Fail records reason on a job that could not finish, such as one that ran
// past its deadline, and removes its artifacts: the source, the recorded page
// images, and the page keys a conversion of the job's page count writes.
// A job already terminal is only cleaned up.
func (o *Orchestrator) Fail(ctx context.Context, jobID uuid.UUID, reason string) (jobs.Status, error) {
	job, err := o.load(ctx, jobID)
	if err != nil {
		return "", err
	}

	r := o.newRun(job, "")
	if job.Status.IsTerminal() {
		r.cleanup(ctx)
		return job.Status, nil
	}

	if job.PageCount != nil {
		ext := o.rt.Render.Format.Ext()
		for page := 1; page <= *job.PageCount; page++ {
			r.uploaded = append(r.uploaded, jobs.PageKey(job.ID, page, ext))
		}
	}

	return r.fail(ctx, reason, nil)
}

func (o *Orchestrator) newRun(job *jobs.Job, source string) *run {
	if source == "" {
		source = job.SourceLocation
	}

	return &run{
		o:      o,
		id:     job.ID,
		source: source,
		status: job.Status,
		pages:  job.PageImageLocations,
		logger: o.logger.With("job_id", job.ID),
	}
}

func (o *Orchestrator) load(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	var (
		job *jobs.Job
		err error
	)

	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			o.logger.WarnContext(ctx, "load job failed, retrying", "job_id", id, "error", err)
			if serr := o.sleep(ctx, o.persistRetryDelay); serr != nil {
				return nil, serr
			}
		}

		job, err = o.rt.Jobs.Find(ctx, id)
		if err == nil {
			return job, nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		if stopPersisting(err) {
			return nil, fmt.Errorf("%w: load job: %w: %w", ErrPersistence, ErrDiverged, err)
		}
	}

	return nil, fmt.Errorf("%w: load job: %w", ErrPersistence, err)
}

// fail records a terminal failure and cleans up. cause is logged only.
// Artifacts are kept when the failure could not be recorded, since the job
// is not terminal and a redelivery still needs them.
func (r *run) fail(ctx context.Context, reason string, cause error) (jobs.Status, error) {
	if err := ctx.Err(); err != nil {
		return r.status, err
	}

	r.logger.ErrorContext(ctx, "pipeline failed", "reason", reason, "error", cause)

	if err := r.persist(ctx, "fail", jobs.Failed(reason)); err != nil {
		return r.status, err
	}

	r.cleanup(ctx)
	return jobs.StatusFailed, nil
}

func (r *run) cleanup(ctx context.Context) {
	keys := make([]string, 0, len(r.pages)+len(r.uploaded)+1)
	keys = append(keys, r.source)
	keys = append(keys, r.pages...)
	keys = append(keys, r.uploaded...)
	r.o.cleaner.Cleanup(ctx, keys)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
