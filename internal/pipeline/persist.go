package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/JaimeStill/nexus/internal/jobs"
)

// persist writes u, retrying once after the configured delay. A write the
// store rejects returns ErrPersistence with ErrDiverged. A write that still
// fails after the retry returns ErrPersistence alone: every later stage
// depends on this one being stored, so the run stops at the last persisted
// stage and a redelivery resumes from there.
func (r *run) persist(ctx context.Context, stage string, u jobs.Update) error {
	var err error

	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			r.logger.WarnContext(ctx, "persist failed, retrying", "stage", stage, "status", u.Status, "error", err)
			if serr := r.o.sleep(ctx, r.o.persistRetryDelay); serr != nil {
				return serr
			}
		}

		_, err = r.o.rt.Jobs.Update(ctx, r.id, u)
		if err == nil {
			r.advance(u)
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if stopPersisting(err) {
			return fmt.Errorf("%w: %s: %w: %w", ErrPersistence, stage, ErrDiverged, err)
		}
	}

	r.logger.ErrorContext(
		ctx, "persist failed after retry",
		"stage", stage,
		"status", u.Status,
		"error", err,
	)
	return fmt.Errorf("%w: %s: %w", ErrPersistence, stage, err)
}

func (r *run) advance(u jobs.Update) {
	r.status = u.Status
	if u.PageImageLocations != nil {
		r.pages = u.PageImageLocations
	}
}

func stopPersisting(err error) bool {
	return errors.Is(err, jobs.ErrNotFound) ||
		errors.Is(err, jobs.ErrInvalidTransition) ||
		errors.Is(err, jobs.ErrInvalidUpdate)
}
