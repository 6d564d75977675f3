package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/nexus/internal/jobs"
	"github.com/JaimeStill/nexus/pkg/storage"
)

// infer submits every page image to the vision client with bounded fan-out,
// aggregates the results in page order, and records the terminal status.
// A page whose image cannot be read or whose inference fails is absent from
// the result; the job fails only when every page is absent.
func (r *run) infer(ctx context.Context) (jobs.Status, error) {
	results := make([]*string, len(r.pages))

	var (
		mu      sync.Mutex
		lastErr error
		failed  int
	)

	record := func(page int, err error) {
		mu.Lock()
		defer mu.Unlock()
		lastErr = fmt.Errorf("page %d: %w", page, err)
		failed++
	}

	var g errgroup.Group
	g.SetLimit(r.o.fanOut)

	for i, key := range r.pages {
		page := i + 1
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			img, err := storage.ReadAll(ctx, r.o.rt.Storage, key)
			if err != nil {
				if cerr := ctx.Err(); cerr != nil {
					return cerr
				}
				r.logger.WarnContext(ctx, "page image unavailable", "stage", "infer", "page", page, "error", err)
				record(page, err)
				return nil
			}

			text, err := r.o.rt.Vision.Infer(ctx, img, formatFromKey(key), r.o.rt.Prompt)
			if err != nil {
				if cerr := ctx.Err(); cerr != nil {
					return cerr
				}
				r.logger.WarnContext(ctx, "page inference failed", "stage", "infer", "page", page, "error", err)
				record(page, err)
				return nil
			}

			results[i] = &text
			r.logger.DebugContext(ctx, "page inferred", "stage", "infer", "page", page)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return r.status, err
	}

	if err := ctx.Err(); err != nil {
		return r.status, err
	}

	combined, ok := Combine(results)
	if !ok {
		reason := fmt.Sprintf("%s: none of %d pages produced text", ErrNoUsableResults, len(results))
		if lastErr != nil {
			reason += fmt.Sprintf("; last error: %v", lastErr)
		}
		return r.fail(ctx, reason, lastErr)
	}

	if failed > 0 {
		r.logger.WarnContext(ctx, "partial inference results", "stage", "aggregate", "failed_pages", failed, "pages", len(results))
	}

	if err := r.persist(ctx, "success", jobs.Succeeded(combined)); err != nil {
		return r.status, err
	}

	r.logger.InfoContext(ctx, "pipeline run succeeded", "pages", len(results))

	r.cleanup(ctx)
	return jobs.StatusSuccess, nil
}

func formatFromKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	default:
		return "png"
	}
}
