package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/JaimeStill/nexus/internal/jobs"
	"github.com/JaimeStill/nexus/pkg/render"
	"github.com/JaimeStill/nexus/pkg/storage"
)

// convert renders the source document, stores each page image under the
// job's page prefix, and records the locations with the converted transition.
// Conversion failures end the job; only cancellation and store divergence
// are returned.
func (r *run) convert(ctx context.Context) error {
	data, err := storage.ReadAll(ctx, r.o.rt.Storage, r.source)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		_, ferr := r.fail(ctx, fmt.Sprintf("%s: %v", ErrSourceUnavailable, err), err)
		return ferr
	}

	opts := r.o.rt.Render
	images, err := r.o.rt.Converter.Convert(ctx, data, opts)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		_, ferr := r.fail(ctx, conversionReason(err), err)
		return ferr
	}

	r.logger.InfoContext(ctx, "document converted", "stage", "convert", "pages", len(images))

	keys := make([]string, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := jobs.PageKey(r.id, i+1, opts.Format.Ext())
		if err := r.o.rt.Storage.Upload(ctx, key, bytes.NewReader(img), opts.Format.ContentType()); err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			_, ferr := r.fail(ctx, fmt.Sprintf("%s: page %d: %v", ErrPageUpload, i+1, err), err)
			return ferr
		}

		keys[i] = key
		r.uploaded = append(r.uploaded, key)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.persist(ctx, "converted", jobs.Converted(keys))
}

// conversionReason renders a failure message whose prefix names the
// conversion error kind.
func conversionReason(err error) string {
	switch {
	case errors.Is(err, render.ErrNoPages):
		return "no pages: document contains no pages"
	case errors.Is(err, render.ErrMalformedDocument):
		return err.Error()
	case errors.Is(err, render.ErrConversion):
		return err.Error()
	default:
		return fmt.Sprintf("%s: %v", render.ErrConversion, err)
	}
}
