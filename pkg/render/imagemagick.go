package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JaimeStill/document-context/pkg/config"
	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/image"

	"golang.org/x/sync/errgroup"
)

const sourcePDF = "source.pdf"

// imageMagick renders pages through document-context's ImageMagick renderer.
// The document is written to a temp directory because the renderer shells
// out to magick with a file path.
type imageMagick struct{}

func (m *imageMagick) Convert(ctx context.Context, data []byte, opts Options) ([][]byte, error) {
	if _, err := prepare(ctx, data, opts); err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "nexus-render-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp directory: %w", ErrConversion, err)
	}
	defer os.RemoveAll(tempDir)

	pdfPath := filepath.Join(tempDir, sourcePDF)
	if err := os.WriteFile(pdfPath, data, 0600); err != nil {
		return nil, fmt.Errorf("%w: write temp pdf: %w", ErrConversion, err)
	}

	pdfDoc, err := document.OpenPDF(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %w", ErrMalformedDocument, err)
	}
	defer pdfDoc.Close()

	renderer, err := image.NewImageMagickRenderer(imageConfig(opts))
	if err != nil {
		return nil, fmt.Errorf("%w: create renderer: %w", ErrConversion, err)
	}

	allPages, err := pdfDoc.ExtractAllPages()
	if err != nil {
		return nil, fmt.Errorf("%w: extract pages: %w", ErrConversion, err)
	}
	if len(allPages) == 0 {
		return nil, ErrNoPages
	}

	images := make([][]byte, len(allPages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(len(allPages)))

	for i, page := range allPages {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			img, err := page.ToImage(renderer, nil)
			if err != nil {
				return fmt.Errorf("render page %d: %w", i+1, err)
			}

			images[i] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrConversion, err)
	}

	return images, nil
}

func imageConfig(opts Options) config.ImageConfig {
	return config.ImageConfig{
		Format: opts.Format.Ext(),
		DPI:    opts.DPI,
		Options: map[string]any{
			"background": "white",
		},
	}
}
