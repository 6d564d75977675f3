// Package render converts PDF documents into ordered page images.
package render

import (
	"bytes"
	"context"
	"fmt"
	"runtime"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Format is the encoding of rendered page images.
type Format string

// Supported page image formats.
const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Ext returns the file extension used for storage keys.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Options controls the output of a single Convert call.
type Options struct {
	DPI    int
	Format Format
}

// Validate rejects unsupported formats and resolutions.
func (o Options) Validate() error {
	switch o.Format {
	case FormatPNG, FormatJPEG:
	default:
		return fmt.Errorf("%w: unsupported format %q", ErrInvalidOptions, o.Format)
	}
	if o.DPI < 36 || o.DPI > 600 {
		return fmt.Errorf("%w: dpi %d out of range [36, 600]", ErrInvalidOptions, o.DPI)
	}
	return nil
}

// Converter renders every page of a document, in document order.
//
// Convert returns ErrMalformedDocument when data cannot be parsed, ErrNoPages
// when it parses but has zero pages, and ErrConversion when rendering fails.
type Converter interface {
	Convert(ctx context.Context, data []byte, opts Options) ([][]byte, error)
}

// New creates the converter for the configured backend.
func New(cfg *Config) (Converter, error) {
	switch cfg.Backend {
	case BackendImageMagick:
		return &imageMagick{}, nil
	case BackendMuPDF:
		return &muPDF{quality: cfg.Quality}, nil
	default:
		return nil, fmt.Errorf("unknown render backend: %q", cfg.Backend)
	}
}

// PageCount parses data and returns its page count. Parse failures wrap
// ErrMalformedDocument.
func PageCount(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty input", ErrMalformedDocument)
	}

	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	return count, nil
}

func prepare(ctx context.Context, data []byte, opts Options) (int, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count, err := PageCount(data)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, ErrNoPages
	}
	return count, nil
}

func workerCount(pageCount int) int {
	return max(min(runtime.NumCPU(), pageCount), 1)
}
