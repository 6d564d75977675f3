package render

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// muPDF renders pages in-process with MuPDF through go-fitz. Pages are
// rendered sequentially since a fitz document serializes access internally.
type muPDF struct {
	quality int
}

func (m *muPDF) Convert(ctx context.Context, data []byte, opts Options) ([][]byte, error) {
	if _, err := prepare(ctx, data, opts); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %w", ErrMalformedDocument, err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, ErrNoPages
	}

	images := make([][]byte, 0, pageCount)

	for n := range pageCount {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.ImageDPI(n, float64(opts.DPI))
		if err != nil {
			return nil, fmt.Errorf("%w: render page %d: %w", ErrConversion, n+1, err)
		}

		var buf bytes.Buffer
		switch opts.Format {
		case FormatJPEG:
			err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: m.quality})
		default:
			err = png.Encode(&buf, img)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: encode page %d: %w", ErrConversion, n+1, err)
		}

		images = append(images, buf.Bytes())
	}

	return images, nil
}
