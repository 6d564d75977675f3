package render

import "errors"

var (
	// ErrNoPages indicates the document parsed but contains zero pages.
	ErrNoPages = errors.New("document has no pages")
	// ErrMalformedDocument indicates the input could not be parsed as a document.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrConversion indicates a page failed to render.
	ErrConversion = errors.New("conversion failed")
	// ErrInvalidOptions indicates unsupported render options.
	ErrInvalidOptions = errors.New("invalid render options")
)
