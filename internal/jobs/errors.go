package jobs

import (
	"errors"
	"net/http"
)

// Domain errors for job operations.
var (
	ErrNotFound          = errors.New("job not found")
	ErrInvalidID         = errors.New("invalid job id")
	ErrDuplicate         = errors.New("job already exists")
	ErrFileTooLarge      = errors.New("file exceeds maximum upload size")
	ErrInvalidFile       = errors.New("invalid file")
	ErrInvalidUpdate     = errors.New("invalid job update")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrJobActive         = errors.New("job is still being processed")
	ErrEnqueue           = errors.New("failed to enqueue job")
	ErrInvalidQuery      = errors.New("invalid job query")
)

// MapHTTPStatus maps job domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrJobActive):
		return http.StatusConflict
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidFile),
		errors.Is(err, ErrInvalidUpdate),
		errors.Is(err, ErrInvalidQuery),
		errors.Is(err, ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, ErrEnqueue):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
