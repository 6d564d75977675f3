package vision

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrTransient marks failures that may succeed on retry: network errors,
	// timeouts, rate limiting, and server errors.
	ErrTransient = errors.New("transient inference failure")
	// ErrPermanent marks failures that will not succeed on retry: rejected
	// requests, refusals, and empty responses.
	ErrPermanent = errors.New("permanent inference failure")
	// ErrUnsupportedFormat indicates an image format the client cannot encode.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

const maxBodyExcerpt = 512

// InferenceError describes a failed inference call. It unwraps to ErrTransient
// or ErrPermanent, and to the underlying cause when there is one.
type InferenceError struct {
	Transient  bool
	StatusCode int
	Body       string
	Attempts   int
	Err        error

	retryAfter time.Duration
}

func (e *InferenceError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}

	msg := fmt.Sprintf("%s inference failure", kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" (after %d attempts)", e.Attempts)
	}
	return msg
}

func (e *InferenceError) Unwrap() []error {
	kind := ErrPermanent
	if e.Transient {
		kind = ErrTransient
	}
	if e.Err != nil {
		return []error{kind, e.Err}
	}
	return []error{kind}
}

// IsTransient reports whether err is a retryable inference failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

func transient(status int, body string, err error) *InferenceError {
	return &InferenceError{Transient: true, StatusCode: status, Body: excerpt(body), Err: err}
}

func permanent(status int, body string, err error) *InferenceError {
	return &InferenceError{StatusCode: status, Body: excerpt(body), Err: err}
}

// excerpt caps body at maxBodyExcerpt bytes on a rune boundary and replaces
// invalid UTF-8, since the text ends up in the job's persisted error.
func excerpt(body string) string {
	if len(body) <= maxBodyExcerpt {
		return strings.ToValidUTF8(body, "\uFFFD")
	}

	cut := maxBodyExcerpt
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return strings.ToValidUTF8(body[:cut], "\uFFFD") + "..."
}
