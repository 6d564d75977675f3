// Package jobs implements the job domain: the persisted record of one document's
// trip through the processing pipeline, its status state machine, and the upload
// endpoint that creates and enqueues new jobs.
package jobs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Job is the unit of work tracked from upload to a terminal status.
// Result is set only with StatusSuccess and Error only with StatusFailed.
type Job struct {
	ID                 uuid.UUID `json:"id"`
	Filename           string    `json:"filename"`
	ContentType        string    `json:"content_type"`
	SizeBytes          int64     `json:"size_bytes"`
	PageCount          *int      `json:"page_count"`
	SourceLocation     string    `json:"source_location"`
	PageImageLocations []string  `json:"page_image_locations"`
	Status             Status    `json:"status"`
	Result             *string   `json:"result,omitempty"`
	Error              *string   `json:"error,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CreateCommand carries an uploaded document. PageCount is optional and
// stored as NULL when nil.
type CreateCommand struct {
	Data        []byte
	Filename    string
	ContentType string
	PageCount   *int
}

// Update is a partial job record applied atomically with a status transition.
// PageImageLocations is written only with StatusConverted; a nil slice leaves
// the stored locations unchanged.
type Update struct {
	Status             Status
	PageImageLocations []string
	Result             *string
	Error              *string
}

// Validate rejects updates whose fields do not match the target status.
func (u Update) Validate() error {
	if !u.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidUpdate, string(u.Status))
	}
	if u.Status == StatusSaving {
		return fmt.Errorf("%w: cannot transition into %s", ErrInvalidUpdate, StatusSaving)
	}

	switch {
	case u.Status == StatusConverted && len(u.PageImageLocations) == 0:
		return fmt.Errorf("%w: %s requires page image locations", ErrInvalidUpdate, StatusConverted)
	case u.Status != StatusConverted && u.PageImageLocations != nil:
		return fmt.Errorf("%w: page image locations only accompany %s", ErrInvalidUpdate, StatusConverted)
	case u.Status == StatusSuccess && u.Result == nil:
		return fmt.Errorf("%w: %s requires a result", ErrInvalidUpdate, StatusSuccess)
	case u.Status != StatusSuccess && u.Result != nil:
		return fmt.Errorf("%w: result only accompanies %s", ErrInvalidUpdate, StatusSuccess)
	case u.Status == StatusFailed && u.Error == nil:
		return fmt.Errorf("%w: %s requires an error", ErrInvalidUpdate, StatusFailed)
	case u.Status != StatusFailed && u.Error != nil:
		return fmt.Errorf("%w: error only accompanies %s", ErrInvalidUpdate, StatusFailed)
	}

	return nil
}

// AppliedTo reports whether current already holds u's status, as after a
// write whose reply was lost. Repeating such a write is treated as success.
func (u Update) AppliedTo(current *Job) bool {
	return current != nil && current.Status == u.Status
}

// Queued returns the update moving a saved job into the queue.
func Queued() Update { return Update{Status: StatusQueued} }

// Processing returns the update marking the start of pipeline work.
func Processing() Update { return Update{Status: StatusProcessing} }

// Converted returns the update recording rendered page image locations.
func Converted(locations []string) Update {
	return Update{Status: StatusConverted, PageImageLocations: locations}
}

// Succeeded returns the terminal success update carrying the combined result.
func Succeeded(result string) Update {
	return Update{Status: StatusSuccess, Result: &result}
}

// Failed returns the terminal failure update carrying a readable reason.
// Invalid UTF-8 in reason is replaced so the text can always be stored.
func Failed(reason string) Update {
	reason = strings.ToValidUTF8(reason, "\uFFFD")
	return Update{Status: StatusFailed, Error: &reason}
}
