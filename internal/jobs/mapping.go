package jobs

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/JaimeStill/nexus/pkg/query"
	"github.com/JaimeStill/nexus/pkg/repository"
)

const returningColumns = `id, filename, content_type, size_bytes, page_count, source_location,
	page_image_locations, status, result, error, created_at, updated_at`

var projection = query.
	NewProjectionMap("public", "jobs", "j").
	Project("id", "id").
	Project("filename", "filename").
	Project("content_type", "content_type").
	Project("size_bytes", "size_bytes").
	Project("page_count", "page_count").
	Project("source_location", "source_location").
	Project("page_image_locations", "page_image_locations").
	Project("status", "status").
	Project("result", "result").
	Project("error", "error").
	Project("created_at", "created_at").
	Project("updated_at", "updated_at").
	Sortable("filename", "size_bytes", "page_count", "status", "created_at", "updated_at")

var defaultSort = query.SortField{
	Field:      "created_at",
	Descending: true,
}

// Filters contains optional filtering criteria for job queries. A job
// matches Status when it is in any of the listed statuses. ContentType
// matches exactly and Filename by case-insensitive substring.
type Filters struct {
	Status      []Status `json:"status,omitempty"`
	Filename    *string  `json:"filename,omitempty"`
	ContentType *string  `json:"content_type,omitempty"`
}

// Validate rejects unknown statuses.
func (f Filters) Validate() error {
	for _, s := range f.Status {
		if !s.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidQuery, s)
		}
	}
	return nil
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereIn("status", statusArgs(f.Status)).
		WhereContains("filename", f.Filename).
		WhereEquals("content_type", f.ContentType)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// status accepts a comma-separated list or repeated parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	for _, v := range values["status"] {
		for s := range strings.SplitSeq(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Status = append(f.Status, Status(s))
			}
		}
	}
	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}
	if ct := values.Get("content_type"); ct != "" {
		f.ContentType = &ct
	}

	return f
}

func scanJob(s repository.Scanner) (Job, error) {
	var (
		j     Job
		pages []byte
	)

	err := s.Scan(
		&j.ID,
		&j.Filename,
		&j.ContentType,
		&j.SizeBytes,
		&j.PageCount,
		&j.SourceLocation,
		&pages,
		&j.Status,
		&j.Result,
		&j.Error,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return j, err
	}

	j.PageImageLocations, err = decodeLocations(pages)
	return j, err
}

func encodeLocations(locations []string) (any, error) {
	if locations == nil {
		return nil, nil
	}
	data, err := json.Marshal(locations)
	if err != nil {
		return nil, fmt.Errorf("encode page image locations: %w", err)
	}
	return string(data), nil
}

func decodeLocations(data []byte) ([]string, error) {
	locations := []string{}
	if len(data) == 0 {
		return locations, nil
	}
	if err := json.Unmarshal(data, &locations); err != nil {
		return nil, fmt.Errorf("decode page image locations: %w", err)
	}
	return locations, nil
}

func statusArgs(statuses []Status) []string {
	args := make([]string, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return args
}
