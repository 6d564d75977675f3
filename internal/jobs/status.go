package jobs

import (
	"database/sql/driver"
	"fmt"
	"slices"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusSaving     Status = "saving"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusConverted  Status = "converted"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// transitions lists the statuses each status may move to.
// Terminal statuses have no entry.
var transitions = map[Status][]Status{
	StatusSaving:     {StatusQueued, StatusFailed},
	StatusQueued:     {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusConverted, StatusFailed},
	StatusConverted:  {StatusSuccess, StatusFailed},
}

var statuses = []Status{
	StatusSaving,
	StatusQueued,
	StatusProcessing,
	StatusConverted,
	StatusSuccess,
	StatusFailed,
}

// ParseStatus converts s into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidUpdate, s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(statuses, s)
}

// IsTerminal reports whether no further transitions are possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// Predecessors returns every status that may transition into s.
func (s Status) Predecessors() []Status {
	var from []Status
	for _, st := range statuses {
		if st.CanTransition(s) {
			from = append(from, st)
		}
	}
	return from
}

// Scan implements sql.Scanner.
func (s *Status) Scan(src any) error {
	var v string
	switch t := src.(type) {
	case string:
		v = t
	case []byte:
		v = string(t)
	default:
		return fmt.Errorf("scan status: unsupported type %T", src)
	}

	st, err := ParseStatus(v)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Value implements driver.Valuer.
func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidUpdate, string(s))
	}
	return string(s), nil
}
