package jobs_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/JaimeStill/nexus/internal/jobs"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from jobs.Status
		to   jobs.Status
		want bool
	}{
		{jobs.StatusSaving, jobs.StatusQueued, true},
		{jobs.StatusSaving, jobs.StatusFailed, true},
		{jobs.StatusSaving, jobs.StatusProcessing, false},
		{jobs.StatusQueued, jobs.StatusProcessing, true},
		{jobs.StatusQueued, jobs.StatusConverted, false},
		{jobs.StatusQueued, jobs.StatusFailed, true},
		{jobs.StatusProcessing, jobs.StatusConverted, true},
		{jobs.StatusProcessing, jobs.StatusSuccess, false},
		{jobs.StatusProcessing, jobs.StatusQueued, false},
		{jobs.StatusProcessing, jobs.StatusFailed, true},
		{jobs.StatusConverted, jobs.StatusSuccess, true},
		{jobs.StatusConverted, jobs.StatusProcessing, false},
		{jobs.StatusConverted, jobs.StatusFailed, true},
		{jobs.StatusSuccess, jobs.StatusFailed, false},
		{jobs.StatusFailed, jobs.StatusQueued, false},
		{jobs.StatusFailed, jobs.StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := map[jobs.Status]bool{
		jobs.StatusSaving:     false,
		jobs.StatusQueued:     false,
		jobs.StatusProcessing: false,
		jobs.StatusConverted:  false,
		jobs.StatusSuccess:    true,
		jobs.StatusFailed:     true,
	}

	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestStatusPredecessors(t *testing.T) {
	tests := []struct {
		status jobs.Status
		want   []jobs.Status
	}{
		{jobs.StatusSaving, nil},
		{jobs.StatusQueued, []jobs.Status{jobs.StatusSaving}},
		{jobs.StatusProcessing, []jobs.Status{jobs.StatusQueued}},
		{jobs.StatusConverted, []jobs.Status{jobs.StatusProcessing}},
		{jobs.StatusSuccess, []jobs.Status{jobs.StatusConverted}},
		{
			jobs.StatusFailed,
			[]jobs.Status{jobs.StatusSaving, jobs.StatusQueued, jobs.StatusProcessing, jobs.StatusConverted},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got := tt.status.Predecessors()
			if !slices.Equal(got, tt.want) {
				t.Errorf("Predecessors() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusScan(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		var s jobs.Status
		if err := s.Scan("converted"); err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if s != jobs.StatusConverted {
			t.Errorf("status = %s, want converted", s)
		}
	})

	t.Run("bytes", func(t *testing.T) {
		var s jobs.Status
		if err := s.Scan([]byte("failed")); err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if s != jobs.StatusFailed {
			t.Errorf("status = %s, want failed", s)
		}
	})

	t.Run("unknown value", func(t *testing.T) {
		var s jobs.Status
		if err := s.Scan("converting to image success"); !errors.Is(err, jobs.ErrInvalidUpdate) {
			t.Errorf("Scan() error = %v, want ErrInvalidUpdate", err)
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		var s jobs.Status
		if err := s.Scan(42); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestStatusValue(t *testing.T) {
	v, err := jobs.StatusQueued.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if v != "queued" {
		t.Errorf("Value() = %v, want queued", v)
	}

	if _, err := jobs.Status("done").Value(); err == nil {
		t.Error("expected error for unknown status, got nil")
	}
}
