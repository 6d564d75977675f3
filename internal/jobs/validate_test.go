package jobs_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/nexus/internal/jobs"
)

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     error
	}{
		{name: "valid", filename: "resume.pdf"},
		{name: "uppercase extension", filename: "RESUME.PDF"},
		{name: "empty", filename: "", want: jobs.ErrInvalidFile},
		{name: "path separator", filename: "../resume.pdf", want: jobs.ErrInvalidFile},
		{name: "backslash", filename: `c:\resume.pdf`, want: jobs.ErrInvalidFile},
		{name: "control character", filename: "res\x00ume.pdf", want: jobs.ErrInvalidFile},
		{name: "wrong extension", filename: "resume.docx", want: jobs.ErrInvalidFile},
		{name: "too long", filename: strings.Repeat("a", 252) + ".pdf", want: jobs.ErrInvalidFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := jobs.ValidateFilename(tt.filename)
			if tt.want == nil {
				if err != nil {
					t.Errorf("ValidateFilename() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("ValidateFilename() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateSize(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want error
	}{
		{name: "within limit", size: 1024},
		{name: "at limit", size: 2048},
		{name: "empty", size: 0, want: jobs.ErrInvalidFile},
		{name: "over limit", size: 2049, want: jobs.ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := jobs.ValidateSize(tt.size, 2048)
			if tt.want == nil {
				if err != nil {
					t.Errorf("ValidateSize() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("ValidateSize() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "unchanged", in: "resume.pdf", want: "resume.pdf"},
		{name: "unsafe characters", in: `a<b>c:d"e|f?g*h\i/j.pdf`, want: "a_b_c_d_e_f_g_h_i_j.pdf"},
		{name: "leading dots and spaces", in: " ..resume.pdf. ", want: "resume.pdf"},
		{name: "empty after trim", in: "...", want: "document.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jobs.SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("caps length keeping extension", func(t *testing.T) {
		got := jobs.SanitizeFilename(strings.Repeat("a", 300) + ".pdf")
		if len(got) != 255 {
			t.Errorf("length = %d, want 255", len(got))
		}
		if !strings.HasSuffix(got, ".pdf") {
			t.Errorf("extension lost: %q", got[len(got)-8:])
		}
	})
}

func TestStorageKeys(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")

	if got, want := jobs.SourceKey(id, "resume.pdf"), "jobs/550e8400-e29b-41d4-a716-446655440000/source/resume.pdf"; got != want {
		t.Errorf("SourceKey() = %q, want %q", got, want)
	}
	if got, want := jobs.PageKey(id, 3, "png"), "jobs/550e8400-e29b-41d4-a716-446655440000/pages/page-0003.png"; got != want {
		t.Errorf("PageKey() = %q, want %q", got, want)
	}
}
