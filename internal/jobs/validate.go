package jobs

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/nexus/pkg/formatting"
)

const maxFilenameLength = 255

const unsafeFilenameChars = `<>:"|?*\/`

// ValidateFilename checks an uploaded filename for unsafe characters,
// excessive length, and a .pdf extension.
func ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: filename cannot be empty", ErrInvalidFile)
	}
	if strings.ContainsAny(name, unsafeFilenameChars) {
		return fmt.Errorf("%w: filename contains invalid characters", ErrInvalidFile)
	}
	if strings.ContainsFunc(name, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return fmt.Errorf("%w: filename contains control characters", ErrInvalidFile)
	}
	if len(name) > maxFilenameLength {
		return fmt.Errorf("%w: filename too long (max %d characters)", ErrInvalidFile, maxFilenameLength)
	}
	if !strings.EqualFold(path.Ext(name), ".pdf") {
		return fmt.Errorf("%w: only PDF files are allowed", ErrInvalidFile)
	}
	return nil
}

// ValidateSize checks that an upload is non-empty and within max bytes.
func ValidateSize(size, max int64) error {
	if size <= 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidFile)
	}
	if size > max {
		return fmt.Errorf(
			"%w: %s exceeds limit of %s",
			ErrFileTooLarge,
			formatting.FormatBytes(size, 1),
			formatting.FormatBytes(max, 1),
		)
	}
	return nil
}

// SanitizeFilename replaces unsafe characters, trims leading and trailing
// dots and spaces, and caps the length while keeping the extension.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafeFilenameChars, r) || r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, name)

	name = strings.Trim(name, ". ")
	if name == "" {
		return "document.pdf"
	}

	if len(name) > maxFilenameLength {
		ext := path.Ext(name)
		if len(ext) >= maxFilenameLength {
			ext = ""
		}
		name = name[:maxFilenameLength-len(ext)] + ext
	}

	return name
}

// Prefix returns the storage prefix under which all artifacts of a job live.
func Prefix(id uuid.UUID) string {
	return fmt.Sprintf("jobs/%s", id)
}

// SourceKey returns the storage key of a job's uploaded document.
func SourceKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("%s/source/%s", Prefix(id), filename)
}

// PageKey returns the storage key of a rendered page image. Pages are 1-based.
func PageKey(id uuid.UUID, page int, ext string) string {
	return fmt.Sprintf("%s/pages/page-%04d.%s", Prefix(id), page, ext)
}
