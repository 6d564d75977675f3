package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrEmptyKey   = errors.New("storage key must not be empty")
	ErrInvalidKey = errors.New("invalid storage key")
)

// validateKey accepts slash-separated relative keys. Absolute keys,
// backslashes, control characters and "." or ".." segments are rejected so
// a key cannot leave the local root or alias another blob.
func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.HasPrefix(key, "/") || strings.ContainsRune(key, '\\') {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if strings.IndexFunc(key, func(r rune) bool { return r < 0x20 || r == 0x7f }) >= 0 {
		return fmt.Errorf("%w: control character in %q", ErrInvalidKey, key)
	}
	for segment := range strings.SplitSeq(key, "/") {
		switch segment {
		case "", ".", "..":
			return fmt.Errorf("%w: segment %q in %q", ErrInvalidKey, segment, key)
		}
	}
	return nil
}
