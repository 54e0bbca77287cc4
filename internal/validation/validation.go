// Package validation guards file paths handed to the dataset loaders
// against malformed input and resource exhaustion.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Limits applied to operator-supplied dataset files.
const (
	// MaxFileSize is the largest dataset file the loaders accept (256 MB).
	MaxFileSize = 256 << 20
	// MaxPathLength is the longest path the loaders accept.
	MaxPathLength = 4096
)

var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrFileTooLarge     = errors.New("file too large")
)

// ValidatePath rejects empty, oversized, and control-character paths
// before they reach the OS. Null bytes truncate paths in C-backed
// drivers; control characters cover them and the rest.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return ErrEmptyPath
	case len(path) > MaxPathLength:
		return fmt.Errorf("%w: %d bytes", ErrPathTooLong, len(path))
	case strings.ContainsFunc(path, unicode.IsControl):
		return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
	}
	return nil
}

// ValidateFileSize rejects dataset files larger than MaxFileSize.
// A file exactly at the limit passes.
func ValidateFileSize(size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, size, int64(MaxFileSize))
	}
	return nil
}
