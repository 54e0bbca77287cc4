// Package errors carries the error taxonomy shared across the engine.
// Typed errors add context to dataset and input failures; sentinels let
// callers classify without string matching. Is and As are re-exported
// so most files need only this import.
package errors

import (
	"errors"
	"fmt"
)

// Sentinels for error classification.
var (
	// ErrInvalidInput marks malformed or rejected input, including
	// formula parse failures and dataset validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists marks duplicate entries, such as a symbol
	// defined twice in one dataset.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnsupported marks formats and operations the engine does
	// not handle.
	ErrUnsupported = errors.New("unsupported")
)

// ValidationError reports one rejected field of a dataset or request.
type ValidationError struct {
	Field   string
	Message string
	Err     error // more specific cause, defaults to ErrInvalidInput
}

// NewValidation creates a ValidationError for a named field.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError reports a failed file operation with its path.
type IOError struct {
	Operation string // "read", "write", "open"
	Path      string
	Err       error
}

// NewIO creates an IOError.
func NewIO(operation, path string, err error) *IOError {
	return &IOError{Operation: operation, Path: path, Err: err}
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError reports undecodable content in a named dataset format,
// "JSON", "XML" or "SQLite". Formula syntax errors have their own type
// beside the parser.
type ParseError struct {
	Format  string
	Path    string // source file, when one exists
	Message string
	Err     error
}

// NewParse creates a ParseError.
func NewParse(format, path, message string) *ParseError {
	return &ParseError{Format: format, Path: path, Message: message}
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// UnsupportedError reports a feature or format outside the engine's
// scope.
type UnsupportedError struct {
	Feature string
	Reason  string
	Err     error
}

// NewUnsupported creates an UnsupportedError.
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{Feature: feature, Reason: reason}
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// Wrap adds context to an error. Returns nil for a nil err.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. Returns nil for a nil err.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is re-exports errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
