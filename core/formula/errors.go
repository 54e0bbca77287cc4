package formula

import (
	"fmt"

	"github.com/sxyu/cantus-chem/core/errors"
)

// ErrorKind classifies formula parse failures.
type ErrorKind string

const (
	// EmptyFormula reports an input with no content.
	EmptyFormula ErrorKind = "empty_formula"

	// UnbalancedGroup reports unmatched or mismatched brackets, or a
	// group with no content.
	UnbalancedGroup ErrorKind = "unbalanced_group"

	// InvalidMultiplier reports a multiplier below 1 or a number with
	// nothing to multiply.
	InvalidMultiplier ErrorKind = "invalid_multiplier"

	// IllegalCharacter reports a character outside the formula alphabet
	// or a separator in a position where none is allowed.
	IllegalCharacter ErrorKind = "illegal_character"
)

// ParseError reports why a formula failed to parse. Offset is a byte
// offset into the trimmed input; -1 when no single position applies.
type ParseError struct {
	Kind    ErrorKind `json:"kind"`
	Offset  int       `json:"offset"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("invalid formula at offset %d: %s", e.Offset, e.Message)
	}
	return fmt.Sprintf("invalid formula: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return errors.ErrInvalidInput
}

func newParseError(kind ErrorKind, offset int, format string, args ...interface{}) *ParseError {
	return &ParseError{Kind: kind, Offset: offset, Message: fmt.Sprintf(format, args...)}
}
