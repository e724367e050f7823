package dataset

import (
	"errors"
	"fmt"
)

// ErrInvalidUTF8 is wrapped by ParseError when the payload is not UTF-8 text.
var ErrInvalidUTF8 = errors.New("payload is not valid UTF-8")

// ErrNoColumns is wrapped by ParseError when the payload has no header row.
var ErrNoColumns = errors.New("no columns to parse from input")

// ParseError reports malformed CSV input. Line is 1-based; 0 means the
// problem is not tied to a specific line.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse csv: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse csv: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaMismatchError reports input that would break the rectangular shape of
// a table: ragged rows, duplicate column names, or columns of unequal length.
type SchemaMismatchError struct {
	Line   int
	Column string
	Want   int
	Got    int
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("schema mismatch: line %d: expected %d fields, got %d", e.Line, e.Want, e.Got)
	case e.Want != e.Got:
		return fmt.Sprintf("schema mismatch: column %q: %s (want %d, got %d)", e.Column, e.Reason, e.Want, e.Got)
	default:
		return fmt.Sprintf("schema mismatch: column %q: %s", e.Column, e.Reason)
	}
}
