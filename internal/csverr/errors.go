// Package csverr defines the error taxonomy shared by the CSV decoding
// stages. Errors are plain structs so callers can inspect the offending line,
// column, and raw value with errors.As after any amount of %w wrapping.
//
// Two classes exist:
//
//   - ConfigError is fatal for a dataset: schema resolution cannot proceed
//     and no partial schema is usable.
//   - MalformedRowError, RequiredColumnError and TypeCoercionError are row
//     errors: they fail a single iteration step and the caller decides whether
//     to skip the row or abort. IsRowError reports this class.
package csverr

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid or conflicting configuration, or a source
// whose header cannot be reconciled with the configuration.
type ConfigError struct {
	// Field is the offending option (e.g. "column_names"); may be empty.
	Field string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	var s string
	if e.Field != "" {
		s = fmt.Sprintf("csv config: %s: %s", e.Field, e.Msg)
	} else {
		s = "csv config: " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Configf builds a ConfigError for field with a formatted message.
func Configf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Row-level malformation reasons.
var (
	ErrUnterminatedQuote = errors.New("unterminated quoted field")
	ErrTextAfterQuote    = errors.New("unexpected text after closing quote")
	ErrFieldCount        = errors.New("wrong number of fields")
)

// MalformedRowError reports a line that cannot be tokenized or whose width
// does not match the schema. Line is the 1-based logical record number.
type MalformedRowError struct {
	Line int
	// Column is the 1-based byte offset within the line for tokenizer errors,
	// zero otherwise.
	Column   int
	Expected int
	Actual   int
	Err      error
}

func (e *MalformedRowError) Error() string {
	if errors.Is(e.Err, ErrFieldCount) {
		return fmt.Sprintf("malformed row at line %d: expected %d fields, got %d", e.Line, e.Expected, e.Actual)
	}
	if e.Column > 0 {
		return fmt.Sprintf("malformed row at line %d, column %d: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("malformed row at line %d: %v", e.Line, e.Err)
}

func (e *MalformedRowError) Unwrap() error { return e.Err }

// RequiredColumnError reports an empty value in a required column that has no
// default.
type RequiredColumnError struct {
	Line   int
	Column string
	Value  string
}

func (e *RequiredColumnError) Error() string {
	return fmt.Sprintf("line %d: required column %q is empty (raw value %q)", e.Line, e.Column, e.Value)
}

// TypeCoercionError reports a raw value that does not parse as the column's
// data type.
type TypeCoercionError struct {
	Line   int
	Column string
	Value  string
	Type   string
	Err    error
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("line %d: column %q: cannot coerce %q to %s", e.Line, e.Column, e.Value, e.Type)
}

func (e *TypeCoercionError) Unwrap() error { return e.Err }

// IsRowError reports whether err (or anything it wraps) is a per-row failure
// that leaves the iteration usable.
func IsRowError(err error) bool {
	var (
		m *MalformedRowError
		r *RequiredColumnError
		t *TypeCoercionError
	)
	return errors.As(err, &m) || errors.As(err, &r) || errors.As(err, &t)
}

// IsConfigError reports whether err (or anything it wraps) is a ConfigError.
func IsConfigError(err error) bool {
	var c *ConfigError
	return errors.As(err, &c)
}
