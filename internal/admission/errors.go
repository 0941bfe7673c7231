package admission

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoTable indicates the markup holds no table to extract.
	ErrNoTable = errors.New("no table found in markup")
	// ErrSchemaMismatch indicates the first table lacks required columns.
	ErrSchemaMismatch = errors.New("table schema mismatch")
	// ErrAttemptsExhausted indicates the supervisor gave up after MaxAttempts.
	ErrAttemptsExhausted = errors.New("fetch attempts exhausted")
	// ErrEmptyMarkup indicates a loader returned without error but with no markup.
	ErrEmptyMarkup = errors.New("loader returned empty markup")
	// ErrAttemptTimeout marks an attempt that exceeded its time bound.
	ErrAttemptTimeout = errors.New("fetch attempt timed out")
)

// SchemaError lists the required columns missing from an extracted table.
type SchemaError struct {
	Missing []string
	Found   []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing columns [%s], found [%s]",
		ErrSchemaMismatch, strings.Join(e.Missing, ", "), strings.Join(e.Found, ", "))
}

// Unwrap lets errors.Is match ErrSchemaMismatch.
func (e *SchemaError) Unwrap() error {
	return ErrSchemaMismatch
}

// AttemptsExhaustedError reports the URL, the attempt count, and the error of
// the final attempt.
type AttemptsExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *AttemptsExhaustedError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempts: %v", ErrAttemptsExhausted, e.URL, e.Attempts, e.Last)
}

// Unwrap exposes both the sentinel and the last attempt error.
func (e *AttemptsExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrAttemptsExhausted}
	}
	return []error{ErrAttemptsExhausted, e.Last}
}
