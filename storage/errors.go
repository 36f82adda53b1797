package storage

import (
	"errors"
	"fmt"
	"regexp"

	"flipscout/models"
)

// Storage errors for append-only sinks.
var (
	// ErrInvalidTable is returned when a table has no name, no header, or a
	// row whose width differs from the header.
	ErrInvalidTable = errors.New("invalid table")

	// ErrClosed is returned by Append after Close.
	ErrClosed = errors.New("writer closed")

	// ErrUnauthorized is returned when the store rejects the credentials.
	ErrUnauthorized = errors.New("sink rejected credentials")
)

// AppendError reports a failed append with enough context for the caller to
// decide whether to retry.
type AppendError struct {
	Table string
	Rows  int
	Err   error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("append %s (%d rows): %v", e.Table, e.Rows, e.Err)
}

func (e *AppendError) Unwrap() error { return e.Err }

var tableNameRegexp = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Validate checks the shape of t.
func Validate(t models.Table) error {
	if !tableNameRegexp.MatchString(t.Name) {
		return fmt.Errorf("%w: bad name %q", ErrInvalidTable, t.Name)
	}
	if len(t.Header) == 0 {
		return fmt.Errorf("%w: %s has no header", ErrInvalidTable, t.Name)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("%w: %s row %d has %d cells, header has %d",
				ErrInvalidTable, t.Name, i, len(row), len(t.Header))
		}
	}
	return nil
}
