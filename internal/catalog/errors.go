package catalog

import (
	"errors"
	"fmt"
)

// Catalog loading errors. Both are fatal to a run: a partially loaded catalog
// is never returned.
var (
	// ErrCatalogNotFound is returned when the catalog source does not exist.
	ErrCatalogNotFound = errors.New("catalog source not found")

	// ErrMalformedCatalog is returned when the source cannot be decoded as a
	// sequence of records, or a record has no usable item name.
	ErrMalformedCatalog = errors.New("malformed catalog")
)

// CatalogError wraps a loading failure with the operation, source and record
// that caused it.
type CatalogError struct {
	// Op is the operation that failed (e.g., "Load", "Parse").
	Op string

	// Path is the catalog source path, empty when parsing from a reader.
	Path string

	// Record is the zero-based index of the offending record, or -1 when the
	// failure is not tied to a single record.
	Record int

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	msg := "catalog: " + e.Op + " failed"
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Record >= 0 {
		msg += fmt.Sprintf(": record %d", e.Record)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *CatalogError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *CatalogError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func malformed(op string, record int, details string) *CatalogError {
	return &CatalogError{Op: op, Record: record, Err: ErrMalformedCatalog, Details: details}
}
