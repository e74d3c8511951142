package kin

import (
	"errors"
	"fmt"
	"strings"

	sqld "github.com/syssam/kin/dialect/sql"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("kin: row not found")

	// ErrNoRelation is returned when two tables have no inferable relation.
	ErrNoRelation = errors.New("kin: no relation between tables")
)

// SchemaError reports an unknown table or field referenced by name.
type SchemaError struct {
	Table string
	Field string // empty when the table itself is unknown
}

// Error returns the error string.
func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("kin: %s has no field %q", Label(e.Table), e.Field)
	}
	return fmt.Sprintf("kin: unknown table %q", e.Table)
}

// NewSchemaError returns a SchemaError for an unknown table.
func NewSchemaError(table string) *SchemaError {
	return &SchemaError{Table: table}
}

// NewFieldError returns a SchemaError for an unknown field on a known table.
func NewFieldError(table, field string) *SchemaError {
	return &SchemaError{Table: table, Field: field}
}

// IsSchemaError returns true if the error is a SchemaError.
func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}
	var e *SchemaError
	return errors.As(err, &e)
}

// InvalidDataError reports a data payload referencing a field outside the
// table's field map, or a value a converter rejected.
type InvalidDataError struct {
	Table string
	Field string
	Value any
	Err   error // underlying conversion error, if any
}

// Error returns the error string.
func (e *InvalidDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kin: invalid value for %s.%s: %v", e.Table, e.Field, e.Err)
	}
	return fmt.Sprintf("kin: %s has no field %q in data payload", Label(e.Table), e.Field)
}

// Unwrap returns the underlying conversion error.
func (e *InvalidDataError) Unwrap() error {
	return e.Err
}

// NewInvalidDataError returns an InvalidDataError for an unknown payload key.
func NewInvalidDataError(table, field string) *InvalidDataError {
	return &InvalidDataError{Table: table, Field: field}
}

// NewConversionError returns an InvalidDataError for a rejected value.
func NewConversionError(table, field string, value any, err error) *InvalidDataError {
	return &InvalidDataError{Table: table, Field: field, Value: value, Err: err}
}

// IsInvalidData returns true if the error is an InvalidDataError.
func IsInvalidData(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidDataError
	return errors.As(err, &e)
}

// RelationError reports a relation-aware operation between two tables with
// no inferable relation.
type RelationError struct {
	From string
	To   string
}

// Error returns the error string.
func (e *RelationError) Error() string {
	return fmt.Sprintf("kin: no relation between %s and %s", Title(e.From), Title(e.To))
}

// Is reports whether the target error matches RelationError.
// This allows errors.Is(relationErr, ErrNoRelation) to return true.
func (e *RelationError) Is(err error) bool {
	return err == ErrNoRelation
}

// NewRelationError returns a RelationError for the given table pair.
func NewRelationError(from, to string) *RelationError {
	return &RelationError{From: from, To: to}
}

// IsRelationError returns true if the error is a RelationError.
func IsRelationError(err error) bool {
	if err == nil {
		return false
	}
	var e *RelationError
	return errors.As(err, &e) || errors.Is(err, ErrNoRelation)
}

// DriverError is the underlying prepare/execute failure, carrying the
// attempted SQL and parameters. It is produced by the dialect/sql driver.
type DriverError = sqld.DriverError

// IsDriverError returns true if the error is a DriverError.
func IsDriverError(err error) bool {
	return sqld.IsDriverError(err)
}

// AggregateError represents multiple errors collected during a bulk
// relate/unrelate operation. Every member is attempted before the aggregate
// is raised, so the caller sees the cumulative effect.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "kin: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("kin: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil. A single error is returned as-is.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

// IsNotFound returns true if the error reports a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
