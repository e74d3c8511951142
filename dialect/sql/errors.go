package sql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// DriverError wraps a prepare/execute failure with the attempted SQL and
// parameter list for diagnosis. The engine's native error is preserved and
// reachable through Unwrap.
type DriverError struct {
	Query string
	Args  []any
	Err   error
}

// Error returns the error string.
func (e *DriverError) Error() string {
	if len(e.Args) > 0 {
		return fmt.Sprintf("sql: %v (query=%q args=%v)", e.Err, e.Query, e.Args)
	}
	return fmt.Sprintf("sql: %v (query=%q)", e.Err, e.Query)
}

// Unwrap returns the engine's native error.
func (e *DriverError) Unwrap() error {
	return e.Err
}

// ConstraintViolation reports whether the wrapped engine error is a
// unique-key or foreign-key constraint violation.
func (e *DriverError) ConstraintViolation() bool {
	return constraintViolation(e.Err)
}

// IsDriverError returns true if the error is a DriverError.
func IsDriverError(err error) bool {
	if err == nil {
		return false
	}
	var e *DriverError
	return errors.As(err, &e)
}

// IsConstraintViolation reports whether the error carries an engine
// constraint violation, across the supported dialects.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	var e *DriverError
	if errors.As(err, &e) {
		return e.ConstraintViolation()
	}
	return constraintViolation(err)
}

func constraintViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1062, 1169: // duplicate entry
			return true
		case 1451, 1452: // foreign key
			return true
		}
		return false
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		// Class 23 - integrity constraint violation.
		return pe.Code.Class() == "23"
	}
	// modernc.org/sqlite reports constraint failures in the extended error
	// text only.
	if err != nil && strings.Contains(err.Error(), "constraint failed") {
		return true
	}
	return false
}
