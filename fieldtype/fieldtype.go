// Package fieldtype maps database columns to value converters.
//
// Every column of a mapped table is associated with a Converter that
// translates between Go values and the scalar representation the driver
// understands. The Registry resolves a converter from the column's declared
// SQL type (as reported by the engine's catalog) with optional per-name
// overrides.
package fieldtype

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Converter translates a field value to and from its database representation.
//
// Both directions must be total for well-typed input. Malformed input yields
// a *ConversionError, never a panic.
type Converter interface {
	// ToDatabase converts a Go value to a driver-compatible scalar.
	ToDatabase(v any) (any, error)
	// FromDatabase converts a scalar returned by the driver to a Go value.
	FromDatabase(v any) (any, error)
}

// ConversionError reports a value a converter could not handle.
type ConversionError struct {
	Kind  string // converter kind, e.g. "bool"
	Value any
}

// Error returns the error string.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("fieldtype: cannot convert %T (%v) as %s", e.Value, e.Value, e.Kind)
}

func conversionErr(kind string, v any) error {
	return &ConversionError{Kind: kind, Value: v}
}

// Generic passes values through unchanged, except that []byte column data is
// surfaced as string (the common shape MySQL drivers return for text columns).
type Generic struct{}

// ToDatabase implements Converter.
func (Generic) ToDatabase(v any) (any, error) { return v, nil }

// FromDatabase implements Converter.
func (Generic) FromDatabase(v any) (any, error) {
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return v, nil
}

// Int converts integer columns to int64.
type Int struct{}

// ToDatabase implements Converter.
func (Int) ToDatabase(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return nil, conversionErr("int", v)
		}
		return i, nil
	default:
		return nil, conversionErr("int", v)
	}
}

// FromDatabase implements Converter.
func (Int) FromDatabase(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return parseInt(string(n))
	case string:
		return parseInt(n)
	default:
		return nil, conversionErr("int", v)
	}
}

func parseInt(s string) (any, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, conversionErr("int", s)
	}
	return i, nil
}

// Float converts floating point and decimal columns to float64.
type Float struct{}

// ToDatabase implements Converter.
func (Float) ToDatabase(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil, conversionErr("float", v)
		}
		return f, nil
	default:
		return nil, conversionErr("float", v)
	}
}

// FromDatabase implements Converter.
func (Float) FromDatabase(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case []byte:
		return parseFloat(string(n))
	case string:
		return parseFloat(n)
	default:
		return nil, conversionErr("float", v)
	}
}

func parseFloat(s string) (any, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, conversionErr("float", s)
	}
	return f, nil
}

// Bool converts boolean-ish columns (BOOLEAN, TINYINT(1)) to bool.
// Booleans are stored as 0/1 so the same value round-trips on engines
// without a native boolean type.
type Bool struct{}

// ToDatabase implements Converter.
func (Bool) ToDatabase(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch b := v.(type) {
	case bool:
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(boolToInt(b != 0)), nil
	case int64:
		return int64(boolToInt(b != 0)), nil
	case string:
		t, err := parseBool(b)
		if err != nil {
			return nil, err
		}
		return int64(boolToInt(t)), nil
	default:
		return nil, conversionErr("bool", v)
	}
}

// FromDatabase implements Converter.
func (Bool) FromDatabase(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case []byte:
		return parseBool(string(b))
	case string:
		return parseBool(b)
	default:
		return nil, conversionErr("bool", v)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "t", "true", "y", "yes":
		return true, nil
	case "0", "f", "false", "n", "no", "":
		return false, nil
	}
	return false, conversionErr("bool", s)
}

// TimeLayout is the storage layout for datetime columns.
const TimeLayout = "2006-01-02 15:04:05"

// Time converts datetime columns to time.Time. Values are stored in the
// TimeLayout text form; RFC 3339 text and unix seconds are accepted on read.
type Time struct{}

// ToDatabase implements Converter.
func (Time) ToDatabase(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(TimeLayout), nil
	case string:
		parsed, err := parseTime(t)
		if err != nil {
			return nil, err
		}
		return parsed.UTC().Format(TimeLayout), nil
	default:
		return nil, conversionErr("time", v)
	}
}

// FromDatabase implements Converter.
func (Time) FromDatabase(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case []byte:
		return parseTime(string(t))
	case string:
		return parseTime(t)
	default:
		return nil, conversionErr("time", v)
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{TimeLayout, time.RFC3339, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, conversionErr("time", s)
}

// Registry resolves converters from declared column types, with optional
// per-column-name overrides. Name overrides always win over type mappings.
type Registry struct {
	byType map[string]Converter
	byName map[string]Converter
}

// NewRegistry returns an empty registry. Lookups fall back to Generic.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[string]Converter),
		byName: make(map[string]Converter),
	}
}

// Default returns a registry covering the common SQL declared types.
func Default() *Registry {
	r := NewRegistry()
	for _, t := range []string{"int", "integer", "bigint", "smallint", "mediumint", "tinyint", "serial", "bigserial"} {
		r.RegisterType(t, Int{})
	}
	for _, t := range []string{"float", "double", "real", "decimal", "numeric", "double precision"} {
		r.RegisterType(t, Float{})
	}
	for _, t := range []string{"bool", "boolean", "tinyint(1)"} {
		r.RegisterType(t, Bool{})
	}
	for _, t := range []string{"datetime", "timestamp", "date", "timestamp with time zone", "timestamp without time zone", "timestamptz"} {
		r.RegisterType(t, Time{})
	}
	return r
}

// RegisterType associates a declared SQL type with a converter.
// The type is matched case-insensitively on its base form.
func (r *Registry) RegisterType(declared string, c Converter) {
	r.byType[normalizeType(declared)] = c
}

// RegisterName associates a column name with a converter, overriding any
// type-based mapping for that column.
func (r *Registry) RegisterName(column string, c Converter) {
	r.byName[strings.ToLower(column)] = c
}

// Lookup resolves the converter for a column. It never returns nil.
func (r *Registry) Lookup(column, declared string) Converter {
	if c, ok := r.byName[strings.ToLower(column)]; ok {
		return c
	}
	norm := normalizeType(declared)
	if c, ok := r.byType[norm]; ok {
		return c
	}
	// TINYINT(1) is special-cased above; other sized types match their base.
	if i := strings.IndexByte(norm, '('); i > 0 {
		if c, ok := r.byType[norm[:i]]; ok {
			return c
		}
	}
	if i := strings.IndexByte(norm, ' '); i > 0 {
		if c, ok := r.byType[norm[:i]]; ok {
			return c
		}
	}
	return Generic{}
}

func normalizeType(declared string) string {
	s := strings.ToLower(strings.TrimSpace(declared))
	s = strings.TrimSuffix(s, " unsigned")
	return s
}
