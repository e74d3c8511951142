package kin

import (
	"context"
	"strings"
	"sync"

	"github.com/syssam/kin/fieldtype"
)

// Table is the typed handle for one relational table: its name, its ordered
// field map (field name to converter) and its conventional foreign-key name.
// A Table is immutable after construction except for the lazy metadata fill,
// which runs at most one catalog round-trip per instance. Schema changes
// after that fill are not observed.
type Table struct {
	db   *Database
	name string

	mu         sync.Mutex
	loaded     bool
	loadErr    error
	fieldNames []string
	converters map[string]fieldtype.Converter
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// ForeignKey returns the conventional foreign-key column name other tables
// use to reference this one: "<table>_id".
func (t *Table) ForeignKey() string { return t.name + "_id" }

// ensure fills the field map from the engine's catalog on first use.
// Concurrent fills of the same table are deduplicated. A table missing from
// the catalog is remembered as a SchemaError; transient driver failures are
// not cached and the next call retries.
func (t *Table) ensure(ctx context.Context) error {
	t.mu.Lock()
	if t.loaded {
		err := t.loadErr
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	_, err, _ := t.db.sf.Do("describe:"+t.name, func() (any, error) {
		cols, err := t.db.drv.DescribeColumns(ctx, t.db.dialect, t.name)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.loaded {
			return nil, t.loadErr
		}
		if len(cols) == 0 {
			t.loaded = true
			t.loadErr = NewSchemaError(t.name)
			return nil, t.loadErr
		}
		t.fieldNames = make([]string, 0, len(cols))
		t.converters = make(map[string]fieldtype.Converter, len(cols))
		for _, c := range cols {
			t.fieldNames = append(t.fieldNames, c.Name)
			t.converters[c.Name] = t.db.types.Lookup(c.Name, c.Type)
		}
		t.loaded = true
		return nil, nil
	})
	return err
}

// Fields returns the ordered field names, filling metadata if needed.
func (t *Table) Fields(ctx context.Context) ([]string, error) {
	if err := t.ensure(ctx); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.fieldNames))
	copy(out, t.fieldNames)
	return out, nil
}

// hasField reports whether the loaded field map contains the column.
func (t *Table) hasField(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.converters[name]
	return ok
}

// converter returns the converter for a field. Unknown fields convert
// generically, so join-folded columns of unregistered shape still hydrate.
func (t *Table) converter(name string) fieldtype.Converter {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.converters[name]; ok {
		return c
	}
	return fieldtype.Generic{}
}

// toDatabase converts one field value to its database representation,
// wrapping converter rejections as InvalidDataError.
func (t *Table) toDatabase(field string, v any) (any, error) {
	out, err := t.converter(field).ToDatabase(v)
	if err != nil {
		return nil, NewConversionError(t.name, field, v, err)
	}
	return out, nil
}

// fromDatabase converts one scalar returned by the driver to its field value.
func (t *Table) fromDatabase(field string, v any) (any, error) {
	out, err := t.converter(field).FromDatabase(v)
	if err != nil {
		return nil, NewConversionError(t.name, field, v, err)
	}
	return out, nil
}

// writeTargets returns the cache scope of a write to this table: the table
// itself plus every table its foreign-key columns reference. Related selects
// on a referenced table join this one, so their cached sets go stale when
// this table changes.
func (t *Table) writeTargets() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	targets := []string{t.name}
	for _, f := range t.fieldNames {
		ref, ok := strings.CutSuffix(f, "_id")
		if !ok || ref == "" || ref == t.name {
			continue
		}
		targets = append(targets, ref)
	}
	return targets
}

// validateData checks a payload against the field map. Unknown keys fail
// with InvalidDataError before any SQL is sent.
func (t *Table) validateData(ctx context.Context, data map[string]any) error {
	if err := t.ensure(ctx); err != nil {
		return err
	}
	for k := range data {
		if !t.hasField(k) {
			return NewInvalidDataError(t.name, k)
		}
	}
	return nil
}

// Select returns a select builder for this table. Without explicit columns
// it selects every field, table-qualified.
func (t *Table) Select(columns ...string) *SelectQuery {
	return &SelectQuery{selector: selector{table: t}, columns: columns}
}

// Insert returns an insert builder for the data payload.
func (t *Table) Insert(data map[string]any) *InsertQuery {
	return &InsertQuery{table: t, data: data}
}

// Update returns an update builder staging the data payload.
func (t *Table) Update(data map[string]any) *UpdateQuery {
	return &UpdateQuery{table: t, data: data}
}

// Delete returns a delete builder.
func (t *Table) Delete() *DeleteQuery {
	return &DeleteQuery{table: t}
}

// Count returns a COUNT(*) builder with the same composition surface as
// Select.
func (t *Table) Count() *CountQuery {
	return &CountQuery{selector: selector{table: t}}
}

// Sum returns a SUM(field) builder. Summing an all-null column yields 0.
func (t *Table) Sum(field string) *SumQuery {
	return &SumQuery{selector: selector{table: t}, field: field}
}

// NewRow constructs an unsaved Row from initial data. The id stays null
// until the first save. Unknown keys fail with InvalidDataError.
func (t *Table) NewRow(ctx context.Context, data map[string]any) (*Row, error) {
	if err := t.validateData(ctx, data); err != nil {
		return nil, err
	}
	values := make(map[string]any, len(data)+1)
	for k, v := range data {
		values[k] = v
	}
	return &Row{table: t, values: values}, nil
}

// NewCollection constructs a collection of rows owned by this table.
// Every row must belong to this table and carry an id.
func (t *Table) NewCollection(rows ...*Row) (*Collection, error) {
	c := &Collection{table: t, rows: make(map[any]*Row, len(rows))}
	for _, r := range rows {
		if err := c.Add(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}
