package kin

import (
	"context"
	"fmt"
)

// InsertQuery compiles and runs INSERT statements. An empty payload still
// inserts a row with only the id auto-assigned.
type InsertQuery struct {
	table    *Table
	data     map[string]any
	onDup    bool
	conflict []string
}

// OnDuplicate enables duplicate handling: on a conflicting unique key the
// existing row is updated with every given field and keeps its id. Dialects
// using ON CONFLICT syntax need the conflict columns; MySQL ignores them.
func (q *InsertQuery) OnDuplicate(conflict ...string) *InsertQuery {
	q.onDup = true
	q.conflict = conflict
	return q
}

// Compile returns the SQL text and ordered parameter list. The payload is
// validated against the table's field map before anything is sent.
func (q *InsertQuery) Compile(ctx context.Context) (string, []any, error) {
	if err := q.table.validateData(ctx, q.data); err != nil {
		return "", nil, err
	}
	d := q.table.db.dialect
	b := newBuilder(d)
	keys, err := q.orderedKeys(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(keys) == 0 {
		b.raw(d.InsertDefaults(q.table.Name()))
	} else {
		b.raw("INSERT INTO ").ident(q.table.Name()).raw(" (")
		for i, k := range keys {
			if i > 0 {
				b.raw(", ")
			}
			b.ident(k)
		}
		b.raw(") VALUES (")
		for i, k := range keys {
			if i > 0 {
				b.raw(", ")
			}
			v, err := q.table.toDatabase(k, q.data[k])
			if err != nil {
				return "", nil, err
			}
			b.arg(v)
		}
		b.raw(")")
	}
	if q.onDup {
		suffix, ok := d.Upsert(keys, q.conflict)
		if !ok {
			return "", nil, fmt.Errorf("kin: dialect %s needs conflict columns for duplicate handling", d.Name())
		}
		b.raw(suffix)
	}
	if d.SupportsReturning() {
		b.raw(" RETURNING ").ident("id")
	}
	return b.String(), b.args, nil
}

// Run executes the insert and returns the inserted id, converted through
// the id field's converter. With duplicate handling enabled a conflicting
// insert returns the existing row's unchanged id.
func (q *InsertQuery) Run(ctx context.Context) (any, error) {
	query, args, err := q.Compile(ctx)
	if err != nil {
		return nil, err
	}
	db := q.table.db
	var raw any
	if db.dialect.SupportsReturning() {
		rows, err := db.drv.Query(ctx, query, args)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, &DriverError{Query: query, Args: args, Err: err}
			}
			return nil, &DriverError{Query: query, Args: args, Err: fmt.Errorf("insert returned no id")}
		}
		if err := rows.Scan(&raw); err != nil {
			return nil, &DriverError{Query: query, Args: args, Err: err}
		}
	} else {
		res, err := db.drv.Exec(ctx, query, args)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, &DriverError{Query: query, Args: args, Err: err}
		}
		raw = id
	}
	db.invalidate(ctx, q.table.writeTargets()...)
	return q.table.fromDatabase("id", raw)
}

// orderedKeys returns the payload keys in the table's field order, so the
// compiled SQL is deterministic.
func (q *InsertQuery) orderedKeys(ctx context.Context) ([]string, error) {
	if len(q.data) == 0 {
		return nil, nil
	}
	fields, err := q.table.Fields(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(q.data))
	for _, f := range fields {
		if _, ok := q.data[f]; ok {
			keys = append(keys, f)
		}
	}
	return keys, nil
}
