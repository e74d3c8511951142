package kin

import (
	"context"
	"fmt"
)

// UpdateQuery compiles and runs UPDATE statements.
type UpdateQuery struct {
	table *Table
	data  map[string]any
	ids   []any
	conds []cond
	limit int
}

// Where adds a WHERE fragment with ? placeholders.
func (q *UpdateQuery) Where(sql string, args ...any) *UpdateQuery {
	q.conds = append(q.conds, cond{sql: sql, args: args})
	return q
}

// ByID restricts the update to the given id(s).
func (q *UpdateQuery) ByID(ids ...any) *UpdateQuery {
	q.ids = append(q.ids, ids...)
	return q
}

// Limit caps the number of updated rows. Compile rejects it on dialects
// whose engine does not accept LIMIT in mutations.
func (q *UpdateQuery) Limit(n int) *UpdateQuery {
	q.limit = n
	return q
}

// Compile returns the SQL text and ordered parameter list. The payload is
// validated against the table's field map before anything is sent.
func (q *UpdateQuery) Compile(ctx context.Context) (string, []any, error) {
	if err := q.table.validateData(ctx, q.data); err != nil {
		return "", nil, err
	}
	d := q.table.db.dialect
	b := newBuilder(d)
	b.raw("UPDATE ").ident(q.table.Name()).raw(" SET ")
	fields, err := q.table.Fields(ctx)
	if err != nil {
		return "", nil, err
	}
	n := 0
	for _, f := range fields {
		v, ok := q.data[f]
		if !ok {
			continue
		}
		if n > 0 {
			b.raw(", ")
		}
		conv, err := q.table.toDatabase(f, v)
		if err != nil {
			return "", nil, err
		}
		b.ident(f).raw(" = ").arg(conv)
		n++
	}
	if n == 0 {
		return "", nil, fmt.Errorf("kin: update of %s has no fields to set", q.table.Name())
	}
	if err := writeMutationTail(b, q.table, q.ids, q.conds, q.limit); err != nil {
		return "", nil, err
	}
	return b.String(), b.args, nil
}

// Run executes the update and returns the number of affected rows.
func (q *UpdateQuery) Run(ctx context.Context) (int64, error) {
	query, args, err := q.Compile(ctx)
	if err != nil {
		return 0, err
	}
	res, err := q.table.db.exec(ctx, q.table, query, args)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &DriverError{Query: query, Args: args, Err: err}
	}
	return affected, nil
}

// writeMutationTail renders the WHERE/LIMIT tail shared by Update and
// Delete.
func writeMutationTail(b *builder, t *Table, ids []any, conds []cond, limit int) error {
	wrote := false
	writeAnd := func() {
		if wrote {
			b.raw(" AND ")
		} else {
			b.raw(" WHERE ")
			wrote = true
		}
	}
	if len(ids) > 0 {
		writeAnd()
		conv := make([]any, len(ids))
		for i, id := range ids {
			v, err := t.toDatabase("id", id)
			if err != nil {
				return err
			}
			conv[i] = v
		}
		if len(conv) == 1 {
			b.ident("id").raw(" = ").arg(conv[0])
		} else {
			b.ident("id").raw(" IN (")
			for i, v := range conv {
				if i > 0 {
					b.raw(", ")
				}
				b.arg(v)
			}
			b.raw(")")
		}
	}
	for _, c := range conds {
		writeAnd()
		b.fragment(c.sql, c.args...)
	}
	if limit > 0 {
		d := t.db.dialect
		if !d.SupportsMutationLimit() {
			return fmt.Errorf("kin: dialect %s does not support LIMIT on UPDATE or DELETE", d.Name())
		}
		b.raw(d.LimitClause(limit, 0))
	}
	return nil
}
