package kin

import "context"

// DeleteQuery compiles and runs DELETE statements. A delete bound to a Row
// resets that row's id on success; the in-memory object stays usable.
type DeleteQuery struct {
	table *Table
	ids   []any
	conds []cond
	limit int
	row   *Row
}

// Where adds a WHERE fragment with ? placeholders.
func (q *DeleteQuery) Where(sql string, args ...any) *DeleteQuery {
	q.conds = append(q.conds, cond{sql: sql, args: args})
	return q
}

// ByID restricts the delete to the given id(s).
func (q *DeleteQuery) ByID(ids ...any) *DeleteQuery {
	q.ids = append(q.ids, ids...)
	return q
}

// Limit caps the number of deleted rows. Compile rejects it on dialects
// whose engine does not accept LIMIT in mutations.
func (q *DeleteQuery) Limit(n int) *DeleteQuery {
	q.limit = n
	return q
}

// forRow binds the delete to a single row whose id is reset on success.
func (q *DeleteQuery) forRow(r *Row) *DeleteQuery {
	q.row = r
	return q.ByID(r.ID())
}

// Compile returns the SQL text and ordered parameter list.
func (q *DeleteQuery) Compile(ctx context.Context) (string, []any, error) {
	if err := q.table.ensure(ctx); err != nil {
		return "", nil, err
	}
	b := newBuilder(q.table.db.dialect)
	b.raw("DELETE FROM ").ident(q.table.Name())
	if err := writeMutationTail(b, q.table, q.ids, q.conds, q.limit); err != nil {
		return "", nil, err
	}
	return b.String(), b.args, nil
}

// Run executes the delete and returns the number of affected rows.
func (q *DeleteQuery) Run(ctx context.Context) (int64, error) {
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
	if q.row != nil && affected > 0 {
		q.row.values["id"] = nil
		q.row.invalidateRelations()
	}
	return affected, nil
}
