package kin

import (
	"context"
	"strconv"
)

// CountQuery compiles and runs SELECT COUNT(*) with the same WHERE/LIMIT
// and RelatedWith composition as Select.
type CountQuery struct {
	selector
}

// Where adds a WHERE fragment with ? placeholders.
func (q *CountQuery) Where(sql string, args ...any) *CountQuery {
	q.where(sql, args...)
	return q
}

// ByID restricts the count to the given id(s).
func (q *CountQuery) ByID(ids ...any) *CountQuery {
	q.byID(ids...)
	return q
}

// RelatedWith constrains the count to rows related to the target.
func (q *CountQuery) RelatedWith(target relTarget) *CountQuery {
	q.relatedWith(target)
	return q
}

// Limit caps the counted row window.
func (q *CountQuery) Limit(n int) *CountQuery {
	q.limit = n
	return q
}

// Compile returns the SQL text and ordered parameter list.
func (q *CountQuery) Compile(ctx context.Context) (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	if err := q.table.ensure(ctx); err != nil {
		return "", nil, err
	}
	b := newBuilder(q.table.db.dialect)
	b.raw("SELECT COUNT(*) FROM ").ident(q.table.Name())
	if err := q.compileTail(ctx, b); err != nil {
		return "", nil, err
	}
	return b.String(), b.args, nil
}

// Run executes the count and returns the scalar result.
func (q *CountQuery) Run(ctx context.Context) (int64, error) {
	query, args, err := q.Compile(ctx)
	if err != nil {
		return 0, err
	}
	return q.table.db.scalarInt(ctx, q.table.Name(), "count", query, args)
}

// SumQuery compiles and runs SELECT SUM(field) with the same composition
// surface as Count. The sum of an all-null column is 0, mirroring the
// COALESCE the compiler emits.
type SumQuery struct {
	selector
	field string
}

// Where adds a WHERE fragment with ? placeholders.
func (q *SumQuery) Where(sql string, args ...any) *SumQuery {
	q.where(sql, args...)
	return q
}

// ByID restricts the sum to the given id(s).
func (q *SumQuery) ByID(ids ...any) *SumQuery {
	q.byID(ids...)
	return q
}

// RelatedWith constrains the sum to rows related to the target.
func (q *SumQuery) RelatedWith(target relTarget) *SumQuery {
	q.relatedWith(target)
	return q
}

// Limit caps the summed row window.
func (q *SumQuery) Limit(n int) *SumQuery {
	q.limit = n
	return q
}

// Compile returns the SQL text and ordered parameter list.
func (q *SumQuery) Compile(ctx context.Context) (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	if err := q.table.ensure(ctx); err != nil {
		return "", nil, err
	}
	if !q.table.hasField(q.field) {
		return "", nil, NewFieldError(q.table.Name(), q.field)
	}
	b := newBuilder(q.table.db.dialect)
	b.raw("SELECT COALESCE(SUM(").ident(q.table.Name() + "." + q.field).raw("), 0) FROM ").ident(q.table.Name())
	if err := q.compileTail(ctx, b); err != nil {
		return "", nil, err
	}
	return b.String(), b.args, nil
}

// Run executes the sum and returns the scalar result.
func (q *SumQuery) Run(ctx context.Context) (int64, error) {
	query, args, err := q.Compile(ctx)
	if err != nil {
		return 0, err
	}
	return q.table.db.scalarInt(ctx, q.table.Name(), "sum", query, args)
}

// scalarInt runs a single-value query and widens the result to int64.
func (db *Database) scalarInt(ctx context.Context, table, op, query string, args []any) (int64, error) {
	recs, err := db.rawRows(ctx, table, op, query, args)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 || len(recs[0].Vals) == 0 {
		return 0, nil
	}
	switch v := normalizeScalar(recs[0].Vals[0]).(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, &DriverError{Query: query, Args: args, Err: err}
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, &DriverError{Query: query, Args: args, Err: err}
		}
		return n, nil
	default:
		return 0, &DriverError{Query: query, Args: args, Err: strconv.ErrSyntax}
	}
}
