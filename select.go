package kin

import (
	"context"
	"fmt"
	"strings"
)

// cond is one WHERE fragment with its arguments. Fragments use ? markers
// regardless of dialect; markers are rewritten at compile time.
type cond struct {
	sql  string
	args []any
}

// relTarget kinds accepted by RelatedWith.
type relTarget interface{ relatedTable() *Table }

func (t *Table) relatedTable() *Table      { return t }
func (r *Row) relatedTable() *Table        { return r.table }
func (c *Collection) relatedTable() *Table { return c.table }

// selector carries the composition state shared by Select, Count and Sum:
// relation constraint, WHERE fragments, id membership, ordering and limits.
// Compilation is pure; the selector is never mutated by Compile.
type selector struct {
	table   *Table
	related relTarget
	ids     []any
	conds   []cond
	orderBy []string
	limit   int
	offset  int
	err     error
}

func (s *selector) where(sql string, args ...any) {
	s.conds = append(s.conds, cond{sql: sql, args: args})
}

func (s *selector) byID(ids ...any) {
	s.ids = append(s.ids, ids...)
}

func (s *selector) relatedWith(target relTarget) {
	if s.related != nil && s.err == nil {
		s.err = fmt.Errorf("kin: %s query already has a relation constraint", s.table.Name())
	}
	s.related = target
}

// relClause is the compiled form of a RelatedWith constraint.
type relClause struct {
	joinTable string // empty when no join is needed
	onLeft    string // qualified column names for the ON equality
	onRight   string
	col       string // qualified column the WHERE applies to
	ids       []any  // nil for the unbound (table) form
	bound     bool
	empty     bool // bound to an empty collection: match nothing
}

// resolveRelated turns the relation target into join and WHERE shape, per
// the inferred kind. A pair without a relation fails compilation with a
// RelationError.
func (s *selector) resolveRelated(ctx context.Context) (*relClause, error) {
	if s.related == nil {
		return nil, nil
	}
	target := s.related.relatedTable()
	kind, err := s.table.db.Relation(ctx, s.table, target)
	if err != nil {
		return nil, err
	}
	rc := &relClause{}
	switch v := s.related.(type) {
	case *Row:
		id := v.ID()
		if id == nil {
			return nil, NewConversionError(v.table.Name(), "id", nil, fmt.Errorf("row is unsaved"))
		}
		rc.bound = true
		rc.ids = []any{id}
	case *Collection:
		rc.bound = true
		rc.ids = v.IDs()
		rc.empty = len(rc.ids) == 0
	}
	for i, id := range rc.ids {
		conv, err := target.toDatabase("id", id)
		if err != nil {
			return nil, err
		}
		rc.ids[i] = conv
	}
	switch kind {
	case HasOne:
		rc.col = s.table.Name() + "." + target.ForeignKey()
	case HasMany:
		rc.joinTable = target.Name()
		rc.onLeft = target.Name() + "." + s.table.ForeignKey()
		rc.onRight = s.table.Name() + ".id"
		if rc.bound {
			rc.col = target.Name() + ".id"
		} else {
			rc.col = rc.onLeft
		}
	case HasBridge:
		bridge, _, err := s.table.db.Bridge(ctx, s.table, target)
		if err != nil {
			return nil, err
		}
		rc.joinTable = bridge.Name()
		rc.onLeft = bridge.Name() + "." + s.table.ForeignKey()
		rc.onRight = s.table.Name() + ".id"
		rc.col = bridge.Name() + "." + target.ForeignKey()
	default:
		return nil, NewRelationError(s.table.Name(), target.Name())
	}
	return rc, nil
}

// compileTail renders JOIN, WHERE, ORDER BY and LIMIT into the builder.
func (s *selector) compileTail(ctx context.Context, b *builder) error {
	rc, err := s.resolveRelated(ctx)
	if err != nil {
		return err
	}
	if rc != nil && rc.joinTable != "" {
		b.raw(" LEFT JOIN ").ident(rc.joinTable).raw(" ON ")
		b.ident(rc.onLeft).raw(" = ").ident(rc.onRight)
	}
	wrote := false
	writeAnd := func() {
		if wrote {
			b.raw(" AND ")
		} else {
			b.raw(" WHERE ")
			wrote = true
		}
	}
	if rc != nil {
		writeAnd()
		switch {
		case rc.empty:
			b.raw("1 = 0")
		case rc.bound && len(rc.ids) == 1:
			b.ident(rc.col).raw(" = ").arg(rc.ids[0])
		case rc.bound:
			b.ident(rc.col).raw(" IN (")
			for i, id := range rc.ids {
				if i > 0 {
					b.raw(", ")
				}
				b.arg(id)
			}
			b.raw(")")
		default:
			b.ident(rc.col).raw(" IS NOT NULL")
		}
	}
	if len(s.ids) > 0 {
		writeAnd()
		ids := make([]any, len(s.ids))
		for i, id := range s.ids {
			conv, err := s.table.toDatabase("id", id)
			if err != nil {
				return err
			}
			ids[i] = conv
		}
		col := s.table.Name() + ".id"
		if len(ids) == 1 {
			b.ident(col).raw(" = ").arg(ids[0])
		} else {
			b.ident(col).raw(" IN (")
			for i, id := range ids {
				if i > 0 {
					b.raw(", ")
				}
				b.arg(id)
			}
			b.raw(")")
		}
	}
	for _, c := range s.conds {
		writeAnd()
		b.fragment(c.sql, c.args...)
	}
	if len(s.orderBy) > 0 {
		b.raw(" ORDER BY ")
		for i, term := range s.orderBy {
			if i > 0 {
				b.raw(", ")
			}
			s.writeOrderTerm(b, term)
		}
	}
	b.raw(s.table.db.dialect.LimitClause(s.limit, s.offset))
	return nil
}

// writeOrderTerm qualifies a bare column name with the table; anything more
// structured ("price DESC", "total / count") passes through with only its
// leading identifier qualified when it names a column.
func (s *selector) writeOrderTerm(b *builder, term string) {
	head, rest, _ := strings.Cut(strings.TrimSpace(term), " ")
	if !strings.Contains(head, ".") && s.table.hasField(head) {
		head = s.table.Name() + "." + head
	}
	b.ident(head)
	if rest != "" {
		b.raw(" " + rest)
	}
}

// SelectQuery compiles and runs relation-aware SELECT statements.
type SelectQuery struct {
	selector
	columns []string
}

// Where adds a WHERE fragment with ? placeholders.
func (q *SelectQuery) Where(sql string, args ...any) *SelectQuery {
	q.where(sql, args...)
	return q
}

// ByID restricts the query to the given id(s).
func (q *SelectQuery) ByID(ids ...any) *SelectQuery {
	q.byID(ids...)
	return q
}

// RelatedWith constrains results to rows related to the target: a *Table
// (unbound), a *Row, or a *Collection (membership over its ids). The clause
// shape follows the inferred relation kind; an unrelated pair fails at
// Compile with a RelationError.
func (q *SelectQuery) RelatedWith(target relTarget) *SelectQuery {
	q.relatedWith(target)
	return q
}

// OrderBy appends ordering terms.
func (q *SelectQuery) OrderBy(terms ...string) *SelectQuery {
	q.orderBy = append(q.orderBy, terms...)
	return q
}

// Limit sets the maximum number of rows.
func (q *SelectQuery) Limit(n int) *SelectQuery {
	q.limit = n
	return q
}

// Offset sets the number of rows skipped.
func (q *SelectQuery) Offset(n int) *SelectQuery {
	q.offset = n
	return q
}

// Compile returns the SQL text and ordered parameter list. It is pure and
// repeatable; no SQL is sent.
func (q *SelectQuery) Compile(ctx context.Context) (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	if err := q.table.ensure(ctx); err != nil {
		return "", nil, err
	}
	b := newBuilder(q.table.db.dialect)
	b.raw("SELECT ")
	cols := q.columns
	if len(cols) == 0 {
		fields, err := q.table.Fields(ctx)
		if err != nil {
			return "", nil, err
		}
		cols = make([]string, len(fields))
		for i, f := range fields {
			cols[i] = q.table.Name() + "." + f
		}
	}
	for i, col := range cols {
		if i > 0 {
			b.raw(", ")
		}
		q.writeColumn(b, col)
	}
	b.raw(" FROM ").ident(q.table.Name())
	if err := q.compileTail(ctx, b); err != nil {
		return "", nil, err
	}
	return b.String(), b.args, nil
}

// writeColumn qualifies bare columns with the table and aliases columns of
// other tables to their dotted form, so join output folds into sub-rows.
func (q *SelectQuery) writeColumn(b *builder, col string) {
	prefix, _, qualified := strings.Cut(col, ".")
	switch {
	case !qualified:
		b.ident(q.table.Name() + "." + col)
	case prefix == q.table.Name() || strings.HasSuffix(col, ".*"):
		b.ident(col)
	default:
		// Alias keeps the dotted name in the result set.
		b.ident(col).raw(" AS " + b.d.QuoteAlias(col))
	}
}

// All runs the query and hydrates a Collection, converting every scalar
// through its field's converter and folding dotted columns into sub-rows.
func (q *SelectQuery) All(ctx context.Context) (*Collection, error) {
	query, args, err := q.Compile(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := q.table.db.rawRows(ctx, q.table.Name(), "select", query, args)
	if err != nil {
		return nil, err
	}
	coll := &Collection{table: q.table, rows: make(map[any]*Row, len(raw))}
	for _, rec := range raw {
		row, err := q.table.hydrate(rec)
		if err != nil {
			return nil, err
		}
		coll.append(row)
	}
	return coll, nil
}

// One runs the query limited to a single row. It returns ErrNotFound when
// nothing matches.
func (q *SelectQuery) One(ctx context.Context) (*Row, error) {
	one := *q
	if one.limit == 0 {
		one.limit = 1
	}
	coll, err := one.All(ctx)
	if err != nil {
		return nil, err
	}
	rows := coll.Rows()
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, Singular(q.table.Name()))
	}
	return rows[0], nil
}

// hydrate converts one raw record into a Row, folding dotted columns
// produced by joins into nested sub-rows keyed by the joined table's name.
func (t *Table) hydrate(rec rawRecord) (*Row, error) {
	row := &Row{table: t, values: make(map[string]any, len(rec.Cols))}
	subs := make(map[string]*Row)
	for i, col := range rec.Cols {
		prefix, field, dotted := strings.Cut(col, ".")
		if dotted && prefix != t.Name() {
			sub := subs[prefix]
			if sub == nil {
				subTable := t.db.Table(prefix)
				sub = &Row{table: subTable, values: make(map[string]any)}
				subs[prefix] = sub
				row.values[prefix] = sub
			}
			v, err := sub.table.fromDatabase(field, rec.Vals[i])
			if err != nil {
				return nil, err
			}
			sub.values[field] = v
			continue
		}
		name := col
		if dotted {
			name = field
		}
		v, err := t.fromDatabase(name, rec.Vals[i])
		if err != nil {
			return nil, err
		}
		row.values[name] = v
	}
	return row, nil
}
