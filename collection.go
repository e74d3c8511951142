package kin

import (
	"context"
	"fmt"
)

// Collection is an ordered, id-keyed group of rows from one table.
// Insertion order is preserved for iteration; it carries no query
// semantics.
type Collection struct {
	table *Table
	list  []*Row
	rows  map[any]*Row
}

// Table returns the owning table.
func (c *Collection) Table() *Table { return c.table }

// Add appends a row. The row must belong to the collection's table, carry
// an id, and the id must be unique within the collection.
func (c *Collection) Add(r *Row) error {
	if r.table != c.table {
		return NewInvalidDataError(c.table.Name(), r.table.Name())
	}
	id := r.ID()
	if id == nil {
		return NewConversionError(c.table.Name(), "id", nil, fmt.Errorf("row is unsaved"))
	}
	if _, ok := c.rows[id]; ok {
		return NewConversionError(c.table.Name(), "id", id, fmt.Errorf("duplicate id in collection"))
	}
	c.append(r)
	return nil
}

// append is the hydration path: rows without an id (partial column
// selections) keep their position but are not reachable by Get.
func (c *Collection) append(r *Row) {
	c.list = append(c.list, r)
	if id := r.ID(); id != nil {
		if _, ok := c.rows[id]; !ok {
			c.rows[id] = r
		}
	}
}

// Len returns the number of rows.
func (c *Collection) Len() int { return len(c.list) }

// Rows returns the rows in insertion order.
func (c *Collection) Rows() []*Row {
	out := make([]*Row, len(c.list))
	copy(out, c.list)
	return out
}

// IDs returns the member ids in insertion order.
func (c *Collection) IDs() []any {
	out := make([]any, 0, len(c.list))
	for _, r := range c.list {
		if id := r.ID(); id != nil {
			out = append(out, id)
		}
	}
	return out
}

// Get returns the row with the given id.
func (c *Collection) Get(id any) (*Row, bool) {
	r, ok := c.rows[id]
	return r, ok
}

// Relate links every member row to the others, in iteration order. All
// members are attempted before an aggregate error is returned, so a single
// failure does not stop the rest.
func (c *Collection) Relate(ctx context.Context, others ...*Row) error {
	var errs []error
	for _, r := range c.list {
		if err := r.Relate(ctx, others...); err != nil {
			errs = append(errs, err)
		}
	}
	return NewAggregateError(errs...)
}

// Unrelate removes the link between every member row and the other row, in
// iteration order, without short-circuiting on individual failures.
func (c *Collection) Unrelate(ctx context.Context, other *Row) error {
	var errs []error
	for _, r := range c.list {
		if err := r.Unrelate(ctx, other); err != nil {
			errs = append(errs, err)
		}
	}
	return NewAggregateError(errs...)
}

// UnrelateAll applies Row.UnrelateAll to every member, in iteration order.
func (c *Collection) UnrelateAll(ctx context.Context, target *Table) error {
	var errs []error
	for _, r := range c.list {
		if err := r.UnrelateAll(ctx, target); err != nil {
			errs = append(errs, err)
		}
	}
	return NewAggregateError(errs...)
}
