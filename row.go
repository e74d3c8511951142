package kin

import (
	"context"
	"fmt"

	sqld "github.com/syssam/kin/dialect/sql"
)

// Row is one hydrated or staged record owned by exactly one Table. Its id
// stays null until the first save. Relate and unrelate write foreign keys
// or bridge rows immediately; field assignments are staged until Save.
type Row struct {
	table  *Table
	values map[string]any
	rel    map[string]any // lazily resolved relations, keyed by kind:table
}

// Table returns the owning table.
func (r *Row) Table() *Table { return r.table }

// ID returns the row's id, or nil before the first save.
func (r *Row) ID() any { return r.values["id"] }

// Get returns a field value. Sub-rows folded from joins are reachable under
// the joined table's name via Sub.
func (r *Row) Get(field string) (any, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Sub returns the nested sub-row a join folded under the given table name.
func (r *Row) Sub(table string) (*Row, bool) {
	sub, ok := r.values[table].(*Row)
	return sub, ok
}

// Set stages a field value. Unknown fields fail with InvalidDataError
// before any SQL is sent.
func (r *Row) Set(field string, v any) error {
	if !r.table.hasField(field) {
		return NewInvalidDataError(r.table.Name(), field)
	}
	r.values[field] = v
	return nil
}

// Values returns a copy of the staged field values, excluding folded
// sub-rows.
func (r *Row) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		if _, ok := v.(*Row); ok {
			continue
		}
		out[k] = v
	}
	return out
}

// staged returns the writable payload: every plain field except id.
func (r *Row) staged() map[string]any {
	out := r.Values()
	delete(out, "id")
	return out
}

// Save persists the staged values: an insert when the id is null, an update
// otherwise. After the first save the id is set from the engine.
func (r *Row) Save(ctx context.Context) error {
	if r.ID() == nil {
		id, err := r.table.Insert(r.staged()).Run(ctx)
		if err != nil {
			return err
		}
		r.values["id"] = id
		return nil
	}
	data := r.staged()
	if len(data) == 0 {
		return nil
	}
	_, err := r.table.Update(data).ByID(r.ID()).Run(ctx)
	return err
}

// Delete removes the record from storage and resets the id to null. The
// in-memory row stays usable and can be saved again as a new record.
func (r *Row) Delete(ctx context.Context) error {
	if r.ID() == nil {
		return NewConversionError(r.table.Name(), "id", nil, fmt.Errorf("row is unsaved"))
	}
	_, err := r.table.Delete().forRow(r).Run(ctx)
	return err
}

// Refresh reloads the row's fields from storage.
func (r *Row) Refresh(ctx context.Context) error {
	if r.ID() == nil {
		return NewConversionError(r.table.Name(), "id", nil, fmt.Errorf("row is unsaved"))
	}
	fresh, err := r.table.Select().ByID(r.ID()).One(ctx)
	if err != nil {
		return err
	}
	r.values = fresh.values
	r.invalidateRelations()
	return nil
}

// Relate links this row to the others, one immediate write per row. The
// side carrying the foreign key is chosen by the inferred relation: HasOne
// writes this row's key, HasMany writes the other row's, HasBridge inserts
// a bridge row with both. Every member is attempted; failures are returned
// as one aggregate error.
func (r *Row) Relate(ctx context.Context, others ...*Row) error {
	var errs []error
	for _, o := range others {
		if err := r.relateOne(ctx, o); err != nil {
			errs = append(errs, err)
		}
		o.invalidateRelations()
	}
	r.invalidateRelations()
	return NewAggregateError(errs...)
}

func (r *Row) relateOne(ctx context.Context, o *Row) error {
	kind, err := r.table.db.Relation(ctx, r.table, o.table)
	if err != nil {
		return err
	}
	switch kind {
	case HasOne:
		if o.ID() == nil {
			return NewConversionError(o.table.Name(), "id", nil, fmt.Errorf("row is unsaved"))
		}
		fk := o.table.ForeignKey()
		if r.ID() == nil {
			// Unsaved row: the key is staged and persists with the first save.
			r.values[fk] = o.ID()
			return nil
		}
		if _, err := r.table.Update(map[string]any{fk: o.ID()}).ByID(r.ID()).Run(ctx); err != nil {
			return err
		}
		r.values[fk] = o.ID()
		return nil
	case HasMany:
		if r.ID() == nil {
			return NewConversionError(r.table.Name(), "id", nil, fmt.Errorf("row is unsaved"))
		}
		fk := r.table.ForeignKey()
		if o.ID() == nil {
			o.values[fk] = r.ID()
			return nil
		}
		if _, err := o.table.Update(map[string]any{fk: r.ID()}).ByID(o.ID()).Run(ctx); err != nil {
			return err
		}
		o.values[fk] = r.ID()
		return nil
	case HasBridge:
		if r.ID() == nil || o.ID() == nil {
			return NewConversionError(r.table.Name(), "id", nil, fmt.Errorf("row is unsaved"))
		}
		bridge, _, err := r.table.db.Bridge(ctx, r.table, o.table)
		if err != nil {
			return err
		}
		_, err = bridge.Insert(map[string]any{
			r.table.ForeignKey(): r.ID(),
			o.table.ForeignKey(): o.ID(),
		}).Run(ctx)
		if err != nil && sqld.IsConstraintViolation(err) {
			// The pair already exists; relate is idempotent there.
			return nil
		}
		return err
	default:
		return NewRelationError(r.table.Name(), o.table.Name())
	}
}

// Unrelate removes the link to the other row: the foreign key is nulled
// (HasOne/HasMany) or the exact bridge pair deleted (HasBridge). The
// related row itself is never deleted. Unrelating an absent link is a
// no-op.
func (r *Row) Unrelate(ctx context.Context, o *Row) error {
	kind, err := r.table.db.Relation(ctx, r.table, o.table)
	if err != nil {
		return err
	}
	defer func() {
		r.invalidateRelations()
		o.invalidateRelations()
	}()
	switch kind {
	case HasOne:
		if r.ID() == nil || o.ID() == nil {
			return nil
		}
		fk := o.table.ForeignKey()
		// Conditional on the current key so an absent link stays untouched.
		affected, err := r.table.Update(map[string]any{fk: nil}).
			ByID(r.ID()).Where(fk+" = ?", o.ID()).Run(ctx)
		if err != nil {
			return err
		}
		if affected > 0 {
			r.values[fk] = nil
		}
		return nil
	case HasMany:
		if r.ID() == nil || o.ID() == nil {
			return nil
		}
		fk := r.table.ForeignKey()
		affected, err := o.table.Update(map[string]any{fk: nil}).
			ByID(o.ID()).Where(fk+" = ?", r.ID()).Run(ctx)
		if err != nil {
			return err
		}
		if affected > 0 {
			o.values[fk] = nil
		}
		return nil
	case HasBridge:
		if r.ID() == nil || o.ID() == nil {
			return nil
		}
		bridge, _, err := r.table.db.Bridge(ctx, r.table, o.table)
		if err != nil {
			return err
		}
		_, err = bridge.Delete().
			Where(r.table.ForeignKey()+" = ?", r.ID()).
			Where(o.table.ForeignKey()+" = ?", o.ID()).
			Run(ctx)
		return err
	default:
		return NewRelationError(r.table.Name(), o.table.Name())
	}
}

// UnrelateAll removes every link between this row and rows of the target
// table: all matching foreign keys are nulled, or all bridge rows carrying
// this row's key are deleted.
func (r *Row) UnrelateAll(ctx context.Context, target *Table) error {
	kind, err := r.table.db.Relation(ctx, r.table, target)
	if err != nil {
		return err
	}
	defer r.invalidateRelations()
	switch kind {
	case HasOne:
		if r.ID() == nil {
			return nil
		}
		fk := target.ForeignKey()
		if _, err := r.table.Update(map[string]any{fk: nil}).ByID(r.ID()).Run(ctx); err != nil {
			return err
		}
		r.values[fk] = nil
		return nil
	case HasMany:
		if r.ID() == nil {
			return nil
		}
		fk := r.table.ForeignKey()
		_, err := target.Update(map[string]any{fk: nil}).Where(fk+" = ?", r.ID()).Run(ctx)
		return err
	case HasBridge:
		if r.ID() == nil {
			return nil
		}
		bridge, _, err := r.table.db.Bridge(ctx, r.table, target)
		if err != nil {
			return err
		}
		_, err = bridge.Delete().Where(r.table.ForeignKey()+" = ?", r.ID()).Run(ctx)
		return err
	default:
		return NewRelationError(r.table.Name(), target.Name())
	}
}

// Related resolves the single row this row's foreign key points at
// (HasOne). The result is cached until the next relate/unrelate.
func (r *Row) Related(ctx context.Context, target *Table) (*Row, error) {
	key := "one:" + target.Name()
	if cached, ok := r.rel[key]; ok {
		return cached.(*Row), nil
	}
	kind, err := r.table.db.Relation(ctx, r.table, target)
	if err != nil {
		return nil, err
	}
	if kind != HasOne {
		return nil, NewRelationError(r.table.Name(), target.Name())
	}
	fkVal := r.values[target.ForeignKey()]
	if fkVal == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, Singular(target.Name()))
	}
	row, err := target.Select().ByID(fkVal).One(ctx)
	if err != nil {
		return nil, err
	}
	r.cacheRelation(key, row)
	return row, nil
}

// RelatedAll resolves every row of the target table related to this row,
// across all relation kinds. The result is cached until the next
// relate/unrelate.
func (r *Row) RelatedAll(ctx context.Context, target *Table) (*Collection, error) {
	key := "all:" + target.Name()
	if cached, ok := r.rel[key]; ok {
		return cached.(*Collection), nil
	}
	coll, err := target.Select().RelatedWith(r).All(ctx)
	if err != nil {
		return nil, err
	}
	r.cacheRelation(key, coll)
	return coll, nil
}

func (r *Row) cacheRelation(key string, v any) {
	if r.rel == nil {
		r.rel = make(map[string]any)
	}
	r.rel[key] = v
}

// invalidateRelations drops the cached relation lookups. Called on every
// relate/unrelate and on delete.
func (r *Row) invalidateRelations() {
	r.rel = nil
}
