package kin

import "context"

// Kind is the relation inferred between an ordered pair of tables.
type Kind int

// Relation kinds, in inference priority order.
const (
	// None means no relation is inferable between the pair.
	None Kind = iota
	// HasOne: the first table carries the second table's foreign key.
	HasOne
	// HasMany: the second table carries the first table's foreign key.
	HasMany
	// HasBridge: a bridge table carries both foreign keys (many-to-many).
	HasBridge
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case HasOne:
		return "has_one"
	case HasMany:
		return "has_many"
	case HasBridge:
		return "has_bridge"
	}
	return "none"
}

// Relation infers the relation kind between the ordered pair (a, b).
// It is a pure function of the two field maps and the table registry:
//
//  1. HasOne if a's field map contains b's foreign key.
//  2. HasMany if b's field map contains a's foreign key.
//  3. HasBridge if the conventional bridge table exists with both keys.
//  4. None otherwise.
//
// A table relates to itself only through its own foreign key (HasOne); the
// later rules fall out unchanged for the self pair.
func (db *Database) Relation(ctx context.Context, a, b *Table) (Kind, error) {
	if err := a.ensure(ctx); err != nil {
		return None, err
	}
	if err := b.ensure(ctx); err != nil {
		return None, err
	}
	if a.hasField(b.ForeignKey()) {
		return HasOne, nil
	}
	if b.hasField(a.ForeignKey()) {
		return HasMany, nil
	}
	if _, ok, err := db.Bridge(ctx, a, b); err != nil {
		return None, err
	} else if ok {
		return HasBridge, nil
	}
	return None, nil
}

// Bridge looks up the many-to-many bridge table for (a, b): the table named
// by both names sorted lexicographically and joined by an underscore,
// provided it exists and contains both participants' foreign keys. The pair
// order does not affect the candidate.
func (db *Database) Bridge(ctx context.Context, a, b *Table) (*Table, bool, error) {
	candidate := db.Table(bridgeName(a.Name(), b.Name()))
	if err := candidate.ensure(ctx); err != nil {
		if IsSchemaError(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !candidate.hasField(a.ForeignKey()) || !candidate.hasField(b.ForeignKey()) {
		return nil, false, nil
	}
	return candidate, true, nil
}
