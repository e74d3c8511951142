// Package kin maps relational tables onto typed rows and collections,
// inferring relations between tables from foreign-key naming conventions
// and compiling relation-aware SQL without hand-written joins.
//
// A column named <table>_id references that table's primary key. A table
// named after two tables (lexicographically ordered, joined by an
// underscore) holding both foreign keys is a many-to-many bridge. Everything
// else follows from those two conventions.
package kin

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/kin/dialect"
	sqld "github.com/syssam/kin/dialect/sql"
	"github.com/syssam/kin/fieldtype"
)

// Database is the registry of known tables (the scheme). It hands out Table
// handles, caches their metadata, and carries the driver every query
// executes through.
type Database struct {
	drv      *sqld.Driver
	dialect  dialect.Dialect
	types    *fieldtype.Registry
	log      *slog.Logger
	cache    Cache
	cacheTTL time.Duration

	mu     sync.RWMutex
	tables map[string]*Table
	sf     singleflight.Group
}

// Option configures a Database.
type Option func(*Database)

// WithTypes sets the field type registry. Defaults to fieldtype.Default.
func WithTypes(r *fieldtype.Registry) Option {
	return func(db *Database) { db.types = r }
}

// WithCache enables result caching for Select queries. Cached entries are
// dropped whenever their table is written, or when a table referencing it
// through a foreign key is written, so related sets never serve stale.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(db *Database) { db.cache, db.cacheTTL = c, ttl }
}

// WithSlog sets the logger used for cache and config reload diagnostics.
// Defaults to slog.Default.
func WithSlog(l *slog.Logger) Option {
	return func(db *Database) { db.log = l }
}

// New returns a Database over the given driver. The dialect strategy is
// resolved from the driver's dialect name.
func New(drv *sqld.Driver, opts ...Option) (*Database, error) {
	d, err := dialect.New(drv.Dialect())
	if err != nil {
		return nil, err
	}
	db := &Database{
		drv:     drv,
		dialect: d,
		types:   fieldtype.Default(),
		log:     slog.Default(),
		tables:  make(map[string]*Table),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Open opens a database/sql connection for the dialect and wraps it.
// The matching database/sql driver must be registered by the caller.
func Open(dialectName, source string, opts ...Option) (*Database, error) {
	drv, err := sqld.Open(dialectName, source)
	if err != nil {
		return nil, err
	}
	return New(drv, opts...)
}

// Driver returns the underlying driver collaborator. Callers needing a
// transaction boundary acquire it here.
func (db *Database) Driver() *sqld.Driver { return db.drv }

// Dialect returns the active dialect strategy.
func (db *Database) Dialect() dialect.Dialect { return db.dialect }

// Table returns the handle for the named table, registering it on first
// use. An unknown table surfaces a SchemaError on its first metadata fill,
// not here.
func (db *Database) Table(name string) *Table {
	db.mu.RLock()
	t, ok := db.tables[name]
	db.mu.RUnlock()
	if ok {
		return t
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if t, ok = db.tables[name]; ok {
		return t
	}
	t = &Table{db: db, name: name}
	db.tables[name] = t
	return t
}

// Register declares a table's columns explicitly, skipping catalog
// introspection. Used by configuration-driven setups and tests.
func (db *Database) Register(name string, cols []dialect.Column) *Table {
	t := db.Table(name)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fieldNames = t.fieldNames[:0]
	t.converters = make(map[string]fieldtype.Converter, len(cols))
	for _, c := range cols {
		t.fieldNames = append(t.fieldNames, c.Name)
		t.converters[c.Name] = db.types.Lookup(c.Name, c.Type)
	}
	t.loaded = true
	t.loadErr = nil
	return t
}

// Tables returns the names of all registered tables, sorted.
func (db *Database) Tables() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tx starts a transaction on the driver. Core operations do not open
// transactions themselves; multi-statement atomicity belongs to the caller.
func (db *Database) Tx(ctx context.Context) (*sqld.Tx, error) {
	return db.drv.Tx(ctx)
}

// WithTx runs fn inside a transaction with guaranteed commit or rollback on
// every exit path, including panic.
func (db *Database) WithTx(ctx context.Context, fn func(tx *sqld.Tx) error) error {
	return sqld.WithTx(ctx, db.drv, fn)
}

// invalidate drops cached results for the given tables after a write.
func (db *Database) invalidate(ctx context.Context, tables ...string) {
	if db.cache == nil {
		return
	}
	for _, name := range tables {
		if err := db.cache.DeletePrefix(ctx, cachePrefix(name)); err != nil {
			db.log.WarnContext(ctx, "cache invalidation failed",
				slog.String("table", name), slog.Any("error", err))
		}
	}
}

// bridgeName returns the conventional bridge table name for two tables:
// both names ordered lexicographically, joined by an underscore. The pair
// order does not affect the result.
func bridgeName(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return strings.Join([]string{a, b}, "_")
}
