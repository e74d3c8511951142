// Package sql wraps database/sql with the driver collaborator the Kin core
// executes through: prepare/execute with error context, last-insert-id,
// column-catalog introspection and a scoped transaction boundary.
package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/kin/dialect"
)

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn implements Exec and Query over an ExecQuerier, attaching the
// attempted SQL and parameters to every failure.
type Conn struct {
	ExecQuerier
}

// Exec executes a statement and returns its result.
func (c Conn) Exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	res, err := c.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &DriverError{Query: query, Args: args, Err: err}
	}
	return res, nil
}

// Query executes a query and returns its rows.
func (c Conn) Query(ctx context.Context, query string, args []any) (*Rows, error) {
	rows, err := c.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &DriverError{Query: query, Args: args, Err: err}
	}
	return &Rows{rows}, nil
}

// Driver is the database collaborator for a single logical connection.
type Driver struct {
	Conn
	dialect string
}

// NewDriver creates a new Driver with the given Conn and dialect.
func NewDriver(dialect string, c Conn) *Driver {
	return &Driver{Conn: c, dialect: dialect}
}

// Open wraps database/sql.Open and returns a Driver for the named dialect.
func Open(dialect, source string) (*Driver, error) {
	db, err := sql.Open(dialect, source)
	if err != nil {
		return nil, err
	}
	return NewDriver(dialect, Conn{db}), nil
}

// OpenDB wraps an existing database/sql.DB with a Driver.
func OpenDB(dialect string, db *sql.DB) *Driver {
	return NewDriver(dialect, Conn{db})
}

// DB returns the underlying *sql.DB instance, unwrapping the debug
// instrumentation if present.
func (d *Driver) DB() *sql.DB {
	if q, ok := d.ExecQuerier.(interface{ DB() *sql.DB }); ok {
		return q.DB()
	}
	return d.ExecQuerier.(*sql.DB)
}

// Dialect returns the dialect name of the driver. Suffixed driver
// registrations (e.g. an instrumented "mysql-tracing") resolve to their base
// dialect.
func (d *Driver) Dialect() string {
	for _, name := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		if strings.HasPrefix(d.dialect, name) {
			return name
		}
	}
	return d.dialect
}

// Close closes the underlying connection.
func (d *Driver) Close() error { return d.DB().Close() }

// Tx starts and returns a transaction. The returned Tx shares the Conn
// surface, so every core operation can run inside the unit of work.
func (d *Driver) Tx(ctx context.Context) (*Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with options.
func (d *Driver) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, &DriverError{Query: "BEGIN", Err: err}
	}
	return &Tx{Conn: Conn{tx}, tx: tx}, nil
}

// DescribeColumns returns the ordered (name, declared type) column list for
// the table, using the dialect's catalog query.
func (d *Driver) DescribeColumns(ctx context.Context, dl dialect.Dialect, table string) ([]dialect.Column, error) {
	query, args := dl.DescribeQuery(table)
	rows, err := d.Query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cols []dialect.Column
	for rows.Next() {
		var c dialect.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, &DriverError{Query: query, Args: args, Err: err}
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &DriverError{Query: query, Args: args, Err: err}
	}
	return cols, nil
}

// Tx is a single unit of work. It exposes the same Exec/Query surface as
// Driver plus explicit commit and rollback.
type Tx struct {
	Conn
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback rolls the transaction back.
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// WithTx runs fn inside a transaction, guaranteeing commit on success and
// rollback on error or panic.
func WithTx(ctx context.Context, d *Driver, fn func(tx *Tx) error) error {
	tx, err := d.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("sql: rolling back transaction: %w", rerr))
		}
		return err
	}
	return tx.Commit()
}

type (
	// Rows wraps sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// NullBool is an alias to sql.NullBool.
	NullBool = sql.NullBool
	// NullInt64 is an alias to sql.NullInt64.
	NullInt64 = sql.NullInt64
	// NullString is an alias to sql.NullString.
	NullString = sql.NullString
	// NullFloat64 is an alias to sql.NullFloat64.
	NullFloat64 = sql.NullFloat64
	// NullTime represents a time.Time that may be null.
	NullTime = sql.NullTime
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	Columns() ([]string, error)
	Err() error
	Next() bool
	Scan(dest ...any) error
}
