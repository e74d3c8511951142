// Package dialect provides database dialect abstraction for Kin.
//
// The core never hardcodes one engine's punctuation: identifier quoting,
// placeholder style, LIMIT syntax, default-values inserts, upsert suffixes
// and the column-catalog query are all supplied by a Dialect implementation
// selected per target engine.
//
// # Supported Dialects
//
// The following dialects are supported:
//
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//   - SQLite: SQLite database
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Usage
//
// Resolving a dialect strategy:
//
//	d, err := dialect.New(dialect.SQLite)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// The dialect/sql sub-package wraps database/sql with the driver collaborator
// the core executes through.
package dialect
