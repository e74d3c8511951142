package dialect

import (
	"fmt"
	"strings"
)

// Dialect name constants.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Column describes one column reported by the engine's catalog.
type Column struct {
	Name string
	Type string // declared SQL type, e.g. "INTEGER", "TINYINT(1)"
}

// Dialect supplies the engine-specific punctuation and catalog access the
// query compiler depends on. Implementations must be stateless.
type Dialect interface {
	// Name returns the dialect constant.
	Name() string

	// Quote quotes a single identifier if the bare form is not safe.
	// Dotted identifiers (table.column) are quoted per part.
	Quote(ident string) string

	// QuoteAlias quotes a result-column alias as a single identifier, even
	// when it contains dots.
	QuoteAlias(alias string) string

	// Placeholder returns the parameter placeholder for the n-th argument
	// (1-based).
	Placeholder(n int) string

	// LimitClause renders the LIMIT/OFFSET tail. Zero limit means no limit;
	// offset is ignored without a limit.
	LimitClause(limit, offset int) string

	// SupportsMutationLimit reports whether UPDATE and DELETE statements
	// accept a LIMIT clause.
	SupportsMutationLimit() bool

	// InsertDefaults returns the statement inserting a row with every column
	// at its default value.
	InsertDefaults(table string) string

	// Upsert returns the suffix appended to an INSERT to update the assign
	// columns on a duplicate key, preserving the existing row id. The second
	// return is false when the dialect cannot express the upsert with the
	// given conflict columns.
	Upsert(assign, conflict []string) (string, bool)

	// SupportsReturning reports whether inserts should use a RETURNING
	// clause instead of the driver's last-insert-id mechanism.
	SupportsReturning() bool

	// DescribeQuery returns the catalog query projecting (name, type) rows
	// for the table's columns in ordinal order.
	DescribeQuery(table string) (string, []any)
}

// New returns the Dialect for the given name.
func New(name string) (Dialect, error) {
	switch name {
	case MySQL:
		return mysql{}, nil
	case Postgres:
		return postgres{}, nil
	case SQLite:
		return sqlite{}, nil
	}
	return nil, fmt.Errorf("dialect: unsupported dialect %q", name)
}

// bareIdent reports whether the identifier can be emitted without quoting.
func bareIdent(s string) bool {
	if s == "" || s == "*" {
		return s == "*"
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func quoteWith(ident string, open, close byte) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		if !bareIdent(p) {
			parts[i] = string(open) + strings.ReplaceAll(p, string(close), string(close)+string(close)) + string(close)
		}
	}
	return strings.Join(parts, ".")
}

func quoteAliasWith(alias string, open, close byte) string {
	return string(open) + strings.ReplaceAll(alias, string(close), string(close)+string(close)) + string(close)
}

func limitClause(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	if offset > 0 {
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

type mysql struct{}

func (mysql) Name() string { return MySQL }
func (mysql) Quote(ident string) string { return quoteWith(ident, '`', '`') }
func (mysql) QuoteAlias(alias string) string { return quoteAliasWith(alias, '`', '`') }
func (mysql) Placeholder(int) string { return "?" }
func (mysql) LimitClause(l, o int) string { return limitClause(l, o) }
func (mysql) SupportsMutationLimit() bool { return true }
func (mysql) InsertDefaults(table string) string {
	return fmt.Sprintf("INSERT INTO %s () VALUES ()", quoteWith(table, '`', '`'))
}

// Upsert uses ON DUPLICATE KEY UPDATE with id = LAST_INSERT_ID(id) so that
// LastInsertId reports the existing row's id on conflict.
func (d mysql) Upsert(assign, _ []string) (string, bool) {
	var sb strings.Builder
	sb.WriteString(" ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)")
	for _, c := range assign {
		fmt.Fprintf(&sb, ", %s = VALUES(%s)", d.Quote(c), d.Quote(c))
	}
	return sb.String(), true
}

func (mysql) SupportsReturning() bool { return false }

func (mysql) DescribeQuery(table string) (string, []any) {
	return "SELECT column_name, column_type FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position", []any{table}
}

type postgres struct{}

func (postgres) Name() string { return Postgres }
func (postgres) Quote(ident string) string { return quoteWith(ident, '"', '"') }
func (postgres) QuoteAlias(alias string) string { return quoteAliasWith(alias, '"', '"') }
func (postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgres) LimitClause(l, o int) string { return limitClause(l, o) }
func (postgres) SupportsMutationLimit() bool { return false }
func (postgres) InsertDefaults(table string) string {
	return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quoteWith(table, '"', '"'))
}

func (d postgres) Upsert(assign, conflict []string) (string, bool) {
	return conflictUpsert(d, assign, conflict)
}

func (postgres) SupportsReturning() bool { return true }

func (postgres) DescribeQuery(table string) (string, []any) {
	return "SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position", []any{table}
}

type sqlite struct{}

func (sqlite) Name() string { return SQLite }
func (sqlite) Quote(ident string) string { return quoteWith(ident, '"', '"') }
func (sqlite) QuoteAlias(alias string) string { return quoteAliasWith(alias, '"', '"') }
func (sqlite) Placeholder(int) string { return "?" }
func (sqlite) LimitClause(l, o int) string { return limitClause(l, o) }
func (sqlite) SupportsMutationLimit() bool { return true }
func (sqlite) InsertDefaults(table string) string {
	return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quoteWith(table, '"', '"'))
}

func (d sqlite) Upsert(assign, conflict []string) (string, bool) {
	return conflictUpsert(d, assign, conflict)
}

// SQLite supports RETURNING since 3.35; it also makes upserts report the
// surviving row's id, which last_insert_rowid does not.
func (sqlite) SupportsReturning() bool { return true }

func (sqlite) DescribeQuery(table string) (string, []any) {
	return "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", []any{table}
}

// conflictUpsert renders the ON CONFLICT form shared by sqlite and postgres.
// Both require an explicit conflict target for DO UPDATE.
func conflictUpsert(d Dialect, assign, conflict []string) (string, bool) {
	if len(conflict) == 0 {
		return "", false
	}
	quoted := make([]string, len(conflict))
	for i, c := range conflict {
		quoted[i] = d.Quote(c)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, " ON CONFLICT (%s) DO UPDATE SET ", strings.Join(quoted, ", "))
	if len(assign) == 0 {
		// Nothing to assign; touch a conflict column so the statement stays valid
		// and the existing row id is reachable through RETURNING/rowid.
		fmt.Fprintf(&sb, "%s = excluded.%s", d.Quote(conflict[0]), d.Quote(conflict[0]))
		return sb.String(), true
	}
	for i, c := range assign {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s = excluded.%s", d.Quote(c), d.Quote(c))
	}
	return sb.String(), true
}
