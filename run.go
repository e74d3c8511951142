package kin

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"
)

// rawRecord is one result row before field conversion. Exported fields keep
// it serializable for the result cache.
type rawRecord struct {
	Cols []string `msgpack:"cols"`
	Vals []any    `msgpack:"vals"`
}

// rawRows runs a SELECT and returns its unconverted records, consulting the
// result cache when one is configured. Cache failures degrade to a normal
// query; they are logged, never surfaced.
func (db *Database) rawRows(ctx context.Context, table, op, query string, args []any) ([]rawRecord, error) {
	var key string
	if db.cache != nil {
		key = cacheKey(table, op, query, args)
		data, err := db.cache.Get(ctx, key)
		switch {
		case err != nil:
			db.log.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.Any("error", err))
		case data != nil:
			var recs []rawRecord
			if err := msgpack.Unmarshal(data, &recs); err == nil {
				for i := range recs {
					for j, v := range recs[i].Vals {
						recs[i].Vals[j] = normalizeScalar(v)
					}
				}
				return recs, nil
			}
			db.log.WarnContext(ctx, "cache decode failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	rows, err := db.drv.Query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, &DriverError{Query: query, Args: args, Err: err}
	}
	var recs []rawRecord
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &DriverError{Query: query, Args: args, Err: err}
		}
		for i, v := range vals {
			// Drivers may reuse byte buffers between Scan calls.
			if b, ok := v.([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
		}
		recs = append(recs, rawRecord{Cols: cols, Vals: vals})
	}
	if err := rows.Err(); err != nil {
		return nil, &DriverError{Query: query, Args: args, Err: err}
	}
	if db.cache != nil {
		if data, err := msgpack.Marshal(recs); err == nil {
			if err := db.cache.Set(ctx, key, data, db.cacheTTL); err != nil {
				db.log.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.Any("error", err))
			}
		}
	}
	return recs, nil
}

// exec runs a write statement and invalidates the table's cached results,
// along with those of every table it references.
func (db *Database) exec(ctx context.Context, table *Table, query string, args []any) (sql.Result, error) {
	res, err := db.drv.Exec(ctx, query, args)
	if err != nil {
		return nil, err
	}
	db.invalidate(ctx, table.writeTargets()...)
	return res, nil
}

// normalizeScalar widens the integer and float shapes msgpack decodes into
// the ones converters accept.
func normalizeScalar(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
