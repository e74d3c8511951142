package sql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/kin/dialect"
)

func mockDriver(t *testing.T) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return OpenDB(dialect.MySQL, db), mock
}

func TestExecErrorContext(t *testing.T) {
	drv, mock := mockDriver(t)
	mock.ExpectExec("UPDATE post").WillReturnError(errors.New("syntax error"))

	_, err := drv.Exec(context.Background(), "UPDATE post SET title = ?", []any{"x"})
	require.Error(t, err)

	var de *DriverError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "UPDATE post SET title = ?", de.Query)
	assert.Equal(t, []any{"x"}, de.Args)
	assert.Contains(t, err.Error(), "syntax error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery(t *testing.T) {
	drv, mock := mockDriver(t)
	mock.ExpectQuery("SELECT post.id").
		WillReturnRows(sqlmock.NewRows([]string{"post.id"}).AddRow(int64(1)).AddRow(int64(2)))

	rows, err := drv.Query(context.Background(), "SELECT post.id FROM post", nil)
	require.NoError(t, err)
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{1, 2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialect(t *testing.T) {
	tests := []struct {
		registered string
		want       string
	}{
		{"mysql", dialect.MySQL},
		{"mysql-tracing", dialect.MySQL},
		{"sqlite", dialect.SQLite},
		{"sqlite3", dialect.SQLite},
		{"postgres", dialect.Postgres},
		{"unknown", "unknown"},
	}
	for _, tt := range tests {
		d := NewDriver(tt.registered, Conn{})
		assert.Equal(t, tt.want, d.Dialect(), tt.registered)
	}
}

func TestDescribeColumns(t *testing.T) {
	drv, mock := mockDriver(t)
	mock.ExpectQuery("SELECT column_name, column_type FROM information_schema.columns").
		WithArgs("post").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_type"}).
			AddRow("id", "int(11)").
			AddRow("title", "varchar(255)"))

	dl, err := dialect.New(dialect.MySQL)
	require.NoError(t, err)
	cols, err := drv.DescribeColumns(context.Background(), dl, "post")
	require.NoError(t, err)
	assert.Equal(t, []dialect.Column{
		{Name: "id", Type: "int(11)"},
		{Name: "title", Type: "varchar(255)"},
	}, cols)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO post").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := WithTx(context.Background(), drv, func(tx *Tx) error {
			_, err := tx.Exec(context.Background(), "INSERT INTO post (title) VALUES (?)", []any{"a"})
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on error", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := WithTx(context.Background(), drv, func(*Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on panic", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = WithTx(context.Background(), drv, func(*Tx) error { panic("boom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConstraintViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"mysql fk", &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}, true},
		{"mysql other", &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}, false},
		{"pq unique", &pq.Error{Code: "23505"}, true},
		{"pq other", &pq.Error{Code: "42P01"}, false},
		{"sqlite text", fmt.Errorf("constraint failed: UNIQUE constraint failed: post.slug (2067)"), true},
		{"plain", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConstraintViolation(tt.err))
			wrapped := &DriverError{Query: "INSERT", Err: tt.err}
			assert.Equal(t, tt.want, IsConstraintViolation(wrapped))
		})
	}
}

func TestDebugStats(t *testing.T) {
	drv, mock := mockDriver(t)
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("UPDATE post").WillReturnError(errors.New("down"))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dbg := Debug(drv, WithLogger(logger))
	require.Equal(t, dialect.MySQL, dbg.Dialect())

	rows, err := dbg.Query(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	rows.Close()
	_, err = dbg.Exec(context.Background(), "UPDATE post SET x = 1", nil)
	require.Error(t, err)

	stats := Stats(dbg)
	require.NotNil(t, stats)
	snap := stats.Snapshot()
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.TotalExecs)
	assert.Equal(t, int64(1), snap.Errors)
	assert.Positive(t, snap.AvgDuration())

	assert.Nil(t, Stats(drv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebugUnwrapsDB(t *testing.T) {
	drv, _ := mockDriver(t)
	dbg := Debug(drv, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.Same(t, drv.DB(), dbg.DB())
}
