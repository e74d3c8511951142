package kin_test

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/syssam/kin"
	"github.com/syssam/kin/dialect"
	sqld "github.com/syssam/kin/dialect/sql"
)

// testDB returns a Database over a mocked connection with the blog schema
// declared: post, comment (post_id), category (self-referencing) and the
// category_post bridge. Statements the tests expect are matched by exact
// SQL text.
func testDB(t *testing.T, opts ...kin.Option) (*kin.Database, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := kin.New(sqld.OpenDB(dialect.SQLite, conn), opts...)
	require.NoError(t, err)

	db.Register("post", []dialect.Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "title", Type: "TEXT"},
	})
	db.Register("comment", []dialect.Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "text", Type: "TEXT"},
		{Name: "post_id", Type: "INTEGER"},
	})
	db.Register("category", []dialect.Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "name", Type: "TEXT"},
		{Name: "category_id", Type: "INTEGER"},
	})
	db.Register("category_post", []dialect.Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "category_id", Type: "INTEGER"},
		{Name: "post_id", Type: "INTEGER"},
	})
	return db, mock
}

// expectMissingTable arranges for the table's catalog lookup to come back
// empty, as the engine reports for a table that does not exist.
func expectMissingTable(mock sqlmock.Sqlmock, name string) {
	mock.ExpectQuery("SELECT name, type FROM pragma_table_info(?) ORDER BY cid").
		WithArgs(name).
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}))
}

// savedRow inserts a row through the normal path, with the insert answered
// by the mock, and returns it carrying the given id.
func savedRow(t *testing.T, db *kin.Database, mock sqlmock.Sqlmock, table, insertSQL string, id int64, data map[string]any) *kin.Row {
	t.Helper()
	mock.ExpectQuery(insertSQL).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
	r, err := db.Table(table).NewRow(context.Background(), data)
	require.NoError(t, err)
	require.NoError(t, r.Save(context.Background()))
	require.Equal(t, id, r.ID())
	return r
}
