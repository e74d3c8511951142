package kin_test

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/kin"
	"github.com/syssam/kin/dialect"
	sqld "github.com/syssam/kin/dialect/sql"
)

func TestInsertCompile(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	t.Run("payload in field order", func(t *testing.T) {
		query, args, err := db.Table("comment").
			Insert(map[string]any{"post_id": 1, "text": "hi"}).
			Compile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO comment (text, post_id) VALUES (?, ?) RETURNING id", query)
		assert.Equal(t, []any{"hi", int64(1)}, args)
	})

	t.Run("empty payload", func(t *testing.T) {
		query, args, err := db.Table("post").Insert(nil).Compile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO post DEFAULT VALUES RETURNING id", query)
		assert.Empty(t, args)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, _, err := db.Table("post").Insert(map[string]any{"body": "x"}).Compile(ctx)
		assert.True(t, kin.IsInvalidData(err))
	})

	t.Run("upsert", func(t *testing.T) {
		query, _, err := db.Table("post").
			Insert(map[string]any{"title": "First"}).
			OnDuplicate("title").
			Compile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO post (title) VALUES (?) ON CONFLICT (title) DO UPDATE SET title = excluded.title RETURNING id", query)
	})

	t.Run("upsert without conflict target", func(t *testing.T) {
		_, _, err := db.Table("post").
			Insert(map[string]any{"title": "First"}).
			OnDuplicate().
			Compile(ctx)
		assert.Error(t, err)
	})
}

func TestInsertCompileMySQL(t *testing.T) {
	conn, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	db, err := kin.New(sqld.OpenDB(dialect.MySQL, conn))
	require.NoError(t, err)
	db.Register("post", []dialect.Column{
		{Name: "id", Type: "int(11)"},
		{Name: "title", Type: "varchar(255)"},
	})

	t.Run("no returning clause", func(t *testing.T) {
		query, _, err := db.Table("post").Insert(map[string]any{"title": "x"}).Compile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO post (title) VALUES (?)", query)
	})

	t.Run("duplicate key keeps id", func(t *testing.T) {
		query, _, err := db.Table("post").
			Insert(map[string]any{"title": "x"}).
			OnDuplicate().
			Compile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO post (title) VALUES (?) ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), title = VALUES(title)", query)
	})

	t.Run("empty payload", func(t *testing.T) {
		query, _, err := db.Table("post").Insert(nil).Compile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO post () VALUES ()", query)
	})
}

func TestInsertRun(t *testing.T) {
	db, mock := testDB(t)

	mock.ExpectQuery("INSERT INTO post (title) VALUES (?) RETURNING id").
		WithArgs("First").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := db.Table("post").Insert(map[string]any{"title": "First"}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRunLastInsertID(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	db, err := kin.New(sqld.OpenDB(dialect.MySQL, conn))
	require.NoError(t, err)
	db.Register("post", []dialect.Column{
		{Name: "id", Type: "int(11)"},
		{Name: "title", Type: "varchar(255)"},
	})

	mock.ExpectExec("INSERT INTO post (title) VALUES (?)").
		WithArgs("First").
		WillReturnResult(sqlmock.NewResult(9, 1))

	id, err := db.Table("post").Insert(map[string]any{"title": "First"}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
