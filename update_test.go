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

func TestUpdateCompile(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	t.Run("by id", func(t *testing.T) {
		query, args, err := db.Table("post").
			Update(map[string]any{"title": "New"}).
			ByID(1).
			Compile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "UPDATE post SET title = ? WHERE id = ?", query)
		assert.Equal(t, []any{"New", int64(1)}, args)
	})

	t.Run("where and limit", func(t *testing.T) {
		query, args, err := db.Table("comment").
			Update(map[string]any{"post_id": nil}).
			Where("post_id = ?", 3).
			Limit(10).
			Compile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "UPDATE comment SET post_id = ? WHERE post_id = ? LIMIT 10", query)
		assert.Equal(t, []any{nil, 3}, args)
	})

	t.Run("multiple ids", func(t *testing.T) {
		query, args, err := db.Table("post").
			Update(map[string]any{"title": "x"}).
			ByID(1, 2).
			Compile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "UPDATE post SET title = ? WHERE id IN (?, ?)", query)
		assert.Equal(t, []any{"x", int64(1), int64(2)}, args)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, _, err := db.Table("post").Update(map[string]any{"body": "x"}).Compile(ctx)
		assert.True(t, kin.IsInvalidData(err))
	})

	t.Run("empty payload", func(t *testing.T) {
		_, _, err := db.Table("post").Update(nil).ByID(1).Compile(ctx)
		assert.Error(t, err)
	})
}

func TestMutationLimitPostgres(t *testing.T) {
	conn, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	db, err := kin.New(sqld.OpenDB(dialect.Postgres, conn))
	require.NoError(t, err)
	db.Register("post", []dialect.Column{
		{Name: "id", Type: "integer"},
		{Name: "title", Type: "text"},
	})
	ctx := context.Background()

	// Postgres has no LIMIT on mutations; compiling one must fail instead
	// of producing SQL the engine rejects.
	_, _, err = db.Table("post").
		Update(map[string]any{"title": "x"}).
		Where("title = ?", "y").
		Limit(1).
		Compile(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LIMIT")

	_, _, err = db.Table("post").Delete().ByID(1).Limit(1).Compile(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LIMIT")

	// Without a limit the same statements compile.
	query, args, err := db.Table("post").Delete().ByID(1).Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM post WHERE id = $1", query)
	assert.Equal(t, []any{int64(1)}, args)
}

func TestUpdateRun(t *testing.T) {
	db, mock := testDB(t)

	mock.ExpectExec("UPDATE post SET title = ? WHERE id = ?").
		WithArgs("New", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := db.Table("post").
		Update(map[string]any{"title": "New"}).
		ByID(1).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCompile(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	query, args, err := db.Table("post").Delete().ByID(1).Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM post WHERE id = ?", query)
	assert.Equal(t, []any{int64(1)}, args)

	query, args, err = db.Table("comment").Delete().
		Where("post_id = ?", 3).
		Limit(1).
		Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM comment WHERE post_id = ? LIMIT 1", query)
	assert.Equal(t, []any{3}, args)
}

func TestDeleteRun(t *testing.T) {
	db, mock := testDB(t)

	mock.ExpectExec("DELETE FROM comment WHERE post_id = ?").
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 2))

	affected, err := db.Table("comment").Delete().Where("post_id = ?", 3).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
