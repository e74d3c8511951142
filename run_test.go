package kin_test

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/kin"
)

func TestSelectResultCache(t *testing.T) {
	db, mock := testDB(t, kin.WithCache(kin.NewMemoryCache(), time.Minute))
	ctx := context.Background()

	// The engine is asked once; the repeat is served from the cache.
	mock.ExpectQuery("SELECT post.id, post.title FROM post").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(int64(1), "First").
			AddRow(int64(2), []byte("Second")))

	first, err := db.Table("post").Select().All(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, first.Len())

	second, err := db.Table("post").Select().All(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, second.Len())

	// Cached records hydrate identically, including byte-string columns.
	title, _ := second.Rows()[1].Get("title")
	assert.Equal(t, "Second", title)
	assert.NoError(t, mock.ExpectationsWereMet())

	// A write to the table invalidates its cached results.
	mock.ExpectExec("UPDATE post SET title = ? WHERE id = ?").
		WithArgs("New", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = db.Table("post").Update(map[string]any{"title": "New"}).ByID(1).Run(ctx)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT post.id, post.title FROM post").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(int64(1), "New"))
	third, err := db.Table("post").Select().All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWritesToOtherTablesKeepCache(t *testing.T) {
	db, mock := testDB(t, kin.WithCache(kin.NewMemoryCache(), time.Minute))
	ctx := context.Background()

	mock.ExpectQuery("SELECT post.id, post.title FROM post").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(int64(1), "First"))
	_, err := db.Table("post").Select().All(ctx)
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM category WHERE id = ?").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = db.Table("category").Delete().ByID(9).Run(ctx)
	require.NoError(t, err)

	// Still served from the cache: no second SELECT expectation exists.
	coll, err := db.Table("post").Select().All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, coll.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelatedWritesInvalidateJoinedCache(t *testing.T) {
	db, mock := testDB(t, kin.WithCache(kin.NewMemoryCache(), time.Minute))
	ctx := context.Background()

	post := savedRow(t, db, mock, "post",
		"INSERT INTO post (title) VALUES (?) RETURNING id", 1,
		map[string]any{"title": "First"})
	category := savedRow(t, db, mock, "category",
		"INSERT INTO category (name) VALUES (?) RETURNING id", 3,
		map[string]any{"name": "go"})

	const related = "SELECT post.id, post.title FROM post LEFT JOIN category_post ON category_post.post_id = post.id WHERE category_post.category_id = ?"
	mock.ExpectQuery(related).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}))
	first, err := db.Table("post").Select().RelatedWith(category).All(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, first.Len())

	// Linking through the bridge writes category_post; that write must drop
	// the cached sets of both participants, not only the bridge's own.
	mock.ExpectQuery("INSERT INTO category_post (category_id, post_id) VALUES (?, ?) RETURNING id").
		WithArgs(int64(3), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))
	require.NoError(t, post.Relate(ctx, category))

	mock.ExpectQuery(related).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(int64(1), "First"))
	second, err := db.Table("post").Select().RelatedWith(category).All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}
