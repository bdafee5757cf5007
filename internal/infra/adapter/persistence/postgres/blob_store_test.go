package postgres_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pg "newsdeck/internal/infra/adapter/persistence/postgres"
	"newsdeck/internal/repository"
)

func TestBlobStore_GetSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv_store (key, value, updated_at)")).
		WithArgs("user_settings", []byte{0x01, 0x02}).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv_store WHERE key = $1")).
		WithArgs("user_settings").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte{0x01, 0x02}))

	store := pg.NewBlobStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "user_settings", []byte{0x01, 0x02}))
	got, err := store.Get(ctx, "user_settings")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobStore_GetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT value FROM kv_store").WillReturnError(sql.ErrNoRows)

	_, err = pg.NewBlobStore(db).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrBlobNotFound)
}

func TestBlobStore_DeleteAndKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM kv_store WHERE key = $1")).
		WithArgs("bookmarks_x").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE left(key, $1) = $2")).
		WithArgs(len("bookmarks_"), "bookmarks_").
		WillReturnRows(sqlmock.NewRows([]string{"key"}))

	store := pg.NewBlobStore(db)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "bookmarks_x"))
	keys, err := store.Keys(ctx, "bookmarks_")
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobStore_KeysNonASCIIPrefix(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	prefix := "article_記事"
	mock.ExpectQuery(regexp.QuoteMeta("WHERE left(key, $1) = $2")).
		WithArgs(10, prefix).
		WillReturnRows(sqlmock.NewRows([]string{"key"}).AddRow("article_記事1"))

	keys, err := pg.NewBlobStore(db).Keys(context.Background(), prefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"article_記事1"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet(), "left length counts characters")
}
