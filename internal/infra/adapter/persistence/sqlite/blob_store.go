// Package sqlite provides the on-device SQLite implementation of the engine's
// persistence ports. All local state lives in the kv_store table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"newsdeck/internal/repository"
)

// BlobStore implements repository.BlobStore on top of the kv_store table.
type BlobStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewBlobStore creates a SQLite-backed blob store.
func NewBlobStore(db *sql.DB) *BlobStore {
	return &BlobStore{db: db, now: time.Now}
}

var _ repository.BlobStore = (*BlobStore)(nil)

// Get returns the value stored under key.
func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM kv_store WHERE key = ?`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return value, nil
}

// Set upserts value under key.
func (s *BlobStore) Set(ctx context.Context, key string, value []byte) error {
	const query = `
INSERT INTO kv_store (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	value = excluded.value,
	updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, key, value, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}

// Delete removes keys in a single transaction.
func (s *BlobStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Delete: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `DELETE FROM kv_store WHERE key = ?`
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, query, key); err != nil {
			return fmt.Errorf("Delete: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Delete: Commit: %w", err)
	}
	return nil
}

// Keys lists keys starting with prefix in ascending order.
// substr is used instead of LIKE so '_' and '%' in keys match literally.
// substr counts characters, not bytes.
func (s *BlobStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	const query = `
SELECT key FROM kv_store
WHERE substr(key, 1, ?) = ?
ORDER BY key ASC`

	rows, err := s.db.QueryContext(ctx, query, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("Keys: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make([]string, 0, 16)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("Keys: Scan: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Keys: rows.Err: %w", err)
	}
	return keys, nil
}
