package db

import (
	"context"
	"database/sql"
	"fmt"
)

// MigrateUp creates the engine schema for dialect. It is idempotent.
//
// kv_store holds every opaque local record (ledger, settings, engagement, cache).
// On PostgreSQL the embedding history additionally lives in a pgvector table.
func MigrateUp(ctx context.Context, db *sql.DB, dialect Dialect) error {
	valueType := "BLOB"
	if dialect == DialectPostgres {
		valueType = "BYTEA"
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS kv_store (
    key        TEXT PRIMARY KEY,
    value      %s NOT NULL,
    updated_at BIGINT NOT NULL
)`, valueType)); err != nil {
		return fmt.Errorf("create kv_store: %w", err)
	}

	if dialect != DialectPostgres {
		return nil
	}

	// The extension may already exist or require superuser rights; the table
	// creation below reports the real failure if vector is unavailable.
	_, _ = db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS embedding_history (
    id         BIGSERIAL PRIMARY KEY,
    version    VARCHAR(20) NOT NULL,
    dimension  INT NOT NULL,
    embedding  vector(384) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
)`); err != nil {
		return fmt.Errorf("create embedding_history: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_embedding_history_created_at ON embedding_history(created_at DESC)`); err != nil {
		return fmt.Errorf("create embedding_history index: %w", err)
	}

	return nil
}

// MigrateDown drops the engine schema. All local state is lost.
func MigrateDown(ctx context.Context, db *sql.DB, dialect Dialect) error {
	stmts := []string{`DROP TABLE IF EXISTS kv_store`}
	if dialect == DialectPostgres {
		stmts = append(stmts,
			`DROP INDEX IF EXISTS idx_embedding_history_created_at`,
			`DROP TABLE IF EXISTS embedding_history`)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	}
	return nil
}
