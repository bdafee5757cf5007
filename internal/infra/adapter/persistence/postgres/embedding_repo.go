package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"newsdeck/internal/domain/entity"
	"newsdeck/internal/repository"
)

// DefaultHistoryLimit caps History results when the caller passes no limit.
const DefaultHistoryLimit = 20

// EmbeddingRepo stores embedding snapshots in the embedding_history table
// using the pgvector vector(384) column type. Components are stored as float32.
type EmbeddingRepo struct {
	db *sql.DB
}

// NewEmbeddingRepo creates a PostgreSQL-based EmbeddingRepository.
func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

var (
	_ repository.EmbeddingRepository = (*EmbeddingRepo)(nil)
	_ repository.EmbeddingHistory    = (*EmbeddingRepo)(nil)
)

// Save appends snapshot to the history.
func (repo *EmbeddingRepo) Save(ctx context.Context, snapshot entity.EmbeddingSnapshot) error {
	if err := snapshot.Vector.Validate(); err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	const query = `
INSERT INTO embedding_history (version, dimension, embedding, created_at)
VALUES ($1, $2, $3, $4)`

	vector := pgvector.NewVector(snapshot.Vector.Float32())
	if _, err := repo.db.ExecContext(ctx, query,
		snapshot.Version,
		len(snapshot.Vector),
		vector,
		snapshot.Timestamp,
	); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// Latest returns the newest snapshot, or nil when the history is empty.
func (repo *EmbeddingRepo) Latest(ctx context.Context) (*entity.EmbeddingSnapshot, error) {
	const query = `
SELECT version, embedding, created_at
FROM embedding_history
ORDER BY created_at DESC, id DESC
LIMIT 1`

	var (
		snapshot entity.EmbeddingSnapshot
		vector   pgvector.Vector
	)
	err := repo.db.QueryRowContext(ctx, query).Scan(&snapshot.Version, &vector, &snapshot.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Latest: %w", err)
	}
	snapshot.Vector = toEmbeddingVector(vector)
	return &snapshot, nil
}

// History returns up to limit snapshots, newest first.
func (repo *EmbeddingRepo) History(ctx context.Context, limit int) ([]entity.EmbeddingSnapshot, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	const query = `
SELECT version, embedding, created_at
FROM embedding_history
ORDER BY created_at DESC, id DESC
LIMIT $1`

	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshots := make([]entity.EmbeddingSnapshot, 0, limit)
	for rows.Next() {
		var (
			snapshot entity.EmbeddingSnapshot
			vector   pgvector.Vector
		)
		if err := rows.Scan(&snapshot.Version, &vector, &snapshot.Timestamp); err != nil {
			return nil, fmt.Errorf("History: Scan: %w", err)
		}
		snapshot.Vector = toEmbeddingVector(vector)
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	return snapshots, nil
}

// Drift returns the cosine distance between v and the latest stored snapshot.
// The second return value is false when no snapshot exists.
func (repo *EmbeddingRepo) Drift(ctx context.Context, v entity.EmbeddingVector) (float64, bool, error) {
	const query = `
SELECT embedding <=> $1
FROM embedding_history
ORDER BY created_at DESC, id DESC
LIMIT 1`

	var distance float64
	err := repo.db.QueryRowContext(ctx, query, pgvector.NewVector(v.Float32())).Scan(&distance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("Drift: %w", err)
	}
	return distance, true, nil
}

// Clear deletes the whole history.
func (repo *EmbeddingRepo) Clear(ctx context.Context) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM embedding_history`); err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}

func toEmbeddingVector(v pgvector.Vector) entity.EmbeddingVector {
	slice := v.Slice()
	out := make(entity.EmbeddingVector, len(slice))
	for i, x := range slice {
		out[i] = float64(x)
	}
	return out
}
