package repository

import (
	"context"

	"newsdeck/internal/domain/entity"
)

// EmbeddingRepository persists the user's interest embedding.
type EmbeddingRepository interface {
	// Save stores snapshot as the latest embedding.
	// Returns an error if the snapshot fails validation or the store fails.
	Save(ctx context.Context, snapshot entity.EmbeddingSnapshot) error

	// Latest returns the most recently saved snapshot.
	// Returns (nil, nil) when no embedding has been saved yet.
	Latest(ctx context.Context) (*entity.EmbeddingSnapshot, error)

	// Clear removes every stored snapshot.
	Clear(ctx context.Context) error
}

// EmbeddingHistory is implemented by stores that keep every saved snapshot.
type EmbeddingHistory interface {
	// History returns up to limit snapshots, newest first.
	History(ctx context.Context, limit int) ([]entity.EmbeddingSnapshot, error)

	// Drift returns the cosine distance between v and the latest snapshot,
	// and false when no snapshot exists.
	Drift(ctx context.Context, v entity.EmbeddingVector) (float64, bool, error)
}
