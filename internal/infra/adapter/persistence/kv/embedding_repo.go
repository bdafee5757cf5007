// Package kv implements repository ports on top of a generic BlobStore.
package kv

import (
	"context"
	"errors"
	"fmt"

	"newsdeck/internal/domain/entity"
	"newsdeck/internal/infra/codec"
	"newsdeck/internal/repository"
)

// EmbeddingKey is the BlobStore key of the latest embedding snapshot.
const EmbeddingKey = "user_embedding"

// EmbeddingRepo keeps the latest embedding snapshot as a single codec blob.
type EmbeddingRepo struct {
	store repository.BlobStore
}

// NewEmbeddingRepo creates a BlobStore-backed EmbeddingRepository.
func NewEmbeddingRepo(store repository.BlobStore) *EmbeddingRepo {
	return &EmbeddingRepo{store: store}
}

var _ repository.EmbeddingRepository = (*EmbeddingRepo)(nil)

func (r *EmbeddingRepo) Save(ctx context.Context, snapshot entity.EmbeddingSnapshot) error {
	if err := snapshot.Vector.Validate(); err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	blob, err := codec.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	if err := r.store.Set(ctx, EmbeddingKey, blob); err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// Latest returns the stored snapshot. Snapshots with an unknown version are
// treated as absent so a format change never feeds a stale vector forward.
func (r *EmbeddingRepo) Latest(ctx context.Context) (*entity.EmbeddingSnapshot, error) {
	blob, err := r.store.Get(ctx, EmbeddingKey)
	if errors.Is(err, repository.ErrBlobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load embedding: %w", err)
	}

	var snapshot entity.EmbeddingSnapshot
	if err := codec.Unmarshal(blob, &snapshot); err != nil {
		return nil, fmt.Errorf("load embedding: %w", err)
	}
	if snapshot.Version != entity.EmbeddingVersion {
		return nil, nil
	}
	return &snapshot, nil
}

func (r *EmbeddingRepo) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, EmbeddingKey); err != nil {
		return fmt.Errorf("clear embedding: %w", err)
	}
	return nil
}
