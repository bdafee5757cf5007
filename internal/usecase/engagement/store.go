package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"newsdeck/internal/common/clock"
	"newsdeck/internal/domain/entity"
	"newsdeck/internal/infra/codec"
	"newsdeck/internal/observability/metrics"
	"newsdeck/internal/repository"
)

// KeyPrefix prefixes the BlobStore key of every persisted engagement state.
const KeyPrefix = "user_engagement_states_"

// Store persists one EngagementState per article. States older than
// entity.EngagementTTL are treated as absent and deleted when read.
type Store struct {
	mu     sync.Mutex
	blobs  repository.BlobStore
	clock  clock.Clock
	logger *slog.Logger
}

// NewStore creates a Store over blobs.
func NewStore(blobs repository.BlobStore, clk clock.Clock, logger *slog.Logger) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{blobs: blobs, clock: clk, logger: logger}
}

func key(articleID string) string {
	return KeyPrefix + articleID
}

// Get returns the live state of articleID, or nil when absent or expired.
func (s *Store) Get(ctx context.Context, articleID string) (*entity.EngagementState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, articleID)
}

// Save stores state for articleID stamped with the current time.
func (s *Store) Save(ctx context.Context, articleID string, state entity.EngagementState) error {
	if err := entity.ValidateArticleID(articleID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state.Timestamp = s.clock.Now()
	return s.put(ctx, articleID, state)
}

// Update merges patch into the live state of articleID, or into an all-false
// state when there is none, and stores the result with a fresh timestamp.
func (s *Store) Update(ctx context.Context, articleID string, patch entity.EngagementPatch) (entity.EngagementState, error) {
	if err := entity.ValidateArticleID(articleID); err != nil {
		return entity.EngagementState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var base entity.EngagementState
	current, err := s.get(ctx, articleID)
	if err != nil {
		return base, err
	}
	if current != nil {
		base = *current
	}

	updated := base.Apply(patch)
	updated.Timestamp = s.clock.Now()
	if err := s.put(ctx, articleID, updated); err != nil {
		return base, err
	}
	return updated, nil
}

// Restore puts articleID back to prev, deleting the entry when prev is nil.
// It undoes an optimistic Update after a failed Remote API call.
func (s *Store) Restore(ctx context.Context, articleID string, prev *entity.EngagementState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev == nil {
		if err := s.blobs.Delete(ctx, key(articleID)); err != nil {
			metrics.RecordStorageError("engagement_delete")
			return fmt.Errorf("restore engagement %s: %w", articleID, err)
		}
		return nil
	}
	return s.put(ctx, articleID, *prev)
}

// All returns every live state keyed by article id. Expired states are deleted.
func (s *Store) All(ctx context.Context) (map[string]entity.EngagementState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.blobs.Keys(ctx, KeyPrefix)
	if err != nil {
		metrics.RecordStorageError("engagement_keys")
		s.logger.Error("failed to list engagement states", slog.Any("error", err))
		return map[string]entity.EngagementState{}, err
	}

	states := make(map[string]entity.EngagementState, len(keys))
	for _, k := range keys {
		id := strings.TrimPrefix(k, KeyPrefix)
		state, err := s.get(ctx, id)
		if err != nil || state == nil {
			continue
		}
		states[id] = *state
	}
	return states, nil
}

// Clear deletes every persisted engagement state.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.blobs.Keys(ctx, KeyPrefix)
	if err == nil && len(keys) > 0 {
		err = s.blobs.Delete(ctx, keys...)
	}
	if err != nil {
		metrics.RecordStorageError("engagement_clear")
		return fmt.Errorf("clear engagement states: %w", err)
	}
	s.logger.Info("cleared engagement states", slog.Int("count", len(keys)))
	return nil
}

// get must be called with mu held.
func (s *Store) get(ctx context.Context, articleID string) (*entity.EngagementState, error) {
	blob, err := s.blobs.Get(ctx, key(articleID))
	if errors.Is(err, repository.ErrBlobNotFound) {
		return nil, nil
	}
	if err != nil {
		metrics.RecordStorageError("engagement_get")
		s.logger.Error("failed to read engagement state",
			slog.String("article_id", articleID),
			slog.Any("error", err))
		return nil, fmt.Errorf("get engagement %s: %w", articleID, err)
	}

	var state entity.EngagementState
	if err := codec.Unmarshal(blob, &state); err != nil {
		metrics.RecordStorageError("engagement_decode")
		s.logger.Warn("discarding unreadable engagement state",
			slog.String("article_id", articleID),
			slog.Any("error", err))
		_ = s.blobs.Delete(ctx, key(articleID))
		return nil, nil
	}

	if state.Expired(s.clock.Now()) {
		if err := s.blobs.Delete(ctx, key(articleID)); err != nil {
			metrics.RecordStorageError("engagement_delete")
		}
		return nil, nil
	}
	return &state, nil
}

// put must be called with mu held.
func (s *Store) put(ctx context.Context, articleID string, state entity.EngagementState) error {
	blob, err := codec.Marshal(state)
	if err == nil {
		err = s.blobs.Set(ctx, key(articleID), blob)
	}
	if err != nil {
		metrics.RecordStorageError("engagement_set")
		s.logger.Error("failed to save engagement state",
			slog.String("article_id", articleID),
			slog.Any("error", err))
		return fmt.Errorf("save engagement %s: %w", articleID, err)
	}
	return nil
}
