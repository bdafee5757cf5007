// Package settings persists the singleton user personalization settings.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"newsdeck/internal/domain/entity"
	"newsdeck/internal/infra/codec"
	"newsdeck/internal/observability/metrics"
	"newsdeck/internal/repository"
)

// StorageKey is the BlobStore key of the settings record.
const StorageKey = "user_settings"

// Store reads and writes the settings record.
type Store struct {
	mu     sync.Mutex
	blobs  repository.BlobStore
	logger *slog.Logger
}

// NewStore creates a Store over blobs.
func NewStore(blobs repository.BlobStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{blobs: blobs, logger: logger}
}

// Get returns the stored settings, or the defaults when none are stored or
// the record cannot be read.
func (s *Store) Get(ctx context.Context) entity.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx)
}

// Save validates and stores settings.
func (s *Store) Save(ctx context.Context, settings entity.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, settings)
}

// Update applies patch to the current settings and stores the result.
// An invalid result is rejected and nothing is stored.
func (s *Store) Update(ctx context.Context, patch entity.SettingsPatch) (entity.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.get(ctx)
	next := current.Apply(patch)
	if err := next.Validate(); err != nil {
		return current, err
	}
	if err := s.put(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}

// Reset removes the stored record so Get returns the defaults again.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.blobs.Delete(ctx, StorageKey); err != nil {
		metrics.RecordStorageError("settings_delete")
		return fmt.Errorf("reset settings: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context) entity.Settings {
	blob, err := s.blobs.Get(ctx, StorageKey)
	if errors.Is(err, repository.ErrBlobNotFound) {
		return entity.DefaultSettings()
	}
	if err != nil {
		metrics.RecordStorageError("settings_get")
		s.logger.Error("failed to read settings, using defaults", slog.Any("error", err))
		return entity.DefaultSettings()
	}

	var settings entity.Settings
	if err := codec.Unmarshal(blob, &settings); err != nil {
		metrics.RecordStorageError("settings_decode")
		s.logger.Warn("unreadable settings record, using defaults", slog.Any("error", err))
		return entity.DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		s.logger.Warn("stored settings are invalid, using defaults", slog.Any("error", err))
		return entity.DefaultSettings()
	}
	return settings
}

func (s *Store) put(ctx context.Context, settings entity.Settings) error {
	blob, err := codec.Marshal(settings)
	if err == nil {
		err = s.blobs.Set(ctx, StorageKey, blob)
	}
	if err != nil {
		metrics.RecordStorageError("settings_set")
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
