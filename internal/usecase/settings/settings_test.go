package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdeck/internal/domain/entity"
	"newsdeck/internal/infra/adapter/persistence/memory"
)

func newTestStore(t *testing.T) (*Store, *memory.BlobStore) {
	t.Helper()
	blobs := memory.NewBlobStore()
	return NewStore(blobs, slog.New(slog.NewTextHandler(io.Discard, nil))), blobs
}

func TestGet_DefaultsWhenAbsent(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Equal(t, entity.DefaultSettings(), s.Get(context.Background()))
}

func TestUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	freq := 3
	got, err := s.Update(ctx, entity.SettingsPatch{UpdateFrequency: &freq, SyncEnabled: entity.Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, 3, got.UpdateFrequency)
	assert.False(t, got.SyncEnabled)
	assert.Equal(t, entity.PrivacyHigh, got.PrivacyLevel, "untouched fields keep their value")
	assert.Equal(t, got, s.Get(ctx))
}

func TestUpdate_RejectsInvalid(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	zero := 0
	got, err := s.Update(ctx, entity.SettingsPatch{UpdateFrequency: &zero})
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrValidationFailed)
	assert.Equal(t, entity.DefaultSettings(), got)
	assert.Equal(t, 10, s.Get(ctx).UpdateFrequency)

	level := "paranoid"
	_, err = s.Update(ctx, entity.SettingsPatch{PrivacyLevel: &level})
	var validationErr *entity.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "privacy_level", validationErr.Field)
}

func TestGet_StorageFailureUsesDefaults(t *testing.T) {
	s, blobs := newTestStore(t)
	ctx := context.Background()

	custom := entity.DefaultSettings()
	custom.UpdateFrequency = 5
	require.NoError(t, s.Save(ctx, custom))

	blobs.FailWith(errors.New("disk I/O error"))
	assert.Equal(t, entity.DefaultSettings(), s.Get(ctx))
	assert.Error(t, s.Save(ctx, custom))
}

func TestGet_CorruptRecordUsesDefaults(t *testing.T) {
	s, blobs := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, blobs.Set(ctx, StorageKey, []byte("not cbor")))

	assert.Equal(t, entity.DefaultSettings(), s.Get(ctx))
}

func TestReset(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	model := "remote"
	_, err := s.Update(ctx, entity.SettingsPatch{EmbeddingModel: &model})
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, entity.DefaultSettings(), s.Get(ctx))
}
