package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdeck/internal/domain/entity"
)

func TestExportImport(t *testing.T) {
	src := newFixture(t, 1)
	ctx := context.Background()
	_, err := src.sched.RecordInteraction(ctx, view("a", "tech"))
	require.NoError(t, err)

	backup, err := src.sched.Export(ctx)
	require.NoError(t, err)
	require.Len(t, backup.Interactions, 1)
	require.NotNil(t, backup.Embedding)
	assert.Equal(t, 1, backup.Settings.UpdateFrequency)
	assert.Equal(t, t0, backup.ExportedAt)

	dst := newFixture(t, 10)
	require.NoError(t, dst.sched.Import(ctx, backup))

	if diff := cmp.Diff(backup.Interactions, dst.deps.Ledger.All(ctx)); diff != "" {
		t.Errorf("imported ledger mismatch (-want +got):\n%s", diff)
	}
	snapshot, err := dst.deps.Embeddings.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.InDeltaSlice(t, []float64(backup.Embedding.Vector), []float64(snapshot.Vector), 1e-12)
	assert.Equal(t, 1, dst.deps.Settings.Get(ctx).UpdateFrequency)
}

func TestImport_RejectsInvalidWithoutWriting(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	bad := entity.DefaultSettings()
	bad.UpdateFrequency = 0
	err := f.sched.Import(ctx, Backup{
		Interactions: []entity.InteractionEvent{view("a", "")},
		Settings:     &bad,
	})
	assert.ErrorIs(t, err, entity.ErrValidationFailed)
	assert.Empty(t, f.deps.Ledger.All(ctx))
	assert.Equal(t, 4, f.deps.Settings.Get(ctx).UpdateFrequency)

	err = f.sched.Import(ctx, Backup{Embedding: &entity.EmbeddingSnapshot{Vector: entity.EmbeddingVector{1, 2}}})
	assert.ErrorIs(t, err, entity.ErrValidationFailed)
}

func TestClearData(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	f.sched.StartSession()
	_, err := f.sched.RecordInteraction(ctx, view("a", ""))
	require.NoError(t, err)

	require.NoError(t, f.sched.ClearData(ctx))

	status := f.sched.LocalStatus(ctx)
	assert.Equal(t, StateIdle, status.State)
	assert.Nil(t, status.LastUpdated)
	assert.Zero(t, status.LocalInteractions)
	assert.Equal(t, entity.DefaultSettings(), f.deps.Settings.Get(ctx))
	snapshot, err := f.deps.Embeddings.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot)
	assert.Zero(t, f.blobs.Len())
}

func TestPruneRetention(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.sched.RecordInteraction(ctx, view("old", ""))
	require.NoError(t, err)
	f.clock.Advance(31 * 24 * time.Hour)
	_, err = f.sched.RecordInteraction(ctx, view("new", ""))
	require.NoError(t, err)

	assert.Equal(t, 1, f.sched.PruneRetention(ctx, 30))
	events := f.deps.Ledger.All(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].ArticleID)
}
