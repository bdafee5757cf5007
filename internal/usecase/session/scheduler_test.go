package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdeck/internal/common/clock"
	"newsdeck/internal/domain/entity"
	"newsdeck/internal/infra/adapter/persistence/kv"
	"newsdeck/internal/infra/adapter/persistence/memory"
	"newsdeck/internal/infra/remote"
	"newsdeck/internal/usecase/ledger"
	"newsdeck/internal/usecase/settings"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

/* ───────────────────────── fakes ───────────────────────── */

type fakeUploader struct {
	mu      sync.Mutex
	updates []remote.EmbeddingUpdate
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeUploader) UpdateEmbedding(_ context.Context, u remote.EmbeddingUpdate) (json.RawMessage, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"status":"ok"}`), nil
}

func (f *fakeUploader) EmbeddingStatus(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"has_embedding":true}`), nil
}

func (f *fakeUploader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeUploader) last() remote.EmbeddingUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates[len(f.updates)-1]
}

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) Like(_ context.Context, id string) remote.NotifyResult {
	f.sent = append(f.sent, "like:"+id)
	return remote.NotifyResult{Endpoint: "like", OK: true}
}

func (f *fakeNotifier) Bookmark(_ context.Context, id string) remote.NotifyResult {
	f.sent = append(f.sent, "bookmark:"+id)
	return remote.NotifyResult{Endpoint: "bookmark", OK: true}
}

func (f *fakeNotifier) Share(_ context.Context, id string, share remote.ShareRequest) remote.NotifyResult {
	f.sent = append(f.sent, "share:"+id+":"+share.Platform)
	return remote.NotifyResult{Endpoint: "share", OK: true}
}

type fixture struct {
	sched    *Scheduler
	uploader *fakeUploader
	notifier *fakeNotifier
	blobs    *memory.BlobStore
	clock    *clock.Fake
	deps     Deps
}

func newFixture(t *testing.T, frequency int) fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobs := memory.NewBlobStore()
	clk := clock.NewFake(t0)

	prefs := settings.NewStore(blobs, logger)
	freq := frequency
	_, err := prefs.Update(ctx, entity.SettingsPatch{UpdateFrequency: &freq})
	require.NoError(t, err)

	uploader := &fakeUploader{}
	notifier := &fakeNotifier{}
	deps := Deps{
		Ledger:     ledger.New(blobs, clk, logger),
		Settings:   prefs,
		Embeddings: kv.NewEmbeddingRepo(blobs),
		Blobs:      blobs,
		Uploader:   uploader,
		Notifier:   notifier,
		Clock:      clk,
		Logger:     logger,
	}
	sched := New(ctx, deps, Options{DeviceType: "tablet", AppVersion: "2.1.0"})
	return fixture{sched: sched, uploader: uploader, notifier: notifier, blobs: blobs, clock: clk, deps: deps}
}

func view(id, category string) entity.InteractionEvent {
	return entity.InteractionEvent{Type: entity.InteractionView, ArticleID: id, Category: category}
}

func like(id, category string) entity.InteractionEvent {
	return entity.InteractionEvent{Type: entity.InteractionLike, ArticleID: id, Category: category}
}

// historyRepo is an EmbeddingRepository that computes drift itself.
type historyRepo struct {
	*kv.EmbeddingRepo
	drift float64
	calls int
}

func (h *historyRepo) History(context.Context, int) ([]entity.EmbeddingSnapshot, error) {
	return nil, nil
}

func (h *historyRepo) Drift(context.Context, entity.EmbeddingVector) (float64, bool, error) {
	h.calls++
	return h.drift, true, nil
}

/* ───────────────────────── 1. Threshold ───────────────────────── */

func TestRecordInteraction_SyncsAtThreshold(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	f.sched.StartSession()

	for i, id := range []string{"a", "b"} {
		_, err := f.sched.RecordInteraction(ctx, like(id, "tech"))
		require.NoError(t, err)
		assert.Zero(t, f.uploader.count(), "no sync after %d interactions", i+1)
	}

	f.clock.Advance(time.Minute)
	_, err := f.sched.RecordInteraction(ctx, view("c", "science"))
	require.NoError(t, err)
	require.Equal(t, 1, f.uploader.count())

	sent := f.uploader.last()
	assert.Equal(t, 3, sent.ArticlesProcessed)
	assert.Len(t, sent.EmbeddingVector, entity.EmbeddingDimension)
	assert.Equal(t, t0, sent.SessionStart)
	assert.Equal(t, t0.Add(time.Minute), sent.SessionEnd)
	assert.Equal(t, "tablet", sent.DeviceType)
	assert.Equal(t, "2.1.0", sent.InteractionSummary.AppVersion)
	assert.Equal(t, map[string]int{"tech": 2, "science": 1}, sent.InteractionSummary.CategoryExposure)
	assert.Equal(t, 2, sent.InteractionSummary.EngagementMetrics.LikedArticles)

	status := f.sched.LocalStatus(ctx)
	assert.Zero(t, status.ArticlesSinceUpdate)
	assert.False(t, status.SyncRequired)
	require.NotNil(t, status.LastUpdated)
	assert.Equal(t, t0.Add(time.Minute), *status.LastUpdated)
	assert.Equal(t, StateSessionActive, status.State)

	snapshot, err := f.deps.Embeddings.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, entity.EmbeddingVersion, snapshot.Version)
	assert.InDelta(t, 1.0, snapshot.Vector.Magnitude(), 1e-9)
}

func TestRecordInteraction_FailedSyncRetriesOnNextInteraction(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	f.sched.StartSession()
	f.uploader.err = errors.New("server returned 503")

	_, err := f.sched.RecordInteraction(ctx, view("a", ""))
	require.NoError(t, err)
	_, err = f.sched.RecordInteraction(ctx, view("b", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyncFailed)

	status := f.sched.LocalStatus(ctx)
	assert.Equal(t, 2, status.ArticlesSinceUpdate, "counter kept for retry")
	assert.True(t, status.SyncRequired)
	assert.Nil(t, status.LastUpdated)
	assert.Equal(t, StateSessionActive, status.State)

	snapshot, err := f.deps.Embeddings.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot, "nothing persisted on failure")

	f.uploader.err = nil
	_, err = f.sched.RecordInteraction(ctx, view("c", ""))
	require.NoError(t, err)
	assert.Equal(t, 2, f.uploader.count())
	assert.Equal(t, 3, f.uploader.last().ArticlesProcessed, "retry covers the whole pending batch")
	assert.Zero(t, f.sched.LocalStatus(ctx).ArticlesSinceUpdate)
}

func TestRecordInteraction_RejectsInvalidEvent(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.sched.RecordInteraction(context.Background(), entity.InteractionEvent{Type: "poke", ArticleID: "a"})
	assert.ErrorIs(t, err, entity.ErrValidationFailed)
	assert.Zero(t, f.sched.LocalStatus(context.Background()).ArticlesSinceUpdate)
}

func TestRecordInteraction_ImplicitSession(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.sched.RecordInteraction(ctx, view("a", ""))
	require.NoError(t, err)
	assert.True(t, f.sched.LocalStatus(ctx).SessionActive)
}

/* ───────────────────────── 2. Sync guards ───────────────────────── */

func TestSync_DisabledInSettings(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	_, err := f.deps.Settings.Update(ctx, entity.SettingsPatch{SyncEnabled: entity.Bool(false)})
	require.NoError(t, err)

	for _, id := range []string{"a", "b"} {
		_, err := f.sched.RecordInteraction(ctx, view(id, ""))
		require.NoError(t, err)
	}
	assert.Zero(t, f.uploader.count())

	status := f.sched.LocalStatus(ctx)
	assert.Equal(t, 2, status.ArticlesSinceUpdate)
	assert.True(t, status.SyncRequired)
	assert.False(t, status.SyncEnabled)
}

func TestSync_NothingPending(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	ack, err := f.sched.Sync(ctx)
	require.NoError(t, err)
	assert.Nil(t, ack)

	ack, err = f.sched.ForceSync(ctx)
	require.NoError(t, err)
	assert.Nil(t, ack, "empty ledger is not uploaded even when forced")
	assert.Zero(t, f.uploader.count())
}

func TestForceSync_UploadsLedger(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	_, ok := f.deps.Ledger.Append(ctx, view("a", "world"))
	require.True(t, ok)

	ack, err := f.sched.ForceSync(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(ack))
	assert.Zero(t, f.uploader.last().ArticlesProcessed)
	assert.Equal(t, StateIdle, f.sched.LocalStatus(ctx).State)
}

func TestSync_SecondTriggerWhileSyncingIsNoop(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	f.uploader.block = make(chan struct{})
	f.uploader.entered = make(chan struct{}, 1)
	f.sched.StartSession()

	done := make(chan error, 1)
	go func() {
		_, err := f.sched.RecordInteraction(ctx, view("a", ""))
		done <- err
	}()
	<-f.uploader.entered

	assert.Equal(t, StateSyncing, f.sched.LocalStatus(ctx).State)
	_, err := f.sched.RecordInteraction(ctx, view("b", ""))
	require.NoError(t, err, "recording during a sync only counts")

	close(f.uploader.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.uploader.count())

	status := f.sched.LocalStatus(ctx)
	assert.Equal(t, 1, status.ArticlesSinceUpdate, "interaction recorded during the upload stays pending")
	assert.Equal(t, StateSessionActive, status.State)
}

/* ───────────────────────── 3. Session end ───────────────────────── */

func TestEndSession(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	assert.ErrorIs(t, f.sched.EndSession(ctx), ErrSessionNotActive)

	f.sched.StartSession()
	_, err := f.sched.RecordInteraction(ctx, view("a", ""))
	require.NoError(t, err)

	require.NoError(t, f.sched.EndSession(ctx))
	assert.Equal(t, 1, f.uploader.count(), "pending interactions force a final sync")
	assert.Equal(t, StateIdle, f.sched.LocalStatus(ctx).State)
}

func TestEndSession_FailedSyncKeepsSession(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	f.sched.StartSession()
	_, err := f.sched.RecordInteraction(ctx, view("a", ""))
	require.NoError(t, err)

	f.uploader.err = errors.New("timeout")
	assert.ErrorIs(t, f.sched.EndSession(ctx), ErrSyncFailed)
	status := f.sched.LocalStatus(ctx)
	assert.True(t, status.SessionActive)
	assert.Equal(t, 1, status.ArticlesSinceUpdate)
}

func TestEndSession_WaitsForFailingInFlightSync(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	f.uploader.err = errors.New("network down")
	f.uploader.block = make(chan struct{})
	f.uploader.entered = make(chan struct{}, 2)
	f.sched.StartSession()

	_, err := f.sched.RecordInteraction(ctx, view("a", ""))
	require.NoError(t, err)

	inFlight := make(chan error, 1)
	go func() {
		_, err := f.sched.RecordInteraction(ctx, view("b", ""))
		inFlight <- err
	}()
	<-f.uploader.entered

	ended := make(chan error, 1)
	go func() { ended <- f.sched.EndSession(ctx) }()
	select {
	case err := <-ended:
		t.Fatalf("EndSession returned %v while an upload was in flight", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(f.uploader.block)
	assert.ErrorIs(t, <-inFlight, ErrSyncFailed)
	assert.ErrorIs(t, <-ended, ErrSyncFailed, "the final sync retried the pending batch")

	status := f.sched.LocalStatus(ctx)
	assert.Equal(t, StateSessionActive, status.State)
	assert.Equal(t, 2, status.ArticlesSinceUpdate, "counter kept for retry")
	assert.Equal(t, 2, f.uploader.count())
}

func TestEndSession_WaitsForSucceedingInFlightSync(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	f.uploader.block = make(chan struct{})
	f.uploader.entered = make(chan struct{}, 2)
	f.sched.StartSession()

	_, err := f.sched.RecordInteraction(ctx, view("a", ""))
	require.NoError(t, err)

	inFlight := make(chan error, 1)
	go func() {
		_, err := f.sched.RecordInteraction(ctx, view("b", ""))
		inFlight <- err
	}()
	<-f.uploader.entered

	ended := make(chan error, 1)
	go func() { ended <- f.sched.EndSession(ctx) }()

	close(f.uploader.block)
	require.NoError(t, <-inFlight)
	require.NoError(t, <-ended)

	status := f.sched.LocalStatus(ctx)
	assert.Equal(t, StateIdle, status.State)
	assert.Zero(t, status.ArticlesSinceUpdate)
	assert.Equal(t, 1, f.uploader.count(), "nothing left to sync after the in-flight upload")
}

func TestEndSession_ContextCanceledWhileWaiting(t *testing.T) {
	f := newFixture(t, 1)
	f.uploader.block = make(chan struct{})
	f.uploader.entered = make(chan struct{}, 1)
	f.sched.StartSession()

	inFlight := make(chan error, 1)
	go func() {
		_, err := f.sched.RecordInteraction(context.Background(), view("a", ""))
		inFlight <- err
	}()
	<-f.uploader.entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.sched.EndSession(ctx), context.Canceled)
	assert.Equal(t, StateSyncing, f.sched.LocalStatus(context.Background()).State, "session left untouched")

	close(f.uploader.block)
	require.NoError(t, <-inFlight)
	assert.Equal(t, StateSessionActive, f.sched.LocalStatus(context.Background()).State)
}

/* ───────────────────────── 4. Drift and hooks ───────────────────────── */

func TestSync_ReportsDriftAgainstPreviousSnapshot(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.sched.RecordInteraction(ctx, like("a", "tech"))
	require.NoError(t, err)
	assert.Nil(t, f.sched.LocalStatus(ctx).EmbeddingDrift, "no previous snapshot")

	_, err = f.sched.RecordInteraction(ctx, like("a", "tech"))
	require.NoError(t, err)
	drift := f.sched.LocalStatus(ctx).EmbeddingDrift
	require.NotNil(t, drift)
	assert.InDelta(t, 0.0, *drift, 1e-9, "same interests, same direction")

	_, err = f.sched.RecordInteraction(ctx, entity.InteractionEvent{
		Type: entity.InteractionDislike, ArticleID: "z", Category: "sports", Source: "tabloid",
	})
	require.NoError(t, err)
	drift = f.sched.LocalStatus(ctx).EmbeddingDrift
	require.NotNil(t, drift)
	assert.Greater(t, *drift, 0.0)

	require.NoError(t, f.sched.ClearData(ctx))
	assert.Nil(t, f.sched.LocalStatus(ctx).EmbeddingDrift)
}

func TestSync_UsesStoreDriftWhenAvailable(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	repo := &historyRepo{EmbeddingRepo: kv.NewEmbeddingRepo(f.blobs), drift: 0.25}
	deps := f.deps
	deps.Embeddings = repo
	sched := New(ctx, deps, Options{})

	_, err := sched.RecordInteraction(ctx, view("a", "tech"))
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls)
	drift := sched.LocalStatus(ctx).EmbeddingDrift
	require.NotNil(t, drift)
	assert.Equal(t, 0.25, *drift)
}

func TestSync_RunsAfterSyncHook(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	var hooked int
	deps := f.deps
	deps.AfterSync = func(context.Context) error {
		hooked++
		return errors.New("cache unavailable")
	}
	sched := New(ctx, deps, Options{})

	_, err := sched.RecordInteraction(ctx, view("a", ""))
	require.NoError(t, err, "hook failure does not fail the sync")
	assert.Equal(t, 1, hooked)

	f.uploader.err = errors.New("503")
	_, err = sched.RecordInteraction(ctx, view("b", ""))
	require.ErrorIs(t, err, ErrSyncFailed)
	assert.Equal(t, 1, hooked, "not run after a failed upload")
}

func TestNew_NilLoggerDiscards(t *testing.T) {
	f := newFixture(t, 1)
	deps := f.deps
	deps.Logger = nil
	sched := New(context.Background(), deps, Options{})

	assert.NotPanics(t, func() {
		sched.StartSession()
		_, _ = sched.RecordInteraction(context.Background(), view("a", ""))
	})
}

func TestNew_RestoresLastUpdate(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	_, err := f.sched.RecordInteraction(ctx, view("a", ""))
	require.NoError(t, err)

	restarted := New(ctx, f.deps, Options{})
	last := restarted.LocalStatus(ctx).LastUpdated
	require.NotNil(t, last)
	assert.True(t, last.Equal(t0))
}

func TestRemoteStatus(t *testing.T) {
	f := newFixture(t, 1)
	status, err := f.sched.RemoteStatus(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"has_embedding":true}`, string(status))
}
