package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"newsdeck/internal/common/clock"
	"newsdeck/internal/domain/entity"
	"newsdeck/internal/infra/codec"
	"newsdeck/internal/infra/remote"
	"newsdeck/internal/observability/logging"
	"newsdeck/internal/observability/metrics"
	"newsdeck/internal/observability/tracing"
	"newsdeck/internal/repository"
	"newsdeck/internal/usecase/embedding"
	"newsdeck/internal/usecase/ledger"
	"newsdeck/internal/usecase/settings"
)

// LastUpdateKey is the BlobStore key of the time of the last successful sync.
const LastUpdateKey = "last_embedding_update"

// State is the scheduler's position in its lifecycle.
type State string

const (
	StateIdle          State = "idle"
	StateSessionActive State = "session_active"
	StateSyncing       State = "syncing"
)

// Uploader is the part of the Remote API that receives embeddings.
type Uploader interface {
	UpdateEmbedding(ctx context.Context, update remote.EmbeddingUpdate) (json.RawMessage, error)
	EmbeddingStatus(ctx context.Context) (json.RawMessage, error)
}

// Notifier sends best-effort engagement notifications.
type Notifier interface {
	Like(ctx context.Context, id string) remote.NotifyResult
	Bookmark(ctx context.Context, id string) remote.NotifyResult
	Share(ctx context.Context, id string, share remote.ShareRequest) remote.NotifyResult
}

// Deps are the collaborators of a Scheduler. Notifier and AfterSync may be nil.
type Deps struct {
	Ledger     *ledger.Ledger
	Settings   *settings.Store
	Embeddings repository.EmbeddingRepository
	Blobs      repository.BlobStore
	Uploader   Uploader
	Notifier   Notifier
	Clock      clock.Clock
	Logger     *slog.Logger

	// AfterSync runs after every successful upload. Its error is logged.
	AfterSync func(ctx context.Context) error
}

// Options describe the device in sync summaries.
type Options struct {
	DeviceType string
	AppVersion string
}

// Scheduler owns the session counters. It is safe for concurrent use; the lock
// is never held across the upload, and at most one sync runs at a time.
type Scheduler struct {
	mu           sync.Mutex
	state        State
	sessionStart time.Time
	processed    int
	lastUpdate   time.Time
	lastDrift    *float64
	sessionID    string
	// syncDone is closed when the in-flight sync finishes.
	syncDone chan struct{}

	deps Deps
	opts Options
}

// New creates an idle Scheduler and restores the last sync time from storage.
func New(ctx context.Context, deps Deps, opts Options) *Scheduler {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if opts.DeviceType == "" {
		opts.DeviceType = "mobile"
	}
	if opts.AppVersion == "" {
		opts.AppVersion = "1.0.0"
	}
	s := &Scheduler{state: StateIdle, deps: deps, opts: opts}
	s.lastUpdate = s.loadLastUpdate(ctx)
	return s
}

// StartSession begins a session, resetting the interaction counter.
func (s *Scheduler) StartSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionStart = s.deps.Clock.Now()
	s.sessionID = uuid.NewString()
	s.processed = 0
	if s.state != StateSyncing {
		s.state = StateSessionActive
	}
	metrics.UpdatePendingInteractions(0)
	s.sessionLogger(context.Background(), s.sessionID).Info("session started",
		slog.Time("session_start", s.sessionStart))
}

// sessionLogger tags the scheduler's logger with the session id.
func (s *Scheduler) sessionLogger(ctx context.Context, id string) *slog.Logger {
	if id == "" {
		return s.deps.Logger
	}
	return logging.WithSession(logging.WithSessionID(ctx, id), s.deps.Logger)
}

// RecordInteraction appends event to the ledger and counts it. When the count
// reaches the configured update frequency a sync runs before returning, and
// its failure is returned wrapped in ErrSyncFailed. An interaction recorded
// while idle starts a session.
func (s *Scheduler) RecordInteraction(ctx context.Context, event entity.InteractionEvent) (entity.InteractionEvent, error) {
	if err := event.Validate(); err != nil {
		return event, err
	}
	stored, _ := s.deps.Ledger.Append(ctx, event)

	threshold := s.deps.Settings.Get(ctx).UpdateFrequency
	s.mu.Lock()
	if s.state == StateIdle {
		s.sessionStart = s.deps.Clock.Now()
		s.sessionID = uuid.NewString()
		s.state = StateSessionActive
		s.sessionLogger(ctx, s.sessionID).Debug("session started implicitly")
	}
	s.processed++
	due := s.processed >= threshold
	metrics.UpdatePendingInteractions(s.processed)
	s.mu.Unlock()

	if due {
		if _, err := s.sync(ctx, false); err != nil {
			return stored, err
		}
	}
	return stored, nil
}

// Sync uploads the embedding if any interactions are pending. It is a no-op
// while another sync is in flight or when sync is disabled in settings.
func (s *Scheduler) Sync(ctx context.Context) (json.RawMessage, error) {
	return s.sync(ctx, false)
}

// ForceSync uploads the embedding even when no interactions are pending, as
// long as the ledger is not empty. Disabled sync is still honored.
func (s *Scheduler) ForceSync(ctx context.Context) (json.RawMessage, error) {
	return s.sync(ctx, true)
}

// EndSession runs a final sync if interactions are pending and returns to
// idle. A sync already in flight is waited for first, and its interactions
// count as pending again if it fails. If the final sync fails the session
// stays active and the error is returned.
func (s *Scheduler) EndSession(ctx context.Context) error {
	attempted := false
	for {
		s.mu.Lock()
		if s.state == StateIdle {
			s.mu.Unlock()
			return ErrSessionNotActive
		}
		if s.state == StateSyncing {
			done := s.syncDone
			s.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return fmt.Errorf("end session: %w", ctx.Err())
			}
			continue
		}
		if s.processed > 0 && !attempted {
			s.mu.Unlock()
			_, busy, err := s.trySync(ctx, false)
			if err != nil {
				return err
			}
			attempted = !busy
			continue
		}

		id := s.sessionID
		s.state = StateIdle
		s.sessionStart = time.Time{}
		s.sessionID = ""
		s.processed = 0
		metrics.UpdatePendingInteractions(0)
		s.mu.Unlock()
		s.sessionLogger(ctx, id).Info("session ended")
		return nil
	}
}

func (s *Scheduler) sync(ctx context.Context, force bool) (json.RawMessage, error) {
	ack, _, err := s.trySync(ctx, force)
	return ack, err
}

// trySync is sync that also reports whether it stepped aside for a sync
// already in flight.
func (s *Scheduler) trySync(ctx context.Context, force bool) (ack json.RawMessage, busy bool, err error) {
	prefs := s.deps.Settings.Get(ctx)

	s.mu.Lock()
	switch {
	case s.state == StateSyncing:
		s.mu.Unlock()
		return nil, true, nil
	case !prefs.SyncEnabled:
		s.mu.Unlock()
		metrics.RecordSync("skipped", 0)
		s.deps.Logger.Debug("sync disabled in settings")
		return nil, false, nil
	case s.processed == 0 && !force:
		s.mu.Unlock()
		return nil, false, nil
	}
	s.state = StateSyncing
	s.syncDone = make(chan struct{})
	processed, start, id := s.processed, s.sessionStart, s.sessionID
	s.mu.Unlock()
	logger := s.sessionLogger(ctx, id)

	began := time.Now()
	ctx, span := tracing.StartSpan(ctx, "session.Sync",
		attribute.Int("articles_processed", processed),
		attribute.Bool("forced", force))
	defer func() { tracing.EndSpan(span, err) }()

	events := s.deps.Ledger.All(ctx)
	if force && processed == 0 && len(events) == 0 {
		s.finish(0, false, time.Time{})
		return nil, false, nil
	}

	now := s.deps.Clock.Now()
	if start.IsZero() {
		start = now
	}
	vector := embedding.Compute(events)
	summary := s.summarize(events, processed, start, now)

	ack, err = s.deps.Uploader.UpdateEmbedding(ctx, remote.EmbeddingUpdate{
		EmbeddingVector:    vector,
		InteractionSummary: summary,
		SessionStart:       start,
		SessionEnd:         now,
		ArticlesProcessed:  processed,
		DeviceType:         s.opts.DeviceType,
		AppVersion:         s.opts.AppVersion,
	})
	if err != nil {
		s.finish(0, false, time.Time{})
		metrics.RecordSync("failure", time.Since(began))
		logger.Warn("embedding sync failed, will retry on next interaction",
			slog.Int("articles_processed", processed),
			slog.Any("error", err))
		return nil, false, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}

	drift, hasDrift := s.drift(ctx, vector, logger)
	if err := s.deps.Embeddings.Save(ctx, entity.EmbeddingSnapshot{
		Vector:    vector,
		Timestamp: now,
		Version:   entity.EmbeddingVersion,
	}); err != nil {
		metrics.RecordStorageError("embedding_save")
		logger.Error("failed to persist embedding", slog.Any("error", err))
	}
	s.saveLastUpdate(ctx, now)
	if hasDrift {
		s.mu.Lock()
		s.lastDrift = &drift
		s.mu.Unlock()
	}
	s.finish(processed, true, now)
	metrics.RecordSync("success", time.Since(began))

	fields := map[string]interface{}{
		"articles_processed": processed,
		"ledger_size":        len(events),
	}
	if hasDrift {
		fields["embedding_drift"] = drift
	}
	logging.WithFields(logger, fields).Info("embedding sync succeeded")

	if s.deps.AfterSync != nil {
		if err := s.deps.AfterSync(ctx); err != nil {
			logger.Warn("post-sync hook failed", slog.Any("error", err))
		}
	}
	return ack, false, nil
}

// drift is the cosine distance between v and the last stored embedding.
// Stores that keep a history compute it themselves.
func (s *Scheduler) drift(ctx context.Context, v entity.EmbeddingVector, logger *slog.Logger) (float64, bool) {
	if history, ok := s.deps.Embeddings.(repository.EmbeddingHistory); ok {
		d, found, err := history.Drift(ctx, v)
		if err != nil {
			logger.Warn("embedding drift unavailable", slog.Any("error", err))
			return 0, false
		}
		return d, found
	}
	prev, err := s.deps.Embeddings.Latest(ctx)
	if err != nil || prev == nil {
		return 0, false
	}
	return 1 - embedding.Similarity(prev.Vector, v), true
}

// finish leaves the Syncing state for SessionActive, or Idle when no session
// is running. On success the synced interactions are subtracted from the
// counter; interactions recorded during the upload stay pending.
func (s *Scheduler) finish(synced int, ok bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSyncing {
		s.state = StateSessionActive
		if s.sessionStart.IsZero() {
			s.state = StateIdle
		}
	}
	if s.syncDone != nil {
		close(s.syncDone)
		s.syncDone = nil
	}
	if ok {
		s.processed -= synced
		if s.processed < 0 {
			s.processed = 0
		}
		s.lastUpdate = at
	}
	metrics.UpdatePendingInteractions(s.processed)
}

func (s *Scheduler) summarize(events []entity.InteractionEvent, processed int, start, end time.Time) remote.InteractionSummary {
	stats := ledger.StatsOf(events, end)

	var total float64
	var timed int
	for _, e := range events {
		if e.Type == entity.InteractionView && e.ViewDurationSeconds != nil && *e.ViewDurationSeconds > 0 {
			total += *e.ViewDurationSeconds
			timed++
		}
	}
	var avg float64
	if timed > 0 {
		avg = total / float64(timed)
	}

	return remote.InteractionSummary{
		ArticlesProcessed:  processed,
		SessionStart:       start,
		SessionEnd:         end,
		AvgReadTimeSeconds: avg,
		EngagementMetrics: remote.EngagementMetrics{
			LikedArticles:      stats.ByType[entity.InteractionLike],
			SharedArticles:     stats.ByType[entity.InteractionShare],
			BookmarkedArticles: stats.ByType[entity.InteractionBookmark],
			SkippedArticles:    stats.ByType[entity.InteractionDislike],
		},
		CategoryExposure: stats.ByCategory,
		DeviceType:       s.opts.DeviceType,
		AppVersion:       s.opts.AppVersion,
	}
}

// Status is the local view of the personalization pipeline.
type Status struct {
	State               State      `json:"state"`
	LastUpdated         *time.Time `json:"last_updated"`
	ArticlesSinceUpdate int        `json:"articles_since_update"`
	SyncRequired        bool       `json:"sync_required"`
	SyncEnabled         bool       `json:"sync_enabled"`
	SessionActive       bool       `json:"session_active"`
	LocalInteractions   int        `json:"local_interactions"`
	RecentActivity      int        `json:"recent_activity"`
	EmbeddingDrift      *float64   `json:"embedding_drift,omitempty"`
}

// LocalStatus reports counters, the last sync time and ledger activity.
func (s *Scheduler) LocalStatus(ctx context.Context) Status {
	stats := s.deps.Ledger.Stats(ctx)
	prefs := s.deps.Settings.Get(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	status := Status{
		State:               s.state,
		ArticlesSinceUpdate: s.processed,
		SyncRequired:        s.processed >= prefs.UpdateFrequency,
		SyncEnabled:         prefs.SyncEnabled,
		SessionActive:       s.state != StateIdle,
		LocalInteractions:   stats.Total,
		RecentActivity:      stats.RecentActivity,
	}
	if !s.lastUpdate.IsZero() {
		last := s.lastUpdate
		status.LastUpdated = &last
	}
	if s.lastDrift != nil {
		drift := *s.lastDrift
		status.EmbeddingDrift = &drift
	}
	return status
}

// RemoteStatus returns the server's embedding status verbatim.
func (s *Scheduler) RemoteStatus(ctx context.Context) (json.RawMessage, error) {
	return s.deps.Uploader.EmbeddingStatus(ctx)
}

func (s *Scheduler) loadLastUpdate(ctx context.Context) time.Time {
	if s.deps.Blobs == nil {
		return time.Time{}
	}
	blob, err := s.deps.Blobs.Get(ctx, LastUpdateKey)
	if errors.Is(err, repository.ErrBlobNotFound) {
		return time.Time{}
	}
	var t time.Time
	if err == nil {
		err = codec.Unmarshal(blob, &t)
	}
	if err != nil {
		metrics.RecordStorageError("last_update_get")
		s.deps.Logger.Warn("last sync time unavailable", slog.Any("error", err))
		return time.Time{}
	}
	return t
}

func (s *Scheduler) saveLastUpdate(ctx context.Context, t time.Time) {
	if s.deps.Blobs == nil {
		return
	}
	blob, err := codec.Marshal(t)
	if err == nil {
		err = s.deps.Blobs.Set(ctx, LastUpdateKey, blob)
	}
	if err != nil {
		metrics.RecordStorageError("last_update_set")
		s.deps.Logger.Error("failed to persist last sync time", slog.Any("error", err))
	}
}
