// Package ledger implements the Interaction Ledger: the bounded, append-only
// log of user interactions that is the sole source of local behavioral history.
//
// Storage failures never surface to callers. Reads degrade to an empty ledger
// and Append reports whether the event was stored.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsdeck/internal/common/clock"
	"newsdeck/internal/domain/entity"
	"newsdeck/internal/infra/codec"
	"newsdeck/internal/observability/metrics"
	"newsdeck/internal/repository"
)

const (
	// Capacity is the maximum number of events kept. Older events are evicted first.
	Capacity = 1000

	// StorageKey is the BlobStore key of the ledger blob.
	StorageKey = "user_interactions"

	recentWindow = 24 * time.Hour
)

// Ledger is safe for concurrent use. Mutations are serialized.
type Ledger struct {
	mu     sync.Mutex
	store  repository.BlobStore
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a Ledger persisted in store.
func New(store repository.BlobStore, clk clock.Clock, logger *slog.Logger) *Ledger {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, clock: clk, logger: logger}
}

// Append stores event, assigning an id and timestamp when absent, and trims the
// front of the ledger to Capacity. It returns the stored event and whether it was
// persisted. Invalid events and storage failures are logged and reported as false.
func (l *Ledger) Append(ctx context.Context, event entity.InteractionEvent) (entity.InteractionEvent, bool) {
	if err := event.Validate(); err != nil {
		l.logger.Warn("interaction rejected",
			slog.String("type", string(event.Type)),
			slog.Any("error", err))
		return event, false
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.clock.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.load(ctx)
	if err != nil {
		// Appending to an unreadable ledger would overwrite it with one event.
		return event, false
	}

	events = append(events, event)
	evicted := 0
	if len(events) > Capacity {
		evicted = len(events) - Capacity
		events = append([]entity.InteractionEvent(nil), events[evicted:]...)
	}

	if err := l.save(ctx, events); err != nil {
		return event, false
	}

	metrics.RecordInteraction(string(event.Type), len(events))
	metrics.RecordLedgerEviction("capacity", evicted)
	l.logger.Debug("interaction recorded",
		slog.String("type", string(event.Type)),
		slog.String("article_id", event.ArticleID),
		slog.Int("ledger_size", len(events)))
	return event, true
}

// All returns every event in insertion order.
func (l *Ledger) All(ctx context.Context) []entity.InteractionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	events, _ := l.load(ctx)
	return events
}

// Since returns the events with a timestamp at or after t.
func (l *Ledger) Since(ctx context.Context, t time.Time) []entity.InteractionEvent {
	return l.filter(ctx, func(e entity.InteractionEvent) bool { return !e.Timestamp.Before(t) })
}

// ForArticle returns the events recorded for articleID.
func (l *Ledger) ForArticle(ctx context.Context, articleID string) []entity.InteractionEvent {
	return l.filter(ctx, func(e entity.InteractionEvent) bool { return e.ArticleID == articleID })
}

func (l *Ledger) filter(ctx context.Context, keep func(entity.InteractionEvent) bool) []entity.InteractionEvent {
	out := []entity.InteractionEvent{}
	for _, e := range l.All(ctx) {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// PruneOlderThan removes events older than days and returns how many were removed.
func (l *Ledger) PruneOlderThan(ctx context.Context, days int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.load(ctx)
	if err != nil || len(events) == 0 {
		return 0
	}

	cutoff := l.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	kept := make([]entity.InteractionEvent, 0, len(events))
	for _, e := range events {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}

	removed := len(events) - len(kept)
	if removed == 0 {
		return 0
	}
	if err := l.save(ctx, kept); err != nil {
		return 0
	}

	metrics.RecordLedgerEviction("retention", removed)
	l.logger.Info("pruned old interactions",
		slog.Int("removed", removed),
		slog.Int("days_kept", days))
	return removed
}

// Replace overwrites the ledger with events, keeping the most recent Capacity.
// Used when importing a backup.
func (l *Ledger) Replace(ctx context.Context, events []entity.InteractionEvent) error {
	if len(events) > Capacity {
		events = events[len(events)-Capacity:]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save(ctx, events)
}

// Clear removes every event.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Delete(ctx, StorageKey); err != nil {
		metrics.RecordStorageError("ledger_clear")
		l.logger.Error("failed to clear ledger", slog.Any("error", err))
		return err
	}
	metrics.UpdateLedgerSize(0)
	return nil
}

// Stats aggregates the ledger by type, category and source, and counts the
// events of the last 24 hours.
func (l *Ledger) Stats(ctx context.Context) entity.InteractionStats {
	return StatsOf(l.All(ctx), l.clock.Now())
}

// StatsOf aggregates events; RecentActivity counts events in the 24 hours before now.
func StatsOf(events []entity.InteractionEvent, now time.Time) entity.InteractionStats {
	stats := entity.NewInteractionStats()
	stats.Total = len(events)

	recent := now.Add(-recentWindow)
	for _, e := range events {
		stats.ByType[e.Type]++
		if e.Category != "" {
			stats.ByCategory[e.Category]++
		}
		if e.Source != "" {
			stats.BySource[e.Source]++
		}
		if e.Timestamp.After(recent) {
			stats.RecentActivity++
		}
	}
	return stats
}

// load must be called with mu held. A missing blob is an empty ledger; any
// other failure is logged and returned with an empty ledger.
func (l *Ledger) load(ctx context.Context) ([]entity.InteractionEvent, error) {
	blob, err := l.store.Get(ctx, StorageKey)
	if errors.Is(err, repository.ErrBlobNotFound) {
		return []entity.InteractionEvent{}, nil
	}
	if err == nil {
		var events []entity.InteractionEvent
		if err = codec.Unmarshal(blob, &events); err == nil {
			if events == nil {
				events = []entity.InteractionEvent{}
			}
			return events, nil
		}
	}

	metrics.RecordStorageError("ledger_load")
	l.logger.Error("failed to load ledger", slog.Any("error", err))
	return []entity.InteractionEvent{}, err
}

// save must be called with mu held.
func (l *Ledger) save(ctx context.Context, events []entity.InteractionEvent) error {
	blob, err := codec.Marshal(events)
	if err == nil {
		err = l.store.Set(ctx, StorageKey, blob)
	}
	if err != nil {
		metrics.RecordStorageError("ledger_save")
		l.logger.Error("failed to save ledger",
			slog.Int("events", len(events)),
			slog.Any("error", err))
		return err
	}
	metrics.UpdateLedgerSize(len(events))
	return nil
}
