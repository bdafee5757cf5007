package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newsdeck/internal/domain/entity"
	"newsdeck/internal/observability/metrics"
)

// Backup is a portable copy of the locally derived personalization data.
type Backup struct {
	Interactions []entity.InteractionEvent `json:"interactions"`
	Embedding    *entity.EmbeddingSnapshot `json:"embedding,omitempty"`
	Settings     *entity.Settings          `json:"settings,omitempty"`
	ExportedAt   time.Time                 `json:"exported_at"`
}

// Export collects the ledger, the latest embedding and the settings.
func (s *Scheduler) Export(ctx context.Context) (Backup, error) {
	snapshot, err := s.deps.Embeddings.Latest(ctx)
	if err != nil {
		return Backup{}, fmt.Errorf("export: %w", err)
	}
	prefs := s.deps.Settings.Get(ctx)
	return Backup{
		Interactions: s.deps.Ledger.All(ctx),
		Embedding:    snapshot,
		Settings:     &prefs,
		ExportedAt:   s.deps.Clock.Now(),
	}, nil
}

// Import restores the parts present in b. Settings and embedding are validated
// before anything is written.
func (s *Scheduler) Import(ctx context.Context, b Backup) error {
	if b.Settings != nil {
		if err := b.Settings.Validate(); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}
	if b.Embedding != nil {
		if err := b.Embedding.Vector.Validate(); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}
	for i := range b.Interactions {
		if err := b.Interactions[i].Validate(); err != nil {
			return fmt.Errorf("import interaction %d: %w", i, err)
		}
	}

	if b.Interactions != nil {
		if err := s.deps.Ledger.Replace(ctx, b.Interactions); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}
	if b.Embedding != nil {
		if err := s.deps.Embeddings.Save(ctx, *b.Embedding); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}
	if b.Settings != nil {
		if err := s.deps.Settings.Save(ctx, *b.Settings); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}
	s.deps.Logger.Info("backup imported", slog.Int("interactions", len(b.Interactions)))
	return nil
}

// ClearData wipes the ledger, the embedding, the settings and the last sync
// time, and resets the session to idle.
func (s *Scheduler) ClearData(ctx context.Context) error {
	errs := []error{
		s.deps.Ledger.Clear(ctx),
		s.deps.Embeddings.Clear(ctx),
		s.deps.Settings.Reset(ctx),
	}
	if s.deps.Blobs != nil {
		errs = append(errs, s.deps.Blobs.Delete(ctx, LastUpdateKey))
	}

	s.mu.Lock()
	if s.state != StateSyncing {
		s.state = StateIdle
	}
	s.sessionStart = time.Time{}
	s.sessionID = ""
	s.processed = 0
	s.lastUpdate = time.Time{}
	s.lastDrift = nil
	s.mu.Unlock()
	metrics.UpdatePendingInteractions(0)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("clear data: %w", err)
	}
	s.deps.Logger.Info("local personalization data cleared")
	return nil
}

// PruneRetention drops ledger events older than days and returns how many
// were removed.
func (s *Scheduler) PruneRetention(ctx context.Context, days int) int {
	removed := s.deps.Ledger.PruneOlderThan(ctx, days)
	if removed > 0 {
		s.deps.Logger.Info("pruned old interactions",
			slog.Int("removed", removed),
			slog.Int("days_kept", days))
	}
	return removed
}
