package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"newsdeck/internal/config"
	"newsdeck/internal/infra/adapter/persistence/kv"
	"newsdeck/internal/infra/adapter/persistence/memory"
	"newsdeck/internal/infra/adapter/persistence/postgres"
	"newsdeck/internal/infra/adapter/persistence/sqlite"
	"newsdeck/internal/infra/db"
	"newsdeck/internal/repository"
	"newsdeck/internal/resilience/circuitbreaker"
)

// localStore is the selected persistence backend.
type localStore struct {
	driver     string
	database   *sql.DB
	blobs      *circuitbreaker.BlobStore
	embeddings repository.EmbeddingRepository
}

// openStore opens the backend named by cfg.StoreDriver and runs migrations.
// Every backend is wrapped in the store circuit breaker.
func openStore(ctx context.Context, cfg *config.EngineConfig, logger *slog.Logger) (*localStore, error) {
	s := &localStore{driver: cfg.StoreDriver}

	var inner repository.BlobStore
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		inner = memory.NewBlobStore()
	case config.StoreDriverSQLite, config.StoreDriverPostgres:
		dialect := db.DialectSQLite
		if cfg.StoreDriver == config.StoreDriverPostgres {
			dialect = db.DialectPostgres
		}
		database, err := db.Open(ctx, dialect, cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		if err := db.MigrateUp(ctx, database, dialect); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("migrate store: %w", err)
		}
		s.database = database
		if dialect == db.DialectPostgres {
			inner = postgres.NewBlobStore(database)
			s.embeddings = postgres.NewEmbeddingRepo(database)
		} else {
			inner = sqlite.NewBlobStore(database)
		}
	default:
		return nil, fmt.Errorf("open store: unknown driver %q", cfg.StoreDriver)
	}

	s.blobs = circuitbreaker.NewBlobStore(inner)
	if s.embeddings == nil {
		s.embeddings = kv.NewEmbeddingRepo(s.blobs)
	}

	logger.Info("local store opened", slog.String("driver", cfg.StoreDriver))
	return s, nil
}

// Close releases the database, if any.
func (s *localStore) Close() error {
	if s.database == nil {
		return nil
	}
	return s.database.Close()
}
