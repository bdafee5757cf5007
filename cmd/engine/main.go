package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"newsdeck/internal/common/clock"
	"newsdeck/internal/config"
	"newsdeck/internal/domain/entity"
	"newsdeck/internal/infra/remote"
	workerPkg "newsdeck/internal/infra/worker"
	"newsdeck/internal/observability/logging"
	"newsdeck/internal/repository"
	"newsdeck/internal/usecase/engagement"
	"newsdeck/internal/usecase/feed"
	"newsdeck/internal/usecase/feedcache"
	"newsdeck/internal/usecase/ledger"
	"newsdeck/internal/usecase/session"
	"newsdeck/internal/usecase/settings"
)

// shutdownTimeout bounds the final sync and store close on exit.
const shutdownTimeout = 15 * time.Second

type flags struct {
	configFile string
	preload    bool
	pruneOnce  bool
	status     bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := pflag.NewFlagSet("newsdeck-engine", pflag.ContinueOnError)
	fs.StringVarP(&f.configFile, "config", "c", "", "YAML config file (overrides NEWSDECK_CONFIG_FILE)")
	fs.BoolVar(&f.preload, "preload", true, "warm the personalized, trending and bookmark caches at startup")
	fs.BoolVar(&f.pruneOnce, "prune-once", false, "prune the interaction ledger once and exit")
	fs.BoolVar(&f.status, "status", false, "print the local sync status as JSON and exit")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobMetrics := workerPkg.NewJobMetrics(prometheus.DefaultRegisterer)
	cfg, err := config.LoadConfig(logger, jobMetrics.ConfigMetrics, opts.configFile)
	if err != nil {
		logger.Error("failed to load engine configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("engine configuration loaded",
		slog.String("api_base_url", cfg.APIBaseURL),
		slog.String("store_driver", cfg.StoreDriver),
		slog.Int("retention_days", cfg.RetentionDays),
		slog.String("retention_schedule", cfg.RetentionSchedule),
		slog.Int("metrics_port", cfg.MetricsPort))

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open local store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close local store", slog.Any("error", err))
		}
	}()

	app, err := buildEngine(ctx, cfg, store, envTokenSource("NEWSDECK_API_TOKEN"), logger)
	if err != nil {
		logger.Error("failed to build engine", slog.Any("error", err))
		os.Exit(1)
	}

	switch {
	case opts.status:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(app.scheduler.LocalStatus(ctx)); err != nil {
			logger.Error("failed to write status", slog.Any("error", err))
			os.Exit(1)
		}
		return
	case opts.pruneOnce:
		job := workerPkg.NewRetentionJob(cfg.RetentionSchedule, cfg.RetentionDays, app.scheduler.PruneRetention, jobMetrics, logger)
		job.Run(ctx)
		return
	}

	run(ctx, cfg, app, opts, jobMetrics, logger)
}

// run serves until ctx is canceled, then ends the session.
func run(ctx context.Context, cfg *config.EngineConfig, app *engine, opts flags, jobMetrics *workerPkg.JobMetrics, logger *slog.Logger) {
	healthAddr := fmt.Sprintf(":%d", cfg.MetricsPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger, app.status)
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	job := workerPkg.NewRetentionJob(cfg.RetentionSchedule, cfg.RetentionDays, app.scheduler.PruneRetention, jobMetrics, logger)
	c, err := job.Start(ctx)
	if err != nil {
		logger.Error("failed to start retention job", slog.Any("error", err))
		os.Exit(1)
	}
	defer c.Stop()

	app.scheduler.StartSession()

	if opts.preload {
		result := app.feeds.Preload(ctx)
		for name, err := range result.Errors {
			logger.Warn("preload failed", slog.String("feed", name), slog.Any("error", err))
		}
		if err := app.pager.Load(ctx); err != nil {
			logger.Warn("first feed page failed", slog.Any("error", err))
		}
	}

	healthServer.SetReady(true)
	logger.Info("engine ready")

	<-ctx.Done()
	healthServer.SetReady(false)
	logger.Info("shutting down engine")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.scheduler.EndSession(shutdownCtx); err != nil && !errors.Is(err, session.ErrSessionNotActive) {
		logger.Warn("final sync failed, interactions stay pending", slog.Any("error", err))
	}
}

// initLogger initializes the process logger and makes it the slog default.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	if os.Getenv("LOG_FORMAT") == "text" {
		logger = logging.NewTextLogger()
	}
	slog.SetDefault(logger)
	return logger
}

// envTokenSource reads the bearer token from name on every call, so a
// rotated token is picked up without a restart.
func envTokenSource(name string) remote.TokenSource {
	return func(context.Context) (string, error) {
		return os.Getenv(name), nil
	}
}

// engine is the wired set of components served by the process.
type engine struct {
	client    *remote.Client
	cache     *feedcache.Cache
	feeds     *feed.Service
	pager     *feed.Pager
	scheduler *session.Scheduler
	store     *localStore
}

func buildEngine(ctx context.Context, cfg *config.EngineConfig, store *localStore, tokens remote.TokenSource, logger *slog.Logger) (*engine, error) {
	client, err := remote.NewClient(remote.Config{
		BaseURL:     cfg.APIBaseURL,
		Timeout:     cfg.APITimeout,
		NotifyRPS:   cfg.NotifyRPS,
		NotifyBurst: 2,
	}, tokens, logger)
	if err != nil {
		return nil, err
	}

	clk := clock.Real{}
	cache := feedcache.New(store.blobs, clk, logger)
	states := engagement.NewStore(store.blobs, clk, logger)
	feeds := feed.NewService(client, cache, states, logger)

	scheduler := session.New(ctx, session.Deps{
		Ledger:     ledger.New(store.blobs, clk, logger),
		Settings:   settings.NewStore(store.blobs, logger),
		Embeddings: store.embeddings,
		Blobs:      store.blobs,
		Uploader:   client,
		Notifier:   client,
		Clock:      clk,
		Logger:     logger,
		// The server recomputes recommendations from the new embedding.
		AfterSync: feeds.InvalidatePersonalized,
	}, session.Options{
		DeviceType: cfg.DeviceType,
		AppVersion: cfg.AppVersion,
	})

	return &engine{
		client:    client,
		cache:     cache,
		feeds:     feeds,
		pager:     feeds.PersonalizedPager(cfg.FeedPageSize),
		scheduler: scheduler,
		store:     store,
	}, nil
}

// status is served on /status.
func (e *engine) status(ctx context.Context) interface{} {
	out := map[string]interface{}{
		"session":             e.scheduler.LocalStatus(ctx),
		"remote_breaker_open": e.client.BreakerOpen(),
		"store_breaker":       e.store.blobs.State().String(),
		"store_driver":        e.store.driver,
	}
	out["feed_loaded"] = len(e.pager.Articles())
	out["feed_has_more"] = e.pager.HasMore()
	if stats, err := e.cache.Stats(ctx); err == nil {
		out["cache"] = stats
	}
	if history, ok := e.store.embeddings.(repository.EmbeddingHistory); ok {
		if snapshots, err := history.History(ctx, statusHistoryLimit); err == nil {
			out["embedding_history"] = historyTimestamps(snapshots)
		}
	}
	return out
}

// statusHistoryLimit caps the snapshots listed on /status.
const statusHistoryLimit = 10

func historyTimestamps(snapshots []entity.EmbeddingSnapshot) []time.Time {
	out := make([]time.Time, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, s.Timestamp)
	}
	return out
}
