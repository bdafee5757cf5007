// Package config holds the runtime configuration of the newsdeck engine.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"newsdeck/internal/domain/entity"
	pkgconfig "newsdeck/internal/pkg/config"
)

// Store drivers accepted by NEWSDECK_STORE_DRIVER.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// EngineConfig controls how the engine reaches the Remote API, where it keeps
// local state, and how its background jobs run.
//
// Sources, lowest precedence first:
//   - DefaultConfig
//   - the YAML file named by NEWSDECK_CONFIG_FILE (optional)
//   - NEWSDECK_* environment variables
type EngineConfig struct {
	// APIBaseURL is the Remote API root, e.g. "https://api.example.com".
	APIBaseURL string `yaml:"api_base_url"`

	// APITimeout bounds one HTTP round trip. Range: 1s-5m.
	APITimeout time.Duration `yaml:"api_timeout"`

	// StoreDriver selects the BlobStore backend: sqlite, postgres or memory.
	StoreDriver string `yaml:"store_driver"`

	// StoreDSN is passed to the database driver. Ignored for memory.
	StoreDSN string `yaml:"store_dsn"`

	// RetentionDays is the age after which ledger events are pruned. Range: 1-365.
	RetentionDays int `yaml:"retention_days"`

	// RetentionSchedule is the cron expression of the pruning job.
	RetentionSchedule string `yaml:"retention_schedule"`

	// MetricsPort serves /metrics, /health and /status. Range: 1024-65535.
	MetricsPort int `yaml:"metrics_port"`

	// FeedPageSize is the batch size of pager loads. Range: 1-200.
	FeedPageSize int `yaml:"feed_page_size"`

	// NotifyRPS caps side-channel notifications per second.
	NotifyRPS float64 `yaml:"notify_rps"`

	DeviceType string `yaml:"device_type"`
	AppVersion string `yaml:"app_version"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		APIBaseURL:        "http://localhost:8000",
		APITimeout:        30 * time.Second,
		StoreDriver:       StoreDriverSQLite,
		StoreDSN:          "file:newsdeck.db",
		RetentionDays:     30,
		RetentionSchedule: "0 4 * * *",
		MetricsPort:       9090,
		FeedPageSize:      50,
		NotifyRPS:         2.0,
		DeviceType:        "mobile",
		AppVersion:        "1.0.0",
	}
}

// Validate checks every field and reports all failures together.
func (c *EngineConfig) Validate() error {
	var errs []error

	if err := entity.ValidateBaseURL(c.APIBaseURL); err != nil {
		errs = append(errs, fmt.Errorf("api base url: %w", err))
	}
	if err := pkgconfig.ValidateDuration(c.APITimeout, time.Second, 5*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("api timeout: %w", err))
	}
	if err := validStoreDriver(c.StoreDriver); err != nil {
		errs = append(errs, fmt.Errorf("store driver: %w", err))
	}
	if c.StoreDriver != StoreDriverMemory && c.StoreDSN == "" {
		errs = append(errs, fmt.Errorf("store dsn: required for driver %q", c.StoreDriver))
	}
	if err := pkgconfig.ValidateIntRange(c.RetentionDays, 1, 365); err != nil {
		errs = append(errs, fmt.Errorf("retention days: %w", err))
	}
	if err := pkgconfig.ValidateCronSchedule(c.RetentionSchedule); err != nil {
		errs = append(errs, fmt.Errorf("retention schedule: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.MetricsPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("metrics port: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.FeedPageSize, 1, 200); err != nil {
		errs = append(errs, fmt.Errorf("feed page size: %w", err))
	}
	if err := pkgconfig.ValidateFloatRange(c.NotifyRPS, 0.1, 100); err != nil {
		errs = append(errs, fmt.Errorf("notify rps: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

var validStoreDriver = pkgconfig.ValidateOneOf(StoreDriverSQLite, StoreDriverPostgres, StoreDriverMemory)

// LoadFile overlays the YAML file at path onto base. Keys absent from the file keep
// their base values.
func LoadFile(path string, base EngineConfig) (EngineConfig, error) {
	// #nosec G304 -- path comes from the operator's environment
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return base, fmt.Errorf("config file: %w", err)
	}
	return cfg, nil
}

// LoadConfigFromEnv builds the engine configuration with a fail-open strategy:
// an unreadable config file or an invalid variable is logged, counted in metrics
// and replaced by the lower-precedence value. The returned config is never nil
// and the error is always nil.
//
// Environment variables:
//   - NEWSDECK_CONFIG_FILE: optional YAML overrides file
//   - NEWSDECK_API_BASE_URL, NEWSDECK_API_TIMEOUT
//   - NEWSDECK_STORE_DRIVER, NEWSDECK_STORE_DSN
//   - NEWSDECK_RETENTION_DAYS, NEWSDECK_RETENTION_SCHEDULE
//   - NEWSDECK_METRICS_PORT, NEWSDECK_FEED_PAGE_SIZE, NEWSDECK_NOTIFY_RPS
//   - NEWSDECK_DEVICE_TYPE, NEWSDECK_APP_VERSION
func LoadConfigFromEnv(logger *slog.Logger, metrics *pkgconfig.ConfigMetrics) (*EngineConfig, error) {
	return LoadConfig(logger, metrics, "")
}

// LoadConfig is LoadConfigFromEnv with an explicit YAML file. A non-empty
// configFile takes the place of NEWSDECK_CONFIG_FILE.
func LoadConfig(logger *slog.Logger, metrics *pkgconfig.ConfigMetrics, configFile string) (*EngineConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	path := configFile
	if path == "" {
		path = os.Getenv("NEWSDECK_CONFIG_FILE")
	}
	if path != "" {
		fileCfg, err := LoadFile(path, cfg)
		if err != nil {
			fallbackApplied = true
			metrics.RecordValidationError("config_file")
			metrics.RecordFallback("config_file")
			logger.Warn("Configuration fallback applied",
				slog.String("field", "ConfigFile"),
				slog.String("path", path),
				slog.String("error", err.Error()))
		} else {
			cfg = fileCfg
		}
	}

	check := func(field string, result pkgconfig.ConfigLoadResult) interface{} {
		if result.FallbackApplied {
			fallbackApplied = true
			metrics.RecordValidationError(field)
			metrics.RecordFallback(field)
			for _, warning := range result.Warnings {
				logger.Warn("Configuration fallback applied",
					slog.String("field", field),
					slog.String("warning", warning))
			}
		}
		return result.Value
	}

	cfg.APIBaseURL = check("api_base_url",
		pkgconfig.LoadEnvWithFallback("NEWSDECK_API_BASE_URL", cfg.APIBaseURL, entity.ValidateBaseURL)).(string)

	cfg.APITimeout = check("api_timeout",
		pkgconfig.LoadEnvDuration("NEWSDECK_API_TIMEOUT", cfg.APITimeout, func(d time.Duration) error {
			return pkgconfig.ValidateDuration(d, time.Second, 5*time.Minute)
		})).(time.Duration)

	cfg.StoreDriver = check("store_driver",
		pkgconfig.LoadEnvWithFallback("NEWSDECK_STORE_DRIVER", cfg.StoreDriver, validStoreDriver)).(string)

	cfg.StoreDSN = pkgconfig.LoadEnvString("NEWSDECK_STORE_DSN", cfg.StoreDSN)

	cfg.RetentionDays = check("retention_days",
		pkgconfig.LoadEnvInt("NEWSDECK_RETENTION_DAYS", cfg.RetentionDays, func(v int) error {
			return pkgconfig.ValidateIntRange(v, 1, 365)
		})).(int)

	cfg.RetentionSchedule = check("retention_schedule",
		pkgconfig.LoadEnvWithFallback("NEWSDECK_RETENTION_SCHEDULE", cfg.RetentionSchedule, pkgconfig.ValidateCronSchedule)).(string)

	cfg.MetricsPort = check("metrics_port",
		pkgconfig.LoadEnvInt("NEWSDECK_METRICS_PORT", cfg.MetricsPort, func(v int) error {
			return pkgconfig.ValidateIntRange(v, 1024, 65535)
		})).(int)

	cfg.FeedPageSize = check("feed_page_size",
		pkgconfig.LoadEnvInt("NEWSDECK_FEED_PAGE_SIZE", cfg.FeedPageSize, func(v int) error {
			return pkgconfig.ValidateIntRange(v, 1, 200)
		})).(int)

	cfg.NotifyRPS = check("notify_rps",
		pkgconfig.LoadEnvFloat("NEWSDECK_NOTIFY_RPS", cfg.NotifyRPS, func(v float64) error {
			return pkgconfig.ValidateFloatRange(v, 0.1, 100)
		})).(float64)

	cfg.DeviceType = pkgconfig.LoadEnvString("NEWSDECK_DEVICE_TYPE", cfg.DeviceType)
	cfg.AppVersion = pkgconfig.LoadEnvString("NEWSDECK_APP_VERSION", cfg.AppVersion)

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
