package config

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/etlcore/orchestrator/internal/connreg"
	"github.com/etlcore/orchestrator/internal/dialect"
	"github.com/go-playground/validator/v10"
)

// Config holds every §6.4 key plus the ambient process settings. All keys
// have the defaults spec.md §6.4 names; env var names follow the same
// SCREAMING_SNAKE convention the table uses.
type Config struct {
	Env         string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port        string `env:"PORT" envDefault:"8080" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090" validate:"required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	// DatabaseURL is the metadata store DSN — the only database this
	// process connects to at startup. Source/target DSNs for individual
	// mappings are resolved per connection-ref through internal/connreg.
	DatabaseURL  string `env:"DATABASE_URL,required" validate:"required"`
	SchemaPrefix string `env:"METADATA_SCHEMA_PREFIX" envDefault:""`

	// ConnectionsJSON seeds internal/connreg at startup: a JSON array of
	// {"connection_ref","dsn","dialect"} entries for the source/target
	// databases mappings reference. Registering a database through an
	// admin surface is out of scope (spec.md §1); this is the only
	// on-ramp for connection-ref resolution.
	ConnectionsJSON string `env:"CONNECTIONS_JSON" envDefault:"[]"`

	MaxWorkers         int   `env:"MAX_WORKERS" envDefault:"0" validate:"min=0,max=256"`
	BatchSize          int   `env:"BATCH_SIZE" envDefault:"1000" validate:"min=1"`
	MinRowsForParallel int64 `env:"MIN_ROWS_FOR_PARALLEL" envDefault:"100000" validate:"min=0"`

	RetryMaxRetries     int     `env:"RETRY_MAX_RETRIES" envDefault:"3" validate:"min=0,max=50"`
	RetryInitialDelayMS int     `env:"RETRY_INITIAL_DELAY_MS" envDefault:"1000" validate:"min=1"`
	RetryMaxDelayMS     int     `env:"RETRY_MAX_DELAY_MS" envDefault:"60000" validate:"min=1"`
	RetryMultiplier     float64 `env:"RETRY_MULTIPLIER" envDefault:"2.0" validate:"min=1"`

	LeaseDurationS    int `env:"LEASE_DURATION_S" envDefault:"60" validate:"min=1"`
	ReclaimIntervalS  int `env:"RECLAIM_INTERVAL_S" envDefault:"30" validate:"min=1"`
	ScheduleTickS     int `env:"SCHEDULE_TICK_S" envDefault:"15" validate:"min=1"`

	ProgressWriteMinIntervalMS int `env:"PROGRESS_WRITE_MIN_INTERVAL_MS" envDefault:"2000" validate:"min=0"`
	CancelGraceS               int `env:"CANCEL_GRACE_S" envDefault:"30" validate:"min=0"`
	RowErrorCap                int `env:"ROW_ERROR_CAP" envDefault:"1000" validate:"min=0"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// connectionEntry mirrors connreg.Entry for JSON decoding — kept
// separate so connreg stays free of encoding/json concerns.
type connectionEntry struct {
	ConnectionRef string `json:"connection_ref"`
	DSN           string `json:"dsn"`
	Dialect       string `json:"dialect"`
}

// Connections decodes ConnectionsJSON into connreg.Entry values ready
// for Registry.Register.
func (c *Config) Connections() ([]connreg.Entry, error) {
	var raw []connectionEntry
	if err := json.Unmarshal([]byte(c.ConnectionsJSON), &raw); err != nil {
		return nil, fmt.Errorf("parse CONNECTIONS_JSON: %w", err)
	}

	entries := make([]connreg.Entry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, connreg.Entry{
			ConnectionRef: r.ConnectionRef,
			DSN:           r.DSN,
			Dialect:       dialect.Name(r.Dialect),
		})
	}
	return entries, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
