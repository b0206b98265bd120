// Package postgres implements the metadata package's gateways against
// the orchestrator's own Postgres-backed metadata schema, generalized
// from the teacher's internal/infrastructure/postgres job/schedule
// repositories.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/etlcore/orchestrator/internal/dialect"
	"github.com/etlcore/orchestrator/internal/metadata"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens the metadata store's connection pool. This is the only
// database the orchestrator process itself connects to at startup;
// source/target databases for individual mappings go through
// internal/connpool instead.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse metadata db config: %w", err)
	}

	cfg.MaxConns = 25
	cfg.MinConns = 5
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metadata db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping metadata db: %w", err)
	}

	return pool, nil
}

// New builds a metadata.Gateway backed by pool, qualifying every table
// with schemaPrefix (empty means the connection's default search_path).
func New(pool *pgxpool.Pool, schemaPrefix string) *metadata.Gateway {
	d := dialect.NewPostgres()
	return &metadata.Gateway{
		Requests:  &requestGateway{pool: pool, schema: schemaPrefix, d: d},
		RunLogs:   &runLogGateway{pool: pool, schema: schemaPrefix, d: d},
		Mappings:  &mappingGateway{pool: pool, schema: schemaPrefix, d: d},
		Schedules: &scheduleGateway{pool: pool, schema: schemaPrefix, d: d},
	}
}

func table(schema string, d dialect.Dialect, name string) string {
	return dialect.QualifyTable(d, schema, name)
}

// rowScanner is implemented by both pgx.Row and pgx.Rows, mirroring the
// teacher's postgres.rowScanner helper.
type rowScanner interface {
	Scan(dest ...any) error
}

func wrapErr(op string, err error) error {
	return fmt.Errorf("metadata/postgres: %s: %w", op, err)
}
