package chunkproc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/etlcore/orchestrator/internal/connpool"
	"github.com/etlcore/orchestrator/internal/connreg"
	"github.com/etlcore/orchestrator/internal/dialect"
	"github.com/etlcore/orchestrator/internal/domain"
)

// rowCountCap bounds the cost of EstimateRowCount against an arbitrarily
// large source query: it counts at most this many rows.
const rowCountCap = 5_000_000

// Stats implements plan.SourceStats against a source connection pool,
// per spec.md §4.4's note that estimation comes "from source statistics
// or a cheap COUNT with a cap".
type Stats struct {
	pool        *connpool.Manager
	reg         *connreg.Registry
	acquireWait time.Duration
}

func NewStats(pool *connpool.Manager, reg *connreg.Registry, acquireWait time.Duration) *Stats {
	return &Stats{pool: pool, reg: reg, acquireWait: acquireWait}
}

func (s *Stats) dialectFor(connectionRef string) (dialect.Dialect, error) {
	entry, err := s.reg.Get(connectionRef)
	if err != nil {
		return nil, err
	}
	return dialect.ByName(entry.Dialect)
}

// EstimateRowCount reports ok=false rather than an error whenever
// counting isn't cheaply available, signaling the planner to fall back
// to ORDINAL — counting failures here are never fatal to the run.
func (s *Stats) EstimateRowCount(ctx context.Context, m *domain.MappingDefinition) (int64, bool, error) {
	conn, err := s.pool.Acquire(ctx, m.SourceConnectionRef, s.acquireWait)
	if err != nil {
		return 0, false, nil
	}
	defer s.pool.Release(conn)

	base := strings.TrimRight(strings.TrimSpace(m.SourceQuery), ";")
	query := fmt.Sprintf("SELECT COUNT(*) FROM (SELECT 1 FROM (%s) AS stats_src LIMIT %d) AS capped", base, rowCountCap)

	var n int64
	if err := conn.Conn().QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// MaxCheckpointValue returns the source's current MAX(checkpoint-column),
// formatted as the column's driver-native text representation.
func (s *Stats) MaxCheckpointValue(ctx context.Context, m *domain.MappingDefinition) (string, error) {
	if m.CheckpointColumn == nil || *m.CheckpointColumn == "" {
		return "", fmt.Errorf("chunkproc: mapping %q has no checkpoint column", m.MappingRef)
	}

	d, err := s.dialectFor(m.SourceConnectionRef)
	if err != nil {
		return "", err
	}

	conn, err := s.pool.Acquire(ctx, m.SourceConnectionRef, s.acquireWait)
	if err != nil {
		return "", err
	}
	defer s.pool.Release(conn)

	base := strings.TrimRight(strings.TrimSpace(m.SourceQuery), ";")
	col := d.QuoteIdentifier(*m.CheckpointColumn)
	query := fmt.Sprintf("SELECT CAST(MAX(%s) AS VARCHAR) FROM (%s) AS stats_src", col, base)

	var max *string
	if err := conn.Conn().QueryRow(ctx, query).Scan(&max); err != nil {
		return "", fmt.Errorf("chunkproc: max checkpoint value: %w", err)
	}
	if max == nil {
		return "", nil
	}
	return *max, nil
}
