// Package connpool implements the per-registered-database connection
// pool manager (spec.md §4.8): one named pgxpool.Pool per connection-ref,
// created lazily on first Acquire, with a bounded lend timeout and
// liveness validation for connections that have sat idle.
package connpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/etlcore/orchestrator/internal/connreg"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Handle is a lent connection. Callers must call Release on every exit
// path, including errors — mirrored on teacher's db.go pool usage, which
// always `defer rows.Close()`/`defer conn.Release()`.
type Handle struct {
	conn       *pgxpool.Conn
	acquiredAt time.Time
	connRef    string
}

// Conn exposes the underlying pooled connection for query execution.
func (h *Handle) Conn() *pgxpool.Conn { return h.conn }

// Manager owns one pool per connection-ref. Pools for source and target
// are independent even when both reference the same physical database,
// because they're looked up by connection-ref, not by DSN.
type Manager struct {
	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
	reg   *connreg.Registry

	maxConnsPerPool int32
	idleValidation  time.Duration
}

// Sizing follows spec.md §4.8's informational guideline:
// max-workers*2 + metadata-overhead + buffer. Components that need a
// bigger pool construct their own Manager with a different cap.
const defaultMaxConnsPerPool = 20

func NewManager(reg *connreg.Registry) *Manager {
	return &Manager{
		pools:           make(map[string]*pgxpool.Pool),
		reg:             reg,
		maxConnsPerPool: defaultMaxConnsPerPool,
		idleValidation:  30 * time.Second,
	}
}

// WithMaxConnsPerPool overrides the per-pool cap (e.g. sized from
// max-workers*2 + overhead by the caller).
func (m *Manager) WithMaxConnsPerPool(n int32) *Manager {
	m.maxConnsPerPool = n
	return m
}

func (m *Manager) poolFor(ctx context.Context, connectionRef string) (*pgxpool.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.pools[connectionRef]; ok {
		return p, nil
	}

	entry, err := m.reg.Get(connectionRef)
	if err != nil {
		return nil, fmt.Errorf("connpool: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(entry.DSN)
	if err != nil {
		return nil, fmt.Errorf("connpool: parse dsn for %q: %w", connectionRef, err)
	}
	cfg.MaxConns = m.maxConnsPerPool
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 1 * time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = m.idleValidation
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connpool: create pool for %q: %w", connectionRef, err)
	}

	m.pools[connectionRef] = p
	return p, nil
}

// Acquire lends a connection for connectionRef, blocking up to timeout
// for a free slot. Pools are created lazily on first acquire.
func (m *Manager) Acquire(ctx context.Context, connectionRef string, timeout time.Duration) (*Handle, error) {
	pool, err := m.poolFor(ctx, connectionRef)
	if err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := pool.Acquire(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("connpool: acquire %q: %w", connectionRef, err)
	}

	return &Handle{conn: conn, acquiredAt: time.Now(), connRef: connectionRef}, nil
}

// Release returns a handle to its pool. Safe to call once per Acquire;
// callers should defer it immediately after a successful Acquire.
func (m *Manager) Release(h *Handle) {
	if h == nil || h.conn == nil {
		return
	}
	h.conn.Release()
}

// Close closes every pool the manager has created. Called once at
// process shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ref, p := range m.pools {
		p.Close()
		delete(m.pools, ref)
	}
}
