// Package connreg resolves a connection-reference to a DSN and dialect.
// Registering a database (the admin UI/API that owns credentials) is out
// of scope per spec.md §1; this registry only consumes already-resolved
// entries, typically populated once at startup from configuration.
package connreg

import (
	"fmt"
	"sync"

	"github.com/etlcore/orchestrator/internal/dialect"
)

// Entry is one registered database.
type Entry struct {
	ConnectionRef string
	DSN           string
	Dialect       dialect.Name
}

// Registry is a concurrency-safe in-memory map from connection-ref to
// Entry. Reads (Get) are far more frequent than writes (Register), so a
// RWMutex matches the access pattern — the same shared-read,
// serialized-write policy spec.md §5 specifies for connection pools.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds or replaces an entry. Safe to call concurrently with Get.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.ConnectionRef] = e
}

// Get resolves a connection-ref to its Entry.
func (r *Registry) Get(connectionRef string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[connectionRef]
	if !ok {
		return Entry{}, fmt.Errorf("connection reference %q is not registered", connectionRef)
	}
	return e, nil
}
