package scan

import (
	"context"
	"sync"

	"github.com/sentinel/discovery-engine/internal/core"
)

// Registry enforces spec.md §4.7's "exactly one run per (tenant,
// connector) in flight" rule with an in-memory mutex-guarded set, rather
// than a database lock, since it only needs to hold for the lifetime of
// one process. Each in-flight entry also carries the context.CancelFunc
// for that run, so a "scan cancel" request has something to call into.
type Registry struct {
	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{running: make(map[string]context.CancelFunc)}
}

func key(tenant core.TenantID, connectorName string) string {
	return tenant.String() + "/" + connectorName
}

// Acquire marks (tenant, connectorName) as running and records cancel as
// the way to abort it. It returns core.ErrAlreadyRunning if a run for that
// pair is already in flight.
func (r *Registry) Acquire(tenant core.TenantID, connectorName string, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(tenant, connectorName)
	if _, ok := r.running[k]; ok {
		return core.ErrAlreadyRunning
	}
	r.running[k] = cancel
	return nil
}

// Cancel aborts the in-flight run for (tenant, connectorName), if any, by
// calling its registered context.CancelFunc. It reports whether a run was
// found; the run's own goroutine is responsible for releasing the registry
// slot once connector.Discover observes the cancellation.
func (r *Registry) Cancel(tenant core.TenantID, connectorName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.running[key(tenant, connectorName)]
	if !ok {
		return false
	}
	cancel()
	return true
}

// Release clears (tenant, connectorName), allowing a future run to
// acquire it. Safe to call even if Acquire was never called for the pair.
func (r *Registry) Release(tenant core.TenantID, connectorName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, key(tenant, connectorName))
}

// IsRunning reports whether (tenant, connectorName) currently has a run
// in flight.
func (r *Registry) IsRunning(tenant core.TenantID, connectorName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[key(tenant, connectorName)]
	return ok
}
