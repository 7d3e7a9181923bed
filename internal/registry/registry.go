// Package registry implements component C7 (spec.md §4.7): tracks one
// Updater per simulation, starting and stopping them as simulations
// come and go. Deliberately not a process-wide singleton (spec.md §9
// redesign note) — callers own an instance and wire it at startup.
package registry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mirofish/graphmemd/internal/updater"
)

// Registry maps simulation_id to its running Updater.
type Registry struct {
	mu       sync.Mutex
	updaters map[string]*updater.Updater
	stopped  bool
	logger   *slog.Logger
}

// New constructs an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		updaters: make(map[string]*updater.Updater),
		logger:   logger.With("component", "registry"),
	}
}

// Create registers and starts an Updater under simulationID. Any
// previously registered Updater for the same key is stopped first
// (spec.md §4.7 "create replaces").
func (r *Registry) Create(ctx context.Context, simulationID string, u *updater.Updater) error {
	r.mu.Lock()
	prev, existed := r.updaters[simulationID]
	r.updaters[simulationID] = u
	stopped := r.stopped
	r.mu.Unlock()

	if existed {
		if err := prev.Stop(ctx); err != nil {
			r.logger.Warn("failed stopping previous updater before replace", "simulation_id", simulationID, "error", err)
		}
	}
	if stopped {
		return nil
	}
	return u.Start(ctx)
}

// Get returns the Updater registered for simulationID, if any.
func (r *Registry) Get(simulationID string) (*updater.Updater, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.updaters[simulationID]
	return u, ok
}

// Stop stops and deregisters the Updater for simulationID. A missing
// key is a no-op.
func (r *Registry) Stop(ctx context.Context, simulationID string) error {
	r.mu.Lock()
	u, ok := r.updaters[simulationID]
	delete(r.updaters, simulationID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return u.Stop(ctx)
}

// StopAll stops every registered updater. Best-effort: a failure on
// one key is logged and does not prevent stopping the rest. Idempotent
// — calling it twice is safe.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	all := r.updaters
	r.updaters = make(map[string]*updater.Updater)
	r.mu.Unlock()

	for simulationID, u := range all {
		if err := u.Stop(ctx); err != nil {
			r.logger.Error("failed stopping updater during shutdown", "simulation_id", simulationID, "error", err)
		}
	}
}

// AllStats snapshots every registered updater's stats, keyed by
// simulation_id.
func (r *Registry) AllStats() map[string]updater.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]updater.Stats, len(r.updaters))
	for simulationID, u := range r.updaters {
		out[simulationID] = u.GetStats()
	}
	return out
}
