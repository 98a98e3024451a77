// Package registry holds the set of initialized adapters, validates their
// shape at registration, and answers lookups by id or declared capability.
// Registration and unregistration are the only mutating operations and are
// linearizable with respect to concurrent reads.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/meshworks/adapterkit/core"
)

// Entry pairs a registered adapter with its registry-owned metadata.
type Entry struct {
	Adapter      core.Adapter
	RegisteredAt time.Time
	Health       core.HealthState
}

// Registry owns the registered lifetime of adapters: it initializes them on
// Register, shuts them down on Unregister, and is the only component that
// holds adapter references between invocations.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	configs core.ConfigSource
	logger  core.Logger
}

// New creates a registry resolving adapter configuration from configs.
// A nil configs source means every adapter initializes with an empty
// configuration.
func New(configs core.ConfigSource, logger core.Logger) *Registry {
	if configs == nil {
		configs = core.NewStaticConfigSource(nil)
	}
	return &Registry{
		entries: make(map[string]*Entry),
		configs: configs,
		logger:  core.ComponentLogger(logger, "adapterkit/registry"),
	}
}

// Register validates the adapter, resolves its configuration, initializes
// it, and stores it. On any failure the adapter is not added and no partial
// state remains.
func (r *Registry) Register(ctx context.Context, adapter core.Adapter) error {
	if adapter == nil {
		return core.NewBindingError("registry.Register", "adapter", fmt.Errorf("nil adapter: %w", core.ErrInvalidAdapter))
	}

	if err := validateAdapter(adapter); err != nil {
		r.logger.Error("Adapter failed validation", map[string]interface{}{
			"operation":  "adapter_register",
			"adapter_id": adapter.ID(),
			"error":      err.Error(),
		})
		return &core.BindingError{
			Op:        "registry.Register",
			Kind:      "adapter",
			AdapterID: adapter.ID(),
			Err:       fmt.Errorf("%v: %w", err, core.ErrInvalidAdapter),
		}
	}

	id := adapter.ID()

	// Resolve config and initialize outside the lock: initialization may be
	// slow I/O and must not block readers.
	cfg, err := r.configs.AdapterConfig(ctx, id)
	if err != nil {
		return &core.BindingError{
			Op:        "registry.Register",
			Kind:      "config",
			AdapterID: id,
			Err:       fmt.Errorf("resolving adapter config: %w", err),
		}
	}

	if err := adapter.Initialize(ctx, cfg); err != nil {
		r.logger.Error("Adapter initialization failed", map[string]interface{}{
			"operation":  "adapter_register",
			"adapter_id": id,
			"error":      err.Error(),
		})
		return &core.BindingError{
			Op:        "registry.Register",
			Kind:      "adapter",
			AdapterID: id,
			Err:       fmt.Errorf("%w: %v", core.ErrAdapterInitialization, err),
		}
	}

	r.mu.Lock()
	if _, exists := r.entries[id]; exists {
		r.mu.Unlock()
		// The adapter initialized but cannot be stored; release whatever
		// Initialize acquired.
		if err := adapter.Shutdown(ctx); err != nil {
			r.logger.Warn("Shutdown after duplicate registration failed", map[string]interface{}{
				"operation":  "adapter_register",
				"adapter_id": id,
				"error":      err.Error(),
			})
		}
		return &core.BindingError{
			Op:        "registry.Register",
			Kind:      "adapter",
			AdapterID: id,
			Err:       core.ErrAdapterAlreadyRegistered,
		}
	}
	r.entries[id] = &Entry{
		Adapter:      adapter,
		RegisteredAt: time.Now(),
		Health:       core.HealthUnknown,
	}
	r.mu.Unlock()

	r.logger.Info("Adapter registered", map[string]interface{}{
		"operation":    "adapter_register",
		"adapter_id":   id,
		"adapter_name": adapter.Name(),
		"version":      adapter.Version(),
		"capabilities": adapter.Capabilities(),
		"operations":   len(adapter.Operations()),
	})

	return nil
}

// Unregister shuts the adapter down and removes it. Shutdown errors are
// logged, not propagated: unregistration always completes. Unregistering an
// unknown id is a no-op.
func (r *Registry) Unregister(ctx context.Context, id string) {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	if err := entry.Adapter.Shutdown(ctx); err != nil {
		r.logger.Warn("Adapter shutdown failed during unregistration", map[string]interface{}{
			"operation":  "adapter_unregister",
			"adapter_id": id,
			"error":      err.Error(),
		})
	}

	r.logger.Info("Adapter unregistered", map[string]interface{}{
		"operation":  "adapter_unregister",
		"adapter_id": id,
	})
}

// Get returns the adapter registered under id.
func (r *Registry) Get(id string) (core.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return entry.Adapter, true
}

// All returns every registered adapter, sorted by id.
func (r *Registry) All() []core.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapters := make([]core.Adapter, 0, len(r.entries))
	for _, entry := range r.entries {
		adapters = append(adapters, entry.Adapter)
	}
	sort.Slice(adapters, func(i, j int) bool {
		return adapters[i].ID() < adapters[j].ID()
	})
	return adapters
}

// ByCapability returns all adapters whose capability set contains tag,
// sorted by id so the order is stable across calls absent mutation.
func (r *Registry) ByCapability(tag string) []core.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var adapters []core.Adapter
	for _, entry := range r.entries {
		for _, capability := range entry.Adapter.Capabilities() {
			if capability == tag {
				adapters = append(adapters, entry.Adapter)
				break
			}
		}
	}
	sort.Slice(adapters, func(i, j int) bool {
		return adapters[i].ID() < adapters[j].ID()
	})
	return adapters
}

// Entry returns a copy of the registry metadata for id.
func (r *Registry) Entry(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// SetHealth records the latest observed health state in the registry
// metadata. Called by the health monitor; advisory only.
func (r *Registry) SetHealth(id string, state core.HealthState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[id]; ok {
		entry.Health = state
	}
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Shutdown unregisters every adapter, releasing all resources. Used at
// process teardown.
func (r *Registry) Shutdown(ctx context.Context) {
	for _, adapter := range r.All() {
		r.Unregister(ctx, adapter.ID())
	}
}

// validateAdapter checks identity metadata and, for adapters that can
// describe their own shape, the presence of the lifecycle hooks.
func validateAdapter(adapter core.Adapter) error {
	if adapter.ID() == "" {
		return fmt.Errorf("adapter id is required")
	}
	if adapter.Name() == "" {
		return fmt.Errorf("adapter name is required")
	}
	if adapter.Version() == "" {
		return fmt.Errorf("adapter version is required")
	}
	if v, ok := adapter.(core.Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
