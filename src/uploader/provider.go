package uploader

import (
	"context"
	"fmt"
	"sync"
)

// Provider is a pluggable upload backend. Registration and authentication
// happen outside the core; the orchestrator only iterates the currently
// registered set. An empty URL with a nil error still counts as a failed
// upload for that provider.
type Provider interface {
	Name() string
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

type handle struct {
	provider Provider
	enabled  bool
}

// Registry holds the registered providers keyed by their stable names. It is
// mutated only by explicit registration actions and snapshotted by the
// orchestrator, so concurrent mutation during a fan-out is safe.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*handle
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*handle)}
}

// Register adds a provider under its name. Names must be unique.
func (r *Registry) Register(p Provider) error {
	if p == nil || p.Name() == "" {
		return fmt.Errorf("provider must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[p.Name()]; exists {
		return fmt.Errorf("provider %q already registered", p.Name())
	}
	r.entries[p.Name()] = &handle{provider: p, enabled: true}
	return nil
}

// Deregister removes a provider by name. Removing an unknown name is a
// no-op.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// SetEnabled flips the enabled flag of a registered provider.
func (r *Registry) SetEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.entries[name]; ok {
		h.enabled = enabled
	}
}

// Snapshot returns the currently enabled providers. The slice is a copy;
// later registry mutation does not affect an in-flight fan-out.
func (r *Registry) Snapshot() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	providers := make([]Provider, 0, len(r.entries))
	for _, h := range r.entries {
		if h.enabled {
			providers = append(providers, h.provider)
		}
	}
	return providers
}

// Names returns all registered provider names, enabled or not.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
