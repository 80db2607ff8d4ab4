package integration

import (
	"fmt"
	"sort"
	"sync"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
)

// Constructor builds an adapter from decrypted configuration.
type Constructor[T any] func(cfg ProviderConfig, logger *otelzap.Logger, tracer trace.Tracer) T

// Registry maps provider ids to adapter constructors. The set is closed:
// adding a vendor means adding one entry.
type Registry[T any] struct {
	kind         string
	constructors map[string]Constructor[T]
	mu           sync.RWMutex
}

// NewRegistry creates a registry seeded with constructors. kind names the
// adapter family in error messages ("carrier", "tax provider").
func NewRegistry[T any](kind string, constructors map[string]Constructor[T]) *Registry[T] {
	r := &Registry[T]{kind: kind, constructors: make(map[string]Constructor[T], len(constructors))}
	for name, ctor := range constructors {
		r.constructors[name] = ctor
	}
	return r
}

// Register adds or replaces a constructor.
func (r *Registry[T]) Register(name string, ctor Constructor[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// Supports reports whether name has a constructor.
func (r *Registry[T]) Supports(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[name]
	return ok
}

// Build instantiates the adapter for cfg.Provider.
func (r *Registry[T]) Build(cfg ProviderConfig, logger *otelzap.Logger, tracer trace.Tracer) (T, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, NewError(cfg.Provider, KindNotFound, fmt.Sprintf("unsupported %s %q", r.kind, cfg.Provider))
	}
	return ctor(cfg, logger, tracer), nil
}

// Names returns the supported provider ids in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of supported providers.
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.constructors)
}
