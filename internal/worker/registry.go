package worker

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a worker instance for one run. The id is the worker
// identity from config; params carry worker-specific settings.
type Factory func(id string, params map[string]interface{}) (Worker, error)

// Registry maps worker kind names to factories. Kinds are registered
// explicitly at startup; there is no implicit discovery.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a worker kind. Registering the same kind twice is an error.
func (r *Registry) Register(kind string, factory Factory) error {
	if kind == "" {
		return fmt.Errorf("worker kind must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for kind %q must not be nil", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("worker kind already registered: %s", kind)
	}
	r.factories[kind] = factory
	return nil
}

// Create instantiates a worker of the given kind.
func (r *Registry) Create(kind, id string, params map[string]interface{}) (Worker, error) {
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown worker kind %q (known: %v)", kind, r.Kinds())
	}
	return factory(id, params)
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
