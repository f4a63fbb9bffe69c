package remote

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages the remote stores a binary can be configured with.
// It is safe for concurrent access.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		stores: make(map[string]Store),
	}
}

// Register adds a store under its Name, replacing any previous one.
func (r *Registry) Register(store Store) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stores[store.Name()] = store
}

// Get retrieves a store by name.
func (r *Registry) Get(name string) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, name)
	}
	return store, nil
}

// Names returns the registered store names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
