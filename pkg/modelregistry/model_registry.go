// Package modelregistry provides a concurrency-safe registry keyed by a
// stable name. It backs the entity metadata registry and the resource table
// of the HTTP handler.
package modelregistry

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps stable names to values. It is safe for concurrent use.
type Registry[V any] struct {
	items map[string]V
	mutex sync.RWMutex
}

// New creates an empty registry
func New[V any]() *Registry[V] {
	return &Registry[V]{items: make(map[string]V)}
}

// Register adds value under name. Registering the same name twice is an error.
func (r *Registry[V]) Register(name string, value V) error {
	if name == "" {
		return fmt.Errorf("registry name cannot be empty")
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.items[name]; exists {
		return fmt.Errorf("%s is already registered", name)
	}
	r.items[name] = value
	return nil
}

// Get returns the value registered under name.
func (r *Registry[V]) Get(name string) (V, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	v, ok := r.items[name]
	return v, ok
}

// GetOrCreate returns the value under name, building and storing it with
// create when absent. create runs outside the lock, so two concurrent first
// calls may both build a value; the first stored one wins.
func (r *Registry[V]) GetOrCreate(name string, create func() (V, error)) (V, error) {
	if v, ok := r.Get(name); ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		return v, err
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if existing, ok := r.items[name]; ok {
		return existing, nil
	}
	r.items[name] = v
	return v, nil
}

// Names returns the registered names in sorted order.
func (r *Registry[V]) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of the registry contents.
func (r *Registry[V]) All() map[string]V {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	out := make(map[string]V, len(r.items))
	for k, v := range r.items {
		out[k] = v
	}
	return out
}

// Len returns the number of registered values.
func (r *Registry[V]) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.items)
}
