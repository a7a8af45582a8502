package agent

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// ErrUnknownBackend is returned when a requested backend is not registered.
var ErrUnknownBackend = errors.New("agent: unknown backend") //nolint:gochecknoglobals // sentinel error

// Factory builds an Executor bound to a model and toolkit.
type Factory func(model string, tk Toolkit) (Executor, error)

// Registry manages executor factories by backend name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds an executor factory for a backend name.
func (r *Registry) Register(backend string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backend] = factory
}

// Create instantiates an executor for the given backend.
func (r *Registry) Create(backend, model string, tk Toolkit) (Executor, error) {
	r.mu.RLock()
	factory, ok := r.factories[backend]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("agent.Registry.Create(%q): %w", backend, ErrUnknownBackend)
	}

	executor, err := factory(model, tk)
	if err != nil {
		return nil, fmt.Errorf("agent.Registry.Create(%q): %w", backend, err)
	}

	return executor, nil
}

// Available returns registered backend names in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := slices.Collect(func(yield func(string) bool) {
		for name := range r.factories {
			if !yield(name) {
				return
			}
		}
	})
	sort.Strings(names)

	return names
}
