package lifecycle

import (
	"fmt"
	"sync"

	"facette.io/natsort"
	"go.uber.org/atomic"
)

// Registry holds one template per entity kind.
// It is populated at process start and frozen before serving requests;
// lookups are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
	frozen    atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		templates: make(map[string]*Template),
	}
}

// Register adds a template under its kind.
func (r *Registry) Register(t *Template) error {
	if t == nil {
		return fmt.Errorf("%w: nil template", ErrInvalidTemplate)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return WrapTemplateError(t.Kind(), ErrRegistryFrozen)
	}

	if _, exists := r.templates[t.Kind()]; exists {
		return WrapTemplateError(t.Kind(), ErrDuplicateTemplateKind)
	}

	r.templates[t.Kind()] = t

	return nil
}

// MustRegister registers each template and panics on the first failure.
func (r *Registry) MustRegister(templates ...*Template) {
	for _, t := range templates {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the template registered under kind.
func (r *Registry) Lookup(kind string) (*Template, error) {
	r.mu.RLock()
	t, ok := r.templates[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, WrapTemplateError(kind, ErrUnknownTemplateKind)
	}

	return t, nil
}

// Kinds returns the registered kinds in natural sort order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()

	kinds := make([]string, 0, len(r.templates))
	for kind := range r.templates {
		kinds = append(kinds, kind)
	}

	r.mu.RUnlock()

	natsort.Sort(kinds)

	return kinds
}

// Freeze stops the registry from accepting further registrations. Idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}
