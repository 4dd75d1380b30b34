package migration

import (
	"fmt"
	"sort"
	"sync"
)

// =============================================================================
// Unit Registry
// =============================================================================

// Registry maps (namespace, unit name) pairs to Unit implementations.
// Scaffolded .go migration files register themselves here from init();
// the Runner resolves .go descriptors against the registry it was
// constructed with.
type Registry struct {
	mu    sync.RWMutex
	units map[string]map[string]Unit // namespace -> unit name -> unit
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		units: make(map[string]map[string]Unit),
	}
}

// Register adds a unit under (namespace, name). Registering the same
// pair twice or a nil unit is an error.
func (r *Registry) Register(namespace, name string, unit Unit) error {
	if namespace == "" || name == "" {
		return fmt.Errorf("register %q/%q: namespace and name are required", namespace, name)
	}
	if unit == nil {
		return fmt.Errorf("register %s/%s: unit is nil", namespace, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ns, ok := r.units[namespace]
	if !ok {
		ns = make(map[string]Unit)
		r.units[namespace] = ns
	}
	if _, exists := ns[name]; exists {
		return fmt.Errorf("register %s/%s: already registered", namespace, name)
	}
	ns[name] = unit
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(namespace, name string, unit Unit) {
	if err := r.Register(namespace, name, unit); err != nil {
		panic(err)
	}
}

// Lookup returns the unit registered under (namespace, name).
func (r *Registry) Lookup(namespace, name string) (Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	unit, ok := r.units[namespace][name]
	return unit, ok
}

// Names returns the unit names registered for a namespace, sorted.
func (r *Registry) Names(namespace string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.units[namespace]))
	for name := range r.units[namespace] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// defaultRegistry collects init()-time registrations from migration
// files. Runners receive a registry explicitly; this one is merely the
// conventional sink for scaffolded code.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry that scaffolded
// migration files register into.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a unit to the default registry.
func Register(namespace, name string, unit Unit) error {
	return defaultRegistry.Register(namespace, name, unit)
}

// MustRegister adds a unit to the default registry and panics on
// error. Scaffolded migration files call this from init().
func MustRegister(namespace, name string, unit Unit) {
	defaultRegistry.MustRegister(namespace, name, unit)
}
