// Package adapters maps the names used in build specifications to the
// external tools they stand for. Loaders and minimizers are references
// only; plugins record their declarative effect on the specification.
package adapters

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dualpack/dualpack/pkg/merge"
	"github.com/dualpack/dualpack/pkg/types"
)

// Kind is the role an adapter plays in a build specification
type Kind string

const (
	KindLoader    Kind = "loader"
	KindPlugin    Kind = "plugin"
	KindMinimizer Kind = "minimizer"
)

// Adapter is a named capability usable from a build specification
type Adapter interface {
	Name() string
	Kind() Kind
	// Apply returns a new specification carrying the adapter's effect.
	// The input specification must not be modified.
	Apply(spec types.BuildSpec, opts map[string]any) (types.BuildSpec, error)
}

type key struct {
	kind Kind
	name string
}

// Registry holds adapters by kind and name. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[key]Adapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[key]Adapter)}
}

// Register adds an adapter. Registering the same kind and name twice is an error.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{kind: a.Kind(), name: a.Name()}
	if _, exists := r.adapters[k]; exists {
		return fmt.Errorf("%s adapter %q already registered", a.Kind(), a.Name())
	}
	r.adapters[k] = a
	return nil
}

// MustRegister registers adapters and panics on duplicates
func (r *Registry) MustRegister(adapters ...Adapter) {
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
}

// Get looks up an adapter
func (r *Registry) Get(kind Kind, name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[key{kind: kind, name: name}]
	return a, ok
}

// Names lists the registered names of a kind, sorted
func (r *Registry) Names(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for k := range r.adapters {
		if k.kind == kind {
			names = append(names, k.name)
		}
	}
	sort.Strings(names)
	return names
}

// Validate checks that every loader, plugin and minimizer the
// specification references is registered.
func (r *Registry) Validate(spec types.BuildSpec) error {
	for i, rule := range spec.Module.Rules {
		for j, ref := range rule.Use {
			if _, ok := r.Get(KindLoader, ref.Name); !ok {
				return unknown(fmt.Sprintf("module.rules[%d].use[%d]", i, j), KindLoader, ref.Name)
			}
		}
	}
	for i, p := range spec.Plugins {
		if _, ok := r.Get(KindPlugin, p.Name); !ok {
			return unknown(fmt.Sprintf("plugins[%d]", i), KindPlugin, p.Name)
		}
	}
	if spec.Optimization != nil {
		for i, m := range spec.Optimization.Minimizers {
			if _, ok := r.Get(KindMinimizer, m.Name); !ok {
				return unknown(fmt.Sprintf("optimization.minimizer[%d]", i), KindMinimizer, m.Name)
			}
		}
	}
	return nil
}

// ApplyPlugins applies every plugin of spec in declared order and
// returns the resulting specification.
func (r *Registry) ApplyPlugins(spec types.BuildSpec) (types.BuildSpec, error) {
	current := spec
	for i, p := range spec.Plugins {
		adapter, ok := r.Get(KindPlugin, p.Name)
		if !ok {
			return types.BuildSpec{}, unknown(fmt.Sprintf("plugins[%d]", i), KindPlugin, p.Name)
		}
		next, err := adapter.Apply(current, p.Options)
		if err != nil {
			return types.BuildSpec{}, fmt.Errorf("plugin %q: %w", p.Name, err)
		}
		current = next
	}
	return current, nil
}

func unknown(path string, kind Kind, name string) error {
	return &merge.ConfigurationError{
		Path:   path,
		Reason: fmt.Sprintf("unknown %s adapter %q", kind, name),
	}
}
