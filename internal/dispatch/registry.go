// Package dispatch implements the server-side resolve/invoke core: a
// resource registry keyed by class FQN, a by-name method resolver that
// validates argument count and types,
// and a reflective invoker that maps exceptions to the Status sum type.
// Grounded on the Register/Execute-by-name shape of
// coreengine/tools.ToolExecutor, generalized from string-keyed tool
// handlers to reflect-backed Go methods.
package dispatch

import (
	"fmt"
	"reflect"
	"sync"
)

// Binding is one registered resource: either a class binding (a fresh
// instance per dispatch, mirroring a no-arg constructor) or a singleton
// binding (one shared instance for the registry's lifetime).
type Binding struct {
	ClassFQN  string
	Singleton bool

	instance any         // set when Singleton
	newType  reflect.Type // set when !Singleton, used to allocate a fresh instance
}

// Registry maps class FQNs to resource bindings. Populated at
// configuration time via AddResource/AddSingleton, then read concurrently
// by every dispatch — registries are read-only after startup.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
}

// NewRegistry returns an empty resource registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]*Binding)}
}

// AddSingleton registers instance under classFQN. Every dispatch for that
// class reuses the same instance, so handler state (e.g. an embedded
// counter or cache) persists across calls.
func (r *Registry) AddSingleton(classFQN string, instance any) error {
	if classFQN == "" {
		return fmt.Errorf("dispatch: class FQN is required")
	}
	if instance == nil {
		return fmt.Errorf("dispatch: singleton instance for %q must not be nil", classFQN)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[classFQN] = &Binding{ClassFQN: classFQN, Singleton: true, instance: instance}
	return nil
}

// AddResource registers zero-value as the prototype for classFQN. Each
// dispatch allocates a fresh instance via reflection, mirroring a
// server-side resource that is instantiated per request.
func (r *Registry) AddResource(classFQN string, zeroValue any) error {
	if classFQN == "" {
		return fmt.Errorf("dispatch: class FQN is required")
	}
	if zeroValue == nil {
		return fmt.Errorf("dispatch: resource prototype for %q must not be nil", classFQN)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[classFQN] = &Binding{ClassFQN: classFQN, Singleton: false, newType: reflect.TypeOf(zeroValue)}
	return nil
}

// ErrUnknownClass is returned when a class FQN has no registered binding.
type ErrUnknownClass struct {
	ClassFQN string
}

func (e *ErrUnknownClass) Error() string {
	return fmt.Sprintf("dispatch: no resource registered for class %q", e.ClassFQN)
}

// Resolve returns the live instance to dispatch a call against: the
// shared singleton, or a freshly allocated value for a class binding.
func (r *Registry) Resolve(classFQN string) (any, error) {
	r.mu.RLock()
	b, ok := r.bindings[classFQN]
	r.mu.RUnlock()
	if !ok {
		return nil, &ErrUnknownClass{ClassFQN: classFQN}
	}
	if b.Singleton {
		return b.instance, nil
	}
	rt := b.newType
	if rt.Kind() == reflect.Ptr {
		return reflect.New(rt.Elem()).Interface(), nil
	}
	return reflect.New(rt).Elem().Interface(), nil
}

// ClassNames returns every registered class FQN, for admin introspection.
func (r *Registry) ClassNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	return names
}

// Has reports whether classFQN has a registered binding.
func (r *Registry) Has(classFQN string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bindings[classFQN]
	return ok
}
