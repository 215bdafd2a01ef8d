package rt

import (
	"fmt"
	"sync"
)

// Runtime is one interpreter instance: its global lock, pending exception
// state and module registry. All object operations require the lock.
type Runtime struct {
	mu      sync.Mutex
	pending *Raised

	modules map[string]*Module

	// importers supplies lazily constructed modules by name, in the manner
	// of an extension-module import hook.
	importers map[string]func(r *Runtime) (*Module, error)
}

// New creates a runtime with the built-in importable modules registered.
func New() *Runtime {
	r := &Runtime{
		modules:   make(map[string]*Module),
		importers: make(map[string]func(r *Runtime) (*Module, error)),
	}
	registerBuiltinImporters(r)
	return r
}

// Lock acquires the runtime's global lock. Every object operation between
// Lock and Unlock runs under the single-threaded discipline.
func (r *Runtime) Lock() { r.mu.Lock() }

// Unlock releases the global lock.
func (r *Runtime) Unlock() { r.mu.Unlock() }

// RegisterImporter installs a lazy module constructor under name.
func (r *Runtime) RegisterImporter(name string, fn func(r *Runtime) (*Module, error)) {
	r.importers[name] = fn
}

// AddModule registers an already constructed module, stealing the caller's
// reference.
func (r *Runtime) AddModule(m *Module) error {
	if _, ok := r.modules[m.Name]; ok {
		return fmt.Errorf("module %q already registered", m.Name)
	}
	r.modules[m.Name] = m
	return nil
}

// Import returns a borrowed handle to the named module, constructing it on
// first use. Missing modules raise ImportError.
func (r *Runtime) Import(name string) (*Module, error) {
	if m, ok := r.modules[name]; ok {
		return m, nil
	}
	fn, ok := r.importers[name]
	if !ok {
		return nil, r.Raise(ImportError, "no module named %q", name)
	}
	m, err := fn(r)
	if err != nil {
		return nil, err
	}
	r.modules[name] = m
	return m, nil
}

// Close releases every registered module. The runtime must not be used
// afterwards.
func (r *Runtime) Close() {
	for name, m := range r.modules {
		Decref(m)
		delete(r.modules, name)
	}
}
