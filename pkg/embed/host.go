// Package embed hosts a runtime inside a Go program: it assembles bound
// modules, owns the global lock, and drives bound functions from Go.
package embed

import (
	"fmt"

	"github.com/funvibe/pyrite/internal/bind"
	"github.com/funvibe/pyrite/internal/rt"
	"github.com/funvibe/pyrite/internal/stdmod"
)

// Host is one embedded runtime instance. Start returns it with the global
// lock held; every Host method except Without and AcquireExternal expects
// the caller to hold the lock.
type Host struct {
	runtime *rt.Runtime
	binder  *bind.Binder
	modules map[string]*bind.Module
	closed  bool
}

// Option configures a Host at start.
type Option func(*config)

type config struct {
	defs []*bind.ModuleDef
}

// WithModule registers a module definition to assemble at start.
func WithModule(def *bind.ModuleDef) Option {
	return func(c *config) { c.defs = append(c.defs, def) }
}

// Start creates a runtime, assembles the given modules and returns the
// host with the global lock held.
func Start(opts ...Option) (*Host, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &Host{
		runtime: rt.New(),
		binder:  bind.NewBinder(),
		modules: make(map[string]*bind.Module),
	}
	h.runtime.Lock()

	h.registerStandardModules()

	for _, def := range cfg.defs {
		m, err := h.binder.Assemble(h.runtime, def)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("assembling module %s: %w", def.Name, err)
		}
		if err := h.runtime.AddModule(m.Runtime()); err != nil {
			rt.Decref(m.Runtime())
			h.Close()
			return nil, err
		}
		h.modules[def.Name] = m
	}
	return h, nil
}

// registerStandardModules installs lazy importers for the shipped bound
// modules, so they cost nothing until first imported.
func (h *Host) registerStandardModules() {
	lazy := func(name string, def func() *bind.ModuleDef) {
		h.runtime.RegisterImporter(name, func(r *rt.Runtime) (*rt.Module, error) {
			m, err := h.binder.Assemble(r, def())
			if err != nil {
				return nil, err
			}
			h.modules[name] = m
			return m.Runtime(), nil
		})
	}
	lazy("db", stdmod.DBModule)
	lazy("rpc", stdmod.RPCModule)
}

// Close shuts the runtime down and releases the lock. The host must not
// be used afterwards.
func (h *Host) Close() {
	if h.closed {
		return
	}
	h.closed = true
	h.runtime.Close()
	h.runtime.Unlock()
}

// Without releases the global lock for the duration of fn and reacquires
// it on every exit path, including a panic inside fn.
func (h *Host) Without(fn func()) {
	h.runtime.Unlock()
	defer h.runtime.Lock()
	fn()
}

// AcquireExternal takes the global lock for a goroutine that does not
// already hold it. Pair with ReleaseExternal.
func (h *Host) AcquireExternal() { h.runtime.Lock() }

// ReleaseExternal releases a lock taken with AcquireExternal.
func (h *Host) ReleaseExternal() { h.runtime.Unlock() }

// Import returns the named bound module, constructing it on first use.
func (h *Host) Import(name string) (*bind.Module, error) {
	if m, ok := h.modules[name]; ok {
		return m, nil
	}
	if _, err := h.runtime.Import(name); err != nil {
		return nil, err
	}
	m, ok := h.modules[name]
	if !ok {
		return nil, fmt.Errorf("module %q is not a bound module", name)
	}
	return m, nil
}

// Call invokes a bound function by module and name with native Go
// arguments, and converts the result back to a native value.
func (h *Host) Call(module, fn string, args ...interface{}) (interface{}, error) {
	rm, err := h.runtime.Import(module)
	if err != nil {
		return nil, err
	}
	callable := rm.GetAttr(h.runtime, fn)
	if callable == nil {
		return nil, fmt.Errorf("module %s has no attribute %q", module, fn)
	}

	tuple := rt.NewTuple(len(args))
	for i, a := range args {
		obj, err := h.binder.Marshaller().ToRuntimeValue(h.runtime, a)
		if err != nil {
			rt.Decref(tuple)
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		tuple.SetItemSteal(i, obj)
	}

	out, err := rt.CallObject(h.runtime, callable, tuple, nil)
	rt.Decref(tuple)
	if err != nil {
		return nil, err
	}
	v := nativeValue(out)
	rt.Decref(out)
	return v, nil
}
