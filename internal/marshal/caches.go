package marshal

import (
	"fmt"
	"reflect"

	"github.com/funvibe/pyrite/internal/rt"
)

// ClassBinding lets the marshaller cross between registered native struct
// pointers and their wrapped runtime objects. The bind package implements
// it; the marshaller only knows the interface.
type ClassBinding interface {
	// Wrap returns an owned handle for a native struct pointer: the
	// already-associated wrapped object when one exists, otherwise a fresh
	// box around the pointed-to storage.
	Wrap(r *rt.Runtime, ptr reflect.Value) (rt.Object, error)

	// Unwrap returns the native struct pointer embedded in o, or ok=false
	// when o is not an instance of this class.
	Unwrap(o rt.Object) (reflect.Value, bool)
}

// cacheState tracks an at-most-once lazy import. The zero value is the
// explicit "not yet initialized" sentinel, distinct from "failed".
type cacheState int

const (
	cacheUninit cacheState = iota
	cacheReady
	cacheFailed
)

// Marshaller converts between native values and runtime objects. One
// marshaller serves one runtime; the lazily imported class handles below
// are cached under the runtime's global lock, so re-entrant initialization
// is a check-then-skip.
type Marshaller struct {
	classes map[reflect.Type]ClassBinding

	dtState cacheState
	dtAPI   *rt.DateTimeAPI

	decState cacheState
	decCtor  rt.Object

	pathState cacheState
	pathCtor  rt.Object
}

// New creates a marshaller with no registered classes.
func New() *Marshaller {
	return &Marshaller{classes: make(map[reflect.Type]ClassBinding)}
}

// RegisterClass associates a native struct type with its wrapped-object
// binding. Called once per class at registration time.
func (m *Marshaller) RegisterClass(structType reflect.Type, b ClassBinding) {
	m.classes[structType] = b
}

// ClassFor returns the binding for a struct type, or nil.
func (m *Marshaller) ClassFor(structType reflect.Type) ClassBinding {
	return m.classes[structType]
}

// datetimeAPI imports and caches the datetime capsule.
func (m *Marshaller) datetimeAPI(r *rt.Runtime) (*rt.DateTimeAPI, error) {
	switch m.dtState {
	case cacheReady:
		return m.dtAPI, nil
	case cacheFailed:
		return nil, fmt.Errorf("datetime capsule unavailable: %w", ErrConversion)
	}
	api, err := rt.CapsuleImport(r, "datetime", rt.DateTimeCapsuleName)
	if err != nil {
		m.dtState = cacheFailed
		return nil, err
	}
	dt, ok := api.(*rt.DateTimeAPI)
	if !ok {
		m.dtState = cacheFailed
		return nil, fmt.Errorf("datetime capsule has unexpected payload %T: %w", api, ErrConversion)
	}
	m.dtState = cacheReady
	m.dtAPI = dt
	return dt, nil
}

// decimalCtor imports and caches the decimal class handle.
func (m *Marshaller) decimalClass(r *rt.Runtime) (rt.Object, error) {
	switch m.decState {
	case cacheReady:
		return m.decCtor, nil
	case cacheFailed:
		return nil, fmt.Errorf("decimal class unavailable: %w", ErrConversion)
	}
	mod, err := r.Import("decimal")
	if err != nil {
		m.decState = cacheFailed
		return nil, err
	}
	ctor := mod.GetAttr(r, "Decimal")
	if ctor == nil {
		m.decState = cacheFailed
		return nil, fmt.Errorf("decimal module has no Decimal: %w", ErrConversion)
	}
	rt.Incref(ctor) // cached for the process lifetime
	m.decState = cacheReady
	m.decCtor = ctor
	return ctor, nil
}

// pathClass imports and caches the path class handle.
func (m *Marshaller) pathClass(r *rt.Runtime) (rt.Object, error) {
	switch m.pathState {
	case cacheReady:
		return m.pathCtor, nil
	case cacheFailed:
		return nil, fmt.Errorf("path class unavailable: %w", ErrConversion)
	}
	mod, err := r.Import("pathlib")
	if err != nil {
		m.pathState = cacheFailed
		return nil, err
	}
	ctor := mod.GetAttr(r, "Path")
	if ctor == nil {
		m.pathState = cacheFailed
		return nil, fmt.Errorf("pathlib module has no Path: %w", ErrConversion)
	}
	rt.Incref(ctor)
	m.pathState = cacheReady
	m.pathCtor = ctor
	return ctor, nil
}
