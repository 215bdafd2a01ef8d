// Package bind builds the runtime-facing descriptor tables for native Go
// structs and functions: object layout, lifecycle hooks, protocol slot
// tables and call adapters. Everything here runs once at registration; the
// generated adapters are what the runtime invokes afterwards.
package bind

import (
	"fmt"
	"reflect"

	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// LayoutKind tags how a wrapped object stores its native data.
type LayoutKind int

const (
	// LayoutEmbedded: the object carries its own zeroed struct storage.
	LayoutEmbedded LayoutKind = iota

	// LayoutOverlay: the class is layered over a runtime builtin; the
	// storage region collapses to zero size and accessors alias the base
	// object.
	LayoutOverlay
)

// Layout is the per-class layout descriptor computed at registration time.
// Accessors are resolved here once, not branched per access.
type Layout struct {
	Kind LayoutKind

	// Struct is the native struct type for embedded layouts.
	Struct reflect.Type

	// BaseType is the builtin substrate for overlay layouts.
	BaseType *rt.Type

	// HasDict and HasWeakrefs select the optional embedded slots.
	HasDict     bool
	HasWeakrefs bool

	// Native returns the native view of a wrapped object: the addressable
	// struct storage for embedded layouts, the base object handle for
	// overlays.
	Native func(w *Wrapped) reflect.Value

	// NativePtr returns the *T storage pointer for embedded layouts.
	NativePtr func(w *Wrapped) reflect.Value
}

// NewLayout computes the layout for a class.
func NewLayout(structType reflect.Type, withDict, withWeakrefs bool, overlay *rt.Type) (*Layout, error) {
	l := &Layout{HasDict: withDict, HasWeakrefs: withWeakrefs}
	if overlay != nil {
		if structType != nil && structType.Size() != 0 {
			return nil, fmt.Errorf("layout: overlay class cannot carry native storage (%s has size %d)",
				structType, structType.Size())
		}
		l.Kind = LayoutOverlay
		l.BaseType = overlay
		l.Native = func(w *Wrapped) reflect.Value { return reflect.ValueOf(w.base) }
		l.NativePtr = l.Native
		return l, nil
	}
	if structType == nil || structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("layout: native type must be a struct, got %v", structType)
	}
	l.Kind = LayoutEmbedded
	l.Struct = structType
	l.Native = func(w *Wrapped) reflect.Value { return w.storage.Elem() }
	l.NativePtr = func(w *Wrapped) reflect.Value { return w.storage }
	return l, nil
}

// lifecycle states of a wrapped object. Native storage is valid from the
// end of allocation until the start of deallocation.
type lifeState int

const (
	stateAllocated lifeState = iota // zero-filled, slots nulled
	stateLive                       // native-initialized
	stateDeallocating
	stateFreed
)

// Wrapped is a runtime object embedding native struct storage plus the
// optional attribute-dict and weak-reference-list slots.
type Wrapped struct {
	rt.Header
	class *Class

	// storage is *T for embedded layouts; invalid for overlays.
	storage reflect.Value

	// base is the substrate instance for overlay layouts.
	base rt.Object

	dict  *rt.Dict
	weak  *rt.WeakList
	state lifeState
}

func (w *Wrapped) Inspect() string {
	return fmt.Sprintf("<%s object>", w.class.Name())
}

// Native returns the object's native view per its layout.
func (w *Wrapped) Native() reflect.Value { return w.class.layout.Native(w) }

// DictSlot returns the attribute dict, creating it on first use when the
// class opted in; nil otherwise.
func (w *Wrapped) DictSlot() *rt.Dict {
	if !w.class.layout.HasDict {
		return nil
	}
	if w.dict == nil {
		w.dict = rt.NewDict()
	}
	return w.dict
}

// WeakSlot returns the weak-reference list, creating it on first use when
// the class opted in; nil otherwise.
func (w *Wrapped) WeakSlot() *rt.WeakList {
	if !w.class.layout.HasWeakrefs {
		return nil
	}
	if w.weak == nil {
		w.weak = rt.NewWeakList()
	}
	return w.weak
}

// Base returns the overlay substrate object, or nil for embedded layouts.
// The handle is borrowed.
func (w *Wrapped) Base() rt.Object { return w.base }

// Class returns the class descriptor this object belongs to.
func (w *Wrapped) Class() *Class { return w.class }

// unwrap returns (w, true) when o is an instance of class c.
func unwrap(c *Class, o rt.Object) (*Wrapped, bool) {
	w, ok := o.(*Wrapped)
	if !ok || w.class != c {
		return nil, false
	}
	return w, true
}

// self extracts the native receiver for a method call on o.
func (c *Class) self(o rt.Object) (reflect.Value, bool) {
	w, ok := unwrap(c, o)
	if !ok {
		return reflect.Value{}, false
	}
	return c.layout.NativePtr(w), true
}

var _ rt.Object = (*Wrapped)(nil)

// spec helper: a TypeSpec for the class's own pointer type.
func (c *Class) ptrSpec() meta.TypeSpec {
	return meta.Spec(reflect.PtrTo(c.spec.Go))
}
