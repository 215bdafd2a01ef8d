// Package rt implements the host object runtime the binding layer targets:
// reference-counted dynamic objects, type objects with protocol slot tables,
// per-runtime exception state, modules and capsules.
//
// Every object operation assumes the runtime's global lock is held by the
// calling goroutine (see Runtime.Lock). Handles are either owned (the holder
// must Decref exactly once) or borrowed (the holder must not Decref); each
// primitive documents which discipline applies.
package rt

import (
	"hash/fnv"
)

// Object is implemented by every runtime value.
type Object interface {
	// Hdr returns the reference-count header shared by all objects. The
	// name avoids colliding with the embedded Header field that provides
	// the implementation.
	Hdr() *Header

	// TypeOf returns the object's type.
	TypeOf() *Type

	// Inspect returns a printable representation for diagnostics.
	Inspect() string
}

// Header is the runtime header embedded at the start of every object.
type Header struct {
	refs     int64
	typ      *Type
	immortal bool
	identity uint32
}

func (h *Header) Hdr() *Header  { return h }
func (h *Header) TypeOf() *Type { return h.typ }

// Refs returns the current reference count. Diagnostic use only.
func (h *Header) Refs() int64 { return h.refs }

// NewHeader returns a header for a freshly created object with one reference.
func NewHeader(t *Type) Header {
	return Header{refs: 1, typ: t}
}

// immortalHeader is used for process-wide singletons. Their counts still
// move so adapters can be audited, but they are never deallocated.
func immortalHeader(t *Type) Header {
	return Header{refs: 1, typ: t, immortal: true}
}

// Incref takes a new reference to o.
func Incref(o Object) {
	o.Hdr().refs++
}

// Decref releases one reference to o, deallocating it at zero.
func Decref(o Object) {
	h := o.Hdr()
	h.refs--
	if h.refs > 0 || h.immortal {
		return
	}
	deallocate(o)
}

// XDecref is Decref tolerating a nil handle.
func XDecref(o Object) {
	if o != nil {
		Decref(o)
	}
}

// NewRef takes a new reference and returns the same handle. The returned
// handle is owned by the caller.
func NewRef(o Object) Object {
	Incref(o)
	return o
}

func deallocate(o Object) {
	t := o.TypeOf()
	if t != nil && t.Dealloc != nil {
		t.Dealloc(o)
		return
	}
	// Generic free: nothing to release beyond the Go allocation itself.
}

// hashString is the shared string hasher (FNV-1a, as the rest of the
// runtime uses for interning and dict buckets).
func hashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// hashBytes hashes a byte slice with the same function as hashString.
func hashBytes(b []byte) uint32 {
	h := fnv.New32a()
	h.Write(b)
	return h.Sum32()
}
