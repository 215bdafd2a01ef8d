package bind

import (
	"fmt"
	"reflect"

	"github.com/funvibe/pyrite/internal/rt"
)

// buildLifecycle installs the allocation, initialization and deallocation
// entry points on the class's type object.
func (c *Class) buildLifecycle() {
	c.typ.Alloc = c.allocInstance
	c.typ.Init = c.initInstance
	c.typ.Dealloc = c.deallocInstance
}

// allocInstance requests zeroed storage for a new instance and nulls the
// extra slots. The native storage is valid from here until deallocation
// starts.
func (c *Class) allocInstance(r *rt.Runtime, t *rt.Type) (rt.Object, error) {
	w := &Wrapped{
		Header: rt.NewHeader(t),
		class:  c,
		state:  stateAllocated,
	}
	switch c.layout.Kind {
	case LayoutEmbedded:
		w.storage = reflect.New(c.layout.Struct) // zero-filled
		c.assoc[w.storage.Pointer()] = w
	case LayoutOverlay:
		base, err := newSubstrate(r, c.layout.BaseType)
		if err != nil {
			return nil, err
		}
		w.base = base
	}
	if t.Heap {
		rt.Incref(t)
	}
	return w, nil
}

// newSubstrate creates the builtin instance an overlay object aliases.
func newSubstrate(r *rt.Runtime, base *rt.Type) (rt.Object, error) {
	switch base {
	case rt.ListType:
		return rt.NewList(0), nil
	case rt.DictType:
		return rt.NewDict(), nil
	case rt.SetType:
		return rt.NewSet(), nil
	case rt.BytesType:
		return rt.NewBytes(nil), nil
	}
	return nil, r.Raise(rt.TypeError, "cannot layer over %q", base.Name)
}

// initInstance binds construction arguments: the explicit constructor's
// positional-only parameters when one is declared, otherwise each declared
// field 1:1 in declaration order. An exact count match is required either
// way; failure leaves the object allocated but unusable and the overall
// object-creation call fails.
func (c *Class) initInstance(r *rt.Runtime, self rt.Object, args *rt.Tuple, kwargs *rt.Dict) error {
	w, ok := unwrap(c, self)
	if !ok {
		return r.Raise(rt.TypeError, "%s.__init__: wrong receiver", c.Name())
	}
	if kwargs != nil && kwargs.Len() > 0 {
		return r.Raise(rt.TypeError, "%s() takes no keyword arguments", c.Name())
	}

	if c.layout.Kind == LayoutOverlay {
		if args.Len() != 0 {
			return r.Raise(rt.TypeError, "%s() takes no arguments (%d given)", c.Name(), args.Len())
		}
		w.state = stateLive
		return nil
	}

	if c.ctor != nil {
		if err := c.initViaConstructor(r, w, args); err != nil {
			return err
		}
	} else {
		if err := c.initFromFields(r, w, args); err != nil {
			return err
		}
	}
	w.state = stateLive
	return nil
}

func (c *Class) initViaConstructor(r *rt.Runtime, w *Wrapped, args *rt.Tuple) error {
	ctor := c.ctor
	if args.Len() != ctor.Arity() {
		return r.Raise(rt.TypeError, "%s() takes exactly %d arguments (%d given)",
			c.Name(), ctor.Arity(), args.Len())
	}
	in := make([]reflect.Value, 0, ctor.Arity()+1)
	if ctor.TakesRuntime {
		in = append(in, reflect.ValueOf(r))
	}
	for i, p := range ctor.Params {
		v, err := c.binder.marshaller.ToNative(r, p.Spec, args.Get(i))
		if err != nil {
			return raiseConversion(r, fmt.Sprintf("%s() argument %s", c.Name(), p.Name), err)
		}
		in = append(in, v)
	}
	results := ctor.Fn.Call(in)
	if ctor.ReturnsError {
		errV := results[len(results)-1]
		if !errV.IsNil() {
			return raiseNative(r, c.reg, ctor.ErrTable, errV.Interface().(error))
		}
		results = results[:len(results)-1]
	}
	if len(results) == 0 {
		return r.Raise(rt.TypeError, "%s(): constructor produced no value", c.Name())
	}
	ret := results[0]
	if ret.Kind() == reflect.Ptr {
		if ret.IsNil() {
			return r.Raise(rt.TypeError, "%s(): constructor produced nil", c.Name())
		}
		ret = ret.Elem()
	}
	w.storage.Elem().Set(ret)
	return nil
}

// initFromFields overwrites the zeroed storage with one positional
// argument per declared field.
func (c *Class) initFromFields(r *rt.Runtime, w *Wrapped, args *rt.Tuple) error {
	fields := c.spec.Fields
	if args.Len() != len(fields) {
		return r.Raise(rt.TypeError, "%s() takes exactly %d arguments (%d given)",
			c.Name(), len(fields), args.Len())
	}
	storage := w.storage.Elem()
	for i, f := range fields {
		v, err := c.binder.marshaller.ToNative(r, f.Spec, args.Get(i))
		if err != nil {
			return raiseConversion(r, fmt.Sprintf("%s() field %s", c.Name(), f.Name), err)
		}
		storage.Field(f.Index).Set(v)
	}
	return nil
}

// deallocInstance tears an instance down: weak referents are notified
// first, the attribute dict is released, then the type's free hook runs,
// and — only for heap types — the type's own reference is dropped last so
// the descriptor outlives the instance teardown that uses it.
func (c *Class) deallocInstance(o rt.Object) {
	w, ok := o.(*Wrapped)
	if !ok || w.state == stateFreed {
		return
	}
	w.state = stateDeallocating

	if w.weak != nil {
		w.weak.ClearAll()
		w.weak = nil
	}
	if w.dict != nil {
		rt.Decref(w.dict)
		w.dict = nil
	}
	if w.storage.IsValid() {
		delete(c.assoc, w.storage.Pointer())
	}
	if w.base != nil {
		rt.Decref(w.base)
		w.base = nil
	}
	t := w.TypeOf()
	if t.Free != nil {
		t.Free(w)
	}
	w.state = stateFreed
	if t.Heap {
		rt.Decref(t)
	}
}
