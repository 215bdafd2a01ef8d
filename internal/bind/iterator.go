package bind

import (
	"reflect"

	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// buildIterator installs the iteration slots. A type declaring only Next
// is its own iterator; a declared Iter method produces the iterator
// object instead.
func (c *Class) buildIterator() {
	caps := c.spec.Caps

	if caps.Has(meta.CapNext) {
		c.typ.IterNext = c.nextSlot()
	}

	switch {
	case caps.Has(meta.CapIter):
		fs := c.protoSpec(meta.CapIter)
		if fs == nil {
			return
		}
		c.typ.Iter = func(r *rt.Runtime, self rt.Object) (rt.Object, error) {
			recv, ok := c.self(self)
			if !ok {
				return nil, r.Raise(rt.TypeError, "%s.Iter: wrong receiver", c.Name())
			}
			return c.binder.invoke(r, fs, c.reg, recv, nil)
		}
	case caps.Has(meta.CapNext):
		c.typ.Iter = func(r *rt.Runtime, self rt.Object) (rt.Object, error) {
			return rt.NewRef(self), nil
		}
	}
}

// nextSlot adapts `func (t *T) Next() (V, bool)`: exhaustion (ok=false)
// becomes StopIteration.
func (c *Class) nextSlot() rt.UnaryFunc {
	method := c.spec.Method(meta.CapNext)
	mt := method.Func.Type()
	if mt.NumIn() != 1 || mt.NumOut() != 2 || mt.Out(1).Kind() != reflect.Bool {
		c.fail("method Next must have shape func() (V, bool)")
		return nil
	}
	elemSpec := meta.Spec(mt.Out(0))
	return func(r *rt.Runtime, self rt.Object) (rt.Object, error) {
		recv, ok := c.self(self)
		if !ok {
			return nil, r.Raise(rt.TypeError, "%s.Next: wrong receiver", c.Name())
		}
		out := method.Func.Call([]reflect.Value{recv})
		if !out[1].Bool() {
			return nil, r.Raise(rt.StopIteration, "")
		}
		o, err := c.binder.marshaller.ToRuntime(r, elemSpec, out[0])
		if err != nil {
			return nil, raiseConversion(r, c.Name()+".Next result", err)
		}
		return o, nil
	}
}
