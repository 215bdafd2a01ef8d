package bind

import (
	"fmt"
	"reflect"

	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// buildMapping installs the container protocol table: length, subscript
// get, subscript set/delete. A nil (or None) assignment value routes to
// the deletion method.
func (c *Class) buildMapping() {
	caps := c.spec.Caps
	if !caps.HasAnyMapping() {
		return
	}
	m := &rt.MappingSlots{}

	if caps.Has(meta.CapLen) {
		m.Length = c.lenSlot()
	}
	if caps.Has(meta.CapGetItem) {
		m.GetItem = c.getItemSlot()
	}
	if caps.Has(meta.CapSetItem) || caps.Has(meta.CapDelItem) {
		m.SetItem = c.setItemSlot()
	}
	c.typ.Mapping = m
}

// lenSlot calls the native Len method directly; the declared shape is
// `func (t *T) Len() int`.
func (c *Class) lenSlot() rt.LenFunc {
	method := c.spec.Method(meta.CapLen)
	mt := method.Func.Type()
	if mt.NumIn() != 1 || mt.NumOut() != 1 || mt.Out(0).Kind() != reflect.Int {
		c.fail("method Len must have shape func() int")
		return nil
	}
	return func(r *rt.Runtime, self rt.Object) (int, error) {
		recv, ok := c.self(self)
		if !ok {
			return 0, r.Raise(rt.TypeError, "%s.Len: wrong receiver", c.Name())
		}
		n := method.Func.Call([]reflect.Value{recv})[0].Int()
		if n < 0 {
			return 0, r.Raise(rt.ValueError, "%s.Len returned a negative length", c.Name())
		}
		return int(n), nil
	}
}

func (c *Class) getItemSlot() rt.GetItemFunc {
	fs := c.protoSpec(meta.CapGetItem)
	if fs == nil || len(fs.Params) != 1 {
		c.fail("method GetItem must take exactly one key parameter")
		return nil
	}
	keySpec := fs.Params[0].Spec
	return func(r *rt.Runtime, self, key rt.Object) (rt.Object, error) {
		recv, ok := c.self(self)
		if !ok {
			return nil, r.Raise(rt.TypeError, "%s.GetItem: wrong receiver", c.Name())
		}
		kv, err := c.binder.marshaller.ToNative(r, keySpec, key)
		if err != nil {
			return nil, c.raiseSubscript(r, keySpec, key, err)
		}
		return c.binder.invoke(r, fs, c.reg, recv, []reflect.Value{kv})
	}
}

// setItemSlot dispatches assignment and deletion through one runtime
// slot: a nil value (the runtime's deletion signal) or an explicit None
// invokes the deletion method, everything else the assignment method.
func (c *Class) setItemSlot() rt.SetItemFunc {
	set := c.protoSpec(meta.CapSetItem)
	del := c.protoSpec(meta.CapDelItem)
	if set != nil && len(set.Params) != 2 {
		c.fail("method SetItem must take key and value parameters")
		return nil
	}
	if del != nil && len(del.Params) != 1 {
		c.fail("method DelItem must take exactly one key parameter")
		return nil
	}
	return func(r *rt.Runtime, self, key rt.Object, value rt.Object) error {
		recv, ok := c.self(self)
		if !ok {
			return r.Raise(rt.TypeError, "%s.SetItem: wrong receiver", c.Name())
		}
		if value == nil || rt.IsNone(value) {
			if del == nil {
				return r.Raise(rt.TypeError, "%q object does not support item deletion", c.Name())
			}
			kv, err := c.binder.marshaller.ToNative(r, del.Params[0].Spec, key)
			if err != nil {
				return c.raiseSubscript(r, del.Params[0].Spec, key, err)
			}
			return c.discard(c.binder.invoke(r, del, c.reg, recv, []reflect.Value{kv}))
		}
		if set == nil {
			return r.Raise(rt.TypeError, "%q object does not support item assignment", c.Name())
		}
		kv, err := c.binder.marshaller.ToNative(r, set.Params[0].Spec, key)
		if err != nil {
			return c.raiseSubscript(r, set.Params[0].Spec, key, err)
		}
		vv, err := c.binder.marshaller.ToNative(r, set.Params[1].Spec, value)
		if err != nil {
			return c.raiseSubscript(r, set.Params[0].Spec, key, err)
		}
		return c.discard(c.binder.invoke(r, set, c.reg, recv, []reflect.Value{kv, vv}))
	}
}

// raiseSubscript maps a subscript conversion failure: integer-keyed
// containers report index errors, general-keyed ones key errors.
func (c *Class) raiseSubscript(r *rt.Runtime, keySpec meta.TypeSpec, key rt.Object, err error) error {
	if re, ok := err.(*rt.Raised); ok {
		return r.RaiseObject(re)
	}
	switch keySpec.Kind() {
	case meta.KindInt, meta.KindUint, meta.KindBigInt:
		return r.Raise(rt.IndexError, "%s index: %s", c.Name(), err.Error())
	}
	return r.Raise(rt.KeyError, "%s", key.Inspect())
}

// discard drops the slot's value result, keeping only the error.
func (c *Class) discard(o rt.Object, err error) error {
	if o != nil {
		rt.Decref(o)
	}
	return err
}

// fail latches a slot-shape registration error.
func (c *Class) fail(msg string) {
	if c.slotErr == nil {
		c.slotErr = fmt.Errorf("%s", msg)
	}
}
