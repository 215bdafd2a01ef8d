package bind

import (
	"reflect"

	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

var byteSliceType = reflect.TypeOf([]byte(nil))

// buildBuffer installs the buffer protocol from a declared
// `func (t *T) Buffer() []byte` method. The view takes a reference to the
// owning object; the release callback is a no-op because the runtime's
// view teardown drops that reference itself.
func (c *Class) buildBuffer() {
	if !c.spec.Caps.Has(meta.CapBuffer) {
		return
	}
	method := c.spec.Method(meta.CapBuffer)
	mt := method.Func.Type()
	if mt.NumIn() != 1 || mt.NumOut() != 1 || mt.Out(0) != byteSliceType {
		c.fail("method Buffer must have shape func() []byte")
		return
	}

	c.typ.Buffer = &rt.BufferSlots{
		GetBuffer: func(r *rt.Runtime, self rt.Object, flags rt.BufferFlags) (*rt.BufferView, error) {
			recv, ok := c.self(self)
			if !ok {
				return nil, r.Raise(rt.TypeError, "%s.Buffer: wrong receiver", c.Name())
			}
			data := method.Func.Call([]reflect.Value{recv})[0].Bytes()
			view := &rt.BufferView{
				Obj:      rt.NewRef(self),
				Data:     data,
				ItemSize: 1,
				NDim:     1,
				ReadOnly: flags&rt.BufWritable == 0,
			}
			if flags&rt.BufFormat != 0 {
				view.Format = "B"
			}
			if flags&(rt.BufND|rt.BufStrides) != 0 {
				view.Shape = []int{len(data)}
			}
			if flags&rt.BufStrides != 0 {
				view.Strides = []int{1}
			}
			return view, nil
		},
		ReleaseBuffer: func(r *rt.Runtime, self rt.Object, view *rt.BufferView) {
			// The runtime balances the NewRef taken in GetBuffer.
		},
	}
}
