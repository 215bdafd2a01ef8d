package bind

import (
	"reflect"

	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// buildGC forwards the cycle collector's callbacks to the native Traverse
// and Clear methods. Traverse must call the visitor once per embedded
// object reference and return the first nonzero visitor result unchanged.
func (c *Class) buildGC() {
	caps := c.spec.Caps

	if caps.Has(meta.CapTraverse) {
		method := c.spec.Method(meta.CapTraverse)
		mt := method.Func.Type()
		if mt.NumIn() != 2 || mt.In(1).Kind() != reflect.Func ||
			mt.NumOut() != 1 || mt.Out(0).Kind() != reflect.Int {
			c.fail("method Traverse must have shape func(visit func(rt.Object) int) int")
			return
		}
		visitType := mt.In(1)
		c.typ.Traverse = func(self rt.Object, visit rt.VisitFunc) int {
			recv, ok := c.self(self)
			if !ok {
				return 0
			}
			cb := reflect.MakeFunc(visitType, func(args []reflect.Value) []reflect.Value {
				child, _ := args[0].Interface().(rt.Object)
				code := 0
				if child != nil {
					code = visit(child)
				}
				return []reflect.Value{reflect.ValueOf(code)}
			})
			return int(method.Func.Call([]reflect.Value{recv, cb})[0].Int())
		}
	}

	if caps.Has(meta.CapClear) {
		method := c.spec.Method(meta.CapClear)
		if mt := method.Func.Type(); mt.NumIn() != 1 || mt.NumOut() != 0 {
			c.fail("method Clear must have shape func()")
			return
		}
		c.typ.Clear = func(self rt.Object) {
			if recv, ok := c.self(self); ok {
				method.Func.Call([]reflect.Value{recv})
			}
		}
	}
}
