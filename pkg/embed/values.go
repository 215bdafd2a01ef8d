package embed

import (
	"github.com/funvibe/pyrite/internal/rt"
)

// nativeValue converts a runtime object to an untyped Go value, for
// callers that do not declare a target type. Borrowed input; containers
// convert recursively.
func nativeValue(o rt.Object) interface{} {
	switch v := o.(type) {
	case *rt.NoneObject:
		return nil
	case *rt.Bool:
		return v.Value
	case *rt.Int:
		if n, ok := v.Int64(); ok {
			return n
		}
		// Wider than 64 bits: surface the decimal text.
		return v.Text()
	case *rt.Float:
		return v.Value
	case *rt.Str:
		return v.Value
	case *rt.Bytes:
		return v.Data
	case *rt.List:
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = nativeValue(v.Get(i))
		}
		return out
	case *rt.Tuple:
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = nativeValue(v.Get(i))
		}
		return out
	case *rt.Dict:
		out := make(map[string]interface{}, v.Len())
		v.Range(func(key, value rt.Object) bool {
			name, ok := key.(*rt.Str)
			if ok {
				out[name.Value] = nativeValue(value)
			} else {
				out[key.Inspect()] = nativeValue(value)
			}
			return true
		})
		return out
	case *rt.Set:
		var out []interface{}
		v.Range(func(key rt.Object) bool {
			out = append(out, nativeValue(key))
			return true
		})
		return out
	}
	return o.Inspect()
}
