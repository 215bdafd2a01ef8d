package bind

import (
	"fmt"
	"reflect"

	"github.com/funvibe/pyrite/internal/marshal"
	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// Binder owns the per-runtime marshaller and builds call adapters.
type Binder struct {
	marshaller *marshal.Marshaller
}

// NewBinder creates a binder with a fresh marshaller.
func NewBinder() *Binder {
	return &Binder{marshaller: marshal.New()}
}

// Marshaller exposes the binder's marshaller to collaborating layers.
func (b *Binder) Marshaller() *marshal.Marshaller { return b.marshaller }

// invoker is the bound form of one native function: receiver (possibly
// invalid), runtime arguments in, owned runtime result out.
type invoker func(r *rt.Runtime, recv reflect.Value, args *rt.Tuple, kwargs *rt.Dict) (rt.Object, error)

// BuildFunc builds the call adapter for a module-level function.
func (b *Binder) BuildFunc(spec *meta.FuncSpec, reg *Registry) rt.CallFunc {
	inner := b.buildInvoker(spec, reg)
	return func(r *rt.Runtime, self rt.Object, args *rt.Tuple, kwargs *rt.Dict) (rt.Object, error) {
		return inner(r, reflect.Value{}, args, kwargs)
	}
}

// buildInvoker compiles the binding plan for spec once; the returned
// adapter only converts and calls.
func (b *Binder) buildInvoker(spec *meta.FuncSpec, reg *Registry) invoker {
	switch spec.Mode {
	case meta.StructKeywords:
		return b.structInvoker(spec, reg)
	case meta.AnonymousKeywords:
		return b.keywordInvoker(spec, reg)
	default:
		return b.positionalInvoker(spec, reg)
	}
}

// positionalInvoker: argument count must equal parameter count exactly.
func (b *Binder) positionalInvoker(spec *meta.FuncSpec, reg *Registry) invoker {
	return func(r *rt.Runtime, recv reflect.Value, args *rt.Tuple, kwargs *rt.Dict) (rt.Object, error) {
		if kwargs != nil && kwargs.Len() > 0 {
			return nil, r.Raise(rt.TypeError, "%s() takes no keyword arguments", spec.Name)
		}
		if args.Len() != spec.Arity() {
			return nil, r.Raise(rt.TypeError, "%s() takes exactly %d arguments (%d given)",
				spec.Name, spec.Arity(), args.Len())
		}
		in := make([]reflect.Value, spec.Arity())
		for i, p := range spec.Params {
			v, err := b.marshaller.ToNative(r, p.Spec, args.Get(i))
			if err != nil {
				return nil, raiseConversion(r, fmt.Sprintf("%s() argument %s", spec.Name, p.Name), err)
			}
			in[i] = v
		}
		return b.invoke(r, spec, reg, recv, in)
	}
}

// keywordInvoker: positional first, keywords against the (possibly
// synthesized) parameter names, optional parameters may be absent.
func (b *Binder) keywordInvoker(spec *meta.FuncSpec, reg *Registry) invoker {
	return func(r *rt.Runtime, recv reflect.Value, args *rt.Tuple, kwargs *rt.Dict) (rt.Object, error) {
		if args.Len() > spec.Arity() {
			return nil, r.Raise(rt.TypeError, "%s() takes at most %d arguments (%d given)",
				spec.Name, spec.Arity(), args.Len())
		}
		if err := b.checkKeywords(r, spec.Name, kwargs, func(name string) int {
			for i, p := range spec.Params {
				if p.Name == name {
					return i
				}
			}
			return -1
		}, args.Len()); err != nil {
			return nil, err
		}
		in := make([]reflect.Value, spec.Arity())
		for i, p := range spec.Params {
			var src rt.Object
			if i < args.Len() {
				src = args.Get(i)
			} else if kwargs != nil {
				src = kwargs.GetString(r, p.Name)
			}
			switch {
			case src != nil:
				v, err := b.marshaller.ToNative(r, p.Spec, src)
				if err != nil {
					return nil, raiseConversion(r, fmt.Sprintf("%s() argument %s", spec.Name, p.Name), err)
				}
				in[i] = v
			case p.Optional:
				in[i] = reflect.Zero(p.Spec.Go)
			default:
				return nil, r.Raise(rt.TypeError, "%s() missing required argument %s", spec.Name, p.Name)
			}
		}
		return b.invoke(r, spec, reg, recv, in)
	}
}

// structInvoker: named-keyword mode. Each field binds positionally first,
// then by keyword, then from its declared default, then — when optional —
// to absent; a required field satisfying none of these is a missing
// required argument naming the field.
func (b *Binder) structInvoker(spec *meta.FuncSpec, reg *Registry) invoker {
	ss := spec.KwStruct
	return func(r *rt.Runtime, recv reflect.Value, args *rt.Tuple, kwargs *rt.Dict) (rt.Object, error) {
		if args.Len() > len(ss.Fields) {
			return nil, r.Raise(rt.TypeError, "%s() takes at most %d arguments (%d given)",
				spec.Name, len(ss.Fields), args.Len())
		}
		if err := b.checkKeywords(r, spec.Name, kwargs, func(name string) int {
			for i := range ss.Fields {
				if ss.Fields[i].Name == name {
					return i
				}
			}
			return -1
		}, args.Len()); err != nil {
			return nil, err
		}
		out := reflect.New(ss.Go).Elem()
		for i := range ss.Fields {
			f := &ss.Fields[i]
			var src rt.Object
			if i < args.Len() {
				src = args.Get(i)
			} else if kwargs != nil {
				src = kwargs.GetString(r, f.Name)
			}
			switch {
			case src != nil:
				v, err := b.marshaller.ToNative(r, f.Spec, src)
				if err != nil {
					return nil, raiseConversion(r, fmt.Sprintf("%s() argument %s", spec.Name, f.Name), err)
				}
				out.Field(f.Index).Set(v)
			case f.HasDefault:
				out.Field(f.Index).Set(f.Default)
			case f.Optional:
				// absent: stays the zero (nil) value
			default:
				return nil, r.Raise(rt.TypeError, "%s() missing required argument: %s", spec.Name, f.Name)
			}
		}
		return b.invoke(r, spec, reg, recv, []reflect.Value{out})
	}
}

// checkKeywords rejects unknown keyword names and keywords that duplicate
// an already-bound positional slot.
func (b *Binder) checkKeywords(r *rt.Runtime, fname string, kwargs *rt.Dict, indexOf func(string) int, npos int) error {
	if kwargs == nil {
		return nil
	}
	var bad error
	kwargs.Range(func(key, _ rt.Object) bool {
		ks, ok := key.(*rt.Str)
		if !ok {
			bad = r.Raise(rt.TypeError, "%s() keywords must be strings", fname)
			return false
		}
		i := indexOf(ks.Value)
		if i < 0 {
			bad = r.Raise(rt.TypeError, "%s() got an unexpected keyword argument %q", fname, ks.Value)
			return false
		}
		if i < npos {
			bad = r.Raise(rt.TypeError, "%s() got multiple values for argument %q", fname, ks.Value)
			return false
		}
		return true
	})
	return bad
}

// invoke calls the native function and marshals its result, mapping a
// native error through the function's error table.
func (b *Binder) invoke(r *rt.Runtime, spec *meta.FuncSpec, reg *Registry, recv reflect.Value, in []reflect.Value) (rt.Object, error) {
	call := make([]reflect.Value, 0, len(in)+2)
	if spec.HasReceiver {
		if !recv.IsValid() {
			return nil, r.Raise(rt.TypeError, "%s(): missing receiver", spec.Name)
		}
		call = append(call, recv)
	}
	if spec.TakesRuntime {
		call = append(call, reflect.ValueOf(r))
	}
	call = append(call, in...)

	results := spec.Fn.Call(call)

	if spec.ReturnsError {
		errV := results[len(results)-1]
		if !errV.IsNil() {
			return nil, raiseNative(r, reg, spec.ErrTable, errV.Interface().(error))
		}
		results = results[:len(results)-1]
	}
	if spec.Return.Go == nil || len(results) == 0 {
		rt.Incref(rt.None)
		return rt.None, nil
	}
	out, err := b.marshaller.ToRuntime(r, spec.Return, results[0])
	if err != nil {
		return nil, raiseConversion(r, spec.Name+"() result", err)
	}
	return out, nil
}
