package marshal

import (
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/shopspring/decimal"

	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// ToRuntime converts a native value into a runtime object. The result is
// an owned handle; on error no object is produced and any partially built
// container has been released.
func (m *Marshaller) ToRuntime(r *rt.Runtime, spec meta.TypeSpec, v reflect.Value) (rt.Object, error) {
	switch spec.Kind() {
	case meta.KindBool:
		return rt.NewBool(v.Bool()), nil

	case meta.KindInt:
		return rt.NewInt(v.Int()), nil

	case meta.KindUint:
		return rt.NewUint(v.Uint()), nil

	case meta.KindBigInt:
		return m.bigToRuntime(v)

	case meta.KindFloat:
		return rt.NewFloat(v.Float()), nil

	case meta.KindComplex:
		c := v.Complex()
		return rt.NewComplex(real(c), imag(c)), nil

	case meta.KindString:
		return rt.NewStr(v.String()), nil

	case meta.KindBytes:
		return rt.NewBytes(v.Bytes()), nil

	case meta.KindSlice:
		return m.sequenceToRuntime(r, spec.Elem(), v)

	case meta.KindArray:
		return m.sequenceToRuntime(r, spec.Elem(), v)

	case meta.KindMap:
		return m.mapToRuntime(r, spec, v)

	case meta.KindSet:
		return m.setToRuntime(r, spec, v)

	case meta.KindStruct:
		if spec.Tuple {
			return m.tupleToRuntime(r, v)
		}
		return m.recordToRuntime(r, v)

	case meta.KindOptional:
		return m.optionalToRuntime(r, spec, v)

	case meta.KindTime:
		return m.timeToRuntime(r, v.Interface().(time.Time))

	case meta.KindDuration:
		return m.durationToRuntime(r, time.Duration(v.Int()))

	case meta.KindDecimal:
		return m.decimalToRuntime(r, v.Interface().(decimal.Decimal))

	case meta.KindPath:
		return m.pathToRuntime(r, v.String())

	case meta.KindObject:
		o, ok := v.Interface().(rt.Object)
		if !ok || o == nil {
			rt.Incref(rt.None)
			return rt.None, nil
		}
		return rt.NewRef(o), nil
	}
	return nil, fmt.Errorf("cannot convert %s to a runtime object: %w", spec, ErrType)
}

// ToRuntimeValue converts an arbitrary native value using its dynamic type.
func (m *Marshaller) ToRuntimeValue(r *rt.Runtime, v interface{}) (rt.Object, error) {
	if v == nil {
		rt.Incref(rt.None)
		return rt.None, nil
	}
	if o, ok := v.(rt.Object); ok {
		return rt.NewRef(o), nil
	}
	return m.ToRuntime(r, meta.SpecOf(v), reflect.ValueOf(v))
}

// bigToRuntime formats an oversized integer to decimal text and parses it
// back on the runtime side, because the host integer primitive caps at 64
// bits.
func (m *Marshaller) bigToRuntime(v reflect.Value) (rt.Object, error) {
	var b *big.Int
	switch bv := v.Interface().(type) {
	case *big.Int:
		b = bv
	case big.Int:
		b = &bv
	}
	if b == nil {
		return nil, fmt.Errorf("nil big integer: %w", ErrInvalidArgument)
	}
	o, err := rt.NewIntFromString(b.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrConversion)
	}
	return o, nil
}

func (m *Marshaller) sequenceToRuntime(r *rt.Runtime, elem meta.TypeSpec, v reflect.Value) (rt.Object, error) {
	n := v.Len()
	list := rt.NewList(n)
	for i := 0; i < n; i++ {
		item, err := m.ToRuntime(r, elem, v.Index(i))
		if err != nil {
			rt.Decref(list) // discard the partial result
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		list.SetItemSteal(i, item)
	}
	return list, nil
}

func (m *Marshaller) tupleToRuntime(r *rt.Runtime, v reflect.Value) (rt.Object, error) {
	spec, err := meta.StructOf(v.Type(), "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrType)
	}
	tup := rt.NewTuple(len(spec.Fields))
	for i, f := range spec.Fields {
		item, err := m.ToRuntime(r, f.Spec, v.Field(f.Index))
		if err != nil {
			rt.Decref(tup)
			return nil, fmt.Errorf("tuple field %s: %w", f.Name, err)
		}
		tup.SetItemSteal(i, item)
	}
	return tup, nil
}

func (m *Marshaller) recordToRuntime(r *rt.Runtime, v reflect.Value) (rt.Object, error) {
	spec, err := meta.StructOf(v.Type(), "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrType)
	}
	d := rt.NewDict()
	for _, f := range spec.Fields {
		item, err := m.ToRuntime(r, f.Spec, v.Field(f.Index))
		if err != nil {
			rt.Decref(d)
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if err := d.SetString(r, f.Name, item); err != nil {
			rt.Decref(item)
			rt.Decref(d)
			return nil, err
		}
		rt.Decref(item) // dict holds its own reference
	}
	return d, nil
}

func (m *Marshaller) mapToRuntime(r *rt.Runtime, spec meta.TypeSpec, v reflect.Value) (rt.Object, error) {
	d := rt.NewDict()
	iter := v.MapRange()
	for iter.Next() {
		key, err := m.ToRuntime(r, spec.Key(), iter.Key())
		if err != nil {
			rt.Decref(d)
			return nil, fmt.Errorf("map key: %w", err)
		}
		val, err := m.ToRuntime(r, spec.Elem(), iter.Value())
		if err != nil {
			rt.Decref(key)
			rt.Decref(d)
			return nil, fmt.Errorf("map value: %w", err)
		}
		err = d.SetItem(r, key, val)
		rt.Decref(key)
		rt.Decref(val)
		if err != nil {
			rt.Decref(d)
			return nil, err
		}
	}
	return d, nil
}

func (m *Marshaller) setToRuntime(r *rt.Runtime, spec meta.TypeSpec, v reflect.Value) (rt.Object, error) {
	var s *rt.Set
	if spec.Frozen {
		s = rt.NewFrozenSet()
	} else {
		s = rt.NewSet()
	}
	iter := v.MapRange()
	for iter.Next() {
		key, err := m.ToRuntime(r, spec.Elem(), iter.Key())
		if err != nil {
			rt.Decref(s)
			return nil, fmt.Errorf("set element: %w", err)
		}
		err = s.Add(r, key)
		rt.Decref(key)
		if err != nil {
			rt.Decref(s)
			return nil, err
		}
	}
	if spec.Frozen {
		s.Freeze()
	}
	return s, nil
}

// optionalToRuntime maps nil to None unless an exception is already
// pending, in which case the pending error propagates instead of being
// silently replaced by a None result.
func (m *Marshaller) optionalToRuntime(r *rt.Runtime, spec meta.TypeSpec, v reflect.Value) (rt.Object, error) {
	if v.IsNil() {
		if err := r.Pending(); err != nil {
			return nil, err
		}
		rt.Incref(rt.None)
		return rt.None, nil
	}
	if inner := spec.Go.Elem(); inner.Kind() == reflect.Struct {
		if b := m.classes[inner]; b != nil {
			return b.Wrap(r, v)
		}
	}
	return m.ToRuntime(r, spec.Elem(), v.Elem())
}

func (m *Marshaller) timeToRuntime(r *rt.Runtime, t time.Time) (rt.Object, error) {
	api, err := m.datetimeAPI(r)
	if err != nil {
		return nil, err
	}
	return api.NewDateTime(t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/1000), nil
}

func (m *Marshaller) durationToRuntime(r *rt.Runtime, d time.Duration) (rt.Object, error) {
	api, err := m.datetimeAPI(r)
	if err != nil {
		return nil, err
	}
	micros := d.Microseconds()
	days := micros / microsPerDay
	micros -= days * microsPerDay
	seconds := micros / 1e6
	micros -= seconds * 1e6
	return api.NewDelta(int(days), int(seconds), int(micros)), nil
}

const microsPerDay = int64(24) * 3600 * 1e6

// decimalToRuntime goes through the canonical string form so no precision
// is lost crossing the boundary.
func (m *Marshaller) decimalToRuntime(r *rt.Runtime, d decimal.Decimal) (rt.Object, error) {
	ctor, err := m.decimalClass(r)
	if err != nil {
		return nil, err
	}
	arg := rt.NewStr(d.String())
	args := rt.NewTupleFrom(arg)
	rt.Decref(arg)
	defer rt.Decref(args)
	return rt.CallObject(r, ctor, args, nil)
}

func (m *Marshaller) pathToRuntime(r *rt.Runtime, p string) (rt.Object, error) {
	ctor, err := m.pathClass(r)
	if err != nil {
		return nil, err
	}
	arg := rt.NewStr(p)
	args := rt.NewTupleFrom(arg)
	rt.Decref(arg)
	defer rt.Decref(args)
	return rt.CallObject(r, ctor, args, nil)
}
