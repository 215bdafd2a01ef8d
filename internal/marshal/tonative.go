package marshal

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/shopspring/decimal"

	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// sequence is the uniform read view over the runtime's ordered kinds. The
// size is captured once at construction so a resize mid-conversion cannot
// skew indexing.
type sequence struct {
	get func(i int) rt.Object // borrowed
	n   int
}

func asSequence(o rt.Object) (sequence, bool) {
	switch v := o.(type) {
	case *rt.List:
		return sequence{get: v.Get, n: v.Len()}, true
	case *rt.Tuple:
		return sequence{get: v.Get, n: v.Len()}, true
	}
	return sequence{}, false
}

// ToNative converts a runtime object (borrowed) into a native value of the
// described type.
func (m *Marshaller) ToNative(r *rt.Runtime, spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	switch spec.Kind() {
	case meta.KindBool:
		b, ok := o.(*rt.Bool)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected bool, got %s: %w", o.TypeOf().Name, ErrType)
		}
		return reflect.ValueOf(b.Value).Convert(spec.Go), nil

	case meta.KindInt:
		return m.intToNative(spec, o)

	case meta.KindUint:
		return m.uintToNative(spec, o)

	case meta.KindBigInt:
		return m.bigToNative(spec, o)

	case meta.KindFloat:
		return m.floatToNative(spec, o)

	case meta.KindComplex:
		c, ok := o.(*rt.Complex)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected complex, got %s: %w", o.TypeOf().Name, ErrType)
		}
		return reflect.ValueOf(complex(c.Real, c.Imag)).Convert(spec.Go), nil

	case meta.KindString:
		s, ok := o.(*rt.Str)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected str, got %s: %w", o.TypeOf().Name, ErrType)
		}
		return reflect.ValueOf(s.Value).Convert(spec.Go), nil

	case meta.KindBytes:
		return m.bytesToNative(r, spec, o)

	case meta.KindSlice:
		return m.sliceToNative(r, spec, o)

	case meta.KindArray:
		return m.arrayToNative(r, spec, o)

	case meta.KindMap:
		return m.mapToNative(r, spec, o)

	case meta.KindSet:
		return m.setToNative(r, spec, o)

	case meta.KindStruct:
		if spec.Tuple {
			return m.tupleToNative(r, spec, o)
		}
		return m.recordToNative(r, spec, o)

	case meta.KindOptional:
		return m.optionalToNative(r, spec, o)

	case meta.KindTime:
		return m.timeToNative(r, o)

	case meta.KindDuration:
		return m.durationToNative(r, spec, o)

	case meta.KindDecimal:
		return m.decimalToNative(o)

	case meta.KindPath:
		return m.pathToNative(spec, o)

	case meta.KindObject:
		return reflect.ValueOf(o), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %s from a runtime object: %w", spec, ErrType)
}

func (m *Marshaller) intToNative(spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	i, ok := o.(*rt.Int)
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected int, got %s: %w", o.TypeOf().Name, ErrType)
	}
	v64, fits := i.Int64()
	if !fits {
		return reflect.Value{}, fmt.Errorf("integer %s overflows %s: %w", i.Text(), spec, ErrConversion)
	}
	out := reflect.New(spec.Go).Elem()
	if out.OverflowInt(v64) {
		return reflect.Value{}, fmt.Errorf("integer %d overflows %s: %w", v64, spec, ErrConversion)
	}
	out.SetInt(v64)
	return out, nil
}

func (m *Marshaller) uintToNative(spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	i, ok := o.(*rt.Int)
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected int, got %s: %w", o.TypeOf().Name, ErrType)
	}
	u64, fits := i.Uint64()
	if !fits {
		return reflect.Value{}, fmt.Errorf("integer %s does not fit %s: %w", i.Text(), spec, ErrConversion)
	}
	out := reflect.New(spec.Go).Elem()
	if out.OverflowUint(u64) {
		return reflect.Value{}, fmt.Errorf("integer %d overflows %s: %w", u64, spec, ErrConversion)
	}
	out.SetUint(u64)
	return out, nil
}

// bigToNative parses the runtime integer's decimal text, the inverse of
// the oversized-integer formatting path.
func (m *Marshaller) bigToNative(spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	i, ok := o.(*rt.Int)
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected int, got %s: %w", o.TypeOf().Name, ErrType)
	}
	b, ok := new(big.Int).SetString(i.Text(), 10)
	if !ok {
		return reflect.Value{}, fmt.Errorf("malformed integer text %q: %w", i.Text(), ErrConversion)
	}
	if spec.Go.Kind() == reflect.Ptr {
		return reflect.ValueOf(b), nil
	}
	return reflect.ValueOf(*b), nil
}

// floatToNative widens a runtime integer into a float parameter (the
// numeric tower goes one way only).
func (m *Marshaller) floatToNative(spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	var f float64
	switch v := o.(type) {
	case *rt.Float:
		f = v.Value
	case *rt.Int:
		f = v.Float64()
	default:
		return reflect.Value{}, fmt.Errorf("expected float, got %s: %w", o.TypeOf().Name, ErrType)
	}
	if spec.Go.Kind() == reflect.Float32 && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
		return reflect.Value{}, fmt.Errorf("float %g overflows float32: %w", f, ErrConversion)
	}
	out := reflect.New(spec.Go).Elem()
	out.SetFloat(f)
	return out, nil
}

func (m *Marshaller) bytesToNative(r *rt.Runtime, spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	switch v := o.(type) {
	case *rt.Bytes:
		out := make([]byte, len(v.Data))
		copy(out, v.Data)
		return reflect.ValueOf(out).Convert(spec.Go), nil
	default:
		// Anything exporting a buffer view converts by copying the region.
		if o.TypeOf().Buffer != nil {
			view, err := rt.GetBuffer(r, o, rt.BufSimple)
			if err != nil {
				return reflect.Value{}, err
			}
			out := make([]byte, view.Len())
			copy(out, view.Data)
			rt.ReleaseBuffer(r, view)
			return reflect.ValueOf(out).Convert(spec.Go), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("expected bytes, got %s: %w", o.TypeOf().Name, ErrType)
}

func (m *Marshaller) sliceToNative(r *rt.Runtime, spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	seq, ok := asSequence(o)
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected sequence, got %s: %w", o.TypeOf().Name, ErrType)
	}
	out := reflect.MakeSlice(spec.Go, seq.n, seq.n)
	for i := 0; i < seq.n; i++ {
		ev, err := m.ToNative(r, spec.Elem(), seq.get(i))
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(ev)
	}
	return out, nil
}

// arrayToNative enforces the exact length of the fixed array: a mismatch
// is a hard error, never a truncation or padding.
func (m *Marshaller) arrayToNative(r *rt.Runtime, spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	seq, ok := asSequence(o)
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected sequence, got %s: %w", o.TypeOf().Name, ErrType)
	}
	if seq.n != spec.Go.Len() {
		return reflect.Value{}, fmt.Errorf("expected %d elements, got %d: %w", spec.Go.Len(), seq.n, ErrWrongArgumentCount)
	}
	out := reflect.New(spec.Go).Elem()
	for i := 0; i < seq.n; i++ {
		ev, err := m.ToNative(r, spec.Elem(), seq.get(i))
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(ev)
	}
	return out, nil
}

func (m *Marshaller) mapToNative(r *rt.Runtime, spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	d, ok := o.(*rt.Dict)
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected dict, got %s: %w", o.TypeOf().Name, ErrType)
	}
	out := reflect.MakeMapWithSize(spec.Go, d.Len())
	var convErr error
	d.Range(func(key, value rt.Object) bool {
		kv, err := m.ToNative(r, spec.Key(), key)
		if err != nil {
			convErr = fmt.Errorf("map key: %w", err)
			return false
		}
		vv, err := m.ToNative(r, spec.Elem(), value)
		if err != nil {
			convErr = fmt.Errorf("map value: %w", err)
			return false
		}
		out.SetMapIndex(kv, vv)
		return true
	})
	if convErr != nil {
		return reflect.Value{}, convErr
	}
	return out, nil
}

func (m *Marshaller) setToNative(r *rt.Runtime, spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	s, ok := o.(*rt.Set)
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected set, got %s: %w", o.TypeOf().Name, ErrType)
	}
	out := reflect.MakeMapWithSize(spec.Go, s.Len())
	member := reflect.ValueOf(struct{}{})
	var convErr error
	s.Range(func(key rt.Object) bool {
		kv, err := m.ToNative(r, spec.Elem(), key)
		if err != nil {
			convErr = fmt.Errorf("set element: %w", err)
			return false
		}
		out.SetMapIndex(kv, member)
		return true
	})
	if convErr != nil {
		return reflect.Value{}, convErr
	}
	return out, nil
}

// tupleToNative converts field by field in declaration order; a length
// mismatch on the way in is a wrong-argument-count error, not a partial
// tuple.
func (m *Marshaller) tupleToNative(r *rt.Runtime, spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	ss, err := meta.StructOf(spec.Go, "")
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%s: %w", err, ErrType)
	}
	seq, ok := asSequence(o)
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected tuple, got %s: %w", o.TypeOf().Name, ErrType)
	}
	if seq.n != len(ss.Fields) {
		return reflect.Value{}, fmt.Errorf("expected %d elements, got %d: %w", len(ss.Fields), seq.n, ErrWrongArgumentCount)
	}
	out := reflect.New(spec.Go).Elem()
	for i, f := range ss.Fields {
		fv, err := m.ToNative(r, f.Spec, seq.get(i))
		if err != nil {
			return reflect.Value{}, fmt.Errorf("tuple field %s: %w", f.Name, err)
		}
		out.Field(f.Index).Set(fv)
	}
	return out, nil
}

func (m *Marshaller) recordToNative(r *rt.Runtime, spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	ss, err := meta.StructOf(spec.Go, "")
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%s: %w", err, ErrType)
	}
	d, ok := o.(*rt.Dict)
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected dict, got %s: %w", o.TypeOf().Name, ErrType)
	}
	out := reflect.New(spec.Go).Elem()
	for _, f := range ss.Fields {
		item := d.GetString(r, f.Name)
		if item == nil {
			if f.HasDefault {
				out.Field(f.Index).Set(f.Default)
				continue
			}
			if f.Optional {
				continue
			}
			return reflect.Value{}, fmt.Errorf("%s: %w", f.Name, ErrMissingArgument)
		}
		fv, err := m.ToNative(r, f.Spec, item)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out.Field(f.Index).Set(fv)
	}
	return out, nil
}

func (m *Marshaller) optionalToNative(r *rt.Runtime, spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	if rt.IsNone(o) {
		return reflect.Zero(spec.Go), nil
	}
	inner := spec.Go.Elem()
	if inner.Kind() == reflect.Struct {
		if b := m.classes[inner]; b != nil {
			ptr, ok := b.Unwrap(o)
			if !ok {
				return reflect.Value{}, fmt.Errorf("expected %s instance, got %s: %w", inner, o.TypeOf().Name, ErrType)
			}
			return ptr, nil
		}
	}
	ev, err := m.ToNative(r, spec.Elem(), o)
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(inner)
	out.Elem().Set(ev)
	return out, nil
}

func (m *Marshaller) timeToNative(r *rt.Runtime, o rt.Object) (reflect.Value, error) {
	switch v := o.(type) {
	case *rt.DateTimeObject:
		t := time.Date(v.Date.Year, time.Month(v.Date.Month), v.Date.Day,
			v.Time.Hour, v.Time.Minute, v.Time.Second, v.Time.Micro*1000, time.UTC)
		return reflect.ValueOf(t), nil
	case *rt.DateObject:
		t := time.Date(v.Year, time.Month(v.Month), v.Day, 0, 0, 0, 0, time.UTC)
		return reflect.ValueOf(t), nil
	}
	return reflect.Value{}, fmt.Errorf("expected datetime, got %s: %w", o.TypeOf().Name, ErrType)
}

func (m *Marshaller) durationToNative(r *rt.Runtime, spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	d, ok := o.(*rt.DeltaObject)
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected timedelta, got %s: %w", o.TypeOf().Name, ErrType)
	}
	micros := int64(d.Days)*microsPerDay + int64(d.Seconds)*1e6 + int64(d.Micros)
	return reflect.ValueOf(time.Duration(micros) * time.Microsecond), nil
}

func (m *Marshaller) decimalToNative(o rt.Object) (reflect.Value, error) {
	d, ok := o.(*rt.DecimalObject)
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected Decimal, got %s: %w", o.TypeOf().Name, ErrType)
	}
	dec, err := decimal.NewFromString(d.Text)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("malformed decimal %q: %w", d.Text, ErrConversion)
	}
	return reflect.ValueOf(dec), nil
}

func (m *Marshaller) pathToNative(spec meta.TypeSpec, o rt.Object) (reflect.Value, error) {
	switch v := o.(type) {
	case *rt.PathObject:
		return reflect.ValueOf(v.Text).Convert(spec.Go), nil
	case *rt.Str:
		return reflect.ValueOf(v.Value).Convert(spec.Go), nil
	}
	return reflect.Value{}, fmt.Errorf("expected path, got %s: %w", o.TypeOf().Name, ErrType)
}
