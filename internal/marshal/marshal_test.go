package marshal

import (
	"errors"
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

func roundTrip(t *testing.T, r *rt.Runtime, m *Marshaller, v interface{}) interface{} {
	t.Helper()
	spec := meta.SpecOf(v)
	o, err := m.ToRuntime(r, spec, reflect.ValueOf(v))
	if err != nil {
		t.Fatalf("ToRuntime(%T): %v", v, err)
	}
	defer rt.Decref(o)
	back, err := m.ToNative(r, spec, o)
	if err != nil {
		t.Fatalf("ToNative(%T): %v", v, err)
	}
	return back.Interface()
}

func TestRoundTrip_Scalars(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	cases := []interface{}{
		true,
		false,
		int(-42),
		int64(1 << 40),
		uint16(65535),
		uint64(1<<63 + 5),
		3.25,
		"héllo",
		complex(1.5, -2.5),
	}
	for _, v := range cases {
		got := roundTrip(t, r, m, v)
		if got != v {
			t.Errorf("round trip %T: got %v, want %v", v, got, v)
		}
	}
}

func TestRoundTrip_Bytes(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	v := []byte{0, 1, 2, 255}
	got := roundTrip(t, r, m, v).([]byte)
	if string(got) != string(v) {
		t.Errorf("bytes round trip: got %v, want %v", got, v)
	}
}

func TestRoundTrip_WideInteger(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	v, _ := new(big.Int).SetString("170141183460469231731687303715884105727", 10)
	spec := meta.SpecOf(v)
	o, err := m.ToRuntime(r, spec, reflect.ValueOf(v))
	if err != nil {
		t.Fatalf("ToRuntime: %v", err)
	}
	defer rt.Decref(o)

	n, ok := o.(*rt.Int)
	if !ok {
		t.Fatalf("wide integer became %T", o)
	}
	if _, fits := n.Int64(); fits {
		t.Error("128-bit value claims to fit in 64 bits")
	}
	if n.Text() != v.String() {
		t.Errorf("text = %s, want %s", n.Text(), v.String())
	}

	back, err := m.ToNative(r, spec, o)
	if err != nil {
		t.Fatalf("ToNative: %v", err)
	}
	if back.Interface().(*big.Int).Cmp(v) != 0 {
		t.Errorf("round trip = %s, want %s", back.Interface().(*big.Int), v)
	}
}

func TestTupleStruct_LengthMismatch(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	type triple struct {
		A int
		B string
		C float64
	}
	spec := meta.SpecOf(triple{})
	spec.Tuple = true

	l := rt.NewList(0)
	defer rt.Decref(l)
	for _, o := range []rt.Object{rt.NewInt(1), rt.NewStr("two")} {
		l.Append(o)
		rt.Decref(o)
	}

	_, err := m.ToNative(r, spec, l)
	if err == nil {
		t.Fatal("2-element list converted into a 3-field tuple")
	}
	if !errors.Is(err, ErrWrongArgumentCount) {
		t.Errorf("error = %v, want ErrWrongArgumentCount", err)
	}
}

func TestTupleStruct_RoundTrip(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	type pair struct {
		X int
		Y string
	}
	spec := meta.SpecOf(pair{})
	spec.Tuple = true

	o, err := m.ToRuntime(r, spec, reflect.ValueOf(pair{7, "seven"}))
	if err != nil {
		t.Fatalf("ToRuntime: %v", err)
	}
	defer rt.Decref(o)
	if _, ok := o.(*rt.Tuple); !ok {
		t.Fatalf("tuple struct became %T", o)
	}
	back, err := m.ToNative(r, spec, o)
	if err != nil {
		t.Fatalf("ToNative: %v", err)
	}
	if back.Interface().(pair) != (pair{7, "seven"}) {
		t.Errorf("round trip = %+v", back.Interface())
	}
}

func TestRecordStruct_Defaults(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	type opts struct {
		Name  string
		Times int `default:"1"`
	}
	d := rt.NewDict()
	defer rt.Decref(d)
	name := rt.NewStr("bob")
	d.SetString(r, "name", name)
	rt.Decref(name)

	back, err := m.ToNative(r, meta.SpecOf(opts{}), d)
	if err != nil {
		t.Fatalf("ToNative: %v", err)
	}
	got := back.Interface().(opts)
	if got.Name != "bob" || got.Times != 1 {
		t.Errorf("got %+v, want {bob 1}", got)
	}
}

func TestRecordStruct_MissingRequired(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	type opts struct {
		Name  string
		Times int `default:"1"`
	}
	d := rt.NewDict()
	defer rt.Decref(d)

	_, err := m.ToNative(r, meta.SpecOf(opts{}), d)
	if err == nil {
		t.Fatal("missing required field accepted")
	}
	if !errors.Is(err, ErrMissingArgument) {
		t.Errorf("error = %v, want ErrMissingArgument", err)
	}
}

func TestRoundTrip_Set(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	v := map[int]struct{}{1: {}, 2: {}, 3: {}, 4: {}, 5: {}}
	spec := meta.SpecOf(v)
	o, err := m.ToRuntime(r, spec, reflect.ValueOf(v))
	if err != nil {
		t.Fatalf("ToRuntime: %v", err)
	}
	defer rt.Decref(o)
	s, ok := o.(*rt.Set)
	if !ok {
		t.Fatalf("set became %T", o)
	}
	if s.Len() != 5 {
		t.Fatalf("set len = %d, want 5", s.Len())
	}
	back, err := m.ToNative(r, spec, o)
	if err != nil {
		t.Fatalf("ToNative: %v", err)
	}
	if !reflect.DeepEqual(back.Interface(), v) {
		t.Errorf("round trip = %v, want %v", back.Interface(), v)
	}
}

func TestRoundTrip_Map(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	v := map[string]int{"a": 1, "b": 2}
	got := roundTrip(t, r, m, v).(map[string]int)
	if !reflect.DeepEqual(got, v) {
		t.Errorf("map round trip = %v, want %v", got, v)
	}
}

func TestOptional_NilAndNone(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	spec := meta.Spec(reflect.TypeOf((*int)(nil)))

	o, err := m.ToRuntime(r, spec, reflect.ValueOf((*int)(nil)))
	if err != nil {
		t.Fatalf("ToRuntime(nil): %v", err)
	}
	if !rt.IsNone(o) {
		t.Errorf("nil pointer became %s", o.Inspect())
	}
	rt.Decref(o)

	back, err := m.ToNative(r, spec, rt.None)
	if err != nil {
		t.Fatalf("ToNative(None): %v", err)
	}
	if !back.IsNil() {
		t.Error("None did not bind to a nil pointer")
	}

	n := 9
	o2, err := m.ToRuntime(r, spec, reflect.ValueOf(&n))
	if err != nil {
		t.Fatalf("ToRuntime(&9): %v", err)
	}
	defer rt.Decref(o2)
	back2, err := m.ToNative(r, spec, o2)
	if err != nil {
		t.Fatalf("ToNative: %v", err)
	}
	if got := *back2.Interface().(*int); got != 9 {
		t.Errorf("optional round trip = %d, want 9", got)
	}
}

func TestRoundTrip_Duration(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	v := 90*time.Minute + 30*time.Second
	got := roundTrip(t, r, m, v)
	if got != v {
		t.Errorf("duration round trip = %v, want %v", got, v)
	}
}

func TestToNative_TypeMismatch(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	o := rt.NewInt(5)
	defer rt.Decref(o)
	_, err := m.ToNative(r, meta.Spec(reflect.TypeOf("")), o)
	if err == nil {
		t.Fatal("int converted to string")
	}
	if !errors.Is(err, ErrType) {
		t.Errorf("error = %v, want ErrType", err)
	}
}

func TestToNative_Overflow(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	o := rt.NewInt(300)
	defer rt.Decref(o)
	_, err := m.ToNative(r, meta.Spec(reflect.TypeOf(int8(0))), o)
	if err == nil {
		t.Fatal("300 converted to int8")
	}
	if !errors.Is(err, ErrConversion) {
		t.Errorf("error = %v, want ErrConversion", err)
	}
}

func TestObjectPassthrough(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := New()

	spec := meta.Spec(reflect.TypeOf((*rt.Object)(nil)).Elem())
	o := rt.NewStr("raw")
	defer rt.Decref(o)

	back, err := m.ToNative(r, spec, o)
	if err != nil {
		t.Fatalf("ToNative: %v", err)
	}
	if back.Interface().(rt.Object) != rt.Object(o) {
		t.Error("passthrough returned a different handle")
	}

	out, err := m.ToRuntime(r, spec, back)
	if err != nil {
		t.Fatalf("ToRuntime: %v", err)
	}
	defer rt.Decref(out)
	if out != rt.Object(o) {
		t.Error("passthrough out returned a different handle")
	}
}
