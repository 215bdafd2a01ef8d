package bind

import (
	"errors"
	"testing"

	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

type vec struct {
	V int64
}

func (a *vec) Add(b *vec) *vec   { return &vec{V: a.V + b.V} }
func (a *vec) RAdd(n int64) *vec { return &vec{V: a.V + n} }
func (a *vec) Neg() *vec         { return &vec{V: -a.V} }
func (a *vec) IAdd(b *vec)       { a.V += b.V }

func vecValue(v *vec) int64 { return v.V }

func vecDef() *ClassDef {
	return &ClassDef{
		Type:    (*vec)(nil),
		Methods: []MethodDef{{Name: "value", Fn: vecValue}},
	}
}

func vecOf(t *testing.T, r *rt.Runtime, typ *rt.Type, v int64) rt.Object {
	t.Helper()
	n := rt.NewInt(v)
	defer rt.Decref(n)
	return newInstance(t, r, typ, n)
}

func intResult(t *testing.T, r *rt.Runtime, typ *rt.Type, o rt.Object) int64 {
	t.Helper()
	out, err := callMethod(t, r, typ, "value", o)
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	defer rt.Decref(out)
	n, _ := out.(*rt.Int).Int64()
	return n
}

func TestNumeric_ForwardAdd(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), vecDef())
	defer rt.Decref(m.Runtime())
	typ := m.Class("vec").Type()

	a := vecOf(t, r, typ, 2)
	defer rt.Decref(a)
	b := vecOf(t, r, typ, 3)
	defer rt.Decref(b)

	out, err := rt.BinaryOp(r, rt.OpAdd, a, b)
	if err != nil {
		t.Fatalf("a + b: %v", err)
	}
	defer rt.Decref(out)
	if got := intResult(t, r, typ, out); got != 5 {
		t.Errorf("a + b = %d, want 5", got)
	}
}

func TestNumeric_ReflectedAdd(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), vecDef())
	defer rt.Decref(m.Runtime())
	typ := m.Class("vec").Type()

	b := vecOf(t, r, typ, 3)
	defer rt.Decref(b)
	ten := rt.NewInt(10)
	defer rt.Decref(ten)

	// The builtin integer declines, so the right operand's reflected
	// method handles the pairing.
	out, err := rt.BinaryOp(r, rt.OpAdd, ten, b)
	if err != nil {
		t.Fatalf("10 + b: %v", err)
	}
	defer rt.Decref(out)
	if got := intResult(t, r, typ, out); got != 13 {
		t.Errorf("10 + b = %d, want 13", got)
	}
}

func TestNumeric_BothDecline(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), vecDef())
	defer rt.Decref(m.Runtime())
	typ := m.Class("vec").Type()

	a := vecOf(t, r, typ, 1)
	defer rt.Decref(a)
	s := rt.NewStr("nope")
	defer rt.Decref(s)

	if _, err := rt.BinaryOp(r, rt.OpAdd, a, s); err == nil {
		t.Fatal("vec + str succeeded")
	}
	if !r.ErrMatches(rt.TypeError) {
		t.Errorf("pending = %v, want TypeError", r.ErrOccurred())
	}
	r.ErrClear()
}

func TestNumeric_UndeclaredOperator(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), vecDef())
	defer rt.Decref(m.Runtime())
	typ := m.Class("vec").Type()

	a := vecOf(t, r, typ, 1)
	defer rt.Decref(a)
	b := vecOf(t, r, typ, 2)
	defer rt.Decref(b)

	if _, err := rt.BinaryOp(r, rt.OpMultiply, a, b); err == nil {
		t.Fatal("a * b succeeded with no Mul declared")
	}
	r.ErrClear()
}

func TestNumeric_Unary(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), vecDef())
	defer rt.Decref(m.Runtime())
	typ := m.Class("vec").Type()

	a := vecOf(t, r, typ, 4)
	defer rt.Decref(a)

	out, err := typ.Number.Negative(r, a)
	if err != nil {
		t.Fatalf("-a: %v", err)
	}
	defer rt.Decref(out)
	if got := intResult(t, r, typ, out); got != -4 {
		t.Errorf("-a = %d, want -4", got)
	}
}

func TestNumeric_InPlaceVoidReturnsReceiver(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), vecDef())
	defer rt.Decref(m.Runtime())
	typ := m.Class("vec").Type()

	a := vecOf(t, r, typ, 2)
	defer rt.Decref(a)
	b := vecOf(t, r, typ, 3)
	defer rt.Decref(b)

	out, err := typ.Number.InPlaceAdd(r, a, b)
	if err != nil {
		t.Fatalf("a += b: %v", err)
	}
	if out != a {
		t.Error("void in-place method did not yield the receiver")
	}
	rt.Decref(out)
	if got := intResult(t, r, typ, a); got != 5 {
		t.Errorf("a after += is %d, want 5", got)
	}
}

func TestNumeric_InPlaceForeignOperandDeclines(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), vecDef())
	defer rt.Decref(m.Runtime())
	typ := m.Class("vec").Type()

	a := vecOf(t, r, typ, 2)
	defer rt.Decref(a)
	b := rt.NewStr("three")
	defer rt.Decref(b)

	out, err := typ.Number.InPlaceAdd(r, a, b)
	if err != nil {
		t.Fatalf("a += str: %v", err)
	}
	defer rt.Decref(out)
	if out != rt.Object(rt.NotImplemented) {
		t.Fatalf("a += str returned %s, want NotImplemented", out.Inspect())
	}
	if got := intResult(t, r, typ, a); got != 2 {
		t.Errorf("receiver mutated by declined operand: %d, want 2", got)
	}
}

type rank struct {
	N int64
}

func (a *rank) Eq(b *rank) bool { return a.N == b.N }
func (a *rank) Lt(b *rank) bool { return a.N < b.N }

func rankDef() *ClassDef { return &ClassDef{Type: (*rank)(nil)} }

func compareBool(t *testing.T, r *rt.Runtime, a, b rt.Object, op rt.CompareOp) bool {
	t.Helper()
	out, err := rt.RichCompare(r, a, b, op)
	if err != nil {
		t.Fatalf("compare %s: %v", op.String(), err)
	}
	defer rt.Decref(out)
	bv, ok := out.(*rt.Bool)
	if !ok {
		t.Fatalf("compare %s returned %s, want bool", op.String(), out.Inspect())
	}
	return bv.Value
}

func TestCompare_DerivedOperators(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), rankDef())
	defer rt.Decref(m.Runtime())
	typ := m.Class("rank").Type()

	three := vecLikeRank(t, r, typ, 3)
	defer rt.Decref(three)
	five := vecLikeRank(t, r, typ, 5)
	defer rt.Decref(five)
	alsoFive := vecLikeRank(t, r, typ, 5)
	defer rt.Decref(alsoFive)

	tests := []struct {
		name string
		a, b rt.Object
		op   rt.CompareOp
		want bool
	}{
		{"eq true", five, alsoFive, rt.CompareEQ, true},
		{"eq false", three, five, rt.CompareEQ, false},
		{"ne derived from eq", three, five, rt.CompareNE, true},
		{"lt declared", three, five, rt.CompareLT, true},
		{"gt via swapped lt", five, three, rt.CompareGT, true},
		{"gt false", three, five, rt.CompareGT, false},
		{"le from strict", three, five, rt.CompareLE, true},
		{"le from equal", five, alsoFive, rt.CompareLE, true},
		{"le false", five, three, rt.CompareLE, false},
		{"ge from equal", five, alsoFive, rt.CompareGE, true},
		{"ge false", three, five, rt.CompareGE, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compareBool(t, r, tt.a, tt.b, tt.op); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func vecLikeRank(t *testing.T, r *rt.Runtime, typ *rt.Type, n int64) rt.Object {
	t.Helper()
	v := rt.NewInt(n)
	defer rt.Decref(v)
	return newInstance(t, r, typ, v)
}

func TestCompare_ForeignOperandIdentityFallback(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), rankDef())
	defer rt.Decref(m.Runtime())
	typ := m.Class("rank").Type()

	a := vecLikeRank(t, r, typ, 3)
	defer rt.Decref(a)
	n := rt.NewInt(3)
	defer rt.Decref(n)

	// Both sides decline, == falls back to identity.
	if compareBool(t, r, a, n, rt.CompareEQ) {
		t.Error("rank == int reported true")
	}
	if !compareBool(t, r, a, n, rt.CompareNE) {
		t.Error("rank != int reported false")
	}

	// Ordering has no fallback.
	if _, err := rt.RichCompare(r, a, n, rt.CompareLT); err == nil {
		t.Fatal("rank < int succeeded")
	}
	r.ErrClear()
}

type badge struct {
	N int64
}

func (a *badge) Eq(b *badge) bool { return a.N == b.N }

func TestCompare_OrderingNeedsStrictMethod(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), &ClassDef{Type: (*badge)(nil)})
	defer rt.Decref(m.Runtime())
	typ := m.Class("badge").Type()

	a := vecLikeRank(t, r, typ, 5)
	defer rt.Decref(a)
	b := vecLikeRank(t, r, typ, 5)
	defer rt.Decref(b)

	if !compareBool(t, r, a, b, rt.CompareEQ) {
		t.Error("badge == badge reported false")
	}

	// With only == declared, <= and >= must decline, not degrade to
	// equality.
	if _, err := rt.RichCompare(r, a, b, rt.CompareLE); err == nil {
		t.Fatal("badge <= badge succeeded without an ordering method")
	}
	r.ErrClear()
	if _, err := rt.RichCompare(r, a, b, rt.CompareGE); err == nil {
		t.Fatal("badge >= badge succeeded without an ordering method")
	}
	r.ErrClear()
}

type bag struct {
	items map[string]int64
}

var errMissingEntry = errors.New("missing entry")

func newBag() *bag { return &bag{items: make(map[string]int64)} }

func (b *bag) Len() int { return len(b.items) }

func (b *bag) GetItem(key string) (int64, error) {
	v, ok := b.items[key]
	if !ok {
		return 0, errMissingEntry
	}
	return v, nil
}

func (b *bag) SetItem(key string, v int64) { b.items[key] = v }

func (b *bag) DelItem(key string) error {
	if _, ok := b.items[key]; !ok {
		return errMissingEntry
	}
	delete(b.items, key)
	return nil
}

func bagDef() *ClassDef {
	return &ClassDef{
		Type:        (*bag)(nil),
		Constructor: newBag,
		ErrTable:    []meta.ErrCase{{Name: "missing entry", Exception: "KeyError"}},
	}
}

func TestMapping_GetSetLen(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), bagDef())
	defer rt.Decref(m.Runtime())
	typ := m.Class("bag").Type()

	o := newInstance(t, r, typ)
	defer rt.Decref(o)

	key := rt.NewStr("alpha")
	defer rt.Decref(key)
	val := rt.NewInt(7)
	defer rt.Decref(val)
	if err := rt.SetItem(r, o, key, val); err != nil {
		t.Fatalf("set: %v", err)
	}

	out, err := rt.GetItem(r, o, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n, _ := out.(*rt.Int).Int64(); n != 7 {
		t.Errorf("o[alpha] = %d, want 7", n)
	}
	rt.Decref(out)

	n, err := rt.Length(r, o)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 1 {
		t.Errorf("len = %d, want 1", n)
	}
}

func TestMapping_MissingKeyRaisesKeyError(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), bagDef())
	defer rt.Decref(m.Runtime())
	typ := m.Class("bag").Type()

	o := newInstance(t, r, typ)
	defer rt.Decref(o)
	key := rt.NewStr("ghost")
	defer rt.Decref(key)

	if _, err := rt.GetItem(r, o, key); err == nil {
		t.Fatal("get of missing key succeeded")
	}
	if !r.ErrMatches(rt.KeyError) {
		t.Errorf("pending = %v, want KeyError", r.ErrOccurred())
	}
	r.ErrClear()
}

func TestMapping_NoneAssignmentDeletes(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), bagDef())
	defer rt.Decref(m.Runtime())
	typ := m.Class("bag").Type()

	o := newInstance(t, r, typ)
	defer rt.Decref(o)

	key := rt.NewStr("alpha")
	defer rt.Decref(key)
	val := rt.NewInt(1)
	defer rt.Decref(val)
	if err := rt.SetItem(r, o, key, val); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := rt.SetItem(r, o, key, rt.None); err != nil {
		t.Fatalf("set to None: %v", err)
	}
	if n, _ := rt.Length(r, o); n != 0 {
		t.Errorf("len after None assignment = %d, want 0", n)
	}

	// Deleting again reports the mapped exception.
	if err := rt.DelItem(r, o, key); err == nil {
		t.Fatal("double delete succeeded")
	}
	if !r.ErrMatches(rt.KeyError) {
		t.Errorf("pending = %v, want KeyError", r.ErrOccurred())
	}
	r.ErrClear()
}

func TestMapping_StringKeyMismatchRaisesKeyError(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), bagDef())
	defer rt.Decref(m.Runtime())
	typ := m.Class("bag").Type()

	o := newInstance(t, r, typ)
	defer rt.Decref(o)
	key := rt.NewInt(0)
	defer rt.Decref(key)

	if _, err := rt.GetItem(r, o, key); err == nil {
		t.Fatal("integer key accepted by string-keyed container")
	}
	if !r.ErrMatches(rt.KeyError) {
		t.Errorf("pending = %v, want KeyError", r.ErrOccurred())
	}
	r.ErrClear()
}

type ring struct {
	Step int64
}

func (g *ring) GetItem(i int64) int64 { return i * g.Step }

func TestMapping_IntKeyMismatchRaisesIndexError(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), &ClassDef{Type: (*ring)(nil)})
	defer rt.Decref(m.Runtime())
	typ := m.Class("ring").Type()

	step := rt.NewInt(3)
	defer rt.Decref(step)
	o := newInstance(t, r, typ, step)
	defer rt.Decref(o)

	two := rt.NewInt(2)
	defer rt.Decref(two)
	out, err := rt.GetItem(r, o, two)
	if err != nil {
		t.Fatalf("o[2]: %v", err)
	}
	if n, _ := out.(*rt.Int).Int64(); n != 6 {
		t.Errorf("o[2] = %d, want 6", n)
	}
	rt.Decref(out)

	bad := rt.NewStr("two")
	defer rt.Decref(bad)
	if _, err := rt.GetItem(r, o, bad); err == nil {
		t.Fatal("string key accepted by integer-keyed container")
	}
	if !r.ErrMatches(rt.IndexError) {
		t.Errorf("pending = %v, want IndexError", r.ErrOccurred())
	}
	r.ErrClear()
}

type countdown struct {
	N int64
}

func (c *countdown) Next() (int64, bool) {
	if c.N == 0 {
		return 0, false
	}
	v := c.N
	c.N--
	return v, true
}

func TestIterator_NextOnlyTypeIsOwnIterator(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), &ClassDef{Type: (*countdown)(nil)})
	defer rt.Decref(m.Runtime())
	typ := m.Class("countdown").Type()

	n := rt.NewInt(3)
	defer rt.Decref(n)
	o := newInstance(t, r, typ, n)
	defer rt.Decref(o)

	it, err := rt.GetIter(r, o)
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	defer rt.Decref(it)
	if it != o {
		t.Error("Next-only type did not return itself as iterator")
	}

	for want := int64(3); want >= 1; want-- {
		item, err := rt.Next(r, it)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if got, _ := item.(*rt.Int).Int64(); got != want {
			t.Errorf("next = %d, want %d", got, want)
		}
		rt.Decref(item)
	}

	if _, err := rt.Next(r, it); err == nil {
		t.Fatal("exhausted iterator yielded a value")
	}
	if !r.ErrMatches(rt.StopIteration) {
		t.Errorf("pending = %v, want StopIteration", r.ErrOccurred())
	}
	r.ErrClear()
}

type blob struct {
	Data []byte
}

func (b *blob) Buffer() []byte { return b.Data }

func TestBuffer_ViewFlags(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), &ClassDef{Type: (*blob)(nil)})
	defer rt.Decref(m.Runtime())
	typ := m.Class("blob").Type()

	data := rt.NewBytes([]byte("abc"))
	defer rt.Decref(data)
	o := newInstance(t, r, typ, data)
	defer rt.Decref(o)

	simple, err := rt.GetBuffer(r, o, rt.BufSimple)
	if err != nil {
		t.Fatalf("simple view: %v", err)
	}
	if !simple.ReadOnly {
		t.Error("simple view is writable")
	}
	if simple.Format != "" || simple.Shape != nil || simple.Strides != nil {
		t.Error("simple view carries unrequested fields")
	}
	if string(simple.Data) != "abc" {
		t.Errorf("view data = %q, want %q", simple.Data, "abc")
	}
	rt.ReleaseBuffer(r, simple)

	full, err := rt.GetBuffer(r, o, rt.BufWritable|rt.BufFormat|rt.BufND|rt.BufStrides)
	if err != nil {
		t.Fatalf("full view: %v", err)
	}
	if full.ReadOnly {
		t.Error("writable view is read-only")
	}
	if full.Format != "B" {
		t.Errorf("format = %q, want B", full.Format)
	}
	if len(full.Shape) != 1 || full.Shape[0] != 3 {
		t.Errorf("shape = %v, want [3]", full.Shape)
	}
	if len(full.Strides) != 1 || full.Strides[0] != 1 {
		t.Errorf("strides = %v, want [1]", full.Strides)
	}
	rt.ReleaseBuffer(r, full)
}

func TestBuffer_ViewHoldsReference(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), &ClassDef{Type: (*blob)(nil)})
	defer rt.Decref(m.Runtime())
	typ := m.Class("blob").Type()

	data := rt.NewBytes(nil)
	defer rt.Decref(data)
	o := newInstance(t, r, typ, data)
	defer rt.Decref(o)

	before := o.Hdr().Refs()
	view, err := rt.GetBuffer(r, o, rt.BufSimple)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if got := o.Hdr().Refs(); got != before+1 {
		t.Errorf("refs with live view = %d, want %d", got, before+1)
	}
	rt.ReleaseBuffer(r, view)
	if got := o.Hdr().Refs(); got != before {
		t.Errorf("refs after release = %d, want %d", got, before)
	}
	if view.Obj != nil {
		t.Error("released view still holds its object")
	}
}

type gcNode struct {
	A rt.Object
	B rt.Object
	C rt.Object
}

func (n *gcNode) Traverse(visit func(rt.Object) int) int {
	for _, o := range []rt.Object{n.A, n.B, n.C} {
		if o == nil {
			continue
		}
		if code := visit(o); code != 0 {
			return code
		}
	}
	return 0
}

func (n *gcNode) Clear() { n.A, n.B, n.C = nil, nil, nil }

func TestGC_TraverseAndClear(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := assembleClasses(t, r, NewBinder(), &ClassDef{Type: (*gcNode)(nil)})
	defer rt.Decref(m.Runtime())
	typ := m.Class("gcNode").Type()

	a, b, c := rt.NewInt(1), rt.NewInt(2), rt.NewInt(3)
	defer rt.Decref(a)
	defer rt.Decref(b)
	defer rt.Decref(c)
	o := newInstance(t, r, typ, a, b, c)
	defer rt.Decref(o)

	var visited int
	code := typ.Traverse(o, func(child rt.Object) int {
		visited++
		return 0
	})
	if code != 0 || visited != 3 {
		t.Errorf("full traverse: code=%d visited=%d, want 0 and 3", code, visited)
	}

	// A nonzero visitor result stops the walk and propagates unchanged.
	visited = 0
	code = typ.Traverse(o, func(child rt.Object) int {
		visited++
		if visited == 2 {
			return 7
		}
		return 0
	})
	if code != 7 || visited != 2 {
		t.Errorf("short-circuit traverse: code=%d visited=%d, want 7 and 2", code, visited)
	}

	typ.Clear(o)
	visited = 0
	typ.Traverse(o, func(child rt.Object) int {
		visited++
		return 0
	})
	if visited != 0 {
		t.Errorf("traverse after clear visited %d children, want 0", visited)
	}
}
