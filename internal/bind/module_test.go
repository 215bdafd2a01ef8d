package bind

import (
	"errors"
	"testing"

	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// callModuleFunc looks a function up in the module dict and calls it with
// the given positional arguments. Owned result.
func callModuleFunc(t *testing.T, r *rt.Runtime, m *Module, name string, args ...rt.Object) (rt.Object, error) {
	t.Helper()
	fn := m.Runtime().GetAttr(r, name)
	if fn == nil {
		t.Fatalf("module has no attribute %q", name)
	}
	tup := rt.NewTuple(len(args))
	for i, a := range args {
		rt.Incref(a)
		tup.SetItemSteal(i, a)
	}
	defer rt.Decref(tup)
	return rt.CallObject(r, fn, tup, nil)
}

func TestAssemble_FunctionsAndConsts(t *testing.T) {
	r := rt.New()
	defer r.Close()
	b := NewBinder()

	def := &ModuleDef{
		Name: "mathx",
		Functions: []FuncDef{
			{Name: "add", Fn: func(a, b int64) int64 { return a + b }},
			{Name: "halve", Fn: func(x float64) float64 { return x / 2 }},
		},
		Consts: []ConstDef{
			{Name: "answer", Value: int64(42)},
			{Name: "label", Value: "mathx"},
		},
	}
	m, err := b.Assemble(r, def)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	defer rt.Decref(m.Runtime())

	a, bv := rt.NewInt(2), rt.NewInt(3)
	defer rt.Decref(a)
	defer rt.Decref(bv)
	out, err := callModuleFunc(t, r, m, "add", a, bv)
	if err != nil {
		t.Fatalf("add(2, 3): %v", err)
	}
	if n, _ := out.(*rt.Int).Int64(); n != 5 {
		t.Errorf("add(2, 3) = %d, want 5", n)
	}
	rt.Decref(out)

	if c := m.Runtime().GetAttr(r, "answer"); c == nil {
		t.Error("const answer missing")
	} else if n, _ := c.(*rt.Int).Int64(); n != 42 {
		t.Errorf("answer = %d, want 42", n)
	}
}

func TestAssemble_WrongArity(t *testing.T) {
	r := rt.New()
	defer r.Close()
	b := NewBinder()

	m, err := b.Assemble(r, &ModuleDef{
		Name: "one",
		Functions: []FuncDef{
			{Name: "id", Fn: func(x int64) int64 { return x }},
		},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	defer rt.Decref(m.Runtime())

	_, err = callModuleFunc(t, r, m, "id")
	if err == nil {
		t.Fatal("zero-argument call to a one-argument function succeeded")
	}
	if !r.ErrMatches(rt.TypeError) {
		t.Errorf("pending = %v, want TypeError", r.ErrOccurred())
	}
	r.ErrClear()
}

func TestAssemble_StructKeywordDefaults(t *testing.T) {
	r := rt.New()
	defer r.Close()
	b := NewBinder()

	type greetKw struct {
		Name  string
		Times int `default:"1"`
	}
	m, err := b.Assemble(r, &ModuleDef{
		Name: "greeting",
		Functions: []FuncDef{
			{
				Name: "greet",
				Fn: func(kw greetKw) int64 {
					return int64(len(kw.Name) * kw.Times)
				},
				Opts: []meta.FuncOption{meta.WithMode(meta.StructKeywords)},
			},
		},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	defer rt.Decref(m.Runtime())

	fn := m.Runtime().GetAttr(r, "greet")

	// name supplied, times defaulted to 1.
	kwargs := rt.NewDict()
	name := rt.NewStr("bob")
	kwargs.SetString(r, "name", name)
	rt.Decref(name)
	empty := rt.NewTuple(0)
	out, err := rt.CallObject(r, fn, empty, kwargs)
	rt.Decref(empty)
	rt.Decref(kwargs)
	if err != nil {
		t.Fatalf("greet(name=bob): %v", err)
	}
	if n, _ := out.(*rt.Int).Int64(); n != 3 {
		t.Errorf("greet(name=bob) = %d, want 3", n)
	}
	rt.Decref(out)

	// name missing: required field.
	kwargs = rt.NewDict()
	empty = rt.NewTuple(0)
	_, err = rt.CallObject(r, fn, empty, kwargs)
	rt.Decref(empty)
	rt.Decref(kwargs)
	if err == nil {
		t.Fatal("greet() without name succeeded")
	}
	r.ErrClear()
}

func TestAssemble_ErrorTable(t *testing.T) {
	r := rt.New()
	defer r.Close()
	b := NewBinder()

	errStale := errors.New("stale handle")
	m, err := b.Assemble(r, &ModuleDef{
		Name:   "store",
		Errors: []ExcDef{{Name: "StoreError"}},
		ErrTable: []meta.ErrCase{
			{Name: "stale handle", Exception: "StoreError", Message: "handle is stale"},
		},
		Functions: []FuncDef{
			{Name: "get", Fn: func(id int64) (int64, error) { return 0, errStale }},
			{Name: "other", Fn: func() error { return errors.New("unmapped failure") }},
		},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	defer rt.Decref(m.Runtime())

	id := rt.NewInt(1)
	defer rt.Decref(id)
	_, err = callModuleFunc(t, r, m, "get", id)
	if err == nil {
		t.Fatal("get did not fail")
	}
	storeErr := m.Registry.Exception("StoreError")
	if storeErr == nil {
		t.Fatal("StoreError not registered")
	}
	if !r.ErrMatches(storeErr) {
		t.Errorf("pending = %v, want StoreError", r.ErrOccurred())
	}
	var raised *rt.Raised
	if errors.As(err, &raised) && raised.Message != "handle is stale" {
		t.Errorf("message = %q, want the table message", raised.Message)
	}
	r.ErrClear()

	// Unmapped native errors fall back to RuntimeError.
	_, err = callModuleFunc(t, r, m, "other")
	if err == nil {
		t.Fatal("other did not fail")
	}
	if !r.ErrMatches(rt.RuntimeError) {
		t.Errorf("pending = %v, want RuntimeError", r.ErrOccurred())
	}
	r.ErrClear()
}

func TestAssemble_DivisionByZeroSentinel(t *testing.T) {
	r := rt.New()
	defer r.Close()
	b := NewBinder()

	m, err := b.Assemble(r, &ModuleDef{
		Name: "mathx",
		Functions: []FuncDef{
			{Name: "div", Fn: func(a, b int64) (int64, error) {
				if b == 0 {
					return 0, ErrDivisionByZero
				}
				return a / b, nil
			}},
		},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	defer rt.Decref(m.Runtime())

	a, zero := rt.NewInt(1), rt.NewInt(0)
	defer rt.Decref(a)
	defer rt.Decref(zero)
	_, err = callModuleFunc(t, r, m, "div", a, zero)
	if err == nil {
		t.Fatal("div(1, 0) succeeded")
	}
	if !r.ErrMatches(rt.ZeroDivisionError) {
		t.Errorf("pending = %v, want ZeroDivisionError", r.ErrOccurred())
	}
	r.ErrClear()
}

func TestAssemble_Enums(t *testing.T) {
	r := rt.New()
	defer r.Close()
	b := NewBinder()

	m, err := b.Assemble(r, &ModuleDef{
		Name: "colors",
		Enums: []EnumDef{
			{Name: "Color", Members: []EnumMember{
				{Name: "RED", Value: 0},
				{Name: "GREEN", Value: 1},
				{Name: "BLUE", Value: 2},
			}},
		},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	defer rt.Decref(m.Runtime())

	et := m.Registry.Enum("Color")
	if et == nil {
		t.Fatal("enum type not registered")
	}
	g := et.GetAttr("GREEN")
	if g == nil {
		t.Fatal("Color.GREEN missing")
	}
	if n, _ := g.(*rt.Int).Int64(); n != 1 {
		t.Errorf("Color.GREEN = %d, want 1", n)
	}
}

func TestAssemble_DuplicateEnumMember(t *testing.T) {
	r := rt.New()
	defer r.Close()
	b := NewBinder()

	_, err := b.Assemble(r, &ModuleDef{
		Name: "bad",
		Enums: []EnumDef{
			{Name: "E", Members: []EnumMember{
				{Name: "A", Value: 0},
				{Name: "A", Value: 1},
			}},
		},
	})
	if err == nil {
		t.Fatal("duplicate enum member accepted")
	}
}

func TestRegistry_StandardExceptionFallback(t *testing.T) {
	reg := NewRegistry()
	cases := []struct {
		name string
		want *rt.Type
	}{
		{"TypeError", rt.TypeError},
		{"ValueError", rt.ValueError},
		{"KeyError", rt.KeyError},
		{"ZeroDivisionError", rt.ZeroDivisionError},
		{"StopIteration", rt.StopIteration},
		{"Exception", rt.Exception},
	}
	for _, tc := range cases {
		if got := reg.Exception(tc.name); got != tc.want {
			t.Errorf("Exception(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
	if reg.Exception("NoSuchError") != nil {
		t.Error("unknown exception name resolved")
	}
}
