package meta

import (
	"errors"
	"testing"

	"github.com/funvibe/pyrite/internal/rt"
)

func TestFuncOf_PlainPositional(t *testing.T) {
	spec, err := FuncOf("concat", func(a, b string) string { return a + b })
	if err != nil {
		t.Fatalf("FuncOf: %v", err)
	}
	if spec.Mode != PositionalOnly {
		t.Errorf("mode = %v, want PositionalOnly", spec.Mode)
	}
	if spec.Arity() != 2 {
		t.Errorf("arity = %d, want 2", spec.Arity())
	}
	if spec.Params[0].Name != "arg0" || spec.Params[1].Name != "arg1" {
		t.Errorf("synthesized names = %q, %q", spec.Params[0].Name, spec.Params[1].Name)
	}
	if spec.ReturnsError {
		t.Error("ReturnsError = true for a plain result")
	}
	if spec.Return.Kind() != KindString {
		t.Errorf("return kind = %v, want KindString", spec.Return.Kind())
	}
}

func TestFuncOf_RuntimeAndError(t *testing.T) {
	spec, err := FuncOf("load", func(r *rt.Runtime, path string) ([]byte, error) {
		return nil, errors.New("unused")
	})
	if err != nil {
		t.Fatalf("FuncOf: %v", err)
	}
	if !spec.TakesRuntime {
		t.Error("TakesRuntime = false")
	}
	if !spec.ReturnsError {
		t.Error("ReturnsError = false")
	}
	if spec.Arity() != 1 {
		t.Errorf("arity = %d, want 1 (runtime parameter excluded)", spec.Arity())
	}
}

func TestFuncOf_ErrorOnlyResult(t *testing.T) {
	spec, err := FuncOf("ping", func() error { return nil })
	if err != nil {
		t.Fatalf("FuncOf: %v", err)
	}
	if !spec.ReturnsError {
		t.Error("ReturnsError = false")
	}
	if spec.Return.Go != nil {
		t.Error("error-only function has a return spec")
	}
}

func TestFuncOf_NamedKeywords(t *testing.T) {
	spec, err := FuncOf("greet", func(name string, times int) string { return name },
		WithParamNames("name", "times"))
	if err != nil {
		t.Fatalf("FuncOf: %v", err)
	}
	if spec.Mode != AnonymousKeywords {
		t.Errorf("mode = %v, want AnonymousKeywords", spec.Mode)
	}
	if spec.Params[0].Name != "name" || spec.Params[1].Name != "times" {
		t.Errorf("names = %q, %q", spec.Params[0].Name, spec.Params[1].Name)
	}
}

func TestFuncOf_StructKeywords(t *testing.T) {
	type greetArgs struct {
		Name  string
		Times int `default:"1"`
	}
	spec, err := FuncOf("greet", func(a greetArgs) string { return a.Name },
		WithMode(StructKeywords))
	if err != nil {
		t.Fatalf("FuncOf: %v", err)
	}
	if spec.KwStruct == nil {
		t.Fatal("KwStruct not derived")
	}
	f := spec.KwStruct.FieldNamed("times")
	if f == nil || !f.HasDefault || f.Default.Int() != 1 {
		t.Errorf("times default not carried: %+v", f)
	}
	if f := spec.KwStruct.FieldNamed("name"); f == nil || f.HasDefault {
		t.Errorf("name should be required: %+v", f)
	}
}

func TestFuncOf_StructKeywordsWrongShape(t *testing.T) {
	if _, err := FuncOf("bad", func(a, b int) int { return a }, WithMode(StructKeywords)); err == nil {
		t.Fatal("expected error: two parameters in struct mode")
	}
}

func TestFuncOf_Rejections(t *testing.T) {
	cases := []struct {
		name string
		fn   interface{}
	}{
		{"not a function", 42},
		{"variadic", func(xs ...int) {}},
		{"channel param", func(c chan int) {}},
		{"too many results", func() (int, int, error) { return 0, 0, nil }},
		{"second result not error", func() (int, int) { return 0, 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := FuncOf("x", tc.fn); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestFuncOf_ReceiverStripsFirstParam(t *testing.T) {
	type box struct{ N int }
	spec, err := FuncOf("bump", func(b *box, by int) int { return b.N + by }, WithReceiver())
	if err != nil {
		t.Fatalf("FuncOf: %v", err)
	}
	if !spec.HasReceiver {
		t.Error("HasReceiver = false")
	}
	if spec.Arity() != 1 {
		t.Errorf("arity = %d, want 1", spec.Arity())
	}
}

func TestFuncOf_DocAndErrTable(t *testing.T) {
	spec, err := FuncOf("div", func(a, b int) (int, error) { return a / b, nil },
		WithDoc("integer division"),
		WithErrTable(ErrCase{Name: "division by zero", Exception: "MathError"}))
	if err != nil {
		t.Fatalf("FuncOf: %v", err)
	}
	if spec.Doc != "integer division" {
		t.Errorf("doc = %q", spec.Doc)
	}
	if len(spec.ErrTable) != 1 || spec.ErrTable[0].Exception != "MathError" {
		t.Errorf("err table = %+v", spec.ErrTable)
	}
}
