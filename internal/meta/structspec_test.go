package meta

import (
	"reflect"
	"testing"
)

type tagged struct {
	Host    string `py:"hostname"`
	Port    int    `default:"8080"`
	Debug   bool
	Skipped string `py:"-"`
	hidden  int
}

func TestStructOf_TagsAndDefaults(t *testing.T) {
	spec, err := StructOf(reflect.TypeOf(tagged{}), "")
	if err != nil {
		t.Fatalf("StructOf: %v", err)
	}
	if spec.Name != "tagged" {
		t.Errorf("name = %q, want tagged", spec.Name)
	}
	if len(spec.Fields) != 3 {
		t.Fatalf("got %d fields, want 3", len(spec.Fields))
	}

	if f := spec.FieldNamed("hostname"); f == nil || f.GoName != "Host" {
		t.Errorf("py tag rename not applied: %+v", f)
	}
	if f := spec.FieldNamed("port"); f == nil {
		t.Fatal("port field missing")
	} else {
		if !f.HasDefault {
			t.Error("port default not parsed")
		} else if f.Default.Int() != 8080 {
			t.Errorf("port default = %d, want 8080", f.Default.Int())
		}
	}
	if f := spec.FieldNamed("debug"); f == nil {
		t.Error("lower-cased default name missing")
	}
	if spec.FieldNamed("Skipped") != nil || spec.FieldNamed("skipped") != nil {
		t.Error("py:\"-\" field was exposed")
	}
	if spec.FieldNamed("hidden") != nil {
		t.Error("unexported field was exposed")
	}
}

func TestStructOf_BadDefault(t *testing.T) {
	type bad struct {
		N int `default:"not-a-number"`
	}
	if _, err := StructOf(reflect.TypeOf(bad{}), ""); err == nil {
		t.Fatal("expected an error for an unparsable default")
	}
}

func TestStructOf_ExplicitName(t *testing.T) {
	spec, err := StructOf(reflect.TypeOf(&tagged{}), "Config")
	if err != nil {
		t.Fatalf("StructOf: %v", err)
	}
	if spec.Name != "Config" {
		t.Errorf("name = %q, want Config", spec.Name)
	}
}

type vector struct {
	X, Y float64
}

func (v *vector) Add(o *vector) *vector  { return &vector{v.X + o.X, v.Y + o.Y} }
func (v *vector) RAdd(o *vector) *vector { return o.Add(v) }
func (v *vector) Eq(o *vector) bool      { return *v == *o }
func (v *vector) Len() int               { return 2 }
func (v *vector) Neg() *vector           { return &vector{-v.X, -v.Y} }

func TestProbeCaps_DeclaredMethods(t *testing.T) {
	spec, err := StructOf(reflect.TypeOf(vector{}), "")
	if err != nil {
		t.Fatalf("StructOf: %v", err)
	}
	for _, c := range []Cap{CapAdd, CapRAdd, CapEq, CapLen, CapNeg} {
		if !spec.Caps.Has(c) {
			t.Errorf("capability %s not detected", c.MethodName())
		}
		if !spec.Method(c).Func.IsValid() {
			t.Errorf("no reflect method recorded for %s", c.MethodName())
		}
	}
	for _, c := range []Cap{CapSub, CapLt, CapGetItem, CapNext, CapBuffer} {
		if spec.Caps.Has(c) {
			t.Errorf("capability %s detected without a method", c.MethodName())
		}
	}
}

func TestCaps_Families(t *testing.T) {
	spec, err := StructOf(reflect.TypeOf(vector{}), "")
	if err != nil {
		t.Fatalf("StructOf: %v", err)
	}
	if !spec.Caps.HasAnyNumeric() {
		t.Error("HasAnyNumeric = false with Add declared")
	}
	if !spec.Caps.HasAnyCompare() {
		t.Error("HasAnyCompare = false with Eq declared")
	}
	if !spec.Caps.HasAnyMapping() {
		t.Error("HasAnyMapping = false with Len declared")
	}
}
