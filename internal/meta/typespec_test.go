package meta

import (
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/funvibe/pyrite/internal/rt"
)

func TestKind_Classification(t *testing.T) {
	cases := []struct {
		name   string
		sample interface{}
		want   ConvKind
	}{
		{"bool", true, KindBool},
		{"int", int(0), KindInt},
		{"int8", int8(0), KindInt},
		{"int64", int64(0), KindInt},
		{"uint", uint(0), KindUint},
		{"uint64", uint64(0), KindUint},
		{"float32", float32(0), KindFloat},
		{"float64", float64(0), KindFloat},
		{"complex128", complex128(0), KindComplex},
		{"string", "", KindString},
		{"bytes", []byte(nil), KindBytes},
		{"slice", []int(nil), KindSlice},
		{"array", [4]string{}, KindArray},
		{"map", map[string]int(nil), KindMap},
		{"set", map[int]struct{}(nil), KindSet},
		{"struct", struct{ X int }{}, KindStruct},
		{"optional", (*int)(nil), KindOptional},
		{"time", time.Time{}, KindTime},
		{"duration", time.Duration(0), KindDuration},
		{"decimal", decimal.Decimal{}, KindDecimal},
		{"bigint ptr", (*big.Int)(nil), KindBigInt},
		{"bigint value", big.Int{}, KindBigInt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SpecOf(tc.sample).Kind()
			if got != tc.want {
				t.Errorf("Kind(%T) = %v, want %v", tc.sample, got, tc.want)
			}
		})
	}
}

func TestElem_SetMembersAreKeys(t *testing.T) {
	spec := SpecOf(map[string]struct{}(nil))
	elem := spec.Elem()
	if elem.Go != reflect.TypeOf("") {
		t.Fatalf("set element type = %v, want string", elem.Go)
	}
	if elem.Kind() != KindString {
		t.Errorf("set element kind = %v, want KindString", elem.Kind())
	}
}

func TestKind_ObjectPassthrough(t *testing.T) {
	spec := Spec(reflect.TypeOf((*rt.Object)(nil)).Elem())
	if spec.Kind() != KindObject {
		t.Errorf("Kind(rt.Object) = %v, want KindObject", spec.Kind())
	}
}

func TestKind_InvalidTypes(t *testing.T) {
	cases := []interface{}{
		make(chan int),
		func() {},
	}
	for _, sample := range cases {
		if got := SpecOf(sample).Kind(); got != KindInvalid {
			t.Errorf("Kind(%T) = %v, want KindInvalid", sample, got)
		}
	}
}
