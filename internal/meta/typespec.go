// Package meta derives immutable descriptors for the native Go types and
// functions exposed to the runtime. Descriptors are computed once at
// registration time and drive every generated adapter; nothing here is
// consulted per call beyond plain field reads.
package meta

import (
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/shopspring/decimal"

	"github.com/funvibe/pyrite/internal/rt"
)

// Path is the native filesystem-path view. Declaring a parameter or field
// as meta.Path marshals it through the runtime's path class.
type Path string

// ConvKind classifies a native type for the marshaller's dispatch.
type ConvKind int

const (
	KindInvalid ConvKind = iota
	KindBool
	KindInt     // signed widths <= 64
	KindUint    // unsigned widths <= 64
	KindBigInt  // *big.Int / big.Int: decimal-string intermediate
	KindFloat
	KindComplex
	KindString
	KindBytes
	KindSlice
	KindArray // fixed length, exact-length checked
	KindMap
	KindSet // map[T]struct{}
	KindStruct
	KindOptional // pointer, absent-as-None
	KindTime
	KindDuration
	KindDecimal
	KindObject // raw runtime handle passthrough
	KindPath
)

var (
	bigIntType   = reflect.TypeOf(big.Int{})
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	decimalType  = reflect.TypeOf(decimal.Decimal{})
	pathType     = reflect.TypeOf(Path(""))
	byteSlice    = reflect.TypeOf([]byte(nil))
	objectType   = reflect.TypeOf((*rt.Object)(nil)).Elem()
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	runtimeType  = reflect.TypeOf((*rt.Runtime)(nil))
	emptyStruct  = reflect.TypeOf(struct{}{})
)

// TypeSpec describes one native type position (parameter, field, element,
// return). Flags refine the mapping where the Go type alone is ambiguous.
type TypeSpec struct {
	Go reflect.Type

	// Frozen maps a set type to the runtime's frozenset.
	Frozen bool

	// Tuple maps a struct to the runtime's fixed tuple, field by field in
	// declaration order.
	Tuple bool
}

// Spec wraps a reflect.Type with default flags.
func Spec(t reflect.Type) TypeSpec { return TypeSpec{Go: t} }

// SpecOf wraps the dynamic type of a sample value.
func SpecOf(v interface{}) TypeSpec { return TypeSpec{Go: reflect.TypeOf(v)} }

// Kind classifies the spec for conversion dispatch.
func (s TypeSpec) Kind() ConvKind {
	t := s.Go
	if t == nil {
		return KindInvalid
	}
	switch t {
	case timeType:
		return KindTime
	case durationType:
		return KindDuration
	case decimalType:
		return KindDecimal
	case pathType:
		return KindPath
	case bigIntType:
		return KindBigInt
	}
	if t == objectType || (t.Kind() == reflect.Interface && t.Implements(objectType) && objectType.Implements(t)) {
		return KindObject
	}
	switch t.Kind() {
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindUint
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.Complex64, reflect.Complex128:
		return KindComplex
	case reflect.String:
		return KindString
	case reflect.Slice:
		if t == byteSlice || t.Elem().Kind() == reflect.Uint8 {
			return KindBytes
		}
		return KindSlice
	case reflect.Array:
		return KindArray
	case reflect.Map:
		if t.Elem() == emptyStruct {
			return KindSet
		}
		return KindMap
	case reflect.Struct:
		return KindStruct
	case reflect.Ptr:
		if t.Elem() == bigIntType {
			return KindBigInt
		}
		return KindOptional
	}
	return KindInvalid
}

// Elem returns the element spec for slices, arrays, sets and optionals.
// The Frozen/Tuple flags do not propagate: they describe this position only.
func (s TypeSpec) Elem() TypeSpec {
	switch s.Kind() {
	case KindSlice, KindArray:
		return Spec(s.Go.Elem())
	case KindSet:
		// A set is map[T]struct{}; its members live in the key position.
		return Spec(s.Go.Key())
	case KindOptional:
		return Spec(s.Go.Elem())
	case KindMap:
		return Spec(s.Go.Elem())
	}
	return TypeSpec{}
}

// Key returns the key spec for maps.
func (s TypeSpec) Key() TypeSpec {
	if s.Go.Kind() == reflect.Map {
		return Spec(s.Go.Key())
	}
	return TypeSpec{}
}

func (s TypeSpec) String() string {
	if s.Go == nil {
		return "<invalid>"
	}
	return s.Go.String()
}

// IsError reports whether t is the Go error interface.
func IsError(t reflect.Type) bool { return t == errorType }

// IsRuntime reports whether t is *rt.Runtime, the implicit first parameter
// adapters thread through to native code that asks for it.
func IsRuntime(t reflect.Type) bool { return t == runtimeType }

// fieldSpec derives a TypeSpec from a struct field, honoring its tag.
func fieldSpec(f reflect.StructField) TypeSpec {
	s := Spec(f.Type)
	opts := tagOptions(f)
	for _, o := range opts {
		switch o {
		case "frozen":
			s.Frozen = true
		case "tuple":
			s.Tuple = true
		}
	}
	return s
}

// tagOptions returns the option list of a `py:"name,opt,..."` tag.
func tagOptions(f reflect.StructField) []string {
	tag, ok := f.Tag.Lookup("py")
	if !ok {
		return nil
	}
	parts := splitTag(tag)
	if len(parts) <= 1 {
		return nil
	}
	return parts[1:]
}

func tagName(f reflect.StructField) string {
	tag, ok := f.Tag.Lookup("py")
	if !ok || tag == "" {
		return ""
	}
	return splitTag(tag)[0]
}

func splitTag(tag string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(tag); i++ {
		if i == len(tag) || tag[i] == ',' {
			parts = append(parts, tag[start:i])
			start = i + 1
		}
	}
	return parts
}

// validateSpec rejects type positions the marshaller cannot serve.
func validateSpec(s TypeSpec, where string) error {
	if s.Kind() == KindInvalid {
		return fmt.Errorf("%s: unsupported native type %s", where, s)
	}
	return nil
}
