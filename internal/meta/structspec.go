package meta

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Field describes one exposed struct field.
type Field struct {
	// Name is the runtime-visible name: the `py` tag when present,
	// otherwise the lower-cased Go name.
	Name string

	// GoName is the Go field name.
	GoName string

	// Index is the field's position in the Go struct.
	Index int

	// Spec is the field's marshalling descriptor.
	Spec TypeSpec

	// Default is the declared default value parsed from the `default` tag.
	Default reflect.Value

	// HasDefault reports whether Default is usable.
	HasDefault bool

	// Optional marks pointer-typed fields: absent binds to nil.
	Optional bool
}

// StructSpec is the immutable descriptor of a native struct exposed as a
// runtime class (or used as a named-keyword parameter pack).
type StructSpec struct {
	// Name is the runtime-visible class name.
	Name string

	// Go is the underlying struct type (not the pointer).
	Go reflect.Type

	// Fields lists exposed fields in declaration order.
	Fields []Field

	// Caps is the declared-method capability table.
	Caps Caps

	// Methods maps each set capability to its reflect method on *T.
	Methods map[Cap]reflect.Method
}

// StructOf derives a StructSpec for a Go struct type. name may be empty, in
// which case the Go type name is used.
func StructOf(t reflect.Type, name string) (*StructSpec, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("struct descriptor: %s is not a struct", t)
	}
	if name == "" {
		name = t.Name()
	}
	spec := &StructSpec{Name: name, Go: t}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" { // unexported
			continue
		}
		if tagName(f) == "-" {
			continue
		}
		fld := Field{
			GoName:   f.Name,
			Index:    i,
			Spec:     fieldSpec(f),
			Optional: f.Type.Kind() == reflect.Ptr,
		}
		fld.Name = tagName(f)
		if fld.Name == "" {
			fld.Name = lowerFirst(f.Name)
		}
		if err := validateSpec(fld.Spec, fmt.Sprintf("%s.%s", name, f.Name)); err != nil {
			return nil, err
		}
		if dv, ok := f.Tag.Lookup("default"); ok {
			v, err := parseDefault(f.Type, dv)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", name, f.Name, err)
			}
			fld.Default = v
			fld.HasDefault = true
		}
		spec.Fields = append(spec.Fields, fld)
	}
	spec.Caps, spec.Methods = probeCaps(reflect.PtrTo(t))
	return spec, nil
}

// FieldNamed returns the field with the given runtime name, or nil.
func (s *StructSpec) FieldNamed(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// Method returns the reflect method for c; the capability must be set.
func (s *StructSpec) Method(c Cap) reflect.Method { return s.Methods[c] }

// parseDefault parses a `default:"..."` tag value for the field type.
func parseDefault(t reflect.Type, raw string) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(raw).Convert(t), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("bad bool default %q", raw)
		}
		return reflect.ValueOf(b).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t == durationType {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("bad duration default %q", raw)
			}
			return reflect.ValueOf(d), nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("bad integer default %q", raw)
		}
		v := reflect.New(t).Elem()
		v.SetInt(n)
		return v, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("bad integer default %q", raw)
		}
		v := reflect.New(t).Elem()
		v.SetUint(n)
		return v, nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("bad float default %q", raw)
		}
		v := reflect.New(t).Elem()
		v.SetFloat(f)
		return v, nil
	}
	return reflect.Value{}, fmt.Errorf("default values are not supported for %s", t)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
