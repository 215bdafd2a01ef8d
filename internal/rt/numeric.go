package rt

// Decimal and path are importable classes, not core scalar kinds: the
// runtime stores a decimal by its canonical string and a path by its text.
// Converters import the class handles lazily and cache them.

import "fmt"

// DecimalObject is an arbitrary-precision decimal held in canonical string
// form to avoid precision loss at this boundary.
type DecimalObject struct {
	Header
	Text string
}

var DecimalType = newStaticType("decimal.Decimal")

func (d *DecimalObject) Inspect() string { return fmt.Sprintf("Decimal('%s')", d.Text) }

// PathObject is a filesystem path view.
type PathObject struct {
	Header
	Text string
}

var PathType = newStaticType("pathlib.Path")

func (p *PathObject) Inspect() string { return fmt.Sprintf("Path(%q)", p.Text) }

func classCtor(t *Type, build func(text string) Object) *BuiltinFunc {
	return NewBuiltinFunc(t.Name, "", func(r *Runtime, self Object, args *Tuple, kwargs *Dict) (Object, error) {
		if args.Len() != 1 {
			return nil, r.Raise(TypeError, "%s() takes exactly one argument (%d given)", t.Name, args.Len())
		}
		s, ok := args.Get(0).(*Str)
		if !ok {
			return nil, r.Raise(TypeError, "%s() argument must be str, not %s", t.Name, args.Get(0).TypeOf().Name)
		}
		return build(s.Value), nil
	})
}

func newDecimalModule(r *Runtime) (*Module, error) {
	m := NewModule("decimal", "arbitrary-precision decimal arithmetic")
	ctor := classCtor(DecimalType, func(text string) Object {
		return &DecimalObject{Header: NewHeader(DecimalType), Text: text}
	})
	if err := m.SetAttr(r, "Decimal", ctor); err != nil {
		Decref(ctor)
		Decref(m)
		return nil, err
	}
	Decref(ctor)
	return m, nil
}

func newPathModule(r *Runtime) (*Module, error) {
	m := NewModule("pathlib", "filesystem path classes")
	ctor := classCtor(PathType, func(text string) Object {
		return &PathObject{Header: NewHeader(PathType), Text: text}
	})
	if err := m.SetAttr(r, "Path", ctor); err != nil {
		Decref(ctor)
		Decref(m)
		return nil, err
	}
	Decref(ctor)
	return m, nil
}

func registerBuiltinImporters(r *Runtime) {
	r.RegisterImporter("datetime", newDateTimeModule)
	r.RegisterImporter("decimal", newDecimalModule)
	r.RegisterImporter("pathlib", newPathModule)
}
