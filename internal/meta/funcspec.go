package meta

import (
	"fmt"
	"reflect"
)

// BindingMode selects how runtime call arguments map onto native
// parameters.
type BindingMode int

const (
	// PositionalOnly requires an exact positional match, no keywords.
	PositionalOnly BindingMode = iota

	// AnonymousKeywords allows keywords against synthesized names
	// (arg0, arg1, ...) and lets optional parameters be omitted.
	AnonymousKeywords

	// StructKeywords binds a single struct parameter's fields by position,
	// keyword, declared default, or optional-absent, in that order.
	StructKeywords
)

func (m BindingMode) String() string {
	switch m {
	case PositionalOnly:
		return "positional-only"
	case AnonymousKeywords:
		return "positional-or-keyword"
	case StructKeywords:
		return "named-keyword"
	}
	return "unknown"
}

// Param describes one native parameter.
type Param struct {
	// Name is the keyword name: declared, or synthesized (arg0, arg1, ...).
	Name string

	// Spec is the marshalling descriptor.
	Spec TypeSpec

	// Optional marks pointer parameters that may bind to absent/nil.
	Optional bool
}

// ErrCase maps one native error name to a runtime exception registration.
type ErrCase struct {
	// Name matches the native error's name exactly.
	Name string

	// Exception is the registered exception type's name in the module's
	// registry.
	Exception string

	// Message overrides the raised message; empty means use Name.
	Message string
}

// FuncSpec is the immutable descriptor of a native function exposed to the
// runtime.
type FuncSpec struct {
	// Name is the runtime-visible function name.
	Name string

	// Doc is the docstring attached to the callable.
	Doc string

	// Fn is the native function value.
	Fn reflect.Value

	// Mode is the argument binding mode.
	Mode BindingMode

	// TakesRuntime marks functions whose first parameter is *rt.Runtime.
	TakesRuntime bool

	// HasReceiver marks bound methods: the first parameter is the
	// receiver, supplied by the adapter rather than argument binding.
	HasReceiver bool

	// Params lists the marshalled parameters, excluding the runtime
	// parameter. In StructKeywords mode this is empty and KwStruct is set.
	Params []Param

	// KwStruct describes the keyword struct in StructKeywords mode.
	KwStruct *StructSpec

	// Return is the success payload descriptor; Go==nil means the function
	// returns nothing and the adapter produces None.
	Return TypeSpec

	// ReturnsError marks functions with a trailing error result (the
	// error-union shape).
	ReturnsError bool

	// ErrTable maps native error names to exception registrations.
	ErrTable []ErrCase
}

// FuncOption adjusts descriptor derivation.
type FuncOption func(*funcConfig)

type funcConfig struct {
	names    []string
	mode     *BindingMode
	errTable []ErrCase
	doc      string
	receiver bool
}

// WithReceiver marks the function's first parameter as the bound method
// receiver, excluded from argument binding.
func WithReceiver() FuncOption {
	return func(c *funcConfig) { c.receiver = true }
}

// WithParamNames declares keyword names for the parameters, switching the
// default mode to AnonymousKeywords-style named binding.
func WithParamNames(names ...string) FuncOption {
	return func(c *funcConfig) { c.names = names }
}

// WithMode forces a binding mode.
func WithMode(m BindingMode) FuncOption {
	return func(c *funcConfig) { c.mode = &m }
}

// WithErrTable installs the native-error to exception mapping table.
func WithErrTable(cases ...ErrCase) FuncOption {
	return func(c *funcConfig) { c.errTable = cases }
}

// WithDoc attaches a docstring.
func WithDoc(doc string) FuncOption {
	return func(c *funcConfig) { c.doc = doc }
}

// FuncOf derives a FuncSpec for a native Go function.
//
// Recognized shapes:
//
//	func([r *rt.Runtime,] p0 T0, ...) (R, error)
//	func([r *rt.Runtime,] p0 T0, ...) R
//	func([r *rt.Runtime,] p0 T0, ...) error
//	func([r *rt.Runtime,] p0 T0, ...)
//	func([r *rt.Runtime,] kw KwStruct) ...   with WithMode(StructKeywords)
func FuncOf(name string, fn interface{}, opts ...FuncOption) (*FuncSpec, error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("function descriptor %q: not a function", name)
	}
	if t.IsVariadic() {
		return nil, fmt.Errorf("function descriptor %q: variadic functions are not bindable", name)
	}

	var cfg funcConfig
	for _, o := range opts {
		o(&cfg)
	}

	spec := &FuncSpec{Name: name, Fn: v, Doc: cfg.doc, ErrTable: cfg.errTable}

	in := 0
	if cfg.receiver {
		if t.NumIn() == 0 {
			return nil, fmt.Errorf("function descriptor %q: receiver method has no parameters", name)
		}
		spec.HasReceiver = true
		in = 1
	}
	if t.NumIn() > in && IsRuntime(t.In(in)) {
		spec.TakesRuntime = true
		in++
	}

	mode := PositionalOnly
	if cfg.mode != nil {
		mode = *cfg.mode
	} else if len(cfg.names) > 0 {
		mode = AnonymousKeywords
	}
	spec.Mode = mode

	if mode == StructKeywords {
		if t.NumIn()-in != 1 {
			return nil, fmt.Errorf("function descriptor %q: named-keyword mode requires exactly one struct parameter", name)
		}
		ss, err := StructOf(t.In(in), name+".kwargs")
		if err != nil {
			return nil, fmt.Errorf("function descriptor %q: %w", name, err)
		}
		spec.KwStruct = ss
	} else {
		for i := in; i < t.NumIn(); i++ {
			p := Param{Spec: Spec(t.In(i)), Optional: t.In(i).Kind() == reflect.Ptr}
			idx := i - in
			if idx < len(cfg.names) && cfg.names[idx] != "" {
				p.Name = cfg.names[idx]
			} else {
				p.Name = fmt.Sprintf("arg%d", idx)
			}
			if err := validateSpec(p.Spec, fmt.Sprintf("%s parameter %s", name, p.Name)); err != nil {
				return nil, err
			}
			spec.Params = append(spec.Params, p)
		}
	}

	switch t.NumOut() {
	case 0:
	case 1:
		if IsError(t.Out(0)) {
			spec.ReturnsError = true
		} else {
			spec.Return = Spec(t.Out(0))
		}
	case 2:
		if !IsError(t.Out(1)) {
			return nil, fmt.Errorf("function descriptor %q: second result must be error", name)
		}
		spec.Return = Spec(t.Out(0))
		spec.ReturnsError = true
	default:
		return nil, fmt.Errorf("function descriptor %q: too many results", name)
	}
	if spec.Return.Go != nil {
		if err := validateSpec(spec.Return, name+" result"); err != nil {
			return nil, err
		}
	}
	return spec, nil
}

// Arity returns the declared parameter count for non-struct modes.
func (f *FuncSpec) Arity() int { return len(f.Params) }
