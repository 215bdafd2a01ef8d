package bind

import (
	"fmt"
	"reflect"

	"github.com/funvibe/pyrite/internal/marshal"
	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// ClassDef declares a native struct exposed as a runtime class.
type ClassDef struct {
	// Name is the runtime-visible class name; defaults to the Go name.
	Name string
	Doc  string

	// Type is a sample of the native struct: T{} or (*T)(nil).
	Type interface{}

	// Constructor optionally overrides field-order initialization with an
	// explicit positional-only constructor:
	//
	//	func(p0 T0, ...) (T, error)   or   func(p0 T0, ...) T
	Constructor interface{}

	// WithDict opts into the per-instance attribute dictionary slot.
	WithDict bool

	// WithWeakrefs opts into the per-instance weak-reference list slot.
	WithWeakrefs bool

	// Overlay layers the class over a runtime builtin; the native struct
	// must then be zero-sized.
	Overlay *rt.Type

	// Methods lists named (non-protocol) methods published on the type.
	Methods []MethodDef

	// ErrTable maps native error names for this class's methods.
	ErrTable []meta.ErrCase
}

// MethodDef declares a named method: a Go function whose first parameter
// is *T (embedded layouts) or rt.Object (overlay layouts).
type MethodDef struct {
	Name string
	Doc  string
	Fn   interface{}
	Opts []meta.FuncOption
}

// Class is a fully registered class: the heap type object, the layout, the
// capability-driven slot tables and the native association map.
type Class struct {
	binder *Binder
	reg    *Registry
	def    *ClassDef
	spec   *meta.StructSpec
	layout *Layout
	typ    *rt.Type
	ctor   *meta.FuncSpec

	// assoc maps native storage addresses to their wrapped objects, so a
	// pointer already exposed to the runtime converts back to the same
	// handle. The association is severed at deallocation.
	assoc map[uintptr]*Wrapped

	// slotErr records the first protocol-method shape error hit while
	// building slot tables; registration fails on it.
	slotErr error
}

// Name returns the runtime-visible class name.
func (c *Class) Name() string { return c.typ.Name }

// Type returns the class's runtime type object. Borrowed.
func (c *Class) Type() *rt.Type { return c.typ }

// Spec returns the class's struct descriptor.
func (c *Class) Spec() *meta.StructSpec { return c.spec }

// registerClass builds and readies the runtime type for def.
func (b *Binder) registerClass(def *ClassDef, reg *Registry) (*Class, error) {
	var structType reflect.Type
	if def.Type != nil {
		structType = reflect.TypeOf(def.Type)
		if structType.Kind() == reflect.Ptr {
			structType = structType.Elem()
		}
	}
	name := def.Name
	if name == "" && structType != nil {
		name = structType.Name()
	}
	if name == "" {
		return nil, fmt.Errorf("class registration: missing name")
	}

	var spec *meta.StructSpec
	if structType != nil {
		var err error
		spec, err = meta.StructOf(structType, name)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", name, err)
		}
	} else if def.Overlay == nil {
		return nil, fmt.Errorf("class %s: missing native type", name)
	}
	layout, err := NewLayout(structType, def.WithDict, def.WithWeakrefs, def.Overlay)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", name, err)
	}

	c := &Class{
		binder: b,
		reg:    reg,
		def:    def,
		spec:   spec,
		layout: layout,
		typ:    rt.NewHeapType(name, def.Doc),
		assoc:  make(map[uintptr]*Wrapped),
	}
	c.typ.Base = layout.BaseType

	if def.Constructor != nil {
		ctor, err := meta.FuncOf(name+".__init__", def.Constructor, meta.WithMode(meta.PositionalOnly))
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", name, err)
		}
		if ctor.Return.Go != nil && ctor.Return.Go != structType && ctor.Return.Go != reflect.PtrTo(structType) {
			return nil, fmt.Errorf("class %s: constructor must return %s", name, structType)
		}
		c.ctor = ctor
	}

	c.buildLifecycle()
	if layout.Kind == LayoutEmbedded {
		c.buildNumeric()
		c.buildCompare()
		c.buildMapping()
		c.buildIterator()
		c.buildBuffer()
		c.buildGC()
	} else {
		c.inheritOverlaySlots()
	}
	if c.slotErr != nil {
		return nil, fmt.Errorf("class %s: %w", name, c.slotErr)
	}
	if err := c.buildMethods(); err != nil {
		return nil, err
	}
	if err := c.typ.Ready(); err != nil {
		return nil, fmt.Errorf("class %s: %w", name, err)
	}

	if layout.Kind == LayoutEmbedded {
		b.marshaller.RegisterClass(structType, (*classBinding)(c))
	}
	return c, nil
}

// inheritOverlaySlots copies the substrate type's protocol tables onto the
// overlay type, so instances behave like the builtin they are layered over.
func (c *Class) inheritOverlaySlots() {
	base := c.layout.BaseType
	c.typ.Number = base.Number
	c.typ.Compare = base.Compare
	c.typ.Mapping = base.Mapping
	c.typ.Iter = base.Iter
	c.typ.IterNext = base.IterNext
	c.typ.Buffer = base.Buffer
}

// buildMethods publishes named methods in the type's attribute table.
func (c *Class) buildMethods() error {
	for _, md := range c.def.Methods {
		adapter, err := c.buildMethod(md)
		if err != nil {
			return fmt.Errorf("class %s method %s: %w", c.Name(), md.Name, err)
		}
		fn := rt.NewBuiltinFunc(md.Name, md.Doc, adapter)
		c.typ.SetAttr(md.Name, fn)
	}
	return nil
}

// buildMethod wraps a method function: the receiver is spliced in from the
// first positional argument, the remainder binds like a plain function.
func (c *Class) buildMethod(md MethodDef) (rt.CallFunc, error) {
	fnVal := reflect.ValueOf(md.Fn)
	if fnVal.Kind() != reflect.Func || fnVal.Type().NumIn() == 0 {
		return nil, fmt.Errorf("method must be a function taking the receiver first")
	}
	recv := fnVal.Type().In(0)
	wantsObject := recv == reflect.TypeOf((*rt.Object)(nil)).Elem()
	if !wantsObject && c.layout.Kind == LayoutEmbedded && recv != reflect.PtrTo(c.spec.Go) {
		return nil, fmt.Errorf("receiver must be *%s or rt.Object, got %s", c.spec.Go, recv)
	}

	opts := append([]meta.FuncOption{meta.WithReceiver()}, md.Opts...)
	spec, err := meta.FuncOf(c.Name()+"."+md.Name, md.Fn, opts...)
	if err != nil {
		return nil, err
	}
	if len(spec.ErrTable) == 0 {
		spec.ErrTable = c.def.ErrTable
	}

	inner := c.binder.buildInvoker(spec, c.reg)
	return func(r *rt.Runtime, self rt.Object, args *rt.Tuple, kwargs *rt.Dict) (rt.Object, error) {
		if args.Len() == 0 {
			return nil, r.Raise(rt.TypeError, "%s.%s: missing receiver", c.Name(), md.Name)
		}
		recvObj := args.Get(0)
		var recvVal reflect.Value
		if wantsObject {
			w, ok := unwrap(c, recvObj)
			if !ok {
				return nil, r.Raise(rt.TypeError, "%s.%s: receiver is not a %s", c.Name(), md.Name, c.Name())
			}
			if w.base != nil {
				recvVal = reflect.ValueOf(w.base)
			} else {
				recvVal = reflect.ValueOf(rt.Object(w))
			}
		} else {
			sv, ok := c.self(recvObj)
			if !ok {
				return nil, r.Raise(rt.TypeError, "%s.%s: receiver is not a %s", c.Name(), md.Name, c.Name())
			}
			recvVal = sv
		}
		rest := rt.NewTuple(args.Len() - 1)
		for i := 1; i < args.Len(); i++ {
			it := args.Get(i)
			rt.Incref(it)
			rest.SetItemSteal(i-1, it)
		}
		defer rt.Decref(rest)
		return inner(r, recvVal, rest, kwargs)
	}, nil
}

// classBinding adapts Class to the marshaller's boxing interface.
type classBinding Class

// Wrap returns an owned handle for a native struct pointer. A pointer
// already associated with a live wrapped object returns that object; an
// unassociated pointer is boxed around the pointed-to storage. (The
// alternative — refusing plain pointers — loses reference identity for
// values native code hands back.)
func (cb *classBinding) Wrap(r *rt.Runtime, ptr reflect.Value) (rt.Object, error) {
	c := (*Class)(cb)
	if ptr.IsNil() {
		rt.Incref(rt.None)
		return rt.None, nil
	}
	if w, ok := c.assoc[ptr.Pointer()]; ok {
		return rt.NewRef(w), nil
	}
	w := &Wrapped{
		Header:  rt.NewHeader(c.typ),
		class:   c,
		storage: ptr,
		state:   stateLive,
	}
	rt.Incref(c.typ) // instances of heap types hold their type
	c.assoc[ptr.Pointer()] = w
	return w, nil
}

// Unwrap returns the embedded native pointer when o is an instance of the
// class.
func (cb *classBinding) Unwrap(o rt.Object) (reflect.Value, bool) {
	c := (*Class)(cb)
	w, ok := unwrap(c, o)
	if !ok {
		return reflect.Value{}, false
	}
	if w.state == stateDeallocating || w.state == stateFreed {
		return reflect.Value{}, false
	}
	return c.layout.NativePtr(w), true
}

var _ marshal.ClassBinding = (*classBinding)(nil)
