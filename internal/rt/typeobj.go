package rt

import "fmt"

// Slot function signatures. All slots are called with the global lock held.
// Object results are owned by the caller unless noted; Object arguments are
// borrowed.
type (
	// UnaryFunc implements a one-operand protocol slot.
	UnaryFunc func(r *Runtime, self Object) (Object, error)

	// BinaryFunc implements a two-operand protocol slot. Returning the
	// NotImplemented singleton (with a nil error) tells the runtime to try
	// the other operand.
	BinaryFunc func(r *Runtime, a, b Object) (Object, error)

	// LenFunc reports a container's length.
	LenFunc func(r *Runtime, self Object) (int, error)

	// GetItemFunc implements subscript read.
	GetItemFunc func(r *Runtime, self, key Object) (Object, error)

	// SetItemFunc implements subscript write. A nil value requests deletion
	// of the key, mirroring the host slot convention.
	SetItemFunc func(r *Runtime, self, key Object, value Object) error

	// CompareFunc is the single rich-comparison entry point.
	CompareFunc func(r *Runtime, self, other Object, op CompareOp) (Object, error)

	// GetBufferFunc fills a buffer view over the object's memory.
	GetBufferFunc func(r *Runtime, self Object, flags BufferFlags) (*BufferView, error)

	// ReleaseBufferFunc tears down a previously exported view.
	ReleaseBufferFunc func(r *Runtime, self Object, view *BufferView)

	// VisitFunc is the cycle collector's visitor callback. A nonzero result
	// aborts the traversal and must be propagated unchanged.
	VisitFunc func(child Object) int

	// TraverseFunc calls visit once per embedded object reference.
	TraverseFunc func(self Object, visit VisitFunc) int

	// ClearFunc drops embedded object references so cycles can be broken.
	ClearFunc func(self Object)

	// AllocFunc allocates an uninitialized instance of t.
	AllocFunc func(r *Runtime, t *Type) (Object, error)

	// InitFunc initializes a freshly allocated instance from call arguments.
	InitFunc func(r *Runtime, self Object, args *Tuple, kwargs *Dict) error

	// DeallocFunc releases an instance's embedded state and frees it.
	DeallocFunc func(self Object)

	// CallFunc implements calling the object like a function.
	CallFunc func(r *Runtime, self Object, args *Tuple, kwargs *Dict) (Object, error)
)

// CompareOp selects the operator for a CompareFunc invocation.
type CompareOp int

const (
	CompareLT CompareOp = iota
	CompareLE
	CompareEQ
	CompareNE
	CompareGT
	CompareGE
)

func (op CompareOp) String() string {
	switch op {
	case CompareLT:
		return "<"
	case CompareLE:
		return "<="
	case CompareEQ:
		return "=="
	case CompareNE:
		return "!="
	case CompareGT:
		return ">"
	case CompareGE:
		return ">="
	}
	return "?"
}

// NumberSlots is the numeric protocol table.
type NumberSlots struct {
	Add       BinaryFunc
	Subtract  BinaryFunc
	Multiply  BinaryFunc
	Divide    BinaryFunc
	FloorDiv  BinaryFunc
	Remainder BinaryFunc
	Power     BinaryFunc
	LShift    BinaryFunc
	RShift    BinaryFunc
	BitAnd    BinaryFunc
	BitOr     BinaryFunc
	BitXor    BinaryFunc

	InPlaceAdd      BinaryFunc
	InPlaceSubtract BinaryFunc
	InPlaceMultiply BinaryFunc

	Negative UnaryFunc
	Positive UnaryFunc
	Absolute UnaryFunc
	Invert   UnaryFunc

	ToInt   UnaryFunc
	ToFloat UnaryFunc
	Index   UnaryFunc
}

// MappingSlots is the mapping protocol table.
type MappingSlots struct {
	Length  LenFunc
	GetItem GetItemFunc
	SetItem SetItemFunc
}

// BufferSlots is the buffer protocol table.
type BufferSlots struct {
	GetBuffer     GetBufferFunc
	ReleaseBuffer ReleaseBufferFunc
}

// Type is a runtime type object. Static types are package-level values;
// heap types are created at registration time by the binding layer and
// carry Heap=true so instance deallocation drops the type reference last.
type Type struct {
	Header
	Name string
	Doc  string

	// Heap marks dynamically created types. Instances of heap types own a
	// reference to their type; static types are immortal.
	Heap bool

	// Base is the type this type is layered over, or nil.
	Base *Type

	Alloc   AllocFunc
	Init    InitFunc
	Dealloc DeallocFunc
	Free    DeallocFunc
	Call    CallFunc

	Number   *NumberSlots
	Compare  CompareFunc
	Mapping  *MappingSlots
	Iter     UnaryFunc
	IterNext UnaryFunc
	Buffer   *BufferSlots
	Traverse TraverseFunc
	Clear    ClearFunc

	// Attrs holds the type's attribute dictionary: methods, class
	// constants, enum members. Values are owned by the type.
	Attrs map[string]Object

	ready bool
}

func (t *Type) Inspect() string { return fmt.Sprintf("<type %s>", t.Name) }

// Ready finalizes the type so instances may be created. Idempotent.
func (t *Type) Ready() error {
	if t.ready {
		return nil
	}
	if t.Name == "" {
		return fmt.Errorf("type readiness: type has no name")
	}
	if t.Attrs == nil {
		t.Attrs = make(map[string]Object)
	}
	t.ready = true
	return nil
}

// IsReady reports whether Ready has completed.
func (t *Type) IsReady() bool { return t.ready }

// IsInstance reports whether o is an instance of t or of a type layered
// over t.
func (t *Type) IsInstance(o Object) bool {
	for ot := o.TypeOf(); ot != nil; ot = ot.Base {
		if ot == t {
			return true
		}
	}
	return false
}

// GetAttr returns a borrowed handle to a type attribute, or nil.
func (t *Type) GetAttr(name string) Object {
	if t.Attrs == nil {
		return nil
	}
	return t.Attrs[name]
}

// SetAttr stores an attribute on the type, stealing the reference to value.
func (t *Type) SetAttr(name string, value Object) {
	if t.Attrs == nil {
		t.Attrs = make(map[string]Object)
	}
	if old, ok := t.Attrs[name]; ok {
		Decref(old)
	}
	t.Attrs[name] = value
}

// NewHeapType creates a dynamically allocated type object.
func NewHeapType(name, doc string) *Type {
	t := &Type{Name: name, Doc: doc, Heap: true, Attrs: make(map[string]Object)}
	t.Header = NewHeader(TypeType)
	return t
}

func newStaticType(name string) *Type {
	t := &Type{Name: name, Attrs: make(map[string]Object), ready: true}
	t.Header = immortalHeader(nil)
	return t
}

// TypeType is the metatype of all type objects.
var TypeType = newStaticType("type")

func init() {
	TypeType.typ = TypeType
}
