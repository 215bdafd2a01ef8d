package rt

import "fmt"

// Module is a named bag of attributes constructed once at registration.
type Module struct {
	Header
	Name string
	Doc  string
	dict *Dict
}

var ModuleType = newStaticType("module")

// NewModule creates an empty module. Owned result.
func NewModule(name, doc string) *Module {
	return &Module{
		Header: NewHeader(ModuleType),
		Name:   name,
		Doc:    doc,
		dict:   NewDict(),
	}
}

func (m *Module) Inspect() string { return fmt.Sprintf("<module %s>", m.Name) }

// Dict returns a borrowed handle to the module's attribute dict.
func (m *Module) Dict() *Dict { return m.dict }

// GetAttr returns a borrowed handle to a module attribute, or nil.
func (m *Module) GetAttr(r *Runtime, name string) Object {
	return m.dict.GetString(r, name)
}

// SetAttr stores an attribute, borrowing the handle.
func (m *Module) SetAttr(r *Runtime, name string, value Object) error {
	return m.dict.SetString(r, name, value)
}

func deallocModule(o Object) {
	m := o.(*Module)
	if m.dict != nil {
		Decref(m.dict)
		m.dict = nil
	}
}

// BuiltinFunc is a module-level callable backed by a native adapter.
type BuiltinFunc struct {
	Header
	Name string
	Doc  string
	Fn   CallFunc
}

var BuiltinFuncType = newStaticType("builtin_function_or_method")

// NewBuiltinFunc wraps a call adapter as a callable object. Owned result.
func NewBuiltinFunc(name, doc string, fn CallFunc) *BuiltinFunc {
	return &BuiltinFunc{Header: NewHeader(BuiltinFuncType), Name: name, Doc: doc, Fn: fn}
}

func (f *BuiltinFunc) Inspect() string { return fmt.Sprintf("<built-in function %s>", f.Name) }

// Call invokes the adapter. Args and kwargs are borrowed; the result is
// owned by the caller.
func (f *BuiltinFunc) Call(r *Runtime, args *Tuple, kwargs *Dict) (Object, error) {
	return f.Fn(r, f, args, kwargs)
}

func init() {
	ModuleType.Dealloc = deallocModule
}
