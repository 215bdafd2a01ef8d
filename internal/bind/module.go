package bind

import (
	"fmt"

	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// ModuleDef declares a complete bound module: functions, classes,
// exception types and enums, assembled in one pass at module init.
type ModuleDef struct {
	Name string
	Doc  string

	Functions []FuncDef
	Classes   []*ClassDef
	Errors    []ExcDef
	Enums     []EnumDef
	Consts    []ConstDef

	// ErrTable applies to every function without its own table.
	ErrTable []meta.ErrCase
}

// FuncDef declares a module-level function.
type FuncDef struct {
	Name string
	Doc  string
	Fn   interface{}
	Opts []meta.FuncOption
}

// ConstDef declares a module-level constant, marshalled once at assembly.
type ConstDef struct {
	Name  string
	Value interface{}
}

// ExcDef declares a module exception type. Base defaults to Exception.
type ExcDef struct {
	Name string
	Base *rt.Type
}

// EnumDef declares an integer enum published as a type with constant
// members.
type EnumDef struct {
	Name    string
	Members []EnumMember
}

type EnumMember struct {
	Name  string
	Value int64
}

// Registry holds the exception and enum types registered by one module,
// so error tables and adapters resolve names without reaching into the
// module dict.
type Registry struct {
	exceptions map[string]*rt.Type
	enums      map[string]*rt.Type
}

func NewRegistry() *Registry {
	return &Registry{
		exceptions: make(map[string]*rt.Type),
		enums:      make(map[string]*rt.Type),
	}
}

// Exception returns the registered exception type, or a standard
// exception type by that name, or nil.
func (g *Registry) Exception(name string) *rt.Type {
	if t, ok := g.exceptions[name]; ok {
		return t
	}
	return standardException(name)
}

// Enum returns the registered enum type, or nil.
func (g *Registry) Enum(name string) *rt.Type { return g.enums[name] }

func standardException(name string) *rt.Type {
	switch name {
	case "TypeError":
		return rt.TypeError
	case "ValueError":
		return rt.ValueError
	case "KeyError":
		return rt.KeyError
	case "IndexError":
		return rt.IndexError
	case "ZeroDivisionError":
		return rt.ZeroDivisionError
	case "StopIteration":
		return rt.StopIteration
	case "RuntimeError":
		return rt.RuntimeError
	case "NotImplementedError":
		return rt.NotImplementedError
	case "ImportError":
		return rt.ImportError
	case "Exception":
		return rt.Exception
	}
	return nil
}

// Module is an assembled bound module.
type Module struct {
	Def      *ModuleDef
	Registry *Registry

	mod     *rt.Module
	classes map[string]*Class
}

// Runtime returns the underlying runtime module object. Borrowed.
func (m *Module) Runtime() *rt.Module { return m.mod }

// Class returns a registered class by name, or nil.
func (m *Module) Class(name string) *Class { return m.classes[name] }

// Assemble walks a module definition once: exception and enum types
// first (error tables reference them), then classes, then functions. The
// returned module's runtime object carries one reference owned by the
// caller.
func (b *Binder) Assemble(r *rt.Runtime, def *ModuleDef) (*Module, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("module assembly: missing name")
	}
	reg := NewRegistry()
	mod := rt.NewModule(def.Name, def.Doc)
	m := &Module{Def: def, Registry: reg, mod: mod, classes: make(map[string]*Class)}

	fail := func(err error) (*Module, error) {
		rt.Decref(mod)
		return nil, err
	}

	for _, ed := range def.Errors {
		if ed.Name == "" {
			return fail(fmt.Errorf("module %s: exception with no name", def.Name))
		}
		if _, dup := reg.exceptions[ed.Name]; dup {
			return fail(fmt.Errorf("module %s: duplicate exception %q", def.Name, ed.Name))
		}
		t := rt.NewExceptionType(ed.Name, ed.Base)
		reg.exceptions[ed.Name] = t
		if err := mod.SetAttr(r, ed.Name, t); err != nil {
			return fail(err)
		}
		rt.Decref(t) // the module dict holds it now
	}

	for _, en := range def.Enums {
		t, err := buildEnum(en)
		if err != nil {
			return fail(fmt.Errorf("module %s: %w", def.Name, err))
		}
		reg.enums[en.Name] = t
		if err := mod.SetAttr(r, en.Name, t); err != nil {
			return fail(err)
		}
		rt.Decref(t)
	}

	for _, cd := range def.Classes {
		if len(cd.ErrTable) == 0 {
			cd.ErrTable = def.ErrTable
		}
		c, err := b.registerClass(cd, reg)
		if err != nil {
			return fail(err)
		}
		m.classes[c.Name()] = c
		if err := mod.SetAttr(r, c.Name(), c.typ); err != nil {
			return fail(err)
		}
	}

	for _, cd := range def.Consts {
		v, err := b.marshaller.ToRuntimeValue(r, cd.Value)
		if err != nil {
			return fail(fmt.Errorf("module %s: constant %s: %w", def.Name, cd.Name, err))
		}
		if err := mod.SetAttr(r, cd.Name, v); err != nil {
			rt.Decref(v)
			return fail(err)
		}
		rt.Decref(v)
	}

	for _, fd := range def.Functions {
		spec, err := meta.FuncOf(fd.Name, fd.Fn, fd.Opts...)
		if err != nil {
			return fail(fmt.Errorf("module %s: function %s: %w", def.Name, fd.Name, err))
		}
		if len(spec.ErrTable) == 0 {
			spec.ErrTable = def.ErrTable
		}
		spec.Doc = fd.Doc
		fn := rt.NewBuiltinFunc(fd.Name, fd.Doc, b.BuildFunc(spec, reg))
		if err := mod.SetAttr(r, fd.Name, fn); err != nil {
			return fail(err)
		}
		rt.Decref(fn)
	}

	return m, nil
}

// buildEnum publishes integer members as class constants on a fresh heap
// type.
func buildEnum(def EnumDef) (*rt.Type, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("enum with no name")
	}
	t := rt.NewHeapType(def.Name, "")
	seen := make(map[string]bool, len(def.Members))
	for _, m := range def.Members {
		if seen[m.Name] {
			return nil, fmt.Errorf("enum %s: duplicate member %q", def.Name, m.Name)
		}
		seen[m.Name] = true
		t.SetAttr(m.Name, rt.NewInt(m.Value)) // SetAttr steals
	}
	if err := t.Ready(); err != nil {
		return nil, err
	}
	return t, nil
}
