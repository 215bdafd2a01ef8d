// Package pyrite is the public declaration API: the types used to declare
// bound modules, classes, functions and error tables. Generated bindings
// and hand-written embedders import only this package and pkg/embed.
package pyrite

import (
	"github.com/funvibe/pyrite/internal/bind"
	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// Declaration types.
type ModuleDef = bind.ModuleDef
type FuncDef = bind.FuncDef
type ClassDef = bind.ClassDef
type MethodDef = bind.MethodDef
type ConstDef = bind.ConstDef
type ExcDef = bind.ExcDef
type EnumDef = bind.EnumDef
type EnumMember = bind.EnumMember

// ErrCase maps one native error to a named exception type.
type ErrCase = meta.ErrCase

// Function binding options.
type FuncOption = meta.FuncOption
type BindingMode = meta.BindingMode

const (
	PositionalOnly    = meta.PositionalOnly
	AnonymousKeywords = meta.AnonymousKeywords
	StructKeywords    = meta.StructKeywords
)

// WithMode selects the binding mode for one function.
func WithMode(m BindingMode) FuncOption { return meta.WithMode(m) }

// WithParamNames names positional parameters for keyword binding.
func WithParamNames(names ...string) FuncOption { return meta.WithParamNames(names...) }

// WithErrTable attaches a per-function error table.
func WithErrTable(cases ...ErrCase) FuncOption { return meta.WithErrTable(cases...) }

// WithDoc attaches a doc string.
func WithDoc(doc string) FuncOption { return meta.WithDoc(doc) }

// Runtime object surface, for functions that take or return raw handles.
type Object = rt.Object
type Runtime = rt.Runtime
