package gen

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// CodeGenerator produces Go source files that declare bind module
// definitions for the inspected packages.
type CodeGenerator struct {
	// pyriteModulePath is the Go import path of the pyrite project.
	pyriteModulePath string
}

// NewCodeGenerator creates a code generator emitting imports against the
// given pyrite module path.
func NewCodeGenerator(pyriteModulePath string) *CodeGenerator {
	return &CodeGenerator{pyriteModulePath: pyriteModulePath}
}

// GeneratedFile is one produced Go source file.
type GeneratedFile struct {
	// Filename is the file's name within the generated host project.
	Filename string

	// Content is complete Go source.
	Content string
}

// Generate produces one gen_<name>.go per module plus a main.go that
// starts a host with every module registered. Output ordering is
// deterministic.
func (cg *CodeGenerator) Generate(result *InspectResult) ([]GeneratedFile, error) {
	var files []GeneratedFile
	for _, mod := range result.Modules {
		f, err := cg.generateModuleFile(mod)
		if err != nil {
			return nil, fmt.Errorf("generating module %s: %w", mod.Spec.ModuleName(), err)
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })

	mainFile, err := cg.generateMainFile(result)
	if err != nil {
		return nil, fmt.Errorf("generating main.go: %w", err)
	}
	files = append(files, mainFile)
	return files, nil
}

// moduleFileContext is the template payload for one module file.
type moduleFileContext struct {
	Name             string
	FuncName         string
	PkgPath          string
	PkgAlias         string
	PyriteModulePath string
	NeedContext      bool

	Funcs   []genFunc
	Classes []genClass
	Consts  []genConst
}

type genFunc struct {
	Name     string
	Wrapper  string // rendered Go expression for the Fn field
	Keywords bool
}

type genClass struct {
	Name    string
	GoType  string // qualified Go type, e.g. uuid.UUID
	Methods []genMethod
}

type genMethod struct {
	Name    string
	Wrapper string
}

type genConst struct {
	Name  string
	Value string
}

func (cg *CodeGenerator) generateModuleFile(mod *ResolvedModule) (GeneratedFile, error) {
	name := mod.Spec.ModuleName()
	ctx := &moduleFileContext{
		Name:             name,
		FuncName:         "module" + exportName(name),
		PkgPath:          mod.Spec.Pkg,
		PkgAlias:         pkgAlias(mod.Spec.Pkg),
		PyriteModulePath: cg.pyriteModulePath,
	}

	for _, fn := range mod.Funcs {
		wrapper, needCtx := renderFuncWrapper(ctx.PkgAlias, fn.GoName, fn.Sig, fn.SkipContext)
		ctx.NeedContext = ctx.NeedContext || needCtx
		ctx.Funcs = append(ctx.Funcs, genFunc{
			Name:     fn.RuntimeName,
			Wrapper:  wrapper,
			Keywords: fn.Keywords,
		})
	}
	for _, cl := range mod.Classes {
		gc := genClass{
			Name:   cl.RuntimeName,
			GoType: ctx.PkgAlias + "." + cl.GoName,
		}
		for _, m := range cl.Methods {
			wrapper, needCtx := renderMethodWrapper(gc.GoType, m.GoName, m.Sig, m.SkipContext)
			ctx.NeedContext = ctx.NeedContext || needCtx
			gc.Methods = append(gc.Methods, genMethod{Name: m.RuntimeName, Wrapper: wrapper})
		}
		ctx.Classes = append(ctx.Classes, gc)
	}
	for _, c := range mod.Consts {
		ctx.Consts = append(ctx.Consts, genConst{Name: c.RuntimeName, Value: ctx.PkgAlias + "." + c.GoName})
	}

	var buf bytes.Buffer
	if err := moduleTemplate.Execute(&buf, ctx); err != nil {
		return GeneratedFile{}, err
	}
	return GeneratedFile{Filename: "gen_" + name + ".go", Content: buf.String()}, nil
}

// renderFuncWrapper renders the Fn expression for a package function. A
// plain signature passes the function value through; skip_context wraps
// it so the runtime never sees the context parameter.
func renderFuncWrapper(pkgAlias, goName string, sig *Signature, skipContext bool) (string, bool) {
	target := pkgAlias + "." + goName
	if !skipContext {
		return target, false
	}
	return renderContextWrapper(target, sig), true
}

// renderMethodWrapper renders the Fn expression for a bound method: a
// function whose first parameter is the receiver pointer.
func renderMethodWrapper(goType, goName string, sig *Signature, skipContext bool) (string, bool) {
	if !skipContext {
		return "(*" + goType + ")." + goName, false
	}
	var b strings.Builder
	b.WriteString("func(self *" + goType)
	writeWrapperTail(&b, "self."+goName, sig)
	return b.String(), true
}

func renderContextWrapper(target string, sig *Signature) string {
	var b strings.Builder
	b.WriteString("func(")
	writeWrapperTail(&b, target, sig)
	return b.String()
}

// writeWrapperTail finishes a wrapper literal: parameter list after any
// receiver, result list, and a body forwarding context.Background().
func writeWrapperTail(b *strings.Builder, call string, sig *Signature) {
	for i, p := range sig.Params {
		if b.String()[b.Len()-1] != '(' {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "a%d %s", i, p)
	}
	b.WriteString(") ")

	switch {
	case len(sig.Results) == 1 && sig.HasError:
		fmt.Fprintf(b, "(%s, error)", sig.Results[0])
	case len(sig.Results) == 1:
		b.WriteString(sig.Results[0])
	case sig.HasError:
		b.WriteString("error")
	}

	b.WriteString(" {\n\t\t\treturn ")
	b.WriteString(call)
	b.WriteString("(context.Background()")
	for i := range sig.Params {
		fmt.Fprintf(b, ", a%d", i)
	}
	b.WriteString(")\n\t\t}")
}

func (cg *CodeGenerator) generateMainFile(result *InspectResult) (GeneratedFile, error) {
	ctx := struct {
		PyriteModulePath string
		Modules          []string
	}{PyriteModulePath: cg.pyriteModulePath}
	for _, mod := range result.Modules {
		ctx.Modules = append(ctx.Modules, "module"+exportName(mod.Spec.ModuleName()))
	}
	var buf bytes.Buffer
	if err := mainTemplate.Execute(&buf, ctx); err != nil {
		return GeneratedFile{}, err
	}
	return GeneratedFile{Filename: "main.go", Content: buf.String()}, nil
}

// pkgAlias derives a collision-safe local import alias.
func pkgAlias(pkgPath string) string {
	parts := strings.Split(pkgPath, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if !isVersionSegment(parts[i]) {
			return sanitizeIdent(parts[i])
		}
	}
	return sanitizeIdent(parts[len(parts)-1])
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "pkg" + out
	}
	return out
}

func exportName(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var moduleTemplate = template.Must(template.New("module").Parse(`// Code generated by pyrite gen. DO NOT EDIT.

package main

import (
{{- if .NeedContext}}
	"context"
{{- end}}

	{{.PkgAlias}} "{{.PkgPath}}"

	"{{.PyriteModulePath}}/pkg/pyrite"
)

func {{.FuncName}}() *pyrite.ModuleDef {
	return &pyrite.ModuleDef{
		Name: {{printf "%q" .Name}},
{{- if .Funcs}}
		Functions: []pyrite.FuncDef{
{{- range .Funcs}}
			{
				Name: {{printf "%q" .Name}},
				Fn:   {{.Wrapper}},
{{- if .Keywords}}
				Opts: []pyrite.FuncOption{pyrite.WithMode(pyrite.StructKeywords)},
{{- end}}
			},
{{- end}}
		},
{{- end}}
{{- if .Classes}}
		Classes: []*pyrite.ClassDef{
{{- range .Classes}}
			{
				Name: {{printf "%q" .Name}},
				Type: (*{{.GoType}})(nil),
{{- if .Methods}}
				Methods: []pyrite.MethodDef{
{{- range .Methods}}
					{Name: {{printf "%q" .Name}}, Fn: {{.Wrapper}}},
{{- end}}
				},
{{- end}}
			},
{{- end}}
		},
{{- end}}
{{- if .Consts}}
		Consts: []pyrite.ConstDef{
{{- range .Consts}}
			{Name: {{printf "%q" .Name}}, Value: {{.Value}}},
{{- end}}
		},
{{- end}}
	}
}
`))

var mainTemplate = template.Must(template.New("main").Parse(`// Code generated by pyrite gen. DO NOT EDIT.

package main

import (
	"fmt"
	"os"

	"{{.PyriteModulePath}}/pkg/embed"
)

func main() {
	host, err := embed.Start(
{{- range .Modules}}
		embed.WithModule({{.}}()),
{{- end}}
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pyrite: %v\n", err)
		os.Exit(1)
	}
	defer host.Close()

	if err := host.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pyrite: %v\n", err)
		os.Exit(1)
	}
}
`))
