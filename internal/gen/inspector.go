package gen

import (
	"fmt"
	"go/types"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

// InspectResult holds the resolved binding surface for code generation.
type InspectResult struct {
	// Modules is ordered as declared in pyrite.yaml.
	Modules []*ResolvedModule
}

// ResolvedModule is one runtime module with its symbols resolved against
// the loaded Go package.
type ResolvedModule struct {
	Spec ModuleSpec

	Funcs   []*FuncInfo
	Classes []*ClassInfo
	Consts  []*ConstInfo
}

// FuncInfo describes one bound package-level function.
type FuncInfo struct {
	// GoName is the Go function name.
	GoName string

	// RuntimeName is the name published in the module.
	RuntimeName string

	Sig *Signature

	// SkipContext injects context.Background() for a leading
	// context.Context parameter.
	SkipContext bool

	// Keywords selects struct-keyword binding for a single struct
	// parameter.
	Keywords bool
}

// ClassInfo describes one bound struct type.
type ClassInfo struct {
	GoName      string
	RuntimeName string

	// Methods is sorted by Go name for deterministic output.
	Methods []*MethodInfo
}

// MethodInfo describes one bound method.
type MethodInfo struct {
	GoName      string
	RuntimeName string
	Sig         *Signature
	SkipContext bool
}

// ConstInfo describes one bound package-level constant.
type ConstInfo struct {
	GoName      string
	RuntimeName string

	// Value is the constant's Go literal rendering.
	Value string
}

// Signature is the marshallable shape of a bound function.
type Signature struct {
	// Params are Go type strings, receiver and skipped context excluded.
	Params []string

	// Results are Go type strings, trailing error excluded.
	Results []string

	// HasContext reports a leading context.Context parameter.
	HasContext bool

	// HasError reports a trailing error result.
	HasError bool
}

// Inspector loads the declared Go packages and resolves bindings.
type Inspector struct {
	workDir    string
	loadedPkgs map[string]*packages.Package
	goVersion  string
	configDir  string
}

// NewInspector creates an Inspector. goVersion is written into the
// temporary workspace go.mod.
func NewInspector(goVersion string) *Inspector {
	return &Inspector{
		loadedPkgs: make(map[string]*packages.Package),
		goVersion:  goVersion,
	}
}

// SetConfigDir sets the directory containing pyrite.yaml, for resolving
// local module paths.
func (ins *Inspector) SetConfigDir(dir string) { ins.configDir = dir }

// Inspect loads every declared package and resolves the bound surface.
func (ins *Inspector) Inspect(cfg *Config) (*InspectResult, error) {
	if err := ins.setupWorkspace(cfg); err != nil {
		return nil, fmt.Errorf("setting up workspace: %w", err)
	}
	paths := make([]string, 0, len(cfg.Modules))
	seen := make(map[string]bool)
	for _, m := range cfg.Modules {
		if !seen[m.Pkg] {
			paths = append(paths, m.Pkg)
			seen[m.Pkg] = true
		}
	}
	if err := ins.loadPackages(paths); err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	result := &InspectResult{}
	for _, mod := range cfg.Modules {
		rm, err := ins.resolveModule(mod)
		if err != nil {
			return nil, fmt.Errorf("resolving module %s: %w", mod.ModuleName(), err)
		}
		result.Modules = append(result.Modules, rm)
	}
	return result, nil
}

// Cleanup removes the temporary workspace.
func (ins *Inspector) Cleanup() {
	if ins.workDir != "" {
		os.RemoveAll(ins.workDir)
		ins.workDir = ""
	}
}

// WorkDir returns the temporary workspace path.
func (ins *Inspector) WorkDir() string { return ins.workDir }

// setupWorkspace creates a temporary Go module requiring every declared
// package, so go/packages can resolve them at pinned versions.
func (ins *Inspector) setupWorkspace(cfg *Config) error {
	dir, err := os.MkdirTemp("", "pyrite-gen-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	ins.workDir = dir

	var gomod strings.Builder
	gomod.WriteString("module pyrite-gen-build\n\n")
	fmt.Fprintf(&gomod, "go %s\n\n", ins.goVersion)
	gomod.WriteString("require (\n")
	for _, req := range cfg.GoModRequires() {
		parts := strings.SplitN(req, " ", 2)
		if len(parts) == 2 {
			fmt.Fprintf(&gomod, "\t%s %s\n", parts[0], parts[1])
		} else {
			fmt.Fprintf(&gomod, "\t%s v0.0.0\n", parts[0])
		}
	}
	gomod.WriteString(")\n")
	for _, rep := range cfg.GoModReplaces(ins.configDir) {
		fmt.Fprintf(&gomod, "\nreplace %s\n", rep)
	}
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(gomod.String()), 0o644); err != nil {
		return fmt.Errorf("writing go.mod: %w", err)
	}

	// A dummy importer so go mod tidy resolves versions.
	var dummy strings.Builder
	dummy.WriteString("package main\n\nimport (\n")
	seen := make(map[string]bool)
	for _, m := range cfg.Modules {
		if !seen[m.Pkg] {
			fmt.Fprintf(&dummy, "\t_ %q\n", m.Pkg)
			seen[m.Pkg] = true
		}
	}
	dummy.WriteString(")\n\nfunc main() {}\n")
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(dummy.String()), 0o644); err != nil {
		return fmt.Errorf("writing main.go: %w", err)
	}

	cmd := exec.Command("go", "mod", "tidy")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOWORK=off")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("go mod tidy failed: %s\n%w", string(output), err)
	}
	return nil
}

func (ins *Inspector) loadPackages(pkgPaths []string) error {
	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedSyntax |
			packages.NeedImports |
			packages.NeedDeps,
		Dir: ins.workDir,
		Env: append(os.Environ(), "GOWORK=off"),
	}
	pkgs, err := packages.Load(cfg, pkgPaths...)
	if err != nil {
		return fmt.Errorf("loading packages: %w", err)
	}
	var errs []string
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Msg))
		}
		ins.loadedPkgs[pkg.PkgPath] = pkg
	}
	if len(errs) > 0 {
		return fmt.Errorf("package errors:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (ins *Inspector) resolveModule(mod ModuleSpec) (*ResolvedModule, error) {
	pkg, ok := ins.loadedPkgs[mod.Pkg]
	if !ok {
		return nil, fmt.Errorf("package %s not loaded", mod.Pkg)
	}
	rm := &ResolvedModule{Spec: mod}

	if mod.BindAll {
		scope := pkg.Types.Scope()
		names := scope.Names()
		sort.Strings(names)
		for _, name := range names {
			obj := scope.Lookup(name)
			if !obj.Exported() {
				continue
			}
			switch o := obj.(type) {
			case *types.Func:
				fi, err := ins.resolveFunc(pkg, BindSpec{Func: name}, o)
				if err != nil {
					continue // unbindable shapes are skipped under bind_all
				}
				rm.Funcs = append(rm.Funcs, fi)
			case *types.TypeName:
				ci, err := ins.resolveClass(pkg, BindSpec{Type: name}, o)
				if err != nil {
					continue
				}
				rm.Classes = append(rm.Classes, ci)
			case *types.Const:
				if ci, err := resolveConst(BindSpec{Const: name}, o); err == nil {
					rm.Consts = append(rm.Consts, ci)
				}
			}
		}
		return rm, nil
	}

	for _, bind := range mod.Bind {
		obj := pkg.Types.Scope().Lookup(bindTarget(bind))
		if obj == nil {
			return nil, fmt.Errorf("%s: symbol %q not found", mod.Pkg, bindTarget(bind))
		}
		switch {
		case bind.Func != "":
			fn, ok := obj.(*types.Func)
			if !ok {
				return nil, fmt.Errorf("%s: %q is not a function", mod.Pkg, bind.Func)
			}
			fi, err := ins.resolveFunc(pkg, bind, fn)
			if err != nil {
				return nil, err
			}
			rm.Funcs = append(rm.Funcs, fi)
		case bind.Type != "":
			tn, ok := obj.(*types.TypeName)
			if !ok {
				return nil, fmt.Errorf("%s: %q is not a type", mod.Pkg, bind.Type)
			}
			ci, err := ins.resolveClass(pkg, bind, tn)
			if err != nil {
				return nil, err
			}
			rm.Classes = append(rm.Classes, ci)
		case bind.Const != "":
			cn, ok := obj.(*types.Const)
			if !ok {
				return nil, fmt.Errorf("%s: %q is not a constant", mod.Pkg, bind.Const)
			}
			ci, err := resolveConst(bind, cn)
			if err != nil {
				return nil, err
			}
			rm.Consts = append(rm.Consts, ci)
		}
	}
	return rm, nil
}

func bindTarget(b BindSpec) string {
	switch {
	case b.Func != "":
		return b.Func
	case b.Type != "":
		return b.Type
	}
	return b.Const
}

func (ins *Inspector) resolveFunc(pkg *packages.Package, bind BindSpec, fn *types.Func) (*FuncInfo, error) {
	sig, ok := fn.Type().(*types.Signature)
	if !ok {
		return nil, fmt.Errorf("%s: not a plain function", fn.Name())
	}
	s, err := renderSignature(pkg, sig, bind.SkipContext)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", fn.Name(), err)
	}
	return &FuncInfo{
		GoName:      fn.Name(),
		RuntimeName: bind.RuntimeName(),
		Sig:         s,
		SkipContext: bind.SkipContext && s.HasContext,
		Keywords:    bind.Keywords,
	}, nil
}

func (ins *Inspector) resolveClass(pkg *packages.Package, bind BindSpec, tn *types.TypeName) (*ClassInfo, error) {
	named, ok := tn.Type().(*types.Named)
	if !ok {
		return nil, fmt.Errorf("%s: not a named type", tn.Name())
	}
	if _, ok := named.Underlying().(*types.Struct); !ok {
		return nil, fmt.Errorf("%s: only struct types can be bound as classes", tn.Name())
	}

	include := func(name string) bool {
		for _, ex := range bind.ExcludeMethods {
			if ex == name {
				return false
			}
		}
		if len(bind.Methods) == 0 {
			return true
		}
		for _, in := range bind.Methods {
			if in == name {
				return true
			}
		}
		return false
	}

	ci := &ClassInfo{GoName: tn.Name(), RuntimeName: bind.RuntimeName()}
	mset := types.NewMethodSet(types.NewPointer(named))
	for i := 0; i < mset.Len(); i++ {
		m := mset.At(i).Obj().(*types.Func)
		if !m.Exported() || !include(m.Name()) {
			continue
		}
		sig, ok := m.Type().(*types.Signature)
		if !ok {
			continue
		}
		s, err := renderSignature(pkg, sig, bind.SkipContext)
		if err != nil {
			if len(bind.Methods) > 0 {
				return nil, fmt.Errorf("method %s.%s: %w", tn.Name(), m.Name(), err)
			}
			continue // best-effort when not explicitly whitelisted
		}
		ci.Methods = append(ci.Methods, &MethodInfo{
			GoName:      m.Name(),
			RuntimeName: strings.ToLower(m.Name()[:1]) + m.Name()[1:],
			Sig:         s,
			SkipContext: bind.SkipContext && s.HasContext,
		})
	}
	sort.Slice(ci.Methods, func(i, j int) bool { return ci.Methods[i].GoName < ci.Methods[j].GoName })
	return ci, nil
}

func resolveConst(bind BindSpec, cn *types.Const) (*ConstInfo, error) {
	basic, ok := cn.Type().Underlying().(*types.Basic)
	if !ok {
		return nil, fmt.Errorf("constant %s: unsupported type %s", cn.Name(), cn.Type())
	}
	switch basic.Info() & (types.IsBoolean | types.IsInteger | types.IsFloat | types.IsString) {
	case 0:
		return nil, fmt.Errorf("constant %s: unsupported kind %s", cn.Name(), basic)
	}
	return &ConstInfo{
		GoName:      cn.Name(),
		RuntimeName: bind.RuntimeName(),
		Value:       cn.Val().ExactString(),
	}, nil
}

// renderSignature checks a Go signature against the marshallable surface
// and renders its types as Go source strings.
func renderSignature(pkg *packages.Package, sig *types.Signature, skipContext bool) (*Signature, error) {
	if sig.Variadic() {
		return nil, fmt.Errorf("variadic functions are not bindable")
	}
	if sig.TypeParams() != nil && sig.TypeParams().Len() > 0 {
		return nil, fmt.Errorf("generic functions are not bindable")
	}

	s := &Signature{}
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		t := params.At(i).Type()
		if i == 0 && isContextType(t) {
			s.HasContext = true
			if skipContext {
				continue
			}
			return nil, fmt.Errorf("context.Context parameter requires skip_context")
		}
		if !marshallable(t) {
			return nil, fmt.Errorf("parameter %d: type %s is not marshallable", i, t)
		}
		s.Params = append(s.Params, renderType(pkg, t))
	}

	results := sig.Results()
	for i := 0; i < results.Len(); i++ {
		t := results.At(i).Type()
		if i == results.Len()-1 && isErrorType(t) {
			s.HasError = true
			continue
		}
		if !marshallable(t) {
			return nil, fmt.Errorf("result %d: type %s is not marshallable", i, t)
		}
		s.Results = append(s.Results, renderType(pkg, t))
	}
	if len(s.Results) > 1 {
		return nil, fmt.Errorf("more than one non-error result")
	}
	return s, nil
}

func isContextType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "context" && obj.Name() == "Context"
}

func isErrorType(t types.Type) bool {
	named, ok := t.(*types.Named)
	return ok && named.Obj().Pkg() == nil && named.Obj().Name() == "error"
}

// marshallable reports whether the marshaller can convert t. Mirrors the
// meta.TypeSpec classification.
func marshallable(t types.Type) bool {
	switch u := t.Underlying().(type) {
	case *types.Basic:
		info := u.Info()
		return info&(types.IsBoolean|types.IsInteger|types.IsFloat|types.IsComplex|types.IsString) != 0
	case *types.Slice:
		return marshallable(u.Elem())
	case *types.Array:
		return marshallable(u.Elem())
	case *types.Map:
		return marshallable(u.Key()) && marshallable(u.Elem())
	case *types.Pointer:
		return marshallable(u.Elem())
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			f := u.Field(i)
			if f.Exported() && !marshallable(f.Type()) {
				return false
			}
		}
		return true
	}
	return false
}

// renderType renders t as Go source, qualifying named types with their
// package name.
func renderType(pkg *packages.Package, t types.Type) string {
	return types.TypeString(t, func(p *types.Package) string {
		if p == pkg.Types {
			return pkg.Types.Name()
		}
		return p.Name()
	})
}
