// Package gen implements the binding generator for pyrite.
//
// It turns a pyrite.yaml declaration into Go source: for every declared Go
// package it inspects the exported surface with go/packages and emits a
// bind.ModuleDef registration file, so the functions and structs become
// callable objects inside the runtime without hand-written adapters.
//
// The gen package handles:
//   - Parsing and validating pyrite.yaml configuration
//   - Introspecting Go packages via go/packages
//   - Generating module registration code (gen_<alias>.go)
//   - Caching generated artifacts keyed by config content and platform
package gen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level pyrite.yaml configuration.
type Config struct {
	// Modules lists the Go packages exposed as runtime modules.
	Modules []ModuleSpec `yaml:"modules"`
}

// ModuleSpec declares one runtime module backed by a Go package.
type ModuleSpec struct {
	// Pkg is the Go import path (e.g. "github.com/google/uuid").
	Pkg string `yaml:"pkg"`

	// Version is the Go module version constraint. Defaults to "latest".
	// Ignored when Local is set.
	Version string `yaml:"version,omitempty"`

	// Local is a path to a local Go package directory (relative to
	// pyrite.yaml). When set, a replace directive is emitted and the
	// package is not fetched from the network.
	Local string `yaml:"local,omitempty"`

	// Name is the runtime module name scripts import. Defaults to the
	// last non-version segment of Pkg.
	Name string `yaml:"name,omitempty"`

	// Bind lists the symbols to expose. Mutually exclusive with BindAll.
	Bind []BindSpec `yaml:"bind,omitempty"`

	// BindAll exposes every exported function and struct type.
	BindAll bool `yaml:"bind_all,omitempty"`
}

// BindSpec selects one symbol of the package.
type BindSpec struct {
	// Func is a package-level function name. Mutually exclusive with
	// Type and Const.
	Func string `yaml:"func,omitempty"`

	// Type is a struct type name; the type registers as a runtime class
	// with its exported methods. Mutually exclusive with Func and Const.
	Type string `yaml:"type,omitempty"`

	// Const is a package-level constant name, exposed as a module value.
	Const string `yaml:"const,omitempty"`

	// As renames the symbol inside the module. Defaults to the Go name
	// with a lower-cased first letter.
	As string `yaml:"as,omitempty"`

	// Methods whitelists method names for Type bindings; empty means all
	// exported methods.
	Methods []string `yaml:"methods,omitempty"`

	// ExcludeMethods blacklists method names for Type bindings.
	ExcludeMethods []string `yaml:"exclude_methods,omitempty"`

	// SkipContext supplies context.Background() for functions whose
	// first parameter is context.Context instead of exposing it.
	SkipContext bool `yaml:"skip_context,omitempty"`

	// Keywords binds the function's single struct parameter as named
	// keyword arguments instead of a positional record.
	Keywords bool `yaml:"keywords,omitempty"`
}

// LoadConfig reads and parses a pyrite.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses pyrite.yaml content from bytes. The path argument is
// used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for pyrite.yaml starting from dir and walking up to
// parent directories. Returns empty string and nil error if not found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		for _, name := range []string{"pyrite.yaml", "pyrite.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if len(c.Modules) == 0 {
		return fmt.Errorf("%s: no modules defined", path)
	}

	seenNames := make(map[string]string) // module name → pkg
	configDir := filepath.Dir(path)

	for i, mod := range c.Modules {
		if mod.Pkg == "" {
			return fmt.Errorf("%s: modules[%d]: pkg is required", path, i)
		}

		if mod.Local != "" {
			localPath := mod.Local
			if !filepath.IsAbs(localPath) {
				localPath = filepath.Join(configDir, localPath)
			}
			info, err := os.Stat(localPath)
			if err != nil {
				return fmt.Errorf("%s: modules[%d] (%s): local path %q not found: %w",
					path, i, mod.Pkg, mod.Local, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s: modules[%d] (%s): local path %q is not a directory",
					path, i, mod.Pkg, mod.Local)
			}
		}

		if mod.BindAll && len(mod.Bind) > 0 {
			return fmt.Errorf("%s: modules[%d] (%s): bind_all and bind are mutually exclusive",
				path, i, mod.Pkg)
		}
		if !mod.BindAll && len(mod.Bind) == 0 {
			return fmt.Errorf("%s: modules[%d] (%s): either bind or bind_all is required",
				path, i, mod.Pkg)
		}

		for j, bind := range mod.Bind {
			count := 0
			if bind.Func != "" {
				count++
			}
			if bind.Type != "" {
				count++
			}
			if bind.Const != "" {
				count++
			}
			if count == 0 {
				return fmt.Errorf("%s: modules[%d].bind[%d] (%s): one of func, type, or const is required",
					path, i, j, mod.Pkg)
			}
			if count > 1 {
				return fmt.Errorf("%s: modules[%d].bind[%d] (%s): func, type, and const are mutually exclusive",
					path, i, j, mod.Pkg)
			}
			if bind.Const != "" && (len(bind.Methods) > 0 || len(bind.ExcludeMethods) > 0 ||
				bind.SkipContext || bind.Keywords) {
				return fmt.Errorf("%s: modules[%d].bind[%d] (%s): const bindings only support 'as'",
					path, i, j, mod.Pkg)
			}
			if bind.Func != "" && (len(bind.Methods) > 0 || len(bind.ExcludeMethods) > 0) {
				return fmt.Errorf("%s: modules[%d].bind[%d] (%s): methods is only valid with type",
					path, i, j, mod.Pkg)
			}
		}

		name := mod.ModuleName()
		if prev, ok := seenNames[name]; ok && prev != mod.Pkg {
			return fmt.Errorf("%s: modules[%d]: module name %q conflicts with %s",
				path, i, name, prev)
		}
		seenNames[name] = mod.Pkg
	}

	return nil
}

// setDefaults fills in default values for omitted fields.
func (c *Config) setDefaults() {
	for i := range c.Modules {
		if c.Modules[i].Version == "" && !c.Modules[i].IsLocal() {
			c.Modules[i].Version = "latest"
		}
	}
}

// IsLocal reports whether the module points to a local directory.
func (m *ModuleSpec) IsLocal() bool { return m.Local != "" }

// ModuleName returns the runtime module name: Name if set, otherwise the
// last non-version segment of the package path.
func (m *ModuleSpec) ModuleName() string {
	if m.Name != "" {
		return m.Name
	}
	parts := strings.Split(m.Pkg, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if !isVersionSegment(parts[i]) {
			return parts[i]
		}
	}
	return parts[len(parts)-1]
}

// isVersionSegment reports whether seg looks like "v2", "v9", ....
func isVersionSegment(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	for _, c := range seg[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// RuntimeName returns the runtime-visible name of one binding.
func (b *BindSpec) RuntimeName() string {
	if b.As != "" {
		return b.As
	}
	name := b.Func
	if name == "" {
		name = b.Type
	}
	if name == "" {
		name = b.Const
	}
	if name == "" {
		return ""
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// GoModRequires returns "pkg version" require lines for the generated
// workspace go.mod. Local modules get v0.0.0 and a replace directive.
func (c *Config) GoModRequires() []string {
	seen := make(map[string]bool)
	var requires []string
	for _, m := range c.Modules {
		if seen[m.Pkg] {
			continue
		}
		seen[m.Pkg] = true
		if m.IsLocal() {
			requires = append(requires, m.Pkg+" v0.0.0")
			continue
		}
		version := m.Version
		if version == "latest" {
			version = ""
		}
		requires = append(requires, strings.TrimSpace(m.Pkg+" "+version))
	}
	return requires
}

// GoModReplaces returns "pkg => absolute_path" replace lines for local
// modules, resolving relative paths against configDir.
func (c *Config) GoModReplaces(configDir string) []string {
	seen := make(map[string]bool)
	var replaces []string
	for _, m := range c.Modules {
		if !m.IsLocal() || seen[m.Pkg] {
			continue
		}
		seen[m.Pkg] = true
		localPath := m.Local
		if !filepath.IsAbs(localPath) {
			localPath = filepath.Join(configDir, localPath)
		}
		if abs, err := filepath.Abs(localPath); err == nil {
			localPath = abs
		}
		replaces = append(replaces, m.Pkg+" => "+localPath)
	}
	return replaces
}
