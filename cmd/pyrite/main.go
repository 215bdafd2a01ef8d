package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/funvibe/pyrite/internal/archive"
	"github.com/funvibe/pyrite/internal/gen"
	"github.com/funvibe/pyrite/pkg/embed"
)

// pyriteModulePath is the import path generated code binds against.
// Can be overridden at build time: -ldflags "-X main.pyriteModulePath=..."
var pyriteModulePath = "github.com/funvibe/pyrite"

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [arguments]

Commands:
  gen [config]            generate host bindings from pyrite.yaml
  clean                   remove the generation cache
  pack <out.zip> <files>  store files in a STORE-only zip archive
  run <module.fn> [args]  call a standard bound module function
  help                    show this message
`, os.Args[0])
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "help", "-help", "--help":
		usage()
		return
	case "gen":
		err = handleGen(os.Args[2:])
	case "clean":
		err = handleClean()
	case "pack":
		err = handlePack(os.Args[2:])
	case "run":
		err = handleRun(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "%s unknown command %q\n", errorTag(), os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorTag(), err)
		os.Exit(1)
	}
}

// handleGen resolves the config, consults the artifact cache and emits a
// generated host project.
func handleGen(args []string) error {
	configPath := ""
	force := false
	for _, arg := range args {
		if arg == "-f" || arg == "--force" {
			force = true
			continue
		}
		if configPath != "" {
			return fmt.Errorf("gen takes at most one config path")
		}
		configPath = arg
	}

	if configPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		configPath, err = gen.FindConfig(cwd)
		if err != nil {
			return err
		}
	}

	cfg, err := gen.LoadConfig(configPath)
	if err != nil {
		return err
	}
	fingerprint, err := gen.ConfigFingerprint(configPath)
	if err != nil {
		return err
	}

	cache := gen.NewCache(filepath.Dir(configPath))
	if !force {
		if dir := cache.Lookup(fingerprint, runtime.GOOS, runtime.GOARCH); dir != "" {
			fmt.Printf("%s %s (cached)\n", okTag(), dir)
			return nil
		}
	}

	inspector := gen.NewInspector(hostGoVersion())
	inspector.SetConfigDir(filepath.Dir(configPath))
	defer inspector.Cleanup()

	result, err := inspector.Inspect(cfg)
	if err != nil {
		return err
	}
	files, err := gen.NewCodeGenerator(pyriteModulePath).Generate(result)
	if err != nil {
		return err
	}
	dir, err := cache.Store(files, fingerprint, runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s (%d files)\n", okTag(), dir, len(files))
	return nil
}

func handleClean() error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	return gen.NewCache(cwd).Clean()
}

// handlePack writes the named files into a STORE-only archive, keeping
// each file's modification time.
func handlePack(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: pack <out.zip> <file> [file...]")
	}
	out, err := os.Create(args[0])
	if err != nil {
		return err
	}
	defer out.Close()

	zw := archive.NewWriter(out)
	for _, path := range args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		mtime := time.Now()
		if info, err := os.Stat(path); err == nil {
			mtime = info.ModTime()
		}
		if err := zw.Add(filepath.ToSlash(path), data, mtime); err != nil {
			return fmt.Errorf("adding %s: %w", path, err)
		}
	}
	return zw.Close()
}

// handleRun starts a host with only the standard modules and forwards to
// the embed driver.
func handleRun(args []string) error {
	host, err := embed.Start()
	if err != nil {
		return err
	}
	defer host.Close()
	return host.Run(args)
}

// hostGoVersion extracts "1.25.3" from runtime.Version's "go1.25.3".
func hostGoVersion() string {
	v := strings.TrimPrefix(runtime.Version(), "go")
	if i := strings.IndexFunc(v, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	}); i > 0 {
		v = v[:i]
	}
	return v
}
