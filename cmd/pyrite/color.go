package main

import (
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// stderr gets colored tags only when it is a real terminal and the
// NO_COLOR convention (https://no-color.org/) is not in effect.
var (
	colorOnce sync.Once
	colorOn   bool
)

func useColor() bool {
	colorOnce.Do(func() {
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return
		}
		if os.Getenv("TERM") == "dumb" {
			return
		}
		colorOn = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	})
	return colorOn
}

func errorTag() string {
	if useColor() {
		return "\x1b[31merror:\x1b[0m"
	}
	return "error:"
}

func okTag() string {
	if useColor() {
		return "\x1b[32mok\x1b[0m"
	}
	return "ok"
}
