package embed

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Run is the driver behind generated binaries: with no arguments it lists
// the assembled modules, otherwise it calls "module.function" with the
// remaining arguments parsed as literals and prints the result.
func (h *Host) Run(args []string) error {
	if len(args) == 0 {
		names := make([]string, 0, len(h.modules))
		for name := range h.modules {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	module, fn, ok := strings.Cut(args[0], ".")
	if !ok {
		return fmt.Errorf("expected module.function, got %q", args[0])
	}
	callArgs := make([]interface{}, len(args)-1)
	for i, raw := range args[1:] {
		callArgs[i] = parseLiteral(raw)
	}

	out, err := h.Call(module, fn, callArgs...)
	if err != nil {
		return err
	}
	if out != nil {
		fmt.Println(formatValue(out))
	}
	return nil
}

// parseLiteral interprets a command-line argument: bool and numeric forms
// first, anything else stays a string.
func parseLiteral(s string) interface{} {
	switch s {
	case "true", "True":
		return true
	case "false", "False":
		return false
	case "none", "None":
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func formatValue(v interface{}) string {
	if b, ok := v.([]byte); ok {
		return fmt.Sprintf("%x", b)
	}
	return fmt.Sprintf("%v", v)
}
