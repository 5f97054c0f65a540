package modules

import (
	"fmt"
	"io"
	"strings"

	"github.com/yaraeng/yarago/vm"
)

// Console implements the "console" module: debug output from inside a
// condition, grounded on r-yara-modules/src/console.rs. Every function
// always returns true so it can be chained with "and" inside a
// condition without changing the result. SPEC_FULL.md wires this as a
// no-op in production scans (Writer is nil) unless a DebugWriter is set
// on scanner.ScanOptions, mirroring the Rust module writing to stderr
// only behind a debug flag.
type Console struct {
	Writer io.Writer
}

func (c Console) write(msg string) bool {
	if c.Writer != nil {
		fmt.Fprintf(c.Writer, "[yara] %s\n", msg)
	}
	return true
}

// Log writes message verbatim.
func (c Console) Log(message string) bool { return c.write(message) }

// Hex writes value as a 0x-prefixed hexadecimal integer.
func (c Console) Hex(value int64) bool { return c.write(fmt.Sprintf("0x%x", value)) }

// LogInt substitutes the first "{}" in format with value.
func (c Console) LogInt(format string, value int64) bool {
	return c.write(strings.Replace(format, "{}", fmt.Sprintf("%d", value), 1))
}

// LogStr substitutes the first "{}" in format with value.
func (c Console) LogStr(format, value string) bool {
	return c.write(strings.Replace(format, "{}", value, 1))
}

// Call dispatches a qualified "console.*" function call.
func (c Console) Call(name string, args []vm.Value) (vm.Value, bool) {
	switch name {
	case "log":
		if len(args) == 1 {
			return vm.BoolVal(c.Log(args[0].AsString())), true
		}
	case "hex":
		if len(args) == 1 {
			return vm.BoolVal(c.Hex(args[0].AsInt())), true
		}
	case "log_int":
		if len(args) == 2 {
			return vm.BoolVal(c.LogInt(args[0].AsString(), args[1].AsInt())), true
		}
	case "log_str":
		if len(args) == 2 {
			return vm.BoolVal(c.LogStr(args[0].AsString(), args[1].AsString())), true
		}
	}
	return vm.Undefined(), false
}
