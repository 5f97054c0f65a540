package scanner

import (
	"strings"

	"github.com/yaraeng/yarago/modules"
	"github.com/yaraeng/yarago/vm"
)

// scanContext implements vm.Environment for one ScanBytes call. It wraps
// the scanned buffer plus every module yarago ships: hash/math/console/
// time are always available, pe/elf are parsed once from the buffer and
// answer Undefined for every field when the buffer isn't that file type.
type scanContext struct {
	data       []byte
	entrypoint int64

	hash    modules.Hash
	math    modules.Math
	console modules.Console
	time    modules.Time

	pe    modules.PE
	peOK  bool
	elf   modules.ELF
	elfOK bool
}

func newScanContext(data []byte, opts ScanOptions) *scanContext {
	sc := &scanContext{
		data:       data,
		entrypoint: opts.Entrypoint,
		hash:       modules.Hash{Buffer: data},
		math:       modules.Math{Buffer: data},
		console:    modules.Console{Writer: opts.DebugWriter},
		time:       modules.Time{Now: opts.Timestamp},
	}
	sc.pe, sc.peOK = modules.ParsePE(data)
	sc.elf, sc.elfOK = modules.ParseELF(data)
	return sc
}

func (c *scanContext) Filesize() int64  { return int64(len(c.data)) }
func (c *scanContext) Entrypoint() int64 { return c.entrypoint }
func (c *scanContext) Buffer() []byte   { return c.data }

// ResolveIdent resolves a dotted module/global identifier path such as
// "pe.number_of_sections" or "pe.linker_version.major". The compiler
// flattens any run of plain dotted field access into a single
// OpLoadIdent carrying the whole path (see compiler/emit.go), so this
// must itself walk every "."-separated segment after the first through
// vm.Fielder.Field rather than expecting a single-level lookup.
func (c *scanContext) ResolveIdent(path string) (vm.Value, error) {
	parts := strings.Split(path, ".")
	v, ok := c.moduleRoot(parts[0])
	if !ok {
		return vm.Undefined(), nil
	}
	for _, seg := range parts[1:] {
		if v.Kind != vm.KindObject {
			return vm.Undefined(), nil
		}
		fl, ok := v.Obj.(vm.Fielder)
		if !ok {
			return vm.Undefined(), nil
		}
		var err error
		v, err = fl.Field(seg)
		if err != nil {
			return vm.Undefined(), err
		}
	}
	return v, nil
}

// moduleRoot resolves the first segment of a dotted identifier to its
// module value. ok is false only when name isn't a recognized module
// (an identifier referencing an import yarago doesn't support); when the
// module is recognized but the buffer didn't parse as that file type,
// moduleRoot still reports ok=true with an Undefined value, since
// "pe.number_of_sections" on a non-PE file is a defined (always
// undefined) YARA access, not an unknown identifier.
func (c *scanContext) moduleRoot(name string) (vm.Value, bool) {
	switch name {
	case "hash":
		return vm.ObjVal(c.hash), true
	case "math":
		return vm.ObjVal(c.math), true
	case "console":
		return vm.ObjVal(c.console), true
	case "time":
		return vm.ObjVal(c.time), true
	case "pe":
		if !c.peOK {
			return vm.Undefined(), true
		}
		return vm.ObjVal(c.pe), true
	case "elf":
		if !c.elfOK {
			return vm.Undefined(), true
		}
		return vm.ObjVal(c.elf), true
	}
	return vm.Undefined(), false
}

// CallFunction dispatches a qualified call such as "hash.md5(0, filesize)".
// The compiler only ever emits OpCall for a flat dotted Identifier
// callee (see compiler/emit.go's calleeName), so splitting on the first
// "." recovers exactly (module, function).
func (c *scanContext) CallFunction(name string, args []vm.Value) (vm.Value, error) {
	dot := strings.IndexByte(name, '.')
	if dot < 0 {
		return vm.Undefined(), &vm.UnknownFunctionError{Name: name}
	}
	mod, fn := name[:dot], name[dot+1:]
	switch mod {
	case "hash":
		if v, ok := c.hash.Call(fn, args); ok {
			return v, nil
		}
	case "math":
		if v, ok := c.math.Call(fn, args); ok {
			return v, nil
		}
	case "console":
		if v, ok := c.console.Call(fn, args); ok {
			return v, nil
		}
	case "time":
		if v, ok := c.time.Call(fn, args); ok {
			return v, nil
		}
	}
	return vm.Undefined(), &vm.UnknownFunctionError{Name: name}
}
