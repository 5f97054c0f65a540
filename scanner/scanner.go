// Package scanner ties the parser, compiler, matcher, and vm packages
// together into the public rule-scanning API: compile rule source into a
// CompiledRules, then scan a buffer, a file, or a directory tree against
// it. It is the YARA-facing seam: everything below here works in terms of
// bytecode and atom matches, everything above here works in terms of
// rules and matched strings.
package scanner

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/yaraeng/yarago/ast"
	"github.com/yaraeng/yarago/compiler"
	"github.com/yaraeng/yarago/matcher"
	"github.com/yaraeng/yarago/parser"
	"github.com/yaraeng/yarago/vm"
)

// defaultScanTimeout bounds how long condition evaluation may run against
// one buffer before a scan gives up, matching the teacher's ScanMem
// discipline of never blocking a caller indefinitely on a pathological
// rule set.
const defaultScanTimeout = 30 * time.Second

// MatchString is a single matched string within a rule, named by its
// declaration ($name) and carrying the bytes that matched plus its
// offset in the scanned buffer.
type MatchString struct {
	Name   string
	Offset int64
	Data   []byte
}

// Meta is one key/value entry from a rule's meta: block. Value is a
// string, int64, or bool, matching the three literal types YARA's meta
// syntax accepts.
type Meta struct {
	Identifier string
	Value      any
}

// MatchRule is one rule that matched during a scan.
type MatchRule struct {
	Rule    string
	Tags    []string
	Metas   []Meta
	Strings []MatchString
}

// Meta returns the value of the meta field with the given identifier, or
// nil if the rule has no such field.
func (m *MatchRule) Meta(identifier string) any {
	for _, meta := range m.Metas {
		if meta.Identifier == identifier {
			return meta.Value
		}
	}
	return nil
}

// MetaString returns the string value of a meta field, or defValue if
// the field is missing or isn't a string.
func (m *MatchRule) MetaString(identifier, defValue string) string {
	if val, ok := m.Meta(identifier).(string); ok {
		return val
	}
	return defValue
}

// HasTag reports whether the rule was declared with the given tag.
func (m *MatchRule) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// CompileOptions controls rule compilation.
type CompileOptions struct {
	// SkipInvalidRegex drops strings whose regex fails to translate to
	// RE2 syntax instead of failing the whole compile, matching the
	// teacher's best-effort corpus-compilation mode.
	SkipInvalidRegex bool
	// SkipSubtypes lists meta "subtype" values; a rule whose "subtype"
	// meta equals one of them is left out of the compiled rules.
	SkipSubtypes []string
}

func (o CompileOptions) toCompiler() compiler.Options {
	return compiler.Options{SkipInvalidRegex: o.SkipInvalidRegex, SkipSubtypes: o.SkipSubtypes}
}

// ScanOptions controls one scan call.
type ScanOptions struct {
	// Timeout bounds condition evaluation; zero uses defaultScanTimeout.
	Timeout time.Duration
	// Entrypoint is the PE/ELF entry point reported to the "entrypoint"
	// keyword, when known; zero when scanning non-executable data.
	Entrypoint int64
	// Timestamp feeds the "time" module's now() function. It is left at
	// the caller's discretion (rather than read from the wall clock
	// internally) so that scanning the same target twice with the same
	// compiled rules and the same ScanOptions yields identical matches.
	Timestamp int64
	// DebugWriter receives console.log/hex/log_int/log_str output, when
	// set. Left nil, the console module is a silent no-op.
	DebugWriter io.Writer
}

// CompiledRules is a rule set compiled and linked into bytecode, ready to
// scan any number of buffers.
type CompiledRules struct {
	Program *compiler.Program
	Imports []string

	matcher *matcher.Matcher
	// groupIndex maps a rule's declared string name to its StringGroups
	// index, so ScanBytes can look up match offsets per $name without
	// rescanning Program.StringGroups on every scan.
	groupIndex []map[string]int
}

// Compile parses and compiles YARA rule source into a CompiledRules
// using default options.
func Compile(source string) (*CompiledRules, error) {
	return CompileWithOptions(source, CompileOptions{})
}

// CompileWithOptions is Compile with explicit CompileOptions.
func CompileWithOptions(source string, opts CompileOptions) (*CompiledRules, error) {
	rs, err := parser.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("scanner: parsing rules: %w", err)
	}
	return compileRuleSet(rs, opts)
}

// FromFiles reads and concatenates one or more rule files, then compiles
// them as a single rule set using default options, matching YARA's
// multi-file compilation model where later files can reference rules
// declared in earlier ones.
func FromFiles(paths ...string) (*CompiledRules, error) {
	return FromFilesWithOptions(paths, CompileOptions{})
}

// FromFilesWithOptions is FromFiles with explicit CompileOptions.
func FromFilesWithOptions(paths []string, opts CompileOptions) (*CompiledRules, error) {
	var src []byte
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("scanner: reading %s: %w", p, err)
		}
		src = append(src, data...)
		src = append(src, '\n')
	}
	rs, err := parser.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("scanner: parsing rules: %w", err)
	}
	return compileRuleSet(rs, opts)
}

func compileRuleSet(rs *ast.RuleSet, opts CompileOptions) (*CompiledRules, error) {
	prog, err := compiler.CompileWithOptions(rs, opts.toCompiler())
	if err != nil {
		return nil, fmt.Errorf("scanner: compiling rules: %w", err)
	}
	m, err := matcher.New(prog)
	if err != nil {
		return nil, fmt.Errorf("scanner: building matcher: %w", err)
	}
	return &CompiledRules{
		Program:    prog,
		Imports:    rs.Imports,
		matcher:    m,
		groupIndex: buildGroupIndex(prog),
	}, nil
}

// buildGroupIndex maps each rule's declared string names to its
// StringGroups index, so ScanBytes can resolve $name -> match offsets
// without a linear scan of Program.StringGroups per rule per scan.
func buildGroupIndex(prog *compiler.Program) []map[string]int {
	idx := make([]map[string]int, len(prog.Rules))
	for i := range idx {
		idx[i] = make(map[string]int)
	}
	for gi, g := range prog.StringGroups {
		if g.RuleIndex < 0 || g.RuleIndex >= len(idx) {
			continue
		}
		idx[g.RuleIndex][g.Name] = gi
	}
	return idx
}

// ScanBytes scans data against cr, returning every non-private rule whose
// condition is satisfied, in the rules' declaration order. A rule whose
// condition errors at evaluation time (stack underflow, unknown
// function, division by zero, ...) is treated as non-matching; the error
// is reported through opts.DebugWriter when set and every other rule
// still evaluates.
func (cr *CompiledRules) ScanBytes(data []byte, opts ScanOptions) ([]MatchRule, error) {
	matches, err := cr.matcher.Scan(data)
	if err != nil {
		return nil, fmt.Errorf("scanner: matching patterns: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultScanTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sc := newScanContext(data, opts)
	ev := vm.NewEvaluator(cr.Program, matches, sc)

	var out []MatchRule
	for i, rule := range cr.Program.Rules {
		if rule.Global {
			continue
		}
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		ok, evalErr := ev.EvaluateRule(i)
		if evalErr != nil {
			if opts.DebugWriter != nil {
				fmt.Fprintf(opts.DebugWriter, "scanner: rule %q: %v\n", rule.Name, evalErr)
			}
			continue
		}
		if !ok || rule.Private {
			continue
		}
		out = append(out, cr.buildMatchRule(i, rule, matches, data))
	}
	return out, nil
}

func (cr *CompiledRules) buildMatchRule(ruleIndex int, rule *compiler.CompiledRule, matches *matcher.Matches, data []byte) MatchRule {
	metas := make([]Meta, len(rule.Meta))
	for i, m := range rule.Meta {
		metas[i] = Meta{Identifier: m.Key, Value: m.Value}
	}

	var strs []MatchString
	for _, name := range rule.StringRefs {
		gi, ok := cr.groupIndex[ruleIndex][name]
		if !ok {
			continue
		}
		count := matches.Count(gi)
		for i := int64(0); i < int64(count); i++ {
			off, ok := matches.Offset(gi, i)
			if !ok {
				continue
			}
			ln, _ := matches.Length(gi, i)
			var matched []byte
			if off >= 0 && off+ln <= int64(len(data)) {
				matched = append(matched, data[off:off+ln]...)
			}
			strs = append(strs, MatchString{Name: name, Offset: off, Data: matched})
		}
	}

	return MatchRule{Rule: rule.Name, Tags: rule.Tags, Metas: metas, Strings: strs}
}

// ScanFile memory-maps filename and scans it, matching the teacher's
// mmap-backed ScanFile so large files don't need to be read fully into
// the heap before scanning.
func (cr *CompiledRules) ScanFile(filename string, opts ScanOptions) ([]MatchRule, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return cr.ScanBytes(nil, opts)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	defer unix.Munmap(data)

	return cr.ScanBytes(data, opts)
}

// DirectoryResult is one file's outcome from ScanDirectory: either a
// (possibly empty) set of matches, or an I/O error that prevented the
// file from being scanned. A per-file error never aborts the walk.
type DirectoryResult struct {
	Path    string
	Matches []MatchRule
	Err     error
}

// ScanDirectory walks root, scanning every regular file it finds.
// Traversal descends into subdirectories only when recursive is true. A
// file that can't be opened, mapped, or read is reported as a
// DirectoryResult with Err set; it does not stop the walk.
func (cr *CompiledRules) ScanDirectory(root string, recursive bool, opts ScanOptions) ([]DirectoryResult, error) {
	var results []DirectoryResult
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			results = append(results, DirectoryResult{Path: path, Err: err})
			return nil
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		matches, scanErr := cr.ScanFile(path, opts)
		results = append(results, DirectoryResult{Path: path, Matches: matches, Err: scanErr})
		return nil
	})
	return results, walkErr
}
