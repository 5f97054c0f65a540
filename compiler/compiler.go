// Package compiler turns a parsed *ast.RuleSet into a Program: the
// pattern table later compiler.CompileWithOptions... (see bytecode.go's
// package doc) hands to the matcher, plus one compiled condition per
// rule that the vm package executes once per scan.
package compiler

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/yaraeng/yarago/ast"
)

// Options configures compilation behavior.
type Options struct {
	// SkipInvalidRegex silently drops string declarations whose regex
	// (or hex-with-alternation rendering) can't be indexed, instead of
	// failing the whole compile.
	SkipInvalidRegex bool

	// SkipSubtypes excludes rules whose meta "subtype" value matches
	// any of the given values. Rules without a subtype meta, or with an
	// empty one, are never filtered.
	SkipSubtypes []string
}

// Compile compiles an AST RuleSet into a Program ready for the matcher
// and vm packages.
func Compile(rs *ast.RuleSet) (*Program, error) {
	return CompileWithOptions(rs, Options{})
}

// CompileWithOptions compiles an AST RuleSet with the given options.
func CompileWithOptions(rs *ast.RuleSet, opts Options) (*Program, error) {
	c := newCompiler(opts)
	return c.compile(rs)
}

type compiler struct {
	opts Options
	prog *Program

	intIdx   map[int64]int
	floatIdx map[float64]int
	strIdx   map[string]int
	callIdx  map[string]int
	identIdx map[string]int

	skipSubtypes map[string]bool
	ruleIndex    map[string]int // rule name -> index into c.prog.Rules
}

func newCompiler(opts Options) *compiler {
	c := &compiler{
		opts:         opts,
		prog:         &Program{},
		intIdx:       map[int64]int{},
		floatIdx:     map[float64]int{},
		strIdx:       map[string]int{},
		callIdx:      map[string]int{},
		identIdx:     map[string]int{},
		skipSubtypes: map[string]bool{},
		ruleIndex:    map[string]int{},
	}
	for _, t := range opts.SkipSubtypes {
		if t != "" {
			c.skipSubtypes[t] = true
		}
	}
	return c
}

// ruleContext holds the per-rule state needed while emitting its
// condition: its declared strings (in order, for "them") and, while
// inside a for-expression body, the names currently bound as loop
// induction variables (innermost last).
type ruleContext struct {
	rule        *ast.Rule
	ruleIndex   int
	stringGroup map[string]int
	stringOrder []string
	loopVars    []string
}

func (c *compiler) compile(rs *ast.RuleSet) (*Program, error) {
	var included []*ast.Rule
	for _, r := range rs.Rules {
		if len(c.skipSubtypes) > 0 {
			if subtype := metaValue(r, "subtype"); subtype != "" && c.skipSubtypes[subtype] {
				continue
			}
		}
		if _, dup := c.ruleIndex[r.Name]; dup {
			return nil, &DuplicateRuleError{Name: r.Name}
		}
		c.ruleIndex[r.Name] = len(included)
		included = append(included, r)
	}

	ctxs := make([]*ruleContext, len(included))
	c.prog.Rules = make([]*CompiledRule, len(included))
	for i, r := range included {
		ctxs[i] = &ruleContext{rule: r, ruleIndex: i, stringGroup: map[string]int{}}
	}

	var errs []error
	var globalIdx []int
	for i, r := range included {
		if r.Global {
			globalIdx = append(globalIdx, i)
		}
	}

	for i, r := range included {
		rc := ctxs[i]
		for _, s := range r.Strings {
			if _, dup := rc.stringGroup[s.Name]; dup && s.Name != "$" {
				errs = append(errs, &DuplicateStringError{Rule: r.Name, Name: s.Name})
				continue
			}
			if err := c.compileStringDef(rc, s); err != nil {
				errs = append(errs, err)
			}
		}

		cr := &CompiledRule{
			Name:       r.Name,
			Tags:       append([]string(nil), r.Tags...),
			Global:     r.Global,
			Private:    r.Private,
			StringRefs: append([]string(nil), rc.stringOrder...),
		}
		for _, m := range r.Meta {
			cr.Meta = append(cr.Meta, MetaEntry{Key: m.Key, Value: m.Value})
		}
		for _, gi := range globalIdx {
			if gi != i {
				cr.GlobalGates = append(cr.GlobalGates, gi)
			}
		}
		c.prog.Rules[i] = cr
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for i, r := range included {
		rc := ctxs[i]
		e := &emitter{c: c, rc: rc}
		if err := e.emitExpr(r.Condition); err != nil {
			errs = append(errs, err)
			continue
		}
		e.emit(OpReturn, 0, 0)
		c.prog.Rules[i].Condition = e.code
		c.prog.Rules[i].Calls = e.calls
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := c.checkRuleCycles(); err != nil {
		return nil, err
	}

	return c.prog, nil
}

func (c *compiler) checkRuleCycles() error {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(c.prog.Rules))
	var path []string
	var visit func(i int) error
	visit = func(i int) error {
		switch color[i] {
		case black:
			return nil
		case gray:
			return &RuleCycleError{Cycle: append(append([]string(nil), path...), c.prog.Rules[i].Name)}
		}
		color[i] = gray
		path = append(path, c.prog.Rules[i].Name)
		for _, callee := range c.prog.Rules[i].Calls {
			if err := visit(callee); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		color[i] = black
		return nil
	}
	for i := range c.prog.Rules {
		if color[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

func metaValue(r *ast.Rule, key string) string {
	for _, m := range r.Meta {
		if m.Key == key {
			if s, ok := m.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// --- constant pool interning ---

func (c *compiler) intConst(v int64) int {
	if i, ok := c.intIdx[v]; ok {
		return i
	}
	i := len(c.prog.IntPool)
	c.prog.IntPool = append(c.prog.IntPool, v)
	c.intIdx[v] = i
	return i
}

func (c *compiler) floatConst(v float64) int {
	if i, ok := c.floatIdx[v]; ok {
		return i
	}
	i := len(c.prog.FloatPool)
	c.prog.FloatPool = append(c.prog.FloatPool, v)
	c.floatIdx[v] = i
	return i
}

func (c *compiler) strConst(v string) int {
	if i, ok := c.strIdx[v]; ok {
		return i
	}
	i := len(c.prog.StrPool)
	c.prog.StrPool = append(c.prog.StrPool, v)
	c.strIdx[v] = i
	return i
}

func (c *compiler) callConst(v string) int {
	if i, ok := c.callIdx[v]; ok {
		return i
	}
	i := len(c.prog.CallPool)
	c.prog.CallPool = append(c.prog.CallPool, v)
	c.callIdx[v] = i
	return i
}

func (c *compiler) identConst(v string) int {
	if i, ok := c.identIdx[v]; ok {
		return i
	}
	i := len(c.prog.IdentPool)
	c.prog.IdentPool = append(c.prog.IdentPool, v)
	c.identIdx[v] = i
	return i
}

func (c *compiler) groupSetConst(groups []int) int {
	i := len(c.prog.GroupSetPool)
	c.prog.GroupSetPool = append(c.prog.GroupSetPool, groups)
	return i
}

// --- string declaration -> atom table ---

func (c *compiler) compileStringDef(rc *ruleContext, s *ast.StringDef) error {
	group := StringGroup{RuleIndex: rc.ruleIndex, Name: s.Name, Fullword: s.Modifiers.Fullword}
	add := func(cp CompiledPattern) {
		cp.RuleIndex = rc.ruleIndex
		cp.StringName = s.Name
		cp.Fullword = s.Modifiers.Fullword
		idx := len(c.prog.Patterns)
		c.prog.Patterns = append(c.prog.Patterns, cp)
		group.Patterns = append(group.Patterns, idx)
	}

	switch v := s.Value.(type) {
	case ast.TextString:
		for _, variant := range c.textVariants([]byte(v.Value), s.Modifiers) {
			if s.Modifiers.Base64 || s.Modifiers.Base64Wide {
				for _, p := range generateBase64Patterns(variant, s.Modifiers.Base64Alph) {
					add(CompiledPattern{Atom: p, Plain: true})
				}
				continue
			}
			add(CompiledPattern{Atom: variant, Plain: true, Nocase: s.Modifiers.Nocase, Wide: s.Modifiers.Wide})
		}

	case ast.RawHexString:
		toks, err := DecodeHex(v.Raw)
		if err != nil {
			return &InvalidHexError{Rule: rc.rule.Name, Name: s.Name, Err: err}
		}
		if bs, ok := isSimpleHexBytes(toks); ok {
			add(CompiledPattern{Atom: bs, Plain: true})
			break
		}
		re := "(?s)" + hexTokensToRegex(toks)
		atoms, hasAtoms := extractAtoms(re, minAtomLen)
		if !hasAtoms {
			// No run reaches minAtomLen (e.g. { AA [1-3] BB }, whose only
			// fixed bytes are each a single byte): fall back to a
			// single-byte atom rather than reject the pattern outright.
			// Less selective, but still lets the AC+windowed-verify
			// architecture find the match instead of silently dropping it.
			atoms, hasAtoms = extractAtoms(re, 1)
		}
		if !hasAtoms {
			if c.opts.SkipInvalidRegex {
				break
			}
			return &InvalidRegexError{Rule: rc.rule.Name, Name: s.Name, Err: fmt.Errorf("hex pattern has no literal run long enough to index")}
		}
		hp := &HexPattern{Tokens: toks, Regex: re}
		for _, atom := range atoms {
			add(CompiledPattern{Atom: atom, Hex: hp})
		}

	case ast.RegexString:
		re := buildRE2Pattern(v.Pattern, v.Modifiers)
		atoms, hasAtoms := extractAtoms(re, minAtomLen)
		if !hasAtoms && !v.Modifiers.CaseInsensitive {
			// Same single-byte-atom fallback as the hex path: a short
			// but otherwise indexable literal run is better than
			// rejecting the pattern.
			atoms, hasAtoms = extractAtoms(re, 1)
		}
		if !hasAtoms || v.Modifiers.CaseInsensitive {
			if c.opts.SkipInvalidRegex {
				break
			}
			return &InvalidRegexError{Rule: rc.rule.Name, Name: s.Name, Err: fmt.Errorf("regex requires a full buffer scan (no indexable atom, or case-insensitive)")}
		}
		rp := &RegexPattern{Source: re, CaseInsensitive: v.Modifiers.CaseInsensitive}
		for _, atom := range atoms {
			add(CompiledPattern{Atom: atom, Regex: rp})
		}
	}

	idx := len(c.prog.StringGroups)
	c.prog.StringGroups = append(c.prog.StringGroups, group)
	rc.stringGroup[s.Name] = idx
	rc.stringOrder = append(rc.stringOrder, s.Name)
	return nil
}

// textVariants expands a literal string declaration's modifiers
// (ascii/wide/nocase/xor) into the concrete byte sequences the matcher
// must search for. Each resulting variant is independent; base64
// expansion (if requested) is applied afterward by the caller.
func (c *compiler) textVariants(data []byte, mods ast.StringModifiers) [][]byte {
	var bases [][]byte
	if mods.Ascii || !mods.Wide {
		bases = append(bases, data)
	}
	if mods.Wide {
		bases = append(bases, toUTF16LE(data))
	}

	var out [][]byte
	for _, b := range bases {
		switch {
		case mods.Nocase:
			out = append(out, dualCaseVariants(b)...)
		case mods.Xor:
			out = append(out, xorVariants(b, mods.XorLo, mods.XorHi)...)
		default:
			out = append(out, b)
		}
	}
	return out
}

func toUTF16LE(b []byte) []byte {
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, c, 0)
	}
	return out
}

// dualCaseVariants approximates case-insensitive matching with the two
// extremes of an all-lowercase and an all-uppercase atom. The matcher
// accepts a hit on either atom as a match with no further check, so an
// occurrence in mixed case (e.g. "HeLLo" for "hello") is not found.
func dualCaseVariants(b []byte) [][]byte {
	lower := append([]byte(nil), b...)
	upper := append([]byte(nil), b...)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			lower[i] = c + 32
		}
		if c >= 'a' && c <= 'z' {
			upper[i] = c - 32
		}
	}
	if bytes.Equal(lower, upper) {
		return [][]byte{lower}
	}
	return [][]byte{lower, upper}
}

func xorVariants(b []byte, lo, hi int) [][]byte {
	out := make([][]byte, 0, hi-lo+1)
	for key := lo; key <= hi; key++ {
		v := make([]byte, len(b))
		for i, c := range b {
			v[i] = c ^ byte(key)
		}
		out = append(out, v)
	}
	return out
}

// generateBase64Patterns renders data's base64 encoding at the three
// possible byte offsets within a base64 3-byte group, since the bytes
// surrounding an embedded base64 blob in a scanned file are unknown and
// shift which characters of the encoding are stable.
func generateBase64Patterns(data []byte, alphabet string) [][]byte {
	enc := base64.StdEncoding
	if alphabet != "" {
		enc = base64.NewEncoding(alphabet)
	}
	offsets := [3]struct{ pad, skip int }{{0, 0}, {1, 2}, {2, 3}}
	var patterns [][]byte
	for _, o := range offsets {
		padded := append(make([]byte, o.pad), data...)
		full := enc.EncodeToString(padded)
		if len(full) <= o.skip {
			continue
		}
		trimmed := strings.TrimRight(full[o.skip:], "=")
		if trim := trailingUnstableChars(len(data) + o.pad); trim > 0 && len(trimmed) > trim {
			trimmed = trimmed[:len(trimmed)-trim]
		}
		if len(trimmed) > 0 {
			patterns = append(patterns, []byte(trimmed))
		}
	}
	return patterns
}

// trailingUnstableChars returns how many trailing base64 characters
// depend on bytes following the data (when its length isn't a multiple
// of 3, the final character(s) mix in bits from whatever comes next).
func trailingUnstableChars(dataLen int) int {
	switch dataLen % 3 {
	case 1:
		return 1
	case 2:
		return 1
	default:
		return 0
	}
}

func buildRE2Pattern(pattern string, mods ast.RegexModifiers) string {
	var prefix string
	if mods.CaseInsensitive {
		prefix = "(?i)"
	}
	if mods.DotMatchesAll {
		prefix += "(?s)"
	}
	if mods.Multiline {
		prefix += "(?m)"
	}
	return prefix + fixCommaQuantifiers(pattern)
}

// fixCommaQuantifiers rewrites {,N} to {0,N}: RE2 treats a bare {,N} as
// literal text rather than a quantifier.
func fixCommaQuantifiers(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '\\' && i+1 < len(pattern) {
			b.WriteByte(pattern[i])
			b.WriteByte(pattern[i+1])
			i++
			continue
		}
		if pattern[i] == '{' && i+1 < len(pattern) && pattern[i+1] == ',' {
			b.WriteString("{0")
			continue
		}
		b.WriteByte(pattern[i])
	}
	return b.String()
}
