// Package matcher runs a compiler.Program's pattern table against a
// byte buffer: every atom is searched for with a single Aho-Corasick
// automaton, and hits on a non-literal pattern (hex with jumps, regex)
// are verified with a windowed RE2 scan centered on the atom, the same
// way the teacher's scanner verified regex atom hits.
package matcher

import (
	"fmt"
	"sort"

	regexp "github.com/wasilibs/go-re2"
	"github.com/wasilibs/go-re2/experimental"

	"github.com/yaraeng/yarago/ahocorasick"
	"github.com/yaraeng/yarago/compiler"
)

// halfWindow bounds how far on either side of an atom hit the matcher
// looks for a full verified match; this caps worst-case regex cost per
// hit while comfortably covering realistic jump/quantifier spans.
const halfWindow = 512

// Matcher holds everything built once from a compiler.Program: the
// Aho-Corasick automaton over every pattern's atom plus the compiled
// RE2 programs backing hex and regex verification.
type Matcher struct {
	prog      *compiler.Program
	ac        *ahocorasick.AhoCorasick
	regexes   map[*compiler.RegexPattern]*regexp.Regexp
	hexRegex  map[*compiler.HexPattern]*regexp.Regexp
	groupOf   []int // pattern index -> StringGroups index
}

// New builds a Matcher from a compiled program.
func New(prog *compiler.Program) (*Matcher, error) {
	m := &Matcher{
		prog:     prog,
		regexes:  make(map[*compiler.RegexPattern]*regexp.Regexp),
		hexRegex: make(map[*compiler.HexPattern]*regexp.Regexp),
		groupOf:  make([]int, len(prog.Patterns)),
	}

	if len(prog.Patterns) > 0 {
		atoms := make([][]byte, len(prog.Patterns))
		for i, p := range prog.Patterns {
			atoms[i] = p.Atom
		}
		builder := ahocorasick.NewAhoCorasickBuilder()
		ac := builder.BuildByte(atoms)
		m.ac = &ac
	}

	for gi, g := range prog.StringGroups {
		for _, pi := range g.Patterns {
			m.groupOf[pi] = gi
		}
	}

	for i := range prog.Patterns {
		p := &prog.Patterns[i]
		if p.Regex != nil {
			if _, ok := m.regexes[p.Regex]; !ok {
				re, err := experimental.CompileLatin1(p.Regex.Source)
				if err != nil {
					return nil, fmt.Errorf("matcher: compiling regex %q: %w", p.Regex.Source, err)
				}
				m.regexes[p.Regex] = re
			}
		}
		if p.Hex != nil {
			if _, ok := m.hexRegex[p.Hex]; !ok {
				re, err := experimental.CompileLatin1(p.Hex.Regex)
				if err != nil {
					return nil, fmt.Errorf("matcher: compiling hex pattern %q: %w", p.Hex.Regex, err)
				}
				m.hexRegex[p.Hex] = re
			}
		}
	}

	return m, nil
}

// Span is a half-open byte range, [Start, End), of a verified match.
type Span struct {
	Start, End int
}

func (s Span) Len() int64 { return int64(s.End - s.Start) }

// Matches is the result of scanning one buffer: every verified match
// span, grouped by the StringGroups index of the declared string it
// belongs to.
type Matches struct {
	groups [][]Span
}

// Count returns #name: how many times the string matched.
func (m *Matches) Count(group int) int {
	if group < 0 || group >= len(m.groups) {
		return 0
	}
	return len(m.groups[group])
}

// CountIn returns #name in (lo..hi): the half-open range lo <= offset < hi.
func (m *Matches) CountIn(group int, lo, hi int64) int {
	n := 0
	for _, s := range m.spansOf(group) {
		if int64(s.Start) >= lo && int64(s.Start) < hi {
			n++
		}
	}
	return n
}

// At reports whether $name matched starting exactly at pos.
func (m *Matches) At(group int, pos int64) bool {
	for _, s := range m.spansOf(group) {
		if int64(s.Start) == pos {
			return true
		}
	}
	return false
}

// In reports whether $name matched anywhere within (lo..hi).
func (m *Matches) In(group int, lo, hi int64) bool {
	return m.CountIn(group, lo, hi) > 0
}

// Any reports whether $name matched at all.
func (m *Matches) Any(group int) bool { return m.Count(group) > 0 }

// Offset returns @name[index], the index-th match's start (0-based).
func (m *Matches) Offset(group int, index int64) (int64, bool) {
	spans := m.spansOf(group)
	if index < 0 || index >= int64(len(spans)) {
		return 0, false
	}
	return int64(spans[index].Start), true
}

// Length returns !name[index], the index-th match's length (0-based).
func (m *Matches) Length(group int, index int64) (int64, bool) {
	spans := m.spansOf(group)
	if index < 0 || index >= int64(len(spans)) {
		return 0, false
	}
	return spans[index].Len(), true
}

func (m *Matches) spansOf(group int) []Span {
	if group < 0 || group >= len(m.groups) {
		return nil
	}
	return m.groups[group]
}

// Scan finds every verified pattern match in data.
func (m *Matcher) Scan(data []byte) (*Matches, error) {
	groups := make([][]Span, len(m.prog.StringGroups))
	if m.ac == nil {
		return &Matches{groups: groups}, nil
	}

	iter := m.ac.IterOverlappingByte(data)
	for {
		hit := iter.Next()
		if hit == nil {
			break
		}
		pat := &m.prog.Patterns[hit.Pattern()]
		span, ok := m.verify(pat, data, hit.Start(), hit.End())
		if !ok {
			continue
		}
		group := m.groupOf[hit.Pattern()]
		sg := &m.prog.StringGroups[group]
		if sg.Fullword && !checkWordBoundary(data, span.Start, span.End) {
			continue
		}
		groups[group] = append(groups[group], span)
	}

	for i := range groups {
		groups[i] = dedupeSpans(groups[i])
	}
	return &Matches{groups: groups}, nil
}

func (m *Matcher) verify(pat *compiler.CompiledPattern, data []byte, atomStart, atomEnd int) (Span, bool) {
	switch {
	case pat.Plain:
		return Span{atomStart, atomEnd}, true
	case pat.Regex != nil:
		return m.windowedVerify(m.regexes[pat.Regex], data, atomStart)
	case pat.Hex != nil:
		return m.windowedVerify(m.hexRegex[pat.Hex], data, atomStart)
	}
	return Span{}, false
}

func (m *Matcher) windowedVerify(re *regexp.Regexp, data []byte, pos int) (Span, bool) {
	start := pos - halfWindow
	if start < 0 {
		start = 0
	}
	end := pos + halfWindow
	if end > len(data) {
		end = len(data)
	}
	loc := re.FindIndex(data[start:end])
	if loc == nil {
		return Span{}, false
	}
	return Span{start + loc[0], start + loc[1]}, true
}

func isWordChar(b byte) bool {
	return (b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9') ||
		b == '_'
}

func checkWordBoundary(buf []byte, start, end int) bool {
	if start > 0 && isWordChar(buf[start-1]) {
		return false
	}
	if end < len(buf) && isWordChar(buf[end]) {
		return false
	}
	return true
}

func dedupeSpans(spans []Span) []Span {
	if len(spans) <= 1 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	j := 1
	for i := 1; i < len(spans); i++ {
		if spans[i] != spans[j-1] {
			spans[j] = spans[i]
			j++
		}
	}
	return spans[:j]
}
