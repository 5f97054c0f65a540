package matcher_test

import (
	"testing"

	"github.com/yaraeng/yarago/compiler"
	"github.com/yaraeng/yarago/matcher"
	"github.com/yaraeng/yarago/parser"
)

func compileRule(t *testing.T, src string) *compiler.Program {
	t.Helper()
	rs, err := parser.New().Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, err := compiler.Compile(rs)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return prog
}

func TestMatcherPlainLiteral(t *testing.T) {
	prog := compileRule(t, `
rule r {
    strings:
        $a = "hello"
    condition:
        $a
}
`)
	m, err := matcher.New(prog)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	matches, err := m.Scan([]byte("say hello world"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if matches.Count(0) != 1 {
		t.Fatalf("expected 1 match, got %d", matches.Count(0))
	}
	if off, ok := matches.Offset(0, 0); !ok || off != 4 {
		t.Errorf("expected offset 4, got %d ok=%v", off, ok)
	}
}

func TestMatcherFullword(t *testing.T) {
	prog := compileRule(t, `
rule r {
    strings:
        $a = "cat" fullword
    condition:
        $a
}
`)
	m, err := matcher.New(prog)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	matches, err := m.Scan([]byte("concatenate a cat here"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if matches.Count(0) != 1 {
		t.Fatalf("expected 1 fullword match, got %d", matches.Count(0))
	}
}

func TestMatcherHexWithJump(t *testing.T) {
	prog := compileRule(t, `
rule r {
    strings:
        $a = { 4D 5A [2-4] 90 90 }
    condition:
        $a
}
`)
	m, err := matcher.New(prog)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data := []byte{0x4D, 0x5A, 0, 0, 0, 0x90, 0x90}
	matches, err := m.Scan(data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if matches.Count(0) != 1 {
		t.Fatalf("expected 1 hex match, got %d", matches.Count(0))
	}
}

func TestMatcherHexWithOnlySingleByteAnchorsStillMatches(t *testing.T) {
	prog := compileRule(t, `
rule j {
    strings:
        $a = { AA [1-3] BB }
    condition:
        $a
}
`)
	m, err := matcher.New(prog)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data := []byte{0xAA, 0, 0xBB}
	matches, err := m.Scan(data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if matches.Count(0) != 1 {
		t.Fatalf("expected 1 match despite no 2-byte literal anchor, got %d", matches.Count(0))
	}
	if off, ok := matches.Offset(0, 0); !ok || off != 0 {
		t.Errorf("expected match at offset 0, got %d ok=%v", off, ok)
	}
	if ln, ok := matches.Length(0, 0); !ok || ln != 3 {
		t.Errorf("expected match length 3, got %d ok=%v", ln, ok)
	}
}

func TestMatcherCountInIsHalfOpen(t *testing.T) {
	prog := compileRule(t, `
rule t {
    strings:
        $t = "x"
    condition:
        $t
}
`)
	m, err := matcher.New(prog)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// "x" at offsets 0,1,3,4,5.
	matches, err := m.Scan([]byte("xxyxxx"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n := matches.CountIn(0, 0, 3); n != 2 {
		t.Errorf("expected #t in (0..3) == 2 (half-open, offsets 0 and 1), got %d", n)
	}
}

func TestMatcherRegex(t *testing.T) {
	prog := compileRule(t, `
rule r {
    strings:
        $a = /evil[0-9]{2}/
    condition:
        $a
}
`)
	m, err := matcher.New(prog)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	matches, err := m.Scan([]byte("this is evil42 for sure"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if matches.Count(0) != 1 {
		t.Fatalf("expected 1 regex match, got %d", matches.Count(0))
	}
}

func TestMatcherNoMatch(t *testing.T) {
	prog := compileRule(t, `
rule r {
    strings:
        $a = "needle"
    condition:
        $a
}
`)
	m, err := matcher.New(prog)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	matches, err := m.Scan([]byte("nothing to see here"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if matches.Any(0) {
		t.Error("expected no match")
	}
}
