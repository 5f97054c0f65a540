package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// HexToken is one element of a decoded hex pattern.
type HexToken interface{ hexToken() }

// HexByte is a fully-specified byte, "4D".
type HexByte struct{ Value byte }

func (HexByte) hexToken() {}

// HexWildcard is "??", matching any byte.
type HexWildcard struct{}

func (HexWildcard) hexToken() {}

// HexNibble is a half-specified byte, "?D" or "4?": High or Low gives the
// fixed nibble and HighWild/LowWild marks which side is wild.
type HexNibble struct {
	HighWild bool
	LowWild  bool
	High     byte // valid iff !HighWild
	Low      byte // valid iff !LowWild
}

func (HexNibble) hexToken() {}

// HexJump is "[n]", "[lo-hi]", "[lo-]", "[-hi]" or "[-]". Min/Max are nil
// when unspecified; both nil means unbounded in both directions.
type HexJump struct {
	Min *int
	Max *int
}

func (HexJump) hexToken() {}

// HexAlt is a parenthesized alternation of full token sequences,
// "(AA BB | CC ?? | ( DD | EE ) FF)". Each alternative is itself a
// sequence of HexTokens, not just a single byte, so alternatives can mix
// literal runs, wildcards, nibbles and nested alternations.
type HexAlt struct {
	Alternatives [][]HexToken
}

func (HexAlt) hexToken() {}

// HexPattern wraps a decoded hex token sequence so the matcher package
// can carry both the tokens (for backtracking verification) and a
// precompiled RE2 rendering (for the fast-path scan) without recomputing
// either on every hit.
type HexPattern struct {
	Tokens []HexToken
	Regex  string // hexTokensToRegex(Tokens), precomputed once at compile time
}

// DecodeHex parses the raw text captured between a hex pattern's braces
// (as produced by parser.Lexer.ReadHexBlock) into a token sequence. The
// lexer treats hex blocks as opaque text; this is the sub-grammar the
// spec assigns to the compiler rather than the parser.
func DecodeHex(raw string) ([]HexToken, error) {
	d := &hexDecoder{src: raw}
	toks, err := d.sequence()
	if err != nil {
		return nil, err
	}
	d.skipSpace()
	if !d.eof() {
		return nil, fmt.Errorf("hex string: unexpected %q at offset %d", d.cur(), d.pos)
	}
	return toks, nil
}

type hexDecoder struct {
	src string
	pos int
}

func (d *hexDecoder) eof() bool  { return d.pos >= len(d.src) }
func (d *hexDecoder) cur() byte  { return d.src[d.pos] }
func (d *hexDecoder) skipSpace() {
	for !d.eof() && (d.cur() == ' ' || d.cur() == '\t' || d.cur() == '\n' || d.cur() == '\r') {
		d.pos++
	}
}

func isHexNibbleChar(c byte) bool {
	return c == '?' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// sequence parses a run of tokens up to (but not consuming) a closing
// ')', '|' or end of input.
func (d *hexDecoder) sequence() ([]HexToken, error) {
	var out []HexToken
	for {
		d.skipSpace()
		if d.eof() || d.cur() == ')' || d.cur() == '|' {
			return out, nil
		}
		switch {
		case d.cur() == '[':
			tok, err := d.jump()
			if err != nil {
				return nil, err
			}
			out = append(out, tok)
		case d.cur() == '(':
			tok, err := d.alt()
			if err != nil {
				return nil, err
			}
			out = append(out, tok)
		case isHexNibbleChar(d.cur()):
			tok, err := d.byteOrNibble()
			if err != nil {
				return nil, err
			}
			out = append(out, tok)
		default:
			return nil, fmt.Errorf("hex string: unexpected %q at offset %d", d.cur(), d.pos)
		}
	}
}

func (d *hexDecoder) byteOrNibble() (HexToken, error) {
	if d.pos+1 >= len(d.src) || !isHexNibbleChar(d.src[d.pos+1]) {
		return nil, fmt.Errorf("hex string: truncated byte at offset %d", d.pos)
	}
	hi, lo := d.src[d.pos], d.src[d.pos+1]
	d.pos += 2

	hiWild := hi == '?'
	loWild := lo == '?'
	if !hiWild && !loWild {
		v, err := strconv.ParseUint(string([]byte{hi, lo}), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("hex string: invalid byte %q%q: %w", hi, lo, err)
		}
		return HexByte{Value: byte(v)}, nil
	}
	if hiWild && loWild {
		return HexWildcard{}, nil
	}
	n := HexNibble{HighWild: hiWild, LowWild: loWild}
	if !hiWild {
		v, _ := strconv.ParseUint(string(hi), 16, 8)
		n.High = byte(v)
	}
	if !loWild {
		v, _ := strconv.ParseUint(string(lo), 16, 8)
		n.Low = byte(v)
	}
	return n, nil
}

func (d *hexDecoder) jump() (HexToken, error) {
	start := d.pos
	d.pos++ // '['
	d.skipSpace()

	var j HexJump
	if !d.eof() && d.cur() != '-' {
		n, err := d.readInt()
		if err != nil {
			return nil, err
		}
		j.Min = &n
	}
	d.skipSpace()
	if !d.eof() && d.cur() == '-' {
		d.pos++
		d.skipSpace()
		if !d.eof() && d.cur() != ']' {
			n, err := d.readInt()
			if err != nil {
				return nil, err
			}
			j.Max = &n
		}
	} else if j.Min != nil {
		// "[n]" with no dash means an exact jump of n.
		j.Max = j.Min
	}
	d.skipSpace()
	if d.eof() || d.cur() != ']' {
		return nil, fmt.Errorf("hex string: unterminated jump starting at offset %d", start)
	}
	d.pos++
	return j, nil
}

func (d *hexDecoder) readInt() (int, error) {
	start := d.pos
	for !d.eof() && d.cur() >= '0' && d.cur() <= '9' {
		d.pos++
	}
	if d.pos == start {
		return 0, fmt.Errorf("hex string: expected a number at offset %d", start)
	}
	n, err := strconv.Atoi(d.src[start:d.pos])
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (d *hexDecoder) alt() (HexToken, error) {
	start := d.pos
	d.pos++ // '('
	var alts [][]HexToken
	for {
		seq, err := d.sequence()
		if err != nil {
			return nil, err
		}
		alts = append(alts, seq)
		d.skipSpace()
		if d.eof() {
			return nil, fmt.Errorf("hex string: unterminated alternation starting at offset %d", start)
		}
		if d.cur() == '|' {
			d.pos++
			continue
		}
		if d.cur() == ')' {
			d.pos++
			break
		}
		return nil, fmt.Errorf("hex string: unexpected %q in alternation at offset %d", d.cur(), d.pos)
	}
	return HexAlt{Alternatives: alts}, nil
}

// hexTokensToRegex renders a decoded hex token sequence as an RE2
// pattern operating over single bytes (i.e. intended for use with
// experimental.CompileLatin1, one pseudo-rune per byte). Consecutive
// wildcards collapse to a single repetition, matching the teacher's
// regex-based hex matching strategy.
func hexTokensToRegex(toks []HexToken) string {
	var b strings.Builder
	i := 0
	for i < len(toks) {
		switch t := toks[i].(type) {
		case HexByte:
			fmt.Fprintf(&b, "\\x%02x", t.Value)
		case HexWildcard:
			n := 1
			for i+n < len(toks) {
				if _, ok := toks[i+n].(HexWildcard); !ok {
					break
				}
				n++
			}
			if n == 1 {
				b.WriteByte('.')
			} else {
				fmt.Fprintf(&b, ".{%d}", n)
			}
			i += n - 1
		case HexNibble:
			b.WriteString(nibbleClass(t))
		case HexJump:
			writeHexJumpRegex(&b, t)
		case HexAlt:
			b.WriteString("(?:")
			for j, alt := range t.Alternatives {
				if j > 0 {
					b.WriteByte('|')
				}
				b.WriteString(hexTokensToRegex(alt))
			}
			b.WriteByte(')')
		}
		i++
	}
	return b.String()
}

// nibbleClass renders a half-wildcard byte as a non-capturing alternation
// group, (?:\xNN|...), over the 16 concrete byte values sharing the
// fixed nibble.
func nibbleClass(n HexNibble) string {
	var b strings.Builder
	b.WriteString("(?:")
	for v := 0; v < 256; v++ {
		hi, lo := byte(v>>4), byte(v&0xf)
		if !n.HighWild && hi != n.High {
			continue
		}
		if !n.LowWild && lo != n.Low {
			continue
		}
		if b.Len() > 3 {
			b.WriteByte('|')
		}
		fmt.Fprintf(&b, "\\x%02x", v)
	}
	b.WriteByte(')')
	return b.String()
}

func writeHexJumpRegex(b *strings.Builder, j HexJump) {
	switch {
	case j.Min == nil && j.Max == nil:
		b.WriteString(".*")
	case j.Min != nil && j.Max != nil && *j.Min == *j.Max:
		fmt.Fprintf(b, ".{%d}", *j.Min)
	case j.Min != nil && j.Max != nil:
		fmt.Fprintf(b, ".{%d,%d}", *j.Min, *j.Max)
	case j.Min != nil:
		fmt.Fprintf(b, ".{%d,}", *j.Min)
	case j.Max != nil:
		fmt.Fprintf(b, ".{0,%d}", *j.Max)
	}
}

// isSimpleHexBytes reports whether toks is a plain run of concrete bytes
// with no wildcards, nibbles, jumps or alternations, letting the
// compiler add it straight to the Aho-Corasick pattern table instead of
// going through regex verification.
func isSimpleHexBytes(toks []HexToken) ([]byte, bool) {
	out := make([]byte, 0, len(toks))
	for _, t := range toks {
		b, ok := t.(HexByte)
		if !ok {
			return nil, false
		}
		out = append(out, b.Value)
	}
	return out, true
}
