// Package parser turns YARA rule source into an *ast.RuleSet. It is a
// hand-written recursive-descent parser: lexing and parsing are driven
// from the same Parser value, with the parser calling the lexer's
// context-sensitive ReadHexBlock/ReadRegexLit helpers exactly where the
// grammar expects a pattern value. There is no error recovery: parsing
// stops at the first syntax error and returns a single diagnostic
// carrying a source span, per the "one diagnostic, no cascades" stance
// used throughout this package.
package parser

import (
	"fmt"
	"os"

	"github.com/yaraeng/yarago/ast"
)

// SyntaxError is the single diagnostic a failed parse returns.
type SyntaxError struct {
	Span     ast.Span
	Got      string
	Expected string
}

func (e *SyntaxError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("syntax error at %d: unexpected %s", e.Span.Start, e.Got)
	}
	return fmt.Sprintf("syntax error at %d: unexpected %s, expected %s", e.Span.Start, e.Got, e.Expected)
}

// Parser parses one source file's worth of tokens.
type Parser struct {
	lex *Lexer
	tok Token
	src string
}

// New creates a Parser with no source loaded; call ParseFile or Parse to
// use it.
func New() *Parser { return &Parser{} }

// ParseFile reads path and parses it.
func (p *Parser) ParseFile(path string) (*ast.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(string(data))
}

// Parse parses src as a complete rule file.
func (p *Parser) Parse(src string) (rs *ast.RuleSet, err error) {
	p.src = src
	p.lex = NewLexer(src)
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *SyntaxError:
				err = e
			case *LexError:
				err = e
			default:
				panic(r)
			}
		}
	}()
	p.advance()
	return p.parseRuleSet(), nil
}

// Parse is a package-level convenience wrapper around New().Parse.
func Parse(src string) (*ast.RuleSet, error) { return New().Parse(src) }

// ParseFile is a package-level convenience wrapper around New().ParseFile.
func ParseFile(path string) (*ast.RuleSet, error) { return New().ParseFile(path) }

func (p *Parser) advance() {
	t, err := p.lex.Next()
	if err != nil {
		panic(err)
	}
	p.tok = t
}

func (p *Parser) at(k Kind) bool { return p.tok.Kind == k }

func (p *Parser) fail(expected string) {
	panic(&SyntaxError{Span: p.tok.Span, Got: tokenDesc(p.tok), Expected: expected})
}

func tokenDesc(t Token) string {
	if t.Kind == EOF {
		return "end of file"
	}
	if t.Text != "" {
		return fmt.Sprintf("%q", t.Text)
	}
	return fmt.Sprintf("token %d", t.Kind)
}

func (p *Parser) expect(k Kind, desc string) Token {
	if !p.at(k) {
		p.fail(desc)
	}
	t := p.tok
	p.advance()
	return t
}

// spanFrom builds an ast.Span from a start offset to the current lexer
// position, i.e. covering everything consumed since start.
func (p *Parser) spanFrom(start int) ast.Span {
	return ast.Span{Start: start, End: p.lex.Pos()}
}

// ---- top level ------------------------------------------------------

func (p *Parser) parseRuleSet() *ast.RuleSet {
	rs := &ast.RuleSet{}
	for p.at(KW_IMPORT) {
		p.advance()
		lit := p.expect(STRING_LIT, "quoted module name")
		rs.Imports = append(rs.Imports, lit.Text)
	}
	for !p.at(EOF) {
		rs.Rules = append(rs.Rules, p.parseRule())
	}
	return rs
}

func (p *Parser) parseRule() *ast.Rule {
	start := p.tok.Span.Start
	r := &ast.Rule{}
	for p.at(KW_PRIVATE) || p.at(KW_GLOBAL) {
		if p.at(KW_PRIVATE) {
			r.Private = true
		} else {
			r.Global = true
		}
		p.advance()
	}
	p.expect(KW_RULE, "'rule'")
	name := p.expect(IDENT, "rule name")
	r.Name = name.Text

	if p.at(COLON) {
		p.advance()
		for p.at(IDENT) {
			r.Tags = append(r.Tags, p.tok.Text)
			p.advance()
		}
		if len(r.Tags) == 0 {
			p.fail("at least one tag")
		}
	}

	p.expect(LBRACE, "'{'")
	if p.at(KW_META) {
		p.advance()
		p.expect(COLON, "':'")
		r.Meta = p.parseMetaEntries()
	}
	if p.at(KW_STRINGS) {
		p.advance()
		p.expect(COLON, "':'")
		r.Strings = p.parseStringDefs()
	}
	p.expect(KW_CONDITION, "'condition'")
	p.expect(COLON, "':'")
	r.Condition = p.parseExpr()
	p.expect(RBRACE, "'}'")

	r.Span = p.spanFrom(start)
	return r
}

// ---- meta -------------------------------------------------------------

func (p *Parser) parseMetaEntries() []*ast.MetaEntry {
	var out []*ast.MetaEntry
	for p.at(IDENT) {
		key := p.tok.Text
		p.advance()
		p.expect(ASSIGN, "'='")
		var val any
		switch {
		case p.at(STRING_LIT):
			val = p.tok.Text
			p.advance()
		case p.at(KW_TRUE):
			val = true
			p.advance()
		case p.at(KW_FALSE):
			val = false
			p.advance()
		case p.at(MINUS):
			p.advance()
			n := p.expect(INT_LIT, "integer")
			val = -n.Int
		case p.at(INT_LIT):
			val = p.tok.Int
			p.advance()
		default:
			p.fail("meta value (string, integer or boolean)")
		}
		out = append(out, &ast.MetaEntry{Key: key, Value: val})
	}
	return out
}

// ---- strings ------------------------------------------------------------

func (p *Parser) parseStringDefs() []*ast.StringDef {
	var out []*ast.StringDef
	for p.at(STRING_IDENT) {
		start := p.tok.Span.Start
		name := p.tok.Text
		p.advance()
		if !p.at(ASSIGN) {
			p.fail("'='")
		}
		// Rewind the lexer to just past '=' so the value is read by the
		// context-sensitive readers below rather than as ordinary tokens.
		p.lex.SetPos(p.tok.Span.End)

		var val ast.StringValue
		switch p.lex.PeekByte() {
		case '"':
			t, err := p.lex.ReadQuotedString()
			if err != nil {
				panic(err)
			}
			val = ast.TextString{Value: t.Text}
		case '{':
			t, err := p.lex.ReadHexBlock()
			if err != nil {
				panic(err)
			}
			val = ast.RawHexString{Raw: t.Text}
		case '/':
			t, err := p.lex.ReadRegexLit()
			if err != nil {
				panic(err)
			}
			pat, flags := splitRegexText(t.Text)
			mods := ast.RegexModifiers{}
			for _, f := range flags {
				switch f {
				case 'i':
					mods.CaseInsensitive = true
				case 's':
					mods.DotMatchesAll = true
				case 'm':
					mods.Multiline = true
				}
			}
			val = ast.RegexString{Pattern: pat, Modifiers: mods}
		default:
			p.fail("string value (quoted text, hex pattern or /regex/)")
		}
		p.advance()

		def := &ast.StringDef{Name: name, Value: val}
		def.Modifiers = p.parseStringModifiers()
		def.Span = p.spanFrom(start)
		out = append(out, def)
	}
	return out
}

func splitRegexText(raw string) (pattern, flags string) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == 0 {
			return raw[:i], raw[i+1:]
		}
	}
	return raw, ""
}

func (p *Parser) parseStringModifiers() ast.StringModifiers {
	var m ast.StringModifiers
	for {
		switch {
		case p.at(IDENT) && p.tok.Text == "nocase":
			m.Nocase = true
			p.advance()
		case p.at(IDENT) && p.tok.Text == "wide":
			m.Wide = true
			p.advance()
		case p.at(IDENT) && p.tok.Text == "ascii":
			m.Ascii = true
			p.advance()
		case p.at(IDENT) && p.tok.Text == "fullword":
			m.Fullword = true
			p.advance()
		case p.at(KW_PRIVATE):
			m.Private = true
			p.advance()
		case p.at(IDENT) && p.tok.Text == "xor":
			m.Xor = true
			m.XorLo, m.XorHi = 0, 255
			p.advance()
			if p.at(LPAREN) {
				p.advance()
				lo := p.expect(INT_LIT, "xor range lower bound")
				m.XorLo = int(lo.Int)
				m.XorHi = m.XorLo
				if p.at(MINUS) {
					p.advance()
					hi := p.expect(INT_LIT, "xor range upper bound")
					m.XorHi = int(hi.Int)
				}
				p.expect(RPAREN, "')'")
			}
		case p.at(IDENT) && p.tok.Text == "base64wide":
			m.Base64Wide = true
			p.advance()
			m.Base64Alph = p.parseOptionalAlphabet()
		case p.at(IDENT) && p.tok.Text == "base64":
			m.Base64 = true
			p.advance()
			m.Base64Alph = p.parseOptionalAlphabet()
		default:
			return m
		}
	}
}

func (p *Parser) parseOptionalAlphabet() string {
	if !p.at(LPAREN) {
		return ""
	}
	p.advance()
	lit := p.expect(STRING_LIT, "base64 alphabet string")
	p.expect(RPAREN, "')'")
	return lit.Text
}

// ---- expressions --------------------------------------------------------
//
// Precedence, low to high:
//
//	or
//	and
//	not
//	relational (== != < <= > >= contains icontains startswith istartswith
//	            endswith iendswith matches iequals)
//	bitwise or  |
//	bitwise xor ^
//	bitwise and &
//	shift       << >>
//	additive    + -
//	multiplicative * \ %
//	unary       - ~
//	primary

func (p *Parser) parseExpr() ast.Expr { return p.parseOr() }

func (p *Parser) parseOr() ast.Expr {
	start := p.tok.Span.Start
	left := p.parseAnd()
	for p.at(KW_OR) {
		p.advance()
		right := p.parseAnd()
		left = ast.BinaryExpr{Op: "or", Left: left, Right: right, Span: p.spanFrom(start)}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	start := p.tok.Span.Start
	left := p.parseNot()
	for p.at(KW_AND) {
		p.advance()
		right := p.parseNot()
		left = ast.BinaryExpr{Op: "and", Left: left, Right: right, Span: p.spanFrom(start)}
	}
	return left
}

func (p *Parser) parseNot() ast.Expr {
	if p.at(KW_NOT) {
		start := p.tok.Span.Start
		p.advance()
		operand := p.parseNot()
		return ast.UnaryExpr{Op: "not", Operand: operand, Span: p.spanFrom(start)}
	}
	return p.parseRelational()
}

var relOps = map[Kind]string{
	EQ: "==", NEQ: "!=", LT: "<", LE: "<=", GT: ">", GE: ">=",
	KW_CONTAINS: "contains", KW_ICONTAINS: "icontains",
	KW_STARTSWITH: "startswith", KW_ISTARTSWITH: "istartswith",
	KW_ENDSWITH: "endswith", KW_IENDSWITH: "iendswith",
	KW_MATCHES: "matches", KW_IEQUALS: "iequals",
}

func (p *Parser) parseRelational() ast.Expr {
	start := p.tok.Span.Start
	left := p.parseBitOr()
	if op, ok := relOps[p.tok.Kind]; ok {
		p.advance()
		right := p.parseBitOr()
		return ast.BinaryExpr{Op: op, Left: left, Right: right, Span: p.spanFrom(start)}
	}
	return left
}

func (p *Parser) parseBitOr() ast.Expr {
	start := p.tok.Span.Start
	left := p.parseBitXor()
	for p.at(PIPE) {
		p.advance()
		right := p.parseBitXor()
		left = ast.BinaryExpr{Op: "|", Left: left, Right: right, Span: p.spanFrom(start)}
	}
	return left
}

func (p *Parser) parseBitXor() ast.Expr {
	start := p.tok.Span.Start
	left := p.parseBitAnd()
	for p.at(CARET) {
		p.advance()
		right := p.parseBitAnd()
		left = ast.BinaryExpr{Op: "^", Left: left, Right: right, Span: p.spanFrom(start)}
	}
	return left
}

func (p *Parser) parseBitAnd() ast.Expr {
	start := p.tok.Span.Start
	left := p.parseShift()
	for p.at(AMP) {
		p.advance()
		right := p.parseShift()
		left = ast.BinaryExpr{Op: "&", Left: left, Right: right, Span: p.spanFrom(start)}
	}
	return left
}

func (p *Parser) parseShift() ast.Expr {
	start := p.tok.Span.Start
	left := p.parseAdditive()
	for p.at(SHL) || p.at(SHR) {
		op := "<<"
		if p.at(SHR) {
			op = ">>"
		}
		p.advance()
		right := p.parseAdditive()
		left = ast.BinaryExpr{Op: op, Left: left, Right: right, Span: p.spanFrom(start)}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expr {
	start := p.tok.Span.Start
	left := p.parseMultiplicative()
	for p.at(PLUS) || p.at(MINUS) {
		op := "+"
		if p.at(MINUS) {
			op = "-"
		}
		p.advance()
		right := p.parseMultiplicative()
		left = ast.BinaryExpr{Op: op, Left: left, Right: right, Span: p.spanFrom(start)}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expr {
	start := p.tok.Span.Start
	left := p.parseUnary()
	for p.at(STAR) || p.at(SLASH) || p.at(PERCENT) {
		op := "*"
		switch p.tok.Kind {
		case SLASH:
			op = "\\"
		case PERCENT:
			op = "%"
		}
		p.advance()
		right := p.parseUnary()
		left = ast.BinaryExpr{Op: op, Left: left, Right: right, Span: p.spanFrom(start)}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	if p.at(MINUS) || p.at(TILDE) {
		start := p.tok.Span.Start
		op := "-"
		if p.at(TILDE) {
			op = "~"
		}
		p.advance()
		operand := p.parseUnary()
		return ast.UnaryExpr{Op: op, Operand: operand, Span: p.spanFrom(start)}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	start := p.tok.Span.Start
	base := p.parsePrimary()
	for {
		switch {
		case p.at(DOT):
			p.advance()
			field := p.expect(IDENT, "field name")
			if id, ok := base.(ast.Identifier); ok {
				id.Path = append(append([]string{}, id.Path...), field.Text)
				base = id
			} else {
				base = ast.FieldAccess{Base: base, Field: field.Text, Span: p.spanFrom(start)}
			}
		case p.at(LPAREN):
			p.advance()
			var args []ast.Expr
			if !p.at(RPAREN) {
				args = append(args, p.parseExpr())
				for p.at(COMMA) {
					p.advance()
					args = append(args, p.parseExpr())
				}
			}
			p.expect(RPAREN, "')'")
			base = ast.FuncCall{Callee: base, Args: args, Span: p.spanFrom(start)}
		case p.at(LBRACKET):
			p.advance()
			idx := p.parseExpr()
			p.expect(RBRACKET, "']'")
			base = ast.IndexExpr{Base: base, Index: idx, Span: p.spanFrom(start)}
		default:
			return base
		}
	}
}

// parsePrimary dispatches to the quantified "<quantifier> of <set>" form
// when the grammar allows it at this position, then falls back to a
// plain primary expression.
//
// "all"/"any"/"none" are reserved words that only ever introduce a
// quantifier, so they are unambiguous. A leading integer, float, or
// parenthesized expression is ambiguous between a quantifier count
// ("2 of ($a,$b)") and an ordinary arithmetic primary ("2 + 3"); that
// case is resolved by tentatively parsing a quantifier and backtracking
// via tryParseQuantifiedExpr if it turns out not to be followed by 'of'.
func (p *Parser) parsePrimary() ast.Expr {
	switch {
	case p.at(KW_ALL), p.at(KW_ANY), p.at(KW_NONE):
		return p.parseQuantifiedExpr()
	case p.at(KW_FOR):
		return p.parseForExpr()
	case p.at(INT_LIT), p.at(FLOAT_LIT), p.at(LPAREN):
		if e, ok := p.tryParseQuantifiedExpr(); ok {
			return e
		}
	}
	return p.parseSimplePrimary()
}

// tryParseQuantifiedExpr attempts to parse a "<count>[%] of <set>"
// expression starting at the current token, restoring parser and lexer
// state and returning ok=false if the 'of' never materializes or the
// attempt otherwise fails to parse.
func (p *Parser) tryParseQuantifiedExpr() (expr ast.Expr, ok bool) {
	savedPos := p.lex.Pos()
	savedTok := p.tok
	defer func() {
		if r := recover(); r != nil {
			p.lex.SetPos(savedPos)
			p.tok = savedTok
			expr, ok = nil, false
		}
	}()
	start := p.tok.Span.Start
	q := p.parseQuantifier()
	if !p.at(KW_OF) {
		panic("backtrack: not a quantified expression")
	}
	p.advance()
	set := p.parseStringSet()
	return ast.OfExpr{Quantifier: q, Set: set, Span: p.spanFrom(start)}, true
}

// parseSimplePrimary parses every primary form except the quantified
// "of" expression, which parsePrimary handles (with backtracking) before
// falling here.
func (p *Parser) parseSimplePrimary() ast.Expr {
	start := p.tok.Span.Start
	switch {
	case p.at(KW_TRUE):
		p.advance()
		return ast.BoolLit{Value: true, Span: p.spanFrom(start)}
	case p.at(KW_FALSE):
		p.advance()
		return ast.BoolLit{Value: false, Span: p.spanFrom(start)}
	case p.at(INT_LIT):
		v := p.tok.Int
		p.advance()
		return ast.IntLit{Value: v, Span: p.spanFrom(start)}
	case p.at(FLOAT_LIT):
		v := p.tok.Float
		p.advance()
		return ast.FloatLit{Value: v, Span: p.spanFrom(start)}
	case p.at(STRING_LIT):
		v := p.tok.Text
		p.advance()
		return ast.StringLit{Value: v, Span: p.spanFrom(start)}
	case p.at(KW_FILESIZE):
		p.advance()
		return ast.Filesize{Span: p.spanFrom(start)}
	case p.at(KW_ENTRYPOINT):
		p.advance()
		return ast.Entrypoint{Span: p.spanFrom(start)}
	case p.at(STRING_IDENT):
		return p.parseStringRefExpr()
	case p.at(COUNT_IDENT):
		name := p.tok.Text
		p.advance()
		var rng *ast.Range
		if p.at(KW_IN) {
			p.advance()
			r := p.parseRange()
			rng = &r
		}
		return ast.StringCount{Name: name, Range: rng, Span: p.spanFrom(start)}
	case p.at(OFFSET_IDENT):
		name := p.tok.Text
		p.advance()
		var idx ast.Expr
		if p.at(LBRACKET) {
			p.advance()
			idx = p.parseExpr()
			p.expect(RBRACKET, "']'")
		}
		return ast.StringOffset{Name: name, Index: idx, Span: p.spanFrom(start)}
	case p.at(LENGTH_IDENT):
		name := p.tok.Text
		p.advance()
		var idx ast.Expr
		if p.at(LBRACKET) {
			p.advance()
			idx = p.parseExpr()
			p.expect(RBRACKET, "']'")
		}
		return ast.StringLength{Name: name, Index: idx, Span: p.spanFrom(start)}
	case p.at(LPAREN):
		p.advance()
		inner := p.parseExpr()
		p.expect(RPAREN, "')'")
		return ast.ParenExpr{Inner: inner, Span: p.spanFrom(start)}
	case p.at(IDENT):
		name := p.tok.Text
		p.advance()
		return ast.Identifier{Path: []string{name}, Span: p.spanFrom(start)}
	}
	p.fail("expression")
	return nil
}

func (p *Parser) parseStringRefExpr() ast.Expr {
	start := p.tok.Span.Start
	name := p.tok.Text
	p.advance()
	switch {
	case p.at(KW_AT):
		p.advance()
		pos := p.parsePrimary()
		return ast.AtExpr{Name: name, Pos: pos, Span: p.spanFrom(start)}
	case p.at(KW_IN):
		p.advance()
		r := p.parseRange()
		return ast.InExpr{Name: name, Range: r, Span: p.spanFrom(start)}
	}
	return ast.StringRef{Name: name, Span: p.spanFrom(start)}
}

func (p *Parser) parseRange() ast.Range {
	start := p.tok.Span.Start
	p.expect(LPAREN, "'('")
	lo := p.parseExpr()
	p.expect(DOTDOT, "'..'")
	hi := p.parseExpr()
	p.expect(RPAREN, "')'")
	return ast.Range{Lo: lo, Hi: hi, Span: p.spanFrom(start)}
}

// parseQuantifier parses the left-hand side of an "of" or "for"
// expression: all, any, none, or a count (optionally a percentage).
// The count, when present, is itself only a simple primary (never a
// quantified expression) to avoid infinite recursion through
// tryParseQuantifiedExpr.
func (p *Parser) parseQuantifier() ast.Quantifier {
	switch {
	case p.at(KW_ALL):
		p.advance()
		return ast.Quantifier{All: true}
	case p.at(KW_ANY):
		p.advance()
		return ast.Quantifier{Any: true}
	case p.at(KW_NONE):
		p.advance()
		return ast.Quantifier{None: true}
	}
	count := p.parseSimplePrimary()
	pct := false
	if p.at(PERCENT) {
		p.advance()
		pct = true
	}
	return ast.Quantifier{Count: count, Percent: pct}
}

// parseStringSet parses "them", a parenthesized list of $names, or a
// parenthesized $prefix* wildcard standing alone, after "of".
func (p *Parser) parseStringSet() ast.StringSet {
	if p.at(KW_THEM) {
		p.advance()
		return ast.StringSet{Them: true}
	}
	p.expect(LPAREN, "'(' or 'them'")
	var set ast.StringSet
	for {
		id := p.expect(STRING_IDENT, "string identifier")
		if n := len(id.Text); n > 0 && id.Text[n-1] == '*' {
			if len(set.Names) > 0 || p.at(COMMA) {
				p.fail("a $prefix* wildcard as the only member of the set")
			}
			set.Prefix = id.Text[:n-1]
		} else {
			set.Names = append(set.Names, id.Text)
		}
		if p.at(COMMA) {
			p.advance()
			continue
		}
		break
	}
	p.expect(RPAREN, "')'")
	return set
}

func (p *Parser) parseQuantifiedExpr() ast.Expr {
	start := p.tok.Span.Start
	q := p.parseQuantifier()
	p.expect(KW_OF, "'of'")
	set := p.parseStringSet()
	return ast.OfExpr{Quantifier: q, Set: set, Span: p.spanFrom(start)}
}

func (p *Parser) parseForExpr() ast.Expr {
	start := p.tok.Span.Start
	p.expect(KW_FOR, "'for'")
	q := p.parseQuantifier()

	fe := &ast.ForExpr{Quantifier: q}
	if p.at(KW_OF) {
		p.advance()
		set := p.parseStringSet()
		fe.Iterable = ast.SetIterable{Set: set}
	} else {
		fe.Vars = append(fe.Vars, p.expect(IDENT, "loop variable").Text)
		for p.at(COMMA) {
			p.advance()
			fe.Vars = append(fe.Vars, p.expect(IDENT, "loop variable").Text)
		}
		p.expect(KW_IN, "'in'")
		fe.Iterable = p.parseIterable()
	}
	p.expect(COLON, "':'")
	p.expect(LPAREN, "'('")
	fe.Body = p.parseExpr()
	p.expect(RPAREN, "')'")
	fe.Span = p.spanFrom(start)
	return *fe
}

// parseIterable parses the iterable after "in" in a for-expression: a
// range, a parenthesized expression list, or a string set.
func (p *Parser) parseIterable() ast.Iterable {
	if p.at(KW_THEM) {
		p.advance()
		return ast.SetIterable{Set: ast.StringSet{Them: true}}
	}
	if p.at(STRING_IDENT) {
		return ast.SetIterable{Set: p.parseStringSet()}
	}
	p.expect(LPAREN, "'('")
	first := p.parseExpr()
	if p.at(DOTDOT) {
		p.advance()
		hi := p.parseExpr()
		p.expect(RPAREN, "')'")
		return ast.RangeIterable{Range: ast.Range{Lo: first, Hi: hi}}
	}
	items := []ast.Expr{first}
	for p.at(COMMA) {
		p.advance()
		items = append(items, p.parseExpr())
	}
	p.expect(RPAREN, "')'")
	return ast.ExprListIterable{Items: items}
}
