package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yaraeng/yarago/ast"
)

func mustParse(t *testing.T, input string) *ast.RuleSet {
	t.Helper()
	rs, err := New().Parse(input)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	return rs
}

func TestParseMinimalRule(t *testing.T) {
	rs := mustParse(t, `rule test { strings: $ = "text" condition: any of them }`)

	if len(rs.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rs.Rules))
	}
	r := rs.Rules[0]
	if r.Name != "test" {
		t.Errorf("expected name 'test', got %q", r.Name)
	}
	of, ok := r.Condition.(ast.OfExpr)
	if !ok {
		t.Fatalf("expected OfExpr, got %T", r.Condition)
	}
	if !of.Quantifier.Any || !of.Set.Them {
		t.Errorf("expected any-of-them, got %+v", of)
	}
	if len(r.Strings) != 1 || r.Strings[0].Name != "$" {
		t.Errorf("expected anonymous string, got %v", r.Strings)
	}
}

func TestParseRuleModifiersAndTags(t *testing.T) {
	rs := mustParse(t, `private global rule test : foo bar { strings: $ = "x" condition: any of them }`)
	r := rs.Rules[0]
	if !r.Private || !r.Global {
		t.Errorf("expected private and global, got %+v", r)
	}
	if len(r.Tags) != 2 || r.Tags[0] != "foo" || r.Tags[1] != "bar" {
		t.Errorf("unexpected tags: %v", r.Tags)
	}
}

func TestParseImports(t *testing.T) {
	rs := mustParse(t, `import "pe"
import "hash"
rule test { condition: true }`)
	if len(rs.Imports) != 2 || rs.Imports[0] != "pe" || rs.Imports[1] != "hash" {
		t.Errorf("unexpected imports: %v", rs.Imports)
	}
}

func TestParseNamedString(t *testing.T) {
	rs := mustParse(t, `rule test { strings: $foo = "bar" condition: any of them }`)
	if rs.Rules[0].Strings[0].Name != "$foo" {
		t.Errorf("expected '$foo', got %q", rs.Rules[0].Strings[0].Name)
	}
}

func TestParseMeta(t *testing.T) {
	rs := mustParse(t, `rule test {
		meta:
			str = "value"
			num = 123
			neg = -42
			flag = true
		strings: $ = "x"
		condition: any of them
	}`)

	meta := rs.Rules[0].Meta
	if len(meta) != 4 {
		t.Fatalf("expected 4 meta entries, got %d", len(meta))
	}

	tests := []struct {
		key   string
		value any
	}{
		{"str", "value"},
		{"num", int64(123)},
		{"neg", int64(-42)},
		{"flag", true},
	}
	for i, tt := range tests {
		if meta[i].Key != tt.key || meta[i].Value != tt.value {
			t.Errorf("meta[%d]: expected %s=%v, got %s=%v", i, tt.key, tt.value, meta[i].Key, meta[i].Value)
		}
	}
}

func TestParseHexStringIsOpaque(t *testing.T) {
	// The parser does not decode hex grammar; it hands the compiler the
	// raw text between the braces verbatim.
	rs := mustParse(t, `rule test { strings: $ = { FF ?? [4-16] (41|42) } condition: any of them }`)
	hex, ok := rs.Rules[0].Strings[0].Value.(ast.RawHexString)
	if !ok {
		t.Fatalf("expected RawHexString, got %T", rs.Rules[0].Strings[0].Value)
	}
	if hex.Raw != " FF ?? [4-16] (41|42) " {
		t.Errorf("unexpected raw hex text: %q", hex.Raw)
	}
}

func TestParseRegex(t *testing.T) {
	tests := []struct {
		input   string
		pattern string
		mods    ast.RegexModifiers
	}{
		{`/pattern/`, "pattern", ast.RegexModifiers{}},
		{`/pattern/s`, "pattern", ast.RegexModifiers{DotMatchesAll: true}},
		{`/pattern/sim`, "pattern", ast.RegexModifiers{DotMatchesAll: true, CaseInsensitive: true, Multiline: true}},
		{`/foo\/bar/`, `foo\/bar`, ast.RegexModifiers{}},
		{`/\bword\b/i`, `\bword\b`, ast.RegexModifiers{CaseInsensitive: true}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			rs := mustParse(t, `rule test { strings: $ = `+tt.input+` condition: any of them }`)
			regex := rs.Rules[0].Strings[0].Value.(ast.RegexString)
			if regex.Pattern != tt.pattern {
				t.Errorf("expected pattern %q, got %q", tt.pattern, regex.Pattern)
			}
			if regex.Modifiers != tt.mods {
				t.Errorf("expected modifiers %+v, got %+v", tt.mods, regex.Modifiers)
			}
		})
	}
}

func TestParseModifiers(t *testing.T) {
	tests := []struct {
		input string
		mods  ast.StringModifiers
	}{
		{`"x" base64`, ast.StringModifiers{Base64: true}},
		{`"x" fullword`, ast.StringModifiers{Fullword: true}},
		{`"x" wide ascii`, ast.StringModifiers{Wide: true, Ascii: true}},
		{`"x" nocase fullword`, ast.StringModifiers{Nocase: true, Fullword: true}},
		{`{ FF } base64`, ast.StringModifiers{Base64: true}},
		{`/pattern/ nocase`, ast.StringModifiers{Nocase: true}},
		{`"x" xor`, ast.StringModifiers{Xor: true, XorLo: 0, XorHi: 255}},
		{`"x" xor(1-16)`, ast.StringModifiers{Xor: true, XorLo: 1, XorHi: 16}},
		{`"x" private`, ast.StringModifiers{Private: true}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			rs := mustParse(t, `rule test { strings: $ = `+tt.input+` condition: any of them }`)
			got := rs.Rules[0].Strings[0].Modifiers
			if got != tt.mods {
				t.Errorf("expected %+v, got %+v", tt.mods, got)
			}
		})
	}
}

func TestParseEscapeSequences(t *testing.T) {
	rs := mustParse(t, `rule test { strings: $ = "a\nb\tc\\d\"e\x41" condition: any of them }`)
	text := rs.Rules[0].Strings[0].Value.(ast.TextString)
	expected := "a\nb\tc\\d\"eA"
	if text.Value != expected {
		t.Errorf("expected %q, got %q", expected, text.Value)
	}
}

func TestParseMultipleStrings(t *testing.T) {
	rs := mustParse(t, `rule test {
		strings:
			$a = "one"
			$b = { FF }
			$ = /pattern/
		condition: any of them
	}`)

	names := []string{"$a", "$b", "$"}
	for i, s := range rs.Rules[0].Strings {
		if s.Name != names[i] {
			t.Errorf("string %d: expected %q, got %q", i, names[i], s.Name)
		}
	}
}

func TestParseMultipleRules(t *testing.T) {
	rs := mustParse(t, `
		rule one { strings: $ = "a" condition: any of them }
		rule two { strings: $ = "b" condition: any of them }
	`)

	if len(rs.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rs.Rules))
	}
	if rs.Rules[0].Name != "one" || rs.Rules[1].Name != "two" {
		t.Errorf("unexpected rule names: %q, %q", rs.Rules[0].Name, rs.Rules[1].Name)
	}
}

func TestParseComments(t *testing.T) {
	inputs := []string{
		`// comment
		rule test { strings: $ = "x" condition: any of them }`,
		`/* block */ rule test { strings: $ = "x" condition: any of them }`,
		`rule test { /* mid */ strings: $ = "x" condition: any of them }`,
		`rule test { strings: $ = "x" /* after */ condition: any of them }`,
		`rule test { strings: $ = { FF /* in hex */ D8 } condition: any of them }`,
		`rule test { strings: $ = { FF } /* after hex */ condition: any of them }`,
	}

	for i, input := range inputs {
		t.Run(string(rune('a'+i)), func(t *testing.T) {
			rs := mustParse(t, input)
			if len(rs.Rules) != 1 {
				t.Errorf("expected 1 rule, got %d", len(rs.Rules))
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yar")
	content := `rule test { strings: $ = "x" condition: any of them }`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rs, err := New().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(rs.Rules) != 1 || rs.Rules[0].Name != "test" {
		t.Errorf("unexpected result: %+v", rs)
	}
}

func TestParseFileNotFound(t *testing.T) {
	_, err := New().ParseFile("/nonexistent/file.yar")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseConditionWithParens(t *testing.T) {
	rs := mustParse(t, `rule test { strings: $a = "x" condition: ($a at 0) and any of them }`)
	bin, ok := rs.Rules[0].Condition.(ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected BinaryExpr, got %T", rs.Rules[0].Condition)
	}
	if bin.Op != "and" {
		t.Errorf("expected 'and', got %q", bin.Op)
	}
	if _, ok := bin.Left.(ast.ParenExpr); !ok {
		t.Errorf("expected left operand to stay a ParenExpr, got %T", bin.Left)
	}
}

func TestParseQuantifiedVsArithmetic(t *testing.T) {
	// "2 of them" is a quantifier; "2 + 2 == 4" must not be mistaken for one.
	rs := mustParse(t, `rule test { strings: $a = "x" $b = "y" condition: 2 of them and 2 + 2 == 4 }`)
	bin := rs.Rules[0].Condition.(ast.BinaryExpr)
	if bin.Op != "and" {
		t.Fatalf("expected top-level 'and', got %q", bin.Op)
	}
	of, ok := bin.Left.(ast.OfExpr)
	if !ok || of.Quantifier.Count == nil {
		t.Fatalf("expected OfExpr with a count quantifier, got %T %+v", bin.Left, bin.Left)
	}
	eq, ok := bin.Right.(ast.BinaryExpr)
	if !ok || eq.Op != "==" {
		t.Fatalf("expected == on the right, got %T %+v", bin.Right, bin.Right)
	}
}

func TestParsePercentQuantifier(t *testing.T) {
	rs := mustParse(t, `rule test { strings: $a = "x" condition: 50% of them }`)
	of := rs.Rules[0].Condition.(ast.OfExpr)
	if !of.Quantifier.Percent {
		t.Errorf("expected percent quantifier, got %+v", of.Quantifier)
	}
}

func TestParseForExpression(t *testing.T) {
	rs := mustParse(t, `rule test { strings: $a = "x" condition: for any i in (1..#a): (@a[i] < filesize) }`)
	fe, ok := rs.Rules[0].Condition.(ast.ForExpr)
	if !ok {
		t.Fatalf("expected ForExpr, got %T", rs.Rules[0].Condition)
	}
	if len(fe.Vars) != 1 || fe.Vars[0] != "i" {
		t.Errorf("unexpected loop vars: %v", fe.Vars)
	}
	if _, ok := fe.Iterable.(ast.RangeIterable); !ok {
		t.Errorf("expected RangeIterable, got %T", fe.Iterable)
	}
}

func TestParseForOfThem(t *testing.T) {
	rs := mustParse(t, `rule test { strings: $a = "x" condition: for all of them: ($) }`)
	fe := rs.Rules[0].Condition.(ast.ForExpr)
	if !fe.Quantifier.All {
		t.Errorf("expected all quantifier, got %+v", fe.Quantifier)
	}
	set, ok := fe.Iterable.(ast.SetIterable)
	if !ok || !set.Set.Them {
		t.Errorf("expected them set iterable, got %+v", fe.Iterable)
	}
}

func TestParseFieldAccessAndCall(t *testing.T) {
	rs := mustParse(t, `rule test { condition: pe.number_of_sections > 2 and hash.md5(0, filesize) == "x" }`)
	bin := rs.Rules[0].Condition.(ast.BinaryExpr)
	gt := bin.Left.(ast.BinaryExpr)
	id, ok := gt.Left.(ast.Identifier)
	if !ok || len(id.Path) != 2 || id.Path[0] != "pe" || id.Path[1] != "number_of_sections" {
		t.Errorf("unexpected identifier: %+v", gt.Left)
	}
	eq := bin.Right.(ast.BinaryExpr)
	call, ok := eq.Left.(ast.FuncCall)
	if !ok || len(call.Args) != 2 {
		t.Errorf("expected two-arg FuncCall, got %+v", eq.Left)
	}
}

func TestParseIndexAfterFieldAccess(t *testing.T) {
	rs := mustParse(t, `rule test { condition: pe.sections[0].name == "x" }`)
	eq := rs.Rules[0].Condition.(ast.BinaryExpr)
	fa, ok := eq.Left.(ast.FieldAccess)
	if !ok || fa.Field != "name" {
		t.Fatalf("expected FieldAccess on .name, got %T %+v", eq.Left, eq.Left)
	}
	if _, ok := fa.Base.(ast.IndexExpr); !ok {
		t.Errorf("expected IndexExpr base, got %T", fa.Base)
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := New().Parse(`rule test { condition: ( }`)
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	se, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("expected *SyntaxError, got %T", err)
	}
	if se.Span.Start == 0 && se.Span.End == 0 {
		t.Errorf("expected a non-zero span, got %+v", se.Span)
	}
}
