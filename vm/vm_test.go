package vm_test

import (
	"testing"

	"github.com/yaraeng/yarago/compiler"
	"github.com/yaraeng/yarago/matcher"
	"github.com/yaraeng/yarago/parser"
	"github.com/yaraeng/yarago/vm"
)

type stubEnv struct {
	buf        []byte
	filesize   int64
	entrypoint int64
	idents     map[string]vm.Value
	calls      map[string]vm.Value
}

func newStubEnv(buf []byte) *stubEnv {
	return &stubEnv{
		buf:      buf,
		filesize: int64(len(buf)),
		idents:   map[string]vm.Value{},
		calls:    map[string]vm.Value{},
	}
}

func (e *stubEnv) Filesize() int64   { return e.filesize }
func (e *stubEnv) Entrypoint() int64 { return e.entrypoint }
func (e *stubEnv) Buffer() []byte    { return e.buf }

func (e *stubEnv) ResolveIdent(path string) (vm.Value, error) {
	if v, ok := e.idents[path]; ok {
		return v, nil
	}
	return vm.Undefined(), nil
}

func (e *stubEnv) CallFunction(name string, args []vm.Value) (vm.Value, error) {
	if v, ok := e.calls[name]; ok {
		return v, nil
	}
	return vm.Undefined(), &vm.UnknownFunctionError{Name: name}
}

func mustCompileAndScan(t *testing.T, src string, data []byte) (*compiler.Program, *matcher.Matches) {
	t.Helper()
	rs, err := parser.New().Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, err := compiler.Compile(rs)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	m, err := matcher.New(prog)
	if err != nil {
		t.Fatalf("matcher.New: %v", err)
	}
	matches, err := m.Scan(data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return prog, matches
}

func TestEvaluateStringRefMatch(t *testing.T) {
	prog, matches := mustCompileAndScan(t, `
rule r {
    strings:
        $a = "hello"
    condition:
        $a
}
`, []byte("say hello world"))
	ev := vm.NewEvaluator(prog, matches, newStubEnv([]byte("say hello world")))
	matched, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(matched) != 1 {
		t.Fatalf("expected 1 matched rule, got %v", matched)
	}
}

func TestEvaluateArithmeticAndComparison(t *testing.T) {
	prog, matches := mustCompileAndScan(t, `
rule r {
    condition:
        (1 + 2) * 3 == 9
}
`, nil)
	ev := vm.NewEvaluator(prog, matches, newStubEnv(nil))
	matched, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(matched) != 1 {
		t.Fatal("expected the arithmetic rule to match")
	}
}

func TestEvaluateOfThem(t *testing.T) {
	prog, matches := mustCompileAndScan(t, `
rule r {
    strings:
        $a = "aa"
        $b = "bb"
        $c = "cc"
    condition:
        2 of them
}
`, []byte("aa bb"))
	ev := vm.NewEvaluator(prog, matches, newStubEnv([]byte("aa bb")))
	matched, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(matched) != 1 {
		t.Fatal("expected 2-of-3 to be satisfied")
	}
}

func TestEvaluateForRange(t *testing.T) {
	prog, matches := mustCompileAndScan(t, `
rule r {
    condition:
        for any i in (1..10) : (i == 7)
}
`, nil)
	ev := vm.NewEvaluator(prog, matches, newStubEnv(nil))
	matched, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(matched) != 1 {
		t.Fatal("expected a for-any range loop to find 7")
	}
}

func TestEvaluateForAllRangeFalse(t *testing.T) {
	prog, matches := mustCompileAndScan(t, `
rule r {
    condition:
        for all i in (1..5) : (i < 3)
}
`, nil)
	ev := vm.NewEvaluator(prog, matches, newStubEnv(nil))
	matched, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(matched) != 0 {
		t.Fatal("expected the all-quantifier to fail since 3,4,5 are not < 3")
	}
}

func TestEvaluatePrivateRuleCall(t *testing.T) {
	prog, matches := mustCompileAndScan(t, `
private rule helper {
    condition:
        true
}
rule main {
    condition:
        helper
}
`, nil)
	ev := vm.NewEvaluator(prog, matches, newStubEnv(nil))
	matched, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(matched) != 1 {
		t.Fatal("expected main to match via its private-rule reference")
	}
}

func TestEvaluateGlobalGate(t *testing.T) {
	prog, matches := mustCompileAndScan(t, `
global rule gate {
    condition:
        filesize < 5
}
rule main {
    condition:
        true
}
`, []byte("this buffer is longer than five bytes"))
	env := newStubEnv([]byte("this buffer is longer than five bytes"))
	ev := vm.NewEvaluator(prog, matches, env)
	matched, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(matched) != 0 {
		t.Fatal("expected the global gate to suppress main")
	}
}

func TestEvaluateBuiltinIntReaders(t *testing.T) {
	prog, matches := mustCompileAndScan(t, `
rule r {
    condition:
        uint16(0) == 0x5A4D
}
`, []byte{0x4D, 0x5A, 0, 0})
	ev := vm.NewEvaluator(prog, matches, newStubEnv([]byte{0x4D, 0x5A, 0, 0}))
	matched, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(matched) != 1 {
		t.Fatal("expected the MZ-header check to match")
	}
}

func TestEvaluateQualifiedFunctionCall(t *testing.T) {
	prog, matches := mustCompileAndScan(t, `
rule r {
    condition:
        hash.md5(0, filesize) == "deadbeef"
}
`, []byte("payload"))
	env := newStubEnv([]byte("payload"))
	env.calls["hash.md5"] = vm.StrVal("deadbeef")
	ev := vm.NewEvaluator(prog, matches, env)
	matched, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(matched) != 1 {
		t.Fatal("expected the stubbed hash.md5 call to satisfy the condition")
	}
}

func TestEvaluateStringCountAndOffset(t *testing.T) {
	prog, matches := mustCompileAndScan(t, `
rule r {
    strings:
        $a = "ab"
    condition:
        #a == 2 and @a[0] == 0 and @a[1] == 3
}
`, []byte("abXab"))
	ev := vm.NewEvaluator(prog, matches, newStubEnv([]byte("abXab")))
	matched, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(matched) != 1 {
		t.Fatal("expected #a, @a[0], and @a[1] to all check out under 0-based indexing")
	}
}
