package modules_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/yaraeng/yarago/modules"
	"github.com/yaraeng/yarago/vm"
)

func TestHashDigests(t *testing.T) {
	h := modules.Hash{Buffer: []byte("abc")}
	if got := h.Md5(0, 3); got != "900150983cd24fb0d6963f7d28e17f72" {
		t.Errorf("Md5 = %s", got)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := h.Sha256(0, 3); got != want {
		t.Errorf("Sha256(abc) = %s, want %s", got, want)
	}
}

func TestHashCall(t *testing.T) {
	h := modules.Hash{Buffer: []byte("abc")}
	v, ok := h.Call("md5", []vm.Value{vm.IntVal(0), vm.IntVal(3)})
	if !ok || v.AsString() != "900150983cd24fb0d6963f7d28e17f72" {
		t.Errorf("Call(md5) = %v, %v", v, ok)
	}
	if _, ok := h.Call("bogus", []vm.Value{vm.IntVal(0), vm.IntVal(3)}); ok {
		t.Error("Call(bogus) should not be found")
	}
}

func TestMathEntropyOfUniform(t *testing.T) {
	buf := make([]byte, 256)
	for i := range buf {
		buf[i] = byte(i)
	}
	m := modules.Math{Buffer: buf}
	got := m.Entropy(0, 256)
	if got < 7.9 || got > 8.0 {
		t.Errorf("Entropy of uniform byte range = %v, want ~8.0", got)
	}
}

func TestMathEntropyOfZeros(t *testing.T) {
	m := modules.Math{Buffer: make([]byte, 64)}
	if got := m.Entropy(0, 64); got != 0 {
		t.Errorf("Entropy of all-zero range = %v, want 0", got)
	}
}

func TestMathCallDispatch(t *testing.T) {
	m := modules.Math{Buffer: []byte{1, 1, 2, 3}}
	v, ok := m.Call("count", []vm.Value{vm.IntVal(1), vm.IntVal(0), vm.IntVal(4)})
	if !ok || v.AsInt() != 2 {
		t.Errorf("Call(count) = %v, %v, want 2", v, ok)
	}
	v, ok = m.Call("in_range", []vm.Value{vm.FloatVal(5), vm.FloatVal(1), vm.FloatVal(10)})
	if !ok || !v.AsBool() {
		t.Errorf("Call(in_range) = %v, %v, want true", v, ok)
	}
}

func TestConsoleWritesWhenWriterSet(t *testing.T) {
	var buf strings.Builder
	c := modules.Console{Writer: &buf}
	v, ok := c.Call("log", []vm.Value{vm.StrVal("hello")})
	if !ok || !v.AsBool() {
		t.Errorf("Call(log) = %v, %v, want true", v, ok)
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("console output = %q, want to contain hello", buf.String())
	}
}

func TestConsoleNoopWithoutWriter(t *testing.T) {
	c := modules.Console{}
	v, ok := c.Call("log", []vm.Value{vm.StrVal("hello")})
	if !ok || !v.AsBool() {
		t.Errorf("Call(log) without writer should still return true, got %v, %v", v, ok)
	}
}

func TestTimeNow(t *testing.T) {
	tm := modules.Time{Now: 1234}
	v, ok := tm.Call("now", nil)
	if !ok || v.AsInt() != 1234 {
		t.Errorf("Call(now) = %v, %v, want 1234", v, ok)
	}
}

func TestParsePERejectsNonPE(t *testing.T) {
	if _, ok := modules.ParsePE([]byte("not a pe file")); ok {
		t.Error("ParsePE should reject non-PE data")
	}
}

func TestParseELFRejectsNonELF(t *testing.T) {
	if _, ok := modules.ParseELF([]byte("not an elf file")); ok {
		t.Error("ParseELF should reject non-ELF data")
	}
}

// minimalELF builds just enough of an ELF64 header for debug/elf to
// recognize the file type and machine, without a valid section table.
func minimalELF() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x7f, 'E', 'L', 'F'})
	buf.WriteByte(2) // ELFCLASS64
	buf.WriteByte(1) // little-endian
	buf.WriteByte(1) // EI_VERSION
	buf.Write(make([]byte, 9))
	// e_type(2) e_machine(2) e_version(4) e_entry(8) e_phoff(8) e_shoff(8)
	// e_flags(4) e_ehsize(2) e_phentsize(2) e_phnum(2) e_shentsize(2)
	// e_shnum(2) e_shstrndx(2)
	hdr := []any{
		uint16(2), uint16(62), uint32(1), uint64(0x401000),
		uint64(0), uint64(0), uint32(0), uint16(64),
		uint16(0), uint16(0), uint16(0), uint16(0), uint16(0),
	}
	for _, f := range hdr {
		writeLE(&buf, f)
	}
	return buf.Bytes()
}

func writeLE(buf *bytes.Buffer, v any) {
	switch x := v.(type) {
	case uint16:
		buf.WriteByte(byte(x))
		buf.WriteByte(byte(x >> 8))
	case uint32:
		for i := 0; i < 4; i++ {
			buf.WriteByte(byte(x >> (8 * i)))
		}
	case uint64:
		for i := 0; i < 8; i++ {
			buf.WriteByte(byte(x >> (8 * i)))
		}
	}
}

func TestParseELFReadsMachineAndEntryPoint(t *testing.T) {
	e, ok := modules.ParseELF(minimalELF())
	if !ok {
		t.Fatal("ParseELF should accept a minimal ELF64 header")
	}
	v, err := e.Field("machine")
	if err != nil {
		t.Fatalf("Field(machine) error: %v", err)
	}
	if v.AsInt() != modules.EM_X86_64 {
		t.Errorf("Field(machine) = %v, want %d", v.AsInt(), modules.EM_X86_64)
	}
	v, _ = e.Field("entry_point")
	if v.AsInt() != 0x401000 {
		t.Errorf("Field(entry_point) = %v, want 0x401000", v.AsInt())
	}
}

func TestPEFieldUndefinedWhenUnparsed(t *testing.T) {
	var p modules.PE
	v, err := p.Field("machine")
	if err != nil {
		t.Fatalf("Field returned error: %v", err)
	}
	if v.AsInt() != 0 {
		t.Errorf("Field(machine) on zero-value PE = %v, want 0", v.AsInt())
	}
}
