package modules

import (
	"bytes"
	"debug/elf"

	"github.com/yaraeng/yarago/vm"
)

// ELF implements the subset of YARA's "elf" module named by
// SPEC_FULL.md: machine, number_of_sections, entry_point,
// characteristics, and a sections[] array exposing name/raw_data_size
// and friends, grounded on r-yara-modules/src/elf.rs's ElfInfo method
// set (machine/entry_point/number_of_sections/section/flags). As with
// PE, parsed via the standard library's debug/elf rather than
// hand-rolling ELF header parsing.
type ELF struct {
	file *elf.File
}

// ParseELF builds an ELF module value from a scanned buffer. ok is
// false when data isn't a valid ELF image.
func ParseELF(data []byte) (ELF, bool) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return ELF{}, false
	}
	return ELF{file: f}, true
}

func (e ELF) Type() int64 {
	if e.file == nil {
		return 0
	}
	return int64(e.file.Type)
}

func (e ELF) Machine() int64 {
	if e.file == nil {
		return 0
	}
	return int64(e.file.Machine)
}

func (e ELF) EntryPoint() int64 {
	if e.file == nil {
		return 0
	}
	return int64(e.file.Entry)
}

func (e ELF) NumberOfSections() int64 {
	if e.file == nil {
		return 0
	}
	return int64(len(e.file.Sections))
}

func (e ELF) NumberOfSegments() int64 {
	if e.file == nil {
		return 0
	}
	return int64(len(e.file.Progs))
}

// Characteristics maps to ELF's e_flags, the closest equivalent to PE's
// characteristics bitmask.
func (e ELF) Characteristics() int64 {
	if e.file == nil {
		return 0
	}
	return int64(e.file.Flags)
}

func (e ELF) Is32Bit() bool {
	return e.file != nil && e.file.Class == elf.ELFCLASS32
}

func (e ELF) Is64Bit() bool {
	return e.file != nil && e.file.Class == elf.ELFCLASS64
}

// ELFSection is one entry of elf.sections, an array of these.
type ELFSection struct {
	Name        string
	Type        int64
	Flags       int64
	Addr        int64
	RawDataSize int64
	Offset      int64
}

func (e ELF) Sections() []ELFSection {
	if e.file == nil {
		return nil
	}
	out := make([]ELFSection, 0, len(e.file.Sections))
	for _, s := range e.file.Sections {
		out = append(out, ELFSection{
			Name:        s.Name,
			Type:        int64(s.Type),
			Flags:       int64(s.Flags),
			Addr:        int64(s.Addr),
			RawDataSize: int64(s.Size),
			Offset:      int64(s.Offset),
		})
	}
	return out
}

type elfSections []ELFSection

func (ss elfSections) Index(i int64) (vm.Value, error) {
	if i < 0 || i >= int64(len(ss)) {
		return vm.Undefined(), nil
	}
	return vm.ObjVal(ss[i]), nil
}

// Field implements vm.Fielder for bare "elf.<name>" access.
func (e ELF) Field(name string) (vm.Value, error) {
	switch name {
	case "type":
		return vm.IntVal(e.Type()), nil
	case "machine":
		return vm.IntVal(e.Machine()), nil
	case "entry_point":
		return vm.IntVal(e.EntryPoint()), nil
	case "number_of_sections":
		return vm.IntVal(e.NumberOfSections()), nil
	case "number_of_segments":
		return vm.IntVal(e.NumberOfSegments()), nil
	case "characteristics":
		return vm.IntVal(e.Characteristics()), nil
	case "is_32bit":
		return vm.BoolVal(e.Is32Bit()), nil
	case "is_64bit":
		return vm.BoolVal(e.Is64Bit()), nil
	case "sections":
		return vm.ObjVal(elfSections(e.Sections())), nil
	}
	return vm.Undefined(), nil
}

// Field implements vm.Fielder for "elf.sections[i].<name>" access.
func (s ELFSection) Field(name string) (vm.Value, error) {
	switch name {
	case "name":
		return vm.StrVal(s.Name), nil
	case "type":
		return vm.IntVal(s.Type), nil
	case "flags":
		return vm.IntVal(s.Flags), nil
	case "address":
		return vm.IntVal(s.Addr), nil
	case "raw_data_size":
		return vm.IntVal(s.RawDataSize), nil
	case "raw_data_offset":
		return vm.IntVal(s.Offset), nil
	}
	return vm.Undefined(), nil
}

// ELF type constants, mirrored from r-yara-modules/src/elf.rs's
// elf_type module.
const (
	ET_NONE = 0
	ET_REL  = 1
	ET_EXEC = 2
	ET_DYN  = 3
	ET_CORE = 4
)

// A subset of ELF machine constants from elf.rs's machine module.
const (
	EM_386    = 3
	EM_MIPS   = 8
	EM_ARM    = 40
	EM_X86_64 = 62
	EM_AARCH64 = 183
)
