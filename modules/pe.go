package modules

import (
	"bytes"
	"debug/pe"

	"github.com/yaraeng/yarago/vm"
)

// PE implements the subset of YARA's "pe" module named by SPEC_FULL.md:
// machine, number_of_sections, entry_point, linker_version,
// characteristics, and a sections[] array exposing name/raw_data_size
// and friends. Grounded on r-yara-modules/src/pe.rs's PeInfo method set
// (machine/entry_point/number_of_sections/linker_version/
// characteristics/section), but parsed with the standard library's
// debug/pe rather than hand-rolling COFF/optional-header parsing: Go
// ships a complete PE reader, and no pack library improves on it for
// this format.
type PE struct {
	file *pe.File
}

// ParsePE builds a PE module value from a scanned buffer. ok is false
// when data isn't a valid PE image, in which case every pe.* access
// should evaluate to Undefined, matching YARA's behavior for
// non-matching file types.
func ParsePE(data []byte) (PE, bool) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return PE{}, false
	}
	return PE{file: f}, true
}

func (p PE) Machine() int64 {
	if p.file == nil {
		return 0
	}
	return int64(p.file.Machine)
}

func (p PE) Characteristics() int64 {
	if p.file == nil {
		return 0
	}
	return int64(p.file.Characteristics)
}

func (p PE) NumberOfSections() int64 {
	if p.file == nil {
		return 0
	}
	return int64(len(p.file.Sections))
}

func (p PE) EntryPoint() int64 {
	if p.file == nil {
		return 0
	}
	switch oh := p.file.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		return int64(oh.AddressOfEntryPoint)
	case *pe.OptionalHeader64:
		return int64(oh.AddressOfEntryPoint)
	}
	return 0
}

func (p PE) ImageBase() int64 {
	if p.file == nil {
		return 0
	}
	switch oh := p.file.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		return int64(oh.ImageBase)
	case *pe.OptionalHeader64:
		return int64(oh.ImageBase)
	}
	return 0
}

// LinkerVersion returns (major, minor).
func (p PE) LinkerVersion() (int64, int64) {
	if p.file == nil {
		return 0, 0
	}
	switch oh := p.file.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		return int64(oh.MajorLinkerVersion), int64(oh.MinorLinkerVersion)
	case *pe.OptionalHeader64:
		return int64(oh.MajorLinkerVersion), int64(oh.MinorLinkerVersion)
	}
	return 0, 0
}

func (p PE) Is32Bit() bool {
	_, ok := p.file.OptionalHeader.(*pe.OptionalHeader32)
	return p.file != nil && ok
}

func (p PE) Is64Bit() bool {
	_, ok := p.file.OptionalHeader.(*pe.OptionalHeader64)
	return p.file != nil && ok
}

func (p PE) IsDLL() bool {
	return p.file != nil && p.file.Characteristics&0x2000 != 0
}

// PESection is one entry of pe.sections, an array of these.
type PESection struct {
	Name            string
	VirtualAddress  int64
	VirtualSize     int64
	RawDataOffset   int64
	RawDataSize     int64
	Characteristics int64
}

func (p PE) Sections() []PESection {
	if p.file == nil {
		return nil
	}
	out := make([]PESection, 0, len(p.file.Sections))
	for _, s := range p.file.Sections {
		out = append(out, PESection{
			Name:            s.Name,
			VirtualAddress:  int64(s.VirtualAddress),
			VirtualSize:     int64(s.VirtualSize),
			RawDataOffset:   int64(s.Offset),
			RawDataSize:     int64(s.Size),
			Characteristics: int64(s.Characteristics),
		})
	}
	return out
}

// peSections implements vm.Indexable for "pe.sections[i]".
type peSections []PESection

func (ss peSections) Index(i int64) (vm.Value, error) {
	if i < 0 || i >= int64(len(ss)) {
		return vm.Undefined(), nil
	}
	return vm.ObjVal(ss[i]), nil
}

// peLinkerVersion implements vm.Fielder for "pe.linker_version.major/minor".
type peLinkerVersion struct{ major, minor int64 }

func (lv peLinkerVersion) Field(name string) (vm.Value, error) {
	switch name {
	case "major":
		return vm.IntVal(lv.major), nil
	case "minor":
		return vm.IntVal(lv.minor), nil
	}
	return vm.Undefined(), nil
}

// Field implements vm.Fielder for bare "pe.<name>" access.
func (p PE) Field(name string) (vm.Value, error) {
	if p.file == nil {
		return vm.Undefined(), nil
	}
	switch name {
	case "machine":
		return vm.IntVal(p.Machine()), nil
	case "characteristics":
		return vm.IntVal(p.Characteristics()), nil
	case "number_of_sections":
		return vm.IntVal(p.NumberOfSections()), nil
	case "entry_point":
		return vm.IntVal(p.EntryPoint()), nil
	case "image_base":
		return vm.IntVal(p.ImageBase()), nil
	case "is_32bit":
		return vm.BoolVal(p.Is32Bit()), nil
	case "is_64bit":
		return vm.BoolVal(p.Is64Bit()), nil
	case "is_dll":
		return vm.BoolVal(p.IsDLL()), nil
	case "linker_version":
		major, minor := p.LinkerVersion()
		return vm.ObjVal(peLinkerVersion{major, minor}), nil
	case "sections":
		return vm.ObjVal(peSections(p.Sections())), nil
	}
	return vm.Undefined(), nil
}

// Field implements vm.Fielder for "pe.sections[i].<name>" access.
func (s PESection) Field(name string) (vm.Value, error) {
	switch name {
	case "name":
		return vm.StrVal(s.Name), nil
	case "virtual_address":
		return vm.IntVal(s.VirtualAddress), nil
	case "virtual_size":
		return vm.IntVal(s.VirtualSize), nil
	case "raw_data_offset":
		return vm.IntVal(s.RawDataOffset), nil
	case "raw_data_size":
		return vm.IntVal(s.RawDataSize), nil
	case "characteristics":
		return vm.IntVal(s.Characteristics), nil
	}
	return vm.Undefined(), nil
}

// PE machine-type constants, mirrored from r-yara-modules/src/pe.rs.
const (
	PE_MACHINE_I386   = 0x014c
	PE_MACHINE_AMD64  = 0x8664
	PE_MACHINE_ARM    = 0x01c0
	PE_MACHINE_ARM64  = 0xaa64
	PE_MACHINE_THUMB  = 0x01c2
	PE_MACHINE_IA64   = 0x0200
)

// PE file characteristics flags, mirrored from r-yara-modules/src/pe.rs.
const (
	PE_RELOCS_STRIPPED     = 0x0001
	PE_EXECUTABLE_IMAGE    = 0x0002
	PE_LARGE_ADDRESS_AWARE = 0x0020
	PE_DLL                 = 0x2000
)

// PE subsystem constants, mirrored from r-yara-modules/src/pe.rs.
const (
	PE_SUBSYSTEM_WINDOWS_GUI = 2
	PE_SUBSYSTEM_WINDOWS_CUI = 3
	PE_SUBSYSTEM_EFI_APPLICATION = 10
)
