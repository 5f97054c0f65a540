package vm

import "encoding/binary"

// callBuiltinReader implements YARA's bare integer-reading functions
// (uint8/16/32 and their signed/big-endian variants), each bounds-checked
// against buf the same way the teacher's tree-walking evaluator did for
// its smaller uint8/uint16/uint16be/uint32/uint32be set; this adds the
// signed int8/int16/int32 counterparts SPEC_FULL.md also calls for.
func callBuiltinReader(buf []byte, name string, args []Value) (Value, bool, error) {
	if len(args) != 1 {
		return Value{}, false, nil
	}
	offset := args[0].AsInt()
	if offset < 0 {
		return Undefined(), true, nil
	}
	off := int(offset)

	switch name {
	case "uint8":
		if off+1 > len(buf) {
			return Undefined(), true, nil
		}
		return IntVal(int64(buf[off])), true, nil
	case "int8":
		if off+1 > len(buf) {
			return Undefined(), true, nil
		}
		return IntVal(int64(int8(buf[off]))), true, nil

	case "uint16":
		if off+2 > len(buf) {
			return Undefined(), true, nil
		}
		return IntVal(int64(binary.LittleEndian.Uint16(buf[off:]))), true, nil
	case "uint16be":
		if off+2 > len(buf) {
			return Undefined(), true, nil
		}
		return IntVal(int64(binary.BigEndian.Uint16(buf[off:]))), true, nil
	case "int16":
		if off+2 > len(buf) {
			return Undefined(), true, nil
		}
		return IntVal(int64(int16(binary.LittleEndian.Uint16(buf[off:])))), true, nil
	case "int16be":
		if off+2 > len(buf) {
			return Undefined(), true, nil
		}
		return IntVal(int64(int16(binary.BigEndian.Uint16(buf[off:])))), true, nil

	case "uint32":
		if off+4 > len(buf) {
			return Undefined(), true, nil
		}
		return IntVal(int64(binary.LittleEndian.Uint32(buf[off:]))), true, nil
	case "uint32be":
		if off+4 > len(buf) {
			return Undefined(), true, nil
		}
		return IntVal(int64(binary.BigEndian.Uint32(buf[off:]))), true, nil
	case "int32":
		if off+4 > len(buf) {
			return Undefined(), true, nil
		}
		return IntVal(int64(int32(binary.LittleEndian.Uint32(buf[off:])))), true, nil
	case "int32be":
		if off+4 > len(buf) {
			return Undefined(), true, nil
		}
		return IntVal(int64(int32(binary.BigEndian.Uint32(buf[off:])))), true, nil
	}
	return Value{}, false, nil
}
