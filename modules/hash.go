// Package modules implements the YARA-compatible module functions
// (hash, math, pe, elf, console, time) that back qualified identifiers
// and calls like hash.md5(...) or pe.number_of_sections in a rule
// condition. Each module is a small value the vm.Environment resolves
// dotted paths into via Fielder/Indexable, or a function the
// Environment dispatches CallFunction into.
package modules

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash/crc32"

	"golang.org/x/crypto/sha3"

	"github.com/yaraeng/yarago/vm"
)

// Hash implements the "hash" module: cryptographic digests and
// checksums over a byte range of the scanned buffer, grounded on
// r-yara-modules/src/hash.rs's md5/sha1/sha256/sha512/sha3_256/
// sha3_512/crc32/checksum32 function set (the Rust original's
// underlying crates have no Go-pack analogue, so this uses Go's
// standard hashing packages plus golang.org/x/crypto/sha3 — the
// ecosystem-standard way to get SHA-3 in Go, in the same golang.org/x
// family the teacher already depends on for golang.org/x/sys).
type Hash struct {
	Buffer []byte
}

func (h Hash) slice(offset, size int64) []byte {
	if offset < 0 || size < 0 || offset > int64(len(h.Buffer)) {
		return nil
	}
	end := offset + size
	if end > int64(len(h.Buffer)) {
		end = int64(len(h.Buffer))
	}
	return h.Buffer[offset:end]
}

// Md5 returns the lowercase hex MD5 digest of [offset, offset+size).
func (h Hash) Md5(offset, size int64) string {
	sum := md5.Sum(h.slice(offset, size))
	return hex.EncodeToString(sum[:])
}

// Sha1 returns the lowercase hex SHA-1 digest.
func (h Hash) Sha1(offset, size int64) string {
	sum := sha1.Sum(h.slice(offset, size))
	return hex.EncodeToString(sum[:])
}

// Sha256 returns the lowercase hex SHA-256 digest.
func (h Hash) Sha256(offset, size int64) string {
	sum := sha256.Sum256(h.slice(offset, size))
	return hex.EncodeToString(sum[:])
}

// Sha512 returns the lowercase hex SHA-512 digest.
func (h Hash) Sha512(offset, size int64) string {
	sum := sha512.Sum512(h.slice(offset, size))
	return hex.EncodeToString(sum[:])
}

// Sha3_256 returns the lowercase hex SHA3-256 digest.
func (h Hash) Sha3_256(offset, size int64) string {
	sum := sha3.Sum256(h.slice(offset, size))
	return hex.EncodeToString(sum[:])
}

// Sha3_512 returns the lowercase hex SHA3-512 digest.
func (h Hash) Sha3_512(offset, size int64) string {
	sum := sha3.Sum512(h.slice(offset, size))
	return hex.EncodeToString(sum[:])
}

// Crc32 returns the CRC-32 (IEEE) checksum as an unsigned 32-bit value.
func (h Hash) Crc32(offset, size int64) uint32 {
	return crc32.ChecksumIEEE(h.slice(offset, size))
}

// Checksum32 sums every byte in the range modulo 2^32, matching the
// Rust original's wrapping-add implementation.
func (h Hash) Checksum32(offset, size int64) uint32 {
	var sum uint32
	for _, b := range h.slice(offset, size) {
		sum += uint32(b)
	}
	return sum
}

// Call dispatches a qualified "hash.*" function call. Every function in
// this module takes exactly (offset, size); a call with any other
// number of arguments is not recognized (ok is false).
func (h Hash) Call(name string, args []vm.Value) (vm.Value, bool) {
	if len(args) != 2 {
		return vm.Undefined(), false
	}
	offset, size := args[0].AsInt(), args[1].AsInt()
	switch name {
	case "md5":
		return vm.StrVal(h.Md5(offset, size)), true
	case "sha1":
		return vm.StrVal(h.Sha1(offset, size)), true
	case "sha256":
		return vm.StrVal(h.Sha256(offset, size)), true
	case "sha512":
		return vm.StrVal(h.Sha512(offset, size)), true
	case "sha3_256":
		return vm.StrVal(h.Sha3_256(offset, size)), true
	case "sha3_512":
		return vm.StrVal(h.Sha3_512(offset, size)), true
	case "crc32":
		return vm.IntVal(int64(h.Crc32(offset, size))), true
	case "checksum32":
		return vm.IntVal(int64(h.Checksum32(offset, size))), true
	}
	return vm.Undefined(), false
}
