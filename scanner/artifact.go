package scanner

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/yaraeng/yarago/compiler"
	"github.com/yaraeng/yarago/matcher"
)

// artifactMagic identifies a yarago compiled-rule artifact (a ".yarc"
// file); artifactVersion lets a future format change reject files it
// can't read instead of misinterpreting them.
const (
	artifactMagic   = "YARC"
	artifactVersion = uint32(1)
)

func init() {
	// MetaEntry.Value holds the three literal types YARA's meta: syntax
	// accepts; gob needs each concrete type registered before it can
	// round-trip them through the any-typed field.
	gob.Register("")
	gob.Register(int64(0))
	gob.Register(false)
}

type artifactPayload struct {
	Program *compiler.Program
	Imports []string
}

// Save writes cr as a self-contained binary artifact: a 4-byte magic, a
// little-endian version, a little-endian payload length, then the
// gob-encoded bytecode program. Loading it back with Load reproduces a
// CompiledRules behaviorally equivalent to the one that produced it,
// without re-parsing or re-compiling the original rule source.
func Save(w io.Writer, cr *CompiledRules) error {
	if _, err := io.WriteString(w, artifactMagic); err != nil {
		return fmt.Errorf("scanner: writing artifact magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, artifactVersion); err != nil {
		return fmt.Errorf("scanner: writing artifact version: %w", err)
	}

	var payload bytes.Buffer
	enc := gob.NewEncoder(&payload)
	if err := enc.Encode(artifactPayload{Program: cr.Program, Imports: cr.Imports}); err != nil {
		return fmt.Errorf("scanner: encoding artifact payload: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(payload.Len())); err != nil {
		return fmt.Errorf("scanner: writing artifact length: %w", err)
	}
	if _, err := w.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("scanner: writing artifact payload: %w", err)
	}
	return nil
}

// InvalidArtifactError reports an artifact stream that isn't one Save
// produced: a bad magic, an unsupported version, or a truncated payload.
type InvalidArtifactError struct {
	Reason string
}

func (e *InvalidArtifactError) Error() string {
	return fmt.Sprintf("scanner: invalid compiled-rule artifact: %s", e.Reason)
}

// Load reads an artifact written by Save and rebuilds a CompiledRules
// from it, including its matcher, without touching rule source text.
func Load(r io.Reader) (*CompiledRules, error) {
	magic := make([]byte, len(artifactMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("scanner: reading artifact magic: %w", err)
	}
	if string(magic) != artifactMagic {
		return nil, &InvalidArtifactError{Reason: "bad magic"}
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("scanner: reading artifact version: %w", err)
	}
	if version != artifactVersion {
		return nil, &InvalidArtifactError{Reason: fmt.Sprintf("unsupported version %d", version)}
	}

	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("scanner: reading artifact length: %w", err)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &InvalidArtifactError{Reason: "truncated payload"}
	}

	var decoded artifactPayload
	dec := gob.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("scanner: decoding artifact payload: %w", err)
	}

	m, err := matcher.New(decoded.Program)
	if err != nil {
		return nil, fmt.Errorf("scanner: rebuilding matcher: %w", err)
	}
	return &CompiledRules{
		Program:    decoded.Program,
		Imports:    decoded.Imports,
		matcher:    m,
		groupIndex: buildGroupIndex(decoded.Program),
	}, nil
}
