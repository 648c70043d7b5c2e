// Package id defines the identifier types shared by the query engine: the
// content-addressed CID, the closed set of query kinds, and the memo key
// that ties a (query kind, canonical arguments) pair to a single cached
// result.
package id

import (
	"fmt"

	"github.com/zeebo/blake3"
)

// Size is the byte length of every digest-shaped identifier in this
// package: content ids and memo keys are both 32-byte BLAKE3 digests.
const Size = 32

// CID is an opaque, content-addressed identifier for a persistent entity
// owned by the surrounding toolchain (an AST node, a source unit, a type
// definition). Two CIDs are equal iff their bytes are equal; CID carries no
// structured interpretation of its own.
type CID [Size]byte

// String renders the CID as a hex string, for logging and diagnostics only.
func (c CID) String() string {
	return fmt.Sprintf("%x", [Size]byte(c))
}

// IsZero reports whether c is the zero CID.
func (c CID) IsZero() bool {
	return c == CID{}
}

// MemoKey identifies a single (query-kind, canonical-args) pair. Equal memo
// keys denote semantically identical queries.
type MemoKey [Size]byte

// String renders the MemoKey as a hex string, for logging and diagnostics.
func (k MemoKey) String() string {
	return fmt.Sprintf("%x", [Size]byte(k))
}

// Shard derives a shard index in [0, shardCount) from the low 32 bits of
// the memo key, so that a sharded cache can route a lookup without
// touching any other shard's lock.
func (k MemoKey) Shard(shardCount int) int {
	low := uint32(k[28]) | uint32(k[29])<<8 | uint32(k[30])<<16 | uint32(k[31])<<24
	return int(low) % shardCount
}

// Kind is a closed, tagged enumeration of query kinds. The tag's stable
// name (not its numeric value) is part of the memo-key hash pre-image, so
// renumbering Kind constants never changes existing memo keys so long as
// Name() is unchanged.
type Kind uint8

const (
	KindSymbolInfo Kind = iota
	KindTypeInfo
	KindDispatchInfo
	KindEffectsInfo
	KindDefinitionInfo
	KindHoverInfo
	KindIRInfo
)

// Name returns the stable, hash-visible name of the query kind.
func (k Kind) Name() string {
	switch k {
	case KindSymbolInfo:
		return "symbol-info"
	case KindTypeInfo:
		return "type-info"
	case KindDispatchInfo:
		return "dispatch-info"
	case KindEffectsInfo:
		return "effects-info"
	case KindDefinitionInfo:
		return "definition-info"
	case KindHoverInfo:
		return "hover-info"
	case KindIRInfo:
		return "ir-info"
	default:
		return fmt.Sprintf("unknown-kind(%d)", uint8(k))
	}
}

func (k Kind) String() string { return k.Name() }

// Valid reports whether k is one of the closed set of declared kinds.
func (k Kind) Valid() bool {
	return k <= KindIRInfo
}

// ArgTag is the 8-bit type tag written before each canonical argument.
type ArgTag uint8

const (
	ArgTagCID    ArgTag = 0
	ArgTagScalar ArgTag = 1
	ArgTagString ArgTag = 2
)

// Arg is a tagged-variant query argument: exactly one of CID, Scalar, or
// String is meaningful, selected by Tag.
type Arg struct {
	Tag    ArgTag
	CID    CID
	Scalar int64
	Str    string
}

// ArgCID constructs a CID-tagged argument.
func ArgCID(c CID) Arg { return Arg{Tag: ArgTagCID, CID: c} }

// ArgScalar constructs a Scalar-tagged argument.
func ArgScalar(v int64) Arg { return Arg{Tag: ArgTagScalar, Scalar: v} }

// ArgString constructs a String-tagged argument.
func ArgString(s string) Arg { return Arg{Tag: ArgTagString, Str: s} }

// ComputeMemoKey hashes the query kind's stable name followed by the
// caller-supplied canonical encoding of its arguments:
// MemoKey = BLAKE3(query-id-name ‖ canonical-encoded-args).
func ComputeMemoKey(kind Kind, canonicalArgs []byte) MemoKey {
	h := blake3.New()
	_, _ = h.Write([]byte(kind.Name()))
	_, _ = h.Write(canonicalArgs)
	var out MemoKey
	copy(out[:], h.Sum(nil))
	return out
}
