// Package codec implements the canonical, bit-exact binary encoding of
// query arguments and query results. It is the sole source of
// memoization identity: two structurally equal inputs must always
// produce byte-identical output, and decode(encode(x)) == x for every
// valid x.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/janus-lang/janus-sub015/id"
)

// Error sentinels for encoding and decoding failures.
var (
	// ErrNonCanonicalArg is returned when a String argument's bytes are
	// not valid UTF-8.
	ErrNonCanonicalArg = errors.New("codec: non-canonical argument")
	// ErrInvalidArgType is returned by Decode when an unknown argument
	// type tag is encountered.
	ErrInvalidArgType = errors.New("codec: invalid argument type")
	// ErrInvalidResultType is returned by DecodeResult when an unknown
	// result variant tag is encountered.
	ErrInvalidResultType = errors.New("codec: invalid result type")
	// ErrUnexpectedEndOfData is returned whenever the input is truncated
	// relative to a length prefix or fixed-size field.
	ErrUnexpectedEndOfData = errors.New("codec: unexpected end of data")
)

// EncodeArgs writes the canonical argument-sequence encoding of args:
//
//	[u32 count][ per arg: u8 tag, payload ]
//
// It fails with ErrNonCanonicalArg if any String argument is not valid
// UTF-8 — such input can never be canonical, so it is rejected rather than
// silently encoded.
func EncodeArgs(args []id.Arg) ([]byte, error) {
	buf := make([]byte, 0, 4+len(args)*9)
	buf = appendUint32(buf, uint32(len(args)))
	for _, a := range args {
		var err error
		buf, err = appendArg(buf, a)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendArg(buf []byte, a id.Arg) ([]byte, error) {
	buf = append(buf, byte(a.Tag))
	switch a.Tag {
	case id.ArgTagCID:
		buf = append(buf, a.CID[:]...)
	case id.ArgTagScalar:
		buf = appendInt64(buf, a.Scalar)
	case id.ArgTagString:
		if !utf8.ValidString(a.Str) {
			return nil, fmt.Errorf("%w: arg string is not valid UTF-8", ErrNonCanonicalArg)
		}
		buf = appendUint32(buf, uint32(len(a.Str)))
		buf = append(buf, a.Str...)
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrInvalidArgType, a.Tag)
	}
	return buf, nil
}

// DecodeArgs parses the canonical encoding produced by EncodeArgs.
func DecodeArgs(data []byte) ([]id.Arg, error) {
	r := &reader{buf: data}
	count, err := r.uint32()
	if err != nil {
		return nil, err
	}
	args := make([]id.Arg, 0, count)
	for i := uint32(0); i < count; i++ {
		a, err := decodeArg(r)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}

func decodeArg(r *reader) (id.Arg, error) {
	tagByte, err := r.uint8()
	if err != nil {
		return id.Arg{}, err
	}
	switch id.ArgTag(tagByte) {
	case id.ArgTagCID:
		var c id.CID
		b, err := r.bytes(id.Size)
		if err != nil {
			return id.Arg{}, err
		}
		copy(c[:], b)
		return id.ArgCID(c), nil
	case id.ArgTagScalar:
		v, err := r.int64()
		if err != nil {
			return id.Arg{}, err
		}
		return id.ArgScalar(v), nil
	case id.ArgTagString:
		s, err := r.lengthPrefixedString()
		if err != nil {
			return id.Arg{}, err
		}
		return id.ArgString(s), nil
	default:
		return id.Arg{}, fmt.Errorf("%w: tag %d", ErrInvalidArgType, tagByte)
	}
}

// --- low-level helpers ---

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendInt64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) uint8() (byte, error) {
	if r.pos+1 > len(r.buf) {
		return 0, ErrUnexpectedEndOfData
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) int64() (int64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, ErrUnexpectedEndOfData
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) lengthPrefixedString() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: decoded string is not valid UTF-8", ErrNonCanonicalArg)
	}
	return string(b), nil
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }
