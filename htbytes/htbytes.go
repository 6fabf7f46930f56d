// Package htbytes converts the many ways a caller may hold a leaf or digest
// into the single canonical form used by a hash tree: a plain byte slice.
package htbytes

import (
	"bytes"
	"encoding"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"reflect"
	"strings"
)

// ErrUnsupportedType is returned from [Canonicalize]
// when the value has no known byte representation.
var ErrUnsupportedType = errors.New("unsupported leaf type")

// ErrMalformedHex is returned when a 0x-prefixed string
// is not valid hexadecimal.
var ErrMalformedHex = errors.New("malformed hex string")

// byteser is satisfied by values such as *big.Int or *bytes.Buffer.
type byteser interface {
	Bytes() []byte
}

// Canonicalize returns the canonical byte form of v.
//
// Accepted inputs:
//   - []byte, returned unchanged (so canonicalizing a digest is idempotent);
//   - string with a 0x prefix, decoded as hex;
//   - any other string, taken as its raw UTF-8 bytes;
//   - fixed-size byte arrays such as [32]byte;
//   - a [hash.Hash], whose current Sum is used;
//   - values with a Bytes() []byte method;
//   - [encoding.BinaryMarshaler] implementations.
//
// A nil value canonicalizes to a nil slice without error;
// callers that require a value must check the length.
func Canonicalize(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return x, nil
	case string:
		if HasHexPrefix(x) {
			return ParseHex(x)
		}
		return []byte(x), nil
	case hash.Hash:
		return x.Sum(nil), nil
	case byteser:
		return x.Bytes(), nil
	case encoding.BinaryMarshaler:
		b, err := x.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal leaf: %w", err)
		}
		return b, nil
	}

	// Named byte slices and fixed-size digests like [32]byte.
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Array || rv.Kind() == reflect.Slice) &&
		rv.Type().Elem().Kind() == reflect.Uint8 {
		out := make([]byte, rv.Len())
		for i := range out {
			out[i] = byte(rv.Index(i).Uint())
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

// HasHexPrefix reports whether s begins with 0x or 0X.
func HasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// ParseHex decodes s as hexadecimal, with or without a 0x prefix.
func ParseHex(s string) ([]byte, error) {
	if HasHexPrefix(s) {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHex, err)
	}
	return b, nil
}

// Hex returns the 0x-prefixed lowercase hex encoding of b.
func Hex(b []byte) string {
	var sb strings.Builder
	sb.Grow(2 + 2*len(b))
	sb.WriteString("0x")
	sb.WriteString(hex.EncodeToString(b))
	return sb.String()
}

// Reverse returns a reversed copy of b.
// The input is never modified.
func Reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// Concat returns a newly allocated slice holding a followed by b.
func Concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// SortedConcat is like [Concat],
// but places the lexicographically smaller operand first.
func SortedConcat(a, b []byte) []byte {
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	return Concat(a, b)
}
