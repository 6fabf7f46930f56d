// Package hthash adapts caller-supplied hash functions
// to the [Hasher] interface consumed by a hash tree.
//
// The tree treats the hash function as an opaque, pure function
// from bytes to bytes.
// Implementations in the subpackages wrap common digests;
// [Func] and [HexFunc] wrap arbitrary functions.
package hthash

import (
	"errors"
	"fmt"

	"github.com/gordian-engine/hashtree/htbytes"
)

// Hasher is the user-defined interface for hashing tree input.
//
// Hash must be deterministic: identical input must always produce
// identical output.
// The returned slice must not alias data,
// and the Hasher must not retain a reference to data.
// Hasher methods must be safe to call concurrently.
type Hasher interface {
	Hash(data []byte) ([]byte, error)
}

// ErrEmptyDigest is returned when a hash function produced no output.
var ErrEmptyDigest = errors.New("hash function returned an empty digest")

// ErrMalformedDigest is returned when a hex-producing hash function
// returned something that could not be decoded.
var ErrMalformedDigest = errors.New("hash function returned a malformed digest")

// Func adapts a function returning raw bytes into a [Hasher].
type Func func(data []byte) []byte

func (f Func) Hash(data []byte) ([]byte, error) {
	out := f(data)
	if len(out) == 0 {
		return nil, ErrEmptyDigest
	}
	return out, nil
}

// HexFunc adapts a function returning a hex-encoded digest into a [Hasher].
// The 0x prefix is optional.
type HexFunc func(data []byte) string

func (f HexFunc) Hash(data []byte) ([]byte, error) {
	s := f(data)
	out, err := htbytes.ParseHex(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedDigest, s, err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyDigest
	}
	return out, nil
}

// Double returns a Hasher that applies h twice.
func Double(h Hasher) Hasher {
	return doubleHasher{h: h}
}

type doubleHasher struct {
	h Hasher
}

func (d doubleHasher) Hash(data []byte) ([]byte, error) {
	once, err := d.h.Hash(data)
	if err != nil {
		return nil, err
	}
	return d.h.Hash(once)
}
