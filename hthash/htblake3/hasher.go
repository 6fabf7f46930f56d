// Package htblake3 provides an [hthash.Hasher] backed by BLAKE3
// with a 256-bit output.
package htblake3

import (
	"github.com/gordian-engine/hashtree/hthash"
	"github.com/zeebo/blake3"
)

const HashSize = 32

// Hasher is a [hthash.Hasher] backed by BLAKE3.
type Hasher struct{}

var _ hthash.Hasher = Hasher{}

func (Hasher) Hash(data []byte) ([]byte, error) {
	sum := blake3.Sum256(data)
	return sum[:], nil
}
