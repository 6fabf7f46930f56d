// Package htsha3 provides an [hthash.Hasher] backed by SHA3-256.
package htsha3

import (
	"github.com/gordian-engine/hashtree/hthash"
	"golang.org/x/crypto/sha3"
)

const HashSize = 32

// Hasher is a [hthash.Hasher] backed by FIPS 202 SHA3-256.
type Hasher struct{}

var _ hthash.Hasher = Hasher{}

func (Hasher) Hash(data []byte) ([]byte, error) {
	sum := sha3.Sum256(data)
	return sum[:], nil
}
