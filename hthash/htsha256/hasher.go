// Package htsha256 provides an [hthash.Hasher] backed by SHA-256.
package htsha256

import (
	"crypto/sha256"

	"github.com/gordian-engine/hashtree/hthash"
)

const HashSize = sha256.Size

// Hasher is a [hthash.Hasher] backed by SHA-256 hashes.
type Hasher struct{}

var _ hthash.Hasher = Hasher{}

func (Hasher) Hash(data []byte) ([]byte, error) {
	sum := sha256.Sum256(data)
	return sum[:], nil
}
