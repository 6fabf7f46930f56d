// Package htkeccak256 provides an [hthash.Hasher] backed by
// the original Keccak-256, as used by Ethereum.
// It differs from SHA3-256 only in padding.
package htkeccak256

import (
	"github.com/gordian-engine/hashtree/hthash"
	"golang.org/x/crypto/sha3"
)

const HashSize = 32

// Hasher is a [hthash.Hasher] backed by legacy Keccak-256.
type Hasher struct{}

var _ hthash.Hasher = Hasher{}

func (Hasher) Hash(data []byte) ([]byte, error) {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(data)
	return h.Sum(nil), nil
}
