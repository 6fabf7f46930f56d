package hashtree

import (
	"fmt"

	"github.com/gordian-engine/hashtree/htbytes"
	"github.com/gordian-engine/hashtree/hthash"
)

// Config is the tree construction policy.
//
// The same Config must be used to verify proofs
// that was used to build the tree.
type Config struct {
	// Hasher is required for building and verifying.
	// Reconstructing from a snapshot does not hash,
	// but a reconstructed tree needs a Hasher to verify proofs.
	Hasher hthash.Hasher

	// HashLeaves hashes each leaf (after augmentation)
	// before it is placed in layer 0.
	HashLeaves bool

	// SortLeaves sorts layer 0 lexicographically.
	SortLeaves bool

	// SortPairs orders the two operands of every pair lexicographically
	// before hashing, which makes proofs independent of sibling position.
	SortPairs bool

	// DuplicateOdd pairs the trailing node of an odd-length layer with itself
	// instead of promoting it unchanged.
	// Ignored when Bitcoin is set, which always duplicates.
	DuplicateOdd bool

	// Bitcoin selects the Bitcoin transaction tree rules:
	// operands are byte-reversed before concatenation,
	// the concatenation is hashed twice,
	// and the resulting digest is reversed.
	Bitcoin bool
}

// selfPairs reports whether the trailing node of an odd layer
// is paired with itself rather than promoted.
func (c Config) selfPairs() bool {
	return c.Bitcoin || c.DuplicateOdd
}

// NoMeta is the metadata type for leaves without caller metadata.
type NoMeta = struct{}

// Leaf is a single input datum with optional caller metadata.
type Leaf[M any] struct {
	Data []byte
	Meta M
}

// PlainLeaves wraps raw leaf data with no metadata.
func PlainLeaves(data [][]byte) []Leaf[NoMeta] {
	out := make([]Leaf[NoMeta], len(data))
	for i, d := range data {
		out[i].Data = d
	}
	return out
}

// Augmenter transforms a leaf and its metadata into the bytes
// that enter layer 0 (or that are hashed into layer 0, with HashLeaves).
// A nil Augmenter uses the leaf data unchanged.
type Augmenter[M any] func(data []byte, meta M) ([]byte, error)

// combiner applies the pairing policy of a Config.
type combiner struct {
	h hthash.Hasher

	sortPairs bool
	bitcoin   bool
	selfPairs bool

	// Expected output width of h; zero disables the check.
	width int
}

func newCombiner(cfg Config) combiner {
	return combiner{
		h:         cfg.Hasher,
		sortPairs: cfg.SortPairs,
		bitcoin:   cfg.Bitcoin,
		selfPairs: cfg.selfPairs(),
	}
}

// calibrate hashes the empty input once,
// so that a malformed hasher fails before any layer is built,
// and records the digest width for later checks.
func (c *combiner) calibrate() error {
	out, err := c.h.Hash(nil)
	if err != nil {
		return err
	}
	if len(out) == 0 {
		return hthash.ErrEmptyDigest
	}
	c.width = len(out)
	return nil
}

func (c *combiner) hash(data []byte) ([]byte, error) {
	out, err := c.h.Hash(data)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, hthash.ErrEmptyDigest
	}
	if c.width > 0 && len(out) != c.width {
		return nil, fmt.Errorf(
			"%w: got %d bytes, expected %d", errDigestWidth, len(out), c.width,
		)
	}
	return out, nil
}

// pair returns the parent digest of left and right.
func (c *combiner) pair(left, right []byte) ([]byte, error) {
	if c.bitcoin {
		left, right = htbytes.Reverse(left), htbytes.Reverse(right)
	}

	var in []byte
	if c.sortPairs {
		in = htbytes.SortedConcat(left, right)
	} else {
		in = htbytes.Concat(left, right)
	}

	out, err := c.hash(in)
	if err != nil || !c.bitcoin {
		return out, err
	}

	out, err = c.hash(out)
	if err != nil {
		return nil, err
	}
	return htbytes.Reverse(out), nil
}

// lone returns the parent digest of the trailing node of an odd layer.
// If promoted is true, the returned digest is n itself.
func (c *combiner) lone(n []byte) (digest []byte, promoted bool, err error) {
	if !c.selfPairs {
		return n, true, nil
	}
	d, err := c.pair(n, n)
	return d, false, err
}
