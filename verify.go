package hashtree

import (
	"bytes"

	"github.com/gordian-engine/hashtree/htbytes"
	"github.com/gordian-engine/hashtree/hthash"
)

// Verifier checks proofs without access to the tree.
// Its fields must match the [Config] the tree was built with.
type Verifier struct {
	Hasher hthash.Hasher

	SortPairs bool
	Bitcoin   bool
}

// Verifier returns a Verifier matching the tree's configuration.
func (t *Tree[M]) Verifier() Verifier {
	return Verifier{
		Hasher:    t.cfg.Hasher,
		SortPairs: t.cfg.SortPairs,
		Bitcoin:   t.cfg.Bitcoin,
	}
}

// Verify is shorthand for t.Verifier().Verify.
func (t *Tree[M]) Verify(proof Proof, leaf, root any) bool {
	return t.Verifier().Verify(proof, leaf, root)
}

// Verify reports whether replaying proof from leaf yields root.
//
// The leaf and root are canonicalized with [htbytes.Canonicalize].
// Verify never panics on malformed input:
// an empty proof, a missing leaf or root,
// a value that cannot be canonicalized,
// or a hasher error all result in false.
//
// Each sibling is combined with the running hash using the same rule
// the tree builder uses for a pair:
// a [SideLeft] sibling is the left operand,
// and any other sibling is the right operand.
// With SortPairs the recorded side is irrelevant.
func (v Verifier) Verify(proof Proof, leaf, root any) bool {
	if len(proof) == 0 || v.Hasher == nil {
		return false
	}

	acc, err := htbytes.Canonicalize(leaf)
	if err != nil || len(acc) == 0 {
		return false
	}
	want, err := htbytes.Canonicalize(root)
	if err != nil || len(want) == 0 {
		return false
	}

	c := combiner{
		h:         v.Hasher,
		sortPairs: v.SortPairs,
		bitcoin:   v.Bitcoin,
	}
	for _, e := range proof {
		if e.Side == SideLeft {
			acc, err = c.pair(e.Digest, acc)
		} else {
			acc, err = c.pair(acc, e.Digest)
		}
		if err != nil {
			return false
		}
	}

	return bytes.Equal(acc, want)
}

// VerifyHex verifies a proof given as bare hex digests,
// each of which is treated as a left sibling.
// A malformed hex entry results in false.
func (v Verifier) VerifyHex(proof []string, leaf, root any) bool {
	p := make(Proof, len(proof))
	for i, s := range proof {
		d, err := htbytes.ParseHex(s)
		if err != nil {
			return false
		}
		p[i] = ProofEntry{Side: SideLeft, Digest: d}
	}
	return v.Verify(p, leaf, root)
}
