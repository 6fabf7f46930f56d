package hashtree

import (
	"encoding/json"
	"fmt"

	"github.com/gordian-engine/hashtree/htbytes"
)

// Side is the position of a proof sibling relative to the running hash.
type Side uint8

const (
	// SideNone is used by Bitcoin proofs
	// where the running hash is the left operand.
	// Verifiers treat it like SideRight.
	SideNone Side = iota
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return ""
	}
}

// ProofEntry is one sibling digest in a [Proof].
type ProofEntry struct {
	Side   Side
	Digest []byte
}

type proofEntryJSON struct {
	Position string `json:"position,omitempty"`
	Data     string `json:"data"`
}

// MarshalJSON encodes e as {"position":"left","data":"0x…"}.
// The position is omitted for [SideNone].
func (e ProofEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(proofEntryJSON{
		Position: e.Side.String(),
		Data:     htbytes.Hex(e.Digest),
	})
}

// UnmarshalJSON accepts the object form written by MarshalJSON,
// or a bare hex string, which is taken as a left sibling.
func (e *ProofEntry) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		d, err := htbytes.ParseHex(s)
		if err != nil {
			return err
		}
		*e = ProofEntry{Side: SideLeft, Digest: d}
		return nil
	}

	var v proofEntryJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("failed to decode proof entry: %w", err)
	}

	d, err := htbytes.ParseHex(v.Data)
	if err != nil {
		return err
	}

	var side Side
	switch v.Position {
	case "left":
		side = SideLeft
	case "right":
		side = SideRight
	case "":
		side = SideNone
	default:
		return fmt.Errorf("unknown proof position %q", v.Position)
	}

	*e = ProofEntry{Side: side, Digest: d}
	return nil
}

// Proof is an authentication path from a leaf to the root,
// leaf-adjacent sibling first.
type Proof []ProofEntry

// Hex returns the sibling digests as 0x-prefixed hex,
// dropping the sides.
func (p Proof) Hex() []string {
	out := make([]string, len(p))
	for i, e := range p {
		out[i] = htbytes.Hex(e.Digest)
	}
	return out
}

// Proof returns the proof for the first leaf in layer 0
// that is byte-equal to the canonical form of leaf.
//
// If no leaf matches, or leaf cannot be canonicalized,
// Proof returns an empty proof and a nil error.
// Use [*Tree.ProofAt] to disambiguate duplicate leaves.
func (t *Tree[M]) Proof(leaf any) (Proof, error) {
	idx := t.LeafIndex(leaf)
	if idx < 0 {
		return Proof{}, nil
	}
	return t.ProofAt(idx)
}

// ProofAt returns the proof for the leaf at the given layer 0 index.
// An out of range index yields an empty proof.
//
// For trees built with the Bitcoin policy,
// only the last leaf is supported;
// any other index returns [ErrBitcoinProofUnsupported].
func (t *Tree[M]) ProofAt(index int) (Proof, error) {
	if index < 0 || index >= t.LeafCount() {
		return Proof{}, nil
	}

	if t.cfg.Bitcoin {
		if index != t.LeafCount()-1 {
			return nil, ErrBitcoinProofUnsupported
		}
		return t.bitcoinProof(index), nil
	}

	p := make(Proof, 0, t.Depth())
	for layer := 0; layer < t.LayerCount()-1; layer++ {
		cur := t.layer(layer)

		switch {
		case index&1 == 1:
			p = append(p, ProofEntry{Side: SideLeft, Digest: cur[index-1]})
		case index+1 < len(cur):
			p = append(p, ProofEntry{Side: SideRight, Digest: cur[index+1]})
		case !t.promoted.Test(uint(t.flatIndex(Position{Layer: layer + 1, Index: index / 2}))):
			// Trailing node paired with itself.
			p = append(p, ProofEntry{Side: SideRight, Digest: cur[index]})
		default:
			// Promoted: no sibling at this layer.
		}

		index /= 2
	}
	return p, nil
}

// bitcoinProof walks the rightmost path of the tree.
// The last node of a layer is either paired with itself
// or with its left neighbor.
func (t *Tree[M]) bitcoinProof(index int) Proof {
	p := make(Proof, 0, t.Depth())
	for layer := 0; layer < t.LayerCount()-1; layer++ {
		cur := t.layer(layer)
		if index&1 == 1 {
			p = append(p, ProofEntry{Side: SideLeft, Digest: cur[index-1]})
		} else {
			p = append(p, ProofEntry{Side: SideNone, Digest: cur[index]})
		}
		index /= 2
	}
	return p
}

// ProofShape returns the sides a proof from [*Tree.ProofAt] will have,
// for a tree of leafCount leaves built with cfg,
// without needing the tree itself.
//
// Comparing a received proof's sides against ProofShape
// binds the proof to a leaf index.
// It returns nil for an out of range index.
func ProofShape(leafCount, index int, cfg Config) []Side {
	if index < 0 || index >= leafCount {
		return nil
	}
	if cfg.Bitcoin && index != leafCount-1 {
		return nil
	}

	sizes := layerSizes(leafCount)
	out := make([]Side, 0, len(sizes))
	for _, width := range sizes[:len(sizes)-1] {
		switch {
		case index&1 == 1:
			out = append(out, SideLeft)
		case cfg.Bitcoin:
			out = append(out, SideNone)
		case index+1 < width || cfg.selfPairs():
			out = append(out, SideRight)
		}
		index /= 2
	}
	return out
}
