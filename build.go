package hashtree

import (
	"bytes"
	"slices"
)

// Build builds a tree over plain leaves.
// It is shorthand for [BuildLeaves] with [PlainLeaves] and no [Augmenter].
func Build(leaves [][]byte, cfg Config) (*Tree[NoMeta], error) {
	return BuildLeaves(PlainLeaves(leaves), cfg, nil)
}

// BuildLeaves eagerly builds every layer of a tree over the given leaves.
//
// The leaf data is copied, so the caller may reuse the input slices.
// If aug is non-nil, it produces the layer 0 input for each leaf.
//
// Any error is returned before a tree is exposed;
// a failed build never yields a partial tree.
func BuildLeaves[M any](leaves []Leaf[M], cfg Config, aug Augmenter[M]) (*Tree[M], error) {
	t, err := prepare(leaves, cfg, aug)
	if err != nil {
		return nil, err
	}

	for layer := 0; layer < t.LayerCount()-1; layer++ {
		width := t.layerLen(layer)

		// Every odd index completes a pair,
		// and a trailing even index is a lone node.
		for i := 0; i < width; i++ {
			if i&1 == 0 && i+1 < width {
				continue
			}
			if err := t.fillParent(Position{Layer: layer, Index: i}); err != nil {
				return nil, err
			}
		}
	}

	return t, nil
}

// prepare validates the hasher, computes layer 0,
// and allocates the arena for the rest of the tree.
// It is shared by the eager and incremental builders,
// so that input errors surface before any layer above the leaves exists.
func prepare[M any](in []Leaf[M], cfg Config, aug Augmenter[M]) (*Tree[M], error) {
	if cfg.Hasher == nil {
		return nil, ErrNoHasher
	}

	comb := newCombiner(cfg)
	if err := comb.calibrate(); err != nil {
		return nil, &InputError{Op: "calibrate hasher", Err: err}
	}

	leaves := make([]Leaf[M], len(in))
	layer0 := make([][]byte, len(in))
	for i, l := range in {
		data := bytes.Clone(l.Data)
		v := data

		if aug != nil {
			var err error
			v, err = aug(data, l.Meta)
			if err != nil {
				return nil, &InputError{
					Op: "augment leaf", At: &Position{Index: i}, Err: err,
				}
			}
		}

		if cfg.HashLeaves {
			var err error
			v, err = comb.hash(v)
			if err != nil {
				return nil, &InputError{
					Op: "hash leaf", At: &Position{Index: i}, Err: err,
				}
			}
		}

		leaves[i] = Leaf[M]{Data: data, Meta: l.Meta}
		layer0[i] = v
	}

	if cfg.SortLeaves {
		order := make([]int, len(layer0))
		for i := range order {
			order[i] = i
		}
		slices.SortStableFunc(order, func(a, b int) int {
			return bytes.Compare(layer0[a], layer0[b])
		})

		sortedLeaves := make([]Leaf[M], len(leaves))
		sortedLayer0 := make([][]byte, len(layer0))
		for i, j := range order {
			sortedLeaves[i] = leaves[j]
			sortedLayer0[i] = layer0[j]
		}
		leaves, layer0 = sortedLeaves, sortedLayer0
	}

	return newArena(cfg, comb, leaves, layer0), nil
}

// fillParent computes the parent digest of the node at p.
// The node at p must be either the right member of a pair
// or the trailing node of an odd-length layer.
func (t *Tree[M]) fillParent(p Position) error {
	cur := t.layer(p.Layer)
	parent := p.Parent()

	if p.Index&1 == 1 {
		d, err := t.comb.pair(cur[p.Index-1], cur[p.Index])
		if err != nil {
			return &InputError{Op: "hash node", At: &parent, Err: err}
		}
		t.set(parent, d, false)
		return nil
	}

	d, promoted, err := t.comb.lone(cur[p.Index])
	if err != nil {
		return &InputError{Op: "hash node", At: &parent, Err: err}
	}
	t.set(parent, d, promoted)
	return nil
}

// parentDigest returns the already computed digest of p's parent.
func (t *Tree[M]) parentDigest(p Position) []byte {
	return t.nodes[t.flatIndex(p.Parent())]
}
