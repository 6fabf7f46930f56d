package hashtree

import (
	"bytes"

	"github.com/bits-and-blooms/bitset"
	"github.com/gordian-engine/hashtree/htbytes"
)

// Position addresses a node by layer and index within the layer.
// Layer 0 holds the leaves.
type Position struct {
	Layer, Index int
}

// Parent returns the position of p's parent.
// The result is meaningless for the root.
func (p Position) Parent() Position {
	return Position{Layer: p.Layer + 1, Index: p.Index / 2}
}

// NodeKind distinguishes the variants of [Node].
type NodeKind uint8

const (
	// KindLeaf is a layer 0 node wrapping a leaf.
	KindLeaf NodeKind = iota + 1

	// KindInternal is a node whose digest was computed
	// from a left and right child.
	// A self-paired trailing node has Left == Right.
	KindInternal

	// KindPromoted is the copy of a lone trailing node
	// carried unchanged into the next layer.
	// Only Left is set.
	KindPromoted
)

func (k NodeKind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindInternal:
		return "internal"
	case KindPromoted:
		return "promoted"
	default:
		return "unknown"
	}
}

// Node is a read-only view of one tree node.
//
// The Digest slice references the tree's memory
// and must not be modified.
type Node struct {
	Kind NodeKind
	Pos  Position

	Digest []byte

	// Children, for KindInternal and KindPromoted.
	Left, Right Position

	// Parent is only valid when HasParent is true;
	// the root has no parent.
	Parent    Position
	HasParent bool
}

// Tree is a binary hash tree.
//
// Create a Tree with [Build], [BuildLeaves], an [Incremental] builder,
// or [Reconstruct].
// A Tree is immutable after construction
// and safe for concurrent use by multiple readers.
type Tree[M any] struct {
	cfg  Config
	comb combiner

	leaves []Leaf[M]

	// Every digest in the tree, layer 0 first.
	// Internal nodes are views into one backing allocation.
	nodes [][]byte

	// layerStarts[i] is the index into nodes of layer i's first node.
	// The final entry is len(nodes).
	layerStarts []int

	// Flat indices of promoted nodes.
	promoted *bitset.BitSet
}

// layerSizes returns the width of every layer of a tree with n leaves.
func layerSizes(n int) []int {
	if n == 0 {
		return nil
	}
	sizes := []int{n}
	for n > 1 {
		n = (n + 1) / 2
		sizes = append(sizes, n)
	}
	return sizes
}

// newArena returns a tree with room for every node above the given leaves.
// The leaf digests are stored directly in layer 0;
// internal nodes are backed by a single allocation of width bytes each.
func newArena[M any](cfg Config, comb combiner, leaves []Leaf[M], layer0 [][]byte) *Tree[M] {
	sizes := layerSizes(len(layer0))

	starts := make([]int, len(sizes)+1)
	for i, sz := range sizes {
		starts[i+1] = starts[i] + sz
	}
	nNodes := starts[len(sizes)]

	nodes := make([][]byte, nNodes)
	copy(nodes, layer0)

	// Digests above layer 0 are hasher outputs of a known width,
	// except for promoted nodes which may copy arbitrary-width leaves.
	// Each view has its capacity clamped,
	// so an oversized value reallocates instead of overwriting a neighbor.
	width := comb.width
	mem := make([]byte, (nNodes-len(layer0))*width)
	for i := len(layer0); i < nNodes; i++ {
		start := (i - len(layer0)) * width
		nodes[i] = mem[start:start:(start + width)]
	}

	return &Tree[M]{
		cfg:  cfg,
		comb: comb,

		leaves: leaves,

		nodes:       nodes,
		layerStarts: starts,

		promoted: bitset.MustNew(uint(nNodes)),
	}
}

func (t *Tree[M]) flatIndex(p Position) int {
	return t.layerStarts[p.Layer] + p.Index
}

func (t *Tree[M]) layer(i int) [][]byte {
	return t.nodes[t.layerStarts[i]:t.layerStarts[i+1]]
}

func (t *Tree[M]) layerLen(i int) int {
	return t.layerStarts[i+1] - t.layerStarts[i]
}

func (t *Tree[M]) valid(p Position) bool {
	return p.Layer >= 0 && p.Layer < t.LayerCount() &&
		p.Index >= 0 && p.Index < t.layerLen(p.Layer)
}

// set stores the digest at p, copying it into the arena.
func (t *Tree[M]) set(p Position, d []byte, promoted bool) {
	i := t.flatIndex(p)
	t.nodes[i] = append(t.nodes[i][:0], d...)
	if promoted {
		t.promoted.Set(uint(i))
	}
}

// Config returns the configuration the tree was built with.
func (t *Tree[M]) Config() Config {
	return t.cfg
}

// LayerCount returns the number of layers, including the leaves.
// An empty tree has zero layers.
func (t *Tree[M]) LayerCount() int {
	return len(t.layerStarts) - 1
}

// Depth returns the number of layers above the leaves.
func (t *Tree[M]) Depth() int {
	return max(0, t.LayerCount()-1)
}

// LeafCount returns the number of leaves.
func (t *Tree[M]) LeafCount() int {
	return len(t.leaves)
}

// Root returns the root digest, or nil for an empty tree.
// The caller must not modify the returned slice.
func (t *Tree[M]) Root() []byte {
	if len(t.nodes) == 0 {
		return nil
	}
	return t.nodes[len(t.nodes)-1]
}

// HexRoot returns the 0x-prefixed hex encoding of the root.
func (t *Tree[M]) HexRoot() string {
	return htbytes.Hex(t.Root())
}

// Layer returns the digests of layer i,
// or nil if i is out of range.
// The caller must not modify the returned slices.
func (t *Tree[M]) Layer(i int) [][]byte {
	if i < 0 || i >= t.LayerCount() {
		return nil
	}
	return t.layer(i)
}

// Layers returns all layers, leaves first.
// The caller must not modify the returned slices.
func (t *Tree[M]) Layers() [][][]byte {
	out := make([][][]byte, t.LayerCount())
	for i := range out {
		out[i] = t.layer(i)
	}
	return out
}

// HexLayers is like [*Tree.Layers] with every digest hex encoded.
func (t *Tree[M]) HexLayers() [][]string {
	out := make([][]string, t.LayerCount())
	for i := range out {
		l := t.layer(i)
		out[i] = make([]string, len(l))
		for j, d := range l {
			out[i][j] = htbytes.Hex(d)
		}
	}
	return out
}

// Leaves returns the layer 0 digests.
func (t *Tree[M]) Leaves() [][]byte {
	return t.Layer(0)
}

// Leaf returns the original leaf at index i, in layer 0 order
// (that is, after sorting if SortLeaves was set).
func (t *Tree[M]) Leaf(i int) (Leaf[M], bool) {
	if i < 0 || i >= len(t.leaves) {
		return Leaf[M]{}, false
	}
	return t.leaves[i], true
}

// LeafIndex returns the index of the first layer 0 digest
// byte-equal to the canonical form of v, or -1.
func (t *Tree[M]) LeafIndex(v any) int {
	b, err := htbytes.Canonicalize(v)
	if err != nil {
		return -1
	}
	for i, l := range t.Leaves() {
		if bytes.Equal(l, b) {
			return i
		}
	}
	return -1
}

// Node returns the node at p.
// It reports false if p is outside the tree.
func (t *Tree[M]) Node(p Position) (Node, bool) {
	if !t.valid(p) {
		return Node{}, false
	}

	n := Node{
		Pos:    p,
		Digest: t.nodes[t.flatIndex(p)],
	}

	if p.Layer < t.LayerCount()-1 {
		n.Parent = p.Parent()
		n.HasParent = true
	}

	if p.Layer == 0 {
		n.Kind = KindLeaf
		return n, true
	}

	n.Left = Position{Layer: p.Layer - 1, Index: 2 * p.Index}
	if t.promoted.Test(uint(t.flatIndex(p))) {
		n.Kind = KindPromoted
		return n, true
	}

	n.Kind = KindInternal
	n.Right = Position{Layer: p.Layer - 1, Index: 2*p.Index + 1}
	if n.Right.Index >= t.layerLen(p.Layer-1) {
		// Self-paired trailing node.
		n.Right = n.Left
	}
	return n, true
}
