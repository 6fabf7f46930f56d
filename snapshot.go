package hashtree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/gordian-engine/hashtree/htbytes"
)

// metaKey marks leaf metadata in the keyed JSON snapshot form.
// It can never be mistaken for a hex digest.
const metaKey = "$meta"

// SnapshotNode is one node of a nested layer snapshot.
//
// A leaf has no children and optionally carries metadata.
// A node above the leaves has two children,
// except the last node of a layer whose width below is odd,
// which has exactly one.
type SnapshotNode struct {
	Digest []byte

	// Leaf metadata as JSON. Only valid on leaves.
	Meta json.RawMessage

	Children []*SnapshotNode
}

// FlatSnapshot is the layer-by-layer form of a snapshot.
// It carries the same information as a [SnapshotNode] tree.
type FlatSnapshot struct {
	// Every layer's digests, leaves first.
	Layers [][][]byte

	// Leaf metadata aligned with Layers[0].
	// Nil when no leaf has metadata;
	// otherwise entries for leaves without metadata are nil.
	Meta []json.RawMessage
}

// Snapshot exports the tree as nested snapshot nodes.
// It returns nil for an empty tree.
func (t *Tree[M]) Snapshot() (*SnapshotNode, error) {
	f, err := t.FlatSnapshot()
	if err != nil {
		return nil, err
	}
	return f.Nest()
}

// FlatSnapshot exports the tree's layers and leaf metadata.
// The digests are copied.
// Metadata is JSON encoded, unless M is [NoMeta].
func (t *Tree[M]) FlatSnapshot() (FlatSnapshot, error) {
	var f FlatSnapshot

	f.Layers = make([][][]byte, t.LayerCount())
	for i := range f.Layers {
		src := t.layer(i)
		f.Layers[i] = make([][]byte, len(src))
		for j, d := range src {
			f.Layers[i][j] = bytes.Clone(d)
		}
	}

	var zero M
	if _, ok := any(zero).(NoMeta); ok || len(t.leaves) == 0 {
		return f, nil
	}

	f.Meta = make([]json.RawMessage, len(t.leaves))
	for i, l := range t.leaves {
		b, err := json.Marshal(l.Meta)
		if err != nil {
			return FlatSnapshot{}, fmt.Errorf("failed to encode metadata for leaf %d: %w", i, err)
		}
		f.Meta[i] = b
	}
	return f, nil
}

// Nest converts the flat form to nested snapshot nodes.
// It returns nil for a snapshot with no layers.
func (f FlatSnapshot) Nest() (*SnapshotNode, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if len(f.Layers) == 0 {
		return nil, nil
	}

	below := make([]*SnapshotNode, len(f.Layers[0]))
	for i, d := range f.Layers[0] {
		below[i] = &SnapshotNode{Digest: d}
		if f.Meta != nil {
			below[i].Meta = f.Meta[i]
		}
	}

	for _, layer := range f.Layers[1:] {
		cur := make([]*SnapshotNode, len(layer))
		for i, d := range layer {
			n := &SnapshotNode{Digest: d}
			n.Children = append(n.Children, below[2*i])
			if 2*i+1 < len(below) {
				n.Children = append(n.Children, below[2*i+1])
			}
			cur[i] = n
		}
		below = cur
	}

	return below[0], nil
}

// Validate reports a [*StructuralError] if the layer widths
// do not describe a tree, or the metadata does not match the leaves.
func (f FlatSnapshot) Validate() error {
	if len(f.Layers) == 0 {
		if len(f.Meta) != 0 {
			return &StructuralError{Path: "root", Reason: "metadata without leaves"}
		}
		return nil
	}

	sizes := layerSizes(len(f.Layers[0]))
	if len(sizes) != len(f.Layers) {
		return &StructuralError{
			Path: "root",
			Reason: fmt.Sprintf(
				"%d leaves require %d layers, got %d",
				len(f.Layers[0]), len(sizes), len(f.Layers),
			),
		}
	}
	for i, sz := range sizes {
		if len(f.Layers[i]) != sz {
			return &StructuralError{
				Path: "layer " + strconv.Itoa(i),
				Reason: fmt.Sprintf(
					"expected %d nodes, got %d", sz, len(f.Layers[i]),
				),
			}
		}
	}
	if f.Meta != nil && len(f.Meta) != len(f.Layers[0]) {
		return &StructuralError{
			Path: "layer 0",
			Reason: fmt.Sprintf(
				"%d metadata entries for %d leaves", len(f.Meta), len(f.Layers[0]),
			),
		}
	}
	return nil
}

// Flatten converts nested snapshot nodes into layers,
// validating the shape along the way.
// A nil root flattens to an empty snapshot.
func (n *SnapshotNode) Flatten() (FlatSnapshot, error) {
	if n == nil {
		return FlatSnapshot{}, nil
	}

	// Walk top down, one layer at a time.
	cur := []*SnapshotNode{n}
	paths := []string{"root"}
	var topDown [][]*SnapshotNode
	for {
		topDown = append(topDown, cur)

		nLeaves := 0
		for _, c := range cur {
			if len(c.Children) == 0 {
				nLeaves++
			}
		}
		if nLeaves == len(cur) {
			break
		}

		var next []*SnapshotNode
		var nextPaths []string
		for i, c := range cur {
			switch {
			case len(c.Children) == 0:
				return FlatSnapshot{}, &StructuralError{
					Path:   paths[i],
					Reason: "node lacks child keys while its layer has children",
				}
			case len(c.Children) > 2:
				return FlatSnapshot{}, &StructuralError{
					Path:   paths[i],
					Reason: fmt.Sprintf("node has %d children", len(c.Children)),
				}
			case len(c.Children) == 1 && i != len(cur)-1:
				return FlatSnapshot{}, &StructuralError{
					Path:   paths[i],
					Reason: "only the last node of a layer may have a single child",
				}
			case c.Meta != nil:
				return FlatSnapshot{}, &StructuralError{
					Path:   paths[i],
					Reason: "metadata on a node above the leaves",
				}
			}

			for j, child := range c.Children {
				if child == nil {
					return FlatSnapshot{}, &StructuralError{
						Path:   paths[i] + "." + strconv.Itoa(j),
						Reason: "nil child",
					}
				}
				next = append(next, child)
				nextPaths = append(nextPaths, paths[i]+"."+strconv.Itoa(j))
			}
		}
		cur, paths = next, nextPaths
	}

	var f FlatSnapshot
	f.Layers = make([][][]byte, len(topDown))
	for i, layer := range topDown {
		digests := make([][]byte, len(layer))
		for j, node := range layer {
			digests[j] = node.Digest
		}
		f.Layers[len(topDown)-1-i] = digests
	}

	leaves := topDown[len(topDown)-1]
	for i, l := range leaves {
		if l.Meta == nil {
			continue
		}
		if f.Meta == nil {
			f.Meta = make([]json.RawMessage, len(leaves))
		}
		f.Meta[i] = l.Meta
	}

	return f, f.Validate()
}

// Reconstruct rebuilds a tree from a trusted nested snapshot.
// No hashing is performed.
// Leaf metadata is JSON decoded into M,
// and ignored when M is [NoMeta].
// The original leaf input is not part of a snapshot,
// so each reconstructed leaf's Data is its layer 0 digest.
//
// cfg should match the configuration the snapshot was built with;
// it determines whether a single-child node is a promoted copy
// or a self-paired node,
// and it is used to verify proofs from the reconstructed tree.
func Reconstruct[M any](root *SnapshotNode, cfg Config) (*Tree[M], error) {
	f, err := root.Flatten()
	if err != nil {
		return nil, err
	}
	return ReconstructFlat[M](f, cfg)
}

// ReconstructJSON decodes the keyed JSON snapshot form
// and reconstructs the tree. The JSON literal null is an empty tree.
func ReconstructJSON[M any](data []byte, cfg Config) (*Tree[M], error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return ReconstructFlat[M](FlatSnapshot{}, cfg)
	}

	// Decode directly rather than through json.Unmarshal,
	// so that syntax errors are reported with their path.
	var root SnapshotNode
	if err := root.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return Reconstruct[M](&root, cfg)
}

// ReconstructFlat is like [Reconstruct] for the flat snapshot form.
func ReconstructFlat[M any](f FlatSnapshot, cfg Config) (*Tree[M], error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	comb := newCombiner(cfg)

	var zero M
	_, noMeta := any(zero).(NoMeta)

	var leaves []Leaf[M]
	var layer0 [][]byte
	if len(f.Layers) > 0 {
		layer0 = make([][]byte, len(f.Layers[0]))
		leaves = make([]Leaf[M], len(f.Layers[0]))
		for i, d := range f.Layers[0] {
			layer0[i] = bytes.Clone(d)
			leaves[i].Data = layer0[i]

			if noMeta || f.Meta == nil || f.Meta[i] == nil {
				continue
			}
			if err := json.Unmarshal(f.Meta[i], &leaves[i].Meta); err != nil {
				return nil, &StructuralError{
					Path:   "layer 0 index " + strconv.Itoa(i),
					Reason: "undecodable leaf metadata",
					Err:    err,
				}
			}
		}
	}

	t := newArena(cfg, comb, leaves, layer0)

	for layer := 1; layer < len(f.Layers); layer++ {
		below := f.Layers[layer-1]
		for i, d := range f.Layers[layer] {
			p := Position{Layer: layer, Index: i}
			lone := 2*i+1 >= len(below)

			promoted := lone && !cfg.selfPairs()
			if promoted && !bytes.Equal(d, below[2*i]) {
				return nil, &StructuralError{
					Path: fmt.Sprintf("layer %d index %d", layer, i),
					Reason: "promoted node differs from its only child",
				}
			}

			t.set(p, d, promoted)
		}
	}

	return t, nil
}

// MarshalJSON writes the keyed form:
//
//	{"<hex digest>": null | {"$meta": <json>} | {"<hex left>": …, "<hex right>": …}}
//
// Hex digests have no 0x prefix.
// Child order is preserved, even when two children share a digest.
func (n *SnapshotNode) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := n.writeEntry(&buf); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (n *SnapshotNode) writeEntry(buf *bytes.Buffer) error {
	buf.WriteByte('"')
	buf.WriteString(htbytes.Hex(n.Digest)[2:])
	buf.WriteString(`":`)

	if len(n.Children) == 0 {
		if n.Meta == nil {
			buf.WriteString("null")
			return nil
		}

		var meta bytes.Buffer
		if err := json.Compact(&meta, n.Meta); err != nil {
			return fmt.Errorf("invalid metadata for leaf %x: %w", n.Digest, err)
		}
		buf.WriteString(`{"` + metaKey + `":`)
		buf.Write(meta.Bytes())
		buf.WriteByte('}')
		return nil
	}

	if n.Meta != nil {
		return fmt.Errorf("node %x has both children and metadata", n.Digest)
	}

	buf.WriteByte('{')
	for i, c := range n.Children {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := c.writeEntry(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// UnmarshalJSON reads the keyed form written by MarshalJSON.
// Keys are read in document order, so duplicate child digests survive.
// Malformed shapes are reported as [*StructuralError].
func (n *SnapshotNode) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{', "root"); err != nil {
		return err
	}

	nodes, meta, err := decodeEntries(dec, "root")
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return &StructuralError{Path: "root", Reason: "trailing data after snapshot"}
	}
	if meta != nil || len(nodes) != 1 {
		return &StructuralError{
			Path:   "root",
			Reason: "snapshot must have exactly one root key",
		}
	}

	*n = *nodes[0]
	return nil
}

func expectDelim(dec *json.Decoder, d json.Delim, path string) error {
	tok, err := dec.Token()
	if err != nil {
		return &StructuralError{Path: path, Reason: "invalid JSON", Err: err}
	}
	if got, ok := tok.(json.Delim); !ok || got != d {
		return &StructuralError{
			Path:   path,
			Reason: fmt.Sprintf("expected %q, got %v", d, tok),
		}
	}
	return nil
}

// decodeEntries reads object members up to and including the closing brace.
// The opening brace has already been consumed.
func decodeEntries(dec *json.Decoder, path string) ([]*SnapshotNode, json.RawMessage, error) {
	var nodes []*SnapshotNode
	var meta json.RawMessage

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, &StructuralError{Path: path, Reason: "invalid JSON", Err: err}
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, &StructuralError{
				Path: path, Reason: fmt.Sprintf("expected key, got %v", tok),
			}
		}

		if key == metaKey {
			if err := dec.Decode(&meta); err != nil {
				return nil, nil, &StructuralError{Path: path, Reason: "invalid metadata", Err: err}
			}
			continue
		}

		childPath := path + "." + strconv.Itoa(len(nodes))

		d, err := htbytes.ParseHex(key)
		if err != nil {
			return nil, nil, &StructuralError{
				Path: childPath, Reason: fmt.Sprintf("key %q is not a hex digest", key), Err: err,
			}
		}
		node := &SnapshotNode{Digest: d}

		tok, err = dec.Token()
		if err != nil {
			return nil, nil, &StructuralError{Path: childPath, Reason: "invalid JSON", Err: err}
		}
		switch v := tok.(type) {
		case nil:
			// Plain leaf.
		case json.Delim:
			if v != '{' {
				return nil, nil, &StructuralError{
					Path: childPath, Reason: fmt.Sprintf("unexpected %q", v),
				}
			}
			children, childMeta, err := decodeEntries(dec, childPath)
			if err != nil {
				return nil, nil, err
			}
			switch {
			case childMeta != nil && len(children) > 0:
				return nil, nil, &StructuralError{
					Path: childPath, Reason: "metadata on a node with children",
				}
			case childMeta == nil && len(children) == 0:
				return nil, nil, &StructuralError{
					Path: childPath, Reason: "node lacks child keys",
				}
			}
			node.Meta = childMeta
			node.Children = children
		default:
			return nil, nil, &StructuralError{
				Path: childPath, Reason: fmt.Sprintf("unexpected value %v", tok),
			}
		}

		nodes = append(nodes, node)
	}

	if err := expectDelim(dec, '}', path); err != nil {
		return nil, nil, err
	}
	return nodes, meta, nil
}
