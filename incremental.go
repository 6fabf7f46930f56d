package hashtree

import (
	"bytes"
	"errors"
	"iter"
)

// State is the traversal state of an [Incremental] builder.
type State uint8

const (
	// StateAwaitLeft means the next node is the left member of a pair,
	// or the trailing node of an odd-length layer.
	StateAwaitLeft State = iota

	// StateAwaitRight means the next node completes a pair.
	StateAwaitRight

	// StateEmitRoot means only the root remains to be emitted.
	StateEmitRoot

	// StateDone means the traversal finished,
	// either at the root or at a checkpoint.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitLeft:
		return "await-left"
	case StateAwaitRight:
		return "await-right"
	case StateEmitRoot:
		return "emit-root"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Step is a single value produced by [*Incremental.Advance].
type Step struct {
	// The node visited by this step.
	// Zero when Exit is set.
	Node Node

	// ParentDigest is set when visiting this node
	// computed its parent's digest:
	// for the right member of a pair, and for a lone trailing node.
	// The parent itself is emitted later, when its layer is visited.
	ParentDigest []byte

	// Root is set on the final step of a complete traversal.
	Root bool

	// Exit is set when the traversal stopped at a checkpoint
	// set with [*Incremental.StopAt].
	Exit bool

	// Layers is only set on exit steps.
	// It holds a copy of every layer built so far, leaves first;
	// the highest layers may be partially filled or absent.
	Layers [][][]byte
}

// Incremental builds a tree one node per call to [*Incremental.Advance].
//
// The finished tree is identical to the one [BuildLeaves] produces
// for the same input.
// Layers are visited bottom up, each from left to right,
// and every node of the final tree is visited exactly once,
// the root last.
//
// An Incremental is not safe for concurrent use.
type Incremental[M any] struct {
	t *Tree[M]

	state State
	pos   Position

	stopAt *Position
	exited bool

	err error
}

// NewIncremental prepares an incremental build.
// Leaf input is validated and layer 0 is computed immediately,
// so malformed input fails here rather than mid-traversal.
func NewIncremental[M any](leaves []Leaf[M], cfg Config, aug Augmenter[M]) (*Incremental[M], error) {
	t, err := prepare(leaves, cfg, aug)
	if err != nil {
		return nil, err
	}

	b := &Incremental[M]{t: t}
	switch t.LeafCount() {
	case 0:
		b.state = StateDone
	case 1:
		b.state = StateEmitRoot
	default:
		b.state = StateAwaitLeft
	}
	return b, nil
}

// StopAt sets a checkpoint.
// When the traversal reaches p, the next call to Advance
// returns an exit step instead of visiting p,
// and the traversal ends.
// A checkpoint already passed, or outside the tree, is never reached.
func (b *Incremental[M]) StopAt(p Position) {
	b.stopAt = &p
}

// State returns the current traversal state.
func (b *Incremental[M]) State() State {
	return b.state
}

// Position returns the position of the next node to be visited.
// It is meaningless in [StateDone].
func (b *Incremental[M]) Position() Position {
	return b.pos
}

// Advance visits the next node.
//
// After the root has been emitted, or after an exit step,
// Advance returns [ErrTraversalDone].
// If a hashing error occurs, it is returned from this
// and every later call.
func (b *Incremental[M]) Advance() (Step, error) {
	if b.err != nil {
		return Step{}, b.err
	}
	if b.state == StateDone {
		return Step{}, ErrTraversalDone
	}

	if b.stopAt != nil && *b.stopAt == b.pos {
		return b.exit(), nil
	}

	cur := b.pos
	var step Step

	switch b.state {
	case StateEmitRoot:
		b.state = StateDone
		step.Root = true

	case StateAwaitLeft:
		if cur.Index == b.t.layerLen(cur.Layer)-1 {
			// Lone trailing node: promote or self-pair now.
			if err := b.t.fillParent(cur); err != nil {
				return b.fail(err)
			}
			step.ParentDigest = b.t.parentDigest(cur)
			b.nextLayer()
		} else {
			b.pos.Index++
			b.state = StateAwaitRight
		}

	case StateAwaitRight:
		if err := b.t.fillParent(cur); err != nil {
			return b.fail(err)
		}
		step.ParentDigest = b.t.parentDigest(cur)

		if cur.Index == b.t.layerLen(cur.Layer)-1 {
			b.nextLayer()
		} else {
			b.pos.Index++
			b.state = StateAwaitLeft
		}
	}

	step.Node, _ = b.t.Node(cur)
	return step, nil
}

// nextLayer moves the cursor to the start of the layer above.
// That layer is complete, since every node below it has been visited.
func (b *Incremental[M]) nextLayer() {
	b.pos = Position{Layer: b.pos.Layer + 1}
	if b.t.layerLen(b.pos.Layer) == 1 {
		b.state = StateEmitRoot
	} else {
		b.state = StateAwaitLeft
	}
}

func (b *Incremental[M]) fail(err error) (Step, error) {
	b.err = err
	b.state = StateDone
	return Step{}, err
}

func (b *Incremental[M]) exit() Step {
	b.state = StateDone
	b.exited = true

	// Layers at or below the cursor are complete.
	// The layer above the cursor holds one parent per finished pair.
	n := min(b.pos.Layer+2, b.t.LayerCount())
	layers := make([][][]byte, n)
	for i := range layers {
		src := b.t.layer(i)
		if i == b.pos.Layer+1 {
			src = src[:b.pos.Index/2]
		}
		layers[i] = make([][]byte, len(src))
		for j, d := range src {
			layers[i][j] = bytes.Clone(d)
		}
	}

	return Step{Exit: true, Layers: layers}
}

// Steps returns an iterator over the remaining steps.
// Iteration ends after the root or an exit step,
// or after yielding the first error.
func (b *Incremental[M]) Steps() iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		for {
			s, err := b.Advance()
			if errors.Is(err, ErrTraversalDone) {
				return
			}
			if !yield(s, err) || err != nil {
				return
			}
		}
	}
}

// Run advances until the traversal completes
// and returns the finished tree.
func (b *Incremental[M]) Run() (*Tree[M], error) {
	for _, err := range b.Steps() {
		if err != nil {
			return nil, err
		}
	}
	return b.Tree()
}

// Tree returns the finished tree.
// It returns [ErrIncomplete] if the root has not been emitted,
// including after an early exit at a checkpoint.
func (b *Incremental[M]) Tree() (*Tree[M], error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.state != StateDone || b.exited {
		return nil, ErrIncomplete
	}
	return b.t, nil
}
