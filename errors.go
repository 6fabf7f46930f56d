package hashtree

import (
	"errors"
	"fmt"
)

// InputError is returned when a leaf, the leaf augmenter,
// or the configured hasher produced unusable input during construction.
// No partial tree is ever returned alongside an InputError.
type InputError struct {
	// The operation that failed, e.g. "hash leaf".
	Op string

	// Position of the node being produced, if applicable.
	At *Position

	Err error
}

func (e *InputError) Error() string {
	if e.At == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf(
		"%s at layer %d index %d: %v",
		e.Op, e.At.Layer, e.At.Index, e.Err,
	)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// StructuralError is returned from snapshot reconstruction
// when the snapshot does not describe a valid tree shape.
type StructuralError struct {
	// Dotted child-index path from the root, e.g. "root.1.0".
	Path string

	Reason string

	// Optional underlying cause.
	Err error
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed snapshot at %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed snapshot at %s: %s", e.Path, e.Reason)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// ErrNoHasher is returned when a [Config] without a Hasher
// is used to build a tree.
var ErrNoHasher = errors.New("no hasher configured")

// ErrBitcoinProofUnsupported is returned when a proof is requested
// from a Bitcoin-policy tree for any leaf other than the last one.
var ErrBitcoinProofUnsupported = errors.New(
	"bitcoin proofs are only supported for the last leaf",
)

// ErrTraversalDone is returned from [*Incremental.Advance]
// once the traversal has finished.
var ErrTraversalDone = errors.New("traversal done")

// ErrIncomplete is returned from [*Incremental.Tree]
// if the traversal has not reached the root.
var ErrIncomplete = errors.New("tree construction incomplete")

var errDigestWidth = errors.New("inconsistent digest width")
