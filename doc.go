// Package hashtree builds binary hash trees (Merkle trees)
// over an ordered set of leaves,
// generates authentication paths ("proofs") for individual leaves,
// and verifies those proofs against a known root.
//
// A tree is built either eagerly, with [Build] or [BuildLeaves],
// or one node at a time with an [Incremental] builder.
// Both paths produce byte-identical trees for identical input and [Config].
//
// Pairing policy is controlled by [Config]:
// by default a pair is hashed as left||right,
// and the trailing node of an odd-length layer is promoted unchanged.
// SortPairs orders each pair lexicographically before hashing,
// DuplicateOdd pairs a trailing node with itself,
// and Bitcoin reproduces the Bitcoin transaction Merkle tree:
// operands are byte-reversed, hashed twice, and the result reversed,
// with the trailing node always paired with itself.
//
// All digests live in a single flat arena indexed by [Position],
// so parent and child relationships are arithmetic on positions
// rather than pointers.
//
// A tree can be exported as a layer snapshot ([*Tree.Snapshot])
// and rebuilt without hashing through [Reconstruct].
package hashtree
