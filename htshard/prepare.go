package htshard

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gordian-engine/hashtree"
	"github.com/klauspost/reedsolomon"
)

// Config is the configuration shared by [Prepare] and [NewCollector].
type Config struct {
	// Number of data and parity shards.
	// DataShards must be positive and ParityShards non-negative,
	// and their sum may not exceed 256.
	DataShards, ParityShards int

	// The tree over the shards.
	// HashLeaves must be set, since shards are arbitrary length;
	// SortLeaves and Bitcoin are not allowed,
	// since a shard's proof must bind it to its index.
	Tree hashtree.Config
}

func (c Config) total() int {
	return c.DataShards + c.ParityShards
}

func (c Config) validate() error {
	if c.DataShards <= 0 {
		panic(fmt.Errorf("BUG: DataShards must be positive (got %d)", c.DataShards))
	}
	if c.ParityShards < 0 {
		panic(fmt.Errorf("BUG: ParityShards must be non-negative (got %d)", c.ParityShards))
	}

	switch {
	case c.Tree.Hasher == nil:
		return hashtree.ErrNoHasher
	case !c.Tree.HashLeaves:
		return errors.New("shard tree must hash leaves")
	case c.Tree.SortLeaves:
		return errors.New("shard tree must not sort leaves")
	case c.Tree.Bitcoin:
		return errors.New("shard tree must not use the bitcoin policy")
	}
	return nil
}

func (c Config) encoder(shardSize int) (reedsolomon.Encoder, error) {
	enc, err := reedsolomon.New(
		c.DataShards, c.ParityShards,
		reedsolomon.WithAutoGoroutines(shardSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build Reed-Solomon encoder: %w", err)
	}
	return enc, nil
}

// Prepared is the value returned by [Prepare].
type Prepared struct {
	// Data shards followed by parity shards, all the same length.
	Shards [][]byte

	// Length of the original payload.
	// The last data shard is padded, so receivers need Size to trim it.
	Size int

	// Root of the tree over the shards.
	Root []byte

	// Proofs[i] authenticates Shards[i] against Root.
	Proofs []hashtree.Proof

	Tree *hashtree.Tree[hashtree.NoMeta]
}

// Prepare splits data into shards, computes parity,
// and builds the tree and every shard proof.
// The data slice is not modified.
func Prepare(data []byte, cfg Config) (Prepared, error) {
	if err := cfg.validate(); err != nil {
		return Prepared{}, err
	}
	if len(data) == 0 {
		return Prepared{}, errors.New("cannot shard empty data")
	}

	shardSize := (len(data) + cfg.DataShards - 1) / cfg.DataShards
	enc, err := cfg.encoder(shardSize)
	if err != nil {
		return Prepared{}, err
	}

	// Split may use spare capacity of its input as padding.
	shards, err := enc.Split(bytes.Clone(data))
	if err != nil {
		return Prepared{}, fmt.Errorf("failed to split data into shards: %w", err)
	}
	if err := enc.Encode(shards); err != nil {
		return Prepared{}, fmt.Errorf("failed to erasure-code data: %w", err)
	}

	t, err := hashtree.Build(shards, cfg.Tree)
	if err != nil {
		return Prepared{}, fmt.Errorf("failed to build shard tree: %w", err)
	}

	proofs := make([]hashtree.Proof, len(shards))
	for i := range shards {
		proofs[i], err = t.ProofAt(i)
		if err != nil {
			return Prepared{}, fmt.Errorf("failed to produce proof for shard %d: %w", i, err)
		}
	}

	return Prepared{
		Shards: shards,
		Size:   len(data),
		Root:   bytes.Clone(t.Root()),
		Proofs: proofs,
		Tree:   t,
	}, nil
}
