package htshard

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/gordian-engine/hashtree"
	"github.com/gordian-engine/hashtree/htstream"
	"github.com/klauspost/reedsolomon"
)

var (
	// ErrAlreadyHadShard is returned from [*Collector.AddShard]
	// when the shard at that index was already accepted.
	ErrAlreadyHadShard = errors.New("already had shard")

	// ErrInvalidProof is returned from [*Collector.AddShard]
	// when the proof does not bind the shard to its index under the root.
	ErrInvalidProof = errors.New("invalid shard proof")

	// ErrNotEnoughShards is returned from [*Collector.Reconstruct]
	// before DataShards shards have been accepted.
	ErrNotEnoughShards = errors.New("not enough shards to reconstruct")
)

// Collector accumulates verified shards toward reconstruction.
// It is safe for concurrent use.
type Collector struct {
	log *slog.Logger

	cfg  Config
	root []byte
	size int

	verifier  hashtree.Verifier
	shardSize int

	enc reedsolomon.Encoder

	mu     sync.Mutex
	have   *bitset.BitSet
	shards [][]byte

	// Unpublished tail of the accepted index stream.
	added *htstream.Stream[int]
}

// NewCollector returns a Collector for the payload
// with the given root and original size,
// as reported by the sender's [Prepared].
func NewCollector(log *slog.Logger, cfg Config, root []byte, size int) (*Collector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("payload size must be positive (got %d)", size)
	}

	shardSize := (size + cfg.DataShards - 1) / cfg.DataShards
	enc, err := cfg.encoder(shardSize)
	if err != nil {
		return nil, err
	}

	return &Collector{
		log: log,

		cfg:  cfg,
		root: bytes.Clone(root),
		size: size,

		verifier: hashtree.Verifier{
			Hasher:    cfg.Tree.Hasher,
			SortPairs: cfg.Tree.SortPairs,
		},
		shardSize: shardSize,

		enc: enc,

		have:   bitset.MustNew(uint(cfg.total())),
		shards: make([][]byte, cfg.total()),

		added: htstream.New[int](),
	}, nil
}

// AddShard verifies shard against the collector's root
// and retains a copy of it on success.
func (c *Collector) AddShard(idx int, shard []byte, proof hashtree.Proof) error {
	if idx < 0 || idx >= c.cfg.total() {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidProof, idx)
	}
	if len(shard) != c.shardSize {
		return fmt.Errorf(
			"%w: shard %d has %d bytes, expected %d",
			ErrInvalidProof, idx, len(shard), c.shardSize,
		)
	}

	c.mu.Lock()
	had := c.have.Test(uint(idx))
	c.mu.Unlock()
	if had {
		return ErrAlreadyHadShard
	}

	// Verify outside the lock.
	if err := c.verify(idx, shard, proof); err != nil {
		c.log.Info("Rejected shard", "idx", idx, "err", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Checked again in case of a concurrent add of the same index.
	if c.have.Test(uint(idx)) {
		return ErrAlreadyHadShard
	}
	c.have.Set(uint(idx))
	c.shards[idx] = bytes.Clone(shard)
	c.added = c.added.Publish(idx)

	if c.have.Count() == uint(c.cfg.DataShards) {
		c.log.Debug("Collected enough shards to reconstruct", "n", c.cfg.DataShards)
	}
	return nil
}

func (c *Collector) verify(idx int, shard []byte, proof hashtree.Proof) error {
	wantSides := hashtree.ProofShape(c.cfg.total(), idx, c.cfg.Tree)
	if len(proof) != len(wantSides) {
		return fmt.Errorf(
			"%w: proof for shard %d has %d entries, expected %d",
			ErrInvalidProof, idx, len(proof), len(wantSides),
		)
	}
	for i, e := range proof {
		if e.Side != wantSides[i] {
			return fmt.Errorf(
				"%w: proof for shard %d has side %s at depth %d, expected %s",
				ErrInvalidProof, idx, e.Side, i, wantSides[i],
			)
		}
	}

	leaf, err := c.cfg.Tree.Hasher.Hash(shard)
	if err != nil {
		return fmt.Errorf("failed to hash shard %d: %w", idx, err)
	}

	// A single shard tree has no siblings to replay.
	if len(proof) == 0 {
		if !bytes.Equal(leaf, c.root) {
			return fmt.Errorf("%w: shard %d does not match root", ErrInvalidProof, idx)
		}
		return nil
	}

	if !c.verifier.Verify(proof, leaf, c.root) {
		return fmt.Errorf("%w: shard %d", ErrInvalidProof, idx)
	}
	return nil
}

// Have returns a copy of the set of accepted shard indices.
func (c *Collector) Have() *bitset.BitSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.have.Clone()
}

// Added returns a stream of shard indices accepted after this call.
// Combined with a prior call to Have,
// an observer can track every accepted shard without polling.
func (c *Collector) Added() *htstream.Stream[int] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.added
}

// Ready reports whether enough shards have been accepted to reconstruct.
func (c *Collector) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.have.Count() >= uint(c.cfg.DataShards)
}

// Reconstruct recovers the original payload.
// It returns [ErrNotEnoughShards] if fewer than DataShards
// shards have been accepted.
func (c *Collector) Reconstruct() ([]byte, error) {
	c.mu.Lock()
	if c.have.Count() < uint(c.cfg.DataShards) {
		c.mu.Unlock()
		return nil, ErrNotEnoughShards
	}
	// The encoder fills nil entries in place, so work on a copy.
	shards := slices.Clone(c.shards)
	c.mu.Unlock()

	if err := c.enc.ReconstructData(shards); err != nil {
		// Every accepted shard was verified against the root,
		// so this indicates a bug rather than bad input.
		panic(fmt.Errorf("IMPOSSIBLE: reconstruction of verified shards failed: %w", err))
	}

	var buf bytes.Buffer
	buf.Grow(c.size)
	if err := c.enc.Join(&buf, shards, c.size); err != nil {
		return nil, fmt.Errorf("failed to join reconstructed shards: %w", err)
	}

	c.log.Debug("Reconstructed payload", "size", c.size)
	return buf.Bytes(), nil
}
