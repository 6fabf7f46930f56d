package htsnap_test

import (
	"bytes"
	"testing"

	"github.com/gordian-engine/hashtree"
	"github.com/gordian-engine/hashtree/hthash/htsha256"
	"github.com/gordian-engine/hashtree/htsnap"
	"github.com/gordian-engine/hashtree/internal/httest"
	"github.com/stretchr/testify/require"
)

type leafMeta struct {
	Owner string `json:"owner"`
	Seq   int    `json:"seq"`
}

func newCodec(t *testing.T) *htsnap.Codec {
	t.Helper()

	c, err := htsnap.NewCodec(htsnap.CodecConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

func TestCodec_roundTrip(t *testing.T) {
	t.Parallel()

	cfg := hashtree.Config{Hasher: htsha256.Hasher{}, HashLeaves: true}
	tree, err := hashtree.Build(httest.RandomLeavesForTest(t, 13, 40), cfg)
	require.NoError(t, err)

	c := newCodec(t)

	for _, enc := range []htsnap.Encoding{htsnap.Raw, htsnap.Snappy, htsnap.Zstd, htsnap.Adaptive} {
		t.Run(enc.String(), func(t *testing.T) {
			b, err := htsnap.EncodeTree(c, tree, enc)
			require.NoError(t, err)

			if enc != htsnap.Adaptive {
				require.Equal(t, byte(enc), b[0])
			}

			got, err := htsnap.DecodeTree[hashtree.NoMeta](c, b, cfg)
			require.NoError(t, err)

			require.Equal(t, tree.Root(), got.Root())
			require.Equal(t, tree.Layers(), got.Layers())

			p, err := got.ProofAt(5)
			require.NoError(t, err)
			require.True(t, got.Verify(p, got.Leaves()[5], got.Root()))
		})
	}
}

func TestCodec_adaptivePicksSmallest(t *testing.T) {
	t.Parallel()

	// Identical leaves compress well.
	leaves := make([][]byte, 64)
	for i := range leaves {
		leaves[i] = bytes.Repeat([]byte{0xaa}, 32)
	}
	tree, err := hashtree.Build(leaves, hashtree.Config{Hasher: htsha256.Hasher{}})
	require.NoError(t, err)

	c := newCodec(t)

	adaptive, err := htsnap.EncodeTree(c, tree, htsnap.Adaptive)
	require.NoError(t, err)

	for _, enc := range []htsnap.Encoding{htsnap.Raw, htsnap.Snappy, htsnap.Zstd} {
		b, err := htsnap.EncodeTree(c, tree, enc)
		require.NoError(t, err)
		require.LessOrEqual(t, len(adaptive), len(b), "adaptive larger than %s", enc)
	}
	require.NotEqual(t, byte(htsnap.Raw), adaptive[0])
}

func TestCodec_metadata(t *testing.T) {
	t.Parallel()

	leaves := []hashtree.Leaf[leafMeta]{
		{Data: []byte("a"), Meta: leafMeta{Owner: "alice", Seq: 1}},
		{Data: []byte("b"), Meta: leafMeta{Owner: "bob", Seq: 2}},
		{Data: []byte("c"), Meta: leafMeta{Owner: "carol", Seq: 3}},
	}
	cfg := hashtree.Config{Hasher: htsha256.Hasher{}, HashLeaves: true}
	tree, err := hashtree.BuildLeaves(leaves, cfg, nil)
	require.NoError(t, err)

	c := newCodec(t)
	b, err := htsnap.EncodeTree(c, tree, htsnap.Zstd)
	require.NoError(t, err)

	got, err := htsnap.DecodeTree[leafMeta](c, b, cfg)
	require.NoError(t, err)

	for i := range leaves {
		l, ok := got.Leaf(i)
		require.True(t, ok)
		require.Equal(t, leaves[i].Meta, l.Meta)
	}
}

func TestCodec_emptyTree(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	b, err := c.Marshal(hashtree.FlatSnapshot{}, htsnap.Snappy)
	require.NoError(t, err)

	f, err := c.Unmarshal(b)
	require.NoError(t, err)
	require.Empty(t, f.Layers)
}

func TestCodec_rejectsMalformed(t *testing.T) {
	t.Parallel()

	c := newCodec(t)

	t.Run("empty input", func(t *testing.T) {
		_, err := c.Unmarshal(nil)
		require.Error(t, err)
	})

	t.Run("unknown envelope", func(t *testing.T) {
		_, err := c.Unmarshal([]byte{0x7f, 0x00})
		require.ErrorIs(t, err, htsnap.ErrUnknownEncoding)
	})

	t.Run("bad shape on marshal", func(t *testing.T) {
		f := hashtree.FlatSnapshot{
			Layers: [][][]byte{{{1}, {2}, {3}}, {{4}}},
		}
		_, err := c.Marshal(f, htsnap.Raw)
		var se *hashtree.StructuralError
		require.ErrorAs(t, err, &se)
	})

	t.Run("truncated zstd", func(t *testing.T) {
		tree, err := hashtree.Build(httest.StringLeaves(4), hashtree.Config{Hasher: htsha256.Hasher{}})
		require.NoError(t, err)
		b, err := htsnap.EncodeTree(c, tree, htsnap.Zstd)
		require.NoError(t, err)

		_, err = c.Unmarshal(b[:len(b)/2])
		require.Error(t, err)
	})
}

func TestCodec_sizeLimit(t *testing.T) {
	t.Parallel()

	c, err := htsnap.NewCodec(htsnap.CodecConfig{MaxDecodedSize: 256})
	require.NoError(t, err)
	defer c.Close()

	tree, err := hashtree.Build(
		httest.RandomLeavesForTest(t, 32, 32),
		hashtree.Config{Hasher: htsha256.Hasher{}},
	)
	require.NoError(t, err)

	for _, enc := range []htsnap.Encoding{htsnap.Raw, htsnap.Snappy} {
		b, err := htsnap.EncodeTree(c, tree, enc)
		require.NoError(t, err)

		_, err = c.Unmarshal(b)
		require.ErrorIs(t, err, htsnap.ErrTooLarge, "encoding %s", enc)
	}
}
