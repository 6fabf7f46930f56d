// Package hthashtest contains a compliance suite
// for [hthash.Hasher] implementations.
package hthashtest

import (
	"bytes"
	"testing"

	"github.com/gordian-engine/hashtree/hthash"
	"github.com/stretchr/testify/require"
)

type HasherFactory func() (h hthash.Hasher, hashSize int)

func TestHasherCompliance(t *testing.T, f HasherFactory) {
	t.Run("output is deterministic", func(t *testing.T) {
		t.Parallel()

		h, sz := f()

		out01, err := h.Hash([]byte("deterministic_data"))
		require.NoError(t, err)
		require.Len(t, out01, sz)

		out02, err := h.Hash([]byte("deterministic_data"))
		require.NoError(t, err)
		require.Equal(t, out01, out02)
	})

	t.Run("output respects input", func(t *testing.T) {
		t.Parallel()

		h, _ := f()

		out01, err := h.Hash([]byte("hello"))
		require.NoError(t, err)

		out02, err := h.Hash([]byte("hellp"))
		require.NoError(t, err)

		require.NotEqual(t, out01, out02)
	})

	t.Run("empty input has full width output", func(t *testing.T) {
		t.Parallel()

		h, sz := f()

		out, err := h.Hash(nil)
		require.NoError(t, err)
		require.Len(t, out, sz)
	})

	t.Run("does not modify or alias input", func(t *testing.T) {
		t.Parallel()

		h, _ := f()

		in := []byte("some input that must not change")
		orig := bytes.Clone(in)

		out, err := h.Hash(in)
		require.NoError(t, err)
		require.Equal(t, orig, in)

		// Scribbling over the output must not affect the input.
		for i := range out {
			out[i] ^= 0xff
		}
		require.Equal(t, orig, in)
	})
}
