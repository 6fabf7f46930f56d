package hthash_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/gordian-engine/hashtree/hthash"
	"github.com/gordian-engine/hashtree/hthash/hthashtest"
	"github.com/stretchr/testify/require"
)

func sha256Bytes(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func TestFunc_compliance(t *testing.T) {
	t.Parallel()

	hthashtest.TestHasherCompliance(t, func() (hthash.Hasher, int) {
		return hthash.Func(sha256Bytes), sha256.Size
	})
}

func TestHexFunc_compliance(t *testing.T) {
	t.Parallel()

	hthashtest.TestHasherCompliance(t, func() (hthash.Hasher, int) {
		return hthash.HexFunc(func(data []byte) string {
			return "0x" + hex.EncodeToString(sha256Bytes(data))
		}), sha256.Size
	})
}

func TestHexFunc_prefixOptional(t *testing.T) {
	t.Parallel()

	withPrefix := hthash.HexFunc(func(data []byte) string {
		return "0x" + hex.EncodeToString(sha256Bytes(data))
	})
	withoutPrefix := hthash.HexFunc(func(data []byte) string {
		return hex.EncodeToString(sha256Bytes(data))
	})

	a, err := withPrefix.Hash([]byte("x"))
	require.NoError(t, err)
	b, err := withoutPrefix.Hash([]byte("x"))
	require.NoError(t, err)

	require.Equal(t, a, b)
	require.Equal(t, sha256Bytes([]byte("x")), a)
}

func TestHexFunc_malformed(t *testing.T) {
	t.Parallel()

	h := hthash.HexFunc(func([]byte) string { return "not hex" })
	_, err := h.Hash([]byte("x"))
	require.ErrorIs(t, err, hthash.ErrMalformedDigest)

	h = hthash.HexFunc(func([]byte) string { return "0x" })
	_, err = h.Hash([]byte("x"))
	require.ErrorIs(t, err, hthash.ErrEmptyDigest)
}

func TestFunc_empty(t *testing.T) {
	t.Parallel()

	h := hthash.Func(func([]byte) []byte { return nil })
	_, err := h.Hash([]byte("x"))
	require.ErrorIs(t, err, hthash.ErrEmptyDigest)
}

func TestDouble(t *testing.T) {
	t.Parallel()

	h := hthash.Double(hthash.Func(sha256Bytes))
	out, err := h.Hash([]byte("abc"))
	require.NoError(t, err)

	require.Equal(t, sha256Bytes(sha256Bytes([]byte("abc"))), out)
}
