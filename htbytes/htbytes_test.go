package htbytes_test

import (
	"bytes"
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/gordian-engine/hashtree/htbytes"
	"github.com/stretchr/testify/require"
)

type digest []byte

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	sum := sha256.Sum256([]byte("a"))

	h := sha256.New()
	_, _ = h.Write([]byte("a"))

	for _, tc := range []struct {
		name string
		in   any
		want []byte
	}{
		{name: "raw bytes", in: []byte{1, 2, 3}, want: []byte{1, 2, 3}},
		{name: "hex string", in: "0x0a0B", want: []byte{0x0a, 0x0b}},
		{name: "upper hex prefix", in: "0XFF", want: []byte{0xff}},
		{name: "plain text", in: "abc", want: []byte("abc")},
		{name: "text that looks like hex", in: "0a0b", want: []byte("0a0b")},
		{name: "array", in: sum, want: sum[:]},
		{name: "named slice", in: digest{9, 8}, want: []byte{9, 8}},
		{name: "hash state", in: h, want: sum[:]},
		{name: "bytes method", in: big.NewInt(258), want: []byte{1, 2}},
		{name: "buffer", in: bytes.NewBufferString("xy"), want: []byte("xy")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := htbytes.Canonicalize(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCanonicalize_idempotent(t *testing.T) {
	t.Parallel()

	once, err := htbytes.Canonicalize("0xdeadbeef")
	require.NoError(t, err)

	twice, err := htbytes.Canonicalize(once)
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestCanonicalize_errors(t *testing.T) {
	t.Parallel()

	_, err := htbytes.Canonicalize(42)
	require.ErrorIs(t, err, htbytes.ErrUnsupportedType)

	_, err = htbytes.Canonicalize("0xabc")
	require.ErrorIs(t, err, htbytes.ErrMalformedHex)

	_, err = htbytes.Canonicalize("0xzz")
	require.ErrorIs(t, err, htbytes.ErrMalformedHex)
}

func TestCanonicalize_nil(t *testing.T) {
	t.Parallel()

	b, err := htbytes.Canonicalize(nil)
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestHex(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0x00ff10", htbytes.Hex([]byte{0, 0xff, 0x10}))
	require.Equal(t, "0x", htbytes.Hex(nil))

	b, err := htbytes.ParseHex("00ff10")
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0xff, 0x10}, b)
}

func TestReverse(t *testing.T) {
	t.Parallel()

	in := []byte{1, 2, 3}
	require.Equal(t, []byte{3, 2, 1}, htbytes.Reverse(in))

	// Input untouched.
	require.Equal(t, []byte{1, 2, 3}, in)
}

func TestSortedConcat(t *testing.T) {
	t.Parallel()

	a := []byte{2}
	b := []byte{1, 9}
	require.Equal(t, []byte{1, 9, 2}, htbytes.SortedConcat(a, b))
	require.Equal(t, []byte{1, 9, 2}, htbytes.SortedConcat(b, a))
	require.Equal(t, []byte{2, 1, 9}, htbytes.Concat(a, b))
}
