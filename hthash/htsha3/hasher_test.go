package htsha3_test

import (
	"encoding/hex"
	"testing"

	"github.com/gordian-engine/hashtree/hthash"
	"github.com/gordian-engine/hashtree/hthash/hthashtest"
	"github.com/gordian-engine/hashtree/hthash/htsha3"
	"github.com/stretchr/testify/require"
)

func TestCompliance(t *testing.T) {
	t.Parallel()

	hthashtest.TestHasherCompliance(t, func() (hthash.Hasher, int) {
		return htsha3.Hasher{}, htsha3.HashSize
	})
}

func TestHasher_emptyInputVector(t *testing.T) {
	t.Parallel()

	out, err := htsha3.Hasher{}.Hash(nil)
	require.NoError(t, err)
	require.Equal(t, "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a", hex.EncodeToString(out))
}
