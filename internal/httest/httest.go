// Package httest contains test helpers shared across hashtree packages.
package httest

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/neilotoole/slogt"
)

// RandomDataForTest returns sz bytes of pseudorandom data
// seeded from the test name,
// so a failing test sees the same input on every run.
func RandomDataForTest(t *testing.T, sz int) []byte {
	t.Helper()

	// A sha256 digest is exactly the size of a ChaCha8 seed.
	seed := sha256.Sum256([]byte(t.Name()))
	chacha := rand.NewChaCha8(seed)

	out := make([]byte, sz)
	if _, err := chacha.Read(out); err != nil {
		panic(err)
	}
	return out
}

// RandomLeavesForTest returns n distinct leaves of sz bytes each.
func RandomLeavesForTest(t *testing.T, n, sz int) [][]byte {
	t.Helper()

	data := RandomDataForTest(t, n*sz)
	out := make([][]byte, n)
	for i := range out {
		out[i] = data[i*sz : (i+1)*sz : (i+1)*sz]
	}
	return out
}

// StringLeaves returns the leaves "a", "b", "c", ... up to n.
// It panics if n is over 26.
func StringLeaves(n int) [][]byte {
	if n > 26 {
		panic(fmt.Errorf("BUG: StringLeaves supports at most 26 leaves, got %d", n))
	}
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte('a' + i)}
	}
	return out
}

// NewLogger returns a logger that writes through t.Log.
func NewLogger(t *testing.T) *slog.Logger {
	return slogt.New(t)
}
