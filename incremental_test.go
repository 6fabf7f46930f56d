package hashtree_test

import (
	"testing"

	"github.com/gordian-engine/hashtree"
	"github.com/gordian-engine/hashtree/hthash"
	"github.com/gordian-engine/hashtree/hthash/htsha256"
	"github.com/gordian-engine/hashtree/internal/httest"
	"github.com/stretchr/testify/require"
)

func TestIncremental_matchesBuild(t *testing.T) {
	t.Parallel()

	for _, pol := range policies {
		t.Run(pol.name, func(t *testing.T) {
			t.Parallel()

			for n := 0; n <= 20; n++ {
				leaves := httest.RandomLeavesForTest(t, n, 16)

				eager, err := hashtree.Build(leaves, pol.cfg)
				require.NoError(t, err)

				inc, err := hashtree.NewIncremental(hashtree.PlainLeaves(leaves), pol.cfg, nil)
				require.NoError(t, err)

				steps := 0
				var last hashtree.Step
				for s, err := range inc.Steps() {
					require.NoError(t, err)
					steps++
					last = s
				}

				wantSteps := 0
				for _, l := range eager.Layers() {
					wantSteps += len(l)
				}
				require.Equal(t, wantSteps, steps, "n=%d", n)

				if n > 0 {
					require.True(t, last.Root)
					require.Equal(t, eager.Root(), last.Node.Digest)
				}

				require.Equal(t, hashtree.StateDone, inc.State())

				got, err := inc.Tree()
				require.NoError(t, err)
				require.Equal(t, eager.Layers(), got.Layers(), "n=%d", n)
				require.Equal(t, eager.Root(), got.Root())
			}
		})
	}
}

func TestIncremental_stepOrder(t *testing.T) {
	t.Parallel()

	inc, err := hashtree.NewIncremental(hashtree.PlainLeaves(httest.StringLeaves(3)), hashtree.Config{
		Hasher:     htsha256.Hasher{},
		HashLeaves: true,
	}, nil)
	require.NoError(t, err)

	ha, hb, hc := sha([]byte("a")), sha([]byte("b")), sha([]byte("c"))
	hab := sha(ha, hb)

	type want struct {
		pos    hashtree.Position
		state  hashtree.State
		parent []byte
		root   bool
	}
	for i, w := range []want{
		{pos: hashtree.Position{Layer: 0, Index: 0}, state: hashtree.StateAwaitLeft},
		{pos: hashtree.Position{Layer: 0, Index: 1}, state: hashtree.StateAwaitRight, parent: hab},
		{pos: hashtree.Position{Layer: 0, Index: 2}, state: hashtree.StateAwaitLeft, parent: hc},
		{pos: hashtree.Position{Layer: 1, Index: 0}, state: hashtree.StateAwaitLeft},
		{pos: hashtree.Position{Layer: 1, Index: 1}, state: hashtree.StateAwaitRight, parent: sha(hab, hc)},
		{pos: hashtree.Position{Layer: 2, Index: 0}, state: hashtree.StateEmitRoot, root: true},
	} {
		require.Equal(t, w.state, inc.State(), "step %d", i)
		require.Equal(t, w.pos, inc.Position(), "step %d", i)

		s, err := inc.Advance()
		require.NoError(t, err)
		require.Equal(t, w.pos, s.Node.Pos)
		require.Equal(t, w.parent, s.ParentDigest, "step %d", i)
		require.Equal(t, w.root, s.Root)
		require.False(t, s.Exit)
	}

	_, err = inc.Advance()
	require.ErrorIs(t, err, hashtree.ErrTraversalDone)
}

func TestIncremental_checkpoint(t *testing.T) {
	t.Parallel()

	leaves := httest.StringLeaves(5)
	cfg := hashtree.Config{Hasher: htsha256.Hasher{}, HashLeaves: true}

	eager, err := hashtree.Build(leaves, cfg)
	require.NoError(t, err)

	t.Run("mid layer", func(t *testing.T) {
		t.Parallel()

		inc, err := hashtree.NewIncremental(hashtree.PlainLeaves(leaves), cfg, nil)
		require.NoError(t, err)
		inc.StopAt(hashtree.Position{Layer: 0, Index: 3})

		var steps []hashtree.Step
		for s, err := range inc.Steps() {
			require.NoError(t, err)
			steps = append(steps, s)
		}

		require.Len(t, steps, 4)
		exit := steps[3]
		require.True(t, exit.Exit)
		require.Len(t, exit.Layers, 2)
		require.Equal(t, eager.Layer(0), exit.Layers[0])
		require.Equal(t, eager.Layer(1)[:1], exit.Layers[1])

		_, err = inc.Tree()
		require.ErrorIs(t, err, hashtree.ErrIncomplete)

		_, err = inc.Advance()
		require.ErrorIs(t, err, hashtree.ErrTraversalDone)
	})

	t.Run("layer start", func(t *testing.T) {
		t.Parallel()

		inc, err := hashtree.NewIncremental(hashtree.PlainLeaves(leaves), cfg, nil)
		require.NoError(t, err)
		inc.StopAt(hashtree.Position{Layer: 1, Index: 0})

		n := 0
		var exit hashtree.Step
		for s, err := range inc.Steps() {
			require.NoError(t, err)
			n++
			exit = s
		}
		require.Equal(t, 6, n)
		require.True(t, exit.Exit)
		require.Equal(t, eager.Layer(0), exit.Layers[0])
		require.Equal(t, eager.Layer(1), exit.Layers[1])
		require.Empty(t, exit.Layers[2])

		// The exit layers are copies.
		exit.Layers[0][0][0] ^= 1
		require.NotEqual(t, exit.Layers[0][0], eager.Layer(0)[0])
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()

		inc, err := hashtree.NewIncremental(hashtree.PlainLeaves(leaves), cfg, nil)
		require.NoError(t, err)
		inc.StopAt(hashtree.Position{Layer: 9})

		got, err := inc.Run()
		require.NoError(t, err)
		require.Equal(t, eager.Root(), got.Root())
	})
}

func TestIncremental_singleLeaf(t *testing.T) {
	t.Parallel()

	inc, err := hashtree.NewIncremental(hashtree.PlainLeaves([][]byte{[]byte("x")}), hashtree.Config{
		Hasher: htsha256.Hasher{},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, hashtree.StateEmitRoot, inc.State())

	s, err := inc.Advance()
	require.NoError(t, err)
	require.True(t, s.Root)
	require.Equal(t, []byte("x"), s.Node.Digest)
	require.Equal(t, hashtree.KindLeaf, s.Node.Kind)
}

func TestIncremental_hashErrorIsSticky(t *testing.T) {
	t.Parallel()

	h := hthash.Func(func(data []byte) []byte {
		if len(data) == 2 {
			return nil
		}
		return sha(data)[:1]
	})
	inc, err := hashtree.NewIncremental(hashtree.PlainLeaves(httest.StringLeaves(2)), hashtree.Config{
		Hasher: h,
	}, nil)
	require.NoError(t, err)

	_, err = inc.Advance()
	require.NoError(t, err)

	_, err = inc.Advance()
	var ie *hashtree.InputError
	require.ErrorAs(t, err, &ie)

	_, err2 := inc.Advance()
	require.Equal(t, err, err2)

	_, err = inc.Tree()
	require.ErrorAs(t, err, &ie)
}

func TestNewIncremental_inputErrors(t *testing.T) {
	t.Parallel()

	_, err := hashtree.NewIncremental(hashtree.PlainLeaves(httest.StringLeaves(3)), hashtree.Config{
		Hasher: hthash.HexFunc(func([]byte) string { return "not hex" }),
	}, nil)

	var ie *hashtree.InputError
	require.ErrorAs(t, err, &ie)
	require.ErrorIs(t, err, hthash.ErrMalformedDigest)
}
