package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

func TestNewCoinCursor(t *testing.T) {
	_, err := types.NewCoinCursor(0)
	require.ErrorIs(t, err, types.ErrEmptyCoinSet)

	c, err := types.NewCoinCursor(1)
	require.NoError(t, err)
	require.True(t, c.IsLast())

	c, err = types.NewCoinCursor(3)
	require.NoError(t, err)
	require.False(t, c.IsLast())
	c = c.Next().Next()
	require.True(t, c.IsLast())
	require.Equal(t, uint32(2), c.Current)
}

func TestCoinCursorNextPastLastPanics(t *testing.T) {
	c, err := types.NewCoinCursor(1)
	require.NoError(t, err)
	require.Panics(t, func() { c.Next() })
}

func TestCoinCursorValidate(t *testing.T) {
	c, err := types.NewCoinCursor(2)
	require.NoError(t, err)
	require.NoError(t, c.Validate(2))
	require.Error(t, c.Validate(3))
	require.ErrorIs(t, c.Validate(0), types.ErrEmptyCoinSet)
	require.Error(t, types.CoinCursor{Current: 2, Last: 1}.Validate(2))
}

// Walking a cursor visits every index exactly once and stops at the last.
func TestCoinCursorWalkProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 64).Draw(t, "n")
		c, err := types.NewCoinCursor(n)
		if err != nil {
			t.Fatalf("cursor: %v", err)
		}
		visited := 1
		for !c.IsLast() {
			next := c.Next()
			if next.Current != c.Current+1 || next.Last != c.Last {
				t.Fatalf("bad step %v -> %v", c, next)
			}
			c = next
			visited++
		}
		if visited != n {
			t.Fatalf("visited %d of %d", visited, n)
		}
	})
}
