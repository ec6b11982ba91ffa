package typeid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMixDeterministic(t *testing.T) {
	for _, x := range []uint64{0, 1, 42, 1 << 33, ^uint64(0)} {
		for _, y := range []uint64{0, 7, 0xAAAAAAAA} {
			require.Equal(t, Mix(x, y), Mix(x, y))
		}
	}
}

func TestMixAvalanche(t *testing.T) {
	// Flipping a single input bit should flip a substantial fraction of
	// output bits. A weak bound (>8 of 64) is enough to catch a broken mixer
	// without being flaky.
	base := Mix(0x0123456789ABCDEF, 0xAAAAAAAA)
	for bit := 0; bit < 64; bit++ {
		flipped := Mix(0x0123456789ABCDEF^(1<<bit), 0xAAAAAAAA)
		diff := base ^ flipped
		popcount := 0
		for d := diff; d != 0; d &= d - 1 {
			popcount++
		}
		require.Greater(t, popcount, 8, "bit %d barely avalanches", bit)
	}
}

func TestSourceDeterministicStream(t *testing.T) {
	a := NewSource(12345)
	b := NewSource(12345)
	for i := 0; i < 1000; i++ {
		require.Equal(t, a.Next(), b.Next())
	}

	c := NewSource(54321)
	require.NotEqual(t, NewSource(12345).Next(), c.Next())
}

func TestSourceNoShortCycles(t *testing.T) {
	s := NewSource(1)
	seen := NewSpace()
	for i := 0; i < 100_000; i++ {
		require.False(t, seen.Record(s.Next()), "duplicate ID at draw %d", i)
	}
	require.Equal(t, uint64(100_000), seen.Cardinality())
}

func TestSpaceRecord(t *testing.T) {
	sp := NewSpace()
	require.False(t, sp.Record(7))
	require.True(t, sp.Record(7))
	require.True(t, sp.Contains(7))
	require.False(t, sp.Contains(8))
}
