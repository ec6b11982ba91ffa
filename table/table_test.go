package table

import (
	"testing"

	"github.com/iwanowww/supers/probe"
	"github.com/iwanowww/supers/typeid"
	"github.com/stretchr/testify/require"
)

func ident(x uint64) uint64 { return x }

func newTestBuilder(cfg Config, seed uint64) *Builder[uint64] {
	src := typeid.NewSource(seed)
	return NewBuilder[uint64](ident, src.Rand, cfg)
}

func makeEntries(t *testing.T, n int, seed uint64) []uint64 {
	t.Helper()
	src := typeid.NewSource(seed)
	entries := make([]uint64, n)
	for i := range entries {
		entries[i] = src.Next()
	}
	return entries
}

func modes() []probe.Mode { return []probe.Mode{probe.PowerOfTwo, probe.Modulo} }

func TestBuildMembership(t *testing.T) {
	for _, mode := range modes() {
		cfg := DefaultConfig
		cfg.Mode = mode
		cfg.Verify = true
		for _, n := range []int{0, 1, 3, 4, 5, 8, 13, 30, 64, 100} {
			entries := makeEntries(t, n, uint64(n)+1)
			tb, _ := newTestBuilder(cfg, 42).Build(entries)

			for _, e := range entries {
				require.True(t, tb.Contains(e), "mode %d n %d: entry missing", mode, n)
			}
			absent := makeEntries(t, 50, 0xABCDEF)
			for _, x := range absent {
				require.False(t, tb.Contains(x), "mode %d n %d: phantom entry", mode, n)
			}
			require.Equal(t, n, tb.Len(), "mode %d n %d: entry dropped or duplicated", mode, n)
			require.NoError(t, tb.Verify())
		}
	}
}

func TestBuildEmptyInput(t *testing.T) {
	tb, res := newTestBuilder(DefaultConfig, 1).Build(nil)
	require.Equal(t, uint64(0), tb.Seed())
	require.Equal(t, uint32(0), tb.Size())
	require.Zero(t, res.Attempts)
	require.False(t, tb.Contains(12345))
}

func TestBuildBelowMinThresholdIsTailOnly(t *testing.T) {
	cfg := DefaultConfig // MinTableSize 4
	entries := makeEntries(t, 3, 5)
	tb, _ := newTestBuilder(cfg, 2).Build(entries)

	require.Equal(t, uint32(0), tb.Size())
	require.Equal(t, uint64(0), tb.Seed())
	require.Len(t, tb.Tail(), 3)
	for _, e := range entries {
		require.True(t, tb.Contains(e))
	}
}

func TestBuildStressTableSmallerThanInput(t *testing.T) {
	// 5 entries forced into at most 4 slots: some must spill, none may drop.
	for _, mode := range modes() {
		cfg := Config{MinTableSize: 2, MaxTableSize: 4, MaxAttempts: 4, Mode: mode, Verify: true}
		entries := makeEntries(t, 5, 77)
		tb, _ := newTestBuilder(cfg, 7).Build(entries)

		require.LessOrEqual(t, tb.Size(), uint32(4))
		require.NotEmpty(t, tb.Tail())
		for _, e := range entries {
			require.True(t, tb.Contains(e), "mode %d", mode)
		}
		require.Equal(t, 5, tb.Len())
	}
}

func TestBuildPartitionExactlyOneRegion(t *testing.T) {
	entries := makeEntries(t, 40, 3)
	cfg := Config{MinTableSize: 4, MaxTableSize: 16, MaxAttempts: 4, Mode: probe.PowerOfTwo}
	tb, _ := newTestBuilder(cfg, 9).Build(entries)

	seen := make(map[uint64]int)
	for _, e := range tb.Slots() {
		if e.Ref != 0 {
			seen[e.Ref]++
		}
	}
	for _, ref := range tb.Tail() {
		seen[ref]++
	}
	require.Len(t, seen, 40)
	for id, count := range seen {
		require.Equal(t, 1, count, "entry %#x stored %d times", id, count)
	}
}

func TestBuildSemanticIdempotence(t *testing.T) {
	entries := makeEntries(t, 25, 8)
	cfg := DefaultConfig
	cfg.Verify = true

	a, _ := newTestBuilder(cfg, 100).Build(entries)
	b, _ := newTestBuilder(cfg, 200).Build(entries) // different entropy

	queries := append(append([]uint64(nil), entries...), makeEntries(t, 100, 0xFEED)...)
	for _, q := range queries {
		require.Equal(t, a.Contains(q), b.Contains(q), "answers diverge for %#x", q)
	}
}

func TestBuildCollisionsResolveWithoutLoss(t *testing.T) {
	// A constant rand source repeats the same seed every attempt, so the
	// builder cannot escape collisions by reseeding; displacement and tail
	// spill have to absorb them.
	cfg := Config{MinTableSize: 2, MaxTableSize: 8, MaxAttempts: 3, Mode: probe.PowerOfTwo, Verify: true}
	b := NewBuilder[uint64](ident, func() uint64 { return 0xDEADBEEF }, cfg)

	entries := makeEntries(t, 12, 31)
	tb, _ := b.Build(entries)
	require.Equal(t, 12, tb.Len())
	for _, e := range entries {
		require.True(t, tb.Contains(e))
	}
}

func TestSeedGeometryAgreement(t *testing.T) {
	for _, n := range []int{4, 9, 17, 40} {
		cfg := DefaultConfig
		entries := makeEntries(t, n, uint64(n))
		tb, _ := newTestBuilder(cfg, 3).Build(entries)
		require.Equal(t, tb.Size(), probe.Size(tb.Seed(), cfg.MaxTableSize))
		require.Len(t, tb.Slots(), int(tb.Size()))
	}
}

func TestTailEntriesTagBothCandidateSlots(t *testing.T) {
	cfg := Config{MinTableSize: 2, MaxTableSize: 4, MaxAttempts: 2, Mode: probe.PowerOfTwo}
	entries := makeEntries(t, 9, 13)
	tb, _ := newTestBuilder(cfg, 4).Build(entries)
	require.NotEmpty(t, tb.Tail())

	for _, ref := range tb.Tail() {
		p := probe.Index(tb.Seed(), tb.Size(), ref, probe.Primary, cfg.Mode)
		s := probe.Index(tb.Seed(), tb.Size(), ref, probe.Secondary, cfg.Mode)
		require.True(t, tb.Slots()[p].Conflict)
		require.True(t, tb.Slots()[s].Conflict)
	}
}

func TestReassembleRoundTrip(t *testing.T) {
	for _, mode := range modes() {
		cfg := Config{MinTableSize: 2, MaxTableSize: 16, MaxAttempts: 4, Mode: mode}
		entries := makeEntries(t, 20, 21)
		tb, _ := newTestBuilder(cfg, 5).Build(entries)

		refs := make([]uint64, len(tb.Slots()))
		for i, e := range tb.Slots() {
			refs[i] = e.Ref
		}
		rt, err := Reassemble(tb.Seed(), refs, tb.Tail(), ident, cfg)
		require.NoError(t, err)

		for _, e := range entries {
			require.True(t, rt.Contains(e))
		}
		for _, x := range makeEntries(t, 50, 0xC0FFEE) {
			require.Equal(t, tb.Contains(x), rt.Contains(x))
		}
	}
}

func TestReassembleTailOnly(t *testing.T) {
	// Below-threshold tables persist as a bare tail with the empty seed;
	// reassembling one must not probe the nonexistent hashed region.
	for _, mode := range modes() {
		cfg := DefaultConfig
		cfg.Mode = mode
		entries := makeEntries(t, 3, 9)
		tb, _ := newTestBuilder(cfg, 7).Build(entries)
		require.Equal(t, uint32(0), tb.Size())
		require.Len(t, tb.Tail(), 3)

		rt, err := Reassemble(tb.Seed(), nil, tb.Tail(), ident, cfg)
		require.NoError(t, err)

		for _, e := range entries {
			require.True(t, rt.Contains(e))
		}
		require.False(t, rt.Contains(makeEntries(t, 1, 0xABCDEF)[0]))
	}
}

func TestReassembleRejectsForgedSeedSize(t *testing.T) {
	cfg := DefaultConfig // PowerOfTwo, max 64

	cases := []struct {
		name  string
		size  uint32
		slots int
	}{
		{"SizeOne", 1, 1},
		{"OddSize", 3, 3},
		{"NotPowerOfTwo", 12, 12},
		{"AboveMax", 96, 96},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seed := probe.Pack(0xDEADBEEF, tc.size, cfg.MaxTableSize)
			refs := make([]uint64, tc.slots)
			_, err := Reassemble(seed, refs, []uint64{9}, ident, cfg)
			require.Error(t, err)
		})
	}

	// Modulo mode accepts only chunk multiples (or the cap itself).
	modCfg := cfg
	modCfg.Mode = probe.Modulo
	seed := probe.Pack(0xDEADBEEF, 10, modCfg.MaxTableSize)
	_, err := Reassemble(seed, make([]uint64, 10), nil, ident, modCfg)
	require.Error(t, err)
}

func TestReassembleRejectsWrongGeometry(t *testing.T) {
	cfg := DefaultConfig
	entries := makeEntries(t, 10, 2)
	tb, _ := newTestBuilder(cfg, 6).Build(entries)

	refs := make([]uint64, len(tb.Slots())-1) // truncated
	_, err := Reassemble(tb.Seed(), refs, tb.Tail(), ident, cfg)
	require.Error(t, err)
}

func TestVerifyCatchesCorruption(t *testing.T) {
	cfg := DefaultConfig
	entries := makeEntries(t, 10, 4)
	tb, _ := newTestBuilder(cfg, 8).Build(entries)
	require.NoError(t, tb.Verify())

	// A conflict tag on an empty slot can never be produced by a build.
	empty := -1
	for i := range tb.slots {
		if tb.slots[i].Ref == 0 {
			empty = i
			break
		}
	}
	require.GreaterOrEqual(t, empty, 0)
	tb.slots[empty].Conflict = true
	require.Error(t, tb.Verify())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig.Validate())

	bad := DefaultConfig
	bad.MaxTableSize = 48
	require.Error(t, bad.Validate())

	bad = DefaultConfig
	bad.MaxAttempts = 0
	require.Error(t, bad.Validate())
}
