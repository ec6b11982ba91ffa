package table

import (
	"testing"

	"github.com/iwanowww/supers/typeid"
)

func benchEntries(n int) []uint64 {
	src := typeid.NewSource(0xBEEF)
	out := make([]uint64, n)
	for i := range out {
		out[i] = src.Next()
	}
	return out
}

func benchmarkBuild(b *testing.B, n int) {
	b.Helper()
	b.ReportAllocs()

	entries := benchEntries(n)
	id := func(v uint64) uint64 { return v }
	src := typeid.NewSource(1)

	var sink *Table[uint64]
	for b.Loop() {
		sink, _ = NewBuilder(id, src.Rand, DefaultConfig).Build(entries)
	}
	_ = sink
}

func BenchmarkBuild8(b *testing.B)  { benchmarkBuild(b, 8) }
func BenchmarkBuild32(b *testing.B) { benchmarkBuild(b, 32) }
func BenchmarkBuild64(b *testing.B) { benchmarkBuild(b, 64) }

func BenchmarkContains(b *testing.B) {
	entries := benchEntries(32)
	id := func(v uint64) uint64 { return v }
	tb, _ := NewBuilder(id, typeid.NewSource(1).Rand, DefaultConfig).Build(entries)

	b.Run("Hit", func(b *testing.B) {
		b.ReportAllocs()
		i := 0
		var sink bool
		for b.Loop() {
			sink = tb.Contains(entries[i%len(entries)])
			i++
		}
		_ = sink
	})

	b.Run("Miss", func(b *testing.B) {
		b.ReportAllocs()
		probe := typeid.Mix(0xDEAD, 0xBEEF)
		var sink bool
		for b.Loop() {
			sink = tb.Contains(probe)
		}
		_ = sink
	})
}
