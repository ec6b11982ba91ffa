// Package probe derives table slot indexes from placement seeds.
//
// A seed is a packed value: the low bits carry the table size (and its
// power-of-two round-up), the high bits carry random entropy. Builder and
// query both decode sizes through this package, so a seed and a table can
// never disagree about geometry — the decode functions are the single source
// of truth.
//
// Index is pure and total over valid inputs: the same (seed, size, id)
// produce the same slot in every process, which is what allows archived
// tables to be re-derived from their seed alone.
package probe

import (
	"math/bits"

	"github.com/iwanowww/supers/typeid"
)

// Mode selects how a mixed hash is reduced to a slot index.
// It is a process-wide build setting, not a per-table one.
type Mode uint8

const (
	// PowerOfTwo masks the hash with table_size-2. Table sizes are powers
	// of two; the reduction is a single AND.
	PowerOfTwo Mode = iota
	// Modulo reduces the hash modulo the table size. Sizes grow in even
	// chunks instead of doubling, trading a division for tighter tables.
	Modulo
)

// Slot selects the primary or the secondary derivation of a probe index.
//
// The two derivations take different halves of the same mixed hash and land
// on disjoint slot parities: primary indexes are even, secondary indexes are
// odd. With a good mixer the pair behaves as two independent draws, which is
// what the two-choice placement in the builder relies on.
type Slot uint8

const (
	Primary Slot = iota
	Secondary
)

// sizeShift returns the width in bits of one size field in a packed seed.
// max must be a power of two.
func sizeShift(max uint32) uint {
	return uint(bits.Len32(max))
}

// sizeMask returns the mask covering one size field in a packed seed.
func sizeMask(max uint32) uint64 {
	return uint64(max)<<1 - 1
}

// RoundUpPow2 returns the smallest power of two >= n, and 0 for n == 0.
func RoundUpPow2(n uint32) uint32 {
	if n <= 1 {
		return n
	}
	return 1 << bits.Len32(n-1)
}

// Pack combines random entropy with a table size into a seed.
// max is the configured maximum table size and fixes the field widths;
// size must not exceed it. Pack(_, 0, _) is the canonical empty seed 0.
func Pack(rand uint64, size, max uint32) uint64 {
	if size == 0 {
		return 0
	}
	shift := sizeShift(max)
	return rand<<(2*shift) |
		uint64(RoundUpPow2(size))<<shift |
		uint64(size)
}

// Size decodes the table size out of a seed packed with the same max.
func Size(seed uint64, max uint32) uint32 {
	return uint32(seed & sizeMask(max))
}

// Index maps a type ID to its candidate slot in a table of the given size.
//
// size must be > 0; callers special-case empty tables before probing.
// The primary derivation uses the low half of the mixed hash and even slots,
// the secondary uses bits 16+ and odd slots.
func Index(seed uint64, size uint32, id uint64, slot Slot, mode Mode) uint32 {
	var shift, delta uint32
	if slot == Secondary {
		shift, delta = 16, 1
	}
	h2 := typeid.Mix(seed, id) >> shift
	if mode == PowerOfTwo {
		return uint32(h2&uint64(size-2)) + delta
	}
	return uint32(h2%uint64(size))&^1 + delta
}
