// Package typeid assigns hash identities to types.
//
// Every type in a hierarchy receives a 64-bit ID drawn from an avalanche
// mixing function over a seeded counter. The IDs double as hash keys for the
// secondary-supertype table, so they must be well distributed and pairwise
// uncorrelated; they are never derived from memory addresses.
//
// Collisions are possible in principle but negligible in practice: for a live
// population of n types the collision probability is bounded by the birthday
// bound n²/2⁶⁵. Space can be used in debug builds to assert non-reuse.
package typeid

import "math/bits"

const (
	// mixMul is the odd multiplicative constant of the mixer.
	mixMul = 0x8ADAE89C337954D5
	// mixPad fills the low entropy half of the first round.
	mixPad = 0xAAAAAAAAAAAAAAAA
)

// Mix avalanches two 64-bit inputs into one well-distributed output.
//
// Mix is a pure function: identical inputs produce identical outputs across
// calls and across processes. The probe function depends on this to reproduce
// at query time exactly the slot indexes the builder computed, including for
// tables reloaded from an archive.
func Mix(x, y uint64) uint64 {
	h0 := x ^ y
	l0 := x ^ mixPad

	u0, v0 := bits.Mul64(l0, mixMul)
	q0 := h0 * mixMul
	l1 := q0 ^ u0

	u1, v1 := bits.Mul64(l1, mixMul)
	p1 := v0 ^ mixMul
	q1 := bits.RotateLeft64(p1, -int(l1&63))
	l2 := q1 ^ u1
	return v1 ^ l2
}

// Source generates type IDs from an explicit seed.
//
// A Source replaces the implicit per-thread counters of address-based hashing
// schemes: all state is local, so two hierarchies never share a generator.
// Source is not safe for concurrent use; callers serialize ID assignment the
// same way they serialize the rest of type initialization.
type Source struct {
	state uint64
}

// NewSource returns a Source whose stream is fully determined by seed.
func NewSource(seed uint64) *Source {
	return &Source{state: seed}
}

// Next returns the next ID and advances the source.
func (s *Source) Next() uint64 {
	v := Mix(s.state, mixPad&0xFFFFFFFF) + 1
	s.state = v
	return v
}

// Rand returns a fresh 64-bit value without the +1 counter bias.
// The table builder uses it for placement seeds.
func (s *Source) Rand() uint64 {
	s.state = Mix(s.state, mixPad&0xFFFFFFFF) + 1
	return Mix(s.state, s.state>>32)
}

// State returns the source's current state for checkpointing.
func (s *Source) State() uint64 {
	return s.state
}

// Resume reconstructs a Source from a checkpointed state. The resumed
// source continues the original stream without repeating IDs.
func Resume(state uint64) *Source {
	return &Source{state: state}
}
