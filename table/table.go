// Package table implements the secondary-supertype table: a build-once,
// read-forever near-perfect hash table over a type's full interface and
// ancestor-overflow set.
//
// A table is produced offline by Builder, published once, and never mutated.
// Contains is the runtime query: allocation-free, lock-free, safe for any
// number of concurrent readers. Correctness never depends on the randomized
// build finding a good placement — entries the build could not place spill to
// a linear tail, which is slower to scan but answers identically.
//
// The element type T is typically a pointer to a type node. The zero value of
// T marks an empty slot and must never be used as an entry.
package table

import (
	"fmt"

	"github.com/iwanowww/supers/probe"
)

// Entry is one hashed slot: a reference plus an explicit conflict flag.
//
// The flag replaces the low-bit pointer tagging of address-based layouts.
// A set flag means at least one tail entry probes to this slot, so a reader
// that finds a non-matching occupant here cannot treat it as proof of
// absence and must fall through to the tail.
type Entry[T comparable] struct {
	Ref      T
	Conflict bool
}

// Table is the immutable packed output of a build.
//
// Slots interleave the two regions by parity: even indexes are primary
// candidate slots, odd indexes are secondary ones. The tail holds entries the
// build left unplaced. Every input entry lives in exactly one of the three
// regions.
type Table[T comparable] struct {
	seed  uint64
	size  uint32
	mode  probe.Mode
	id    func(T) uint64
	slots []Entry[T]
	tail  []T
}

// Seed returns the packed seed the table was built with. Decoding it with
// probe.Size yields exactly len(Slots()).
func (t *Table[T]) Seed() uint64 { return t.seed }

// Size returns the number of hashed slots. Zero means tail-only.
func (t *Table[T]) Size() uint32 { return t.size }

// Slots returns the hashed region. The slice is a read-only view into the
// table; callers must not modify it.
func (t *Table[T]) Slots() []Entry[T] { return t.slots }

// Tail returns the linear fallback region as a read-only view.
func (t *Table[T]) Tail() []T { return t.tail }

// Len returns the total number of stored entries across all regions.
func (t *Table[T]) Len() int {
	n := len(t.tail)
	var zero T
	for i := range t.slots {
		if t.slots[i].Ref != zero {
			n++
		}
	}
	return n
}

// Contains reports whether target is stored in the table.
//
// The fast path is two probes. An empty candidate slot is a hard proof of
// absence: placement would have filled it, and tail spill tags both candidate
// slots of every tail entry. Only when both candidate slots hold tagged
// non-matching occupants does the query scan the tail once.
//
// Contains performs no allocation and takes no locks.
func (t *Table[T]) Contains(target T) bool {
	if t.size > 0 {
		id := t.id(target)
		e1 := t.slots[probe.Index(t.seed, t.size, id, probe.Primary, t.mode)]
		if e1.Ref == target {
			return true
		}
		e2 := t.slots[probe.Index(t.seed, t.size, id, probe.Secondary, t.mode)]
		if e2.Ref == target {
			return true
		}
		var zero T
		if e1.Ref == zero || e2.Ref == zero {
			return false
		}
		if !e1.Conflict || !e2.Conflict {
			return false
		}
	}
	for _, ref := range t.tail {
		if ref == target {
			return true
		}
	}
	return false
}

// Stats summarizes a table's shape for logging and metrics.
type Stats struct {
	Size   uint32 // hashed slot count
	Used   int    // occupied hashed slots
	Tail   int    // tail length
	Tagged int    // conflict-tagged slots
}

// Stats computes shape statistics. Not for use on the query path.
func (t *Table[T]) Stats() Stats {
	st := Stats{Size: t.size, Tail: len(t.tail)}
	var zero T
	for i := range t.slots {
		if t.slots[i].Ref != zero {
			st.Used++
		}
		if t.slots[i].Conflict {
			st.Tagged++
		}
	}
	return st
}

// Verify re-derives every stored entry's candidate indexes and checks the
// structural invariants: each hashed entry sits at one of its two derived
// slots, conflict tags are present exactly where tail entries probe, tags
// never mark empty slots, and no entry appears twice.
//
// Verify is a debug facility; production queries never need it.
func (t *Table[T]) Verify() error {
	var zero T
	if t.size == 0 {
		if len(t.slots) != 0 {
			return fmt.Errorf("tail-only table has %d hashed slots", len(t.slots))
		}
		return verifyNoDuplicates(t.tail)
	}
	if uint32(len(t.slots)) != t.size {
		return fmt.Errorf("slot count %d disagrees with decoded size %d", len(t.slots), t.size)
	}

	seen := make(map[T]struct{}, len(t.slots)+len(t.tail))
	for i, e := range t.slots {
		if e.Ref == zero {
			if e.Conflict {
				return fmt.Errorf("slot %d: conflict tag on empty slot", i)
			}
			continue
		}
		if _, dup := seen[e.Ref]; dup {
			return fmt.Errorf("slot %d: duplicate entry", i)
		}
		seen[e.Ref] = struct{}{}

		id := t.id(e.Ref)
		p := probe.Index(t.seed, t.size, id, probe.Primary, t.mode)
		s := probe.Index(t.seed, t.size, id, probe.Secondary, t.mode)
		if uint32(i) != p && uint32(i) != s {
			return fmt.Errorf("slot %d: entry derives to %d/%d", i, p, s)
		}
	}

	tagged := make(map[uint32]bool, 2*len(t.tail))
	for i, ref := range t.tail {
		if ref == zero {
			return fmt.Errorf("tail %d: zero entry", i)
		}
		if _, dup := seen[ref]; dup {
			return fmt.Errorf("tail %d: entry also stored elsewhere", i)
		}
		seen[ref] = struct{}{}

		id := t.id(ref)
		for _, slot := range []probe.Slot{probe.Primary, probe.Secondary} {
			idx := probe.Index(t.seed, t.size, id, slot, t.mode)
			tagged[idx] = true
			if t.slots[idx].Ref == zero {
				return fmt.Errorf("tail %d: candidate slot %d is empty", i, idx)
			}
			if !t.slots[idx].Conflict {
				return fmt.Errorf("tail %d: candidate slot %d is untagged", i, idx)
			}
		}
	}
	for i, e := range t.slots {
		if e.Conflict && !tagged[uint32(i)] {
			return fmt.Errorf("slot %d: stray conflict tag", i)
		}
	}
	return nil
}

func verifyNoDuplicates[T comparable](tail []T) error {
	seen := make(map[T]struct{}, len(tail))
	for i, ref := range tail {
		if _, dup := seen[ref]; dup {
			return fmt.Errorf("tail %d: duplicate entry", i)
		}
		seen[ref] = struct{}{}
	}
	return nil
}

// Reassemble reconstructs a table from its persisted parts: the seed, the
// hashed slot references in slot order (zero values for empty slots), and the
// tail. Geometry comes from decoding the seed against cfg — never from the
// caller's counts — and conflict tags are re-derived from the tail.
//
// Reassemble is the archive-import path; Builder is the only other way to
// obtain a Table.
func Reassemble[T comparable](seed uint64, slotRefs []T, tail []T, id func(T) uint64, cfg Config) (*Table[T], error) {
	size := probe.Size(seed, cfg.MaxTableSize)
	if !validGeometry(size, cfg) {
		return nil, fmt.Errorf("seed decodes to size %d, which no build can produce", size)
	}
	if int(size) != len(slotRefs) {
		return nil, fmt.Errorf("seed decodes to size %d, got %d slot refs", size, len(slotRefs))
	}
	t := &Table[T]{
		seed:  seed,
		size:  size,
		mode:  cfg.Mode,
		id:    id,
		slots: make([]Entry[T], len(slotRefs)),
		tail:  append([]T(nil), tail...),
	}
	for i, ref := range slotRefs {
		t.slots[i].Ref = ref
	}
	tagConflicts(t)
	if err := t.Verify(); err != nil {
		return nil, fmt.Errorf("reassembled table is inconsistent: %w", err)
	}
	return t, nil
}

// validGeometry reports whether a decoded table size is one the builder can
// produce under cfg. Seeds come from untrusted archives; a forged size field
// would otherwise drive Index out of its domain (size 1 underflows the
// power-of-two mask) or past MaxTableSize.
func validGeometry(size uint32, cfg Config) bool {
	switch {
	case size == 0:
		return true // tail-only
	case size < 2 || size > cfg.MaxTableSize || size%2 != 0:
		return false
	case cfg.Mode == probe.PowerOfTwo:
		return size&(size-1) == 0
	default:
		// Modulo sizes grow in chunks, capped at the maximum.
		return size%chunkSize == 0 || size == cfg.MaxTableSize
	}
}

// tagConflicts marks both candidate slots of every tail entry.
// Tail-only tables have no slots to tag, and probing a size-0 geometry is
// outside Index's contract.
func tagConflicts[T comparable](t *Table[T]) {
	if t.size == 0 {
		return
	}
	for _, ref := range t.tail {
		id := t.id(ref)
		t.slots[probe.Index(t.seed, t.size, id, probe.Primary, t.mode)].Conflict = true
		t.slots[probe.Index(t.seed, t.size, id, probe.Secondary, t.mode)].Conflict = true
	}
}
