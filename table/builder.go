package table

import (
	"fmt"

	"github.com/iwanowww/supers/probe"
)

// Config holds the process-wide build settings. The same Config must be used
// for every build and query in a process: seed field widths depend on
// MaxTableSize and the probe reduction depends on Mode.
type Config struct {
	// MinTableSize is the entry-count threshold below which hashing is
	// skipped entirely and the table degenerates to a short tail.
	MinTableSize int
	// MaxTableSize caps the hashed region. Must be a power of two; it fixes
	// the width of the size fields packed into every seed.
	MaxTableSize uint32
	// MaxAttempts bounds the number of random seeds tried per table size.
	MaxAttempts int
	// Mode selects the probe reduction (power-of-two mask or modulo).
	Mode probe.Mode
	// Verify re-checks every produced table against its invariants.
	// Build treats a verification failure as a builder defect and panics.
	Verify bool
}

// DefaultConfig mirrors the defaults of the original runtime flags.
var DefaultConfig = Config{
	MinTableSize: 4,
	MaxTableSize: 64,
	MaxAttempts:  8,
	Mode:         probe.PowerOfTwo,
	Verify:       false,
}

// chunkSize is the growth step for Modulo-mode table sizes. Sizes stay even
// so the primary/secondary parity split always balances.
const chunkSize = 8

// Validate reports whether the configuration is usable.
func (c Config) Validate() error {
	if c.MaxTableSize == 0 || c.MaxTableSize&(c.MaxTableSize-1) != 0 {
		return fmt.Errorf("max table size %d is not a power of two", c.MaxTableSize)
	}
	if c.MinTableSize < 0 {
		return fmt.Errorf("negative min table size %d", c.MinTableSize)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts %d < 1", c.MaxAttempts)
	}
	return nil
}

// Builder runs the randomized placement search for one type at a time.
//
// It draws seeds from an explicit rand source, so builds are reproducible and
// share no hidden global state. A Builder may be reused across builds but is
// not safe for concurrent use; concurrent builds for different types each get
// their own Builder.
type Builder[T comparable] struct {
	id   func(T) uint64
	rand func() uint64
	cfg  Config
}

// NewBuilder creates a builder. id maps an entry to its hash identity and
// rand supplies seed entropy. cfg must have passed Validate.
func NewBuilder[T comparable](id func(T) uint64, rand func() uint64, cfg Config) *Builder[T] {
	return &Builder[T]{id: id, rand: rand, cfg: cfg}
}

// BuildResult reports how a build went, for tracing and metrics.
type BuildResult struct {
	Attempts int
	Stats    Stats
}

// Build searches for a conflict-minimizing placement of entries and encodes
// the best one found.
//
// Build never fails: if no seed within the attempt budget places everything,
// the best trial wins and the leftovers stay in the tail. The result is
// always structurally valid, at worst fully linear. Entries must be
// deduplicated and free of zero values; order influences placement but not
// query answers.
func (b *Builder[T]) Build(entries []T) (*Table[T], BuildResult) {
	n := len(entries)

	size := b.initialSize(n)
	if size == 0 {
		// Too few entries to justify hashing; a short linear scan wins.
		t := &Table[T]{
			mode: b.cfg.Mode,
			id:   b.id,
			tail: append([]T(nil), entries...),
		}
		return b.finish(t, BuildResult{})
	}

	bestSeed := uint64(0)
	bestScore := n + 1
	var bestSlots, bestTail []T

	attempts := 0
	for {
		roundDone := false
		for attempt := 0; attempt < b.cfg.MaxAttempts; attempt++ {
			attempts++
			seed := probe.Pack(b.rand(), size, b.cfg.MaxTableSize)
			slots := make([]T, size)
			var tail []T
			if tail = b.place(seed, size, slots, entries, bestScore); tail == nil {
				continue // fail-fast: already worse than best
			}
			bestSeed, bestScore = seed, len(tail)
			bestSlots, bestTail = slots, tail
			if bestScore == 0 || int(size)+bestScore == n {
				// Perfect placement, or a completely full table that no
				// amount of reseeding at this size can improve.
				roundDone = true
				break
			}
		}
		if roundDone || bestScore == 0 || size >= b.cfg.MaxTableSize {
			break
		}
		size = b.grow(size)
	}

	t := &Table[T]{
		seed:  bestSeed,
		size:  probe.Size(bestSeed, b.cfg.MaxTableSize),
		mode:  b.cfg.Mode,
		id:    b.id,
		slots: make([]Entry[T], len(bestSlots)),
		tail:  bestTail,
	}
	for i, ref := range bestSlots {
		t.slots[i].Ref = ref
	}
	tagConflicts(t)
	return b.finish(t, BuildResult{Attempts: attempts})
}

func (b *Builder[T]) finish(t *Table[T], res BuildResult) (*Table[T], BuildResult) {
	if b.cfg.Verify {
		if err := t.Verify(); err != nil {
			panic(fmt.Sprintf("table: build produced an inconsistent table: %v", err))
		}
	}
	res.Stats = t.Stats()
	return t, res
}

// place inserts every entry into slots via bounded cuckoo displacement,
// spilling overflow to a tail. It returns nil (abandoning the trial) as soon
// as the tail reaches bestScore, since the trial can no longer win.
func (b *Builder[T]) place(seed uint64, size uint32, slots []T, entries []T, bestScore int) []T {
	var zero T
	tail := []T{}
	for i, entry := range entries {
		placed := i - len(tail)
		if placed >= int(size) {
			tail = append(tail, entry) // table is full
		} else {
			cur := entry
			slot := probe.Primary
			spilled := true
			for attempt := uint32(0); attempt < 2*size; attempt++ {
				idx := probe.Index(seed, size, b.id(cur), slot, b.cfg.Mode)
				occupant := slots[idx]
				if occupant == zero {
					slots[idx] = cur
					spilled = false
					break
				}
				if occupant == entry && slot == probe.Primary {
					break // displacement chain came full circle
				}
				// Evict the occupant and retry it at its alternate slot.
				slots[idx] = cur
				cur = occupant
				slot ^= 1
			}
			if spilled {
				tail = append(tail, cur)
			}
		}
		if len(tail) >= bestScore {
			return nil
		}
	}
	return tail
}

// initialSize picks the starting table size for n entries, or 0 when n is
// below the hashing threshold.
func (b *Builder[T]) initialSize(n int) uint32 {
	if n == 0 || n < b.cfg.MinTableSize {
		return 0
	}
	var size uint32
	if b.cfg.Mode == probe.PowerOfTwo {
		size = probe.RoundUpPow2(uint32(n))
	} else {
		size = uint32((n + chunkSize - 1) / chunkSize * chunkSize)
	}
	return min(size, b.cfg.MaxTableSize)
}

// grow advances the monotonic size policy.
func (b *Builder[T]) grow(size uint32) uint32 {
	if b.cfg.Mode == probe.PowerOfTwo {
		return min(size*2, b.cfg.MaxTableSize)
	}
	return min(size+chunkSize, b.cfg.MaxTableSize)
}
