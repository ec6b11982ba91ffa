package supers

import (
	"fmt"

	"github.com/iwanowww/supers/table"
	"github.com/iwanowww/supers/typeid"
)

// TypeRecord is the persisted form of one type. Cross references are
// indexes into the snapshot's record list; -1 means absent. Slots carry
// the table's hashed region in slot order, with -1 for empty slots, so a
// restored table needs no placement search.
type TypeRecord struct {
	Name       string  `json:"name"`
	Interface  bool    `json:"interface,omitempty"`
	Super      int32   `json:"super"`
	Interfaces []int32 `json:"interfaces,omitempty"`
	ID         uint64  `json:"id"`
	Seed       uint64  `json:"seed"`
	Slots      []int32 `json:"slots"`
	Tail       []int32 `json:"tail,omitempty"`
}

// Snapshot is a point-in-time export of a hierarchy: its configuration,
// its ID source checkpoint, and all types in definition order. Records
// only ever reference earlier records.
type Snapshot struct {
	Config  table.Config `json:"config"`
	Source  uint64       `json:"source"`
	Records []TypeRecord `json:"records"`
}

// Snapshot exports the hierarchy. The result is self-contained and
// deterministic: restoring it yields a hierarchy that answers every
// subtype check identically and continues the ID stream without reuse.
func (h *Hierarchy) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	index := make(map[*Type]int32, len(h.ordered))
	for i, t := range h.ordered {
		index[t] = int32(i)
	}

	records := make([]TypeRecord, len(h.ordered))
	for i, t := range h.ordered {
		rec := TypeRecord{
			Name:      t.name,
			Interface: t.iface,
			Super:     -1,
			ID:        t.id,
		}
		if t.super != nil {
			rec.Super = index[t.super]
		}
		for _, it := range t.ifaces {
			rec.Interfaces = append(rec.Interfaces, index[it])
		}

		tb := t.secondary.Load()
		rec.Seed = tb.Seed()
		slots := tb.Slots()
		rec.Slots = make([]int32, len(slots))
		for j, e := range slots {
			if e.Ref == nil {
				rec.Slots[j] = -1
			} else {
				rec.Slots[j] = index[e.Ref]
			}
		}
		for _, ref := range tb.Tail() {
			rec.Tail = append(rec.Tail, index[ref])
		}
		records[i] = rec
	}

	return Snapshot{
		Config:  h.cfg,
		Source:  h.src.State(),
		Records: records,
	}
}

// Restore reconstructs a hierarchy from a snapshot without rerunning any
// placement search: each table is reassembled from its seed and regions
// and republished. The snapshot's configuration wins over WithConfig and
// WithSeed; the other options apply as in New.
//
// In verify mode every restored table is checked against the recomputed
// secondary-supertype set, and IDs are checked for collisions.
func Restore(snap Snapshot, optFns ...Option) (*Hierarchy, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	cfg := snap.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("supers: invalid snapshot config: %w", err)
	}

	h := &Hierarchy{
		cfg:     cfg,
		src:     typeid.Resume(snap.Source),
		logger:  o.logger,
		metrics: o.metrics,
		res:     o.res,
		types:   make(map[string]*Type, len(snap.Records)),
	}
	if cfg.Verify {
		h.space = typeid.NewSpace()
	}

	// Materialize shells first so reference resolution is uniform.
	shells := make([]*Type, len(snap.Records))
	for i, rec := range snap.Records {
		if _, dup := h.types[rec.Name]; dup {
			return nil, fmt.Errorf("supers: record %d %q: %w: duplicate name", i, rec.Name, ErrBadSnapshot)
		}
		t := &Type{name: rec.Name, iface: rec.Interface, id: rec.ID}
		if h.space != nil && h.space.Record(t.id) {
			return nil, fmt.Errorf("supers: record %d %q: %w", i, rec.Name, ErrIDCollision)
		}
		shells[i] = t
		h.types[rec.Name] = t
	}

	resolve := func(i int, ref int32) (*Type, error) {
		// References only point backwards; a forward or out-of-range
		// reference means the snapshot was tampered with or truncated.
		if ref < 0 || int(ref) >= i {
			return nil, fmt.Errorf("supers: record %d: reference %d: %w", i, ref, ErrBadSnapshot)
		}
		return shells[ref], nil
	}

	for i, rec := range snap.Records {
		t := shells[i]

		if rec.Super >= 0 {
			super, err := resolve(i, rec.Super)
			if err != nil {
				return nil, err
			}
			if super.iface {
				return nil, fmt.Errorf("supers: record %d %q: superclass %q: %w", i, rec.Name, super.name, ErrNotAClass)
			}
			t.super = super
		} else if h.root != nil {
			return nil, fmt.Errorf("supers: record %d %q: %w: second root", i, rec.Name, ErrBadSnapshot)
		}
		for _, ref := range rec.Interfaces {
			it, err := resolve(i, ref)
			if err != nil {
				return nil, err
			}
			if !it.iface {
				return nil, fmt.Errorf("supers: record %d %q: superinterface %q: %w", i, rec.Name, it.name, ErrNotAnInterface)
			}
			t.ifaces = append(t.ifaces, it)
		}
		h.initPrimarySupers(t)

		slotRefs := make([]*Type, len(rec.Slots))
		for j, ref := range rec.Slots {
			if ref < 0 {
				continue
			}
			s, err := resolve(i, ref)
			if err != nil {
				return nil, err
			}
			slotRefs[j] = s
		}
		tail := make([]*Type, len(rec.Tail))
		for j, ref := range rec.Tail {
			s, err := resolve(i, ref)
			if err != nil {
				return nil, err
			}
			tail[j] = s
		}

		tb, err := table.Reassemble(rec.Seed, slotRefs, tail, (*Type).ID, cfg)
		if err != nil {
			return nil, fmt.Errorf("supers: record %d %q: %w: %w", i, rec.Name, ErrBadSnapshot, err)
		}
		if cfg.Verify {
			for _, s := range h.secondarySupers(t) {
				if !tb.Contains(s) {
					return nil, fmt.Errorf("supers: record %d %q: secondary %q: %w", i, rec.Name, s.name, ErrTableDefect)
				}
			}
		}
		t.secondary.Store(tb)

		if t.super == nil {
			h.root = t
		}
		h.ordered = append(h.ordered, t)
	}

	return h, nil
}
