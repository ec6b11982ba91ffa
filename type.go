package supers

import (
	"sync/atomic"

	"github.com/iwanowww/supers/table"
)

// PrimarySuperLimit is the capacity of the primary ancestor chain. Ancestors
// beyond this depth overflow into the secondary-supertype table.
const PrimarySuperLimit = 8

// Type is a node in a hierarchy: a class or an interface.
//
// All fields except the published table are set during Define and immutable
// afterwards. The table reference is published with a release store and read
// with an acquire load, so any goroutine observing it sees a fully-formed,
// immutable table.
type Type struct {
	name   string
	iface  bool
	super  *Type
	ifaces []*Type // direct superinterfaces
	id     uint64

	// depth is the length of the primary ancestor chain prefix this type
	// occupies; PrimarySuperLimit means the chain overflowed (or the type is
	// an interface, which is never a primary super).
	depth   int
	primary [PrimarySuperLimit]*Type

	secondary atomic.Pointer[table.Table[*Type]]
}

// Name returns the type's name, unique within its hierarchy.
func (t *Type) Name() string { return t.name }

// IsInterface reports whether the type is an interface.
func (t *Type) IsInterface() bool { return t.iface }

// Super returns the direct superclass, or nil for a root type.
func (t *Type) Super() *Type { return t.super }

// Interfaces returns the directly declared superinterfaces.
// The returned slice is a read-only view.
func (t *Type) Interfaces() []*Type { return t.ifaces }

// ID returns the type's hash identity.
func (t *Type) ID() uint64 { return t.id }

// Depth returns the type's depth on the primary ancestor chain, saturated at
// PrimarySuperLimit for overflowed chains and interfaces.
func (t *Type) Depth() int { return t.depth }

// Secondary returns the published secondary-supertype table.
// It is non-nil for every fully defined type.
func (t *Type) Secondary() *table.Table[*Type] { return t.secondary.Load() }

// canBePrimarySuper reports whether checks against this type can use the
// primary ancestor fast path. Interfaces never can; classes can while their
// own chain has not overflowed.
func (t *Type) canBePrimarySuper() bool {
	return !t.iface && t.depth < PrimarySuperLimit
}

// IsSubtypeOf reports whether t is assignable to s.
//
// The primary ancestor fast path resolves single-inheritance checks with one
// array load. Everything else — interfaces and overflowed ancestor chains —
// goes through the secondary-supertype table. The check is allocation-free
// and takes no locks; it must only be called on fully defined types.
func (t *Type) IsSubtypeOf(s *Type) bool {
	if s.canBePrimarySuper() {
		return t.primary[s.depth] == s
	}
	return t.searchSecondary(s)
}

// searchSecondary consults the secondary-supertype table.
// A type is never stored in its own table, hence the self check.
func (t *Type) searchSecondary(s *Type) bool {
	if t == s {
		return true
	}
	return t.secondary.Load().Contains(s)
}
