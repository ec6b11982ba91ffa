// Package supers answers "is A assignable to B?" over a live class/interface
// hierarchy in amortized constant time.
//
// Each type carries a fixed-size primary ancestor chain for O(1) checks along
// single-inheritance paths, and a secondary-supertype table — a near-perfect
// hash table over its full interface and ancestor-overflow set — for
// everything else. Tables are built once during type definition by a
// randomized two-choice placement search and published atomically; after
// publication the query path is allocation-free, lock-free, and safe from any
// number of goroutines.
//
//	h, _ := supers.New()
//	object, _ := h.Define("Object", nil)
//	serializable, _ := h.DefineInterface("Serializable")
//	str, _ := h.Define("String", object, serializable)
//
//	str.IsSubtypeOf(serializable) // true
//
// Built hierarchies can be exported to an archive (package archive) and
// re-imported to skip rebuild cost at startup.
package supers
