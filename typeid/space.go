package typeid

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Space tracks the IDs assigned to a live type population.
//
// It exists for verify mode: equality of IDs must imply identity of types, so
// a duplicate draw is a generator defect worth failing loudly on in debug
// builds. Production builds skip the tracking entirely.
//
// Space is not safe for concurrent use; ID assignment is already serialized
// by the hierarchy.
type Space struct {
	rb *roaring64.Bitmap
}

// NewSpace creates an empty ID space.
func NewSpace() *Space {
	return &Space{rb: roaring64.New()}
}

// Record adds id to the space and reports whether it was already present.
func (s *Space) Record(id uint64) bool {
	return !s.rb.CheckedAdd(id)
}

// Contains checks whether id has been recorded.
func (s *Space) Contains(id uint64) bool {
	return s.rb.Contains(id)
}

// Cardinality returns the number of recorded IDs.
func (s *Space) Cardinality() uint64 {
	return s.rb.GetCardinality()
}
