package mesh

import (
	"fmt"
	"sort"
)

// Range maps a contiguous run of triangles to the entity that produced them.
type Range struct {
	Start    uint32 // first triangle
	Count    uint32 // number of triangles
	EntityID uint32
	Bounds   Bounds // world-space box of the range's vertices
}

// End returns one past the last triangle of the range.
func (r Range) End() uint32 {
	return r.Start + r.Count
}

// Contains reports whether triangle t falls in the range.
func (r Range) Contains(t uint32) bool {
	return t >= r.Start && t < r.End()
}

// GeometryIndex is the ordered list of triangle ranges of a unified mesh.
// Ranges are sorted by Start and tile [0, TriangleCount) without gaps.
type GeometryIndex []Range

// Lookup returns the range containing triangle t.
func (gi GeometryIndex) Lookup(t uint32) (Range, bool) {
	i := sort.Search(len(gi), func(i int) bool { return gi[i].End() > t })
	if i == len(gi) || !gi[i].Contains(t) {
		return Range{}, false
	}
	return gi[i], true
}

// TriangleCount returns the number of triangles covered by the index.
func (gi GeometryIndex) TriangleCount() uint32 {
	if len(gi) == 0 {
		return 0
	}
	return gi[len(gi)-1].End()
}

// RangesFor returns every range produced by the given entity.
func (gi GeometryIndex) RangesFor(entityID uint32) []Range {
	var out []Range
	for _, r := range gi {
		if r.EntityID == entityID {
			out = append(out, r)
		}
	}
	return out
}

// EntityIDs returns the distinct entity IDs in index order.
func (gi GeometryIndex) EntityIDs() []uint32 {
	seen := make(map[uint32]bool, len(gi))
	var out []uint32
	for _, r := range gi {
		if !seen[r.EntityID] {
			seen[r.EntityID] = true
			out = append(out, r.EntityID)
		}
	}
	return out
}

// Validate checks that the ranges tile [0, TriangleCount) in order.
func (gi GeometryIndex) Validate() error {
	var next uint32
	for i, r := range gi {
		if r.Count == 0 {
			return fmt.Errorf("range %d (entity #%d) is empty", i, r.EntityID)
		}
		if r.Start != next {
			return fmt.Errorf("range %d (entity #%d) starts at %d, expected %d", i, r.EntityID, r.Start, next)
		}
		next = r.End()
	}
	return nil
}
