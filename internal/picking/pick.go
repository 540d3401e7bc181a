package picking

import (
	"sort"

	"github.com/Faultbox/ifcmesh/pkg/mesh"
)

// Hit is the nearest triangle struck by a ray.
type Hit struct {
	Triangle uint32
	EntityID uint32
	Distance float32
	Point    [3]float32
}

// Pick returns the nearest triangle of m hit by r.
// Ranges whose bounds the ray misses are skipped; the rest are tested
// nearest box first so far ranges can be culled once a hit is known.
func Pick(m *mesh.UnifiedMesh, index mesh.GeometryIndex, r Ray) (Hit, bool) {
	if m == nil || !r.Valid() {
		return Hit{}, false
	}

	type candidate struct {
		rng   mesh.Range
		enter float32
	}
	var candidates []candidate
	for _, rng := range index {
		t, ok := r.IntersectAABB(rng.Bounds)
		if !ok {
			continue
		}
		// Inside the box the slab test returns the exit distance.
		if contains(rng.Bounds, r.Origin) {
			t = 0
		}
		candidates = append(candidates, candidate{rng: rng, enter: t})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].enter < candidates[j].enter
	})

	var best Hit
	found := false
	for _, c := range candidates {
		if found && c.enter > best.Distance {
			break
		}
		for tri := c.rng.Start; tri < c.rng.End(); tri++ {
			a, b, cc := m.Triangle(tri)
			t, ok := r.IntersectTriangle(a, b, cc)
			if !ok || (found && t >= best.Distance) {
				continue
			}
			best = Hit{Triangle: tri, EntityID: c.rng.EntityID, Distance: t, Point: r.At(t)}
			found = true
		}
	}
	return best, found
}

func contains(b mesh.Bounds, p [3]float32) bool {
	for axis := 0; axis < 3; axis++ {
		if p[axis] < b.Min[axis] || p[axis] > b.Max[axis] {
			return false
		}
	}
	return true
}
