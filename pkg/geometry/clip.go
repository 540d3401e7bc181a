package geometry

import (
	"github.com/Faultbox/ifcmesh/pkg/math"
	"github.com/Faultbox/ifcmesh/pkg/mesh"
)

const planeEpsilon = 1e-9

// clipByPlane keeps the part of f where (p - origin) · normal >= 0.
// Cut edges get one shared vertex each; the cut is left open.
func clipByPlane(f *mesh.Fragment, origin, normal math.Vec3) *mesh.Fragment {
	dist := make([]float64, len(f.Vertices))
	inside := 0
	for i, v := range f.Vertices {
		dist[i] = v.Sub(origin).Dot(normal)
		if dist[i] >= -planeEpsilon {
			inside++
		}
	}
	if inside == len(f.Vertices) {
		return f
	}

	out := mesh.NewFragment(f.EntityID)
	if inside == 0 {
		return out
	}

	kept := make(map[uint32]uint32)
	cuts := make(map[[2]uint32]uint32)
	keep := func(i uint32) uint32 {
		if j, ok := kept[i]; ok {
			return j
		}
		j := out.AddVertex(f.Vertices[i])
		kept[i] = j
		return j
	}
	cut := func(a, b uint32) uint32 {
		if a > b {
			a, b = b, a
		}
		key := [2]uint32{a, b}
		if j, ok := cuts[key]; ok {
			return j
		}
		t := dist[a] / (dist[a] - dist[b])
		j := out.AddVertex(f.Vertices[a].Lerp(f.Vertices[b], t))
		cuts[key] = j
		return j
	}

	poly := make([]uint32, 0, 4)
	for _, tri := range f.Indices {
		poly = poly[:0]
		for k := 0; k < 3; k++ {
			a, b := tri[k], tri[(k+1)%3]
			inA, inB := dist[a] >= -planeEpsilon, dist[b] >= -planeEpsilon
			if inA {
				poly = append(poly, keep(a))
			}
			if inA != inB {
				poly = append(poly, cut(a, b))
			}
		}
		for i := 1; i+1 < len(poly); i++ {
			out.AddTriangle(poly[0], poly[i], poly[i+1])
		}
	}
	return out
}
