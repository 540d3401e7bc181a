// Package mesh merges per-entity triangle fragments into one buffer set and
// keeps the triangle-range index that maps every triangle back to its entity.
package mesh

import (
	"github.com/Faultbox/ifcmesh/pkg/math"
)

// Fragment is the local-space triangle mesh produced for one entity.
// Transform places it in world space and is applied during Merge.
type Fragment struct {
	EntityID  uint32
	Vertices  []math.Vec3
	Normals   []math.Vec3 // optional; same length as Vertices when present
	Indices   [][3]uint32
	Transform math.Mat4
}

// NewFragment creates an empty fragment with an identity transform.
func NewFragment(entityID uint32) *Fragment {
	return &Fragment{EntityID: entityID, Transform: math.Identity()}
}

// AddVertex appends a vertex and returns its index.
func (f *Fragment) AddVertex(v math.Vec3) uint32 {
	f.Vertices = append(f.Vertices, v)
	return uint32(len(f.Vertices) - 1)
}

// AddTriangle appends a triangle by vertex indices.
func (f *Fragment) AddTriangle(a, b, c uint32) {
	f.Indices = append(f.Indices, [3]uint32{a, b, c})
}

// Append copies other into f, transforming its vertices by m.
// Supplied normals survive only when both fragments carry them.
func (f *Fragment) Append(other *Fragment, m math.Mat4) {
	if other == nil || len(other.Indices) == 0 {
		return
	}
	keepNormals := other.HasNormals() && (len(f.Vertices) == 0 || f.HasNormals())
	if !keepNormals {
		f.Normals = nil
	}

	base := uint32(len(f.Vertices))
	identity := m.IsIdentity()
	for i, v := range other.Vertices {
		if !identity {
			v = m.TransformPoint(v)
		}
		f.Vertices = append(f.Vertices, v)
		if keepNormals {
			n := other.Normals[i]
			if !identity {
				n = m.TransformNormal(n)
			}
			f.Normals = append(f.Normals, n)
		}
	}

	flip := m.Determinant3x3() < 0
	for _, tri := range other.Indices {
		if flip {
			tri[1], tri[2] = tri[2], tri[1]
		}
		f.Indices = append(f.Indices, [3]uint32{tri[0] + base, tri[1] + base, tri[2] + base})
	}
}

// HasNormals reports whether the fragment supplies per-vertex normals.
func (f *Fragment) HasNormals() bool {
	return len(f.Normals) > 0 && len(f.Normals) == len(f.Vertices)
}

// TriangleCount returns the number of triangles.
func (f *Fragment) TriangleCount() int {
	return len(f.Indices)
}

// Empty reports whether the fragment has no triangles.
func (f *Fragment) Empty() bool {
	return f == nil || len(f.Indices) == 0
}
