package mesh

import (
	"errors"
	"fmt"

	"github.com/Faultbox/ifcmesh/pkg/math"
)

// Merge errors.
var (
	ErrIndexOverflow      = errors.New("vertex count exceeds index width")
	ErrInvalidIndexWidth  = errors.New("index width must be 16 or 32")
	ErrIndexOutOfFragment = errors.New("triangle references a vertex outside its fragment")
)

// MergeOptions controls the unified buffer layout.
type MergeOptions struct {
	// IndexWidth is 16 or 32 bits. Zero means 32.
	IndexWidth int
}

// MaxVertices returns the largest vertex count addressable by the index width.
func (o MergeOptions) MaxVertices() (uint64, error) {
	switch o.IndexWidth {
	case 0, 32:
		return 1 << 32, nil
	case 16:
		return 1 << 16, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidIndexWidth, o.IndexWidth)
	}
}

// UnifiedMesh holds the merged world-space buffers of a model.
type UnifiedMesh struct {
	Vertices  []float32 // x, y, z per vertex
	Normals   []float32 // x, y, z per vertex
	Indices   []uint32  // three per triangle
	Bounds    Bounds
	IndexSize int // 16 or 32
}

// VertexCount returns the number of vertices.
func (m *UnifiedMesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *UnifiedMesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Position returns vertex i.
func (m *UnifiedMesh) Position(i uint32) [3]float32 {
	return [3]float32{m.Vertices[i*3], m.Vertices[i*3+1], m.Vertices[i*3+2]}
}

// Triangle returns the corner positions of triangle t.
func (m *UnifiedMesh) Triangle(t uint32) (a, b, c [3]float32) {
	i := m.Indices[t*3 : t*3+3]
	return m.Position(i[0]), m.Position(i[1]), m.Position(i[2])
}

// Indices16 converts the index buffer to 16-bit values for meshes merged
// with a 16-bit index width.
func (m *UnifiedMesh) Indices16() []uint16 {
	out := make([]uint16, len(m.Indices))
	for i, idx := range m.Indices {
		out[i] = uint16(idx)
	}
	return out
}

// Merge transforms every fragment into world space and concatenates them in
// the given order. Each non-empty fragment becomes exactly one index range.
// Normals are computed for fragments that do not supply them.
func Merge(frags []*Fragment, opts MergeOptions) (*UnifiedMesh, GeometryIndex, error) {
	limit, err := opts.MaxVertices()
	if err != nil {
		return nil, nil, err
	}

	var vertexTotal, triTotal uint64
	for _, f := range frags {
		if f.Empty() {
			continue
		}
		vertexTotal += uint64(len(f.Vertices))
		triTotal += uint64(len(f.Indices))
	}
	if vertexTotal > limit {
		return nil, nil, fmt.Errorf("%w: %d vertices, %d-bit indices", ErrIndexOverflow, vertexTotal, indexBits(opts))
	}

	out := &UnifiedMesh{
		Vertices:  make([]float32, 0, vertexTotal*3),
		Normals:   make([]float32, 0, vertexTotal*3),
		Indices:   make([]uint32, 0, triTotal*3),
		Bounds:    EmptyBounds(),
		IndexSize: indexBits(opts),
	}
	index := make(GeometryIndex, 0, len(frags))

	for _, f := range frags {
		if f.Empty() {
			continue
		}
		r, err := appendFragment(out, f)
		if err != nil {
			return nil, nil, err
		}
		out.Bounds.Union(r.Bounds)
		index = append(index, r)
	}
	return out, index, nil
}

func indexBits(opts MergeOptions) int {
	if opts.IndexWidth == 16 {
		return 16
	}
	return 32
}

func appendFragment(out *UnifiedMesh, f *Fragment) (Range, error) {
	n := uint32(len(f.Vertices))
	for _, tri := range f.Indices {
		if tri[0] >= n || tri[1] >= n || tri[2] >= n {
			return Range{}, fmt.Errorf("entity #%d: %w", f.EntityID, ErrIndexOutOfFragment)
		}
	}

	base := uint32(len(out.Vertices) / 3)
	r := Range{
		Start:    uint32(len(out.Indices) / 3),
		Count:    uint32(len(f.Indices)),
		EntityID: f.EntityID,
		Bounds:   EmptyBounds(),
	}

	m := f.Transform
	if m == (math.Mat4{}) {
		m = math.Identity()
	}
	world := make([]math.Vec3, len(f.Vertices))
	for i, v := range f.Vertices {
		world[i] = m.TransformPoint(v)
		p := world[i].Float32()
		r.Bounds.Extend(p)
		out.Vertices = append(out.Vertices, p[0], p[1], p[2])
	}

	// A mirroring transform flips orientation; swap two corners to keep
	// front faces facing outward.
	flip := m.Determinant3x3() < 0
	tris := make([][3]uint32, len(f.Indices))
	for i, tri := range f.Indices {
		if flip {
			tri[1], tri[2] = tri[2], tri[1]
		}
		tris[i] = tri
		out.Indices = append(out.Indices, tri[0]+base, tri[1]+base, tri[2]+base)
	}

	var normals []math.Vec3
	if f.HasNormals() {
		normals = make([]math.Vec3, len(f.Normals))
		for i, nrm := range f.Normals {
			normals[i] = m.TransformNormal(nrm)
		}
	} else {
		normals = ComputeNormals(world, tris)
	}
	for _, nrm := range normals {
		v := nrm.Float32()
		out.Normals = append(out.Normals, v[0], v[1], v[2])
	}
	return r, nil
}
