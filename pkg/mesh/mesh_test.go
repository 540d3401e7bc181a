package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/ifcmesh/pkg/math"
)

// cubeFragment builds a unit cube with 8 shared vertices and 12 triangles,
// wound counter-clockwise when seen from outside.
func cubeFragment(id uint32) *Fragment {
	f := NewFragment(id)
	for _, v := range []math.Vec3{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1},
	} {
		f.AddVertex(v)
	}
	for _, tri := range [][3]uint32{
		{0, 2, 1}, {0, 3, 2}, // bottom
		{4, 5, 6}, {4, 6, 7}, // top
		{0, 1, 5}, {0, 5, 4}, // front
		{1, 2, 6}, {1, 6, 5}, // right
		{2, 3, 7}, {2, 7, 6}, // back
		{3, 0, 4}, {3, 4, 7}, // left
	} {
		f.AddTriangle(tri[0], tri[1], tri[2])
	}
	return f
}

func TestMerge_TwoCubes(t *testing.T) {
	a := cubeFragment(10)
	b := cubeFragment(11)
	b.Transform = math.Translate(5, 0, 0)

	m, index, err := Merge([]*Fragment{a, b}, MergeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 16, m.VertexCount())
	assert.Equal(t, 24, m.TriangleCount())
	assert.Len(t, m.Normals, len(m.Vertices))
	require.Len(t, index, 2)
	assert.Equal(t, uint32(0), index[0].Start)
	assert.Equal(t, uint32(12), index[0].Count)
	assert.Equal(t, uint32(10), index[0].EntityID)
	assert.Equal(t, uint32(12), index[1].Start)
	assert.Equal(t, uint32(12), index[1].Count)
	assert.Equal(t, uint32(11), index[1].EntityID)
	assert.NoError(t, index.Validate())

	// Second cube indices are rebased past the first cube's vertices.
	assert.Equal(t, uint32(8), m.Indices[12*3])
	assert.Equal(t, [3]float32{5, 0, 0}, index[1].Bounds.Min)
	assert.Equal(t, [3]float32{6, 1, 1}, index[1].Bounds.Max)
	assert.Equal(t, [3]float32{0, 0, 0}, m.Bounds.Min)
	assert.Equal(t, [3]float32{6, 1, 1}, m.Bounds.Max)
}

func TestMerge_SkipsEmptyFragments(t *testing.T) {
	m, index, err := Merge([]*Fragment{NewFragment(1), nil, cubeFragment(2)}, MergeOptions{})
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, uint32(2), index[0].EntityID)
	assert.Equal(t, 8, m.VertexCount())
}

func TestMerge_Empty(t *testing.T) {
	m, index, err := Merge(nil, MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, m.TriangleCount())
	assert.Empty(t, index)
	assert.Equal(t, uint32(0), index.TriangleCount())
}

func TestMerge_IndexOverflow(t *testing.T) {
	big := NewFragment(1)
	big.Vertices = make([]math.Vec3, 1<<16+1)
	big.AddTriangle(0, 1, 2)

	_, _, err := Merge([]*Fragment{big}, MergeOptions{IndexWidth: 16})
	assert.ErrorIs(t, err, ErrIndexOverflow)

	m, _, err := Merge([]*Fragment{big}, MergeOptions{IndexWidth: 32})
	require.NoError(t, err)
	assert.Equal(t, 32, m.IndexSize)
}

func TestMerge_ExactlyAtLimit(t *testing.T) {
	f := NewFragment(1)
	f.Vertices = make([]math.Vec3, 1<<16)
	f.AddTriangle(0, 1, 1<<16-1)

	m, _, err := Merge([]*Fragment{f}, MergeOptions{IndexWidth: 16})
	require.NoError(t, err)
	assert.Equal(t, uint16(1<<16-1), m.Indices16()[2])
}

func TestMerge_InvalidWidth(t *testing.T) {
	_, _, err := Merge([]*Fragment{cubeFragment(1)}, MergeOptions{IndexWidth: 24})
	assert.ErrorIs(t, err, ErrInvalidIndexWidth)
}

func TestMerge_BadFragmentIndex(t *testing.T) {
	f := cubeFragment(3)
	f.AddTriangle(0, 1, 99)
	_, _, err := Merge([]*Fragment{f}, MergeOptions{})
	assert.ErrorIs(t, err, ErrIndexOutOfFragment)
}

func TestMerge_MirrorReversesWinding(t *testing.T) {
	f := NewFragment(1)
	f.AddVertex(math.Vec3{X: 0, Y: 0, Z: 0})
	f.AddVertex(math.Vec3{X: 1, Y: 0, Z: 0})
	f.AddVertex(math.Vec3{X: 0, Y: 1, Z: 0})
	f.AddTriangle(0, 1, 2)
	f.Transform = math.Scale(-1, 1, 1)

	m, _, err := Merge([]*Fragment{f}, MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 2, 1}, m.Indices)

	// After mirroring and reversal the face still points along +Z.
	assert.InDelta(t, 1.0, m.Normals[2], 1e-6)
}

func TestMerge_SuppliedNormals(t *testing.T) {
	f := NewFragment(1)
	f.AddVertex(math.Vec3{X: 0, Y: 0, Z: 0})
	f.AddVertex(math.Vec3{X: 1, Y: 0, Z: 0})
	f.AddVertex(math.Vec3{X: 0, Y: 1, Z: 0})
	f.Normals = []math.Vec3{{X: 1}, {X: 1}, {X: 1}}
	f.AddTriangle(0, 1, 2)
	f.Transform = math.RotateAxis(math.Vec3{Z: 1}, 1.5707963267948966)

	m, _, err := Merge([]*Fragment{f}, MergeOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, m.Normals[0], 1e-6)
	assert.InDelta(t, 1.0, m.Normals[1], 1e-6)
}

func TestComputeNormals_CubeCorners(t *testing.T) {
	f := cubeFragment(1)
	normals := ComputeNormals(f.Vertices, f.Indices)
	require.Len(t, normals, 8)

	// Corner 6 at (1,1,1) averages the three outward faces it touches.
	n := normals[6]
	assert.Greater(t, n.X, 0.0)
	assert.Greater(t, n.Y, 0.0)
	assert.Greater(t, n.Z, 0.0)
	assert.InDelta(t, 1.0, n.Length(), 1e-9)
}

func TestSmoothNormals(t *testing.T) {
	positions := []float32{0, 0, 0, 0, 0, 0, 5, 5, 5}
	normals := []float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
	SmoothNormals(positions, normals, 0.001)

	assert.InDelta(t, normals[0], normals[3], 1e-6)
	assert.InDelta(t, normals[1], normals[4], 1e-6)
	assert.Equal(t, []float32{0, 0, 1}, normals[6:9])
}

func TestSmoothNormals_Georeferenced(t *testing.T) {
	// Projected coordinates far beyond 32-bit cells at this epsilon.
	positions := []float32{
		500000, 6000000, 10,
		500000, 6000000, 10,
		500010, 6000020, 10,
		-500010, -6000020, 10,
	}
	normals := []float32{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		0, 0, -1,
	}
	SmoothNormals(positions, normals, 1e-4)

	assert.InDelta(t, normals[0], normals[3], 1e-6)
	assert.InDelta(t, normals[1], normals[4], 1e-6)
	assert.Equal(t, []float32{0, 0, 1}, normals[6:9])
	assert.Equal(t, []float32{0, 0, -1}, normals[9:12])
}

func TestFragment_Append(t *testing.T) {
	f := NewFragment(7)
	f.Append(cubeFragment(0), math.Identity())
	f.Append(cubeFragment(0), math.Scale(1, 1, -1))

	assert.Len(t, f.Vertices, 16)
	assert.Equal(t, 24, f.TriangleCount())
	// The mirrored copy has its winding reversed.
	assert.Equal(t, [3]uint32{8, 9, 10}, f.Indices[12])
}

func TestGeometryIndex_Lookup(t *testing.T) {
	index := GeometryIndex{
		{Start: 0, Count: 12, EntityID: 10},
		{Start: 12, Count: 1, EntityID: 20},
		{Start: 13, Count: 5, EntityID: 30},
	}
	require.NoError(t, index.Validate())

	tests := []struct {
		tri    uint32
		entity uint32
		ok     bool
	}{
		{0, 10, true},
		{11, 10, true},
		{12, 20, true},
		{13, 30, true},
		{17, 30, true},
		{18, 0, false},
	}
	for _, tt := range tests {
		r, ok := index.Lookup(tt.tri)
		assert.Equal(t, tt.ok, ok, "triangle %d", tt.tri)
		assert.Equal(t, tt.entity, r.EntityID, "triangle %d", tt.tri)
	}
	assert.Equal(t, uint32(18), index.TriangleCount())
	assert.Equal(t, []uint32{10, 20, 30}, index.EntityIDs())
}

func TestGeometryIndex_RangesFor(t *testing.T) {
	index := GeometryIndex{
		{Start: 0, Count: 12, EntityID: 10},
		{Start: 12, Count: 2, EntityID: 20},
		{Start: 14, Count: 3, EntityID: 10},
	}
	ranges := index.RangesFor(10)
	require.Len(t, ranges, 2)
	assert.Equal(t, uint32(0), ranges[0].Start)
	assert.Equal(t, uint32(14), ranges[1].Start)
	assert.Len(t, index.RangesFor(20), 1)
	assert.Empty(t, index.RangesFor(99))
}

func TestGeometryIndex_Validate(t *testing.T) {
	assert.Error(t, GeometryIndex{{Start: 0, Count: 2}, {Start: 3, Count: 1}}.Validate())
	assert.Error(t, GeometryIndex{{Start: 0, Count: 0}}.Validate())
	assert.NoError(t, GeometryIndex{}.Validate())
}

func TestBounds(t *testing.T) {
	b := EmptyBounds()
	assert.False(t, b.Valid())
	b.Extend([3]float32{1, 2, 3})
	b.Extend([3]float32{-1, 0, 5})
	assert.True(t, b.Valid())
	assert.Equal(t, [3]float32{0, 1, 4}, b.Center())
	assert.Equal(t, [3]float32{2, 2, 2}, b.Size())
}
