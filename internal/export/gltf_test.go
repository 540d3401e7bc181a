package export

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/Faultbox/ifcmesh/pkg/math"
	"github.com/Faultbox/ifcmesh/pkg/mesh"
)

func cube(id uint32, offset float64) *mesh.Fragment {
	f := mesh.NewFragment(id)
	for _, v := range []math.Vec3{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1},
	} {
		f.AddVertex(v)
	}
	for _, tri := range [][3]uint32{
		{0, 2, 1}, {0, 3, 2}, {4, 5, 6}, {4, 6, 7},
		{0, 1, 5}, {0, 5, 4}, {1, 2, 6}, {1, 6, 5},
		{2, 3, 7}, {2, 7, 6}, {3, 0, 4}, {3, 4, 7},
	} {
		f.AddTriangle(tri[0], tri[1], tri[2])
	}
	f.Transform = math.Translate(offset, 0, 0)
	return f
}

func merged(t *testing.T) (*mesh.UnifiedMesh, mesh.GeometryIndex) {
	t.Helper()
	m, index, err := mesh.Merge([]*mesh.Fragment{cube(10, 0), cube(11, 5)}, mesh.MergeOptions{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	return m, index
}

func TestDocument_NodePerRange(t *testing.T) {
	m, index := merged(t)
	doc, err := Document(m, index, Options{Names: map[uint32]string{10: "Cube A"}, Generator: "ifctool"})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}

	if len(doc.Meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(doc.Meshes))
	}
	if len(doc.Nodes) != 3 {
		t.Fatalf("expected root + 2 nodes, got %d", len(doc.Nodes))
	}
	if doc.Asset.Generator != "ifctool" {
		t.Errorf("generator = %q", doc.Asset.Generator)
	}
	root := doc.Nodes[0]
	if len(root.Children) != 2 {
		t.Errorf("expected 2 children, got %v", root.Children)
	}
	if root.Rotation[3] == 0 {
		t.Error("expected Z-up to Y-up rotation on the root")
	}

	wantNames := []string{"Cube A", "#11"}
	for i, id := range []uint32{10, 11} {
		n := doc.Nodes[i+1]
		if n.Name != wantNames[i] {
			t.Errorf("node %d name = %q, want %q", i, n.Name, wantNames[i])
		}
		extras, ok := n.Extras.(map[string]any)
		if !ok || extras["expressID"] != id {
			t.Errorf("node %d extras = %v", i, n.Extras)
		}
	}

	prim := doc.Meshes[1].Primitives[0]
	pos := doc.Accessors[prim.Attributes[gltf.POSITION]]
	if pos.Count != 8 {
		t.Errorf("expected 8 positions per cube, got %d", pos.Count)
	}
	idx := doc.Accessors[*prim.Indices]
	if idx.Count != 36 {
		t.Errorf("expected 36 indices, got %d", idx.Count)
	}
	if idx.ComponentType != gltf.ComponentUshort {
		t.Errorf("expected 16-bit indices, got %v", idx.ComponentType)
	}
	if pos.Min[0] != 5 || pos.Max[0] != 6 {
		t.Errorf("second cube positions not rebased: min %v max %v", pos.Min, pos.Max)
	}
}

func TestDocument_KeepZUp(t *testing.T) {
	m, index := merged(t)
	doc, err := Document(m, index, Options{KeepZUp: true})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if doc.Nodes[0].Rotation != [4]float64{} {
		t.Errorf("expected no root rotation, got %v", doc.Nodes[0].Rotation)
	}
}

func TestDocument_SmoothLeavesMeshUntouched(t *testing.T) {
	m, index := merged(t)
	before := append([]float32(nil), m.Normals...)
	if _, err := Document(m, index, Options{SmoothEpsilon: 1e-4}); err != nil {
		t.Fatalf("Document: %v", err)
	}
	for i := range before {
		if before[i] != m.Normals[i] {
			t.Fatal("smoothing modified the source mesh")
		}
	}
}

func TestDocument_Empty(t *testing.T) {
	if _, err := Document(nil, nil, Options{}); !errors.Is(err, ErrEmptyMesh) {
		t.Errorf("expected ErrEmptyMesh, got %v", err)
	}
	m, _, err := mesh.Merge(nil, mesh.MergeOptions{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if _, err := Document(m, nil, Options{}); !errors.Is(err, ErrEmptyMesh) {
		t.Errorf("expected ErrEmptyMesh, got %v", err)
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	m, index := merged(t)
	for _, binary := range []bool{true, false} {
		path := filepath.Join(t.TempDir(), "model.gltf")
		if binary {
			path = filepath.Join(t.TempDir(), "model.glb")
		}
		if err := WriteFile(path, m, index, Options{Binary: binary}); err != nil {
			t.Fatalf("WriteFile(binary=%v): %v", binary, err)
		}
		doc, err := gltf.Open(path)
		if err != nil {
			t.Fatalf("Open(binary=%v): %v", binary, err)
		}
		if len(doc.Meshes) != 2 || len(doc.Nodes) != 3 {
			t.Errorf("binary=%v: got %d meshes, %d nodes", binary, len(doc.Meshes), len(doc.Nodes))
		}
	}
}

func TestWrite_GLBMagic(t *testing.T) {
	m, index := merged(t)
	doc, err := Document(m, index, Options{})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, doc, true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("glTF")) {
		t.Errorf("expected GLB magic, got %q", buf.Bytes()[:4])
	}
}
