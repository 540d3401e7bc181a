// Package export writes unified model meshes to interchange formats.
package export

import (
	"errors"
	"fmt"
	"io"
	gomath "math"
	"os"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/ifcmesh/pkg/mesh"
)

// ErrEmptyMesh is returned when there is nothing to export.
var ErrEmptyMesh = errors.New("mesh has no triangles")

// Options controls glTF output.
type Options struct {
	// Binary selects GLB instead of JSON glTF with an embedded buffer.
	Binary bool
	// SmoothEpsilon, when positive, averages normals of vertices closer
	// than this distance.
	SmoothEpsilon float32
	// Names maps entity IDs to node names. Missing entries use "#<id>".
	Names map[uint32]string
	// Generator is recorded in the asset header.
	Generator string
	// KeepZUp skips the Z-up to Y-up rotation of the root node.
	KeepZUp bool
}

// Document converts a unified mesh into a glTF document with one node per
// index range. Each node carries the entity ID in its extras as
// "expressID", so picks in a viewer map back to the model.
func Document(m *mesh.UnifiedMesh, index mesh.GeometryIndex, opts Options) (*gltf.Document, error) {
	if m == nil || m.TriangleCount() == 0 || len(index) == 0 {
		return nil, ErrEmptyMesh
	}
	if err := index.Validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry index: %w", err)
	}

	normals := m.Normals
	if opts.SmoothEpsilon > 0 {
		normals = append([]float32(nil), m.Normals...)
		mesh.SmoothNormals(m.Vertices, normals, opts.SmoothEpsilon)
	}

	doc := gltf.NewDocument()
	if opts.Generator != "" {
		doc.Asset.Generator = opts.Generator
	}

	root := &gltf.Node{Name: "model"}
	if !opts.KeepZUp {
		// IFC is Z-up, glTF is Y-up: rotate -90 degrees about X.
		root.Rotation = [4]float64{-gomath.Sqrt2 / 2, 0, 0, gomath.Sqrt2 / 2}
	}
	doc.Nodes = append(doc.Nodes, root)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	for _, r := range index {
		first, last := vertexSpan(m, r)
		positions := make([][3]float32, 0, last-first+1)
		nrm := make([][3]float32, 0, last-first+1)
		for v := first; v <= last; v++ {
			positions = append(positions, m.Position(v))
			nrm = append(nrm, [3]float32{normals[v*3], normals[v*3+1], normals[v*3+2]})
		}

		tris := m.Indices[r.Start*3 : r.End()*3]
		var indices any
		if last-first < gomath.MaxUint16 {
			idx := make([]uint16, len(tris))
			for i, v := range tris {
				idx[i] = uint16(v - first)
			}
			indices = idx
		} else {
			idx := make([]uint32, len(tris))
			for i, v := range tris {
				idx[i] = v - first
			}
			indices = idx
		}

		name := opts.Names[r.EntityID]
		if name == "" {
			name = fmt.Sprintf("#%d", r.EntityID)
		}
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name: name,
			Primitives: []*gltf.Primitive{{
				Indices: gltf.Index(modeler.WriteIndices(doc, indices)),
				Attributes: gltf.PrimitiveAttributes{
					gltf.POSITION: modeler.WritePosition(doc, positions),
					gltf.NORMAL:   modeler.WriteNormal(doc, nrm),
				},
				Mode: gltf.PrimitiveTriangles,
			}},
		})
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name:   name,
			Mesh:   gltf.Index(len(doc.Meshes) - 1),
			Extras: map[string]any{"expressID": r.EntityID},
		})
		root.Children = append(root.Children, len(doc.Nodes)-1)
	}
	return doc, nil
}

// vertexSpan returns the first and last vertex referenced by a range.
// Merged fragments occupy contiguous vertices, so the span holds only the
// range's own vertices.
func vertexSpan(m *mesh.UnifiedMesh, r mesh.Range) (first, last uint32) {
	first = gomath.MaxUint32
	for _, v := range m.Indices[r.Start*3 : r.End()*3] {
		if v < first {
			first = v
		}
		if v > last {
			last = v
		}
	}
	return first, last
}

// Write encodes doc to w.
func Write(w io.Writer, doc *gltf.Document, binary bool) error {
	if !binary {
		for _, b := range doc.Buffers {
			b.EmbeddedResource()
		}
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = binary
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding glTF: %w", err)
	}
	return nil
}

// WriteFile converts and writes a mesh to path.
func WriteFile(path string, m *mesh.UnifiedMesh, index mesh.GeometryIndex, opts Options) error {
	doc, err := Document(m, index, opts)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(f, doc, opts.Binary); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
