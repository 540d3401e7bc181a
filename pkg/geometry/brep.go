package geometry

import (
	"fmt"

	"github.com/Faultbox/ifcmesh/pkg/formats"
	"github.com/Faultbox/ifcmesh/pkg/math"
)

// brep collects the faces of a faceted B-rep or surface model. Points are
// shared by their express ID. Inner face bounds and brep voids are ignored.
func (r *resolver) brep(item *formats.EntityRecord) (Shape, error) {
	var shells []uint32
	switch item.Type {
	case "IFCFACETEDBREP", "IFCFACETEDBREPWITHVOIDS":
		id, ok := item.Attr(0).AsRef()
		if !ok {
			return nil, fmt.Errorf("#%d: brep without outer shell: %w", item.ID, errDegenerate)
		}
		shells = []uint32{id}
	case "IFCSHELLBASEDSURFACEMODEL", "IFCFACEBASEDSURFACEMODEL":
		shells = item.Attr(0).Refs()
	default:
		shells = []uint32{item.ID}
	}

	b := &FacetedBrep{ID: item.ID, Type: item.Type}
	pointIndex := make(map[uint32]uint32)
	for _, shellID := range shells {
		shell, err := r.entity(shellID)
		if err != nil {
			return nil, err
		}
		for _, faceID := range shell.Attr(0).Refs() {
			face, err := r.entity(faceID)
			if err != nil {
				return nil, err
			}
			loop, err := r.outerLoop(face)
			if err != nil {
				return nil, err
			}
			if len(loop) < 3 {
				continue
			}

			poly := make([]uint32, 0, len(loop))
			for _, ptID := range loop {
				idx, ok := pointIndex[ptID]
				if !ok {
					p, err := r.point(ptID)
					if err != nil {
						return nil, err
					}
					idx = uint32(len(b.Points))
					b.Points = append(b.Points, p)
					pointIndex[ptID] = idx
				}
				poly = append(poly, idx)
			}
			b.Faces = append(b.Faces, poly)
		}
	}
	if len(b.Faces) == 0 {
		return nil, fmt.Errorf("#%d: no faces: %w", item.ID, errDegenerate)
	}
	return b, nil
}

// outerLoop returns the point IDs of the outer IFCPOLYLOOP of IFCFACE(Bounds),
// reversed when its Orientation is false. Without an IFCFACEOUTERBOUND the
// first bound is used.
func (r *resolver) outerLoop(face *formats.EntityRecord) ([]uint32, error) {
	switch face.Type {
	case "IFCFACE", "IFCFACESURFACE":
	default:
		return nil, fmt.Errorf("#%d: face %s: %w", face.ID, face.Type, ErrUnsupportedShape)
	}

	var bound *formats.EntityRecord
	for _, boundID := range face.Attr(0).Refs() {
		rec, err := r.entity(boundID)
		if err != nil {
			return nil, err
		}
		if bound == nil || rec.Type == "IFCFACEOUTERBOUND" {
			bound = rec
		}
		if rec.Type == "IFCFACEOUTERBOUND" {
			break
		}
	}
	if bound == nil {
		return nil, nil
	}

	loop, err := r.ref(bound, 0)
	if err != nil {
		return nil, err
	}
	if loop.Type != "IFCPOLYLOOP" {
		return nil, fmt.Errorf("#%d: loop %s: %w", loop.ID, loop.Type, ErrUnsupportedShape)
	}
	ids := loop.Attr(0).Refs()
	if orientation, ok := bound.Attr(1).AsBool(); ok && !orientation {
		for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
			ids[i], ids[j] = ids[j], ids[i]
		}
	}
	return ids, nil
}

// triangulatedFaceSet resolves IFCTRIANGULATEDFACESET(Coordinates, Normals,
// Closed, CoordIndex, PnIndex). Supplied normals are kept only when they
// map one to one onto the coordinates.
func (r *resolver) triangulatedFaceSet(item *formats.EntityRecord) (Shape, error) {
	list, err := r.ref(item, 0)
	if err != nil {
		return nil, err
	}
	pts, err := pointList(list)
	if err != nil {
		return nil, err
	}

	pn, hasPn := pnIndex(item.Attr(4))
	resolve := func(i int64) (uint32, error) {
		if hasPn {
			if i < 1 || int(i) > len(pn) {
				return 0, fmt.Errorf("#%d: PnIndex %d out of range: %w", item.ID, i, errDegenerate)
			}
			i = pn[i-1]
		}
		if i < 1 || int(i) > len(pts) {
			return 0, fmt.Errorf("#%d: CoordIndex %d out of range: %w", item.ID, i, errDegenerate)
		}
		return uint32(i - 1), nil
	}

	b := &FacetedBrep{ID: item.ID, Type: item.Type, Points: pts}
	faces, _ := item.Attr(3).AsList()
	for _, face := range faces {
		if len(face.List) != 3 {
			return nil, fmt.Errorf("#%d: face with %d indices: %w", item.ID, len(face.List), errDegenerate)
		}
		tri := make([]uint32, 3)
		for k, v := range face.List {
			if tri[k], err = resolve(v.Int); err != nil {
				return nil, err
			}
		}
		b.Faces = append(b.Faces, tri)
	}

	if normals, ok := item.Attr(1).AsList(); ok && len(normals) == len(pts) && item.Attr(4).IsNull() {
		b.Normals = make([]math.Vec3, len(normals))
		for i, n := range normals {
			c, ok := n.Floats()
			if !ok || len(c) != 3 {
				b.Normals = nil
				break
			}
			b.Normals[i] = math.Vec3{X: c[0], Y: c[1], Z: c[2]}.Normalize()
		}
	}
	return b, nil
}

// polygonalFaceSet resolves IFCPOLYGONALFACESET(Coordinates, Closed, Faces,
// PnIndex) with IFCINDEXEDPOLYGONALFACE(CoordIndex) faces.
func (r *resolver) polygonalFaceSet(item *formats.EntityRecord) (Shape, error) {
	list, err := r.ref(item, 0)
	if err != nil {
		return nil, err
	}
	pts, err := pointList(list)
	if err != nil {
		return nil, err
	}
	pn, hasPn := pnIndex(item.Attr(3))

	b := &FacetedBrep{ID: item.ID, Type: item.Type, Points: pts}
	for _, faceID := range item.Attr(2).Refs() {
		face, err := r.entity(faceID)
		if err != nil {
			return nil, err
		}
		indices, _ := face.Attr(0).AsList()
		poly := make([]uint32, 0, len(indices))
		for _, v := range indices {
			i := v.Int
			if hasPn && i >= 1 && int(i) <= len(pn) {
				i = pn[i-1]
			}
			if i < 1 || int(i) > len(pts) {
				return nil, fmt.Errorf("#%d: CoordIndex %d out of range: %w", face.ID, v.Int, errDegenerate)
			}
			poly = append(poly, uint32(i-1))
		}
		b.Faces = append(b.Faces, poly)
	}
	return b, nil
}

// pnIndex reads an optional flat list of 1-based point indices.
func pnIndex(v formats.Value) ([]int64, bool) {
	items, ok := v.AsList()
	if !ok || len(items) == 0 || items[0].Kind != formats.ValueInteger {
		return nil, false
	}
	out := make([]int64, len(items))
	for i, item := range items {
		out[i] = item.Int
	}
	return out, true
}
