package geometry

import (
	gomath "math"

	"github.com/Faultbox/ifcmesh/pkg/diag"
	"github.com/Faultbox/ifcmesh/pkg/math"
	"github.com/Faultbox/ifcmesh/pkg/mesh"
)

// tessellate converts a shape to triangles in item coordinates. It returns
// nil when the shape contributes no geometry.
func (r *resolver) tessellate(s Shape) *mesh.Fragment {
	switch s := s.(type) {
	case *Extrusion:
		return r.extrude(s)
	case *Sweep:
		return r.sweepDisk(s)
	case *FacetedBrep:
		return r.facets(s)
	case *BooleanCombination:
		return r.combine(s)
	case *Unsupported:
		if !s.Reported {
			r.warn(diag.KindUnsupportedShape, s.Type, "item #%d: %s", s.ID, unsupportedReason(s))
		}
		return nil
	}
	return nil
}

func unsupportedReason(s *Unsupported) string {
	if s.Reason != "" {
		return s.Reason
	}
	return "no tessellator for " + s.Type
}

// extrude builds a prism with shared ring vertices: n bottom vertices,
// n top vertices, ear-clipped caps and two triangles per side.
func (r *resolver) extrude(s *Extrusion) *mesh.Fragment {
	f := mesh.NewFragment(r.owner.ID)
	n := uint32(len(s.Profile))
	offset := s.Direction.Scale(s.Depth)
	for _, p := range s.Profile {
		f.AddVertex(s.Position.TransformPoint(p.Vec3(0)))
	}
	for _, p := range s.Profile {
		f.AddVertex(s.Position.TransformPoint(p.Vec3(0).Add(offset)))
	}

	// Extruding below the profile plane or through a mirroring placement
	// turns the solid inside out.
	flip := (s.Direction.Z < 0) != (s.Position.Determinant3x3() < 0)
	add := func(a, b, c uint32) {
		if flip {
			b, c = c, b
		}
		f.AddTriangle(a, b, c)
	}

	for _, t := range Triangulate(s.Profile) {
		add(t[2], t[1], t[0])
		add(n+t[0], n+t[1], n+t[2])
	}
	for i := uint32(0); i < n; i++ {
		j := (i + 1) % n
		add(i, j, n+j)
		add(i, n+j, n+i)
	}
	return f
}

// sweepDisk builds a tube of rings perpendicular to the directrix with end
// caps. Ring frames are carried along the path so the tube does not twist.
func (r *resolver) sweepDisk(s *Sweep) *mesh.Fragment {
	f := mesh.NewFragment(r.owner.ID)
	pts := s.Directrix
	m := len(pts)
	n := SegmentCount(s.Radius, r.tolerance)

	segment := func(i int) math.Vec3 { return pts[i+1].Sub(pts[i]).Normalize() }

	var u math.Vec3
	for i := 0; i < m; i++ {
		var t math.Vec3
		scale := 1.0
		switch {
		case i == 0:
			t = segment(0)
		case i == m-1:
			t = segment(m - 2)
		default:
			in, out := segment(i-1), segment(i)
			t = in.Add(out).Normalize()
			if t.Length() == 0 {
				t = out
			}
			// Mitred joint: widen the ring so the tube keeps its radius.
			if c := in.Dot(t); c > 0.2 {
				scale = 1 / c
			} else {
				scale = 5
			}
		}

		if i == 0 {
			u = t.Perpendicular()
		} else {
			u = u.Sub(t.Scale(u.Dot(t)))
			if u.Length() < 1e-9 {
				u = t.Perpendicular()
			}
			u = u.Normalize()
		}
		v := t.Cross(u)

		for k := 0; k < n; k++ {
			a := 2 * gomath.Pi * float64(k) / float64(n)
			dir := u.Scale(gomath.Cos(a)).Add(v.Scale(gomath.Sin(a)))
			f.AddVertex(pts[i].Add(dir.Scale(s.Radius * scale)))
		}
	}

	un := uint32(n)
	for i := 0; i < m-1; i++ {
		base := uint32(i) * un
		for k := uint32(0); k < un; k++ {
			k1 := (k + 1) % un
			f.AddTriangle(base+k, base+k1, base+un+k1)
			f.AddTriangle(base+k, base+un+k1, base+un+k)
		}
	}

	start := f.AddVertex(pts[0])
	end := f.AddVertex(pts[m-1])
	last := uint32(m-1) * un
	for k := uint32(0); k < un; k++ {
		k1 := (k + 1) % un
		f.AddTriangle(start, k1, k)
		f.AddTriangle(end, last+k, last+k1)
	}
	return f
}

// facets triangulates every face of a faceted brep over its shared points.
func (r *resolver) facets(s *FacetedBrep) *mesh.Fragment {
	f := mesh.NewFragment(r.owner.ID)
	f.Vertices = append(f.Vertices, s.Points...)
	if len(s.Normals) == len(s.Points) {
		f.Normals = append(f.Normals, s.Normals...)
	}
	for _, face := range s.Faces {
		if len(face) < 3 {
			continue
		}
		for _, t := range triangulateFace(s.Points, face) {
			f.AddTriangle(t[0], t[1], t[2])
		}
	}
	if f.Empty() {
		r.warn(diag.KindDegenerateGeometry, s.Type, "item #%d has no non-degenerate faces", s.ID)
		return nil
	}
	return f
}

// combine evaluates a boolean combination. Half-space operands clip by
// their plane; a solid subtracted from another is not evaluated.
func (r *resolver) combine(s *BooleanCombination) *mesh.Fragment {
	first := r.tessellate(s.First)

	if s.Clip != nil {
		if first.Empty() {
			return nil
		}
		if s.Clip.Bounded {
			r.warn(diag.KindBooleanApproximated, s.Type, "item #%d: bounded half space #%d clipped as unbounded", s.ID, s.Clip.ID)
		}
		// Material of the half space lies opposite the normal when the
		// agreement flag is set. Difference keeps the other side.
		keepAlongNormal := s.Clip.Agreement == (s.Operator == BooleanDifference)
		normal := s.Clip.Normal
		if !keepAlongNormal {
			normal = normal.Scale(-1)
		}
		return clipByPlane(first, s.Clip.Origin, normal)
	}

	switch s.Operator {
	case BooleanUnion:
		second := r.tessellate(s.Second)
		if first.Empty() {
			return second
		}
		first.Append(second, math.Identity())
		return first
	case BooleanDifference:
		r.warn(diag.KindBooleanApproximated, s.Type, "item #%d: difference with solid #%d not subtracted", s.ID, s.Second.SourceID())
		return first
	}
	r.warn(diag.KindUnsupportedShape, s.Type, "item #%d: %s of two solids", s.ID, s.Operator)
	return nil
}
