package geometry

import (
	gomath "math"

	"github.com/Faultbox/ifcmesh/pkg/math"
)

const areaEpsilon = 1e-12

// Triangulate ear-clips a simple polygon. Triangles index into pts and are
// wound counter-clockwise whatever the input winding. Output depends only on
// the input order, so identical polygons always yield identical triangles.
func Triangulate(pts []math.Vec2) [][3]uint32 {
	n := len(pts)
	if n < 3 {
		return nil
	}

	idx := make([]uint32, n)
	ccw := math.PolygonArea(pts) >= 0
	for i := range idx {
		if ccw {
			idx[i] = uint32(i)
		} else {
			idx[i] = uint32(n - 1 - i)
		}
	}

	tris := make([][3]uint32, 0, n-2)
	for len(idx) > 3 {
		m := len(idx)
		ear := -1
		for i := 0; i < m; i++ {
			prev, cur, next := idx[(i+m-1)%m], idx[i], idx[(i+1)%m]
			if isEar(pts, idx, prev, cur, next) {
				ear = i
				break
			}
		}
		if ear < 0 {
			// No ear left: the remainder is self-intersecting or collinear.
			return appendFan(pts, tris, idx)
		}
		tris = append(tris, [3]uint32{idx[(ear+m-1)%m], idx[ear], idx[(ear+1)%m]})
		idx = append(idx[:ear], idx[ear+1:]...)
	}
	if triArea(pts[idx[0]], pts[idx[1]], pts[idx[2]]) > areaEpsilon {
		tris = append(tris, [3]uint32{idx[0], idx[1], idx[2]})
	}
	return tris
}

func appendFan(pts []math.Vec2, tris [][3]uint32, idx []uint32) [][3]uint32 {
	for i := 1; i+1 < len(idx); i++ {
		if gomath.Abs(triArea(pts[idx[0]], pts[idx[i]], pts[idx[i+1]])) > areaEpsilon {
			tris = append(tris, [3]uint32{idx[0], idx[i], idx[i+1]})
		}
	}
	return tris
}

// triArea returns twice the signed area of triangle abc.
func triArea(a, b, c math.Vec2) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

func isEar(pts []math.Vec2, idx []uint32, prev, cur, next uint32) bool {
	a, b, c := pts[prev], pts[cur], pts[next]
	if triArea(a, b, c) <= areaEpsilon {
		return false
	}
	for _, j := range idx {
		if j == prev || j == cur || j == next {
			continue
		}
		p := pts[j]
		if p == a || p == b || p == c {
			continue
		}
		if triArea(a, b, p) >= 0 && triArea(b, c, p) >= 0 && triArea(c, a, p) >= 0 {
			return false
		}
	}
	return true
}

// triangulateFace triangulates a planar 3D polygon given by indices into
// points. Triangles keep the polygon's winding.
func triangulateFace(points []math.Vec3, face []uint32) [][3]uint32 {
	if len(face) == 3 {
		return [][3]uint32{{face[0], face[1], face[2]}}
	}

	// Newell normal of the loop in its given order.
	var n math.Vec3
	for i := range face {
		p, q := points[face[i]], points[face[(i+1)%len(face)]]
		n.X += (p.Y - q.Y) * (p.Z + q.Z)
		n.Y += (p.Z - q.Z) * (p.X + q.X)
		n.Z += (p.X - q.X) * (p.Y + q.Y)
	}
	if n.Length() < areaEpsilon {
		return nil
	}
	n = n.Normalize()
	u := n.Perpendicular()
	v := n.Cross(u)

	flat := make([]math.Vec2, len(face))
	for i, id := range face {
		p := points[id]
		flat[i] = math.Vec2{X: p.Dot(u), Y: p.Dot(v)}
	}
	local := Triangulate(flat)
	out := make([][3]uint32, len(local))
	for i, t := range local {
		out[i] = [3]uint32{face[t[0]], face[t[1]], face[t[2]]}
	}
	return out
}
