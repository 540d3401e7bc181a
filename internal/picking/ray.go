// Package picking provides ray casting against unified model meshes.
package picking

import (
	gomath "math"

	"github.com/Faultbox/ifcmesh/pkg/mesh"
)

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    [3]float32
	Direction [3]float32 // Normalized direction
}

// NewRay creates a ray and normalizes its direction.
func NewRay(origin, direction [3]float32) Ray {
	dir := direction
	rayLen := float32(gomath.Sqrt(float64(dir[0]*dir[0] + dir[1]*dir[1] + dir[2]*dir[2])))
	if rayLen > 0 {
		dir[0] /= rayLen
		dir[1] /= rayLen
		dir[2] /= rayLen
	}
	return Ray{Origin: origin, Direction: dir}
}

// Valid reports whether the ray has a non-zero direction.
func (r Ray) Valid() bool {
	return r.Direction != [3]float32{}
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) [3]float32 {
	return [3]float32{
		r.Origin[0] + t*r.Direction[0],
		r.Origin[1] + t*r.Direction[1],
		r.Origin[2] + t*r.Direction[2],
	}
}

// IntersectAABB tests ray intersection with an axis-aligned bounding box.
// Returns the distance to intersection (t) and whether intersection occurred.
// If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectAABB(box mesh.Bounds) (t float32, hit bool) {
	if !box.Valid() {
		return 0, false
	}
	tmin := float32(-gomath.MaxFloat32)
	tmax := float32(gomath.MaxFloat32)

	for axis := 0; axis < 3; axis++ {
		if r.Direction[axis] != 0 {
			t1 := (box.Min[axis] - r.Origin[axis]) / r.Direction[axis]
			t2 := (box.Max[axis] - r.Origin[axis]) / r.Direction[axis]
			if t1 > t2 {
				t1, t2 = t2, t1
			}
			if t1 > tmin {
				tmin = t1
			}
			if t2 < tmax {
				tmax = t2
			}
		} else if r.Origin[axis] < box.Min[axis] || r.Origin[axis] > box.Max[axis] {
			return 0, false
		}
	}

	// Check if intersection is valid
	if tmax < tmin || tmax < 0 {
		return 0, false
	}

	// Return entry point, or exit point if starting inside
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// triangleEpsilon bounds the sine of the angle between a ray and a
// triangle's plane below which the ray counts as parallel.
const triangleEpsilon = 1e-6

// IntersectTriangle tests the ray against triangle (a, b, c) from both
// sides (Möller–Trumbore). Returns the distance along the ray.
func (r Ray) IntersectTriangle(a, b, c [3]float32) (t float32, hit bool) {
	e1 := sub(b, a)
	e2 := sub(c, a)
	p := cross(r.Direction, e2)
	det := dot(e1, p)
	// det scales with both edge lengths, so the threshold does too.
	limit := triangleEpsilon * float32(gomath.Sqrt(float64(dot(e1, e1))*float64(dot(e2, e2))))
	if limit == 0 || (det > -limit && det < limit) {
		return 0, false
	}
	inv := 1 / det

	s := sub(r.Origin, a)
	u := dot(s, p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := cross(s, e1)
	v := dot(r.Direction, q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t = dot(e2, q) * inv
	if t < 0 {
		return 0, false
	}
	return t, true
}

func sub(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func dot(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
