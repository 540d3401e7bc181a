package mesh

import (
	gomath "math"

	"github.com/Faultbox/ifcmesh/pkg/math"
)

// ComputeNormals returns per-vertex normals averaged from the faces sharing
// each vertex. Faces are weighted by area; vertices used by no face get a
// zero normal.
func ComputeNormals(vertices []math.Vec3, tris [][3]uint32) []math.Vec3 {
	sums := make([]math.Vec3, len(vertices))
	for _, tri := range tris {
		v0, v1, v2 := vertices[tri[0]], vertices[tri[1]], vertices[tri[2]]
		// Unnormalized cross product: length is twice the triangle area.
		fn := v1.Sub(v0).Cross(v2.Sub(v0))
		for _, idx := range tri {
			sums[idx] = sums[idx].Add(fn)
		}
	}
	for i := range sums {
		sums[i] = sums[i].Normalize()
	}
	return sums
}

// SmoothNormals averages normals of vertices that share a position within
// epsilon, removing the faceted look of split seams. Normals must be the same
// length as positions (three floats per vertex).
func SmoothNormals(positions, normals []float32, epsilon float32) {
	posMap := make(map[[3]int64][]int)
	for i := 0; i+2 < len(positions); i += 3 {
		key := [3]int64{
			cell(positions[i], epsilon),
			cell(positions[i+1], epsilon),
			cell(positions[i+2], epsilon),
		}
		posMap[key] = append(posMap[key], i)
	}

	for _, idxs := range posMap {
		if len(idxs) < 2 {
			continue
		}
		var sum math.Vec3
		for _, i := range idxs {
			sum = sum.Add(math.Vec3{X: float64(normals[i]), Y: float64(normals[i+1]), Z: float64(normals[i+2])})
		}
		avg := sum.Normalize().Float32()
		for _, i := range idxs {
			copy(normals[i:i+3], avg[:])
		}
	}
}

// cell quantizes a coordinate to its epsilon grid cell. Georeferenced
// models sit far from the origin, so keys need 64 bits.
func cell(v, epsilon float32) int64 {
	return int64(gomath.Floor(float64(v) / float64(epsilon)))
}
