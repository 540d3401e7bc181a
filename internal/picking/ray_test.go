package picking

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/ifcmesh/pkg/math"
	"github.com/Faultbox/ifcmesh/pkg/mesh"
)

func approx(a, b float32) bool {
	return gomath.Abs(float64(a-b)) < 1e-4
}

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

func twoCubes(t *testing.T) (*mesh.UnifiedMesh, mesh.GeometryIndex) {
	t.Helper()
	m, index, err := mesh.Merge([]*mesh.Fragment{cube(10, 0), cube(11, 5)}, mesh.MergeOptions{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	return m, index
}

func TestNewRay_Normalizes(t *testing.T) {
	r := NewRay([3]float32{1, 2, 3}, [3]float32{0, 0, -4})
	if r.Direction != [3]float32{0, 0, -1} {
		t.Errorf("expected normalized direction, got %v", r.Direction)
	}
	if !r.Valid() {
		t.Error("expected valid ray")
	}
	if NewRay([3]float32{}, [3]float32{}).Valid() {
		t.Error("zero direction should be invalid")
	}
}

func TestIntersectAABB(t *testing.T) {
	box := mesh.Bounds{Min: [3]float32{0, 0, 0}, Max: [3]float32{1, 1, 1}}

	tests := []struct {
		name  string
		ray   Ray
		hit   bool
		distT float32
	}{
		{"front", NewRay([3]float32{-2, 0.5, 0.5}, [3]float32{1, 0, 0}), true, 2},
		{"inside", NewRay([3]float32{0.5, 0.5, 0.5}, [3]float32{0, 0, 1}), true, 0.5},
		{"behind", NewRay([3]float32{2, 0.5, 0.5}, [3]float32{1, 0, 0}), false, 0},
		{"parallel outside", NewRay([3]float32{-1, 2, 0.5}, [3]float32{1, 0, 0}), false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, hit := tt.ray.IntersectAABB(box)
			if hit != tt.hit {
				t.Fatalf("hit = %v, want %v", hit, tt.hit)
			}
			if hit && !approx(d, tt.distT) {
				t.Errorf("distance = %v, want %v", d, tt.distT)
			}
		})
	}

	if _, hit := NewRay([3]float32{}, [3]float32{1, 0, 0}).IntersectAABB(mesh.EmptyBounds()); hit {
		t.Error("empty bounds should never be hit")
	}
}

func TestIntersectTriangle(t *testing.T) {
	a := [3]float32{0, 0, 0}
	b := [3]float32{1, 0, 0}
	c := [3]float32{0, 1, 0}

	d, hit := NewRay([3]float32{0.2, 0.2, 3}, [3]float32{0, 0, -1}).IntersectTriangle(a, b, c)
	if !hit || !approx(d, 3) {
		t.Errorf("expected hit at 3, got %v %v", d, hit)
	}
	// Back faces are hit too.
	d, hit = NewRay([3]float32{0.2, 0.2, -1}, [3]float32{0, 0, 1}).IntersectTriangle(a, b, c)
	if !hit || !approx(d, 1) {
		t.Errorf("expected back-face hit at 1, got %v %v", d, hit)
	}
	if _, hit := NewRay([3]float32{0.8, 0.8, 3}, [3]float32{0, 0, -1}).IntersectTriangle(a, b, c); hit {
		t.Error("ray outside the triangle should miss")
	}
	if _, hit := NewRay([3]float32{0.2, 0.2, 3}, [3]float32{1, 0, 0}).IntersectTriangle(a, b, c); hit {
		t.Error("parallel ray should miss")
	}
}

func TestIntersectTriangle_Small(t *testing.T) {
	// A 0.1 mm triangle, e.g. a fixing or a fine mesh detail.
	a := [3]float32{0, 0, 0}
	b := [3]float32{1e-4, 0, 0}
	c := [3]float32{0, 1e-4, 0}

	d, hit := NewRay([3]float32{2e-5, 2e-5, 2}, [3]float32{0, 0, -1}).IntersectTriangle(a, b, c)
	if !hit || !approx(d, 2) {
		t.Errorf("expected hit at 2, got %v %v", d, hit)
	}
	if _, hit := NewRay([3]float32{2e-5, 2e-5, 0}, [3]float32{1, 1, 0}).IntersectTriangle(a, b, c); hit {
		t.Error("in-plane ray should miss")
	}
}

func TestIntersectTriangle_Large(t *testing.T) {
	a := [3]float32{0, 0, 0}
	b := [3]float32{1000, 0, 0}
	c := [3]float32{0, 1000, 0}

	d, hit := NewRay([3]float32{100, 100, 50}, [3]float32{0, 0, -1}).IntersectTriangle(a, b, c)
	if !hit || !approx(d, 50) {
		t.Errorf("expected hit at 50, got %v %v", d, hit)
	}
	// Almost parallel: the ray drops 1e-8 per unit of travel.
	if _, hit := NewRay([3]float32{-10, 100, 1e-7}, [3]float32{1, 0, -1e-8}).IntersectTriangle(a, b, c); hit {
		t.Error("grazing ray should count as parallel")
	}
}

func TestPick(t *testing.T) {
	m, index := twoCubes(t)

	tests := []struct {
		name   string
		ray    Ray
		hit    bool
		entity uint32
		dist   float32
	}{
		{"first cube from -X", NewRay([3]float32{-5, 0.3, 0.6}, [3]float32{1, 0, 0}), true, 10, 5},
		{"second cube between", NewRay([3]float32{3, 0.3, 0.6}, [3]float32{1, 0, 0}), true, 11, 2},
		{"nearest of two", NewRay([3]float32{10, 0.3, 0.6}, [3]float32{-1, 0, 0}), true, 11, 4},
		{"top face", NewRay([3]float32{0.3, 0.6, 5}, [3]float32{0, 0, -1}), true, 10, 4},
		{"miss", NewRay([3]float32{-5, 3, 0.6}, [3]float32{1, 0, 0}), false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := Pick(m, index, tt.ray)
			if ok != tt.hit {
				t.Fatalf("hit = %v, want %v", ok, tt.hit)
			}
			if !ok {
				return
			}
			if h.EntityID != tt.entity {
				t.Errorf("entity = %d, want %d", h.EntityID, tt.entity)
			}
			if !approx(h.Distance, tt.dist) {
				t.Errorf("distance = %v, want %v", h.Distance, tt.dist)
			}
			rng, found := index.Lookup(h.Triangle)
			if !found || rng.EntityID != h.EntityID {
				t.Errorf("triangle %d does not belong to entity %d", h.Triangle, h.EntityID)
			}
		})
	}
}

func TestPick_InvalidInput(t *testing.T) {
	m, index := twoCubes(t)
	if _, ok := Pick(nil, index, NewRay([3]float32{}, [3]float32{1, 0, 0})); ok {
		t.Error("nil mesh should not be hit")
	}
	if _, ok := Pick(m, index, Ray{}); ok {
		t.Error("zero ray should not hit")
	}
}
