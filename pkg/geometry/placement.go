package geometry

import (
	"fmt"

	"github.com/Faultbox/ifcmesh/pkg/diag"
	"github.com/Faultbox/ifcmesh/pkg/formats"
	"github.com/Faultbox/ifcmesh/pkg/math"
)

var (
	axisX = math.Vec3{X: 1}
	axisZ = math.Vec3{Z: 1}
)

// objectPlacement composes an IFCLOCALPLACEMENT with every placement it is
// relative to. The chain is walked iteratively; a repeated placement is a
// fatal CyclicPlacement error.
func (r *resolver) objectPlacement(id uint32) (math.Mat4, error) {
	var chain []math.Mat4
	visited := make(map[uint32]bool)

	for id != 0 {
		if visited[id] {
			return math.Mat4{}, formats.NewFormatError(formats.ReasonCyclicPlacement, id,
				fmt.Sprintf("placement of #%d revisits #%d", r.owner.ID, id), formats.ErrCyclicPlacement)
		}
		visited[id] = true

		rec, err := r.entity(id)
		if err != nil {
			return math.Mat4{}, err
		}
		if rec.Type != "IFCLOCALPLACEMENT" {
			// Grid and linear placements have no local axes to compose.
			r.warn(diag.KindDegenerateGeometry, rec.Type, "placement #%d treated as identity", rec.ID)
			break
		}

		local := math.Identity()
		if relID, ok := rec.Attr(1).AsRef(); ok {
			local, err = r.axisPlacement(relID)
			if err != nil {
				return math.Mat4{}, err
			}
		}
		chain = append(chain, local)

		parent, _ := rec.Attr(0).AsRef()
		id = parent
	}

	world := math.Identity()
	for i := len(chain) - 1; i >= 0; i-- {
		world = world.Mul(chain[i])
	}
	return world, nil
}

// axisPlacement converts IFCAXIS2PLACEMENT3D/2D or IFCAXIS1PLACEMENT to a matrix.
func (r *resolver) axisPlacement(id uint32) (math.Mat4, error) {
	rec, err := r.entity(id)
	if err != nil {
		return math.Mat4{}, err
	}

	var origin math.Vec3
	if locID, ok := rec.Attr(0).AsRef(); ok {
		if origin, err = r.point(locID); err != nil {
			return math.Mat4{}, err
		}
	}

	switch rec.Type {
	case "IFCAXIS2PLACEMENT3D":
		z, err := r.direction(rec.Attr(1), axisZ)
		if err != nil {
			return math.Mat4{}, err
		}
		x, err := r.direction(rec.Attr(2), axisX)
		if err != nil {
			return math.Mat4{}, err
		}
		return basis(x, z, origin), nil

	case "IFCAXIS2PLACEMENT2D":
		x, err := r.direction(rec.Attr(1), axisX)
		if err != nil {
			return math.Mat4{}, err
		}
		return basis(math.Vec3{X: x.X, Y: x.Y}, axisZ, origin), nil

	case "IFCAXIS1PLACEMENT":
		z, err := r.direction(rec.Attr(1), axisZ)
		if err != nil {
			return math.Mat4{}, err
		}
		return basis(axisX, z, origin), nil
	}
	return math.Mat4{}, fmt.Errorf("#%d: %s is not an axis placement: %w", rec.ID, rec.Type, ErrUnsupportedShape)
}

// optionalPlacement reads an optional axis placement attribute.
func (r *resolver) optionalPlacement(v formats.Value) (math.Mat4, error) {
	id, ok := v.AsRef()
	if !ok {
		return math.Identity(), nil
	}
	return r.axisPlacement(id)
}

// basis builds a right-handed frame from a Z axis and an approximate X axis.
// X is made orthogonal to Z; when they are parallel any perpendicular is used.
func basis(x, z, origin math.Vec3) math.Mat4 {
	z = z.Normalize()
	x = x.Sub(z.Scale(x.Dot(z)))
	if x.Length() < 1e-9 {
		x = z.Perpendicular()
	}
	x = x.Normalize()
	y := z.Cross(x)
	return math.FromBasis(x, y, z, origin)
}

// transformOperator converts IFCCARTESIANTRANSFORMATIONOPERATOR3D and its
// non-uniform subtype: Axis1, Axis2, LocalOrigin, Scale, Axis3, Scale2, Scale3.
func (r *resolver) transformOperator(id uint32) (math.Mat4, error) {
	rec, err := r.entity(id)
	if err != nil {
		return math.Mat4{}, err
	}
	switch rec.Type {
	case "IFCCARTESIANTRANSFORMATIONOPERATOR3D", "IFCCARTESIANTRANSFORMATIONOPERATOR3DNONUNIFORM":
	case "IFCCARTESIANTRANSFORMATIONOPERATOR2D", "IFCCARTESIANTRANSFORMATIONOPERATOR2DNONUNIFORM":
	default:
		return math.Mat4{}, fmt.Errorf("#%d: %s is not a transformation operator: %w", rec.ID, rec.Type, ErrUnsupportedShape)
	}

	x, err := r.direction(rec.Attr(0), axisX)
	if err != nil {
		return math.Mat4{}, err
	}
	var origin math.Vec3
	if locID, ok := rec.Attr(2).AsRef(); ok {
		if origin, err = r.point(locID); err != nil {
			return math.Mat4{}, err
		}
	}
	z, err := r.direction(rec.Attr(4), axisZ)
	if err != nil {
		return math.Mat4{}, err
	}

	sx := 1.0
	if s, ok := floatAttr(rec, 3); ok {
		sx = s
	}
	sy, sz := sx, sx
	if rec.Type == "IFCCARTESIANTRANSFORMATIONOPERATOR3DNONUNIFORM" {
		if s, ok := floatAttr(rec, 5); ok {
			sy = s
		}
		if s, ok := floatAttr(rec, 6); ok {
			sz = s
		}
	}
	return basis(x, z, origin).Mul(math.Scale(sx, sy, sz)), nil
}
