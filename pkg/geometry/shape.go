package geometry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Faultbox/ifcmesh/pkg/diag"
	"github.com/Faultbox/ifcmesh/pkg/formats"
	"github.com/Faultbox/ifcmesh/pkg/math"
)

// Shape is one of Extrusion, Sweep, FacetedBrep, BooleanCombination or
// Unsupported.
type Shape interface {
	// SourceID is the express ID of the representation item.
	SourceID() uint32
	shape()
}

// Extrusion is a planar profile swept along a direction.
type Extrusion struct {
	ID        uint32
	Profile   []math.Vec2 // closed outline, counter-clockwise
	Position  math.Mat4   // profile plane to item coordinates
	Direction math.Vec3   // unit vector in profile plane coordinates
	Depth     float64
}

// Sweep is a circular disk swept along a polyline directrix.
type Sweep struct {
	ID          uint32
	Directrix   []math.Vec3
	Radius      float64
	InnerRadius float64
}

// FacetedBrep is a polygonal surface. Faces index into Points.
type FacetedBrep struct {
	ID      uint32
	Type    string
	Points  []math.Vec3
	Faces   [][]uint32
	Normals []math.Vec3 // optional, one per point
}

// BooleanOperator is the operator of a boolean combination.
type BooleanOperator int

const (
	BooleanUnion BooleanOperator = iota
	BooleanDifference
	BooleanIntersection
)

// String returns the IFC enumeration name.
func (o BooleanOperator) String() string {
	switch o {
	case BooleanUnion:
		return "UNION"
	case BooleanDifference:
		return "DIFFERENCE"
	case BooleanIntersection:
		return "INTERSECTION"
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

// HalfSpace is the region on one side of a plane. Material lies opposite
// the plane normal when Agreement is true.
type HalfSpace struct {
	ID        uint32
	Origin    math.Vec3
	Normal    math.Vec3
	Agreement bool
	Bounded   bool // polygonal or boxed bounds were ignored
}

// BooleanCombination combines two operands. Exactly one of Second and Clip
// is set.
type BooleanCombination struct {
	ID       uint32
	Type     string
	Operator BooleanOperator
	First    Shape
	Second   Shape
	Clip     *HalfSpace
}

// Unsupported marks a representation item that produces no geometry.
type Unsupported struct {
	ID     uint32
	Type   string
	Reason string

	// Reported is set when a diagnostic was already emitted for the item.
	Reported bool
}

func (s *Extrusion) SourceID() uint32          { return s.ID }
func (s *Sweep) SourceID() uint32              { return s.ID }
func (s *FacetedBrep) SourceID() uint32        { return s.ID }
func (s *BooleanCombination) SourceID() uint32 { return s.ID }
func (s *Unsupported) SourceID() uint32        { return s.ID }

func (*Extrusion) shape()          {}
func (*Sweep) shape()              {}
func (*FacetedBrep) shape()        {}
func (*BooleanCombination) shape() {}
func (*Unsupported) shape()        {}

// PlacedShape is a shape with its transform into object coordinates.
type PlacedShape struct {
	Shape     Shape
	Transform math.Mat4
}

// Representation identifiers that never describe the body of a product.
var nonBodyIdentifiers = map[string]bool{
	"AXIS": true, "FOOTPRINT": true, "BOX": true, "ANNOTATION": true,
	"PROFILE": true, "CLEARANCE": true, "LIGHTING": true, "COG": true,
	"REFERENCE": true,
}

// productShapes resolves IFCPRODUCTDEFINITIONSHAPE to placed shapes. Body
// representations are preferred; without one every representation that is
// not known to be non-body is used.
func (r *resolver) productShapes(id uint32) ([]PlacedShape, error) {
	rec, err := r.entity(id)
	if err != nil {
		return nil, err
	}
	if rec.Type != "IFCPRODUCTDEFINITIONSHAPE" && rec.Type != "IFCMATERIALDEFINITIONREPRESENTATION" {
		r.warn(diag.KindUnsupportedShape, rec.Type, "product representation #%d", rec.ID)
		return nil, nil
	}

	var body, other []uint32
	for _, repID := range rec.Attr(2).Refs() {
		rep, err := r.entity(repID)
		if err != nil {
			return nil, err
		}
		ident, _ := rep.Attr(1).AsString()
		switch ident = strings.ToUpper(ident); {
		case ident == "BODY":
			body = append(body, repID)
		case !nonBodyIdentifiers[ident]:
			other = append(other, repID)
		}
	}
	if len(body) == 0 {
		body = other
	}

	var out []PlacedShape
	for _, repID := range body {
		shapes, err := r.representationShapes(repID, math.Identity(), 0)
		if err != nil {
			return nil, err
		}
		out = append(out, shapes...)
	}
	return out, nil
}

// representationShapes resolves the items of an IFCSHAPEREPRESENTATION.
func (r *resolver) representationShapes(id uint32, m math.Mat4, depth int) ([]PlacedShape, error) {
	rep, err := r.entity(id)
	if err != nil {
		return nil, err
	}
	if depth > maxItemDepth {
		r.warn(diag.KindUnsupportedShape, rep.Type, "representation #%d nested too deeply", id)
		return nil, nil
	}

	var out []PlacedShape
	for _, itemID := range rep.Attr(3).Refs() {
		item, err := r.entity(itemID)
		if err != nil {
			return nil, err
		}
		if item.Type == "IFCMAPPEDITEM" {
			mapped, err := r.mappedItem(item, m, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, mapped...)
			continue
		}
		shape, err := r.solid(item, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, PlacedShape{Shape: shape, Transform: m})
	}
	return out, nil
}

// mappedItem expands IFCMAPPEDITEM(MappingSource, MappingTarget) where the
// source is IFCREPRESENTATIONMAP(MappingOrigin, MappedRepresentation).
func (r *resolver) mappedItem(item *formats.EntityRecord, m math.Mat4, depth int) ([]PlacedShape, error) {
	source, err := r.ref(item, 0)
	if err != nil {
		return nil, err
	}
	origin, err := r.optionalPlacement(source.Attr(0))
	if err != nil {
		return nil, r.unsupportedOr(item, err)
	}
	target := math.Identity()
	if targetID, ok := item.Attr(1).AsRef(); ok {
		if target, err = r.transformOperator(targetID); err != nil {
			return nil, r.unsupportedOr(item, err)
		}
	}
	repID, ok := source.Attr(1).AsRef()
	if !ok {
		return nil, nil
	}
	return r.representationShapes(repID, m.Mul(target).Mul(origin), depth+1)
}

// unsupportedOr reports ErrUnsupportedShape as a diagnostic and swallows it;
// any other error is returned.
func (r *resolver) unsupportedOr(item *formats.EntityRecord, err error) error {
	if errors.Is(err, ErrUnsupportedShape) {
		r.warn(diag.KindUnsupportedShape, item.Type, "%v", err)
		return nil
	}
	return err
}

// solid resolves a representation item into a shape variant. Unknown item
// types become Unsupported.
func (r *resolver) solid(item *formats.EntityRecord, depth int) (Shape, error) {
	if depth > maxItemDepth {
		return &Unsupported{ID: item.ID, Type: item.Type, Reason: "nested too deeply"}, nil
	}

	var (
		shape Shape
		err   error
	)
	switch item.Type {
	case "IFCEXTRUDEDAREASOLID", "IFCEXTRUDEDAREASOLIDTAPERED":
		shape, err = r.extrusion(item)
	case "IFCBLOCK":
		shape, err = r.block(item)
	case "IFCRIGHTCIRCULARCYLINDER":
		shape, err = r.cylinder(item)
	case "IFCSWEPTDISKSOLID", "IFCSWEPTDISKSOLIDPOLYGONAL":
		shape, err = r.sweep(item)
	case "IFCFACETEDBREP", "IFCFACETEDBREPWITHVOIDS", "IFCSHELLBASEDSURFACEMODEL",
		"IFCFACEBASEDSURFACEMODEL", "IFCCLOSEDSHELL", "IFCOPENSHELL", "IFCCONNECTEDFACESET":
		shape, err = r.brep(item)
	case "IFCTRIANGULATEDFACESET":
		shape, err = r.triangulatedFaceSet(item)
	case "IFCPOLYGONALFACESET":
		shape, err = r.polygonalFaceSet(item)
	case "IFCBOOLEANRESULT", "IFCBOOLEANCLIPPINGRESULT":
		shape, err = r.boolean(item, depth)
	case "IFCCSGSOLID":
		var root *formats.EntityRecord
		if root, err = r.ref(item, 0); err == nil {
			shape, err = r.solid(root, depth+1)
		}
	default:
		return &Unsupported{ID: item.ID, Type: item.Type}, nil
	}

	switch {
	case errors.Is(err, ErrUnsupportedShape):
		return &Unsupported{ID: item.ID, Type: item.Type, Reason: err.Error()}, nil
	case errors.Is(err, errDegenerate):
		r.warn(diag.KindDegenerateGeometry, item.Type, "%v", err)
		return &Unsupported{ID: item.ID, Type: item.Type, Reason: err.Error(), Reported: true}, nil
	}
	return shape, err
}

// boolean resolves IFCBOOLEANRESULT(Operator, FirstOperand, SecondOperand).
func (r *resolver) boolean(item *formats.EntityRecord, depth int) (Shape, error) {
	op, _ := item.Attr(0).AsString()
	b := &BooleanCombination{ID: item.ID, Type: item.Type}
	switch op {
	case "UNION":
		b.Operator = BooleanUnion
	case "DIFFERENCE":
		b.Operator = BooleanDifference
	case "INTERSECTION":
		b.Operator = BooleanIntersection
	default:
		return nil, fmt.Errorf("#%d: boolean operator %q: %w", item.ID, op, ErrUnsupportedShape)
	}

	first, err := r.ref(item, 1)
	if err != nil {
		return nil, err
	}
	if b.First, err = r.solid(first, depth+1); err != nil {
		return nil, err
	}

	second, err := r.ref(item, 2)
	if err != nil {
		return nil, err
	}
	if hs, ok, err := r.halfSpace(second); err != nil {
		return nil, err
	} else if ok {
		if b.Operator == BooleanUnion {
			return nil, fmt.Errorf("#%d: union with a half space: %w", item.ID, ErrUnsupportedShape)
		}
		b.Clip = hs
		return b, nil
	}

	if b.Operator == BooleanIntersection {
		return nil, fmt.Errorf("#%d: intersection of two solids: %w", item.ID, ErrUnsupportedShape)
	}
	if b.Second, err = r.solid(second, depth+1); err != nil {
		return nil, err
	}
	return b, nil
}

// halfSpace resolves IFCHALFSPACESOLID(BaseSurface, AgreementFlag) and its
// bounded subtypes. The base surface must be an IFCPLANE.
func (r *resolver) halfSpace(rec *formats.EntityRecord) (*HalfSpace, bool, error) {
	switch rec.Type {
	case "IFCHALFSPACESOLID", "IFCPOLYGONALBOUNDEDHALFSPACE", "IFCBOXEDHALFSPACE":
	default:
		return nil, false, nil
	}

	plane, err := r.ref(rec, 0)
	if err != nil {
		return nil, false, err
	}
	if plane.Type != "IFCPLANE" {
		return nil, false, fmt.Errorf("#%d: half space on %s: %w", rec.ID, plane.Type, ErrUnsupportedShape)
	}
	posID, ok := plane.Attr(0).AsRef()
	if !ok {
		return nil, false, fmt.Errorf("#%d: plane without position", plane.ID)
	}
	m, err := r.axisPlacement(posID)
	if err != nil {
		return nil, false, err
	}

	agreement, _ := rec.Attr(1).AsBool()
	return &HalfSpace{
		ID:        rec.ID,
		Origin:    m.TransformPoint(math.Vec3{}),
		Normal:    m.TransformDirection(axisZ).Normalize(),
		Agreement: agreement,
		Bounded:   rec.Type != "IFCHALFSPACESOLID",
	}, true, nil
}
