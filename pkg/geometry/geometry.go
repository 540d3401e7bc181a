// Package geometry turns the shape representations of IFC products into
// local triangle fragments placed in world space by their placement chain.
package geometry

import (
	"errors"
	"fmt"

	"github.com/Faultbox/ifcmesh/pkg/diag"
	"github.com/Faultbox/ifcmesh/pkg/formats"
	"github.com/Faultbox/ifcmesh/pkg/math"
	"github.com/Faultbox/ifcmesh/pkg/mesh"
)

// Geometry errors.
var (
	ErrUnsupportedShape  = errors.New("unsupported shape kind")
	ErrMalformedEntity   = errors.New("references a malformed entity")
	ErrDanglingReference = formats.ErrDanglingReference
)

// DefaultTolerance is the chord flatness used when none is configured.
const DefaultTolerance = 0.01

// maxItemDepth bounds nested mapped items and boolean trees.
const maxItemDepth = 32

// Builder tessellates products. It is stateless and safe for concurrent use.
type Builder struct {
	// Tolerance is the maximum distance between a curve and its chords,
	// in model units.
	Tolerance float64
}

// NewBuilder creates a builder with the given chord tolerance.
// Non-positive values select DefaultTolerance.
func NewBuilder(tolerance float64) *Builder {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Builder{Tolerance: tolerance}
}

// Build tessellates the body representation of rec. It returns a nil
// fragment for entities without geometry or whose shapes are all
// unsupported; the reasons are reported as diagnostics.
//
// The returned error is either a *formats.FormatError (fatal for the load)
// or wraps ErrDanglingReference / ErrMalformedEntity (fatal for this entity
// only).
func (b *Builder) Build(rec *formats.EntityRecord, doc *formats.Document) (*mesh.Fragment, []diag.Diagnostic, error) {
	if rec == nil || rec.Kind != formats.KindGeometry || !rec.Usable() {
		return nil, nil, nil
	}

	r := &resolver{
		doc:       doc,
		tolerance: b.Tolerance,
		owner:     rec,
	}
	if r.tolerance <= 0 {
		r.tolerance = DefaultTolerance
	}

	placement := math.Identity()
	if id, ok := rec.Attr(formats.ProductObjectPlacement).AsRef(); ok {
		m, err := r.objectPlacement(id)
		if err != nil {
			return nil, r.diags, err
		}
		placement = m
	}

	repID, _ := rec.Attr(formats.ProductRepresentation).AsRef()
	items, err := r.productShapes(repID)
	if err != nil {
		return nil, r.diags, err
	}

	frag := mesh.NewFragment(rec.ID)
	for _, item := range items {
		part := r.tessellate(item.Shape)
		frag.Append(part, item.Transform)
	}
	if frag.Empty() {
		return nil, r.diags, nil
	}
	frag.Transform = placement
	return frag, r.diags, nil
}

// resolver carries the per-product state of a build.
type resolver struct {
	doc       *formats.Document
	tolerance float64
	owner     *formats.EntityRecord
	diags     []diag.Diagnostic
}

func (r *resolver) warn(kind diag.Kind, typ, format string, args ...any) {
	r.diags = append(r.diags, diag.Diagnostic{
		Kind:     kind,
		EntityID: r.owner.ID,
		Type:     typ,
		Message:  fmt.Sprintf(format, args...),
	})
}

// entity looks up a referenced record that geometry depends on.
func (r *resolver) entity(id uint32) (*formats.EntityRecord, error) {
	rec, ok := r.doc.Entity(id)
	if !ok || rec.Downgraded {
		return nil, fmt.Errorf("#%d: %w", id, ErrDanglingReference)
	}
	if rec.Placeholder {
		return nil, fmt.Errorf("#%d: %w", id, ErrMalformedEntity)
	}
	return rec, nil
}

// ref resolves attribute i of rec as a reference.
func (r *resolver) ref(rec *formats.EntityRecord, i int) (*formats.EntityRecord, error) {
	id, ok := rec.Attr(i).AsRef()
	if !ok {
		return nil, fmt.Errorf("#%d %s: attribute %s is not a reference",
			rec.ID, rec.Type, formats.AttributeName(rec.Type, i))
	}
	return r.entity(id)
}

// point reads an IFCCARTESIANPOINT; 2D points get z = 0.
func (r *resolver) point(id uint32) (math.Vec3, error) {
	rec, err := r.entity(id)
	if err != nil {
		return math.Vec3{}, err
	}
	return coords(rec)
}

func coords(rec *formats.EntityRecord) (math.Vec3, error) {
	c, ok := rec.Attr(0).Floats()
	if !ok || len(c) < 2 {
		return math.Vec3{}, fmt.Errorf("#%d %s: invalid coordinates", rec.ID, rec.Type)
	}
	v := math.Vec3{X: c[0], Y: c[1]}
	if len(c) > 2 {
		v.Z = c[2]
	}
	return v, nil
}

// direction reads an optional IFCDIRECTION attribute, falling back to def.
func (r *resolver) direction(v formats.Value, def math.Vec3) (math.Vec3, error) {
	id, ok := v.AsRef()
	if !ok {
		return def, nil
	}
	rec, err := r.entity(id)
	if err != nil {
		return def, err
	}
	d, err := coords(rec)
	if err != nil {
		return def, err
	}
	if d.Length() < 1e-12 {
		return def, nil
	}
	return d.Normalize(), nil
}

func floatAttr(rec *formats.EntityRecord, i int) (float64, bool) {
	return rec.Attr(i).AsFloat()
}
