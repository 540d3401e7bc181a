package geometry

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/ifcmesh/pkg/formats"
	"github.com/Faultbox/ifcmesh/pkg/math"
)

var errDegenerate = errors.New("degenerate geometry")

const (
	minSegments = 8
	maxSegments = 256
)

// SegmentCount returns how many chords approximate a full circle of the
// given radius so that no chord deviates from the arc by more than
// tolerance. The result is clamped to [8, 256].
func SegmentCount(radius, tolerance float64) int {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if radius <= 0 {
		return minSegments
	}
	c := 1 - tolerance/radius
	if c <= 0 {
		return minSegments
	}
	n := int(gomath.Ceil(gomath.Pi / gomath.Acos(c)))
	switch {
	case n < minSegments:
		return minSegments
	case n > maxSegments:
		return maxSegments
	}
	return n
}

// extrusion resolves IFCEXTRUDEDAREASOLID(SweptArea, Position,
// ExtrudedDirection, Depth). The tapered subtype uses its start profile.
func (r *resolver) extrusion(item *formats.EntityRecord) (Shape, error) {
	area, err := r.ref(item, 0)
	if err != nil {
		return nil, err
	}
	profile, err := r.profile(area)
	if err != nil {
		return nil, err
	}
	position, err := r.optionalPlacement(item.Attr(1))
	if err != nil {
		return nil, err
	}
	dir, err := r.direction(item.Attr(2), axisZ)
	if err != nil {
		return nil, err
	}
	depth, _ := floatAttr(item, 3)
	if depth <= 0 || gomath.Abs(dir.Z) < 1e-9 {
		return nil, fmt.Errorf("#%d: extrusion depth %g along %v: %w", item.ID, depth, dir, errDegenerate)
	}
	return &Extrusion{ID: item.ID, Profile: profile, Position: position, Direction: dir, Depth: depth}, nil
}

// block resolves IFCBLOCK(Position, XLength, YLength, ZLength).
func (r *resolver) block(item *formats.EntityRecord) (Shape, error) {
	position, err := r.optionalPlacement(item.Attr(0))
	if err != nil {
		return nil, err
	}
	x, _ := floatAttr(item, 1)
	y, _ := floatAttr(item, 2)
	z, _ := floatAttr(item, 3)
	if x <= 0 || y <= 0 || z <= 0 {
		return nil, fmt.Errorf("#%d: block %gx%gx%g: %w", item.ID, x, y, z, errDegenerate)
	}
	return &Extrusion{
		ID:        item.ID,
		Profile:   []math.Vec2{{X: 0, Y: 0}, {X: x, Y: 0}, {X: x, Y: y}, {X: 0, Y: y}},
		Position:  position,
		Direction: axisZ,
		Depth:     z,
	}, nil
}

// cylinder resolves IFCRIGHTCIRCULARCYLINDER(Position, Height, Radius).
func (r *resolver) cylinder(item *formats.EntityRecord) (Shape, error) {
	position, err := r.optionalPlacement(item.Attr(0))
	if err != nil {
		return nil, err
	}
	height, _ := floatAttr(item, 1)
	radius, _ := floatAttr(item, 2)
	if height <= 0 || radius <= 0 {
		return nil, fmt.Errorf("#%d: cylinder h=%g r=%g: %w", item.ID, height, radius, errDegenerate)
	}
	return &Extrusion{
		ID:        item.ID,
		Profile:   circle(radius, radius, r.tolerance),
		Position:  position,
		Direction: axisZ,
		Depth:     height,
	}, nil
}

// sweep resolves IFCSWEPTDISKSOLID(Directrix, Radius, InnerRadius,
// StartParam, EndParam). The parameter trimming is not applied.
func (r *resolver) sweep(item *formats.EntityRecord) (Shape, error) {
	curve, err := r.ref(item, 0)
	if err != nil {
		return nil, err
	}
	pts, err := r.curvePoints(curve)
	if err != nil {
		return nil, err
	}
	pts = dedupe3(pts)
	radius, _ := floatAttr(item, 1)
	inner, _ := floatAttr(item, 2)
	if radius <= 0 || len(pts) < 2 {
		return nil, fmt.Errorf("#%d: swept disk r=%g over %d points: %w", item.ID, radius, len(pts), errDegenerate)
	}
	return &Sweep{ID: item.ID, Directrix: pts, Radius: radius, InnerRadius: inner}, nil
}

// profile resolves a profile definition to a closed counter-clockwise
// outline in profile coordinates. Profiles with voids are unsupported.
func (r *resolver) profile(rec *formats.EntityRecord) ([]math.Vec2, error) {
	var (
		pts []math.Vec2
		err error
	)
	// Parameterized profiles: ProfileType, ProfileName, Position, dimensions...
	switch rec.Type {
	case "IFCRECTANGLEPROFILEDEF":
		x, _ := floatAttr(rec, 3)
		y, _ := floatAttr(rec, 4)
		pts = []math.Vec2{{X: -x / 2, Y: -y / 2}, {X: x / 2, Y: -y / 2}, {X: x / 2, Y: y / 2}, {X: -x / 2, Y: y / 2}}
	case "IFCCIRCLEPROFILEDEF":
		radius, _ := floatAttr(rec, 3)
		pts = circle(radius, radius, r.tolerance)
	case "IFCELLIPSEPROFILEDEF":
		a, _ := floatAttr(rec, 3)
		b, _ := floatAttr(rec, 4)
		pts = circle(a, b, r.tolerance)
	case "IFCISHAPEPROFILEDEF":
		pts = iShape(rec)
	case "IFCARBITRARYCLOSEDPROFILEDEF":
		curve, err := r.ref(rec, 2)
		if err != nil {
			return nil, err
		}
		pts3, err := r.curvePoints(curve)
		if err != nil {
			return nil, err
		}
		for _, p := range pts3 {
			pts = append(pts, p.XY())
		}
		return closedOutline(rec, pts)
	case "IFCDERIVEDPROFILEDEF":
		parent, err := r.ref(rec, 2)
		if err != nil {
			return nil, err
		}
		if pts, err = r.profile(parent); err != nil {
			return nil, err
		}
		opID, ok := rec.Attr(3).AsRef()
		if !ok {
			return pts, nil
		}
		m, err := r.transformOperator(opID)
		if err != nil {
			return nil, err
		}
		return closedOutline(rec, transform2(m, pts))
	case "IFCARBITRARYPROFILEDEFWITHVOIDS", "IFCCIRCLEHOLLOWPROFILEDEF",
		"IFCRECTANGLEHOLLOWPROFILEDEF":
		return nil, fmt.Errorf("#%d: %s has voids: %w", rec.ID, rec.Type, ErrUnsupportedShape)
	default:
		return nil, fmt.Errorf("#%d: profile %s: %w", rec.ID, rec.Type, ErrUnsupportedShape)
	}

	m, err := r.optionalPlacement(rec.Attr(2))
	if err != nil {
		return nil, err
	}
	return closedOutline(rec, transform2(m, pts))
}

// closedOutline drops repeated and closing points and orients the outline
// counter-clockwise.
func closedOutline(rec *formats.EntityRecord, pts []math.Vec2) ([]math.Vec2, error) {
	out := make([]math.Vec2, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && p.Sub(out[len(out)-1]).Length() < 1e-9 {
			continue
		}
		out = append(out, p)
	}
	if len(out) > 1 && out[0].Sub(out[len(out)-1]).Length() < 1e-9 {
		out = out[:len(out)-1]
	}

	area := math.PolygonArea(out)
	if len(out) < 3 || gomath.Abs(area) < 1e-12 {
		return nil, fmt.Errorf("#%d: %s outline has no area: %w", rec.ID, rec.Type, errDegenerate)
	}
	if area < 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func transform2(m math.Mat4, pts []math.Vec2) []math.Vec2 {
	if m.IsIdentity() {
		return pts
	}
	out := make([]math.Vec2, len(pts))
	for i, p := range pts {
		out[i] = m.TransformPoint(p.Vec3(0)).XY()
	}
	return out
}

// circle returns an ellipse outline with semi-axes a and b centered at the
// origin, counter-clockwise, starting on the +X axis.
func circle(a, b, tolerance float64) []math.Vec2 {
	n := SegmentCount(gomath.Max(a, b), tolerance)
	pts := make([]math.Vec2, n)
	for i := range pts {
		t := 2 * gomath.Pi * float64(i) / float64(n)
		pts[i] = math.Vec2{X: a * gomath.Cos(t), Y: b * gomath.Sin(t)}
	}
	return pts
}

// iShape builds the outline of IFCISHAPEPROFILEDEF(ProfileType, ProfileName,
// Position, OverallWidth, OverallDepth, WebThickness, FlangeThickness, ...).
func iShape(rec *formats.EntityRecord) []math.Vec2 {
	w, _ := floatAttr(rec, 3)
	d, _ := floatAttr(rec, 4)
	tw, _ := floatAttr(rec, 5)
	tf, _ := floatAttr(rec, 6)
	hw, hd, ht := w/2, d/2, tw/2
	return []math.Vec2{
		{X: -hw, Y: -hd}, {X: hw, Y: -hd}, {X: hw, Y: -hd + tf}, {X: ht, Y: -hd + tf},
		{X: ht, Y: hd - tf}, {X: hw, Y: hd - tf}, {X: hw, Y: hd}, {X: -hw, Y: hd},
		{X: -hw, Y: hd - tf}, {X: -ht, Y: hd - tf}, {X: -ht, Y: -hd + tf}, {X: -hw, Y: -hd + tf},
	}
}

// curvePoints flattens a bounded curve to points: IFCPOLYLINE,
// IFCINDEXEDPOLYCURVE (line and arc segments), IFCCOMPOSITECURVE and IFCCIRCLE.
func (r *resolver) curvePoints(rec *formats.EntityRecord) ([]math.Vec3, error) {
	switch rec.Type {
	case "IFCPOLYLINE":
		var pts []math.Vec3
		for _, id := range rec.Attr(0).Refs() {
			p, err := r.point(id)
			if err != nil {
				return nil, err
			}
			pts = append(pts, p)
		}
		return pts, nil

	case "IFCINDEXEDPOLYCURVE":
		list, err := r.ref(rec, 0)
		if err != nil {
			return nil, err
		}
		coords, err := pointList(list)
		if err != nil {
			return nil, err
		}
		return r.indexedSegments(rec, coords)

	case "IFCCOMPOSITECURVE":
		var pts []math.Vec3
		for _, segID := range rec.Attr(0).Refs() {
			seg, err := r.entity(segID)
			if err != nil {
				return nil, err
			}
			parent, err := r.ref(seg, 2)
			if err != nil {
				return nil, err
			}
			part, err := r.curvePoints(parent)
			if err != nil {
				return nil, err
			}
			if same, ok := seg.Attr(1).AsBool(); ok && !same {
				for i, j := 0, len(part)-1; i < j; i, j = i+1, j-1 {
					part[i], part[j] = part[j], part[i]
				}
			}
			pts = append(pts, part...)
		}
		return pts, nil

	case "IFCCIRCLE":
		m, err := r.optionalPlacement(rec.Attr(0))
		if err != nil {
			return nil, err
		}
		radius, _ := floatAttr(rec, 1)
		var pts []math.Vec3
		for _, p := range circle(radius, radius, r.tolerance) {
			pts = append(pts, m.TransformPoint(p.Vec3(0)))
		}
		return pts, nil
	}
	return nil, fmt.Errorf("#%d: curve %s: %w", rec.ID, rec.Type, ErrUnsupportedShape)
}

// pointList reads IFCCARTESIANPOINTLIST2D/3D(CoordList).
func pointList(rec *formats.EntityRecord) ([]math.Vec3, error) {
	if rec.Type != "IFCCARTESIANPOINTLIST2D" && rec.Type != "IFCCARTESIANPOINTLIST3D" {
		return nil, fmt.Errorf("#%d: point list %s: %w", rec.ID, rec.Type, ErrUnsupportedShape)
	}
	items, _ := rec.Attr(0).AsList()
	pts := make([]math.Vec3, 0, len(items))
	for _, item := range items {
		c, ok := item.Floats()
		if !ok || len(c) < 2 {
			return nil, fmt.Errorf("#%d: malformed coordinate %s: %w", rec.ID, item, errDegenerate)
		}
		p := math.Vec3{X: c[0], Y: c[1]}
		if len(c) > 2 {
			p.Z = c[2]
		}
		pts = append(pts, p)
	}
	return pts, nil
}

// indexedSegments walks the Segments of IFCINDEXEDPOLYCURVE; without
// segments the points are joined in order. Indices are 1-based.
func (r *resolver) indexedSegments(rec *formats.EntityRecord, coords []math.Vec3) ([]math.Vec3, error) {
	segments, ok := rec.Attr(1).AsList()
	if !ok {
		return coords, nil
	}

	at := func(i int64) (math.Vec3, error) {
		if i < 1 || int(i) > len(coords) {
			return math.Vec3{}, fmt.Errorf("#%d: segment index %d out of range: %w", rec.ID, i, errDegenerate)
		}
		return coords[i-1], nil
	}

	var pts []math.Vec3
	for _, seg := range segments {
		if seg.Kind != formats.ValueTyped || len(seg.List) != 1 {
			return nil, fmt.Errorf("#%d: malformed segment %s: %w", rec.ID, seg, errDegenerate)
		}
		indices := seg.List[0].List
		var corner []math.Vec3
		for _, v := range indices {
			p, err := at(v.Int)
			if err != nil {
				return nil, err
			}
			corner = append(corner, p)
		}

		switch seg.Str {
		case "IFCLINEINDEX":
		case "IFCARCINDEX":
			if len(corner) != 3 {
				return nil, fmt.Errorf("#%d: arc with %d points: %w", rec.ID, len(corner), errDegenerate)
			}
			corner = arc(corner[0], corner[1], corner[2], r.tolerance)
		default:
			return nil, fmt.Errorf("#%d: segment %s: %w", rec.ID, seg.Str, ErrUnsupportedShape)
		}
		if len(pts) > 0 && len(corner) > 0 && pts[len(pts)-1] == corner[0] {
			corner = corner[1:]
		}
		pts = append(pts, corner...)
	}
	return pts, nil
}

// arc approximates the circular arc from a through b to c.
func arc(a, b, c math.Vec3, tolerance float64) []math.Vec3 {
	u, v := b.Sub(a), c.Sub(a)
	w := u.Cross(v)
	ww := w.Dot(w)
	if ww < 1e-18 {
		return []math.Vec3{a, b, c}
	}
	center := a.Add(v.Cross(w).Scale(u.Dot(u)).Add(w.Cross(u).Scale(v.Dot(v))).Scale(1 / (2 * ww)))

	radius := a.Distance(center)
	e1 := a.Sub(center).Normalize()
	e2 := w.Normalize().Cross(e1)
	rel := c.Sub(center)
	sweep := gomath.Atan2(rel.Dot(e2), rel.Dot(e1))
	if sweep <= 0 {
		sweep += 2 * gomath.Pi
	}

	n := int(gomath.Ceil(float64(SegmentCount(radius, tolerance)) * sweep / (2 * gomath.Pi)))
	if n < 2 {
		n = 2
	}
	pts := make([]math.Vec3, n+1)
	for i := 0; i <= n; i++ {
		t := sweep * float64(i) / float64(n)
		pts[i] = center.Add(e1.Scale(radius * gomath.Cos(t))).Add(e2.Scale(radius * gomath.Sin(t)))
	}
	pts[0], pts[n] = a, c
	return pts
}

func dedupe3(pts []math.Vec3) []math.Vec3 {
	out := make([]math.Vec3, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && p.Distance(out[len(out)-1]) < 1e-9 {
			continue
		}
		out = append(out, p)
	}
	return out
}
