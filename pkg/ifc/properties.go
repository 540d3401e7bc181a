package ifc

import (
	"fmt"

	"github.com/Faultbox/ifcmesh/pkg/formats"
)

// maxPropertyDepth bounds how far indirect property expansion follows
// references.
const maxPropertyDepth = 8

// Properties returns the attributes of an entity as plain values keyed by
// attribute name, plus "expressID" and "type".
//
// With indirect set, referenced entities are expanded into nested maps.
// A reference back to an entity already being expanded, or beyond
// maxPropertyDepth, stays a formats.Reference.
func (s *Store) Properties(id ModelID, entityID uint32, indirect bool) (map[string]any, error) {
	m, err := s.ready(id)
	if err != nil {
		return nil, err
	}
	rec, ok := m.doc.Entity(entityID)
	if !ok {
		return nil, fmt.Errorf("model %d: entity #%d: %w", id, entityID, ErrNotFound)
	}
	x := expander{doc: m.doc, indirect: indirect, path: make(map[uint32]bool)}
	return x.record(rec, 0), nil
}

type expander struct {
	doc      *formats.Document
	indirect bool
	path     map[uint32]bool // entities on the current expansion path
}

func (x *expander) record(rec *formats.EntityRecord, depth int) map[string]any {
	out := make(map[string]any, len(rec.Attributes)+2)
	out["expressID"] = rec.ID
	out["type"] = rec.Type

	x.path[rec.ID] = true
	for i, v := range rec.Attributes {
		out[formats.AttributeName(rec.Type, i)] = x.value(v, depth)
	}
	delete(x.path, rec.ID)
	return out
}

func (x *expander) value(v formats.Value, depth int) any {
	if !x.indirect {
		return v.Plain()
	}
	switch v.Kind {
	case formats.ValueRef:
		target, ok := x.doc.Entity(v.Ref)
		if !ok || x.path[v.Ref] || depth >= maxPropertyDepth {
			return v.Plain()
		}
		return x.record(target, depth+1)
	case formats.ValueList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = x.value(item, depth)
		}
		return out
	}
	return v.Plain()
}

// PropertySet is a property set or element quantity attached to an entity.
type PropertySet struct {
	ID         uint32
	Type       string // IFCPROPERTYSET or IFCELEMENTQUANTITY
	Name       string
	Properties map[string]any
}

// PropertySets returns the property sets and quantities attached to an
// entity through IFCRELDEFINESBYPROPERTIES, in relation order.
// Measure values are unwrapped to plain numbers, strings and booleans.
func (s *Store) PropertySets(id ModelID, entityID uint32) ([]PropertySet, error) {
	m, err := s.ready(id)
	if err != nil {
		return nil, err
	}
	if _, ok := m.doc.Entity(entityID); !ok {
		return nil, fmt.Errorf("model %d: entity #%d: %w", id, entityID, ErrNotFound)
	}

	var sets []PropertySet
	for _, relID := range m.doc.PropertyRelations(entityID) {
		rel, _ := m.doc.Entity(relID)
		defID, ok := rel.Attr(5).AsRef()
		if !ok {
			continue
		}
		def, ok := m.doc.Entity(defID)
		if !ok || !def.Usable() {
			continue
		}

		var list formats.Value
		switch def.Type {
		case "IFCPROPERTYSET":
			list = def.Attr(4)
		case "IFCELEMENTQUANTITY":
			list = def.Attr(5)
		default:
			continue
		}
		name, _ := def.Attr(2).AsString()
		sets = append(sets, PropertySet{
			ID:         def.ID,
			Type:       def.Type,
			Name:       name,
			Properties: propertyValues(m.doc, list.Refs(), map[uint32]bool{def.ID: true}),
		})
	}
	return sets, nil
}

// propertyValues resolves a list of property or quantity references into
// name → value. Complex properties nest; seen guards against cycles.
func propertyValues(doc *formats.Document, ids []uint32, seen map[uint32]bool) map[string]any {
	out := make(map[string]any, len(ids))
	for _, id := range ids {
		prop, ok := doc.Entity(id)
		if !ok || seen[id] {
			continue
		}
		name, _ := prop.Attr(0).AsString()
		if name == "" {
			name = fmt.Sprintf("#%d", id)
		}

		switch prop.Type {
		case "IFCPROPERTYSINGLEVALUE":
			out[name] = measure(prop.Attr(2))
		case "IFCPROPERTYENUMERATEDVALUE", "IFCPROPERTYLISTVALUE":
			out[name] = measure(prop.Attr(2))
		case "IFCPROPERTYBOUNDEDVALUE":
			bounded := map[string]any{
				"upper": measure(prop.Attr(2)),
				"lower": measure(prop.Attr(3)),
			}
			if sp := prop.Attr(5); !sp.IsNull() {
				bounded["setPoint"] = measure(sp)
			}
			out[name] = bounded
		case "IFCQUANTITYLENGTH", "IFCQUANTITYAREA", "IFCQUANTITYVOLUME",
			"IFCQUANTITYCOUNT", "IFCQUANTITYWEIGHT", "IFCQUANTITYTIME":
			out[name] = measure(prop.Attr(3))
		case "IFCCOMPLEXPROPERTY":
			seen[id] = true
			out[name] = propertyValues(doc, prop.Attr(3).Refs(), seen)
			delete(seen, id)
		}
	}
	return out
}

// measure converts a property value to plain data, dropping measure type
// wrappers such as IFCLENGTHMEASURE(2.5).
func measure(v formats.Value) any {
	switch v.Kind {
	case formats.ValueTyped:
		if len(v.List) == 1 {
			return measure(v.List[0])
		}
	case formats.ValueList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = measure(item)
		}
		return out
	}
	return v.Plain()
}
