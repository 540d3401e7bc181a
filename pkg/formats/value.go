package formats

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies the type of a STEP attribute value.
type ValueKind uint8

const (
	ValueNull    ValueKind = iota // $
	ValueDerived                  // *
	ValueInteger
	ValueReal
	ValueString
	ValueEnum // .ELEMENT.
	ValueRef  // #123
	ValueList // (a, b, c)
	ValueTyped
)

// String returns a human-readable kind name.
func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "Null"
	case ValueDerived:
		return "Derived"
	case ValueInteger:
		return "Integer"
	case ValueReal:
		return "Real"
	case ValueString:
		return "String"
	case ValueEnum:
		return "Enum"
	case ValueRef:
		return "Ref"
	case ValueList:
		return "List"
	case ValueTyped:
		return "Typed"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Value is a decoded STEP attribute value.
// Typed values such as IFCLABEL('x') keep the type name in Str and the
// wrapped value as the single element of List.
type Value struct {
	Kind ValueKind
	Int  int64
	Real float64
	Str  string
	Ref  uint32
	List []Value
}

// Reference is the plain form of an entity reference.
type Reference struct {
	ID uint32 `json:"id" yaml:"id"`
}

// IsNull reports whether the value is unset ($) or derived (*).
func (v Value) IsNull() bool {
	return v.Kind == ValueNull || v.Kind == ValueDerived
}

// AsRef returns the referenced entity ID.
func (v Value) AsRef() (uint32, bool) {
	if v.Kind == ValueRef {
		return v.Ref, true
	}
	return 0, false
}

// AsFloat returns a numeric value as float64, unwrapping typed measures.
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case ValueReal:
		return v.Real, true
	case ValueInteger:
		return float64(v.Int), true
	case ValueTyped:
		if len(v.List) == 1 {
			return v.List[0].AsFloat()
		}
	}
	return 0, false
}

// AsString returns string and enum contents, unwrapping typed labels.
func (v Value) AsString() (string, bool) {
	switch v.Kind {
	case ValueString, ValueEnum:
		return v.Str, true
	case ValueTyped:
		if len(v.List) == 1 {
			return v.List[0].AsString()
		}
	}
	return "", false
}

// AsBool interprets the enums .T. and .F.
func (v Value) AsBool() (value, ok bool) {
	if v.Kind != ValueEnum {
		return false, false
	}
	switch v.Str {
	case "T":
		return true, true
	case "F":
		return false, true
	}
	return false, false
}

// AsList returns list items.
func (v Value) AsList() ([]Value, bool) {
	if v.Kind == ValueList {
		return v.List, true
	}
	return nil, false
}

// Refs returns the referenced IDs of a list of references, skipping other items.
func (v Value) Refs() []uint32 {
	var ids []uint32
	for _, item := range v.List {
		if id, ok := item.AsRef(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Floats returns the numeric items of a list.
func (v Value) Floats() ([]float64, bool) {
	if v.Kind != ValueList {
		return nil, false
	}
	out := make([]float64, 0, len(v.List))
	for _, item := range v.List {
		f, ok := item.AsFloat()
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// Plain converts the value to plain Go data for property panels:
// nil, bool, int64, float64, string, Reference, []any or a
// map with "type" and "value" keys for typed values.
func (v Value) Plain() any {
	switch v.Kind {
	case ValueNull, ValueDerived:
		return nil
	case ValueInteger:
		return v.Int
	case ValueReal:
		return v.Real
	case ValueString:
		return v.Str
	case ValueEnum:
		if b, ok := v.AsBool(); ok {
			return b
		}
		if v.Str == "U" {
			return nil
		}
		return v.Str
	case ValueRef:
		return Reference{ID: v.Ref}
	case ValueList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = item.Plain()
		}
		return out
	case ValueTyped:
		var inner any
		if len(v.List) == 1 {
			inner = v.List[0].Plain()
		}
		return map[string]any{"type": v.Str, "value": inner}
	}
	return nil
}

// String renders the value in STEP syntax.
func (v Value) String() string {
	var b strings.Builder
	v.writeTo(&b)
	return b.String()
}

func (v Value) writeTo(b *strings.Builder) {
	switch v.Kind {
	case ValueNull:
		b.WriteByte('$')
	case ValueDerived:
		b.WriteByte('*')
	case ValueInteger:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case ValueReal:
		s := strconv.FormatFloat(v.Real, 'G', -1, 64)
		if !strings.ContainsAny(s, ".E") {
			s += "."
		}
		b.WriteString(s)
	case ValueString:
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(v.Str, "'", "''"))
		b.WriteByte('\'')
	case ValueEnum:
		b.WriteByte('.')
		b.WriteString(v.Str)
		b.WriteByte('.')
	case ValueRef:
		b.WriteByte('#')
		b.WriteString(strconv.FormatUint(uint64(v.Ref), 10))
	case ValueList, ValueTyped:
		if v.Kind == ValueTyped {
			b.WriteString(v.Str)
		}
		b.WriteByte('(')
		for i, item := range v.List {
			if i > 0 {
				b.WriteByte(',')
			}
			item.writeTo(b)
		}
		b.WriteByte(')')
	}
}
