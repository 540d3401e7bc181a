// Package diag collects non-fatal problems found while loading a model.
package diag

import (
	"fmt"
	"sort"
	"sync"
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindDanglingReference   Kind = "dangling_reference"
	KindMalformedField      Kind = "malformed_field"
	KindMalformedRecord     Kind = "malformed_record"
	KindUnsupportedShape    Kind = "unsupported_shape_kind"
	KindBooleanApproximated Kind = "boolean_approximated"
	KindDegenerateGeometry  Kind = "degenerate_geometry"
)

// Diagnostic is one recoverable problem tied to an entity.
type Diagnostic struct {
	Kind     Kind
	EntityID uint32 // 0 when the problem is not tied to a decoded entity
	// Type is the IFC type involved, e.g. the unsupported shape type.
	Type    string
	Message string
}

// String returns a single-line description.
func (d Diagnostic) String() string {
	if d.EntityID == 0 {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s #%d: %s", d.Kind, d.EntityID, d.Message)
}

// List is a concurrency-safe diagnostic accumulator.
type List struct {
	mu    sync.Mutex
	items []Diagnostic
}

// Add appends a diagnostic.
func (l *List) Add(d Diagnostic) {
	l.mu.Lock()
	l.items = append(l.items, d)
	l.mu.Unlock()
}

// Addf appends a diagnostic with a formatted message.
func (l *List) Addf(kind Kind, entityID uint32, format string, args ...any) {
	l.Add(Diagnostic{Kind: kind, EntityID: entityID, Message: fmt.Sprintf(format, args...)})
}

// Append adds every diagnostic in ds.
func (l *List) Append(ds ...Diagnostic) {
	l.mu.Lock()
	l.items = append(l.items, ds...)
	l.mu.Unlock()
}

// Len returns the number of diagnostics collected so far.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Sorted returns a copy ordered by entity ID then kind, so results do not
// depend on which worker reported first.
func (l *List) Sorted() []Diagnostic {
	l.mu.Lock()
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	l.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EntityID != out[j].EntityID {
			return out[i].EntityID < out[j].EntityID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Tally counts diagnostics of the given kind by IFC type.
func Tally(ds []Diagnostic, kind Kind) map[string]int {
	counts := make(map[string]int)
	for _, d := range ds {
		if d.Kind == kind {
			counts[d.Type]++
		}
	}
	return counts
}

// Count returns how many diagnostics have the given kind.
func Count(ds []Diagnostic, kind Kind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == kind {
			n++
		}
	}
	return n
}
