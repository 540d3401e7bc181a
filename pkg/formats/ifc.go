// IFC (ISO-10303-21 / STEP physical file) decoder.
package formats

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Faultbox/ifcmesh/pkg/diag"
)

// IFC decoding errors.
var (
	ErrDanglingReference = errors.New("dangling entity reference")
	ErrCyclicPlacement   = errors.New("cyclic placement chain")
)

// FormatReason says why a document could not be decoded.
type FormatReason int

const (
	ReasonUnreadable FormatReason = iota
	ReasonUnrecognizedSchema
	ReasonDanglingReference
	ReasonCyclicPlacement
)

// String returns a human-readable reason name.
func (r FormatReason) String() string {
	switch r {
	case ReasonUnreadable:
		return "Unreadable"
	case ReasonUnrecognizedSchema:
		return "UnrecognizedSchema"
	case ReasonDanglingReference:
		return "DanglingReference"
	case ReasonCyclicPlacement:
		return "CyclicPlacement"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// FormatError is a fatal decoding failure.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type FormatError struct {
	Reason   FormatReason
	EntityID uint32
	Detail   string
	cause    error
}

// NewFormatError creates a FormatError wrapping cause.
func NewFormatError(reason FormatReason, entityID uint32, detail string, cause error) *FormatError {
	return &FormatError{Reason: reason, EntityID: entityID, Detail: detail, cause: cause}
}

func (e *FormatError) Error() string {
	msg := "format error (" + e.Reason.String() + ")"
	if e.EntityID != 0 {
		msg += fmt.Sprintf(" at #%d", e.EntityID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.cause }

// IsFormatError reports whether err is a FormatError with the given reason.
func IsFormatError(err error, reason FormatReason) bool {
	var fe *FormatError
	return errors.As(err, &fe) && fe.Reason == reason
}

// Header holds the HEADER section of a STEP file.
type Header struct {
	Description         []string
	ImplementationLevel string
	FileName            string
	TimeStamp           string
	Author              []string
	Organization        []string
	PreprocessorVersion string
	OriginatingSystem   string
	Authorization       string
	Schemas             []string
}

// Schema returns the first FILE_SCHEMA identifier.
func (h Header) Schema() string {
	if len(h.Schemas) == 0 {
		return ""
	}
	return h.Schemas[0]
}

// EntityRecord is one decoded `#id=TYPE(...)` instance.
// Records are immutable once returned from Decode; Refs must not be modified.
type EntityRecord struct {
	ID         uint32
	Type       string
	Kind       Kind
	Attributes []Value
	Refs       *roaring.Bitmap

	// Placeholder is set when a field could not be parsed; the record keeps
	// its remaining attributes but never contributes geometry.
	Placeholder bool
	// Downgraded is set when the record references a missing entity.
	Downgraded bool
}

// Attr returns attribute i, or a null value when out of range.
func (r *EntityRecord) Attr(i int) Value {
	if i < 0 || i >= len(r.Attributes) {
		return Value{Kind: ValueNull}
	}
	return r.Attributes[i]
}

// References returns referenced IDs in ascending order.
func (r *EntityRecord) References() []uint32 {
	return r.Refs.ToArray()
}

// Usable reports whether the record can take part in geometry resolution.
func (r *EntityRecord) Usable() bool {
	return !r.Placeholder && !r.Downgraded
}

// Document is a decoded IFC file.
type Document struct {
	Header    Header
	Container Container
	Entities  map[uint32]*EntityRecord

	// Diagnostics are recoverable problems found while decoding.
	Diagnostics []diag.Diagnostic

	ids          []uint32
	propertyRels map[uint32][]uint32
}

// Entity looks up a record by express ID.
func (d *Document) Entity(id uint32) (*EntityRecord, bool) {
	rec, ok := d.Entities[id]
	return rec, ok
}

// IDs returns all express IDs in ascending order.
func (d *Document) IDs() []uint32 {
	return d.ids
}

// ByKind returns records of the given kind in ascending ID order.
func (d *Document) ByKind(kind Kind) []*EntityRecord {
	var out []*EntityRecord
	for _, id := range d.ids {
		if rec := d.Entities[id]; rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

// ByType returns records of the given IFC type in ascending ID order.
func (d *Document) ByType(typ string) []*EntityRecord {
	typ = strings.ToUpper(typ)
	var out []*EntityRecord
	for _, id := range d.ids {
		if rec := d.Entities[id]; rec.Type == typ {
			out = append(out, rec)
		}
	}
	return out
}

// PropertyRelations returns the IFCRELDEFINESBYPROPERTIES records that
// attach property definitions to the given object.
func (d *Document) PropertyRelations(objectID uint32) []uint32 {
	return d.propertyRels[objectID]
}

// DecodeOptions controls decoding.
type DecodeOptions struct {
	// Strict turns dangling references into a fatal FormatError.
	Strict bool
	// MaxDocumentSize caps the decompressed text in bytes.
	// Zero means DefaultMaxDocumentSize.
	MaxDocumentSize int64
}

// Decode parses an IFC document from a byte slice.
func Decode(data []byte, opts DecodeOptions) (*Document, error) {
	text, container, err := Unwrap(data, opts.MaxDocumentSize)
	if err != nil {
		return nil, NewFormatError(ReasonUnreadable, 0, err.Error(), err)
	}

	p := newStepParser(text)
	if !p.acceptKeyword("ISO-10303-21") || p.expect(';') != nil {
		return nil, NewFormatError(ReasonUnreadable, 0, "missing ISO-10303-21 marker", nil)
	}

	doc := &Document{
		Container:    container,
		Entities:     make(map[uint32]*EntityRecord),
		propertyRels: make(map[uint32][]uint32),
	}

	if err := parseHeader(p, &doc.Header); err != nil {
		return nil, NewFormatError(ReasonUnreadable, 0, "reading header: "+err.Error(), err)
	}
	if !IsRecognizedSchema(doc.Header.Schema()) {
		return nil, NewFormatError(ReasonUnrecognizedSchema, 0,
			fmt.Sprintf("schema %q", doc.Header.Schema()), nil)
	}

	var diags diag.List
	for {
		if p.acceptKeyword("DATA") {
			p.skipSpace()
			if p.peek() == '(' {
				// Named data sections (edition 3); parameters are ignored.
				if _, err := p.params(); err != nil {
					return nil, NewFormatError(ReasonUnreadable, 0, "reading DATA section: "+err.Error(), err)
				}
			}
			if err := p.expect(';'); err != nil {
				return nil, NewFormatError(ReasonUnreadable, 0, "reading DATA section: "+err.Error(), err)
			}
			parseData(p, doc, &diags)
			continue
		}
		if p.acceptKeyword("END-ISO-10303-21") {
			break
		}
		p.skipSpace()
		if p.eof() {
			break
		}
		return nil, NewFormatError(ReasonUnreadable, 0, p.errorf("unexpected content after header").Error(), nil)
	}

	doc.ids = make([]uint32, 0, len(doc.Entities))
	for id := range doc.Entities {
		doc.ids = append(doc.ids, id)
	}
	sort.Slice(doc.ids, func(i, j int) bool { return doc.ids[i] < doc.ids[j] })

	if err := validateReferences(doc, opts, &diags); err != nil {
		return nil, err
	}
	classifyProducts(doc, &diags)
	indexPropertyRelations(doc)

	doc.Diagnostics = diags.Sorted()
	return doc, nil
}

// DecodeFile parses an IFC document from disk.
func DecodeFile(path string, opts DecodeOptions) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading IFC file: %w", err)
	}
	return Decode(data, opts)
}

func parseHeader(p *stepParser, h *Header) error {
	if !p.acceptKeyword("HEADER") {
		return p.errorf("missing HEADER section")
	}
	if err := p.expect(';'); err != nil {
		return err
	}
	for {
		if p.acceptKeyword("ENDSEC") {
			return p.expect(';')
		}
		name, err := p.keyword()
		if err != nil {
			return err
		}
		params, err := p.params()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := p.expect(';'); err != nil {
			return err
		}

		arg := func(i int) Value {
			if i < len(params) {
				return params[i]
			}
			return Value{}
		}
		switch name {
		case "FILE_DESCRIPTION":
			h.Description = stringList(arg(0))
			h.ImplementationLevel, _ = arg(1).AsString()
		case "FILE_NAME":
			h.FileName, _ = arg(0).AsString()
			h.TimeStamp, _ = arg(1).AsString()
			h.Author = stringList(arg(2))
			h.Organization = stringList(arg(3))
			h.PreprocessorVersion, _ = arg(4).AsString()
			h.OriginatingSystem, _ = arg(5).AsString()
			h.Authorization, _ = arg(6).AsString()
		case "FILE_SCHEMA":
			h.Schemas = stringList(arg(0))
		}
	}
}

func stringList(v Value) []string {
	var out []string
	for _, item := range v.List {
		if s, ok := item.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

// parseData reads instance records until ENDSEC. A record that fails to parse
// is skipped and reported; it never aborts the section.
func parseData(p *stepParser, doc *Document, diags *diag.List) {
	for {
		if p.acceptKeyword("ENDSEC") {
			if err := p.expect(';'); err != nil {
				diags.Addf(diag.KindMalformedRecord, 0, "ENDSEC: %v", err)
			}
			return
		}
		p.skipSpace()
		if p.eof() {
			diags.Addf(diag.KindMalformedRecord, 0, "DATA section not terminated")
			return
		}

		rec, err := parseRecord(p)
		if err != nil {
			var id uint32
			if rec != nil {
				id = rec.ID
			}
			diags.Addf(diag.KindMalformedRecord, id, "%v", err)
			p.skipRecord()
			continue
		}
		if _, dup := doc.Entities[rec.ID]; dup {
			diags.Addf(diag.KindMalformedRecord, rec.ID, "duplicate instance id; keeping the first")
			continue
		}
		if rec.Placeholder {
			diags.Add(diag.Diagnostic{
				Kind:     diag.KindMalformedField,
				EntityID: rec.ID,
				Type:     rec.Type,
				Message:  fmt.Sprintf("malformed numeric token(s) %s", strings.Join(p.fieldErrs, ", ")),
			})
		}
		doc.Entities[rec.ID] = rec
	}
}

// parseRecord parses `#id = TYPE(...);` or a complex instance
// `#id = (TYPEA(...) TYPEB(...));`. On error the returned record, when
// non-nil, carries only the ID for reporting.
func parseRecord(p *stepParser) (*EntityRecord, error) {
	p.fieldErrs = p.fieldErrs[:0]

	id, err := p.instanceID()
	if err != nil {
		return nil, err
	}
	rec := &EntityRecord{ID: id}
	if err := p.expect('='); err != nil {
		return rec, err
	}

	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		var names []string
		for {
			p.skipSpace()
			if p.peek() == ')' {
				p.pos++
				break
			}
			name, err := p.keyword()
			if err != nil {
				return rec, err
			}
			params, err := p.params()
			if err != nil {
				return rec, err
			}
			names = append(names, name)
			rec.Attributes = append(rec.Attributes, Value{Kind: ValueTyped, Str: name, List: params})
		}
		rec.Type = strings.Join(names, "+")
	} else {
		rec.Type, err = p.keyword()
		if err != nil {
			return rec, err
		}
		rec.Attributes, err = p.params()
		if err != nil {
			return rec, err
		}
	}
	if err := p.expect(';'); err != nil {
		return rec, err
	}

	rec.Refs = roaring.New()
	collectRefs(rec.Attributes, rec.Refs)

	if len(p.fieldErrs) > 0 {
		rec.Placeholder = true
		rec.Kind = KindOther
	} else {
		rec.Kind = classify(rec.Type)
	}
	return rec, nil
}

func collectRefs(values []Value, refs *roaring.Bitmap) {
	for _, v := range values {
		switch v.Kind {
		case ValueRef:
			refs.Add(v.Ref)
		case ValueList, ValueTyped:
			collectRefs(v.List, refs)
		}
	}
}

// validateReferences downgrades records whose references do not resolve.
func validateReferences(doc *Document, opts DecodeOptions, diags *diag.List) error {
	for _, id := range doc.ids {
		rec := doc.Entities[id]
		var missing []string
		it := rec.Refs.Iterator()
		for it.HasNext() {
			target := it.Next()
			if _, ok := doc.Entities[target]; !ok {
				missing = append(missing, fmt.Sprintf("#%d", target))
			}
		}
		if len(missing) == 0 {
			continue
		}

		detail := "references missing " + strings.Join(missing, ", ")
		if opts.Strict {
			return NewFormatError(ReasonDanglingReference, id, detail, ErrDanglingReference)
		}
		rec.Downgraded = true
		rec.Kind = KindOther
		diags.Add(diag.Diagnostic{
			Kind:     diag.KindDanglingReference,
			EntityID: id,
			Type:     rec.Type,
			Message:  detail,
		})
	}
	return nil
}

func indexPropertyRelations(doc *Document) {
	for _, rel := range doc.ByType("IFCRELDEFINESBYPROPERTIES") {
		if !rel.Usable() {
			continue
		}
		for _, obj := range rel.Attr(4).Refs() {
			doc.propertyRels[obj] = append(doc.propertyRels[obj], rel.ID)
		}
	}
}
