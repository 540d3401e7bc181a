package formats

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/ifcmesh/pkg/diag"
)

func TestDecode_Wall(t *testing.T) {
	doc, err := Decode(makeIFC(wallRecords...), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if doc.Header.Schema() != "IFC4" {
		t.Errorf("expected schema IFC4, got %q", doc.Header.Schema())
	}
	if doc.Header.FileName != "model.ifc" {
		t.Errorf("expected file name 'model.ifc', got %q", doc.Header.FileName)
	}
	if len(doc.Header.Author) != 1 || doc.Header.Author[0] != "Author" {
		t.Errorf("unexpected authors %v", doc.Header.Author)
	}
	if len(doc.Entities) != len(wallRecords) {
		t.Fatalf("expected %d entities, got %d", len(wallRecords), len(doc.Entities))
	}
	if len(doc.Diagnostics) != 0 {
		t.Errorf("expected no diagnostics, got %v", doc.Diagnostics)
	}

	wall, ok := doc.Entity(12)
	if !ok {
		t.Fatal("entity #12 not found")
	}
	if wall.Type != "IFCWALL" {
		t.Errorf("expected IFCWALL, got %s", wall.Type)
	}
	if wall.Kind != KindGeometry {
		t.Errorf("expected geometry kind, got %v", wall.Kind)
	}
	if name, _ := wall.Attr(ProductName).AsString(); name != "Wall A" {
		t.Errorf("expected name 'Wall A', got %q", name)
	}
	refs := wall.References()
	if len(refs) != 2 || refs[0] != 3 || refs[1] != 11 {
		t.Errorf("expected references [3 11], got %v", refs)
	}

	placement, _ := doc.Entity(3)
	if placement.Kind != KindPlacement {
		t.Errorf("expected placement kind, got %v", placement.Kind)
	}

	ids := doc.IDs()
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("IDs not ascending: %v", ids)
		}
	}
	if got := len(doc.ByKind(KindGeometry)); got != 1 {
		t.Errorf("expected 1 geometry entity, got %d", got)
	}
}

func TestDecode_ProductClassification(t *testing.T) {
	tests := []struct {
		name     string
		product  string
		wantKind Kind
		wantDiag int
	}{
		{"beam standard case", "#12=IFCBEAMSTANDARDCASE('2O2Fr$t4X7Zf8NOew3FLOH',$,'B',$,$,#3,#11,$,$);", KindGeometry, 0},
		{"column standard case", "#12=IFCCOLUMNSTANDARDCASE('2O2Fr$t4X7Zf8NOew3FLOH',$,'C',$,$,#3,#11,$,$);", KindGeometry, 0},
		{"member standard case", "#12=IFCMEMBERSTANDARDCASE('2O2Fr$t4X7Zf8NOew3FLOH',$,'M',$,$,#3,#11,$,$);", KindGeometry, 0},
		{"building element part", "#12=IFCBUILDINGELEMENTPART('2O2Fr$t4X7Zf8NOew3FLOH',$,'P',$,$,#3,#11,$,$);", KindGeometry, 0},
		{"air terminal", "#12=IFCAIRTERMINAL('2O2Fr$t4X7Zf8NOew3FLOH',$,'AT',$,$,#3,#11,$,$);", KindGeometry, 0},
		{"valve", "#12=IFCVALVE('2O2Fr$t4X7Zf8NOew3FLOH',$,'V',$,$,#3,#11,$,$);", KindGeometry, 0},
		{"type not in any table", "#12=IFCKERB('2O2Fr$t4X7Zf8NOew3FLOH',$,'K',$,$,#3,#11,$,$,$);", KindGeometry, 0},
		{"no placement", "#12=IFCWALL('2O2Fr$t4X7Zf8NOew3FLOH',$,'W',$,$,$,#11,$,$);", KindGeometry, 0},
		{"no representation", "#12=IFCWALL('2O2Fr$t4X7Zf8NOew3FLOH',$,'W',$,$,#3,$,$,$);", KindOther, 0},
		{"known product with bad representation", "#12=IFCWALL('2O2Fr$t4X7Zf8NOew3FLOH',$,'W',$,$,#3,#10,$,$);", KindOther, 1},
		{"unknown type with bad representation", "#12=IFCKERB('2O2Fr$t4X7Zf8NOew3FLOH',$,'K',$,$,#3,#10,$,$,$);", KindOther, 0},
		{"not a root entity", "#12=IFCCUSTOMNODE(1,$,$,$,$,#3,#11);", KindOther, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := append([]string{}, wallRecords...)
			records[11] = tt.product
			doc, err := Decode(makeIFC(records...), DecodeOptions{})
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			rec, _ := doc.Entity(12)
			if rec.Kind != tt.wantKind {
				t.Errorf("expected %v, got %v", tt.wantKind, rec.Kind)
			}
			if n := diag.Count(doc.Diagnostics, diag.KindUnsupportedShape); n != tt.wantDiag {
				t.Errorf("expected %d unsupported diagnostics, got %d: %v", tt.wantDiag, n, doc.Diagnostics)
			}
		})
	}
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		reason FormatReason
	}{
		{"empty", []byte{}, ReasonUnreadable},
		{"not step", []byte("hello world"), ReasonUnreadable},
		{"unknown schema", makeIFCWithSchema("CIS2", wallRecords...), ReasonUnrecognizedSchema},
		{"missing header", []byte("ISO-10303-21;\nDATA;\nENDSEC;\nEND-ISO-10303-21;\n"), ReasonUnreadable},
		{"corrupt zip", append([]byte{'P', 'K', 0x03, 0x04}, 0, 0, 0), ReasonUnreadable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, DecodeOptions{})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !IsFormatError(err, tt.reason) {
				t.Errorf("expected %v, got %v", tt.reason, err)
			}
		})
	}
}

func TestDecode_Schemas(t *testing.T) {
	for _, schema := range []string{"IFC2X3", "IFC4", "IFC4X1", "IFC4X2", "IFC4X3_ADD2", "IFC4_ADD2_TC1"} {
		t.Run(schema, func(t *testing.T) {
			if _, err := Decode(makeIFCWithSchema(schema, wallRecords...), DecodeOptions{}); err != nil {
				t.Errorf("schema %s rejected: %v", schema, err)
			}
		})
	}
}

func TestDecode_DanglingReference(t *testing.T) {
	records := append([]string{}, wallRecords...)
	records[11] = "#12=IFCWALL('2O2Fr$t4X7Zf8NOew3FLOH',$,'Wall A',$,$,#3,#99,$,$);"

	t.Run("lenient", func(t *testing.T) {
		doc, err := Decode(makeIFC(records...), DecodeOptions{})
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		wall, _ := doc.Entity(12)
		if !wall.Downgraded {
			t.Error("expected wall to be downgraded")
		}
		if wall.Kind != KindOther {
			t.Errorf("expected KindOther, got %v", wall.Kind)
		}
		if n := diag.Count(doc.Diagnostics, diag.KindDanglingReference); n != 1 {
			t.Errorf("expected 1 dangling diagnostic, got %d", n)
		}
		if doc.Diagnostics[0].EntityID != 12 {
			t.Errorf("diagnostic names #%d", doc.Diagnostics[0].EntityID)
		}
	})

	t.Run("strict", func(t *testing.T) {
		_, err := Decode(makeIFC(records...), DecodeOptions{Strict: true})
		if !IsFormatError(err, ReasonDanglingReference) {
			t.Fatalf("expected DanglingReference, got %v", err)
		}
		if !errors.Is(err, ErrDanglingReference) {
			t.Error("expected error to wrap ErrDanglingReference")
		}
		var fe *FormatError
		if errors.As(err, &fe) && fe.EntityID != 12 {
			t.Errorf("expected entity #12, got #%d", fe.EntityID)
		}
	})
}

func TestDecode_MalformedRecords(t *testing.T) {
	doc, err := Decode(makeIFC(
		"#1=IFCCARTESIANPOINT((0.,0.,0.));",
		"#2=IFCCARTESIANPOINT((1.,2.3.4,0.));",
		"#3=IFCDIRECTION((0.,0.,1.)",
		"#4=IFCDIRECTION((1.,0.,0.));",
		"#4=IFCDIRECTION((0.,1.,0.));",
		"garbage;",
	), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if _, ok := doc.Entity(1); !ok {
		t.Error("#1 should survive")
	}
	pt, ok := doc.Entity(2)
	if !ok {
		t.Fatal("#2 should be kept as a placeholder")
	}
	if !pt.Placeholder {
		t.Error("#2 should be flagged as placeholder")
	}
	if diag.Count(doc.Diagnostics, diag.KindMalformedField) != 1 {
		t.Errorf("expected 1 malformed field diagnostic, got %v", doc.Diagnostics)
	}

	// #3 is missing its closing parenthesis; the skip consumes #4 as well.
	if _, ok := doc.Entity(3); ok {
		t.Error("#3 should be skipped")
	}
	dir, ok := doc.Entity(4)
	if !ok {
		t.Fatal("second #4 should be kept")
	}
	if f, _ := dir.Attr(0).Floats(); len(f) != 3 || f[1] != 1 {
		t.Errorf("unexpected #4 coordinates %v", f)
	}
	if diag.Count(doc.Diagnostics, diag.KindMalformedRecord) != 2 {
		t.Errorf("expected 2 malformed record diagnostics, got %v", doc.Diagnostics)
	}
}

func TestDecode_DuplicateID(t *testing.T) {
	doc, err := Decode(makeIFC(
		"#1=IFCCARTESIANPOINT((0.,0.,0.));",
		"#1=IFCCARTESIANPOINT((5.,5.,5.));",
	), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	pt, _ := doc.Entity(1)
	if f, _ := pt.Attr(0).Floats(); f[0] != 0 {
		t.Errorf("expected the first definition to win, got %v", f)
	}
	if diag.Count(doc.Diagnostics, diag.KindMalformedRecord) != 1 {
		t.Errorf("expected a duplicate diagnostic, got %v", doc.Diagnostics)
	}
}

func TestDecode_ComplexInstance(t *testing.T) {
	doc, err := Decode(makeIFC(
		"#1=(IFCNAMEDUNIT(*,.LENGTHUNIT.) IFCSIUNIT(.MILLI.,.METRE.));",
	), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rec, _ := doc.Entity(1)
	if rec.Type != "IFCNAMEDUNIT+IFCSIUNIT" {
		t.Errorf("unexpected complex type %q", rec.Type)
	}
	if len(rec.Attributes) != 2 || rec.Attributes[1].Str != "IFCSIUNIT" {
		t.Errorf("unexpected parts %v", rec.Attributes)
	}
}

func TestDecode_PropertyRelations(t *testing.T) {
	records := append([]string{}, wallRecords...)
	records = append(records,
		"#20=IFCPROPERTYSINGLEVALUE('IsExternal',$,IFCBOOLEAN(.T.),$);",
		"#21=IFCPROPERTYSET('3kHUnNnSbDNQrI0ce4Fo9W',$,'Pset_WallCommon',$,(#20));",
		"#22=IFCRELDEFINESBYPROPERTIES('1kHUnNnSbDNQrI0ce4Fo9W',$,$,$,(#12),#21);",
	)
	doc, err := Decode(makeIFC(records...), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rels := doc.PropertyRelations(12)
	if len(rels) != 1 || rels[0] != 22 {
		t.Errorf("expected relation #22, got %v", rels)
	}
	pset, _ := doc.Entity(21)
	if pset.Kind != KindPropertySet {
		t.Errorf("expected property set kind, got %v", pset.Kind)
	}
}

func TestDecode_BOMAndComments(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("/* exported */\n")...)
	data = append(data, makeIFC(wallRecords...)...)
	if _, err := Decode(data, DecodeOptions{}); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wall.ifc")
	if err := os.WriteFile(path, makeIFC(wallRecords...), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := DecodeFile(path, DecodeOptions{})
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if len(doc.Entities) != len(wallRecords) {
		t.Errorf("expected %d entities, got %d", len(wallRecords), len(doc.Entities))
	}

	if _, err := DecodeFile(filepath.Join(t.TempDir(), "missing.ifc"), DecodeOptions{}); err == nil {
		t.Error("expected error for missing file")
	}
}
