package geometry

import (
	"strings"
	"testing"

	"github.com/Faultbox/ifcmesh/pkg/formats"
)

// baseRecords holds a world placement, a context and common directions.
// Products use placement #3 and representation #91 built by bodyRecords.
var baseRecords = []string{
	"#1=IFCCARTESIANPOINT((0.,0.,0.));",
	"#2=IFCAXIS2PLACEMENT3D(#1,$,$);",
	"#3=IFCLOCALPLACEMENT($,#2);",
	"#4=IFCGEOMETRICREPRESENTATIONCONTEXT($,'Model',3,1.E-05,#2,$);",
	"#5=IFCDIRECTION((0.,0.,1.));",
	"#6=IFCCARTESIANPOINT((0.,0.));",
	"#7=IFCAXIS2PLACEMENT2D(#6,$);",
}

// bodyRecords adds a proxy #100 whose body representation lists items.
func bodyRecords(items string, extra ...string) []string {
	records := append([]string{}, baseRecords...)
	records = append(records, extra...)
	return append(records,
		"#90=IFCSHAPEREPRESENTATION(#4,'Body','SweptSolid',("+items+"));",
		"#91=IFCPRODUCTDEFINITIONSHAPE($,$,(#90));",
		"#100=IFCBUILDINGELEMENTPROXY('0YvctVUKr0kugbFTf53O9L',$,'Proxy',$,$,#3,#91,$,$);",
	)
}

// unitBox is a 1x1 rectangle centered at the origin extruded by 1 along Z.
var unitBox = []string{
	"#20=IFCRECTANGLEPROFILEDEF(.AREA.,$,#7,1.,1.);",
	"#21=IFCEXTRUDEDAREASOLID(#20,#2,#5,1.);",
}

func decode(t *testing.T, records []string) *formats.Document {
	t.Helper()
	var b strings.Builder
	b.WriteString("ISO-10303-21;\nHEADER;\nFILE_DESCRIPTION((''),'2;1');\n")
	b.WriteString("FILE_NAME('t.ifc','',(''),(''),'','','');\nFILE_SCHEMA(('IFC4'));\nENDSEC;\nDATA;\n")
	for _, r := range records {
		b.WriteString(r)
		b.WriteByte('\n')
	}
	b.WriteString("ENDSEC;\nEND-ISO-10303-21;\n")

	doc, err := formats.Decode([]byte(b.String()), formats.DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return doc
}

func entity(t *testing.T, doc *formats.Document, id uint32) *formats.EntityRecord {
	t.Helper()
	rec, ok := doc.Entity(id)
	if !ok {
		t.Fatalf("entity #%d missing", id)
	}
	return rec
}
