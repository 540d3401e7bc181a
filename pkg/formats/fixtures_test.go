package formats

import (
	"fmt"
	"strings"
)

// makeIFC assembles a minimal IFC4 document around the given DATA records.
func makeIFC(records ...string) []byte {
	return makeIFCWithSchema("IFC4", records...)
}

func makeIFCWithSchema(schema string, records ...string) []byte {
	var b strings.Builder
	b.WriteString("ISO-10303-21;\n")
	b.WriteString("HEADER;\n")
	b.WriteString("FILE_DESCRIPTION(('ViewDefinition [CoordinationView]'),'2;1');\n")
	b.WriteString("FILE_NAME('model.ifc','2024-03-01T10:00:00',('Author'),('Org'),'pre','sys','');\n")
	fmt.Fprintf(&b, "FILE_SCHEMA(('%s'));\n", schema)
	b.WriteString("ENDSEC;\n")
	b.WriteString("DATA;\n")
	for _, r := range records {
		b.WriteString(r)
		b.WriteString("\n")
	}
	b.WriteString("ENDSEC;\n")
	b.WriteString("END-ISO-10303-21;\n")
	return []byte(b.String())
}

// wallRecords is a wall with a placement and a body representation.
var wallRecords = []string{
	"#1=IFCCARTESIANPOINT((0.,0.,0.));",
	"#2=IFCAXIS2PLACEMENT3D(#1,$,$);",
	"#3=IFCLOCALPLACEMENT($,#2);",
	"#4=IFCCARTESIANPOINT((0.,0.));",
	"#5=IFCAXIS2PLACEMENT2D(#4,$);",
	"#6=IFCRECTANGLEPROFILEDEF(.AREA.,$,#5,1.,1.);",
	"#7=IFCDIRECTION((0.,0.,1.));",
	"#8=IFCEXTRUDEDAREASOLID(#6,#2,#7,1.);",
	"#9=IFCGEOMETRICREPRESENTATIONCONTEXT($,'Model',3,1.E-05,#2,$);",
	"#10=IFCSHAPEREPRESENTATION(#9,'Body','SweptSolid',(#8));",
	"#11=IFCPRODUCTDEFINITIONSHAPE($,$,(#10));",
	"#12=IFCWALL('2O2Fr$t4X7Zf8NOew3FLOH',$,'Wall A',$,$,#3,#11,$,$);",
}
