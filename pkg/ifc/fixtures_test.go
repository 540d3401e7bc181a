package ifc

import (
	"fmt"
	"strings"
)

// makeIFC assembles an IFC4 document around the given DATA records.
func makeIFC(records ...string) []byte {
	var b strings.Builder
	b.WriteString("ISO-10303-21;\nHEADER;\n")
	b.WriteString("FILE_DESCRIPTION(('ViewDefinition [CoordinationView]'),'2;1');\n")
	b.WriteString("FILE_NAME('cubes.ifc','2024-03-01T10:00:00',('Author'),('Org'),'pre','ifctest','');\n")
	b.WriteString("FILE_SCHEMA(('IFC4'));\nENDSEC;\nDATA;\n")
	for _, r := range records {
		b.WriteString(r)
		b.WriteByte('\n')
	}
	b.WriteString("ENDSEC;\nEND-ISO-10303-21;\n")
	return []byte(b.String())
}

// contextRecords holds the world placement, a context, an extrusion
// direction and a 2D profile placement shared by every fixture.
var contextRecords = []string{
	"#1=IFCCARTESIANPOINT((0.,0.,0.));",
	"#2=IFCAXIS2PLACEMENT3D(#1,$,$);",
	"#3=IFCLOCALPLACEMENT($,#2);",
	"#4=IFCGEOMETRICREPRESENTATIONCONTEXT($,'Model',3,1.E-05,#2,$);",
	"#6=IFCDIRECTION((0.,0.,1.));",
	"#7=IFCCARTESIANPOINT((0.,0.));",
	"#8=IFCAXIS2PLACEMENT2D(#7,$);",
}

// cubeShape is a unit cube body: a 1x1 square centered on the placement
// origin extruded by 1 along Z, 8 vertices and 12 triangles.
var cubeShape = []string{
	"#20=IFCRECTANGLEPROFILEDEF(.AREA.,$,#8,1.,1.);",
	"#21=IFCEXTRUDEDAREASOLID(#20,#2,#6,1.);",
	"#22=IFCSHAPEREPRESENTATION(#4,'Body','SweptSolid',(#21));",
	"#24=IFCPRODUCTDEFINITIONSHAPE($,$,(#22));",
}

// propertyRecords attaches a property set to #10 and quantities to #10
// and #11.
var propertyRecords = []string{
	"#30=IFCPROPERTYSINGLEVALUE('IsExternal',$,IFCBOOLEAN(.T.),$);",
	"#31=IFCPROPERTYSINGLEVALUE('LoadBearing',$,IFCBOOLEAN(.F.),$);",
	"#32=IFCPROPERTYSET('2VZbp1Vcr0ZOW7VHxyDbq2',$,'Pset_ProxyCommon',$,(#30,#31,#37,#38,#39));",
	"#33=IFCRELDEFINESBYPROPERTIES('1b6d6NC0T1kRLqL0SXQHp5',$,$,$,(#10),#32);",
	"#34=IFCQUANTITYLENGTH('Width',$,$,1.,$);",
	"#35=IFCELEMENTQUANTITY('0ga3hWJGH8$v6HCIxNp6H1',$,'Qto_ProxyBaseQuantities',$,$,(#34));",
	"#36=IFCRELDEFINESBYPROPERTIES('3R1Vs4t4r2Pf5G0w5k0aPg',$,$,$,(#10,#11),#35);",
	"#37=IFCPROPERTYENUMERATEDVALUE('Status',$,(IFCLABEL('NEW')),$);",
	"#38=IFCPROPERTYBOUNDEDVALUE('Temperature',$,IFCREAL(30.),IFCREAL(10.),$,$);",
	"#39=IFCCOMPLEXPROPERTY('Dimensions',$,'Size',(#34));",
}

// twoCubes returns a document with cube #10 at the origin and cube #11
// five units along X.
func twoCubes() []byte {
	records := append([]string{}, contextRecords...)
	records = append(records,
		"#10=IFCBUILDINGELEMENTPROXY('0YvctVUKr0kugbFTf53O9L',$,'Cube A',$,$,#3,#24,$,$);",
		"#11=IFCBUILDINGELEMENTPROXY('1kTvXnbbzCWw8lcMd1dR4o',$,'Cube B',$,$,#14,#24,$,$);",
		"#12=IFCCARTESIANPOINT((5.,0.,0.));",
		"#13=IFCAXIS2PLACEMENT3D(#12,$,$);",
		"#14=IFCLOCALPLACEMENT(#3,#13);",
	)
	records = append(records, cubeShape...)
	records = append(records, propertyRecords...)
	return makeIFC(records...)
}

// manyCubes returns n cubes #100.. spaced two units apart along X.
func manyCubes(n int) []byte {
	records := append([]string{}, contextRecords...)
	records = append(records, cubeShape...)
	for i := 0; i < n; i++ {
		pt, ax, pl := 1000+3*i, 1001+3*i, 1002+3*i
		records = append(records,
			fmt.Sprintf("#%d=IFCCARTESIANPOINT((%d.,0.,0.));", pt, 2*i),
			fmt.Sprintf("#%d=IFCAXIS2PLACEMENT3D(#%d,$,$);", ax, pt),
			fmt.Sprintf("#%d=IFCLOCALPLACEMENT(#3,#%d);", pl, ax),
			fmt.Sprintf("#%d=IFCBUILDINGELEMENTPROXY('0YvctVUKr0kugbFTf53O9L',$,'Cube',$,$,#%d,#24,$,$);", 100+i, pl),
		)
	}
	return makeIFC(records...)
}

// unsupportedShape returns a document whose only product #10 has an
// advanced B-rep body.
func unsupportedShape() []byte {
	records := append([]string{}, contextRecords...)
	return makeIFC(append(records,
		"#20=IFCADVANCEDBREP(#1);",
		"#22=IFCSHAPEREPRESENTATION(#4,'Body','AdvancedBrep',(#20));",
		"#24=IFCPRODUCTDEFINITIONSHAPE($,$,(#22));",
		"#10=IFCBUILDINGELEMENTPROXY('0YvctVUKr0kugbFTf53O9L',$,'Freeform',$,$,#3,#24,$,$);",
	)...)
}

// danglingReference returns a document where product #5 references the
// missing representation #99 next to a valid cube #10.
func danglingReference() []byte {
	records := append([]string{}, contextRecords...)
	records = append(records, cubeShape...)
	return makeIFC(append(records,
		"#5=IFCBUILDINGELEMENTPROXY('2O2Fr$t4X7Zf8NOew3FLOH',$,'Broken',$,$,#3,#99,$,$);",
		"#10=IFCBUILDINGELEMENTPROXY('0YvctVUKr0kugbFTf53O9L',$,'Cube A',$,$,#3,#24,$,$);",
	)...)
}

// cyclicPlacement returns a cube whose placement chain loops.
func cyclicPlacement() []byte {
	records := append([]string{}, contextRecords...)
	records = append(records, cubeShape...)
	return makeIFC(append(records,
		"#40=IFCLOCALPLACEMENT(#41,#2);",
		"#41=IFCLOCALPLACEMENT(#40,#2);",
		"#10=IFCBUILDINGELEMENTPROXY('0YvctVUKr0kugbFTf53O9L',$,'Cube A',$,$,#40,#24,$,$);",
	)...)
}

// typedCube returns a single cube #10 declared with the given product type.
func typedCube(typ string) []byte {
	records := append([]string{}, contextRecords...)
	records = append(records, cubeShape...)
	return makeIFC(append(records,
		fmt.Sprintf("#10=%s('0YvctVUKr0kugbFTf53O9L',$,'Cube',$,$,#3,#24,$,$);", typ),
	)...)
}

// wallWithOpening returns wall #10 voided by opening #11 and space #12, all
// sharing the cube body.
func wallWithOpening() []byte {
	records := append([]string{}, contextRecords...)
	records = append(records, cubeShape...)
	return makeIFC(append(records,
		"#10=IFCWALL('0YvctVUKr0kugbFTf53O9L',$,'Wall',$,$,#3,#24,$,$);",
		"#11=IFCOPENINGELEMENT('1kTvXnbbzCWw8lcMd1dR4o',$,'Opening',$,$,#3,#24,$,.OPENING.);",
		"#12=IFCSPACE('2O2Fr$t4X7Zf8NOew3FLOH',$,'Room',$,$,#3,#24,$,.ELEMENT.,.INTERNAL.,$);",
		"#15=IFCRELVOIDSELEMENT('3R1Vs4t4r2Pf5G0w5k0aPg',$,$,$,#10,#11);",
	)...)
}
