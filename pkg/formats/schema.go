package formats

import (
	"fmt"
	"strings"

	"github.com/Faultbox/ifcmesh/pkg/diag"
)

// Kind classifies entity records by their role in geometry extraction.
type Kind uint8

const (
	KindOther       Kind = iota
	KindGeometry         // product with a shape representation
	KindPlacement        // placements, points, directions, transforms
	KindPropertySet      // property sets, properties, quantities and their relations
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindOther:
		return "Other"
	case KindGeometry:
		return "Geometry"
	case KindPlacement:
		return "Placement"
	case KindPropertySet:
		return "PropertySet"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Attribute positions shared by every IfcProduct subtype.
const (
	ProductGlobalID        = 0
	ProductName            = 2
	ProductObjectPlacement = 5
	ProductRepresentation  = 6
)

var (
	rootAttrs    = []string{"GlobalId", "OwnerHistory", "Name", "Description"}
	productAttrs = append(append([]string{}, rootAttrs...), "ObjectType", "ObjectPlacement", "Representation")
	elementAttrs = append(append([]string{}, productAttrs...), "Tag", "PredefinedType")
	spatialAttrs = append(append([]string{}, productAttrs...), "LongName", "CompositionType")
	relAttrs     = rootAttrs
)

func withAttrs(base []string, extra ...string) []string {
	return append(append([]string{}, base...), extra...)
}

// productTypes lists IfcProduct subtypes known by name. It supplies attribute
// names and flags known products whose representation cannot be used.
// Geometry classification itself is structural, see classifyProducts.
var productTypes = map[string]bool{
	"IFCBEAM": true, "IFCBEAMSTANDARDCASE": true, "IFCBUILDINGELEMENTPROXY": true,
	"IFCBUILDINGELEMENTPART": true, "IFCCHIMNEY": true,
	"IFCCOLUMN": true, "IFCCOLUMNSTANDARDCASE": true, "IFCCOVERING": true, "IFCCURTAINWALL": true,
	"IFCDOOR": true, "IFCDOORSTANDARDCASE": true, "IFCFOOTING": true,
	"IFCMEMBER": true, "IFCMEMBERSTANDARDCASE": true, "IFCPILE": true,
	"IFCPLATE": true, "IFCPLATESTANDARDCASE": true, "IFCRAILING": true,
	"IFCRAMP": true, "IFCRAMPFLIGHT": true, "IFCROOF": true, "IFCSHADINGDEVICE": true,
	"IFCSLAB": true, "IFCSLABSTANDARDCASE": true, "IFCSLABELEMENTEDCASE": true,
	"IFCSTAIR": true, "IFCSTAIRFLIGHT": true,
	"IFCWALL": true, "IFCWALLSTANDARDCASE": true, "IFCWALLELEMENTEDCASE": true,
	"IFCWINDOW": true, "IFCWINDOWSTANDARDCASE": true, "IFCFURNISHINGELEMENT": true,
	"IFCFURNITURE": true, "IFCSYSTEMFURNITUREELEMENT": true,
	"IFCOPENINGELEMENT": true, "IFCOPENINGSTANDARDCASE": true, "IFCVOIDINGFEATURE": true,
	"IFCSPACE": true, "IFCSITE": true, "IFCBUILDING": true, "IFCBUILDINGSTOREY": true,
	"IFCFLOWSEGMENT": true, "IFCFLOWFITTING": true, "IFCFLOWTERMINAL": true, "IFCFLOWCONTROLLER": true,
	"IFCFLOWMOVINGDEVICE": true, "IFCFLOWSTORAGEDEVICE": true, "IFCFLOWTREATMENTDEVICE": true,
	"IFCENERGYCONVERSIONDEVICE": true, "IFCDISTRIBUTIONELEMENT": true,
	"IFCDISTRIBUTIONCONTROLELEMENT": true, "IFCDISTRIBUTIONCHAMBERELEMENT": true,
	"IFCPIPESEGMENT": true, "IFCPIPEFITTING": true,
	"IFCDUCTSEGMENT": true, "IFCDUCTFITTING": true, "IFCDUCTSILENCER": true,
	"IFCCABLECARRIERSEGMENT": true, "IFCCABLECARRIERFITTING": true,
	"IFCCABLESEGMENT": true, "IFCCABLEFITTING": true,
	"IFCAIRTERMINAL": true, "IFCAIRTERMINALBOX": true, "IFCAIRTOAIRHEATRECOVERY": true,
	"IFCVALVE": true, "IFCDAMPER": true, "IFCPUMP": true, "IFCFAN": true, "IFCCOMPRESSOR": true,
	"IFCBOILER": true, "IFCCHILLER": true, "IFCCOIL": true, "IFCCOOLINGTOWER": true,
	"IFCHEATEXCHANGER": true, "IFCHUMIDIFIER": true, "IFCUNITARYEQUIPMENT": true,
	"IFCTANK": true, "IFCFILTER": true, "IFCSPACEHEATER": true, "IFCFIRESUPPRESSIONTERMINAL": true,
	"IFCSANITARYTERMINAL": true, "IFCWASTETERMINAL": true, "IFCSTACKTERMINAL": true,
	"IFCLAMP": true, "IFCLIGHTFIXTURE": true, "IFCOUTLET": true, "IFCSWITCHINGDEVICE": true,
	"IFCELECTRICAPPLIANCE": true, "IFCELECTRICDISTRIBUTIONBOARD": true,
	"IFCJUNCTIONBOX": true, "IFCPROTECTIVEDEVICE": true, "IFCTRANSFORMER": true,
	"IFCSENSOR": true, "IFCACTUATOR": true, "IFCALARM": true, "IFCCONTROLLER": true,
	"IFCFLOWMETER": true, "IFCFLOWINSTRUMENT": true, "IFCMEDICALDEVICE": true,
	"IFCCOMMUNICATIONSAPPLIANCE": true, "IFCAUDIOVISUALAPPLIANCE": true,
	"IFCELEMENTASSEMBLY": true, "IFCDISCRETEACCESSORY": true, "IFCMECHANICALFASTENER": true,
	"IFCFASTENER": true, "IFCREINFORCINGBAR": true, "IFCREINFORCINGMESH": true,
	"IFCTENDON": true, "IFCTENDONANCHOR": true, "IFCTRANSPORTELEMENT": true,
	"IFCVIRTUALELEMENT": true, "IFCGEOGRAPHICELEMENT": true, "IFCCIVILELEMENT": true,
	"IFCPROXY": true, "IFCANNOTATION": true,
}

// ProductDefinitionShape is the type every IfcProduct representation has.
const ProductDefinitionShape = "IFCPRODUCTDEFINITIONSHAPE"

var placementTypes = map[string]bool{
	"IFCLOCALPLACEMENT": true, "IFCGRIDPLACEMENT": true,
	"IFCAXIS2PLACEMENT3D": true, "IFCAXIS2PLACEMENT2D": true, "IFCAXIS1PLACEMENT": true,
	"IFCCARTESIANPOINT": true, "IFCDIRECTION": true,
	"IFCCARTESIANTRANSFORMATIONOPERATOR3D": true,
	"IFCCARTESIANTRANSFORMATIONOPERATOR3DNONUNIFORM": true,
}

var propertySetTypes = map[string]bool{
	"IFCPROPERTYSET": true, "IFCELEMENTQUANTITY": true, "IFCRELDEFINESBYPROPERTIES": true,
	"IFCPROPERTYSINGLEVALUE": true, "IFCPROPERTYENUMERATEDVALUE": true,
	"IFCPROPERTYLISTVALUE": true, "IFCPROPERTYBOUNDEDVALUE": true, "IFCCOMPLEXPROPERTY": true,
	"IFCQUANTITYLENGTH": true, "IFCQUANTITYAREA": true, "IFCQUANTITYVOLUME": true,
	"IFCQUANTITYCOUNT": true, "IFCQUANTITYWEIGHT": true, "IFCQUANTITYTIME": true,
}

// IsProductType reports whether typ is an IfcProduct subtype known by name.
// Unknown types can still be products; see classifyProducts.
func IsProductType(typ string) bool {
	return productTypes[typ]
}

// classify derives the record kind from its type. Products are promoted to
// KindGeometry afterwards, once their references can be inspected.
func classify(typ string) Kind {
	switch {
	case placementTypes[typ]:
		return KindPlacement
	case propertySetTypes[typ]:
		return KindPropertySet
	}
	return KindOther
}

// classifyProducts marks every usable record laid out as an IfcProduct
// (GlobalId string, ObjectPlacement null or a reference, Representation a
// reference to an IFCPRODUCTDEFINITIONSHAPE) as KindGeometry, whatever its
// type name. A known product type whose representation is something else
// is reported instead of being dropped silently.
func classifyProducts(doc *Document, diags *diag.List) {
	for _, id := range doc.ids {
		rec := doc.Entities[id]
		if rec.Kind != KindOther || !rec.Usable() || len(rec.Attributes) <= ProductRepresentation {
			continue
		}
		if rec.Attributes[ProductGlobalID].Kind != ValueString {
			continue
		}
		repID, ok := rec.Attr(ProductRepresentation).AsRef()
		if !ok {
			continue
		}
		placement := rec.Attr(ProductObjectPlacement).Kind
		rep, found := doc.Entities[repID]
		if found && rep.Type == ProductDefinitionShape && (placement == ValueNull || placement == ValueRef) {
			rec.Kind = KindGeometry
			continue
		}
		if IsProductType(rec.Type) {
			repType := "missing record"
			if found {
				repType = rep.Type
			}
			diags.Add(diag.Diagnostic{
				Kind:     diag.KindUnsupportedShape,
				EntityID: id,
				Type:     rec.Type,
				Message:  fmt.Sprintf("representation #%d is %s, not %s", repID, repType, ProductDefinitionShape),
			})
		}
	}
}

var attributeNames = map[string][]string{
	"IFCPROJECT":        withAttrs(rootAttrs, "ObjectType", "LongName", "Phase", "RepresentationContexts", "UnitsInContext"),
	"IFCSITE":           withAttrs(spatialAttrs, "RefLatitude", "RefLongitude", "RefElevation", "LandTitleNumber", "SiteAddress"),
	"IFCBUILDING":       withAttrs(spatialAttrs, "ElevationOfRefHeight", "ElevationOfTerrain", "BuildingAddress"),
	"IFCBUILDINGSTOREY": withAttrs(spatialAttrs, "Elevation"),
	"IFCSPACE":          withAttrs(spatialAttrs, "PredefinedType", "ElevationWithFlooring"),
	"IFCDOOR":           withAttrs(elementAttrs[:8], "OverallHeight", "OverallWidth", "PredefinedType", "OperationType", "UserDefinedOperationType"),
	"IFCWINDOW":         withAttrs(elementAttrs[:8], "OverallHeight", "OverallWidth", "PredefinedType", "PartitioningType", "UserDefinedPartitioningType"),

	"IFCCARTESIANPOINT":       {"Coordinates"},
	"IFCDIRECTION":            {"DirectionRatios"},
	"IFCAXIS2PLACEMENT3D":     {"Location", "Axis", "RefDirection"},
	"IFCAXIS2PLACEMENT2D":     {"Location", "RefDirection"},
	"IFCAXIS1PLACEMENT":       {"Location", "Axis"},
	"IFCLOCALPLACEMENT":       {"PlacementRelTo", "RelativePlacement"},
	"IFCCARTESIANPOINTLIST3D": {"CoordList", "TagList"},

	"IFCCARTESIANTRANSFORMATIONOPERATOR3D":           {"Axis1", "Axis2", "LocalOrigin", "Scale", "Axis3"},
	"IFCCARTESIANTRANSFORMATIONOPERATOR3DNONUNIFORM": {"Axis1", "Axis2", "LocalOrigin", "Scale", "Axis3", "Scale2", "Scale3"},

	"IFCGEOMETRICREPRESENTATIONCONTEXT": {"ContextIdentifier", "ContextType", "CoordinateSpaceDimension", "Precision", "WorldCoordinateSystem", "TrueNorth"},

	"IFCPRODUCTDEFINITIONSHAPE":       {"Name", "Description", "Representations"},
	"IFCSHAPEREPRESENTATION":          {"ContextOfItems", "RepresentationIdentifier", "RepresentationType", "Items"},
	"IFCEXTRUDEDAREASOLID":            {"SweptArea", "Position", "ExtrudedDirection", "Depth"},
	"IFCRECTANGLEPROFILEDEF":          {"ProfileType", "ProfileName", "Position", "XDim", "YDim"},
	"IFCCIRCLEPROFILEDEF":             {"ProfileType", "ProfileName", "Position", "Radius"},
	"IFCARBITRARYCLOSEDPROFILEDEF":    {"ProfileType", "ProfileName", "OuterCurve"},
	"IFCARBITRARYPROFILEDEFWITHVOIDS": {"ProfileType", "ProfileName", "OuterCurve", "InnerCurves"},
	"IFCPOLYLINE":                     {"Points"},
	"IFCFACETEDBREP":                  {"Outer"},
	"IFCCLOSEDSHELL":                  {"CfsFaces"},
	"IFCFACE":                         {"Bounds"},
	"IFCFACEOUTERBOUND":               {"Bound", "Orientation"},
	"IFCFACEBOUND":                    {"Bound", "Orientation"},
	"IFCPOLYLOOP":                     {"Polygon"},
	"IFCTRIANGULATEDFACESET":          {"Coordinates", "Normals", "Closed", "CoordIndex", "PnIndex"},
	"IFCSWEPTDISKSOLID":               {"Directrix", "Radius", "InnerRadius", "StartParam", "EndParam"},
	"IFCBOOLEANRESULT":                {"Operator", "FirstOperand", "SecondOperand"},
	"IFCBOOLEANCLIPPINGRESULT":        {"Operator", "FirstOperand", "SecondOperand"},
	"IFCHALFSPACESOLID":               {"BaseSurface", "AgreementFlag"},
	"IFCPOLYGONALBOUNDEDHALFSPACE":    {"BaseSurface", "AgreementFlag", "Position", "PolygonalBoundary"},
	"IFCPLANE":                        {"Position"},
	"IFCMAPPEDITEM":                   {"MappingSource", "MappingTarget"},
	"IFCREPRESENTATIONMAP":            {"MappingOrigin", "MappedRepresentation"},

	"IFCPROPERTYSET":             withAttrs(rootAttrs, "HasProperties"),
	"IFCELEMENTQUANTITY":         withAttrs(rootAttrs, "MethodOfMeasurement", "Quantities"),
	"IFCPROPERTYSINGLEVALUE":     {"Name", "Description", "NominalValue", "Unit"},
	"IFCPROPERTYENUMERATEDVALUE": {"Name", "Description", "EnumerationValues", "EnumerationReference"},
	"IFCPROPERTYLISTVALUE":       {"Name", "Description", "ListValues", "Unit"},
	"IFCPROPERTYBOUNDEDVALUE":    {"Name", "Description", "UpperBoundValue", "LowerBoundValue", "Unit", "SetPointValue"},
	"IFCCOMPLEXPROPERTY":         {"Name", "Description", "UsageName", "HasProperties"},
	"IFCQUANTITYLENGTH":          {"Name", "Description", "Unit", "LengthValue", "Formula"},
	"IFCQUANTITYAREA":            {"Name", "Description", "Unit", "AreaValue", "Formula"},
	"IFCQUANTITYVOLUME":          {"Name", "Description", "Unit", "VolumeValue", "Formula"},
	"IFCQUANTITYCOUNT":           {"Name", "Description", "Unit", "CountValue", "Formula"},
	"IFCQUANTITYWEIGHT":          {"Name", "Description", "Unit", "WeightValue", "Formula"},

	"IFCRELDEFINESBYPROPERTIES":         withAttrs(relAttrs, "RelatedObjects", "RelatingPropertyDefinition"),
	"IFCRELCONTAINEDINSPATIALSTRUCTURE": withAttrs(relAttrs, "RelatedElements", "RelatingStructure"),
	"IFCRELAGGREGATES":                  withAttrs(relAttrs, "RelatingObject", "RelatedObjects"),
	"IFCRELASSOCIATESMATERIAL":          withAttrs(relAttrs, "RelatedObjects", "RelatingMaterial"),
	"IFCMATERIAL":                       {"Name", "Description", "Category"},
	"IFCOWNERHISTORY":                   {"OwningUser", "OwningApplication", "State", "ChangeAction", "LastModifiedDate", "LastModifyingUser", "LastModifyingApplication", "CreationDate"},
}

// AttributeName returns the schema name of attribute i of the given type,
// or "Attr<i>" when the type is not in the built-in table.
func AttributeName(typ string, i int) string {
	names, ok := attributeNames[typ]
	if !ok && productTypes[typ] {
		names = elementAttrs
	}
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("Attr%d", i)
}

// recognizedSchemas lists the FILE_SCHEMA identifiers this decoder accepts.
// Versioned suffixes such as IFC4X3_ADD2 match by prefix.
var recognizedSchemas = []string{"IFC2X3", "IFC4X1", "IFC4X2", "IFC4X3", "IFC4"}

// IsRecognizedSchema reports whether a FILE_SCHEMA identifier is supported.
func IsRecognizedSchema(schema string) bool {
	s := strings.ToUpper(strings.TrimSpace(schema))
	for _, known := range recognizedSchemas {
		if s == known || (known != "IFC4" && strings.HasPrefix(s, known)) {
			return true
		}
	}
	// IFC4 with addenda, e.g. IFC4_ADD2_TC1
	return strings.HasPrefix(s, "IFC4_")
}
