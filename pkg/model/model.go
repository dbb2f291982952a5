// Package model contains the intermediate representation produced by the
// schema analyzer: feature classes (future layers) and their fields.
//
// The types are plain data. They are created by the analyzer, renamed by
// its laundering pass, and afterwards only read by layer materialization
// and by the instance reader.
package model

import "math"

// Unbounded is the value of MaxOccurs for maxOccurs="unbounded".
const Unbounded = math.MaxInt32

// FieldType is the XML Schema level type of a field.
type FieldType int

const (
	FieldTypeString FieldType = iota
	FieldTypeID
	FieldTypeBoolean
	FieldTypeShort
	FieldTypeInt32
	FieldTypeInt64
	FieldTypeFloat
	FieldTypeDouble
	FieldTypeDecimal
	FieldTypeDate
	FieldTypeGYear
	FieldTypeTime
	FieldTypeDateTime
	FieldTypeBase64Binary
	FieldTypeHexBinary
	FieldTypeAnyURI
	FieldTypeAnyType
	FieldTypeAnySimpleType
	FieldTypeGeometry
)

var fieldTypeNames = []string{
	"string", "ID", "boolean", "short", "int", "long", "float", "double",
	"decimal", "date", "gYear", "time", "dateTime", "base64Binary",
	"hexBinary", "anyURI", "anyType", "anySimpleType", "geometry",
}

func (t FieldType) String() string {
	if int(t) < len(fieldTypeNames) && t >= 0 {
		return fieldTypeNames[t]
	}
	return "unknown"
}

// FieldTypeFromXSD converts the local name of a builtin XML Schema type
// to a FieldType. Unknown names are treated as strings.
func FieldTypeFromXSD(name string) FieldType {
	switch name {
	case "ID":
		return FieldTypeID
	case "boolean":
		return FieldTypeBoolean
	case "short":
		return FieldTypeShort
	case "int", "byte", "integer", "negativeInteger", "nonNegativeInteger",
		"nonPositiveInteger", "positiveInteger", "unsignedByte",
		"unsignedShort", "unsignedInt":
		return FieldTypeInt32
	case "long", "unsignedLong":
		return FieldTypeInt64
	case "float":
		return FieldTypeFloat
	case "double":
		return FieldTypeDouble
	case "decimal":
		return FieldTypeDecimal
	case "date":
		return FieldTypeDate
	case "gYear":
		return FieldTypeGYear
	case "time":
		return FieldTypeTime
	case "dateTime":
		return FieldTypeDateTime
	case "anyURI":
		return FieldTypeAnyURI
	case "anyType":
		return FieldTypeAnyType
	case "anySimpleType":
		return FieldTypeAnySimpleType
	case "hexBinary":
		return FieldTypeHexBinary
	case "base64Binary":
		return FieldTypeBase64Binary
	default:
		return FieldTypeString
	}
}

// IsArrayCompatible tells if repeated values of the type can be stored
// as a list-typed column.
func (t FieldType) IsArrayCompatible() bool {
	switch t {
	case FieldTypeString, FieldTypeBoolean, FieldTypeShort, FieldTypeInt32,
		FieldTypeInt64, FieldTypeFloat, FieldTypeDouble, FieldTypeDecimal,
		FieldTypeAnyURI:
		return true
	default:
		return false
	}
}

// GeometryType is the expected kind of a geometry field.
type GeometryType int

const (
	GeometryUnknown GeometryType = iota
	GeometryPoint
	GeometryLineString
	GeometryPolygon
	GeometryMultiPoint
	GeometryMultiLineString
	GeometryMultiPolygon
	GeometryCollection
)

var geometryTypeNames = []string{
	"Unknown", "Point", "LineString", "Polygon", "MultiPoint",
	"MultiLineString", "MultiPolygon", "GeometryCollection",
}

func (g GeometryType) String() string {
	if int(g) < len(geometryTypeNames) && g >= 0 {
		return geometryTypeNames[g]
	}
	return "Unknown"
}

// Category describes how a field is materialized.
type Category int

const (
	// Regular field becomes a column.
	Regular Category = iota

	// PathToChildElementNoLink is not a column. The element content is
	// stored in a child layer that references back the parent.
	PathToChildElementNoLink

	// PathToChildElementWithLink is a column that stores the primary key
	// of a row of the related layer.
	PathToChildElementWithLink

	// PathToChildElementWithJunctionTable is not a column. Parent and
	// child rows are linked through a junction layer.
	PathToChildElementWithJunctionTable

	// Group is not a column. It corresponds to a repeated group or
	// sequence stored in its own layer.
	Group

	// SWEField is a column discovered from SWE DataRecord content.
	SWEField
)

var categoryNames = []string{
	"REGULAR",
	"PATH_TO_CHILD_ELEMENT_NO_LINK",
	"PATH_TO_CHILD_ELEMENT_WITH_LINK",
	"PATH_TO_CHILD_ELEMENT_WITH_JUNCTION_TABLE",
	"GROUP",
	"SWE_FIELD",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) && c >= 0 {
		return categoryNames[c]
	}
	return "UNKNOWN"
}

// Field describes a column or a structural relationship of a FeatureClass.
type Field struct {
	Name     string       `yaml:"name"`
	Type     FieldType    `yaml:"-"`
	TypeName string       `yaml:"type"`
	GeomType GeometryType `yaml:"-"`
	Width    int          `yaml:"width,omitempty"`

	NotNullable bool `yaml:"not_nullable,omitempty"`

	// Array is true for repeated values stored as a list-typed column.
	Array bool `yaml:"array,omitempty"`

	// List is true for xs:list values.
	List bool `yaml:"list,omitempty"`

	Category Category `yaml:"-"`

	XPath string `yaml:"xpath,omitempty"`

	// AlternateXPaths lists all realizations of an abstract element when
	// XPath is empty.
	AlternateXPaths []string `yaml:"alternate_xpaths,omitempty"`

	FixedValue   string `yaml:"fixed_value,omitempty"`
	DefaultValue string `yaml:"default_value,omitempty"`

	MinOccurs int `yaml:"min_occurs"`
	MaxOccurs int `yaml:"max_occurs"`

	// RepetitionOnSequence tells that maxOccurs>1 comes from the enclosing
	// sequence rather than from the element.
	RepetitionOnSequence bool `yaml:"repetition_on_sequence,omitempty"`

	// IncludeThisEltInBlob keeps the element itself in the captured XML,
	// not only its children.
	IncludeThisEltInBlob bool `yaml:"include_this_elt_in_blob,omitempty"`

	// AbstractElementXPath is the XPath of the abstract element of a
	// junction table relationship.
	AbstractElementXPath string `yaml:"abstract_element_xpath,omitempty"`

	// RelatedClassXPath is the XPath of the FeatureClass targeted by a
	// relationship.
	RelatedClassXPath string `yaml:"related_class_xpath,omitempty"`

	// Ignored marks attributes kept only because they have a fixed or
	// default value.
	Ignored bool `yaml:"ignored,omitempty"`

	Documentation string `yaml:"documentation,omitempty"`

	// MayAppearOutOfOrder is set for members of xs:all.
	MayAppearOutOfOrder bool `yaml:"may_appear_out_of_order,omitempty"`
}

// NewField creates a field with unset occurrence bounds.
func NewField() Field {
	return Field{MinOccurs: -1, MaxOccurs: -1}
}

// SetType sets the type and the original XSD type name.
func (f *Field) SetType(t FieldType, typeName string) {
	f.Type = t
	f.TypeName = typeName
}

// IsColumn tells if the field is materialized as an attribute column.
func (f *Field) IsColumn() bool {
	switch f.Category {
	case Regular:
		return f.Type != FieldTypeGeometry
	case PathToChildElementWithLink, SWEField:
		return true
	default:
		return false
	}
}

// FeatureClass is a future layer.
type FeatureClass struct {
	Name   string          `yaml:"name"`
	XPath  string          `yaml:"xpath"`
	Fields []Field         `yaml:"fields,omitempty"`
	Nested []*FeatureClass `yaml:"nested,omitempty"`

	// IsRepeatedSequence is true when the class holds occurrences of a
	// repeated sequence or group rather than of an element.
	IsRepeatedSequence bool `yaml:"is_repeated_sequence,omitempty"`

	// IsGroup is true for a repeated xs:group.
	IsGroup bool `yaml:"is_group,omitempty"`

	// ParentXPath and ChildXPath are set only for junction classes.
	ParentXPath string `yaml:"parent_xpath,omitempty"`
	ChildXPath  string `yaml:"child_xpath,omitempty"`

	IsTopLevelElt bool `yaml:"is_top_level_elt,omitempty"`

	Documentation string `yaml:"documentation,omitempty"`
}

// IsJunction tells if the class is a junction table.
func (fc *FeatureClass) IsJunction() bool {
	return fc.ParentXPath != ""
}

// AddField appends a field.
func (fc *FeatureClass) AddField(f Field) {
	fc.Fields = append(fc.Fields, f)
}

// PrependFields inserts fields before existing ones.
func (fc *FeatureClass) PrependFields(fs []Field) {
	res := make([]Field, 0, len(fs)+len(fc.Fields))
	res = append(res, fs...)
	fc.Fields = append(res, fc.Fields...)
}

// AppendFields appends fields.
func (fc *FeatureClass) AppendFields(fs []Field) {
	fc.Fields = append(fc.Fields, fs...)
}

// AddNested appends a nested class.
func (fc *FeatureClass) AddNested(n *FeatureClass) {
	fc.Nested = append(fc.Nested, n)
}

// Walk calls fn for the class and all its nested classes, depth first,
// parents before children.
func (fc *FeatureClass) Walk(fn func(*FeatureClass)) {
	fn(fc)
	for _, v := range fc.Nested {
		v.Walk(fn)
	}
}

// PKIDXPath returns the XPath of the field holding the id referenced by
// an internal xlink:href.
func PKIDXPath(hrefXPath string) string {
	return "{" + hrefXPath + "}_pkid"
}

// RawContentXPath returns the XPath of the field holding the resolved
// content of an xlink:href.
func RawContentXPath(hrefXPath string) string {
	return "{" + hrefXPath + "}_rawcontent"
}

// DerivedXPath returns the XPath of a field extracted from a resolved
// xlink:href document.
func DerivedXPath(hrefXPath, name string) string {
	return "{" + hrefXPath + "}_derived_" + name
}

// SWEFieldXPath returns the XPath of a field discovered in SWE content
// captured by the field at blobXPath.
func SWEFieldXPath(blobXPath, name string) string {
	return "{" + blobXPath + "}_swe_" + name
}

// SWEArrayXPath returns the XPath of the layer holding the values of a
// SWE data array captured by the field at blobXPath.
func SWEArrayXPath(blobXPath string) string {
	return "{" + blobXPath + "}_swe_array"
}

// URIFilename pairs a namespace URI and a schema location.
type URIFilename struct {
	URI      string `yaml:"uri"`
	Location string `yaml:"location"`
}
