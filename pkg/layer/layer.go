// Package layer turns feature classes produced by the schema analyzer
// into relational layers: ordered column definitions, geometry columns,
// primary and parent keys, and lookup tables from element XPaths to
// columns used by the instance reader.
package layer

import (
	"slices"
	"strings"

	"github.com/gnames/gmlas/pkg/model"
	"github.com/gnames/gmlas/pkg/schema"
)

// Names of generated columns.
const (
	PKIDName       = "ogr_pkid"
	ParentPrefix   = "parent_"
	OccurrenceName = "occurrence"
	ParentPKIDName = "parent_pkid"
	ChildPKIDName  = "child_pkid"
	hrefSuffix     = "_href"
)

// Type is the storage type of a column.
type Type int

const (
	String Type = iota
	Integer
	Integer64
	Real
	Boolean
	Date
	Time
	DateTime
	Binary
	StringList
	IntegerList
	Integer64List
	RealList
	BooleanList
)

var typeNames = []string{
	"String", "Integer", "Integer64", "Real", "Boolean", "Date", "Time",
	"DateTime", "Binary", "StringList", "IntegerList", "Integer64List",
	"RealList", "BooleanList",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// IsList tells if the column holds several values.
func (t Type) IsList() bool {
	return t >= StringList
}

// TypeOf returns the column type for a field type.
func TypeOf(ft model.FieldType, array bool) Type {
	var t Type
	switch ft {
	case model.FieldTypeBoolean:
		t = Boolean
	case model.FieldTypeShort, model.FieldTypeInt32, model.FieldTypeGYear:
		t = Integer
	case model.FieldTypeInt64:
		t = Integer64
	case model.FieldTypeFloat, model.FieldTypeDouble, model.FieldTypeDecimal:
		t = Real
	case model.FieldTypeDate:
		t = Date
	case model.FieldTypeTime:
		t = Time
	case model.FieldTypeDateTime:
		t = DateTime
	case model.FieldTypeBase64Binary, model.FieldTypeHexBinary:
		t = Binary
	default:
		t = String
	}
	if !array {
		return t
	}
	switch t {
	case Boolean:
		return BooleanList
	case Integer:
		return IntegerList
	case Integer64:
		return Integer64List
	case Real:
		return RealList
	default:
		return StringList
	}
}

// FieldDef describes an attribute column.
type FieldDef struct {
	Name     string
	Type     Type
	Width    int
	Nullable bool

	// Default is the fixed or default value declared in the schema.
	Default string

	XPath           string
	AlternateXPaths []string

	// ClassField is the index of the originating class field, -1 for
	// generated columns.
	ClassField int
}

// GeomFieldDef describes a geometry column.
type GeomFieldDef struct {
	Name     string
	GeomType model.GeometryType

	XPath           string
	AlternateXPaths []string

	ClassField int

	// SRSName is the first srsName found for the column in the document.
	SRSName string
}

// Layer is the materialized form of a feature class.
type Layer struct {
	Name   string
	Class  *model.FeatureClass
	Parent *Layer

	Fields     []FieldDef
	GeomFields []GeomFieldDef

	idField       int
	idGenerated   bool
	parentIDField int

	xpathToField map[string]int
	xpathToGeom  map[string]int
	xpathToClass map[string]int
}

func newLayer(fc *model.FeatureClass, parent *Layer, alwaysPKID bool) *Layer {
	res := &Layer{
		Name:          fc.Name,
		Class:         fc,
		Parent:        parent,
		idField:       -1,
		parentIDField: -1,
		xpathToClass:  make(map[string]int),
	}
	for i := range fc.Fields {
		f := &fc.Fields[i]
		if f.XPath != "" {
			res.xpathToClass[f.XPath] = i
		}
		for _, v := range f.AlternateXPaths {
			res.xpathToClass[v] = i
		}
	}

	if fc.IsJunction() {
		for _, v := range []string{OccurrenceName, ParentPKIDName, ChildPKIDName} {
			t := String
			if v == OccurrenceName {
				t = Integer
			}
			res.Fields = append(res.Fields, FieldDef{Name: v, Type: t, ClassField: -1})
		}
		res.reindex()
		return res
	}

	if alwaysPKID {
		res.addGeneratedID()
	}

	// An explicit xs:ID attribute, if mandatory, serves as primary key.
	for i := range fc.Fields {
		f := &fc.Fields[i]
		if f.Type == model.FieldTypeID && f.NotNullable &&
			strings.Contains(f.XPath, "@") {
			if res.idField < 0 {
				res.idField = len(res.Fields)
			}
			res.Fields = append(res.Fields, FieldDef{
				Name:       f.Name,
				Type:       String,
				XPath:      f.XPath,
				ClassField: i,
			})
			break
		}
	}

	if res.idField < 0 {
		res.addGeneratedID()
	}
	res.reindex()
	return res
}

func (l *Layer) addGeneratedID() {
	l.idField = len(l.Fields)
	l.idGenerated = true
	l.Fields = append(l.Fields, FieldDef{Name: PKIDName, Type: String, ClassField: -1})
}

// postInit adds the parent key and the columns of class fields. It runs
// once all layers exist.
func (l *Layer) postInit(xlinkRawContent bool) {
	if l.Class.IsJunction() {
		return
	}

	if l.Parent != nil {
		l.parentIDField = len(l.Fields)
		l.Fields = append(l.Fields, FieldDef{
			Name:       ParentPrefix + l.Parent.Fields[l.Parent.idField].Name,
			Type:       String,
			ClassField: -1,
		})
	}

	have := make(map[string]bool)
	for _, v := range l.Fields {
		if v.XPath != "" {
			have[v.XPath] = true
		}
	}

	for i := range l.Class.Fields {
		f := &l.Class.Fields[i]
		if f.Ignored {
			continue
		}
		switch f.Category {
		case model.PathToChildElementNoLink, model.Group,
			model.PathToChildElementWithJunctionTable:
			continue
		}

		if f.Type == model.FieldTypeGeometry {
			l.GeomFields = append(l.GeomFields, GeomFieldDef{
				Name:            f.Name,
				GeomType:        f.GeomType,
				XPath:           f.XPath,
				AlternateXPaths: f.AlternateXPaths,
				ClassField:      i,
			})
			continue
		}

		if f.XPath != "" && have[f.XPath] {
			continue
		}

		def := FieldDef{
			Name:            f.Name,
			Type:            TypeOf(f.Type, f.Array || f.List),
			Width:           f.Width,
			Nullable:        !f.NotNullable,
			Default:         f.DefaultValue,
			XPath:           f.XPath,
			AlternateXPaths: f.AlternateXPaths,
			ClassField:      i,
		}
		if def.Default == "" {
			def.Default = f.FixedValue
		}
		l.Fields = append(l.Fields, def)

		if xlinkRawContent && strings.HasSuffix(f.XPath, "/@xlink:href") {
			l.Fields = append(l.Fields, FieldDef{
				Name:       DerivedName(f.Name, "rawcontent"),
				Type:       String,
				Nullable:   true,
				XPath:      model.RawContentXPath(f.XPath),
				ClassField: -1,
			})
		}
	}
	l.reindex()
}

// DerivedName builds the name of a column computed from an href column.
func DerivedName(hrefName, suffix string) string {
	name, _, _ := strings.Cut(hrefName, hrefSuffix)
	return name + "_" + suffix
}

func (l *Layer) reindex() {
	l.xpathToField = make(map[string]int, len(l.Fields))
	for i, v := range l.Fields {
		if v.XPath != "" {
			l.xpathToField[v.XPath] = i
		}
		for _, x := range v.AlternateXPaths {
			l.xpathToField[x] = i
		}
	}
	l.xpathToGeom = make(map[string]int, len(l.GeomFields))
	for i, v := range l.GeomFields {
		if v.XPath != "" {
			l.xpathToGeom[v.XPath] = i
		}
		for _, x := range v.AlternateXPaths {
			l.xpathToGeom[x] = i
		}
	}
}

// IDField returns the index of the primary key column, -1 for junction
// layers.
func (l *Layer) IDField() int {
	return l.idField
}

// IsGeneratedID tells if the primary key is a synthetic ogr_pkid.
func (l *Layer) IsGeneratedID() bool {
	return l.idGenerated
}

// ParentIDField returns the index of the parent key column or -1.
func (l *Layer) ParentIDField() int {
	return l.parentIDField
}

// FieldIndex returns the column mapped to xpath or -1.
func (l *Layer) FieldIndex(xpath string) int {
	if idx, ok := l.xpathToField[xpath]; ok {
		return idx
	}
	return -1
}

// GeomFieldIndex returns the geometry column mapped to xpath or -1.
func (l *Layer) GeomFieldIndex(xpath string) int {
	if idx, ok := l.xpathToGeom[xpath]; ok {
		return idx
	}
	return -1
}

// ClassFieldIndex returns the index of the class field mapped to xpath
// or -1. Class fields include those that are not columns.
func (l *Layer) ClassFieldIndex(xpath string) int {
	if idx, ok := l.xpathToClass[xpath]; ok {
		return idx
	}
	return -1
}

// ClassField returns the class field behind column idx, or nil for
// generated columns.
func (l *Layer) ClassField(idx int) *model.Field {
	if idx < 0 || idx >= len(l.Fields) || l.Fields[idx].ClassField < 0 {
		return nil
	}
	return &l.Class.Fields[l.Fields[idx].ClassField]
}

// ClassGeomField returns the class field behind geometry column idx.
func (l *Layer) ClassGeomField(idx int) *model.Field {
	if idx < 0 || idx >= len(l.GeomFields) {
		return nil
	}
	return &l.Class.Fields[l.GeomFields[idx].ClassField]
}

// MatchXPath returns the XPath used to recognize elements of the layer.
// Repeated sequences carry a disambiguation suffix that is not part of
// the document structure.
func (l *Layer) MatchXPath() string {
	xpath := l.Class.XPath
	if l.Class.IsRepeatedSequence {
		if i := strings.Index(xpath, ";extra="); i >= 0 {
			xpath = xpath[:i]
		}
	}
	return xpath
}

// Category returns the metadata category of the layer.
func (l *Layer) Category() string {
	switch {
	case l.Class.IsJunction():
		return schema.CategoryJunction
	case l.Parent != nil:
		return schema.CategoryNested
	default:
		return schema.CategoryTopLevel
	}
}

// RemoveField deletes column idx. Primary and parent keys cannot be
// removed.
func (l *Layer) RemoveField(idx int) bool {
	if idx < 0 || idx >= len(l.Fields) ||
		idx == l.idField || idx == l.parentIDField {
		return false
	}
	l.Fields = slices.Delete(l.Fields, idx, idx+1)
	if l.idField > idx {
		l.idField--
	}
	if l.parentIDField > idx {
		l.parentIDField--
	}
	l.reindex()
	return true
}

// RemoveGeomField deletes geometry column idx.
func (l *Layer) RemoveGeomField(idx int) bool {
	if idx < 0 || idx >= len(l.GeomFields) {
		return false
	}
	l.GeomFields = slices.Delete(l.GeomFields, idx, idx+1)
	l.reindex()
	return true
}

// InsertField adds a column at position pos.
func (l *Layer) InsertField(pos int, def FieldDef) {
	pos = min(max(pos, 0), len(l.Fields))
	l.Fields = slices.Insert(l.Fields, pos, def)
	if l.idField >= pos {
		l.idField++
	}
	if l.parentIDField >= pos {
		l.parentIDField++
	}
	l.reindex()
}

// AddField appends a column and returns its index.
func (l *Layer) AddField(def FieldDef) int {
	l.Fields = append(l.Fields, def)
	l.reindex()
	return len(l.Fields) - 1
}
