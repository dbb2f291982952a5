package analyzer_test

import (
	"context"
	"testing"

	"github.com/gnames/gmlas/internal/iotesting"
	"github.com/gnames/gmlas/internal/ioxsd"
	"github.com/gnames/gmlas/pkg/analyzer"
	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
  xmlns:ex="http://example.com/ex"
  targetNamespace="http://example.com/ex"
  elementFormDefault="qualified">
`

const roadXSD = header + `
  <xs:element name="Road">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="name" type="xs:string"/>
        <xs:element name="code" type="xs:string" minOccurs="0" maxOccurs="unbounded"/>
        <xs:element name="lane" minOccurs="0" maxOccurs="unbounded">
          <xs:complexType>
            <xs:sequence>
              <xs:element name="width" type="xs:double"/>
              <xs:element name="kind" type="xs:string"/>
            </xs:sequence>
          </xs:complexType>
        </xs:element>
        <xs:element name="surface" minOccurs="0">
          <xs:complexType>
            <xs:sequence>
              <xs:element name="material" type="xs:string"/>
              <xs:element name="thickness" type="xs:int"/>
            </xs:sequence>
          </xs:complexType>
        </xs:element>
        <xs:element name="closed" type="xs:boolean" minOccurs="0" nillable="true"/>
      </xs:sequence>
      <xs:attribute name="id" type="xs:ID"/>
    </xs:complexType>
  </xs:element>
</xs:schema>`

const sharedXSD = header + `
  <xs:complexType name="InfoType">
    <xs:sequence>
      <xs:element name="detail">
        <xs:complexType>
          <xs:sequence>
            <xs:element name="code" type="xs:string" maxOccurs="unbounded"/>
          </xs:sequence>
        </xs:complexType>
      </xs:element>
    </xs:sequence>
  </xs:complexType>
  <xs:element name="A">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="info" type="ex:InfoType"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
  <xs:element name="B">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="info" type="ex:InfoType"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`

const partsXSD = header + `
  <xs:element name="Car">
    <xs:complexType>
      <xs:sequence>
        <xs:element ref="ex:AbstractPart" maxOccurs="unbounded"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
  <xs:element name="Bike">
    <xs:complexType>
      <xs:sequence>
        <xs:element ref="ex:AbstractPart"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
  <xs:element name="AbstractPart" type="ex:PartType" abstract="true"/>
  <xs:element name="Wheel" type="ex:PartType" substitutionGroup="ex:AbstractPart"/>
  <xs:element name="Door" type="ex:PartType" substitutionGroup="ex:AbstractPart"/>
  <xs:complexType name="PartType">
    <xs:sequence>
      <xs:element name="label" type="xs:string"/>
    </xs:sequence>
  </xs:complexType>
</xs:schema>`

const treeXSD = header + `
  <xs:element name="Tree">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="node" type="ex:NodeType" minOccurs="0" maxOccurs="unbounded"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
  <xs:complexType name="NodeType">
    <xs:sequence>
      <xs:element name="label" type="xs:string"/>
      <xs:element name="node" type="ex:NodeType" minOccurs="0" maxOccurs="unbounded"/>
    </xs:sequence>
  </xs:complexType>
</xs:schema>`

const collisionXSD = header + `
  <xs:element name="Thing">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="name" type="xs:string"/>
        <xs:element name="Name" type="xs:string"/>
      </xs:sequence>
      <xs:attribute name="name" type="xs:string"/>
    </xs:complexType>
  </xs:element>
</xs:schema>`

func analyze(
	t *testing.T,
	schema string,
	opts func(*config.AnalyzerConfig),
) []*model.FeatureClass {
	t.Helper()
	loader := iotesting.MemLoader{"main.xsd": schema}
	set, err := ioxsd.New(loader).Load(
		context.Background(),
		[]model.URIFilename{{Location: "main.xsd"}},
		"",
	)
	require.Nil(t, err)

	cfg := config.New().Analyzer
	cfg.PGIdentifierLaundering = false
	if opts != nil {
		opts(&cfg)
	}
	res, err := analyzer.New(cfg, set).Analyze()
	require.Nil(t, err)
	return res
}

func findClass(classes []*model.FeatureClass, xpath string) *model.FeatureClass {
	var res *model.FeatureClass
	for _, v := range classes {
		v.Walk(func(fc *model.FeatureClass) {
			if res == nil && fc.XPath == xpath {
				res = fc
			}
		})
	}
	return res
}

func findField(fc *model.FeatureClass, name string) *model.Field {
	for i := range fc.Fields {
		if fc.Fields[i].Name == name {
			return &fc.Fields[i]
		}
	}
	return nil
}

func fieldNames(fc *model.FeatureClass) []string {
	res := make([]string, len(fc.Fields))
	for i := range fc.Fields {
		res[i] = fc.Fields[i].Name
	}
	return res
}

func TestAnalyzeFlattening(t *testing.T) {
	classes := analyze(t, roadXSD, nil)
	require.Len(t, classes, 1)

	road := classes[0]
	assert.Equal(t, "Road", road.Name)
	assert.Equal(t, "ex:Road", road.XPath)
	assert.True(t, road.IsTopLevelElt)
	assert.Equal(t, []string{
		"id", "name", "code", "lane", "surface_material",
		"surface_thickness", "closed", "closed_nil",
	}, fieldNames(road))

	tests := []struct {
		msg         string
		name        string
		xpath       string
		tp          model.FieldType
		cat         model.Category
		array       bool
		notNullable bool
	}{
		{"attribute", "id", "ex:Road/@id", model.FieldTypeID, model.Regular, false, false},
		{"required", "name", "ex:Road/ex:name", model.FieldTypeString, model.Regular, false, true},
		{"array", "code", "ex:Road/ex:code", model.FieldTypeString, model.Regular, true, false},
		{"child", "lane", "ex:Road/ex:lane", model.FieldTypeString, model.PathToChildElementNoLink, false, false},
		{"flattened", "surface_material", "ex:Road/ex:surface/ex:material", model.FieldTypeString, model.Regular, false, false},
		{"flattened int", "surface_thickness", "ex:Road/ex:surface/ex:thickness", model.FieldTypeInt32, model.Regular, false, false},
		{"nil", "closed_nil", "ex:Road/ex:closed/@xsi:nil", model.FieldTypeBoolean, model.Regular, false, false},
	}
	for _, v := range tests {
		f := findField(road, v.name)
		require.NotNil(t, f, v.msg)
		assert.Equal(t, v.xpath, f.XPath, v.msg)
		assert.Equal(t, v.tp, f.Type, v.msg)
		assert.Equal(t, v.cat, f.Category, v.msg)
		assert.Equal(t, v.array, f.Array, v.msg)
		assert.Equal(t, v.notNullable, f.NotNullable, v.msg)
	}

	code := findField(road, "code")
	require.NotNil(t, code)
	assert.Equal(t, 0, code.MinOccurs)
	assert.Equal(t, model.Unbounded, code.MaxOccurs)

	require.Len(t, road.Nested, 1)
	lane := road.Nested[0]
	assert.Equal(t, "Road_lane", lane.Name)
	assert.Equal(t, "ex:Road/ex:lane", lane.XPath)
	assert.Equal(t, []string{"width", "kind"}, fieldNames(lane))
	assert.Equal(t, model.FieldTypeDouble, lane.Fields[0].Type)
	assert.Equal(t, "ex:Road/ex:lane", findField(road, "lane").RelatedClassXPath)
}

func TestAnalyzeNoArrays(t *testing.T) {
	classes := analyze(t, roadXSD, func(cfg *config.AnalyzerConfig) {
		cfg.UseArrays = false
	})
	road := findClass(classes, "ex:Road")
	require.NotNil(t, road)

	f := findField(road, "code")
	require.NotNil(t, f)
	assert.Equal(t, model.PathToChildElementNoLink, f.Category)

	code := findClass(classes, "ex:Road/ex:code")
	require.NotNil(t, code)
	assert.Equal(t, "Road_code", code.Name)
	assert.Equal(t, []string{"value"}, fieldNames(code))
	assert.True(t, code.Fields[0].NotNullable)
}

func TestAnalyzeSharedElement(t *testing.T) {
	classes := analyze(t, sharedXSD, nil)
	require.Len(t, classes, 3)
	assert.Equal(t, "ex:A", classes[0].XPath)
	assert.Equal(t, "ex:B", classes[1].XPath)

	detail := classes[2]
	assert.Equal(t, "ex:detail", detail.XPath)
	assert.Equal(t, "detail", detail.Name)
	assert.False(t, detail.IsTopLevelElt)
	assert.Equal(t, []string{"code"}, fieldNames(detail))

	for _, v := range classes[:2] {
		f := findField(v, "info_detail_pkid")
		require.NotNil(t, f, v.XPath)
		assert.Equal(t, model.PathToChildElementWithLink, f.Category)
		assert.Equal(t, v.XPath+"/ex:info/ex:detail", f.XPath)
		assert.Equal(t, "ex:detail", f.RelatedClassXPath)
	}
}

func TestAnalyzeSubstitutionGroup(t *testing.T) {
	classes := analyze(t, partsXSD, nil)

	var names []string
	for _, v := range classes {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{
		"Car_AbstractPart_Wheel", "Car_AbstractPart_Door",
		"Car", "Bike", "Wheel", "Door",
	}, names)

	require.Len(t, classes, 6)
	junction := classes[0]
	assert.True(t, junction.IsJunction())
	assert.Equal(t, "ex:Car/ex:AbstractPart|ex:Wheel", junction.XPath)
	assert.Equal(t, "ex:Car", junction.ParentXPath)
	assert.Equal(t, "ex:Wheel", junction.ChildXPath)

	car := findClass(classes, "ex:Car")
	require.NotNil(t, car)
	f := findField(car, "AbstractPart_Wheel")
	require.NotNil(t, f)
	assert.Equal(t, model.PathToChildElementWithJunctionTable, f.Category)
	assert.Equal(t, "ex:Car/ex:Wheel", f.XPath)
	assert.Equal(t, "ex:Car/ex:AbstractPart", f.AbstractElementXPath)

	bike := findClass(classes, "ex:Bike")
	require.NotNil(t, bike)
	assert.Equal(t, []string{
		"AbstractPart_Wheel_pkid", "AbstractPart_Door_pkid",
	}, fieldNames(bike))
	assert.Equal(t, "ex:Door", bike.Fields[1].RelatedClassXPath)
}

func TestAnalyzeChildrenConstraints(t *testing.T) {
	classes := analyze(t, partsXSD, func(cfg *config.AnalyzerConfig) {
		cfg.Namespaces = map[string]string{"my": "http://example.com/ex"}
		cfg.ChildrenConstraints = []config.ChildrenConstraint{
			{XPath: "my:Bike/my:AbstractPart", Children: []string{"my:Door"}},
		}
	})
	bike := findClass(classes, "ex:Bike")
	require.NotNil(t, bike)
	assert.Equal(t, []string{"AbstractPart_pkid"}, fieldNames(bike))
	assert.Equal(t, "ex:Door", bike.Fields[0].RelatedClassXPath)
}

func TestAnalyzeRecursion(t *testing.T) {
	classes := analyze(t, treeXSD, nil)

	tree := findClass(classes, "ex:Tree")
	require.NotNil(t, tree)
	node := findClass(classes, "ex:Tree/ex:node")
	require.NotNil(t, node)
	assert.Equal(t, "Tree_node", node.Name)

	f := findField(node, "node_node")
	require.NotNil(t, f)
	assert.Equal(t, model.PathToChildElementWithJunctionTable, f.Category)
	assert.Equal(t, "ex:node", f.RelatedClassXPath)

	top := findClass(classes, "ex:node")
	require.NotNil(t, top)
	assert.False(t, top.IsTopLevelElt)
	assert.Equal(t, "label", top.Fields[0].Name)
}

func TestAnalyzeIgnored(t *testing.T) {
	classes := analyze(t, roadXSD, func(cfg *config.AnalyzerConfig) {
		cfg.Namespaces = map[string]string{"r": "http://example.com/ex"}
		cfg.IgnoredXPaths = []config.IgnoredXPath{
			{XPath: "r:lane"},
			{XPath: "@id"},
		}
	})
	road := findClass(classes, "ex:Road")
	require.NotNil(t, road)
	assert.Nil(t, findField(road, "lane"))
	assert.Nil(t, findField(road, "id"))
	assert.Empty(t, road.Nested)
}

func TestAnalyzeNameCollisions(t *testing.T) {
	t.Run("case sensitive", func(t *testing.T) {
		classes := analyze(t, collisionXSD, func(cfg *config.AnalyzerConfig) {
			cfg.CaseInsensitiveIdentifier = false
		})
		assert.Equal(t, []string{"name_attr", "name", "Name"},
			fieldNames(classes[0]))
	})

	t.Run("laundered", func(t *testing.T) {
		classes := analyze(t, collisionXSD, func(cfg *config.AnalyzerConfig) {
			cfg.PGIdentifierLaundering = true
		})
		assert.Equal(t, "thing", classes[0].Name)
		assert.Equal(t, []string{"name_attr", "name1", "name2"},
			fieldNames(classes[0]))
	})
}

func TestAnalyzeMaxLength(t *testing.T) {
	classes := analyze(t, roadXSD, func(cfg *config.AnalyzerConfig) {
		cfg.IdentifierMaxLength = 12
	})
	road := findClass(classes, "ex:Road")
	require.NotNil(t, road)
	for _, v := range road.Fields {
		assert.LessOrEqual(t, len(v.Name), 12, v.Name)
	}
	assert.NotNil(t, findField(road, "sur_material"))
	assert.NotNil(t, findField(road, "su_thickness"))
}

func TestAnalyzeDeclaredPrefixes(t *testing.T) {
	schema := `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
  xmlns:rd="http://example.com/ex"
  targetNamespace="http://example.com/ex"
  elementFormDefault="qualified">
  <xs:element name="Road">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="name" type="xs:string"/>
      </xs:sequence>
      <xs:attribute xmlns:o="http://example.com/other" name="kind" type="xs:string"/>
    </xs:complexType>
  </xs:element>
</xs:schema>`
	loader := iotesting.MemLoader{"main.xsd": schema}
	set, err := ioxsd.New(loader).Load(
		context.Background(),
		[]model.URIFilename{{Location: "main.xsd"}},
		"",
	)
	require.Nil(t, err)

	cfg := config.New().Analyzer
	a := analyzer.New(cfg, set)
	classes, err := a.Analyze()
	require.Nil(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "rd:Road", classes[0].XPath)
	f := findField(classes[0], "name")
	require.NotNil(t, f)
	assert.Equal(t, "rd:Road/rd:name", f.XPath)

	prefixes := a.Registry().URIToPrefix()
	assert.Equal(t, "rd", prefixes["http://example.com/ex"])
	assert.Equal(t, "o", prefixes["http://example.com/other"])
}

func TestAnalyzeOptionalElementAttributes(t *testing.T) {
	schema := header + `
  <xs:element name="Doc">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="meta" minOccurs="0">
          <xs:complexType>
            <xs:sequence>
              <xs:element name="text" type="xs:string"/>
            </xs:sequence>
            <xs:attribute name="lang" type="xs:string" use="required"/>
          </xs:complexType>
        </xs:element>
        <xs:element name="info">
          <xs:complexType>
            <xs:sequence>
              <xs:element name="text" type="xs:string"/>
            </xs:sequence>
            <xs:attribute name="code" type="xs:string" use="required"/>
          </xs:complexType>
        </xs:element>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`
	classes := analyze(t, schema, nil)
	doc := findClass(classes, "ex:Doc")
	require.NotNil(t, doc)

	tests := []struct {
		msg         string
		name        string
		xpath       string
		minOccurs   int
		notNullable bool
	}{
		{"optional element", "meta_lang", "ex:Doc/ex:meta/@lang", 0, false},
		{"required element", "info_code", "ex:Doc/ex:info/@code", 1, true},
	}
	for _, v := range tests {
		f := findField(doc, v.name)
		require.NotNil(t, f, v.msg)
		assert.Equal(t, v.xpath, f.XPath, v.msg)
		assert.Equal(t, v.minOccurs, f.MinOccurs, v.msg)
		assert.Equal(t, v.notNullable, f.NotNullable, v.msg)
	}
}
