package ioxsd_test

import (
	"context"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/gnames/gmlas/internal/iotesting"
	"github.com/gnames/gmlas/internal/ioxsd"
	"github.com/gnames/gmlas/pkg/errcode"
	"github.com/gnames/gmlas/pkg/model"
	"github.com/gnames/gmlas/pkg/xsd"
	"github.com/gnames/gn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exNS = "http://example.com/ex"
const otherNS = "http://example.com/other"

var schemas = iotesting.MemLoader{
	"data/main.xsd": `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
  xmlns:ex="http://example.com/ex"
  xmlns:o="http://example.com/other"
  targetNamespace="http://example.com/ex"
  elementFormDefault="qualified">
  <xs:include schemaLocation="types.xsd"/>
  <xs:import namespace="http://example.com/other" schemaLocation="other/other.xsd"/>
  <xs:element name="Base" type="ex:BaseType" abstract="true"/>
  <xs:complexType name="BaseType">
    <xs:sequence>
      <xs:element name="name" type="xs:string"/>
    </xs:sequence>
    <xs:attribute name="id" type="xs:ID" use="required"/>
    <xs:attribute name="note" type="xs:string"/>
  </xs:complexType>
  <xs:element name="Road" type="ex:RoadType" substitutionGroup="ex:Base">
    <xs:annotation>
      <xs:documentation>A road.</xs:documentation>
    </xs:annotation>
  </xs:element>
  <xs:complexType name="RoadType">
    <xs:complexContent>
      <xs:extension base="ex:BaseType">
        <xs:sequence>
          <xs:element name="lane" type="ex:LaneType" maxOccurs="unbounded"/>
          <xs:element ref="o:thing" minOccurs="0"/>
          <xs:group ref="o:extra"/>
        </xs:sequence>
        <xs:attributeGroup ref="o:common"/>
      </xs:extension>
    </xs:complexContent>
  </xs:complexType>
  <xs:element name="Street" substitutionGroup="ex:Road"/>
  <xs:element name="Node" type="ex:NodeType"/>
  <xs:complexType name="NodeType">
    <xs:sequence>
      <xs:element name="child" type="ex:SubNodeType" minOccurs="0"/>
    </xs:sequence>
    <xs:attribute name="a" type="xs:string"/>
  </xs:complexType>
  <xs:complexType name="SubNodeType">
    <xs:complexContent>
      <xs:extension base="ex:NodeType">
        <xs:sequence>
          <xs:element name="extra" type="xs:string"/>
        </xs:sequence>
      </xs:extension>
    </xs:complexContent>
  </xs:complexType>
  <xs:element name="Measure">
    <xs:complexType>
      <xs:simpleContent>
        <xs:extension base="xs:double">
          <xs:attribute name="uom" type="xs:string" use="required"/>
        </xs:extension>
      </xs:simpleContent>
    </xs:complexType>
  </xs:element>
  <xs:element name="Text">
    <xs:complexType mixed="true"/>
  </xs:element>
  <xs:element name="Codes">
    <xs:simpleType>
      <xs:list itemType="xs:int"/>
    </xs:simpleType>
  </xs:element>
  <xs:element name="Anything"/>
</xs:schema>`,
	"data/types.xsd": `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
  elementFormDefault="qualified">
  <xs:complexType name="LaneType">
    <xs:sequence>
      <xs:element name="width" type="Width"/>
    </xs:sequence>
  </xs:complexType>
  <xs:simpleType name="Width">
    <xs:restriction base="xs:string">
      <xs:maxLength value="5"/>
    </xs:restriction>
  </xs:simpleType>
</xs:schema>`,
	"data/other/other.xsd": `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
  xmlns:o="http://example.com/other"
  targetNamespace="http://example.com/other">
  <xs:element name="thing" type="xs:int"/>
  <xs:group name="extra">
    <xs:choice>
      <xs:element name="x" type="xs:string"/>
      <xs:element name="y" type="xs:string"/>
    </xs:choice>
  </xs:group>
  <xs:attributeGroup name="common">
    <xs:attribute name="lang" type="xs:language"/>
    <xs:anyAttribute namespace="##other"/>
  </xs:attributeGroup>
</xs:schema>`,
}

func load(t *testing.T) (*xsd.Set, *ioxsd.Loader) {
	t.Helper()
	l := ioxsd.New(schemas)
	set, err := l.Load(context.Background(),
		[]model.URIFilename{{URI: exNS, Location: "main.xsd"}},
		"data/doc.gml",
	)
	require.NoError(t, err)
	return set, l
}

func ex(local string) xml.Name {
	return xml.Name{Space: exNS, Local: local}
}

func TestLoadDocuments(t *testing.T) {
	set, l := load(t)
	assert.Equal(t,
		[]string{"data/main.xsd", "data/types.xsd", "data/other/other.xsd"},
		l.Locations())
	assert.Equal(t, []string{exNS, otherNS}, set.Namespaces)
	assert.Equal(t, "ex", set.Prefixes[exNS])
	assert.Equal(t, "o", set.Prefixes[otherNS])
	assert.Len(t, set.ElementsOf(exNS), 8)
	assert.Len(t, set.ElementsOf(otherNS), 1)
}

func TestLoadPrefixes(t *testing.T) {
	loader := iotesting.MemLoader{
		"main.xsd": `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
  xmlns:rd="http://example.com/ex"
  targetNamespace="http://example.com/ex">
  <xs:import namespace="http://example.com/other" schemaLocation="other.xsd"/>
  <xs:element name="Road" type="xs:string"/>
</xs:schema>`,
		"other.xsd": `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
  xmlns:ex="http://example.com/ex"
  targetNamespace="http://example.com/other">
  <xs:element name="thing">
    <xs:complexType xmlns:o="http://example.com/other">
      <xs:attribute name="a" type="xs:string"/>
    </xs:complexType>
  </xs:element>
</xs:schema>`,
	}
	set, err := ioxsd.New(loader).Load(context.Background(),
		[]model.URIFilename{{Location: "main.xsd"}}, "")
	require.NoError(t, err)

	tests := []struct {
		msg, uri, prefix string
	}{
		{"first declaration wins", exNS, "rd"},
		{"nested declaration", otherNS, "o"},
		{"schema namespace", xsd.NamespaceXS, "xs"},
	}
	for _, v := range tests {
		assert.Equal(t, v.prefix, set.Prefixes[v.uri], v.msg)
	}
}

func TestLoadExtension(t *testing.T) {
	set, _ := load(t)
	road := set.Element(ex("Road"))
	require.NotNil(t, road)
	assert.Equal(t, "A road.", road.Annotation.Documentation)
	assert.Same(t, set.Element(ex("Base")), road.SubstitutionGroup)
	assert.True(t, road.SubstitutionGroup.Abstract)

	ct := road.ComplexType()
	require.NotNil(t, ct)
	assert.Equal(t, ex("RoadType"), ct.Name)
	assert.Equal(t, xsd.Extension, ct.Derivation)
	assert.Equal(t, xsd.ContentElementOnly, ct.ContentType)
	assert.True(t, ct.DerivesFrom(ex("BaseType")))

	mg := ct.ModelGroup()
	require.NotNil(t, mg)
	require.Len(t, mg.Particles, 2)
	base := mg.Particles[0].Term.(*xsd.ModelGroup)
	own := mg.Particles[1].Term.(*xsd.ModelGroup)
	require.Len(t, base.Particles, 1)
	require.Len(t, own.Particles, 3)

	lane := own.Particles[0].Term.(*xsd.Element)
	assert.Equal(t, ex("lane"), lane.Name)
	assert.Equal(t, xsd.Unbounded, own.Particles[0].MaxOccurs)

	width := lane.ComplexType().ModelGroup().Particles[0].Term.(*xsd.Element)
	assert.Equal(t, ex("width"), width.Name)
	name, length := width.SimpleType().BuiltinName()
	assert.Equal(t, "string", name)
	assert.Equal(t, 5, length)

	thing := own.Particles[1].Term.(*xsd.Element)
	assert.Same(t, set.Element(xml.Name{Space: otherNS, Local: "thing"}), thing)
	assert.Equal(t, 0, own.Particles[1].MinOccurs)

	grp := own.Particles[2].Term.(*xsd.ModelGroup)
	assert.Equal(t, xsd.Choice, grp.Compositor)
	assert.Equal(t, "extra", grp.Name.Local)
	x := grp.Particles[0].Term.(*xsd.Element)
	assert.Equal(t, "", x.Name.Space)

	var attrs []string
	for _, v := range ct.AttributeUses {
		attrs = append(attrs, v.Attribute.Name.Local)
	}
	assert.Equal(t, []string{"id", "note", "lang"}, attrs)
	assert.True(t, ct.AttributeUses[0].Required)
	require.NotNil(t, ct.AttributeWildcard)
	assert.Equal(t, "##other", ct.AttributeWildcard.Namespace)
}

func TestLoadSubstitutionType(t *testing.T) {
	set, _ := load(t)
	street := set.Element(ex("Street"))
	require.NotNil(t, street)
	assert.Same(t, set.Element(ex("Road")).Type, street.Type)

	anything := set.Element(ex("Anything"))
	require.NotNil(t, anything)
	assert.True(t, anything.ComplexType().IsAnyType())
}

func TestLoadRecursiveDerivation(t *testing.T) {
	set, _ := load(t)
	node := set.Element(ex("Node")).ComplexType()
	require.NotNil(t, node)
	child := node.ModelGroup().Particles[0].Term.(*xsd.Element)
	sub := child.ComplexType()
	require.NotNil(t, sub)

	mg := sub.ModelGroup()
	require.Len(t, mg.Particles, 2)
	assert.Same(t, node.Particle, mg.Particles[0])
	require.Len(t, sub.AttributeUses, 1)
	assert.Equal(t, "a", sub.AttributeUses[0].Attribute.Name.Local)
}

func TestLoadContentTypes(t *testing.T) {
	set, _ := load(t)

	measure := set.Element(ex("Measure")).ComplexType()
	assert.Equal(t, xsd.ContentSimple, measure.ContentType)
	name, _ := measure.SimpleContent.BuiltinName()
	assert.Equal(t, "double", name)
	require.Len(t, measure.AttributeUses, 1)

	text := set.Element(ex("Text")).ComplexType()
	assert.Equal(t, xsd.ContentSimple, text.ContentType)

	codes := set.Element(ex("Codes")).SimpleType()
	require.NotNil(t, codes)
	assert.Equal(t, xsd.List, codes.Variety)
	assert.Equal(t, "int", codes.ItemType.Name.Local)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		msg    string
		schema string
		code   gn.ErrorCode
		err    string
	}{
		{
			msg:    "not a schema",
			schema: `<root/>`,
			code:   errcode.SchemaParseError,
			err:    "not xs:schema",
		},
		{
			msg: "bad xml",
			schema: `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
<xs:element name="a">`,
			code: errcode.SchemaParseError,
			err:  "cannot parse",
		},
		{
			msg: "unresolved type",
			schema: `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
<xs:element name="a" type="Missing"/></xs:schema>`,
			code: errcode.SchemaReferenceError,
			err:  "type Missing is not declared",
		},
		{
			msg: "missing include",
			schema: `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
<xs:include schemaLocation="nope.xsd"/></xs:schema>`,
			code: errcode.SchemaLocationError,
			err:  "cannot open schema",
		},
	}

	for _, v := range tests {
		res := iotesting.MemLoader{"a.xsd": v.schema}
		_, err := ioxsd.New(res).Load(context.Background(),
			[]model.URIFilename{{Location: "a.xsd"}}, "")
		require.Error(t, err, v.msg)
		gnErr, ok := err.(*gn.Error)
		require.True(t, ok, v.msg)
		assert.Equal(t, v.code, gnErr.Code, v.msg)
		assert.Contains(t, gnErr.Err.Error(), v.err, v.msg)
	}

	_, err := ioxsd.New(iotesting.MemLoader{}).Load(context.Background(), nil, "doc.gml")
	require.Error(t, err)
	assert.Equal(t, errcode.SchemaNoSchemasError, err.(*gn.Error).Code)
}

func TestSniffSchemaLocations(t *testing.T) {
	doc := `<?xml version="1.0"?>
<ex:Collection xmlns:ex="http://example.com/ex"
  xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
  xsi:schemaLocation="http://example.com/ex main.xsd
    http://example.com/other other/other.xsd"
  xsi:noNamespaceSchemaLocation="plain.xsd">
  <ex:Road/>
</ex:Collection>`
	res, err := ioxsd.SniffSchemaLocations(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []model.URIFilename{
		{URI: exNS, Location: "main.xsd"},
		{URI: otherNS, Location: "other/other.xsd"},
		{Location: "plain.xsd"},
	}, res)

	res, err = ioxsd.SniffSchemaLocations(strings.NewReader(`<a/>`))
	require.NoError(t, err)
	assert.Empty(t, res)
}
