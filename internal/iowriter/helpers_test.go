package iowriter

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelSteps(t *testing.T) {
	tests := []struct {
		msg, base, xpath string
		steps            []string
		ok               bool
	}{
		{"same", "ex:A", "ex:A", nil, true},
		{"child", "ex:A", "ex:A/ex:b", []string{"ex:b"}, true},
		{"attr", "ex:A", "ex:A/ex:b/@kind", []string{"ex:b", "@kind"}, true},
		{"outside", "ex:A", "ex:B/ex:b", nil, false},
		{"prefix only", "ex:A", "ex:AB/ex:b", nil, false},
	}
	for _, v := range tests {
		steps, ok := relSteps(v.base, v.xpath)
		assert.Equal(t, v.ok, ok, v.msg)
		assert.Equal(t, v.steps, steps, v.msg)
	}
}

func TestValues(t *testing.T) {
	tests := []struct {
		msg   string
		field fieldMeta
		val   any
		res   []string
	}{
		{"string", fieldMeta{typ: "string"}, "x", []string{"x"}},
		{"integer", fieldMeta{typ: "int"}, int64(7), []string{"7"}},
		{"boolean", fieldMeta{typ: "boolean"}, int64(1), []string{"true"}},
		{"double", fieldMeta{typ: "double"}, 2.5, []string{"2.5"}},
		{"hex", fieldMeta{typ: "hexBinary"}, []byte{0xca, 0xfe}, []string{"CAFE"}},
		{"base64", fieldMeta{typ: "base64Binary"}, []byte("hi"), []string{"aGk="}},
		{"array", fieldMeta{isList: true, maxOccurs: 5}, `["a","b"]`, []string{"a", "b"}},
		{"numbers", fieldMeta{isList: true, maxOccurs: 1}, `[1,2.5]`, []string{"1", "2.5"}},
		{"bad json", fieldMeta{isList: true}, "a b", []string{"a b"}},
	}
	for _, v := range tests {
		assert.Equal(t, v.res, values(&v.field, v.val), v.msg)
	}
}

func TestWriteValue(t *testing.T) {
	w := &Writer{ns: map[string]string{
		"xsi": "http://www.w3.org/2001/XMLSchema-instance",
	}}

	tests := []struct {
		msg   string
		field fieldMeta
		val   any
		res   string
	}{
		{"text", fieldMeta{xpath: "ex:A/ex:b"}, "x", "<ex:A><ex:b>x</ex:b></ex:A>"},
		{"own text", fieldMeta{xpath: "ex:A"}, "x", "<ex:A>x</ex:A>"},
		{"attribute", fieldMeta{xpath: "ex:A/ex:b/@kind"}, "k",
			`<ex:A><ex:b kind="k"/></ex:A>`},
		{"list", fieldMeta{xpath: "ex:A/ex:b", isList: true, maxOccurs: 1},
			`["1","2"]`, "<ex:A><ex:b>1 2</ex:b></ex:A>"},
		{"array", fieldMeta{xpath: "ex:A/ex:b", isList: true, maxOccurs: 3},
			`["1","2"]`, "<ex:A><ex:b>1</ex:b><ex:b>2</ex:b></ex:A>"},
		{"nil", fieldMeta{xpath: "ex:A/ex:b/@xsi:nil", typ: "boolean"}, int64(1),
			`<ex:A><ex:b xsi:nil="true"/></ex:A>`},
		{"not nil", fieldMeta{xpath: "ex:A/ex:b/@xsi:nil", typ: "boolean"}, int64(0),
			`<ex:A><ex:b/></ex:A>`},
		{"any attributes", fieldMeta{xpath: "ex:A/@*", isList: false},
			`{"a":"1","b":"2"}`, `<ex:A a="1" b="2"/>`},
		{"any type", fieldMeta{xpath: "ex:A/ex:b", typ: "anyType"},
			"<ex:c>1</ex:c>", "<ex:A><ex:b><ex:c>1</ex:c></ex:b></ex:A>"},
		{"null", fieldMeta{xpath: "ex:A/ex:b"}, nil, "<ex:A/>"},
	}
	for _, v := range tests {
		doc := etree.NewDocument()
		e := doc.CreateElement("ex:A")
		steps, ok := relSteps("ex:A", v.field.xpath)
		require.True(t, ok, v.msg)
		w.writeValue(e, steps, &v.field, v.val)
		res, err := doc.WriteToString()
		require.Nil(t, err)
		assert.Equal(t, v.res, res, v.msg)
	}
}

func TestEnsurePath(t *testing.T) {
	doc := etree.NewDocument()
	e := doc.CreateElement("ex:A")
	b := ensurePath(e, []string{"ex:b", "ex:c"})
	assert.Equal(t, "ex:c", b.FullTag())
	same := ensurePath(e, []string{"ex:b", "ex:c"})
	assert.Same(t, b, same)
	assert.Len(t, e.ChildElements(), 1)
}

func TestGMLGeometry(t *testing.T) {
	tests := []struct {
		msg  string
		geom orb.Geometry
		res  string
	}{
		{"point", orb.Point{1, 2},
			`<gml:Point gml:id="geom.1"><gml:pos>1 2</gml:pos></gml:Point>`},
		{"line", orb.LineString{{0, 0}, {1.5, 1}},
			`<gml:LineString gml:id="geom.1"><gml:posList>0 0 1.5 1</gml:posList></gml:LineString>`},
		{"polygon", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
			`<gml:Polygon gml:id="geom.1"><gml:exterior><gml:LinearRing>` +
				`<gml:posList>0 0 1 0 1 1 0 0</gml:posList></gml:LinearRing>` +
				`</gml:exterior></gml:Polygon>`},
		{"multi point", orb.MultiPoint{{1, 2}},
			`<gml:MultiPoint gml:id="geom.1"><gml:pointMember>` +
				`<gml:Point gml:id="geom.2"><gml:pos>1 2</gml:pos></gml:Point>` +
				`</gml:pointMember></gml:MultiPoint>`},
	}
	for _, v := range tests {
		w := &Writer{gmlPrefix: "gml"}
		doc := etree.NewDocument()
		w.gmlGeometry(&doc.Element, v.geom)
		res, err := doc.WriteToString()
		require.Nil(t, err)
		assert.Equal(t, v.res, res, v.msg)
	}
}
