package ioreader

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gmlElement(t *testing.T, s string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	err := doc.ReadFromString(s)
	require.Nil(t, err)
	require.NotNil(t, doc.Root())
	return doc.Root()
}

func TestParseGML(t *testing.T) {
	tests := []struct {
		msg string
		gml string
		res orb.Geometry
	}{
		{
			"point pos",
			`<gml:Point><gml:pos>1 2</gml:pos></gml:Point>`,
			orb.Point{1, 2},
		},
		{
			"point coordinates",
			`<gml:Point><gml:coordinates>1,2</gml:coordinates></gml:Point>`,
			orb.Point{1, 2},
		},
		{
			"linestring 3D",
			`<gml:LineString srsDimension="3">
			  <gml:posList>0 0 5 1 1 5</gml:posList>
			</gml:LineString>`,
			orb.LineString{{0, 0}, {1, 1}},
		},
		{
			"polygon with hole",
			`<gml:Polygon>
			  <gml:exterior><gml:LinearRing>
			    <gml:posList>0 0 10 0 10 10 0 10 0 0</gml:posList>
			  </gml:LinearRing></gml:exterior>
			  <gml:interior><gml:LinearRing>
			    <gml:posList>1 1 2 1 2 2 1 1</gml:posList>
			  </gml:LinearRing></gml:interior>
			</gml:Polygon>`,
			orb.Polygon{
				{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
				{{1, 1}, {2, 1}, {2, 2}, {1, 1}},
			},
		},
		{
			"multipoint",
			`<gml:MultiPoint>
			  <gml:pointMember><gml:Point><gml:pos>1 2</gml:pos></gml:Point></gml:pointMember>
			  <gml:pointMember><gml:Point><gml:pos>3 4</gml:pos></gml:Point></gml:pointMember>
			</gml:MultiPoint>`,
			orb.MultiPoint{{1, 2}, {3, 4}},
		},
		{
			"curve segments",
			`<gml:Curve><gml:segments>
			  <gml:LineStringSegment><gml:posList>0 0 1 1</gml:posList></gml:LineStringSegment>
			  <gml:LineStringSegment><gml:posList>1 1 2 0</gml:posList></gml:LineStringSegment>
			</gml:segments></gml:Curve>`,
			orb.LineString{{0, 0}, {1, 1}, {2, 0}},
		},
		{
			"envelope",
			`<gml:Envelope>
			  <gml:lowerCorner>0 0</gml:lowerCorner>
			  <gml:upperCorner>2 3</gml:upperCorner>
			</gml:Envelope>`,
			orb.Polygon{{{0, 0}, {2, 0}, {2, 3}, {0, 3}, {0, 0}}},
		},
	}

	for _, v := range tests {
		g, err := parseGML(gmlElement(t, v.gml))
		require.Nil(t, err, v.msg)
		assert.Equal(t, v.res, g, v.msg)
	}
}

func TestParseGMLErrors(t *testing.T) {
	tests := []struct {
		msg string
		gml string
	}{
		{"unsupported", `<gml:Spline/>`},
		{"no coordinates", `<gml:Point/>`},
		{"bad number", `<gml:Point><gml:pos>1 a</gml:pos></gml:Point>`},
	}
	for _, v := range tests {
		_, err := parseGML(gmlElement(t, v.gml))
		assert.NotNil(t, err, v.msg)
	}
}

func TestEPSGCode(t *testing.T) {
	tests := []struct {
		srs       string
		code      int
		authority bool
	}{
		{"EPSG:4326", 4326, false},
		{"urn:ogc:def:crs:EPSG::4326", 4326, true},
		{"urn:x-ogc:def:crs:EPSG:6.6:2180", 2180, true},
		{"http://www.opengis.net/def/crs/EPSG/0/3857", 3857, true},
		{"http://www.opengis.net/gml/srs/epsg.xml#4258", 4258, false},
		{"WGS84", 0, false},
	}
	for _, v := range tests {
		code, authority := epsgCode(v.srs)
		assert.Equal(t, v.code, code, v.srs)
		assert.Equal(t, v.authority, authority, v.srs)
	}

	assert.True(t, isLatLongCode(4326))
	assert.True(t, isLatLongCode(31468))
	assert.False(t, isLatLongCode(3857))
}

func TestReproject(t *testing.T) {
	g, ok := reproject(orb.Point{0, 0}, "EPSG:4326", "EPSG:900913")
	require.True(t, ok)
	p := g.(orb.Point)
	assert.InDelta(t, 0, p[0], 1e-6)
	assert.InDelta(t, 0, p[1], 1e-6)

	g, ok = reproject(orb.Point{1, 2}, "EPSG:4326", "urn:ogc:def:crs:EPSG::4326")
	require.True(t, ok)
	assert.Equal(t, orb.Point{1, 2}, g)

	_, ok = reproject(orb.Point{1, 2}, "EPSG:4326", "EPSG:2180")
	assert.False(t, ok)
}
