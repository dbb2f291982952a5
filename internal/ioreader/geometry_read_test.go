package ioreader_test

import (
	"context"
	"strings"
	"testing"

	"github.com/gnames/gmlas/internal/ioreader"
	"github.com/gnames/gmlas/internal/iotesting"
	"github.com/gnames/gmlas/internal/ioxsd"
	"github.com/gnames/gmlas/pkg/analyzer"
	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/model"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var siteSchemas = iotesting.MemLoader{
	"main.xsd": `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
  xmlns:ex="http://example.com/ex"
  xmlns:gml="http://www.opengis.net/gml/3.2"
  targetNamespace="http://example.com/ex"
  elementFormDefault="qualified">
  <xs:import namespace="http://www.opengis.net/gml/3.2" schemaLocation="gml.xsd"/>
  <xs:element name="Site">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="name" type="xs:string"/>
        <xs:element name="location" type="gml:PointPropertyType" minOccurs="0"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`,
	"gml.xsd": `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
  xmlns:gml="http://www.opengis.net/gml/3.2"
  targetNamespace="http://www.opengis.net/gml/3.2"
  elementFormDefault="qualified">
  <xs:complexType name="PointPropertyType">
    <xs:sequence>
      <xs:any processContents="skip" minOccurs="0"/>
    </xs:sequence>
  </xs:complexType>
</xs:schema>`,
}

func siteGeomSet(t *testing.T, cfg *config.Config) *layer.Set {
	t.Helper()
	xs, err := ioxsd.New(siteSchemas).Load(
		context.Background(),
		[]model.URIFilename{{Location: "main.xsd"}},
		"",
	)
	require.Nil(t, err)
	a := analyzer.New(cfg.Analyzer, xs)
	classes, err := a.Analyze()
	require.Nil(t, err)
	return layer.NewSet(cfg, classes, a.Registry().URIToPrefix())
}

func siteGeomDoc(srs, pos string) string {
	return `<ex:Site xmlns:ex="http://example.com/ex"
  xmlns:gml="http://www.opengis.net/gml/3.2">
  <ex:name>Hill</ex:name>
  <ex:location><gml:Point srsName="` + srs + `"><gml:pos>` + pos +
		`</gml:pos></gml:Point></ex:location>
</ex:Site>`
}

func TestReadGeometry(t *testing.T) {
	tests := []struct {
		msg  string
		srs  string
		pos  string
		swap string
		res  orb.Point
	}{
		{"urn lat/long", "urn:ogc:def:crs:EPSG::4326", "48 2", "auto", orb.Point{2, 48}},
		{"http lat/long", "http://www.opengis.net/def/crs/EPSG/0/4258", "48 2", "auto", orb.Point{2, 48}},
		{"short form", "EPSG:4326", "2 48", "auto", orb.Point{2, 48}},
		{"projected", "urn:ogc:def:crs:EPSG::3857", "100 200", "auto", orb.Point{100, 200}},
		{"swap off", "urn:ogc:def:crs:EPSG::4326", "48 2", "no", orb.Point{48, 2}},
		{"swap forced", "EPSG:3857", "100 200", "yes", orb.Point{200, 100}},
	}

	for _, v := range tests {
		t.Run(v.msg, func(t *testing.T) {
			assert := assert.New(t)
			cfg := testConfig(config.OptReaderSwapCoordinates(v.swap))
			set := siteGeomSet(t, cfg)
			site := set.LayerByName("Site")
			require.NotNil(t, site)
			require.Len(t, site.GeomFields, 1)
			assert.Equal("location", site.GeomFields[0].Name)
			assert.Equal("", site.GeomFields[0].SRSName)

			doc := siteGeomDoc(v.srs, v.pos)
			fp, err := ioreader.New(cfg, set, strings.NewReader(doc)).
				RunFirstPass(context.Background())
			require.Nil(t, err)
			assert.True(fp.Done)
			assert.Equal(v.srs, site.GeomFields[0].SRSName)

			r := ioreader.New(cfg, set, strings.NewReader(doc))
			res, err := readAll(r)
			require.Nil(t, err)
			require.Len(t, res["Site"], 1)
			f := res["Site"][0]
			assert.Equal("Hill", value(f, "name"))
			assert.Equal(v.res, f.Geom(0))
			assert.Equal(0, r.Warnings())
		})
	}
}

func TestReadGeometryReprojection(t *testing.T) {
	cfg := testConfig()
	set := siteGeomSet(t, cfg)
	site := set.LayerByName("Site")
	require.NotNil(t, site)

	// the column gets the SRS of the first geometry
	first := siteGeomDoc("EPSG:4326", "2 48")
	_, err := ioreader.New(cfg, set, strings.NewReader(first)).
		RunFirstPass(context.Background())
	require.Nil(t, err)
	require.Equal(t, "EPSG:4326", site.GeomFields[0].SRSName)

	t.Run("supported", func(t *testing.T) {
		r := ioreader.New(cfg, set,
			strings.NewReader(siteGeomDoc("EPSG:3857", "0 0")))
		res, err := readAll(r)
		require.Nil(t, err)
		require.Len(t, res["Site"], 1)
		p, ok := res["Site"][0].Geom(0).(orb.Point)
		require.True(t, ok)
		assert.InDelta(t, 0, p[0], 1e-6)
		assert.InDelta(t, 0, p[1], 1e-6)
		assert.Equal(t, 0, r.Warnings())
	})

	t.Run("failed", func(t *testing.T) {
		r := ioreader.New(cfg, set,
			strings.NewReader(siteGeomDoc("EPSG:2180", "500000 300000")))
		res, err := readAll(r)
		require.Nil(t, err)
		require.Len(t, res["Site"], 1)
		f := res["Site"][0]
		assert.Equal(t, "Hill", value(f, "name"))
		assert.Nil(t, f.Geom(0))
		assert.Equal(t, 1, r.Warnings())
	})
}
