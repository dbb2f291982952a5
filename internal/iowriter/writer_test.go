package iowriter_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/gnames/gmlas/internal/ioconvert"
	"github.com/gnames/gmlas/internal/ioresource"
	"github.com/gnames/gmlas/internal/iosqlite"
	"github.com/gnames/gmlas/internal/iowriter"
	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/errcode"
	"github.com/gnames/gmlas/pkg/sink"
	"github.com/gnames/gn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sitesGML = filepath.Join("testdata", "sites.gml")

func newConfig(opts ...config.Option) *config.Config {
	cfg := config.New()
	cfg.Update(append([]config.Option{
		config.OptAnalyzerPGIdentifierLaundering(false),
	}, opts...))
	return cfg
}

// convert converts src into a SQLite file and returns its path.
func convert(t *testing.T, src string, metadata bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sites.sqlite")
	out, err := iosqlite.New(path, 10)
	require.Nil(t, err)

	cfg := newConfig(config.OptReaderExposeMetadataLayers(metadata))
	_, err = ioconvert.New(cfg, ioresource.New(cfg)).
		Convert(context.Background(), src, out)
	require.Nil(t, err)
	return path
}

func write(
	t *testing.T,
	path string,
	wcfg config.WriterConfig,
	opts ...iowriter.Option,
) (string, int) {
	t.Helper()
	w, err := iowriter.Open(context.Background(), wcfg, path, opts...)
	require.Nil(t, err)
	defer w.Close()

	var buf bytes.Buffer
	n, err := w.Write(context.Background(), &buf)
	require.Nil(t, err)
	return buf.String(), n
}

func parse(t *testing.T, s string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.Nil(t, doc.ReadFromString(s))
	require.NotNil(t, doc.Root())
	return doc.Root()
}

func errCode(t *testing.T, err error) gn.ErrorCode {
	t.Helper()
	var gnErr *gn.Error
	require.True(t, errors.As(err, &gnErr), "Error should be of type *gn.Error")
	return gnErr.Code
}

func TestWrite(t *testing.T) {
	assert := assert.New(t)
	path := convert(t, sitesGML, true)
	res, n := write(t, path, config.New().Writer)
	assert.Equal(2, n)
	assert.True(strings.HasPrefix(res, `<?xml version="1.0" encoding="UTF-8"?>`))

	root := parse(t, res)
	assert.Equal("ogr_gmlas:FeatureCollection", root.FullTag())
	assert.Equal(iowriter.NamespaceGMLAS, root.SelectAttrValue("xmlns:ogr_gmlas", ""))
	assert.Equal("http://example.com/ex", root.SelectAttrValue("xmlns:ex", ""))
	members := root.SelectElements("ogr_gmlas:featureMember")
	require.Len(t, members, 2)

	road := members[0].SelectElement("ex:Road")
	require.NotNil(t, road)
	assert.Equal("r1", road.SelectAttrValue("id", ""))
	assert.Equal("Main", road.SelectElement("ex:name").Text())

	var codes []string
	for _, v := range road.SelectElements("ex:code") {
		codes = append(codes, v.Text())
	}
	assert.Equal([]string{"A", "B"}, codes)

	lanes := road.SelectElements("ex:lane")
	require.Len(t, lanes, 2)
	assert.Equal("3.5", lanes[0].SelectElement("ex:width").Text())
	assert.Equal("bus", lanes[0].SelectElement("ex:kind").Text())
	assert.Equal("2.75", lanes[1].SelectElement("ex:width").Text())
	assert.Equal("bike", lanes[1].SelectElement("ex:kind").Text())

	pt := road.FindElement("ex:location/gml:Point")
	require.NotNil(t, pt)
	assert.Equal("urn:ogc:def:crs:EPSG::4326", pt.SelectAttrValue("srsName", ""))
	assert.NotEmpty(pt.SelectAttrValue("gml:id", ""))
	assert.Equal("48 2", pt.SelectElement("gml:pos").Text())

	road = members[1].SelectElement("ex:Road")
	require.NotNil(t, road)
	assert.Equal("r2", road.SelectAttrValue("id", ""))
	assert.Equal("Side & Back", road.SelectElement("ex:name").Text())
	assert.Nil(road.SelectElement("ex:code"))
	assert.Nil(road.SelectElement("ex:lane"))
	assert.Nil(road.SelectElement("ex:location"))
}

func TestWriteWFS2(t *testing.T) {
	assert := assert.New(t)
	path := convert(t, sitesGML, true)
	wcfg := newConfig(config.OptWriterWrapping("wfs2")).Writer
	res, n := write(t, path, wcfg, iowriter.OptTimestamp("2024-05-01T10:00:00Z"))
	assert.Equal(2, n)

	root := parse(t, res)
	assert.Equal("wfs:FeatureCollection", root.FullTag())
	assert.Equal(iowriter.NamespaceWFS2, root.SelectAttrValue("xmlns:wfs", ""))
	assert.Equal("2024-05-01T10:00:00Z", root.SelectAttrValue("timeStamp", ""))
	assert.Equal("unknown", root.SelectAttrValue("numberMatched", ""))
	assert.Equal("2", root.SelectAttrValue("numberReturned", ""))
	assert.Contains(root.SelectAttrValue("xsi:schemaLocation", ""),
		"http://schemas.opengis.net/wfs/2.0/wfs.xsd")
	assert.Len(root.SelectElements("wfs:member"), 2)
}

func TestWriteOptions(t *testing.T) {
	path := convert(t, sitesGML, true)

	t.Run("layers", func(t *testing.T) {
		tests := []struct {
			msg    string
			layers []string
			count  int
		}{
			{"top level", []string{"Road"}, 2},
			{"nested layer", []string{"Road_lane"}, 0},
			{"unknown layer", []string{"River"}, 0},
		}
		for _, v := range tests {
			_, n := write(t, path, config.New().Writer, iowriter.OptLayers(v.layers))
			assert.Equal(t, v.count, n, v.msg)
		}
	})

	t.Run("indent and comment", func(t *testing.T) {
		wcfg := newConfig(
			config.OptWriterIndentSize(0),
			config.OptWriterComment("roads -- export"),
		).Writer
		res, _ := write(t, path, wcfg)
		assert.Contains(t, res, "<!-- roads - - export -->")
		assert.Contains(t, res, "<ogr_gmlas:featureMember><ex:Road")
		parse(t, res)
	})

	t.Run("indent", func(t *testing.T) {
		wcfg := newConfig(config.OptWriterIndentSize(4)).Writer
		res, _ := write(t, path, wcfg)
		assert.Contains(t, res, "\n    <ogr_gmlas:featureMember>\n        <ex:Road")
	})
}

func TestWriteRoundTrip(t *testing.T) {
	assert := assert.New(t)
	path := convert(t, sitesGML, true)
	res, _ := write(t, path, config.New().Writer)

	gml := filepath.Join(t.TempDir(), "written.gml")
	require.Nil(t, os.WriteFile(gml, []byte(res), 0644))

	cfg := newConfig(config.OptReaderSchemaFiles(
		[]string{filepath.Join("testdata", "sites.xsd")},
	))
	out := sink.NewMemory(false)
	stats, err := ioconvert.New(cfg, ioresource.New(cfg)).
		Convert(context.Background(), gml, out)
	require.Nil(t, err)
	assert.Equal(map[string]int{"Road": 2, "Road_lane": 2}, stats.PerLayer)
}

func TestOpenErrors(t *testing.T) {
	t.Run("no metadata", func(t *testing.T) {
		path := convert(t, sitesGML, false)
		_, err := iowriter.Open(context.Background(), config.New().Writer, path)
		require.NotNil(t, err)
		assert.Equal(t, errcode.WriterNoMetadataError, errCode(t, err))
	})

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "none.sqlite")
		_, err := iowriter.Open(context.Background(), config.New().Writer, path)
		require.NotNil(t, err)
		assert.Equal(t, errcode.WriterOpenError, errCode(t, err))
		_, err = os.Stat(path)
		assert.True(t, errors.Is(err, os.ErrNotExist), "file is not created")
	})
}
