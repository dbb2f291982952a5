package ioreader_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gnames/gmlas/internal/ioreader"
	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/layer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const obsXSD = header + `
  <xs:element name="Obs">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="name" type="xs:string"/>
        <xs:element name="result" type="xs:anyType"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`

const obsHead = `<ex:Obs xmlns:ex="http://example.com/ex"
  xmlns:swe="http://www.opengis.net/swe/2.0">
  <ex:name>station</ex:name>
  <ex:result>`

const obsTail = `</ex:result>
</ex:Obs>`

func TestSWEDataRecord(t *testing.T) {
	assert := assert.New(t)
	cfg := testConfig(config.OptReaderRemoveUnusedLayers(true))
	set := layerSet(t, cfg, obsXSD)
	doc := obsHead +
		`<swe:DataRecord>` +
		`<swe:field name="Temp"><swe:Quantity><swe:value>12.5</swe:value></swe:Quantity></swe:field>` +
		`<swe:field name="count"><swe:Count><swe:value>3</swe:value></swe:Count></swe:field>` +
		`<swe:field name="note"><swe:Text><swe:value>fine</swe:value></swe:Text></swe:field>` +
		`</swe:DataRecord>` + obsTail

	r := ioreader.New(cfg, set, strings.NewReader(doc))
	fp, err := r.RunFirstPass(context.Background())
	require.Nil(t, err)
	assert.Equal(3, fp.AddedFields)

	obs := set.LayerByName("Obs")
	require.NotNil(t, obs)
	var names []string
	for _, v := range obs.Fields {
		names = append(names, v.Name)
	}
	assert.Equal([]string{
		layer.PKIDName, "name", "result_anyAttributes", "result",
		"temp_value", "count_value", "note_value",
	}, names)
	assert.Equal(layer.Real, obs.Fields[fieldIdx(obs, "temp_value")].Type)
	assert.Equal(layer.Integer, obs.Fields[fieldIdx(obs, "count_value")].Type)

	res, err := readAll(ioreader.New(cfg, set, strings.NewReader(doc)))
	require.Nil(t, err)
	require.Len(t, res["Obs"], 1)
	f := res["Obs"][0]
	assert.Equal(12.5, value(f, "temp_value"))
	assert.Equal(int32(3), value(f, "count_value"))
	assert.Equal("fine", value(f, "note_value"))
	result, _ := value(f, "result").(string)
	assert.True(strings.HasPrefix(result, "<swe:DataRecord>"), result)
}

func TestSWEDataArray(t *testing.T) {
	assert := assert.New(t)
	cfg := testConfig(config.OptReaderRemoveUnusedLayers(true))
	set := layerSet(t, cfg, obsXSD)
	doc := obsHead +
		`<swe:DataArray>` +
		`<swe:elementType name="components"><swe:DataRecord>` +
		`<swe:field name="time"><swe:Time/></swe:field>` +
		`<swe:field name="level"><swe:Quantity/></swe:field>` +
		`</swe:DataRecord></swe:elementType>` +
		`<swe:encoding><swe:TextEncoding tokenSeparator="," blockSeparator=" "/></swe:encoding>` +
		`<swe:values>2016-09-01T00:00:00Z,1.5 2016-09-02T00:00:00Z,2.5</swe:values>` +
		`</swe:DataArray>` + obsTail

	r := ioreader.New(cfg, set, strings.NewReader(doc))
	fp, err := r.RunFirstPass(context.Background())
	require.Nil(t, err)
	assert.Equal([]string{"Obs_result"}, fp.AddedLayers)

	arr := set.LayerByName("Obs_result")
	require.NotNil(t, arr)
	assert.Equal("parent_ogr_pkid", arr.Fields[arr.ParentIDField()].Name)

	res, err := readAll(ioreader.New(cfg, set, strings.NewReader(doc)))
	require.Nil(t, err)
	require.Len(t, res["Obs"], 1)
	obsID := value(res["Obs"][0], layer.PKIDName)

	rows := res["Obs_result"]
	require.Len(t, rows, 2)
	tests := []struct {
		day   int
		level float64
	}{
		{1, 1.5},
		{2, 2.5},
	}
	for i, v := range tests {
		ts, ok := value(rows[i], "time").(time.Time)
		require.True(t, ok)
		assert.True(ts.Equal(time.Date(2016, 9, v.day, 0, 0, 0, 0, time.UTC)))
		assert.Equal(v.level, value(rows[i], "level"))
		assert.Equal(obsID, value(rows[i], "parent_ogr_pkid"))
	}
}

func TestSWEDisabled(t *testing.T) {
	cfg := testConfig(
		config.OptReaderRemoveUnusedLayers(true),
		config.OptReaderSWEProcessDataRecord(false),
	)
	set := layerSet(t, cfg, obsXSD)
	doc := obsHead +
		`<swe:DataRecord><swe:field name="a"><swe:Count><swe:value>1</swe:value></swe:Count></swe:field></swe:DataRecord>` +
		obsTail
	r := ioreader.New(cfg, set, strings.NewReader(doc))
	fp, err := r.RunFirstPass(context.Background())
	require.Nil(t, err)
	assert.Equal(t, 0, fp.AddedFields)
	assert.Equal(t, -1, fieldIdx(set.LayerByName("Obs"), "a_value"))
}
