package sink_test

import (
	"context"
	"testing"

	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/errcode"
	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/model"
	"github.com/gnames/gmlas/pkg/schema"
	"github.com/gnames/gmlas/pkg/sink"
	"github.com/gnames/gn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSet() *layer.Set {
	fc := &model.FeatureClass{
		Name:  "road",
		XPath: "road",
		Fields: []model.Field{
			{Name: "name", Type: model.FieldTypeString, XPath: "road/name"},
			{Name: "geom", Type: model.FieldTypeGeometry, XPath: "road/geom"},
		},
		Nested: []*model.FeatureClass{
			{Name: "road_lane", XPath: "road/lane"},
		},
	}
	return layer.NewSet(config.New(), []*model.FeatureClass{fc}, nil)
}

func TestMemory(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	set := testSet()
	m := sink.NewMemory(true)
	require.NoError(t, sink.CreateLayers(ctx, m, set))

	road := m.Layer("road")
	require.NotNil(t, road)
	assert.Len(road.Fields, 2)
	assert.Len(road.GeomFields, 1)
	assert.Len(m.Layers(), 2)

	f := set.LayerByName("road").NewFeature(1)
	f.SetString(1, "Main")
	require.NoError(t, m.Write(ctx, f))
	assert.Equal(1, road.Count)
	assert.Equal("Main", road.Features[0].Text(1))

	require.NoError(t, m.WriteMetadata(ctx, schema.Metadata{
		Other: []schema.OtherMetadata{{Key: "k", Value: "v"}},
	}))
	require.NotNil(t, m.Metadata())
	assert.Len(m.Metadata().Other, 1)

	require.NoError(t, m.Close())
	err := m.Write(ctx, f)
	require.Error(t, err)
	assert.Equal(errcode.SinkClosedError, err.(*gn.Error).Code)
}

func TestMemoryErrors(t *testing.T) {
	ctx := context.Background()
	m := sink.NewMemory(false)
	_, err := m.CreateLayer(ctx, "a")
	require.NoError(t, err)

	tests := []struct {
		msg  string
		fn   func() error
		code gn.ErrorCode
	}{
		{"duplicate", func() error {
			_, err := m.CreateLayer(ctx, "a")
			return err
		}, errcode.SinkLayerExistsError},
		{"bad handle", func() error {
			_, err := m.AddField(7, layer.FieldDef{Name: "x"})
			return err
		}, errcode.SinkUnknownLayerError},
		{"unknown layer", func() error {
			l := testSet().LayerByName("road")
			return m.Write(ctx, l.NewFeature(1))
		}, errcode.SinkUnknownLayerError},
	}

	for _, v := range tests {
		err := v.fn()
		require.Error(t, err, v.msg)
		gnErr, ok := err.(*gn.Error)
		require.True(t, ok, v.msg)
		assert.Equal(t, v.code, gnErr.Code, v.msg)
	}
}

func TestMemoryCountOnly(t *testing.T) {
	ctx := context.Background()
	set := testSet()
	m := sink.NewMemory(false)
	require.NoError(t, sink.CreateLayers(ctx, m, set))
	l := set.LayerByName("road_lane")
	for i := range 3 {
		require.NoError(t, m.Write(ctx, l.NewFeature(int64(i+1))))
	}
	ml := m.Layer("road_lane")
	assert.Equal(t, 3, ml.Count)
	assert.Empty(t, ml.Features)
}

func TestBatcher(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	set := testSet()
	road, lane := set.LayerByName("road"), set.LayerByName("road_lane")

	type call struct {
		name string
		n    int
	}
	var calls []call
	b := sink.NewBatcher(2, func(_ context.Context, name string, fs []*layer.Feature) error {
		calls = append(calls, call{name, len(fs)})
		return nil
	})

	require.NoError(t, b.Add(ctx, road.NewFeature(1)))
	require.NoError(t, b.Add(ctx, lane.NewFeature(1)))
	assert.Empty(calls)
	require.NoError(t, b.Add(ctx, road.NewFeature(2)))
	assert.Equal([]call{{"road", 2}}, calls)
	require.NoError(t, b.Add(ctx, road.NewFeature(3)))
	assert.Equal(2, b.Pending())

	require.NoError(t, b.Flush(ctx))
	assert.Equal([]call{{"road", 2}, {"road", 1}, {"road_lane", 1}}, calls)
	assert.Equal(0, b.Pending())
}
