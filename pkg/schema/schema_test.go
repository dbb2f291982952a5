package schema_test

import (
	"strings"
	"testing"

	"github.com/gnames/gmlas/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLayerMetadataTableDDL tests DDL generation for LayerMetadata model
func TestLayerMetadataTableDDL(t *testing.T) {
	lm := schema.LayerMetadata{}
	ddl := lm.TableDDL()

	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS _ogr_layers_metadata")
	assert.Contains(t, ddl, "layer_name TEXT NOT NULL")
	assert.Contains(t, ddl, "layer_category TEXT NOT NULL")
	assert.Contains(t, ddl, "layer_parent_pkid_name TEXT")
}

func TestFieldMetadataTableDDL(t *testing.T) {
	fm := schema.FieldMetadata{}
	ddl := fm.TableDDL()

	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS _ogr_fields_metadata")
	assert.Contains(t, ddl, "field_index INTEGER NOT NULL")
	assert.Contains(t, ddl, "field_is_list BOOLEAN")
	assert.Contains(t, ddl, "field_junction_layer TEXT")

	indexes := strings.Join(fm.IndexDDL(), "\n")
	assert.Contains(t, indexes, "_ogr_fields_metadata(layer_name)")
}

func TestTableNames(t *testing.T) {
	tests := []struct {
		msg string
		gen schema.DDLGenerator
		res string
	}{
		{"layers", schema.LayerMetadata{}, "_ogr_layers_metadata"},
		{"fields", schema.FieldMetadata{}, "_ogr_fields_metadata"},
		{"relationships", schema.LayerRelationship{}, "_ogr_layer_relationships"},
		{"other", schema.OtherMetadata{}, "_ogr_other_metadata"},
	}

	for _, v := range tests {
		assert.Equal(t, v.res, v.gen.TableName(), v.msg)
	}
	assert.Len(t, schema.AllGenerators(), len(tests))
	assert.Len(t, schema.AllModels(), len(tests))
}

func TestColumnsValues(t *testing.T) {
	rel := schema.LayerRelationship{
		ParentLayer:       "road",
		ParentPKID:        "ogr_pkid",
		ParentElementName: "lane",
		ChildLayer:        "road_lane",
		ChildPKID:         "parent_ogr_pkid",
	}
	cols := schema.Columns(rel)
	vals := schema.Values(&rel)
	require.Equal(t, len(cols), len(vals))
	assert.Equal(t, []string{
		"parent_layer", "parent_pkid", "parent_element_name",
		"child_layer", "child_pkid",
	}, cols)
	assert.Equal(t, "road_lane", vals[3])
}
