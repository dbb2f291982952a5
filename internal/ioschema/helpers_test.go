package ioschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, []string{
		"_ogr_layers_metadata",
		"_ogr_fields_metadata",
		"_ogr_layer_relationships",
		"_ogr_other_metadata",
	}, tableNames())
}
