package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// generateDDL creates a CREATE TABLE statement from struct tags.
func generateDDL(model any, tableName string) string {
	v := reflect.ValueOf(model)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()

	var columns []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		dbTag := field.Tag.Get("db")
		ddlTag := field.Tag.Get("ddl")

		if dbTag != "" && ddlTag != "" {
			columns = append(columns, fmt.Sprintf("    %s %s", dbTag, ddlTag))
		}
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n);",
		tableName,
		strings.Join(columns, ",\n"))

	return ddl
}

// Columns returns column names of a model in declaration order.
func Columns(model any) []string {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var res []string
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("db"); tag != "" {
			res = append(res, tag)
		}
	}
	return res
}

// Values returns column values of a model in declaration order.
func Values(model any) []any {
	v := reflect.ValueOf(model)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	var res []any
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("db") != "" {
			res = append(res, v.Field(i).Interface())
		}
	}
	return res
}

// LayerMetadata DDL methods
func (lm LayerMetadata) TableDDL() string {
	return generateDDL(lm, lm.TableName())
}

func (lm LayerMetadata) IndexDDL() []string {
	return []string{}
}

func (lm LayerMetadata) TableName() string {
	return "_ogr_layers_metadata"
}

// FieldMetadata DDL methods
func (fm FieldMetadata) TableDDL() string {
	return generateDDL(fm, fm.TableName())
}

func (fm FieldMetadata) IndexDDL() []string {
	return []string{
		"CREATE INDEX IF NOT EXISTS idx_ogr_fields_metadata_layer ON _ogr_fields_metadata(layer_name);",
	}
}

func (fm FieldMetadata) TableName() string {
	return "_ogr_fields_metadata"
}

// LayerRelationship DDL methods
func (lr LayerRelationship) TableDDL() string {
	return generateDDL(lr, lr.TableName())
}

func (lr LayerRelationship) IndexDDL() []string {
	return []string{
		"CREATE INDEX IF NOT EXISTS idx_ogr_layer_relationships_child ON _ogr_layer_relationships(child_layer);",
	}
}

func (lr LayerRelationship) TableName() string {
	return "_ogr_layer_relationships"
}

// OtherMetadata DDL methods
func (om OtherMetadata) TableDDL() string {
	return generateDDL(om, om.TableName())
}

func (om OtherMetadata) IndexDDL() []string {
	return []string{}
}

func (om OtherMetadata) TableName() string {
	return "_ogr_other_metadata"
}
