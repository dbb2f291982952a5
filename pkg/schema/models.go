// Package schema provides models of the metadata tables written next to
// converted layers. They describe where every layer and field comes from
// in the original XML documents, so that consumers can rebuild the
// document structure from the relational output.
package schema

// DDLGenerator defines how Go models generate DDL.
type DDLGenerator interface {
	// TableDDL returns the CREATE TABLE statement for this model.
	TableDDL() string

	// IndexDDL returns CREATE INDEX statements for this model.
	// Returns empty slice if no indexes needed.
	IndexDDL() []string

	// TableName returns the table name for this model.
	TableName() string
}

// Layer categories of LayerMetadata.
const (
	CategoryTopLevel = "TOP_LEVEL_ELEMENT"
	CategoryNested   = "NESTED_ELEMENT"
	CategoryJunction = "JUNCTION_TABLE"
)

// LayerMetadata describes one generated layer.
type LayerMetadata struct {
	// LayerName is the name of the table.
	LayerName string `db:"layer_name" ddl:"TEXT NOT NULL" gorm:"column:layer_name;primaryKey"`

	// LayerXPath is the XPath of elements stored in the layer.
	LayerXPath string `db:"layer_xpath" ddl:"TEXT" gorm:"column:layer_xpath"`

	// LayerCategory is one of TOP_LEVEL_ELEMENT, NESTED_ELEMENT or
	// JUNCTION_TABLE.
	LayerCategory string `db:"layer_category" ddl:"TEXT NOT NULL" gorm:"column:layer_category;not null"`

	// LayerPKIDName is the primary key column, empty for junction layers.
	LayerPKIDName string `db:"layer_pkid_name" ddl:"TEXT" gorm:"column:layer_pkid_name"`

	// LayerParentPKIDName is the column referencing the parent layer.
	LayerParentPKIDName string `db:"layer_parent_pkid_name" ddl:"TEXT" gorm:"column:layer_parent_pkid_name"`

	LayerDocumentation string `db:"layer_documentation" ddl:"TEXT" gorm:"column:layer_documentation"`
}

// FieldMetadata describes one field of a layer, including fields that
// are not columns but relationships to other layers.
type FieldMetadata struct {
	LayerName string `db:"layer_name" ddl:"TEXT NOT NULL" gorm:"column:layer_name;primaryKey"`

	// FieldIndex is the position of the field in the layer. Fields that
	// are not columns continue the numbering after the last column.
	FieldIndex int `db:"field_index" ddl:"INTEGER NOT NULL" gorm:"column:field_index;primaryKey"`

	FieldName string `db:"field_name" ddl:"TEXT" gorm:"column:field_name"`

	FieldXPath string `db:"field_xpath" ddl:"TEXT" gorm:"column:field_xpath"`

	// FieldAlternativeXPath lists other XPaths mapped to the field,
	// separated by commas.
	FieldAlternativeXPath string `db:"field_alternative_xpath" ddl:"TEXT" gorm:"column:field_alternative_xpath"`

	// FieldType is the XML Schema type of the field.
	FieldType string `db:"field_type" ddl:"TEXT" gorm:"column:field_type"`

	FieldIsList bool `db:"field_is_list" ddl:"BOOLEAN" gorm:"column:field_is_list"`

	FieldMinOccurs int `db:"field_min_occurs" ddl:"INTEGER" gorm:"column:field_min_occurs"`

	FieldMaxOccurs int `db:"field_max_occurs" ddl:"INTEGER" gorm:"column:field_max_occurs"`

	FieldRepetitionOnSequence bool `db:"field_repetition_on_sequence" ddl:"BOOLEAN" gorm:"column:field_repetition_on_sequence"`

	FieldDefaultValue string `db:"field_default_value" ddl:"TEXT" gorm:"column:field_default_value"`

	FieldFixedValue string `db:"field_fixed_value" ddl:"TEXT" gorm:"column:field_fixed_value"`

	// FieldCategory is the relationship category, REGULAR for columns
	// holding values.
	FieldCategory string `db:"field_category" ddl:"TEXT" gorm:"column:field_category"`

	// FieldRelatedLayer is the layer targeted by a relationship field.
	FieldRelatedLayer string `db:"field_related_layer" ddl:"TEXT" gorm:"column:field_related_layer"`

	// FieldJunctionLayer is the junction layer of a many-to-many
	// relationship.
	FieldJunctionLayer string `db:"field_junction_layer" ddl:"TEXT" gorm:"column:field_junction_layer"`

	FieldDocumentation string `db:"field_documentation" ddl:"TEXT" gorm:"column:field_documentation"`
}

// LayerRelationship links a parent layer to a child layer.
type LayerRelationship struct {
	ParentLayer string `db:"parent_layer" ddl:"TEXT NOT NULL" gorm:"column:parent_layer;primaryKey"`

	ParentPKID string `db:"parent_pkid" ddl:"TEXT NOT NULL" gorm:"column:parent_pkid"`

	// ParentElementName is the field of the parent layer that leads to
	// the child.
	ParentElementName string `db:"parent_element_name" ddl:"TEXT" gorm:"column:parent_element_name;primaryKey"`

	ChildLayer string `db:"child_layer" ddl:"TEXT NOT NULL" gorm:"column:child_layer;primaryKey"`

	ChildPKID string `db:"child_pkid" ddl:"TEXT" gorm:"column:child_pkid"`
}

// OtherMetadata holds key/value facts about the conversion, such as the
// analyzed schemas and the configuration.
type OtherMetadata struct {
	Key string `db:"key" ddl:"TEXT NOT NULL" gorm:"column:key;primaryKey"`

	Value string `db:"value" ddl:"TEXT" gorm:"column:value"`
}
