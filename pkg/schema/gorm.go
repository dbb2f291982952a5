package schema

import (
	"gorm.io/gorm"
)

// AllModels returns all metadata models for GORM AutoMigrate.
func AllModels() []any {
	return []any{
		&LayerMetadata{},
		&FieldMetadata{},
		&LayerRelationship{},
		&OtherMetadata{},
	}
}

// AllGenerators returns all metadata models as DDL generators.
func AllGenerators() []DDLGenerator {
	return []DDLGenerator{
		LayerMetadata{},
		FieldMetadata{},
		LayerRelationship{},
		OtherMetadata{},
	}
}

// Migrate runs GORM AutoMigrate to create or update metadata tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// Metadata groups all metadata records of a conversion.
type Metadata struct {
	Layers        []LayerMetadata
	Fields        []FieldMetadata
	Relationships []LayerRelationship
	Other         []OtherMetadata
}
