package db

import (
	"context"

	"github.com/gnames/gmlas/pkg/schema"
)

// SchemaManager keeps the metadata tables that describe converted layers.
// Config is provided during construction via NewManager.
type SchemaManager interface {
	// Migrate replaces metadata tables with empty ones using GORM
	// AutoMigrate.
	Migrate(ctx context.Context) error

	// Write inserts metadata records.
	Write(ctx context.Context, md schema.Metadata) error
}
