// Package db declares database contracts of the PostgreSQL output.
package db

import (
	"context"

	"github.com/gnames/gmlas/pkg/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Operator defines the interface for basic database management operations.
// It provides connection lifecycle management and exposes the pgxpool.Pool
// so that the output can use CopyFrom for bulk inserts of features.
type Operator interface {
	// Connect establishes a connection pool to the database.
	Connect(context.Context, *config.DatabaseConfig) error

	// Close closes the database connection pool.
	Close() error

	// Pool returns the underlying pgxpool.Pool.
	Pool() *pgxpool.Pool

	// TableExists checks if a table exists in the database.
	TableExists(ctx context.Context, tableName string) (bool, error)

	// DropTables drops the given tables if they exist. Converting the
	// same document twice replaces its layers.
	DropTables(ctx context.Context, tables ...string) error
}
