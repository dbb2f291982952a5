package ioschema

import (
	"fmt"

	"github.com/gnames/gmlas/pkg/errcode"
	"github.com/gnames/gn"
)

// NotConnectedError creates an error for when schema
// operation is attempted without database connection.
func NotConnectedError() error {
	msg := "Schema operation attempted without database connection"

	return &gn.Error{
		Code: errcode.DBNotConnectedError,
		Msg:  msg,
		Vars: nil,
		Err:  fmt.Errorf("not connected to database"),
	}
}

// GORMConnectionError creates an error for GORM
// connection failures.
func GORMConnectionError(err error) error {
	msg := `Cannot connect to database with GORM

<em>Possible causes:</em>
  - Connection pool not initialized
  - Database configuration issue

<em>How to fix:</em>
  1. Ensure database operator is connected
  2. Check database configuration`

	return &gn.Error{
		Code: errcode.SchemaGORMConnectionError,
		Msg:  msg,
		Vars: nil,
		Err:  fmt.Errorf("failed to connect with GORM: %w", err),
	}
}

// MigrateSchemaError creates an error for failed creation of
// metadata tables.
func MigrateSchemaError(err error) error {
	msg := `Cannot create metadata tables

<em>Possible causes:</em>
  - Insufficient database permissions
  - Tables of the same name are used by another application

<em>How to fix:</em>
  1. Check database user has CREATE permissions
  2. Convert into a separate database`

	return &gn.Error{
		Code: errcode.SchemaMigrateError,
		Msg:  msg,
		Vars: nil,
		Err:  fmt.Errorf("failed to migrate metadata tables: %w", err),
	}
}

// InsertMetadataError creates an error for failed inserts into
// a metadata table.
func InsertMetadataError(table string, err error) error {
	msg := "Cannot write metadata into <em>%s</em>"
	vars := []any{table}

	return &gn.Error{
		Code: errcode.SchemaMetadataInsertError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("failed to insert into %s: %w", table, err),
	}
}
