// Package ioschema implements SchemaManager interface for
// the metadata tables of the PostgreSQL output. This is an impure
// I/O package that wraps GORM AutoMigrate functionality.
package ioschema

import (
	"context"
	"log/slog"

	"github.com/gnames/gmlas/pkg/db"
	"github.com/gnames/gmlas/pkg/schema"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// manager implements the db.SchemaManager interface
// using GORM.
type manager struct {
	operator  db.Operator
	batchSize int
}

// NewManager creates a new SchemaManager.
func NewManager(op db.Operator, batchSize int) db.SchemaManager {
	return &manager{operator: op, batchSize: max(batchSize, 1)}
}

func (m *manager) open() (*gorm.DB, error) {
	pool := m.operator.Pool()
	if pool == nil {
		return nil, NotConnectedError()
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	gormDB, err := gorm.Open(
		postgres.New(postgres.Config{Conn: sqlDB}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		return nil, GORMConnectionError(err)
	}
	return gormDB, nil
}

// Migrate drops metadata tables of a previous conversion and
// recreates them using GORM AutoMigrate.
func (m *manager) Migrate(ctx context.Context) error {
	gormDB, err := m.open()
	if err != nil {
		return err
	}

	if err = m.operator.DropTables(ctx, tableNames()...); err != nil {
		return err
	}

	if err = schema.Migrate(gormDB.WithContext(ctx)); err != nil {
		return MigrateSchemaError(err)
	}
	return nil
}

// Write inserts metadata records in batches.
func (m *manager) Write(ctx context.Context, md schema.Metadata) error {
	gormDB, err := m.open()
	if err != nil {
		return err
	}
	tx := gormDB.WithContext(ctx)

	if err = insert(tx, md.Layers, m.batchSize); err != nil {
		return err
	}
	if err = insert(tx, md.Fields, m.batchSize); err != nil {
		return err
	}
	if err = insert(tx, md.Relationships, m.batchSize); err != nil {
		return err
	}
	if err = insert(tx, md.Other, m.batchSize); err != nil {
		return err
	}

	slog.Info("Wrote metadata tables",
		"layers", len(md.Layers),
		"fields", len(md.Fields),
		"relationships", len(md.Relationships),
	)
	return nil
}

func insert[T schema.DDLGenerator](tx *gorm.DB, rows []T, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
		return InsertMetadataError(rows[0].TableName(), err)
	}
	return nil
}
