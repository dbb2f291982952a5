package iodb_test

import (
	"context"
	"testing"

	"github.com/gnames/gmlas/internal/iodb"
	"github.com/gnames/gmlas/internal/iotesting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: These are integration tests that require PostgreSQL.
//
// Connection settings come from GMLAS_DATABASE_HOST, GMLAS_DATABASE_USER
// and GMLAS_DATABASE_PASSWORD, defaults are postgres/postgres on
// localhost. The database name is always forced to "gmlas_test".
//
// Skip these tests with:
//   go test -short

func TestDSN(t *testing.T) {
	cfg := iotesting.GetTestDatabaseConfig(t)
	dsn := iodb.DSN(cfg)
	assert.Contains(t, dsn, "/gmlas_test?sslmode=disable")
	assert.Contains(t, dsn, "postgres://")
}

func TestPgxOperator_Connect(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	op := iodb.NewPgxOperator()
	ctx := context.Background()

	err := op.Connect(ctx, iotesting.GetTestDatabaseConfig(t))
	require.NoError(t, err, "Connect should succeed with valid config")

	defer op.Close()

	exists, err := op.TableExists(ctx, "nonexistent_table")
	assert.NoError(t, err, "Should be able to execute commands after Connect")
	assert.False(t, exists)
}

func TestPgxOperator_Connect_InvalidHost(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	op := iodb.NewPgxOperator()
	ctx := context.Background()

	cfg := iotesting.GetTestDatabaseConfig(t)
	cfg.Host = "invalid-host-that-does-not-exist"

	err := op.Connect(ctx, cfg)
	assert.Error(t, err, "Connect should fail with invalid host")
	var connErr iodb.ConnectionError
	assert.ErrorAs(t, err, &connErr)
}

func TestPgxOperator_NotConnected(t *testing.T) {
	op := iodb.NewPgxOperator()
	_, err := op.TableExists(context.Background(), "road")
	assert.Error(t, err)
	assert.Error(t, op.DropTables(context.Background(), "road"))
	assert.Nil(t, op.Close())
}

func TestPgxOperator_DropTables(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	op := iodb.NewPgxOperator()
	ctx := context.Background()

	err := op.Connect(ctx, iotesting.GetTestDatabaseConfig(t))
	require.NoError(t, err)
	defer op.Close()

	_, err = op.Pool().Exec(ctx, "CREATE TABLE IF NOT EXISTS drop_test1 (id TEXT)")
	require.NoError(t, err)
	_, err = op.Pool().Exec(ctx, `CREATE TABLE IF NOT EXISTS "Drop_Test2" (id TEXT)`)
	require.NoError(t, err)

	exists, err := op.TableExists(ctx, "Drop_Test2")
	require.NoError(t, err)
	assert.True(t, exists)

	err = op.DropTables(ctx, "drop_test1", "Drop_Test2", "never_created")
	require.NoError(t, err)

	exists1, _ := op.TableExists(ctx, "drop_test1")
	exists2, _ := op.TableExists(ctx, "Drop_Test2")
	assert.False(t, exists1, "drop_test1 should be dropped")
	assert.False(t, exists2, "Drop_Test2 should be dropped")
}
