package iodb

import (
	"fmt"

	"github.com/gnames/gmlas/pkg/errcode"
	"github.com/gnames/gn"
	"github.com/gnames/gnlib"
)

// ConnectionError is returned when database connection fails.
type ConnectionError struct {
	error
	gnlib.MessageBase
}

// NewConnectionError creates a connection error with user-friendly message.
func NewConnectionError(host string, port int, database, user string, cause error) error {
	userBase := gnlib.NewMessage(
		`<title>Database Connection Failed</title>

<warning>Could not connect to PostgreSQL database.</warning>

<em>Possible causes:</em>
  • PostgreSQL is not running
  • Database configuration is incorrect
  • The database does not exist yet

<em>How to fix:</em>
  1. Check if PostgreSQL is running:
     <em>pg_isready -h %s -p %d</em>

  2. Create the database if needed:
     <em>createdb -h %s -U %s %s</em>

  3. Check your configuration file:
     <em>~/.config/gmlas/config.yaml</em>

  4. Review connection settings:
     Host: %s
     Port: %d
     Database: %s
     User: %s
`,
		[]any{
			host, port,
			host, user, database,
			host, port, database, user,
		},
	)

	return ConnectionError{
		error:       fmt.Errorf("failed to connect to %s:%d/%s: %w", host, port, database, cause),
		MessageBase: userBase,
	}
}

// Unwrap gives access to the cause of the connection failure.
func (e ConnectionError) Unwrap() error {
	return e.error
}

// NotConnectedError creates an error for operations attempted before
// Connect.
func NotConnectedError() error {
	msg := "Database operation attempted without connection"
	return &gn.Error{
		Code: errcode.DBNotConnectedError,
		Msg:  msg,
		Err:  fmt.Errorf("not connected to database"),
	}
}

// TableExistsCheckError creates an error for failed table lookups.
func TableExistsCheckError(table string, err error) error {
	msg := "Cannot check if table <em>%s</em> exists"
	vars := []any{table}
	return &gn.Error{
		Code: errcode.DBTableExistsCheckError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("failed to check table %s: %w", table, err),
	}
}

// DropTableError creates an error for failed DROP TABLE statements.
func DropTableError(table string, err error) error {
	msg := `Cannot drop table <em>%s</em>

<em>Possible causes:</em>
  - Insufficient database permissions
  - The table is locked by another session`
	vars := []any{table}
	return &gn.Error{
		Code: errcode.DBDropTableError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("failed to drop table %s: %w", table, err),
	}
}

// CreateTableError creates an error for failed CREATE TABLE statements
// of converted layers.
func CreateTableError(table string, err error) error {
	msg := "Cannot create table <em>%s</em>"
	vars := []any{table}
	return &gn.Error{
		Code: errcode.DBCreateTableError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("failed to create table %s: %w", table, err),
	}
}

// InsertError creates an error for failed bulk inserts of features.
func InsertError(table string, rows int, err error) error {
	msg := "Cannot insert <em>%d</em> rows into <em>%s</em>"
	vars := []any{rows, table}
	return &gn.Error{
		Code: errcode.DBInsertError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("CopyFrom into %s failed: %w", table, err),
	}
}
