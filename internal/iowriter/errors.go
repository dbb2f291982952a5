package iowriter

import (
	"fmt"
	"runtime"

	"github.com/gnames/gmlas/pkg/errcode"
	"github.com/gnames/gn"
)

// OpenError is returned when the converted file cannot be opened.
func OpenError(path string, err error) error {
	msg := "Cannot open converted file <em>%s</em>"
	vars := []any{path}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.WriterOpenError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: cannot open %s: %w", fn, path, err),
	}
}

// NoMetadataError is returned for files converted without metadata
// tables.
func NoMetadataError(path string) error {
	msg := "File <em>%s</em> has no metadata tables, convert it with --metadata"
	vars := []any{path}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.WriterNoMetadataError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: no metadata tables in %s", fn, path),
	}
}

// QueryError is returned when rows of a layer cannot be read.
func QueryError(table string, err error) error {
	msg := "Cannot read table <em>%s</em>"
	vars := []any{table}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.WriterQueryError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: cannot query %s: %w", fn, table, err),
	}
}

// OutputError is returned when the XML document cannot be written.
func OutputError(err error) error {
	msg := "Cannot write XML document"
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.WriterOutputError,
		Msg:  msg,
		Err:  fmt.Errorf("from %s: writing XML: %w", fn, err),
	}
}
