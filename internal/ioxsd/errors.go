package ioxsd

import (
	"fmt"
	"runtime"

	"github.com/gnames/gmlas/pkg/errcode"
	"github.com/gnames/gn"
)

func SchemaLocationError(loc string, err error) error {
	msg := "Cannot open schema <em>%s</em>"
	vars := []any{loc}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.SchemaLocationError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: cannot open schema %s: %w", fn, loc, err),
	}
}

func SchemaParseError(loc string, err error) error {
	msg := "Cannot parse schema <em>%s</em>"
	vars := []any{loc}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.SchemaParseError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: cannot parse schema %s: %w", fn, loc, err),
	}
}

func SchemaReferenceError(kind, name, loc string) error {
	msg := "Unresolved %s reference <em>%s</em> in %s"
	vars := []any{kind, name, loc}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.SchemaReferenceError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: %s %s is not declared (%s)",
			fn, kind, name, loc),
	}
}

func SchemaNoSchemasError(src string) error {
	msg := "No schema found for <em>%s</em>"
	vars := []any{src}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.SchemaNoSchemasError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: no schemaLocation in %s and no schemas configured",
			fn, src),
	}
}
