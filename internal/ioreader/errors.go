package ioreader

import (
	"fmt"
	"runtime"

	"github.com/gnames/gmlas/pkg/errcode"
	"github.com/gnames/gn"
)

// XMLError is returned when the document is not well-formed.
func XMLError(src string, err error) error {
	msg := "Cannot parse XML document <em>%s</em>"
	vars := []any{src}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ReaderXMLError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: %w", fn, err),
	}
}

// TooDeepError is returned when nesting exceeds the configured level.
func TooDeepError(xpath string, maxLevel int) error {
	msg := "Too deeply nested XML content at <em>%s</em>"
	vars := []any{xpath}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ReaderTooDeepError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: nesting level above %d at %s",
			fn, maxLevel, xpath),
	}
}

// ContentTooLargeError is returned when a single element holds more data
// than allowed.
func ContentTooLargeError(xpath string, limit int) error {
	msg := "Too much data in a single element <em>%s</em>"
	vars := []any{xpath}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ReaderContentTooLargeError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: content of %s is larger than %d bytes",
			fn, xpath, limit),
	}
}

// RepeatedTooLargeError is returned when repeated values of one field
// exceed the content limit.
func RepeatedTooLargeError(xpath string, limit int) error {
	msg := "Too much repeated data in a single element <em>%s</em>"
	vars := []any{xpath}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ReaderRepeatedTooLargeError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: repeated content of %s is larger than %d bytes",
			fn, xpath, limit),
	}
}

// ValidationError is returned for the first validation problem when
// validation errors are fatal.
func ValidationError(problem string) error {
	msg := "Validation error: <em>%s</em>"
	vars := []any{problem}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ReaderValidationError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: %s", fn, problem),
	}
}

// InterruptedError is returned when the progress callback stops reading.
func InterruptedError() error {
	msg := "Reading was interrupted"
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ReaderInterruptedError,
		Msg:  msg,
		Err:  fmt.Errorf("from %s: interrupted by progress callback", fn),
	}
}
