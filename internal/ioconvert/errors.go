package ioconvert

import (
	"fmt"
	"runtime"

	"github.com/gnames/gmlas/pkg/errcode"
	"github.com/gnames/gn"
)

// SinkError is returned when the output rejects layers or features.
func SinkError(layer string, err error) error {
	msg := "Cannot write layer <em>%s</em>"
	vars := []any{layer}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ConvertSinkError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: writing %s: %w", fn, layer, err),
	}
}

// RemoteDocumentError is returned for documents given as URLs. They are
// read twice, so they have to be downloaded first.
func RemoteDocumentError(url string) error {
	msg := "Download <em>%s</em> and convert the local copy"
	vars := []any{url}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ConvertRemoteDocumentError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: remote document %s", fn, url),
	}
}
