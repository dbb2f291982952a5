package ioresource

import (
	"fmt"
	"runtime"

	"github.com/gnames/gmlas/pkg/errcode"
	"github.com/gnames/gn"
)

func ResourceOpenError(loc string, err error) error {
	msg := "Cannot open <em>%s</em>"
	vars := []any{loc}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ResourceOpenError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: cannot open %s: %w", fn, loc, err),
	}
}

func ResourceDownloadError(url string, err error) error {
	msg := "Cannot download <em>%s</em>"
	vars := []any{url}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ResourceDownloadError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: cannot download %s: %w", fn, url, err),
	}
}

func ResourceTooLargeError(url string, limit int64) error {
	msg := "Resource <em>%s</em> is larger than %d bytes"
	vars := []any{url, limit}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ResourceTooLargeError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: %s exceeds %d bytes: %w",
			fn, url, limit, errTooLarge),
	}
}

func CleanCacheError(dir string, err error) error {
	msg := "Cannot clean cache <em>%s</em>"
	vars := []any{dir}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ResourceCleanCacheError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: cannot clean %s: %w", fn, dir, err),
	}
}
