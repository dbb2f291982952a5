package analyzer

import (
	"fmt"
	"runtime"

	"github.com/gnames/gmlas/pkg/errcode"
	"github.com/gnames/gn"
)

func AnalyzerTooDeepError(xpath string) error {
	msg := "Schema analysis failed due to too deeply nested model at <em>%s</em>"
	vars := []any{xpath}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.AnalyzerTooDeepError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf(
			"from %s: too deeply nested model at %s", fn, xpath,
		),
	}
}

func AnalyzerCycleError(xpath string) error {
	msg := "Model group of <em>%s</em> is already visited"
	vars := []any{xpath}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.AnalyzerCycleError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: %s already visited", fn, xpath),
	}
}

func AnalyzerUnresolvedError(xpath string) error {
	msg := "Couldn't resolve <em>%s</em>"
	vars := []any{xpath}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.AnalyzerUnresolvedError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: couldn't resolve %s", fn, xpath),
	}
}
