package sink

import (
	"fmt"
	"runtime"

	"github.com/gnames/gmlas/pkg/errcode"
	"github.com/gnames/gn"
)

// LayerExistsError is returned when a layer name is declared twice.
func LayerExistsError(name string) error {
	msg := "Layer <em>%s</em> already exists"
	vars := []any{name}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.SinkLayerExistsError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: layer %s already exists", fn, name),
	}
}

// UnknownLayerError is returned for handles or names that were never
// created.
func UnknownLayerError(name string) error {
	msg := "Layer <em>%s</em> is not created"
	vars := []any{name}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.SinkUnknownLayerError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: unknown layer %s", fn, name),
	}
}

// ClosedError is returned when a closed sink is used.
func ClosedError() error {
	msg := "Output is already closed"
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.SinkClosedError,
		Msg:  msg,
		Err:  fmt.Errorf("from %s: sink is closed", fn),
	}
}
