//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/roomfinder/internal/errs"
)

// NewONNXLoader returns a Loader that always fails when built without CGO (ONNX not available).
func NewONNXLoader(_ ONNXOptions) Loader {
	return func(context.Context) (Model, error) {
		return nil, fmt.Errorf("%w: ONNX backend requires CGO; build with CGO_ENABLED=1 and onnxruntime", errs.ErrModelUnavailable)
	}
}
