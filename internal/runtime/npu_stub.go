//go:build !rknpu

package runtime

// This file provides a no-CGO stub for the RKLLM NPU runtime. It is compiled
// when the 'rknpu' build tag is NOT set, keeping default builds and CI
// CGO-free. A real binding would live in a file tagged 'rknpu'.

import (
	"context"

	"github.com/akaoio/rkllmd/pkg/types"
)

type npuRuntime struct{}

// NewNPURuntime returns the native runtime. Without the 'rknpu' build tag it
// refuses to run so production binaries never silently mock inference.
func NewNPURuntime() Runtime { return npuRuntime{} }

func (npuRuntime) Open(model types.Model) (*Handle, error) {
	return nil, ErrUnavailable("rkllm runtime not built (missing 'rknpu' build tag)")
}

func (npuRuntime) Execute(ctx context.Context, h *Handle, prompt string) (ExecResult, error) {
	select {
	case <-ctx.Done():
		return ExecResult{}, ctx.Err()
	default:
	}
	return ExecResult{}, ErrUnavailable("rkllm runtime not built (missing 'rknpu' build tag)")
}

func (npuRuntime) Close(h *Handle) error { return nil }
