// Package runtime defines the boundary to the native NPU model runtime and
// provides a deterministic mock plus a fail-fast stub for builds without the
// vendor library.
package runtime

import (
	"context"

	"github.com/akaoio/rkllmd/pkg/types"
)

// Handle is an opaque reference to a loaded model context. Handles are owned
// by the Runtime that opened them; the engine only borrows them.
type Handle struct {
	Model types.Model
	id    uint64
}

// ID returns the runtime-assigned handle identifier.
func (h *Handle) ID() uint64 { return h.id }

// ExecResult is the raw output of one native generation call.
type ExecResult struct {
	Text         string
	TokenCount   int
	Finished     bool
	FinishReason string
}

// Runtime abstracts the native NPU library: opening model contexts and
// running blocking generation calls against them. Execute must honor ctx
// cancellation between internal steps where the backend allows it.
type Runtime interface {
	// Open loads the model and returns a handle for it.
	Open(model types.Model) (*Handle, error)
	// Execute runs one blocking generation for the processed prompt.
	Execute(ctx context.Context, h *Handle, prompt string) (ExecResult, error)
	// Close releases the model context behind h.
	Close(h *Handle) error
}

// dependencyUnavailableError signals a missing native runtime so callers can
// surface 503 instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrUnavailable constructs a dependency-unavailable error.
func ErrUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsUnavailable reports whether err indicates a missing/failed native runtime.
func IsUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}
