package engine

import (
	"context"
	"fmt"

	"github.com/akaoio/rkllmd/pkg/types"
)

// Generate runs one synchronous request. It fails with an engine-state error
// when the engine is stuck in the error state, and with a configuration error
// before any side effect when params are invalid. A runtime-level failure is
// reported inside the returned result (finish_reason "error"), not as an
// error return.
func (e *Engine) Generate(ctx context.Context, params types.InferenceParams) (res types.InferenceResult, err error) {
	if e.state.Load() == codeError {
		return types.InferenceResult{}, ErrEngineState("engine is in error state; bind a fresh model handle to recover")
	}
	if v := params.Validate(); len(v) > 0 {
		return types.InferenceResult{}, ErrConfiguration(v)
	}
	release, err := e.acquireSlot(ctx)
	if err != nil {
		return types.InferenceResult{}, err
	}
	defer release()

	e.setState(types.StateRunning)
	defer func() {
		if r := recover(); r != nil {
			e.setState(types.StateError)
			res = types.InferenceResult{}
			err = fmt.Errorf("engine internal failure: %v", r)
		}
	}()

	result, execErr := e.executeInference(ctx, params)
	if execErr != nil {
		e.setState(types.StateError)
		return types.InferenceResult{}, execErr
	}
	e.recordResult(result)
	e.setState(types.StateIdle)
	return result, nil
}
