package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/akaoio/rkllmd/pkg/types"
)

// StreamCallback receives incremental fragments of generated text. Fragments
// for one request arrive in generation order on a single task; the final
// invocation has isLast true unless the stream is cancelled mid-flight.
type StreamCallback func(fragment string, isLast bool)

// GenerateStream starts a streaming request on its own task and returns once
// the task is spawned. Pre-spawn failures (nil callback, invalid params,
// error state, admission timeout) are returned synchronously; nothing is
// spawned in that case.
func (e *Engine) GenerateStream(ctx context.Context, params types.InferenceParams, cb StreamCallback) error {
	_, err := e.startStream(ctx, params, cb)
	return err
}

// GenerateStreamAsync is GenerateStream plus a future resolving to the same
// InferenceResult the synchronous path would have produced, or to the task's
// error.
func (e *Engine) GenerateStreamAsync(ctx context.Context, params types.InferenceParams, cb StreamCallback) (*ResultFuture, error) {
	return e.startStream(ctx, params, cb)
}

func (e *Engine) startStream(ctx context.Context, params types.InferenceParams, cb StreamCallback) (*ResultFuture, error) {
	if cb == nil {
		return nil, ErrInvalidArgument("stream callback is required")
	}
	if e.state.Load() == codeError {
		return nil, ErrEngineState("engine is in error state; bind a fresh model handle to recover")
	}
	if v := params.Validate(); len(v) > 0 {
		return nil, ErrConfiguration(v)
	}
	release, err := e.acquireSlot(ctx)
	if err != nil {
		return nil, err
	}

	epoch := e.stopEpoch.Load()
	// Transition before the task starts so the state never flickers between
	// idle and streaming while the task runs.
	e.setState(types.StateStreaming)
	fut := newResultFuture()
	go e.runStream(ctx, epoch, params, cb, fut, release)
	return fut, nil
}

func (e *Engine) runStream(ctx context.Context, epoch uint64, params types.InferenceParams, cb StreamCallback, fut *ResultFuture, release func()) {
	defer release()
	defer func() {
		if r := recover(); r != nil {
			e.setState(types.StateError)
			fut.complete(types.InferenceResult{}, fmt.Errorf("stream task failure: %v", r))
		}
	}()

	res, err := e.executeInference(ctx, params)
	if err != nil {
		e.setState(types.StateError)
		fut.complete(types.InferenceResult{}, err)
		return
	}

	if res.FinishReason == types.FinishError {
		// No fragments for a failed execution; deliver the terminal signal
		// and let the caller inspect the result.
		cb("", true)
		e.finishStream(res, fut)
		return
	}

	batch := params.StreamBatchSize
	if batch <= 0 {
		e.mu.Lock()
		batch = e.streamBuf
		e.mu.Unlock()
	}
	frags := splitFragments(res.Text, batch)
	if len(frags) == 0 {
		cb("", true)
		e.finishStream(res, fut)
		return
	}
	for i, frag := range frags {
		e.waitWhilePaused(ctx, epoch, types.StateStreaming)
		if e.cancelled(ctx, epoch) {
			// Cancelled mid-stream: no terminal signal, at most one was due.
			// The task still owns the lifecycle, so it hands the state back.
			e.recordResult(res)
			if e.state.Load() != codeError {
				e.setState(types.StateIdle)
			}
			fut.complete(res, nil)
			return
		}
		cb(frag, i == len(frags)-1)
	}
	e.finishStream(res, fut)
}

func (e *Engine) finishStream(res types.InferenceResult, fut *ResultFuture) {
	e.recordResult(res)
	if e.state.Load() != codeError {
		e.setState(types.StateIdle)
	}
	fut.complete(res, nil)
}

// splitFragments cuts text into space-delimited pieces grouped batch at a
// time, preserving the delimiters so concatenating fragments restores text.
func splitFragments(text string, batch int) []string {
	if text == "" {
		return nil
	}
	if batch < 1 {
		batch = 1
	}
	pieces := strings.SplitAfter(text, " ")
	var frags []string
	for i := 0; i < len(pieces); i += batch {
		end := i + batch
		if end > len(pieces) {
			end = len(pieces)
		}
		frag := strings.Join(pieces[i:end], "")
		if frag != "" {
			frags = append(frags, frag)
		}
	}
	return frags
}
