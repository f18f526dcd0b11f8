package engine

import (
	"context"
	"fmt"

	"github.com/akaoio/rkllmd/pkg/types"
)

// GenerateBatch processes requests strictly in input order, one at a time.
// A single item's failure never aborts the batch: it is captured in that
// item's BatchResult.Error and processing continues. If a stop request is
// observed between items, the partial result list is returned. An empty
// input returns an empty slice without any state transition.
func (e *Engine) GenerateBatch(ctx context.Context, requests []types.BatchRequest) ([]types.BatchResult, error) {
	if len(requests) == 0 {
		return []types.BatchResult{}, nil
	}
	if e.state.Load() == codeError {
		return nil, ErrEngineState("engine is in error state; bind a fresh model handle to recover")
	}
	release, err := e.acquireSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return e.runBatch(ctx, requests)
}

// GenerateBatchAsync runs the batch on its own task and returns a future for
// the per-item outcomes. Admission happens synchronously so backpressure is
// reported to the caller, not buried in the future.
func (e *Engine) GenerateBatchAsync(ctx context.Context, requests []types.BatchRequest) (*BatchFuture, error) {
	fut := newBatchFuture()
	if len(requests) == 0 {
		fut.complete([]types.BatchResult{}, nil)
		return fut, nil
	}
	if e.state.Load() == codeError {
		return nil, ErrEngineState("engine is in error state; bind a fresh model handle to recover")
	}
	release, err := e.acquireSlot(ctx)
	if err != nil {
		return nil, err
	}
	go func() {
		defer release()
		fut.complete(e.runBatch(ctx, requests))
	}()
	return fut, nil
}

func (e *Engine) runBatch(ctx context.Context, requests []types.BatchRequest) (results []types.BatchResult, err error) {
	epoch := e.stopEpoch.Load()
	e.setState(types.StateBatchProcessing)
	defer func() {
		if r := recover(); r != nil {
			e.setState(types.StateError)
			results = nil
			err = fmt.Errorf("batch task failure: %v", r)
		}
	}()

	results = make([]types.BatchResult, 0, len(requests))
	for _, req := range requests {
		e.waitWhilePaused(ctx, epoch, types.StateBatchProcessing)
		if e.cancelled(ctx, epoch) {
			break
		}
		results = append(results, e.runBatchItem(ctx, req))
	}
	if e.state.Load() != codeError {
		e.setState(types.StateIdle)
	}
	return results, nil
}

// runBatchItem executes one item, converting any failure (validation,
// engine-state, or an item-level panic) into the item's ErrorInfo.
func (e *Engine) runBatchItem(ctx context.Context, req types.BatchRequest) (br types.BatchResult) {
	br.ID = req.ID
	defer func() {
		if r := recover(); r != nil {
			br.Error = itemError(fmt.Sprintf("panic: %v", r))
			metricBatchItems.WithLabelValues("error").Inc()
		}
	}()
	if v := req.Params.Validate(); len(v) > 0 {
		br.Error = itemError(ErrConfiguration(v).Error())
		metricBatchItems.WithLabelValues("error").Inc()
		return br
	}
	res, err := e.executeInference(ctx, req.Params)
	if err != nil {
		br.Error = itemError(err.Error())
		metricBatchItems.WithLabelValues("error").Inc()
		return br
	}
	e.recordResult(res)
	br.Result = res
	metricBatchItems.WithLabelValues("ok").Inc()
	return br
}

func itemError(msg string) types.ErrorInfo {
	return types.ErrorInfo{
		Category: CategoryModelOperation,
		Code:     CodeBatchInferenceFailed,
		Message:  msg,
	}
}
