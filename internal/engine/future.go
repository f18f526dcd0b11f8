package engine

import (
	"context"

	"github.com/akaoio/rkllmd/pkg/types"
)

// ResultFuture resolves to the InferenceResult of an async execution, or to
// the task's error. Wait may be called by multiple goroutines.
type ResultFuture struct {
	done chan struct{}
	res  types.InferenceResult
	err  error
}

func newResultFuture() *ResultFuture { return &ResultFuture{done: make(chan struct{})} }

func (f *ResultFuture) complete(res types.InferenceResult, err error) {
	f.res = res
	f.err = err
	close(f.done)
}

// Wait blocks until the task finishes or ctx is canceled.
func (f *ResultFuture) Wait(ctx context.Context) (types.InferenceResult, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return types.InferenceResult{}, ctx.Err()
	}
}

// Done reports whether the task has finished.
func (f *ResultFuture) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// BatchFuture resolves to the per-item outcomes of an async batch.
type BatchFuture struct {
	done    chan struct{}
	results []types.BatchResult
	err     error
}

func newBatchFuture() *BatchFuture { return &BatchFuture{done: make(chan struct{})} }

func (f *BatchFuture) complete(results []types.BatchResult, err error) {
	f.results = results
	f.err = err
	close(f.done)
}

// Wait blocks until the batch finishes or ctx is canceled.
func (f *BatchFuture) Wait(ctx context.Context) ([]types.BatchResult, error) {
	select {
	case <-f.done:
		return f.results, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
