package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/akaoio/rkllmd/internal/runtime"
	"github.com/akaoio/rkllmd/pkg/types"
)

func batchReq(id, prompt string) types.BatchRequest {
	return types.BatchRequest{ID: id, Params: validParams(prompt)}
}

func TestBatchEmptyShortCircuit(t *testing.T) {
	e := newTestEngine(t)
	results, err := e.GenerateBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %v", results)
	}
	if e.GetState() != types.StateIdle {
		t.Fatalf("empty batch changed state to %q", e.GetState())
	}
}

func TestBatchPreservesInputOrder(t *testing.T) {
	e := newTestEngine(t)
	reqs := []types.BatchRequest{
		batchReq("first", "say hello"),
		batchReq("second", "write a haiku"),
		batchReq("third", "count to ten"),
	}
	results, err := e.GenerateBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results got %d", len(results))
	}
	for i, want := range []string{"first", "second", "third"} {
		if results[i].ID != want {
			t.Fatalf("result %d has id %q, want %q", i, results[i].ID, want)
		}
		if !results[i].Error.Empty() {
			t.Fatalf("unexpected item error: %+v", results[i].Error)
		}
	}
	waitForState(t, e, types.StateIdle)
}

func TestBatchItemFailureIsolated(t *testing.T) {
	e := New(Config{Runner: &fakeRunner{fn: func(ctx context.Context, h *runtime.Handle, prompt string) (runtime.ExecResult, error) {
		if strings.Contains(prompt, "boom") {
			panic("simulated item crash")
		}
		return runtime.ExecResult{Text: "ok ok ok", TokenCount: 3, Finished: true}, nil
	}}})
	e.SetModelHandle(testHandle(t))

	reqs := []types.BatchRequest{
		batchReq("a", "fine request"),
		batchReq("b", "boom request"),
		batchReq("c", "another fine request"),
	}
	results, err := e.GenerateBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("item failure aborted the batch: %d results", len(results))
	}
	if !results[0].Error.Empty() || !results[2].Error.Empty() {
		t.Fatalf("healthy items carry errors: %+v", results)
	}
	if results[1].Error.Empty() {
		t.Fatalf("failed item has no error: %+v", results[1])
	}
	if results[1].Error.Category != CategoryModelOperation || results[1].Error.Code != CodeBatchInferenceFailed {
		t.Fatalf("unexpected error taxonomy: %+v", results[1].Error)
	}
	if results[0].Result.Text == "" || results[2].Result.Text == "" {
		t.Fatalf("healthy items lost their results: %+v", results)
	}
	waitForState(t, e, types.StateIdle)
}

func TestBatchItemValidationCaptured(t *testing.T) {
	e := newTestEngine(t)
	bad := batchReq("bad", "hi")
	bad.Params.MaxTokens = 0
	results, err := e.GenerateBatch(context.Background(), []types.BatchRequest{
		batchReq("good", "say hello"),
		bad,
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if results[1].Error.Empty() || !strings.Contains(results[1].Error.Message, "max_tokens") {
		t.Fatalf("expected captured validation failure, got %+v", results[1])
	}
	if !results[0].Error.Empty() {
		t.Fatalf("healthy item affected: %+v", results[0])
	}
}

func TestBatchStopsEarlyOnCancellation(t *testing.T) {
	var e *Engine
	e = New(Config{Runner: &fakeRunner{fn: func(ctx context.Context, h *runtime.Handle, prompt string) (runtime.ExecResult, error) {
		// Stop while an item is in flight; the next between-items check
		// must end the batch.
		e.Stop()
		return runtime.ExecResult{Text: "partial", TokenCount: 1, Finished: true}, nil
	}}})
	e.SetModelHandle(testHandle(t))

	reqs := []types.BatchRequest{
		batchReq("a", "one"),
		batchReq("b", "two"),
		batchReq("c", "three"),
	}
	results, err := e.GenerateBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 partial result, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Fatalf("unexpected surviving item: %+v", results[0])
	}
}

func TestBatchStateTransitions(t *testing.T) {
	e := newTestEngine(t)
	pub := NewMemoryPublisher()
	e.events = pub
	if _, err := e.GenerateBatch(context.Background(), []types.BatchRequest{batchReq("a", "hello")}); err != nil {
		t.Fatalf("batch: %v", err)
	}
	var saw bool
	for _, ev := range pub.Events() {
		if ev.Name == "state_change" && ev.Fields["to"] == string(types.StateBatchProcessing) {
			saw = true
		}
	}
	if !saw {
		t.Fatalf("batch never entered batch_processing: %v", pub.Events())
	}
	waitForState(t, e, types.StateIdle)
}

func TestBatchAsyncMatchesSync(t *testing.T) {
	e := newTestEngine(t)
	reqs := []types.BatchRequest{batchReq("a", "say hello"), batchReq("b", "count to ten")}
	fut, err := e.GenerateBatchAsync(context.Background(), reqs)
	if err != nil {
		t.Fatalf("batch async: %v", err)
	}
	results, err := fut.Wait(context.Background())
	if err != nil {
		t.Fatalf("future: %v", err)
	}
	if len(results) != 2 || results[0].ID != "a" || results[1].ID != "b" {
		t.Fatalf("unexpected async results: %+v", results)
	}
}

func TestBatchAsyncEmptyResolvesImmediately(t *testing.T) {
	e := newTestEngine(t)
	fut, err := e.GenerateBatchAsync(context.Background(), nil)
	if err != nil {
		t.Fatalf("batch async: %v", err)
	}
	results, err := fut.Wait(context.Background())
	if err != nil || len(results) != 0 {
		t.Fatalf("expected immediate empty resolution, got %v %v", results, err)
	}
}

func TestBatchRejectedInErrorState(t *testing.T) {
	e := New(Config{Runner: runtime.NewMockRuntime()})
	// Drive into the error state via a handle-less generate.
	_, _ = e.Generate(context.Background(), validParams("hi"))
	if e.GetState() != types.StateError {
		t.Fatalf("setup failed, state %q", e.GetState())
	}
	if _, err := e.GenerateBatch(context.Background(), []types.BatchRequest{batchReq("a", "hi")}); err == nil || !IsEngineState(err) {
		t.Fatalf("expected engine-state error, got %v", err)
	}
}

func TestBatchPauseResume(t *testing.T) {
	e := newTestEngine(t)
	e.Pause()
	fut, err := e.GenerateBatchAsync(context.Background(), []types.BatchRequest{batchReq("a", "hello")})
	if err != nil {
		t.Fatalf("batch async: %v", err)
	}
	waitForState(t, e, types.StatePaused)
	e.Resume()
	results, err := fut.Wait(context.Background())
	if err != nil {
		t.Fatalf("future: %v", err)
	}
	if len(results) != 1 || !results[0].Error.Empty() {
		t.Fatalf("paused batch lost work: %+v", results)
	}
	waitForState(t, e, types.StateIdle)
}
