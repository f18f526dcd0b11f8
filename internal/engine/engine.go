// Package engine implements the inference orchestration core: parameter
// validation, the lifecycle state machine, synchronous/streaming/batch
// execution paths, cooperative pause/stop and cumulative statistics.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akaoio/rkllmd/internal/runtime"
	"github.com/akaoio/rkllmd/pkg/types"
)

// Runner is the narrow slice of the native runtime the engine needs: one
// blocking generation call against a borrowed handle.
type Runner interface {
	Execute(ctx context.Context, h *runtime.Handle, prompt string) (runtime.ExecResult, error)
}

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxConcurrent = 4
	maxConcurrentLimit   = 16
	defaultStreamBuffer  = 64
	streamBufferLimit    = 1024
	defaultMaxWait       = 30 * time.Second
	pausePollInterval    = 5 * time.Millisecond
)

// Config encapsulates all tunables for Engine construction.
type Config struct {
	Runner        Runner
	Tokens        runtime.TokenCounter
	MaxConcurrent int
	MaxWait       time.Duration
	StreamBuffer  int
	Defaults      types.InferenceParams
	Events        EventPublisher
}

// Engine orchestrates generation requests against a borrowed model handle.
// It is safe for use from multiple goroutines. The handle itself is owned by
// the runtime that opened it; swapping it while a request is in flight is a
// caller error.
type Engine struct {
	runner Runner
	tokens runtime.TokenCounter
	events EventPublisher

	handle         atomic.Pointer[runtime.Handle]
	state          atomic.Int32
	stopEpoch      atomic.Uint64
	pauseRequested atomic.Bool
	kvCache        atomic.Bool

	stats statsAggregator

	mu        sync.Mutex // guards defaults and admission tunables
	defaults  types.InferenceParams
	sem       chan struct{}
	maxWait   time.Duration
	streamBuf int
	startTime time.Time
}

// state codes stored in the atomic field.
const (
	codeIdle int32 = iota
	codeRunning
	codeStreaming
	codeBatch
	codePaused
	codeError
)

var stateNames = map[int32]types.State{
	codeIdle:      types.StateIdle,
	codeRunning:   types.StateRunning,
	codeStreaming: types.StateStreaming,
	codeBatch:     types.StateBatchProcessing,
	codePaused:    types.StatePaused,
	codeError:     types.StateError,
}

var stateCodes = map[types.State]int32{
	types.StateIdle:            codeIdle,
	types.StateRunning:         codeRunning,
	types.StateStreaming:       codeStreaming,
	types.StateBatchProcessing: codeBatch,
	types.StatePaused:          codePaused,
	types.StateError:           codeError,
}

// New constructs an Engine from Config, applying defaults for unset fields.
func New(cfg Config) *Engine {
	e := &Engine{
		runner: cfg.Runner,
		tokens: cfg.Tokens,
		events: cfg.Events,
	}
	if e.tokens == nil {
		e.tokens = runtime.NewHashTokenizer()
	}
	if e.events == nil {
		e.events = noopPublisher{}
	}
	mc := clamp(cfg.MaxConcurrent, 1, maxConcurrentLimit, defaultMaxConcurrent)
	e.sem = make(chan struct{}, mc)
	if cfg.MaxWait <= 0 {
		e.maxWait = defaultMaxWait
	} else {
		e.maxWait = cfg.MaxWait
	}
	e.streamBuf = clamp(cfg.StreamBuffer, 1, streamBufferLimit, defaultStreamBuffer)
	if cfg.Defaults.IsValid() {
		e.defaults = cfg.Defaults
	} else {
		e.defaults = types.DefaultParams()
	}
	e.kvCache.Store(e.defaults.EnableKVCache)
	e.startTime = time.Now()
	e.state.Store(codeIdle)
	return e
}

func clamp(v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GetState returns the current lifecycle state without blocking.
func (e *Engine) GetState() types.State { return stateNames[e.state.Load()] }

// IsRunning reports whether any execution path is active.
func (e *Engine) IsRunning() bool { return e.GetState().Active() }

func (e *Engine) setState(s types.State) {
	prev := e.state.Swap(stateCodes[s])
	if prev != stateCodes[s] {
		e.events.Publish(Event{Name: "state_change", Fields: map[string]any{
			"from": string(stateNames[prev]),
			"to":   string(s),
		}})
	}
}

// SetModelHandle binds a new model handle. Binding a non-nil handle also
// clears a sticky error state since a fresh handle is the documented caller
// intervention for recovery. Must not be called while a request is in flight.
func (e *Engine) SetModelHandle(h *runtime.Handle) {
	e.handle.Store(h)
	if h != nil && e.state.Load() == codeError {
		e.setState(types.StateIdle)
	}
}

// GetModelHandle returns the currently bound handle, or nil.
func (e *Engine) GetModelHandle() *runtime.Handle { return e.handle.Load() }

// Pause raises the cooperative pause flag. Running tasks honor it at stream
// fragment and batch item boundaries; mid-item execution is not suspended.
func (e *Engine) Pause() { e.pauseRequested.Store(true) }

// Resume clears the pause flag.
func (e *Engine) Resume() { e.pauseRequested.Store(false) }

// Stop cancels the tasks in flight right now and resets the state to idle
// from the caller's perspective. Each task captures the stop epoch when it
// starts, so a request admitted after Stop runs unaffected while the older
// tasks exit at their next safe point; futures still deliver their eventual
// result or error.
func (e *Engine) Stop() {
	e.stopEpoch.Add(1)
	e.pauseRequested.Store(false)
	if e.state.Load() != codeError {
		e.setState(types.StateIdle)
	}
}

// SetMaxConcurrentInferences resizes the admission gate to n, clamped to
// [1, 16]. Must not be called while requests are in flight.
func (e *Engine) SetMaxConcurrentInferences(n int) {
	n = clamp(n, 1, maxConcurrentLimit, defaultMaxConcurrent)
	e.mu.Lock()
	e.sem = make(chan struct{}, n)
	e.mu.Unlock()
}

// SetStreamBufferSize sets the fragment buffer size, clamped to [1, 1024].
func (e *Engine) SetStreamBufferSize(n int) {
	n = clamp(n, 1, streamBufferLimit, defaultStreamBuffer)
	e.mu.Lock()
	e.streamBuf = n
	e.mu.Unlock()
}

// EnableKVCache toggles the runtime KV cache preference for future requests.
func (e *Engine) EnableKVCache(enabled bool) { e.kvCache.Store(enabled) }

// KVCacheEnabled reports the current KV cache preference.
func (e *Engine) KVCacheEnabled() bool { return e.kvCache.Load() }

// SetDefaultParams replaces the defaults merged into incoming requests.
// Invalid defaults are rejected with a configuration error.
func (e *Engine) SetDefaultParams(p types.InferenceParams) error {
	// The prompt is per-request; ignore it when judging defaults.
	probe := p
	probe.Prompt = "x"
	if v := probe.Validate(); len(v) > 0 {
		return ErrConfiguration(v)
	}
	e.mu.Lock()
	e.defaults = p
	e.mu.Unlock()
	return nil
}

// Defaults returns a copy of the current default parameters.
func (e *Engine) Defaults() types.InferenceParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.defaults
}

// GetStats returns a consistent snapshot of cumulative counters.
func (e *Engine) GetStats() types.Stats { return e.stats.snapshot() }

// ResetStats zeroes the cumulative counters.
func (e *Engine) ResetStats() { e.stats.reset() }

// Status builds a status response for the HTTP layer.
func (e *Engine) Status() types.StatusResponse {
	e.mu.Lock()
	sem := e.sem
	e.mu.Unlock()
	st := types.StatusResponse{
		State:            string(e.GetState()),
		ActiveInferences: e.stats.snapshot().ActiveInferences,
		InflightSlots:    len(sem),
		MaxConcurrent:    cap(sem),
		Paused:           e.pauseRequested.Load(),
		UptimeSeconds:    int64(time.Since(e.startTime).Seconds()),
		ServerTimeUnix:   time.Now().Unix(),
	}
	if h := e.handle.Load(); h != nil {
		m := h.Model
		st.Model = &m
	}
	return st
}

// acquireSlot reserves one admission slot, waiting up to maxWait.
// Returns a release func to be deferred.
func (e *Engine) acquireSlot(ctx context.Context) (func(), error) {
	e.mu.Lock()
	sem := e.sem
	wait := e.maxWait
	e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{}
	}
}

// waitWhilePaused blocks at a safe point until the pause flag clears, the
// task's stop epoch is overtaken, or ctx ends. While waiting, the visible
// state is paused; active is restored on resume.
func (e *Engine) waitWhilePaused(ctx context.Context, epoch uint64, active types.State) {
	if !e.pauseRequested.Load() {
		return
	}
	e.setState(types.StatePaused)
	for e.pauseRequested.Load() && !e.stopped(epoch) && ctx.Err() == nil {
		time.Sleep(pausePollInterval)
	}
	if e.state.Load() == codePaused {
		e.setState(active)
	}
}

// stopped reports whether Stop was called after the task captured epoch.
func (e *Engine) stopped(epoch uint64) bool {
	return e.stopEpoch.Load() != epoch
}

// cancelled reports whether a later Stop or the ctx ended the work.
func (e *Engine) cancelled(ctx context.Context, epoch uint64) bool {
	return e.stopped(epoch) || ctx.Err() != nil
}
