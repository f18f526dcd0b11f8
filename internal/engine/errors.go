package engine

import "strings"

// Error categories and codes used in batch item failures.
const (
	CategoryModelOperation   = "MODEL_OPERATION"
	CodeBatchInferenceFailed = "BATCH_INFERENCE_FAILED"
)

// configurationError aggregates parameter validation violations. It is always
// local and surfaced before any execution side effect.
type configurationError struct{ violations []string }

func (e configurationError) Error() string {
	return "invalid inference params: " + strings.Join(e.violations, "; ")
}

// ErrConfiguration constructs a configurationError from violations.
func ErrConfiguration(violations []string) error { return configurationError{violations: violations} }

// IsConfiguration reports whether err is a parameter validation failure.
func IsConfiguration(err error) bool {
	_, ok := err.(configurationError)
	return ok
}

// Violations returns the individual violation messages when err is a
// configuration error.
func Violations(err error) []string {
	if ce, ok := err.(configurationError); ok {
		return ce.violations
	}
	return nil
}

// engineStateError signals the engine is not ready: no model handle bound, or
// a previous failure left it in the error state. Non-retryable without caller
// intervention (rebinding a handle or constructing a fresh engine).
type engineStateError struct{ msg string }

func (e engineStateError) Error() string { return e.msg }

// ErrEngineState constructs an engineStateError.
func ErrEngineState(msg string) error { return engineStateError{msg: msg} }

// IsEngineState reports whether err indicates a not-ready engine.
func IsEngineState(err error) bool {
	_, ok := err.(engineStateError)
	return ok
}

// invalidArgumentError signals a missing or malformed call argument (e.g. a
// nil stream callback), detected before any work is spawned.
type invalidArgumentError struct{ msg string }

func (e invalidArgumentError) Error() string { return e.msg }

// ErrInvalidArgument constructs an invalidArgumentError.
func ErrInvalidArgument(msg string) error { return invalidArgumentError{msg: msg} }

// IsInvalidArgument reports whether err indicates a bad call argument.
func IsInvalidArgument(err error) bool {
	_, ok := err.(invalidArgumentError)
	return ok
}

// tooBusyError signals admission timeout/overflow for 429 mapping.
type tooBusyError struct{}

func (tooBusyError) Error() string { return "engine too busy" }

// IsTooBusy reports whether err indicates backpressure.
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}
