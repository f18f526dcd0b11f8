package types

// Finish reasons reported in InferenceResult.FinishReason.
const (
	FinishCompleted = "completed"
	FinishLength    = "length"
	FinishStop      = "stop"
	FinishError     = "error"
)

// InferenceResult is the output of one completed request. The engine creates
// it exactly once at the end of execution; it is returned by value and never
// mutated afterwards.
type InferenceResult struct {
	// Generated completion text. Empty when FinishReason is "error".
	Text string `json:"text"`
	// Optional per-token log probabilities when the runtime reports them.
	Logprobs []float64 `json:"logprobs,omitempty"`
	// Number of completion tokens produced.
	TokensGenerated int `json:"tokens_generated"`
	// Wall-clock execution time in seconds.
	TotalTime float64 `json:"total_time"`
	// TokensGenerated / TotalTime; 0 when TotalTime is not positive.
	TokensPerSecond float64 `json:"tokens_per_second"`
	// True when generation ran to a terminal condition other than failure.
	Finished bool `json:"finished"`
	// One of "completed", "length", "stop", "error".
	FinishReason string `json:"finish_reason"`
	// Token accounting.
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorInfo describes a per-item failure inside a batch.
type ErrorInfo struct {
	// Coarse failure category, e.g. MODEL_OPERATION.
	// example: MODEL_OPERATION
	Category string `json:"category"`
	// Stable machine-readable code.
	// example: BATCH_INFERENCE_FAILED
	Code string `json:"code"`
	// Human-readable message.
	Message string `json:"message"`
}

// Empty reports whether the ErrorInfo carries no failure.
func (e ErrorInfo) Empty() bool { return e.Category == "" && e.Code == "" && e.Message == "" }

// BatchRequest pairs a caller-chosen id with the parameters for one item.
type BatchRequest struct {
	ID     string          `json:"id"`
	Params InferenceParams `json:"params"`
}

// BatchResult is the outcome of one batch item. A non-empty Error means this
// item failed independently; the rest of the batch is unaffected.
type BatchResult struct {
	ID     string          `json:"id"`
	Result InferenceResult `json:"result"`
	Error  ErrorInfo       `json:"error,omitempty"`
}

// Stats is a consistent snapshot of cumulative engine counters.
type Stats struct {
	// Total completed executions (successful or error-shaped results).
	TotalInferences uint64 `json:"total_inferences"`
	// Total completion tokens across all executions.
	TotalTokensGenerated uint64 `json:"total_tokens_generated"`
	// Running mean of per-request tokens/second.
	AverageTokensPerSecond float64 `json:"average_tokens_per_second"`
	// Running mean of per-request wall-clock seconds.
	AverageLatency float64 `json:"average_latency"`
	// Requests currently executing.
	ActiveInferences int `json:"active_inferences"`
}
