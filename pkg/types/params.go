package types

import (
	"fmt"
	"strings"
)

// Parameter bounds enforced by Validate.
const (
	MaxTokensLimit         = 8192
	TemperatureLimit       = 2.0
	TopKLimit              = 1000
	RepetitionPenaltyLimit = 2.0
	BatchSizeLimit         = 32
)

// InferenceParams is the configuration for a single generation request.
// Construct once per request; the engine never mutates it.
type InferenceParams struct {
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" yaml:"prompt" toml:"prompt"`
	// Maximum number of new tokens to generate (1..8192).
	// example: 128
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	// Sampling temperature (0.0..2.0, higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	// Nucleus sampling probability mass (0.0..1.0).
	// example: 0.9
	TopP float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	// Top-K sampling: limit candidates to the K highest-logit tokens (1..1000).
	// example: 40
	TopK int `json:"top_k" yaml:"top_k" toml:"top_k"`
	// Repetition penalty (0.0..2.0).
	// example: 1.1
	RepetitionPenalty float64 `json:"repetition_penalty" yaml:"repetition_penalty" toml:"repetition_penalty"`
	// Number of requests processed per batch step (1..32).
	// example: 1
	BatchSize int `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	// Optional stop sequences. Generation stops when any sequence is matched.
	// example: ["\n\n","END"]
	StopSequences []string `json:"stop_sequences,omitempty" yaml:"stop_sequences" toml:"stop_sequences"`
	// Random seed for reproducibility; -1 lets the engine choose.
	// example: 42
	Seed int64 `json:"seed" yaml:"seed" toml:"seed"`
	// Reuse cached prompt prefixes when the runtime supports it.
	UseCache bool `json:"use_cache" yaml:"use_cache" toml:"use_cache"`
	// Penalty applied once per token already present in the output.
	PresencePenalty float64 `json:"presence_penalty" yaml:"presence_penalty" toml:"presence_penalty"`
	// Penalty scaled by per-token output frequency.
	FrequencyPenalty float64 `json:"frequency_penalty" yaml:"frequency_penalty" toml:"frequency_penalty"`
	// If true, deliver output incrementally via the stream callback.
	Stream bool `json:"stream" yaml:"stream" toml:"stream"`
	// Number of fragments buffered before a stream flush.
	StreamBatchSize int `json:"stream_batch_size" yaml:"stream_batch_size" toml:"stream_batch_size"`
	// Toggle the runtime KV cache for this request.
	EnableKVCache bool `json:"enable_kv_cache" yaml:"enable_kv_cache" toml:"enable_kv_cache"`
}

// DefaultParams returns a ready-to-use parameter set. Callers override the
// prompt and any sampling knobs they care about.
func DefaultParams() InferenceParams {
	return InferenceParams{
		MaxTokens:         512,
		Temperature:       0.8,
		TopP:              0.9,
		TopK:              40,
		RepetitionPenalty: 1.1,
		BatchSize:         1,
		Seed:              -1,
		UseCache:          true,
		StreamBatchSize:   1,
		EnableKVCache:     true,
	}
}

// Validate checks every bounded field independently and returns the full set
// of violations. It never short-circuits so a caller sees all problems at once.
func (p InferenceParams) Validate() []string {
	var violations []string
	if strings.TrimSpace(p.Prompt) == "" {
		violations = append(violations, "prompt must not be empty")
	}
	if p.MaxTokens < 1 || p.MaxTokens > MaxTokensLimit {
		violations = append(violations, fmt.Sprintf("max_tokens must be in [1, %d], got %d", MaxTokensLimit, p.MaxTokens))
	}
	if p.Temperature < 0 || p.Temperature > TemperatureLimit {
		violations = append(violations, fmt.Sprintf("temperature must be in [0.0, %.1f], got %g", TemperatureLimit, p.Temperature))
	}
	if p.TopP < 0 || p.TopP > 1 {
		violations = append(violations, fmt.Sprintf("top_p must be in [0.0, 1.0], got %g", p.TopP))
	}
	if p.TopK < 1 || p.TopK > TopKLimit {
		violations = append(violations, fmt.Sprintf("top_k must be in [1, %d], got %d", TopKLimit, p.TopK))
	}
	if p.RepetitionPenalty < 0 || p.RepetitionPenalty > RepetitionPenaltyLimit {
		violations = append(violations, fmt.Sprintf("repetition_penalty must be in [0.0, %.1f], got %g", RepetitionPenaltyLimit, p.RepetitionPenalty))
	}
	if p.BatchSize < 1 || p.BatchSize > BatchSizeLimit {
		violations = append(violations, fmt.Sprintf("batch_size must be in [1, %d], got %d", BatchSizeLimit, p.BatchSize))
	}
	return violations
}

// IsValid reports whether Validate returns no violations.
func (p InferenceParams) IsValid() bool { return len(p.Validate()) == 0 }
