package runtime

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/akaoio/rkllmd/internal/sampling"
	"github.com/akaoio/rkllmd/pkg/types"
)

// mockRule maps a prompt substring to a canned completion.
type mockRule struct {
	substr string
	text   string
}

// MockRuntime is a deterministic generation simulator. Responses are keyed on
// prompt substrings (first matching rule wins), so tests and demos get stable
// output without NPU hardware.
type MockRuntime struct {
	rules   []mockRule
	nextID  atomic.Uint64
	counter TokenCounter
	// FailSubstring, when non-empty, makes Execute return an error for any
	// prompt containing it. Used to exercise failure paths.
	FailSubstring string
}

// NewMockRuntime returns a simulator with the default rule set.
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		rules: []mockRule{
			{substr: "hello", text: "Hello! I am a language model running on the NPU. How can I help you today?"},
			{substr: "haiku", text: "Silent circuits hum\ntokens drift like falling leaves\nthe answer takes shape"},
			{substr: "count", text: "1 2 3 4 5 6 7 8 9 10"},
			{substr: "weather", text: "I cannot observe the sky, but the forecast pipeline reports clear conditions."},
		},
		counter: NewHashTokenizer(),
	}
}

func (m *MockRuntime) Open(model types.Model) (*Handle, error) {
	if strings.TrimSpace(model.Path) == "" {
		return nil, fmt.Errorf("mock runtime: model path is empty")
	}
	return &Handle{Model: model, id: m.nextID.Add(1)}, nil
}

func (m *MockRuntime) Execute(ctx context.Context, h *Handle, prompt string) (ExecResult, error) {
	if h == nil {
		return ExecResult{}, fmt.Errorf("mock runtime: nil handle")
	}
	if err := ctx.Err(); err != nil {
		return ExecResult{}, err
	}
	if m.FailSubstring != "" && strings.Contains(prompt, m.FailSubstring) {
		return ExecResult{}, fmt.Errorf("mock runtime: simulated failure for prompt %q", truncate(prompt, 32))
	}
	text := m.respond(prompt)
	return ExecResult{
		Text:         text,
		TokenCount:   m.counter.Count(text),
		Finished:     true,
		FinishReason: types.FinishCompleted,
	}, nil
}

func (m *MockRuntime) Close(h *Handle) error { return nil }

func (m *MockRuntime) respond(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, r := range m.rules {
		if strings.Contains(lower, r.substr) {
			return r.text
		}
	}
	return m.synthesize(prompt)
}

// mockVocab is the word list the fallback generator draws from.
var mockVocab = []string{
	"the", "model", "considers", "your", "prompt", "and", "offers", "a",
	"measured", "reply", "drawn", "from", "its", "training", "signal",
	"context", "tokens", "suggest", "this", "direction", "of", "thought",
	"which", "seems", "reasonable", "given", "what", "was", "asked",
}

// synthesize mimics the host-side decode loop: per step it fabricates a
// logit vector seeded by the prompt hash and lets the top-k sampler pick a
// word. Same prompt, same output.
func (m *MockRuntime) synthesize(prompt string) string {
	seed := int64(xxhash.Sum64String(prompt))
	sampler := sampling.NewTopK(seed)
	rng := rand.New(rand.NewSource(seed))
	logits := make([]float64, len(mockVocab))
	words := make([]string, 0, 16)
	for i := 0; i < 16; i++ {
		for j := range logits {
			logits[j] = rng.Float64() * 4
		}
		words = append(words, mockVocab[sampler.Sample(logits, 0.8, 0, 5)])
	}
	return strings.Join(words, " ") + "."
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
