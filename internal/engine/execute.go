package engine

import (
	"context"
	"strings"
	"time"

	"github.com/akaoio/rkllmd/pkg/types"
)

// executeInference is the execution core shared by all three paths. It
// returns a result value for runtime-level failures (finish_reason "error")
// and an error only when the engine itself is unusable. Callers rely on the
// return-vs-error split to tell a bad result from a broken engine.
func (e *Engine) executeInference(ctx context.Context, params types.InferenceParams) (types.InferenceResult, error) {
	start := time.Now()
	prompt := preprocessPrompt(params.Prompt)
	h := e.handle.Load()
	if h == nil {
		return types.InferenceResult{}, ErrEngineState("no model handle bound")
	}
	promptTokens := e.tokens.Count(prompt)

	e.stats.incActive()
	metricActiveInferences.Inc()
	defer func() {
		e.stats.decActive()
		metricActiveInferences.Dec()
	}()

	exec, err := e.runner.Execute(ctx, h, prompt)
	if err != nil {
		elapsed := time.Since(start).Seconds()
		metricInferencesTotal.WithLabelValues("error").Inc()
		return types.InferenceResult{
			Text:         "ERROR: " + err.Error(),
			Finished:     false,
			FinishReason: types.FinishError,
			PromptTokens: promptTokens,
			TotalTokens:  promptTokens,
			TotalTime:    elapsed,
		}, nil
	}

	text := exec.Text
	reason := exec.FinishReason
	if reason == "" {
		reason = types.FinishCompleted
	}
	if cut, matched := applyStopSequences(text, params.StopSequences); matched {
		text = cut
		reason = types.FinishStop
	}
	if clipped, truncated := clampLength(text, params.MaxTokens); truncated {
		text = clipped
		reason = types.FinishLength
	}

	completion := e.tokens.Count(text)
	elapsed := time.Since(start).Seconds()
	tps := 0.0
	if elapsed > 0 {
		tps = float64(completion) / elapsed
	}
	metricInferencesTotal.WithLabelValues("ok").Inc()
	metricTokensGenerated.Add(float64(completion))
	metricInferenceDuration.Observe(elapsed)
	return types.InferenceResult{
		Text:             text,
		TokensGenerated:  completion,
		TotalTime:        elapsed,
		TokensPerSecond:  tps,
		Finished:         true,
		FinishReason:     reason,
		PromptTokens:     promptTokens,
		CompletionTokens: completion,
		TotalTokens:      promptTokens + completion,
	}, nil
}

// recordResult folds a returned result into the stats. Called exactly once
// per execution that produced a result value, successful or not.
func (e *Engine) recordResult(res types.InferenceResult) {
	e.stats.record(res.CompletionTokens, res.TotalTime, res.TokensPerSecond)
}

// preprocessPrompt collapses internal whitespace runs to single spaces and
// trims leading/trailing whitespace.
func preprocessPrompt(prompt string) string {
	return strings.Join(strings.Fields(prompt), " ")
}

// applyStopSequences truncates text at the earliest occurrence of any stop
// sequence. Empty sequences are ignored.
func applyStopSequences(text string, stops []string) (string, bool) {
	cut := -1
	for _, s := range stops {
		if s == "" {
			continue
		}
		if i := strings.Index(text, s); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut < 0 {
		return text, false
	}
	return text[:cut], true
}

// clampLength truncates text to at most maxTokens placeholder tokens.
func clampLength(text string, maxTokens int) (string, bool) {
	if maxTokens <= 0 {
		return text, false
	}
	fields := strings.Fields(text)
	if len(fields) <= maxTokens {
		return text, false
	}
	return strings.Join(fields[:maxTokens], " "), true
}
