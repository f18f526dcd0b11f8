// Package sampling implements token-selection strategies over raw logit
// vectors. All strategies scale by temperature before normalizing and use a
// stable descending sort so results are reproducible for a fixed seed.
package sampling

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

// Strategy selects a token index from a logit vector.
type Strategy interface {
	Sample(logits []float64, temperature, topP float64, topK int) int
}

type tokenProb struct {
	index int
	prob  float64
}

// Softmax returns the temperature-scaled probability distribution over logits.
// Uses max-subtraction for numerical stability. Temperature must be positive.
func Softmax(logits []float64, temperature float64) []float64 {
	probs := make([]float64, len(logits))
	if len(logits) == 0 {
		return probs
	}
	maxVal := math.Inf(-1)
	for _, v := range logits {
		scaled := v / temperature
		if scaled > maxVal {
			maxVal = scaled
		}
	}
	sum := 0.0
	for i, v := range logits {
		probs[i] = math.Exp(v/temperature - maxVal)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// ArgMax returns the index of the largest logit. Ties resolve to the first
// occurrence. NaN entries are skipped.
func ArgMax(logits []float64) int {
	maxIdx := 0
	maxVal := math.Inf(-1)
	for i, v := range logits {
		if math.IsNaN(v) {
			continue
		}
		if v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	return maxIdx
}

// sortedCandidates builds (index, prob) pairs from the temperature-scaled
// distribution, ordered by descending probability. The sort is stable so
// equal logits keep their input order.
func sortedCandidates(logits []float64, temperature float64) []tokenProb {
	probs := Softmax(logits, temperature)
	cands := make([]tokenProb, len(probs))
	for i, p := range probs {
		cands[i] = tokenProb{index: i, prob: p}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].prob > cands[j].prob })
	return cands
}

// drawFrom samples an index from candidates proportionally to prob.
func drawFrom(cands []tokenProb, rng *rand.Rand) int {
	sum := 0.0
	for _, c := range cands {
		sum += c.prob
	}
	r := rng.Float64() * sum
	acc := 0.0
	for _, c := range cands {
		acc += c.prob
		if r < acc {
			return c.index
		}
	}
	return cands[len(cands)-1].index
}

func newRNG(seed int64) *rand.Rand {
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Greedy always picks the highest-logit token; temperature, topP and topK
// are ignored.
type Greedy struct{}

// NewGreedy returns the greedy strategy.
func NewGreedy() Greedy { return Greedy{} }

func (Greedy) Sample(logits []float64, _ float64, _ float64, _ int) int {
	return ArgMax(logits)
}

// TopK samples from the min(topK, n) highest-logit tokens after temperature
// scaling. topP is ignored.
type TopK struct {
	rng *rand.Rand
}

// NewTopK returns a top-k strategy seeded with seed; a negative seed picks a
// time-based one.
func NewTopK(seed int64) *TopK { return &TopK{rng: newRNG(seed)} }

func (s *TopK) Sample(logits []float64, temperature, _ float64, topK int) int {
	if len(logits) == 0 {
		return 0
	}
	if temperature <= 0 {
		return ArgMax(logits)
	}
	cands := sortedCandidates(logits, temperature)
	if topK > 0 && topK < len(cands) {
		cands = cands[:topK]
	}
	return drawFrom(cands, s.rng)
}

// TopP performs nucleus sampling: the smallest descending-probability prefix
// whose cumulative mass reaches topP is kept (inclusive of the crossing
// element), renormalized, and sampled. topK is ignored.
type TopP struct {
	rng *rand.Rand
}

// NewTopP returns a top-p strategy seeded with seed; a negative seed picks a
// time-based one.
func NewTopP(seed int64) *TopP { return &TopP{rng: newRNG(seed)} }

func (s *TopP) Sample(logits []float64, temperature, topP float64, _ int) int {
	if len(logits) == 0 {
		return 0
	}
	if temperature <= 0 {
		return ArgMax(logits)
	}
	cands := sortedCandidates(logits, temperature)
	cands = nucleus(cands, topP)
	return drawFrom(cands, s.rng)
}

// nucleus truncates candidates to the inclusive prefix reaching mass p and
// renormalizes. p outside (0, 1) keeps the full set.
func nucleus(cands []tokenProb, p float64) []tokenProb {
	if p <= 0 || p >= 1 {
		return cands
	}
	sum := 0.0
	for i, c := range cands {
		sum += c.prob
		if sum >= p {
			kept := cands[:i+1]
			for j := range kept {
				kept[j].prob /= sum
			}
			return kept
		}
	}
	return cands
}

// NucleusSize reports how many candidates nucleus sampling would retain for
// the given distribution and threshold. Exposed for diagnostics and tests.
func NucleusSize(logits []float64, temperature, topP float64) int {
	if len(logits) == 0 {
		return 0
	}
	return len(nucleus(sortedCandidates(logits, temperature), topP))
}
