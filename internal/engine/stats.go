package engine

import (
	"sync"

	"github.com/akaoio/rkllmd/pkg/types"
)

// statsAggregator keeps cumulative counters and incrementally updated means.
// A single mutex guards every field so concurrent completions never lose an
// update and reads always see a consistent snapshot.
type statsAggregator struct {
	mu              sync.Mutex
	totalInferences uint64
	totalTokens     uint64
	avgTPS          float64
	avgLatency      float64
	active          int
}

// record folds one completed execution into the running means.
func (s *statsAggregator) record(tokens int, latencySec, tokensPerSec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalInferences++
	s.totalTokens += uint64(tokens)
	n := float64(s.totalInferences)
	s.avgTPS += (tokensPerSec - s.avgTPS) / n
	s.avgLatency += (latencySec - s.avgLatency) / n
}

func (s *statsAggregator) incActive() {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
}

func (s *statsAggregator) decActive() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}

// snapshot returns a consistent copy of the counters.
func (s *statsAggregator) snapshot() types.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.Stats{
		TotalInferences:        s.totalInferences,
		TotalTokensGenerated:   s.totalTokens,
		AverageTokensPerSecond: s.avgTPS,
		AverageLatency:         s.avgLatency,
		ActiveInferences:       s.active,
	}
}

// reset zeroes the cumulative counters. The active gauge is preserved since
// in-flight requests will still decrement it.
func (s *statsAggregator) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalInferences = 0
	s.totalTokens = 0
	s.avgTPS = 0
	s.avgLatency = 0
}
