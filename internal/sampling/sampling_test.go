package sampling

import (
	"math"
	"testing"
)

func TestGreedyDeterminism(t *testing.T) {
	g := NewGreedy()
	logits := []float64{1.0, 2.0, 3.0, 1.5}
	for _, temp := range []float64{0, 0.5, 1.0, 2.0} {
		if got := g.Sample(logits, temp, 0.9, 40); got != 2 {
			t.Fatalf("greedy at temp=%g: expected 2 got %d", temp, got)
		}
	}
}

func TestGreedyTiesPickFirst(t *testing.T) {
	g := NewGreedy()
	if got := g.Sample([]float64{5, 5, 5}, 1, 1, 1); got != 0 {
		t.Fatalf("expected first index on tie, got %d", got)
	}
}

func TestSoftmaxNormalization(t *testing.T) {
	cases := [][]float64{
		{1, 2, 3, 4},
		{-100, 0, 100},
		{0.001, 0.002, 0.003},
		{7},
	}
	for _, logits := range cases {
		for _, temp := range []float64{0.1, 0.7, 1.0, 2.0} {
			probs := Softmax(logits, temp)
			sum := 0.0
			for _, p := range probs {
				if p < 0 {
					t.Fatalf("negative probability %g", p)
				}
				sum += p
			}
			if math.Abs(sum-1.0) > 1e-6 {
				t.Fatalf("softmax sum=%g for logits=%v temp=%g", sum, logits, temp)
			}
		}
	}
}

func TestSoftmaxTemperatureSharpens(t *testing.T) {
	logits := []float64{1, 2, 3}
	cold := Softmax(logits, 0.2)
	hot := Softmax(logits, 2.0)
	if cold[2] <= hot[2] {
		t.Fatalf("expected lower temperature to concentrate mass: cold=%g hot=%g", cold[2], hot[2])
	}
}

func TestTopKBoundedness(t *testing.T) {
	logits := []float64{0.1, 5.0, 0.2, 4.0, 0.3, 3.0}
	// The 3 highest logits sit at indices 1, 3, 5.
	allowed := map[int]bool{1: true, 3: true, 5: true}
	s := NewTopK(42)
	for i := 0; i < 200; i++ {
		got := s.Sample(logits, 1.0, 0, 3)
		if !allowed[got] {
			t.Fatalf("top-k returned index %d outside the 3 highest", got)
		}
	}
}

func TestTopKLargerThanVocab(t *testing.T) {
	logits := []float64{1, 2}
	s := NewTopK(1)
	for i := 0; i < 50; i++ {
		got := s.Sample(logits, 1.0, 0, 1000)
		if got != 0 && got != 1 {
			t.Fatalf("index out of range: %d", got)
		}
	}
}

func TestTopKZeroTemperatureFallsBackToGreedy(t *testing.T) {
	s := NewTopK(7)
	if got := s.Sample([]float64{1, 9, 2}, 0, 0, 2); got != 1 {
		t.Fatalf("expected argmax at temp=0, got %d", got)
	}
}

func TestTopPMonotonicity(t *testing.T) {
	logits := []float64{3.0, 2.5, 2.0, 1.5, 1.0, 0.5}
	prev := 0
	for _, p := range []float64{0.1, 0.3, 0.5, 0.7, 0.9, 0.99} {
		n := NucleusSize(logits, 1.0, p)
		if n < prev {
			t.Fatalf("nucleus shrank from %d to %d as topP rose to %g", prev, n, p)
		}
		prev = n
	}
}

func TestTopPInclusiveCrossing(t *testing.T) {
	// Uniform distribution over 4 tokens: each has mass 0.25. topP=0.5 is
	// reached exactly at the second element, which must be included.
	logits := []float64{1, 1, 1, 1}
	if n := NucleusSize(logits, 1.0, 0.5); n != 2 {
		t.Fatalf("expected nucleus of 2 got %d", n)
	}
}

func TestTopPSamplesWithinNucleus(t *testing.T) {
	// One dominant token; a tight nucleus must always select it.
	logits := []float64{10, 0, 0, 0}
	s := NewTopP(99)
	for i := 0; i < 100; i++ {
		if got := s.Sample(logits, 1.0, 0.5, 0); got != 0 {
			t.Fatalf("expected dominant token 0, got %d", got)
		}
	}
}

func TestSeededReproducibility(t *testing.T) {
	logits := []float64{1, 2, 3, 4, 5}
	a := NewTopK(1234)
	b := NewTopK(1234)
	for i := 0; i < 20; i++ {
		x := a.Sample(logits, 1.0, 0, 4)
		y := b.Sample(logits, 1.0, 0, 4)
		if x != y {
			t.Fatalf("same seed diverged at draw %d: %d vs %d", i, x, y)
		}
	}
}

func TestArgMaxSkipsNaN(t *testing.T) {
	logits := []float64{math.NaN(), 1, 2}
	if got := ArgMax(logits); got != 2 {
		t.Fatalf("expected 2 got %d", got)
	}
}
