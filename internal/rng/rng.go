// Package rng provides the seedable random source threaded through the
// pipeline. Every stochastic decision (test rolls, performance baselines,
// selection draws) goes through a Source so a fixed seed pins the whole
// explore round exactly, regardless of worker scheduling.
package rng

import (
	"hash/fnv"
	"math/rand"
	"sync"
)

// Source yields uniform floats in [0, 1). Implementations must be safe for
// concurrent use.
type Source interface {
	// Float64 returns the next draw in [0, 1).
	Float64() float64

	// Derive returns an independent Source whose stream depends only on the
	// root seed and the label, never on how many draws other goroutines have
	// taken. The evaluator derives one sub-source per variant id so that
	// worker scheduling cannot change outcomes.
	Derive(label string) Source
}

type seeded struct {
	mu   sync.Mutex
	r    *rand.Rand
	seed int64
}

// New returns a Source seeded with the given value.
func New(seed int64) Source {
	return &seeded{r: rand.New(rand.NewSource(seed)), seed: seed}
}

func (s *seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *seeded) Derive(label string) Source {
	h := fnv.New64a()
	h.Write([]byte(label))
	return New(s.seed ^ int64(h.Sum64()))
}

// Sequence is a scripted Source for tests. It replays the given values in
// order and wraps around when exhausted. Derive returns a fresh cursor over
// the same script, so every derived stream starts from the first value.
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequence returns a Source that replays values. It panics if values is
// empty; a scripted source with nothing to say is a test bug.
func NewSequence(values ...float64) *Sequence {
	if len(values) == 0 {
		panic("rng: NewSequence requires at least one value")
	}
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

func (s *Sequence) Derive(string) Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Sequence{values: s.values}
}
