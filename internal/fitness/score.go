// Package fitness scores variants and selects one winner per round by a
// fitness-proportionate draw.
package fitness

import (
	"superpose/internal/variant"
)

// Criteria weights the four fitness signals. All weights are caller policy;
// zero weights simply mute a signal.
type Criteria struct {
	TestWeight        float64 `yaml:"test_weight" json:"test_weight"`
	PerformanceWeight float64 `yaml:"performance_weight" json:"performance_weight"`
	ProbabilityWeight float64 `yaml:"probability_weight" json:"probability_weight"`
	ComplexityWeight  float64 `yaml:"complexity_weight" json:"complexity_weight"`
}

// DefaultCriteria weights all four signals evenly.
func DefaultCriteria() Criteria {
	return Criteria{
		TestWeight:        0.25,
		PerformanceWeight: 0.25,
		ProbabilityWeight: 0.25,
		ComplexityWeight:  0.25,
	}
}

// Normalization ceilings for performance metrics. A response time at or
// beyond the ceiling scores zero; throughput at or beyond its ceiling scores
// one. Tunable policy constants.
const (
	responseTimeCeilingMS = 1000
	throughputCeilingRPS  = 2000
	memoryCeilingMB       = 1024
	cpuCeilingPercent     = 100
)

// Per-metric weights inside the performance score. Inverse metrics (lower is
// better) are normalized before weighting.
const (
	wResponseTime = 0.2
	wThroughput   = 0.2
	wMemory       = 0.1
	wCPU          = 0.1
	wReliability  = 0.2
	wScalability  = 0.2
)

// Score is pure and stateless: the same variant and criteria always produce
// the same value. It combines the pass ratio of recorded outcomes, the
// normalized performance profile, the variant's own probability mass, and a
// structural complexity penalty.
func Score(v variant.Variant, c Criteria) float64 {
	return TestScore(v)*c.TestWeight +
		PerfScore(v.Profile)*c.PerformanceWeight +
		v.Weight*c.ProbabilityWeight +
		ComplexityScore(v.Snapshot)*c.ComplexityWeight
}

// TestScore is the fraction of recorded outcomes that passed, 0 when none
// have run.
func TestScore(v variant.Variant) float64 {
	if len(v.Outcomes) == 0 {
		return 0
	}
	passed := 0
	for _, o := range v.Outcomes {
		if o.Status == variant.OutcomePass {
			passed++
		}
	}
	return float64(passed) / float64(len(v.Outcomes))
}

// PerfScore is the weighted combination of normalized profile metrics, 0 for
// a variant with no profile.
func PerfScore(p *variant.PerformanceProfile) float64 {
	if p == nil {
		return 0
	}
	return wResponseTime*inverse(p.ResponseTimeMS, responseTimeCeilingMS) +
		wThroughput*direct(p.ThroughputRPS, throughputCeilingRPS) +
		wMemory*inverse(p.MemoryMB, memoryCeilingMB) +
		wCPU*inverse(p.CPUPercent, cpuCeilingPercent) +
		wReliability*clamp01(p.Reliability) +
		wScalability*clamp01(p.Scalability)
}

// ComplexityScore penalizes component count: 1 at zero components, 0 at one
// hundred or more.
func ComplexityScore(s *variant.Snapshot) float64 {
	if s == nil {
		return 1
	}
	return max(0, 1-float64(len(s.Architecture.Components))/100)
}

func inverse(value, ceiling float64) float64 {
	return clamp01(1 - value/ceiling)
}

func direct(value, ceiling float64) float64 {
	return clamp01(value / ceiling)
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}
