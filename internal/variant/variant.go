// Package variant holds the data model for the exploration pipeline: the
// Variant lifecycle, the Snapshot bundle under exploration, evaluation
// outcomes, entanglement groups, execution batches, and the Store that owns
// all shared mutable state for one pipeline instance.
package variant

import (
	"fmt"
	"time"
)

// Status is a Variant's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCollapsed Status = "collapsed"
	StatusEntangled Status = "entangled"
)

// CanTransition reports whether a variant may move from s to next.
// pending → running → {completed, collapsed, entangled}; entangled variants
// may still be completed or collapsed by a later selection round; completed
// and collapsed are terminal.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusEntangled
	case StatusRunning:
		return next == StatusCompleted || next == StatusCollapsed || next == StatusEntangled
	case StatusEntangled:
		return next == StatusCompleted || next == StatusCollapsed
	default:
		return false
	}
}

// Terminal reports whether s is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCollapsed
}

// TestCategory is one of the six fixed check categories every variant runs.
type TestCategory string

const (
	CategoryUnit        TestCategory = "unit"
	CategoryIntegration TestCategory = "integration"
	CategoryE2E         TestCategory = "e2e"
	CategoryPerformance TestCategory = "performance"
	CategorySecurity    TestCategory = "security"
	CategoryCoherence   TestCategory = "coherence"
)

// Categories lists the battery in evaluation order.
func Categories() []TestCategory {
	return []TestCategory{
		CategoryUnit, CategoryIntegration, CategoryE2E,
		CategoryPerformance, CategorySecurity, CategoryCoherence,
	}
}

// OutcomeStatus is the result of one check.
type OutcomeStatus string

const (
	OutcomePass          OutcomeStatus = "pass"
	OutcomeFail          OutcomeStatus = "fail"
	OutcomeSkip          OutcomeStatus = "skip"
	OutcomeIndeterminate OutcomeStatus = "indeterminate"
	OutcomeTimeout       OutcomeStatus = "timeout"
)

// TestOutcome records one check run against a variant.
type TestOutcome struct {
	ID       string        `json:"id"`
	Category TestCategory  `json:"category"`
	Status   OutcomeStatus `json:"status"`
	Duration time.Duration `json:"duration"`
	Coverage float64       `json:"coverage"`
	Detail   string        `json:"detail,omitempty"`
}

// PerformanceProfile is the synthetic performance estimate for a variant.
// Units: milliseconds, requests/second, megabytes, percent, and two 0..1
// ratios.
type PerformanceProfile struct {
	ResponseTimeMS float64 `json:"response_time_ms"`
	ThroughputRPS  float64 `json:"throughput_rps"`
	MemoryMB       float64 `json:"memory_mb"`
	CPUPercent     float64 `json:"cpu_percent"`
	Reliability    float64 `json:"reliability"`
	Scalability    float64 `json:"scalability"`
}

// Variant is one candidate Snapshot plus its evaluation state and selection
// weight. Weight is probability mass in [0, 1]; the squared weights of an
// equal branch's children always sum to the parent's squared weight.
type Variant struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Weight      float64             `json:"weight"`
	Snapshot    *Snapshot           `json:"-"`
	Outcomes    []TestOutcome       `json:"outcomes,omitempty"`
	Profile     *PerformanceProfile `json:"profile,omitempty"`
	Status      Status              `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	CollapsedAt *time.Time          `json:"collapsed_at,omitempty"`
}

// Transition moves the variant to next, enforcing the lifecycle.
func (v *Variant) Transition(next Status) error {
	if !v.Status.CanTransition(next) {
		return fmt.Errorf("variant %s: illegal transition %s -> %s", v.ID, v.Status, next)
	}
	v.Status = next
	return nil
}

// clone returns a copy safe to hand to callers. The Snapshot pointer is
// shared: snapshots are immutable once attached to a variant (the applier
// always clones before mutating).
func (v *Variant) clone() Variant {
	out := *v
	if v.Outcomes != nil {
		out.Outcomes = make([]TestOutcome, len(v.Outcomes))
		copy(out.Outcomes, v.Outcomes)
	}
	if v.Profile != nil {
		p := *v.Profile
		out.Profile = &p
	}
	if v.CollapsedAt != nil {
		t := *v.CollapsedAt
		out.CollapsedAt = &t
	}
	return out
}

// EntanglementGroup correlates one PerformanceProfile property across its
// member variants. Strength 1 means the members share a single draw;
// strength 0 degenerates to independent sampling.
type EntanglementGroup struct {
	ID        string    `json:"id"`
	Members   []string  `json:"members"`
	Property  string    `json:"property"`
	Strength  float64   `json:"strength"`
	CreatedAt time.Time `json:"created_at"`
}

// BatchStatus is the lifecycle of one evaluation batch.
type BatchStatus string

const (
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
)

// VariantResult is one variant's entry in a batch result map.
type VariantResult struct {
	VariantID string              `json:"variant_id"`
	Status    string              `json:"status"` // completed, failed, timeout
	Outcomes  []TestOutcome       `json:"outcomes,omitempty"`
	Profile   *PerformanceProfile `json:"profile,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// ExecutionBatch records one parallel evaluation round. Result-map keys are
// always a subset of VariantIDs.
type ExecutionBatch struct {
	ID          string                   `json:"id"`
	VariantIDs  []string                 `json:"variant_ids"`
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt time.Time                `json:"completed_at"`
	Status      BatchStatus              `json:"status"`
	Results     map[string]VariantResult `json:"results"`
}

// Clone returns a deep copy of the batch. The ledger stores clones so
// historical batches can never be mutated through retained references.
func (b ExecutionBatch) Clone() ExecutionBatch {
	out := b
	out.VariantIDs = append([]string(nil), b.VariantIDs...)
	out.Results = make(map[string]VariantResult, len(b.Results))
	for id, r := range b.Results {
		rc := r
		rc.Outcomes = append([]TestOutcome(nil), r.Outcomes...)
		if r.Profile != nil {
			p := *r.Profile
			rc.Profile = &p
		}
		out.Results[id] = rc
	}
	return out
}
