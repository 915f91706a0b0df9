// Package evaluate runs the fixed check battery against variants on a
// bounded worker pool. Nothing is actually executed: per-category statuses
// and performance profiles come from a documented stochastic policy driven
// by the injected random source, so a fixed seed reproduces a whole batch
// exactly.
package evaluate

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"superpose/internal/rng"
	"superpose/internal/variant"
)

// Range is an inclusive baseline interval a metric is drawn from.
type Range struct {
	Lo float64 `yaml:"lo"`
	Hi float64 `yaml:"hi"`
}

func (r Range) at(roll float64) float64 {
	return r.Lo + roll*(r.Hi-r.Lo)
}

// Baselines are the undegraded ranges performance metrics are drawn from.
// They are tunable policy, not measurements.
type Baselines struct {
	ResponseTimeMS Range `yaml:"response_time_ms"`
	ThroughputRPS  Range `yaml:"throughput_rps"`
	MemoryMB       Range `yaml:"memory_mb"`
	CPUPercent     Range `yaml:"cpu_percent"`
	Reliability    Range `yaml:"reliability"`
	Scalability    Range `yaml:"scalability"`
}

// Config sizes the worker pool and sets the baseline ranges.
type Config struct {
	Workers   int       `yaml:"workers"`
	Baselines Baselines `yaml:"baselines"`
}

// DefaultConfig returns a pool sized to the machine and the stock baselines.
func DefaultConfig() Config {
	return Config{
		Workers: runtime.NumCPU(),
		Baselines: Baselines{
			ResponseTimeMS: Range{50, 150},
			ThroughputRPS:  Range{500, 1500},
			MemoryMB:       Range{128, 512},
			CPUPercent:     Range{20, 60},
			Reliability:    Range{0.95, 0.999},
			Scalability:    Range{0.70, 0.95},
		},
	}
}

// CategoryStatus is the per-category outcome policy. It is a pure function
// of the variant's weight and one uniform roll:
//
//	weight > 0.8 and roll > 0.1          -> pass
//	weight in (0.5, 0.8]                 -> pass if roll > 0.7, else indeterminate
//	weight in (0.2, 0.5]                 -> fail
//	anything else                        -> skip
//
// The table is evaluated as written, top to bottom: a heavy variant with an
// unlucky roll falls through to skip.
func CategoryStatus(weight, roll float64) variant.OutcomeStatus {
	switch {
	case weight > 0.8 && roll > 0.1:
		return variant.OutcomePass
	case weight > 0.5 && weight <= 0.8:
		if roll > 0.7 {
			return variant.OutcomePass
		}
		return variant.OutcomeIndeterminate
	case weight > 0.2 && weight <= 0.5:
		return variant.OutcomeFail
	default:
		return variant.OutcomeSkip
	}
}

// categoryBaseMS is the nominal duration of each check category.
var categoryBaseMS = map[variant.TestCategory]float64{
	variant.CategoryUnit:        120,
	variant.CategoryIntegration: 800,
	variant.CategoryE2E:         2500,
	variant.CategoryPerformance: 1500,
	variant.CategorySecurity:    900,
	variant.CategoryCoherence:   300,
}

// Evaluator schedules one evaluation unit per variant onto a bounded pool.
// It is the only concurrent component in the pipeline; all store writes go
// through the per-variant-id locks.
type Evaluator struct {
	store *variant.Store
	src   rng.Source
	cfg   Config
	log   *zap.Logger
	now   func() time.Time
}

// New returns an evaluator. A zero Workers is lifted to the default; a nil
// logger becomes a no-op.
func New(store *variant.Store, src rng.Source, cfg Config, log *zap.Logger) *Evaluator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.Baselines == (Baselines{}) {
		cfg.Baselines = DefaultConfig().Baselines
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{store: store, src: src, cfg: cfg, log: log, now: time.Now}
}

// Evaluate runs one unit per variant id and returns the batch. Unknown ids
// fail fast with NotFoundError before anything starts. A unit error is
// recorded in that variant's entry and never aborts siblings. When ctx
// expires, units that have not produced results are recorded with status
// timeout; completed entries are kept. The batch itself always completes.
func (e *Evaluator) Evaluate(ctx context.Context, ids []string) (variant.ExecutionBatch, error) {
	for _, id := range ids {
		if !e.store.Has(id) {
			return variant.ExecutionBatch{}, &variant.NotFoundError{ID: id}
		}
	}

	batch := variant.ExecutionBatch{
		ID:         uuid.NewString(),
		VariantIDs: append([]string(nil), ids...),
		StartedAt:  e.now(),
		Status:     variant.BatchRunning,
		Results:    make(map[string]variant.VariantResult, len(ids)),
	}

	results := make([]variant.VariantResult, len(ids))

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = e.evaluateOne(ctx, id)
			return nil
		})
	}
	_ = g.Wait() // units never return errors

	for i, id := range ids {
		batch.Results[id] = results[i]
	}
	batch.CompletedAt = e.now()
	batch.Status = variant.BatchCompleted

	e.log.Info("evaluation batch completed",
		zap.String("batch", batch.ID),
		zap.Int("variants", len(ids)),
		zap.Duration("elapsed", batch.CompletedAt.Sub(batch.StartedAt)))
	return batch, nil
}

// evaluateOne is a self-contained blocking unit for one variant.
func (e *Evaluator) evaluateOne(ctx context.Context, id string) variant.VariantResult {
	if ctx.Err() != nil {
		return variant.VariantResult{VariantID: id, Status: "timeout", Error: ctx.Err().Error()}
	}

	v, err := e.start(id)
	if err != nil {
		return e.failed(id, err)
	}

	src := e.src.Derive("variant:" + id)
	outcomes := e.runBattery(id, v.Weight, src)
	profile := e.buildProfile(id, v.Weight, src)

	if err := e.store.Update(id, func(live *variant.Variant) error {
		live.Outcomes = append(live.Outcomes, outcomes...)
		live.Profile = profile
		return nil
	}); err != nil {
		return e.failed(id, err)
	}

	return variant.VariantResult{
		VariantID: id,
		Status:    "completed",
		Outcomes:  outcomes,
		Profile:   profile,
	}
}

// start moves a pending variant to running. Entangled variants keep their
// status; terminal variants refuse evaluation.
func (e *Evaluator) start(id string) (variant.Variant, error) {
	var out variant.Variant
	err := e.store.Update(id, func(v *variant.Variant) error {
		if v.Status == variant.StatusPending {
			if err := v.Transition(variant.StatusRunning); err != nil {
				return err
			}
		}
		if v.Status.Terminal() {
			return fmt.Errorf("variant %s is %s and cannot be evaluated", id, v.Status)
		}
		out = *v
		return nil
	})
	return out, err
}

func (e *Evaluator) runBattery(id string, weight float64, src rng.Source) []variant.TestOutcome {
	u := 1 - weight
	outcomes := make([]variant.TestOutcome, 0, 6)
	for _, cat := range variant.Categories() {
		roll := src.Float64()
		status := CategoryStatus(weight, roll)

		var coverage float64
		if status != variant.OutcomeSkip {
			coverage = 55 + 40*roll
		}
		outcomes = append(outcomes, variant.TestOutcome{
			ID:       id + "-" + string(cat),
			Category: cat,
			Status:   status,
			Duration: time.Duration(categoryBaseMS[cat]*(1+0.5*u)) * time.Millisecond,
			Coverage: coverage,
		})
	}
	return outcomes
}

// buildProfile draws each metric from its baseline range, then degrades it
// by the uncertainty factor u = 1 - weight. For a variant in an
// entanglement group, the draw for the group's named property is blended
// with a shared group draw at the stored correlation strength, so one draw
// determines the members together instead of independently.
func (e *Evaluator) buildProfile(id string, weight float64, src rng.Source) *variant.PerformanceProfile {
	group, entangled := e.store.GroupFor(id)
	var groupRoll float64
	if entangled {
		groupRoll = e.src.Derive("group:" + group.ID).Float64()
	}

	draw := func(property string) float64 {
		roll := src.Float64()
		if entangled && group.Property == property {
			return group.Strength*groupRoll + (1-group.Strength)*roll
		}
		return roll
	}

	b := e.cfg.Baselines
	u := 1 - weight
	return &variant.PerformanceProfile{
		ResponseTimeMS: b.ResponseTimeMS.at(draw("responseTime")) * (1 + 0.5*u),
		ThroughputRPS:  b.ThroughputRPS.at(draw("throughput")) * (1 - 0.3*u),
		MemoryMB:       b.MemoryMB.at(draw("memory")) * (1 + 0.4*u),
		CPUPercent:     b.CPUPercent.at(draw("cpu")) * (1 + 0.3*u),
		Reliability:    max(0.5, b.Reliability.at(draw("reliability"))*(1-0.2*u)),
		Scalability:    max(0.3, b.Scalability.at(draw("scalability"))*(1-0.25*u)),
	}
}

// failed records a unit error as a failed coherence outcome on the variant
// and in the batch entry. Sibling units are unaffected.
func (e *Evaluator) failed(id string, cause error) variant.VariantResult {
	e.log.Warn("evaluation unit failed",
		zap.String("variant", id),
		zap.Error(cause))

	outcome := variant.TestOutcome{
		ID:       id + "-" + string(variant.CategoryCoherence),
		Category: variant.CategoryCoherence,
		Status:   variant.OutcomeFail,
		Detail:   cause.Error(),
	}
	// Best effort: the variant may be gone, and terminal variants stay
	// immutable.
	_ = e.store.Update(id, func(v *variant.Variant) error {
		if v.Status.Terminal() {
			return nil
		}
		v.Outcomes = append(v.Outcomes, outcome)
		return nil
	})
	return variant.VariantResult{
		VariantID: id,
		Status:    "failed",
		Outcomes:  []variant.TestOutcome{outcome},
		Error:     cause.Error(),
	}
}
