// Package pipeline wires the applier, branch operator, evaluator, selector,
// and ledger into one exploration round: materialize candidates, evaluate
// them concurrently, pick one winner, collapse the rest, and record the
// batch.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"superpose/internal/branch"
	"superpose/internal/config"
	"superpose/internal/evaluate"
	"superpose/internal/fitness"
	"superpose/internal/ledger"
	"superpose/internal/mutate"
	"superpose/internal/rng"
	"superpose/internal/variant"
)

// Events are the pipeline's observation points. Nil fields are skipped.
// Callbacks run synchronously on the calling goroutine, so handlers should
// return quickly.
type Events struct {
	// VariantsCreated fires after candidate variants are registered.
	VariantsCreated func(ids []string)

	// BatchCompleted fires after an evaluation batch finishes, with a
	// per-variant status summary.
	BatchCompleted func(batchID string, summary map[string]string)

	// VariantSelected fires after a winner is drawn.
	VariantSelected func(id string, fitness float64)
}

// Stats counts pipeline activity since construction.
type Stats struct {
	RoundsRun         int
	VariantsCreated   int
	VariantsCollapsed int
}

// Result is one completed exploration round.
type Result struct {
	Winner  variant.Variant
	Fitness float64
	Batch   variant.ExecutionBatch
}

// Pipeline owns one store, one ledger, and one random source. It is driven
// from a single calling goroutine; only the evaluation inside a round runs
// concurrently.
type Pipeline struct {
	store    *variant.Store
	ledger   ledger.Ledger
	operator *branch.Operator
	eval     *evaluate.Evaluator
	selector *fitness.Selector
	cfg      config.Config
	events   Events
	log      *zap.Logger

	statsMu sync.Mutex
	stats   Stats
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger shared by the pipeline and its components.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithLedger replaces the default in-memory ledger.
func WithLedger(l ledger.Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// WithEvents registers the observation callbacks.
func WithEvents(e Events) Option {
	return func(p *Pipeline) { p.events = e }
}

// New builds a pipeline from the config. The config seed drives every
// stochastic decision; rounds with the same seed and inputs reproduce
// exactly.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}

	p.store = variant.NewStore(p.log)
	if p.ledger == nil {
		switch cfg.Ledger.Backend {
		case "sqlite":
			l, err := ledger.OpenSQLite(cfg.Ledger.Path)
			if err != nil {
				return nil, err
			}
			p.ledger = l
		default:
			p.ledger = ledger.NewMemory()
		}
	}

	src := rng.New(cfg.Seed)
	p.operator = branch.NewOperator(p.store, p.log)
	p.eval = evaluate.New(p.store, src, cfg.Evaluation, p.log)
	p.selector = fitness.NewSelector(p.store, src.Derive("selector"), p.log)
	return p, nil
}

// Explore runs one full round: one candidate per directive set, evaluated
// and reduced to a single winner. Candidates share the probability mass of
// an equal split, weight 1/sqrt(n) each. Criteria with all-zero weights fall
// back to the configured defaults.
func (p *Pipeline) Explore(ctx context.Context, base *variant.Snapshot, directiveSets [][]mutate.Directive, criteria fitness.Criteria) (Result, error) {
	if len(directiveSets) == 0 {
		return Result{}, fmt.Errorf("no directive sets to explore")
	}
	if criteria == (fitness.Criteria{}) {
		criteria = p.cfg.Criteria
	}

	ids, err := p.Materialize(base, directiveSets)
	if err != nil {
		return Result{}, err
	}

	batch, err := p.Evaluate(ctx, ids)
	if err != nil {
		return Result{}, err
	}

	winner, score, err := p.Select(ids, criteria)
	if err != nil {
		return Result{}, err
	}

	p.statsMu.Lock()
	p.stats.RoundsRun++
	p.statsMu.Unlock()

	p.log.Info("exploration round complete",
		zap.String("winner", winner.ID),
		zap.Float64("fitness", score),
		zap.Int("candidates", len(ids)))
	return Result{Winner: winner, Fitness: score, Batch: batch}, nil
}

// Materialize applies each directive set to the base and registers the
// resulting variants. Any invalid set fails the whole call before anything
// is registered.
func (p *Pipeline) Materialize(base *variant.Snapshot, directiveSets [][]mutate.Directive) ([]string, error) {
	snapshots := make([]*variant.Snapshot, 0, len(directiveSets))
	for i, directives := range directiveSets {
		snap, err := mutate.Apply(base, directives)
		if err != nil {
			return nil, fmt.Errorf("directive set %d: %w", i, err)
		}
		snapshots = append(snapshots, snap)
	}

	weight := 1 / math.Sqrt(float64(len(snapshots)))
	now := time.Now()
	ids := make([]string, 0, len(snapshots))
	for i, snap := range snapshots {
		v := &variant.Variant{
			ID:        uuid.NewString(),
			Name:      fmt.Sprintf("candidate-%d", i),
			Weight:    weight,
			Snapshot:  snap,
			Status:    variant.StatusPending,
			CreatedAt: now,
		}
		p.store.Add(v)
		ids = append(ids, v.ID)
	}

	p.statsMu.Lock()
	p.stats.VariantsCreated += len(ids)
	p.statsMu.Unlock()

	if p.events.VariantsCreated != nil {
		p.events.VariantsCreated(append([]string(nil), ids...))
	}
	return ids, nil
}

// Branch splits a variant into weighted children. See branch.Operator.Split.
func (p *Pipeline) Branch(parentID string, factor int, mode branch.Mode, weights ...float64) ([]variant.Variant, error) {
	children, err := p.operator.Split(parentID, factor, mode, weights...)
	if err != nil {
		return nil, err
	}

	p.statsMu.Lock()
	p.stats.VariantsCreated += len(children)
	p.statsMu.Unlock()

	if p.events.VariantsCreated != nil {
		ids := make([]string, len(children))
		for i, c := range children {
			ids[i] = c.ID
		}
		p.events.VariantsCreated(ids)
	}
	return children, nil
}

// Entangle correlates a performance property across the variants.
func (p *Pipeline) Entangle(ids []string, property string, strength float64) (variant.EntanglementGroup, error) {
	return p.operator.Entangle(ids, property, strength)
}

// Evaluate runs one batch over the variants, honoring the configured
// timeout, and appends it to the ledger.
func (p *Pipeline) Evaluate(ctx context.Context, ids []string) (variant.ExecutionBatch, error) {
	if timeout, err := p.cfg.Timeout(); err == nil && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	batch, err := p.eval.Evaluate(ctx, ids)
	if err != nil {
		return variant.ExecutionBatch{}, err
	}
	if err := p.ledger.Append(batch); err != nil {
		return variant.ExecutionBatch{}, fmt.Errorf("failed to record batch %s: %w", batch.ID, err)
	}

	if p.events.BatchCompleted != nil {
		summary := make(map[string]string, len(batch.Results))
		for id, r := range batch.Results {
			summary[id] = r.Status
		}
		p.events.BatchCompleted(batch.ID, summary)
	}
	return batch, nil
}

// Select draws one winner from the candidates and collapses the rest.
func (p *Pipeline) Select(ids []string, criteria fitness.Criteria) (variant.Variant, float64, error) {
	winner, score, err := p.selector.Select(ids, criteria)
	if err != nil {
		return variant.Variant{}, 0, err
	}

	p.statsMu.Lock()
	p.stats.VariantsCollapsed += len(ids) - 1
	p.statsMu.Unlock()

	if p.events.VariantSelected != nil {
		p.events.VariantSelected(winner.ID, score)
	}
	return winner, score, nil
}

// History returns the recorded batches for a variant.
func (p *Pipeline) History(variantID string) ([]variant.ExecutionBatch, error) {
	return p.ledger.Query(variantID)
}

// CleanupCollapsed drops collapsed variants from the store.
func (p *Pipeline) CleanupCollapsed() int {
	return p.store.CleanupCollapsed()
}

// Store exposes the variant store for hosts that drive rounds manually.
func (p *Pipeline) Store() *variant.Store {
	return p.store
}

// Stats returns a snapshot of activity counters.
func (p *Pipeline) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}
