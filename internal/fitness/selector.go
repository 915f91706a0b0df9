package fitness

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"superpose/internal/rng"
	"superpose/internal/variant"
)

// PreconditionError is returned when Select is handed a candidate that is
// not running or entangled. A second Select over an already-decided set
// fails this way, since its losers are collapsed.
type PreconditionError struct {
	ID     string
	Status variant.Status
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("variant %s is %s; selection requires running or entangled candidates", e.ID, e.Status)
}

// Selector performs the fitness-proportionate draw and collapses the losers.
// It must not run concurrently with an evaluation over the same variants;
// callers own that ordering.
type Selector struct {
	store *variant.Store
	src   rng.Source
	log   *zap.Logger
	now   func() time.Time
}

// NewSelector returns a selector drawing from src. A nil logger becomes a
// no-op.
func NewSelector(store *variant.Store, src rng.Source, log *zap.Logger) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{store: store, src: src, log: log, now: time.Now}
}

// Select scores every candidate and draws one winner with probability
// proportional to fitness. The winner transitions to completed, every other
// candidate to collapsed, all stamped with the same collapse time. Variants
// outside the candidate set are never touched.
//
// A zero fitness total falls back to the first candidate; that is a
// recovered condition, not an error. The winner is returned with its final
// state and fitness.
func (s *Selector) Select(ids []string, c Criteria) (variant.Variant, float64, error) {
	if len(ids) == 0 {
		return variant.Variant{}, 0, fmt.Errorf("no candidates to select from")
	}

	candidates := make([]variant.Variant, 0, len(ids))
	for _, id := range ids {
		v, err := s.store.Get(id)
		if err != nil {
			return variant.Variant{}, 0, err
		}
		if v.Status != variant.StatusRunning && v.Status != variant.StatusEntangled {
			return variant.Variant{}, 0, &PreconditionError{ID: id, Status: v.Status}
		}
		candidates = append(candidates, v)
	}

	scores := make([]float64, len(candidates))
	var total float64
	for i, v := range candidates {
		scores[i] = Score(v, c)
		total += scores[i]
	}

	winner := 0
	if total > 0 {
		draw := s.src.Float64() * total
		acc := 0.0
		for i, score := range scores {
			acc += score
			if draw < acc {
				winner = i
				break
			}
		}
	} else {
		s.log.Debug("zero total fitness, falling back to first candidate")
	}

	collapsedAt := s.now()
	for i, v := range candidates {
		next := variant.StatusCollapsed
		if i == winner {
			next = variant.StatusCompleted
		}
		if err := s.store.Update(v.ID, func(live *variant.Variant) error {
			if err := live.Transition(next); err != nil {
				return err
			}
			t := collapsedAt
			live.CollapsedAt = &t
			return nil
		}); err != nil {
			return variant.Variant{}, 0, err
		}
	}

	out, err := s.store.Get(candidates[winner].ID)
	if err != nil {
		return variant.Variant{}, 0, err
	}

	s.log.Info("variant selected",
		zap.String("winner", out.ID),
		zap.Float64("fitness", scores[winner]),
		zap.Int("collapsed", len(candidates)-1))
	return out, scores[winner], nil
}
