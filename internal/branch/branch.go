// Package branch splits one variant into weighted children and manages
// entanglement groups. Equal splits conserve probability mass: the children's
// squared weights always sum to the parent's squared weight.
package branch

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"superpose/internal/variant"
)

// Mode selects how child weights are assigned.
type Mode string

const (
	// ModeEqual gives every child weight parent.Weight/sqrt(factor).
	ModeEqual Mode = "equal"
	// ModeWeighted uses caller-supplied weights.
	ModeWeighted Mode = "weighted"
)

// WeightOverflowError is returned when weighted-mode children claim more
// probability mass than the parent holds.
type WeightOverflowError struct {
	Parent    float64
	Requested float64
}

func (e *WeightOverflowError) Error() string {
	return fmt.Sprintf("child weights sum to %.4f, parent holds %.4f", e.Requested, e.Parent)
}

// Operator creates children and entanglement groups in a store.
//
// Operator calls must not run concurrently with an in-flight evaluation over
// the same variants; callers own that ordering.
type Operator struct {
	store *variant.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewOperator returns an operator over the store. A nil logger is replaced
// with a no-op.
func NewOperator(store *variant.Store, log *zap.Logger) *Operator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Operator{store: store, log: log, now: time.Now}
}

// Split divides the variant into factor children and registers them in the
// store. In equal mode every child gets weight parent/sqrt(factor), so
// sum(child.Weight^2) == parent.Weight^2 within floating-point epsilon. In
// weighted mode the weights argument supplies one weight per child; a sum
// exceeding the parent's weight fails with WeightOverflowError and leaves the
// store untouched.
//
// Children share the parent's snapshot pointer. That is safe copy-on-write
// sharing: the applier clones before any mutation, so siblings never observe
// each other's changes.
func (o *Operator) Split(parentID string, factor int, mode Mode, weights ...float64) ([]variant.Variant, error) {
	if factor < 2 {
		return nil, fmt.Errorf("branch factor must be >= 2, got %d", factor)
	}

	parent, err := o.store.Get(parentID)
	if err != nil {
		return nil, err
	}

	childWeights := make([]float64, factor)
	switch mode {
	case ModeEqual:
		w := parent.Weight / math.Sqrt(float64(factor))
		for i := range childWeights {
			childWeights[i] = w
		}
	case ModeWeighted:
		if len(weights) != factor {
			return nil, fmt.Errorf("weighted split needs %d weights, got %d", factor, len(weights))
		}
		var sum float64
		for _, w := range weights {
			sum += w
		}
		if sum > parent.Weight {
			return nil, &WeightOverflowError{Parent: parent.Weight, Requested: sum}
		}
		copy(childWeights, weights)
	default:
		return nil, fmt.Errorf("unknown branch mode %q", mode)
	}

	now := o.now()
	children := make([]variant.Variant, 0, factor)
	for i, w := range childWeights {
		child := &variant.Variant{
			ID:        uuid.NewString(),
			Name:      fmt.Sprintf("%s/%d", parent.Name, i),
			Weight:    w,
			Snapshot:  parent.Snapshot,
			Status:    variant.StatusPending,
			CreatedAt: now,
		}
		o.store.Add(child)
		children = append(children, *child)
	}

	o.log.Debug("variant split",
		zap.String("parent", parentID),
		zap.Int("factor", factor),
		zap.String("mode", string(mode)))
	return children, nil
}

// Entangle marks the variants entangled and registers a group correlating
// the named performance property at the given strength. Members must exist
// and be pending, running, or entangled; collapsed and completed variants
// cannot join a group.
func (o *Operator) Entangle(ids []string, property string, strength float64) (variant.EntanglementGroup, error) {
	if len(ids) < 2 {
		return variant.EntanglementGroup{}, fmt.Errorf("entanglement needs at least 2 variants, got %d", len(ids))
	}
	if strength < 0 || strength > 1 {
		return variant.EntanglementGroup{}, fmt.Errorf("correlation strength must be in [0,1], got %v", strength)
	}

	// Validate the whole set before marking anyone.
	for _, id := range ids {
		v, err := o.store.Get(id)
		if err != nil {
			return variant.EntanglementGroup{}, err
		}
		if v.Status.Terminal() {
			return variant.EntanglementGroup{}, fmt.Errorf("variant %s is %s and cannot be entangled", id, v.Status)
		}
	}

	for _, id := range ids {
		if err := o.store.Update(id, func(v *variant.Variant) error {
			return v.Transition(variant.StatusEntangled)
		}); err != nil {
			return variant.EntanglementGroup{}, err
		}
	}

	group := variant.EntanglementGroup{
		ID:        uuid.NewString(),
		Members:   append([]string(nil), ids...),
		Property:  property,
		Strength:  strength,
		CreatedAt: o.now(),
	}
	o.store.AddGroup(&group)

	o.log.Debug("variants entangled",
		zap.Strings("members", ids),
		zap.String("property", property),
		zap.Float64("strength", strength))
	return group, nil
}
