package variant

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Store owns every Variant and EntanglementGroup for one pipeline instance.
// Writes are serialized per-variant-id: each entry carries its own mutex, so
// concurrent evaluation of distinct variants never contends. The outer lock
// only guards the maps themselves.
//
// Variants are created by the applier or the branch operator, mutated only by
// the evaluator (outcomes, profile) and the selector (status, collapse time),
// and removed only by CleanupCollapsed.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	groups   map[string]*EntanglementGroup // group id -> group
	byMember map[string]string             // variant id -> group id
	log      *zap.Logger
}

type entry struct {
	mu sync.Mutex
	v  *Variant
}

// NewStore returns an empty store. A nil logger is replaced with a no-op.
func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		entries:  make(map[string]*entry),
		groups:   make(map[string]*EntanglementGroup),
		byMember: make(map[string]string),
		log:      log,
	}
}

// Add registers a variant. The store takes ownership of the value.
func (s *Store) Add(v *Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[v.ID] = &entry{v: v}
	s.log.Debug("variant registered",
		zap.String("id", v.ID),
		zap.String("name", v.Name),
		zap.Float64("weight", v.Weight))
}

// Get returns a copy of the variant.
func (s *Store) Get(id string) (Variant, error) {
	e, err := s.entry(id)
	if err != nil {
		return Variant{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.v.clone(), nil
}

// Update runs fn against the live variant under its per-id lock. fn sees the
// stored value directly; an error from fn aborts nothing already done to it,
// so mutators apply their changes only after their own checks pass.
func (s *Store) Update(id string, fn func(*Variant) error) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.v)
}

// List returns copies of all variants, ordered by creation time then id for
// a stable iteration order.
func (s *Store) List() []Variant {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Variant, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.v.clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Has reports whether the id is registered.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// AddGroup registers an entanglement group and indexes its members.
func (s *Store) AddGroup(g *EntanglementGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
	for _, id := range g.Members {
		s.byMember[id] = g.ID
	}
}

// GroupFor returns the entanglement group containing the variant, if any.
func (s *Store) GroupFor(variantID string) (EntanglementGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gid, ok := s.byMember[variantID]
	if !ok {
		return EntanglementGroup{}, false
	}
	g := *s.groups[gid]
	g.Members = append([]string(nil), g.Members...)
	return g, true
}

// CleanupCollapsed removes collapsed variants and returns how many were
// dropped. This is the only removal path; nothing is ever evicted
// implicitly. Groups whose members are all gone are dropped with them.
func (s *Store) CleanupCollapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		e.mu.Lock()
		collapsed := e.v.Status == StatusCollapsed
		e.mu.Unlock()
		if collapsed {
			delete(s.entries, id)
			delete(s.byMember, id)
			removed++
		}
	}

	for gid, g := range s.groups {
		live := false
		for _, id := range g.Members {
			if _, ok := s.entries[id]; ok {
				live = true
				break
			}
		}
		if !live {
			delete(s.groups, gid)
		}
	}

	if removed > 0 {
		s.log.Debug("collapsed variants cleaned up", zap.Int("removed", removed))
	}
	return removed
}

func (s *Store) entry(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return e, nil
}
