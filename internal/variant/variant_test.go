package variant

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusEntangled, true},
		{StatusPending, StatusCompleted, false},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusCollapsed, true},
		{StatusRunning, StatusEntangled, true},
		{StatusEntangled, StatusCompleted, true},
		{StatusEntangled, StatusCollapsed, true},
		{StatusEntangled, StatusRunning, false},
		{StatusCompleted, StatusRunning, false},
		{StatusCompleted, StatusCollapsed, false},
		{StatusCollapsed, StatusRunning, false},
		{StatusRunning, StatusRunning, true}, // self-transition is a no-op
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestVariantTransitionEnforced(t *testing.T) {
	v := &Variant{ID: "v1", Status: StatusCollapsed}
	if err := v.Transition(StatusRunning); err == nil {
		t.Fatal("expected error reviving a collapsed variant")
	}
	if v.Status != StatusCollapsed {
		t.Fatalf("failed transition mutated status to %s", v.Status)
	}
}

func TestSnapshotCloneIsDeepAndUnaliased(t *testing.T) {
	base := &Snapshot{
		Files:        map[string]string{"main.go": "package main"},
		Dependencies: []string{"left-pad@1.0", "react"},
		Config:       map[string]string{"env": "dev"},
		Architecture: Architecture{
			Components:  []Component{{ID: "api", Name: "API", Kind: "service"}},
			Connections: []Connection{{From: "api", To: "db", Kind: "sql"}},
			Patterns:    []string{"layered"},
		},
		Version: "1.0.0",
	}

	clone := base.Clone()
	if diff := cmp.Diff(base, clone); diff != "" {
		t.Fatalf("clone differs from base (-base +clone):\n%s", diff)
	}

	clone.Files["main.go"] = "mutated"
	clone.Dependencies[0] = "mutated"
	clone.Config["env"] = "mutated"
	clone.Architecture.Components[0].Name = "mutated"

	if base.Files["main.go"] != "package main" {
		t.Error("clone aliases Files")
	}
	if base.Dependencies[0] != "left-pad@1.0" {
		t.Error("clone aliases Dependencies")
	}
	if base.Config["env"] != "dev" {
		t.Error("clone aliases Config")
	}
	if base.Architecture.Components[0].Name != "API" {
		t.Error("clone aliases Architecture components")
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := NewStore(nil)
	s.Add(&Variant{ID: "v1", Name: "a", Weight: 1, Status: StatusPending, CreatedAt: time.Now()})

	got, err := s.Get("v1")
	if err != nil {
		t.Fatal(err)
	}
	got.Weight = 0.123
	got.Outcomes = append(got.Outcomes, TestOutcome{ID: "x"})

	again, _ := s.Get("v1")
	if again.Weight != 1 || len(again.Outcomes) != 0 {
		t.Fatal("Get returned a live reference, not a copy")
	}
}

func TestStoreUpdateAndNotFound(t *testing.T) {
	s := NewStore(nil)
	s.Add(&Variant{ID: "v1", Status: StatusPending})

	if err := s.Update("v1", func(v *Variant) error {
		return v.Transition(StatusRunning)
	}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get("v1")
	if got.Status != StatusRunning {
		t.Fatalf("status = %s, want running", got.Status)
	}

	err := s.Update("ghost", func(*Variant) error { return nil })
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCleanupCollapsedRemovesOnlyCollapsed(t *testing.T) {
	s := NewStore(nil)
	s.Add(&Variant{ID: "winner", Status: StatusCompleted})
	s.Add(&Variant{ID: "loser1", Status: StatusCollapsed})
	s.Add(&Variant{ID: "loser2", Status: StatusCollapsed})
	s.AddGroup(&EntanglementGroup{ID: "g1", Members: []string{"loser1", "loser2"}})

	if n := s.CleanupCollapsed(); n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	if !s.Has("winner") {
		t.Error("winner was evicted")
	}
	if s.Has("loser1") || s.Has("loser2") {
		t.Error("collapsed variants survived cleanup")
	}
	if _, ok := s.GroupFor("loser1"); ok {
		t.Error("dead group still indexed")
	}
}

func TestBatchCloneIsDeep(t *testing.T) {
	b := ExecutionBatch{
		ID:         "b1",
		VariantIDs: []string{"v1"},
		Results: map[string]VariantResult{
			"v1": {
				VariantID: "v1",
				Outcomes:  []TestOutcome{{ID: "o1", Status: OutcomePass}},
				Profile:   &PerformanceProfile{Reliability: 0.99},
			},
		},
	}
	c := b.Clone()
	c.VariantIDs[0] = "mutated"
	r := c.Results["v1"]
	r.Outcomes[0].Status = OutcomeFail
	r.Profile.Reliability = 0
	c.Results["v1"] = r

	if b.VariantIDs[0] != "v1" {
		t.Error("clone aliases VariantIDs")
	}
	if b.Results["v1"].Outcomes[0].Status != OutcomePass {
		t.Error("clone aliases outcomes")
	}
	if b.Results["v1"].Profile.Reliability != 0.99 {
		t.Error("clone aliases profile")
	}
}
