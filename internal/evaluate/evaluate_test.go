package evaluate

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"superpose/internal/rng"
	"superpose/internal/variant"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func addVariant(s *variant.Store, id string, weight float64) {
	s.Add(&variant.Variant{
		ID:        id,
		Name:      id,
		Weight:    weight,
		Snapshot:  &variant.Snapshot{Version: "1"},
		Status:    variant.StatusPending,
		CreatedAt: time.Now(),
	})
}

func TestCategoryStatusPolicy(t *testing.T) {
	cases := []struct {
		name         string
		weight, roll float64
		want         variant.OutcomeStatus
	}{
		{"heavy lucky", 0.9, 0.5, variant.OutcomePass}, // seeded roll 0.5 on weight 0.9
		{"heavy barely", 0.81, 0.11, variant.OutcomePass},
		{"heavy unlucky falls through", 0.9, 0.05, variant.OutcomeSkip},
		{"mid lucky", 0.7, 0.8, variant.OutcomePass},
		{"mid unlucky", 0.7, 0.3, variant.OutcomeIndeterminate},
		{"mid boundary", 0.8, 0.7, variant.OutcomeIndeterminate},
		{"low", 0.4, 0.99, variant.OutcomeFail},
		{"low boundary", 0.5, 0.0, variant.OutcomeFail},
		{"negligible", 0.1, 0.99, variant.OutcomeSkip},
		{"zero", 0.0, 0.5, variant.OutcomeSkip},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CategoryStatus(tc.weight, tc.roll); got != tc.want {
				t.Errorf("CategoryStatus(%v, %v) = %s, want %s", tc.weight, tc.roll, got, tc.want)
			}
		})
	}
}

func TestEvaluateRunsFullBattery(t *testing.T) {
	store := variant.NewStore(nil)
	addVariant(store, "v1", 0.9)

	e := New(store, rng.NewSequence(0.5), Config{Workers: 2}, nil)
	batch, err := e.Evaluate(context.Background(), []string{"v1"})
	if err != nil {
		t.Fatal(err)
	}

	res, ok := batch.Results["v1"]
	if !ok || res.Status != "completed" {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Outcomes) != 6 {
		t.Fatalf("got %d outcomes, want 6", len(res.Outcomes))
	}
	for _, o := range res.Outcomes {
		if o.Status != variant.OutcomePass {
			t.Errorf("%s: status %s, want pass (weight 0.9, roll 0.5)", o.Category, o.Status)
		}
	}
	if res.Profile == nil {
		t.Fatal("no profile recorded")
	}

	v, _ := store.Get("v1")
	if v.Status != variant.StatusRunning {
		t.Errorf("variant status = %s, want running", v.Status)
	}
	if len(v.Outcomes) != 6 || v.Profile == nil {
		t.Error("outcomes/profile not written to the store")
	}
}

func TestEvaluateUnknownIDFailsFast(t *testing.T) {
	store := variant.NewStore(nil)
	addVariant(store, "v1", 0.9)

	e := New(store, rng.New(1), Config{Workers: 2}, nil)
	_, err := e.Evaluate(context.Background(), []string{"v1", "ghost"})
	var nf *variant.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	// Fail-fast means nothing ran.
	v, _ := store.Get("v1")
	if v.Status != variant.StatusPending {
		t.Errorf("variant status = %s, want pending", v.Status)
	}
}

func TestUnitFailureDoesNotAbortSiblings(t *testing.T) {
	store := variant.NewStore(nil)
	addVariant(store, "ok", 0.9)
	// Terminal variant: its unit errors on the status check.
	store.Add(&variant.Variant{ID: "dead", Weight: 0.9, Status: variant.StatusCompleted})

	e := New(store, rng.NewSequence(0.5), Config{Workers: 2}, nil)
	batch, err := e.Evaluate(context.Background(), []string{"ok", "dead"})
	if err != nil {
		t.Fatal(err)
	}

	if batch.Results["ok"].Status != "completed" {
		t.Errorf("sibling was dragged down: %+v", batch.Results["ok"])
	}
	dead := batch.Results["dead"]
	if dead.Status != "failed" || dead.Error == "" {
		t.Fatalf("failed unit not recorded: %+v", dead)
	}
	if len(dead.Outcomes) != 1 || dead.Outcomes[0].Status != variant.OutcomeFail {
		t.Fatalf("failed unit outcomes = %+v", dead.Outcomes)
	}
	if dead.Outcomes[0].Detail == "" {
		t.Error("error detail missing from failed outcome")
	}
}

func TestEvaluateExpiredContextMarksTimeout(t *testing.T) {
	store := variant.NewStore(nil)
	addVariant(store, "v1", 0.9)
	addVariant(store, "v2", 0.9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(store, rng.New(1), Config{Workers: 2}, nil)
	batch, err := e.Evaluate(ctx, []string{"v1", "v2"})
	if err != nil {
		t.Fatal(err)
	}
	if batch.Status != variant.BatchCompleted {
		t.Errorf("batch status = %s, want completed", batch.Status)
	}
	for _, id := range []string{"v1", "v2"} {
		if got := batch.Results[id].Status; got != "timeout" {
			t.Errorf("%s status = %q, want timeout", id, got)
		}
	}
}

func TestEvaluateDeterministicUnderSeed(t *testing.T) {
	run := func() variant.ExecutionBatch {
		store := variant.NewStore(nil)
		addVariant(store, "a", 0.9)
		addVariant(store, "b", 0.6)
		addVariant(store, "c", 0.3)
		e := New(store, rng.New(1234), Config{Workers: 3}, nil)
		batch, err := e.Evaluate(context.Background(), []string{"a", "b", "c"})
		if err != nil {
			t.Fatal(err)
		}
		return batch
	}

	first, second := run(), run()
	for _, id := range []string{"a", "b", "c"} {
		f, s := first.Results[id], second.Results[id]
		if *f.Profile != *s.Profile {
			t.Errorf("%s: profiles diverged across runs:\n%+v\n%+v", id, f.Profile, s.Profile)
		}
		for i := range f.Outcomes {
			if f.Outcomes[i].Status != s.Outcomes[i].Status {
				t.Errorf("%s outcome %d diverged: %s vs %s",
					id, i, f.Outcomes[i].Status, s.Outcomes[i].Status)
			}
		}
	}
}

func TestProfileDegradation(t *testing.T) {
	// Fixed rolls pin every baseline draw to the midpoint.
	store := variant.NewStore(nil)
	addVariant(store, "v1", 0.5)

	cfg := Config{Workers: 1, Baselines: Baselines{
		ResponseTimeMS: Range{100, 100},
		ThroughputRPS:  Range{1000, 1000},
		MemoryMB:       Range{256, 256},
		CPUPercent:     Range{40, 40},
		Reliability:    Range{0.99, 0.99},
		Scalability:    Range{0.9, 0.9},
	}}
	e := New(store, rng.NewSequence(0.5), cfg, nil)
	batch, err := e.Evaluate(context.Background(), []string{"v1"})
	if err != nil {
		t.Fatal(err)
	}

	p := batch.Results["v1"].Profile
	const u = 0.5
	approx := func(name string, got, want float64) {
		if diff := got - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	approx("responseTime", p.ResponseTimeMS, 100*(1+0.5*u))
	approx("throughput", p.ThroughputRPS, 1000*(1-0.3*u))
	approx("memory", p.MemoryMB, 256*(1+0.4*u))
	approx("cpu", p.CPUPercent, 40*(1+0.3*u))
	approx("reliability", p.Reliability, 0.99*(1-0.2*u))
	approx("scalability", p.Scalability, 0.9*(1-0.25*u))
}

func TestEntangledPropertyIsCorrelated(t *testing.T) {
	store := variant.NewStore(nil)
	addVariant(store, "a", 0.9)
	addVariant(store, "b", 0.9)
	store.AddGroup(&variant.EntanglementGroup{
		ID:       "g1",
		Members:  []string{"a", "b"},
		Property: "reliability",
		Strength: 1.0,
	})
	for _, id := range []string{"a", "b"} {
		if err := store.Update(id, func(v *variant.Variant) error {
			return v.Transition(variant.StatusEntangled)
		}); err != nil {
			t.Fatal(err)
		}
	}

	e := New(store, rng.New(99), Config{Workers: 2}, nil)
	batch, err := e.Evaluate(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}

	pa, pb := batch.Results["a"].Profile, batch.Results["b"].Profile
	if pa.Reliability != pb.Reliability {
		t.Errorf("full-strength entanglement: reliability diverged: %v vs %v",
			pa.Reliability, pb.Reliability)
	}
	// Uncorrelated properties still draw independently per variant.
	if pa.ResponseTimeMS == pb.ResponseTimeMS {
		t.Error("independent property suspiciously identical")
	}

	va, _ := store.Get("a")
	if va.Status != variant.StatusEntangled {
		t.Errorf("entangled variant moved to %s during evaluation", va.Status)
	}
}
