package driver

import (
	"context"
	"math"
	"testing"

	"github.com/mdokit/optdriver/internal/bench"

	_ "github.com/mdokit/optdriver/internal/solver/gradient"
	_ "github.com/mdokit/optdriver/internal/solver/mayfly"
	_ "github.com/mdokit/optdriver/internal/solver/simplex"
)

// These tests run the full pipeline against the real backends: translate,
// solve, write back. Tolerances are loose for the population method and
// tight for the deterministic ones.

func TestFullRunMayflyOnParaboloid(t *testing.T) {
	model, err := bench.New("paraboloid")
	if err != nil {
		t.Fatalf("bench.New failed: %v", err)
	}

	d := New(model, Config{
		Optimizer: "MAYFLY",
		Options:   map[string]any{"iterations": 300, "population": 30, "seed": 42},
	})
	sol, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Constrained optimum (12, -2), f = 58.
	if math.Abs(sol.Objective-58) > 5 {
		t.Errorf("Expected objective near 58, got %g", sol.Objective)
	}

	// Constraint must hold at the written-back point.
	g := model.Output("g")[0]
	if g > 0.1 {
		t.Errorf("Constraint violated at optimum: g = %g", g)
	}
	if d.Evaluations() == 0 {
		t.Error("Expected counted evaluations")
	}
}

func TestFullRunBFGSOnRosenbrock(t *testing.T) {
	model, err := bench.New("rosenbrock")
	if err != nil {
		t.Fatalf("bench.New failed: %v", err)
	}

	d := New(model, Config{Optimizer: "BFGS"})
	sol, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sol.Objective > 1e-4 {
		t.Errorf("Expected objective near 0, got %g", sol.Objective)
	}
	x := model.Parameters()[0].Values
	if math.Abs(x[0]-1) > 1e-2 || math.Abs(x[1]-1) > 1e-2 {
		t.Errorf("Expected optimum near (1, 1) in the host, got %v", x)
	}
}

func TestFullRunBFGSWithSolverFD(t *testing.T) {
	model, err := bench.New("sphere")
	if err != nil {
		t.Fatalf("bench.New failed: %v", err)
	}

	d := New(model, Config{Optimizer: "BFGS", SolverFD: true, FDStep: 1e-7})
	sol, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sol.Objective > 1e-5 {
		t.Errorf("Expected objective near 0, got %g", sol.Objective)
	}
}

func TestFullRunSimplexOnProdmix(t *testing.T) {
	model, err := bench.New("prodmix")
	if err != nil {
		t.Fatalf("bench.New failed: %v", err)
	}

	d := New(model, Config{Optimizer: "SIMPLEX"})
	sol, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if math.Abs(sol.Objective-(-36)) > 1e-6 {
		t.Errorf("Expected objective -36, got %g", sol.Objective)
	}

	values := make(map[string]float64)
	for _, p := range model.Parameters() {
		values[p.Name] = p.Values[0]
	}
	if math.Abs(values["a"]-2) > 1e-6 || math.Abs(values["b"]-6) > 1e-6 {
		t.Errorf("Expected optimum (2, 6) in the host, got (%g, %g)", values["a"], values["b"])
	}
}

func TestFullRunMayflyOnMixedKinds(t *testing.T) {
	model, err := bench.New("mixed")
	if err != nil {
		t.Fatalf("bench.New failed: %v", err)
	}

	d := New(model, Config{
		Optimizer: "MAYFLY",
		Options:   map[string]any{"iterations": 200, "population": 30, "seed": 7},
	})
	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	values := make(map[string]float64)
	for _, p := range model.Parameters() {
		values[p.Name] = p.Values[0]
	}

	// Written-back values must respect the variable kinds exactly.
	if values["enabled"] != 0 && values["enabled"] != 1 {
		t.Errorf("Boolean not snapped: %g", values["enabled"])
	}
	snapped := false
	for _, c := range []float64{0.1, 0.2, 0.5, 1.0} {
		if values["spacing"] == c {
			snapped = true
		}
	}
	if !snapped {
		t.Errorf("Enumerated value off the choice set: %g", values["spacing"])
	}
	if values["w"] < 0 || values["w"] > 5 {
		t.Errorf("Continuous value out of bounds: %g", values["w"])
	}

	// The objective rewards the enabled switch heavily; the swarm should
	// find at least that much.
	sol := d.Solution()
	if sol.Objective > 5 {
		t.Errorf("Expected objective below the disabled-switch penalty, got %g", sol.Objective)
	}
}

func TestFullRunGradientBackendRejectsIntegers(t *testing.T) {
	model, err := bench.New("sphere-int")
	if err != nil {
		t.Fatalf("bench.New failed: %v", err)
	}

	d := New(model, Config{Optimizer: "BFGS"})
	if _, err := d.Run(context.Background()); err == nil {
		t.Fatal("Expected capability error for integer variables")
	}
}
