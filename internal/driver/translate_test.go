package driver

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/mdokit/optdriver/internal/bench"
	"github.com/mdokit/optdriver/internal/host"
	"github.com/mdokit/optdriver/internal/solver"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		param    host.Parameter
		wantKind solver.VarKind
		wantErr  bool
	}{
		{
			name:     "float is continuous",
			param:    host.Parameter{Name: "x", Type: host.Float, Values: []float64{1}, Low: []float64{0}, High: []float64{2}},
			wantKind: solver.Continuous,
		},
		{
			name:     "int is integer",
			param:    host.Parameter{Name: "n", Type: host.Int, Values: []float64{1}, Low: []float64{0}, High: []float64{9}},
			wantKind: solver.Integer,
		},
		{
			name:     "bool is discrete",
			param:    host.Parameter{Name: "b", Type: host.Bool, Values: []float64{0}, Low: []float64{0}, High: []float64{1}},
			wantKind: solver.Discrete,
		},
		{
			name: "choice set is discrete regardless of type",
			param: host.Parameter{
				Name: "s", Type: host.Float,
				Values: []float64{0.2}, Low: []float64{0.1}, High: []float64{1},
				Choices: []float64{0.1, 0.2, 0.5},
			},
			wantKind: solver.Discrete,
		},
		{
			name:    "invalid type is a config error",
			param:   host.Parameter{Name: "bad", Type: host.TypeInvalid, Values: []float64{0}, Low: []float64{0}, High: []float64{1}},
			wantErr: true,
		},
		{
			name: "vector choice sets are rejected",
			param: host.Parameter{
				Name: "v", Type: host.Float,
				Values: []float64{0, 0}, Low: []float64{0, 0}, High: []float64{1, 1},
				Choices: []float64{0, 1},
			},
			wantErr: true,
		},
		{
			name: "empty choice set is rejected",
			param: host.Parameter{
				Name: "e", Type: host.Float,
				Values: []float64{0}, Low: []float64{0}, High: []float64{1},
				Choices: []float64{},
			},
			wantErr: true,
		},
		{
			name:    "empty parameter is rejected",
			param:   host.Parameter{Name: "z", Type: host.Float},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, _, err := classify(tt.param)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("classify failed: %v", err)
			}
			if kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, kind)
			}
		})
	}
}

func TestClassifyBoolChoices(t *testing.T) {
	p := host.Parameter{Name: "b", Type: host.Bool, Values: []float64{0}, Low: []float64{0}, High: []float64{1}}
	_, choices, err := classify(p)
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if len(choices) != 2 || choices[0] != 0 || choices[1] != 1 {
		t.Errorf("Expected bool choices [0 1], got %v", choices)
	}
}

func TestTranslatePreservesBounds(t *testing.T) {
	model, err := bench.New("paraboloid")
	if err != nil {
		t.Fatalf("bench.New failed: %v", err)
	}

	d := New(model, Config{Optimizer: "STUB-FULL"})
	prob, err := d.translate(context.Background())
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}

	if len(prob.Variables) != 2 {
		t.Fatalf("Expected 2 variable groups, got %d", len(prob.Variables))
	}
	for _, vg := range prob.Variables {
		if vg.Lower[0] != -50 || vg.Upper[0] != 50 {
			t.Errorf("Group %q bounds [%g, %g], want [-50, 50]", vg.Name, vg.Lower[0], vg.Upper[0])
		}
		if vg.Kind != solver.Continuous {
			t.Errorf("Group %q kind %s, want continuous", vg.Name, vg.Kind)
		}
	}
	if prob.Variables[0].Value[0] != 10 || prob.Variables[1].Value[0] != 20 {
		t.Errorf("Initial values not carried over: %v, %v",
			prob.Variables[0].Value, prob.Variables[1].Value)
	}
}

func TestTranslatePrecomputesLinearJacobian(t *testing.T) {
	model, err := bench.New("paraboloid")
	if err != nil {
		t.Fatalf("bench.New failed: %v", err)
	}

	d := New(model, Config{Optimizer: "STUB-FULL"})
	prob, err := d.translate(context.Background())
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}

	if len(prob.Constraints) != 1 {
		t.Fatalf("Expected 1 constraint group, got %d", len(prob.Constraints))
	}
	cg := prob.Constraints[0]
	if !cg.Linear {
		t.Fatal("Constraint should be linear")
	}
	if cg.Jacobian == nil {
		t.Fatal("Linear constraint should carry a precomputed jacobian")
	}
	// g = 10 - x - y
	if cg.Jacobian["x"][0] != -1 || cg.Jacobian["y"][0] != -1 {
		t.Errorf("Jacobian wrong: x=%v y=%v", cg.Jacobian["x"], cg.Jacobian["y"])
	}

	// Inequality bounds: (-Inf, 0]
	if !math.IsInf(cg.Lower[0], -1) || cg.Upper[0] != 0 {
		t.Errorf("Inequality bounds [%g, %g], want (-Inf, 0]", cg.Lower[0], cg.Upper[0])
	}
}

func TestTranslateEqualityBounds(t *testing.T) {
	model := newStubModel()
	model.constraints = []stubConstraint{{name: "h", size: 2, kind: host.Equality}}

	d := New(model, Config{Optimizer: "STUB-FULL"})
	prob, err := d.translate(context.Background())
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}

	cg := prob.Constraints[0]
	for i := 0; i < cg.N; i++ {
		if cg.Lower[i] != 0 || cg.Upper[i] != 0 {
			t.Errorf("Equality bounds at %d: [%g, %g], want [0, 0]", i, cg.Lower[i], cg.Upper[i])
		}
	}
}

func TestTranslateRejectsVectorChoiceSets(t *testing.T) {
	model := newStubModel()
	model.params = []host.Parameter{{
		Name:    "v",
		Type:    host.Float,
		Values:  []float64{0, 0},
		Low:     []float64{0, 0},
		High:    []float64{1, 1},
		Choices: []float64{0, 1},
	}}
	model.values["v"] = []float64{0, 0}

	d := New(model, Config{Optimizer: "STUB-FULL"})
	_, err := d.translate(context.Background())
	if err == nil {
		t.Fatal("Expected error for vector parameter with choice set")
	}
	if !strings.Contains(err.Error(), "scalar") {
		t.Errorf("Error should name the scalar restriction, got: %v", err)
	}
}

func TestTranslateSolverFDDisablesGradCallback(t *testing.T) {
	model, err := bench.New("sphere")
	if err != nil {
		t.Fatalf("bench.New failed: %v", err)
	}

	d := New(model, Config{Optimizer: "STUB-FULL", SolverFD: true, FDStep: 1e-6})
	prob, err := d.translate(context.Background())
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}

	if prob.Grad != nil {
		t.Error("Expected nil Grad when backend does its own differencing")
	}
	if prob.FDStep != 1e-6 {
		t.Errorf("Expected FDStep 1e-6, got %g", prob.FDStep)
	}

	d2 := New(model, Config{Optimizer: "STUB-FULL"})
	prob2, err := d2.translate(context.Background())
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if prob2.Grad == nil {
		t.Error("Expected Grad callback when using the host differentiator")
	}
}
