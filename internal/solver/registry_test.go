package solver

import (
	"errors"
	"testing"
)

type fakeSolver struct {
	name string
	caps Capabilities
}

func (f *fakeSolver) Name() string               { return f.name }
func (f *fakeSolver) Capabilities() Capabilities { return f.caps }
func (f *fakeSolver) Solve(prob *Problem, options map[string]any) (*Solution, error) {
	return &Solution{Optimizer: f.name}, nil
}

func TestRegisterAndNew(t *testing.T) {
	Register("TEST-REGISTRY-A", func() Solver {
		return &fakeSolver{name: "TEST-REGISTRY-A", caps: Capabilities{Gradients: true}}
	})

	s, err := New("TEST-REGISTRY-A")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Name() != "TEST-REGISTRY-A" {
		t.Errorf("Expected name TEST-REGISTRY-A, got %s", s.Name())
	}
	if !s.Capabilities().Gradients {
		t.Error("Expected Gradients capability")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("TEST-REGISTRY-DUP", func() Solver { return &fakeSolver{name: "TEST-REGISTRY-DUP"} })

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	Register("TEST-REGISTRY-DUP", func() Solver { return &fakeSolver{name: "TEST-REGISTRY-DUP"} })
}

func TestNewUnknownSolver(t *testing.T) {
	_, err := New("NO-SUCH-OPTIMIZER")
	if err == nil {
		t.Fatal("Expected error for unknown optimizer")
	}

	var unknown *UnknownSolverError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownSolverError, got %T", err)
	}
	if unknown.Name != "NO-SUCH-OPTIMIZER" {
		t.Errorf("Expected name NO-SUCH-OPTIMIZER, got %s", unknown.Name)
	}
	if !errors.Is(err, ErrUnknownSolver) {
		t.Error("errors.Is(err, ErrUnknownSolver) should be true")
	}
}

func TestListSorted(t *testing.T) {
	Register("TEST-REGISTRY-Z", func() Solver { return &fakeSolver{name: "TEST-REGISTRY-Z"} })
	Register("TEST-REGISTRY-B", func() Solver { return &fakeSolver{name: "TEST-REGISTRY-B"} })

	infos := List()
	if len(infos) < 2 {
		t.Fatalf("Expected at least 2 entries, got %d", len(infos))
	}
	for i := 1; i < len(infos); i++ {
		if infos[i-1].Name > infos[i].Name {
			t.Errorf("List not sorted: %s before %s", infos[i-1].Name, infos[i].Name)
		}
	}
}
