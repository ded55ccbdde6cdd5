// Package solver defines the problem representation handed to external
// optimization backends, the callback contract they invoke, and a static
// registry of available backends. The backends own iteration and
// convergence; this package only describes what they operate on.
package solver

import (
	"fmt"
	"math"
)

// VarKind classifies how a backend may perturb a variable group.
type VarKind int

const (
	// Continuous variables take any value within their bounds.
	Continuous VarKind = iota
	// Integer variables are rounded to the nearest integer before each
	// host evaluation and on the final write-back.
	Integer
	// Discrete variables are restricted to an explicit choice set.
	Discrete
)

func (k VarKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Discrete:
		return "discrete"
	default:
		return fmt.Sprintf("VarKind(%d)", int(k))
	}
}

// VarGroup describes one named group of design variables.
type VarGroup struct {
	Name    string
	N       int
	Kind    VarKind
	Lower   []float64
	Upper   []float64
	Value   []float64 // initial values
	Choices []float64 // non-nil only for Discrete
}

// ConGroup describes one named group of constraints. Lower and Upper have
// length N; unbounded sides are +-Inf. For linear groups the Jacobian is
// supplied up front, keyed by variable group name, each entry row-major
// (N x len(vargroup)).
type ConGroup struct {
	Name     string
	N        int
	Lower    []float64
	Upper    []float64
	Linear   bool
	Jacobian map[string][]float64
}

// Evaluation is the result of one objective/constraint evaluation at a
// candidate point. Fail set means the point could not be evaluated and the
// function values are meaningless; the backend should reject the point and
// continue. Errors never cross this boundary in any other form.
type Evaluation struct {
	Functions map[string][]float64
	Fail      bool
}

// Gradient is the result of one sensitivity evaluation.
// Derivatives[output][vargroup] is row-major (size(output) x len(vargroup)).
// The Fail contract matches Evaluation.
type Gradient struct {
	Derivatives map[string]map[string][]float64
	Fail        bool
}

// EvalFunc evaluates all registered outputs at the given point.
// The point maps variable group names to their current values.
type EvalFunc func(point map[string][]float64) Evaluation

// GradFunc evaluates sensitivities at the given point. The functions map
// holds the output values from the matching evaluation, for backends that
// provide it; it may be nil.
type GradFunc func(point map[string][]float64, functions map[string][]float64) Gradient

// Problem is the full description of one optimization run, assembled by the
// driver and consumed by a backend.
type Problem struct {
	Title       string
	Variables   []VarGroup
	Objectives  []string
	Constraints []ConGroup

	Eval EvalFunc
	// Grad is nil when the backend should estimate gradients itself
	// (internal finite differencing).
	Grad GradFunc
	// FDStep is the finite-difference step for backends estimating their
	// own gradients. Zero means backend default.
	FDStep float64
}

// AddVarGroup appends a variable group after validating its shape.
func (p *Problem) AddVarGroup(vg VarGroup) error {
	if vg.Name == "" {
		return fmt.Errorf("variable group needs a name")
	}
	if vg.N <= 0 {
		return fmt.Errorf("variable group %q: size must be positive, got %d", vg.Name, vg.N)
	}
	if len(vg.Lower) != vg.N || len(vg.Upper) != vg.N || len(vg.Value) != vg.N {
		return fmt.Errorf("variable group %q: bounds/value length mismatch (n=%d, lower=%d, upper=%d, value=%d)",
			vg.Name, vg.N, len(vg.Lower), len(vg.Upper), len(vg.Value))
	}
	for _, other := range p.Variables {
		if other.Name == vg.Name {
			return fmt.Errorf("duplicate variable group %q", vg.Name)
		}
	}
	p.Variables = append(p.Variables, vg)
	return nil
}

// AddObjective registers an output name to minimize.
func (p *Problem) AddObjective(name string) {
	p.Objectives = append(p.Objectives, name)
}

// AddConGroup appends a constraint group after validating its shape.
func (p *Problem) AddConGroup(cg ConGroup) error {
	if cg.Name == "" {
		return fmt.Errorf("constraint group needs a name")
	}
	if cg.N <= 0 {
		return fmt.Errorf("constraint group %q: size must be positive, got %d", cg.Name, cg.N)
	}
	if len(cg.Lower) != cg.N || len(cg.Upper) != cg.N {
		return fmt.Errorf("constraint group %q: bounds length mismatch (n=%d, lower=%d, upper=%d)",
			cg.Name, cg.N, len(cg.Lower), len(cg.Upper))
	}
	if cg.Linear {
		for vname, jac := range cg.Jacobian {
			vg, ok := p.varGroup(vname)
			if !ok {
				return fmt.Errorf("constraint group %q: jacobian references unknown variable group %q", cg.Name, vname)
			}
			if len(jac) != cg.N*vg.N {
				return fmt.Errorf("constraint group %q: jacobian for %q has %d entries, want %d",
					cg.Name, vname, len(jac), cg.N*vg.N)
			}
		}
	}
	for _, other := range p.Constraints {
		if other.Name == cg.Name {
			return fmt.Errorf("duplicate constraint group %q", cg.Name)
		}
	}
	p.Constraints = append(p.Constraints, cg)
	return nil
}

func (p *Problem) varGroup(name string) (VarGroup, bool) {
	for _, vg := range p.Variables {
		if vg.Name == name {
			return vg, true
		}
	}
	return VarGroup{}, false
}

// Dim returns the total number of scalar design variables.
func (p *Problem) Dim() int {
	n := 0
	for _, vg := range p.Variables {
		n += vg.N
	}
	return n
}

// NumConstraints returns the total number of scalar constraint rows.
func (p *Problem) NumConstraints() int {
	n := 0
	for _, cg := range p.Constraints {
		n += cg.N
	}
	return n
}

// FlatBounds returns the concatenated lower and upper bounds in variable
// group order.
func (p *Problem) FlatBounds() (lower, upper []float64) {
	lower = make([]float64, 0, p.Dim())
	upper = make([]float64, 0, p.Dim())
	for _, vg := range p.Variables {
		lower = append(lower, vg.Lower...)
		upper = append(upper, vg.Upper...)
	}
	return lower, upper
}

// FlatValue returns the concatenated initial values in group order.
func (p *Problem) FlatValue() []float64 {
	x := make([]float64, 0, p.Dim())
	for _, vg := range p.Variables {
		x = append(x, vg.Value...)
	}
	return x
}

// Point maps a flat design vector back onto named variable groups.
// The vector length must equal Dim.
func (p *Problem) Point(x []float64) map[string][]float64 {
	point := make(map[string][]float64, len(p.Variables))
	off := 0
	for _, vg := range p.Variables {
		vals := make([]float64, vg.N)
		copy(vals, x[off:off+vg.N])
		point[vg.Name] = vals
		off += vg.N
	}
	return point
}

// Flatten concatenates a point dictionary into group order. Missing groups
// are an error; this catches backends that drop variables.
func (p *Problem) Flatten(point map[string][]float64) ([]float64, error) {
	x := make([]float64, 0, p.Dim())
	for _, vg := range p.Variables {
		vals, ok := point[vg.Name]
		if !ok {
			return nil, fmt.Errorf("point is missing variable group %q", vg.Name)
		}
		if len(vals) != vg.N {
			return nil, fmt.Errorf("point entry %q has %d values, want %d", vg.Name, len(vals), vg.N)
		}
		x = append(x, vals...)
	}
	return x, nil
}

// HasFiniteBounds reports whether every variable carries finite lower and
// upper bounds. Population backends searching a scaled box require this.
func (p *Problem) HasFiniteBounds() bool {
	for _, vg := range p.Variables {
		for i := range vg.Lower {
			if math.IsInf(vg.Lower[i], -1) || math.IsInf(vg.Upper[i], 1) {
				return false
			}
		}
	}
	return true
}

// Validate checks the problem is ready to hand to a backend.
func (p *Problem) Validate() error {
	if len(p.Variables) == 0 {
		return fmt.Errorf("problem %q has no design variables", p.Title)
	}
	if len(p.Objectives) == 0 {
		return fmt.Errorf("problem %q has no objective", p.Title)
	}
	if p.Eval == nil {
		return fmt.Errorf("problem %q has no evaluation callback", p.Title)
	}
	return nil
}

// Solution is what a backend reports after its run completes.
type Solution struct {
	// Variables holds the optimal design point keyed by group name.
	Variables map[string][]float64
	// Objective is the objective value the backend reports at the optimum.
	Objective float64
	// Status is the backend's own termination status string.
	Status string
	// Evaluations counts objective evaluations, when the backend tracks it.
	Evaluations int
	// Optimizer names the backend that produced this solution.
	Optimizer string
}
