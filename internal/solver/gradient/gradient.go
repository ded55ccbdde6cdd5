// Package gradient adapts gonum's local optimization methods (BFGS,
// L-BFGS, CG, Nelder-Mead) to the solver interface. The gonum library owns
// line search and convergence; the adapter translates the problem, bridges
// the gradient callback, and maps the result back onto named groups.
package gradient

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/mdokit/optdriver/internal/solver"
)

// Local wraps one of gonum's local methods. These methods have no native
// constraint or bound support: constrained problems are rejected through
// capability tags, and bounds are enforced by clamping each candidate
// point before evaluation.
type Local struct {
	name string
}

func init() {
	for _, name := range []string{"BFGS", "LBFGS", "CG", "NELDERMEAD"} {
		name := name
		solver.Register(name, func() solver.Solver { return &Local{name: name} })
	}
}

func (l *Local) Name() string { return l.name }

func (l *Local) Capabilities() solver.Capabilities {
	return solver.Capabilities{
		Gradients: l.name != "NELDERMEAD",
	}
}

func (l *Local) method() optimize.Method {
	switch l.name {
	case "BFGS":
		return &optimize.BFGS{}
	case "LBFGS":
		return &optimize.LBFGS{}
	case "CG":
		return &optimize.CG{}
	case "NELDERMEAD":
		return &optimize.NelderMead{}
	default:
		return nil
	}
}

// Solve runs the gonum method from the problem's initial point.
func (l *Local) Solve(prob *solver.Problem, options map[string]any) (*solver.Solution, error) {
	if err := prob.Validate(); err != nil {
		return nil, err
	}
	if len(prob.Objectives) != 1 {
		return nil, fmt.Errorf("%s handles a single objective, got %d", l.name, len(prob.Objectives))
	}
	if len(prob.Constraints) > 0 {
		return nil, fmt.Errorf("%s does not support constraints", l.name)
	}

	maxIters, err := solver.IntOption(options, "maxiters", 0)
	if err != nil {
		return nil, err
	}
	maxEvals, err := solver.IntOption(options, "maxevals", 0)
	if err != nil {
		return nil, err
	}
	gtol, err := solver.FloatOption(options, "gtol", 0)
	if err != nil {
		return nil, err
	}

	lower, upper := prob.FlatBounds()
	objName := prob.Objectives[0]

	objective := func(x []float64) float64 {
		clamped := clampTo(x, lower, upper)
		ev := prob.Eval(prob.Point(clamped))
		if ev.Fail {
			return math.Inf(1)
		}
		return ev.Functions[objName][0]
	}

	gp := optimize.Problem{Func: objective}
	switch {
	case prob.Grad != nil:
		gp.Grad = func(grad, x []float64) {
			clamped := clampTo(x, lower, upper)
			gd := prob.Grad(prob.Point(clamped), nil)
			if gd.Fail {
				for i := range grad {
					grad[i] = math.NaN()
				}
				return
			}
			flattenGradient(prob, gd, objName, grad)
		}
	case prob.FDStep > 0:
		// Internal differencing with the requested step size.
		step := prob.FDStep
		gp.Grad = func(grad, x []float64) {
			fd.Gradient(grad, objective, x, &fd.Settings{Step: step})
		}
	default:
		// Leave Grad nil; gonum falls back to its own finite differencing
		// for methods that need it.
	}

	settings := &optimize.Settings{}
	if maxIters > 0 {
		settings.MajorIterations = maxIters
	}
	if maxEvals > 0 {
		settings.FuncEvaluations = maxEvals
	}
	if gtol > 0 {
		settings.GradientThreshold = gtol
	}

	x0 := clampTo(prob.FlatValue(), lower, upper)
	result, err := optimize.Minimize(gp, x0, settings, l.method())
	if err != nil && result == nil {
		return nil, fmt.Errorf("%s optimization failed: %w", l.name, err)
	}

	best := clampTo(result.X, lower, upper)
	return &solver.Solution{
		Variables:   prob.Point(best),
		Objective:   result.F,
		Status:      result.Status.String(),
		Evaluations: result.Stats.FuncEvaluations,
		Optimizer:   l.name,
	}, nil
}

// clampTo returns x restricted to [lower, upper] element-wise.
func clampTo(x, lower, upper []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = math.Max(lower[i], math.Min(upper[i], x[i]))
	}
	return out
}

// flattenGradient writes the objective row of a dictionary-form gradient
// into a flat vector in variable group order.
func flattenGradient(prob *solver.Problem, gd solver.Gradient, objName string, grad []float64) {
	byGroup := gd.Derivatives[objName]
	off := 0
	for _, vg := range prob.Variables {
		row := byGroup[vg.Name]
		for i := 0; i < vg.N; i++ {
			if i < len(row) {
				grad[off+i] = row[i]
			} else {
				grad[off+i] = math.NaN()
			}
		}
		off += vg.N
	}
}
