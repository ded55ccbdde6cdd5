// Package simplex adapts gonum's linear-programming solver to the solver
// interface for fully linear problems. The objective coefficients come from
// one gradient evaluation at the initial point, the constraint matrix from
// the precomputed Jacobians, and the constraints' constant terms from one
// function evaluation, so the backend never calls back into the host during
// its iteration.
package simplex

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/mdokit/optdriver/internal/solver"
)

// LP solves min c'x subject to linear constraint groups and variable
// bounds by converting to standard form and running lp.Simplex.
type LP struct{}

func init() {
	solver.Register("SIMPLEX", func() solver.Solver { return &LP{} })
}

func (l *LP) Name() string { return "SIMPLEX" }

func (l *LP) Capabilities() solver.Capabilities {
	return solver.Capabilities{
		Gradients:   true,
		Constraints: true,
		LinearOnly:  true,
	}
}

func (l *LP) Solve(prob *solver.Problem, options map[string]any) (*solver.Solution, error) {
	if err := prob.Validate(); err != nil {
		return nil, err
	}
	if len(prob.Objectives) != 1 {
		return nil, fmt.Errorf("SIMPLEX handles a single objective, got %d", len(prob.Objectives))
	}
	for _, cg := range prob.Constraints {
		if !cg.Linear {
			return nil, fmt.Errorf("SIMPLEX requires linear constraints; %q is nonlinear", cg.Name)
		}
	}
	for _, vg := range prob.Variables {
		if vg.Kind != solver.Continuous {
			return nil, fmt.Errorf("SIMPLEX supports continuous variables only; %q is %s", vg.Name, vg.Kind)
		}
		for i := range vg.Lower {
			if math.IsInf(vg.Lower[i], -1) {
				return nil, fmt.Errorf("SIMPLEX requires finite lower bounds; %q[%d] is unbounded below", vg.Name, i)
			}
		}
	}

	tol, err := solver.FloatOption(options, "tol", 1e-10)
	if err != nil {
		return nil, err
	}

	dim := prob.Dim()
	lower, upper := prob.FlatBounds()
	x0 := prob.FlatValue()
	c := l.objectiveCoefficients(prob)

	// Constraint values are affine, g(x) = jac.x + g(x0) - jac.x0, and the
	// group bounds apply to g(x). One evaluation at the initial point
	// recovers the constant terms so the bounds can be restated over jac.x.
	ev0 := prob.Eval(prob.Point(x0))
	if ev0.Fail {
		return nil, fmt.Errorf("SIMPLEX: evaluation at the initial point failed")
	}

	// Standard form over y = x - lower, y >= 0, plus slack variables.
	type row struct {
		coeffs []float64 // length dim, coefficients over y
		rhs    float64
		slack  float64 // 0 for equality, +1 or -1 for slack sign
	}
	var rows []row

	addRow := func(a []float64, rhs, slack float64) {
		// Shift by the lower bounds: a.x = a.y + a.lower.
		shift := 0.0
		for i := range a {
			shift += a[i] * lower[i]
		}
		rows = append(rows, row{coeffs: a, rhs: rhs - shift, slack: slack})
	}

	colOffsets := make(map[string]int, len(prob.Variables))
	off := 0
	for _, vg := range prob.Variables {
		colOffsets[vg.Name] = off
		off += vg.N
	}

	for _, cg := range prob.Constraints {
		g0, ok := ev0.Functions[cg.Name]
		if !ok || len(g0) != cg.N {
			return nil, fmt.Errorf("SIMPLEX: initial evaluation is missing constraint %q", cg.Name)
		}
		for i := 0; i < cg.N; i++ {
			a := make([]float64, dim)
			for vname, jac := range cg.Jacobian {
				vg, _ := groupByName(prob, vname)
				copy(a[colOffsets[vname]:colOffsets[vname]+vg.N], jac[i*vg.N:(i+1)*vg.N])
			}
			jacX0 := 0.0
			for j := range a {
				jacX0 += a[j] * x0[j]
			}
			offset := g0[i] - jacX0
			lo, hi := cg.Lower[i]-offset, cg.Upper[i]-offset
			switch {
			case lo == hi:
				addRow(a, hi, 0)
			default:
				if !math.IsInf(hi, 1) {
					addRow(cloneSlice(a), hi, +1)
				}
				if !math.IsInf(lo, -1) {
					addRow(cloneSlice(a), lo, -1)
				}
			}
		}
	}

	// Finite upper bounds become slack rows y_i + t = upper - lower.
	for i := 0; i < dim; i++ {
		if math.IsInf(upper[i], 1) {
			continue
		}
		a := make([]float64, dim)
		a[i] = 1
		addRow(a, upper[i], +1)
	}

	nSlack := 0
	for _, r := range rows {
		if r.slack != 0 {
			nSlack++
		}
	}

	nCols := dim + nSlack
	cFull := make([]float64, nCols)
	copy(cFull, c)
	a := mat.NewDense(len(rows), nCols, nil)
	b := make([]float64, len(rows))
	slackCol := dim
	for i, r := range rows {
		for j, v := range r.coeffs {
			a.Set(i, j, v)
		}
		if r.slack != 0 {
			a.Set(i, slackCol, r.slack)
			slackCol++
		}
		b[i] = r.rhs
	}

	_, yOpt, err := lp.Simplex(cFull, a, b, tol, nil)
	if err != nil {
		return nil, fmt.Errorf("simplex failed: %w", err)
	}

	x := make([]float64, dim)
	for i := range x {
		x[i] = yOpt[i] + lower[i]
	}

	// Report the host's objective at the optimum, not the LP model's.
	objective := math.NaN()
	status := "Optimal"
	if ev := prob.Eval(prob.Point(x)); !ev.Fail {
		objective = ev.Functions[prob.Objectives[0]][0]
	}

	return &solver.Solution{
		Variables:   prob.Point(x),
		Objective:   objective,
		Status:      status,
		Evaluations: 2,
		Optimizer:   l.Name(),
	}, nil
}

// objectiveCoefficients extracts the linear objective c from one gradient
// evaluation at the initial point. For a genuinely linear objective the
// result is exact regardless of the point or step.
func (l *LP) objectiveCoefficients(prob *solver.Problem) []float64 {
	dim := prob.Dim()
	x0 := prob.FlatValue()
	c := make([]float64, dim)

	if prob.Grad != nil {
		gd := prob.Grad(prob.Point(x0), nil)
		if !gd.Fail {
			byGroup := gd.Derivatives[prob.Objectives[0]]
			off := 0
			for _, vg := range prob.Variables {
				copy(c[off:off+vg.N], byGroup[vg.Name])
				off += vg.N
			}
			return c
		}
	}

	objName := prob.Objectives[0]
	f := func(x []float64) float64 {
		ev := prob.Eval(prob.Point(x))
		if ev.Fail {
			return math.NaN()
		}
		return ev.Functions[objName][0]
	}
	fd.Gradient(c, f, x0, nil)
	return c
}

func groupByName(prob *solver.Problem, name string) (solver.VarGroup, bool) {
	for _, vg := range prob.Variables {
		if vg.Name == name {
			return vg, true
		}
	}
	return solver.VarGroup{}, false
}

func cloneSlice(a []float64) []float64 {
	out := make([]float64, len(a))
	copy(out, a)
	return out
}
