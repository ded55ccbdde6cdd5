package driver

import (
	"context"
	"fmt"
	"math"

	"github.com/mdokit/optdriver/internal/host"
	"github.com/mdokit/optdriver/internal/solver"
)

// translate builds the solver problem from the host model's registered
// parameters, objectives and constraints. Classification and linear
// Jacobian precomputation happen once here, at run start.
func (d *Driver) translate(ctx context.Context) (*solver.Problem, error) {
	prob := &solver.Problem{Title: d.cfg.Title}

	d.paramKinds = make(map[string]solver.VarKind)
	d.paramChoices = make(map[string][]float64)

	params := d.model.Parameters()
	paramNames := make([]string, 0, len(params))
	for _, p := range params {
		kind, choices, err := classify(p)
		if err != nil {
			return nil, err
		}
		d.paramKinds[p.Name] = kind
		d.paramChoices[p.Name] = choices

		vg := solver.VarGroup{
			Name:    p.Name,
			N:       p.Size(),
			Kind:    kind,
			Lower:   cloneSlice(p.Low),
			Upper:   cloneSlice(p.High),
			Value:   cloneSlice(p.Values),
			Choices: choices,
		}
		if err := prob.AddVarGroup(vg); err != nil {
			return nil, err
		}
		paramNames = append(paramNames, p.Name)
	}

	d.objNames = d.objNames[:0]
	for _, obj := range d.model.Objectives() {
		prob.AddObjective(obj.Name())
		d.objNames = append(d.objNames, obj.Name())
	}

	// Linear constraints have constant Jacobians; compute them once and
	// supply them with the groups instead of differencing every iteration.
	cons := d.model.Constraints()
	var linNames []string
	for _, con := range cons {
		if con.Linear() {
			linNames = append(linNames, con.Name())
		}
	}
	d.linJacs = nil
	if len(linNames) > 0 {
		jacs, err := d.model.Gradient(ctx, linNames, paramNames)
		if err != nil {
			return nil, fmt.Errorf("computing linear constraint jacobians: %w", err)
		}
		d.linJacs = jacs
	}

	d.nlConNames = d.nlConNames[:0]
	for _, con := range cons {
		cg := solver.ConGroup{
			Name:   con.Name(),
			N:      con.Size(),
			Linear: con.Linear(),
		}
		switch con.Kind() {
		case host.Equality:
			cg.Lower = zeros(con.Size())
			cg.Upper = zeros(con.Size())
		case host.Inequality:
			cg.Lower = fill(con.Size(), math.Inf(-1))
			cg.Upper = zeros(con.Size())
		default:
			return nil, fmt.Errorf("constraint %q has unknown kind %v", con.Name(), con.Kind())
		}
		if con.Linear() {
			cg.Jacobian = d.linJacs[con.Name()]
		} else {
			d.nlConNames = append(d.nlConNames, con.Name())
		}
		if err := prob.AddConGroup(cg); err != nil {
			return nil, err
		}
	}

	prob.Eval = d.evalFunc(ctx)
	if d.cfg.SolverFD {
		// Backend estimates its own gradients by finite differencing.
		prob.Grad = nil
		prob.FDStep = d.cfg.FDStep
	} else {
		prob.Grad = d.gradFunc(ctx)
	}

	if err := prob.Validate(); err != nil {
		return nil, err
	}
	return prob, nil
}

// classify maps a host parameter onto a solver variable kind: discrete for
// explicit choice sets and booleans, integer for integer values,
// continuous for floats. Anything else is a fatal configuration error.
func classify(p host.Parameter) (solver.VarKind, []float64, error) {
	if p.Size() == 0 {
		return 0, nil, fmt.Errorf("parameter %q has no values", p.Name)
	}
	if len(p.Low) != p.Size() || len(p.High) != p.Size() {
		return 0, nil, fmt.Errorf("parameter %q: bounds length mismatch (values=%d, low=%d, high=%d)",
			p.Name, p.Size(), len(p.Low), len(p.High))
	}

	if p.Choices != nil {
		if p.Size() > 1 {
			// Per-element choice sets for vector parameters are not
			// defined; reject rather than guess.
			return 0, nil, fmt.Errorf("parameter %q: enumerated choice sets are only supported for scalar parameters", p.Name)
		}
		if len(p.Choices) == 0 {
			return 0, nil, fmt.Errorf("parameter %q: empty choice set", p.Name)
		}
		return solver.Discrete, cloneSlice(p.Choices), nil
	}

	switch p.Type {
	case host.Bool:
		return solver.Discrete, []float64{0, 1}, nil
	case host.Int:
		return solver.Integer, nil, nil
	case host.Float:
		return solver.Continuous, nil, nil
	default:
		return 0, nil, fmt.Errorf("only continuous, discrete, or enumerated variables are supported; %q is %s",
			p.Name, p.Type)
	}
}

func cloneSlice(a []float64) []float64 {
	out := make([]float64, len(a))
	copy(out, a)
	return out
}

func zeros(n int) []float64 {
	return make([]float64, n)
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
