package driver

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/mdokit/optdriver/internal/solver"
)

// The two callbacks below are invoked from inside the backend's iteration
// loop. Backends cannot be trusted to surface host errors usefully, so
// nothing is allowed to escape here: every error and panic is logged with
// enough context to diagnose it and converted into the failure flag, which
// tells the backend to reject the point and continue.

// evalFunc returns the objective/constraint evaluation callback.
func (d *Driver) evalFunc(ctx context.Context) solver.EvalFunc {
	return func(point map[string][]float64) (ev solver.Evaluation) {
		ev = solver.Evaluation{Fail: true}
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic during model evaluation",
					"panic", r,
					"stack", string(debug.Stack()),
				)
				ev = solver.Evaluation{Fail: true}
			}
		}()

		// Integer values come back from the solver as floats; round them
		// (and snap discrete values) before pushing into the host.
		for _, p := range d.model.Parameters() {
			vals, ok := point[p.Name]
			if !ok {
				slog.Error("solver point is missing a parameter", "parameter", p.Name)
				return ev
			}
			if err := d.model.SetParameter(p.Name, d.conditioned(p.Name, vals)); err != nil {
				slog.Error("failed to set parameter", "parameter", p.Name, "error", err)
				return ev
			}
		}

		if err := d.model.Run(ctx); err != nil {
			slog.Error("model evaluation failed", "error", err)
			return ev
		}

		funcs := make(map[string][]float64)
		for _, obj := range d.model.Objectives() {
			funcs[obj.Name()] = cloneSlice(obj.Value())
		}
		for _, con := range d.model.Constraints() {
			funcs[con.Name()] = cloneSlice(con.Value())
		}

		d.evalCount++
		ev = solver.Evaluation{Functions: funcs}
		if d.observer != nil {
			d.observer(d.evalCount, point, ev)
		}
		return ev
	}
}

// gradFunc returns the sensitivity callback: gradients of all objectives
// and nonlinear constraints with respect to all design variables, in
// dictionary-of-dictionaries form. Linear constraints are excluded; their
// Jacobians were supplied with the problem.
func (d *Driver) gradFunc(ctx context.Context) solver.GradFunc {
	return func(point map[string][]float64, _ map[string][]float64) (gd solver.Gradient) {
		gd = solver.Gradient{Fail: true}
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic during gradient evaluation",
					"panic", r,
					"stack", string(debug.Stack()),
				)
				gd = solver.Gradient{Fail: true}
			}
		}()

		wrt := make([]string, 0, len(point))
		for _, p := range d.model.Parameters() {
			wrt = append(wrt, p.Name)
		}
		of := make([]string, 0, len(d.objNames)+len(d.nlConNames))
		of = append(of, d.objNames...)
		of = append(of, d.nlConNames...)

		derivs, err := d.model.Gradient(ctx, of, wrt)
		if err != nil {
			slog.Error("gradient evaluation failed", "error", err)
			return gd
		}

		return solver.Gradient{Derivatives: derivs}
	}
}
