// Package driver orchestrates one optimization run: it translates the host
// model's parameters, objectives and constraints into a solver problem,
// hands control to the named backend, and copies the reported optimum back
// into host state. The backend owns the iteration loop and calls back into
// this package for every candidate point.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/mdokit/optdriver/internal/host"
	"github.com/mdokit/optdriver/internal/solver"
)

// Config is the user-facing surface of the driver.
type Config struct {
	// Optimizer names the backend to instantiate from the registry.
	Optimizer string
	// Title labels the run in logs and solver output.
	Title string
	// Options is an opaque key/value map passed to the backend verbatim.
	Options map[string]any
	// PrintResults logs a result summary after the run.
	PrintResults bool
	// SolverFD lets the backend estimate gradients internally instead of
	// using the host framework's differentiator.
	SolverFD bool
	// FDStep is the finite-difference step when SolverFD is set. Zero
	// means backend default.
	FDStep float64
}

// Observer is notified after each successful model evaluation. Used for
// progress reporting and trace recording; errors in the observer are the
// observer's problem.
type Observer func(eval int, point map[string][]float64, ev solver.Evaluation)

// Driver runs exactly one optimization per Run call. It is not safe for
// concurrent use; the solver calls back synchronously from its own loop.
type Driver struct {
	model host.Model
	cfg   Config

	// Populated during translation, read by the callbacks.
	paramKinds   map[string]solver.VarKind
	paramChoices map[string][]float64
	objNames     []string
	nlConNames   []string
	linJacs      map[string]map[string][]float64

	evalCount int
	observer  Observer
	solution  *solver.Solution
}

// New builds a driver around a host model. The model is injected rather
// than mixed in so the host side stays behind explicit interfaces.
func New(model host.Model, cfg Config) *Driver {
	if cfg.Title == "" {
		cfg.Title = "Optimization using optdriver"
	}
	return &Driver{
		model: model,
		cfg:   cfg,
	}
}

// SetObserver registers a per-evaluation callback. Must be called before
// Run.
func (d *Driver) SetObserver(fn Observer) { d.observer = fn }

// Solution returns the most recent solver solution, or nil before the
// first completed run.
func (d *Driver) Solution() *solver.Solution { return d.solution }

// Evaluations returns the number of successful model evaluations driven by
// the solver during the last run.
func (d *Driver) Evaluations() int { return d.evalCount }

// Run executes one optimization. Configuration problems (unsupported
// variable types, unknown optimizer names, capability mismatches) fail
// here before the backend starts; evaluation failures during the run are
// reported to the backend through the failure flag and never surface as
// errors.
func (d *Driver) Run(ctx context.Context) (*solver.Solution, error) {
	d.solution = nil
	d.evalCount = 0

	// Baseline evaluation so translation sees a consistent model state.
	if err := d.model.Run(ctx); err != nil {
		return nil, fmt.Errorf("initial model evaluation failed: %w", err)
	}

	prob, err := d.translate(ctx)
	if err != nil {
		return nil, err
	}

	backend, err := solver.New(d.cfg.Optimizer)
	if err != nil {
		return nil, err
	}
	if err := d.checkCapabilities(backend, prob); err != nil {
		return nil, err
	}

	slog.Info("Starting optimization",
		"title", d.cfg.Title,
		"optimizer", backend.Name(),
		"variables", prob.Dim(),
		"constraints", prob.NumConstraints(),
	)

	sol, err := backend.Solve(prob, d.cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("optimizer %s: %w", backend.Name(), err)
	}

	if d.cfg.PrintResults {
		slog.Info("Optimization complete",
			"title", d.cfg.Title,
			"optimizer", sol.Optimizer,
			"status", sol.Status,
			"objective", sol.Objective,
			"evaluations", sol.Evaluations,
		)
	}

	// Pull the optimum back into the host and re-run once, so the host's
	// cached state reflects the optimum rather than the last probed point.
	if err := d.writeBack(ctx, sol); err != nil {
		return nil, err
	}

	d.solution = sol
	return sol, nil
}

// checkCapabilities rejects problem/backend combinations up front.
func (d *Driver) checkCapabilities(backend solver.Solver, prob *solver.Problem) error {
	caps := backend.Capabilities()

	if len(prob.Constraints) > 0 && !caps.Constraints {
		return fmt.Errorf("optimizer %s does not support constraints (%d constraint groups registered)",
			backend.Name(), len(prob.Constraints))
	}
	if caps.LinearOnly {
		for _, cg := range prob.Constraints {
			if !cg.Linear {
				return fmt.Errorf("optimizer %s handles linear problems only; constraint %q is nonlinear",
					backend.Name(), cg.Name)
			}
		}
	}
	if !caps.Integer {
		for _, vg := range prob.Variables {
			if vg.Kind != solver.Continuous {
				return fmt.Errorf("optimizer %s supports continuous variables only; %q is %s",
					backend.Name(), vg.Name, vg.Kind)
			}
		}
	}
	return nil
}

// writeBack copies the solver's optimum into host parameters, rounding
// integer kinds and snapping discrete kinds, then runs one more evaluation
// cycle.
func (d *Driver) writeBack(ctx context.Context, sol *solver.Solution) error {
	for _, p := range d.model.Parameters() {
		vals, ok := sol.Variables[p.Name]
		if !ok {
			return fmt.Errorf("solver solution is missing parameter %q", p.Name)
		}
		if err := d.model.SetParameter(p.Name, d.conditioned(p.Name, vals)); err != nil {
			return fmt.Errorf("writing optimum for %q: %w", p.Name, err)
		}
	}
	if err := d.model.Run(ctx); err != nil {
		return fmt.Errorf("final model evaluation failed: %w", err)
	}
	return nil
}

// conditioned applies kind-dependent conditioning to raw solver values:
// integer values are rounded, discrete values snapped to the nearest
// choice, continuous values passed through.
func (d *Driver) conditioned(name string, vals []float64) []float64 {
	out := make([]float64, len(vals))
	copy(out, vals)
	switch d.paramKinds[name] {
	case solver.Integer:
		for i := range out {
			out[i] = math.Round(out[i])
		}
	case solver.Discrete:
		choices := d.paramChoices[name]
		for i := range out {
			out[i] = nearestChoice(out[i], choices)
		}
	}
	return out
}

func nearestChoice(v float64, choices []float64) float64 {
	if len(choices) == 0 {
		return v
	}
	best := choices[0]
	bestDist := math.Abs(v - best)
	for _, c := range choices[1:] {
		if dist := math.Abs(v - c); dist < bestDist {
			best = c
			bestDist = dist
		}
	}
	return best
}
