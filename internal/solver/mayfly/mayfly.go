// Package mayfly adapts the external mayfly optimization library (a
// population-based, derivative-free global method) to the solver interface.
// The library owns the iteration loop; this adapter only translates the
// problem in and the result out.
package mayfly

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"

	"github.com/mdokit/optdriver/internal/solver"
)

const (
	defaultIterations = 200
	defaultPopulation = 30
	defaultSeed       = 1
	defaultPenalty    = 1e6
)

// Swarm wraps the mayfly library. Constraints are folded into the scalar
// merit value with a static quadratic penalty (options key "penalty"), the
// usual scheme for population methods without native constraint support.
type Swarm struct{}

func init() {
	solver.Register("MAYFLY", func() solver.Solver { return &Swarm{} })
}

func (s *Swarm) Name() string { return "MAYFLY" }

func (s *Swarm) Capabilities() solver.Capabilities {
	return solver.Capabilities{
		Gradients:   false,
		Constraints: true,
		Integer:     true,
	}
}

// Solve runs the mayfly optimizer over the problem. The library works on a
// scalar-bounded search space, so the adapter optimizes over the unit cube
// and maps each candidate onto the real per-variable bounds.
func (s *Swarm) Solve(prob *solver.Problem, options map[string]any) (*solver.Solution, error) {
	if err := prob.Validate(); err != nil {
		return nil, err
	}
	if len(prob.Objectives) != 1 {
		return nil, fmt.Errorf("MAYFLY handles a single objective, got %d", len(prob.Objectives))
	}

	iters, err := solver.IntOption(options, "iterations", defaultIterations)
	if err != nil {
		return nil, err
	}
	pop, err := solver.IntOption(options, "population", defaultPopulation)
	if err != nil {
		return nil, err
	}
	seed, err := solver.Int64Option(options, "seed", defaultSeed)
	if err != nil {
		return nil, err
	}
	penalty, err := solver.FloatOption(options, "penalty", defaultPenalty)
	if err != nil {
		return nil, err
	}

	if !prob.HasFiniteBounds() {
		return nil, fmt.Errorf("MAYFLY requires finite bounds on every variable")
	}
	lower, upper := prob.FlatBounds()
	for i := range lower {
		if upper[i] < lower[i] {
			return nil, fmt.Errorf("variable index %d has inverted bounds [%g, %g]", i, lower[i], upper[i])
		}
	}

	dim := prob.Dim()
	evals := 0
	objName := prob.Objectives[0]

	merit := func(u []float64) float64 {
		x := make([]float64, dim)
		for i := range x {
			x[i] = lower[i] + u[i]*(upper[i]-lower[i])
		}
		ev := prob.Eval(prob.Point(x))
		evals++
		if ev.Fail {
			// Rejected point: make it unattractive and move on.
			return math.Inf(1)
		}
		val := ev.Functions[objName][0]
		for _, cg := range prob.Constraints {
			vals := ev.Functions[cg.Name]
			for i := 0; i < cg.N; i++ {
				if v := vals[i] - cg.Upper[i]; v > 0 && !math.IsInf(cg.Upper[i], 1) {
					val += penalty * v * v
				}
				if v := cg.Lower[i] - vals[i]; v > 0 && !math.IsInf(cg.Lower[i], -1) {
					val += penalty * v * v
				}
			}
		}
		return val
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = merit
	config.ProblemSize = dim
	config.MaxIterations = iters
	config.NPop = pop
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, fmt.Errorf("mayfly optimization failed: %w", err)
	}

	best := make([]float64, dim)
	for i := range best {
		best[i] = lower[i] + result.GlobalBest.Position[i]*(upper[i]-lower[i])
	}

	// Report the raw objective at the optimum, not the penalized merit.
	objective := result.GlobalBest.Cost
	if final := prob.Eval(prob.Point(best)); !final.Fail {
		objective = final.Functions[objName][0]
	}

	return &solver.Solution{
		Variables:   prob.Point(best),
		Objective:   objective,
		Status:      "Converged",
		Evaluations: evals,
		Optimizer:   s.Name(),
	}, nil
}
