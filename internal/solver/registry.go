package solver

import (
	"fmt"
	"sort"
	"sync"
)

// Capabilities tags what a backend can handle. The driver checks these
// against the translated problem before the backend starts, so unsupported
// configurations fail fast instead of being silently mis-solved.
type Capabilities struct {
	// Gradients: the backend consumes gradient information (supplied or
	// internally estimated). Derivative-free backends leave this false.
	Gradients bool
	// Constraints: the backend accepts constraint groups.
	Constraints bool
	// Integer: the backend tolerates integer/discrete variables (the
	// driver rounds them at the evaluation boundary).
	Integer bool
	// LinearOnly: the backend requires a fully linear problem and consumes
	// the precomputed Jacobians directly.
	LinearOnly bool
}

// Solver is the interface every backend adapter implements. Solve blocks
// until the external library's iteration loop finishes; the library calls
// back into the problem's Eval/Grad functions from that loop.
type Solver interface {
	Name() string
	Capabilities() Capabilities
	Solve(prob *Problem, options map[string]any) (*Solution, error)
}

// Factory builds a fresh backend instance per run.
type Factory func() Solver

// Info describes one registry entry for listings.
type Info struct {
	Name string
	Capabilities
}

var (
	regMu    sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds a backend factory under a name. Backend packages call this
// from init; registering the same name twice panics, as that is a
// programming error.
func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("solver: duplicate registration for %q", name))
	}
	registry[name] = f
}

// New instantiates the named backend. Unknown names return
// *UnknownSolverError so callers can fail before any solver work starts.
func New(name string) (Solver, error) {
	regMu.RLock()
	f, ok := registry[name]
	regMu.RUnlock()
	if !ok {
		return nil, &UnknownSolverError{Name: name, Known: names()}
	}
	return f(), nil
}

// List returns all registered backends sorted by name.
func List() []Info {
	regMu.RLock()
	defer regMu.RUnlock()
	infos := make([]Info, 0, len(registry))
	for name, f := range registry {
		infos = append(infos, Info{Name: name, Capabilities: f().Capabilities()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func names() []string {
	ns := make([]string, 0, len(registry))
	for name := range registry {
		ns = append(ns, name)
	}
	sort.Strings(ns)
	return ns
}

// UnknownSolverError reports a request for a backend that is not compiled
// into this build. Use errors.Is(err, ErrUnknownSolver) to detect it.
type UnknownSolverError struct {
	Name  string
	Known []string
}

func (e *UnknownSolverError) Error() string {
	return fmt.Sprintf("optimizer %q is not available in this installation (available: %v)", e.Name, e.Known)
}

func (e *UnknownSolverError) Is(target error) bool {
	_, ok := target.(*UnknownSolverError)
	return ok
}

// ErrUnknownSolver is the sentinel for errors.Is checks.
var ErrUnknownSolver = &UnknownSolverError{}
