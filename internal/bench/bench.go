// Package bench provides small analytic models implementing the host.Model
// interface. They stand in for a real modeling framework so the driver,
// server and CLI have problems to run, and they exercise every variable
// kind and constraint shape the driver translates.
package bench

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mdokit/optdriver/internal/host"
)

// Output computes one named model output from the current parameter values.
type Output struct {
	Name string
	Size int
	Fn   func(x map[string][]float64) []float64
}

// ConOutput is a constraint-flavored output.
type ConOutput struct {
	Output
	Kind   host.ConstraintKind
	Linear bool
}

// Spec declares an analytic problem: parameters with initial values,
// objective and constraint outputs, and (optionally) analytic partial
// derivatives playing the role of the host framework's differentiator.
type Spec struct {
	Name        string
	Description string
	Params      []host.Parameter
	Objectives  []Output
	Constraints []ConOutput
	// Grad returns map[of][wrt] row-major partials, or an error for
	// outputs that are not differentiable.
	Grad func(x map[string][]float64, of, wrt []string) (map[string]map[string][]float64, error)
}

// Model implements host.Model over a Spec. Outputs are cached per Run, so
// objective and constraint views read the state of the most recent
// evaluation cycle, exactly like a host framework's cached outputs.
type Model struct {
	spec   Spec
	values map[string][]float64
	cache  map[string][]float64
	runs   int
}

// NewModel instantiates a model with the spec's initial parameter values.
func NewModel(spec Spec) *Model {
	m := &Model{
		spec:   spec,
		values: make(map[string][]float64, len(spec.Params)),
		cache:  make(map[string][]float64),
	}
	for _, p := range spec.Params {
		vals := make([]float64, len(p.Values))
		copy(vals, p.Values)
		m.values[p.Name] = vals
	}
	return m
}

// Name returns the spec name.
func (m *Model) Name() string { return m.spec.Name }

// Runs returns the number of completed evaluation cycles.
func (m *Model) Runs() int { return m.runs }

// Parameters returns views over the current parameter state.
func (m *Model) Parameters() []host.Parameter {
	params := make([]host.Parameter, len(m.spec.Params))
	for i, p := range m.spec.Params {
		view := p
		view.Values = append([]float64(nil), m.values[p.Name]...)
		params[i] = view
	}
	return params
}

// Objectives returns accessors reading the cached outputs.
func (m *Model) Objectives() []host.Objective {
	objs := make([]host.Objective, len(m.spec.Objectives))
	for i, out := range m.spec.Objectives {
		objs[i] = &objView{m: m, out: out}
	}
	return objs
}

// Constraints returns accessors reading the cached outputs.
func (m *Model) Constraints() []host.Constraint {
	cons := make([]host.Constraint, len(m.spec.Constraints))
	for i, c := range m.spec.Constraints {
		cons[i] = &conView{m: m, con: c}
	}
	return cons
}

// SetParameter writes new values for a named parameter.
func (m *Model) SetParameter(name string, values []float64) error {
	current, ok := m.values[name]
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	if len(values) != len(current) {
		return fmt.Errorf("parameter %q: got %d values, want %d", name, len(values), len(current))
	}
	copy(current, values)
	return nil
}

// Run recomputes all outputs for the current parameter values.
func (m *Model) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, out := range m.spec.Objectives {
		m.cache[out.Name] = out.Fn(m.values)
	}
	for _, con := range m.spec.Constraints {
		m.cache[con.Name] = con.Fn(m.values)
	}
	m.runs++
	return nil
}

// Gradient computes analytic partials of the named outputs with respect to
// the named parameters.
func (m *Model) Gradient(ctx context.Context, of, wrt []string) (map[string]map[string][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.spec.Grad == nil {
		return nil, fmt.Errorf("problem %q is not differentiable", m.spec.Name)
	}
	return m.spec.Grad(m.values, of, wrt)
}

// Output reads a cached output by name. Returns nil before the first Run.
func (m *Model) Output(name string) []float64 {
	return m.cache[name]
}

type objView struct {
	m   *Model
	out Output
}

func (o *objView) Name() string     { return o.out.Name }
func (o *objView) Value() []float64 { return o.m.cache[o.out.Name] }

type conView struct {
	m   *Model
	con ConOutput
}

func (c *conView) Name() string              { return c.con.Name }
func (c *conView) Size() int                 { return c.con.Size }
func (c *conView) Kind() host.ConstraintKind { return c.con.Kind }
func (c *conView) Linear() bool              { return c.con.Linear }
func (c *conView) Value() []float64          { return c.m.cache[c.con.Name] }

var (
	specMu sync.RWMutex
	specs  = map[string]Spec{}
)

func register(spec Spec) {
	specMu.Lock()
	defer specMu.Unlock()
	if _, dup := specs[spec.Name]; dup {
		panic(fmt.Sprintf("bench: duplicate problem %q", spec.Name))
	}
	specs[spec.Name] = spec
}

// New instantiates a registered problem by name.
func New(name string) (*Model, error) {
	specMu.RLock()
	spec, ok := specs[name]
	specMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown problem %q (available: %v)", name, Names())
	}
	return NewModel(spec), nil
}

// Names lists registered problems sorted by name.
func Names() []string {
	specMu.RLock()
	defer specMu.RUnlock()
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the description for a registered problem.
func Describe(name string) string {
	specMu.RLock()
	defer specMu.RUnlock()
	return specs[name].Description
}
