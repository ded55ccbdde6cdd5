package driver

import (
	"context"
	"fmt"

	"github.com/mdokit/optdriver/internal/host"
)

// stubModel is a minimal host.Model for exercising driver behavior that the
// bench problems cannot trigger: evaluation errors, panics, and malformed
// parameter configurations.
type stubModel struct {
	params      []host.Parameter
	constraints []stubConstraint
	values      map[string][]float64

	runErr     error
	panicOnRun bool
	gradErr    error
	runs       int
}

type stubConstraint struct {
	name   string
	size   int
	kind   host.ConstraintKind
	linear bool
}

func newStubModel() *stubModel {
	m := &stubModel{
		params: []host.Parameter{{
			Name:   "x",
			Type:   host.Float,
			Values: []float64{0.5},
			Low:    []float64{0},
			High:   []float64{1},
		}},
		values: make(map[string][]float64),
	}
	for _, p := range m.params {
		m.values[p.Name] = append([]float64(nil), p.Values...)
	}
	return m
}

func (m *stubModel) Parameters() []host.Parameter {
	out := make([]host.Parameter, len(m.params))
	for i, p := range m.params {
		view := p
		view.Values = append([]float64(nil), m.values[p.Name]...)
		out[i] = view
	}
	return out
}

func (m *stubModel) Objectives() []host.Objective {
	return []host.Objective{stubOutput{m: m, name: "f"}}
}

func (m *stubModel) Constraints() []host.Constraint {
	out := make([]host.Constraint, len(m.constraints))
	for i, c := range m.constraints {
		out[i] = stubConView{m: m, con: c}
	}
	return out
}

func (m *stubModel) SetParameter(name string, values []float64) error {
	if _, ok := m.values[name]; !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	m.values[name] = append([]float64(nil), values...)
	return nil
}

func (m *stubModel) Run(ctx context.Context) error {
	if m.panicOnRun {
		panic("model blew up")
	}
	if m.runErr != nil {
		return m.runErr
	}
	m.runs++
	return nil
}

func (m *stubModel) Gradient(ctx context.Context, of, wrt []string) (map[string]map[string][]float64, error) {
	if m.gradErr != nil {
		return nil, m.gradErr
	}
	out := make(map[string]map[string][]float64, len(of))
	for _, o := range of {
		entry := make(map[string][]float64, len(wrt))
		for _, w := range wrt {
			size := 1
			for _, c := range m.constraints {
				if c.name == o {
					size = c.size
				}
			}
			entry[w] = make([]float64, size*len(m.values[w]))
		}
		out[o] = entry
	}
	return out, nil
}

// objective value: sum of squares over the first parameter
func (m *stubModel) objectiveValue() []float64 {
	sum := 0.0
	for _, v := range m.values[m.params[0].Name] {
		sum += v * v
	}
	return []float64{sum}
}

type stubOutput struct {
	m    *stubModel
	name string
}

func (o stubOutput) Name() string     { return o.name }
func (o stubOutput) Value() []float64 { return o.m.objectiveValue() }

type stubConView struct {
	m   *stubModel
	con stubConstraint
}

func (c stubConView) Name() string              { return c.con.name }
func (c stubConView) Size() int                 { return c.con.size }
func (c stubConView) Kind() host.ConstraintKind { return c.con.kind }
func (c stubConView) Linear() bool              { return c.con.linear }
func (c stubConView) Value() []float64          { return make([]float64, c.con.size) }
