// Package host defines the interfaces the driver consumes from the host
// modeling framework: design parameters, objectives, constraints, and the
// model that evaluates them. The driver never evaluates anything itself; it
// pushes values through these interfaces and reads the results back.
package host

import "context"

// ValueType declares how a parameter's values are to be interpreted.
// A parameter vector is uniformly typed; mixing kinds within one vector is
// an unsupported configuration.
type ValueType int

const (
	TypeInvalid ValueType = iota
	Float
	Int
	Bool
)

func (t ValueType) String() string {
	switch t {
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	default:
		return "invalid"
	}
}

// Parameter is a transient view over a host-owned design variable.
// Values, Low and High have equal length. Integer and boolean values are
// widened to float64 for transport; Type records how to interpret them.
// Choices, when non-nil, enumerates the allowed values explicitly.
type Parameter struct {
	Name    string
	Values  []float64
	Low     []float64
	High    []float64
	Type    ValueType
	Choices []float64
}

// Size returns the number of scalar entries in the parameter.
func (p Parameter) Size() int {
	return len(p.Values)
}

// ConstraintKind distinguishes equality from inequality constraints.
type ConstraintKind int

const (
	// Equality constraints are normalized to h(x) = 0.
	Equality ConstraintKind = iota
	// Inequality constraints are normalized to g(x) <= 0.
	Inequality
)

func (k ConstraintKind) String() string {
	if k == Equality {
		return "equality"
	}
	return "inequality"
}

// Objective is a scalar (or small vector) output to minimize.
// Value reads the host's cached state from the most recent Run.
type Objective interface {
	Name() string
	Value() []float64
}

// Constraint is a condition on model outputs. Linear constraints have a
// constant Jacobian, which the driver precomputes once instead of asking
// for it every iteration.
type Constraint interface {
	Name() string
	Size() int
	Kind() ConstraintKind
	Linear() bool
	Value() []float64
}

// Model is the host framework seam. Implementations own all state; the
// driver only sets parameter values, triggers evaluation cycles, and reads
// outputs and sensitivities.
//
// Gradient returns sensitivities in dictionary-of-dictionaries form:
// result[of][wrt] is a row-major (size(of) x size(wrt)) slice of partial
// derivatives. Implementations may return an error for outputs they cannot
// differentiate.
type Model interface {
	Parameters() []Parameter
	Objectives() []Objective
	Constraints() []Constraint

	// SetParameter writes new values for a named parameter.
	SetParameter(name string, values []float64) error

	// Run executes one evaluation cycle, refreshing all objective and
	// constraint outputs for the current parameter values.
	Run(ctx context.Context) error

	// Gradient computes partial derivatives of the named outputs with
	// respect to the named parameters.
	Gradient(ctx context.Context, of, wrt []string) (map[string]map[string][]float64, error)
}
