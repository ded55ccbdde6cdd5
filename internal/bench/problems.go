package bench

import "github.com/mdokit/optdriver/internal/host"

// The built-in problems. Known optima are noted for the tests:
//
//	paraboloid  (12, -2), f = 58 (constraint active)
//	rosenbrock  (1, 1), f = 0
//	sphere      origin, f = 0
//	sphere-int  (3, -4), f = 0
//	mixed       enabled=1, spacing=0.2, w=2.5, f = 0
//	prodmix     (2, 6), f = -36
func init() {
	register(paraboloid())
	register(rosenbrock())
	register(sphere())
	register(sphereInt())
	register(mixed())
	register(prodmix())
}

func scalar(name string, typ host.ValueType, value, low, high float64) host.Parameter {
	return host.Parameter{
		Name:   name,
		Type:   typ,
		Values: []float64{value},
		Low:    []float64{low},
		High:   []float64{high},
	}
}

// paraboloid minimizes f = (x-3)^2 + xy + (y+4)^2 - 3 subject to the
// linear inequality x + y >= 10, normalized to g = 10 - x - y <= 0.
func paraboloid() Spec {
	return Spec{
		Name:        "paraboloid",
		Description: "Quadratic bowl with one active linear constraint",
		Params: []host.Parameter{
			scalar("x", host.Float, 10, -50, 50),
			scalar("y", host.Float, 20, -50, 50),
		},
		Objectives: []Output{{
			Name: "f",
			Size: 1,
			Fn: func(v map[string][]float64) []float64 {
				x, y := v["x"][0], v["y"][0]
				return []float64{(x-3)*(x-3) + x*y + (y+4)*(y+4) - 3}
			},
		}},
		Constraints: []ConOutput{{
			Output: Output{
				Name: "g",
				Size: 1,
				Fn: func(v map[string][]float64) []float64 {
					return []float64{10 - v["x"][0] - v["y"][0]}
				},
			},
			Kind:   host.Inequality,
			Linear: true,
		}},
		Grad: func(v map[string][]float64, of, wrt []string) (map[string]map[string][]float64, error) {
			x, y := v["x"][0], v["y"][0]
			partials := map[string]map[string][]float64{
				"f": {
					"x": {2*(x-3) + y},
					"y": {x + 2*(y+4)},
				},
				"g": {
					"x": {-1},
					"y": {-1},
				},
			}
			return pick(partials, of, wrt)
		},
	}
}

// rosenbrock is the classic banana valley, unconstrained.
func rosenbrock() Spec {
	return Spec{
		Name:        "rosenbrock",
		Description: "Rosenbrock valley, 2D, unconstrained",
		Params: []host.Parameter{{
			Name:   "x",
			Type:   host.Float,
			Values: []float64{-1.2, 1},
			Low:    []float64{-2, -2},
			High:   []float64{2, 2},
		}},
		Objectives: []Output{{
			Name: "f",
			Size: 1,
			Fn: func(v map[string][]float64) []float64 {
				x0, x1 := v["x"][0], v["x"][1]
				return []float64{(1-x0)*(1-x0) + 100*(x1-x0*x0)*(x1-x0*x0)}
			},
		}},
		Grad: func(v map[string][]float64, of, wrt []string) (map[string]map[string][]float64, error) {
			x0, x1 := v["x"][0], v["x"][1]
			partials := map[string]map[string][]float64{
				"f": {
					"x": {
						-2*(1-x0) - 400*x0*(x1-x0*x0),
						200 * (x1 - x0*x0),
					},
				},
			}
			return pick(partials, of, wrt)
		},
	}
}

// sphere is a 3D quadratic bowl centered at the origin.
func sphere() Spec {
	return Spec{
		Name:        "sphere",
		Description: "Sum of squares, 3D, unconstrained",
		Params: []host.Parameter{{
			Name:   "x",
			Type:   host.Float,
			Values: []float64{4, -3, 2},
			Low:    []float64{-5.12, -5.12, -5.12},
			High:   []float64{5.12, 5.12, 5.12},
		}},
		Objectives: []Output{{
			Name: "f",
			Size: 1,
			Fn: func(v map[string][]float64) []float64 {
				sum := 0.0
				for _, x := range v["x"] {
					sum += x * x
				}
				return []float64{sum}
			},
		}},
		Grad: func(v map[string][]float64, of, wrt []string) (map[string]map[string][]float64, error) {
			g := make([]float64, len(v["x"]))
			for i, x := range v["x"] {
				g[i] = 2 * x
			}
			return pick(map[string]map[string][]float64{"f": {"x": g}}, of, wrt)
		},
	}
}

// sphereInt is a shifted sum of squares over integer variables with the
// optimum at an integer point.
func sphereInt() Spec {
	target := []float64{3, -4}
	return Spec{
		Name:        "sphere-int",
		Description: "Shifted sum of squares over integer variables",
		Params: []host.Parameter{{
			Name:   "n",
			Type:   host.Int,
			Values: []float64{7, -6},
			Low:    []float64{-10, -10},
			High:   []float64{10, 10},
		}},
		Objectives: []Output{{
			Name: "f",
			Size: 1,
			Fn: func(v map[string][]float64) []float64 {
				sum := 0.0
				for i, n := range v["n"] {
					d := n - target[i]
					sum += d * d
				}
				return []float64{sum}
			},
		}},
	}
}

// mixed combines a boolean switch, an enumerated spacing and a continuous
// width. Not differentiable; derivative-free backends only.
func mixed() Spec {
	enabled := scalar("enabled", host.Bool, 0, 0, 1)
	spacing := scalar("spacing", host.Float, 1.0, 0.1, 1.0)
	spacing.Choices = []float64{0.1, 0.2, 0.5, 1.0}
	return Spec{
		Name:        "mixed",
		Description: "Boolean, enumerated and continuous variables together",
		Params: []host.Parameter{
			enabled,
			spacing,
			scalar("w", host.Float, 0, 0, 5),
		},
		Objectives: []Output{{
			Name: "f",
			Size: 1,
			Fn: func(v map[string][]float64) []float64 {
				e := v["enabled"][0]
				s := v["spacing"][0]
				w := v["w"][0]
				return []float64{(w-2.5)*(w-2.5) + 10*(s-0.2)*(s-0.2) + 5*(1-e)}
			},
		}},
	}
}

// prodmix is a small product-mix LP: maximize 3a + 5b (minimized as its
// negation) with a <= 4, b <= 6 and the shared capacity 3a + 2b <= 18.
func prodmix() Spec {
	return Spec{
		Name:        "prodmix",
		Description: "Product-mix linear program",
		Params: []host.Parameter{
			scalar("a", host.Float, 0, 0, 4),
			scalar("b", host.Float, 0, 0, 6),
		},
		Objectives: []Output{{
			Name: "profit",
			Size: 1,
			Fn: func(v map[string][]float64) []float64 {
				return []float64{-3*v["a"][0] - 5*v["b"][0]}
			},
		}},
		Constraints: []ConOutput{{
			Output: Output{
				Name: "capacity",
				Size: 1,
				Fn: func(v map[string][]float64) []float64 {
					return []float64{3*v["a"][0] + 2*v["b"][0] - 18}
				},
			},
			Kind:   host.Inequality,
			Linear: true,
		}},
		Grad: func(v map[string][]float64, of, wrt []string) (map[string]map[string][]float64, error) {
			partials := map[string]map[string][]float64{
				"profit":   {"a": {-3}, "b": {-5}},
				"capacity": {"a": {3}, "b": {2}},
			}
			return pick(partials, of, wrt)
		},
	}
}

// pick filters a full partial table down to the requested outputs and
// parameters, mirroring how a host framework's differentiator is queried.
func pick(all map[string]map[string][]float64, of, wrt []string) (map[string]map[string][]float64, error) {
	out := make(map[string]map[string][]float64, len(of))
	for _, o := range of {
		row, ok := all[o]
		if !ok {
			return nil, &missingOutputError{name: o}
		}
		entry := make(map[string][]float64, len(wrt))
		for _, w := range wrt {
			col, ok := row[w]
			if !ok {
				return nil, &missingOutputError{name: w}
			}
			entry[w] = append([]float64(nil), col...)
		}
		out[o] = entry
	}
	return out, nil
}

type missingOutputError struct{ name string }

func (e *missingOutputError) Error() string {
	return "no partial derivatives for " + e.name
}
