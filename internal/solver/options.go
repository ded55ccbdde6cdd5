package solver

import "fmt"

// Option coercion helpers. Driver options are an opaque key/value map
// passed through verbatim; values may arrive as int, int64 or float64
// depending on whether they came from flags, YAML or JSON. Backends use
// these helpers to read the keys they understand and ignore the rest.

// IntOption reads an integer-valued option, falling back to def when the
// key is absent.
func IntOption(options map[string]any, key string, def int) (int, error) {
	v, ok := options[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("option %q: expected integer, got %v", key, v)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("option %q: expected integer, got %T", key, v)
	}
}

// FloatOption reads a float-valued option, falling back to def when the
// key is absent.
func FloatOption(options map[string]any, key string, def float64) (float64, error) {
	v, ok := options[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("option %q: expected number, got %T", key, v)
	}
}

// Int64Option reads an int64-valued option (seeds), falling back to def.
func Int64Option(options map[string]any, key string, def int64) (int64, error) {
	v, ok := options[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("option %q: expected integer, got %v", key, v)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("option %q: expected integer, got %T", key, v)
	}
}
