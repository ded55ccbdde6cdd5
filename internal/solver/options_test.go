package solver

import "testing"

func TestIntOption(t *testing.T) {
	opts := map[string]any{
		"flag": 10,
		"json": float64(20),
		"bad":  1.5,
		"str":  "x",
	}

	if v, err := IntOption(opts, "flag", 0); err != nil || v != 10 {
		t.Errorf("int value: got %d, %v", v, err)
	}
	if v, err := IntOption(opts, "json", 0); err != nil || v != 20 {
		t.Errorf("float64 integral value: got %d, %v", v, err)
	}
	if v, err := IntOption(opts, "missing", 7); err != nil || v != 7 {
		t.Errorf("default: got %d, %v", v, err)
	}
	if _, err := IntOption(opts, "bad", 0); err == nil {
		t.Error("Expected error for non-integral float")
	}
	if _, err := IntOption(opts, "str", 0); err == nil {
		t.Error("Expected error for string value")
	}
}

func TestFloatOption(t *testing.T) {
	opts := map[string]any{
		"f": 1.5,
		"i": 3,
	}

	if v, err := FloatOption(opts, "f", 0); err != nil || v != 1.5 {
		t.Errorf("float value: got %g, %v", v, err)
	}
	if v, err := FloatOption(opts, "i", 0); err != nil || v != 3 {
		t.Errorf("int value: got %g, %v", v, err)
	}
	if v, err := FloatOption(opts, "missing", 2.5); err != nil || v != 2.5 {
		t.Errorf("default: got %g, %v", v, err)
	}
}

func TestInt64Option(t *testing.T) {
	opts := map[string]any{
		"seed": 42,
	}

	if v, err := Int64Option(opts, "seed", 0); err != nil || v != 42 {
		t.Errorf("seed: got %d, %v", v, err)
	}
	if v, err := Int64Option(opts, "missing", 1); err != nil || v != 1 {
		t.Errorf("default: got %d, %v", v, err)
	}
}
