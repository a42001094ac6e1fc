package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	NormalizeL2(v)
	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("expected unit norm, got %f", sum)
	}

	zero := []float32{0, 0}
	NormalizeL2(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Error("zero vector should be unchanged")
	}
}

func TestMinMaxNormalize(t *testing.T) {
	in := map[string]float64{"a": 1, "b": 3, "c": 5}
	out := MinMaxNormalize(in)
	if out["a"] != 0 || out["c"] != 1 {
		t.Errorf("expected endpoints 0 and 1, got %v", out)
	}
	if math.Abs(out["b"]-0.5) > 1e-9 {
		t.Errorf("expected midpoint 0.5, got %f", out["b"])
	}

	single := MinMaxNormalize(map[string]float64{"only": 7})
	if single["only"] != 1 {
		t.Errorf("single entry should normalize to 1, got %f", single["only"])
	}

	if got := MinMaxNormalize(nil); len(got) != 0 {
		t.Errorf("nil input should yield empty map, got %v", got)
	}
}
