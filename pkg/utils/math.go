package utils

import "math"

// NormalizeL2 normalizes the slice in place to unit L2 norm.
// If the norm is zero, the slice is unchanged.
func NormalizeL2(x []float32) {
	var sum float32
	for _, v := range x {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range x {
		x[i] *= norm
	}
}

// MinMaxNormalize rescales scores into [0,1] per result set so scores from
// sources with different scales compare fairly. When all values are equal
// every entry maps to 1 (a single hit is still a full-strength hit).
func MinMaxNormalize(scores map[string]float64) map[string]float64 {
	if len(scores) == 0 {
		return map[string]float64{}
	}
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, s := range scores {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make(map[string]float64, len(scores))
	if hi == lo {
		for id := range scores {
			out[id] = 1
		}
		return out
	}
	for id, s := range scores {
		out[id] = (s - lo) / (hi - lo)
	}
	return out
}
