package classify

import (
	"errors"
	"math"
)

var ErrNegativePower = errors.New("power readings must be non-negative numbers")

// VSWR derives the standing wave ratio from forward and reflected power.
// Reflected power at or above forward power yields +Inf, which callers render as an error state.
func VSWR(forward, reflected float64) (float64, error) {
	if forward < 0 || reflected < 0 || math.IsNaN(forward) || math.IsNaN(reflected) {
		return 0, ErrNegativePower
	}
	if reflected == 0 {
		return 1.0, nil
	}
	if reflected >= forward {
		return math.Inf(1), nil
	}
	gamma := math.Sqrt(reflected / forward)
	return round2((1 + gamma) / (1 - gamma)), nil
}

func IsInfinite(v float64) bool {
	return math.IsInf(v, 1)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
