package regime

import (
	"math"

	"github.com/0xvaler/sentinel/internal/features"
	"github.com/0xvaler/sentinel/types"
)

// Confidence computes the scalar confidence for a regime signal.
// Deterministic and stateless:
//   - trend regimes:      stability × (1 − volatility)
//   - range:              stability × (1 − volatility/2)
//   - volatility regimes: stability clamped to [0.3, 0.8]
//
// The output is always in [0,1], including for out-of-range feature values.
func Confidence(fs features.Set, r types.Regime) float64 {
	base := sanitize(fs.Stability)
	vol := sanitize(fs.Volatility)

	var score float64
	switch r {
	case types.RegimeTrendUp, types.RegimeTrendDown:
		score = base * (1 - vol)
	case types.RegimeRange:
		score = base * (1 - vol/2)
	default: // volatility expansion/compression
		score = math.Max(0.3, math.Min(0.8, base))
	}

	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
