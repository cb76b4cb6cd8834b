package features

import (
	"math"
)

// ═══════════════════════════════════════════════════════════════════════════════
// FEATURE COMPUTATION - Rolling statistics over the tick window
// ═══════════════════════════════════════════════════════════════════════════════
//
// All features are recomputed from scratch each tick and never persisted.
// Inputs are the rolling price/volume windows, oldest first.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Set is the per-tick feature vector
type Set struct {
	Returns      float64 // latest log return
	Volatility   float64 // rolling std dev of log returns
	VolumeAccel  float64 // rolling mean of volume first differences
	Stability    float64 // inverse return variance, clamped to [0,1]
	ATR          float64 // rolling mean absolute price move, unfloored
}

// Params controls window sizes
type Params struct {
	Window    int // volatility/stability/volume window
	ATRPeriod int
}

// DefaultParams matches the live configuration
func DefaultParams() Params {
	return Params{Window: 10, ATRPeriod: 14}
}

// Compute derives the feature set from the rolling windows. Returns the
// zero Set when fewer than two prices are available.
func Compute(prices, volumes []float64, p Params) Set {
	if p.Window <= 0 {
		p.Window = 10
	}
	if p.ATRPeriod <= 0 {
		p.ATRPeriod = 14
	}
	if len(prices) < 2 {
		return Set{}
	}

	rets := logReturns(prices)

	fs := Set{
		Returns:     rets[len(rets)-1],
		Volatility:  rollingStd(rets, p.Window),
		VolumeAccel: volumeAcceleration(volumes, p.Window),
		ATR:         tickATR(prices, p.ATRPeriod),
	}
	fs.Stability = stability(rets, p.Window)
	return fs
}

// logReturns computes log(p_t / p_{t-1}) with 0 for non-positive prices
func logReturns(prices []float64) []float64 {
	rets := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i] <= 0 || prices[i-1] <= 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, math.Log(prices[i]/prices[i-1]))
	}
	return rets
}

// rollingStd is the standard deviation of the last window returns
func rollingStd(rets []float64, window int) float64 {
	return math.Sqrt(rollingVar(rets, window))
}

func rollingVar(rets []float64, window int) float64 {
	tail := lastN(rets, window)
	if len(tail) < 2 {
		return 0
	}
	avg := mean(tail)
	sum := 0.0
	for _, r := range tail {
		sum += (r - avg) * (r - avg)
	}
	return sum / float64(len(tail))
}

// stability is 1/(var+1e-6) squashed into [0,1]. A perfectly quiet window
// saturates at 1; noisy windows decay toward 0.
func stability(rets []float64, window int) float64 {
	v := rollingVar(rets, window)
	raw := 1.0 / (v + 1e-6)
	// raw peaks at 1e6 for zero variance; normalize on a log scale
	s := math.Log10(raw+1) / 6.0
	return clamp01(s)
}

// volumeAcceleration is the rolling mean of volume first differences
func volumeAcceleration(volumes []float64, window int) float64 {
	if len(volumes) < 2 {
		return 0
	}
	diffs := make([]float64, 0, len(volumes)-1)
	for i := 1; i < len(volumes); i++ {
		diffs = append(diffs, volumes[i]-volumes[i-1])
	}
	return mean(lastN(diffs, window))
}

// tickATR approximates ATR from ticker snapshots: the true range of a tick
// collapses to |p_t - p_{t-1}| when no high/low candles exist. The floor is
// applied at the point of use, not here.
func tickATR(prices []float64, period int) float64 {
	if len(prices) < 2 {
		return 0
	}
	trs := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		trs = append(trs, math.Abs(prices[i]-prices[i-1]))
	}
	return mean(lastN(trs, period))
}

// Helper functions

func lastN(data []float64, n int) []float64 {
	if len(data) <= n {
		return data
	}
	return data[len(data)-n:]
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
