package regime

import (
	"github.com/0xvaler/sentinel/internal/features"
	"github.com/0xvaler/sentinel/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// REGIME CLASSIFIER - Fuzzy threshold scoring over the feature vector
// ═══════════════════════════════════════════════════════════════════════════════
//
// Each regime gets a membership score in [0,1] from overlapping fuzzy bands
// around the static volatility thresholds. Highest score wins; ties break by
// a fixed priority order with trend regimes before range. No learning.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Thresholds are the static volatility cut points, configurable
type Thresholds struct {
	TrendVolMin     float64 // trend territory starts here (0.02)
	RangeVolMax     float64 // range territory ends here (0.01)
	ExpansionVolMin float64 // expansion territory starts here (0.03)
	BandWidth       float64 // fuzzy band as a fraction of each threshold (0.25)
}

// DefaultThresholds matches the live configuration
func DefaultThresholds() Thresholds {
	return Thresholds{
		TrendVolMin:     0.02,
		RangeVolMax:     0.01,
		ExpansionVolMin: 0.03,
		BandWidth:       0.25,
	}
}

// Result carries the winning regime plus the raw score table
type Result struct {
	Regime types.Regime
	Score  float64
	Scores map[types.Regime]float64
}

// Classifier scores feature vectors into regimes
type Classifier struct {
	t Thresholds
}

// NewClassifier creates a classifier with the given thresholds
func NewClassifier(t Thresholds) *Classifier {
	if t.BandWidth <= 0 {
		t.BandWidth = 0.25
	}
	return &Classifier{t: t}
}

// Tie-break priority, trend regimes first
var priority = []types.Regime{
	types.RegimeTrendUp,
	types.RegimeTrendDown,
	types.RegimeVolExpansion,
	types.RegimeRange,
	types.RegimeVolCompression,
}

// Classify maps a feature set to a regime label and raw score
func (c *Classifier) Classify(fs features.Set) Result {
	vol := fs.Volatility

	scores := map[types.Regime]float64{
		types.RegimeTrendUp:        0,
		types.RegimeTrendDown:      0,
		types.RegimeRange:          c.rampDown(vol, c.t.RangeVolMax),
		types.RegimeVolExpansion:   c.rampUp(vol, c.t.ExpansionVolMin),
		types.RegimeVolCompression: c.rampUp(vol, c.t.RangeVolMax) * c.rampDown(vol, c.t.TrendVolMin),
	}

	// Trend membership requires a signed return; magnitude does not matter,
	// only direction, matching the threshold rule it generalizes.
	trend := c.rampUp(vol, c.t.TrendVolMin)
	if fs.Returns > 0 {
		scores[types.RegimeTrendUp] = trend
	} else if fs.Returns < 0 {
		scores[types.RegimeTrendDown] = trend
	}

	best := Result{Regime: types.RegimeVolCompression, Score: -1, Scores: scores}
	for _, r := range priority {
		if scores[r] > best.Score {
			best.Regime = r
			best.Score = scores[r]
		}
	}
	return best
}

// rampUp is 0 below threshold-band, 1 above threshold+band, linear between
func (c *Classifier) rampUp(v, threshold float64) float64 {
	band := threshold * c.t.BandWidth
	lo, hi := threshold-band, threshold+band
	switch {
	case v <= lo:
		return 0
	case v >= hi:
		return 1
	default:
		return (v - lo) / (hi - lo)
	}
}

// rampDown mirrors rampUp
func (c *Classifier) rampDown(v, threshold float64) float64 {
	return 1 - c.rampUp(v, threshold)
}
