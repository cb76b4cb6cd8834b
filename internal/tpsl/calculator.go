package tpsl

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/0xvaler/sentinel/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TP/SL CALCULATOR - ATR-scaled protective levels for entry orders
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every entry gets both a take-profit and a stop-loss. Distances are regime
// multipliers on an effective ATR that is floored at a minimum percentage of
// the entry price, so low-volatility regimes cannot produce degenerate
// near-zero stops. The floor was revised upward after live stops were
// triggered by normal noise.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Config is the multiplier table
type Config struct {
	MinATRPct     float64 // floor as fraction of entry (0.012)
	MinRiskReward float64 // 1.2
	BaseSLMult    float64 // 1.0
	BaseTPMult    float64 // 2.0

	TP1Mult      float64 // tier 1 level, 1.5 ATR
	TP2Mult      float64 // tier 2 level, 2.5 ATR
	RunnerTPMult float64 // runner target, 4.5 ATR
	TrailMult    float64 // trailing trigger, 1.0 ATR
}

// DefaultConfig matches the live configuration
func DefaultConfig() Config {
	return Config{
		MinATRPct:     0.012,
		MinRiskReward: 1.2,
		BaseSLMult:    1.0,
		BaseTPMult:    2.0,
		TP1Mult:       1.5,
		TP2Mult:       2.5,
		RunnerTPMult:  4.5,
		TrailMult:     1.0,
	}
}

// Levels is the full protective plan computed at entry
type Levels struct {
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	TP1        decimal.Decimal
	TP2        decimal.Decimal
	RunnerTP   decimal.Decimal
	Trail      decimal.Decimal
	ATR        decimal.Decimal // effective (floored) ATR
	RiskReward float64
}

// Calculator derives protective levels
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator with the given multiplier table
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// EffectiveATR floors the raw ATR at MinATRPct of the reference price
func (c *Calculator) EffectiveATR(atr, price decimal.Decimal) decimal.Decimal {
	floor := price.Mul(decimal.NewFromFloat(c.cfg.MinATRPct))
	if atr.LessThan(floor) {
		return floor
	}
	return atr
}

// Calculate computes the protective plan for an entry. All level offsets are
// anchored on the entry price toward the profit side: level = entry +
// sign·k·ATR with sign = +1 LONG, −1 SHORT.
func (c *Calculator) Calculate(entry decimal.Decimal, direction types.Direction, atr decimal.Decimal, regime types.Regime, confidence float64) (Levels, error) {
	if direction != types.DirectionLong && direction != types.DirectionShort {
		return Levels{}, fmt.Errorf("tpsl: invalid direction %q", direction)
	}
	if confidence < 0 || confidence > 1 {
		return Levels{}, fmt.Errorf("tpsl: confidence %v out of [0,1]", confidence)
	}
	if entry.LessThanOrEqual(decimal.Zero) || atr.LessThanOrEqual(decimal.Zero) {
		return Levels{}, fmt.Errorf("tpsl: entry %s and ATR %s must be positive", entry, atr)
	}

	eATR := c.EffectiveATR(atr, entry)
	slMult, tpMult := c.regimeMultipliers(regime)

	slDist := eATR.Mul(decimal.NewFromFloat(slMult))
	tpDist := eATR.Mul(decimal.NewFromFloat(tpMult))

	// Higher confidence stretches the target: factor in [0.8, 1.2]
	factor := decimal.NewFromFloat(0.8 + confidence*0.4)
	tpDist = tpDist.Mul(factor)

	// Enforce minimum risk-reward by widening the target
	minRR := decimal.NewFromFloat(c.cfg.MinRiskReward)
	if tpDist.LessThan(slDist.Mul(minRR)) {
		tpDist = slDist.Mul(minRR)
	}

	sign := direction.Sign()
	lv := Levels{
		StopLoss:   entry.Sub(sign.Mul(slDist)),
		TakeProfit: entry.Add(sign.Mul(tpDist)),
		TP1:        entry.Add(sign.Mul(eATR.Mul(decimal.NewFromFloat(c.cfg.TP1Mult)))),
		TP2:        entry.Add(sign.Mul(eATR.Mul(decimal.NewFromFloat(c.cfg.TP2Mult)))),
		RunnerTP:   entry.Add(sign.Mul(eATR.Mul(decimal.NewFromFloat(c.cfg.RunnerTPMult)))),
		Trail:      entry.Add(sign.Mul(eATR.Mul(decimal.NewFromFloat(c.cfg.TrailMult)))),
		ATR:        eATR,
	}
	lv.RiskReward, _ = tpDist.Div(slDist).Float64()

	if err := c.Validate(entry, lv.TakeProfit, lv.StopLoss, direction); err != nil {
		return Levels{}, err
	}
	return lv, nil
}

// regimeMultipliers maps a regime to (sl, tp) multiples of effective ATR.
// Trending markets get wider stops to avoid noise and larger targets; all
// bands were widened operationally after premature noise exits.
func (c *Calculator) regimeMultipliers(regime types.Regime) (sl, tp float64) {
	switch regime {
	case types.RegimeTrendUp, types.RegimeTrendDown:
		sl, tp = 2.5, 5.0
	case types.RegimeRange:
		sl, tp = 2.0, 3.5
	case types.RegimeVolCompression:
		sl, tp = 1.8, 3.0
	case types.RegimeVolExpansion:
		sl, tp = 2.0, 3.5
	default:
		sl, tp = 1.0, 2.0
	}
	return sl * c.cfg.BaseSLMult, tp * c.cfg.BaseTPMult
}

// Validate checks directional correctness and the risk-reward floor
func (c *Calculator) Validate(entry, takeProfit, stopLoss decimal.Decimal, direction types.Direction) error {
	if takeProfit.LessThanOrEqual(decimal.Zero) || stopLoss.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("tpsl: non-positive levels TP=%s SL=%s", takeProfit, stopLoss)
	}

	var risk, reward decimal.Decimal
	switch direction {
	case types.DirectionLong:
		if stopLoss.GreaterThanOrEqual(entry) {
			return fmt.Errorf("tpsl: LONG stop %s must be below entry %s", stopLoss, entry)
		}
		if takeProfit.LessThanOrEqual(entry) {
			return fmt.Errorf("tpsl: LONG target %s must be above entry %s", takeProfit, entry)
		}
		risk = entry.Sub(stopLoss)
		reward = takeProfit.Sub(entry)
	case types.DirectionShort:
		if stopLoss.LessThanOrEqual(entry) {
			return fmt.Errorf("tpsl: SHORT stop %s must be above entry %s", stopLoss, entry)
		}
		if takeProfit.GreaterThanOrEqual(entry) {
			return fmt.Errorf("tpsl: SHORT target %s must be below entry %s", takeProfit, entry)
		}
		risk = stopLoss.Sub(entry)
		reward = entry.Sub(takeProfit)
	default:
		return fmt.Errorf("tpsl: invalid direction %q", direction)
	}

	if risk.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("tpsl: non-positive risk %s", risk)
	}
	rr, _ := reward.Div(risk).Float64()
	if rr < c.cfg.MinRiskReward {
		return fmt.Errorf("tpsl: risk-reward %.2f below minimum %.2f", rr, c.cfg.MinRiskReward)
	}
	return nil
}
