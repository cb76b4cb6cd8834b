package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// Direction of a trading signal or position
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNoTrade Direction = "NO-TRADE" // Explicit skip decision
)

// Sign returns +1 for LONG, -1 for SHORT, 0 otherwise.
// Offsets toward the profit side are entry + Sign()*distance.
func (d Direction) Sign() decimal.Decimal {
	switch d {
	case DirectionLong:
		return decimal.NewFromInt(1)
	case DirectionShort:
		return decimal.NewFromInt(-1)
	}
	return decimal.Zero
}

// Regime is the classified market state for a tick
type Regime string

const (
	RegimeTrendUp        Regime = "TREND_UP"
	RegimeTrendDown      Regime = "TREND_DOWN"
	RegimeRange          Regime = "RANGE"
	RegimeVolExpansion   Regime = "VOLATILITY_EXPANSION"
	RegimeVolCompression Regime = "VOLATILITY_COMPRESSION"
)

// IsTrend reports whether the regime carries a direction
func (r Regime) IsTrend() bool {
	return r == RegimeTrendUp || r == RegimeTrendDown
}

// Tick is one polled market observation
type Tick struct {
	Timestamp time.Time
	Price     decimal.Decimal
	Volume    decimal.Decimal
}

// Signal is the immutable per-tick trading decision
type Signal struct {
	Timestamp  time.Time
	Symbol     string
	Price      decimal.Decimal
	Regime     Regime
	Confidence float64
	Direction  Direction
	Reason     string
}

// PositionState is the lifecycle state of an open position
type PositionState string

const (
	StateOpen    PositionState = "OPEN"
	StateTP1Hit  PositionState = "TP1_HIT"
	StateTP2Hit  PositionState = "TP2_HIT"
	StateClosed  PositionState = "CLOSED"
	StateStopped PositionState = "STOPPED"
)

// Position represents an open trade managed by the lifecycle manager
type Position struct {
	Symbol     string
	Direction  Direction
	EntryPrice decimal.Decimal
	Size       decimal.Decimal // original size at entry
	Remaining  decimal.Decimal // size still on the exchange
	ATR        decimal.Decimal // effective ATR captured at entry
	EntryTime  time.Time

	State PositionState

	// Tier levels, computed once at entry
	TP1Level decimal.Decimal
	TP2Level decimal.Decimal
	StopLoss decimal.Decimal // active protective stop

	// Tier fills
	TP1Filled bool
	TP2Filled bool

	// Monotonic flags: once set, never unset
	BreakevenSet bool
	TrailingSet  bool

	// Runner protection, placed on the TP2 transition
	RunnerTP     decimal.Decimal
	TrailTrigger decimal.Decimal

	// Set when protective placement failed twice and the position
	// needs manual intervention
	Unprotected bool
}

// TierSizes splits the original size into TP1 (30%), TP2 (40%) and the
// runner. The runner is the exact remainder so the three always sum to Size.
func (p *Position) TierSizes() (tp1, tp2, runner decimal.Decimal) {
	tp1 = p.Size.Mul(decimal.NewFromFloat(0.30))
	tp2 = p.Size.Mul(decimal.NewFromFloat(0.40))
	runner = p.Size.Sub(tp1).Sub(tp2)
	return tp1, tp2, runner
}

// ROIPct returns the unrealized return on the position in percent,
// positive when in profit regardless of direction.
func (p *Position) ROIPct(current decimal.Decimal) float64 {
	if p.EntryPrice.IsZero() {
		return 0
	}
	move := current.Sub(p.EntryPrice).Div(p.EntryPrice)
	roi := move.Mul(p.Direction.Sign())
	f, _ := roi.Mul(decimal.NewFromInt(100)).Float64()
	return f
}

// Trade is a historical fill record for audit and persistence
type Trade struct {
	ID        string
	Symbol    string
	Direction Direction
	Price     decimal.Decimal
	Size      decimal.Decimal
	Action    string // OPEN, TP1, TP2, RUNNER_TP, STOP_LOSS, TRAILING_STOP
	PnL       decimal.Decimal
	Timestamp time.Time
}
