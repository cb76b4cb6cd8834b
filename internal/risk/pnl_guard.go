package risk

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PnLGuard halts trading when equity drawdown from peak exceeds the
// threshold. The halt is sticky: once tripped it stays tripped until the
// process restarts, since a drawdown that size needs a human decision.
type PnLGuard struct {
	maxDrawdownPct decimal.Decimal
	peakEquity     decimal.Decimal
	halted         bool
}

// NewPnLGuard creates a drawdown guard
func NewPnLGuard(maxDrawdownPct float64) *PnLGuard {
	return &PnLGuard{
		maxDrawdownPct: decimal.NewFromFloat(maxDrawdownPct),
	}
}

// Update feeds the current equity into the guard
func (g *PnLGuard) Update(equity decimal.Decimal) {
	if g.peakEquity.IsZero() {
		g.peakEquity = equity
		return
	}
	if equity.GreaterThan(g.peakEquity) {
		g.peakEquity = equity
	}

	drawdown := g.peakEquity.Sub(equity).Div(g.peakEquity)
	if !g.halted && drawdown.GreaterThanOrEqual(g.maxDrawdownPct) {
		g.halted = true
		log.Error().
			Str("equity", equity.StringFixed(2)).
			Str("peak", g.peakEquity.StringFixed(2)).
			Str("drawdown", drawdown.Mul(decimal.NewFromInt(100)).StringFixed(2)+"%").
			Msg("🚨 Drawdown limit hit, trading halted")
	}
}

// CanTrade reports whether entries are still allowed
func (g *PnLGuard) CanTrade() bool {
	return !g.halted
}

// Drawdown returns the current drawdown fraction from peak
func (g *PnLGuard) Drawdown(equity decimal.Decimal) decimal.Decimal {
	if g.peakEquity.IsZero() {
		return decimal.Zero
	}
	return g.peakEquity.Sub(equity).Div(g.peakEquity)
}
