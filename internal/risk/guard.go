package risk

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXECUTION GUARD - Static entry gates applied after the signal filter
// ═══════════════════════════════════════════════════════════════════════════════

// ExecutionGuard enforces a cooldown between entries and a hard cap on total
// exposure. Owned by the polling loop; no concurrent access.
type ExecutionGuard struct {
	cooldown    time.Duration
	maxPosition decimal.Decimal

	lastTrade time.Time
	exposure  decimal.Decimal

	// injectable clock for tests
	now func() time.Time
}

// NewExecutionGuard creates an entry guard
func NewExecutionGuard(cooldown time.Duration, maxPosition decimal.Decimal) *ExecutionGuard {
	return &ExecutionGuard{
		cooldown:    cooldown,
		maxPosition: maxPosition,
		now:         time.Now,
	}
}

// CanTrade reports whether a new entry of the given size is allowed
func (g *ExecutionGuard) CanTrade(size decimal.Decimal) bool {
	if !g.lastTrade.IsZero() && g.now().Sub(g.lastTrade) < g.cooldown {
		remaining := g.cooldown - g.now().Sub(g.lastTrade)
		log.Debug().Dur("remaining", remaining).Msg("🚫 Entry blocked: cooldown active")
		return false
	}
	if g.exposure.Add(size).Abs().GreaterThan(g.maxPosition) {
		log.Debug().
			Str("exposure", g.exposure.String()).
			Str("size", size.String()).
			Str("max", g.maxPosition.String()).
			Msg("🚫 Entry blocked: exposure cap")
		return false
	}
	return true
}

// RegisterTrade records an executed entry
func (g *ExecutionGuard) RegisterTrade(size decimal.Decimal) {
	g.lastTrade = g.now()
	g.exposure = g.exposure.Add(size)
}

// RegisterExit reduces tracked exposure after a fill
func (g *ExecutionGuard) RegisterExit(size decimal.Decimal) {
	g.exposure = g.exposure.Sub(size)
	if g.exposure.IsNegative() {
		g.exposure = decimal.Zero
	}
}
