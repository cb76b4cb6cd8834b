package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/0xvaler/sentinel/internal/features"
	"github.com/0xvaler/sentinel/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK FILTER - Static entry gates
// ═══════════════════════════════════════════════════════════════════════════════
//
// A pure AND of independent checks: spike cooldown must be drained,
// confidence must clear the minimum, and the regime must map to a direction.
// Any failing gate forces NO-TRADE.
//
// ═══════════════════════════════════════════════════════════════════════════════

// FilterConfig tunes the gates
type FilterConfig struct {
	MinConfidence float64 // 0.65
	SpikeVolMin   float64 // volatility that arms the cooldown (0.10)
	SpikeCooldown int     // ticks to block after a spike (2)
}

// Filter holds the cooldown counter between ticks. It is owned by the
// polling loop; there is no concurrent access.
type Filter struct {
	cfg      FilterConfig
	cooldown int
}

// NewFilter creates a risk filter
func NewFilter(cfg FilterConfig) *Filter {
	return &Filter{cfg: cfg}
}

// Apply gates a classified tick into LONG, SHORT or NO-TRADE
func (f *Filter) Apply(fs features.Set, r types.Regime, confidence float64) (types.Direction, string) {
	// A volatility spike arms the cooldown before any other gate runs, so
	// the spike tick itself is also blocked.
	if fs.Volatility > f.cfg.SpikeVolMin {
		f.cooldown = f.cfg.SpikeCooldown
		log.Debug().
			Float64("volatility", fs.Volatility).
			Int("cooldown_ticks", f.cooldown).
			Msg("⚡ Volatility spike, cooldown armed")
	}

	if f.cooldown > 0 {
		f.cooldown--
		return types.DirectionNoTrade, "cooldown active after volatility spike"
	}

	if confidence < f.cfg.MinConfidence {
		return types.DirectionNoTrade, "confidence below minimum"
	}

	switch r {
	case types.RegimeTrendUp:
		return types.DirectionLong, "trend up with sufficient confidence"
	case types.RegimeTrendDown:
		return types.DirectionShort, "trend down with sufficient confidence"
	}
	return types.DirectionNoTrade, "regime has no direction"
}

// CooldownRemaining exposes the counter for status reporting
func (f *Filter) CooldownRemaining() int {
	return f.cooldown
}
