package risk

import (
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION SIZING - Confidence-scaled fixed base size
// ═══════════════════════════════════════════════════════════════════════════════
//
// size = base × confidence × adaptiveFactor, capped at max.
// Deliberately conservative: the base is a fraction of the exposure cap and
// confidence only ever shrinks it.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Sizer computes entry sizes
type Sizer struct {
	baseSize decimal.Decimal
	maxSize  decimal.Decimal
}

// NewSizer creates a position sizer
func NewSizer(baseSize, maxSize decimal.Decimal) *Sizer {
	return &Sizer{baseSize: baseSize, maxSize: maxSize}
}

// Calculate returns the contract size for an entry, rounded to 6 decimals
func (s *Sizer) Calculate(confidence, adaptiveFactor float64) decimal.Decimal {
	if confidence <= 0 || adaptiveFactor <= 0 {
		return decimal.Zero
	}
	size := s.baseSize.
		Mul(decimal.NewFromFloat(confidence)).
		Mul(decimal.NewFromFloat(adaptiveFactor))
	if size.GreaterThan(s.maxSize) {
		size = s.maxSize
	}
	return size.Round(6)
}
