package market

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/0xvaler/sentinel/types"
)

// TickerSource provides the latest market observation for a symbol.
// The WEEX adapter implements it; tests use a stub.
type TickerSource interface {
	GetTicker(ctx context.Context, symbol string) (types.Tick, error)
}

// Feed polls a ticker source and maintains the rolling history
type Feed struct {
	source  TickerSource
	symbol  string
	history *History
}

// NewFeed creates a polling feed over the given history buffer
func NewFeed(source TickerSource, symbol string, history *History) *Feed {
	return &Feed{
		source:  source,
		symbol:  symbol,
		history: history,
	}
}

// Poll fetches one tick and appends it to the history. A failed fetch skips
// the tick; the caller decides whether to continue.
func (f *Feed) Poll(ctx context.Context) (types.Tick, error) {
	tick, err := f.source.GetTicker(ctx, f.symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", f.symbol).Msg("Ticker fetch failed, skipping tick")
		return types.Tick{}, err
	}
	f.history.Append(tick)
	return tick, nil
}

// History exposes the underlying rolling buffer
func (f *Feed) History() *History {
	return f.history
}

// Warm reports whether enough ticks are buffered for analysis
func (f *Feed) Warm(minTicks int) bool {
	return f.history.Len() >= minTicks
}
