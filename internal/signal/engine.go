package signal

import (
	"time"

	"github.com/0xvaler/sentinel/internal/features"
	"github.com/0xvaler/sentinel/internal/market"
	"github.com/0xvaler/sentinel/internal/regime"
	"github.com/0xvaler/sentinel/types"
)

// Engine runs the tick pipeline: features → regime → confidence → filter.
// One Evaluate call per tick; the only state is the filter's cooldown.
type Engine struct {
	symbol     string
	params     features.Params
	classifier *regime.Classifier
	filter     *Filter
}

// Evaluation is the full per-tick result, kept for logging and dashboards
type Evaluation struct {
	Signal   types.Signal
	Features features.Set
	Score    float64
}

// NewEngine wires the pipeline
func NewEngine(symbol string, params features.Params, classifier *regime.Classifier, filter *Filter) *Engine {
	return &Engine{
		symbol:     symbol,
		params:     params,
		classifier: classifier,
		filter:     filter,
	}
}

// Evaluate processes the current history window into a signal
func (e *Engine) Evaluate(h *market.History, now time.Time) Evaluation {
	fs := features.Compute(h.Prices(), h.Volumes(), e.params)
	res := e.classifier.Classify(fs)
	conf := regime.Confidence(fs, res.Regime)
	dir, reason := e.filter.Apply(fs, res.Regime, conf)

	return Evaluation{
		Signal: types.Signal{
			Timestamp:  now,
			Symbol:     e.symbol,
			Price:      h.LastPrice(),
			Regime:     res.Regime,
			Confidence: conf,
			Direction:  dir,
			Reason:     reason,
		},
		Features: fs,
		Score:    res.Score,
	}
}
