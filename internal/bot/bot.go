package bot

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xvaler/sentinel/internal/alert"
	"github.com/0xvaler/sentinel/internal/audit"
	"github.com/0xvaler/sentinel/internal/config"
	"github.com/0xvaler/sentinel/internal/dashboard"
	"github.com/0xvaler/sentinel/internal/exchange"
	"github.com/0xvaler/sentinel/internal/features"
	"github.com/0xvaler/sentinel/internal/market"
	"github.com/0xvaler/sentinel/internal/position"
	"github.com/0xvaler/sentinel/internal/regime"
	"github.com/0xvaler/sentinel/internal/risk"
	"github.com/0xvaler/sentinel/internal/signal"
	"github.com/0xvaler/sentinel/internal/storage"
	"github.com/0xvaler/sentinel/internal/tpsl"
	"github.com/0xvaler/sentinel/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BOT - Single-threaded polling loop
// ═══════════════════════════════════════════════════════════════════════════════
//
// One tick is fully processed before the next begins:
//
//   fetch → features → regime → confidence → signal → lifecycle → entry
//
// All mutable trading state lives here and is only touched from the loop.
// The only suspension points are exchange calls, bounded by context
// timeouts; a stuck call delays the next tick instead of corrupting state.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Bot owns the trading loop and all per-tick state
type Bot struct {
	cfg        *config.Config
	adapter    exchange.Adapter
	feed       *market.Feed
	engine     *signal.Engine
	guard      *risk.ExecutionGuard
	pnlGuard   *risk.PnLGuard
	sizer      *risk.Sizer
	calculator *tpsl.Calculator
	manager    *position.Manager
	logs       *audit.Streams
	db         *storage.Database
	notifier   *alert.Notifier
	dash       *dashboard.Server

	open    *types.Position
	openPnL decimal.Decimal // realized PnL of the current position's tiers

	initialEquity decimal.Decimal
	realizedPnL   decimal.Decimal
	tradesTotal   int
}

// New wires the bot from configuration
func New(cfg *config.Config, adapter exchange.Adapter, db *storage.Database, notifier *alert.Notifier, dash *dashboard.Server) *Bot {
	history := market.NewHistory(cfg.Exchange.DataWindow)

	classifier := regime.NewClassifier(regime.Thresholds{
		TrendVolMin:     cfg.Signals.TrendVolMin,
		RangeVolMax:     cfg.Signals.RangeVolMax,
		ExpansionVolMin: cfg.Signals.ExpansionVolMin,
		BandWidth:       cfg.Signals.FuzzyBandWidth,
	})
	filter := signal.NewFilter(signal.FilterConfig{
		MinConfidence: cfg.Signals.MinConfidence,
		SpikeVolMin:   cfg.Signals.SpikeVolMin,
		SpikeCooldown: cfg.Signals.SpikeCooldown,
	})
	params := features.Params{
		Window:    cfg.Signals.VolatilityWindow,
		ATRPeriod: cfg.Signals.ATRPeriod,
	}

	tpslCfg := tpsl.Config{
		MinATRPct:     cfg.TPSL.MinATRPct,
		MinRiskReward: cfg.TPSL.MinRiskReward,
		BaseSLMult:    cfg.TPSL.BaseSLMult,
		BaseTPMult:    cfg.TPSL.BaseTPMult,
		TP1Mult:       cfg.TPSL.TP1Mult,
		TP2Mult:       cfg.TPSL.TP2Mult,
		RunnerTPMult:  cfg.TPSL.RunnerTPMult,
		TrailMult:     cfg.TPSL.TrailMult,
	}

	return &Bot{
		cfg:           cfg,
		adapter:       adapter,
		feed:          market.NewFeed(adapter, cfg.Exchange.Symbol, history),
		engine:        signal.NewEngine(cfg.Exchange.Symbol, params, classifier, filter),
		guard:         risk.NewExecutionGuard(cfg.Cooldown(), cfg.MaxSizeDecimal()),
		pnlGuard:      risk.NewPnLGuard(cfg.Risk.MaxDrawdownPct),
		sizer:         risk.NewSizer(cfg.BaseSizeDecimal(), cfg.MaxSizeDecimal()),
		calculator:    tpsl.NewCalculator(tpslCfg),
		manager:       position.NewManager(adapter, notifier, tpslCfg),
		logs:          audit.NewStreams(audit.Config(cfg.Logs)),
		db:            db,
		notifier:      notifier,
		dash:          dash,
		initialEquity: decimal.NewFromFloat(cfg.Risk.InitialEquity),
	}
}

// Run executes the polling loop until the context is cancelled
func (b *Bot) Run(ctx context.Context) error {
	if err := b.setup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(b.cfg.PollInterval())
	defer ticker.Stop()
	defer b.logs.Close()

	b.notifier.Alert("Sentinel started on " + b.cfg.Exchange.Symbol)
	log.Info().
		Str("symbol", b.cfg.Exchange.Symbol).
		Dur("interval", b.cfg.PollInterval()).
		Bool("dry_run", b.cfg.Exchange.DryRun).
		Msg("🤖 Trading loop started")

	// First tick immediately, then on the interval
	b.processTick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Trading loop stopped")
			return nil
		case <-ticker.C:
			b.processTick(ctx)
		}
	}
}

func (b *Bot) setup(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout())
	defer cancel()
	if err := b.adapter.SetLeverage(callCtx, b.cfg.Exchange.Symbol, b.cfg.Exchange.Leverage); err != nil {
		return err
	}
	log.Info().Int("leverage", b.cfg.Exchange.Leverage).Msg("✓ Leverage set")
	return nil
}

// processTick runs one full iteration. Exchange failures skip the tick;
// entry decisions are all-or-nothing so a skipped tick corrupts nothing.
func (b *Bot) processTick(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout())
	defer cancel()

	tick, err := b.feed.Poll(callCtx)
	if err != nil {
		return
	}

	// Lifecycle before entries: an open position is managed on every tick
	if b.open != nil {
		b.runLifecycle(ctx, tick.Price)
	}

	if !b.feed.Warm(b.cfg.Signals.WarmupTicks) {
		log.Debug().
			Int("ticks", b.feed.History().Len()).
			Int("needed", b.cfg.Signals.WarmupTicks).
			Msg("Warming up")
		return
	}

	eval := b.engine.Evaluate(b.feed.History(), tick.Timestamp)
	b.logSignal(eval)

	if b.open == nil && eval.Signal.Direction != types.DirectionNoTrade {
		b.tryEnter(ctx, eval)
	}

	b.publishPerformance(tick.Price, eval)
}

// runLifecycle advances the open position and books its fills
func (b *Bot) runLifecycle(ctx context.Context, price decimal.Decimal) {
	events := b.manager.OnTick(ctx, b.open, price)
	for _, ev := range events {
		b.realizedPnL = b.realizedPnL.Add(ev.PnL)
		b.openPnL = b.openPnL.Add(ev.PnL)
		b.guard.RegisterExit(ev.Size)
		b.logs.Trades.Log(map[string]any{
			"symbol":    b.open.Symbol,
			"direction": string(b.open.Direction),
			"action":    ev.Action,
			"price":     ev.Price.String(),
			"size":      ev.Size.String(),
			"pnl":       ev.PnL.String(),
		})
		b.db.SaveTrade(b.open.Symbol, b.open.Direction, ev.Action, ev.Price, ev.Size, ev.PnL)
	}

	if b.open.State == types.StateClosed || b.open.State == types.StateStopped {
		b.db.SavePositionSummary(b.open, b.openPnL)
		log.Info().
			Str("symbol", b.open.Symbol).
			Str("state", string(b.open.State)).
			Str("pnl", b.openPnL.StringFixed(4)).
			Msg("Position lifecycle finished")
		b.open = nil
		b.openPnL = decimal.Zero
	}
}

// tryEnter runs the static risk gates and places an entry with protection
func (b *Bot) tryEnter(ctx context.Context, eval signal.Evaluation) {
	if !b.pnlGuard.CanTrade() {
		log.Warn().Msg("⚠ Entry blocked: drawdown halt active")
		return
	}

	size := b.sizer.Calculate(eval.Signal.Confidence, 1.0)
	if size.IsZero() || !b.guard.CanTrade(size) {
		return
	}

	entry := eval.Signal.Price
	atr := decimal.NewFromFloat(eval.Features.ATR)
	// Floor the ATR here: a dead-quiet window yields a zero tick-ATR, which
	// Calculate rejects.
	levels, err := b.calculator.Calculate(entry, eval.Signal.Direction, b.calculator.EffectiveATR(atr, entry), eval.Signal.Regime, eval.Signal.Confidence)
	if err != nil {
		log.Error().Err(err).Msg("Protective level calculation failed, entry skipped")
		return
	}

	// Limit price a hair through the market so the order fills
	slip := decimal.NewFromFloat(b.cfg.Exchange.LimitSlippage)
	limit := entry.Mul(decimal.NewFromInt(1).Add(slip.Mul(eval.Signal.Direction.Sign())))

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout())
	defer cancel()

	orderID, err := b.adapter.PlaceOrder(callCtx, eval.Signal.Direction, size, limit, b.cfg.Exchange.Symbol)
	if err != nil {
		log.Error().Err(err).Msg("Entry order failed, tick skipped")
		return
	}

	pos := &types.Position{
		Symbol:     b.cfg.Exchange.Symbol,
		Direction:  eval.Signal.Direction,
		EntryPrice: entry,
		Size:       size,
		Remaining:  size,
		ATR:        levels.ATR,
		EntryTime:  eval.Signal.Timestamp,
		State:      types.StateOpen,
		TP1Level:   levels.TP1,
		TP2Level:   levels.TP2,
		StopLoss:   levels.StopLoss,
	}

	b.placeInitialProtection(ctx, pos)

	b.open = pos
	b.guard.RegisterTrade(size)
	b.tradesTotal++

	b.logs.Trades.Log(map[string]any{
		"symbol":     pos.Symbol,
		"direction":  string(pos.Direction),
		"action":     "OPEN",
		"price":      entry.String(),
		"size":       size.String(),
		"order_id":   orderID,
		"stop_loss":  pos.StopLoss.String(),
		"tp1":        pos.TP1Level.String(),
		"tp2":        pos.TP2Level.String(),
		"confidence": eval.Signal.Confidence,
		"regime":     string(eval.Signal.Regime),
	})
	b.db.SaveTrade(pos.Symbol, pos.Direction, "OPEN", entry, size, decimal.Zero)

	log.Info().
		Str("symbol", pos.Symbol).
		Str("direction", string(pos.Direction)).
		Str("entry", entry.StringFixed(4)).
		Str("size", size.String()).
		Str("sl", pos.StopLoss.StringFixed(4)).
		Str("tp1", pos.TP1Level.StringFixed(4)).
		Str("tp2", pos.TP2Level.StringFixed(4)).
		Float64("confidence", eval.Signal.Confidence).
		Msg("✅ Entry executed")
}

// placeInitialProtection rests the stop and the two profit tiers on the
// exchange. Each placement is retried once; a second failure escalates.
func (b *Bot) placeInitialProtection(ctx context.Context, pos *types.Position) {
	tp1, tp2, _ := pos.TierSizes()

	type plan struct {
		kind    exchange.PlanType
		trigger decimal.Decimal
		size    decimal.Decimal
		label   string
	}
	plans := []plan{
		{exchange.PlanStopLoss, pos.StopLoss, pos.Size, "stop-loss"},
		{exchange.PlanTakeProfit, pos.TP1Level, tp1, "TP1"},
		{exchange.PlanTakeProfit, pos.TP2Level, tp2, "TP2"},
	}

	for _, p := range plans {
		callCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout())
		_, err := b.adapter.PlaceTPSLOrder(callCtx, p.kind, p.trigger, p.size, pos.Symbol)
		if err != nil {
			log.Warn().Err(err).Str("plan", p.label).Msg("Protective order failed, retrying once")
			_, err = b.adapter.PlaceTPSLOrder(callCtx, p.kind, p.trigger, p.size, pos.Symbol)
		}
		cancel()
		if err != nil {
			pos.Unprotected = true
			msg := "CRITICAL: entry protection (" + p.label + ") missing on " + pos.Symbol + ", manual intervention required"
			log.Error().Err(err).Msg("🚨 " + msg)
			b.notifier.Alert(msg)
		}
	}
}

func (b *Bot) logSignal(eval signal.Evaluation) {
	b.logs.Signals.Log(map[string]any{
		"symbol":      eval.Signal.Symbol,
		"price":       eval.Signal.Price.String(),
		"regime":      string(eval.Signal.Regime),
		"score":       eval.Score,
		"confidence":  eval.Signal.Confidence,
		"signal":      string(eval.Signal.Direction),
		"reason":      eval.Signal.Reason,
		"volatility":  eval.Features.Volatility,
		"returns":     eval.Features.Returns,
		"stability":   eval.Features.Stability,
		"atr":         eval.Features.ATR,
	})
}

// publishPerformance updates equity tracking, the PnL guard, the audit log
// and the dashboard
func (b *Bot) publishPerformance(price decimal.Decimal, eval signal.Evaluation) {
	unrealized := decimal.Zero
	openCount := 0
	if b.open != nil {
		openCount = 1
		unrealized = price.Sub(b.open.EntryPrice).
			Mul(b.open.Direction.Sign()).
			Mul(b.open.Remaining)
	}
	equity := b.initialEquity.Add(b.realizedPnL).Add(unrealized)
	b.pnlGuard.Update(equity)
	drawdown := b.pnlGuard.Drawdown(equity)

	b.logs.Performance.Log(map[string]any{
		"equity":     equity.String(),
		"realized":   b.realizedPnL.String(),
		"unrealized": unrealized.String(),
		"drawdown":   drawdown.String(),
		"trades":     b.tradesTotal,
		"halted":     !b.pnlGuard.CanTrade(),
	})

	b.dash.Publish(dashboard.Snapshot{
		Timestamp:  time.Now().UTC(),
		Symbol:     b.cfg.Exchange.Symbol,
		Price:      price.String(),
		Regime:     string(eval.Signal.Regime),
		Confidence: eval.Signal.Confidence,
		Direction:  string(eval.Signal.Direction),
		Equity:     equity.StringFixed(2),
		Drawdown:   drawdown.StringFixed(4),
		Positions:  openCount,
		Halted:     !b.pnlGuard.CanTrade(),
	})
}
