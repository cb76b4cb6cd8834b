package position

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xvaler/sentinel/internal/exchange"
	"github.com/0xvaler/sentinel/internal/tpsl"
	"github.com/0xvaler/sentinel/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION LIFECYCLE MANAGER - Tiered exit state machine
// ═══════════════════════════════════════════════════════════════════════════════
//
// Per open position: OPEN → TP1_HIT → TP2_HIT → CLOSED, with any state →
// STOPPED when the active stop fills.
//
//   OPEN → TP1_HIT     price crosses TP1, 30% exits, stop moves to breakeven
//   TP1_HIT → TP2_HIT  price crosses TP2, 40% exits, trailing stop and runner
//                      take-profit are BOTH placed for the remaining 30%
//   TP2_HIT → CLOSED   runner TP or trailing stop fills
//   any → STOPPED      active stop fills before the runner phase
//
// Protective placements on the TP2 transition are retried once; a second
// failure leaves the runner unprotected and escalates to CRITICAL for manual
// intervention.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Alerter pushes operator notifications. Nil-safe no-op implementations are
// fine; the manager never depends on delivery.
type Alerter interface {
	Alert(msg string)
}

// Event records a fill the manager observed or triggered
type Event struct {
	Action    string // TP1, TP2, RUNNER_TP, TRAILING_STOP, STOP_LOSS
	Price     decimal.Decimal
	Size      decimal.Decimal
	PnL       decimal.Decimal
	Timestamp time.Time
}

// Manager drives the lifecycle of open positions
type Manager struct {
	adapter exchange.Adapter
	alerter Alerter
	cfg     tpsl.Config
}

// NewManager creates a lifecycle manager
func NewManager(adapter exchange.Adapter, alerter Alerter, cfg tpsl.Config) *Manager {
	return &Manager{adapter: adapter, alerter: alerter, cfg: cfg}
}

// OnTick advances the position state machine against the current price and
// returns the fills produced this tick. It mutates the position in place.
func (m *Manager) OnTick(ctx context.Context, pos *types.Position, price decimal.Decimal) []Event {
	if pos == nil || pos.State == types.StateClosed || pos.State == types.StateStopped {
		return nil
	}

	var events []Event
	now := time.Now().UTC()

	// The active stop is checked before profit tiers: when both were crossed
	// inside one poll interval the conservative reading is the stop.
	if pos.State != types.StateTP2Hit && m.crossedAgainst(pos, price, pos.StopLoss) {
		events = append(events, m.exitAll(pos, pos.StopLoss, "STOP_LOSS", now))
		pos.State = types.StateStopped
		log.Warn().
			Str("symbol", pos.Symbol).
			Str("stop", pos.StopLoss.StringFixed(4)).
			Msg("🛑 Stop-loss filled, position closed")
		return events
	}

	switch pos.State {
	case types.StateOpen:
		if m.crossedProfit(pos, price, pos.TP1Level) {
			events = append(events, m.hitTP1(ctx, pos, now))
		}
	case types.StateTP1Hit:
		if m.crossedProfit(pos, price, pos.TP2Level) {
			events = append(events, m.hitTP2(ctx, pos, now))
		}
	case types.StateTP2Hit:
		events = append(events, m.manageRunner(ctx, pos, price, now)...)
	}

	return events
}

// hitTP1 books the 30% tier and moves the stop to breakeven
func (m *Manager) hitTP1(ctx context.Context, pos *types.Position, now time.Time) Event {
	tp1, _, _ := pos.TierSizes()
	ev := m.exitPartial(pos, pos.TP1Level, tp1, "TP1", now)

	pos.TP1Filled = true
	pos.State = types.StateTP1Hit

	// Breakeven shift: the remaining 70% can no longer lose
	if _, err := m.placeWithRetry(ctx, exchange.PlanStopLoss, pos.EntryPrice, pos.Remaining, pos.Symbol); err != nil {
		log.Error().Err(err).
			Str("symbol", pos.Symbol).
			Msg("Breakeven stop placement failed, keeping original stop")
	} else {
		pos.StopLoss = pos.EntryPrice
		pos.BreakevenSet = true
		log.Info().
			Str("symbol", pos.Symbol).
			Str("stop", pos.EntryPrice.StringFixed(4)).
			Msg("🔒 Stop moved to breakeven")
	}

	log.Info().
		Str("symbol", pos.Symbol).
		Str("level", pos.TP1Level.StringFixed(4)).
		Str("size", ev.Size.StringFixed(6)).
		Msg("🎯 TP1 filled (30%)")
	return ev
}

// hitTP2 books the 40% tier and places runner protection. Both the trailing
// stop and the runner take-profit MUST be placed; each is retried once and a
// second failure escalates to CRITICAL. This exact gap once left live
// positions without protective orders.
func (m *Manager) hitTP2(ctx context.Context, pos *types.Position, now time.Time) Event {
	_, tp2, runner := pos.TierSizes()
	ev := m.exitPartial(pos, pos.TP2Level, tp2, "TP2", now)

	pos.TP2Filled = true
	pos.State = types.StateTP2Hit

	sign := pos.Direction.Sign()
	pos.TrailTrigger = pos.EntryPrice.Add(sign.Mul(pos.ATR.Mul(decimal.NewFromFloat(m.cfg.TrailMult))))
	pos.RunnerTP = pos.EntryPrice.Add(sign.Mul(pos.ATR.Mul(decimal.NewFromFloat(m.cfg.RunnerTPMult))))

	trailOK := true
	if _, err := m.placeWithRetry(ctx, exchange.PlanStopLoss, pos.TrailTrigger, runner, pos.Symbol); err != nil {
		trailOK = false
		log.Error().Err(err).Str("symbol", pos.Symbol).Msg("Trailing stop placement failed after retry")
	}

	tpOK := true
	if _, err := m.placeWithRetry(ctx, exchange.PlanTakeProfit, pos.RunnerTP, runner, pos.Symbol); err != nil {
		tpOK = false
		log.Error().Err(err).Str("symbol", pos.Symbol).Msg("Runner take-profit placement failed after retry")
	}

	if trailOK && tpOK {
		pos.TrailingSet = true
		log.Info().
			Str("symbol", pos.Symbol).
			Str("trail", pos.TrailTrigger.StringFixed(4)).
			Str("runner_tp", pos.RunnerTP.StringFixed(4)).
			Str("runner_size", runner.StringFixed(6)).
			Msg("🏃 Runner protected: trailing stop + take-profit placed")
	} else {
		pos.Unprotected = true
		msg := "CRITICAL: runner position " + pos.Symbol + " is missing protective orders, manual intervention required"
		log.Error().
			Str("symbol", pos.Symbol).
			Bool("trail_placed", trailOK).
			Bool("tp_placed", tpOK).
			Msg("🚨 " + msg)
		if m.alerter != nil {
			m.alerter.Alert(msg)
		}
	}

	log.Info().
		Str("symbol", pos.Symbol).
		Str("level", pos.TP2Level.StringFixed(4)).
		Str("size", ev.Size.StringFixed(6)).
		Msg("🎯 TP2 filled (40%)")
	return ev
}

// manageRunner ratchets the trailing stop and closes the position when the
// runner target or the trail fills
func (m *Manager) manageRunner(ctx context.Context, pos *types.Position, price decimal.Decimal, now time.Time) []Event {
	// Runner target first: it is the further level, so crossing it means the
	// trail was never touched on the way.
	if m.crossedProfit(pos, price, pos.RunnerTP) {
		ev := m.exitAll(pos, pos.RunnerTP, "RUNNER_TP", now)
		pos.State = types.StateClosed
		log.Info().
			Str("symbol", pos.Symbol).
			Str("level", pos.RunnerTP.StringFixed(4)).
			Msg("🏁 Runner take-profit filled, position closed")
		return []Event{ev}
	}

	if m.crossedAgainst(pos, price, pos.TrailTrigger) {
		ev := m.exitAll(pos, pos.TrailTrigger, "TRAILING_STOP", now)
		pos.State = types.StateClosed
		log.Info().
			Str("symbol", pos.Symbol).
			Str("level", pos.TrailTrigger.StringFixed(4)).
			Msg("🏁 Trailing stop filled, position closed")
		return []Event{ev}
	}

	m.ratchetTrail(ctx, pos, price)
	return nil
}

// ratchetTrail moves the trailing stop toward profit when the ROI crosses a
// profit-lock tier. The stop never moves backward.
func (m *Manager) ratchetTrail(ctx context.Context, pos *types.Position, price decimal.Decimal) {
	lockPct, ok := profitLockPct(pos.ROIPct(price))
	if !ok {
		return
	}

	sign := pos.Direction.Sign()
	newStop := pos.EntryPrice.Add(sign.Mul(pos.EntryPrice.Mul(decimal.NewFromFloat(lockPct / 100))))

	// Better means strictly further toward profit than the current trigger
	better := newStop.Sub(pos.TrailTrigger).Mul(sign).GreaterThan(decimal.Zero)
	if !better {
		return
	}

	if _, err := m.placeWithRetry(ctx, exchange.PlanStopLoss, newStop, pos.Remaining, pos.Symbol); err != nil {
		log.Error().Err(err).Str("symbol", pos.Symbol).Msg("Trail ratchet placement failed")
		return
	}
	log.Info().
		Str("symbol", pos.Symbol).
		Str("old", pos.TrailTrigger.StringFixed(4)).
		Str("new", newStop.StringFixed(4)).
		Float64("lock_pct", lockPct).
		Msg("📈 Trailing stop ratcheted")
	pos.TrailTrigger = newStop
}

// profitLockPct maps unrealized ROI to the profit percentage to lock in.
// Returns false below the first tier.
func profitLockPct(roiPct float64) (float64, bool) {
	switch {
	case roiPct >= 25:
		return 8.0, true
	case roiPct >= 20:
		return 5.0, true
	case roiPct >= 15:
		return 3.0, true
	case roiPct >= 10:
		return 1.0, true
	case roiPct >= 5:
		return 0.0, true // breakeven
	}
	return 0, false
}

// placeWithRetry retries any placement failure exactly once. Plan orders are
// idempotent enough for a blind retry: a duplicate is redundant but safe, a
// missing order is a live risk.
func (m *Manager) placeWithRetry(ctx context.Context, kind exchange.PlanType, trigger, size decimal.Decimal, symbol string) (string, error) {
	id, err := m.adapter.PlaceTPSLOrder(ctx, kind, trigger, size, symbol)
	if err == nil {
		return id, nil
	}
	log.Warn().Err(err).
		Str("symbol", symbol).
		Str("plan", string(kind)).
		Msg("Protective order failed, retrying once")
	return m.adapter.PlaceTPSLOrder(ctx, kind, trigger, size, symbol)
}

// exitPartial books a tier exit at the given level
func (m *Manager) exitPartial(pos *types.Position, price, size decimal.Decimal, action string, now time.Time) Event {
	if size.GreaterThan(pos.Remaining) {
		size = pos.Remaining
	}
	pos.Remaining = pos.Remaining.Sub(size)
	return Event{
		Action:    action,
		Price:     price,
		Size:      size,
		PnL:       m.pnl(pos, price, size),
		Timestamp: now,
	}
}

// exitAll books the remaining size out at the given level
func (m *Manager) exitAll(pos *types.Position, price decimal.Decimal, action string, now time.Time) Event {
	size := pos.Remaining
	pos.Remaining = decimal.Zero
	return Event{
		Action:    action,
		Price:     price,
		Size:      size,
		PnL:       m.pnl(pos, price, size),
		Timestamp: now,
	}
}

func (m *Manager) pnl(pos *types.Position, exit, size decimal.Decimal) decimal.Decimal {
	return exit.Sub(pos.EntryPrice).Mul(pos.Direction.Sign()).Mul(size)
}

// crossedProfit reports whether price reached a level on the profit side
func (m *Manager) crossedProfit(pos *types.Position, price, level decimal.Decimal) bool {
	if pos.Direction == types.DirectionLong {
		return price.GreaterThanOrEqual(level)
	}
	return price.LessThanOrEqual(level)
}

// crossedAgainst reports whether price reached a stop level against the position
func (m *Manager) crossedAgainst(pos *types.Position, price, level decimal.Decimal) bool {
	if pos.Direction == types.DirectionLong {
		return price.LessThanOrEqual(level)
	}
	return price.GreaterThanOrEqual(level)
}
