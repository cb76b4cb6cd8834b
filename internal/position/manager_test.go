package position

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xvaler/sentinel/internal/exchange"
	"github.com/0xvaler/sentinel/internal/tpsl"
	"github.com/0xvaler/sentinel/types"
)

// fakeAdapter records protective placements and fails on demand
type fakeAdapter struct {
	plans     []exchange.PlanType
	triggers  []decimal.Decimal
	sizes     []decimal.Decimal
	failPlans int // fail this many PlaceTPSLOrder calls before succeeding
	failAll   bool
}

func (f *fakeAdapter) SetLeverage(context.Context, string, int) error { return nil }

func (f *fakeAdapter) GetTicker(context.Context, string) (types.Tick, error) {
	return types.Tick{}, nil
}

func (f *fakeAdapter) PlaceOrder(context.Context, types.Direction, decimal.Decimal, decimal.Decimal, string) (string, error) {
	return "order-1", nil
}

func (f *fakeAdapter) PlaceTPSLOrder(_ context.Context, kind exchange.PlanType, trigger, size decimal.Decimal, _ string) (string, error) {
	f.plans = append(f.plans, kind)
	f.triggers = append(f.triggers, trigger)
	f.sizes = append(f.sizes, size)
	if f.failAll {
		return "", exchange.ErrNetwork
	}
	if f.failPlans > 0 {
		f.failPlans--
		return "", exchange.ErrNetwork
	}
	return "plan-1", nil
}

func (f *fakeAdapter) GetPosition(context.Context, string) (*exchange.PositionSnapshot, error) {
	return nil, errors.New("not implemented")
}

type fakeAlerter struct {
	messages []string
}

func (f *fakeAlerter) Alert(msg string) { f.messages = append(f.messages, msg) }

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func longPosition() *types.Position {
	// entry 100, ATR 10: TP1 115, TP2 125, stop 90
	return &types.Position{
		Symbol:     "cmt_btcusdt",
		Direction:  types.DirectionLong,
		EntryPrice: dec("100"),
		Size:       dec("1"),
		Remaining:  dec("1"),
		ATR:        dec("10"),
		State:      types.StateOpen,
		TP1Level:   dec("115"),
		TP2Level:   dec("125"),
		StopLoss:   dec("90"),
	}
}

func shortPosition() *types.Position {
	// entry 886.58, ATR 10: TP1 871.58, TP2 861.58, stop 896.58
	return &types.Position{
		Symbol:     "cmt_ethusdt",
		Direction:  types.DirectionShort,
		EntryPrice: dec("886.58"),
		Size:       dec("1"),
		Remaining:  dec("1"),
		ATR:        dec("10"),
		State:      types.StateOpen,
		TP1Level:   dec("871.58"),
		TP2Level:   dec("861.58"),
		StopLoss:   dec("896.58"),
	}
}

func newTestManager(adapter exchange.Adapter, alerter Alerter) *Manager {
	return NewManager(adapter, alerter, tpsl.DefaultConfig())
}

func TestTierSizes_SumExactlyToSize(t *testing.T) {
	pos := &types.Position{Size: dec("0.123457")}
	tp1, tp2, runner := pos.TierSizes()
	assert.True(t, tp1.Add(tp2).Add(runner).Equal(pos.Size),
		"tiers %s+%s+%s must sum to %s", tp1, tp2, runner, pos.Size)
	assert.True(t, tp1.Equal(pos.Size.Mul(dec("0.3"))))
	assert.True(t, tp2.Equal(pos.Size.Mul(dec("0.4"))))
}

func TestOnTick_NoLevelCrossed_NoEvents(t *testing.T) {
	m := newTestManager(&fakeAdapter{}, nil)
	pos := longPosition()

	events := m.OnTick(context.Background(), pos, dec("105"))

	assert.Empty(t, events)
	assert.Equal(t, types.StateOpen, pos.State)
	assert.True(t, pos.Remaining.Equal(dec("1")))
}

func TestOnTick_TP1_ExitsThirtyPercentAndMovesStopToBreakeven(t *testing.T) {
	adapter := &fakeAdapter{}
	m := newTestManager(adapter, nil)
	pos := longPosition()

	events := m.OnTick(context.Background(), pos, dec("115"))

	require.Len(t, events, 1)
	assert.Equal(t, "TP1", events[0].Action)
	assert.True(t, events[0].Size.Equal(dec("0.3")))
	assert.True(t, events[0].PnL.Equal(dec("4.5"))) // (115-100)*0.3

	assert.Equal(t, types.StateTP1Hit, pos.State)
	assert.True(t, pos.TP1Filled)
	assert.True(t, pos.BreakevenSet)
	assert.True(t, pos.StopLoss.Equal(pos.EntryPrice))
	assert.True(t, pos.Remaining.Equal(dec("0.7")))

	// One breakeven stop for the remaining 70%
	require.Len(t, adapter.plans, 1)
	assert.Equal(t, exchange.PlanStopLoss, adapter.plans[0])
	assert.True(t, adapter.sizes[0].Equal(dec("0.7")))
}

func TestOnTick_TP1_BreakevenFailureKeepsOriginalStop(t *testing.T) {
	adapter := &fakeAdapter{failAll: true}
	m := newTestManager(adapter, nil)
	pos := longPosition()

	m.OnTick(context.Background(), pos, dec("115"))

	assert.Equal(t, types.StateTP1Hit, pos.State)
	assert.False(t, pos.BreakevenSet)
	assert.True(t, pos.StopLoss.Equal(dec("90")))
	// placement retried once
	assert.Len(t, adapter.plans, 2)
}

func TestOnTick_TP2_PlacesExactlyTwoProtectiveOrders(t *testing.T) {
	adapter := &fakeAdapter{}
	m := newTestManager(adapter, nil)
	pos := longPosition()
	pos.State = types.StateTP1Hit
	pos.Remaining = dec("0.7")

	events := m.OnTick(context.Background(), pos, dec("125"))

	require.Len(t, events, 1)
	assert.Equal(t, "TP2", events[0].Action)
	assert.True(t, events[0].Size.Equal(dec("0.4")))
	assert.Equal(t, types.StateTP2Hit, pos.State)
	assert.True(t, pos.TP2Filled)
	assert.True(t, pos.TrailingSet)
	assert.False(t, pos.Unprotected)
	assert.True(t, pos.Remaining.Equal(dec("0.3")))

	// Exactly two placements: trailing stop then runner take-profit
	require.Len(t, adapter.plans, 2)
	assert.Equal(t, exchange.PlanStopLoss, adapter.plans[0])
	assert.Equal(t, exchange.PlanTakeProfit, adapter.plans[1])
	assert.True(t, adapter.sizes[0].Equal(dec("0.3")))
	assert.True(t, adapter.sizes[1].Equal(dec("0.3")))

	// LONG: trail = entry + 1*ATR, runner TP = entry + 4.5*ATR
	assert.True(t, pos.TrailTrigger.Equal(dec("110")))
	assert.True(t, pos.RunnerTP.Equal(dec("145")))
}

func TestOnTick_TP2_ShortLevelsAnchoredOnEntry(t *testing.T) {
	adapter := &fakeAdapter{}
	m := newTestManager(adapter, nil)
	pos := shortPosition()
	pos.State = types.StateTP1Hit
	pos.Remaining = dec("0.7")

	m.OnTick(context.Background(), pos, dec("861.58"))

	// SHORT entry 886.58, ATR 10: trail at 876.58, runner TP at 841.58
	assert.True(t, pos.TrailTrigger.Equal(dec("876.58")),
		"trail trigger %s", pos.TrailTrigger)
	assert.True(t, pos.RunnerTP.Equal(dec("841.58")),
		"runner TP %s", pos.RunnerTP)
	assert.True(t, pos.TrailingSet)
}

func TestOnTick_TP2_TransientFailureRetriedOnce(t *testing.T) {
	adapter := &fakeAdapter{failPlans: 1} // first call fails, retry succeeds
	m := newTestManager(adapter, nil)
	pos := longPosition()
	pos.State = types.StateTP1Hit
	pos.Remaining = dec("0.7")

	m.OnTick(context.Background(), pos, dec("125"))

	// trail: fail + retry, runner TP: success = 3 calls
	assert.Len(t, adapter.plans, 3)
	assert.True(t, pos.TrailingSet)
	assert.False(t, pos.Unprotected)
}

func TestOnTick_TP2_DoubleFailureEscalatesToOperator(t *testing.T) {
	adapter := &fakeAdapter{failAll: true}
	alerter := &fakeAlerter{}
	m := newTestManager(adapter, alerter)
	pos := longPosition()
	pos.State = types.StateTP1Hit
	pos.Remaining = dec("0.7")

	m.OnTick(context.Background(), pos, dec("125"))

	// each placement tried twice: 2 for trail, 2 for runner TP
	assert.Len(t, adapter.plans, 4)
	assert.True(t, pos.Unprotected)
	assert.False(t, pos.TrailingSet)
	require.Len(t, alerter.messages, 1)
	assert.Contains(t, alerter.messages[0], "CRITICAL")
	assert.Contains(t, alerter.messages[0], pos.Symbol)

	// the tier exit itself still happened
	assert.Equal(t, types.StateTP2Hit, pos.State)
	assert.True(t, pos.Remaining.Equal(dec("0.3")))
}

func TestOnTick_StopLoss_ClosesPositionFromOpen(t *testing.T) {
	m := newTestManager(&fakeAdapter{}, nil)
	pos := longPosition()

	events := m.OnTick(context.Background(), pos, dec("89"))

	require.Len(t, events, 1)
	assert.Equal(t, "STOP_LOSS", events[0].Action)
	assert.True(t, events[0].Size.Equal(dec("1")))
	assert.True(t, events[0].PnL.Equal(dec("-10"))) // (90-100)*1
	assert.Equal(t, types.StateStopped, pos.State)
	assert.True(t, pos.Remaining.IsZero())
}

func TestOnTick_BreakevenStop_ExitsRemainderAtEntry(t *testing.T) {
	m := newTestManager(&fakeAdapter{}, nil)
	pos := longPosition()
	pos.State = types.StateTP1Hit
	pos.Remaining = dec("0.7")
	pos.StopLoss = pos.EntryPrice
	pos.BreakevenSet = true

	events := m.OnTick(context.Background(), pos, dec("99"))

	require.Len(t, events, 1)
	assert.Equal(t, "STOP_LOSS", events[0].Action)
	assert.True(t, events[0].PnL.IsZero())
	assert.Equal(t, types.StateStopped, pos.State)
}

func TestOnTick_RunnerTakeProfit_ClosesPosition(t *testing.T) {
	m := newTestManager(&fakeAdapter{}, nil)
	pos := longPosition()
	pos.State = types.StateTP2Hit
	pos.Remaining = dec("0.3")
	pos.TrailTrigger = dec("110")
	pos.RunnerTP = dec("145")

	events := m.OnTick(context.Background(), pos, dec("146"))

	require.Len(t, events, 1)
	assert.Equal(t, "RUNNER_TP", events[0].Action)
	assert.True(t, events[0].Size.Equal(dec("0.3")))
	assert.True(t, events[0].PnL.Equal(dec("13.5"))) // (145-100)*0.3
	assert.Equal(t, types.StateClosed, pos.State)
	assert.True(t, pos.Remaining.IsZero())
}

func TestOnTick_TrailingStop_ClosesPosition(t *testing.T) {
	m := newTestManager(&fakeAdapter{}, nil)
	pos := longPosition()
	pos.State = types.StateTP2Hit
	pos.Remaining = dec("0.3")
	pos.TrailTrigger = dec("110")
	pos.RunnerTP = dec("145")

	events := m.OnTick(context.Background(), pos, dec("109"))

	require.Len(t, events, 1)
	assert.Equal(t, "TRAILING_STOP", events[0].Action)
	assert.True(t, events[0].PnL.Equal(dec("3"))) // (110-100)*0.3, locked profit
	assert.Equal(t, types.StateClosed, pos.State)
}

func TestOnTick_TrailRatchet_MovesOnlyTowardProfit(t *testing.T) {
	adapter := &fakeAdapter{}
	m := newTestManager(adapter, nil)
	pos := longPosition()
	pos.State = types.StateTP2Hit
	pos.Remaining = dec("0.3")
	pos.TrailTrigger = dec("101") // already above breakeven tier
	pos.RunnerTP = dec("145")

	// ROI 15% locks 3%: new stop 103, better than 101
	m.OnTick(context.Background(), pos, dec("115"))
	assert.True(t, pos.TrailTrigger.Equal(dec("103")),
		"trail %s should ratchet to 103", pos.TrailTrigger)

	// price falls back, ROI 10% maps to stop 101, below 103: no move
	m.OnTick(context.Background(), pos, dec("110.5"))
	assert.True(t, pos.TrailTrigger.Equal(dec("103")),
		"trail must never move backward, got %s", pos.TrailTrigger)
}

func TestOnTick_ShortTrailRatchet_MovesDown(t *testing.T) {
	m := newTestManager(&fakeAdapter{}, nil)
	pos := shortPosition()
	pos.State = types.StateTP2Hit
	pos.Remaining = dec("0.3")
	pos.TrailTrigger = dec("876.58")
	pos.RunnerTP = dec("841.58")

	// SHORT, price down ~5%: ROI 5% locks breakeven (stop to entry).
	// But entry 886.58 is above the current trail 876.58, worse: no move.
	m.OnTick(context.Background(), pos, dec("842.25"))
	assert.True(t, pos.TrailTrigger.Equal(dec("876.58")))
}

func TestOnTick_FullLifecycle_EventsSumToOriginalSize(t *testing.T) {
	adapter := &fakeAdapter{}
	m := newTestManager(adapter, nil)
	pos := longPosition()

	var events []Event
	ctx := context.Background()
	events = append(events, m.OnTick(ctx, pos, dec("115"))...) // TP1
	events = append(events, m.OnTick(ctx, pos, dec("125"))...) // TP2
	events = append(events, m.OnTick(ctx, pos, dec("146"))...) // runner TP

	require.Len(t, events, 3)
	assert.Equal(t, types.StateClosed, pos.State)
	assert.True(t, pos.Remaining.IsZero())

	total := decimal.Zero
	for _, ev := range events {
		total = total.Add(ev.Size)
	}
	assert.True(t, total.Equal(pos.Size),
		"exited size %s must equal original %s", total, pos.Size)
}

func TestOnTick_TerminalStates_AreInert(t *testing.T) {
	m := newTestManager(&fakeAdapter{}, nil)

	for _, state := range []types.PositionState{types.StateClosed, types.StateStopped} {
		pos := longPosition()
		pos.State = state
		pos.Remaining = decimal.Zero

		events := m.OnTick(context.Background(), pos, dec("200"))
		assert.Empty(t, events, "state %s must produce no events", state)
		assert.Equal(t, state, pos.State)
	}
}

func TestOnTick_NilPosition_NoPanic(t *testing.T) {
	m := newTestManager(&fakeAdapter{}, nil)
	assert.Empty(t, m.OnTick(context.Background(), nil, dec("100")))
}
