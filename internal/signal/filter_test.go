package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/0xvaler/sentinel/internal/features"
	"github.com/0xvaler/sentinel/types"
)

func testFilter() *Filter {
	return NewFilter(FilterConfig{
		MinConfidence: 0.65,
		SpikeVolMin:   0.10,
		SpikeCooldown: 2,
	})
}

func TestApply_TrendUpWithConfidenceGoesLong(t *testing.T) {
	f := testFilter()
	dir, _ := f.Apply(features.Set{Volatility: 0.02}, types.RegimeTrendUp, 0.8)
	assert.Equal(t, types.DirectionLong, dir)
}

func TestApply_TrendDownWithConfidenceGoesShort(t *testing.T) {
	f := testFilter()
	dir, _ := f.Apply(features.Set{Volatility: 0.02}, types.RegimeTrendDown, 0.8)
	assert.Equal(t, types.DirectionShort, dir)
}

func TestApply_LowConfidenceBlocks(t *testing.T) {
	f := testFilter()
	dir, reason := f.Apply(features.Set{Volatility: 0.02}, types.RegimeTrendUp, 0.64)
	assert.Equal(t, types.DirectionNoTrade, dir)
	assert.Contains(t, reason, "confidence")
}

func TestApply_NonDirectionalRegimesBlock(t *testing.T) {
	f := testFilter()
	for _, r := range []types.Regime{types.RegimeRange, types.RegimeVolExpansion, types.RegimeVolCompression} {
		dir, _ := f.Apply(features.Set{Volatility: 0.02}, r, 0.9)
		assert.Equal(t, types.DirectionNoTrade, dir, "regime %s", r)
	}
}

func TestApply_SpikeBlocksTheSpikeTickItself(t *testing.T) {
	f := testFilter()
	dir, reason := f.Apply(features.Set{Volatility: 0.15}, types.RegimeTrendUp, 0.9)
	assert.Equal(t, types.DirectionNoTrade, dir)
	assert.Contains(t, reason, "cooldown")
}

func TestApply_CooldownDrainsOverTicks(t *testing.T) {
	f := testFilter()

	// spike arms a 2-tick cooldown and consumes the first tick
	f.Apply(features.Set{Volatility: 0.15}, types.RegimeTrendUp, 0.9)
	assert.Equal(t, 1, f.CooldownRemaining())

	// next quiet tick is still blocked
	dir, _ := f.Apply(features.Set{Volatility: 0.02}, types.RegimeTrendUp, 0.9)
	assert.Equal(t, types.DirectionNoTrade, dir)
	assert.Equal(t, 0, f.CooldownRemaining())

	// cooldown drained, trading resumes
	dir, _ = f.Apply(features.Set{Volatility: 0.02}, types.RegimeTrendUp, 0.9)
	assert.Equal(t, types.DirectionLong, dir)
}

func TestApply_RepeatedSpikesRearmCooldown(t *testing.T) {
	f := testFilter()
	f.Apply(features.Set{Volatility: 0.15}, types.RegimeTrendUp, 0.9)
	f.Apply(features.Set{Volatility: 0.15}, types.RegimeTrendUp, 0.9)
	// the second spike reset the counter before decrementing
	assert.Equal(t, 1, f.CooldownRemaining())
}

func TestApply_VolAtThresholdDoesNotArm(t *testing.T) {
	f := testFilter()
	dir, _ := f.Apply(features.Set{Volatility: 0.10}, types.RegimeTrendUp, 0.9)
	assert.Equal(t, types.DirectionLong, dir)
	assert.Equal(t, 0, f.CooldownRemaining())
}
