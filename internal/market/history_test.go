package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xvaler/sentinel/types"
)

func tick(price float64) types.Tick {
	return types.Tick{
		Timestamp: time.Now(),
		Price:     decimal.NewFromFloat(price),
		Volume:    decimal.NewFromInt(1),
	}
}

func TestHistory_AppendAndLen(t *testing.T) {
	h := NewHistory(5)
	assert.Equal(t, 0, h.Len())

	h.Append(tick(100))
	h.Append(tick(101))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 5, h.Capacity())
}

func TestHistory_EvictsOldestAtCapacity(t *testing.T) {
	h := NewHistory(3)
	for _, p := range []float64{100, 101, 102, 103} {
		h.Append(tick(p))
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []float64{101, 102, 103}, h.Prices())
}

func TestHistory_PricesPreserveOrder(t *testing.T) {
	h := NewHistory(10)
	for _, p := range []float64{5, 3, 8} {
		h.Append(tick(p))
	}
	assert.Equal(t, []float64{5, 3, 8}, h.Prices())
}

func TestHistory_LastPrice(t *testing.T) {
	h := NewHistory(10)
	assert.True(t, h.LastPrice().IsZero())

	h.Append(tick(100))
	h.Append(tick(105.5))
	assert.True(t, h.LastPrice().Equal(decimal.NewFromFloat(105.5)))
}

func TestHistory_Last(t *testing.T) {
	h := NewHistory(10)
	_, ok := h.Last()
	require.False(t, ok)

	h.Append(tick(42))
	last, ok := h.Last()
	require.True(t, ok)
	assert.True(t, last.Price.Equal(decimal.NewFromInt(42)))
}
