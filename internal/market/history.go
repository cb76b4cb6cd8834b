package market

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/0xvaler/sentinel/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TICK HISTORY - Bounded rolling window of market observations
// ═══════════════════════════════════════════════════════════════════════════════

// History is a fixed-capacity rolling buffer of ticks. When full, appending
// evicts the oldest tick. The polling loop owns it; the mutex only covers
// dashboard reads.
type History struct {
	mu       sync.RWMutex
	capacity int
	ticks    []types.Tick
}

// NewHistory creates a rolling history with the given capacity
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 100
	}
	return &History{
		capacity: capacity,
		ticks:    make([]types.Tick, 0, capacity),
	}
}

// Append adds a tick, evicting the oldest when at capacity
func (h *History) Append(t types.Tick) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.ticks) == h.capacity {
		copy(h.ticks, h.ticks[1:])
		h.ticks[len(h.ticks)-1] = t
		return
	}
	h.ticks = append(h.ticks, t)
}

// Len returns the number of buffered ticks
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ticks)
}

// Capacity returns the fixed buffer capacity
func (h *History) Capacity() int {
	return h.capacity
}

// Last returns the most recent tick, or false when empty
func (h *History) Last() (types.Tick, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.ticks) == 0 {
		return types.Tick{}, false
	}
	return h.ticks[len(h.ticks)-1], true
}

// Prices returns the buffered prices as float64, oldest first.
// Feature math runs on floats; order placement stays decimal.
func (h *History) Prices() []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]float64, len(h.ticks))
	for i, t := range h.ticks {
		out[i], _ = t.Price.Float64()
	}
	return out
}

// Volumes returns the buffered volumes as float64, oldest first
func (h *History) Volumes() []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]float64, len(h.ticks))
	for i, t := range h.ticks {
		out[i], _ = t.Volume.Float64()
	}
	return out
}

// LastPrice returns the most recent price or zero when empty
func (h *History) LastPrice() decimal.Decimal {
	if t, ok := h.Last(); ok {
		return t.Price
	}
	return decimal.Zero
}
