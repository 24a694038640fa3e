package market

import (
	"sync"

	"github.com/leantrace/eltrader/internal/domain"
)

// Window holds the most recent candles for one symbol and interval, in
// ascending open-time order, bounded to a fixed capacity. A candle event
// with an open time already present replaces that candle in place, so the
// forming bar mutates until it closes.
type Window struct {
	capacity int

	mu      sync.RWMutex
	candles []domain.Candle
}

// NewWindow creates an empty window bounded to capacity candles.
func NewWindow(capacity int) *Window {
	return &Window{
		capacity: capacity,
		candles:  make([]domain.Candle, 0, capacity),
	}
}

// Upsert inserts or replaces the candle keyed by its open time. A new open
// time appends and, past capacity, evicts the oldest candle.
func (w *Window) Upsert(c domain.Candle) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := len(w.candles) - 1; i >= 0; i-- {
		if w.candles[i].OpenTime.Equal(c.OpenTime) {
			w.candles[i] = c
			return
		}
		if w.candles[i].OpenTime.Before(c.OpenTime) {
			break
		}
	}

	// An unmatched bar older than the newest one would land at the tail and
	// break ascending order; drop it.
	if n := len(w.candles); n > 0 && c.OpenTime.Before(w.candles[n-1].OpenTime) {
		return
	}

	w.candles = append(w.candles, c)
	if len(w.candles) > w.capacity {
		w.candles = append(w.candles[:0], w.candles[1:]...)
	}
}

// Latest returns the most recent candle, or false when empty.
func (w *Window) Latest() (domain.Candle, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.candles) == 0 {
		return domain.Candle{}, false
	}
	return w.candles[len(w.candles)-1], true
}

// Ordered returns a copy of the window in ascending open-time order.
func (w *Window) Ordered() []domain.Candle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]domain.Candle, len(w.candles))
	copy(out, w.candles)
	return out
}

// Len returns the number of candles currently held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.candles)
}
