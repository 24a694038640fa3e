package market

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SymbolState bundles the live market structures for one symbol: the order
// book replica, the candle window, and the latest observed trade price.
// Feed tasks write into it; the strategy scheduler reads from it.
type SymbolState struct {
	Symbol  string
	Book    *Book
	Candles *Window

	mu        sync.RWMutex
	lastPrice decimal.Decimal
	priceAt   time.Time
	hasPrice  bool
}

// NewSymbolState creates the per-symbol state with an unsynced book and an
// empty candle window of windowSize bars.
func NewSymbolState(symbol string, fetcher SnapshotFetcher, windowSize int, logger *slog.Logger) *SymbolState {
	return &SymbolState{
		Symbol:  symbol,
		Book:    NewBook(symbol, fetcher, logger),
		Candles: NewWindow(windowSize),
	}
}

// RecordTradePrice stores the price of the latest observed trade.
func (s *SymbolState) RecordTradePrice(price decimal.Decimal, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPrice = price
	s.priceAt = at
	s.hasPrice = true
}

// LastTradePrice returns the latest observed trade price, or false when no
// trade has been seen yet.
func (s *SymbolState) LastTradePrice() (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasPrice {
		return decimal.Zero, false
	}
	return s.lastPrice, true
}
