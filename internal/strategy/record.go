package strategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leantrace/eltrader/internal/domain"
)

// Position is the engine's own position state for one symbol.
type Position int

const (
	PositionFlat Position = iota
	PositionLong
)

func (p Position) String() string {
	if p == PositionLong {
		return "LONG"
	}
	return "FLAT"
}

// Record is the per-symbol trading record: the flat/long position state
// plus the ledger of this engine's own entries and exits. It is distinct
// from the exchange's order history.
type Record struct {
	mu         sync.Mutex
	position   Position
	entryPrice decimal.Decimal
	entryQty   decimal.Decimal
	trades     []domain.Trade
}

// NewRecord creates a flat record.
func NewRecord() *Record {
	return &Record{}
}

// Position returns the current position state.
func (r *Record) Position() Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}

// Entry returns the active position's entry price and quantity, or false
// while flat.
func (r *Record) Entry() (price, qty decimal.Decimal, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.position != PositionLong {
		return decimal.Zero, decimal.Zero, false
	}
	return r.entryPrice, r.entryQty, true
}

// Enter transitions flat to long, appending a buy trade. Entering while
// already long fails. It is called only after the order submission has
// succeeded, so a rejected order never advances the position.
func (r *Record) Enter(index int, price, qty decimal.Decimal, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.position != PositionFlat {
		return fmt.Errorf("strategy: enter from %s: %w", r.position, domain.ErrInvalidOrder)
	}
	r.position = PositionLong
	r.entryPrice = price
	r.entryQty = qty
	r.trades = append(r.trades, domain.Trade{
		Index:    index,
		Side:     domain.OrderSideBuy,
		Price:    price,
		Quantity: qty,
		At:       at,
	})
	return nil
}

// Exit transitions long to flat, appending a sell trade. Exiting while
// flat fails.
func (r *Record) Exit(index int, price, qty decimal.Decimal, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.position != PositionLong {
		return fmt.Errorf("strategy: exit from %s: %w", r.position, domain.ErrInvalidOrder)
	}
	r.position = PositionFlat
	r.entryPrice = decimal.Zero
	r.entryQty = decimal.Zero
	r.trades = append(r.trades, domain.Trade{
		Index:    index,
		Side:     domain.OrderSideSell,
		Price:    price,
		Quantity: qty,
		At:       at,
	})
	return nil
}

// Trades returns a copy of the trade ledger.
func (r *Record) Trades() []domain.Trade {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Trade, len(r.trades))
	copy(out, r.trades)
	return out
}
