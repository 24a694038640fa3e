package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeTick is one aggregated trade observed on the market stream. The
// latest tick's price is what order sizing uses when the REST ticker lookup
// is unavailable.
type TradeTick struct {
	Symbol   string
	Price    decimal.Decimal
	Quantity decimal.Decimal
	At       time.Time
}

// TickerUpdate is a rolling-window mini ticker summary.
type TickerUpdate struct {
	Symbol     string
	Close      decimal.Decimal
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	BaseVolume decimal.Decimal
	At         time.Time
}
