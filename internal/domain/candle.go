package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLC bar for a (symbol, interval) pair, keyed by OpenTime.
type Candle struct {
	OpenTime   time.Time
	CloseTime  time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	BaseVolume decimal.Decimal
	Trades     int64
	Closed     bool
}

// CandleEvent is a streaming kline update. The embedded candle may still be
// forming; Candle.Closed reports whether the bar is final.
type CandleEvent struct {
	Symbol    string
	Interval  string
	EventTime time.Time
	Candle    Candle
}
