package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decision is the outcome of one strategy evaluation tick.
type Decision string

const (
	DecisionEnter Decision = "ENTER"
	DecisionExit  Decision = "EXIT"
	DecisionHold  Decision = "HOLD"
)

// DecisionEvent is published to the signal bus after each evaluation so
// external observers can follow the strategy without scraping logs.
type DecisionEvent struct {
	Symbol     string          `json:"symbol"`
	Decision   Decision        `json:"decision"`
	ClosePrice decimal.Decimal `json:"close_price"`
	BarIndex   int             `json:"bar_index"`
	Actionable bool            `json:"actionable"`
	At         time.Time       `json:"at"`
}

// Trade is one entry or exit appended to the trading record.
type Trade struct {
	Index    int
	Side     OrderSide
	Price    decimal.Decimal
	Quantity decimal.Decimal
	At       time.Time
}
