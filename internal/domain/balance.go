package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is one asset's free and locked amounts.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// AccountPosition is a user-data event carrying the full set of balances
// that changed. Each listed asset replaces the cached entry outright.
type AccountPosition struct {
	EventTime  time.Time
	LastUpdate time.Time
	Balances   []Balance
}

// BalanceDelta is an incremental user-data balance change. The cache does
// not consume these; full account positions are authoritative.
type BalanceDelta struct {
	EventTime time.Time
	Asset     string
	Delta     decimal.Decimal
	ClearTime time.Time
}
