package executor

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/leantrace/eltrader/internal/domain"
)

const quantityScale = 8

// SizeOrder converts a quote-asset budget into a base-asset quantity at
// the given trade price: budget / price at eight fractional digits with
// ties rounded down. When the symbol's minimum lot size is a whole number
// the exchange only accepts integral quantities, so the result is rounded
// up to the next integer instead.
func SizeOrder(budget, lastTradePrice decimal.Decimal, minLot decimal.Decimal, hasMinLot bool) (decimal.Decimal, error) {
	if !lastTradePrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("executor: size order at price %s: %w", lastTradePrice, domain.ErrInvalidOrder)
	}
	if !budget.IsPositive() {
		return decimal.Zero, fmt.Errorf("executor: size order with budget %s: %w", budget, domain.ErrInvalidOrder)
	}

	qty := roundHalfDown(budget.Div(lastTradePrice), quantityScale)
	if hasMinLot && minLot.IsInteger() {
		qty = qty.Ceil()
	}
	if !qty.IsPositive() {
		return decimal.Zero, fmt.Errorf("executor: sized quantity %s: %w", qty, domain.ErrInvalidOrder)
	}
	return qty, nil
}

// roundHalfDown rounds to the given number of fractional digits with ties
// going toward zero. Inputs are always positive here.
func roundHalfDown(d decimal.Decimal, places int32) decimal.Decimal {
	shifted := d.Shift(places)
	floor := shifted.Floor()
	frac := shifted.Sub(floor)
	if frac.GreaterThan(decimal.NewFromFloat(0.5)) {
		floor = floor.Add(decimal.NewFromInt(1))
	}
	return floor.Shift(-places)
}
