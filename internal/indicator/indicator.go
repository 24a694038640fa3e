// Package indicator implements the technical indicators the momentum
// strategy evaluates over a candle window. All functions are pure: they
// take value series, return series of equal length, and define every
// index, shrinking the lookback window near the start of the series
// instead of emitting gaps.
package indicator

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	fifty   = decimal.NewFromInt(50)
)

// SMA returns the simple moving average of values over period. Indices
// before a full window average over the values available so far.
func SMA(values []decimal.Decimal, period int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	sum := decimal.Zero
	for i, v := range values {
		sum = sum.Add(v)
		n := period
		if i+1 < period {
			n = i + 1
		} else if i >= period {
			sum = sum.Sub(values[i-period])
		}
		out[i] = sum.Div(decimal.NewFromInt(int64(n)))
	}
	return out
}

// EMA returns the exponential moving average of values over period using
// multiplier 2/(period+1), seeded with the first value.
func EMA(values []decimal.Decimal, period int) []decimal.Decimal {
	return smoothed(values, decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period+1))))
}

// mma is the modified (Wilder) moving average: an EMA with multiplier
// 1/period.
func mma(values []decimal.Decimal, period int) []decimal.Decimal {
	return smoothed(values, decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(period))))
}

func smoothed(values []decimal.Decimal, multiplier decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		if i == 0 {
			out[i] = v
			continue
		}
		prev := out[i-1]
		out[i] = prev.Add(multiplier.Mul(v.Sub(prev)))
	}
	return out
}

// gainsLosses splits bar-to-bar changes into a gain series and a loss
// series, both non-negative, with index 0 zero on both sides.
func gainsLosses(values []decimal.Decimal) (gains, losses []decimal.Decimal) {
	gains = make([]decimal.Decimal, len(values))
	losses = make([]decimal.Decimal, len(values))
	for i := 1; i < len(values); i++ {
		diff := values[i].Sub(values[i-1])
		switch {
		case diff.IsPositive():
			gains[i] = diff
			losses[i] = decimal.Zero
		case diff.IsNegative():
			gains[i] = decimal.Zero
			losses[i] = diff.Neg()
		default:
			gains[i] = decimal.Zero
			losses[i] = decimal.Zero
		}
	}
	if len(values) > 0 {
		gains[0] = decimal.Zero
		losses[0] = decimal.Zero
	}
	return gains, losses
}

// RSI returns the relative strength index over period, with gains and
// losses smoothed by a Wilder moving average. An all-gain window yields
// 100, an all-loss window 0, and a flat window 0.
func RSI(values []decimal.Decimal, period int) []decimal.Decimal {
	gains, losses := gainsLosses(values)
	avgGain := mma(gains, period)
	avgLoss := mma(losses, period)

	out := make([]decimal.Decimal, len(values))
	for i := range values {
		switch {
		case avgLoss[i].IsZero() && avgGain[i].IsZero():
			out[i] = decimal.Zero
		case avgLoss[i].IsZero():
			out[i] = hundred
		default:
			rs := avgGain[i].Div(avgLoss[i])
			out[i] = hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
		}
	}
	return out
}

// CMO returns the Chande momentum oscillator over period: the windowed sum
// of gains minus losses, as a percentage of their total. A window with no
// movement yields 0.
func CMO(values []decimal.Decimal, period int) []decimal.Decimal {
	gains, losses := gainsLosses(values)

	out := make([]decimal.Decimal, len(values))
	sumGain, sumLoss := decimal.Zero, decimal.Zero
	for i := range values {
		sumGain = sumGain.Add(gains[i])
		sumLoss = sumLoss.Add(losses[i])
		if i >= period {
			sumGain = sumGain.Sub(gains[i-period])
			sumLoss = sumLoss.Sub(losses[i-period])
		}

		total := sumGain.Add(sumLoss)
		if total.IsZero() {
			out[i] = decimal.Zero
			continue
		}
		out[i] = sumGain.Sub(sumLoss).Div(total).Mul(hundred)
	}
	return out
}

// MACD returns the moving average convergence/divergence line: the short
// EMA minus the long EMA of values.
func MACD(values []decimal.Decimal, shortPeriod, longPeriod int) []decimal.Decimal {
	short := EMA(values, shortPeriod)
	long := EMA(values, longPeriod)
	out := make([]decimal.Decimal, len(values))
	for i := range values {
		out[i] = short[i].Sub(long[i])
	}
	return out
}

// StochasticK returns the stochastic oscillator %K over period: the close
// position within the high-low range of the lookback window, scaled to
// 0..100. A flat window yields 50.
func StochasticK(highs, lows, closes []decimal.Decimal, period int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(closes))
	for i := range closes {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		hh := highs[start]
		ll := lows[start]
		for j := start + 1; j <= i; j++ {
			if highs[j].GreaterThan(hh) {
				hh = highs[j]
			}
			if lows[j].LessThan(ll) {
				ll = lows[j]
			}
		}

		spread := hh.Sub(ll)
		if spread.IsZero() {
			out[i] = fifty
			continue
		}
		out[i] = closes[i].Sub(ll).Div(spread).Mul(hundred)
	}
	return out
}

// CrossedUp reports whether series a crossed above series b at index i:
// at or below on the previous bar, strictly above on the current one.
// Index 0 can never be a crossing.
func CrossedUp(a, b []decimal.Decimal, i int) bool {
	if i <= 0 || i >= len(a) || i >= len(b) {
		return false
	}
	return a[i-1].LessThanOrEqual(b[i-1]) && a[i].GreaterThan(b[i])
}

// CrossedDown reports whether series a crossed below series b at index i:
// at or above on the previous bar, strictly below on the current one.
func CrossedDown(a, b []decimal.Decimal, i int) bool {
	if i <= 0 || i >= len(a) || i >= len(b) {
		return false
	}
	return a[i-1].GreaterThanOrEqual(b[i-1]) && a[i].LessThan(b[i])
}

// CrossedUpLevel reports whether series a crossed above a fixed level at
// index i.
func CrossedUpLevel(a []decimal.Decimal, level decimal.Decimal, i int) bool {
	if i <= 0 || i >= len(a) {
		return false
	}
	return a[i-1].LessThanOrEqual(level) && a[i].GreaterThan(level)
}

// CrossedDownLevel reports whether series a crossed below a fixed level at
// index i.
func CrossedDownLevel(a []decimal.Decimal, level decimal.Decimal, i int) bool {
	if i <= 0 || i >= len(a) {
		return false
	}
	return a[i-1].GreaterThanOrEqual(level) && a[i].LessThan(level)
}
