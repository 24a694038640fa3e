// Package strategy evaluates the momentum rule set over a candle window
// and drives the position state machine from a fixed-delay scheduler.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/leantrace/eltrader/internal/domain"
	"github.com/leantrace/eltrader/internal/indicator"
)

// Params are the indicator periods and thresholds of the momentum rule
// set.
type Params struct {
	CMOPeriod   int
	ShortEMA    int
	LongEMA     int
	StochPeriod int
	MACDShort   int
	MACDLong    int
	MACDSignal  int
	ShortSMA    int
	LongSMA     int
	RSIPeriod   int

	DropPct     decimal.Decimal
	StopLossPct decimal.Decimal
	StopGainPct decimal.Decimal
}

// DefaultParams returns the production rule-set parameters. The SMA pair
// keeps its historical naming: the "short" SMA carries the longer period.
func DefaultParams() Params {
	return Params{
		CMOPeriod:   9,
		ShortEMA:    9,
		LongEMA:     26,
		StochPeriod: 14,
		MACDShort:   12,
		MACDLong:    26,
		MACDSignal:  18,
		ShortSMA:    41,
		LongSMA:     14,
		RSIPeriod:   2,
		DropPct:     decimal.NewFromFloat(0.03),
		StopLossPct: decimal.NewFromFloat(0.03),
		StopGainPct: decimal.NewFromFloat(0.02),
	}
}

// Evaluator computes an enter/exit/hold decision from a candle window. It
// is a pure function of the window and the active position's entry price;
// crossover rules fire only on the transition at the last bar.
type Evaluator struct {
	params Params
}

// NewEvaluator creates an evaluator with the given parameters.
func NewEvaluator(params Params) *Evaluator {
	return &Evaluator{params: params}
}

// MinBars returns the window length needed before every indicator has a
// full lookback; the scheduler holds evaluation until then.
func (e *Evaluator) MinBars() int {
	max := 2
	for _, p := range []int{
		e.params.CMOPeriod, e.params.ShortEMA, e.params.LongEMA,
		e.params.StochPeriod, e.params.MACDLong, e.params.MACDSignal,
		e.params.ShortSMA, e.params.LongSMA, e.params.RSIPeriod,
	} {
		if p > max {
			max = p
		}
	}
	return max
}

var (
	stochOversold   = decimal.NewFromInt(20)
	stochOverbought = decimal.NewFromInt(80)
	rsiCeiling      = decimal.NewFromInt(95)
	one             = decimal.NewFromInt(1)
)

// Evaluate returns the decision for the current window. While flat only
// the entry rules are consulted; while long only the exit rules, with the
// stop rules anchored to entryPrice. Fewer than two candles always holds.
func (e *Evaluator) Evaluate(candles []domain.Candle, long bool, entryPrice decimal.Decimal) domain.Decision {
	if len(candles) < 2 {
		return domain.DecisionHold
	}

	closes := make([]decimal.Decimal, len(candles))
	highs := make([]decimal.Decimal, len(candles))
	lows := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}
	t := len(closes) - 1
	lastClose := closes[t]

	shortSMA := indicator.SMA(closes, e.params.ShortSMA)
	longSMA := indicator.SMA(closes, e.params.LongSMA)
	shortEMA := indicator.EMA(closes, e.params.ShortEMA)
	longEMA := indicator.EMA(closes, e.params.LongEMA)
	cmo := indicator.CMO(closes, e.params.CMOPeriod)
	stochK := indicator.StochasticK(highs, lows, closes, e.params.StochPeriod)
	macd := indicator.MACD(closes, e.params.MACDShort, e.params.MACDLong)
	macdSignal := indicator.EMA(macd, e.params.MACDSignal)

	if !long {
		dropLevel := lastClose.Sub(lastClose.Mul(e.params.DropPct))
		momentumEntry := shortSMA[t].GreaterThan(longSMA[t]) &&
			indicator.CrossedDownLevel(cmo, decimal.Zero, t) &&
			shortEMA[t].GreaterThan(lastClose)

		enter := indicator.CrossedUp(shortSMA, longSMA, t) ||
			(indicator.CrossedDownLevel(closes, dropLevel, t) &&
				macd[t].GreaterThan(macdSignal[t]) &&
				indicator.CrossedDownLevel(stochK, stochOversold, t) &&
				shortEMA[t].GreaterThan(longEMA[t]) &&
				momentumEntry)
		if enter {
			return domain.DecisionEnter
		}
		return domain.DecisionHold
	}

	rsi := indicator.RSI(closes, e.params.RSIPeriod)

	momentumExit := shortSMA[t].LessThan(longSMA[t]) &&
		indicator.CrossedUpLevel(cmo, decimal.Zero, t) &&
		shortSMA[t].LessThan(lastClose)

	stopLoss := lastClose.LessThanOrEqual(entryPrice.Mul(one.Sub(e.params.StopLossPct)))
	stopGain := lastClose.GreaterThanOrEqual(entryPrice.Mul(one.Add(e.params.StopGainPct)))

	exit := (shortEMA[t].LessThan(longEMA[t]) &&
		indicator.CrossedUpLevel(stochK, stochOverbought, t) &&
		macd[t].LessThan(macdSignal[t])) ||
		momentumExit ||
		stopLoss ||
		(stopGain && shortSMA[t].LessThan(lastClose)) ||
		indicator.CrossedUpLevel(rsi, rsiCeiling, t)
	if exit {
		return domain.DecisionExit
	}
	return domain.DecisionHold
}
