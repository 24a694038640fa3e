package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/leantrace/eltrader/internal/domain"
)

// flatThen builds a window of steady bars followed by the given closes.
func flatThen(steady int, base string, tail ...string) []domain.Candle {
	closes := make([]string, 0, steady+len(tail))
	for i := 0; i < steady; i++ {
		closes = append(closes, base)
	}
	closes = append(closes, tail...)

	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		d := decimal.RequireFromString(c)
		out[i] = domain.Candle{
			OpenTime: time.Date(2024, 5, 1, 0, i, 0, 0, time.UTC),
			Open:     d, High: d, Low: d, Close: d,
			Closed: true,
		}
	}
	return out
}

func TestEvaluateHoldsOnFlatSeries(t *testing.T) {
	e := NewEvaluator(DefaultParams())
	candles := flatThen(45, "100")

	got := e.Evaluate(candles, false, decimal.Zero)
	assert.Equal(t, domain.DecisionHold, got)
}

func TestEvaluateEntersOnSMACrossover(t *testing.T) {
	e := NewEvaluator(DefaultParams())

	// A sharp drop pulls the 14-bar average below the 41-bar average at
	// the last bar; both averages were equal the bar before.
	candles := flatThen(44, "100", "50")

	got := e.Evaluate(candles, false, decimal.Zero)
	assert.Equal(t, domain.DecisionEnter, got)
}

func TestEvaluateEntryOnlyAtCrossingBar(t *testing.T) {
	e := NewEvaluator(DefaultParams())

	// One bar after the crossing the averages are already separated, so
	// the same drop no longer fires.
	candles := flatThen(44, "100", "50", "50")

	got := e.Evaluate(candles, false, decimal.Zero)
	assert.Equal(t, domain.DecisionHold, got)
}

func TestEvaluateStopLossExit(t *testing.T) {
	e := NewEvaluator(DefaultParams())
	entry := decimal.RequireFromString("100")

	candles := flatThen(44, "100", "96.5")

	got := e.Evaluate(candles, true, entry)
	assert.Equal(t, domain.DecisionExit, got, "close 3.5%% under entry trips the stop loss")
}

func TestEvaluateStopGainExit(t *testing.T) {
	e := NewEvaluator(DefaultParams())
	entry := decimal.RequireFromString("100")

	// 103 is 3% over entry and above the slow average.
	candles := flatThen(44, "100", "103")

	got := e.Evaluate(candles, true, entry)
	assert.Equal(t, domain.DecisionExit, got)
}

func TestEvaluateLongHoldsInsideStopBand(t *testing.T) {
	e := NewEvaluator(DefaultParams())
	entry := decimal.RequireFromString("100")

	candles := flatThen(45, "100")

	got := e.Evaluate(candles, true, entry)
	assert.Equal(t, domain.DecisionHold, got)
}

func TestEvaluateTooFewBars(t *testing.T) {
	e := NewEvaluator(DefaultParams())
	got := e.Evaluate(flatThen(1, "100"), false, decimal.Zero)
	assert.Equal(t, domain.DecisionHold, got)
}

func TestMinBarsCoversLongestPeriod(t *testing.T) {
	e := NewEvaluator(DefaultParams())
	assert.Equal(t, 41, e.MinBars())
}
