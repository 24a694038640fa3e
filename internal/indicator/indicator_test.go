package indicator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestSMA(t *testing.T) {
	got := SMA(series("1", "2", "3", "4", "5"), 3)

	require.Len(t, got, 5)
	// Partial windows at the start average what is available.
	assert.Equal(t, "1", got[0].String())
	assert.Equal(t, "1.5", got[1].String())
	assert.Equal(t, "2", got[2].String())
	assert.Equal(t, "3", got[3].String())
	assert.Equal(t, "4", got[4].String())
}

func TestEMA(t *testing.T) {
	got := EMA(series("10", "20"), 3)

	require.Len(t, got, 2)
	assert.Equal(t, "10", got[0].String())
	// multiplier 2/(3+1) = 0.5: 10 + 0.5*(20-10) = 15
	assert.Equal(t, "15", got[1].String())
}

func TestRSIExtremes(t *testing.T) {
	up := RSI(series("1", "2", "3", "4"), 2)
	assert.Equal(t, "100", up[3].String(), "all gains give RSI 100")

	down := RSI(series("4", "3", "2", "1"), 2)
	assert.True(t, down[3].IsZero(), "all losses give RSI 0")

	flat := RSI(series("5", "5", "5"), 2)
	assert.True(t, flat[2].IsZero(), "no movement gives RSI 0")
}

func TestCMO(t *testing.T) {
	// Gains 1,1 then loss 2 over a window of 3 deltas: (2-2)/(2+2)*100 = 0.
	got := CMO(series("10", "11", "12", "10"), 3)
	assert.True(t, got[3].IsZero())

	allUp := CMO(series("10", "11", "12"), 3)
	assert.Equal(t, "100", allUp[2].String())
}

func TestMACD(t *testing.T) {
	vals := series("10", "10", "10", "10")
	got := MACD(vals, 2, 3)
	for _, v := range got {
		assert.True(t, v.IsZero(), "flat series has zero divergence")
	}
}

func TestStochasticK(t *testing.T) {
	highs := series("10", "12", "14")
	lows := series("8", "9", "10")
	closes := series("9", "11", "13")

	got := StochasticK(highs, lows, closes, 3)
	require.Len(t, got, 3)
	// Bar 2: hh=14, ll=8, close=13 → (13-8)/(14-8)*100.
	want := decimal.RequireFromString("13").Sub(decimal.RequireFromString("8")).
		Div(decimal.RequireFromString("6")).Mul(decimal.NewFromInt(100))
	assert.True(t, got[2].Equal(want))

	flat := StochasticK(series("5", "5"), series("5", "5"), series("5", "5"), 2)
	assert.Equal(t, "50", flat[1].String(), "flat window pins %K to 50")
}

func TestCrossedUpFiresOnlyAtTransition(t *testing.T) {
	// a crosses above b between index 2 and 3, then stays above.
	a := series("1", "2", "3", "5", "6")
	b := series("4", "4", "4", "4", "4")

	for i := range a {
		if i == 3 {
			assert.True(t, CrossedUp(a, b, i), "crossing bar")
		} else {
			assert.False(t, CrossedUp(a, b, i), "bar %d", i)
		}
	}
}

func TestCrossedUpTouchThenBreak(t *testing.T) {
	// Equality on the prior bar still counts as "at or below".
	a := series("4", "5")
	b := series("4", "4")
	assert.True(t, CrossedUp(a, b, 1))

	// Equality on the current bar is not a crossing.
	assert.False(t, CrossedUp(series("3", "4"), b, 1))
}

func TestCrossedDown(t *testing.T) {
	a := series("5", "3")
	b := series("4", "4")
	assert.True(t, CrossedDown(a, b, 1))
	assert.False(t, CrossedDown(a, b, 0))
	assert.False(t, CrossedUp(a, b, 1))
}

func TestCrossedLevels(t *testing.T) {
	cmo := series("5", "-3")
	assert.True(t, CrossedDownLevel(cmo, decimal.Zero, 1))
	assert.False(t, CrossedUpLevel(cmo, decimal.Zero, 1))

	rsi := series("90", "97")
	assert.True(t, CrossedUpLevel(rsi, decimal.NewFromInt(95), 1))
}
