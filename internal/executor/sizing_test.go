package executor

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leantrace/eltrader/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSizeOrderEightDigits(t *testing.T) {
	qty, err := SizeOrder(d("1000"), d("50"), decimal.Zero, false)
	require.NoError(t, err)
	assert.Equal(t, "20.00000000", qty.StringFixed(8))
}

func TestSizeOrderRoundsTiesDown(t *testing.T) {
	// 1 / 3 = 0.3333... truncates; 0.000000005 boundary rounds down.
	qty, err := SizeOrder(d("1"), d("3"), decimal.Zero, false)
	require.NoError(t, err)
	assert.Equal(t, "0.33333333", qty.StringFixed(8))

	// 2/3 = 0.666666666... the digit after the eighth place is 6 > 5, so
	// the eighth digit rounds up.
	qty, err = SizeOrder(d("2"), d("3"), decimal.Zero, false)
	require.NoError(t, err)
	assert.Equal(t, "0.66666667", qty.StringFixed(8))

	// An exact half tie stays down.
	qty, err = SizeOrder(d("0.000000125"), d("1"), decimal.Zero, false)
	require.NoError(t, err)
	assert.Equal(t, "0.00000012", qty.StringFixed(8))
}

func TestSizeOrderIntegerLotRoundsUp(t *testing.T) {
	// A whole-number minimum lot forces integral quantities.
	qty, err := SizeOrder(d("1000"), d("300"), d("1"), true)
	require.NoError(t, err)
	assert.Equal(t, "4", qty.String())

	// A fractional minimum lot leaves the eight-digit quantity alone.
	qty, err = SizeOrder(d("1000"), d("300"), d("0.001"), true)
	require.NoError(t, err)
	assert.Equal(t, "3.33333333", qty.StringFixed(8))
}

func TestSizeOrderRejectsNonPositiveInputs(t *testing.T) {
	_, err := SizeOrder(d("1000"), decimal.Zero, decimal.Zero, false)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)

	_, err = SizeOrder(decimal.Zero, d("50"), decimal.Zero, false)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}
