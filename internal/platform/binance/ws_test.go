package binance

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leantrace/eltrader/internal/domain"
)

func newTestWSClient() *WSClient {
	return NewWSClient("wss://stream.example.com", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleMessageRoutesDepth(t *testing.T) {
	ws := newTestWSClient()

	var got []domain.DepthUpdate
	ws.OnDepth(func(u domain.DepthUpdate) { got = append(got, u) })

	ws.handleMessage([]byte(`{
		"stream": "btcusdt@depth",
		"data": {
			"e": "depthUpdate",
			"E": 1714558800000,
			"s": "BTCUSDT",
			"U": 101,
			"u": 105,
			"b": [["64000.00", "1.5"]],
			"a": [["64010.00", "0"]]
		}
	}`))

	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
	assert.Equal(t, int64(101), got[0].FirstUpdateID)
	assert.Equal(t, int64(105), got[0].FinalUpdateID)
	require.Len(t, got[0].Bids, 1)
	assert.True(t, got[0].Bids[0].Price.Equal(decimal.RequireFromString("64000")))
}

func TestHandleMessageRoutesKlineBySuffixPrefix(t *testing.T) {
	ws := newTestWSClient()

	var got []domain.CandleEvent
	ws.OnKline(func(e domain.CandleEvent) { got = append(got, e) })

	ws.handleMessage([]byte(`{
		"stream": "ethusdt@kline_1m",
		"data": {
			"e": "kline",
			"E": 1714558860000,
			"s": "ETHUSDT",
			"k": {
				"t": 1714558800000,
				"T": 1714558859999,
				"s": "ETHUSDT",
				"i": "1m",
				"o": "3000.0",
				"c": "3010.5",
				"h": "3012.0",
				"l": "2998.0",
				"v": "120.4",
				"x": true
			}
		}
	}`))

	require.Len(t, got, 1)
	assert.Equal(t, "ETHUSDT", got[0].Symbol)
	assert.True(t, got[0].Candle.Closed)
	assert.True(t, got[0].Candle.Close.Equal(decimal.RequireFromString("3010.5")))
}

func TestHandleMessageRoutesUserDataByListenKey(t *testing.T) {
	ws := newTestWSClient()
	ws.SetListenKey("pqia91ma19a5s61cv6a81va65sdf19v8a65a1a5s61cv6a81va65sdf19v8a65a1")

	var got []domain.AccountPosition
	ws.OnAccountPosition(func(p domain.AccountPosition) { got = append(got, p) })

	ws.handleMessage([]byte(`{
		"stream": "pqia91ma19a5s61cv6a81va65sdf19v8a65a1a5s61cv6a81va65sdf19v8a65a1",
		"data": {
			"e": "outboundAccountPosition",
			"E": 1714558800000,
			"u": 1714558800000,
			"B": [{"a": "BTC", "f": "1.5", "l": "0.1"}]
		}
	}`))

	require.Len(t, got, 1)
	require.Len(t, got[0].Balances, 1)
	assert.Equal(t, "BTC", got[0].Balances[0].Asset)
	assert.True(t, got[0].Balances[0].Free.Equal(decimal.RequireFromString("1.5")))
}

func TestHandleMessageIgnoresControlFrames(t *testing.T) {
	ws := newTestWSClient()

	called := false
	ws.OnDepth(func(domain.DepthUpdate) { called = true })

	// Subscribe acks carry no stream field.
	ws.handleMessage([]byte(`{"result": null, "id": 1}`))
	// Garbage frames are dropped, not fatal.
	ws.handleMessage([]byte(`not json`))
	// Unknown channels are logged and skipped.
	ws.handleMessage([]byte(`{"stream": "btcusdt@bookTicker", "data": {}}`))

	assert.False(t, called)
}
