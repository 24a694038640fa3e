package binance

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamEnvelopeAndDepthDecode(t *testing.T) {
	raw := []byte(`{
		"stream": "btcusdt@depth",
		"data": {
			"e": "depthUpdate",
			"E": 1714558800123,
			"s": "BTCUSDT",
			"U": 157,
			"u": 160,
			"b": [["0.0024", "10"], ["0.0022", "0"]],
			"a": [["0.0026", "100"]]
		}
	}`)

	var env StreamEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "btcusdt@depth", env.Stream)

	var msg DepthMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))

	u := msg.ToDomain()
	assert.Equal(t, "BTCUSDT", u.Symbol)
	assert.Equal(t, int64(157), u.FirstUpdateID)
	assert.Equal(t, int64(160), u.FinalUpdateID)
	require.Len(t, u.Bids, 2)
	assert.Equal(t, "0.0024", u.Bids[0].Price.String())
	assert.Equal(t, "10", u.Bids[0].Quantity.String())
	assert.True(t, u.Bids[1].Quantity.IsZero())
	require.Len(t, u.Asks, 1)
	assert.Equal(t, time.UnixMilli(1714558800123), u.EventTime)
}

func TestKlineMessageDecode(t *testing.T) {
	raw := []byte(`{
		"e": "kline",
		"E": 1714558860000,
		"s": "BTCUSDT",
		"k": {
			"t": 1714558800000,
			"T": 1714558859999,
			"s": "BTCUSDT",
			"i": "1m",
			"o": "64000.1",
			"c": "64010.5",
			"h": "64020.0",
			"l": "63990.0",
			"v": "12.5",
			"n": 250,
			"x": true
		}
	}`)

	var msg KlineMessage
	require.NoError(t, json.Unmarshal(raw, &msg))

	ev := msg.ToDomain()
	assert.Equal(t, "BTCUSDT", ev.Symbol)
	assert.Equal(t, "1m", ev.Interval)
	assert.True(t, ev.Candle.Closed)
	assert.Equal(t, "64010.5", ev.Candle.Close.String())
	assert.Equal(t, int64(250), ev.Candle.Trades)
	assert.Equal(t, time.UnixMilli(1714558800000), ev.Candle.OpenTime)
}

func TestKlineRowPositionalDecode(t *testing.T) {
	raw := []byte(`[
		[1714558800000, "64000.1", "64020.0", "63990.0", "64010.5", "12.5", 1714558859999, "800125.0", 250]
	]`)

	var rows []KlineRow
	require.NoError(t, json.Unmarshal(raw, &rows))
	require.Len(t, rows, 1)

	c := rows[0].ToDomain()
	assert.Equal(t, "64000.1", c.Open.String())
	assert.Equal(t, "64020", c.High.String())
	assert.Equal(t, "64010.5", c.Close.String())
	assert.Equal(t, int64(250), c.Trades)
	assert.True(t, c.Closed, "REST bars are always closed")
}

func TestAccountPositionDecode(t *testing.T) {
	raw := []byte(`{
		"e": "outboundAccountPosition",
		"E": 1714558800000,
		"u": 1714558800001,
		"B": [
			{"a": "BTC", "f": "1.5", "l": "0.25"},
			{"a": "USDT", "f": "1000", "l": "0"}
		]
	}`)

	var header UserDataHeader
	require.NoError(t, json.Unmarshal(raw, &header))
	assert.Equal(t, UserEventAccountPosition, header.EventType)

	var msg AccountPositionMessage
	require.NoError(t, json.Unmarshal(raw, &msg))

	pos := msg.ToDomain()
	require.Len(t, pos.Balances, 2)
	assert.Equal(t, "BTC", pos.Balances[0].Asset)
	assert.Equal(t, "1.5", pos.Balances[0].Free.String())
	assert.Equal(t, "0.25", pos.Balances[0].Locked.String())
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Code: -2010, Message: "Account has insufficient balance", HTTPStatus: 400}
	assert.Contains(t, err.Error(), "-2010")
	assert.Contains(t, err.Error(), "insufficient balance")
}
