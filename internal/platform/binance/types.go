package binance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leantrace/eltrader/internal/domain"
)

// Channel suffixes carried after the last '@' of a combined stream name.
const (
	ChannelDepth      = "depth"
	ChannelMiniTicker = "miniTicker"
	ChannelAggTrade   = "aggTrade"
	ChannelKline      = "kline" // full suffix is kline_<interval>
)

// StreamEnvelope is the combined-stream wrapper: every message carries the
// stream name it was produced on and the raw payload.
type StreamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// SubscribeRequest is the frame sent to subscribe to streams on an open
// connection.
type SubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// wireLevel decodes the ["price","quantity"] tuple used for book levels.
type wireLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

func (l *wireLevel) UnmarshalJSON(raw []byte) error {
	var tuple [2]decimal.Decimal
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return fmt.Errorf("binance: level tuple: %w", err)
	}
	l.Price = tuple[0]
	l.Quantity = tuple[1]
	return nil
}

func levelsToDomain(levels []wireLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, domain.PriceLevel{Price: l.Price, Quantity: l.Quantity})
	}
	return out
}

// DepthMessage is a depth diff stream event. Wire keys are the single-letter
// aliases of the upstream API; the decode table here is fixed per message
// kind rather than reflective.
type DepthMessage struct {
	EventType     string      `json:"e"`
	EventTime     int64       `json:"E"`
	Symbol        string      `json:"s"`
	FirstUpdateID int64       `json:"U"`
	FinalUpdateID int64       `json:"u"`
	Bids          []wireLevel `json:"b"`
	Asks          []wireLevel `json:"a"`
}

// ToDomain converts the wire message into a domain depth update.
func (m *DepthMessage) ToDomain() domain.DepthUpdate {
	return domain.DepthUpdate{
		Symbol:        m.Symbol,
		FirstUpdateID: m.FirstUpdateID,
		FinalUpdateID: m.FinalUpdateID,
		Bids:          levelsToDomain(m.Bids),
		Asks:          levelsToDomain(m.Asks),
		EventTime:     time.UnixMilli(m.EventTime),
	}
}

// KlineMessage is a kline stream event. The nested payload is the bar itself.
type KlineMessage struct {
	EventType string       `json:"e"`
	EventTime int64        `json:"E"`
	Symbol    string       `json:"s"`
	Kline     KlinePayload `json:"k"`
}

// KlinePayload is the nested bar of a kline stream event.
type KlinePayload struct {
	OpenTime   int64           `json:"t"`
	CloseTime  int64           `json:"T"`
	Symbol     string          `json:"s"`
	Interval   string          `json:"i"`
	Open       decimal.Decimal `json:"o"`
	High       decimal.Decimal `json:"h"`
	Low        decimal.Decimal `json:"l"`
	Close      decimal.Decimal `json:"c"`
	BaseVolume decimal.Decimal `json:"v"`
	Trades     int64           `json:"n"`
	Final      bool            `json:"x"`
}

// ToDomain converts the wire message into a domain candle event.
func (m *KlineMessage) ToDomain() domain.CandleEvent {
	return domain.CandleEvent{
		Symbol:    m.Symbol,
		Interval:  m.Kline.Interval,
		EventTime: time.UnixMilli(m.EventTime),
		Candle: domain.Candle{
			OpenTime:   time.UnixMilli(m.Kline.OpenTime),
			CloseTime:  time.UnixMilli(m.Kline.CloseTime),
			Open:       m.Kline.Open,
			High:       m.Kline.High,
			Low:        m.Kline.Low,
			Close:      m.Kline.Close,
			BaseVolume: m.Kline.BaseVolume,
			Trades:     m.Kline.Trades,
			Closed:     m.Kline.Final,
		},
	}
}

// MiniTickerMessage is a rolling-window mini ticker event.
type MiniTickerMessage struct {
	EventType   string          `json:"e"`
	EventTime   int64           `json:"E"`
	Symbol      string          `json:"s"`
	Close       decimal.Decimal `json:"c"`
	Open        decimal.Decimal `json:"o"`
	High        decimal.Decimal `json:"h"`
	Low         decimal.Decimal `json:"l"`
	BaseVolume  decimal.Decimal `json:"v"`
	QuoteVolume decimal.Decimal `json:"q"`
}

// AggTradeMessage is an aggregated trade event.
type AggTradeMessage struct {
	EventType    string          `json:"e"`
	EventTime    int64           `json:"E"`
	Symbol       string          `json:"s"`
	Price        decimal.Decimal `json:"p"`
	Quantity     decimal.Decimal `json:"q"`
	TradeTime    int64           `json:"T"`
	BuyerIsMaker bool            `json:"m"`
}

// User-data event types delivered on the listen-key stream.
const (
	UserEventAccountPosition = "outboundAccountPosition"
	UserEventBalanceUpdate   = "balanceUpdate"
	UserEventExecutionReport = "executionReport"
)

// UserDataHeader is decoded first to discover which user-data event arrived.
type UserDataHeader struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
}

// AccountPositionMessage reports the full set of balances that changed.
type AccountPositionMessage struct {
	EventType  string        `json:"e"`
	EventTime  int64         `json:"E"`
	LastUpdate int64         `json:"u"`
	Balances   []wireBalance `json:"B"`
}

type wireBalance struct {
	Asset  string          `json:"a"`
	Free   decimal.Decimal `json:"f"`
	Locked decimal.Decimal `json:"l"`
}

// ToDomain converts the wire message into a domain account position.
func (m *AccountPositionMessage) ToDomain() domain.AccountPosition {
	balances := make([]domain.Balance, 0, len(m.Balances))
	for _, b := range m.Balances {
		balances = append(balances, domain.Balance{Asset: b.Asset, Free: b.Free, Locked: b.Locked})
	}
	return domain.AccountPosition{
		EventTime:  time.UnixMilli(m.EventTime),
		LastUpdate: time.UnixMilli(m.LastUpdate),
		Balances:   balances,
	}
}

// BalanceUpdateMessage reports a single-asset delta (deposit, withdrawal,
// transfer). The balance cache does not consume these.
type BalanceUpdateMessage struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	Asset     string          `json:"a"`
	Delta     decimal.Decimal `json:"d"`
	ClearTime int64           `json:"T"`
}

// ToDomain converts the wire message into a domain balance delta.
func (m *BalanceUpdateMessage) ToDomain() domain.BalanceDelta {
	return domain.BalanceDelta{
		EventTime: time.UnixMilli(m.EventTime),
		Asset:     m.Asset,
		Delta:     m.Delta,
		ClearTime: time.UnixMilli(m.ClearTime),
	}
}

// ---------------------------------------------------------------------------
// REST response types
// ---------------------------------------------------------------------------

// OrderBookResponse is the REST depth snapshot.
type OrderBookResponse struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         []wireLevel `json:"bids"`
	Asks         []wireLevel `json:"asks"`
}

// BidLevels returns the snapshot bid side as domain levels.
func (r *OrderBookResponse) BidLevels() []domain.PriceLevel { return levelsToDomain(r.Bids) }

// AskLevels returns the snapshot ask side as domain levels.
func (r *OrderBookResponse) AskLevels() []domain.PriceLevel { return levelsToDomain(r.Asks) }

// KlineRow is one REST kline entry, delivered as a positional JSON array.
type KlineRow struct {
	OpenTime   int64
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	BaseVolume decimal.Decimal
	CloseTime  int64
	Trades     int64
}

// UnmarshalJSON decodes the positional array format
// [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, ...].
func (k *KlineRow) UnmarshalJSON(raw []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("binance: kline row: %w", err)
	}
	if len(fields) < 9 {
		return fmt.Errorf("binance: kline row has %d fields, want >= 9", len(fields))
	}
	if err := json.Unmarshal(fields[0], &k.OpenTime); err != nil {
		return fmt.Errorf("binance: kline open time: %w", err)
	}
	decs := []struct {
		idx int
		dst *decimal.Decimal
	}{
		{1, &k.Open}, {2, &k.High}, {3, &k.Low}, {4, &k.Close}, {5, &k.BaseVolume},
	}
	for _, d := range decs {
		if err := json.Unmarshal(fields[d.idx], d.dst); err != nil {
			return fmt.Errorf("binance: kline field %d: %w", d.idx, err)
		}
	}
	if err := json.Unmarshal(fields[6], &k.CloseTime); err != nil {
		return fmt.Errorf("binance: kline close time: %w", err)
	}
	if err := json.Unmarshal(fields[8], &k.Trades); err != nil {
		return fmt.Errorf("binance: kline trades: %w", err)
	}
	return nil
}

// ToDomain converts the REST row into a closed domain candle.
func (k KlineRow) ToDomain() domain.Candle {
	return domain.Candle{
		OpenTime:   time.UnixMilli(k.OpenTime),
		CloseTime:  time.UnixMilli(k.CloseTime),
		Open:       k.Open,
		High:       k.High,
		Low:        k.Low,
		Close:      k.Close,
		BaseVolume: k.BaseVolume,
		Trades:     k.Trades,
		Closed:     true,
	}
}

// AccountResponse is the REST account snapshot.
type AccountResponse struct {
	AccountType string            `json:"accountType"`
	CanTrade    bool              `json:"canTrade"`
	Balances    []accountBalances `json:"balances"`
	UpdateTime  int64             `json:"updateTime"`
}

type accountBalances struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// DomainBalances returns the snapshot balances as domain values.
func (r *AccountResponse) DomainBalances() []domain.Balance {
	out := make([]domain.Balance, 0, len(r.Balances))
	for _, b := range r.Balances {
		out = append(out, domain.Balance{Asset: b.Asset, Free: b.Free, Locked: b.Locked})
	}
	return out
}

// TickerPriceResponse is the REST latest-price lookup.
type TickerPriceResponse struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// ListenKeyResponse is returned by the user-data-stream key endpoint.
type ListenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

// OrderFill is one partial execution in an order response.
type OrderFill struct {
	Price           decimal.Decimal `json:"price"`
	Quantity        decimal.Decimal `json:"qty"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commissionAsset"`
}

// OrderResponse is the REST create-order result.
type OrderResponse struct {
	Symbol        string          `json:"symbol"`
	OrderID       int64           `json:"orderId"`
	ClientOrderID string          `json:"clientOrderId"`
	TransactTime  int64           `json:"transactTime"`
	Price         decimal.Decimal `json:"price"`
	OrigQty       decimal.Decimal `json:"origQty"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	CumQuoteQty   decimal.Decimal `json:"cummulativeQuoteQty"`
	Status        string          `json:"status"`
	TimeInForce   string          `json:"timeInForce"`
	Type          string          `json:"type"`
	Side          string          `json:"side"`
	Fills         []OrderFill     `json:"fills"`
}

// APIError is the error body returned by the exchange for rejected requests.
type APIError struct {
	Code       int64  `json:"code"`
	Message    string `json:"msg"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: api error %d (http %d): %s", e.Code, e.HTTPStatus, e.Message)
}
