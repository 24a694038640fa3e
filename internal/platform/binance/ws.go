package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leantrace/eltrader/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// DepthHandler is called for each depth diff event.
type DepthHandler func(domain.DepthUpdate)

// KlineHandler is called for each kline event, including still-forming bars.
type KlineHandler func(domain.CandleEvent)

// MiniTickerHandler is called for each mini ticker summary.
type MiniTickerHandler func(domain.TickerUpdate)

// AggTradeHandler is called for each aggregated trade.
type AggTradeHandler func(domain.TradeTick)

// AccountPositionHandler is called for each full balance replacement on the
// user-data stream.
type AccountPositionHandler func(domain.AccountPosition)

// BalanceDeltaHandler is called for each incremental balance change on the
// user-data stream.
type BalanceDeltaHandler func(domain.BalanceDelta)

// DisconnectHandler is called once when a connection is lost. Reconnection
// happens internally; the handler is informational.
type DisconnectHandler func(error)

// WSClient is a WebSocket client for the Binance combined market stream. One
// connection multiplexes every subscribed stream; messages arrive wrapped in
// a StreamEnvelope and are dispatched to typed handlers in arrival order.
type WSClient struct {
	wsURL  string
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	closed    bool
	listenKey string
	nextReqID int

	// Stream names to restore on reconnect.
	subscriptions []string

	handlerMu          sync.RWMutex
	depthHandlers      []DepthHandler
	klineHandlers      []KlineHandler
	miniTickerHandlers []MiniTickerHandler
	aggTradeHandlers   []AggTradeHandler
	positionHandlers   []AccountPositionHandler
	deltaHandlers      []BalanceDeltaHandler
	disconnectHandlers []DisconnectHandler

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a client for the given WebSocket base URL, e.g.
// "wss://stream.binance.com:9443". The combined-stream path is appended on
// connect.
func NewWSClient(wsURL string, logger *slog.Logger) *WSClient {
	return &WSClient{
		wsURL:  strings.TrimSuffix(wsURL, "/"),
		logger: logger.With(slog.String("component", "binance_ws")),
		done:   make(chan struct{}),
	}
}

// Connect establishes the combined-stream WebSocket connection.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("binance/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL+"/stream", nil)
	if err != nil {
		return fmt.Errorf("binance/ws: connect: %w", err)
	}

	w.conn = conn

	// Set up pong handler for keep-alive.
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop()
	go w.pingLoop()

	// Restore any previous subscriptions after reconnect.
	if len(w.subscriptions) > 0 {
		if err := w.sendSubscribe(w.subscriptions); err != nil {
			return fmt.Errorf("binance/ws: restore subscriptions: %w", err)
		}
	}

	return nil
}

// Subscribe subscribes to the given stream names, e.g. "btcusdt@depth" or
// "btcusdt@kline_1m". A listen key registered via SetListenKey is a valid
// stream name for the user-data channel.
func (w *WSClient) Subscribe(ctx context.Context, streams []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("binance/ws: not connected")
	}

	if err := w.sendSubscribe(streams); err != nil {
		return fmt.Errorf("binance/ws: subscribe: %w", err)
	}

	w.subscriptions = append(w.subscriptions, streams...)
	return nil
}

// SetListenKey registers the user-data stream name so its events can be
// routed; the key has no '@' suffix to derive a channel kind from.
func (w *WSClient) SetListenKey(key string) {
	w.mu.Lock()
	w.listenKey = key
	w.mu.Unlock()
}

// Close shuts down the connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// OnDepth registers a handler for depth diff events.
func (w *WSClient) OnDepth(handler DepthHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.depthHandlers = append(w.depthHandlers, handler)
}

// OnKline registers a handler for kline events.
func (w *WSClient) OnKline(handler KlineHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.klineHandlers = append(w.klineHandlers, handler)
}

// OnMiniTicker registers a handler for mini ticker events.
func (w *WSClient) OnMiniTicker(handler MiniTickerHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.miniTickerHandlers = append(w.miniTickerHandlers, handler)
}

// OnAggTrade registers a handler for aggregated trade events.
func (w *WSClient) OnAggTrade(handler AggTradeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.aggTradeHandlers = append(w.aggTradeHandlers, handler)
}

// OnAccountPosition registers a handler for full balance replacements.
func (w *WSClient) OnAccountPosition(handler AccountPositionHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.positionHandlers = append(w.positionHandlers, handler)
}

// OnBalanceDelta registers a handler for incremental balance changes.
func (w *WSClient) OnBalanceDelta(handler BalanceDeltaHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.deltaHandlers = append(w.deltaHandlers, handler)
}

// OnDisconnect registers a handler invoked once per lost connection.
func (w *WSClient) OnDisconnect(handler DisconnectHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.disconnectHandlers = append(w.disconnectHandlers, handler)
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendSubscribe sends a SUBSCRIBE frame. Caller must hold w.mu.
func (w *WSClient) sendSubscribe(streams []string) error {
	w.nextReqID++
	req := SubscribeRequest{
		Method: "SUBSCRIBE",
		Params: streams,
		ID:     w.nextReqID,
	}

	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads messages and dispatches them. It runs in its
// own goroutine. On disconnect it signals handlers and attempts to reconnect
// with exponential backoff.
func (w *WSClient) readLoop() {
	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}

			w.logger.Warn("connection lost", slog.String("error", err.Error()))

			w.handlerMu.RLock()
			handlers := w.disconnectHandlers
			w.handlerMu.RUnlock()
			for _, h := range handlers {
				h(err)
			}

			w.reconnect()
			return // readLoop is restarted by reconnect -> Connect
		}

		w.handleMessage(message)
	}
}

// pingLoop sends periodic ping messages to keep the connection alive.
func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes the combined-stream envelope and routes the payload
// by the channel suffix after the last '@' of the stream name. Unrecognized
// suffixes are logged and dropped; the stream continues.
func (w *WSClient) handleMessage(raw []byte) {
	var envelope StreamEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		w.logger.Debug("dropping undecodable frame", slog.String("error", err.Error()))
		return
	}
	if envelope.Stream == "" {
		// Subscribe acks and other control responses have no stream field.
		return
	}

	w.mu.RLock()
	listenKey := w.listenKey
	w.mu.RUnlock()

	if listenKey != "" && envelope.Stream == listenKey {
		w.handleUserData(envelope.Data)
		return
	}

	suffix := envelope.Stream
	if i := strings.LastIndex(envelope.Stream, "@"); i >= 0 {
		suffix = envelope.Stream[i+1:]
	}

	switch {
	case suffix == ChannelDepth:
		var msg DepthMessage
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			w.logger.Warn("bad depth payload", slog.String("error", err.Error()))
			return
		}
		update := msg.ToDomain()

		w.handlerMu.RLock()
		handlers := w.depthHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(update)
		}

	case strings.HasPrefix(suffix, ChannelKline):
		var msg KlineMessage
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			w.logger.Warn("bad kline payload", slog.String("error", err.Error()))
			return
		}
		event := msg.ToDomain()

		w.handlerMu.RLock()
		handlers := w.klineHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(event)
		}

	case suffix == ChannelMiniTicker:
		var msg MiniTickerMessage
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			w.logger.Warn("bad mini ticker payload", slog.String("error", err.Error()))
			return
		}
		update := domain.TickerUpdate{
			Symbol:     msg.Symbol,
			Close:      msg.Close,
			Open:       msg.Open,
			High:       msg.High,
			Low:        msg.Low,
			BaseVolume: msg.BaseVolume,
			At:         time.UnixMilli(msg.EventTime),
		}

		w.handlerMu.RLock()
		handlers := w.miniTickerHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(update)
		}

	case suffix == ChannelAggTrade:
		var msg AggTradeMessage
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			w.logger.Warn("bad agg trade payload", slog.String("error", err.Error()))
			return
		}
		tick := domain.TradeTick{
			Symbol:   msg.Symbol,
			Price:    msg.Price,
			Quantity: msg.Quantity,
			At:       time.UnixMilli(msg.TradeTime),
		}

		w.handlerMu.RLock()
		handlers := w.aggTradeHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(tick)
		}

	default:
		w.logger.Info("could not decode channel", slog.String("stream", envelope.Stream))
	}
}

// handleUserData routes a user-data payload by its event type field.
func (w *WSClient) handleUserData(data json.RawMessage) {
	var header UserDataHeader
	if err := json.Unmarshal(data, &header); err != nil {
		w.logger.Warn("bad user data payload", slog.String("error", err.Error()))
		return
	}

	switch header.EventType {
	case UserEventAccountPosition:
		var msg AccountPositionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			w.logger.Warn("bad account position payload", slog.String("error", err.Error()))
			return
		}
		position := msg.ToDomain()

		w.handlerMu.RLock()
		handlers := w.positionHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(position)
		}

	case UserEventBalanceUpdate:
		var msg BalanceUpdateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			w.logger.Warn("bad balance update payload", slog.String("error", err.Error()))
			return
		}
		delta := msg.ToDomain()

		w.handlerMu.RLock()
		handlers := w.deltaHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(delta)
		}

	case UserEventExecutionReport:
		// Order lifecycle is tracked through the REST response; execution
		// reports are not consumed.

	default:
		w.logger.Info("unknown user data event", slog.String("event_type", header.EventType))
	}
}

// reconnect attempts to re-establish the connection with exponential
// backoff. It blocks until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			w.logger.Info("reconnected")
			return
		}

		w.logger.Warn("reconnect failed", slog.String("error", err.Error()))

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
