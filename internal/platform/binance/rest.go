// Package binance implements the REST and WebSocket clients for the Binance
// spot API, exposing typed requests and stream events to the rest of the
// engine.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leantrace/eltrader/internal/crypto"
	"github.com/leantrace/eltrader/internal/domain"
)

// RestClient is the client for the Binance spot REST API. Signed endpoints
// carry a timestamp, an optional recvWindow, and an HMAC-SHA256 signature
// over the query string.
type RestClient struct {
	baseURL      string
	httpClient   *http.Client
	signer       *crypto.Signer
	recvWindowMs int64
	now          func() time.Time
}

// NewRestClient creates a REST client rooted at baseURL, e.g.
// "https://api.binance.com".
func NewRestClient(baseURL string, signer *crypto.Signer, recvWindowMs int64) *RestClient {
	return &RestClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:       signer,
		recvWindowMs: recvWindowMs,
		now:          time.Now,
	}
}

// Depth fetches the order book snapshot for symbol. limit caps the number of
// levels per side; 0 uses the exchange default.
func (c *RestClient) Depth(ctx context.Context, symbol string, limit int) (*OrderBookResponse, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, "/api/v3/depth", params, false)
	if err != nil {
		return nil, fmt.Errorf("binance: depth %s: %w", symbol, err)
	}

	var resp OrderBookResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("binance: decode depth %s: %w", symbol, err)
	}
	return &resp, nil
}

// Klines fetches up to limit closed candles for symbol at interval.
func (c *RestClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]KlineRow, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, "/api/v3/klines", params, false)
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s %s: %w", symbol, interval, err)
	}

	var rows []KlineRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("binance: decode klines %s: %w", symbol, err)
	}
	return rows, nil
}

// TickerPrice fetches the latest trade price for symbol.
func (c *RestClient) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/api/v3/ticker/price", params, false)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance: ticker price %s: %w", symbol, err)
	}

	var resp TickerPriceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("binance: decode ticker price %s: %w", symbol, err)
	}
	return resp.Price, nil
}

// Account fetches the signed account snapshot including all balances.
func (c *RestClient) Account(ctx context.Context) (*AccountResponse, error) {
	body, err := c.get(ctx, "/api/v3/account", url.Values{}, true)
	if err != nil {
		return nil, fmt.Errorf("binance: account: %w", err)
	}

	var resp AccountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("binance: decode account: %w", err)
	}
	return &resp, nil
}

// CreateOrder submits a signed order and returns the exchange result.
// A rejected order surfaces as domain.ErrOrderRejected wrapping the API
// error body.
func (c *RestClient) CreateOrder(ctx context.Context, req domain.OrderRequest) (*OrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", req.Quantity.String())
	if req.Type == domain.OrderTypeLimit {
		params.Set("price", req.Price.String())
		params.Set("timeInForce", string(req.TimeInForce))
	}

	body, err := c.post(ctx, "/api/v3/order", params, true)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("binance: create order %s: %w: %s", req.Symbol, domain.ErrOrderRejected, apiErr.Message)
		}
		return nil, fmt.Errorf("binance: create order %s: %w", req.Symbol, err)
	}

	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("binance: decode order response %s: %w", req.Symbol, err)
	}
	return &resp, nil
}

// StartUserDataStream requests a listen key for the user-data stream.
func (c *RestClient) StartUserDataStream(ctx context.Context) (string, error) {
	body, err := c.post(ctx, "/api/v3/userDataStream", url.Values{}, false)
	if err != nil {
		return "", fmt.Errorf("binance: start user data stream: %w", err)
	}

	var resp ListenKeyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("binance: decode listen key: %w", err)
	}
	if resp.ListenKey == "" {
		return "", fmt.Errorf("binance: empty listen key")
	}
	return resp.ListenKey, nil
}

// KeepAliveUserDataStream extends the validity of a listen key. Keys expire
// after 60 minutes without a keepalive.
func (c *RestClient) KeepAliveUserDataStream(ctx context.Context, listenKey string) error {
	params := url.Values{}
	params.Set("listenKey", listenKey)

	req, err := c.newRequest(ctx, http.MethodPut, "/api/v3/userDataStream", params, false)
	if err != nil {
		return fmt.Errorf("binance: keepalive user data stream: %w", err)
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("binance: keepalive user data stream: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

func (c *RestClient) get(ctx context.Context, path string, params url.Values, signed bool) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, params, signed)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *RestClient) post(ctx context.Context, path string, params url.Values, signed bool) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, params, signed)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// newRequest builds a request with the parameters in the query string. For
// signed endpoints a timestamp and recvWindow are appended and the whole
// query string is signed; the signature must be the final parameter.
func (c *RestClient) newRequest(ctx context.Context, method, path string, params url.Values, signed bool) (*http.Request, error) {
	if signed {
		params.Set("recvWindow", strconv.FormatInt(c.recvWindowMs, 10))
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	}

	query := params.Encode()
	if signed {
		query += "&signature=" + c.signer.Sign(query)
	}

	endpoint := c.baseURL + path
	if query != "" {
		endpoint += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set(crypto.APIKeyHeader, c.signer.APIKey())
	return req, nil
}

func (c *RestClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr APIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			apiErr.HTTPStatus = resp.StatusCode
			return nil, &apiErr
		}
		return nil, &APIError{HTTPStatus: resp.StatusCode, Message: fmt.Sprintf("%s returned status %d", req.URL.Path, resp.StatusCode)}
	}

	return body, nil
}
