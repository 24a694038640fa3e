package executor

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leantrace/eltrader/internal/domain"
	"github.com/leantrace/eltrader/internal/platform/binance"
)

type fakeAPI struct {
	requests []domain.OrderRequest
	resp     *binance.OrderResponse
	err      error
}

func (f *fakeAPI) CreateOrder(_ context.Context, req domain.OrderRequest) (*binance.OrderResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type memOrderStore struct {
	created []domain.Order
}

func (m *memOrderStore) Create(_ context.Context, o domain.Order) error {
	m.created = append(m.created, o)
	return nil
}
func (m *memOrderStore) GetByID(context.Context, string) (domain.Order, error) {
	return domain.Order{}, domain.ErrNotFound
}
func (m *memOrderStore) ListBySymbol(context.Context, string, int) ([]domain.Order, error) {
	return nil, nil
}
func (m *memOrderStore) UpdateStatus(context.Context, string, domain.OrderStatus) error {
	return nil
}

type memEventStore struct {
	events []domain.DomainEvent
}

func (m *memEventStore) Append(_ context.Context, ev domain.DomainEvent) error {
	m.events = append(m.events, ev)
	return nil
}
func (m *memEventStore) ListBySubject(context.Context, string, int) ([]domain.DomainEvent, error) {
	return nil, nil
}

func newTestExecutor(api *fakeAPI, orders *memOrderStore, events *memEventStore) *Executor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{
		Budget:   decimal.RequireFromString("1000"),
		MinLots:  map[string]decimal.Decimal{"BNBBTC": decimal.NewFromInt(1)},
		Strategy: "momentum",
	}, api, orders, events, logger)
}

func filledResponse(symbol string) *binance.OrderResponse {
	return &binance.OrderResponse{
		Symbol:       symbol,
		OrderID:      42,
		TransactTime: 1714558800000,
		OrigQty:      decimal.RequireFromString("20"),
		ExecutedQty:  decimal.RequireFromString("20"),
		Status:       "FILLED",
		Type:         "MARKET",
		Side:         "BUY",
	}
}

func TestSubmitEntryPersistsOrderAndEvents(t *testing.T) {
	api := &fakeAPI{resp: filledResponse("BTCUSDT")}
	orders := &memOrderStore{}
	events := &memEventStore{}
	e := newTestExecutor(api, orders, events)

	order, err := e.SubmitEntry(context.Background(), "BTCUSDT", decimal.RequireFromString("50"))
	require.NoError(t, err)

	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, domain.OrderSideBuy, req.Side)
	assert.Equal(t, domain.OrderTypeMarket, req.Type)
	assert.Equal(t, "20.00000000", req.Quantity.StringFixed(8))

	assert.Equal(t, int64(42), order.ExchangeID)
	assert.Equal(t, domain.OrderStatusFilled, order.Status)
	assert.Equal(t, "momentum", order.Strategy)
	assert.NotEmpty(t, order.ID)

	require.Len(t, orders.created, 1)
	assert.Equal(t, order.ID, orders.created[0].ID)

	// One order.created plus one position.entered event.
	require.Len(t, events.events, 2)
	assert.Equal(t, domain.EventOrderCreated, events.events[0].Type)
	assert.Equal(t, domain.EventPositionEnter, events.events[1].Type)
	assert.Equal(t, order.ID, events.events[0].SubjectID)
}

func TestSubmitEntryIntegerLotSymbol(t *testing.T) {
	api := &fakeAPI{resp: filledResponse("BNBBTC")}
	e := newTestExecutor(api, &memOrderStore{}, &memEventStore{})

	_, err := e.SubmitEntry(context.Background(), "BNBBTC", decimal.RequireFromString("300"))
	require.NoError(t, err)

	require.Len(t, api.requests, 1)
	assert.Equal(t, "4", api.requests[0].Quantity.String())
}

func TestSubmitEntryRejectionLeavesNoTrace(t *testing.T) {
	api := &fakeAPI{err: domain.ErrOrderRejected}
	orders := &memOrderStore{}
	events := &memEventStore{}
	e := newTestExecutor(api, orders, events)

	_, err := e.SubmitEntry(context.Background(), "BTCUSDT", decimal.RequireFromString("50"))
	assert.ErrorIs(t, err, domain.ErrOrderRejected)
	assert.Empty(t, orders.created)
	assert.Empty(t, events.events)
}

func TestSubmitExit(t *testing.T) {
	resp := filledResponse("BTCUSDT")
	resp.Side = "SELL"
	api := &fakeAPI{resp: resp}
	events := &memEventStore{}
	e := newTestExecutor(api, &memOrderStore{}, events)

	order, err := e.SubmitExit(context.Background(), "BTCUSDT", decimal.RequireFromString("20"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderSideSell, order.Side)

	require.Len(t, api.requests, 1)
	assert.Equal(t, domain.OrderSideSell, api.requests[0].Side)
	require.Len(t, events.events, 2)
	assert.Equal(t, domain.EventPositionExit, events.events[1].Type)
}

func TestSubmitExitRejectsZeroQuantity(t *testing.T) {
	e := newTestExecutor(&fakeAPI{}, &memOrderStore{}, &memEventStore{})
	_, err := e.SubmitExit(context.Background(), "BTCUSDT", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}
