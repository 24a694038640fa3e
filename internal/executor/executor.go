// Package executor turns strategy decisions into sized, signed exchange
// orders and hands the results to the persistence collaborators.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/leantrace/eltrader/internal/domain"
	"github.com/leantrace/eltrader/internal/platform/binance"
)

// OrderAPI is the REST surface the executor submits through.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (*binance.OrderResponse, error)
}

// Config holds the sizing inputs.
type Config struct {
	// Budget is the quote-asset amount committed per entry.
	Budget decimal.Decimal
	// MinLots maps symbol to its minimum lot size, where configured.
	MinLots map[string]decimal.Decimal
	// Strategy labels persisted orders with their originating strategy.
	Strategy string
}

// Executor sizes and submits market orders. A submission that fails leaves
// no trace: no order record, no domain event, and the caller must not
// advance its position state.
type Executor struct {
	cfg    Config
	api    OrderAPI
	orders domain.OrderStore
	events domain.DomainEventStore
	logger *slog.Logger
	now    func() time.Time
}

// New creates an executor. The order and event stores may be nil when
// persistence is disabled.
func New(cfg Config, api OrderAPI, orders domain.OrderStore, events domain.DomainEventStore, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:    cfg,
		api:    api,
		orders: orders,
		events: events,
		logger: logger.With(slog.String("component", "executor")),
		now:    time.Now,
	}
}

// SubmitEntry sizes a market buy from the configured budget at the last
// trade price and submits it. The returned order is already persisted.
func (e *Executor) SubmitEntry(ctx context.Context, symbol string, lastTradePrice decimal.Decimal) (*domain.Order, error) {
	minLot, hasMinLot := e.cfg.MinLots[symbol]
	qty, err := SizeOrder(e.cfg.Budget, lastTradePrice, minLot, hasMinLot)
	if err != nil {
		return nil, err
	}

	e.logger.Info("submitting entry",
		slog.String("symbol", symbol),
		slog.String("price", lastTradePrice.String()),
		slog.String("quantity", qty.String()),
	)

	order, err := e.submit(ctx, domain.OrderRequest{
		Symbol:   symbol,
		Side:     domain.OrderSideBuy,
		Type:     domain.OrderTypeMarket,
		Quantity: qty,
	})
	if err != nil {
		return nil, err
	}
	e.recordEvent(ctx, domain.EventPositionEnter, order)
	return order, nil
}

// SubmitExit submits a market sell for the given quantity, closing the
// active position.
func (e *Executor) SubmitExit(ctx context.Context, symbol string, quantity decimal.Decimal) (*domain.Order, error) {
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("executor: exit quantity %s: %w", quantity, domain.ErrInvalidOrder)
	}

	e.logger.Info("submitting exit",
		slog.String("symbol", symbol),
		slog.String("quantity", quantity.String()),
	)

	order, err := e.submit(ctx, domain.OrderRequest{
		Symbol:   symbol,
		Side:     domain.OrderSideSell,
		Type:     domain.OrderTypeMarket,
		Quantity: quantity,
	})
	if err != nil {
		return nil, err
	}
	e.recordEvent(ctx, domain.EventPositionExit, order)
	return order, nil
}

func (e *Executor) submit(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	resp, err := e.api.CreateOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("executor: %s %s: %w", req.Side, req.Symbol, err)
	}

	order := e.toOrder(resp)
	if e.orders != nil {
		if err := e.orders.Create(ctx, order); err != nil {
			// The exchange accepted the order; persistence failure must
			// not unwind it.
			e.logger.Error("order persistence failed",
				slog.String("order_id", order.ID),
				slog.Int64("exchange_id", order.ExchangeID),
				slog.Any("error", err),
			)
		} else {
			e.recordEvent(ctx, domain.EventOrderCreated, &order)
		}
	}

	e.logger.Info("order accepted",
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.String("status", string(order.Status)),
		slog.Int64("exchange_id", order.ExchangeID),
		slog.String("executed_qty", order.ExecutedQty.String()),
	)
	return &order, nil
}

func (e *Executor) toOrder(resp *binance.OrderResponse) domain.Order {
	fills := make([]domain.Fill, 0, len(resp.Fills))
	for _, f := range resp.Fills {
		fills = append(fills, domain.Fill{
			Price:           f.Price,
			Quantity:        f.Quantity,
			Commission:      f.Commission,
			CommissionAsset: f.CommissionAsset,
		})
	}

	now := e.now()
	return domain.Order{
		ID:            uuid.NewString(),
		ExchangeID:    resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Side:          domain.OrderSide(resp.Side),
		Type:          domain.OrderType(resp.Type),
		Status:        domain.OrderStatus(resp.Status),
		TimeInForce:   domain.TimeInForce(resp.TimeInForce),
		Price:         resp.Price,
		OrigQty:       resp.OrigQty,
		ExecutedQty:   resp.ExecutedQty,
		CumQuoteQty:   resp.CumQuoteQty,
		Fills:         fills,
		Strategy:      e.cfg.Strategy,
		TransactTime:  time.UnixMilli(resp.TransactTime),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (e *Executor) recordEvent(ctx context.Context, eventType string, order *domain.Order) {
	if e.events == nil {
		return
	}
	payload, err := json.Marshal(order)
	if err != nil {
		e.logger.Warn("event marshal failed", slog.Any("error", err))
		return
	}
	ev := domain.DomainEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: order.ID,
		Subject:   payload,
		At:        e.now(),
	}
	if err := e.events.Append(ctx, ev); err != nil {
		e.logger.Warn("event append failed",
			slog.String("type", eventType),
			slog.Any("error", err),
		)
	}
}
