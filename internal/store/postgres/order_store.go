package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/leantrace/eltrader/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts a finalized order record.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	fills, err := json.Marshal(o.Fills)
	if err != nil {
		return fmt.Errorf("postgres: marshal fills %s: %w", o.ID, err)
	}

	const query = `
		INSERT INTO orders (
			id, exchange_id, client_order_id, symbol, side, order_type,
			status, time_in_force, price, orig_qty, executed_qty,
			cum_quote_qty, fills, strategy_name, transact_time,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, NOW()
		)`

	_, err = s.pool.Exec(ctx, query,
		o.ID, o.ExchangeID, o.ClientOrderID, o.Symbol,
		string(o.Side), string(o.Type),
		string(o.Status), string(o.TimeInForce),
		o.Price.String(), o.OrigQty.String(), o.ExecutedQty.String(),
		o.CumQuoteQty.String(), fills, o.Strategy, o.TransactTime,
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}
	return nil
}

// UpdateStatus changes the status of an existing order.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	const query = `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := s.pool.Exec(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: update order status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// orderSelectCols lists the columns selected when reading orders.
const orderSelectCols = `id, exchange_id, client_order_id, symbol, side, order_type,
	status, time_in_force, price, orig_qty, executed_qty,
	cum_quote_qty, fills, strategy_name, transact_time,
	created_at, updated_at`

func scanOrderFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Order, error) {
	var o domain.Order
	var side, orderType, status, tif string
	var price, origQty, executedQty, cumQuoteQty string
	var fills []byte

	err := scanner.Scan(
		&o.ID, &o.ExchangeID, &o.ClientOrderID, &o.Symbol,
		&side, &orderType,
		&status, &tif,
		&price, &origQty, &executedQty,
		&cumQuoteQty, &fills, &o.Strategy, &o.TransactTime,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Side = domain.OrderSide(side)
	o.Type = domain.OrderType(orderType)
	o.Status = domain.OrderStatus(status)
	o.TimeInForce = domain.TimeInForce(tif)

	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{price, &o.Price},
		{origQty, &o.OrigQty},
		{executedQty, &o.ExecutedQty},
		{cumQuoteQty, &o.CumQuoteQty},
	} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return domain.Order{}, fmt.Errorf("parse numeric %q: %w", f.raw, err)
		}
		*f.dst = d
	}

	if len(fills) > 0 {
		if err := json.Unmarshal(fills, &o.Fills); err != nil {
			return domain.Order{}, fmt.Errorf("unmarshal fills: %w", err)
		}
	}
	return o, nil
}

// GetByID retrieves a single order by its local record id.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1`, id)

	o, err := scanOrderFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

// ListBySymbol returns the most recent orders for a symbol, newest first.
func (s *OrderStore) ListBySymbol(ctx context.Context, symbol string, limit int) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE symbol = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders %s: %w", symbol, err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
