package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType is the exchange order type.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// TimeInForce indicates how long an order remains active before it is
// executed or expires.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good-Till-Cancelled
	TimeInForceIOC TimeInForce = "IOC" // Immediate-Or-Cancel
	TimeInForceFOK TimeInForce = "FOK" // Fill-Or-Kill
)

// OrderStatus tracks the exchange-reported order lifecycle.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// OrderRequest is the input to order submission.
type OrderRequest struct {
	Symbol      string
	Side        OrderSide
	Type        OrderType
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	TimeInForce TimeInForce
}

// Fill is one execution that contributed to an order.
type Fill struct {
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
}

// Order is the finalized record of a submitted exchange order, as persisted
// by the order store.
type Order struct {
	ID             string // local record id (UUID)
	ExchangeID     int64  // exchange-assigned order id
	ClientOrderID  string
	Symbol         string
	Side           OrderSide
	Type           OrderType
	Status         OrderStatus
	TimeInForce    TimeInForce
	Price          decimal.Decimal
	OrigQty        decimal.Decimal
	ExecutedQty    decimal.Decimal
	CumQuoteQty    decimal.Decimal
	Fills          []Fill
	Strategy       string
	TransactTime   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
