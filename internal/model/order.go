package model

import "time"

// OrderType determines how an order is priced and triggered.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop_limit"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus is the lifecycle state of an order.
// pending is the only non-terminal state; filled, cancelled and rejected
// are terminal and an order never leaves them.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order represents a simulated order against a paper account.
type Order struct {
	ID         string      `json:"id"`
	AccountID  string      `json:"account_id"`
	Symbol     string      `json:"symbol"`
	Type       OrderType   `json:"type"`
	Side       OrderSide   `json:"side"`
	Quantity   int64       `json:"quantity"`
	Price      *float64    `json:"price,omitempty"`      // limit price (limit, stop_limit)
	StopPrice  *float64    `json:"stop_price,omitempty"` // trigger price (stop, stop_limit)
	Status     OrderStatus `json:"status"`
	FilledQty  int64       `json:"filled_qty"`
	AvgPrice   float64     `json:"avg_price"` // execution price after fill
	Commission float64     `json:"commission"`
	Notes      string      `json:"notes,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Terminal reports whether the order has reached a final state.
func (o *Order) Terminal() bool {
	return o.Status != OrderStatusPending
}
