package model

import "time"

// Transaction is an append-only audit record of a cash-moving event.
// It is never mutated after creation.
type Transaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	OrderID     string    `json:"order_id,omitempty"` // empty for risk exits
	Symbol      string    `json:"symbol"`
	Type        OrderSide `json:"type"`
	Quantity    int64     `json:"quantity"`
	Price       float64   `json:"price"`
	Amount      float64   `json:"amount"` // signed cash impact, commission included
	Commission  float64   `json:"commission"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}
