package model

import "time"

// Account is a virtual trading account funded with simulated cash.
type Account struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	InitialBalance  float64   `json:"initial_balance"`
	AvailableCash   float64   `json:"available_cash"`
	TotalValue      float64   `json:"total_value"`
	TotalPnL        float64   `json:"total_pnl"`
	TotalPnLPercent float64   `json:"total_pnl_percent"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
