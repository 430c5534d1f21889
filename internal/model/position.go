package model

import "time"

// Position represents an open long position in a single symbol.
// A position with zero quantity never exists: the ledger deletes it on close.
type Position struct {
	AccountID      string    `json:"account_id"`
	Symbol         string    `json:"symbol"`
	Quantity       int64     `json:"quantity"`
	AveragePrice   float64   `json:"average_price"` // weighted cost basis
	CurrentPrice   float64   `json:"current_price"`
	MarketValue    float64   `json:"market_value"`
	UnrealizedPnL  float64   `json:"unrealized_pnl"`
	UnrealizedPct  float64   `json:"unrealized_pnl_percent"`
	EntryDate      time.Time `json:"entry_date"`

	// Optional per-position risk parameters. Nil means the rule is not set.
	StopLoss     *float64 `json:"stop_loss,omitempty"`
	TakeProfit   *float64 `json:"take_profit,omitempty"`
	TrailingStop *float64 `json:"trailing_stop,omitempty"` // percent, e.g. 5 = 5%

	// PeakPrice is the highest price observed since entry. It only ratchets
	// upward; the trailing stop trigger derives from it.
	PeakPrice float64 `json:"peak_price"`
}

// Reprice updates the derived market fields from a fresh price and ratchets
// the peak.
func (p *Position) Reprice(price float64) {
	p.CurrentPrice = price
	p.MarketValue = price * float64(p.Quantity)
	cost := p.AveragePrice * float64(p.Quantity)
	p.UnrealizedPnL = p.MarketValue - cost
	if cost > 0 {
		p.UnrealizedPct = p.UnrealizedPnL / cost * 100
	} else {
		p.UnrealizedPct = 0
	}
	if price > p.PeakPrice {
		p.PeakPrice = price
	}
}

// HasRiskParams reports whether any risk rule is set on the position.
func (p *Position) HasRiskParams() bool {
	return p.StopLoss != nil || p.TakeProfit != nil || p.TrailingStop != nil
}

// Key returns a unique key for this position: "accountID:symbol".
func (p *Position) Key() string {
	return p.AccountID + ":" + p.Symbol
}
