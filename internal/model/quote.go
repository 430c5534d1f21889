package model

import "time"

// Quote is the best-available current price for a symbol.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Volume int64     `json:"volume"`
	AsOf   time.Time `json:"as_of"`
}

// MarketSession describes the current trading session window.
type MarketSession struct {
	IsOpen    bool      `json:"is_open"` // true only during the regular session
	Status    string    `json:"status"`  // pre_market, regular, after_hours, closed
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}
