package model

import "errors"

// Error kinds returned by the engine. Callers branch on these with errors.Is;
// wrapped messages carry the detail.
var (
	ErrValidation          = errors.New("validation error")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrMarketClosed        = errors.New("market closed")
	ErrQuoteUnavailable    = errors.New("quote unavailable")
	ErrAccountNotFound     = errors.New("account not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrCannotCancel        = errors.New("order cannot be cancelled")
	ErrAccountHasPositions = errors.New("account has open positions")
)
