// Package pricing models the cost of simulated execution: a two-tier flat
// commission and notional-tiered slippage that always moves the price
// against the trader.
package pricing

import "papertrade-enginev1/internal/model"

// Commission tiers. Flat fees, not proportional: crossing the $1,000
// notional boundary jumps from the base fee to the large fee.
const (
	CommissionBaseFee      = 1.00
	CommissionLargeFee     = 5.00
	CommissionTierBoundary = 1000.0
)

// Slippage tiers by trade notional.
const (
	SlippageSmall  = 0.001 // < $10k
	SlippageMedium = 0.002 // $10k – $100k
	SlippageLarge  = 0.005 // >= $100k

	slippageMediumBoundary = 10000.0
	slippageLargeBoundary  = 100000.0
)

// Commission returns the flat fee for a trade of the given quantity and price.
func Commission(quantity int64, price float64) float64 {
	notional := float64(quantity) * price
	if notional < CommissionTierBoundary {
		return CommissionBaseFee
	}
	return CommissionLargeFee
}

// Slippage returns the adverse price fraction for a trade of the given
// notional value.
func Slippage(notional float64) float64 {
	switch {
	case notional < slippageMediumBoundary:
		return SlippageSmall
	case notional < slippageLargeBoundary:
		return SlippageMedium
	default:
		return SlippageLarge
	}
}

// ExecutionPrice applies slippage to a base price. Buys pay more, sells
// receive less; slippage is never in the trader's favor.
func ExecutionPrice(basePrice float64, side model.OrderSide, slippage float64) float64 {
	if side == model.OrderSideBuy {
		return basePrice * (1 + slippage)
	}
	return basePrice * (1 - slippage)
}
