// Package risk evaluates per-position exit rules: stop-loss, take-profit and
// trailing stop. It decides when a position must be closed; the order engine
// performs the actual exit.
package risk

import (
	"papertrade-enginev1/internal/model"
)

// ExitReason identifies which rule triggered a risk exit.
type ExitReason string

const (
	ExitNone         ExitReason = ""
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTakeProfit   ExitReason = "take_profit"
	ExitTrailingStop ExitReason = "trailing_stop"
)

// Evaluate inspects a freshly repriced position and returns the first
// triggered exit rule, in priority order: stop-loss, take-profit, trailing
// stop. At most one exit fires per evaluation; a simultaneously satisfied
// take-profit never outranks the stop-loss.
//
// The trailing trigger derives from PeakPrice, the running maximum since
// entry — Position.Reprice ratchets it before this runs, so the check never
// sees a stale peak.
func Evaluate(p *model.Position) ExitReason {
	price := p.CurrentPrice

	if p.StopLoss != nil && price <= *p.StopLoss {
		return ExitStopLoss
	}
	if p.TakeProfit != nil && price >= *p.TakeProfit {
		return ExitTakeProfit
	}
	if p.TrailingStop != nil && p.PeakPrice > 0 {
		trigger := TrailingTrigger(p.PeakPrice, *p.TrailingStop)
		if price <= trigger {
			return ExitTrailingStop
		}
	}
	return ExitNone
}

// TrailingTrigger returns the price at which a trailing stop fires for the
// given peak and trail percentage.
func TrailingTrigger(peak, trailPct float64) float64 {
	return peak * (1 - trailPct/100)
}

// ValidateParams checks risk parameters before they are attached to a
// position. Zero-value rules are rejected; the optional rules are expressed
// by absence, not by zero.
func ValidateParams(stopLoss, takeProfit, trailingStop *float64) error {
	if stopLoss != nil && *stopLoss <= 0 {
		return model.ErrValidation
	}
	if takeProfit != nil && *takeProfit <= 0 {
		return model.ErrValidation
	}
	if trailingStop != nil && (*trailingStop <= 0 || *trailingStop >= 100) {
		return model.ErrValidation
	}
	if stopLoss == nil && takeProfit == nil && trailingStop == nil {
		return model.ErrValidation
	}
	return nil
}
