// Package portfolio holds the position ledger and the account aggregator:
// the pure accounting that a fill or a repricing applies to an account.
package portfolio

import (
	"fmt"
	"time"

	"papertrade-enginev1/internal/model"
)

// ApplyFill computes the effect of an executed fill on a position and on
// available cash. pos is the existing position (nil if none). The returned
// position is the post-fill state; nil means the position closed and must be
// deleted. cashDelta is the signed cash impact, commission included.
//
// Buys blend into the weighted-average cost basis; commission is not part of
// the basis. Sells reduce quantity and leave the basis untouched.
func ApplyFill(pos *model.Position, accountID, symbol string, side model.OrderSide, qty int64, execPrice, commission float64, now time.Time) (*model.Position, float64, error) {
	if qty <= 0 {
		return nil, 0, fmt.Errorf("%w: fill quantity must be positive", model.ErrValidation)
	}

	notional := execPrice * float64(qty)

	if side == model.OrderSideBuy {
		cashDelta := -(notional + commission)
		if pos == nil {
			p := &model.Position{
				AccountID:    accountID,
				Symbol:       symbol,
				Quantity:     qty,
				AveragePrice: execPrice,
				EntryDate:    now,
				PeakPrice:    execPrice,
			}
			p.Reprice(execPrice)
			return p, cashDelta, nil
		}
		newQty := pos.Quantity + qty
		newAvg := (float64(pos.Quantity)*pos.AveragePrice + notional) / float64(newQty)
		p := *pos
		p.Quantity = newQty
		p.AveragePrice = newAvg
		p.Reprice(execPrice)
		return &p, cashDelta, nil
	}

	// Sell
	if pos == nil || pos.Quantity < qty {
		return nil, 0, fmt.Errorf("%w: position smaller than sell quantity", model.ErrInsufficientShares)
	}
	cashDelta := notional - commission
	newQty := pos.Quantity - qty
	if newQty == 0 {
		return nil, cashDelta, nil
	}
	p := *pos
	p.Quantity = newQty
	p.Reprice(execPrice)
	return &p, cashDelta, nil
}
