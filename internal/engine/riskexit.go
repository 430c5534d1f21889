package engine

import (
	"context"
	"fmt"
	"log/slog"

	"papertrade-enginev1/internal/events"
	"papertrade-enginev1/internal/id"
	"papertrade-enginev1/internal/model"
	"papertrade-enginev1/internal/pricing"
	"papertrade-enginev1/internal/risk"
)

// RefreshAccount reprices every open position of the account from the quote
// provider, persists the refreshed marks, fires any triggered risk exits and
// recomputes the account valuation. Quote failures skip the symbol and leave
// its last mark standing; they never abort the refresh.
func (e *Engine) RefreshAccount(ctx context.Context, accountID string) error {
	unlock := e.lockAccount(accountID)
	defer unlock()

	positions, err := e.store.ListPositions(ctx, accountID)
	if err != nil {
		return err
	}

	for i := range positions {
		p := &positions[i]

		q, err := e.quotes.GetQuote(ctx, p.Symbol)
		if err != nil {
			if e.prom != nil {
				e.prom.QuoteFailures.Inc()
			}
			continue
		}

		p.Reprice(q.Price)
		if err := e.store.UpdatePositionPrice(ctx, p); err != nil {
			return err
		}

		if !p.HasRiskParams() {
			continue
		}
		if reason := risk.Evaluate(p); reason != risk.ExitNone {
			if err := e.riskExit(ctx, p, reason); err != nil {
				return err
			}
		}
	}

	return e.recomputeTotals(ctx, accountID)
}

// ExecuteRiskExit closes the position at its current price under the
// account lock. Exposed for forced liquidation; the refresh loop uses the
// internal path which already holds the lock.
func (e *Engine) ExecuteRiskExit(ctx context.Context, p *model.Position, reason risk.ExitReason) error {
	unlock := e.lockAccount(p.AccountID)
	defer unlock()
	if err := e.riskExit(ctx, p, reason); err != nil {
		return err
	}
	return e.recomputeTotals(ctx, p.AccountID)
}

// riskExit sells the full position at CurrentPrice with slippage and
// commission, journals the exit and deletes the position. Caller holds the
// account lock.
func (e *Engine) riskExit(ctx context.Context, p *model.Position, reason risk.ExitReason) error {
	notional := p.CurrentPrice * float64(p.Quantity)
	slip := pricing.Slippage(notional)
	execPrice := pricing.ExecutionPrice(p.CurrentPrice, model.OrderSideSell, slip)
	commission := pricing.Commission(p.Quantity, execPrice)
	proceeds := execPrice*float64(p.Quantity) - commission

	fill := model.FillApplication{
		AccountID:    p.AccountID,
		FilledQty:    p.Quantity,
		AvgPrice:     execPrice,
		Commission:   commission,
		CashDelta:    proceeds,
		DeleteSymbol: p.Symbol,
		Transaction: model.Transaction{
			ID:         id.New(),
			AccountID:  p.AccountID,
			Symbol:     p.Symbol,
			Type:       model.OrderSideSell,
			Quantity:   p.Quantity,
			Price:      execPrice,
			Amount:     proceeds,
			Commission: commission,
			Description: fmt.Sprintf("sell %d %s @ %.2f, risk exit (%s)",
				p.Quantity, p.Symbol, execPrice, reason),
			Timestamp: e.now(),
		},
	}

	if _, err := e.store.ApplyFill(ctx, fill); err != nil {
		return err
	}

	if e.prom != nil {
		e.prom.RiskExits.WithLabelValues(string(reason)).Inc()
	}
	e.pub.PublishFill(ctx, events.FillEvent{
		AccountID:  p.AccountID,
		Symbol:     p.Symbol,
		Side:       string(model.OrderSideSell),
		Quantity:   p.Quantity,
		Price:      execPrice,
		Commission: commission,
		At:         e.now(),
	})

	slog.Info("risk exit",
		"account_id", p.AccountID, "symbol", p.Symbol, "reason", reason,
		"qty", p.Quantity, "exec", execPrice, "commission", commission)
	return nil
}
