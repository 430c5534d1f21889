package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"papertrade-enginev1/internal/events"
	"papertrade-enginev1/internal/id"
	"papertrade-enginev1/internal/model"
	"papertrade-enginev1/internal/portfolio"
	"papertrade-enginev1/internal/pricing"
)

// FillMarketOrder executes a pending market order at the current quote plus
// slippage. It is a no-op when the order is no longer pending, so a
// synchronous fill at placement time and a racing monitor tick can never
// both apply.
func (e *Engine) FillMarketOrder(ctx context.Context, orderID string) error {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Terminal() {
		return nil
	}

	q, err := e.quotes.GetQuote(ctx, order.Symbol)
	if err != nil {
		return fmt.Errorf("%w: %s", model.ErrQuoteUnavailable, order.Symbol)
	}

	unlock := e.lockAccount(order.AccountID)
	defer unlock()
	return e.executeFill(ctx, order, q.Price)
}

// executeFill prices and applies a fill for a pending order at basePrice.
// Caller holds the account lock. Losing the idempotency race is not an
// error; the winning fill already applied.
func (e *Engine) executeFill(ctx context.Context, order *model.Order, basePrice float64) error {
	notional := basePrice * float64(order.Quantity)
	slip := pricing.Slippage(notional)
	execPrice := pricing.ExecutionPrice(basePrice, order.Side, slip)
	// Commission on the execution price, not the placement estimate.
	commission := pricing.Commission(order.Quantity, execPrice)

	pos, err := e.store.GetPosition(ctx, order.AccountID, order.Symbol)
	if err != nil {
		return err
	}

	newPos, cashDelta, err := portfolio.ApplyFill(pos, order.AccountID, order.Symbol,
		order.Side, order.Quantity, execPrice, commission, e.now())
	if err != nil {
		// The position shrank between placement and trigger (e.g. a risk
		// exit closed it). Reject rather than leave the order pending.
		won, terr := e.store.TransitionOrder(ctx, order.ID, model.OrderStatusRejected,
			0, 0, 0, "position no longer covers the order")
		if terr != nil {
			return terr
		}
		if won && e.prom != nil {
			e.prom.OrdersRejected.Inc()
		}
		slog.Warn("order rejected at fill", "order_id", order.ID, "err", err)
		return nil
	}

	fill := model.FillApplication{
		AccountID:  order.AccountID,
		OrderID:    order.ID,
		FilledQty:  order.Quantity,
		AvgPrice:   execPrice,
		Commission: commission,
		CashDelta:  cashDelta,
		Position:   newPos,
		Transaction: model.Transaction{
			ID:         id.New(),
			AccountID:  order.AccountID,
			OrderID:    order.ID,
			Symbol:     order.Symbol,
			Type:       order.Side,
			Quantity:   order.Quantity,
			Price:      execPrice,
			Amount:     cashDelta,
			Commission: commission,
			Description: fmt.Sprintf("%s %d %s @ %.2f",
				order.Side, order.Quantity, order.Symbol, execPrice),
			Timestamp: e.now(),
		},
	}
	if newPos == nil {
		fill.DeleteSymbol = order.Symbol
	}

	won, err := e.store.ApplyFill(ctx, fill)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	if e.prom != nil {
		e.prom.OrdersFilled.Inc()
		e.prom.FillSlippageCost.Observe(math.Abs(execPrice-basePrice) * float64(order.Quantity))
	}
	e.pub.PublishFill(ctx, events.FillEvent{
		AccountID:  order.AccountID,
		OrderID:    order.ID,
		Symbol:     order.Symbol,
		Side:       string(order.Side),
		Quantity:   order.Quantity,
		Price:      execPrice,
		Commission: commission,
		At:         e.now(),
	})
	if a, err := e.store.GetAccount(ctx, order.AccountID); err == nil {
		e.pub.PublishAccount(ctx, a)
	}

	slog.Info("order filled",
		"order_id", order.ID, "account_id", order.AccountID,
		"symbol", order.Symbol, "side", order.Side, "qty", order.Quantity,
		"quote", basePrice, "exec", execPrice, "commission", commission)
	return nil
}
