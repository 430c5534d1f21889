package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"papertrade-enginev1/internal/model"
)

// CheckPendingOrder evaluates one pending order's trigger condition against
// the current quote and fills it when triggered. A quote failure defers the
// order to the next monitor cycle; it never errors out of the loop.
//
// Between trigger detection and the final re-quote a short execution delay
// elapses, so the fill uses the post-delay price, not the price that caused
// the trigger.
func (e *Engine) CheckPendingOrder(ctx context.Context, order *model.Order) error {
	if order.Terminal() {
		return nil
	}

	// A pending market order means a fill attempt failed earlier; retry it
	// rather than leaving it non-terminal forever.
	if order.Type == model.OrderTypeMarket {
		return e.FillMarketOrder(ctx, order.ID)
	}

	q, err := e.quotes.GetQuote(ctx, order.Symbol)
	if err != nil {
		if e.prom != nil {
			e.prom.QuoteFailures.Inc()
		}
		return nil // defer to next cycle
	}

	if !triggered(order, q.Price) {
		return nil
	}

	// Execution latency: the market moves between detection and fill.
	if d := e.delay(); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}

	fresh, err := e.quotes.GetQuote(ctx, order.Symbol)
	if err != nil {
		if e.prom != nil {
			e.prom.QuoteFailures.Inc()
		}
		return nil // defer; the trigger will be re-detected next cycle
	}

	// Stop-limit: the stop armed the order, but the limit must also hold on
	// the fresh quote. If it does not, the order rejects instead of
	// lingering pending.
	if order.Type == model.OrderTypeStopLimit && !limitSatisfied(order, fresh.Price) {
		unlock := e.lockAccount(order.AccountID)
		defer unlock()

		note := fmt.Sprintf("stop triggered but limit %.2f missed at %.2f", *order.Price, fresh.Price)
		won, err := e.store.TransitionOrder(ctx, order.ID, model.OrderStatusRejected, 0, 0, 0, note)
		if err != nil {
			return err
		}
		if won {
			if e.prom != nil {
				e.prom.OrdersRejected.Inc()
			}
			slog.Info("stop-limit rejected", "order_id", order.ID, "note", note)
		}
		return nil
	}

	unlock := e.lockAccount(order.AccountID)
	defer unlock()
	return e.executeFill(ctx, order, fresh.Price)
}

// triggered implements the trigger table for resting orders.
func triggered(o *model.Order, price float64) bool {
	switch o.Type {
	case model.OrderTypeLimit:
		if o.Side == model.OrderSideBuy {
			return price <= *o.Price
		}
		return price >= *o.Price
	case model.OrderTypeStop, model.OrderTypeStopLimit:
		if o.Side == model.OrderSideBuy {
			return price >= *o.StopPrice
		}
		return price <= *o.StopPrice
	default:
		return false
	}
}

// limitSatisfied checks the limit leg of a stop-limit against a price.
func limitSatisfied(o *model.Order, price float64) bool {
	if o.Side == model.OrderSideBuy {
		return price <= *o.Price
	}
	return price >= *o.Price
}
