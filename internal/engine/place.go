package engine

import (
	"context"
	"fmt"
	"log/slog"

	"papertrade-enginev1/internal/id"
	"papertrade-enginev1/internal/markethours"
	"papertrade-enginev1/internal/model"
	"papertrade-enginev1/internal/pricing"
)

// PlaceOrderRequest carries the parameters of a new order.
type PlaceOrderRequest struct {
	AccountID string
	Symbol    string
	Type      model.OrderType
	Side      model.OrderSide
	Quantity  int64
	Price     *float64 // limit price; required for limit and stop_limit
	StopPrice *float64 // trigger price; required for stop and stop_limit
	Notes     string
}

// PlaceOrder validates and persists an order. Validation fails fast on the
// first violation. Market orders fill immediately; limit/stop/stop-limit
// orders stay pending for the order monitor.
func (e *Engine) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*model.Order, error) {
	order, err := e.placeOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	if order.Type == model.OrderTypeMarket {
		if err := e.FillMarketOrder(ctx, order.ID); err != nil {
			return nil, err
		}
		// Return the post-fill state.
		return e.store.GetOrder(ctx, order.ID)
	}
	return order, nil
}

// placeOrder runs the validation chain and persists the pending order.
func (e *Engine) placeOrder(ctx context.Context, req PlaceOrderRequest) (*model.Order, error) {
	// 1. Quantity bounds.
	if req.Quantity < MinOrderQty || req.Quantity > MaxOrderQty {
		return nil, fmt.Errorf("%w: quantity must be between %d and %d", model.ErrValidation, MinOrderQty, MaxOrderQty)
	}
	if req.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", model.ErrValidation)
	}
	if req.Side != model.OrderSideBuy && req.Side != model.OrderSideSell {
		return nil, fmt.Errorf("%w: unknown side %q", model.ErrValidation, req.Side)
	}

	// 2. Price requirements by type.
	switch req.Type {
	case model.OrderTypeMarket:
	case model.OrderTypeLimit:
		if req.Price == nil {
			return nil, fmt.Errorf("%w: limit order requires a price", model.ErrValidation)
		}
	case model.OrderTypeStop:
		if req.StopPrice == nil {
			return nil, fmt.Errorf("%w: stop order requires a stop price", model.ErrValidation)
		}
	case model.OrderTypeStopLimit:
		if req.Price == nil || req.StopPrice == nil {
			return nil, fmt.Errorf("%w: stop-limit order requires both price and stop price", model.ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: unknown order type %q", model.ErrValidation, req.Type)
	}

	unlock := e.lockAccount(req.AccountID)
	defer unlock()

	a, err := e.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		return nil, fmt.Errorf("%w: account is not active", model.ErrValidation)
	}

	// 3. A quote must be obtainable.
	q, err := e.quotes.GetQuote(ctx, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrQuoteUnavailable, req.Symbol)
	}

	// 4. Market orders only during the regular session. Pre-market,
	// after-hours and closed sessions still accept resting order types.
	if req.Type == model.OrderTypeMarket && !markethours.IsRegularOpen(e.now()) {
		return nil, fmt.Errorf("%w: market orders require the regular session", model.ErrMarketClosed)
	}

	commission := pricing.Commission(req.Quantity, q.Price)

	// 5. Buying power: estimated cost within 95% of available cash.
	if req.Side == model.OrderSideBuy {
		required := q.Price*float64(req.Quantity) + commission
		if required > a.AvailableCash*buyingPowerFraction {
			return nil, fmt.Errorf("%w: need %.2f, buying power %.2f",
				model.ErrInsufficientFunds, required, a.AvailableCash*buyingPowerFraction)
		}
	}

	// 6. Sells need the shares.
	if req.Side == model.OrderSideSell {
		pos, err := e.store.GetPosition(ctx, req.AccountID, req.Symbol)
		if err != nil {
			return nil, err
		}
		if pos == nil || pos.Quantity < req.Quantity {
			held := int64(0)
			if pos != nil {
				held = pos.Quantity
			}
			return nil, fmt.Errorf("%w: hold %d, selling %d", model.ErrInsufficientShares, held, req.Quantity)
		}
	}

	now := e.now()
	order := &model.Order{
		ID:         id.New(),
		AccountID:  req.AccountID,
		Symbol:     req.Symbol,
		Type:       req.Type,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      req.Price,
		StopPrice:  req.StopPrice,
		Status:     model.OrderStatusPending,
		Commission: commission, // estimate; recomputed on the execution price at fill
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	if e.prom != nil {
		e.prom.OrdersPlaced.WithLabelValues(string(order.Type), string(order.Side)).Inc()
	}
	slog.Info("order placed",
		"order_id", order.ID, "account_id", order.AccountID,
		"symbol", order.Symbol, "type", order.Type, "side", order.Side,
		"qty", order.Quantity)
	return order, nil
}

// CancelOrder cancels a pending order. Cancellation is only permitted while
// the regular session is open.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) error {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Terminal() {
		return fmt.Errorf("%w: order is %s", model.ErrCannotCancel, order.Status)
	}
	if !markethours.IsRegularOpen(e.now()) {
		return fmt.Errorf("%w: cancellation requires the regular session", model.ErrCannotCancel)
	}

	unlock := e.lockAccount(order.AccountID)
	defer unlock()

	won, err := e.store.TransitionOrder(ctx, orderID, model.OrderStatusCancelled, 0, 0, 0, "cancelled by user")
	if err != nil {
		return err
	}
	if !won {
		// Filled or rejected since we looked.
		return fmt.Errorf("%w: order already terminal", model.ErrCannotCancel)
	}

	if e.prom != nil {
		e.prom.OrdersCancelled.Inc()
	}
	slog.Info("order cancelled", "order_id", orderID, "account_id", order.AccountID)
	return nil
}
