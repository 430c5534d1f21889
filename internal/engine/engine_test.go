package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade-enginev1/internal/model"
	"papertrade-enginev1/internal/pricing"
	"papertrade-enginev1/internal/quote"
	"papertrade-enginev1/internal/store/sqlite"
)

// regularSession is a Wednesday 10:00 ET, inside the regular session.
var regularSession = time.Date(2026, time.March, 4, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))

// afterHours is the same Wednesday at 17:00 ET.
var afterHours = time.Date(2026, time.March, 4, 17, 0, 0, 0, time.FixedZone("EST", -5*3600))

type testRig struct {
	engine  *Engine
	store   *sqlite.Store
	quotes  *quote.StaticProvider
	now     time.Time
	account *model.Account
}

func newTestRig(t *testing.T, cash float64) *testRig {
	t.Helper()
	s, err := sqlite.New(sqlite.Config{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r := &testRig{store: s, quotes: quote.NewStaticProvider(), now: regularSession}
	r.engine = New(Config{
		Store:          s,
		Quotes:         r.quotes,
		Now:            func() time.Time { return r.now },
		ExecutionDelay: func() time.Duration { return 0 },
	})

	a, err := r.engine.CreateAccount(context.Background(), "owner-1", cash)
	require.NoError(t, err)
	r.account = a
	return r
}

func (r *testRig) buy(t *testing.T, symbol string, qty int64) *model.Order {
	t.Helper()
	o, err := r.engine.PlaceOrder(context.Background(), PlaceOrderRequest{
		AccountID: r.account.ID,
		Symbol:    symbol,
		Type:      model.OrderTypeMarket,
		Side:      model.OrderSideBuy,
		Quantity:  qty,
	})
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusFilled, o.Status)
	return o
}

func TestMarketOrderBuyFills(t *testing.T) {
	r := newTestRig(t, 100_000)
	ctx := context.Background()
	r.quotes.SetPrice("AAPL", 100)

	o := r.buy(t, "AAPL", 10)

	// Slippage is adverse for the buyer.
	assert.Greater(t, o.AvgPrice, 100.0)
	assert.Equal(t, int64(10), o.FilledQty)

	pos, err := r.store.GetPosition(ctx, r.account.ID, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(10), pos.Quantity)
	assert.Equal(t, o.AvgPrice, pos.AveragePrice)

	a, err := r.store.GetAccount(ctx, r.account.ID)
	require.NoError(t, err)
	wantCash := 100_000 - o.AvgPrice*10 - o.Commission
	assert.InDelta(t, wantCash, a.AvailableCash, 1e-9)
	// cash + market value = total value after the in-tx recompute
	assert.InDelta(t, a.AvailableCash+pos.MarketValue, a.TotalValue, 1e-9)

	txs, err := r.store.ListTransactions(ctx, r.account.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, o.ID, txs[0].OrderID)
	assert.Negative(t, txs[0].Amount)
}

func TestMarketOrderOutsideRegularSession(t *testing.T) {
	r := newTestRig(t, 100_000)
	r.quotes.SetPrice("AAPL", 100)
	r.now = afterHours

	_, err := r.engine.PlaceOrder(context.Background(), PlaceOrderRequest{
		AccountID: r.account.ID,
		Symbol:    "AAPL",
		Type:      model.OrderTypeMarket,
		Side:      model.OrderSideBuy,
		Quantity:  10,
	})
	assert.ErrorIs(t, err, model.ErrMarketClosed)
}

func TestPlaceOrderValidation(t *testing.T) {
	r := newTestRig(t, 1_000)
	ctx := context.Background()
	r.quotes.SetPrice("AAPL", 100)

	cases := []struct {
		name string
		req  PlaceOrderRequest
		want error
	}{
		{"zero quantity", PlaceOrderRequest{AccountID: r.account.ID, Symbol: "AAPL",
			Type: model.OrderTypeMarket, Side: model.OrderSideBuy}, model.ErrValidation},
		{"limit without price", PlaceOrderRequest{AccountID: r.account.ID, Symbol: "AAPL",
			Type: model.OrderTypeLimit, Side: model.OrderSideBuy, Quantity: 1}, model.ErrValidation},
		{"no quote", PlaceOrderRequest{AccountID: r.account.ID, Symbol: "NOPE",
			Type: model.OrderTypeMarket, Side: model.OrderSideBuy, Quantity: 1}, model.ErrQuoteUnavailable},
		{"insufficient funds", PlaceOrderRequest{AccountID: r.account.ID, Symbol: "AAPL",
			Type: model.OrderTypeMarket, Side: model.OrderSideBuy, Quantity: 100}, model.ErrInsufficientFunds},
		{"sell without shares", PlaceOrderRequest{AccountID: r.account.ID, Symbol: "AAPL",
			Type: model.OrderTypeMarket, Side: model.OrderSideSell, Quantity: 1}, model.ErrInsufficientShares},
		{"unknown account", PlaceOrderRequest{AccountID: "missing", Symbol: "AAPL",
			Type: model.OrderTypeMarket, Side: model.OrderSideBuy, Quantity: 1}, model.ErrAccountNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.engine.PlaceOrder(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBuyingPowerFraction(t *testing.T) {
	r := newTestRig(t, 10_000)
	r.quotes.SetPrice("AAPL", 100)

	// 96 shares cost 9,600 plus commission: above 95% of 10,000.
	_, err := r.engine.PlaceOrder(context.Background(), PlaceOrderRequest{
		AccountID: r.account.ID, Symbol: "AAPL",
		Type: model.OrderTypeMarket, Side: model.OrderSideBuy, Quantity: 96,
	})
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
}

func TestLimitOrderTriggersOnCross(t *testing.T) {
	r := newTestRig(t, 100_000)
	ctx := context.Background()
	r.quotes.SetPrice("AAPL", 105)

	limit := 100.0
	o, err := r.engine.PlaceOrder(ctx, PlaceOrderRequest{
		AccountID: r.account.ID, Symbol: "AAPL",
		Type: model.OrderTypeLimit, Side: model.OrderSideBuy,
		Quantity: 10, Price: &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, o.Status)

	// Above the limit: nothing happens.
	require.NoError(t, r.engine.CheckPendingOrder(ctx, o))
	got, err := r.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, got.Status)

	// Price crosses the limit: the order fills at the post-delay quote.
	r.quotes.SetPrice("AAPL", 99)
	require.NoError(t, r.engine.CheckPendingOrder(ctx, got))
	got, err = r.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusFilled, got.Status)
	assert.Greater(t, got.AvgPrice, 99.0) // adverse slippage on the buy
}

func TestStopOrderSellTriggersBelowStop(t *testing.T) {
	r := newTestRig(t, 100_000)
	ctx := context.Background()
	r.quotes.SetPrice("AAPL", 100)
	r.buy(t, "AAPL", 10)

	stop := 95.0
	o, err := r.engine.PlaceOrder(ctx, PlaceOrderRequest{
		AccountID: r.account.ID, Symbol: "AAPL",
		Type: model.OrderTypeStop, Side: model.OrderSideSell,
		Quantity: 10, StopPrice: &stop,
	})
	require.NoError(t, err)

	r.quotes.SetPrice("AAPL", 94)
	require.NoError(t, r.engine.CheckPendingOrder(ctx, o))

	got, err := r.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusFilled, got.Status)

	pos, err := r.store.GetPosition(ctx, r.account.ID, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestStopLimitRejectsWhenLimitMissed(t *testing.T) {
	r := newTestRig(t, 100_000)
	ctx := context.Background()
	r.quotes.SetPrice("AAPL", 100)
	r.buy(t, "AAPL", 10)

	// Sell stop at 95 with a limit at 94: if the stop triggers but the
	// quote is already below the limit, the order rejects.
	stop, limit := 95.0, 94.0
	o, err := r.engine.PlaceOrder(ctx, PlaceOrderRequest{
		AccountID: r.account.ID, Symbol: "AAPL",
		Type: model.OrderTypeStopLimit, Side: model.OrderSideSell,
		Quantity: 10, Price: &limit, StopPrice: &stop,
	})
	require.NoError(t, err)

	r.quotes.SetPrice("AAPL", 91)
	require.NoError(t, r.engine.CheckPendingOrder(ctx, o))

	got, err := r.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusRejected, got.Status)
	assert.Contains(t, got.Notes, "limit")

	// The position is untouched.
	pos, err := r.store.GetPosition(ctx, r.account.ID, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(10), pos.Quantity)
}

func TestStopLimitFillsWhenLimitHolds(t *testing.T) {
	r := newTestRig(t, 100_000)
	ctx := context.Background()
	r.quotes.SetPrice("AAPL", 100)
	r.buy(t, "AAPL", 10)

	stop, limit := 95.0, 90.0
	o, err := r.engine.PlaceOrder(ctx, PlaceOrderRequest{
		AccountID: r.account.ID, Symbol: "AAPL",
		Type: model.OrderTypeStopLimit, Side: model.OrderSideSell,
		Quantity: 10, Price: &limit, StopPrice: &stop,
	})
	require.NoError(t, err)

	r.quotes.SetPrice("AAPL", 94)
	require.NoError(t, r.engine.CheckPendingOrder(ctx, o))

	got, err := r.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusFilled, got.Status)
}

func TestPendingOrderDefersOnQuoteFailure(t *testing.T) {
	r := newTestRig(t, 100_000)
	ctx := context.Background()
	r.quotes.SetPrice("AAPL", 100)

	limit := 95.0
	o, err := r.engine.PlaceOrder(ctx, PlaceOrderRequest{
		AccountID: r.account.ID, Symbol: "AAPL",
		Type: model.OrderTypeLimit, Side: model.OrderSideBuy,
		Quantity: 10, Price: &limit,
	})
	require.NoError(t, err)

	r.quotes.Remove("AAPL")
	require.NoError(t, r.engine.CheckPendingOrder(ctx, o))

	got, err := r.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, got.Status)
}

func TestDoubleFillIsIdempotent(t *testing.T) {
	r := newTestRig(t, 100_000)
	ctx := context.Background()
	r.quotes.SetPrice("AAPL", 100)

	o := r.buy(t, "AAPL", 10)

	// A racing monitor tick retrying the same order applies nothing.
	require.NoError(t, r.engine.FillMarketOrder(ctx, o.ID))

	pos, err := r.store.GetPosition(ctx, r.account.ID, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(10), pos.Quantity)

	txs, err := r.store.ListTransactions(ctx, r.account.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestCancelOrder(t *testing.T) {
	r := newTestRig(t, 100_000)
	ctx := context.Background()
	r.quotes.SetPrice("AAPL", 100)

	limit := 90.0
	o, err := r.engine.PlaceOrder(ctx, PlaceOrderRequest{
		AccountID: r.account.ID, Symbol: "AAPL",
		Type: model.OrderTypeLimit, Side: model.OrderSideBuy,
		Quantity: 10, Price: &limit,
	})
	require.NoError(t, err)

	require.NoError(t, r.engine.CancelOrder(ctx, o.ID))
	got, err := r.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)

	// Terminal orders cannot be cancelled again.
	assert.ErrorIs(t, r.engine.CancelOrder(ctx, o.ID), model.ErrCannotCancel)
}

func TestCancelOrderOutsideRegularSession(t *testing.T) {
	r := newTestRig(t, 100_000)
	ctx := context.Background()
	r.quotes.SetPrice("AAPL", 100)

	limit := 90.0
	o, err := r.engine.PlaceOrder(ctx, PlaceOrderRequest{
		AccountID: r.account.ID, Symbol: "AAPL",
		Type: model.OrderTypeLimit, Side: model.OrderSideBuy,
		Quantity: 10, Price: &limit,
	})
	require.NoError(t, err)

	r.now = afterHours
	assert.ErrorIs(t, r.engine.CancelOrder(ctx, o.ID), model.ErrCannotCancel)
}

func TestSlippageAndCommissionOnFill(t *testing.T) {
	r := newTestRig(t, 1_000_000)
	r.quotes.SetPrice("BRK", 400)

	// 500 * 400 = 200,000 notional: the large slippage tier.
	o := r.buy(t, "BRK", 500)

	wantExec := pricing.ExecutionPrice(400, model.OrderSideBuy, pricing.SlippageLarge)
	assert.InDelta(t, wantExec, o.AvgPrice, 1e-9)
	assert.Equal(t, pricing.Commission(500, wantExec), o.Commission)
}
