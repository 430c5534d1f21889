// Package engine implements the paper-trading order engine: order
// validation and placement, simulated fills, pending-order triggers, risk
// exits and account upkeep.
//
// The engine owns all mutation of account state. Every mutating path runs
// under a per-account lock, and order fills additionally pass through the
// store's conditional pending→terminal transition, so a fill can only ever
// be applied once even when the synchronous order path races the background
// monitor.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"papertrade-enginev1/internal/events"
	"papertrade-enginev1/internal/id"
	"papertrade-enginev1/internal/markethours"
	"papertrade-enginev1/internal/metrics"
	"papertrade-enginev1/internal/model"
	"papertrade-enginev1/internal/portfolio"
	"papertrade-enginev1/internal/risk"
)

// Order quantity bounds.
const (
	MinOrderQty = 1
	MaxOrderQty = 1_000_000
)

// Fraction of available cash a buy may consume, including commission.
const buyingPowerFraction = 0.95

// Execution delay bounds for triggered orders.
const (
	minExecDelay = 100 * time.Millisecond
	maxExecDelay = 500 * time.Millisecond
)

// Config wires the engine's collaborators.
type Config struct {
	Store  model.Store
	Quotes model.QuoteProvider
	Events *events.Publisher
	Prom   *metrics.Metrics

	// Now is the clock; nil means time.Now. Injected by tests to pin the
	// market session.
	Now func() time.Time

	// ExecutionDelay models latency between trigger detection and the final
	// re-quote. Nil means a randomized 100–500ms; tests inject zero.
	ExecutionDelay func() time.Duration
}

// Engine is the paper-trading execution engine.
type Engine struct {
	store  model.Store
	quotes model.QuoteProvider
	pub    *events.Publisher
	prom   *metrics.Metrics

	now   func() time.Time
	delay func() time.Duration

	// accountLocks serializes mutations per account. Accounts are
	// independent units of work and may be processed concurrently.
	accountLocks sync.Map // accountID -> *sync.Mutex
}

// New creates an Engine from the given Config.
func New(cfg Config) *Engine {
	e := &Engine{
		store:  cfg.Store,
		quotes: cfg.Quotes,
		pub:    cfg.Events,
		prom:   cfg.Prom,
		now:    cfg.Now,
		delay:  cfg.ExecutionDelay,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.delay == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		var mu sync.Mutex
		e.delay = func() time.Duration {
			mu.Lock()
			defer mu.Unlock()
			return minExecDelay + time.Duration(rng.Int63n(int64(maxExecDelay-minExecDelay)))
		}
	}
	return e
}

func (e *Engine) lockAccount(accountID string) func() {
	v, _ := e.accountLocks.LoadOrStore(accountID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// MarketSession returns the current session window.
func (e *Engine) MarketSession() model.MarketSession {
	return markethours.Snapshot(e.now())
}

// CreateAccount opens a paper account funded with initialBalance.
func (e *Engine) CreateAccount(ctx context.Context, ownerID string, initialBalance float64) (*model.Account, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", model.ErrValidation)
	}
	if initialBalance <= 0 {
		return nil, fmt.Errorf("%w: initial balance must be positive", model.ErrValidation)
	}
	now := e.now()
	a := &model.Account{
		ID:             id.New(),
		OwnerID:        ownerID,
		InitialBalance: initialBalance,
		AvailableCash:  initialBalance,
		TotalValue:     initialBalance,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetAccount returns the account by id.
func (e *Engine) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	return e.store.GetAccount(ctx, accountID)
}

// DeleteAccount removes an account. Open positions block deletion; sell
// them to zero first.
func (e *Engine) DeleteAccount(ctx context.Context, accountID string) error {
	unlock := e.lockAccount(accountID)
	defer unlock()
	return e.store.DeleteAccount(ctx, accountID)
}

// ResetAccount wipes the account back to its initial balance: positions and
// transactions cleared, pending orders cancelled.
func (e *Engine) ResetAccount(ctx context.Context, accountID string) error {
	unlock := e.lockAccount(accountID)
	defer unlock()

	if err := e.store.ResetAccount(ctx, accountID); err != nil {
		return err
	}
	if a, err := e.store.GetAccount(ctx, accountID); err == nil {
		e.pub.PublishAccount(ctx, a)
	}
	return nil
}

// AddRiskManagement attaches stop-loss / take-profit / trailing-stop rules
// to an open position. Nil parameters leave the corresponding rule unset.
func (e *Engine) AddRiskManagement(ctx context.Context, accountID, symbol string, stopLoss, takeProfit, trailingStop *float64) error {
	if err := risk.ValidateParams(stopLoss, takeProfit, trailingStop); err != nil {
		return fmt.Errorf("%w: invalid risk parameters", model.ErrValidation)
	}
	unlock := e.lockAccount(accountID)
	defer unlock()

	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return err
	}
	return e.store.UpdatePositionRisk(ctx, accountID, symbol, stopLoss, takeProfit, trailingStop)
}

// recomputeTotals reloads the account and its positions, recomputes the
// valuation and persists it. Caller holds the account lock.
func (e *Engine) recomputeTotals(ctx context.Context, accountID string) error {
	a, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	positions, err := e.store.ListPositions(ctx, accountID)
	if err != nil {
		return err
	}
	portfolio.Recompute(a, positions)
	if err := e.store.UpdateAccountTotals(ctx, a.ID, a.AvailableCash, a.TotalValue, a.TotalPnL, a.TotalPnLPercent); err != nil {
		return err
	}
	e.pub.PublishAccount(ctx, a)
	return nil
}
