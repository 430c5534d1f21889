package model

import (
	"context"
)

// ── Port Interfaces ──
// These interfaces decouple the engine from concrete collaborators
// (market data source, SQLite persistence). Each implementation satisfies
// one or more of these interfaces.

// QuoteProvider returns the best-available current quote for a symbol.
// Implementations must return ErrQuoteUnavailable (possibly wrapped) when no
// quote can be obtained; the engine treats that as "defer", never as fatal.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

// AccountStore persists accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *Account) error

	// GetAccount returns ErrAccountNotFound if no such account exists.
	GetAccount(ctx context.Context, id string) (*Account, error)

	ListAccounts(ctx context.Context) ([]Account, error)

	// UpdateAccountTotals writes the aggregator's recomputed valuation.
	UpdateAccountTotals(ctx context.Context, id string, cash, totalValue, totalPnL, totalPnLPct float64) error

	// DeleteAccount removes an account and cascades its orders and
	// transactions. It returns ErrAccountHasPositions while any position
	// remains open.
	DeleteAccount(ctx context.Context, id string) error

	// ResetAccount restores the account to its initial state: cash back to
	// the initial balance, positions and transactions cleared, pending
	// orders cancelled.
	ResetAccount(ctx context.Context, id string) error
}

// PositionStore persists positions keyed by (account, symbol).
type PositionStore interface {
	// GetPosition returns (nil, nil) when the account holds no position in
	// the symbol.
	GetPosition(ctx context.Context, accountID, symbol string) (*Position, error)

	ListPositions(ctx context.Context, accountID string) ([]Position, error)

	// ListAllPositions returns every open position across all accounts,
	// for the price-refresh loop.
	ListAllPositions(ctx context.Context) ([]Position, error)

	SavePosition(ctx context.Context, p *Position) error

	DeletePosition(ctx context.Context, accountID, symbol string) error

	// UpdatePositionPrice writes the repriced market fields and the peak.
	UpdatePositionPrice(ctx context.Context, p *Position) error

	// UpdatePositionRisk sets the risk parameters on an open position.
	UpdatePositionRisk(ctx context.Context, accountID, symbol string, stopLoss, takeProfit, trailingStop *float64) error
}

// OrderStore persists orders and enforces their state machine.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *Order) error

	// GetOrder returns ErrOrderNotFound if no such order exists.
	GetOrder(ctx context.Context, id string) (*Order, error)

	ListOrders(ctx context.Context, accountID string) ([]Order, error)

	// ListPendingOrders returns every non-terminal order, for the monitor loop.
	ListPendingOrders(ctx context.Context) ([]Order, error)

	// TransitionOrder conditionally moves a pending order to a terminal
	// status. It reports false when the order was not pending anymore —
	// the caller lost the race and must not apply any fill effects.
	TransitionOrder(ctx context.Context, id string, to OrderStatus, filledQty int64, avgPrice, commission float64, note string) (bool, error)
}

// TransactionStore persists the append-only transaction journal.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, accountID string) ([]Transaction, error)
}

// FillApplication is the atomic unit a fill applies to storage: the order
// transition, the cash delta, the position upsert or deletion, the journal
// record and the refreshed account totals commit together or not at all.
type FillApplication struct {
	AccountID string

	// OrderID of the pending order being filled. Empty for risk exits,
	// which have no originating order.
	OrderID    string
	FilledQty  int64
	AvgPrice   float64
	Commission float64

	// CashDelta is the signed change to available cash, commission included.
	CashDelta float64

	// Position is the post-fill position. Nil means the position closed and
	// must be deleted; DeleteSymbol names it.
	Position     *Position
	DeleteSymbol string

	Transaction Transaction
}

// FillStore applies fills atomically.
type FillStore interface {
	// ApplyFill applies a FillApplication in a single transaction and
	// recomputes the account totals from the written rows. It reports false
	// (and applies nothing) when the order transition lost the idempotency
	// race.
	ApplyFill(ctx context.Context, f FillApplication) (bool, error)
}

// Store is the full persistence surface the engine consumes.
type Store interface {
	AccountStore
	PositionStore
	OrderStore
	TransactionStore
	FillStore
}
