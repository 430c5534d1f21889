// Package sqlite persists accounts, positions, orders and transactions.
// It is the single mutable store behind the engine; fills are applied as one
// transaction so cash, positions, the journal and account totals never
// diverge.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"papertrade-enginev1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/paper.db"
}

// Store is a SQLite-backed implementation of model.Store.
type Store struct {
	db *sql.DB
}

var _ model.Store = (*Store)(nil)

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database, enables WAL mode and creates the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer: the engine serializes mutations per account and SQLite
	// serializes the rest.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id                 TEXT PRIMARY KEY,
			owner_id           TEXT    NOT NULL,
			initial_balance    REAL    NOT NULL,
			available_cash     REAL    NOT NULL,
			total_value        REAL    NOT NULL,
			total_pnl          REAL    NOT NULL,
			total_pnl_percent  REAL    NOT NULL,
			is_active          INTEGER NOT NULL DEFAULT 1,
			created_at         INTEGER NOT NULL,
			updated_at         INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS positions (
			account_id             TEXT    NOT NULL,
			symbol                 TEXT    NOT NULL,
			quantity               INTEGER NOT NULL,
			average_price          REAL    NOT NULL,
			current_price          REAL    NOT NULL,
			market_value           REAL    NOT NULL,
			unrealized_pnl         REAL    NOT NULL,
			unrealized_pnl_percent REAL    NOT NULL,
			entry_date             INTEGER NOT NULL,
			stop_loss              REAL,
			take_profit            REAL,
			trailing_stop          REAL,
			peak_price             REAL    NOT NULL DEFAULT 0,
			PRIMARY KEY (account_id, symbol)
		);

		CREATE TABLE IF NOT EXISTS orders (
			id          TEXT PRIMARY KEY,
			account_id  TEXT    NOT NULL,
			symbol      TEXT    NOT NULL,
			type        TEXT    NOT NULL,
			side        TEXT    NOT NULL,
			quantity    INTEGER NOT NULL,
			price       REAL,
			stop_price  REAL,
			status      TEXT    NOT NULL,
			filled_qty  INTEGER NOT NULL DEFAULT 0,
			avg_price   REAL    NOT NULL DEFAULT 0,
			commission  REAL    NOT NULL DEFAULT 0,
			notes       TEXT    NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_orders_account ON orders(account_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_orders_status  ON orders(status);

		CREATE TABLE IF NOT EXISTS transactions (
			id          TEXT PRIMARY KEY,
			account_id  TEXT    NOT NULL,
			order_id    TEXT    NOT NULL DEFAULT '',
			symbol      TEXT    NOT NULL,
			type        TEXT    NOT NULL,
			quantity    INTEGER NOT NULL,
			price       REAL    NOT NULL,
			amount      REAL    NOT NULL,
			commission  REAL    NOT NULL,
			description TEXT    NOT NULL DEFAULT '',
			ts          INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, ts);
	`)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ── Accounts ──

// CreateAccount inserts a new account row.
func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	if a.InitialBalance <= 0 {
		return fmt.Errorf("%w: initial balance must be positive", model.ErrValidation)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, owner_id, initial_balance, available_cash,
			total_value, total_pnl, total_pnl_percent, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.InitialBalance, a.AvailableCash,
		a.TotalValue, a.TotalPnL, a.TotalPnLPercent, boolToInt(a.IsActive),
		a.CreatedAt.UnixNano(), a.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccount returns the account or model.ErrAccountNotFound.
func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, initial_balance, available_cash, total_value,
			total_pnl, total_pnl_percent, is_active, created_at, updated_at
		FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// ListAccounts returns all accounts.
func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, initial_balance, available_cash, total_value,
			total_pnl, total_pnl_percent, is_active, created_at, updated_at
		FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpdateAccountTotals writes recomputed valuation fields.
func (s *Store) UpdateAccountTotals(ctx context.Context, id string, cash, totalValue, totalPnL, totalPnLPct float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET available_cash = ?, total_value = ?, total_pnl = ?,
			total_pnl_percent = ?, updated_at = ?
		WHERE id = ?`,
		cash, totalValue, totalPnL, totalPnLPct, time.Now().UnixNano(), id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

// DeleteAccount removes an account and cascades orders and transactions.
// Open positions block deletion.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var open int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM positions WHERE account_id = ?`, id).Scan(&open); err != nil {
		return err
	}
	if open > 0 {
		return model.ErrAccountHasPositions
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrAccountNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE account_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE account_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ResetAccount restores the account to its initial state: cash back to the
// initial balance, zeroed totals, positions and transactions cleared, pending
// orders cancelled.
func (s *Store) ResetAccount(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET available_cash = initial_balance,
			total_value = initial_balance, total_pnl = 0,
			total_pnl_percent = 0, updated_at = ?
		WHERE id = ?`, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrAccountNotFound
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, notes = 'account reset', updated_at = ?
		WHERE account_id = ? AND status = ?`,
		string(model.OrderStatusCancelled), now, id,
		string(model.OrderStatusPending)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE account_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE account_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (*model.Account, error) {
	var a model.Account
	var active int
	var created, updated int64
	err := r.Scan(&a.ID, &a.OwnerID, &a.InitialBalance, &a.AvailableCash,
		&a.TotalValue, &a.TotalPnL, &a.TotalPnLPercent, &active, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, model.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	a.IsActive = active != 0
	a.CreatedAt = time.Unix(0, created)
	a.UpdatedAt = time.Unix(0, updated)
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
