package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"papertrade-enginev1/internal/model"
)

const orderCols = `id, account_id, symbol, type, side, quantity, price,
	stop_price, status, filled_qty, avg_price, commission, notes,
	created_at, updated_at`

// CreateOrder inserts a new order row.
func (s *Store) CreateOrder(ctx context.Context, o *model.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.AccountID, o.Symbol, string(o.Type), string(o.Side), o.Quantity,
		o.Price, o.StopPrice, string(o.Status), o.FilledQty, o.AvgPrice,
		o.Commission, o.Notes, o.CreatedAt.UnixNano(), o.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetOrder returns the order or model.ErrOrderNotFound.
func (s *Store) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, model.ErrOrderNotFound
	}
	return o, err
}

// ListOrders returns all orders for an account, newest first.
func (s *Store) ListOrders(ctx context.Context, accountID string) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE account_id = ? ORDER BY created_at DESC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListPendingOrders returns every non-terminal order across all accounts,
// oldest first, for the monitor loop.
func (s *Store) ListPendingOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE status = ? ORDER BY created_at`,
		string(model.OrderStatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

// TransitionOrder conditionally moves a pending order to a terminal status.
// The WHERE status='pending' clause is the idempotency guard: only one
// caller wins, everyone else gets false and must not apply fill effects.
func (s *Store) TransitionOrder(ctx context.Context, id string, to model.OrderStatus, filledQty int64, avgPrice, commission float64, note string) (bool, error) {
	return transitionOrder(ctx, s.db, id, to, filledQty, avgPrice, commission, note)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func transitionOrder(ctx context.Context, db execer, id string, to model.OrderStatus, filledQty int64, avgPrice, commission float64, note string) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE orders SET status = ?, filled_qty = ?, avg_price = ?,
			commission = CASE WHEN ? > 0 THEN ? ELSE commission END,
			notes = CASE WHEN ? != '' THEN ? ELSE notes END,
			updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), filledQty, avgPrice,
		commission, commission,
		note, note,
		time.Now().UnixNano(),
		id, string(model.OrderStatusPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func collectOrders(rows *sql.Rows) ([]model.Order, error) {
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(r rowScanner) (*model.Order, error) {
	var o model.Order
	var typ, side, status string
	var created, updated int64
	err := r.Scan(&o.ID, &o.AccountID, &o.Symbol, &typ, &side, &o.Quantity,
		&o.Price, &o.StopPrice, &status, &o.FilledQty, &o.AvgPrice,
		&o.Commission, &o.Notes, &created, &updated)
	if err != nil {
		return nil, err
	}
	o.Type = model.OrderType(typ)
	o.Side = model.OrderSide(side)
	o.Status = model.OrderStatus(status)
	o.CreatedAt = time.Unix(0, created)
	o.UpdatedAt = time.Unix(0, updated)
	return &o, nil
}
