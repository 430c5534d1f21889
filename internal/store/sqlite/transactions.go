package sqlite

import (
	"context"
	"fmt"
	"time"

	"papertrade-enginev1/internal/model"
)

// CreateTransaction appends a journal record outside a fill (e.g. account
// funding adjustments). Fill-path records go through ApplyFill.
func (s *Store) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, order_id, symbol, type,
			quantity, price, amount, commission, description, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.OrderID, t.Symbol, string(t.Type),
		t.Quantity, t.Price, t.Amount, t.Commission, t.Description,
		t.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns an account's journal, newest first.
func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, order_id, symbol, type, quantity, price,
			amount, commission, description, ts
		FROM transactions WHERE account_id = ? ORDER BY ts DESC, id DESC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var typ string
		var ts int64
		if err := rows.Scan(&t.ID, &t.AccountID, &t.OrderID, &t.Symbol, &typ,
			&t.Quantity, &t.Price, &t.Amount, &t.Commission, &t.Description, &ts); err != nil {
			return nil, err
		}
		t.Type = model.OrderSide(typ)
		t.Timestamp = time.Unix(0, ts)
		out = append(out, t)
	}
	return out, rows.Err()
}
