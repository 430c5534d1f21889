package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"papertrade-enginev1/internal/model"
)

// ApplyFill applies a fill in one transaction: the conditional order
// transition, the cash delta, the position upsert or deletion, the journal
// record and the refreshed account totals. It reports false — with nothing
// applied — when the order had already left pending.
func (s *Store) ApplyFill(ctx context.Context, f model.FillApplication) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if f.OrderID != "" {
		won, err := transitionOrder(ctx, tx, f.OrderID, model.OrderStatusFilled,
			f.FilledQty, f.AvgPrice, f.Commission, "")
		if err != nil {
			return false, err
		}
		if !won {
			return false, nil
		}
	}

	// Cash
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET available_cash = available_cash + ?, updated_at = ? WHERE id = ?`,
		f.CashDelta, time.Now().UnixNano(), f.AccountID)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, model.ErrAccountNotFound
	}

	// Position
	if f.Position != nil {
		p := f.Position
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO positions (`+positionCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.AccountID, p.Symbol, p.Quantity, p.AveragePrice, p.CurrentPrice,
			p.MarketValue, p.UnrealizedPnL, p.UnrealizedPct, p.EntryDate.UnixNano(),
			p.StopLoss, p.TakeProfit, p.TrailingStop, p.PeakPrice); err != nil {
			return false, err
		}
	} else if f.DeleteSymbol != "" {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM positions WHERE account_id = ? AND symbol = ?`,
			f.AccountID, f.DeleteSymbol); err != nil {
			return false, err
		}
	}

	// Journal
	t := f.Transaction
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, order_id, symbol, type,
			quantity, price, amount, commission, description, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.OrderID, t.Symbol, string(t.Type),
		t.Quantity, t.Price, t.Amount, t.Commission, t.Description,
		t.Timestamp.UnixNano()); err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}

	// Totals, recomputed from the rows this transaction just wrote.
	if err := recomputeTotalsTx(ctx, tx, f.AccountID); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// recomputeTotalsTx refreshes the account valuation inside the fill
// transaction so the totals invariant holds at commit.
func recomputeTotalsTx(ctx context.Context, tx *sql.Tx, accountID string) error {
	var cash, initial float64
	err := tx.QueryRowContext(ctx,
		`SELECT available_cash, initial_balance FROM accounts WHERE id = ?`,
		accountID).Scan(&cash, &initial)
	if err != nil {
		return err
	}

	var marketValue float64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(market_value), 0) FROM positions WHERE account_id = ?`,
		accountID).Scan(&marketValue); err != nil {
		return err
	}

	totalValue := cash + marketValue
	totalPnL := totalValue - initial
	pct := 0.0
	if initial != 0 {
		pct = totalPnL / initial * 100
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET total_value = ?, total_pnl = ?, total_pnl_percent = ? WHERE id = ?`,
		totalValue, totalPnL, pct, accountID)
	return err
}
