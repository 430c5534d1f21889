package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"papertrade-enginev1/internal/model"
)

const positionCols = `account_id, symbol, quantity, average_price, current_price,
	market_value, unrealized_pnl, unrealized_pnl_percent, entry_date,
	stop_loss, take_profit, trailing_stop, peak_price`

// GetPosition returns (nil, nil) when the account holds no position in the
// symbol.
func (s *Store) GetPosition(ctx context.Context, accountID, symbol string) (*model.Position, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+positionCols+` FROM positions WHERE account_id = ? AND symbol = ?`,
		accountID, symbol)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ListPositions returns all open positions for an account.
func (s *Store) ListPositions(ctx context.Context, accountID string) ([]model.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+positionCols+` FROM positions WHERE account_id = ? ORDER BY symbol`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPositions(rows)
}

// ListAllPositions returns every open position across all accounts.
func (s *Store) ListAllPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+positionCols+` FROM positions ORDER BY account_id, symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPositions(rows)
}

// SavePosition upserts a position row.
func (s *Store) SavePosition(ctx context.Context, p *model.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO positions (`+positionCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.AccountID, p.Symbol, p.Quantity, p.AveragePrice, p.CurrentPrice,
		p.MarketValue, p.UnrealizedPnL, p.UnrealizedPct, p.EntryDate.UnixNano(),
		p.StopLoss, p.TakeProfit, p.TrailingStop, p.PeakPrice)
	return err
}

// DeletePosition removes a closed position.
func (s *Store) DeletePosition(ctx context.Context, accountID, symbol string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM positions WHERE account_id = ? AND symbol = ?`, accountID, symbol)
	return err
}

// UpdatePositionPrice writes the repriced market fields and the ratcheted
// peak.
func (s *Store) UpdatePositionPrice(ctx context.Context, p *model.Position) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE positions SET current_price = ?, market_value = ?,
			unrealized_pnl = ?, unrealized_pnl_percent = ?, peak_price = ?
		WHERE account_id = ? AND symbol = ?`,
		p.CurrentPrice, p.MarketValue, p.UnrealizedPnL, p.UnrealizedPct,
		p.PeakPrice, p.AccountID, p.Symbol)
	return err
}

// UpdatePositionRisk sets risk parameters on an open position. The peak seeds
// from the current price so a trailing stop starts trailing from here, not
// from zero.
func (s *Store) UpdatePositionRisk(ctx context.Context, accountID, symbol string, stopLoss, takeProfit, trailingStop *float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions SET stop_loss = ?, take_profit = ?, trailing_stop = ?,
			peak_price = MAX(peak_price, current_price)
		WHERE account_id = ? AND symbol = ?`,
		stopLoss, takeProfit, trailingStop, accountID, symbol)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: no open position in %s", model.ErrValidation, symbol)
	}
	return nil
}

func collectPositions(rows *sql.Rows) ([]model.Position, error) {
	var out []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPosition(r rowScanner) (*model.Position, error) {
	var p model.Position
	var entry int64
	err := r.Scan(&p.AccountID, &p.Symbol, &p.Quantity, &p.AveragePrice,
		&p.CurrentPrice, &p.MarketValue, &p.UnrealizedPnL, &p.UnrealizedPct,
		&entry, &p.StopLoss, &p.TakeProfit, &p.TrailingStop, &p.PeakPrice)
	if err != nil {
		return nil, err
	}
	p.EntryDate = time.Unix(0, entry)
	return &p, nil
}
