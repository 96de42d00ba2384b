package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"botfleet/internal/models"
	"botfleet/pkg/db"
)

// Trades implements the trade repository over postgres.
type Trades struct {
	tm db.TxManager
}

func NewTrades(tm db.TxManager) *Trades {
	return &Trades{tm: tm}
}

const tradeColumns = `id, bot_id, symbol, side, entry_price, quantity, stop_loss, take_profit, order_id, opened_at, exit_price, profit_loss, closed_at`

func scanTrade(row pgx.Row) (*models.Trade, error) {
	var t models.Trade
	err := row.Scan(&t.ID, &t.BotID, &t.Symbol, &t.Side, &t.EntryPrice, &t.Quantity,
		&t.StopLoss, &t.TakeProfit, &t.OrderID, &t.OpenedAt, &t.ExitPrice, &t.ProfitLoss, &t.ClosedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Trades) Create(ctx context.Context, t *models.Trade) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Trades.Create: %w", err)
		}
	}()

	_, err = s.tm.Conn().Exec(ctx,
		`INSERT INTO trades (`+tradeColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		t.ID, t.BotID, t.Symbol, t.Side, t.EntryPrice, t.Quantity,
		t.StopLoss, t.TakeProfit, t.OrderID, t.OpenedAt, t.ExitPrice, t.ProfitLoss, t.ClosedAt)
	return err
}

// Close is a single guarded update so the close fields mutate together
// exactly once. RowsAffected == 0 means the trade is gone or already
// closed (e.g. by a newer run after our lock expired).
func (s *Trades) Close(ctx context.Context, id string, exitPrice, profitLoss float64, closedAt time.Time) (err error) {
	defer func() {
		if err != nil && !errors.Is(err, models.ErrNoOpenPosition) {
			err = fmt.Errorf("Trades.Close: %w", err)
		}
	}()

	tag, err := s.tm.Conn().Exec(ctx,
		`UPDATE trades SET exit_price = $2, profit_loss = $3, closed_at = $4
		 WHERE id = $1 AND closed_at IS NULL`,
		id, exitPrice, profitLoss, closedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNoOpenPosition
	}
	return nil
}

func (s *Trades) GetOpen(ctx context.Context, botID int64) (trade *models.Trade, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Trades.GetOpen: %w", err)
		}
	}()

	t, err := scanTrade(s.tm.Conn().QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 WHERE bot_id = $1 AND closed_at IS NULL
		 ORDER BY opened_at DESC LIMIT 1`, botID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (s *Trades) GetSince(ctx context.Context, botID int64, since time.Time) (trades []*models.Trade, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Trades.GetSince: %w", err)
		}
	}()

	rows, err := s.tm.Conn().Query(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 WHERE bot_id = $1 AND closed_at IS NOT NULL AND closed_at >= $2
		 ORDER BY closed_at`, botID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *Trades) GetAll(ctx context.Context, botID int64) (trades []*models.Trade, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Trades.GetAll: %w", err)
		}
	}()

	rows, err := s.tm.Conn().Query(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 WHERE bot_id = $1 ORDER BY opened_at`, botID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *Trades) Last(ctx context.Context, botID int64) (trade *models.Trade, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Trades.Last: %w", err)
		}
	}()

	t, err := scanTrade(s.tm.Conn().QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 WHERE bot_id = $1 ORDER BY opened_at DESC LIMIT 1`, botID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}
