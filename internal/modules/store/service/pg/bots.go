package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"botfleet/internal/models"
	"botfleet/pkg/db"
)

// Bots implements the bot repository over postgres.
type Bots struct {
	tm db.TxManager
}

func NewBots(tm db.TxManager) *Bots {
	return &Bots{tm: tm}
}

const botColumns = `id, owner_id, symbol, timeframe, strategy_id, risk, active, last_check, last_error`

func scanBot(row pgx.Row) (*models.Bot, error) {
	var (
		b         models.Bot
		risk      []byte
		lastCheck *time.Time
	)
	err := row.Scan(&b.ID, &b.OwnerID, &b.Symbol, &b.Timeframe, &b.StrategyID, &risk, &b.Active, &lastCheck, &b.LastError)
	if err != nil {
		return nil, err
	}
	if err := sonic.Unmarshal(risk, &b.Risk); err != nil {
		return nil, fmt.Errorf("decode risk settings: %w", err)
	}
	if lastCheck != nil {
		b.LastCheck = *lastCheck
	}
	return &b, nil
}

func (s *Bots) Create(ctx context.Context, b *models.Bot) (id int64, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Bots.Create: %w", err)
		}
	}()

	risk, err := sonic.Marshal(b.Risk)
	if err != nil {
		return 0, err
	}
	err = s.tm.Conn().QueryRow(ctx,
		`INSERT INTO bots (owner_id, symbol, timeframe, strategy_id, risk, active, last_error)
		 VALUES ($1,$2,$3,$4,$5,$6,'') RETURNING id`,
		b.OwnerID, b.Symbol, b.Timeframe, b.StrategyID, risk, b.Active).Scan(&id)
	if err != nil {
		return 0, err
	}
	b.ID = id
	return id, nil
}

func (s *Bots) GetActive(ctx context.Context) (bots []*models.Bot, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Bots.GetActive: %w", err)
		}
	}()

	rows, err := s.tm.Conn().Query(ctx,
		`SELECT `+botColumns+` FROM bots WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, b)
	}
	return bots, rows.Err()
}

func (s *Bots) Get(ctx context.Context, id int64) (bot *models.Bot, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Bots.Get: %w", err)
		}
	}()

	return scanBot(s.tm.Conn().QueryRow(ctx,
		`SELECT `+botColumns+` FROM bots WHERE id = $1`, id))
}

func (s *Bots) SetActive(ctx context.Context, id int64, active bool, reason string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Bots.SetActive: %w", err)
		}
	}()

	tag, err := s.tm.Conn().Exec(ctx,
		`UPDATE bots SET active = $2, last_error = $3 WHERE id = $1`, id, active, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Bots) TouchLastCheck(ctx context.Context, id int64, at time.Time) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Bots.TouchLastCheck: %w", err)
		}
	}()

	_, err = s.tm.Conn().Exec(ctx,
		`UPDATE bots SET last_check = $2 WHERE id = $1`, id, at)
	return err
}

func (s *Bots) SetLastError(ctx context.Context, id int64, msg string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Bots.SetLastError: %w", err)
		}
	}()

	_, err = s.tm.Conn().Exec(ctx,
		`UPDATE bots SET last_error = $2 WHERE id = $1`, id, msg)
	return err
}
