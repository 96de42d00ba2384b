package service

import (
	"context"
	"time"

	"botfleet/internal/models"
)

// Bots is the bot repository the core consumes. Implementations must
// not return deleted bots from GetActive.
type Bots interface {
	// Create inserts a bot and returns its assigned id.
	Create(ctx context.Context, b *models.Bot) (int64, error)
	GetActive(ctx context.Context) ([]*models.Bot, error)
	Get(ctx context.Context, id int64) (*models.Bot, error)
	// SetActive toggles the active flag, recording reason as the
	// bot's last error ("" clears it).
	SetActive(ctx context.Context, id int64, active bool, reason string) error
	TouchLastCheck(ctx context.Context, id int64, at time.Time) error
	SetLastError(ctx context.Context, id int64, msg string) error
}

// Trades is the trade repository. GetOpen returns (nil, nil) when the
// bot has no open position.
type Trades interface {
	Create(ctx context.Context, t *models.Trade) error
	// Close sets exit price, realized P&L and close time together, and
	// only on a still-open row. Closing an already-closed trade
	// returns models.ErrNoOpenPosition, so a stale pipeline run past
	// its lock TTL cannot double-apply a close.
	Close(ctx context.Context, id string, exitPrice, profitLoss float64, closedAt time.Time) error
	GetOpen(ctx context.Context, botID int64) (*models.Trade, error)
	GetSince(ctx context.Context, botID int64, since time.Time) ([]*models.Trade, error)
	GetAll(ctx context.Context, botID int64) ([]*models.Trade, error)
	Last(ctx context.Context, botID int64) (*models.Trade, error)
}
