package models

import (
	"strconv"
	"time"
)

// Bot is one user-configured strategy instance bound to a symbol and
// a timeframe. The scheduler ticks it once per timeframe period.
type Bot struct {
	ID         int64        `json:"id"`
	OwnerID    int64        `json:"owner_id"`
	Symbol     string       `json:"symbol"`
	Timeframe  Timeframe    `json:"timeframe"`
	StrategyID string       `json:"strategy_id"`
	Risk       RiskSettings `json:"risk"`
	Active     bool         `json:"active"`
	LastCheck  time.Time    `json:"last_check"`
	LastError  string       `json:"last_error"`
}

// RiskSettings is stored as a JSON blob on the bot row.
type RiskSettings struct {
	// RiskPct - equity fraction we are willing to lose at the stop,
	// in percent (1.0 => 1%).
	RiskPct float64 `json:"risk_pct"`
	// MaxPositionSize caps the computed quantity, in units of the
	// traded instrument. 0 disables the cap.
	MaxPositionSize float64 `json:"max_position_size"`
	// MaxOpenPositions caps concurrent positions per bot. The default
	// executor disallows pyramiding regardless, so this only matters
	// for strategies that opt in.
	MaxOpenPositions int `json:"max_open_positions"`
	// MaxDailyLoss - absolute realized-loss cap per local day.
	MaxDailyLoss float64 `json:"max_daily_loss"`
	// MaxDrawdownPct - peak-to-trough equity decline cap, in percent.
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}

// LockKey is the mutual-exclusion key guarding this bot's pipeline.
func (b *Bot) LockKey() string {
	return LockKeyFor(b.ID)
}

func LockKeyFor(botID int64) string {
	return "processing:" + strconv.FormatInt(botID, 10)
}
