package models

import "time"

// DailyStats aggregates trades closed since local midnight.
type DailyStats struct {
	Trades      int     `json:"trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// BotStatus is the control-surface view of one bot, consumed by the
// dashboard/API layer.
type BotStatus struct {
	BotID      int64      `json:"bot_id"`
	IsActive   bool       `json:"is_active"`
	LastCheck  time.Time  `json:"last_check"`
	LastError  string     `json:"last_error,omitempty"`
	LastTrade  *Trade     `json:"last_trade,omitempty"`
	OpenTrade  *Trade     `json:"open_trade,omitempty"`
	DailyStats DailyStats `json:"daily_stats"`
}
