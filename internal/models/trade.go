package models

import "time"

// Trade is a position record. Created atomically with order placement;
// the close fields (ExitPrice, ProfitLoss, ClosedAt) are set together
// exactly once.
type Trade struct {
	ID         string     `json:"id"`
	BotID      int64      `json:"bot_id"`
	Symbol     string     `json:"symbol"`
	Side       Side       `json:"side"`
	EntryPrice float64    `json:"entry_price"`
	Quantity   float64    `json:"quantity"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	OrderID    string     `json:"order_id"`
	OpenedAt   time.Time  `json:"opened_at"`
	ExitPrice  float64    `json:"exit_price"`
	ProfitLoss float64    `json:"profit_loss"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

func (t *Trade) IsOpen() bool { return t != nil && t.ClosedAt == nil }

// PnL of the position against the given exit price, sign follows the
// account currency (positive = profit).
func (t *Trade) PnL(exitPrice float64) float64 {
	diff := exitPrice - t.EntryPrice
	if t.Side == SideSell {
		diff = -diff
	}
	return diff * t.Quantity
}

// Position is the broker-side view of an open position, cached in the
// TTL store by the refresh worker.
type Position struct {
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Quantity  float64   `json:"quantity"`
	Entry     float64   `json:"entry"`
	LastPrice float64   `json:"last_price"`
	UpdatedAt time.Time `json:"updated_at"`
}
