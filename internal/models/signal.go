package models

// Side of a trade: "BUY"/"SELL" or empty when a strategy stays flat.
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the reversing side, SideNone for SideNone.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	}
	return SideNone
}

// Signal is a directional recommendation produced by one strategy
// evaluation. It is transient: nothing persists it unless it turns
// into a trade.
type Signal struct {
	Symbol     string
	Timeframe  Timeframe
	Side       Side
	Price      float64
	Confidence float64
	StopLoss   float64
	TakeProfit float64
	StrategyID string
	Reason     string
}
