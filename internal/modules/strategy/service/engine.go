package service

import "botfleet/internal/models"

// Engine evaluates one rule set against a bar series. Implementations
// must be pure: same bars in, same signal out, no side effects.
type Engine interface {
	Name() string
	// MinBars is the shortest series the engine can judge. Shorter
	// input yields no signal, never an error.
	MinBars() int
	Evaluate(bars []models.Candle) (models.Signal, bool)
}

// levels derives stop-loss and take-profit from the entry price, the
// stop distance in percent and the reward multiple.
func levels(side models.Side, price, stopPct, rr float64) (sl, tp float64) {
	if stopPct <= 0 {
		stopPct = 0.5
	}
	if rr <= 0 {
		rr = 3.0
	}
	dist := price * stopPct / 100.0
	if side == models.SideBuy {
		return price - dist, price + rr*dist
	}
	return price + dist, price - rr*dist
}
