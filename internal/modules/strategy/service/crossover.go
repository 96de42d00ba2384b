package service

import (
	"fmt"
	"math"

	"botfleet/internal/models"
)

// Crossover signals only on the bar where the fast/slow SMA ordering
// flips relative to the previous bar. Equal averages are "no flip",
// so a touch-and-bounce does not fire.
type Crossover struct {
	fast    int
	slow    int
	stopPct float64
	rr      float64
}

func NewCrossover(fast, slow int, stopPct, rr float64) (*Crossover, error) {
	if fast <= 0 || slow <= 0 || fast >= slow {
		return nil, fmt.Errorf("crossover requires 0 < fast < slow, got fast=%d slow=%d", fast, slow)
	}
	return &Crossover{fast: fast, slow: slow, stopPct: stopPct, rr: rr}, nil
}

func (c *Crossover) Name() string { return fmt.Sprintf("crossover(%d,%d)", c.fast, c.slow) }

// MinBars: the slow window on the current bar plus a full slow window
// on the previous bar to compare against.
func (c *Crossover) MinBars() int { return c.slow + 1 }

func (c *Crossover) Evaluate(bars []models.Candle) (models.Signal, bool) {
	if len(bars) < c.MinBars() {
		return models.Signal{}, false
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	prev := closes[:len(closes)-1]

	fastPrev, slowPrev := SMA(prev, c.fast), SMA(prev, c.slow)
	fastCur, slowCur := SMA(closes, c.fast), SMA(closes, c.slow)

	var side models.Side
	switch {
	case fastPrev < slowPrev && fastCur > slowCur:
		side = models.SideBuy
	case fastPrev > slowPrev && fastCur < slowCur:
		side = models.SideSell
	default:
		return models.Signal{}, false
	}

	price := closes[len(closes)-1]
	sl, tp := levels(side, price, c.stopPct, c.rr)
	conf := 0.0
	if slowCur != 0 {
		conf = math.Min(1, math.Abs(fastCur-slowCur)/math.Abs(slowCur)*10)
	}

	return models.Signal{
		Side:       side,
		Price:      price,
		Confidence: conf,
		StopLoss:   sl,
		TakeProfit: tp,
		Reason:     fmt.Sprintf("fast=%.4f slow=%.4f (prev %.4f/%.4f)", fastCur, slowCur, fastPrev, slowPrev),
	}, true
}
