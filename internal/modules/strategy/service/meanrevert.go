package service

import (
	"fmt"
	"math"

	"botfleet/internal/models"
)

// MeanRevert trades threshold breaks of a bounded oscillator (RSI):
// buy when oversold, sell when overbought.
type MeanRevert struct {
	period     int
	overbought float64
	oversold   float64
	stopPct    float64
	rr         float64
}

func NewMeanRevert(period int, overbought, oversold, stopPct, rr float64) (*MeanRevert, error) {
	if period <= 0 {
		return nil, fmt.Errorf("meanrevert requires period > 0, got %d", period)
	}
	if oversold >= overbought {
		return nil, fmt.Errorf("meanrevert requires oversold < overbought, got %.1f/%.1f", oversold, overbought)
	}
	return &MeanRevert{period: period, overbought: overbought, oversold: oversold, stopPct: stopPct, rr: rr}, nil
}

func (m *MeanRevert) Name() string { return fmt.Sprintf("meanrevert(rsi%d)", m.period) }

func (m *MeanRevert) MinBars() int { return m.period + 1 }

func (m *MeanRevert) Evaluate(bars []models.Candle) (models.Signal, bool) {
	if len(bars) < m.MinBars() {
		return models.Signal{}, false
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	rsi, ok := RSI(closes, m.period)
	if !ok {
		return models.Signal{}, false
	}

	var side models.Side
	switch {
	case rsi <= m.oversold:
		side = models.SideBuy
	case rsi >= m.overbought:
		side = models.SideSell
	default:
		return models.Signal{}, false
	}

	price := closes[len(closes)-1]
	sl, tp := levels(side, price, m.stopPct, m.rr)

	// Deeper into the band, stronger the signal.
	conf := 0.0
	if side == models.SideBuy {
		conf = math.Min(1, (m.oversold-rsi)/m.oversold+0.5)
	} else {
		conf = math.Min(1, (rsi-m.overbought)/(100-m.overbought)+0.5)
	}

	return models.Signal{
		Side:       side,
		Price:      price,
		Confidence: conf,
		StopLoss:   sl,
		TakeProfit: tp,
		Reason:     fmt.Sprintf("rsi=%.2f ob=%.1f os=%.1f", rsi, m.overbought, m.oversold),
	}, true
}
