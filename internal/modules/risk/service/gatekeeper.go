package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"botfleet/internal/models"
	storesvc "botfleet/internal/modules/store/service"
)

// CalcQuantity sizes a position so the loss at the stop equals the
// configured risk fraction of the balance:
//
//	quantity = (balance × risk%) / |entry − stop|
func CalcQuantity(balance, riskPct, entryPrice, stopLossPrice float64) (float64, error) {
	dist := math.Abs(entryPrice - stopLossPrice)
	if dist == 0 {
		return 0, models.ErrZeroStopDistance
	}
	if balance <= 0 {
		return 0, errors.Errorf("balance <= 0 (%.2f)", balance)
	}
	if riskPct <= 0 {
		return 0, errors.Errorf("risk pct <= 0 (%.2f)", riskPct)
	}
	return balance * (riskPct / 100.0) / dist, nil
}

// Gatekeeper validates candidate trades against the bot's risk limits.
// A breach verdict means the bot must be emergency-stopped, not just
// this trade skipped.
type Gatekeeper struct {
	trades storesvc.Trades
	now    func() time.Time
}

func NewGatekeeper(trades storesvc.Trades) *Gatekeeper {
	return &Gatekeeper{trades: trades, now: time.Now}
}

// SetClock replaces the time source, tests only.
func (g *Gatekeeper) SetClock(now func() time.Time) { g.now = now }

func localMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// Validate runs the ceilings in order: position size, daily loss,
// drawdown. The first rejection wins.
func (g *Gatekeeper) Validate(ctx context.Context, bot *models.Bot, sig models.Signal, balance float64) (models.Verdict, error) {
	qty, err := CalcQuantity(balance, bot.Risk.RiskPct, sig.Price, sig.StopLoss)
	if errors.Is(err, models.ErrZeroStopDistance) {
		// Sizing is impossible, but nothing was violated: plain reject.
		return models.Reject("zero stop-loss distance", false), nil
	}
	if err != nil {
		return models.Verdict{}, err
	}

	// (a) position-size ceiling
	if limit := bot.Risk.MaxPositionSize; limit > 0 && qty > limit {
		return models.Reject(fmt.Sprintf("position size %.4f exceeds max %.4f", qty, limit), true), nil
	}

	// (b) daily loss ceiling
	if limit := bot.Risk.MaxDailyLoss; limit > 0 {
		today, err := g.trades.GetSince(ctx, bot.ID, localMidnight(g.now()))
		if err != nil {
			return models.Verdict{}, errors.Wrap(err, "load daily trades")
		}
		realized := 0.0
		for _, t := range today {
			realized += t.ProfitLoss
		}
		if realized < 0 && -realized >= limit {
			return models.Reject(fmt.Sprintf("daily loss %.2f at or over cap %.2f", -realized, limit), true), nil
		}
	}

	// (c) drawdown ceiling
	if limit := bot.Risk.MaxDrawdownPct; limit > 0 {
		history, err := g.trades.GetAll(ctx, bot.ID)
		if err != nil {
			return models.Verdict{}, errors.Wrap(err, "load trade history")
		}
		if dd := drawdownPct(history); dd >= limit {
			return models.Reject(fmt.Sprintf("drawdown %.2f%% at or over cap %.2f%%", dd, limit), true), nil
		}
	}

	return models.Approve(qty), nil
}

// drawdownPct walks the realized equity curve in trade order and
// returns the current decline from its running peak, in percent.
// 0 until the curve ever had a positive peak.
func drawdownPct(history []*models.Trade) float64 {
	equity, peak := 0.0, 0.0
	for _, t := range history {
		if t.ClosedAt == nil {
			continue
		}
		equity += t.ProfitLoss
		if equity > peak {
			peak = equity
		}
	}
	if peak <= 0 {
		return 0
	}
	return (peak - equity) / peak * 100.0
}
