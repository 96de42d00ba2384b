package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"botfleet/internal/models"
	schedsvc "botfleet/internal/modules/scheduler/service"
	storesvc "botfleet/internal/modules/store/service"
	stratsvc "botfleet/internal/modules/strategy/service"
	"botfleet/pkg/logger"
)

// Control is the surface the dashboard/API layer drives: start, stop,
// status, plus bot creation for tooling.
type Control struct {
	bots     storesvc.Bots
	trades   storesvc.Trades
	sched    *schedsvc.Scheduler
	registry *stratsvc.Registry
}

func NewControl(bots storesvc.Bots, trades storesvc.Trades, sched *schedsvc.Scheduler, registry *stratsvc.Registry) *Control {
	return &Control{bots: bots, trades: trades, sched: sched, registry: registry}
}

// CreateBot validates the timeframe and strategy reference and inserts
// the bot inactive; StartBot arms it.
func (c *Control) CreateBot(ctx context.Context, bot *models.Bot) (int64, error) {
	if !bot.Timeframe.Valid() {
		return 0, errors.Errorf("unknown timeframe %q", bot.Timeframe)
	}
	if _, ok := c.registry.Engine(bot.StrategyID); !ok {
		return 0, errors.Wrapf(models.ErrInvalidStrategyConfig, "unknown strategy %q", bot.StrategyID)
	}
	bot.Active = false
	return c.bots.Create(ctx, bot)
}

// StartBot sets the active flag and registers the bot with the
// scheduler. Idempotent.
func (c *Control) StartBot(ctx context.Context, botID int64) error {
	bot, err := c.bots.Get(ctx, botID)
	if err != nil {
		return errors.Wrap(err, "load bot")
	}
	if err := c.bots.SetActive(ctx, botID, true, ""); err != nil {
		return errors.Wrap(err, "activate bot")
	}
	if err := c.sched.Register(botID, bot.Timeframe); err != nil {
		return errors.Wrap(err, "register bot")
	}
	logger.Info("[CTRL] bot=%d started (%s %s)", botID, bot.Symbol, bot.Timeframe)
	return nil
}

// StopBot deregisters and clears the active flag. An open position is
// left alone: in-flight pipeline runs finish under their lock, and
// closing is the operator's call.
func (c *Control) StopBot(ctx context.Context, botID int64) error {
	bot, err := c.bots.Get(ctx, botID)
	if err != nil {
		return errors.Wrap(err, "load bot")
	}
	c.sched.Deregister(botID, bot.Timeframe)
	if err := c.bots.SetActive(ctx, botID, false, ""); err != nil {
		return errors.Wrap(err, "deactivate bot")
	}
	logger.Info("[CTRL] bot=%d stopped", botID)
	return nil
}

// BotStatus assembles the per-bot view: activity, last evaluation,
// last/open trade and today's realized numbers.
func (c *Control) BotStatus(ctx context.Context, botID int64) (*models.BotStatus, error) {
	bot, err := c.bots.Get(ctx, botID)
	if err != nil {
		return nil, errors.Wrap(err, "load bot")
	}

	open, err := c.trades.GetOpen(ctx, botID)
	if err != nil {
		return nil, errors.Wrap(err, "load open trade")
	}
	last, err := c.trades.Last(ctx, botID)
	if err != nil {
		return nil, errors.Wrap(err, "load last trade")
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := c.trades.GetSince(ctx, botID, midnight)
	if err != nil {
		return nil, errors.Wrap(err, "load daily trades")
	}

	stats := models.DailyStats{Trades: len(today)}
	for _, t := range today {
		stats.RealizedPnL += t.ProfitLoss
		if t.ProfitLoss >= 0 {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}

	return &models.BotStatus{
		BotID:      bot.ID,
		IsActive:   bot.Active,
		LastCheck:  bot.LastCheck,
		LastError:  bot.LastError,
		LastTrade:  last,
		OpenTrade:  open,
		DailyStats: stats,
	}, nil
}
