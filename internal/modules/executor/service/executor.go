package service

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"botfleet/internal/broker"
	"botfleet/internal/metrics"
	"botfleet/internal/models"
	lockssvc "botfleet/internal/modules/lockstore/service"
	storesvc "botfleet/internal/modules/store/service"
	"botfleet/internal/notify"
	"botfleet/pkg/logger"
)

const positionCacheTTL = 15 * time.Minute

// Executor places and closes orders through the broker session, keeps
// the trade records and mirrors open positions into the TTL store.
type Executor struct {
	sess   broker.Session
	trades storesvc.Trades
	cache  lockssvc.Store
	n      *notify.Telegram
}

func NewExecutor(sess broker.Session, trades storesvc.Trades, cache lockssvc.Store, n *notify.Telegram) *Executor {
	return &Executor{sess: sess, trades: trades, cache: cache, n: n}
}

func positionKey(botID int64) string {
	return "position:" + strconv.FormatInt(botID, 10)
}

// Open places a market order for an approved signal. It refuses to
// pyramid: a bot with an open trade gets ErrPositionOpen and no order
// reaches the broker.
func (e *Executor) Open(ctx context.Context, bot *models.Bot, sig models.Signal, quantity float64) (*models.Trade, error) {
	existing, err := e.trades.GetOpen(ctx, bot.ID)
	if err != nil {
		return nil, errors.Wrap(err, "check open trade")
	}
	if existing.IsOpen() {
		return nil, errors.Wrapf(models.ErrPositionOpen, "bot %d trade %s", bot.ID, existing.ID)
	}
	if quantity <= 0 {
		return nil, errors.Errorf("quantity <= 0 (%.8f)", quantity)
	}

	orderID, err := e.sess.PlaceOrder(ctx, bot.Symbol, sig.Side, quantity, sig.StopLoss, sig.TakeProfit)
	if err != nil {
		return nil, errors.Wrap(err, "place order")
	}
	metrics.Orders.WithLabelValues(string(sig.Side)).Inc()

	trade := &models.Trade{
		ID:         uuid.New().String(),
		BotID:      bot.ID,
		Symbol:     bot.Symbol,
		Side:       sig.Side,
		EntryPrice: sig.Price,
		Quantity:   quantity,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		OrderID:    orderID,
		OpenedAt:   time.Now(),
	}

	// The broker order is live from here on. Record-keeping failures
	// must never lose track of it: log everything needed for a manual
	// reconcile and keep whichever write did succeed.
	if err := e.trades.Create(ctx, trade); err != nil {
		logger.Error("[EXEC] RECONCILE NEEDED: trade record write failed after order placed: bot=%d symbol=%s side=%s qty=%.8f entry=%.8f orderId=%s err=%v",
			bot.ID, bot.Symbol, sig.Side, quantity, sig.Price, orderID, err)
		e.n.Sendf("🚨 bot %d: order %s placed but trade record NOT saved (%s %s), reconcile manually", bot.ID, orderID, sig.Side, bot.Symbol)
	}
	if err := e.cachePosition(ctx, bot.ID, trade); err != nil {
		logger.Error("[EXEC] position cache write failed: bot=%d orderId=%s err=%v", bot.ID, orderID, err)
	}

	e.n.Sendf("✅ bot %d OPEN %s %s qty=%.4f @ %.4f SL=%.4f TP=%.4f (%s)",
		bot.ID, sig.Side, bot.Symbol, quantity, sig.Price, sig.StopLoss, sig.TakeProfit, sig.StrategyID)
	return trade, nil
}

// Close market-closes the bot's open trade and finalizes its record.
// ErrNoOpenPosition when there is nothing to close.
func (e *Executor) Close(ctx context.Context, bot *models.Bot) (*models.Trade, error) {
	open, err := e.trades.GetOpen(ctx, bot.ID)
	if err != nil {
		return nil, errors.Wrap(err, "check open trade")
	}
	if !open.IsOpen() {
		return nil, errors.Wrapf(models.ErrNoOpenPosition, "bot %d", bot.ID)
	}

	exitPrice, err := e.sess.ClosePosition(ctx, open.Symbol, open.Side, open.Quantity)
	if err != nil {
		return nil, errors.Wrap(err, "close position")
	}

	pnl := open.PnL(exitPrice)
	closedAt := time.Now()
	if err := e.trades.Close(ctx, open.ID, exitPrice, pnl, closedAt); err != nil {
		if errors.Is(err, models.ErrNoOpenPosition) {
			// A newer run closed the record after our lock expired.
			logger.Warn("[EXEC] trade %s already closed, skipping record update", open.ID)
		} else {
			logger.Error("[EXEC] RECONCILE NEEDED: close record write failed after broker close: trade=%s bot=%d exit=%.8f pnl=%.4f err=%v",
				open.ID, bot.ID, exitPrice, pnl, err)
			e.n.Sendf("🚨 bot %d: position closed at broker but trade %s NOT finalized, reconcile manually", bot.ID, open.ID)
		}
	}
	if err := e.cache.Delete(ctx, positionKey(bot.ID)); err != nil {
		logger.Warn("[EXEC] position cache delete failed: bot=%d err=%v", bot.ID, err)
	}

	open.ExitPrice = exitPrice
	open.ProfitLoss = pnl
	open.ClosedAt = &closedAt
	e.n.Sendf("☑️ bot %d CLOSE %s %s qty=%.4f @ %.4f pnl=%.4f", bot.ID, open.Side, open.Symbol, open.Quantity, exitPrice, pnl)
	return open, nil
}

func (e *Executor) cachePosition(ctx context.Context, botID int64, t *models.Trade) error {
	pos := models.Position{
		Symbol:    t.Symbol,
		Side:      t.Side,
		Quantity:  t.Quantity,
		Entry:     t.EntryPrice,
		LastPrice: t.EntryPrice,
		UpdatedAt: time.Now(),
	}
	raw, err := sonic.Marshal(pos)
	if err != nil {
		return err
	}
	return e.cache.SetWithTTL(ctx, positionKey(botID), raw, positionCacheTTL)
}

// CachedPosition returns the mirrored open position, ok=false on a
// cache miss (the store is then the source of truth).
func (e *Executor) CachedPosition(ctx context.Context, botID int64) (models.Position, bool, error) {
	raw, ok, err := e.cache.Get(ctx, positionKey(botID))
	if err != nil || !ok {
		return models.Position{}, false, err
	}
	var pos models.Position
	if err := sonic.Unmarshal(raw, &pos); err != nil {
		return models.Position{}, false, err
	}
	return pos, true, nil
}
