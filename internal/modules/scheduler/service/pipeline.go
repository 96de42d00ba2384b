package service

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"botfleet/internal/broker"
	"botfleet/internal/metrics"
	"botfleet/internal/models"
	"botfleet/internal/modules/config"
	execsvc "botfleet/internal/modules/executor/service"
	lockssvc "botfleet/internal/modules/lockstore/service"
	mdsvc "botfleet/internal/modules/marketdata/service"
	risksvc "botfleet/internal/modules/risk/service"
	storesvc "botfleet/internal/modules/store/service"
	stratsvc "botfleet/internal/modules/strategy/service"
	"botfleet/internal/notify"
	"botfleet/pkg/logger"
)

// Pipeline is one bot's evaluation cycle: lock, market data, strategy,
// risk, execution. Each stage failure maps to its own recovery; none
// of them can leak the lock.
type Pipeline struct {
	locks    lockssvc.Store
	bots     storesvc.Bots
	trades   storesvc.Trades
	gateway  *mdsvc.Gateway
	registry *stratsvc.Registry
	gate     *risksvc.Gatekeeper
	exec     *execsvc.Executor
	sess     broker.Session
	n        *notify.Telegram
	cfg      *config.Config

	// onBreach is installed by the scheduler so an emergency stop also
	// removes the bot from its timeframe bucket.
	onBreach func(bot *models.Bot)
}

func NewPipeline(
	locks lockssvc.Store,
	bots storesvc.Bots,
	trades storesvc.Trades,
	gateway *mdsvc.Gateway,
	registry *stratsvc.Registry,
	gate *risksvc.Gatekeeper,
	exec *execsvc.Executor,
	sess broker.Session,
	n *notify.Telegram,
	cfg *config.Config,
) *Pipeline {
	return &Pipeline{
		locks:    locks,
		bots:     bots,
		trades:   trades,
		gateway:  gateway,
		registry: registry,
		gate:     gate,
		exec:     exec,
		sess:     sess,
		n:        n,
		cfg:      cfg,
	}
}

func (p *Pipeline) result(tf models.Timeframe, outcome string) {
	metrics.Evaluations.WithLabelValues(string(tf), outcome).Inc()
}

// Run executes one cycle for botID. Never returns an error: every
// failure is classified, logged and absorbed here so one bot can't
// take down its tick's siblings.
func (p *Pipeline) Run(ctx context.Context, botID int64, tf models.Timeframe) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pipeline.run")
	defer span.Finish()
	span.SetTag("bot_id", botID)
	span.SetTag("timeframe", string(tf))

	ttl := p.cfg.LockTTL(string(tf), tf.Period())
	guard, ok, err := lockssvc.Acquire(ctx, p.locks, models.LockKeyFor(botID), ttl)
	if err != nil {
		// Store unreachable: fail closed, never risk a duplicate order.
		logger.Warn("[PIPE] bot=%d lock store unavailable, skipping cycle: %v", botID, err)
		p.result(tf, "lock_error")
		return
	}
	if !ok {
		logger.Info("[PIPE] bot=%d still locked, skipping cycle", botID)
		metrics.LockSkips.Inc()
		p.result(tf, "locked")
		return
	}
	defer guard.Release(ctx)

	bot, err := p.bots.Get(ctx, botID)
	if err != nil {
		logger.Error("[PIPE] bot=%d load failed: %v", botID, err)
		p.result(tf, "store_error")
		return
	}
	// Re-read of the active flag: the bot may have been stopped after
	// this tick was scheduled.
	if !bot.Active {
		p.result(tf, "inactive")
		return
	}

	snap, err := p.gateway.Fetch(ctx, bot.Symbol, tf, p.cfg.Scheduler.Lookback)
	if err != nil {
		p.failCycle(ctx, bot, tf, err)
		return
	}

	sig, fired, err := p.registry.Evaluate(bot.StrategyID, snap.Candles)
	if err != nil {
		// Bad strategy config is fatal for this bot's cycle only.
		logger.Error("[PIPE] bot=%d strategy %q: %v", bot.ID, bot.StrategyID, err)
		p.setLastError(ctx, bot.ID, err)
		p.result(tf, "bad_strategy")
		return
	}

	p.touch(ctx, bot)

	if !fired {
		p.result(tf, "no_signal")
		return
	}
	sig.Symbol = bot.Symbol
	sig.Timeframe = tf
	metrics.Signals.WithLabelValues(string(sig.Side)).Inc()
	logger.Info("[SIGNAL] bot=%d %s %s @ %.4f (%s)", bot.ID, sig.Side, sig.Symbol, sig.Price, sig.Reason)

	open, err := p.trades.GetOpen(ctx, bot.ID)
	if err != nil {
		logger.Error("[PIPE] bot=%d open-trade lookup failed: %v", bot.ID, err)
		p.result(tf, "store_error")
		return
	}
	if open.IsOpen() {
		if open.Side == sig.Side {
			// Same direction again: pyramiding disallowed, hold.
			p.result(tf, "held")
			return
		}
		// Opposite signal exits the position, then we consider the
		// new entry below.
		if _, err := p.exec.Close(ctx, bot); err != nil {
			p.failCycle(ctx, bot, tf, err)
			return
		}
	}

	balance, err := p.sess.AccountBalance(ctx)
	if err != nil {
		p.failCycle(ctx, bot, tf, err)
		return
	}

	verdict, err := p.gate.Validate(ctx, bot, sig, balance)
	if err != nil {
		logger.Error("[PIPE] bot=%d risk validation failed: %v", bot.ID, err)
		p.result(tf, "risk_error")
		return
	}
	if verdict.Breach {
		metrics.RiskRejections.WithLabelValues("breach").Inc()
		p.emergencyStop(ctx, bot, verdict.Reason)
		p.result(tf, "breach")
		return
	}
	if !verdict.Approved {
		metrics.RiskRejections.WithLabelValues("rejected").Inc()
		logger.Info("[RISK] bot=%d rejected: %s", bot.ID, verdict.Reason)
		p.result(tf, "rejected")
		return
	}

	if _, err := p.exec.Open(ctx, bot, sig, verdict.Quantity); err != nil {
		if errors.Is(err, models.ErrPositionOpen) {
			p.result(tf, "held")
			return
		}
		p.failCycle(ctx, bot, tf, err)
		return
	}
	p.result(tf, "traded")
}

// failCycle classifies a broker-side failure: transient outages skip
// the cycle and keep the bot active, the next scheduled tick retries.
func (p *Pipeline) failCycle(ctx context.Context, bot *models.Bot, tf models.Timeframe, err error) {
	switch {
	case errors.Is(err, models.ErrBrokerUnavailable):
		logger.Warn("[PIPE] bot=%d broker unavailable, skipping cycle: %v", bot.ID, err)
		p.result(tf, "broker_unavailable")
	case errors.Is(err, models.ErrSymbolNotFound):
		logger.Error("[PIPE] bot=%d symbol %q rejected by broker: %v", bot.ID, bot.Symbol, err)
		p.result(tf, "bad_symbol")
	default:
		logger.Error("[PIPE] bot=%d cycle failed: %v", bot.ID, err)
		p.result(tf, "error")
	}
	p.setLastError(ctx, bot.ID, err)
}

func (p *Pipeline) setLastError(ctx context.Context, botID int64, err error) {
	if uerr := p.bots.SetLastError(ctx, botID, err.Error()); uerr != nil {
		logger.Warn("[PIPE] bot=%d last_error update failed: %v", botID, uerr)
	}
}

func (p *Pipeline) touch(ctx context.Context, bot *models.Bot) {
	if err := p.bots.TouchLastCheck(ctx, bot.ID, timeNow()); err != nil {
		logger.Warn("[PIPE] bot=%d last_check update failed: %v", bot.ID, err)
	}
}

// emergencyStop clears the active flag with the breach reason and
// pulls the bot out of scheduling. The open position, if any, is left
// to the operator.
func (p *Pipeline) emergencyStop(ctx context.Context, bot *models.Bot, reason string) {
	logger.Error("[RISK] bot=%d EMERGENCY STOP: %s", bot.ID, reason)
	if err := p.bots.SetActive(ctx, bot.ID, false, reason); err != nil {
		logger.Error("[RISK] bot=%d deactivate failed: %v", bot.ID, err)
	}
	if p.onBreach != nil {
		p.onBreach(bot)
	}
	p.n.Sendf("🛑 bot %d stopped: %s", bot.ID, reason)
}
