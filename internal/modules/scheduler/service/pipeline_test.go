package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfleet/internal/broker"
	"botfleet/internal/models"
	"botfleet/internal/modules/config"
	execsvc "botfleet/internal/modules/executor/service"
	lockssvc "botfleet/internal/modules/lockstore/service"
	mdsvc "botfleet/internal/modules/marketdata/service"
	risksvc "botfleet/internal/modules/risk/service"
	stratsvc "botfleet/internal/modules/strategy/service"
)

type fakeBots struct {
	mu      sync.Mutex
	bots    map[int64]*models.Bot
	panicOn int64
}

func newFakeBots(bots ...*models.Bot) *fakeBots {
	f := &fakeBots{bots: make(map[int64]*models.Bot)}
	for _, b := range bots {
		cp := *b
		f.bots[b.ID] = &cp
	}
	return f
}

func (f *fakeBots) Create(_ context.Context, b *models.Bot) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = int64(len(f.bots) + 1)
	cp := *b
	f.bots[b.ID] = &cp
	return b.ID, nil
}

func (f *fakeBots) GetActive(context.Context) ([]*models.Bot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Bot
	for _, b := range f.bots {
		if b.Active {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeBots) Get(_ context.Context, id int64) (*models.Bot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == f.panicOn {
		panic("bot store corrupted")
	}
	b, ok := f.bots[id]
	if !ok {
		return nil, errors.Errorf("bot %d not found", id)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBots) SetActive(_ context.Context, id int64, active bool, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bots[id]; ok {
		b.Active = active
		b.LastError = reason
	}
	return nil
}

func (f *fakeBots) TouchLastCheck(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bots[id]; ok {
		b.LastCheck = at
	}
	return nil
}

func (f *fakeBots) SetLastError(_ context.Context, id int64, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bots[id]; ok {
		b.LastError = msg
	}
	return nil
}

type memTrades struct {
	mu     sync.Mutex
	trades []*models.Trade
}

func (m *memTrades) Create(_ context.Context, t *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.trades = append(m.trades, &cp)
	return nil
}

func (m *memTrades) Close(_ context.Context, id string, exitPrice, profitLoss float64, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trades {
		if t.ID == id && t.ClosedAt == nil {
			at := closedAt
			t.ExitPrice, t.ProfitLoss, t.ClosedAt = exitPrice, profitLoss, &at
			return nil
		}
	}
	return models.ErrNoOpenPosition
}

func (m *memTrades) GetOpen(_ context.Context, botID int64) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trades {
		if t.BotID == botID && t.ClosedAt == nil {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memTrades) GetSince(_ context.Context, botID int64, since time.Time) ([]*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Trade
	for _, t := range m.trades {
		if t.BotID == botID && t.ClosedAt != nil && !t.ClosedAt.Before(since) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTrades) GetAll(_ context.Context, botID int64) ([]*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Trade
	for _, t := range m.trades {
		if t.BotID == botID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTrades) Last(_ context.Context, botID int64) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.trades) - 1; i >= 0; i-- {
		if m.trades[i].BotID == botID {
			cp := *m.trades[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memTrades) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades)
}

// errLocks fails every operation, modelling an unreachable redis.
type errLocks struct{}

func (errLocks) TryAcquire(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}
func (errLocks) Release(context.Context, string) error { return errors.New("connection refused") }
func (errLocks) SetWithTTL(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (errLocks) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (errLocks) Delete(context.Context, string) error { return errors.New("connection refused") }

func seededCandles(closes ...float64) []models.Candle {
	start := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Candle, len(closes))
	for i, c := range closes {
		bars[i] = models.Candle{
			Start: start.Add(time.Duration(i) * time.Hour),
			End:   start.Add(time.Duration(i+1) * time.Hour),
			Open:  c, High: c, Low: c, Close: c,
		}
	}
	return bars
}

type harness struct {
	pipe   *Pipeline
	sched  *Scheduler
	bots   *fakeBots
	trades *memTrades
	locks  lockssvc.Store
	sess   *broker.Paper
}

// Flip series for crossover(2,3): exactly one BUY on the last bar.
var buyCloses = []float64{10, 11, 9, 12, 14}

func newHarness(t *testing.T, bots *fakeBots, locks lockssvc.Store) *harness {
	t.Helper()

	sess := broker.NewPaper(10000)
	require.NoError(t, sess.Connect(context.Background()))
	sess.SeedCandles("BTC-USDT", models.TF1h, seededCandles(buyCloses...))

	registry, err := stratsvc.NewRegistry([]stratsvc.Definition{
		{ID: "sma-cross-2-3-v1", Kind: "crossover", Params: map[string]float64{"fast": 2, "slow": 3}},
	})
	require.NoError(t, err)

	trades := &memTrades{}
	if locks == nil {
		locks = lockssvc.NewMemoryStore()
	}

	cfg := &config.Config{}
	cfg.Scheduler.Lookback = 200

	pipe := NewPipeline(
		locks, bots, trades,
		mdsvc.NewGateway(sess), registry,
		risksvc.NewGatekeeper(trades),
		execsvc.NewExecutor(sess, trades, locks, nil),
		sess, nil, cfg,
	)
	sched := NewScheduler(context.Background(), pipe, bots, 4)
	t.Cleanup(sched.Shutdown)

	return &harness{pipe: pipe, sched: sched, bots: bots, trades: trades, locks: locks, sess: sess}
}

func activeBot() *models.Bot {
	return &models.Bot{
		ID:         1,
		Symbol:     "BTC-USDT",
		Timeframe:  models.TF1h,
		StrategyID: "sma-cross-2-3-v1",
		Risk:       models.RiskSettings{RiskPct: 1},
		Active:     true,
	}
}

func TestRunTradesOnSignal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newFakeBots(activeBot()), nil)
	h.pipe.Run(context.Background(), 1, models.TF1h)

	open, err := h.trades.GetOpen(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, models.SideBuy, open.Side)
	assert.Equal(t, 14.0, open.EntryPrice)
	assert.Greater(t, open.Quantity, 0.0)

	// The run must have released its lock.
	ok, err := h.locks.TryAcquire(context.Background(), models.LockKeyFor(1), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	bot, err := h.bots.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, bot.LastCheck.IsZero())
}

func TestRunSkipsInactiveBot(t *testing.T) {
	t.Parallel()

	bot := activeBot()
	bot.Active = false
	h := newHarness(t, newFakeBots(bot), nil)

	h.pipe.Run(context.Background(), 1, models.TF1h)
	assert.Zero(t, h.trades.count(), "stopped bot must not trade even if a tick was already queued")
}

func TestRunSkipsWhenLocked(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newFakeBots(activeBot()), nil)

	ok, err := h.locks.TryAcquire(context.Background(), models.LockKeyFor(1), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	h.pipe.Run(context.Background(), 1, models.TF1h)
	assert.Zero(t, h.trades.count(), "a held lock must skip the whole cycle")
}

func TestRunFailsClosedOnLockStoreError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newFakeBots(activeBot()), errLocks{})

	h.pipe.Run(context.Background(), 1, models.TF1h)
	assert.Zero(t, h.trades.count(), "unreachable lock store must never be treated as a free lock")
}

func TestRunHoldsOnSameSideSignal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newFakeBots(activeBot()), nil)

	// First run opens the long.
	h.pipe.Run(context.Background(), 1, models.TF1h)
	require.Equal(t, 1, h.trades.count())

	// Same series, same BUY flip: no pyramiding.
	h.pipe.Run(context.Background(), 1, models.TF1h)
	assert.Equal(t, 1, h.trades.count())
}

func TestRunReversesOnOppositeSignal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newFakeBots(activeBot()), nil)
	ctx := context.Background()

	// A short is already open, at the broker and on record.
	orderID, err := h.sess.PlaceOrder(ctx, "BTC-USDT", models.SideSell, 5, 0, 0)
	require.NoError(t, err)
	require.NoError(t, h.trades.Create(ctx, &models.Trade{
		ID: "t-short", BotID: 1, Symbol: "BTC-USDT", Side: models.SideSell,
		EntryPrice: 12, Quantity: 5, OrderID: orderID, OpenedAt: time.Now(),
	}))

	// The BUY flip closes the short, then opens the long.
	h.pipe.Run(ctx, 1, models.TF1h)

	all, err := h.trades.GetAll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 2)

	var short, long *models.Trade
	for _, tr := range all {
		if tr.ID == "t-short" {
			short = tr
		} else {
			long = tr
		}
	}
	require.NotNil(t, short)
	require.NotNil(t, long)
	assert.NotNil(t, short.ClosedAt)
	assert.Equal(t, models.SideBuy, long.Side)
	assert.Nil(t, long.ClosedAt)
}

func TestRunBreachEmergencyStops(t *testing.T) {
	t.Parallel()

	bot := activeBot()
	bot.Risk.MaxPositionSize = 0.001 // any sized entry breaches
	h := newHarness(t, newFakeBots(bot), nil)

	require.NoError(t, h.sched.Register(1, models.TF1h))
	require.Equal(t, 1, h.sched.Registered(models.TF1h))

	h.pipe.Run(context.Background(), 1, models.TF1h)

	assert.Zero(t, h.trades.count())
	assert.Equal(t, 0, h.sched.Registered(models.TF1h), "breached bot must leave its bucket")

	stopped, err := h.bots.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, stopped.Active)
	assert.Contains(t, stopped.LastError, "position size")
}

func TestRunBadStrategyRecordsError(t *testing.T) {
	t.Parallel()

	bot := activeBot()
	bot.StrategyID = "gone-v9"
	h := newHarness(t, newFakeBots(bot), nil)

	h.pipe.Run(context.Background(), 1, models.TF1h)

	assert.Zero(t, h.trades.count())
	b, err := h.bots.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, b.LastError, "gone-v9")
}

func TestRunBrokerFailureKeepsBotActive(t *testing.T) {
	t.Parallel()

	bot := activeBot()
	bot.Symbol = "DOGE-USDT" // nothing seeded, fetch fails
	h := newHarness(t, newFakeBots(bot), nil)

	h.pipe.Run(context.Background(), 1, models.TF1h)

	assert.Zero(t, h.trades.count())
	b, err := h.bots.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, b.Active, "broker-side failures skip the cycle, never deactivate")
	assert.NotEmpty(t, b.LastError)
}
