package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfleet/internal/models"
)

type fakeTrades struct {
	today   []*models.Trade
	history []*models.Trade
	since   time.Time
}

func (f *fakeTrades) Create(context.Context, *models.Trade) error { return nil }
func (f *fakeTrades) Close(context.Context, string, float64, float64, time.Time) error {
	return nil
}
func (f *fakeTrades) GetOpen(context.Context, int64) (*models.Trade, error) { return nil, nil }
func (f *fakeTrades) GetSince(_ context.Context, _ int64, since time.Time) ([]*models.Trade, error) {
	f.since = since
	return f.today, nil
}
func (f *fakeTrades) GetAll(context.Context, int64) ([]*models.Trade, error) {
	return f.history, nil
}
func (f *fakeTrades) Last(context.Context, int64) (*models.Trade, error) { return nil, nil }

func closedTrade(pnl float64) *models.Trade {
	at := time.Now()
	return &models.Trade{ProfitLoss: pnl, ClosedAt: &at}
}

func testBot(risk models.RiskSettings) *models.Bot {
	return &models.Bot{ID: 1, Symbol: "BTC-USDT", Timeframe: models.TF1h, Risk: risk}
}

func TestCalcQuantity(t *testing.T) {
	t.Parallel()

	qty, err := CalcQuantity(10000, 1, 100, 95)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, qty, 1e-9)

	_, err = CalcQuantity(10000, 1, 100, 100)
	assert.ErrorIs(t, err, models.ErrZeroStopDistance)

	_, err = CalcQuantity(0, 1, 100, 95)
	assert.Error(t, err)

	_, err = CalcQuantity(10000, 0, 100, 95)
	assert.Error(t, err)
}

func TestValidateZeroStopDistanceIsPlainReject(t *testing.T) {
	t.Parallel()

	g := NewGatekeeper(&fakeTrades{})
	bot := testBot(models.RiskSettings{RiskPct: 1})

	v, err := g.Validate(context.Background(), bot, models.Signal{Price: 100, StopLoss: 100}, 10000)
	require.NoError(t, err)
	assert.False(t, v.Approved)
	assert.False(t, v.Breach, "unsizable trade is skipped, not an emergency")
}

func TestValidateApproves(t *testing.T) {
	t.Parallel()

	g := NewGatekeeper(&fakeTrades{})
	bot := testBot(models.RiskSettings{RiskPct: 1, MaxPositionSize: 100, MaxDailyLoss: 500, MaxDrawdownPct: 50})

	v, err := g.Validate(context.Background(), bot, models.Signal{Price: 100, StopLoss: 95}, 10000)
	require.NoError(t, err)
	assert.True(t, v.Approved)
	assert.InDelta(t, 20.0, v.Quantity, 1e-9)
}

func TestValidatePositionSizeBreach(t *testing.T) {
	t.Parallel()

	g := NewGatekeeper(&fakeTrades{})
	bot := testBot(models.RiskSettings{RiskPct: 1, MaxPositionSize: 10})

	v, err := g.Validate(context.Background(), bot, models.Signal{Price: 100, StopLoss: 95}, 10000)
	require.NoError(t, err)
	assert.False(t, v.Approved)
	assert.True(t, v.Breach)
}

func TestValidateDailyLossBreach(t *testing.T) {
	t.Parallel()

	trades := &fakeTrades{today: []*models.Trade{closedTrade(-80), closedTrade(-40)}}
	g := NewGatekeeper(trades)

	fixed := time.Date(2026, 8, 29, 15, 30, 0, 0, time.UTC)
	g.SetClock(func() time.Time { return fixed })

	bot := testBot(models.RiskSettings{RiskPct: 1, MaxDailyLoss: 100})

	v, err := g.Validate(context.Background(), bot, models.Signal{Price: 100, StopLoss: 95}, 10000)
	require.NoError(t, err)
	assert.False(t, v.Approved)
	assert.True(t, v.Breach)

	// Window starts at the bot's local midnight, not 24h ago.
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), trades.since)
}

func TestValidateDailyProfitDoesNotBreach(t *testing.T) {
	t.Parallel()

	g := NewGatekeeper(&fakeTrades{today: []*models.Trade{closedTrade(300)}})
	bot := testBot(models.RiskSettings{RiskPct: 1, MaxDailyLoss: 100})

	v, err := g.Validate(context.Background(), bot, models.Signal{Price: 100, StopLoss: 95}, 10000)
	require.NoError(t, err)
	assert.True(t, v.Approved)
}

func TestValidateDrawdownBreach(t *testing.T) {
	t.Parallel()

	// Equity climbs to +100, then gives back 60: 60% off the peak.
	g := NewGatekeeper(&fakeTrades{history: []*models.Trade{closedTrade(100), closedTrade(-60)}})
	bot := testBot(models.RiskSettings{RiskPct: 1, MaxDrawdownPct: 50})

	v, err := g.Validate(context.Background(), bot, models.Signal{Price: 100, StopLoss: 95}, 10000)
	require.NoError(t, err)
	assert.False(t, v.Approved)
	assert.True(t, v.Breach)
}

func TestValidateDrawdownNeedsPeak(t *testing.T) {
	t.Parallel()

	// All losses from the start: no positive peak, so the drawdown
	// ceiling stays silent (the daily-loss cap covers this regime).
	g := NewGatekeeper(&fakeTrades{history: []*models.Trade{closedTrade(-50), closedTrade(-50)}})
	bot := testBot(models.RiskSettings{RiskPct: 1, MaxDrawdownPct: 50})

	v, err := g.Validate(context.Background(), bot, models.Signal{Price: 100, StopLoss: 95}, 10000)
	require.NoError(t, err)
	assert.True(t, v.Approved)
}
