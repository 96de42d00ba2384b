package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	t.Parallel()

	tf, err := ParseTimeframe("4h")
	require.NoError(t, err)
	assert.Equal(t, TF4h, tf)
	assert.Equal(t, 4*time.Hour, tf.Period())

	_, err = ParseTimeframe("7m")
	assert.Error(t, err)
	assert.False(t, Timeframe("7m").Valid())
	assert.Zero(t, Timeframe("7m").Period())
}

func TestLockKey(t *testing.T) {
	t.Parallel()

	b := &Bot{ID: 42}
	assert.Equal(t, "processing:42", b.LockKey())
	assert.Equal(t, "processing:7", LockKeyFor(7))
}

func TestSideOpposite(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
	assert.Equal(t, SideNone, SideNone.Opposite())
}

func TestTradePnL(t *testing.T) {
	t.Parallel()

	long := &Trade{Side: SideBuy, EntryPrice: 100, Quantity: 20}
	assert.InDelta(t, 200.0, long.PnL(110), 1e-9)
	assert.InDelta(t, -100.0, long.PnL(95), 1e-9)

	short := &Trade{Side: SideSell, EntryPrice: 100, Quantity: 20}
	assert.InDelta(t, -200.0, short.PnL(110), 1e-9)
	assert.InDelta(t, 100.0, short.PnL(95), 1e-9)
}

func TestTradeIsOpen(t *testing.T) {
	t.Parallel()

	var missing *Trade
	assert.False(t, missing.IsOpen())

	open := &Trade{}
	assert.True(t, open.IsOpen())

	at := time.Now()
	closed := &Trade{ClosedAt: &at}
	assert.False(t, closed.IsOpen())
}
