package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfleet/internal/models"
)

func TestRSIBounds(t *testing.T) {
	t.Parallel()

	_, ok := RSI([]float64{1, 2, 3}, 14)
	assert.False(t, ok, "too-short series")

	up, ok := RSI([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 5)
	require.True(t, ok)
	assert.Equal(t, 100.0, up, "monotonic gains pin RSI at 100")

	down, ok := RSI([]float64{8, 7, 6, 5, 4, 3, 2, 1}, 5)
	require.True(t, ok)
	assert.Equal(t, 0.0, down, "monotonic losses pin RSI at 0")
}

func TestMeanRevertBuysOversold(t *testing.T) {
	t.Parallel()

	eng, err := NewMeanRevert(5, 70, 30, 0.5, 3)
	require.NoError(t, err)

	sig, fired := eng.Evaluate(barsFromCloses(100, 98, 96, 94, 92, 90, 88))
	require.True(t, fired)
	assert.Equal(t, models.SideBuy, sig.Side)
	assert.Equal(t, 88.0, sig.Price)
	assert.Less(t, sig.StopLoss, sig.Price)
}

func TestMeanRevertSellsOverbought(t *testing.T) {
	t.Parallel()

	eng, err := NewMeanRevert(5, 70, 30, 0.5, 3)
	require.NoError(t, err)

	sig, fired := eng.Evaluate(barsFromCloses(100, 102, 104, 106, 108, 110, 112))
	require.True(t, fired)
	assert.Equal(t, models.SideSell, sig.Side)
}

func TestMeanRevertQuietBandNoSignal(t *testing.T) {
	t.Parallel()

	eng, err := NewMeanRevert(5, 70, 30, 0.5, 3)
	require.NoError(t, err)

	// Alternating gains and losses keep RSI mid-band.
	_, fired := eng.Evaluate(barsFromCloses(100, 101, 100, 101, 100, 101, 100))
	assert.False(t, fired)
}

func TestMeanRevertRejectsBadThresholds(t *testing.T) {
	t.Parallel()

	_, err := NewMeanRevert(0, 70, 30, 0.5, 3)
	assert.Error(t, err)

	_, err = NewMeanRevert(14, 30, 70, 0.5, 3)
	assert.Error(t, err)
}
