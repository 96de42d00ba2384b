package broker

import (
	"context"

	"botfleet/internal/models"
)

// Session is an authenticated broker connection. The core treats the
// broker protocol as pluggable: okx.go speaks the real API, paper.go
// simulates fills in memory.
type Session interface {
	Connect(ctx context.Context) error
	IsConnected() bool

	// Candles returns up to count closed bars, ascending by time.
	Candles(ctx context.Context, symbol string, timeframe models.Timeframe, count int) ([]models.Candle, error)

	// PlaceOrder submits a market order with attached stop-loss /
	// take-profit levels and returns the broker order id.
	PlaceOrder(ctx context.Context, symbol string, side models.Side, quantity, stopLoss, takeProfit float64) (string, error)

	// ClosePosition market-closes quantity of an open position and
	// returns the exit price.
	ClosePosition(ctx context.Context, symbol string, side models.Side, quantity float64) (float64, error)

	AccountBalance(ctx context.Context) (float64, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	OpenPositions(ctx context.Context) ([]models.Position, error)
}
