package service

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"botfleet/internal/broker"
	"botfleet/internal/models"
)

// Gateway fetches recent bars through the broker session. It never
// retries: a failed fetch surfaces as ErrBrokerUnavailable and the
// caller waits for the next scheduled tick.
type Gateway struct {
	sess broker.Session
}

func NewGateway(sess broker.Session) *Gateway {
	return &Gateway{sess: sess}
}

// Fetch returns up to lookback closed bars, guaranteed ascending.
func (g *Gateway) Fetch(ctx context.Context, symbol string, timeframe models.Timeframe, lookback int) (*models.Snapshot, error) {
	if !g.sess.IsConnected() {
		// One reconnect attempt; broker outages stay transient either way.
		if err := g.sess.Connect(ctx); err != nil {
			return nil, errors.Wrap(models.ErrBrokerUnavailable, "session not connected")
		}
	}

	candles, err := g.sess.Candles(ctx, symbol, timeframe, lookback)
	if err != nil {
		if errors.Is(err, models.ErrSymbolNotFound) || errors.Is(err, models.ErrBrokerUnavailable) {
			return nil, err
		}
		return nil, errors.Wrap(models.ErrBrokerUnavailable, err.Error())
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Start.Before(candles[j].Start)
	})

	return &models.Snapshot{
		Symbol:    symbol,
		Timeframe: timeframe,
		Candles:   candles,
	}, nil
}
