package service

import (
	"context"
	"time"

	"github.com/bytedance/sonic"

	"botfleet/pkg/logger"
)

const refreshEvery = 5 * time.Minute

// RefreshPositions mirrors the broker-side open positions into the
// TTL store under one key, so the status surface can show them without
// a broker round trip.
func (e *Executor) RefreshPositions(ctx context.Context) error {
	positions, err := e.sess.OpenPositions(ctx)
	if err != nil {
		return err
	}
	raw, err := sonic.Marshal(positions)
	if err != nil {
		return err
	}
	return e.cache.SetWithTTL(ctx, "positions:broker", raw, 2*refreshEvery)
}

// PositionCacheWorker refreshes the mirror on a fixed period until ctx
// is cancelled. Broker hiccups are logged and retried next period.
func (e *Executor) PositionCacheWorker(ctx context.Context) {
	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()

	if err := e.RefreshPositions(ctx); err != nil {
		logger.Warn("[EXEC] initial position refresh failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.RefreshPositions(ctx); err != nil {
				logger.Warn("[EXEC] position refresh failed: %v", err)
			}
		}
	}
}
