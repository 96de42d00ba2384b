package broker

import (
	"context"

	"go.uber.org/fx"

	"botfleet/internal/modules/config"
	"botfleet/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("broker",
		fx.Provide(
			func(cfg *config.Config) Session {
				if cfg.Broker.Mode == "okx" {
					return NewOKX(cfg.Broker.RESTHost, cfg.Broker.WSHost,
						cfg.Broker.APIKey, cfg.Broker.APISecret, cfg.Broker.Passphrase)
				}
				return NewPaper(10_000)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, sess Session, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(startCtx context.Context) error {
					if err := sess.Connect(startCtx); err != nil {
						// Not fatal: the scheduler skips cycles while
						// disconnected and the session reconnects lazily.
						logger.Warn("[BROKER] connect failed: %v", err)
					}
					return nil
				},
			})
		}),
	)
}
