package scheduler

import (
	"context"

	"go.uber.org/fx"

	"botfleet/internal/broker"
	"botfleet/internal/modules/config"
	"botfleet/internal/modules/scheduler/service"
	storesvc "botfleet/internal/modules/store/service"
)

func Module() fx.Option {
	return fx.Module("scheduler",
		fx.Provide(
			service.NewPipeline,
			func(ctx context.Context, pipe *service.Pipeline, bots storesvc.Bots, cfg *config.Config) *service.Scheduler {
				return service.NewScheduler(ctx, pipe, bots, cfg.Scheduler.Workers)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Scheduler, bots storesvc.Bots, sess broker.Session, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(startCtx context.Context) error {
					if err := s.Initialize(startCtx); err != nil {
						return err
					}
					// Feed the broker price cache for the symbols we trade.
					if okx, ok := sess.(*broker.OKX); ok {
						if active, err := bots.GetActive(startCtx); err == nil {
							seen := map[string]struct{}{}
							symbols := make([]string, 0, len(active))
							for _, b := range active {
								if _, dup := seen[b.Symbol]; !dup {
									seen[b.Symbol] = struct{}{}
									symbols = append(symbols, b.Symbol)
								}
							}
							go okx.StreamTickers(ctx, symbols)
						}
					}
					return nil
				},
				OnStop: func(context.Context) error {
					s.Shutdown()
					return nil
				},
			})
		}),
	)
}
