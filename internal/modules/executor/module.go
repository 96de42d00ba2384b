package executor

import (
	"context"

	"go.uber.org/fx"

	"botfleet/internal/modules/executor/service"
)

func Module() fx.Option {
	return fx.Module("executor",
		fx.Provide(
			service.NewExecutor,
		),
		fx.Invoke(func(lc fx.Lifecycle, e *service.Executor, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go e.PositionCacheWorker(ctx)
					return nil
				},
			})
		}),
	)
}
