package strategy

import (
	"go.uber.org/fx"

	"botfleet/internal/modules/config"
	"botfleet/internal/modules/strategy/service"
	"botfleet/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			func(cfg *config.Config) (*service.Registry, error) {
				reg, err := service.LoadRegistry(cfg.StrategiesFile)
				if err != nil {
					return nil, err
				}
				logger.Info("[STRAT] registry loaded from %s", cfg.StrategiesFile)
				return reg, nil
			},
		),
	)
}
