package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"botfleet/internal/broker"
	"botfleet/internal/modules/config"
	"botfleet/internal/modules/control"
	"botfleet/internal/modules/executor"
	"botfleet/internal/modules/health"
	"botfleet/internal/modules/lockstore"
	"botfleet/internal/modules/marketdata"
	"botfleet/internal/modules/postgres"
	"botfleet/internal/modules/redis"
	"botfleet/internal/modules/risk"
	"botfleet/internal/modules/scheduler"
	"botfleet/internal/modules/store"
	"botfleet/internal/modules/strategy"
	"botfleet/internal/notify"
	"botfleet/pkg/logger"
	"botfleet/pkg/tracing"
)

func main() {
	if err := logger.Init("botfleet"); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			func(cfg *config.Config) (*notify.Telegram, error) {
				return notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			if !cfg.Jaeger.Enabled {
				return nil
			}
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeTracer()
					return nil
				},
			})
			return nil
		}),
		config.Module(),
		postgres.Module(),
		redis.Module(),
		lockstore.Module(),
		store.Module(),
		broker.Module(),
		marketdata.Module(),
		strategy.Module(),
		risk.Module(),
		executor.Module(),
		scheduler.Module(),
		control.Module(),
		health.Module(),
	)
	app.Run()
}
