package store

import (
	"go.uber.org/fx"

	"botfleet/internal/modules/store/service"
	"botfleet/internal/modules/store/service/pg"
	"botfleet/pkg/db"
)

func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(
			func(tm *db.PgTxManager) service.Bots { return pg.NewBots(tm) },
			func(tm *db.PgTxManager) service.Trades { return pg.NewTrades(tm) },
		),
	)
}
