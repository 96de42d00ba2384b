package marketdata

import (
	"go.uber.org/fx"

	"botfleet/internal/modules/marketdata/service"
)

func Module() fx.Option {
	return fx.Module("marketdata",
		fx.Provide(
			service.NewGateway,
		),
	)
}
