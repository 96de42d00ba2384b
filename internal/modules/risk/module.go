package risk

import (
	"go.uber.org/fx"

	"botfleet/internal/modules/risk/service"
)

func Module() fx.Option {
	return fx.Module("risk",
		fx.Provide(
			service.NewGatekeeper,
		),
	)
}
