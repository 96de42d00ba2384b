package control

import (
	"net/http"

	"go.uber.org/fx"

	"botfleet/internal/modules/control/service"
)

func Module() fx.Option {
	return fx.Module("control",
		fx.Provide(
			service.NewControl,
		),
		fx.Invoke(func(c *service.Control, mux *http.ServeMux) {
			c.RegisterRoutes(mux)
		}),
	)
}
