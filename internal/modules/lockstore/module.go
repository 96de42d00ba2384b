package lockstore

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"botfleet/internal/modules/lockstore/service"
	"botfleet/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("lockstore",
		fx.Provide(
			func(client *redis.Client) service.Store {
				if client == nil {
					logger.Warn("[LOCK] redis not configured, using in-memory store (single process only)")
					return service.NewMemoryStore()
				}
				return service.NewRedisStore(client)
			},
		),
	)
}
