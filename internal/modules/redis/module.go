package redis

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"botfleet/internal/modules/config"
)

// Module provides the shared redis client. With no redis.addr
// configured it provides a nil client and the lockstore module falls
// back to its in-memory store (paper mode, tests).
func Module() fx.Option {
	return fx.Module("redis",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
				if cfg.Redis.Addr == "" {
					return nil, nil
				}
				client := redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				if err := client.Ping(ctx).Err(); err != nil {
					return nil, errors.Wrap(err, "redis ping")
				}
				return client, nil
			},
		),
	)
}
